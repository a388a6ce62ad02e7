// Package eventbus implements a process-wide, lossy fan-out of typed
// lifecycle events to every subscriber, each with a bounded queue. A publish
// never blocks; a full subscriber queue drops its oldest event and
// increments a per-subscriber drop counter.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// queueSize is the bound on each subscriber's channel.
const queueSize = 256

// Subscriber is a handle returned by Subscribe. Events() yields published
// events in arrival order for this subscriber; Unsubscribe stops delivery.
type Subscriber struct {
	ch      chan Event
	dropped atomic.Uint64
	bus     *Bus
	id      uint64
}

// Events returns the channel events are delivered on.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// Dropped returns the number of events dropped for this subscriber because
// its queue was full.
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }

// Bus fans out Events to every registered Subscriber.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscriber
	nextID  atomic.Uint64
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[uint64]*Subscriber)}
}

// Subscribe registers a new Subscriber with a bounded queue.
func (b *Bus) Subscribe() *Subscriber {
	s := &Subscriber{
		ch:  make(chan Event, queueSize),
		bus: b,
		id:  b.nextID.Add(1),
	}
	b.mu.Lock()
	b.subs[s.id] = s
	b.mu.Unlock()
	return s
}

// Unsubscribe removes s from the bus. Safe to call more than once.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	delete(b.subs, s.id)
	b.mu.Unlock()
}

// Publish fans ev out to every subscriber without blocking. If a
// subscriber's queue is full, the oldest queued event for that subscriber is
// dropped to make room, and its drop counter is incremented.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			// Queue full: drop the oldest queued event, then retry once.
			select {
			case <-s.ch:
				s.dropped.Add(1)
			default:
			}
			select {
			case s.ch <- ev:
			default:
				s.dropped.Add(1)
			}
		}
	}
}
