package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	bus := New()
	a := bus.Subscribe()
	b := bus.Subscribe()
	defer bus.Unsubscribe(a)
	defer bus.Unsubscribe(b)

	bus.Publish(Event{Tag: TagConnectionOpened, ConnID: 1})

	select {
	case ev := <-a.Events():
		assert.Equal(t, TagConnectionOpened, ev.Tag)
	case <-time.After(time.Second):
		t.Fatal("subscriber a never received event")
	}
	select {
	case ev := <-b.Events():
		assert.Equal(t, TagConnectionOpened, ev.Tag)
	case <-time.After(time.Second):
		t.Fatal("subscriber b never received event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	bus.Unsubscribe(sub)

	bus.Publish(Event{Tag: TagConnectionOpened, ConnID: 1})

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "channel should not be written to after unsubscribe")
	case <-time.After(50 * time.Millisecond):
		// no delivery within the window is the expected outcome
	}
}

func TestPublishNeverBlocksWhenQueueFull(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	for i := 0; i < queueSize+10; i++ {
		bus.Publish(Event{Tag: TagRequestStarted, ConnID: uint64(i)})
	}

	assert.Greater(t, sub.Dropped(), uint64(0))
	assert.Len(t, sub.ch, queueSize)
}

func TestPublishDropsOldestOnFull(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	for i := 0; i < queueSize; i++ {
		bus.Publish(Event{Tag: TagRequestStarted, ConnID: uint64(i)})
	}
	bus.Publish(Event{Tag: TagRequestStarted, ConnID: 999})

	first := <-sub.Events()
	assert.Equal(t, uint64(1), first.ConnID)
	require.Equal(t, uint64(1), sub.Dropped())
}
