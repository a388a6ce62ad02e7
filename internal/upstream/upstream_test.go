package upstream

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewHasSaneDefaultTimeout(t *testing.T) {
	d := New()
	assert.Greater(t, d.DialTimeout, time.Duration(0))
}

func TestDialFailsOnUnreachableAddr(t *testing.T) {
	d := New()
	d.DialTimeout = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := d.Dial(ctx, &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}, "localhost")
	assert.Error(t, err)
}

func TestDialRespectsContextCancellation(t *testing.T) {
	d := New()
	d.DialTimeout = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dial(ctx, &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9}, "localhost")
	assert.Error(t, err)
}
