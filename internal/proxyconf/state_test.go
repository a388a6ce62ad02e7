package proxyconf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackOpenUpdateClose(t *testing.T) {
	s := New(nil, nil, nil, nil, nil)

	s.TrackOpen(1, "10.0.0.5:51234")
	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, uint64(1), snap[0].ID)
	assert.Equal(t, "10.0.0.5:51234", snap[0].PeerAddr)
	assert.Empty(t, snap[0].ALPN)

	s.TrackUpdate(1, "1.2.3.4:443", "h2")
	snap = s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "1.2.3.4:443", snap[0].UpstreamAddr)
	assert.Equal(t, "h2", snap[0].ALPN)

	s.TrackClose(1)
	assert.Empty(t, s.Snapshot())
}

func TestTrackUpdateIgnoresUnknownConnection(t *testing.T) {
	s := New(nil, nil, nil, nil, nil)
	s.TrackUpdate(99, "1.2.3.4:443", "h2")
	assert.Empty(t, s.Snapshot())
}

func TestSnapshotTracksMultipleConnections(t *testing.T) {
	s := New(nil, nil, nil, nil, nil)
	s.TrackOpen(1, "a")
	s.TrackOpen(2, "b")
	assert.Len(t, s.Snapshot(), 2)
}
