// internal/transport/transport_test.go
package transport

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToExactPath(t *testing.T) {
	b := NewBus()
	a := NewConn(uuid.New(), "alice", uuid.New(), nil)
	c := NewConn(uuid.New(), "bob", uuid.New(), nil)

	b.SubscribeClient(a, "lobbies/game1", nil)
	b.SubscribeClient(c, "lobbies/game2", nil)

	b.Publish("lobbies/game1", "hello")

	require.Len(t, a.Out, 1)
	assert.Equal(t, "hello", <-a.Out)
	assert.Empty(t, c.Out, "paths are exact, not prefixes")
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	b := NewBus()
	a := NewConn(uuid.New(), "alice", uuid.New(), nil)

	b.SubscribeClient(a, "lobbies", func() interface{} { return "snapshot" })
	require.Len(t, a.Out, 1)
	assert.Equal(t, "snapshot", <-a.Out)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus()
	a := NewConn(uuid.New(), "alice", uuid.New(), nil)
	b.SubscribeClient(a, "lobbies", nil)
	b.UnsubscribeClient(a, "lobbies")
	b.UnsubscribeClient(a, "never-subscribed")

	b.Publish("lobbies", "x")
	assert.Empty(t, a.Out)
}

func TestWriteNeverBlocks(t *testing.T) {
	c := NewConn(uuid.New(), "alice", uuid.New(), nil)
	for i := 0; i < 100; i++ {
		c.Write(i)
	}
	assert.Len(t, c.Out, cap(c.Out), "overflow is dropped, not queued")
}
