package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helper: receive one frame with a timeout so tests never hang
func recvFrame(t *testing.T, ch <-chan []byte, within time.Duration) []byte {
	t.Helper()
	select {
	case f, ok := <-ch:
		require.True(t, ok, "client outbox closed unexpectedly")
		return f
	case <-time.After(within):
		t.Fatalf("timed out waiting for frame")
		return nil
	}
}

func recvNoFrame(t *testing.T, ch <-chan []byte, within time.Duration) {
	t.Helper()
	select {
	case f, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no frame within %v, got %s", within, f)
	case <-time.After(within):
	}
}

func state(t *testing.T, r *Room) View {
	t.Helper()
	reply := make(chan View, 1)
	r.Inbox() <- GetState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timed out waiting for view")
		return View{}
	}
}

func TestRoom_BroadcastSkipsSender(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := New(ctx, "cv1", nil, nil)

	a, b := make(chan []byte, 2), make(chan []byte, 2)
	require.NoError(t, r.Join(ctx, "a", a))
	require.NoError(t, r.Join(ctx, "b", b))

	require.NoError(t, r.Broadcast(ctx, "a", []byte("moved")))
	assert.Equal(t, "moved", string(recvFrame(t, b, 100*time.Millisecond)))
	recvNoFrame(t, a, 50*time.Millisecond)

	require.NoError(t, r.Broadcast(ctx, "", []byte("full")))
	assert.Equal(t, "full", string(recvFrame(t, a, 100*time.Millisecond)))
	assert.Equal(t, "full", string(recvFrame(t, b, 100*time.Millisecond)))
	assert.Equal(t, 3, state(t, r).Sent)
}

func TestRoom_DropSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := New(ctx, "cv1", nil, nil)

	slow, fast := make(chan []byte), make(chan []byte, 4)
	require.NoError(t, r.Join(ctx, "slow", slow))
	require.NoError(t, r.Join(ctx, "fast", fast))

	require.NoError(t, r.Broadcast(ctx, "", []byte("x")))
	v := state(t, r)
	assert.Equal(t, 1, v.NumClients)

	_, ok := <-slow
	assert.False(t, ok, "slow outbox should be closed")
}

func TestRoom_ClosesWhenLastMemberLeaves(t *testing.T) {
	closed := make(chan *Room, 1)
	r := New(context.Background(), "cv1", nil, func(r *Room) { closed <- r })

	out := make(chan []byte, 1)
	require.NoError(t, r.Join(context.Background(), "a", out))
	r.Leave(context.Background(), "a")

	select {
	case got := <-closed:
		assert.Same(t, r, got)
	case <-time.After(time.Second):
		t.Fatalf("room did not close")
	}
	assert.True(t, r.Closed())
	assert.ErrorIs(t, r.Join(context.Background(), "b", make(chan []byte, 1)), ErrClosed)
}

func TestRoom_ShutdownClosesOutboxes(t *testing.T) {
	r := New(context.Background(), "cv1", nil, nil)
	out := make(chan []byte, 1)
	require.NoError(t, r.Join(context.Background(), "a", out))

	r.Close()
	_, ok := <-out
	assert.False(t, ok)
	assert.ErrorIs(t, r.Broadcast(context.Background(), "", []byte("late")), ErrClosed)
}
