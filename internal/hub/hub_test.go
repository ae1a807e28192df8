package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_Ensure_Get_SamePointer(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, nil)
	defer h.Close()

	rm1, err := h.Ensure(ctx, "cv1")
	require.NoError(t, err)
	rm2, err := h.Get(ctx, "cv1")
	require.NoError(t, err)

	if rm1 == nil || rm2 == nil || rm1 != rm2 {
		t.Fatalf("expected same room pointer")
	}

	none, err := h.Get(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestHub_IdleRoomIsReplaced(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, nil)
	defer h.Close()

	rm1, err := h.Ensure(ctx, "cv1")
	require.NoError(t, err)
	require.NoError(t, rm1.Join(ctx, "a", make(chan []byte, 1)))
	rm1.Leave(ctx, "a")
	<-rm1.Done()

	require.Eventually(t, func() bool {
		st, err := h.Stats(ctx)
		return err == nil && st.Rooms == 0
	}, time.Second, 5*time.Millisecond)

	rm2, err := h.Ensure(ctx, "cv1")
	require.NoError(t, err)
	assert.NotSame(t, rm1, rm2)
	assert.False(t, rm2.Closed())
}

func TestHub_PublishReachesMembers(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, nil)
	defer h.Close()

	// no room yet: dropped, not an error
	require.NoError(t, h.Publish(ctx, "cv1", "", []byte("lost")))

	rm, err := h.Ensure(ctx, "cv1")
	require.NoError(t, err)
	out := make(chan []byte, 1)
	require.NoError(t, rm.Join(ctx, "a", out))

	require.NoError(t, h.Publish(ctx, "cv1", "", []byte("hello")))
	select {
	case f := <-out:
		assert.Equal(t, "hello", string(f))
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for frame")
	}
}

func TestHub_CloseStopsRooms(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, nil)
	rm, err := h.Ensure(ctx, "cv1")
	require.NoError(t, err)

	h.Close()
	assert.True(t, rm.Closed())
	_, err = h.Ensure(ctx, "cv1")
	assert.ErrorIs(t, err, ErrClosed)
}
