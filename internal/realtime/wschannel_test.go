package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/lol-draft-canvas/internal/types"
)

func recvFrame(t *testing.T, ch <-chan []byte, within time.Duration) []byte {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(within):
		t.Fatalf("timed out waiting for frame")
		return nil
	}
}

func recvMessage(t *testing.T, ch <-chan types.Message, within time.Duration) types.Message {
	t.Helper()
	select {
	case m, ok := <-ch:
		require.True(t, ok, "inbound closed")
		return m
	case <-time.After(within):
		t.Fatalf("timed out waiting for message")
		return types.Message{}
	}
}

func TestWSChannel_RejoinsAfterReconnect(t *testing.T) {
	var accepted atomic.Int32
	frames := make(chan []byte, 8)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		n := accepted.Add(1)
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		select {
		case frames <- data:
		default:
		}
		if n == 1 {
			conn.CloseNow()
			return
		}
		_ = conn.Write(r.Context(), websocket.MessageText, []byte(`{"type":"card-moved","payload":{}}`))
		out, _ := types.Encode(types.CardMoved, "cv1", types.CardPosition{CardID: "a", PositionX: 1, PositionY: 2})
		_ = conn.Write(r.Context(), websocket.MessageText, out)
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ch := DialChannel(context.Background(), url, WSOptions{MinBackoff: 10 * time.Millisecond, MaxBackoff: 50 * time.Millisecond}, nil)
	require.NoError(t, ch.Join(context.Background(), "cv1"))

	for i := 0; i < 2; i++ {
		msg, err := types.Decode(recvFrame(t, frames, 2*time.Second))
		require.NoError(t, err)
		assert.Equal(t, types.JoinRoom, msg.Name)
		assert.Equal(t, "cv1", msg.Payload.(*types.Room).CanvasID)
	}

	// the rejoin is reported before anything the new connection carries;
	// the malformed frame is dropped and the valid one arrives
	reconnected := 0
	msg := recvMessage(t, ch.Inbound(), 2*time.Second)
	for msg.Name == types.Reconnected {
		assert.Equal(t, "cv1", msg.CanvasID)
		assert.Nil(t, msg.Payload)
		reconnected++
		msg = recvMessage(t, ch.Inbound(), 2*time.Second)
	}
	assert.GreaterOrEqual(t, reconnected, 1)
	assert.Equal(t, types.CardMoved, msg.Name)
	assert.Equal(t, "a", msg.Payload.(*types.CardPosition).CardID)

	require.NoError(t, ch.Close())
	_, open := <-ch.Inbound()
	assert.False(t, open)
	assert.ErrorIs(t, ch.Emit(context.Background(), types.CardMove, "cv1", types.CardPosition{CardID: "a"}), ErrChannelClosed)
}
