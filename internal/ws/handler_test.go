package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-draft-canvas/internal/api"
	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
	"github.com/DoyleJ11/lol-draft-canvas/internal/hub"
	"github.com/DoyleJ11/lol-draft-canvas/internal/room"
	"github.com/DoyleJ11/lol-draft-canvas/internal/types"
)

func startServer(t *testing.T) (*hub.Hub, string) {
	t.Helper()
	h := hub.NewHub(context.Background(), nil)
	backend := api.NewMemory(canvas.Snapshot{CanvasID: "cv1", Viewport: geom.DefaultViewport()})
	srv := httptest.NewServer(Handler(h, backend, Options{}, nil))
	t.Cleanup(func() {
		srv.Close()
		h.Close()
	})
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, name types.EventName, canvasID string, payload any) {
	t.Helper()
	frame, err := types.Encode(name, canvasID, payload)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, frame))
}

func recvMsg(t *testing.T, conn *websocket.Conn, within time.Duration) types.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), within)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	msg, err := types.Decode(data)
	require.NoError(t, err)
	return msg
}

func members(t *testing.T, h *hub.Hub, canvasID string) int {
	rm, err := h.Get(context.Background(), canvasID)
	if err != nil || rm == nil {
		return 0
	}
	reply := make(chan room.View, 1)
	rm.Inbox() <- room.GetState{Reply: reply}
	select {
	case v := <-reply:
		return v.NumClients
	case <-time.After(100 * time.Millisecond):
		return 0
	}
}

func TestHandler_RelaysMovesToOtherMembers(t *testing.T) {
	h, url := startServer(t)
	a, b := dial(t, url), dial(t, url)

	send(t, a, types.JoinRoom, "cv1", types.Room{CanvasID: "cv1"})
	send(t, b, types.JoinRoom, "cv1", types.Room{CanvasID: "cv1"})
	require.Eventually(t, func() bool { return members(t, h, "cv1") == 2 }, time.Second, 5*time.Millisecond)

	send(t, a, types.CardMove, "cv1", types.CardPosition{CardID: "c1", PositionX: 10, PositionY: 20})

	msg := recvMsg(t, b, time.Second)
	assert.Equal(t, types.CardMoved, msg.Name)
	assert.Equal(t, "cv1", msg.CanvasID)
	p := msg.Payload.(*types.CardPosition)
	assert.Equal(t, "c1", p.CardID)
	assert.Equal(t, 20.0, p.PositionY)

	// the sender gets nothing back
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err := a.Read(ctx)
	assert.Error(t, err)
}

func TestHandler_ErrorsGoToSenderOnly(t *testing.T) {
	_, url := startServer(t)
	a := dial(t, url)

	send(t, a, types.JoinRoom, "missing", types.Room{CanvasID: "missing"})
	msg := recvMsg(t, a, time.Second)
	require.Equal(t, types.Error, msg.Name)
	assert.Contains(t, msg.Payload.(*types.ErrorMessage).Message, "not found")

	send(t, a, types.GroupMove, "cv1", types.GroupPosition{GroupID: "g1"})
	msg = recvMsg(t, a, time.Second)
	require.Equal(t, types.Error, msg.Name)
	assert.Contains(t, msg.Payload.(*types.ErrorMessage).Message, ErrNotInRoom.Error())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Write(ctx, websocket.MessageText, []byte(`{"type":"card-move","payload":{}}`)))
	msg = recvMsg(t, a, time.Second)
	assert.Equal(t, types.Error, msg.Name)
}

func TestHandler_LeaveAndDisconnectEmptyTheRoom(t *testing.T) {
	h, url := startServer(t)
	a, b := dial(t, url), dial(t, url)

	send(t, a, types.JoinRoom, "cv1", types.Room{CanvasID: "cv1"})
	send(t, b, types.JoinRoom, "cv1", types.Room{CanvasID: "cv1"})
	require.Eventually(t, func() bool { return members(t, h, "cv1") == 2 }, time.Second, 5*time.Millisecond)

	send(t, a, types.LeaveRoom, "cv1", types.Room{CanvasID: "cv1"})
	require.Eventually(t, func() bool { return members(t, h, "cv1") == 1 }, time.Second, 5*time.Millisecond)

	b.Close(websocket.StatusNormalClosure, "bye")
	require.Eventually(t, func() bool {
		st, err := h.Stats(context.Background())
		return err == nil && st.Rooms == 0
	}, time.Second, 5*time.Millisecond)
}

func TestForward_StopsAfterLeaving(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// nobody drains send, as when the writer is stuck on a slow socket
	c := &client{send: make(chan []byte), ctx: ctx, cancel: cancel, log: zap.NewNop()}
	m := &membership{canvasID: "cv1", outbox: make(chan []byte, 2), left: make(chan struct{})}
	m.outbox <- []byte("a")
	m.outbox <- []byte("b")

	done := make(chan struct{})
	go func() {
		c.forward(m)
		close(done)
	}()
	close(m.left)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forward kept waiting on the writer after leaving")
	}
	assert.NoError(t, ctx.Err(), "leaving is not a drop")
}
