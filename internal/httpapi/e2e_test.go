package httpapi_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/lol-draft-canvas/internal/api"
	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/drag"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
	"github.com/DoyleJ11/lol-draft-canvas/internal/httpapi"
	"github.com/DoyleJ11/lol-draft-canvas/internal/hub"
	"github.com/DoyleJ11/lol-draft-canvas/internal/realtime"
	"github.com/DoyleJ11/lol-draft-canvas/internal/room"
	"github.com/DoyleJ11/lol-draft-canvas/internal/session"
)

func members(t *testing.T, h *hub.Hub, canvasID string) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rm, err := h.Get(ctx, canvasID)
	if err != nil || rm == nil {
		return 0
	}
	reply := make(chan room.View, 1)
	select {
	case rm.Inbox() <- room.GetState{Reply: reply}:
	case <-rm.Done():
		return 0
	}
	select {
	case v := <-reply:
		return v.NumClients
	case <-rm.Done():
		return 0
	}
}

func client(t *testing.T, srv *httptest.Server) *session.Session {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ch := realtime.DialChannel(context.Background(), wsURL, realtime.WSOptions{}, nil)
	s := session.New(context.Background(), session.Config{
		Backend: api.NewClient(srv.URL, srv.Client()),
		Channel: ch,
		CanEdit: true,
	})
	t.Cleanup(func() {
		s.Close()
		ch.Close()
	})
	return s
}

// Two sessions against one server: a drop into a group made by one shows up
// for the other through the room.
func TestTwoSessions_DropIsSeenByPeer(t *testing.T) {
	backend := api.NewMemory(canvas.Snapshot{
		CanvasID: "cv1",
		Cards:    []canvas.Card{{ID: "C", PositionX: 100, PositionY: 100}},
		Groups: []canvas.Group{{
			ID: "G", Kind: canvas.GroupCustom, PositionX: 100, PositionY: 90,
			Width: canvas.Ptr(400.0), Height: canvas.Ptr(200.0),
		}},
		Viewport: geom.DefaultViewport(),
	})
	h := hub.NewHub(context.Background(), nil)
	srv := httptest.NewServer(httpapi.SetupRoutes(backend, h, httpapi.Options{}, nil))
	t.Cleanup(func() {
		srv.Close()
		h.Close()
	})

	ctx := context.Background()
	a, b := client(t, srv), client(t, srv)
	require.NoError(t, a.Open(ctx, "cv1"))
	require.NoError(t, b.Open(ctx, "cv1"))
	require.Eventually(t, func() bool { return members(t, h, "cv1") == 2 }, 3*time.Second, 20*time.Millisecond)

	for _, c := range []drag.Command{
		{Type: drag.CmdPointerDown, Screen: geom.ScreenPos{X: 110, Y: 110}},
		{Type: drag.CmdPointerMove, Screen: geom.ScreenPos{X: 135, Y: 120}},
		{Type: drag.CmdPointerMove, Screen: geom.ScreenPos{X: 160, Y: 130}},
		{Type: drag.CmdPointerUp},
	} {
		_, err := a.Pointer(ctx, c)
		require.NoError(t, err)
	}

	// the authoritative write lands on the server
	require.Eventually(t, func() bool {
		snap, err := backend.Snapshot(ctx, "cv1")
		return err == nil && snap.Cards[0].GroupID != nil
	}, 3*time.Second, 20*time.Millisecond)

	// and the peer draws C where A dropped it
	want := geom.WorldPos{X: 150, Y: 120}
	require.Eventually(t, func() bool {
		v, err := b.View(ctx)
		return err == nil && v.Cards["C"] == want
	}, 3*time.Second, 20*time.Millisecond)

	snap, err := backend.Snapshot(ctx, "cv1")
	require.NoError(t, err)
	assert.Equal(t, "G", *snap.Cards[0].GroupID)
	assert.Equal(t, 50.0, snap.Cards[0].PositionX)
	assert.Equal(t, 30.0, snap.Cards[0].PositionY)
}
