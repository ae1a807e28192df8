// Package ws is the server end of the realtime channel. Each connection may
// sit in one canvas room at a time; live moves it sends are relayed to the
// other members as their inbound counterpart.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-draft-canvas/internal/api"
	"github.com/DoyleJ11/lol-draft-canvas/internal/hub"
	"github.com/DoyleJ11/lol-draft-canvas/internal/room"
	"github.com/DoyleJ11/lol-draft-canvas/internal/types"
)

var ErrNotInRoom = errors.New("not in room")

type Options struct {
	// ReadTimeout bounds how long a ping may go unanswered. Idle but live
	// clients are kept.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// OutboxSize is the per-connection room buffer; a client that falls
	// further behind is dropped and resyncs on reconnect.
	OutboxSize     int
	OriginPatterns []string
}

func (o *Options) defaults() {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 64
	}
}

// Handler upgrades /ws. backend may be nil, in which case join-room does not
// check that the canvas exists.
func Handler(h *hub.Hub, backend api.Backend, opts Options, log *zap.Logger) http.HandlerFunc {
	opts.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: opts.OriginPatterns})
		if err != nil {
			log.Debug("accept", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		c := &client{
			id:      uuid.NewString(),
			conn:    conn,
			send:    make(chan []byte, opts.OutboxSize),
			hub:     h,
			backend: backend,
			opts:    opts,
			ctx:     ctx,
			cancel:  cancel,
		}
		c.log = log.With(zap.String("client", c.id))
		c.log.Debug("connected", zap.String("remote", r.RemoteAddr))

		go c.writer()
		go c.pinger()
		defer c.leave()
		c.readLoop()
	}
}

// membership is one stay in one room.
type membership struct {
	canvasID string
	room     *room.Room
	outbox   chan []byte
	left     chan struct{}
}

type client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	hub     *hub.Hub
	backend api.Backend
	opts    Options
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	// only touched by the reader goroutine
	member *membership
}

func (c *client) readLoop() {
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if c.ctx.Err() == nil {
					c.log.Debug("read", zap.Error(err))
				}
			}
			return
		}

		msg, err := types.Decode(data)
		if err != nil {
			c.log.Warn("dropping client payload", zap.Error(err))
			c.fail(err)
			continue
		}

		switch msg.Name {
		case types.JoinRoom:
			p := msg.Payload.(*types.Room)
			if err := c.join(p.CanvasID); err != nil {
				c.fail(err)
			}

		case types.LeaveRoom:
			p := msg.Payload.(*types.Room)
			if c.member != nil && c.member.canvasID == p.CanvasID {
				c.leave()
			}

		default:
			if err := c.relay(msg); err != nil {
				c.fail(err)
			}
		}
	}
}

func (c *client) join(canvasID string) error {
	if c.member != nil && c.member.canvasID == canvasID {
		return nil
	}
	c.leave()

	if c.backend != nil {
		if _, err := c.backend.Snapshot(c.ctx, canvasID); err != nil {
			return fmt.Errorf("join %s: %w", canvasID, err)
		}
	}

	// a room can go idle between Ensure and Join; a fresh one is started then
	for range 3 {
		rm, err := c.hub.Ensure(c.ctx, canvasID)
		if err != nil {
			return err
		}
		m := &membership{
			canvasID: canvasID,
			room:     rm,
			outbox:   make(chan []byte, c.opts.OutboxSize),
			left:     make(chan struct{}),
		}
		err = rm.Join(c.ctx, c.id, m.outbox)
		if errors.Is(err, room.ErrClosed) {
			continue
		}
		if err != nil {
			return err
		}
		c.member = m
		go c.forward(m)
		c.log.Info("joined room", zap.String("canvas", canvasID))
		return nil
	}
	return fmt.Errorf("join %s: %w", canvasID, room.ErrClosed)
}

func (c *client) leave() {
	m := c.member
	if m == nil {
		return
	}
	c.member = nil
	close(m.left)
	// the request context may already be gone; leaving must still happen
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.room.Leave(ctx, c.id)
	c.log.Info("left room", zap.String("canvas", m.canvasID))
}

// forward copies room frames to the socket writer. If the room closes the
// outbox while we are still a member, we were dropped as a slow reader and
// the connection is closed so the client reconnects and resyncs. Frames still
// queued for a room we already left are dropped.
func (c *client) forward(m *membership) {
	for frame := range m.outbox {
		select {
		case c.send <- frame:
		case <-m.left:
			return
		case <-c.ctx.Done():
			return
		}
	}
	select {
	case <-m.left:
	default:
		c.log.Warn("dropped by room", zap.String("canvas", m.canvasID))
		c.cancel()
	}
}

func (c *client) relay(msg types.Message) error {
	out, ok := types.Relay(msg.Name)
	if !ok {
		return fmt.Errorf("%w: %s is not a client event", types.ErrUnknownEvent, msg.Name)
	}
	m := c.member
	if m == nil || (msg.CanvasID != "" && msg.CanvasID != m.canvasID) {
		return fmt.Errorf("%w: %q", ErrNotInRoom, msg.CanvasID)
	}
	frame, err := types.Encode(out, m.canvasID, msg.Payload)
	if err != nil {
		return err
	}
	return m.room.Broadcast(c.ctx, c.id, frame)
}

// fail reports an error frame to this client only. It never blocks.
func (c *client) fail(err error) {
	frame, encErr := types.Encode(types.Error, "", types.ErrorMessage{Message: err.Error()})
	if encErr != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

func (c *client) writer() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case frame := <-c.send:
			ctx, cancel := context.WithTimeout(c.ctx, c.opts.WriteTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				c.log.Debug("write", zap.Error(err))
				c.cancel()
				return
			}
		}
	}
}

func (c *client) pinger() {
	t := time.NewTicker(c.opts.ReadTimeout / 2)
	defer t.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(c.ctx, c.opts.ReadTimeout/2)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.log.Debug("ping", zap.Error(err))
				c.cancel()
				return
			}
		}
	}
}
