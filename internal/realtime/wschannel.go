package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-draft-canvas/internal/types"
)

var ErrChannelClosed = errors.New("realtime channel closed")
var ErrOutboxFull = errors.New("realtime outbox full")

type WSOptions struct {
	WriteTimeout time.Duration
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
}

func (o *WSOptions) defaults() {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.MinBackoff <= 0 {
		o.MinBackoff = 250 * time.Millisecond
	}
	if o.MaxBackoff < o.MinBackoff {
		o.MaxBackoff = 5 * time.Second
	}
}

// WSChannel is a Channel over one websocket. It redials with backoff when the
// connection drops and rejoins every room it was in. Nothing else is retried.
type WSChannel struct {
	url  string
	opts WSOptions
	log  *zap.Logger

	out chan []byte
	in  chan types.Message

	mu     sync.Mutex
	rooms  map[string]struct{}
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func DialChannel(parent context.Context, url string, opts WSOptions, log *zap.Logger) *WSChannel {
	opts.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	c := &WSChannel{
		url:    url,
		opts:   opts,
		log:    log.With(zap.String("component", "realtime")),
		out:    make(chan []byte, 64),
		in:     make(chan types.Message, 64),
		rooms:  make(map[string]struct{}),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *WSChannel) Inbound() <-chan types.Message { return c.in }

func (c *WSChannel) Join(ctx context.Context, canvasID string) error {
	c.mu.Lock()
	c.rooms[canvasID] = struct{}{}
	c.mu.Unlock()
	return c.Emit(ctx, types.JoinRoom, canvasID, types.Room{CanvasID: canvasID})
}

func (c *WSChannel) Leave(ctx context.Context, canvasID string) error {
	c.mu.Lock()
	delete(c.rooms, canvasID)
	c.mu.Unlock()
	return c.Emit(ctx, types.LeaveRoom, canvasID, types.Room{CanvasID: canvasID})
}

// Emit queues a frame without waiting for the network.
func (c *WSChannel) Emit(ctx context.Context, name types.EventName, canvasID string, payload any) error {
	frame, err := types.Encode(name, canvasID, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	select {
	case c.out <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrOutboxFull
	}
}

func (c *WSChannel) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.cancel()
		<-c.done
		close(c.in)
	})
	return nil
}

func (c *WSChannel) run() {
	defer close(c.done)
	backoff := c.opts.MinBackoff
	for {
		conn, _, err := websocket.Dial(c.ctx, c.url, nil)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Warn("dial failed", zap.String("url", c.url), zap.Duration("retry_in", backoff), zap.Error(err))
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, c.opts.MaxBackoff)
			continue
		}
		backoff = c.opts.MinBackoff
		c.serve(conn)
		if c.ctx.Err() != nil {
			return
		}
		c.log.Info("connection lost, reconnecting", zap.String("url", c.url))
	}
}

// serve pumps one connection until it fails or the channel closes.
func (c *WSChannel) serve(conn *websocket.Conn) {
	// live moves queued while offline are stale; room membership is replayed instead
	c.drain()
	rooms, err := c.rejoin(conn)
	if err != nil {
		c.log.Warn("rejoin failed", zap.Error(err))
		conn.CloseNow()
		return
	}
	// whatever the rooms fanned out while we were away is gone
	for _, id := range rooms {
		select {
		case c.in <- types.Message{Name: types.Reconnected, CanvasID: id}:
		case <-c.ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		}
	}

	readErr := make(chan error, 1)
	go func() { readErr <- c.readLoop(conn) }()

	for {
		select {
		case <-c.ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "bye")
			<-readErr
			return
		case err := <-readErr:
			conn.CloseNow()
			if c.ctx.Err() == nil {
				c.log.Debug("read ended", zap.Error(err))
			}
			return
		case frame := <-c.out:
			if err := c.write(conn, frame); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				conn.CloseNow()
				<-readErr
				return
			}
		}
	}
}

func (c *WSChannel) drain() {
	for {
		select {
		case <-c.out:
		default:
			return
		}
	}
}

func (c *WSChannel) rejoin(conn *websocket.Conn) ([]string, error) {
	c.mu.Lock()
	rooms := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	c.mu.Unlock()
	for _, id := range rooms {
		frame, err := types.Encode(types.JoinRoom, id, types.Room{CanvasID: id})
		if err != nil {
			return nil, err
		}
		if err := c.write(conn, frame); err != nil {
			return nil, err
		}
	}
	return rooms, nil
}

func (c *WSChannel) write(conn *websocket.Conn, frame []byte) error {
	ctx, cancel := context.WithTimeout(c.ctx, c.opts.WriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, frame)
}

func (c *WSChannel) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(c.ctx)
		if err != nil {
			return err
		}
		msg, err := types.Decode(data)
		if err != nil {
			c.log.Warn("dropping inbound payload", zap.Error(err))
			continue
		}
		select {
		case c.in <- msg:
		case <-c.ctx.Done():
			return c.ctx.Err()
		}
	}
}
