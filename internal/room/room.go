// Package room fans realtime frames out to everyone viewing one canvas.
// A Room is an actor: all membership changes go through its inbox.
package room

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var ErrClosed = errors.New("room closed")

type Msg interface{ isRoomMsg() }

type Join struct {
	ClientID string
	Outbox   chan []byte // frames for this client; closed when the room drops it
	Reply    chan error
}

type Leave struct{ ClientID string }

// Broadcast sends Frame to every member except From. From may be empty.
type Broadcast struct {
	From  string
	Frame []byte
}

type GetState struct {
	Reply chan View
}

type Shutdown struct{}

func (Join) isRoomMsg()      {}
func (Leave) isRoomMsg()     {}
func (Broadcast) isRoomMsg() {}
func (GetState) isRoomMsg()  {}
func (Shutdown) isRoomMsg()  {}

type View struct {
	CanvasID   string
	NumClients int
	Sent       int
}

type Room struct {
	canvasID string
	inbox    chan Msg
	clients  map[string]chan []byte
	sent     int
	log      *zap.Logger
	onClose  func(*Room)
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// New starts a room. It closes itself when its last member leaves and then
// calls onClose, which may be nil.
func New(parent context.Context, canvasID string, log *zap.Logger, onClose func(*Room)) *Room {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}
	r := &Room{
		canvasID: canvasID,
		inbox:    make(chan Msg, 64),
		clients:  make(map[string]chan []byte),
		log:      log.With(zap.String("canvas", canvasID)),
		onClose:  onClose,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Room) CanvasID() string { return r.canvasID }

func (r *Room) Done() <-chan struct{} { return r.done }

// Closed reports whether the room has stopped accepting members.
func (r *Room) Closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Inbox exposes the actor for tests and callers that want to skip the helpers.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Join registers a member. ErrClosed means the room went idle first; ask the
// hub for a fresh one.
func (r *Room) Join(ctx context.Context, clientID string, outbox chan []byte) error {
	reply := make(chan error, 1)
	if err := r.send(ctx, Join{ClientID: clientID, Outbox: outbox, Reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) Leave(ctx context.Context, clientID string) {
	_ = r.send(ctx, Leave{ClientID: clientID})
}

func (r *Room) Broadcast(ctx context.Context, from string, frame []byte) error {
	return r.send(ctx, Broadcast{From: from, Frame: frame})
}

func (r *Room) Close() {
	select {
	case r.inbox <- Shutdown{}:
	case <-r.done:
	}
	<-r.done
}

func (r *Room) send(ctx context.Context, m Msg) error {
	if r.Closed() {
		return ErrClosed
	}
	select {
	case r.inbox <- m:
		return nil
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) loop() {
	defer func() {
		close(r.done)
		if r.onClose != nil {
			r.onClose(r)
		}
	}()
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				if old, ok := r.clients[msg.ClientID]; ok && old != msg.Outbox {
					close(old)
				}
				r.clients[msg.ClientID] = msg.Outbox
				r.log.Debug("client joined", zap.String("client", msg.ClientID), zap.Int("clients", len(r.clients)))
				msg.Reply <- nil

			case Leave:
				if ch, ok := r.clients[msg.ClientID]; ok {
					close(ch)
					delete(r.clients, msg.ClientID)
				}
				if len(r.clients) == 0 {
					r.log.Debug("room idle")
					r.shutdown()
					return
				}

			case Broadcast:
				r.broadcast(msg.From, msg.Frame)

			case GetState:
				msg.Reply <- View{CanvasID: r.canvasID, NumClients: len(r.clients), Sent: r.sent}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) shutdown() {
	for id, ch := range r.clients {
		close(ch)
		delete(r.clients, id)
	}
	r.cancel()
}

func (r *Room) broadcast(from string, frame []byte) {
	for id, ch := range r.clients {
		if id == from {
			continue
		}
		select {
		case ch <- frame:
			r.sent++
		default:
			// slow reader: drop it, it will reconnect and resync
			r.log.Warn("dropping slow client", zap.String("client", id))
			close(ch)
			delete(r.clients, id)
		}
	}
}
