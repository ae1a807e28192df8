// Package hub owns the set of live rooms, one per canvas being viewed.
package hub

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-draft-canvas/internal/room"
)

var ErrClosed = errors.New("hub closed")

type HubMsg interface{ isHubMsg() }

// EnsureRoom returns the canvas's room, starting one if none is live.
type EnsureRoom struct {
	CanvasID string
	Reply    chan *room.Room
}

type GetRoom struct {
	CanvasID string
	Reply    chan *room.Room // nil if nobody is viewing the canvas
}

type roomClosed struct{ Room *room.Room }

type ShutdownHub struct{}

type Stats struct {
	Rooms int
}

type GetStats struct{ Reply chan Stats }

func (EnsureRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (roomClosed) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}
func (GetStats) isHubMsg()    {}

type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room.Room
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		log:    log.Named("hub"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureRoom:
				if rm := h.rooms[msg.CanvasID]; rm != nil && !rm.Closed() {
					msg.Reply <- rm
					break
				}
				rm := room.New(h.ctx, msg.CanvasID, h.log, h.closed)
				h.rooms[msg.CanvasID] = rm
				msg.Reply <- rm

			case GetRoom:
				rm := h.rooms[msg.CanvasID]
				if rm != nil && rm.Closed() {
					rm = nil
				}
				msg.Reply <- rm

			case roomClosed:
				// a newer room may already hold the slot
				if h.rooms[msg.Room.CanvasID()] == msg.Room {
					delete(h.rooms, msg.Room.CanvasID())
				}

			case GetStats:
				msg.Reply <- Stats{Rooms: len(h.rooms)}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, rm := range h.rooms {
		rm.Close()
	}
	clear(h.rooms)
	h.cancel()
}

// closed runs on a room's goroutine after it stops.
func (h *Hub) closed(rm *room.Room) {
	select {
	case h.inbox <- roomClosed{Room: rm}:
	case <-h.ctx.Done():
	}
}

func ask[T any](ctx context.Context, h *Hub, m HubMsg, reply chan T) (T, error) {
	var zero T
	select {
	case h.inbox <- m:
	case <-h.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-h.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (h *Hub) Ensure(ctx context.Context, canvasID string) (*room.Room, error) {
	reply := make(chan *room.Room, 1)
	return ask(ctx, h, EnsureRoom{CanvasID: canvasID, Reply: reply}, reply)
}

func (h *Hub) Get(ctx context.Context, canvasID string) (*room.Room, error) {
	reply := make(chan *room.Room, 1)
	return ask(ctx, h, GetRoom{CanvasID: canvasID, Reply: reply}, reply)
}

func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	return ask(ctx, h, GetStats{Reply: reply}, reply)
}

// Publish fans a frame out to a canvas's room. A canvas nobody is viewing
// has no room and the frame is dropped.
func (h *Hub) Publish(ctx context.Context, canvasID, from string, frame []byte) error {
	rm, err := h.Get(ctx, canvasID)
	if err != nil || rm == nil {
		return err
	}
	if err := rm.Broadcast(ctx, from, frame); err != nil && !errors.Is(err, room.ErrClosed) {
		return err
	}
	return nil
}

func (h *Hub) Close() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
	}
	<-h.done
}
