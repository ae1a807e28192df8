package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/DoyleJ11/lol-draft-canvas/internal/api"
	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/drag"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
	"github.com/DoyleJ11/lol-draft-canvas/internal/routing"
)

// Open loads a canvas and joins its room. Opening while another canvas is
// open switches: the old room is left first. A load failure leaves the
// session in StatusFailed.
func (s *Session) Open(ctx context.Context, canvasID string) error {
	res, err := ask(ctx, s, func(r chan error) Msg { return openCanvas{CanvasID: canvasID, Reply: r} })
	if err != nil {
		return err
	}
	return res
}

// SwitchCanvas is Open under the name callers use when a canvas is already open.
func (s *Session) SwitchCanvas(ctx context.Context, canvasID string) error {
	return s.Open(ctx, canvasID)
}

// Pointer feeds one pointer or wheel command through the drag machine. A
// PointerDown without a Hit is hit-tested against the current canvas.
func (s *Session) Pointer(ctx context.Context, cmd drag.Command) ([]drag.Event, error) {
	res, err := ask(ctx, s, func(r chan pointerResult) Msg { return pointer{Cmd: cmd, Reply: r} })
	if err != nil {
		return nil, err
	}
	return res.Events, res.Err
}

func (s *Session) View(ctx context.Context) (View, error) {
	return ask(ctx, s, func(r chan View) Msg { return getView{Reply: r} })
}

// Apply runs any authoritative op through the optimistic path.
func (s *Session) Apply(ctx context.Context, op api.Op) error {
	return s.mutate(ctx, func() (api.Op, error) { return op, nil })
}

func (s *Session) mutate(ctx context.Context, build func() (api.Op, error)) error {
	res, err := ask(ctx, s, func(r chan error) Msg { return mutation{Build: build, Reply: r} })
	if err != nil {
		return err
	}
	return res
}

func (s *Session) option(ctx context.Context, fn func()) error {
	res, err := ask(ctx, s, func(r chan error) Msg { return setOption{Fn: fn, Reply: r} })
	if err != nil {
		return err
	}
	return res
}

func (s *Session) CreateCard(ctx context.Context, p canvas.DraftPayload, at geom.WorldPos) (string, error) {
	id := uuid.NewString()
	card := canvas.Card{ID: id, Payload: p}
	card.Place(at)
	return id, s.Apply(ctx, api.CreateCard{Card: card})
}

func (s *Session) UpdateCard(ctx context.Context, c canvas.Card) error {
	return s.Apply(ctx, api.UpdateCard{Card: c})
}

// DeleteCard also strips the card from connections; a connection left with
// no sources or no targets is deleted.
func (s *Session) DeleteCard(ctx context.Context, id string) error {
	return s.Apply(ctx, api.DeleteCard{CardID: id})
}

func (s *Session) CreateGroup(ctx context.Context, kind canvas.GroupKind, name string, at geom.WorldPos) (string, error) {
	id := uuid.NewString()
	g := canvas.Group{ID: id, Kind: kind, Name: name}
	g.MoveTo(at)
	return id, s.Apply(ctx, api.CreateGroup{Group: g})
}

func (s *Session) RenameGroup(ctx context.Context, id, name string) error {
	return s.Apply(ctx, api.UpdateGroup{GroupID: id, Name: name})
}

func (s *Session) DeleteGroup(ctx context.Context, id string, members canvas.GroupDeletePolicy) error {
	return s.Apply(ctx, api.DeleteGroup{GroupID: id, Members: members})
}

func (s *Session) RenameCanvas(ctx context.Context, name string) error {
	return s.Apply(ctx, api.RenameCanvas{Name: name})
}

func (s *Session) CreateConnection(ctx context.Context, src, dst canvas.Endpoint, style canvas.Style) (string, error) {
	id := uuid.NewString()
	c := canvas.Connection{ID: id, Sources: []canvas.Endpoint{src}, Targets: []canvas.Endpoint{dst}, Style: style}
	return id, s.Apply(ctx, api.CreateConnection{Connection: c})
}

func (s *Session) DeleteConnection(ctx context.Context, id string) error {
	return s.Apply(ctx, api.DeleteConnection{ConnectionID: id})
}

func (s *Session) AddSource(ctx context.Context, connectionID string, e canvas.Endpoint) error {
	return s.Apply(ctx, api.AddSource{ConnectionID: connectionID, Endpoint: e})
}

func (s *Session) AddTarget(ctx context.Context, connectionID string, e canvas.Endpoint) error {
	return s.Apply(ctx, api.AddTarget{ConnectionID: connectionID, Endpoint: e})
}

// InsertVertex adds a bend point where the user double-clicked, slotting it
// into the chain next to the nearest drawn segment.
func (s *Session) InsertVertex(ctx context.Context, connectionID string, at geom.ScreenPos) (string, error) {
	id := uuid.NewString()
	err := s.mutate(ctx, func() (api.Op, error) {
		c, ok := s.store.Connection(connectionID)
		if !ok {
			return nil, fmt.Errorf("connection %q: %w", connectionID, api.ErrNotFound)
		}
		p := geom.ScreenToWorld(at, s.store.Viewport())
		index := routing.InsertionIndex(c, s.store.Index(s.layout), p)
		return api.CreateVertex{ConnectionID: connectionID, Vertex: canvas.Vertex{ID: id, X: p.X, Y: p.Y}, Index: index}, nil
	})
	return id, err
}

func (s *Session) DeleteVertex(ctx context.Context, connectionID, vertexID string) error {
	return s.Apply(ctx, api.DeleteVertex{ConnectionID: connectionID, VertexID: vertexID})
}

func (s *Session) SetLayout(ctx context.Context, l geom.Layout) error {
	return s.option(ctx, func() { s.layout = l })
}

// SetConnectionMode toggles connection mode. Leaving it drops any half-made
// selection.
func (s *Session) SetConnectionMode(ctx context.Context, on bool) error {
	return s.option(ctx, func() {
		s.connMode = on
		if !on {
			s.pending = nil
		}
	})
}

// CancelSelection drops the pending source in connection mode. It never
// cancels a drag.
func (s *Session) CancelSelection(ctx context.Context) error {
	return s.option(ctx, func() { s.pending = nil })
}

func (s *Session) SetCanEdit(ctx context.Context, canEdit bool) error {
	return s.option(ctx, func() { s.canEdit = canEdit })
}
