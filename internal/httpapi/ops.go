package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-draft-canvas/internal/api"
	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/types"
)

// handle decodes the op from the body, lets bind fill in path parameters
// (the path wins over the body) and applies it.
func handle[T api.Op](s *Server, bind func(r *http.Request, op *T)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var op T
		if err := decode(w, r, &op); err != nil {
			s.fail(w, r, err)
			return
		}
		if bind != nil {
			bind(r, &op)
		}
		if err := s.validate.Struct(op); err != nil {
			s.fail(w, r, fmt.Errorf("%w: %v", api.ErrInvalid, err))
			return
		}
		s.apply(w, r, op)
	}
}

func bindCreateCard(_ *http.Request, op *api.CreateCard) {
	if op.Card.ID == "" {
		op.Card.ID = uuid.NewString()
	}
}

func bindCreateConnection(_ *http.Request, op *api.CreateConnection) {
	if op.Connection.ID == "" {
		op.Connection.ID = uuid.NewString()
	}
}

func bindCreateVertex(r *http.Request, op *api.CreateVertex) {
	op.ConnectionID = param(r, "connectionID")
	if op.Vertex.ID == "" {
		op.Vertex.ID = uuid.NewString()
	}
}

func bindCreateGroup(_ *http.Request, op *api.CreateGroup) {
	if op.Group.ID == "" {
		op.Group.ID = uuid.NewString()
	}
}

// bindDeleteGroup also accepts ?members=delete|reparent for clients that
// send DELETE without a body.
func bindDeleteGroup(r *http.Request, op *api.DeleteGroup) {
	op.GroupID = param(r, "groupID")
	if m := r.URL.Query().Get("members"); m != "" {
		op.Members = canvas.GroupDeletePolicy(m)
	}
}

func (s *Server) apply(w http.ResponseWriter, r *http.Request, op api.Op) {
	canvasID := param(r, "canvasID")
	if err := s.backend.Apply(r.Context(), canvasID, op); err != nil {
		s.fail(w, r, err)
		return
	}
	s.fanOut(r.Context(), canvasID, op)

	if id, ok := createdID(op); ok {
		writeJSON(w, http.StatusCreated, struct {
			ID string `json:"id"`
		}{ID: id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func createdID(op api.Op) (string, bool) {
	switch o := op.(type) {
	case api.CreateCard:
		return o.Card.ID, true
	case api.CreateConnection:
		return o.Connection.ID, true
	case api.CreateVertex:
		return o.Vertex.ID, true
	case api.CreateGroup:
		return o.Group.ID, true
	}
	return "", false
}

// fanOut tells the room about a write that already succeeded. Failures are
// logged only: viewers resync on their next full update.
func (s *Server) fanOut(ctx context.Context, canvasID string, op api.Op) {
	if s.hub == nil {
		return
	}
	load := func() (canvas.Snapshot, error) { return s.backend.Snapshot(ctx, canvasID) }
	name, payload, ok, err := Event(op, load)
	if err != nil {
		s.log.Warn("fan-out snapshot", zap.String("canvas", canvasID), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	frame, err := types.Encode(name, canvasID, payload)
	if err != nil {
		s.log.Error("fan-out encode", zap.String("event", string(name)), zap.Error(err))
		return
	}
	if err := s.hub.Publish(ctx, canvasID, "", frame); err != nil {
		s.log.Warn("fan-out publish", zap.String("canvas", canvasID), zap.Error(err))
	}
}

// Event is the inbound event viewers receive after op is applied. load is
// only called for events that carry post-write state. ok is false for ops
// nobody else needs to see, such as a viewport change.
func Event(op api.Op, load func() (canvas.Snapshot, error)) (name types.EventName, payload any, ok bool, err error) {
	switch o := op.(type) {
	case api.SetViewport:
		return "", nil, false, nil

	case api.SetCardGroup:
		return types.CardMoved, types.CardPosition{CardID: o.CardID, PositionX: o.X, PositionY: o.Y, GroupID: o.GroupID}, true, nil

	case api.DeleteConnection:
		return types.ConnectionDeleted, types.ConnectionRef{ConnectionID: o.ConnectionID}, true, nil

	case api.DeleteVertex:
		return types.VertexDeleted, types.VertexRef{ConnectionID: o.ConnectionID, VertexID: o.VertexID}, true, nil

	case api.MoveGroup:
		return types.GroupMoved, types.GroupPosition{GroupID: o.GroupID, PositionX: o.X, PositionY: o.Y}, true, nil
	}

	snap, err := load()
	if err != nil {
		return "", nil, false, err
	}
	full := types.CanvasUpdate{Name: snap.Name, Cards: snap.Cards, Connections: snap.Connections, Groups: snap.Groups}

	switch o := op.(type) {
	case api.UpdateCard:
		if c, found := findCard(snap, o.Card.ID); found {
			return types.CardUpdated, types.CardChange{Card: c}, true, nil
		}

	case api.MoveCard:
		if c, found := findCard(snap, o.CardID); found {
			return types.CardMoved, types.CardPosition{CardID: c.ID, PositionX: c.PositionX, PositionY: c.PositionY, GroupID: c.GroupID}, true, nil
		}

	case api.CreateConnection:
		if c, found := findConnection(snap, o.Connection.ID); found {
			return types.ConnectionCreated, types.ConnectionChange{Connection: c}, true, nil
		}

	case api.UpdateConnection, api.AddSource, api.AddTarget:
		if c, found := findConnection(snap, connectionOf(o)); found {
			return types.ConnectionUpdated, types.ConnectionChange{Connection: c}, true, nil
		}

	case api.CreateVertex:
		if c, found := findConnection(snap, o.ConnectionID); found {
			if i := c.VertexIndex(o.Vertex.ID); i >= 0 {
				return types.VertexCreated, types.VertexChange{ConnectionID: c.ID, Vertex: c.Vertices[i], Index: i}, true, nil
			}
		}

	case api.ResizeGroup:
		// the stored size, which may be larger than the one asked for
		if g, found := findGroup(snap, o.GroupID); found {
			size := g.Size()
			return types.GroupResized, types.GroupSize{GroupID: g.ID, Width: size.W, Height: size.H}, true, nil
		}

	case api.UpdateVertex:
		if c, found := findConnection(snap, o.ConnectionID); found {
			if i := c.VertexIndex(o.Vertex.ID); i >= 0 {
				return types.VertexUpdated, types.VertexChange{ConnectionID: c.ID, Vertex: c.Vertices[i], Index: i}, true, nil
			}
		}
	}
	// structural changes, and anything whose entity is already gone again
	return types.FullCanvasUpdate, full, true, nil
}

func connectionOf(op api.Op) string {
	switch o := op.(type) {
	case api.UpdateConnection:
		return o.Connection.ID
	case api.AddSource:
		return o.ConnectionID
	case api.AddTarget:
		return o.ConnectionID
	}
	return ""
}

func findCard(s canvas.Snapshot, id string) (canvas.Card, bool) {
	for _, c := range s.Cards {
		if c.ID == id {
			return c, true
		}
	}
	return canvas.Card{}, false
}

func findGroup(s canvas.Snapshot, id string) (canvas.Group, bool) {
	for _, g := range s.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return canvas.Group{}, false
}

func findConnection(s canvas.Snapshot, id string) (canvas.Connection, bool) {
	for _, c := range s.Connections {
		if c.ID == id {
			return c, true
		}
	}
	return canvas.Connection{}, false
}
