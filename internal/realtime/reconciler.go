package realtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/drag"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
	"github.com/DoyleJ11/lol-draft-canvas/internal/routing"
	"github.com/DoyleJ11/lol-draft-canvas/internal/store"
	"github.com/DoyleJ11/lol-draft-canvas/internal/types"
)

// Reconciler is driven from the session loop only; it has no goroutines and
// no locking of its own.
type Reconciler struct {
	store    *store.Store
	ch       Channel // nil in local mode
	throttle *Throttle
	log      *zap.Logger
	owned    drag.State
}

func NewReconciler(s *store.Store, ch Channel, t *Throttle, log *zap.Logger) *Reconciler {
	if t == nil {
		t = NewThrottle(DefaultEmitInterval)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{store: s, ch: ch, throttle: t, log: log}
}

// Own marks the entity under drag. Inbound updates for it are ignored until Release.
func (r *Reconciler) Own(kind drag.Kind, id, connectionID string) {
	r.owned = drag.State{Kind: kind, ID: id, ConnectionID: connectionID}
}

func (r *Reconciler) Release() { r.owned = drag.State{} }

func (r *Reconciler) Owns(kind drag.Kind, id, connectionID string) bool {
	return r.owned.Owns(kind, id, connectionID)
}

// ApplyLocal applies one drag event to the store and emits live moves.
func (r *Reconciler) ApplyLocal(ctx context.Context, ev drag.Event) {
	switch ev.Type {
	case drag.EvtDragStarted:
		if ev.Kind != drag.KindPan {
			r.Own(ev.Kind, ev.ID, ev.ConnectionID)
		}

	case drag.EvtDragEnded, drag.EvtDragCancelled:
		r.Release()

	case drag.EvtCardMoved, drag.EvtCardDropped, drag.EvtCardReparented:
		c, ok := r.store.Card(ev.ID)
		if !ok {
			return
		}
		r.placeCard(&c, ev.GroupID, ev.X, ev.Y)
		r.store.PutCard(c)
		if ev.Type == drag.EvtCardMoved {
			r.emit(ctx, types.CardMove, types.CardPosition{
				CardID: c.ID, PositionX: ev.X, PositionY: ev.Y, GroupID: ev.GroupID,
			})
		}

	case drag.EvtGroupMoved, drag.EvtGroupDropped:
		g, ok := r.store.Group(ev.ID)
		if !ok {
			return
		}
		g.MoveTo(ev.World)
		r.store.PutGroup(g)
		if ev.Type == drag.EvtGroupMoved {
			r.emit(ctx, types.GroupMove, types.GroupPosition{GroupID: g.ID, PositionX: ev.X, PositionY: ev.Y})
		}

	case drag.EvtGroupResized:
		g, ok := r.store.Group(ev.ID)
		if !ok {
			return
		}
		g.Resize(ev.Size)
		r.store.PutGroup(g)
		r.emit(ctx, types.GroupResize, types.GroupSize{GroupID: g.ID, Width: ev.Size.W, Height: ev.Size.H})

	case drag.EvtVertexMoved, drag.EvtVertexDropped:
		c, ok := r.store.Connection(ev.ConnectionID)
		if !ok {
			return
		}
		moved, ok := routing.MoveVertex(c, ev.ID, ev.World)
		if !ok {
			return
		}
		r.store.PutConnection(moved)
		if ev.Type == drag.EvtVertexMoved {
			r.emit(ctx, types.VertexMove, types.VertexPosition{
				ConnectionID: ev.ConnectionID, VertexID: ev.ID, X: ev.X, Y: ev.Y,
			})
		}

	case drag.EvtViewportPanned, drag.EvtViewportZoomed:
		r.store.SetViewport(ev.Viewport)
	}
}

// placeCard stores x/y in the frame groupID implies.
func (r *Reconciler) placeCard(c *canvas.Card, groupID *string, x, y float64) {
	if groupID == nil {
		c.Place(geom.WorldPos{X: x, Y: y})
		return
	}
	if g, ok := r.store.Group(*groupID); ok && !g.IsCustom() {
		c.PlaceInSeries(*groupID, geom.WorldPos{X: x, Y: y})
		return
	}
	c.PlaceIn(*groupID, geom.RelativePos{X: x, Y: y})
}

func (r *Reconciler) emit(ctx context.Context, name types.EventName, payload any) {
	if r.ch == nil || !r.throttle.Allow(name) {
		return
	}
	canvasID := r.store.CanvasID()
	if err := r.ch.Emit(ctx, name, canvasID, payload); err != nil {
		r.log.Debug("emit failed", zap.String("event", string(name)), zap.String("canvas", canvasID), zap.Error(err))
	}
}

// ApplyInbound applies one validated message from the room. It reports
// whether the store changed.
func (r *Reconciler) ApplyInbound(msg types.Message) bool {
	if msg.CanvasID != "" && msg.CanvasID != r.store.CanvasID() {
		return false
	}

	switch p := msg.Payload.(type) {
	case *types.CanvasUpdate:
		snap := r.store.Snapshot()
		snap.Name = p.Name
		snap.Cards, snap.Groups, snap.Connections = p.Cards, p.Groups, p.Connections
		r.ApplyFullState(snap)
		return true

	case *types.CardPosition:
		if r.Owns(drag.KindCard, p.CardID, "") {
			return false
		}
		c, ok := r.store.Card(p.CardID)
		if !ok {
			return false
		}
		r.placeCard(&c, p.GroupID, p.PositionX, p.PositionY)
		r.store.PutCard(c)
		return true

	case *types.CardChange:
		in := p.Card
		if r.Owns(drag.KindCard, in.ID, "") {
			if local, ok := r.store.Card(in.ID); ok {
				in.PositionX, in.PositionY, in.GroupID = local.PositionX, local.PositionY, local.GroupID
			}
		}
		r.store.PutCard(in)
		return true

	case *types.ConnectionChange:
		r.store.PutConnection(r.keepOwnedVertex(p.Connection))
		return true

	case *types.ConnectionRef:
		return r.store.DeleteConnection(p.ConnectionID)

	case *types.VertexPosition:
		if r.Owns(drag.KindVertex, p.VertexID, p.ConnectionID) {
			return false
		}
		c, ok := r.store.Connection(p.ConnectionID)
		if !ok {
			return false
		}
		moved, ok := routing.MoveVertex(c, p.VertexID, geom.WorldPos{X: p.X, Y: p.Y})
		if ok {
			r.store.PutConnection(moved)
		}
		return ok

	case *types.VertexChange:
		if r.Owns(drag.KindVertex, p.Vertex.ID, p.ConnectionID) {
			return false
		}
		c, ok := r.store.Connection(p.ConnectionID)
		if !ok {
			return false
		}
		if moved, ok := routing.MoveVertex(c, p.Vertex.ID, p.Vertex.Pos()); ok {
			r.store.PutConnection(moved)
			return true
		}
		r.store.PutConnection(routing.InsertVertex(c, p.Index, p.Vertex))
		return true

	case *types.VertexRef:
		c, ok := r.store.Connection(p.ConnectionID)
		if !ok {
			return false
		}
		removed, ok := routing.RemoveVertex(c, p.VertexID)
		if ok {
			r.store.PutConnection(removed)
		}
		return ok

	case *types.GroupPosition:
		if r.Owns(drag.KindGroup, p.GroupID, "") {
			return false
		}
		g, ok := r.store.Group(p.GroupID)
		if !ok {
			return false
		}
		g.MoveTo(geom.WorldPos{X: p.PositionX, Y: p.PositionY})
		r.store.PutGroup(g)
		return true

	case *types.GroupSize:
		if r.Owns(drag.KindGroup, p.GroupID, "") {
			return false
		}
		g, ok := r.store.Group(p.GroupID)
		if !ok || !g.IsCustom() {
			return false
		}
		g.Resize(geom.Size{W: p.Width, H: p.Height})
		r.store.PutGroup(g)
		return true

	case *types.ErrorMessage:
		r.log.Warn("room error", zap.String("canvas", r.store.CanvasID()), zap.String("message", p.Message))
	}
	return false
}

// ApplyFullState replaces the store wholesale, keeping the position of the
// entity under local drag.
func (r *Reconciler) ApplyFullState(snap canvas.Snapshot) {
	switch r.owned.Kind {
	case drag.KindCard:
		if local, ok := r.store.Card(r.owned.ID); ok {
			for i := range snap.Cards {
				if snap.Cards[i].ID == local.ID {
					snap.Cards[i].PositionX, snap.Cards[i].PositionY = local.PositionX, local.PositionY
					snap.Cards[i].GroupID = local.GroupID
				}
			}
		}
	case drag.KindGroup:
		if local, ok := r.store.Group(r.owned.ID); ok {
			for i := range snap.Groups {
				if snap.Groups[i].ID == local.ID {
					snap.Groups[i].MoveTo(local.Origin())
				}
			}
		}
	case drag.KindVertex:
		for i := range snap.Connections {
			snap.Connections[i] = r.keepOwnedVertex(snap.Connections[i])
		}
	}
	r.store.Load(snap)
}

func (r *Reconciler) keepOwnedVertex(in canvas.Connection) canvas.Connection {
	if r.owned.Kind != drag.KindVertex || r.owned.ConnectionID != in.ID {
		return in
	}
	local, ok := r.store.Connection(in.ID)
	if !ok {
		return in
	}
	i := local.VertexIndex(r.owned.ID)
	if i < 0 {
		return in
	}
	out, _ := routing.MoveVertex(in, r.owned.ID, local.Vertices[i].Pos())
	return out
}
