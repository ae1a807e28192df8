package session

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-draft-canvas/internal/api"
	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/containment"
	"github.com/DoyleJ11/lol-draft-canvas/internal/drag"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
	"github.com/DoyleJ11/lol-draft-canvas/internal/routing"
)

// world is the drag machine's read-only view of the session.
type world struct{ s *Session }

func (w world) Index() *containment.Index { return w.s.store.Index(w.s.layout) }

func (w world) Connection(id string) (canvas.Connection, bool) { return w.s.store.Connection(id) }

func (w world) Connections() []canvas.Connection { return w.s.store.Connections() }

func (w world) Viewport() geom.Viewport { return w.s.store.Viewport() }

func (w world) CanEdit() bool { return w.s.canEdit }

func (w world) ConnectionMode() bool { return w.s.connMode }

// open leaves the current room before anything about the next canvas is
// fetched, so no cross-canvas events arrive.
func (s *Session) open(msg openCanvas) {
	if s.canvasID != "" && s.cfg.Channel != nil {
		if err := s.cfg.Channel.Leave(s.ctx, s.canvasID); err != nil {
			s.log.Warn("leave room", zap.String("canvas", s.canvasID), zap.Error(err))
		}
	}
	s.seq++
	s.status = StatusLoading
	s.loadErr = nil
	s.canvasID = ""
	s.drag = drag.State{}
	s.pending = nil
	s.rec.Release()

	seq, id := s.seq, msg.CanvasID
	go func() {
		snap, err := s.cfg.Backend.Snapshot(s.ctx, id)
		s.post(loaded{CanvasID: id, Seq: seq, Snap: snap, Err: err, Reply: msg.Reply})
	}()
}

func (s *Session) loaded(msg loaded) {
	if msg.Seq != s.seq {
		msg.Reply <- ErrSuperseded
		return
	}
	if msg.Err != nil {
		s.status = StatusFailed
		s.loadErr = msg.Err
		s.log.Error("load canvas", zap.String("canvas", msg.CanvasID), zap.Error(msg.Err))
		msg.Reply <- msg.Err
		return
	}
	snap := msg.Snap
	snap.CanvasID = msg.CanvasID
	s.store.Load(snap)
	s.canvasID = msg.CanvasID
	s.status = StatusReady
	if s.cfg.Channel != nil {
		if err := s.cfg.Channel.Join(s.ctx, msg.CanvasID); err != nil {
			s.log.Warn("join room", zap.String("canvas", msg.CanvasID), zap.Error(err))
		}
	}
	s.log.Info("canvas loaded", zap.String("canvas", msg.CanvasID),
		zap.Int("cards", len(snap.Cards)), zap.Int("groups", len(snap.Groups)), zap.Int("connections", len(snap.Connections)))
	msg.Reply <- nil
}

func (s *Session) pointer(cmd drag.Command) ([]drag.Event, error) {
	if s.status != StatusReady {
		return nil, ErrNotLoaded
	}
	w := world{s}
	if cmd.Type == drag.CmdPointerDown && cmd.Hit.Kind == "" {
		cmd.Hit = drag.HitTest(w, cmd.Screen)
	}
	if cmd.Type == drag.CmdPointerDown && s.connMode &&
		(cmd.Hit.Kind == drag.HitCard || cmd.Hit.Kind == drag.HitGroup) {
		return nil, s.selectEndpoint(cmd.Hit)
	}

	events, next, err := drag.Apply(s.drag, w, cmd)
	if err != nil {
		return nil, err
	}
	s.drag = next
	for _, ev := range events {
		s.rec.ApplyLocal(s.ctx, ev)
		switch {
		case ev.IsCommit():
			if op := commitOp(ev); op != nil {
				s.write(op)
			}
		case ev.Type == drag.EvtViewportPanned || ev.Type == drag.EvtViewportZoomed:
			// viewers can look around; only editors persist the camera
			if s.canEdit {
				s.debounce(func() { s.post(flushViewport{}) })
			}
		}
	}
	return events, nil
}

// commitOp is the durable write for a drag commit event.
func commitOp(ev drag.Event) api.Op {
	switch ev.Type {
	case drag.EvtCardDropped:
		return api.MoveCard{CardID: ev.ID, X: ev.X, Y: ev.Y}
	case drag.EvtCardReparented:
		return api.SetCardGroup{CardID: ev.ID, GroupID: ev.GroupID, X: ev.X, Y: ev.Y}
	case drag.EvtGroupDropped:
		return api.MoveGroup{GroupID: ev.ID, X: ev.X, Y: ev.Y}
	case drag.EvtGroupResized:
		return api.ResizeGroup{GroupID: ev.ID, Width: ev.Size.W, Height: ev.Size.H}
	case drag.EvtVertexDropped:
		return api.UpdateVertex{ConnectionID: ev.ConnectionID, Vertex: canvas.Vertex{ID: ev.ID, X: ev.X, Y: ev.Y}}
	}
	return nil
}

// selectEndpoint handles clicks in connection mode: the first picks the
// source, the second the target and creates the connection.
func (s *Session) selectEndpoint(hit drag.Hit) error {
	if !s.canEdit {
		return drag.ErrReadOnly
	}
	kind := canvas.RefCard
	if hit.Kind == drag.HitGroup {
		kind = canvas.RefGroup
	}
	if s.pending == nil {
		s.pending = &canvas.Endpoint{Anchor: geom.AnchorRight, RefKind: kind, RefID: hit.ID}
		return nil
	}
	src := *s.pending
	s.pending = nil
	if src.RefKind == kind && src.RefID == hit.ID {
		return nil
	}
	conn := canvas.Connection{
		ID:      uuid.NewString(),
		Sources: []canvas.Endpoint{src},
		Targets: []canvas.Endpoint{{Anchor: geom.AnchorLeft, RefKind: kind, RefID: hit.ID}},
		Style:   canvas.Style{Line: "solid"},
	}
	return s.mutation(func() (api.Op, error) { return api.CreateConnection{Connection: conn}, nil })
}

// mutation applies an edit optimistically, then writes it. Permission is
// checked before anything changes.
func (s *Session) mutation(build func() (api.Op, error)) error {
	if !s.canEdit {
		return drag.ErrReadOnly
	}
	if s.status != StatusReady {
		return ErrNotLoaded
	}
	op, err := build()
	if err != nil {
		return err
	}
	snap := s.store.Snapshot()
	if err := api.Mutate(&snap, op); err != nil {
		return err
	}
	s.rec.ApplyFullState(snap)
	return s.write(op)
}

func (s *Session) write(op api.Op) error {
	if s.cfg.Synchronous {
		if err := s.cfg.Backend.Apply(s.ctx, s.canvasID, op); err != nil {
			s.writeFailed(s.canvasID, op, err)
			return err
		}
		return nil
	}
	select {
	case s.writes <- pendingWrite{canvasID: s.canvasID, op: op}:
		return nil
	default:
		s.writeFailed(s.canvasID, op, ErrWriteQueueFull)
		return ErrWriteQueueFull
	}
}

// writeFailed surfaces the error and refetches instead of rolling back; the
// optimistic state may already have diverged.
func (s *Session) writeFailed(canvasID string, op api.Op, err error) {
	s.log.Warn("write failed", zap.String("canvas", canvasID), zap.String("op", opName(op)), zap.Error(err))
	select {
	case s.errs <- err:
	default:
	}
	s.resync(canvasID)
}

func (s *Session) resync(canvasID string) {
	if canvasID == "" {
		return
	}
	if s.cfg.Synchronous {
		snap, err := s.cfg.Backend.Snapshot(s.ctx, canvasID)
		s.resynced(resynced{CanvasID: canvasID, Snap: snap, Err: err})
		return
	}
	go func() {
		v, err, _ := s.resyncs.Do(canvasID, func() (any, error) {
			return s.cfg.Backend.Snapshot(s.ctx, canvasID)
		})
		snap, _ := v.(canvas.Snapshot)
		s.post(resynced{CanvasID: canvasID, Snap: snap, Err: err})
	}()
}

func (s *Session) resynced(msg resynced) {
	if msg.CanvasID != s.canvasID {
		return
	}
	if msg.Err != nil {
		s.log.Error("resync", zap.String("canvas", msg.CanvasID), zap.Error(msg.Err))
		return
	}
	snap := msg.Snap
	snap.CanvasID = msg.CanvasID
	snap.Viewport = s.store.Viewport()
	s.rec.ApplyFullState(snap)
}

func (s *Session) view() View {
	v := View{
		Status:         s.status,
		Err:            s.loadErr,
		CanvasID:       s.canvasID,
		Drag:           s.drag,
		Layout:         s.layout,
		ConnectionMode: s.connMode,
		CanEdit:        s.canEdit,
		Cards:          make(map[string]geom.WorldPos),
	}
	if s.pending != nil {
		p := *s.pending
		v.Pending = &p
	}
	if s.status != StatusReady {
		return v
	}
	v.Snapshot = s.store.Snapshot()
	ix := s.store.Index(s.layout)
	for _, c := range v.Snapshot.Cards {
		if at, ok := ix.CardWorld(c.ID); ok {
			v.Cards[c.ID] = at
		}
	}
	for _, c := range v.Snapshot.Connections {
		v.Paths = append(v.Paths, routing.Route(c, ix, v.Snapshot.Viewport))
	}
	return v
}

func opName(op api.Op) string {
	method, path := api.Route("", op)
	return method + " " + path
}
