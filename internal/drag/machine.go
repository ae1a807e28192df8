package drag

import (
	"math"

	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/containment"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
)

// VertexHitRadius is in screen pixels.
const VertexHitRadius = 6.0

// Apply advances the drag state machine by one pointer command. On error the
// input state is returned unchanged and no events are produced.
func Apply(s State, w World, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdPointerDown:
		return pointerDown(s, w, cmd)
	case CmdPointerMove:
		return pointerMove(s, w, cmd)
	case CmdPointerUp:
		return pointerUp(s, w)
	case CmdWheel:
		return wheel(s, w, cmd)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func pointerDown(s State, w World, cmd Command) ([]Event, State, error) {
	vp := w.Viewport()
	ptr := geom.ScreenToWorld(cmd.Screen, vp)

	if cmd.Hit.Kind == HitBackground || cmd.Hit.Kind == "" {
		next := State{Kind: KindPan, StartPointer: cmd.Screen, StartViewport: vp}
		return withCancel(s, Event{Type: EvtDragStarted, Kind: KindPan}), next, nil
	}

	// permission before mode: viewers get the same answer in every mode
	if !w.CanEdit() {
		return nil, s, ErrReadOnly
	}
	if w.ConnectionMode() {
		return nil, s, ErrConnectionMode
	}

	var next State
	switch cmd.Hit.Kind {
	case HitCard:
		ix := w.Index()
		c, ok := ix.Card(cmd.Hit.ID)
		if !ok {
			return nil, s, ErrUnknownTarget
		}
		at, _ := ix.CardWorld(c.ID)
		next = State{Kind: KindCard, ID: c.ID, Last: at}
		// a series member follows the pointer in world space until dropped
		if host := ix.Host(c); host != nil && host.IsCustom() {
			next.HostGroupID = host.ID
		} else if host != nil {
			next.SeriesID = host.ID
			next.SeriesRect, _ = ix.GroupRect(host.ID)
		}
		next.OffsetX, next.OffsetY = ptr.Sub(at)

	case HitGroup:
		g, ok := w.Index().Group(cmd.Hit.ID)
		if !ok {
			return nil, s, ErrUnknownTarget
		}
		next = State{Kind: KindGroup, ID: g.ID, Last: g.Origin()}
		next.OffsetX, next.OffsetY = ptr.Sub(g.Origin())

	case HitVertex:
		conn, ok := w.Connection(cmd.Hit.ConnectionID)
		if !ok {
			return nil, s, ErrUnknownTarget
		}
		i := conn.VertexIndex(cmd.Hit.ID)
		if i < 0 {
			return nil, s, ErrUnknownTarget
		}
		at := conn.Vertices[i].Pos()
		next = State{Kind: KindVertex, ID: cmd.Hit.ID, ConnectionID: conn.ID, Last: at}
		next.OffsetX, next.OffsetY = ptr.Sub(at)

	default:
		return nil, s, ErrUnsupportedCommand
	}

	started := Event{Type: EvtDragStarted, Kind: next.Kind, ID: next.ID, ConnectionID: next.ConnectionID}
	return withCancel(s, started), next, nil
}

// withCancel prepends a cancellation of any drag still in progress.
func withCancel(prev State, started Event) []Event {
	if !prev.Active() {
		return []Event{started}
	}
	return []Event{
		{Type: EvtDragCancelled, Kind: prev.Kind, ID: prev.ID, ConnectionID: prev.ConnectionID},
		started,
	}
}

func pointerMove(s State, w World, cmd Command) ([]Event, State, error) {
	if !s.Active() {
		return nil, s, nil
	}

	next := s
	next.Moved = true

	if s.Kind == KindPan {
		vp := geom.Pan(s.StartViewport, s.StartPointer, cmd.Screen)
		return []Event{{Type: EvtViewportPanned, Kind: KindPan, Viewport: vp}}, next, nil
	}

	ptr := geom.ScreenToWorld(cmd.Screen, w.Viewport())
	at := ptr.Add(-s.OffsetX, -s.OffsetY)
	next.Last = at

	switch s.Kind {
	case KindCard:
		ev := cardEvent(EvtCardMoved, s.ID, s.HostGroupID, at, w.Index())
		return []Event{ev}, next, nil
	case KindGroup:
		return []Event{{Type: EvtGroupMoved, Kind: KindGroup, ID: s.ID, X: at.X, Y: at.Y, World: at}}, next, nil
	case KindVertex:
		return []Event{{Type: EvtVertexMoved, Kind: KindVertex, ID: s.ID, ConnectionID: s.ConnectionID, X: at.X, Y: at.Y, World: at}}, next, nil
	}
	return nil, s, ErrUnsupportedCommand
}

// cardEvent expresses a card's world position in the frame of groupID.
func cardEvent(t EventType, cardID, groupID string, at geom.WorldPos, ix *containment.Index) Event {
	ev := Event{Type: t, Kind: KindCard, ID: cardID, X: at.X, Y: at.Y, World: at}
	if groupID == "" {
		return ev
	}
	ev.GroupID = canvas.Ptr(groupID)
	if g, ok := ix.Group(groupID); ok && g.IsCustom() {
		rel := geom.ToRelative(at, g.Origin())
		ev.X, ev.Y = rel.X, rel.Y
	}
	return ev
}

func pointerUp(s State, w World) ([]Event, State, error) {
	if !s.Active() {
		return nil, State{}, nil
	}
	ended := Event{Type: EvtDragEnded, Kind: s.Kind, ID: s.ID, ConnectionID: s.ConnectionID}
	if !s.Moved || s.Kind == KindPan {
		return []Event{ended}, State{}, nil
	}

	var events []Event
	switch s.Kind {
	case KindCard:
		events = dropCard(s, w.Index())
	case KindGroup:
		events = []Event{{Type: EvtGroupDropped, Kind: KindGroup, ID: s.ID, X: s.Last.X, Y: s.Last.Y, World: s.Last}}
	case KindVertex:
		events = []Event{{Type: EvtVertexDropped, Kind: KindVertex, ID: s.ID, ConnectionID: s.ConnectionID, X: s.Last.X, Y: s.Last.Y, World: s.Last}}
	}
	return append(events, ended), State{}, nil
}

// dropCard re-resolves the card's group from its final world position. A
// custom group under the card wins; otherwise a series member dropped within
// its series stays there.
func dropCard(s State, ix *containment.Index) []Event {
	at := s.Last
	target, inside := ix.ContainingGroup(at)
	targetID := ""
	switch {
	case inside:
		targetID = target.ID
	case s.SeriesID != "" && s.SeriesRect.Contains(at):
		targetID = s.SeriesID
	}

	var events []Event
	if targetID != s.HostGroupID || s.SeriesID != "" {
		events = append(events, cardEvent(EvtCardReparented, s.ID, targetID, at, ix))
	} else {
		events = append(events, cardEvent(EvtCardDropped, s.ID, s.HostGroupID, at, ix))
	}

	if inside {
		rel := geom.ToRelative(at, target.Origin())
		if size, grew := containment.MaybeExpand(target, rel, ix.CardSize()); grew {
			events = append(events, Event{Type: EvtGroupResized, Kind: KindGroup, ID: target.ID, Size: size})
		}
	}
	return events
}

// wheel zooms around the pointer. It is independent of the drag state except
// that an active pan is re-based so it continues from the new zoom.
func wheel(s State, w World, cmd Command) ([]Event, State, error) {
	if cmd.DeltaY == 0 {
		return nil, s, nil
	}
	factor := geom.ZoomInStep
	if cmd.DeltaY > 0 {
		factor = geom.ZoomOutStep
	}
	vp := w.Viewport()
	next := geom.ZoomAt(vp, cmd.Screen, factor)
	if next == vp {
		return nil, s, nil
	}
	if s.Kind == KindPan {
		s.StartPointer = cmd.Screen
		s.StartViewport = next
	}
	return []Event{{Type: EvtViewportZoomed, Viewport: next}}, s, nil
}

// HitTest picks what a pointer-down at screen lands on: vertices first, then
// cards, then groups, then the background.
func HitTest(w World, screen geom.ScreenPos) Hit {
	vp := w.Viewport()
	best, bestDist := Hit{}, math.Inf(1)
	for _, c := range w.Connections() {
		for _, v := range c.Vertices {
			sp := geom.WorldToScreen(v.Pos(), vp)
			d := math.Hypot(sp.X-screen.X, sp.Y-screen.Y)
			if d <= VertexHitRadius && d < bestDist {
				best, bestDist = Hit{Kind: HitVertex, ID: v.ID, ConnectionID: c.ID}, d
			}
		}
	}
	if best.Kind != "" {
		return best
	}

	p := geom.ScreenToWorld(screen, vp)
	ix := w.Index()
	if c, ok := ix.CardAt(p); ok {
		return Hit{Kind: HitCard, ID: c.ID}
	}
	if g, ok := ix.GroupAt(p); ok {
		return Hit{Kind: HitGroup, ID: g.ID}
	}
	return Hit{Kind: HitBackground}
}
