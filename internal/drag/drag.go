package drag

import (
	"errors"

	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/containment"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
)

var ErrReadOnly = errors.New("canvas is read-only")
var ErrConnectionMode = errors.New("dragging is disabled in connection mode")
var ErrUnknownTarget = errors.New("drag target not found")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Kind string

const (
	KindNone   Kind = "none"
	KindCard   Kind = "card"
	KindGroup  Kind = "group"
	KindVertex Kind = "vertex"
	KindPan    Kind = "pan"
)

// State is the one thing being manipulated. The zero value is idle.
type State struct {
	Kind         Kind
	ID           string // card, group or vertex id
	ConnectionID string // vertex drags only
	OffsetX      float64
	OffsetY      float64
	HostGroupID  string // custom group the card was in when the drag started
	Last         geom.WorldPos

	// SeriesID is set when the card was laid out by a series group.
	// Dropping it back inside SeriesRect keeps the membership.
	SeriesID   string
	SeriesRect geom.Rect

	StartPointer  geom.ScreenPos
	StartViewport geom.Viewport
	Moved         bool
}

func (s State) Active() bool { return s.Kind != "" && s.Kind != KindNone }

// Owns reports whether the entity is the one under this drag. Vertex ids are
// only unique within their connection.
func (s State) Owns(kind Kind, id, connectionID string) bool {
	if !s.Active() || s.Kind != kind || s.ID != id {
		return false
	}
	return kind != KindVertex || s.ConnectionID == connectionID
}

// World is everything the machine reads; it never writes.
type World interface {
	Index() *containment.Index
	Connection(id string) (canvas.Connection, bool)
	Connections() []canvas.Connection
	Viewport() geom.Viewport
	CanEdit() bool
	ConnectionMode() bool
}

type HitKind string

const (
	HitBackground HitKind = "background"
	HitCard       HitKind = "card"
	HitGroup      HitKind = "group"
	HitVertex     HitKind = "vertex"
)

type Hit struct {
	Kind         HitKind
	ID           string
	ConnectionID string
}

type CommandType string

const (
	CmdPointerDown CommandType = "PointerDown"
	CmdPointerMove CommandType = "PointerMove"
	CmdPointerUp   CommandType = "PointerUp"
	CmdWheel       CommandType = "Wheel"
)

type Command struct {
	Type   CommandType
	Screen geom.ScreenPos
	Hit    Hit     // PointerDown
	DeltaY float64 // Wheel: negative zooms in
}

/*
	PointerDown(card)   -> DragStarted
	PointerMove         -> CardMoved | GroupMoved | VertexMoved | ViewportPanned   (live, optimistic + emit)
	PointerUp(card)     -> CardDropped | CardReparented (+ GroupResized) -> DragEnded   (durable write)
	PointerUp(group)    -> GroupDropped -> DragEnded
	PointerUp(vertex)   -> VertexDropped -> DragEnded
	PointerUp(pan)      -> DragEnded   (viewport persisted by the debouncer)
	Wheel               -> ViewportZoomed
*/

type EventType string

const (
	EvtDragStarted    EventType = "DragStarted"
	EvtDragCancelled  EventType = "DragCancelled"
	EvtDragEnded      EventType = "DragEnded"
	EvtCardMoved      EventType = "CardMoved"
	EvtCardDropped    EventType = "CardDropped"
	EvtCardReparented EventType = "CardReparented"
	EvtGroupMoved     EventType = "GroupMoved"
	EvtGroupDropped   EventType = "GroupDropped"
	EvtGroupResized   EventType = "GroupResized"
	EvtVertexMoved    EventType = "VertexMoved"
	EvtVertexDropped  EventType = "VertexDropped"
	EvtViewportPanned EventType = "ViewportPanned"
	EvtViewportZoomed EventType = "ViewportZoomed"
)

// Event carries a position in the frame the store keeps it in: cards use
// X/Y in their group's frame, everything else uses world coordinates.
type Event struct {
	Type         EventType
	Kind         Kind
	ID           string
	ConnectionID string
	GroupID      *string
	X, Y         float64
	World        geom.WorldPos
	Size         geom.Size
	Viewport     geom.Viewport
}

// IsLive reports events that only feed optimistic state and the realtime channel.
func (e Event) IsLive() bool {
	switch e.Type {
	case EvtCardMoved, EvtGroupMoved, EvtVertexMoved, EvtViewportPanned:
		return true
	}
	return false
}

// IsCommit reports events that must be written through the authoritative API.
func (e Event) IsCommit() bool {
	switch e.Type {
	case EvtCardDropped, EvtCardReparented, EvtGroupDropped, EvtGroupResized, EvtVertexDropped:
		return true
	}
	return false
}
