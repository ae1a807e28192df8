package api

import (
	"errors"
	"fmt"
	"slices"

	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/containment"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
)

var ErrNotFound = errors.New("not found")
var ErrConflict = errors.New("already exists")
var ErrInvalid = errors.New("invalid mutation")

// Op is one authoritative write. Every backend applies ops with Mutate so
// networked and local mode share their semantics.
type Op interface {
	isOp()
	apply(s *canvas.Snapshot) error
}

type RenameCanvas struct {
	Name string `json:"name"`
}

type SetViewport struct {
	Viewport geom.Viewport `json:"viewport"`
}

type CreateCard struct {
	Card canvas.Card `json:"card"`
}

type UpdateCard struct {
	Card canvas.Card `json:"card"`
}

type DeleteCard struct {
	CardID string `json:"cardId"`
}

type MoveCard struct {
	CardID string  `json:"cardId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// SetCardGroup changes membership. X/Y must already be in the new frame.
type SetCardGroup struct {
	CardID  string  `json:"cardId"`
	GroupID *string `json:"groupId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

type CreateConnection struct {
	Connection canvas.Connection `json:"connection"`
}

type UpdateConnection struct {
	Connection canvas.Connection `json:"connection"`
}

type DeleteConnection struct {
	ConnectionID string `json:"connectionId"`
}

type AddSource struct {
	ConnectionID string          `json:"connectionId"`
	Endpoint     canvas.Endpoint `json:"endpoint"`
}

type AddTarget struct {
	ConnectionID string          `json:"connectionId"`
	Endpoint     canvas.Endpoint `json:"endpoint"`
}

type CreateVertex struct {
	ConnectionID string        `json:"connectionId"`
	Vertex       canvas.Vertex `json:"vertex"`
	Index        int           `json:"index"`
}

type UpdateVertex struct {
	ConnectionID string        `json:"connectionId"`
	Vertex       canvas.Vertex `json:"vertex"`
}

type DeleteVertex struct {
	ConnectionID string `json:"connectionId"`
	VertexID     string `json:"vertexId"`
}

type CreateGroup struct {
	Group canvas.Group `json:"group"`
}

// UpdateGroup edits name and metadata; position and size have their own ops.
type UpdateGroup struct {
	GroupID  string            `json:"groupId"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type DeleteGroup struct {
	GroupID string                   `json:"groupId"`
	Members canvas.GroupDeletePolicy `json:"members"`
}

type MoveGroup struct {
	GroupID string  `json:"groupId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

type ResizeGroup struct {
	GroupID string  `json:"groupId"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

func (RenameCanvas) isOp()     {}
func (SetViewport) isOp()      {}
func (CreateCard) isOp()       {}
func (UpdateCard) isOp()       {}
func (DeleteCard) isOp()       {}
func (MoveCard) isOp()         {}
func (SetCardGroup) isOp()     {}
func (CreateConnection) isOp() {}
func (UpdateConnection) isOp() {}
func (DeleteConnection) isOp() {}
func (AddSource) isOp()        {}
func (AddTarget) isOp()        {}
func (CreateVertex) isOp()     {}
func (UpdateVertex) isOp()     {}
func (DeleteVertex) isOp()     {}
func (CreateGroup) isOp()      {}
func (UpdateGroup) isOp()      {}
func (DeleteGroup) isOp()      {}
func (MoveGroup) isOp()        {}
func (ResizeGroup) isOp()      {}

// Mutate applies op to s in place. On error s is left untouched.
func Mutate(s *canvas.Snapshot, op Op) error {
	next := clone(*s)
	if err := op.apply(&next); err != nil {
		return err
	}
	*s = next
	return nil
}

func clone(s canvas.Snapshot) canvas.Snapshot {
	s.Cards = slices.Clone(s.Cards)
	s.Groups = slices.Clone(s.Groups)
	s.Connections = slices.Clone(s.Connections)
	for i := range s.Connections {
		s.Connections[i] = s.Connections[i].Clone()
	}
	return s
}

func cardIndex(s *canvas.Snapshot, id string) int {
	return slices.IndexFunc(s.Cards, func(c canvas.Card) bool { return c.ID == id })
}

func groupIndex(s *canvas.Snapshot, id string) int {
	return slices.IndexFunc(s.Groups, func(g canvas.Group) bool { return g.ID == id })
}

func connIndex(s *canvas.Snapshot, id string) int {
	return slices.IndexFunc(s.Connections, func(c canvas.Connection) bool { return c.ID == id })
}

func notFound(kind, id string) error { return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound) }

// dropRefs strips endpoints referencing the entity and deletes connections
// left with an empty side.
func dropRefs(s *canvas.Snapshot, kind canvas.RefKind, id string) {
	out := s.Connections[:0]
	for _, c := range s.Connections {
		if !c.References(kind, id) {
			out = append(out, c)
			continue
		}
		if stripped, keep := c.WithoutRef(kind, id); keep {
			out = append(out, stripped)
		}
	}
	s.Connections = out
}

func (o RenameCanvas) apply(s *canvas.Snapshot) error {
	s.Name = o.Name
	return nil
}

func (o SetViewport) apply(s *canvas.Snapshot) error {
	if o.Viewport.Zoom <= 0 {
		return fmt.Errorf("%w: zoom must be positive", ErrInvalid)
	}
	s.Viewport = o.Viewport
	s.Viewport.Zoom = geom.ClampZoom(o.Viewport.Zoom)
	return nil
}

func (o CreateCard) apply(s *canvas.Snapshot) error {
	if o.Card.ID == "" {
		return fmt.Errorf("%w: card id required", ErrInvalid)
	}
	if cardIndex(s, o.Card.ID) >= 0 {
		return fmt.Errorf("card %q: %w", o.Card.ID, ErrConflict)
	}
	s.Cards = append(s.Cards, o.Card)
	return nil
}

func (o UpdateCard) apply(s *canvas.Snapshot) error {
	i := cardIndex(s, o.Card.ID)
	if i < 0 {
		return notFound("card", o.Card.ID)
	}
	s.Cards[i] = o.Card
	return nil
}

func (o DeleteCard) apply(s *canvas.Snapshot) error {
	i := cardIndex(s, o.CardID)
	if i < 0 {
		return notFound("card", o.CardID)
	}
	s.Cards = slices.Delete(s.Cards, i, i+1)
	dropRefs(s, canvas.RefCard, o.CardID)
	return nil
}

func (o MoveCard) apply(s *canvas.Snapshot) error {
	i := cardIndex(s, o.CardID)
	if i < 0 {
		return notFound("card", o.CardID)
	}
	s.Cards[i].PositionX, s.Cards[i].PositionY = o.X, o.Y
	return nil
}

func (o SetCardGroup) apply(s *canvas.Snapshot) error {
	i := cardIndex(s, o.CardID)
	if i < 0 {
		return notFound("card", o.CardID)
	}
	c := &s.Cards[i]
	if o.GroupID == nil {
		c.Place(geom.WorldPos{X: o.X, Y: o.Y})
		return nil
	}
	gi := groupIndex(s, *o.GroupID)
	if gi < 0 {
		return notFound("group", *o.GroupID)
	}
	if s.Groups[gi].IsCustom() {
		c.PlaceIn(*o.GroupID, geom.RelativePos{X: o.X, Y: o.Y})
	} else {
		c.PlaceInSeries(*o.GroupID, geom.WorldPos{X: o.X, Y: o.Y})
	}
	return nil
}

func (o CreateConnection) apply(s *canvas.Snapshot) error {
	if o.Connection.ID == "" {
		return fmt.Errorf("%w: connection id required", ErrInvalid)
	}
	if connIndex(s, o.Connection.ID) >= 0 {
		return fmt.Errorf("connection %q: %w", o.Connection.ID, ErrConflict)
	}
	s.Connections = append(s.Connections, o.Connection.Clone())
	return nil
}

func (o UpdateConnection) apply(s *canvas.Snapshot) error {
	i := connIndex(s, o.Connection.ID)
	if i < 0 {
		return notFound("connection", o.Connection.ID)
	}
	s.Connections[i] = o.Connection.Clone()
	return nil
}

func (o DeleteConnection) apply(s *canvas.Snapshot) error {
	i := connIndex(s, o.ConnectionID)
	if i < 0 {
		return notFound("connection", o.ConnectionID)
	}
	s.Connections = slices.Delete(s.Connections, i, i+1)
	return nil
}

func (o AddSource) apply(s *canvas.Snapshot) error {
	i := connIndex(s, o.ConnectionID)
	if i < 0 {
		return notFound("connection", o.ConnectionID)
	}
	s.Connections[i].Sources = append(s.Connections[i].Sources, o.Endpoint)
	return nil
}

func (o AddTarget) apply(s *canvas.Snapshot) error {
	i := connIndex(s, o.ConnectionID)
	if i < 0 {
		return notFound("connection", o.ConnectionID)
	}
	s.Connections[i].Targets = append(s.Connections[i].Targets, o.Endpoint)
	return nil
}

func (o CreateVertex) apply(s *canvas.Snapshot) error {
	i := connIndex(s, o.ConnectionID)
	if i < 0 {
		return notFound("connection", o.ConnectionID)
	}
	c := &s.Connections[i]
	if c.VertexIndex(o.Vertex.ID) >= 0 {
		return fmt.Errorf("vertex %q: %w", o.Vertex.ID, ErrConflict)
	}
	at := max(0, min(o.Index, len(c.Vertices)))
	c.Vertices = slices.Insert(c.Vertices, at, o.Vertex)
	return nil
}

func (o UpdateVertex) apply(s *canvas.Snapshot) error {
	i := connIndex(s, o.ConnectionID)
	if i < 0 {
		return notFound("connection", o.ConnectionID)
	}
	c := &s.Connections[i]
	vi := c.VertexIndex(o.Vertex.ID)
	if vi < 0 {
		return notFound("vertex", o.Vertex.ID)
	}
	c.Vertices[vi] = o.Vertex
	return nil
}

func (o DeleteVertex) apply(s *canvas.Snapshot) error {
	i := connIndex(s, o.ConnectionID)
	if i < 0 {
		return notFound("connection", o.ConnectionID)
	}
	c := &s.Connections[i]
	vi := c.VertexIndex(o.VertexID)
	if vi < 0 {
		return notFound("vertex", o.VertexID)
	}
	c.Vertices = slices.Delete(c.Vertices, vi, vi+1)
	return nil
}

func (o CreateGroup) apply(s *canvas.Snapshot) error {
	g := o.Group
	if g.ID == "" {
		return fmt.Errorf("%w: group id required", ErrInvalid)
	}
	if groupIndex(s, g.ID) >= 0 {
		return fmt.Errorf("group %q: %w", g.ID, ErrConflict)
	}
	if !g.IsCustom() {
		// series groups are laid out, never sized
		g.Width, g.Height = nil, nil
	}
	s.Groups = append(s.Groups, g)
	return nil
}

func (o UpdateGroup) apply(s *canvas.Snapshot) error {
	i := groupIndex(s, o.GroupID)
	if i < 0 {
		return notFound("group", o.GroupID)
	}
	s.Groups[i].Name = o.Name
	if o.Metadata != nil {
		s.Groups[i].Metadata = o.Metadata
	}
	return nil
}

func (o DeleteGroup) apply(s *canvas.Snapshot) error {
	i := groupIndex(s, o.GroupID)
	if i < 0 {
		return notFound("group", o.GroupID)
	}
	g := s.Groups[i]
	s.Groups = slices.Delete(s.Groups, i, i+1)
	dropRefs(s, canvas.RefGroup, g.ID)

	var removed []string
	kept := s.Cards[:0]
	for _, c := range s.Cards {
		if !c.InGroup(g.ID) {
			kept = append(kept, c)
			continue
		}
		if o.Members == canvas.DeleteMembers {
			removed = append(removed, c.ID)
			continue
		}
		c.Place(c.World(&g))
		kept = append(kept, c)
	}
	s.Cards = kept
	for _, id := range removed {
		dropRefs(s, canvas.RefCard, id)
	}
	return nil
}

func (o MoveGroup) apply(s *canvas.Snapshot) error {
	i := groupIndex(s, o.GroupID)
	if i < 0 {
		return notFound("group", o.GroupID)
	}
	s.Groups[i].MoveTo(geom.WorldPos{X: o.X, Y: o.Y})
	return nil
}

func (o ResizeGroup) apply(s *canvas.Snapshot) error {
	i := groupIndex(s, o.GroupID)
	if i < 0 {
		return notFound("group", o.GroupID)
	}
	if !s.Groups[i].IsCustom() {
		return fmt.Errorf("%w: series groups are not resizable", ErrInvalid)
	}
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("%w: size must be positive", ErrInvalid)
	}
	// Groups only grow, and never below what their members need. The floor
	// uses the compact card, the smallest one any client draws.
	card := geom.CardSize(geom.LayoutCompact)
	ix := containment.NewIndex(s.Cards, s.Groups, geom.LayoutCompact)
	floor := containment.MinimumBoundingSize(ix.Members(o.GroupID), card)
	cur := s.Groups[i].Size()
	s.Groups[i].Resize(geom.Size{
		W: max(cur.W, o.Width, floor.W),
		H: max(cur.H, o.Height, floor.H),
	})
	return nil
}
