// Package canvas is the data model shared by the engine, the stores and the wire.
package canvas

import (
	"cmp"
	"slices"

	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
)

type GroupKind string

const (
	GroupCustom GroupKind = "custom"
	GroupSeries GroupKind = "series"
)

type RefKind string

const (
	RefCard  RefKind = "card"
	RefGroup RefKind = "group"
)

const (
	DefaultGroupWidth  = 400.0
	DefaultGroupHeight = 200.0
)

// DraftPayload is the draft a card stands for.
type DraftPayload struct {
	Title       string `json:"title"`
	SeriesIndex int    `json:"seriesIndex"`
	BluePicks   []int  `json:"bluePicks,omitempty"`
	RedPicks    []int  `json:"redPicks,omitempty"`
}

// Card is a draft placement. PositionX/Y are world coordinates unless the
// card belongs to a custom group, in which case they are relative to it.
// Use Place/PlaceIn/PlaceInSeries to change them.
type Card struct {
	ID        string       `json:"id" validate:"required"`
	PositionX float64      `json:"positionX"`
	PositionY float64      `json:"positionY"`
	GroupID   *string      `json:"groupId"`
	Payload   DraftPayload `json:"payload"`
}

type Group struct {
	ID        string            `json:"id" validate:"required"`
	Kind      GroupKind         `json:"kind" validate:"oneof=custom series"`
	Name      string            `json:"name"`
	PositionX float64           `json:"positionX"`
	PositionY float64           `json:"positionY"`
	Width     *float64          `json:"width,omitempty" validate:"omitempty,gt=0"`
	Height    *float64          `json:"height,omitempty" validate:"omitempty,gt=0"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type Endpoint struct {
	Anchor  geom.Anchor `json:"anchorType" validate:"oneof=top bottom left right"`
	RefKind RefKind     `json:"refKind" validate:"oneof=card group"`
	RefID   string      `json:"refId" validate:"required"`
}

type Vertex struct {
	ID string  `json:"id" validate:"required"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type Style struct {
	Color string `json:"color,omitempty"`
	Line  string `json:"line,omitempty"` // solid | dashed | dotted
}

type Connection struct {
	ID       string     `json:"id" validate:"required"`
	Sources  []Endpoint `json:"sources" validate:"dive"`
	Targets  []Endpoint `json:"targets" validate:"dive"`
	Vertices []Vertex   `json:"vertices" validate:"dive"`
	Style    Style      `json:"style"`
}

// Snapshot is the full state of one canvas. Networked and local mode share it.
type Snapshot struct {
	CanvasID    string        `json:"canvasId"`
	Name        string        `json:"name"`
	Cards       []Card        `json:"cards" validate:"dive"`
	Groups      []Group       `json:"groups" validate:"dive"`
	Connections []Connection  `json:"connections" validate:"dive"`
	Viewport    geom.Viewport `json:"viewport"`
}

// GroupDeletePolicy decides what happens to member cards when a group goes.
type GroupDeletePolicy string

const (
	DeleteMembers   GroupDeletePolicy = "delete"
	ReparentMembers GroupDeletePolicy = "reparent"
)

func (g Group) Origin() geom.WorldPos { return geom.WorldPos{X: g.PositionX, Y: g.PositionY} }

func (g *Group) MoveTo(p geom.WorldPos) { g.PositionX, g.PositionY = p.X, p.Y }

// Size returns the group's dimensions, falling back to the defaults.
func (g Group) Size() geom.Size {
	s := geom.Size{W: DefaultGroupWidth, H: DefaultGroupHeight}
	if g.Width != nil {
		s.W = *g.Width
	}
	if g.Height != nil {
		s.H = *g.Height
	}
	return s
}

func (g *Group) Resize(s geom.Size) {
	w, h := s.W, s.H
	g.Width, g.Height = &w, &h
}

func (g Group) Bounds() geom.Rect { return geom.Rect{Origin: g.Origin(), Size: g.Size()} }

func (g Group) IsCustom() bool { return g.Kind == GroupCustom }

func (c Card) InGroup(id string) bool { return c.GroupID != nil && *c.GroupID == id }

// Relative reports the stored position as group-relative when host is the
// custom group that owns the card.
func (c Card) Relative(host *Group) (geom.RelativePos, bool) {
	if host == nil || !host.IsCustom() || !c.InGroup(host.ID) {
		return geom.RelativePos{}, false
	}
	return geom.RelativePos{X: c.PositionX, Y: c.PositionY}, true
}

// World resolves the card's stored position to world coordinates. host must
// be the card's group (nil when ungrouped or unknown).
func (c Card) World(host *Group) geom.WorldPos {
	if rel, ok := c.Relative(host); ok {
		return geom.ToWorld(rel, host.Origin())
	}
	return geom.WorldPos{X: c.PositionX, Y: c.PositionY}
}

// Place puts the card on the canvas at a world position, outside any group.
func (c *Card) Place(p geom.WorldPos) {
	c.GroupID = nil
	c.PositionX, c.PositionY = p.X, p.Y
}

// PlaceIn makes the card a member of a custom group at a relative position.
func (c *Card) PlaceIn(groupID string, p geom.RelativePos) {
	id := groupID
	c.GroupID = &id
	c.PositionX, c.PositionY = p.X, p.Y
}

// PlaceInSeries makes the card a series member; series members keep world positions.
func (c *Card) PlaceInSeries(groupID string, p geom.WorldPos) {
	id := groupID
	c.GroupID = &id
	c.PositionX, c.PositionY = p.X, p.Y
}

func (v Vertex) Pos() geom.WorldPos { return geom.WorldPos{X: v.X, Y: v.Y} }

func (c Connection) VertexIndex(id string) int {
	return slices.IndexFunc(c.Vertices, func(v Vertex) bool { return v.ID == id })
}

// References reports whether any endpoint points at the entity.
func (c Connection) References(kind RefKind, id string) bool {
	match := func(e Endpoint) bool { return e.RefKind == kind && e.RefID == id }
	return slices.ContainsFunc(c.Sources, match) || slices.ContainsFunc(c.Targets, match)
}

// WithoutRef strips every endpoint referencing the entity. keep is false when
// either side ends up empty; such connections are deleted.
func (c Connection) WithoutRef(kind RefKind, id string) (out Connection, keep bool) {
	match := func(e Endpoint) bool { return e.RefKind == kind && e.RefID == id }
	out = c
	out.Sources = slices.DeleteFunc(slices.Clone(c.Sources), match)
	out.Targets = slices.DeleteFunc(slices.Clone(c.Targets), match)
	out.Vertices = slices.Clone(c.Vertices)
	return out, len(out.Sources) > 0 && len(out.Targets) > 0
}

// Clone deep-copies the slices so stores never alias caller memory.
func (c Connection) Clone() Connection {
	c.Sources = slices.Clone(c.Sources)
	c.Targets = slices.Clone(c.Targets)
	c.Vertices = slices.Clone(c.Vertices)
	return c
}

// SeriesMembers returns the cards of a series group in layout order.
func SeriesMembers(groupID string, cards []Card) []Card {
	var out []Card
	for _, c := range cards {
		if c.InGroup(groupID) {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b Card) int {
		if r := cmp.Compare(a.Payload.SeriesIndex, b.Payload.SeriesIndex); r != 0 {
			return r
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func Ptr[T any](v T) *T { return &v }
