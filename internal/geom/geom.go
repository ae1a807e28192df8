// Package geom holds the coordinate spaces of the canvas: world (persisted),
// screen (pixels for a given viewport) and group-relative (custom group members).
package geom

import "math"

const (
	MinZoom     = 0.1
	MaxZoom     = 5.0
	ZoomInStep  = 1.1
	ZoomOutStep = 0.9
)

// WorldPos is a canonical, persisted canvas coordinate.
type WorldPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RelativePos is a coordinate relative to a custom group's origin.
type RelativePos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ScreenPos is a pixel coordinate for a particular viewport.
type ScreenPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Viewport is the world origin and scale currently displayed.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

func DefaultViewport() Viewport { return Viewport{Zoom: 1} }

func (p WorldPos) Add(dx, dy float64) WorldPos { return WorldPos{X: p.X + dx, Y: p.Y + dy} }

func (p WorldPos) Sub(o WorldPos) (dx, dy float64) { return p.X - o.X, p.Y - o.Y }

func WorldToScreen(p WorldPos, v Viewport) ScreenPos {
	return ScreenPos{X: (p.X - v.X) * v.Zoom, Y: (p.Y - v.Y) * v.Zoom}
}

func ScreenToWorld(p ScreenPos, v Viewport) WorldPos {
	z := v.Zoom
	if z == 0 {
		z = 1
	}
	return WorldPos{X: p.X/z + v.X, Y: p.Y/z + v.Y}
}

// ToWorld converts a custom-group member position into world coordinates.
func ToWorld(rel RelativePos, groupOrigin WorldPos) WorldPos {
	return WorldPos{X: groupOrigin.X + rel.X, Y: groupOrigin.Y + rel.Y}
}

// ToRelative is the inverse of ToWorld.
func ToRelative(p WorldPos, groupOrigin WorldPos) RelativePos {
	return RelativePos{X: p.X - groupOrigin.X, Y: p.Y - groupOrigin.Y}
}

func ClampZoom(z float64) float64 {
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}

// ZoomAt scales the viewport by factor while keeping the world point under
// the screen position fixed.
func ZoomAt(v Viewport, at ScreenPos, factor float64) Viewport {
	before := ScreenToWorld(at, v)
	next := Viewport{X: v.X, Y: v.Y, Zoom: ClampZoom(v.Zoom * factor)}
	after := ScreenToWorld(at, next)
	next.X += before.X - after.X
	next.Y += before.Y - after.Y
	return next
}

// Pan returns the viewport a pan gesture lands on given the viewport and
// pointer at gesture start.
func Pan(start Viewport, startPointer, pointer ScreenPos) Viewport {
	z := start.Zoom
	if z == 0 {
		z = 1
	}
	return Viewport{
		X:    start.X - (pointer.X-startPointer.X)/z,
		Y:    start.Y - (pointer.Y-startPointer.Y)/z,
		Zoom: start.Zoom,
	}
}

// Rect is an axis-aligned box in world coordinates.
type Rect struct {
	Origin WorldPos
	Size   Size
}

func (r Rect) Contains(p WorldPos) bool {
	return p.X >= r.Origin.X && p.X <= r.Origin.X+r.Size.W &&
		p.Y >= r.Origin.Y && p.Y <= r.Origin.Y+r.Size.H
}

func (r Rect) Center() WorldPos {
	return WorldPos{X: r.Origin.X + r.Size.W/2, Y: r.Origin.Y + r.Size.H/2}
}
