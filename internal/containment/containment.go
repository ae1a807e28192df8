// Package containment answers which group holds a point and how big a custom
// group has to be for its members.
package containment

import (
	"math"

	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
)

const (
	Padding      = 16.0
	SeriesGap    = 16.0
	SeriesHeader = 32.0
)

// PointInGroup is inclusive on every edge. Only custom groups are drop targets.
func PointInGroup(p geom.WorldPos, g canvas.Group) bool {
	if !g.IsCustom() {
		return false
	}
	return g.Bounds().Contains(p)
}

// MinimumBoundingSize is the smallest size holding every member (relative
// positions) plus padding. An empty group needs (0,0).
func MinimumBoundingSize(members []canvas.Card, card geom.Size) geom.Size {
	var out geom.Size
	for _, m := range members {
		out.W = math.Max(out.W, m.PositionX+card.W+Padding)
		out.H = math.Max(out.H, m.PositionY+card.H+Padding)
	}
	return out
}

// MaybeExpand grows g so a card dropped at rel fits. Groups never shrink, so
// the result is always >= the current size; changed reports whether it grew.
func MaybeExpand(g canvas.Group, rel geom.RelativePos, card geom.Size) (size geom.Size, changed bool) {
	cur := g.Size()
	size = geom.Size{
		W: math.Max(cur.W, rel.X+card.W+Padding),
		H: math.Max(cur.H, rel.Y+card.H+Padding),
	}
	return size, size != cur
}

// SeriesSlot is where the i-th member of a series group is laid out.
func SeriesSlot(g canvas.Group, i int, card geom.Size) geom.WorldPos {
	return g.Origin().Add(Padding+float64(i)*(card.W+SeriesGap), SeriesHeader)
}

// SeriesBounds is the box a series group occupies with n members.
func SeriesBounds(g canvas.Group, n int, card geom.Size) geom.Rect {
	w := 2*Padding + float64(max(n, 1))*card.W + float64(max(n-1, 0))*SeriesGap
	h := SeriesHeader + card.H + Padding
	return geom.Rect{Origin: g.Origin(), Size: geom.Size{W: w, H: h}}
}
