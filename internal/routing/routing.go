// Package routing turns a connection's endpoints and vertex chain into the
// polyline segments and arrowheads to draw.
package routing

import (
	"math"
	"slices"

	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
)

const (
	ArrowLength = 12.0
	arrowSpread = math.Pi / 6
)

// Resolver maps an endpoint to its anchor in world coordinates. It reports
// false for dangling references.
type Resolver interface {
	Resolve(e canvas.Endpoint) (geom.WorldPos, bool)
}

type Segment struct {
	From geom.ScreenPos
	To   geom.ScreenPos
}

// Arrowhead is a two-pronged chevron ending at Tip.
type Arrowhead struct {
	Tip   geom.ScreenPos
	Left  geom.ScreenPos
	Right geom.ScreenPos
}

type Path struct {
	ConnectionID string
	Segments     []Segment
	Arrowheads   []Arrowhead
}

func resolveAll(eps []canvas.Endpoint, r Resolver, v geom.Viewport) []geom.ScreenPos {
	out := make([]geom.ScreenPos, 0, len(eps))
	for _, e := range eps {
		if p, ok := r.Resolve(e); ok {
			out = append(out, geom.WorldToScreen(p, v))
		}
	}
	return out
}

// Route computes the screen-space path of a connection. Unresolvable
// endpoints are dropped; the rest of the connection still renders.
func Route(c canvas.Connection, r Resolver, v geom.Viewport) Path {
	sources := resolveAll(c.Sources, r, v)
	targets := resolveAll(c.Targets, r, v)
	path := Path{ConnectionID: c.ID}

	if len(c.Vertices) == 0 {
		for _, s := range sources {
			for _, t := range targets {
				path.Segments = append(path.Segments, Segment{From: s, To: t})
			}
		}
		if len(sources) > 0 {
			for _, t := range targets {
				if a, ok := arrowhead(sources[0], t); ok {
					path.Arrowheads = append(path.Arrowheads, a)
				}
			}
		}
		return path
	}

	spine := make([]geom.ScreenPos, len(c.Vertices))
	for i, vx := range c.Vertices {
		spine[i] = geom.WorldToScreen(vx.Pos(), v)
	}
	first, last := spine[0], spine[len(spine)-1]

	for _, s := range sources {
		path.Segments = append(path.Segments, Segment{From: s, To: first})
	}
	for i := 0; i+1 < len(spine); i++ {
		path.Segments = append(path.Segments, Segment{From: spine[i], To: spine[i+1]})
	}
	for _, t := range targets {
		path.Segments = append(path.Segments, Segment{From: last, To: t})
		if a, ok := arrowhead(last, t); ok {
			path.Arrowheads = append(path.Arrowheads, a)
		}
	}
	return path
}

// arrowhead is built in screen space so its size is independent of zoom.
func arrowhead(from, tip geom.ScreenPos) (Arrowhead, bool) {
	dx, dy := tip.X-from.X, tip.Y-from.Y
	if math.Hypot(dx, dy) < 1e-9 {
		return Arrowhead{}, false
	}
	angle := math.Atan2(dy, dx)
	wing := func(a float64) geom.ScreenPos {
		return geom.ScreenPos{
			X: tip.X - ArrowLength*math.Cos(a),
			Y: tip.Y - ArrowLength*math.Sin(a),
		}
	}
	return Arrowhead{Tip: tip, Left: wing(angle - arrowSpread), Right: wing(angle + arrowSpread)}, true
}

// InsertVertex inserts v at index, clamped to the chain bounds.
func InsertVertex(c canvas.Connection, index int, v canvas.Vertex) canvas.Connection {
	c = c.Clone()
	index = max(0, min(index, len(c.Vertices)))
	c.Vertices = slices.Insert(c.Vertices, index, v)
	return c
}

// RemoveVertex drops one vertex and keeps the rest of the chain. The
// connection itself is never removed here.
func RemoveVertex(c canvas.Connection, vertexID string) (canvas.Connection, bool) {
	i := c.VertexIndex(vertexID)
	if i < 0 {
		return c, false
	}
	c = c.Clone()
	c.Vertices = slices.Delete(c.Vertices, i, i+1)
	return c, true
}

func MoveVertex(c canvas.Connection, vertexID string, p geom.WorldPos) (canvas.Connection, bool) {
	i := c.VertexIndex(vertexID)
	if i < 0 {
		return c, false
	}
	c = c.Clone()
	c.Vertices[i].X, c.Vertices[i].Y = p.X, p.Y
	return c, true
}

// InsertionIndex picks where a vertex created at p (world) belongs in the
// chain: the index of the nearest drawn segment's downstream slot.
func InsertionIndex(c canvas.Connection, r Resolver, p geom.WorldPos) int {
	if len(c.Vertices) == 0 {
		return 0
	}
	best, bestDist := 0, math.Inf(1)
	consider := func(a, b geom.WorldPos, idx int) {
		if d := distToSegment(p, a, b); d < bestDist {
			best, bestDist = idx, d
		}
	}

	first := c.Vertices[0].Pos()
	for _, s := range c.Sources {
		if sp, ok := r.Resolve(s); ok {
			consider(sp, first, 0)
		}
	}
	for i := 0; i+1 < len(c.Vertices); i++ {
		consider(c.Vertices[i].Pos(), c.Vertices[i+1].Pos(), i+1)
	}
	last := c.Vertices[len(c.Vertices)-1].Pos()
	for _, t := range c.Targets {
		if tp, ok := r.Resolve(t); ok {
			consider(last, tp, len(c.Vertices))
		}
	}
	return best
}

func distToSegment(p, a, b geom.WorldPos) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}
