package containment

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
)

var compact = geom.CardSize(geom.LayoutCompact)

func TestPointInGroup(t *testing.T) {
	g := canvas.Group{ID: "g", Kind: canvas.GroupCustom, PositionX: 100, PositionY: 90}

	cases := []struct {
		name string
		p    geom.WorldPos
		g    canvas.Group
		want bool
	}{
		{name: "inside default size", p: geom.WorldPos{X: 150, Y: 120}, g: g, want: true},
		{name: "on far edge", p: geom.WorldPos{X: 500, Y: 290}, g: g, want: true},
		{name: "just outside", p: geom.WorldPos{X: 500.01, Y: 100}, g: g, want: false},
		{name: "series never targets", p: geom.WorldPos{X: 150, Y: 120}, g: canvas.Group{ID: "s", Kind: canvas.GroupSeries, PositionX: 100, PositionY: 90}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PointInGroup(tc.p, tc.g))
		})
	}
}

func TestMinimumBoundingSize(t *testing.T) {
	assert.Equal(t, geom.Size{}, MinimumBoundingSize(nil, compact))

	members := []canvas.Card{
		{ID: "a", PositionX: 10, PositionY: 300},
		{ID: "b", PositionX: 400, PositionY: 5},
	}
	got := MinimumBoundingSize(members, compact)
	assert.Equal(t, geom.Size{W: 400 + 160 + 16, H: 300 + 90 + 16}, got)
}

func TestMaybeExpand_WithinBoundsUnchanged(t *testing.T) {
	g := canvas.Group{ID: "g", Kind: canvas.GroupCustom, Width: canvas.Ptr(400.0), Height: canvas.Ptr(200.0)}
	size, changed := MaybeExpand(g, geom.RelativePos{X: 50, Y: 30}, compact)
	assert.False(t, changed)
	assert.Equal(t, geom.Size{W: 400, H: 200}, size)
}

func TestMaybeExpand_GrowsAndIsIdempotent(t *testing.T) {
	g := canvas.Group{ID: "g", Kind: canvas.GroupCustom}
	size, changed := MaybeExpand(g, geom.RelativePos{X: 300, Y: 150}, compact)
	require.True(t, changed)
	assert.Equal(t, geom.Size{W: 476, H: 256}, size)

	g.Resize(size)
	again, changed := MaybeExpand(g, geom.RelativePos{X: 300, Y: 150}, compact)
	assert.False(t, changed)
	assert.Equal(t, size, again)
}

func TestMaybeExpand_NeverShrinks(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	g := canvas.Group{ID: "g", Kind: canvas.GroupCustom}
	prev := g.Size()
	for i := 0; i < 200; i++ {
		rel := geom.RelativePos{X: r.Float64()*800 - 100, Y: r.Float64()*600 - 100}
		size, _ := MaybeExpand(g, rel, compact)
		require.GreaterOrEqual(t, size.W, prev.W)
		require.GreaterOrEqual(t, size.H, prev.H)
		g.Resize(size)
		prev = size
	}
}

func TestIndex_ResolvesSeriesAndCustomMembers(t *testing.T) {
	groups := []canvas.Group{
		{ID: "g", Kind: canvas.GroupCustom, PositionX: 100, PositionY: 90},
		{ID: "s", Kind: canvas.GroupSeries, PositionX: 1000, PositionY: 0},
	}
	cards := []canvas.Card{
		{ID: "free", PositionX: 5, PositionY: 5},
		{ID: "rel", PositionX: 50, PositionY: 30, GroupID: canvas.Ptr("g")},
		{ID: "s2", PositionX: -999, PositionY: -999, GroupID: canvas.Ptr("s"), Payload: canvas.DraftPayload{SeriesIndex: 2}},
		{ID: "s1", GroupID: canvas.Ptr("s"), Payload: canvas.DraftPayload{SeriesIndex: 1}},
	}
	ix := NewIndex(cards, groups, geom.LayoutCompact)

	p, ok := ix.CardWorld("rel")
	require.True(t, ok)
	assert.Equal(t, geom.WorldPos{X: 150, Y: 120}, p)

	p, _ = ix.CardWorld("s1")
	assert.Equal(t, geom.WorldPos{X: 1000 + Padding, Y: SeriesHeader}, p)
	p, _ = ix.CardWorld("s2")
	assert.Equal(t, geom.WorldPos{X: 1000 + Padding + compact.W + SeriesGap, Y: SeriesHeader}, p)

	r, ok := ix.GroupRect("s")
	require.True(t, ok)
	assert.Equal(t, 2*Padding+2*compact.W+SeriesGap, r.Size.W)

	_, ok = ix.Resolve(canvas.Endpoint{Anchor: geom.AnchorTop, RefKind: canvas.RefCard, RefID: "gone"})
	assert.False(t, ok)

	anchor, ok := ix.Resolve(canvas.Endpoint{Anchor: geom.AnchorTop, RefKind: canvas.RefCard, RefID: "free"})
	require.True(t, ok)
	assert.Equal(t, geom.WorldPos{X: 5 + compact.W/2, Y: 5}, anchor)
}

func TestIndex_ContainingGroupPrefersTopmost(t *testing.T) {
	groups := []canvas.Group{
		{ID: "bottom", Kind: canvas.GroupCustom, PositionX: 0, PositionY: 0},
		{ID: "series", Kind: canvas.GroupSeries, PositionX: 0, PositionY: 0},
		{ID: "top", Kind: canvas.GroupCustom, PositionX: 50, PositionY: 50},
	}
	ix := NewIndex(nil, groups, geom.LayoutCompact)

	g, ok := ix.ContainingGroup(geom.WorldPos{X: 60, Y: 60})
	require.True(t, ok)
	assert.Equal(t, "top", g.ID)

	g, ok = ix.ContainingGroup(geom.WorldPos{X: 10, Y: 10})
	require.True(t, ok)
	assert.Equal(t, "bottom", g.ID)

	_, ok = ix.ContainingGroup(geom.WorldPos{X: -10, Y: 10})
	assert.False(t, ok)
}
