package geom

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenWorld_RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		v := Viewport{X: r.Float64()*2000 - 1000, Y: r.Float64()*2000 - 1000, Zoom: MinZoom + r.Float64()*(MaxZoom-MinZoom)}
		p := WorldPos{X: r.Float64()*10000 - 5000, Y: r.Float64()*10000 - 5000}

		got := ScreenToWorld(WorldToScreen(p, v), v)
		assert.InDelta(t, p.X, got.X, 1e-9)
		assert.InDelta(t, p.Y, got.Y, 1e-9)
	}
}

func TestScreenWorld_RepeatedRoundTripsDoNotDrift(t *testing.T) {
	v := Viewport{X: 13.37, Y: -42.1, Zoom: 3.3}
	start := WorldPos{X: 1234.5678, Y: -987.654}
	p := start
	for i := 0; i < 1000; i++ {
		p = ScreenToWorld(WorldToScreen(p, v), v)
	}
	assert.InDelta(t, start.X, p.X, 1e-7)
	assert.InDelta(t, start.Y, p.Y, 1e-7)
}

func TestZoomAt_KeepsPointerAnchored(t *testing.T) {
	cases := []struct {
		name   string
		v      Viewport
		at     ScreenPos
		factor float64
	}{
		{name: "zoom in from identity", v: Viewport{Zoom: 1}, at: ScreenPos{X: 200, Y: 200}, factor: ZoomInStep},
		{name: "zoom out from offset", v: Viewport{X: -300, Y: 120, Zoom: 2}, at: ScreenPos{X: 50, Y: 640}, factor: ZoomOutStep},
		{name: "clamped at max", v: Viewport{X: 10, Y: 10, Zoom: 4.9}, at: ScreenPos{X: 400, Y: 300}, factor: ZoomInStep},
		{name: "clamped at min", v: Viewport{X: 10, Y: 10, Zoom: 0.105}, at: ScreenPos{X: 400, Y: 300}, factor: ZoomOutStep},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := ScreenToWorld(tc.at, tc.v)
			next := ZoomAt(tc.v, tc.at, tc.factor)
			after := ScreenToWorld(tc.at, next)

			assert.InDelta(t, before.X, after.X, 1e-9)
			assert.InDelta(t, before.Y, after.Y, 1e-9)
			assert.GreaterOrEqual(t, next.Zoom, MinZoom)
			assert.LessOrEqual(t, next.Zoom, MaxZoom)
		})
	}
}

func TestZoomAt_InStepFromIdentity(t *testing.T) {
	old := Viewport{Zoom: 1}
	next := ZoomAt(old, ScreenPos{X: 200, Y: 200}, ZoomInStep)

	require.InDelta(t, 1.1, next.Zoom, 1e-12)
	before := ScreenToWorld(ScreenPos{X: 200, Y: 200}, old)
	after := ScreenToWorld(ScreenPos{X: 200, Y: 200}, next)
	assert.True(t, math.Abs(before.X-after.X) < 1e-9 && math.Abs(before.Y-after.Y) < 1e-9,
		"before=%v after=%v", before, after)
}

func TestPan(t *testing.T) {
	start := Viewport{X: 100, Y: 50, Zoom: 2}
	got := Pan(start, ScreenPos{X: 10, Y: 10}, ScreenPos{X: 50, Y: -10})
	assert.Equal(t, Viewport{X: 80, Y: 60, Zoom: 2}, got)
}

func TestAnchorPoint(t *testing.T) {
	r := Rect{Origin: WorldPos{X: 10, Y: 20}, Size: Size{W: 100, H: 50}}
	cases := []struct {
		anchor Anchor
		want   WorldPos
	}{
		{AnchorTop, WorldPos{X: 60, Y: 20}},
		{AnchorBottom, WorldPos{X: 60, Y: 70}},
		{AnchorLeft, WorldPos{X: 10, Y: 45}},
		{AnchorRight, WorldPos{X: 110, Y: 45}},
	}
	for _, tc := range cases {
		t.Run(string(tc.anchor), func(t *testing.T) {
			assert.Equal(t, tc.want, AnchorPoint(r, tc.anchor))
		})
	}
}

func TestRelativeConversion(t *testing.T) {
	origin := WorldPos{X: 100, Y: 90}
	rel := ToRelative(WorldPos{X: 150, Y: 120}, origin)
	assert.Equal(t, RelativePos{X: 50, Y: 30}, rel)
	assert.Equal(t, WorldPos{X: 150, Y: 120}, ToWorld(rel, origin))
}

func TestParseAnchor(t *testing.T) {
	a, err := ParseAnchor("left")
	require.NoError(t, err)
	assert.Equal(t, AnchorLeft, a)

	_, err = ParseAnchor("middle")
	assert.Error(t, err)
}
