package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
)

func rgb(img image.Image, x, y int) [3]uint8 {
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return [3]uint8{c.R, c.G, c.B}
}

func sample() canvas.Snapshot {
	return canvas.Snapshot{
		CanvasID: "cv1",
		Cards: []canvas.Card{
			{ID: "a", PositionX: 0, PositionY: 0},
			{ID: "b", PositionX: 20, PositionY: 20, GroupID: canvas.Ptr("g")},
		},
		Groups: []canvas.Group{{
			ID: "g", Kind: canvas.GroupCustom, PositionX: 100, PositionY: 90,
			Width: canvas.Ptr(400.0), Height: canvas.Ptr(200.0),
		}},
		Connections: []canvas.Connection{{
			ID:      "ab",
			Sources: []canvas.Endpoint{{Anchor: geom.AnchorRight, RefKind: canvas.RefCard, RefID: "a"}},
			Targets: []canvas.Endpoint{{Anchor: geom.AnchorLeft, RefKind: canvas.RefCard, RefID: "b"}},
		}},
		// ignored: export frames the content
		Viewport: geom.Viewport{X: 9999, Y: 9999, Zoom: 3},
	}
}

func TestRender_FramesContent(t *testing.T) {
	img, err := Render(sample(), Options{})
	require.NoError(t, err)

	// content spans (0,0)-(500,290) plus a 40px margin
	assert.Equal(t, image.Rect(0, 0, 580, 370), img.Bounds())

	assert.Equal(t, [3]uint8{0xf4, 0xf4, 0xf5}, rgb(img, 2, 2), "background")
	assert.Equal(t, [3]uint8{0xff, 0xff, 0xff}, rgb(img, 40+80, 40+45), "card a center")
	assert.Equal(t, [3]uint8{0xdb, 0xea, 0xfe}, rgb(img, 40+450, 40+250), "group body")
}

func TestRender_Scale(t *testing.T) {
	img, err := Render(sample(), Options{Scale: 0.5, Margin: 10})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 270, 165), img.Bounds())
}

func TestRender_EmptyCanvas(t *testing.T) {
	img, err := Render(canvas.Snapshot{CanvasID: "empty"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 81, 81), img.Bounds())
}

func TestRender_RejectsHugeCanvas(t *testing.T) {
	snap := canvas.Snapshot{Cards: []canvas.Card{
		{ID: "a"},
		{ID: "far", PositionX: 1e6, PositionY: 1e6},
	}}
	_, err := Render(snap, Options{})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestRender_RejectsOverflowingBounds(t *testing.T) {
	cases := []struct {
		name string
		far  canvas.Card
	}{
		{"wraps int", canvas.Card{ID: "far", PositionX: 5e17}},
		{"both axes", canvas.Card{ID: "far", PositionX: 5e17, PositionY: 5e17}},
		{"one tall side", canvas.Card{ID: "far", PositionY: 3e9}},
		{"not a number", canvas.Card{ID: "far", PositionX: math.NaN()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := canvas.Snapshot{Cards: []canvas.Card{{ID: "a"}, tc.far}}
			var err error
			require.NotPanics(t, func() { _, err = Render(snap, Options{}) })
			assert.ErrorIs(t, err, ErrTooLarge)
		})
	}
}

func TestPNG_Encodes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PNG(&buf, sample(), Options{Layout: geom.LayoutWide}))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	// the wide card at (0,0) is 240x135, the group still ends at 500x290
	assert.Equal(t, 580, img.Bounds().Dx())
	assert.Equal(t, 370, img.Bounds().Dy())
}
