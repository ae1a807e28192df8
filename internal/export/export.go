// Package export rasterizes a canvas snapshot. It draws through the same
// containment index and routing model the interactive canvas uses, so the
// picture matches what users see at zoom 1.
package export

import (
	"fmt"
	"image"
	"io"
	"math"

	"github.com/fogleman/gg"

	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/containment"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
	"github.com/DoyleJ11/lol-draft-canvas/internal/routing"
)

const (
	Background  = "#f4f4f5"
	CardFill    = "#ffffff"
	CardBorder  = "#52525b"
	GroupFill   = "#dbeafe"
	SeriesFill  = "#fef3c7"
	GroupBorder = "#60a5fa"
	LineColor   = "#27272a"
	TextColor   = "#18181b"

	// MaxPixels caps the output so one far-flung card cannot allocate gigabytes.
	MaxPixels = 40_000_000
)

var ErrTooLarge = fmt.Errorf("export exceeds %d pixels", MaxPixels)

type Options struct {
	Layout geom.Layout
	Scale  float64 // pixels per world unit, default 1
	Margin float64 // pixels around the content, default 40
}

func (o *Options) defaults() {
	if o.Layout == "" {
		o.Layout = geom.LayoutCompact
	}
	if o.Scale <= 0 {
		o.Scale = 1
	}
	if o.Margin <= 0 {
		o.Margin = 40
	}
}

// Render draws the snapshot framed to its content. The snapshot's own
// viewport is ignored.
func Render(snap canvas.Snapshot, opts Options) (image.Image, error) {
	opts.defaults()
	ix := containment.NewIndex(snap.Cards, snap.Groups, opts.Layout)

	bounds, ok := contentBounds(snap, ix)
	if !ok {
		bounds = geom.Rect{Size: geom.Size{W: 1, H: 1}}
	}
	fw := math.Ceil(bounds.Size.W*opts.Scale + 2*opts.Margin)
	fh := math.Ceil(bounds.Size.H*opts.Scale + 2*opts.Margin)
	// checked before converting: far-away cards overflow int. Written
	// negated so NaN is rejected too.
	if !(fw <= math.MaxInt32 && fh <= math.MaxInt32 && fw*fh <= MaxPixels) {
		return nil, ErrTooLarge
	}
	w, h := int(fw), int(fh)
	vp := geom.Viewport{
		X:    bounds.Origin.X - opts.Margin/opts.Scale,
		Y:    bounds.Origin.Y - opts.Margin/opts.Scale,
		Zoom: opts.Scale,
	}

	dc := gg.NewContext(w, h)
	dc.SetHexColor(Background)
	dc.Clear()

	for _, g := range snap.Groups {
		r, _ := ix.GroupRect(g.ID)
		drawGroup(dc, g, r, vp)
	}
	for _, c := range snap.Cards {
		r, ok := ix.CardRect(c.ID)
		if !ok {
			continue
		}
		drawCard(dc, c, r, vp)
	}
	for _, c := range snap.Connections {
		drawPath(dc, routing.Route(c, ix, vp), c.Style, opts.Scale)
	}
	return dc.Image(), nil
}

// PNG renders the snapshot and encodes it to w.
func PNG(w io.Writer, snap canvas.Snapshot, opts Options) error {
	img, err := Render(snap, opts)
	if err != nil {
		return err
	}
	return Encode(w, img)
}

func Encode(w io.Writer, img image.Image) error {
	return gg.NewContextForImage(img).EncodePNG(w)
}

func contentBounds(snap canvas.Snapshot, ix *containment.Index) (geom.Rect, bool) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	add := func(r geom.Rect) {
		minX = math.Min(minX, r.Origin.X)
		minY = math.Min(minY, r.Origin.Y)
		maxX = math.Max(maxX, r.Origin.X+r.Size.W)
		maxY = math.Max(maxY, r.Origin.Y+r.Size.H)
	}
	for _, g := range snap.Groups {
		if r, ok := ix.GroupRect(g.ID); ok {
			add(r)
		}
	}
	for _, c := range snap.Cards {
		if r, ok := ix.CardRect(c.ID); ok {
			add(r)
		}
	}
	for _, c := range snap.Connections {
		for _, v := range c.Vertices {
			add(geom.Rect{Origin: v.Pos()})
		}
	}
	if math.IsInf(minX, 1) {
		return geom.Rect{}, false
	}
	return geom.Rect{
		Origin: geom.WorldPos{X: minX, Y: minY},
		Size:   geom.Size{W: math.Max(maxX-minX, 1), H: math.Max(maxY-minY, 1)},
	}, true
}

func screenRect(r geom.Rect, vp geom.Viewport) (x, y, w, h float64) {
	p := geom.WorldToScreen(r.Origin, vp)
	return p.X, p.Y, r.Size.W * vp.Zoom, r.Size.H * vp.Zoom
}

func drawGroup(dc *gg.Context, g canvas.Group, r geom.Rect, vp geom.Viewport) {
	x, y, w, h := screenRect(r, vp)
	dc.DrawRoundedRectangle(x, y, w, h, 8)
	if g.Kind == canvas.GroupSeries {
		dc.SetHexColor(SeriesFill)
	} else {
		dc.SetHexColor(GroupFill)
	}
	dc.FillPreserve()
	dc.SetHexColor(GroupBorder)
	dc.SetLineWidth(1.5)
	dc.Stroke()

	if g.Name != "" {
		dc.SetHexColor(TextColor)
		dc.DrawString(g.Name, x+8, y+18)
	}
}

func drawCard(dc *gg.Context, c canvas.Card, r geom.Rect, vp geom.Viewport) {
	x, y, w, h := screenRect(r, vp)
	dc.DrawRoundedRectangle(x, y, w, h, 6)
	dc.SetHexColor(CardFill)
	dc.FillPreserve()
	dc.SetHexColor(CardBorder)
	dc.SetLineWidth(1)
	dc.Stroke()

	dc.SetHexColor(TextColor)
	if c.Payload.Title != "" {
		dc.DrawString(c.Payload.Title, x+8, y+18)
	}
	if n := len(c.Payload.BluePicks) + len(c.Payload.RedPicks); n > 0 {
		dc.DrawString(fmt.Sprintf("%d picks", n), x+8, y+h-10)
	}
}

func drawPath(dc *gg.Context, p routing.Path, style canvas.Style, scale float64) {
	color := style.Color
	if color == "" {
		color = LineColor
	}
	dc.SetHexColor(color)
	dc.SetLineWidth(2 * scale)
	switch style.Line {
	case "dashed":
		dc.SetDash(8*scale, 5*scale)
	case "dotted":
		dc.SetDash(2*scale, 4*scale)
	default:
		dc.SetDash()
	}
	for _, s := range p.Segments {
		dc.DrawLine(s.From.X, s.From.Y, s.To.X, s.To.Y)
		dc.Stroke()
	}
	// arrowheads are always solid
	dc.SetDash()
	for _, a := range p.Arrowheads {
		dc.MoveTo(a.Left.X, a.Left.Y)
		dc.LineTo(a.Tip.X, a.Tip.Y)
		dc.LineTo(a.Right.X, a.Right.Y)
		dc.Stroke()
	}
}
