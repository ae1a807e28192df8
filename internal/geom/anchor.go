package geom

import "fmt"

type Anchor string

const (
	AnchorTop    Anchor = "top"
	AnchorBottom Anchor = "bottom"
	AnchorLeft   Anchor = "left"
	AnchorRight  Anchor = "right"
)

func ParseAnchor(s string) (Anchor, error) {
	switch a := Anchor(s); a {
	case AnchorTop, AnchorBottom, AnchorLeft, AnchorRight:
		return a, nil
	default:
		return "", fmt.Errorf("unknown anchor %q", s)
	}
}

// AnchorPoint returns the attachment point of a box for the given side.
// Unknown anchors fall back to the box center.
func AnchorPoint(r Rect, a Anchor) WorldPos {
	x, y, w, h := r.Origin.X, r.Origin.Y, r.Size.W, r.Size.H
	switch a {
	case AnchorTop:
		return WorldPos{X: x + w/2, Y: y}
	case AnchorBottom:
		return WorldPos{X: x + w/2, Y: y + h}
	case AnchorLeft:
		return WorldPos{X: x, Y: y + h/2}
	case AnchorRight:
		return WorldPos{X: x + w, Y: y + h/2}
	default:
		return r.Center()
	}
}

// Layout is the global card aspect preset.
type Layout string

const (
	LayoutCompact Layout = "compact"
	LayoutWide    Layout = "wide"
)

// CardSize is a function of the layout toggle, never of the card.
func CardSize(l Layout) Size {
	if l == LayoutWide {
		return Size{W: 240, H: 135}
	}
	return Size{W: 160, H: 90}
}
