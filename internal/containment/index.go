package containment

import (
	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
)

// Index is a read-only spatial view over one canvas frame. It resolves the
// dual meaning of card positions once so callers only see world coordinates.
type Index struct {
	layout     geom.Layout
	cards      map[string]canvas.Card
	cardOrder  []string
	groups     map[string]canvas.Group
	groupOrder []string
	seriesSlot map[string]int
	seriesSize map[string]int
}

func NewIndex(cards []canvas.Card, groups []canvas.Group, layout geom.Layout) *Index {
	ix := &Index{
		layout:     layout,
		cards:      make(map[string]canvas.Card, len(cards)),
		groups:     make(map[string]canvas.Group, len(groups)),
		seriesSlot: make(map[string]int),
		seriesSize: make(map[string]int),
	}
	for _, c := range cards {
		ix.cards[c.ID] = c
		ix.cardOrder = append(ix.cardOrder, c.ID)
	}
	for _, g := range groups {
		ix.groups[g.ID] = g
		ix.groupOrder = append(ix.groupOrder, g.ID)
		if g.Kind == canvas.GroupSeries {
			members := canvas.SeriesMembers(g.ID, cards)
			ix.seriesSize[g.ID] = len(members)
			for i, m := range members {
				ix.seriesSlot[m.ID] = i
			}
		}
	}
	return ix
}

func (ix *Index) Layout() geom.Layout { return ix.layout }

func (ix *Index) CardSize() geom.Size { return geom.CardSize(ix.layout) }

func (ix *Index) Card(id string) (canvas.Card, bool) {
	c, ok := ix.cards[id]
	return c, ok
}

func (ix *Index) Group(id string) (canvas.Group, bool) {
	g, ok := ix.groups[id]
	return g, ok
}

// Host returns the group a card belongs to, nil when ungrouped or dangling.
func (ix *Index) Host(c canvas.Card) *canvas.Group {
	if c.GroupID == nil {
		return nil
	}
	g, ok := ix.groups[*c.GroupID]
	if !ok {
		return nil
	}
	return &g
}

// CardWorld is the card's rendered world position. Series members are laid
// out by the series group rather than by their stored position.
func (ix *Index) CardWorld(id string) (geom.WorldPos, bool) {
	c, ok := ix.cards[id]
	if !ok {
		return geom.WorldPos{}, false
	}
	host := ix.Host(c)
	if host != nil && host.Kind == canvas.GroupSeries {
		return SeriesSlot(*host, ix.seriesSlot[c.ID], ix.CardSize()), true
	}
	return c.World(host), true
}

func (ix *Index) CardRect(id string) (geom.Rect, bool) {
	p, ok := ix.CardWorld(id)
	if !ok {
		return geom.Rect{}, false
	}
	return geom.Rect{Origin: p, Size: ix.CardSize()}, true
}

func (ix *Index) GroupRect(id string) (geom.Rect, bool) {
	g, ok := ix.groups[id]
	if !ok {
		return geom.Rect{}, false
	}
	if g.Kind == canvas.GroupSeries {
		return SeriesBounds(g, ix.seriesSize[id], ix.CardSize()), true
	}
	return g.Bounds(), true
}

// Resolve maps a connection endpoint to its anchor in world coordinates.
// Dangling references report false.
func (ix *Index) Resolve(e canvas.Endpoint) (geom.WorldPos, bool) {
	var (
		r  geom.Rect
		ok bool
	)
	switch e.RefKind {
	case canvas.RefCard:
		r, ok = ix.CardRect(e.RefID)
	case canvas.RefGroup:
		r, ok = ix.GroupRect(e.RefID)
	}
	if !ok {
		return geom.WorldPos{}, false
	}
	return geom.AnchorPoint(r, e.Anchor), true
}

// ContainingGroup returns the topmost custom group containing p. Groups later
// in draw order sit on top.
func (ix *Index) ContainingGroup(p geom.WorldPos) (canvas.Group, bool) {
	for i := len(ix.groupOrder) - 1; i >= 0; i-- {
		g := ix.groups[ix.groupOrder[i]]
		if PointInGroup(p, g) {
			return g, true
		}
	}
	return canvas.Group{}, false
}

// CardAt returns the topmost card under p.
func (ix *Index) CardAt(p geom.WorldPos) (canvas.Card, bool) {
	for i := len(ix.cardOrder) - 1; i >= 0; i-- {
		id := ix.cardOrder[i]
		if r, ok := ix.CardRect(id); ok && r.Contains(p) {
			return ix.cards[id], true
		}
	}
	return canvas.Card{}, false
}

// GroupAt returns the topmost group of either kind under p.
func (ix *Index) GroupAt(p geom.WorldPos) (canvas.Group, bool) {
	for i := len(ix.groupOrder) - 1; i >= 0; i-- {
		id := ix.groupOrder[i]
		if r, ok := ix.GroupRect(id); ok && r.Contains(p) {
			return ix.groups[id], true
		}
	}
	return canvas.Group{}, false
}

// Members returns the cards stored in a group, in insertion order.
func (ix *Index) Members(groupID string) []canvas.Card {
	var out []canvas.Card
	for _, id := range ix.cardOrder {
		if c := ix.cards[id]; c.InGroup(groupID) {
			out = append(out, c)
		}
	}
	return out
}
