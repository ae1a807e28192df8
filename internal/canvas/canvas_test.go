package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
)

func TestCard_WorldBranchesOnGroupKind(t *testing.T) {
	custom := Group{ID: "g1", Kind: GroupCustom, PositionX: 100, PositionY: 90}
	series := Group{ID: "s1", Kind: GroupSeries, PositionX: 500, PositionY: 500}

	cases := []struct {
		name string
		card Card
		host *Group
		want geom.WorldPos
	}{
		{name: "ungrouped", card: Card{ID: "c", PositionX: 10, PositionY: 20}, want: geom.WorldPos{X: 10, Y: 20}},
		{name: "custom member is relative", card: Card{ID: "c", PositionX: 50, PositionY: 30, GroupID: Ptr("g1")}, host: &custom, want: geom.WorldPos{X: 150, Y: 120}},
		{name: "series member is world", card: Card{ID: "c", PositionX: 50, PositionY: 30, GroupID: Ptr("s1")}, host: &series, want: geom.WorldPos{X: 50, Y: 30}},
		{name: "wrong host ignored", card: Card{ID: "c", PositionX: 5, PositionY: 5, GroupID: Ptr("other")}, host: &custom, want: geom.WorldPos{X: 5, Y: 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.card.World(tc.host))
		})
	}
}

func TestCard_PlaceHelpersKeepFrameConsistent(t *testing.T) {
	c := Card{ID: "c"}
	c.PlaceIn("g1", geom.RelativePos{X: 1, Y: 2})
	require.NotNil(t, c.GroupID)
	assert.Equal(t, "g1", *c.GroupID)

	c.Place(geom.WorldPos{X: 7, Y: 8})
	assert.Nil(t, c.GroupID)
	assert.Equal(t, 7.0, c.PositionX)
}

func TestGroup_SizeDefaults(t *testing.T) {
	g := Group{ID: "g", Kind: GroupCustom}
	assert.Equal(t, geom.Size{W: 400, H: 200}, g.Size())

	g.Resize(geom.Size{W: 500, H: 250})
	assert.Equal(t, geom.Size{W: 500, H: 250}, g.Size())
}

func TestConnection_WithoutRef(t *testing.T) {
	conn := Connection{
		ID: "x",
		Sources: []Endpoint{
			{Anchor: geom.AnchorRight, RefKind: RefCard, RefID: "a"},
			{Anchor: geom.AnchorRight, RefKind: RefCard, RefID: "b"},
		},
		Targets: []Endpoint{{Anchor: geom.AnchorLeft, RefKind: RefCard, RefID: "c"}},
	}

	out, keep := conn.WithoutRef(RefCard, "a")
	assert.True(t, keep)
	assert.Len(t, out.Sources, 1)
	assert.Len(t, conn.Sources, 2, "original must not be mutated")

	_, keep = conn.WithoutRef(RefCard, "c")
	assert.False(t, keep, "empty target side deletes the connection")

	_, keep = conn.WithoutRef(RefGroup, "a")
	assert.True(t, keep, "kind must match")
}

func TestSeriesMembers_OrderedByIndex(t *testing.T) {
	cards := []Card{
		{ID: "b", GroupID: Ptr("s"), Payload: DraftPayload{SeriesIndex: 2}},
		{ID: "a", GroupID: Ptr("s"), Payload: DraftPayload{SeriesIndex: 1}},
		{ID: "z"},
		{ID: "c", GroupID: Ptr("s"), Payload: DraftPayload{SeriesIndex: 1}},
	}
	got := SeriesMembers("s", cards)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "c", "b"}, []string{got[0].ID, got[1].ID, got[2].ID})
}
