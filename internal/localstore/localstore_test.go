package localstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/lol-draft-canvas/internal/api"
	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "canvas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_CreateAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	require.NoError(t, s.CreateCanvas(ctx, canvas.Snapshot{CanvasID: "cv1", Name: "Playoffs"}))
	snap, err := s.Snapshot(ctx, "cv1")
	require.NoError(t, err)
	assert.Equal(t, "Playoffs", snap.Name)
	assert.Equal(t, geom.DefaultViewport(), snap.Viewport)

	assert.ErrorIs(t, s.CreateCanvas(ctx, canvas.Snapshot{CanvasID: "cv1"}), api.ErrConflict)
	_, err = s.Snapshot(ctx, "nope")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestStore_MutationsPersistAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "canvas.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.CreateCanvas(ctx, canvas.Snapshot{CanvasID: "cv1"}))

	ops := []api.Op{
		api.CreateGroup{Group: canvas.Group{ID: "g", Kind: canvas.GroupCustom, PositionX: 100, PositionY: 90}},
		api.CreateCard{Card: canvas.Card{ID: "a", PositionX: 100, PositionY: 100}},
		api.SetCardGroup{CardID: "a", GroupID: canvas.Ptr("g"), X: 50, Y: 30},
		api.SetViewport{Viewport: geom.Viewport{X: 10, Y: 20, Zoom: 2}},
		api.RenameCanvas{Name: "Worlds"},
	}
	for _, op := range ops {
		require.NoError(t, s.Apply(ctx, "cv1", op))
	}
	require.NoError(t, s.Close())

	again, err := Open(path)
	require.NoError(t, err)
	defer again.Close()

	snap, err := again.Snapshot(ctx, "cv1")
	require.NoError(t, err)
	assert.Equal(t, "Worlds", snap.Name)
	assert.Equal(t, geom.Viewport{X: 10, Y: 20, Zoom: 2}, snap.Viewport)
	require.Len(t, snap.Cards, 1)
	assert.Equal(t, "g", *snap.Cards[0].GroupID)
	assert.Equal(t, 50.0, snap.Cards[0].PositionX)
}

func TestStore_FailedMutationRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	require.NoError(t, s.CreateCanvas(ctx, canvas.Snapshot{CanvasID: "cv1", Cards: []canvas.Card{{ID: "a"}}}))

	err := s.Apply(ctx, "cv1", api.CreateCard{Card: canvas.Card{ID: "a"}})
	assert.ErrorIs(t, err, api.ErrConflict)
	assert.ErrorIs(t, s.Apply(ctx, "missing", api.DeleteCard{CardID: "a"}), api.ErrNotFound)

	snap, err := s.Snapshot(ctx, "cv1")
	require.NoError(t, err)
	assert.Len(t, snap.Cards, 1)
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	require.NoError(t, s.CreateCanvas(ctx, canvas.Snapshot{CanvasID: "a"}))
	require.NoError(t, s.CreateCanvas(ctx, canvas.Snapshot{CanvasID: "b"}))
	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestStore_Maintain(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	require.NoError(t, s.CreateCanvas(ctx, canvas.Snapshot{CanvasID: "a"}))
	require.NoError(t, s.Maintain(ctx))

	_, err := s.Snapshot(ctx, "a")
	assert.NoError(t, err)
}
