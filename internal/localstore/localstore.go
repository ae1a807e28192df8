// Package localstore is local-only mode: the same snapshot and the same
// mutations as the networked backend, persisted to a SQLite file and applied
// synchronously.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/DoyleJ11/lol-draft-canvas/internal/api"
	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
)

type Store struct {
	conn *sql.DB
}

// document is what the row keeps besides the viewport columns.
type document struct {
	Cards       []canvas.Card       `json:"cards"`
	Groups      []canvas.Group      `json:"groups"`
	Connections []canvas.Connection `json:"connections"`
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.conn.Close() }

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS canvases (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			viewport_x REAL NOT NULL DEFAULT 0,
			viewport_y REAL NOT NULL DEFAULT 0,
			viewport_zoom REAL NOT NULL DEFAULT 1.0,
			document TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, m := range migrations {
		if _, err := s.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateCanvas(ctx context.Context, snap canvas.Snapshot) error {
	doc, err := encode(snap)
	if err != nil {
		return err
	}
	vp := snap.Viewport
	if vp.Zoom == 0 {
		vp = geom.DefaultViewport()
	}
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO canvases (id, name, viewport_x, viewport_y, viewport_zoom, document)
		 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		snap.CanvasID, snap.Name, vp.X, vp.Y, vp.Zoom, doc)
	if err != nil {
		return fmt.Errorf("insert canvas: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("canvas %q: %w", snap.CanvasID, api.ErrConflict)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func load(ctx context.Context, q queryer, canvasID string) (canvas.Snapshot, error) {
	snap := canvas.Snapshot{CanvasID: canvasID}
	var raw string
	err := q.QueryRowContext(ctx,
		`SELECT name, viewport_x, viewport_y, viewport_zoom, document FROM canvases WHERE id = ?`, canvasID,
	).Scan(&snap.Name, &snap.Viewport.X, &snap.Viewport.Y, &snap.Viewport.Zoom, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return canvas.Snapshot{}, fmt.Errorf("canvas %q: %w", canvasID, api.ErrNotFound)
	}
	if err != nil {
		return canvas.Snapshot{}, fmt.Errorf("select canvas: %w", err)
	}
	var doc document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return canvas.Snapshot{}, fmt.Errorf("decode canvas %q: %w", canvasID, err)
	}
	snap.Cards, snap.Groups, snap.Connections = doc.Cards, doc.Groups, doc.Connections
	return snap, nil
}

func encode(snap canvas.Snapshot) (string, error) {
	raw, err := json.Marshal(document{Cards: snap.Cards, Groups: snap.Groups, Connections: snap.Connections})
	if err != nil {
		return "", fmt.Errorf("encode canvas: %w", err)
	}
	return string(raw), nil
}

func (s *Store) Snapshot(ctx context.Context, canvasID string) (canvas.Snapshot, error) {
	return load(ctx, s.conn, canvasID)
}

// Apply runs op in one transaction. The write is durable when it returns.
func (s *Store) Apply(ctx context.Context, canvasID string, op api.Op) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	snap, err := load(ctx, tx, canvasID)
	if err != nil {
		return err
	}
	if err := api.Mutate(&snap, op); err != nil {
		return err
	}
	doc, err := encode(snap)
	if err != nil {
		return err
	}
	vp := snap.Viewport
	if _, err := tx.ExecContext(ctx,
		`UPDATE canvases SET name = ?, viewport_x = ?, viewport_y = ?, viewport_zoom = ?, document = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		snap.Name, vp.X, vp.Y, vp.Zoom, doc, canvasID); err != nil {
		return fmt.Errorf("update canvas: %w", err)
	}
	return tx.Commit()
}

// List returns canvas ids, most recently touched first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id FROM canvases ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Maintain folds the WAL back into the main file and refreshes planner stats.
func (s *Store) Maintain(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, `PRAGMA optimize`); err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	return nil
}
