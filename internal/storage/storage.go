// Package storage is the server's authoritative canvas store on Postgres.
// Writes are serialized per canvas with a row lock; last write wins.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/lol-draft-canvas/internal/api"
	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
)

type CanvasRecord struct {
	ID           string  `gorm:"primaryKey"`
	Name         string  `gorm:"not null;default:''"`
	ViewportX    float64 `gorm:"not null;default:0"`
	ViewportY    float64 `gorm:"not null;default:0"`
	ViewportZoom float64 `gorm:"not null;default:1"`
	Document     string  `gorm:"type:jsonb;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (CanvasRecord) TableName() string { return "canvases" }

type document struct {
	Cards       []canvas.Card       `json:"cards"`
	Groups      []canvas.Group      `json:"groups"`
	Connections []canvas.Connection `json:"connections"`
}

func toRecord(s canvas.Snapshot) (CanvasRecord, error) {
	raw, err := json.Marshal(document{Cards: s.Cards, Groups: s.Groups, Connections: s.Connections})
	if err != nil {
		return CanvasRecord{}, fmt.Errorf("encode canvas: %w", err)
	}
	vp := s.Viewport
	if vp.Zoom == 0 {
		vp = geom.DefaultViewport()
	}
	return CanvasRecord{
		ID:           s.CanvasID,
		Name:         s.Name,
		ViewportX:    vp.X,
		ViewportY:    vp.Y,
		ViewportZoom: vp.Zoom,
		Document:     string(raw),
	}, nil
}

func fromRecord(r CanvasRecord) (canvas.Snapshot, error) {
	var doc document
	if err := json.Unmarshal([]byte(r.Document), &doc); err != nil {
		return canvas.Snapshot{}, fmt.Errorf("decode canvas %q: %w", r.ID, err)
	}
	return canvas.Snapshot{
		CanvasID:    r.ID,
		Name:        r.Name,
		Cards:       doc.Cards,
		Groups:      doc.Groups,
		Connections: doc.Connections,
		Viewport:    geom.Viewport{X: r.ViewportX, Y: r.ViewportY, Zoom: r.ViewportZoom},
	}, nil
}

type Store struct {
	db *gorm.DB
}

// Open connects and migrates. SQL is logged through log at warn level.
func Open(dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	gl := logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gl})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&CanvasRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CreateCanvas(ctx context.Context, snap canvas.Snapshot) error {
	rec, err := toRecord(snap)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return fmt.Errorf("insert canvas: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("canvas %q: %w", snap.CanvasID, api.ErrConflict)
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context, canvasID string) (canvas.Snapshot, error) {
	var rec CanvasRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", canvasID).Error; err != nil {
		return canvas.Snapshot{}, notFound(canvasID, err)
	}
	return fromRecord(rec)
}

func (s *Store) Apply(ctx context.Context, canvasID string, op api.Op) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec CanvasRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, "id = ?", canvasID).Error
		if err != nil {
			return notFound(canvasID, err)
		}
		snap, err := fromRecord(rec)
		if err != nil {
			return err
		}
		if err := api.Mutate(&snap, op); err != nil {
			return err
		}
		next, err := toRecord(snap)
		if err != nil {
			return err
		}
		next.CreatedAt = rec.CreatedAt
		return tx.Save(&next).Error
	})
}

func notFound(canvasID string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("canvas %q: %w", canvasID, api.ErrNotFound)
	}
	return fmt.Errorf("select canvas %q: %w", canvasID, err)
}

// List returns canvas ids, most recently touched first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&CanvasRecord{}).Order("updated_at DESC, id").Pluck("id", &ids).Error
	return ids, err
}

// Maintain refreshes planner statistics for the canvases table.
func (s *Store) Maintain(ctx context.Context) error {
	return s.db.WithContext(ctx).Exec("ANALYZE canvases").Error
}
