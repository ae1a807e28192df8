// Package api is the authoritative write path. Realtime frames are cosmetic;
// durable state only changes through a Backend.
package api

import (
	"context"

	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
)

type Backend interface {
	CreateCanvas(ctx context.Context, snap canvas.Snapshot) error
	Snapshot(ctx context.Context, canvasID string) (canvas.Snapshot, error)
	Apply(ctx context.Context, canvasID string, op Op) error
}
