// Package realtime keeps the local store in step with the room: optimistic
// local moves, throttled emission and self-echo suppression on the way in.
package realtime

import (
	"context"

	"github.com/DoyleJ11/lol-draft-canvas/internal/types"
)

// Channel is one client's connection to the realtime rooms. It is constructed
// explicitly and handed to the session; nothing here is process-global.
type Channel interface {
	Join(ctx context.Context, canvasID string) error
	Leave(ctx context.Context, canvasID string) error
	Emit(ctx context.Context, name types.EventName, canvasID string, payload any) error
	// Inbound yields validated messages, plus a types.Reconnected message per
	// room rejoined after the connection was re-established. It is closed by Close.
	Inbound() <-chan types.Message
	Close() error
}
