package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
)

// Memory is an in-process Backend. Tests use it as a fake; Fail makes the
// next writes return an error.
type Memory struct {
	mu       sync.Mutex
	canvases map[string]canvas.Snapshot
	failNext int
	applied  []Op
}

func NewMemory(snaps ...canvas.Snapshot) *Memory {
	m := &Memory{canvases: make(map[string]canvas.Snapshot)}
	for _, s := range snaps {
		m.canvases[s.CanvasID] = s
	}
	return m
}

// Fail makes the next n Apply calls fail without changing state.
func (m *Memory) Fail(n int) {
	m.mu.Lock()
	m.failNext = n
	m.mu.Unlock()
}

// Applied returns every op accepted so far.
func (m *Memory) Applied() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Op(nil), m.applied...)
}

func (m *Memory) CreateCanvas(_ context.Context, snap canvas.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.canvases[snap.CanvasID]; ok {
		return fmt.Errorf("canvas %q: %w", snap.CanvasID, ErrConflict)
	}
	m.canvases[snap.CanvasID] = snap
	return nil
}

func (m *Memory) Snapshot(_ context.Context, canvasID string) (canvas.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.canvases[canvasID]
	if !ok {
		return canvas.Snapshot{}, notFound("canvas", canvasID)
	}
	return clone(s), nil
}

func (m *Memory) Apply(_ context.Context, canvasID string, op Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return fmt.Errorf("memory backend: injected failure")
	}
	s, ok := m.canvases[canvasID]
	if !ok {
		return notFound("canvas", canvasID)
	}
	if err := Mutate(&s, op); err != nil {
		return err
	}
	m.canvases[canvasID] = s
	m.applied = append(m.applied, op)
	return nil
}
