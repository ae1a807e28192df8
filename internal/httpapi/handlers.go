// Package httpapi is the REST surface over an api.Backend. Every successful
// write is fanned out to the canvas room as the matching inbound event.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-draft-canvas/internal/api"
	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/export"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
	"github.com/DoyleJ11/lol-draft-canvas/internal/hub"
)

const maxBody = 1 << 20

// lister is implemented by backends that can enumerate canvases.
type lister interface {
	List(ctx context.Context) ([]string, error)
}

type Server struct {
	backend  api.Backend
	hub      *hub.Hub
	opts     Options
	log      *zap.Logger
	validate *validator.Validate
}

func NewServer(backend api.Backend, h *hub.Hub, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		backend:  backend,
		hub:      h,
		opts:     opts,
		log:      log.Named("http"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) CreateCanvas(w http.ResponseWriter, r *http.Request) {
	var snap canvas.Snapshot
	if err := decode(w, r, &snap); err != nil {
		s.fail(w, r, err)
		return
	}
	if snap.CanvasID == "" {
		snap.CanvasID = uuid.NewString()
	}
	if snap.Viewport.Zoom <= 0 {
		snap.Viewport = geom.DefaultViewport()
	}
	if err := s.validate.Struct(snap); err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", api.ErrInvalid, err))
		return
	}
	if err := s.backend.CreateCanvas(r.Context(), snap); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("canvas created", zap.String("canvas", snap.CanvasID))
	writeJSON(w, http.StatusCreated, struct {
		CanvasID string `json:"canvasId"`
	}{CanvasID: snap.CanvasID})
}

func (s *Server) ListCanvases(w http.ResponseWriter, r *http.Request) {
	l, ok := s.backend.(lister)
	if !ok {
		http.Error(w, "listing not supported by this backend", http.StatusNotImplemented)
		return
	}
	ids, err := l.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, struct {
		Canvases []string `json:"canvases"`
	}{Canvases: ids})
}

func (s *Server) GetCanvas(w http.ResponseWriter, r *http.Request) {
	snap, err := s.backend.Snapshot(r.Context(), param(r, "canvasID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ExportPNG renders the canvas. ?scale= and ?layout= override the defaults.
func (s *Server) ExportPNG(w http.ResponseWriter, r *http.Request) {
	opts := s.opts.Export
	q := r.URL.Query()
	if v := q.Get("scale"); v != "" {
		scale, err := cast.ToFloat64E(v)
		if err != nil || scale <= 0 || scale > 8 {
			s.fail(w, r, fmt.Errorf("%w: scale %q", api.ErrInvalid, v))
			return
		}
		opts.Scale = scale
	}
	switch l := geom.Layout(q.Get("layout")); l {
	case "":
	case geom.LayoutCompact, geom.LayoutWide:
		opts.Layout = l
	default:
		s.fail(w, r, fmt.Errorf("%w: layout %q", api.ErrInvalid, l))
		return
	}

	canvasID := param(r, "canvasID")
	snap, err := s.backend.Snapshot(r.Context(), canvasID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	img, err := export.Render(snap, opts)
	if errors.Is(err, export.ErrTooLarge) {
		s.fail(w, r, fmt.Errorf("%w: %v", api.ErrInvalid, err))
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", canvasID+".png"))
	if err := export.Encode(w, img); err != nil {
		s.log.Warn("export write", zap.String("canvas", canvasID), zap.Error(err))
	}
}

// decode reads a JSON body. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: body: %v", api.ErrInvalid, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := api.StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}
