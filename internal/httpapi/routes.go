package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lol-draft-canvas/internal/api"
	"github.com/DoyleJ11/lol-draft-canvas/internal/export"
	"github.com/DoyleJ11/lol-draft-canvas/internal/hub"
	"github.com/DoyleJ11/lol-draft-canvas/internal/ws"
)

type Options struct {
	WS     ws.Options
	Export export.Options
}

// SetupRoutes serves the REST API for backend. Paths mirror api.Route so
// api.Client talks to it unchanged.
func SetupRoutes(backend api.Backend, h *hub.Hub, opts Options, log *zap.Logger) http.Handler {
	s := NewServer(backend, h, opts, log)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, backend, opts.WS, log))

	r.Route("/canvases", func(r chi.Router) {
		r.Get("/", s.ListCanvases)
		r.Post("/", s.CreateCanvas)

		r.Route("/{canvasID}", func(r chi.Router) {
			r.Get("/", s.GetCanvas)
			r.Get("/export.png", s.ExportPNG)
			r.Put("/name", handle[api.RenameCanvas](s, nil))
			r.Put("/viewport", handle[api.SetViewport](s, nil))

			r.Post("/cards", handle(s, bindCreateCard))
			r.Route("/cards/{cardID}", func(r chi.Router) {
				r.Put("/", handle(s, func(r *http.Request, op *api.UpdateCard) { op.Card.ID = param(r, "cardID") }))
				r.Delete("/", handle(s, func(r *http.Request, op *api.DeleteCard) { op.CardID = param(r, "cardID") }))
				r.Put("/position", handle(s, func(r *http.Request, op *api.MoveCard) { op.CardID = param(r, "cardID") }))
				r.Put("/group", handle(s, func(r *http.Request, op *api.SetCardGroup) { op.CardID = param(r, "cardID") }))
			})

			r.Post("/connections", handle(s, bindCreateConnection))
			r.Route("/connections/{connectionID}", func(r chi.Router) {
				r.Put("/", handle(s, func(r *http.Request, op *api.UpdateConnection) { op.Connection.ID = param(r, "connectionID") }))
				r.Delete("/", handle(s, func(r *http.Request, op *api.DeleteConnection) { op.ConnectionID = param(r, "connectionID") }))
				r.Post("/sources", handle(s, func(r *http.Request, op *api.AddSource) { op.ConnectionID = param(r, "connectionID") }))
				r.Post("/targets", handle(s, func(r *http.Request, op *api.AddTarget) { op.ConnectionID = param(r, "connectionID") }))
				r.Post("/vertices", handle(s, bindCreateVertex))
				r.Put("/vertices/{vertexID}", handle(s, func(r *http.Request, op *api.UpdateVertex) {
					op.ConnectionID, op.Vertex.ID = param(r, "connectionID"), param(r, "vertexID")
				}))
				r.Delete("/vertices/{vertexID}", handle(s, func(r *http.Request, op *api.DeleteVertex) {
					op.ConnectionID, op.VertexID = param(r, "connectionID"), param(r, "vertexID")
				}))
			})

			r.Post("/groups", handle(s, bindCreateGroup))
			r.Route("/groups/{groupID}", func(r chi.Router) {
				r.Put("/", handle(s, func(r *http.Request, op *api.UpdateGroup) { op.GroupID = param(r, "groupID") }))
				r.Delete("/", handle(s, bindDeleteGroup))
				r.Put("/position", handle(s, func(r *http.Request, op *api.MoveGroup) { op.GroupID = param(r, "groupID") }))
				r.Put("/size", handle(s, func(r *http.Request, op *api.ResizeGroup) { op.GroupID = param(r, "groupID") }))
			})
		})
	})
	return r
}

func param(r *http.Request, key string) string { return chi.URLParam(r, key) }

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
