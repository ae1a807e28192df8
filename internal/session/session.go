// Package session is the canvas session: one actor that owns the drag state,
// the entity store and the reconciler for the open canvas. Everything that
// changes state runs on its loop; network calls report back as messages.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bep/debounce"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/DoyleJ11/lol-draft-canvas/internal/api"
	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
	"github.com/DoyleJ11/lol-draft-canvas/internal/drag"
	"github.com/DoyleJ11/lol-draft-canvas/internal/geom"
	"github.com/DoyleJ11/lol-draft-canvas/internal/realtime"
	"github.com/DoyleJ11/lol-draft-canvas/internal/routing"
	"github.com/DoyleJ11/lol-draft-canvas/internal/store"
	"github.com/DoyleJ11/lol-draft-canvas/internal/types"
)

var ErrClosed = errors.New("session closed")
var ErrNotLoaded = errors.New("no canvas loaded")
var ErrSuperseded = errors.New("canvas load superseded")
var ErrWriteQueueFull = errors.New("write queue full")

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed" // snapshot could not be loaded; nothing is interactive
)

const DefaultViewportDebounce = time.Second

type Config struct {
	Backend api.Backend
	// Channel is nil in local mode.
	Channel realtime.Channel
	// Synchronous applies writes inline on the loop instead of queueing them.
	Synchronous      bool
	Layout           geom.Layout
	CanEdit          bool
	EmitInterval     time.Duration
	ViewportDebounce time.Duration
	Log              *zap.Logger
}

type Msg interface{ isSessionMsg() }

type openCanvas struct {
	CanvasID string
	Reply    chan error
}

type loaded struct {
	CanvasID string
	Seq      int
	Snap     canvas.Snapshot
	Err      error
	Reply    chan error
}

type pointerResult struct {
	Events []drag.Event
	Err    error
}

type pointer struct {
	Cmd   drag.Command
	Reply chan pointerResult
}

type mutation struct {
	Build func() (api.Op, error) // runs on the loop
	Reply chan error
}

type inbound struct{ Msg types.Message }

type writeDone struct {
	CanvasID string
	Op       api.Op
	Err      error
}

type resynced struct {
	CanvasID string
	Snap     canvas.Snapshot
	Err      error
}

type flushViewport struct{}

type setOption struct {
	Fn    func()
	Reply chan error
}

type getView struct{ Reply chan View }

type shutdown struct{}

func (openCanvas) isSessionMsg()    {}
func (loaded) isSessionMsg()        {}
func (pointer) isSessionMsg()       {}
func (mutation) isSessionMsg()      {}
func (inbound) isSessionMsg()       {}
func (writeDone) isSessionMsg()     {}
func (resynced) isSessionMsg()      {}
func (flushViewport) isSessionMsg() {}
func (setOption) isSessionMsg()     {}
func (getView) isSessionMsg()       {}
func (shutdown) isSessionMsg()      {}

// View is a race-free copy of what the session would render.
type View struct {
	Status         Status
	Err            error
	CanvasID       string
	Snapshot       canvas.Snapshot
	Drag           drag.State
	Layout         geom.Layout
	ConnectionMode bool
	CanEdit        bool
	Pending        *canvas.Endpoint
	// Cards maps card id to where it is drawn, series slots included.
	Cards map[string]geom.WorldPos
	Paths []routing.Path
}

type pendingWrite struct {
	canvasID string
	op       api.Op
}

type Session struct {
	cfg   Config
	log   *zap.Logger
	inbox chan Msg
	errs  chan error

	store *store.Store
	rec   *realtime.Reconciler

	status   Status
	loadErr  error
	canvasID string
	seq      int
	drag     drag.State
	layout   geom.Layout
	canEdit  bool
	connMode bool
	pending  *canvas.Endpoint

	writes   chan pendingWrite
	resyncs  singleflight.Group
	debounce func(func())

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func New(parent context.Context, cfg Config) *Session {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Layout == "" {
		cfg.Layout = geom.LayoutCompact
	}
	if cfg.ViewportDebounce <= 0 {
		cfg.ViewportDebounce = DefaultViewportDebounce
	}
	ctx, cancel := context.WithCancel(parent)
	st := store.New()
	log := cfg.Log.With(zap.String("component", "session"))

	s := &Session{
		cfg:      cfg,
		log:      log,
		inbox:    make(chan Msg, 64),
		errs:     make(chan error, 16),
		store:    st,
		rec:      realtime.NewReconciler(st, cfg.Channel, realtime.NewThrottle(cfg.EmitInterval), log),
		status:   StatusIdle,
		layout:   cfg.Layout,
		canEdit:  cfg.CanEdit,
		writes:   make(chan pendingWrite, 256),
		debounce: debounce.New(cfg.ViewportDebounce),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go s.loop()
	if !cfg.Synchronous {
		go s.writer()
	}
	if cfg.Channel != nil {
		go s.pump(cfg.Channel.Inbound())
	}
	return s
}

// Store exposes the entity store for subscriptions. Mutate through the session.
func (s *Session) Store() *store.Store { return s.store }

// Errors reports authoritative write failures. Each one also triggers a resync.
func (s *Session) Errors() <-chan error { return s.errs }

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		select {
		case s.inbox <- shutdown{}:
		case <-s.done:
		}
		<-s.done
		s.cancel()
	})
	return nil
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case openCanvas:
				s.open(msg)

			case loaded:
				s.loaded(msg)

			case pointer:
				events, err := s.pointer(msg.Cmd)
				msg.Reply <- pointerResult{Events: events, Err: err}

			case mutation:
				msg.Reply <- s.mutation(msg.Build)

			case inbound:
				if msg.Msg.Name == types.Reconnected {
					if msg.Msg.CanvasID == s.canvasID {
						s.resync(s.canvasID)
					}
				} else {
					s.rec.ApplyInbound(msg.Msg)
				}

			case writeDone:
				if msg.Err != nil {
					s.writeFailed(msg.CanvasID, msg.Op, msg.Err)
				}

			case resynced:
				s.resynced(msg)

			case flushViewport:
				if s.status == StatusReady && s.canEdit {
					s.write(api.SetViewport{Viewport: s.store.Viewport()})
				}

			case setOption:
				msg.Fn()
				msg.Reply <- nil

			case getView:
				msg.Reply <- s.view()

			case shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) shutdown() {
	if s.canvasID != "" && s.cfg.Channel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := s.cfg.Channel.Leave(ctx, s.canvasID); err != nil {
			s.log.Debug("leave on shutdown", zap.String("canvas", s.canvasID), zap.Error(err))
		}
		cancel()
	}
	s.cancel()
}

// post delivers a message from a helper goroutine. It gives up once the
// session is shutting down.
func (s *Session) post(m Msg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

func (s *Session) writer() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case w := <-s.writes:
			err := s.cfg.Backend.Apply(s.ctx, w.canvasID, w.op)
			s.post(writeDone{CanvasID: w.canvasID, Op: w.op, Err: err})
		}
	}
}

func (s *Session) pump(in <-chan types.Message) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			s.post(inbound{Msg: m})
		}
	}
}

// ask sends a request and waits for its reply.
func ask[T any](ctx context.Context, s *Session, mk func(chan T) Msg) (T, error) {
	var zero T
	reply := make(chan T, 1)
	select {
	case s.inbox <- mk(reply):
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.done:
		return zero, ErrClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.done:
		return zero, ErrClosed
	}
}
