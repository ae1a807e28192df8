package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/lol-draft-canvas/internal/api"
	"github.com/DoyleJ11/lol-draft-canvas/internal/config"
	"github.com/DoyleJ11/lol-draft-canvas/internal/export"
	"github.com/DoyleJ11/lol-draft-canvas/internal/httpapi"
	"github.com/DoyleJ11/lol-draft-canvas/internal/hub"
	"github.com/DoyleJ11/lol-draft-canvas/internal/localstore"
	"github.com/DoyleJ11/lol-draft-canvas/internal/storage"
	"github.com/DoyleJ11/lol-draft-canvas/internal/ws"
)

const envFile = ".env"

// backend is what the server needs from either store.
type backend interface {
	api.Backend
	Maintain(ctx context.Context) error
	Close() error
}

func main() {
	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	log, level, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer log.Sync()

	if err := run(cfg, log, level); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger, level zap.AtomicLevel) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	h := hub.NewHub(ctx, log)
	defer h.Close()

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(store, h, httpapi.Options{
		WS: ws.Options{
			ReadTimeout:    cfg.WSReadTimeout,
			WriteTimeout:   cfg.WSWriteTimeout,
			OutboxSize:     cfg.WSOutboxSize,
			OriginPatterns: cfg.OriginPatterns,
		},
		Export: export.Options{Scale: cfg.ExportScale},
	}, log)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched, err := schedule(ctx, cfg.MaintenanceSchedule, store, log)
	if err != nil {
		return err
	}
	defer func() { <-sched.Stop().Done() }()
	sched.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("local", cfg.Local()))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// losing the watcher only costs live log level changes
		if err := config.WatchLogLevel(gctx, envFile, level, log); err != nil {
			log.Warn("config watcher stopped", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func openStore(cfg config.Config, log *zap.Logger) (backend, error) {
	if cfg.Local() {
		log.Info("using local store", zap.String("path", cfg.LocalDBPath))
		return localstore.Open(cfg.LocalDBPath)
	}
	return storage.Open(cfg.DatabaseURL, log)
}

// schedule runs store upkeep on spec. An empty spec yields an idle scheduler.
func schedule(ctx context.Context, spec string, store backend, log *zap.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithLogger(cron.PrintfLogger(zap.NewStdLog(log.Named("cron")))))
	if spec == "" {
		return c, nil
	}
	_, err := c.AddFunc(spec, func() {
		mctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		start := time.Now()
		if err := store.Maintain(mctx); err != nil {
			log.Warn("store maintenance", zap.Error(err))
			return
		}
		log.Debug("store maintenance", zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return nil, fmt.Errorf("MAINTENANCE_SCHEDULE %q: %w", spec, err)
	}
	return c, nil
}
