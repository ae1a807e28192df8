package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// WatchLogLevel re-reads LOG_LEVEL from envFile whenever it changes and
// applies it to level. Other settings need a restart. It returns when ctx
// is done.
func WatchLogLevel(ctx context.Context, envFile string, level zap.AtomicLevel, log *zap.Logger) error {
	abs, err := filepath.Abs(envFile)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	// editors replace files on save, so watch the directory
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	var timer *time.Timer
	reload := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name != abs || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(100*time.Millisecond, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			applyLevel(abs, level, log)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher", zap.Error(err))
		}
	}
}

func applyLevel(path string, level zap.AtomicLevel, log *zap.Logger) {
	env, err := godotenv.Read(path)
	if err != nil {
		log.Warn("reload env", zap.String("path", path), zap.Error(err))
		return
	}
	v, ok := env["LOG_LEVEL"]
	if !ok {
		return
	}
	next, err := zapcore.ParseLevel(v)
	if err != nil {
		log.Warn("reload env", zap.String("LOG_LEVEL", v), zap.Error(err))
		return
	}
	if next != level.Level() {
		level.SetLevel(next)
		log.Info("log level changed", zap.Stringer("level", next))
	}
}
