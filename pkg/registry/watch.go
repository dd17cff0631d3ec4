package registry

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultReloadDelay debounces bursts of file events into one reload.
const DefaultReloadDelay = 300 * time.Millisecond

// Watcher reloads a registry directory when its documents change.
type Watcher struct {
	dir    string
	delay  time.Duration
	logger zerolog.Logger
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithReloadDelay overrides the debounce delay.
func WithReloadDelay(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithWatchLogger sets the watcher logger.
func WithWatchLogger(logger zerolog.Logger) WatchOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher constructs a watcher for dir.
func NewWatcher(dir string, opts ...WatchOption) *Watcher {
	w := &Watcher{dir: dir, delay: DefaultReloadDelay, logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Run watches the directory tree until ctx ends. After each debounced burst
// of changes it reloads the registry and hands it to apply. A document that
// fails to load is logged and the previous registry stays in effect.
func (w *Watcher) Run(ctx context.Context, apply func(*Registry)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("registry: create watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("registry: watch %s: %w", w.dir, err)
	}
	w.logger.Info().Str("dir", w.dir).Msg("watching registry")

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if !isRegistryFile(event.Name) {
				continue
			}
			w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("registry file changed")
			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				timer.Reset(w.delay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			reg, err := LoadFS(os.DirFS(w.dir), WithLogger(w.logger))
			if err != nil {
				w.logger.Error().Err(err).Str("dir", w.dir).Msg("registry reload failed")
				continue
			}
			w.logger.Info().Int("forms", len(reg.Forms())).Int("details", len(reg.Details())).Msg("registry reloaded")
			apply(reg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("registry watcher error")
		}
	}
}
