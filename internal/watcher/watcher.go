// Package watcher reloads runtime settings when the config file changes.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Service watches a single file and calls reload after it changes. Bursts of
// events (editors often write, chmod and rename in quick succession) are
// coalesced into one reload.
type Service struct {
	path     string
	reload   func(ctx context.Context) error
	logger   *slog.Logger
	debounce time.Duration
	poll     time.Duration
}

// NewService creates a watcher for path.
func NewService(path string, reload func(ctx context.Context) error, logger *slog.Logger) *Service {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &Service{
		path:     filepath.Clean(abs),
		reload:   reload,
		logger:   logger.With(slog.String("component", "config-watcher")),
		debounce: 500 * time.Millisecond,
		poll:     30 * time.Second,
	}
}

// SetDebounce overrides the default debounce interval (for testing).
func (s *Service) SetDebounce(d time.Duration) {
	s.debounce = d
}

// SetPollInterval overrides the fallback poll interval (for testing).
func (s *Service) SetPollInterval(d time.Duration) {
	s.poll = d
}

// Start blocks until ctx is canceled. The parent directory is watched rather
// than the file so that atomic replace-by-rename is seen. If fsnotify is
// unavailable the file's modification time is polled instead.
func (s *Service) Start(ctx context.Context) {
	var eventCh <-chan fsnotify.Event
	var errCh <-chan error
	var pollCh <-chan time.Time

	w, err := fsnotify.NewWatcher()
	if err == nil {
		err = w.Add(filepath.Dir(s.path))
		if err != nil {
			w.Close() //nolint:errcheck
		}
	}
	if err != nil {
		s.logger.Warn("fsnotify unavailable, polling config file", slog.String("error", err.Error()))
		pollTicker := time.NewTicker(s.poll)
		defer pollTicker.Stop()
		pollCh = pollTicker.C
	} else {
		defer w.Close() //nolint:errcheck
		eventCh = w.Events
		errCh = w.Errors
	}

	lastMod := s.modTime()
	s.logger.Info("config watcher starting", slog.String("path", s.path))

	// Starts stopped; reset on each relevant event.
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	pending := false
	schedule := func() {
		if !debounceTimer.Stop() {
			select {
			case <-debounceTimer.C:
			default:
			}
		}
		debounceTimer.Reset(s.debounce)
		pending = true
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("config watcher stopping")
			return

		case ev, ok := <-eventCh:
			if !ok {
				return
			}
			if s.relevant(ev) {
				schedule()
			}

		case err, ok := <-errCh:
			if !ok {
				return
			}
			s.logger.Error("fsnotify error", slog.String("error", err.Error()))

		case <-pollCh:
			if mod := s.modTime(); !mod.Equal(lastMod) {
				lastMod = mod
				schedule()
			}

		case <-debounceTimer.C:
			if !pending {
				continue
			}
			pending = false
			if _, err := os.Stat(s.path); err != nil {
				// Removed, or mid-replace; the next create event will retrigger.
				s.logger.Warn("config file not readable, keeping current settings", slog.String("error", err.Error()))
				continue
			}
			s.logger.Info("config file changed, reloading")
			if err := s.reload(ctx); err != nil {
				s.logger.Error("config reload failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (s *Service) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != s.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (s *Service) modTime() time.Time {
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
