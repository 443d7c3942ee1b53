// Package logging builds the process logger and lets it be reconfigured at
// runtime without replacing the *slog.Logger held by components.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sydlexius/soundalike/internal/config"
)

// SwappableHandler is a thread-safe slog.Handler that delegates to an inner
// handler which can be atomically swapped at runtime. Handlers derived with
// WithAttrs or WithGroup keep following later swaps.
type SwappableHandler struct {
	root *atomic.Pointer[slog.Handler]
	with []func(slog.Handler) slog.Handler
}

// NewSwappableHandler creates a SwappableHandler wrapping h.
func NewSwappableHandler(h slog.Handler) *SwappableHandler {
	p := &atomic.Pointer[slog.Handler]{}
	p.Store(&h)
	return &SwappableHandler{root: p}
}

// Swap replaces the inner handler for this handler and every handler derived
// from it.
func (s *SwappableHandler) Swap(h slog.Handler) {
	s.root.Store(&h)
}

// current replays the WithAttrs/WithGroup calls, in order, on the live handler.
func (s *SwappableHandler) current() slog.Handler {
	h := *s.root.Load()
	for _, fn := range s.with {
		h = fn(h)
	}
	return h
}

// Enabled delegates to the inner handler.
func (s *SwappableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*s.root.Load()).Enabled(ctx, level)
}

// Handle delegates to the inner handler.
func (s *SwappableHandler) Handle(ctx context.Context, r slog.Record) error {
	return s.current().Handle(ctx, r)
}

// WithAttrs returns a handler that adds attrs and still follows swaps.
func (s *SwappableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return s.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

// WithGroup returns a handler that opens a group and still follows swaps.
func (s *SwappableHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return s
	}
	return s.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (s *SwappableHandler) derive(fn func(slog.Handler) slog.Handler) *SwappableHandler {
	with := make([]func(slog.Handler) slog.Handler, len(s.with), len(s.with)+1)
	copy(with, s.with)
	return &SwappableHandler{root: s.root, with: append(with, fn)}
}

// Manager owns the logger lifecycle and supports runtime reconfiguration.
type Manager struct {
	levelVar *slog.LevelVar
	handler  *SwappableHandler
	out      io.Writer

	mu     sync.Mutex
	config config.LoggingConfig
	closer io.Closer // lumberjack writer, if any
}

// Option customises a Manager.
type Option func(*Manager)

// WithOutput sends console output to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(m *Manager) { m.out = w }
}

// NewManager creates a Manager and returns it along with a ready-to-use logger.
func NewManager(cfg config.LoggingConfig, opts ...Option) (*Manager, *slog.Logger) {
	m := &Manager{
		levelVar: &slog.LevelVar{},
		out:      os.Stdout,
		config:   cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.levelVar.Set(ParseLevel(cfg.Level))

	writer, closer := m.buildWriter(cfg)
	m.handler = NewSwappableHandler(buildHandler(writer, m.levelVar, cfg.Format))
	m.closer = closer

	return m, slog.New(m.handler)
}

// Reconfigure applies a new configuration at runtime. Level-only changes
// are instant via LevelVar; format or output changes rebuild the handler.
// It reports whether anything changed.
func (m *Manager) Reconfigure(cfg config.LoggingConfig) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg == m.config {
		return false
	}

	m.levelVar.Set(ParseLevel(cfg.Level))

	needSwap := cfg.Format != m.config.Format ||
		cfg.FilePath != m.config.FilePath ||
		cfg.MaxSizeMB != m.config.MaxSizeMB ||
		cfg.MaxFiles != m.config.MaxFiles ||
		cfg.MaxAgeDays != m.config.MaxAgeDays ||
		cfg.Compress != m.config.Compress

	if needSwap {
		if m.closer != nil {
			m.closer.Close() //nolint:errcheck
			m.closer = nil
		}
		writer, closer := m.buildWriter(cfg)
		m.handler.Swap(buildHandler(writer, m.levelVar, cfg.Format))
		m.closer = closer
	}

	m.config = cfg
	return true
}

// Config returns the current configuration snapshot.
func (m *Manager) Config() config.LoggingConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Level returns the active level.
func (m *Manager) Level() slog.Level {
	return m.levelVar.Level()
}

// Close releases resources (e.g. the log file writer).
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closer != nil {
		err := m.closer.Close()
		m.closer = nil
		return err
	}
	return nil
}

// ParseLevel converts a string to slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildWriter returns the console writer, teed into a rotating file when a
// path is configured. The lumberjack logger is returned as the closer.
func (m *Manager) buildWriter(cfg config.LoggingConfig) (io.Writer, io.Closer) {
	if cfg.FilePath == "" {
		return m.out, nil
	}

	lj := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    positiveOr(cfg.MaxSizeMB, 100),
		MaxBackups: positiveOr(cfg.MaxFiles, 3),
		MaxAge:     positiveOr(cfg.MaxAgeDays, 30),
		Compress:   cfg.Compress,
	}
	return io.MultiWriter(m.out, lj), lj
}

func positiveOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func buildHandler(w io.Writer, leveler slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: leveler}
	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or fallback when there is none.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return fallback
}
