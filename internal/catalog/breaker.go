package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sydlexius/soundalike/internal/metrics"
)

// BreakerSettings controls when the circuit opens.
type BreakerSettings struct {
	FailureRatio float64
	MinRequests  uint32
	Interval     time.Duration // count reset window while closed
	OpenTimeout  time.Duration // time spent open before probing
	MaxProbes    uint32        // requests allowed while half-open
}

// DefaultBreakerSettings returns the settings used when none are configured.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		FailureRatio: 0.6,
		MinRequests:  10,
		Interval:     time.Minute,
		OpenTimeout:  30 * time.Second,
		MaxProbes:    3,
	}
}

// Breaker decorates a Catalog with a circuit breaker. While the circuit is
// open every call fails fast with ErrUnavailable, so a dead catalog costs
// each tier nothing instead of a full request timeout.
type Breaker struct {
	next   Catalog
	cb     *gobreaker.CircuitBreaker[any]
	name   string
	logger *slog.Logger
}

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next Catalog, s BreakerSettings, logger *slog.Logger) *Breaker {
	name := string(next.Name()) + "-api"
	logger = logger.With(slog.String("component", "circuit-breaker"), slog.String("breaker", name))

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	b := &Breaker{next: next, name: name, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxProbes,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= s.FailureRatio
		},
		// Not-found answers are valid responses, not a sign of an unhealthy catalog.
		IsSuccessful: func(err error) bool {
			var nf *ErrNotFound
			return err == nil || errors.As(err, &nf)
		},
		// A caller that gave up says nothing about the catalog's health.
		IsExcluded: func(err error) bool {
			var gone *callerGone
			return errors.As(err, &gone) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
	return b
}

// Name returns the wrapped catalog's name.
func (b *Breaker) Name() Name { return b.next.Name() }

// State reports the current breaker state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// GetTrack implements Catalog.
func (b *Breaker) GetTrack(ctx context.Context, id string) (*Track, error) {
	return call(ctx, b, func() (*Track, error) { return b.next.GetTrack(ctx, id) })
}

// GetArtist implements Catalog.
func (b *Breaker) GetArtist(ctx context.Context, id string) (*Artist, error) {
	return call(ctx, b, func() (*Artist, error) { return b.next.GetArtist(ctx, id) })
}

// GetArtistTopTracks implements Catalog.
func (b *Breaker) GetArtistTopTracks(ctx context.Context, artistID string) ([]Track, error) {
	return call(ctx, b, func() ([]Track, error) { return b.next.GetArtistTopTracks(ctx, artistID) })
}

// GetRelatedArtists implements Catalog.
func (b *Breaker) GetRelatedArtists(ctx context.Context, artistID string) ([]Artist, error) {
	return call(ctx, b, func() ([]Artist, error) { return b.next.GetRelatedArtists(ctx, artistID) })
}

// GetRecommendations implements Catalog.
func (b *Breaker) GetRecommendations(ctx context.Context, q RecommendationQuery) ([]Track, error) {
	return call(ctx, b, func() ([]Track, error) { return b.next.GetRecommendations(ctx, q) })
}

// SearchTracks implements Catalog.
func (b *Breaker) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	return call(ctx, b, func() ([]Track, error) { return b.next.SearchTracks(ctx, query, limit) })
}

// Ping passes through to the wrapped catalog when it supports liveness checks.
func (b *Breaker) Ping(ctx context.Context) error {
	p, ok := b.next.(Pinger)
	if !ok {
		return nil
	}
	_, err := call(ctx, b, func() (struct{}, error) { return struct{}{}, p.Ping(ctx) })
	return err
}

// callerGone marks an error returned after the caller's own context ended,
// so a deadline set by the caller is not blamed on the catalog.
type callerGone struct{ err error }

func (e *callerGone) Error() string { return e.err.Error() }
func (e *callerGone) Unwrap() error { return e.err }

func call[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(func() (any, error) {
		v, err := fn()
		if err != nil && ctx.Err() != nil {
			return v, &callerGone{err: err}
		}
		return v, err
	})
	if err != nil {
		var zero T
		var gone *callerGone
		if errors.As(err, &gone) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "cancelled").Inc()
			return zero, gone.err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			b.logger.Debug("request rejected by open circuit", slog.String("error", err.Error()))
			return zero, &ErrUnavailable{Catalog: b.next.Name(), Cause: err}
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return zero, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return res.(T), nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
