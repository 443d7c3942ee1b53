// Package recommend finds tracks similar to a seed track by running a fixed
// sequence of discovery tiers against a music catalog.
//
// Tiers run one after another. Each later tier is gated on how many
// candidates the earlier ones produced, so the order and the thresholds are
// part of the contract:
//
//	tier 1  artist top tracks     always
//	tier 2  related artists       while total < 10
//	tier 3  catalog engine        while total < 10
//	tier 4  artist-name search    while total < 5
//
// A tier that fails contributes nothing; only an unresolvable seed track
// fails the whole request.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/sydlexius/soundalike/internal/catalog"
	"github.com/sydlexius/soundalike/internal/metrics"
)

// MaxResults caps the size of a recommendation set.
const MaxResults = 10

// SearchLimit caps the number of tracks returned by Search.
const SearchLimit = 10

// Early-stopping thresholds, compared against the running total of
// candidates before dedup.
const (
	relatedThreshold  = 10
	engineThreshold   = 10
	fallbackThreshold = 5
)

var (
	// ErrSeedNotFound means the seed track could not be resolved. It wraps
	// the catalog error when there is one.
	ErrSeedNotFound = errors.New("seed track not found")

	// ErrNoResults means every tier came back empty.
	ErrNoResults = errors.New("no similar tracks found")
)

// Result is the outcome of a successful recommendation request.
type Result struct {
	Seed            catalog.Track    `json:"seed"`
	Genres          []string         `json:"genres,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
	Tiers           []TierReport     `json:"tiers"`
}

// Engine runs the tiered recommendation strategy. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	catalog catalog.Catalog
	logger  *slog.Logger
}

// NewEngine creates an Engine backed by the given catalog.
func NewEngine(c catalog.Catalog, logger *slog.Logger) *Engine {
	return &Engine{
		catalog: c,
		logger:  logger.With(slog.String("component", "recommend")),
	}
}

type tierFunc func(ctx context.Context) ([]Recommendation, error)

// Recommend returns up to MaxResults tracks similar to seedID, highest tier
// first. It returns ErrSeedNotFound when the seed cannot be resolved and
// ErrNoResults when nothing was found; the partially filled Result is
// returned alongside ErrNoResults so callers can report tier outcomes.
func (e *Engine) Recommend(ctx context.Context, seedID string) (*Result, error) {
	seedID = strings.TrimSpace(seedID)
	if seedID == "" {
		metrics.RecommendRequestsTotal.WithLabelValues("seed_not_found").Inc()
		return nil, ErrSeedNotFound
	}

	seed, err := e.catalog.GetTrack(ctx, seedID)
	if err != nil || seed == nil {
		metrics.RecommendRequestsTotal.WithLabelValues("seed_not_found").Inc()
		if err == nil {
			e.logger.Error("could not get seed track", slog.String("track_id", seedID))
			return nil, ErrSeedNotFound
		}
		e.logger.Error("could not get seed track",
			slog.String("track_id", seedID),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrSeedNotFound, err)
	}

	log := e.logger.With(slog.String("seed_id", seed.ID))
	log.Info("finding recommendations",
		slog.String("track", seed.Name),
		slog.String("artist", seed.ArtistName))

	genres := e.seedGenres(ctx, seed, log)

	runners := map[Tier]tierFunc{
		TierArtistTopTracks: func(ctx context.Context) ([]Recommendation, error) {
			return e.artistTopTracks(ctx, seed)
		},
		TierRelatedArtists: func(ctx context.Context) ([]Recommendation, error) {
			return e.relatedArtistTracks(ctx, seed)
		},
		TierCatalogEngine: func(ctx context.Context) ([]Recommendation, error) {
			return e.catalogEngine(ctx, seed, genres)
		},
		TierArtistSearch: func(ctx context.Context) ([]Recommendation, error) {
			return e.artistSearch(ctx, seed)
		},
	}

	tiers := allTiers()
	result := &Result{Seed: *seed, Genres: genres, Tiers: make([]TierReport, 0, len(tiers))}
	var candidates []Recommendation
	for _, tier := range tiers {
		if err := ctx.Err(); err != nil {
			metrics.RecommendRequestsTotal.WithLabelValues("cancelled").Inc()
			log.Info("recommendation abandoned", slog.String("before_tier", tier.String()))
			return nil, fmt.Errorf("recommendation stopped before %s: %w", tier, err)
		}

		report := TierReport{Tier: tier, Name: tier.String()}
		if gate := tier.gate(); gate > 0 && len(candidates) >= gate {
			report.Skipped = fmt.Sprintf("%d candidates already found (threshold %d)", len(candidates), gate)
			metrics.TierRunsTotal.WithLabelValues(tier.String(), "skipped").Inc()
			result.Tiers = append(result.Tiers, report)
			continue
		}

		recs, err := e.runTier(ctx, tier, runners[tier])
		report.Ran = true
		report.Yield = len(recs)
		if err != nil {
			// A failed tier degrades to an empty contribution.
			report.Error = err.Error()
			metrics.TierRunsTotal.WithLabelValues(tier.String(), "degraded").Inc()
			log.Warn("tier failed",
				slog.String("tier", tier.String()),
				slog.String("error", err.Error()))
		} else {
			metrics.TierRunsTotal.WithLabelValues(tier.String(), "ok").Inc()
			log.Info("tier complete",
				slog.String("tier", tier.String()),
				slog.Int("found", len(recs)))
		}
		metrics.TierYield.WithLabelValues(tier.String()).Observe(float64(len(recs)))
		result.Tiers = append(result.Tiers, report)
		candidates = append(candidates, recs...)
	}

	result.Recommendations = dedupe(candidates, seed.ID, MaxResults)
	metrics.RecommendResultSize.Observe(float64(len(result.Recommendations)))

	if len(result.Recommendations) == 0 {
		metrics.RecommendRequestsTotal.WithLabelValues("no_results").Inc()
		log.Warn("no recommendations found",
			slog.String("track", seed.Name),
			slog.String("artist", seed.ArtistName))
		return result, ErrNoResults
	}

	metrics.RecommendRequestsTotal.WithLabelValues("ok").Inc()
	log.Info("returning recommendations", slog.Int("count", len(result.Recommendations)))
	return result, nil
}

// Search is a direct pass-through to the catalog's text search.
func (e *Engine) Search(ctx context.Context, query string) ([]catalog.Track, error) {
	tracks, err := e.catalog.SearchTracks(ctx, query, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("searching catalog: %w", err)
	}
	e.logger.Info("search complete", slog.String("query", query), slog.Int("found", len(tracks)))
	return firstN(tracks, SearchLimit), nil
}

// seedGenres looks up the seed artist's genres. Failure leaves tier 3
// without genre seeds but does not stop the request.
func (e *Engine) seedGenres(ctx context.Context, seed *catalog.Track, log *slog.Logger) []string {
	if seed.ArtistID == "" {
		return nil
	}
	artist, err := e.catalog.GetArtist(ctx, seed.ArtistID)
	if err != nil {
		log.Warn("seed artist lookup failed, continuing without genres",
			slog.String("artist_id", seed.ArtistID),
			slog.String("error", err.Error()))
		return nil
	}
	if artist == nil {
		return nil
	}
	return artist.Genres
}

// runTier executes one tier and converts a panic into an error.
func (e *Engine) runTier(ctx context.Context, tier Tier, fn tierFunc) (recs []Recommendation, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tier panicked",
				slog.String("tier", tier.String()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			recs, err = nil, fmt.Errorf("tier %s panicked: %v", tier, r)
		}
	}()
	recs, err = fn(ctx)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// dedupe keeps the first occurrence of each track, drops the seed and
// truncates to limit. Input order is tier order, so earlier tiers win.
func dedupe(recs []Recommendation, seedID string, limit int) []Recommendation {
	seen := make(map[string]struct{}, len(recs))
	out := make([]Recommendation, 0, min(len(recs), limit))
	for _, r := range recs {
		if len(out) == limit {
			break
		}
		if r.ID == seedID {
			continue
		}
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
