package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sydlexius/soundalike/internal/catalog"
)

// Per-tier fan-out limits.
const (
	topTracksPerArtist     = 5
	relatedArtistLimit     = 3
	relatedTracksPerArtist = 2
	engineLimit            = 10
	engineMinPopularity    = 20
	maxSeedGenres          = 2
	fallbackSearchLimit    = 10
)

const (
	reasonSameArtist    = "Same artist's top track"
	reasonSimilarArtist = "Top track by similar artist %s"
	reasonCatalogEngine = "Recommended by %s"
	reasonArtistSearch  = "Other song by this artist"
)

var errNoSeedArtist = errors.New("seed track has no artist")

// artistTopTracks is tier 1: the seed artist's own top tracks.
func (e *Engine) artistTopTracks(ctx context.Context, seed *catalog.Track) ([]Recommendation, error) {
	if seed.ArtistID == "" {
		return nil, errNoSeedArtist
	}
	tracks, err := e.catalog.GetArtistTopTracks(ctx, seed.ArtistID)
	if err != nil {
		return nil, fmt.Errorf("fetching top tracks for %s: %w", seed.ArtistID, err)
	}
	return label(firstN(tracks, topTracksPerArtist), seed.ID, TierArtistTopTracks, reasonSameArtist), nil
}

// relatedArtistTracks is tier 2: the top tracks of the closest related
// artists. A failing artist is skipped; the tier only fails when the
// related-artist lookup fails or every artist it tried failed.
func (e *Engine) relatedArtistTracks(ctx context.Context, seed *catalog.Track) ([]Recommendation, error) {
	if seed.ArtistID == "" {
		return nil, errNoSeedArtist
	}
	related, err := e.catalog.GetRelatedArtists(ctx, seed.ArtistID)
	if err != nil {
		return nil, fmt.Errorf("fetching related artists for %s: %w", seed.ArtistID, err)
	}

	var (
		recs []Recommendation
		errs []error
	)
	artists := firstN(related, relatedArtistLimit)
	for _, artist := range artists {
		tracks, err := e.catalog.GetArtistTopTracks(ctx, artist.ID)
		if err != nil {
			e.logger.Warn("skipping related artist",
				slog.String("artist_id", artist.ID),
				slog.String("artist", artist.Name),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("top tracks for %s: %w", artist.ID, err))
			continue
		}
		reason := fmt.Sprintf(reasonSimilarArtist, artist.Name)
		recs = append(recs, label(firstN(tracks, relatedTracksPerArtist), seed.ID, TierRelatedArtists, reason)...)
	}

	if len(artists) > 0 && len(errs) == len(artists) {
		return nil, errors.Join(errs...)
	}
	return recs, nil
}

// catalogEngine is tier 3: the catalog's own recommendation endpoint seeded
// with the track and up to two of the artist's genres.
func (e *Engine) catalogEngine(ctx context.Context, seed *catalog.Track, genres []string) ([]Recommendation, error) {
	tracks, err := e.catalog.GetRecommendations(ctx, catalog.RecommendationQuery{
		SeedTrackID:   seed.ID,
		SeedGenres:    firstN(genres, maxSeedGenres),
		Limit:         engineLimit,
		MinPopularity: engineMinPopularity,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching catalog recommendations: %w", err)
	}
	reason := fmt.Sprintf(reasonCatalogEngine, e.catalog.Name().DisplayName())
	return label(tracks, seed.ID, TierCatalogEngine, reason), nil
}

// artistSearch is tier 4: a plain text search for the artist's name.
func (e *Engine) artistSearch(ctx context.Context, seed *catalog.Track) ([]Recommendation, error) {
	if seed.ArtistName == "" {
		return nil, errNoSeedArtist
	}
	tracks, err := e.catalog.SearchTracks(ctx, seed.ArtistName, fallbackSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", seed.ArtistName, err)
	}
	return label(tracks, seed.ID, TierArtistSearch, reasonArtistSearch), nil
}

// label converts tracks into recommendations, dropping the seed.
func label(tracks []catalog.Track, seedID string, tier Tier, reason string) []Recommendation {
	recs := make([]Recommendation, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" || t.ID == seedID {
			continue
		}
		recs = append(recs, newRecommendation(t, tier, reason))
	}
	return recs
}

func firstN[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
