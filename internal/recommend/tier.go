package recommend

import "github.com/sydlexius/soundalike/internal/catalog"

// Tier ranks a discovery strategy. Lower values carry more confidence and
// take precedence when the same track is found twice.
type Tier int

// Tiers in execution order.
const (
	TierArtistTopTracks Tier = iota + 1
	TierRelatedArtists
	TierCatalogEngine
	TierArtistSearch
)

func allTiers() []Tier {
	return []Tier{TierArtistTopTracks, TierRelatedArtists, TierCatalogEngine, TierArtistSearch}
}

// gate is the running total at which the tier is skipped; 0 means it
// always runs.
func (t Tier) gate() int {
	switch t {
	case TierRelatedArtists:
		return relatedThreshold
	case TierCatalogEngine:
		return engineThreshold
	case TierArtistSearch:
		return fallbackThreshold
	default:
		return 0
	}
}

// Similarity returns the display label for the tier. It is a fixed ordinal
// value, not a computed score.
func (t Tier) Similarity() float64 {
	switch t {
	case TierArtistTopTracks:
		return 90
	case TierRelatedArtists:
		return 85
	case TierCatalogEngine:
		return 80
	case TierArtistSearch:
		return 70
	default:
		return 0
	}
}

// String returns the tier's identifier used in logs and metrics.
func (t Tier) String() string {
	switch t {
	case TierArtistTopTracks:
		return "artist_top_tracks"
	case TierRelatedArtists:
		return "related_artists"
	case TierCatalogEngine:
		return "catalog_engine"
	case TierArtistSearch:
		return "artist_search"
	default:
		return "unknown"
	}
}

// Recommendation is one similar track in a response.
type Recommendation struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Artist     string  `json:"artist"`
	PreviewURL string  `json:"preview_url"`
	Similarity float64 `json:"similarity"`
	Reason     string  `json:"reason"`
	Tier       Tier    `json:"tier"`
}

func newRecommendation(t catalog.Track, tier Tier, reason string) Recommendation {
	return Recommendation{
		ID:         t.ID,
		Name:       t.Name,
		Artist:     t.ArtistName,
		PreviewURL: t.PreviewURL,
		Similarity: tier.Similarity(),
		Reason:     reason,
		Tier:       tier,
	}
}

// TierReport describes what one tier did during a request.
type TierReport struct {
	Tier    Tier   `json:"tier"`
	Name    string `json:"name"`
	Ran     bool   `json:"ran"`
	Yield   int    `json:"yield"`
	Skipped string `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}
