package catalog

import (
	"context"
	"fmt"
	"time"
)

// Name identifies a catalog backend.
type Name string

// Known catalog names.
const (
	NameSpotify Name = "spotify"
)

// DisplayName returns a human-readable name for the catalog.
func (n Name) DisplayName() string {
	switch n {
	case NameSpotify:
		return "Spotify"
	default:
		return string(n)
	}
}

// Track is a single catalog track. Only the primary artist is kept.
type Track struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ArtistID   string `json:"artist_id"`
	ArtistName string `json:"artist"`
	PreviewURL string `json:"preview_url"`
	Popularity int    `json:"popularity,omitempty"`
}

// Artist is a single catalog artist.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres,omitempty"`
	Popularity int      `json:"popularity,omitempty"`
}

// RecommendationQuery parameterizes a call to the catalog's algorithmic
// recommendation endpoint.
type RecommendationQuery struct {
	SeedTrackID   string
	SeedGenres    []string
	Limit         int
	MinPopularity int
}

// Catalog is the set of lookups the recommendation engine needs from a
// music catalog. Every call may fail with ErrNotFound, ErrUnavailable or
// ErrAuth.
type Catalog interface {
	// Name returns the catalog identifier.
	Name() Name

	// GetTrack fetches a single track by catalog ID.
	GetTrack(ctx context.Context, id string) (*Track, error)

	// GetArtist fetches a single artist, including genre tags.
	GetArtist(ctx context.Context, id string) (*Artist, error)

	// GetArtistTopTracks returns the artist's top tracks in catalog order.
	GetArtistTopTracks(ctx context.Context, artistID string) ([]Track, error)

	// GetRelatedArtists returns similar artists ranked by the catalog.
	GetRelatedArtists(ctx context.Context, artistID string) ([]Artist, error)

	// GetRecommendations queries the catalog's own recommendation engine.
	GetRecommendations(ctx context.Context, q RecommendationQuery) ([]Track, error)

	// SearchTracks runs a free-text track search.
	SearchTracks(ctx context.Context, query string, limit int) ([]Track, error)
}

// Pinger is implemented by catalogs that support a cheap liveness check.
// Bootstrap calls it once before serving traffic.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ErrUnavailable indicates a transient failure (rate-limited, timeout,
// server error, open circuit).
type ErrUnavailable struct {
	Catalog    Name
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("catalog %s unavailable: %v", e.Catalog, e.Cause)
}

func (e *ErrUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the catalog has no entity for the requested ID.
type ErrNotFound struct {
	Catalog Name
	Kind    string
	ID      string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("catalog %s: %s %s not found", e.Catalog, e.Kind, e.ID)
}

// ErrAuth indicates the catalog rejected the configured credentials.
type ErrAuth struct {
	Catalog Name
	Cause   error
}

func (e *ErrAuth) Error() string {
	return fmt.Sprintf("catalog %s: authentication failed: %v", e.Catalog, e.Cause)
}

func (e *ErrAuth) Unwrap() error { return e.Cause }
