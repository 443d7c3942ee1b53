// Package catalogtest provides an in-memory catalog.Catalog for tests.
package catalogtest

import (
	"context"
	"strconv"
	"sync"

	"github.com/sydlexius/soundalike/internal/catalog"
)

// Fake implements catalog.Catalog. Each method delegates to the matching
// function field when set and returns nil, nil otherwise. Every call is
// counted by method name.
type Fake struct {
	GetTrackFn           func(ctx context.Context, id string) (*catalog.Track, error)
	GetArtistFn          func(ctx context.Context, id string) (*catalog.Artist, error)
	GetArtistTopTracksFn func(ctx context.Context, artistID string) ([]catalog.Track, error)
	GetRelatedArtistsFn  func(ctx context.Context, artistID string) ([]catalog.Artist, error)
	GetRecommendationsFn func(ctx context.Context, q catalog.RecommendationQuery) ([]catalog.Track, error)
	SearchTracksFn       func(ctx context.Context, query string, limit int) ([]catalog.Track, error)
	PingFn               func(ctx context.Context) error

	mu    sync.Mutex
	calls map[string]int
}

func (f *Fake) record(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
}

// Calls returns how many times the named method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Name implements catalog.Catalog.
func (f *Fake) Name() catalog.Name { return "fake" }

// GetTrack implements catalog.Catalog.
func (f *Fake) GetTrack(ctx context.Context, id string) (*catalog.Track, error) {
	f.record("GetTrack")
	if f.GetTrackFn != nil {
		return f.GetTrackFn(ctx, id)
	}
	return nil, nil
}

// GetArtist implements catalog.Catalog.
func (f *Fake) GetArtist(ctx context.Context, id string) (*catalog.Artist, error) {
	f.record("GetArtist")
	if f.GetArtistFn != nil {
		return f.GetArtistFn(ctx, id)
	}
	return nil, nil
}

// GetArtistTopTracks implements catalog.Catalog.
func (f *Fake) GetArtistTopTracks(ctx context.Context, artistID string) ([]catalog.Track, error) {
	f.record("GetArtistTopTracks")
	if f.GetArtistTopTracksFn != nil {
		return f.GetArtistTopTracksFn(ctx, artistID)
	}
	return nil, nil
}

// GetRelatedArtists implements catalog.Catalog.
func (f *Fake) GetRelatedArtists(ctx context.Context, artistID string) ([]catalog.Artist, error) {
	f.record("GetRelatedArtists")
	if f.GetRelatedArtistsFn != nil {
		return f.GetRelatedArtistsFn(ctx, artistID)
	}
	return nil, nil
}

// GetRecommendations implements catalog.Catalog.
func (f *Fake) GetRecommendations(ctx context.Context, q catalog.RecommendationQuery) ([]catalog.Track, error) {
	f.record("GetRecommendations")
	if f.GetRecommendationsFn != nil {
		return f.GetRecommendationsFn(ctx, q)
	}
	return nil, nil
}

// SearchTracks implements catalog.Catalog.
func (f *Fake) SearchTracks(ctx context.Context, query string, limit int) ([]catalog.Track, error) {
	f.record("SearchTracks")
	if f.SearchTracksFn != nil {
		return f.SearchTracksFn(ctx, query, limit)
	}
	return nil, nil
}

// Ping implements catalog.Pinger.
func (f *Fake) Ping(ctx context.Context) error {
	f.record("Ping")
	if f.PingFn != nil {
		return f.PingFn(ctx)
	}
	return nil
}

// Tracks builds n tracks by the given artist with IDs prefix+"1".."n".
func Tracks(prefix, artistID, artistName string, n int) []catalog.Track {
	out := make([]catalog.Track, 0, n)
	for i := 1; i <= n; i++ {
		id := prefix + strconv.Itoa(i)
		out = append(out, catalog.Track{
			ID:         id,
			Name:       "Song " + id,
			ArtistID:   artistID,
			ArtistName: artistName,
		})
	}
	return out
}
