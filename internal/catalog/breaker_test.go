package catalog_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sydlexius/soundalike/internal/catalog"
	"github.com/sydlexius/soundalike/internal/catalog/catalogtest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testSettings() catalog.BreakerSettings {
	s := catalog.DefaultBreakerSettings()
	s.MinRequests = 3
	s.FailureRatio = 0.5
	s.OpenTimeout = time.Hour
	return s
}

func TestBreakerPassesThrough(t *testing.T) {
	fake := &catalogtest.Fake{
		GetTrackFn: func(_ context.Context, id string) (*catalog.Track, error) {
			return &catalog.Track{ID: id, Name: "Song"}, nil
		},
		GetArtistTopTracksFn: func(_ context.Context, _ string) ([]catalog.Track, error) {
			return catalogtest.Tracks("t", "a", "Artist", 3), nil
		},
	}
	b := catalog.NewBreaker(fake, testSettings(), testLogger())

	track, err := b.GetTrack(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetTrack: %v", err)
	}
	if track.ID != "abc" {
		t.Errorf("ID = %q, want abc", track.ID)
	}

	tracks, err := b.GetArtistTopTracks(context.Background(), "a")
	if err != nil {
		t.Fatalf("GetArtistTopTracks: %v", err)
	}
	if len(tracks) != 3 {
		t.Errorf("expected 3 tracks, got %d", len(tracks))
	}
	if b.Name() != "fake" {
		t.Errorf("Name = %q, want fake", b.Name())
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	fake := &catalogtest.Fake{
		SearchTracksFn: func(_ context.Context, _ string, _ int) ([]catalog.Track, error) {
			return nil, &catalog.ErrUnavailable{Catalog: "fake", Cause: errors.New("503")}
		},
	}
	b := catalog.NewBreaker(fake, testSettings(), testLogger())

	for i := 0; i < 3; i++ {
		if _, err := b.SearchTracks(context.Background(), "q", 10); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("State = %v, want open", b.State())
	}

	_, err := b.SearchTracks(context.Background(), "q", 10)
	var un *catalog.ErrUnavailable
	if !errors.As(err, &un) {
		t.Fatalf("expected ErrUnavailable from open circuit, got %T: %v", err, err)
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected error to wrap ErrOpenState, got %v", err)
	}
	if n := fake.Calls("SearchTracks"); n != 3 {
		t.Errorf("open circuit should not reach the catalog: %d calls", n)
	}
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	fake := &catalogtest.Fake{
		GetTrackFn: func(_ context.Context, id string) (*catalog.Track, error) {
			return nil, &catalog.ErrNotFound{Catalog: "fake", Kind: "track", ID: id}
		},
	}
	b := catalog.NewBreaker(fake, testSettings(), testLogger())

	for i := 0; i < 10; i++ {
		_, err := b.GetTrack(context.Background(), "missing")
		var nf *catalog.ErrNotFound
		if !errors.As(err, &nf) {
			t.Fatalf("call %d: expected ErrNotFound, got %T: %v", i, err, err)
		}
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("not-found answers must not trip the breaker; state = %v", b.State())
	}
}

func TestBreakerPing(t *testing.T) {
	pingErr := errors.New("down")
	fake := &catalogtest.Fake{
		PingFn: func(_ context.Context) error { return pingErr },
	}
	b := catalog.NewBreaker(fake, testSettings(), testLogger())

	if err := b.Ping(context.Background()); !errors.Is(err, pingErr) {
		t.Errorf("Ping = %v, want %v", err, pingErr)
	}
	if fake.Calls("Ping") != 1 {
		t.Errorf("expected 1 Ping call, got %d", fake.Calls("Ping"))
	}
}

func TestRateLimiterMap(t *testing.T) {
	m := catalog.NewRateLimiterMap()

	// Unknown catalogs are not limited.
	if err := m.Wait(context.Background(), "unknown"); err != nil {
		t.Fatalf("Wait(unknown): %v", err)
	}

	m.SetLimit(catalog.NameSpotify, 0.001)
	if err := m.Wait(context.Background(), catalog.NameSpotify); err != nil {
		t.Fatalf("first Wait should use the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Wait(ctx, catalog.NameSpotify); err == nil {
		t.Error("expected second Wait to fail once the burst is spent")
	}

	m.SetLimit(catalog.NameSpotify, 0)
	if err := m.Wait(context.Background(), catalog.NameSpotify); err != nil {
		t.Errorf("Wait after removing limit: %v", err)
	}
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	fake := &catalogtest.Fake{
		GetTrackFn: func(ctx context.Context, _ string) (*catalog.Track, error) {
			if err := ctx.Err(); err != nil {
				return nil, &catalog.ErrUnavailable{Catalog: "fake", Cause: err}
			}
			return &catalog.Track{ID: "ok"}, nil
		},
	}
	b := catalog.NewBreaker(fake, testSettings(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 10; i++ {
		_, err := b.GetTrack(ctx, "abc")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("call %d: expected context.Canceled, got %v", i, err)
		}
	}
	if b.State() != gobreaker.StateClosed {
		t.Fatalf("State = %v after cancelled calls, want closed", b.State())
	}

	if _, err := b.GetTrack(context.Background(), "abc"); err != nil {
		t.Fatalf("healthy call after cancellations: %v", err)
	}
}

func TestBreakerDeadlines(t *testing.T) {
	t.Run("caller deadline is ignored", func(t *testing.T) {
		fake := &catalogtest.Fake{
			GetTrackFn: func(ctx context.Context, _ string) (*catalog.Track, error) {
				<-ctx.Done()
				return nil, &catalog.ErrUnavailable{Catalog: "fake", Cause: ctx.Err()}
			},
		}
		b := catalog.NewBreaker(fake, testSettings(), testLogger())

		for i := 0; i < 5; i++ {
			ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
			_, err := b.GetTrack(ctx, "abc")
			cancel()
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("call %d: expected DeadlineExceeded, got %v", i, err)
			}
		}
		if b.State() != gobreaker.StateClosed {
			t.Fatalf("State = %v, want closed", b.State())
		}
	})

	t.Run("catalog timeout with live caller counts", func(t *testing.T) {
		fake := &catalogtest.Fake{
			GetTrackFn: func(_ context.Context, _ string) (*catalog.Track, error) {
				return nil, &catalog.ErrUnavailable{Catalog: "fake", Cause: context.DeadlineExceeded}
			},
		}
		b := catalog.NewBreaker(fake, testSettings(), testLogger())

		for i := 0; i < 3; i++ {
			if _, err := b.GetTrack(context.Background(), "abc"); err == nil {
				t.Fatalf("call %d: expected error", i)
			}
		}
		if b.State() != gobreaker.StateOpen {
			t.Fatalf("State = %v, want open", b.State())
		}
	})
}
