package spotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/sydlexius/soundalike/internal/catalog"
	"github.com/sydlexius/soundalike/internal/metrics"
	"github.com/sydlexius/soundalike/internal/version"
)

const (
	defaultBaseURL  = "https://api.spotify.com/v1"
	defaultTokenURL = "https://accounts.spotify.com/api/token"
	defaultMarket   = "US"
	defaultTimeout  = 10 * time.Second

	maxBodyBytes = 2 * 1024 * 1024
)

// Config holds the adapter settings. Empty fields fall back to defaults.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	Market       string
	Timeout      time.Duration // per-call bound, covers rate-limit waits and the HTTP round trip
}

// Adapter implements catalog.Catalog for the Spotify Web API using the
// client-credentials grant. Tokens are cached and refreshed by the oauth2
// transport, so one Adapter should be shared by the whole process.
type Adapter struct {
	client  *http.Client
	limiter *catalog.RateLimiterMap
	logger  *slog.Logger
	baseURL string
	market  string
	timeout time.Duration
}

// New creates an Adapter that authenticates with the client-credentials grant.
func New(cfg Config, limiter *catalog.RateLimiterMap, logger *slog.Logger) *Adapter {
	cfg = withDefaults(cfg)
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	// The token endpoint gets the same bound as regular calls.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})
	client := cc.Client(tokenCtx)
	client.Timeout = cfg.Timeout
	return NewWithClient(client, cfg, limiter, logger)
}

// NewWithClient creates an Adapter around a preconfigured HTTP client (for
// testing, or for callers that manage authentication themselves).
func NewWithClient(client *http.Client, cfg Config, limiter *catalog.RateLimiterMap, logger *slog.Logger) *Adapter {
	cfg = withDefaults(cfg)
	return &Adapter{
		client:  client,
		limiter: limiter,
		logger:  logger.With(slog.String("catalog", string(catalog.NameSpotify))),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		market:  cfg.Market,
		timeout: cfg.Timeout,
	}
}

func withDefaults(cfg Config) Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.Market == "" {
		cfg.Market = defaultMarket
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return cfg
}

// Name returns the catalog identifier.
func (a *Adapter) Name() catalog.Name { return catalog.NameSpotify }

// Ping performs the startup warm-up call: a one-result search. It fails when
// the credentials are rejected or the API is unreachable.
func (a *Adapter) Ping(ctx context.Context) error {
	_, err := a.SearchTracks(ctx, "test", 1)
	return err
}

// GetTrack fetches a track by ID. Spotify URIs and open.spotify.com links
// are accepted as well.
func (a *Adapter) GetTrack(ctx context.Context, id string) (*catalog.Track, error) {
	tid, ok := ParseID(id, "track")
	if !ok {
		return nil, &catalog.ErrNotFound{Catalog: catalog.NameSpotify, Kind: "track", ID: id}
	}

	var obj trackObject
	if err := a.get(ctx, "track", "/tracks/"+url.PathEscape(tid), nil, &obj); err != nil {
		return nil, notFoundAs(err, "track", id)
	}
	if obj.ID == "" {
		return nil, &catalog.ErrNotFound{Catalog: catalog.NameSpotify, Kind: "track", ID: id}
	}
	t := toTrack(&obj)
	return &t, nil
}

// GetArtist fetches an artist, including genre tags.
func (a *Adapter) GetArtist(ctx context.Context, id string) (*catalog.Artist, error) {
	aid, ok := ParseID(id, "artist")
	if !ok {
		return nil, &catalog.ErrNotFound{Catalog: catalog.NameSpotify, Kind: "artist", ID: id}
	}

	var obj artistObject
	if err := a.get(ctx, "artist", "/artists/"+url.PathEscape(aid), nil, &obj); err != nil {
		return nil, notFoundAs(err, "artist", id)
	}
	if obj.ID == "" {
		return nil, &catalog.ErrNotFound{Catalog: catalog.NameSpotify, Kind: "artist", ID: id}
	}
	return toArtist(&obj), nil
}

// GetArtistTopTracks returns the artist's top tracks in the configured market.
func (a *Adapter) GetArtistTopTracks(ctx context.Context, artistID string) ([]catalog.Track, error) {
	aid, ok := ParseID(artistID, "artist")
	if !ok {
		return nil, &catalog.ErrNotFound{Catalog: catalog.NameSpotify, Kind: "artist", ID: artistID}
	}

	params := url.Values{"market": {a.market}}
	var resp topTracksResponse
	if err := a.get(ctx, "artist_top_tracks", "/artists/"+url.PathEscape(aid)+"/top-tracks", params, &resp); err != nil {
		return nil, notFoundAs(err, "artist", artistID)
	}

	tracks := toTracks(resp.Tracks)
	a.logger.Debug("top tracks fetched",
		slog.String("artist_id", aid),
		slog.Int("results", len(tracks)))
	return tracks, nil
}

// GetRelatedArtists returns artists Spotify considers similar, best match first.
func (a *Adapter) GetRelatedArtists(ctx context.Context, artistID string) ([]catalog.Artist, error) {
	aid, ok := ParseID(artistID, "artist")
	if !ok {
		return nil, &catalog.ErrNotFound{Catalog: catalog.NameSpotify, Kind: "artist", ID: artistID}
	}

	var resp relatedArtistsResponse
	if err := a.get(ctx, "related_artists", "/artists/"+url.PathEscape(aid)+"/related-artists", nil, &resp); err != nil {
		return nil, notFoundAs(err, "artist", artistID)
	}

	artists := make([]catalog.Artist, 0, len(resp.Artists))
	for _, obj := range resp.Artists {
		if obj == nil || obj.ID == "" {
			continue
		}
		artists = append(artists, *toArtist(obj))
	}
	return artists, nil
}

// GetRecommendations queries Spotify's recommendation endpoint with a single
// seed track and optional seed genres.
func (a *Adapter) GetRecommendations(ctx context.Context, q catalog.RecommendationQuery) ([]catalog.Track, error) {
	tid, ok := ParseID(q.SeedTrackID, "track")
	if !ok {
		return nil, &catalog.ErrNotFound{Catalog: catalog.NameSpotify, Kind: "track", ID: q.SeedTrackID}
	}

	params := url.Values{"seed_tracks": {tid}}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.MinPopularity > 0 {
		params.Set("min_popularity", strconv.Itoa(q.MinPopularity))
	}
	if len(q.SeedGenres) > 0 {
		params.Set("seed_genres", strings.Join(q.SeedGenres, ","))
	}

	var resp recommendationsResponse
	if err := a.get(ctx, "recommendations", "/recommendations", params, &resp); err != nil {
		return nil, err
	}
	return toTracks(resp.Tracks), nil
}

// SearchTracks runs a free-text track search.
func (a *Adapter) SearchTracks(ctx context.Context, query string, limit int) ([]catalog.Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	params := url.Values{
		"q":     {query},
		"type":  {"track"},
		"limit": {strconv.Itoa(limit)},
	}
	var resp searchResponse
	if err := a.get(ctx, "search", "/search", params, &resp); err != nil {
		return nil, err
	}

	tracks := toTracks(resp.Tracks.Items)
	a.logger.Debug("track search completed",
		slog.String("query", query),
		slog.Int("results", len(tracks)))
	return tracks, nil
}

// get performs a rate-limited, time-bounded GET and decodes the JSON body into v.
func (a *Adapter) get(ctx context.Context, endpoint, path string, params url.Values, v any) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	body, err := a.doRequest(ctx, path, params)
	metrics.CatalogRequestDuration.WithLabelValues(string(catalog.NameSpotify), endpoint).Observe(time.Since(start).Seconds())
	metrics.CatalogRequestsTotal.WithLabelValues(string(catalog.NameSpotify), endpoint, outcomeLabel(err)).Inc()
	if err != nil {
		a.logger.Debug("catalog request failed",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()))
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing %s response: %w", endpoint, err)
	}
	return nil
}

// doRequest executes a GET request and returns the response body.
func (a *Adapter) doRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := a.limiter.Wait(ctx, catalog.NameSpotify); err != nil {
		return nil, &catalog.ErrUnavailable{
			Catalog: catalog.NameSpotify,
			Cause:   fmt.Errorf("rate limiter: %w", err),
		}
	}

	reqURL := a.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := a.client.Do(req) //nolint:gosec // URL built from adapter config and validated IDs
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, &catalog.ErrAuth{Catalog: catalog.NameSpotify, Cause: err}
		}
		return nil, &catalog.ErrUnavailable{Catalog: catalog.NameSpotify, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &catalog.ErrUnavailable{Catalog: catalog.NameSpotify, Cause: fmt.Errorf("reading body: %w", err)}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, &catalog.ErrNotFound{Catalog: catalog.NameSpotify, Kind: "resource", ID: path}
	case http.StatusBadRequest:
		// Malformed IDs come back as 400 "invalid id".
		msg := apiMessage(body)
		if lower := strings.ToLower(msg); strings.Contains(lower, "invalid id") || strings.Contains(lower, "base62") {
			return nil, &catalog.ErrNotFound{Catalog: catalog.NameSpotify, Kind: "resource", ID: path}
		}
		return nil, fmt.Errorf("spotify: bad request: %s", msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &catalog.ErrAuth{
			Catalog: catalog.NameSpotify,
			Cause:   fmt.Errorf("status %d: %s", resp.StatusCode, apiMessage(body)),
		}
	case http.StatusTooManyRequests:
		return nil, &catalog.ErrUnavailable{
			Catalog:    catalog.NameSpotify,
			Cause:      errors.New("rate limited by server"),
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	default:
		return nil, &catalog.ErrUnavailable{
			Catalog: catalog.NameSpotify,
			Cause:   fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
}

// ParseID extracts a bare Spotify ID of the given kind from a bare ID, a
// "spotify:<kind>:<id>" URI or an open.spotify.com link. It reports false
// when nothing usable remains.
func ParseID(s, kind string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if rest, ok := strings.CutPrefix(s, "spotify:"+kind+":"); ok {
		s = rest
	} else if u, err := url.Parse(s); err == nil && u.Host != "" {
		if !strings.HasSuffix(u.Host, "spotify.com") {
			return "", false
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		// Localized links look like /intl-de/track/<id>.
		if len(parts) < 2 || parts[len(parts)-2] != kind {
			return "", false
		}
		s = parts[len(parts)-1]
	}

	if !isBase62(s) {
		return "", false
	}
	return s, true
}

// isBase62 reports whether s is a plausible Spotify ID.
func isBase62(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}

func toTrack(obj *trackObject) catalog.Track {
	t := catalog.Track{
		ID:         obj.ID,
		Name:       obj.Name,
		Popularity: obj.Popularity,
	}
	if len(obj.Artists) > 0 {
		t.ArtistID = obj.Artists[0].ID
		t.ArtistName = obj.Artists[0].Name
	}
	if obj.PreviewURL != nil {
		t.PreviewURL = *obj.PreviewURL
	}
	return t
}

func toTracks(objs []*trackObject) []catalog.Track {
	tracks := make([]catalog.Track, 0, len(objs))
	for _, obj := range objs {
		if obj == nil || obj.ID == "" {
			continue
		}
		tracks = append(tracks, toTrack(obj))
	}
	return tracks
}

func toArtist(obj *artistObject) *catalog.Artist {
	return &catalog.Artist{
		ID:         obj.ID,
		Name:       obj.Name,
		Genres:     obj.Genres,
		Popularity: obj.Popularity,
	}
}

// notFoundAs rewrites a generic not-found error with the entity kind and the
// caller's original ID.
func notFoundAs(err error, kind, id string) error {
	var nf *catalog.ErrNotFound
	if errors.As(err, &nf) {
		return &catalog.ErrNotFound{Catalog: catalog.NameSpotify, Kind: kind, ID: id}
	}
	return err
}

func apiMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Message == "" {
		return "unknown error"
	}
	return e.Error.Message
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var (
		nf   *catalog.ErrNotFound
		un   *catalog.ErrUnavailable
		auth *catalog.ErrAuth
	)
	switch {
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &un):
		return "unavailable"
	case errors.As(err, &auth):
		return "auth"
	default:
		return "error"
	}
}
