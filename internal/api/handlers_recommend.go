package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sydlexius/soundalike/internal/catalog"
	"github.com/sydlexius/soundalike/internal/logging"
	"github.com/sydlexius/soundalike/internal/recommend"
	"github.com/sydlexius/soundalike/internal/validation"
)

const (
	msgNoQuery         = "No search query provided"
	msgSearchFailed    = "Error searching for songs"
	msgNoTrackID       = "No track ID provided"
	msgInvalidTrack    = "Invalid track ID or catalog error"
	msgNoResults       = "Could not find similar songs. Please try another track."
	msgRecommendFailed = "Server error while getting recommendations"
)

type searchRequest struct {
	Query string `json:"query" validate:"notblank"`
}

type recommendRequest struct {
	TrackID string `json:"track_id" validate:"notblank"`
}

// trackSummary is the public shape of a catalog track.
type trackSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	PreviewURL string `json:"preview_url"`
}

func summarize(t catalog.Track) trackSummary {
	return trackSummary{ID: t.ID, Name: t.Name, Artist: t.ArtistName, PreviewURL: t.PreviewURL}
}

type searchResponse struct {
	Success bool           `json:"success"`
	Tracks  []trackSummary `json:"tracks"`
}

type recommendResponse struct {
	Success         bool                       `json:"success"`
	Seed            trackSummary               `json:"seed"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
	Tiers           []recommend.TierReport     `json:"tiers,omitempty"`
}

// handleSearch handles POST /search.
func (r *Router) handleSearch(w http.ResponseWriter, req *http.Request) {
	log := logging.FromContext(req.Context(), r.logger)

	var body searchRequest
	if err := decodeJSON(w, req, &body); err != nil || validation.Struct(&body) != nil {
		writeError(w, http.StatusBadRequest, msgNoQuery)
		return
	}

	log.Info("searching", slog.String("query", body.Query))
	tracks, err := r.engine.Search(req.Context(), body.Query)
	if err != nil {
		log.Error("search failed", slog.String("query", body.Query), slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, msgSearchFailed)
		return
	}

	resp := searchResponse{Success: true, Tracks: make([]trackSummary, 0, len(tracks))}
	for _, t := range tracks {
		resp.Tracks = append(resp.Tracks, summarize(t))
	}
	log.Info("search complete", slog.Int("found", len(resp.Tracks)))
	writeJSON(w, http.StatusOK, resp)
}

// handleRecommend handles POST /recommend.
func (r *Router) handleRecommend(w http.ResponseWriter, req *http.Request) {
	log := logging.FromContext(req.Context(), r.logger)

	var body recommendRequest
	if err := decodeJSON(w, req, &body); err != nil || validation.Struct(&body) != nil {
		log.Warn("recommend request without track id")
		writeError(w, http.StatusBadRequest, msgNoTrackID)
		return
	}

	result, err := r.engine.Recommend(req.Context(), body.TrackID)
	switch {
	case err == nil:
	case errors.Is(err, recommend.ErrSeedNotFound):
		writeError(w, seedErrorStatus(err), msgInvalidTrack)
		return
	case errors.Is(err, recommend.ErrNoResults):
		writeError(w, http.StatusOK, msgNoResults)
		return
	default:
		log.Error("recommend failed",
			slog.String("track_id", body.TrackID),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, msgRecommendFailed)
		return
	}

	log.Info("recommendations ready",
		slog.String("track_id", result.Seed.ID),
		slog.Int("count", len(result.Recommendations)))
	writeJSON(w, http.StatusOK, recommendResponse{
		Success:         true,
		Seed:            summarize(result.Seed),
		Recommendations: result.Recommendations,
		Tiers:           result.Tiers,
	})
}

// seedErrorStatus separates a seed that does not exist from a catalog that
// could not be asked.
func seedErrorStatus(err error) int {
	var unavailable *catalog.ErrUnavailable
	var auth *catalog.ErrAuth
	if errors.As(err, &unavailable) || errors.As(err, &auth) {
		return http.StatusBadGateway
	}
	return http.StatusNotFound
}
