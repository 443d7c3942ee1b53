package api

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/sydlexius/soundalike/internal/version"
)

// maxBodyBytes bounds request bodies; both endpoints take a single short string.
const maxBodyBytes = 64 << 10

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	body := map[string]string{
		"status":  "ok",
		"version": version.Version,
		"commit":  version.Commit,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	if r.catalogState != nil {
		body["catalog"] = r.catalogState()
	}
	writeJSON(w, http.StatusOK, body)
}

// errorResponse is the failure envelope shared by every endpoint.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, req *http.Request, v any) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	return json.NewDecoder(req.Body).Decode(v)
}
