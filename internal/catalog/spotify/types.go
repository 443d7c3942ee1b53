package spotify

// artistRef is the simplified artist object embedded in track objects.
type artistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// trackObject is a full track object from the Web API.
type trackObject struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Artists    []artistRef `json:"artists"`
	PreviewURL *string     `json:"preview_url"`
	Popularity int         `json:"popularity"`
	IsPlayable *bool       `json:"is_playable,omitempty"`
}

// artistObject is a full artist object from the Web API.
type artistObject struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
}

// topTracksResponse is the body of GET /artists/{id}/top-tracks.
type topTracksResponse struct {
	Tracks []*trackObject `json:"tracks"`
}

// relatedArtistsResponse is the body of GET /artists/{id}/related-artists.
type relatedArtistsResponse struct {
	Artists []*artistObject `json:"artists"`
}

// recommendationsResponse is the body of GET /recommendations. Unavailable
// tracks come back as null entries.
type recommendationsResponse struct {
	Tracks []*trackObject `json:"tracks"`
}

// searchResponse is the body of GET /search?type=track.
type searchResponse struct {
	Tracks struct {
		Items []*trackObject `json:"items"`
		Total int            `json:"total"`
	} `json:"tracks"`
}

// errorResponse is the regular error object the Web API returns.
type errorResponse struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}
