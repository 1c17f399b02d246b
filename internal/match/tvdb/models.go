package tvdb

// LoginRequest is the TVDB /login request body.
type LoginRequest struct {
	APIKey string `json:"apikey"`
}

// LoginResponse is the TVDB /login response.
type LoginResponse struct {
	Status string `json:"status"`
	Data   struct {
		Token string `json:"token"`
	} `json:"data"`
}

// SearchResult is a single item from the TVDB /search response.
type SearchResult struct {
	ObjectID  string            `json:"objectID"`
	TvdbID    string            `json:"tvdb_id"`
	Type      string            `json:"type"`
	Name      string            `json:"name"`
	Year      string            `json:"year"`
	Overview  string            `json:"overview"`
	Overviews map[string]string `json:"overviews"`
	ImageURL  string            `json:"image_url"`
	Thumbnail string            `json:"thumbnail"`
}

// SearchResponse is the TVDB /search response.
type SearchResponse struct {
	Status string         `json:"status"`
	Data   []SearchResult `json:"data"`
}

// Character is one cast entry from an extended record.
type Character struct {
	PeopleName string `json:"personName"`
	Sort       int    `json:"sort"`
	Type       int    `json:"type"`
}

// MovieExtended is the TVDB /movies/{id}/extended payload.
type MovieExtended struct {
	ID         int         `json:"id"`
	Name       string      `json:"name"`
	Year       string      `json:"year"`
	Runtime    int         `json:"runtime"`
	Image      string      `json:"image"`
	Characters []Character `json:"characters"`
}

// MovieExtendedResponse wraps the extended movie record.
type MovieExtendedResponse struct {
	Status string        `json:"status"`
	Data   MovieExtended `json:"data"`
}

// SeriesExtended is the TVDB /series/{id}/extended payload.
type SeriesExtended struct {
	ID         int         `json:"id"`
	Name       string      `json:"name"`
	Year       string      `json:"year"`
	Image      string      `json:"image"`
	Characters []Character `json:"characters"`
}

// SeriesExtendedResponse wraps the extended series record.
type SeriesExtendedResponse struct {
	Status string         `json:"status"`
	Data   SeriesExtended `json:"data"`
}

// Episode is one episode record from a series episode listing.
type Episode struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Aired         string `json:"aired"`
	Runtime       int    `json:"runtime"`
	Overview      string `json:"overview"`
	Image         string `json:"image"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"number"`
}

// SeriesEpisodesResponse is the TVDB /series/{id}/episodes/default response.
type SeriesEpisodesResponse struct {
	Status string `json:"status"`
	Data   struct {
		Episodes []Episode `json:"episodes"`
	} `json:"data"`
}
