package tmdb

// MovieResult is a single movie from a TMDB search response.
type MovieResult struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	ReleaseDate  string  `json:"release_date"`
	Overview     string  `json:"overview"`
	PosterPath   *string `json:"poster_path"`
	BackdropPath *string `json:"backdrop_path"`
	Popularity   float64 `json:"popularity"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
}

// SearchMoviesResponse is the TMDB /search/movie response.
type SearchMoviesResponse struct {
	Page         int           `json:"page"`
	Results      []MovieResult `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}

// TVResult is a single series from a TMDB TV search response.
type TVResult struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	FirstAirDate string  `json:"first_air_date"`
	Overview     string  `json:"overview"`
	PosterPath   *string `json:"poster_path"`
	BackdropPath *string `json:"backdrop_path"`
	Popularity   float64 `json:"popularity"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
}

// SearchTVResponse is the TMDB /search/tv response.
type SearchTVResponse struct {
	Page         int        `json:"page"`
	Results      []TVResult `json:"results"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
}

// MovieDetails is the TMDB /movie/{id} response with credits appended.
type MovieDetails struct {
	ID           int      `json:"id"`
	Title        string   `json:"title"`
	ReleaseDate  string   `json:"release_date"`
	Overview     string   `json:"overview"`
	Runtime      int      `json:"runtime"`
	PosterPath   *string  `json:"poster_path"`
	BackdropPath *string  `json:"backdrop_path"`
	Credits      *Credits `json:"credits"`
}

// EpisodeDetails is the TMDB /tv/{id}/season/{s}/episode/{e} response.
type EpisodeDetails struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	Overview      string   `json:"overview"`
	AirDate       string   `json:"air_date"`
	Runtime       int      `json:"runtime"`
	SeasonNumber  int      `json:"season_number"`
	EpisodeNumber int      `json:"episode_number"`
	StillPath     *string  `json:"still_path"`
	Credits       *Credits `json:"credits"`
}

// Credits holds the cast list of a title.
type Credits struct {
	Cast []CastMember `json:"cast"`
}

// CastMember is one entry in a credits cast list, ordered by billing.
type CastMember struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// ErrorResponse is the TMDB error payload.
type ErrorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}
