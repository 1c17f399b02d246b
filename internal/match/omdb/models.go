package omdb

// SearchItem is one entry in an OMDb search response.
type SearchItem struct {
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	ImdbID string `json:"imdbID"`
	Type   string `json:"Type"`
	Poster string `json:"Poster"`
}

// SearchResponse is the OMDb ?s= search response. OMDb reports failures
// inside a 200 body via Response=False.
type SearchResponse struct {
	Search       []SearchItem `json:"Search"`
	TotalResults string       `json:"totalResults"`
	Response     string       `json:"Response"`
	Error        string       `json:"Error"`
}

// TitleResponse is the OMDb ?i= / ?t= single-title response.
type TitleResponse struct {
	Title    string `json:"Title"`
	Year     string `json:"Year"`
	Released string `json:"Released"`
	Runtime  string `json:"Runtime"`
	Plot     string `json:"Plot"`
	Actors   string `json:"Actors"`
	Poster   string `json:"Poster"`
	ImdbID   string `json:"imdbID"`
	Type     string `json:"Type"`
	Response string `json:"Response"`
	Error    string `json:"Error"`
}
