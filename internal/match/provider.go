// Package match implements the multi-provider matching engine: the provider
// contract, the retrying caller, similarity scoring, the merge algorithm,
// the resolver that orchestrates them, and the per-item match state machine.
package match

import (
	"context"

	"github.com/reelmatch/reelmatch/internal/media"
)

// Provider is the capability set every metadata source implements. Variants
// differ only in how they translate a query into wire calls and parse the
// response; the resolver never branches on provider identity except for
// priority ordering.
type Provider interface {
	// Name returns the provider name, e.g. "tmdb".
	Name() string

	// IsConfigured returns true if the provider has required credentials.
	IsConfigured() bool

	// SearchMovies searches for movies. Year 0 disables year filtering.
	SearchMovies(ctx context.Context, title string, year int) ([]media.Candidate, error)

	// SearchEpisodes searches for a specific TV episode.
	SearchEpisodes(ctx context.Context, title string, year, season, episode int) ([]media.Candidate, error)

	// MovieDetails fetches full movie details by provider-scoped id.
	MovieDetails(ctx context.Context, id string) (*media.Candidate, error)

	// EpisodeDetails fetches full episode details by provider-scoped id.
	EpisodeDetails(ctx context.Context, id string, season, episode int) (*media.Candidate, error)

	// Cast fetches the ordered cast list for a title.
	Cast(ctx context.Context, id string, mediaType media.MediaType) ([]string, error)
}
