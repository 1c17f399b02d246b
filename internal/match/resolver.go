package match

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelmatch/reelmatch/internal/cache"
	"github.com/reelmatch/reelmatch/internal/media"
)

// ResolverConfig holds the resolver's tuning knobs, supplied once at
// construction. No component reads process-wide mutable state.
type ResolverConfig struct {
	// Priority is the configured provider order, used for merge tie-breaks.
	Priority []string
	// AutoAcceptThreshold is the minimum score for an automatic match.
	AutoAcceptThreshold float64
	// Weights controls similarity scoring.
	Weights Weights
	// CacheTTL bounds how long provider answers are reused.
	CacheTTL time.Duration
	// Caller is the retry policy for individual provider calls.
	Caller CallerConfig
}

// DefaultResolverConfig returns the default resolver tuning.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		AutoAcceptThreshold: 0.65,
		Weights:             DefaultWeights(),
		CacheTTL:            6 * time.Hour,
		Caller:              DefaultCallerConfig(),
	}
}

// Resolution is the resolver's answer for one query: the ranked candidate
// list (for manual-search UIs), the confident winner if any, and whether the
// result is degraded by total provider unavailability.
type Resolution struct {
	Query      media.MediaQuery  `json:"query"`
	Candidates []media.Candidate `json:"candidates"`
	Best       *media.Candidate  `json:"best,omitempty"`
	Degraded   bool              `json:"degraded,omitempty"`
}

// Resolver orchestrates cache lookups, concurrent provider fan-out, merging,
// and the detail-enrichment pass for one query at a time.
type Resolver struct {
	providers []Provider
	store     cache.Store
	cfg       ResolverConfig
	logger    zerolog.Logger
}

// NewResolver creates a resolver over the configured providers, ordered by
// cfg.Priority. Unconfigured providers are dropped; zero usable providers is
// a construction error so it surfaces at startup, not per task.
func NewResolver(providers []Provider, store cache.Store, cfg ResolverConfig, logger zerolog.Logger) (*Resolver, error) {
	if cfg.AutoAcceptThreshold == 0 {
		cfg.AutoAcceptThreshold = 0.65
	}
	if cfg.Weights.Title == 0 && cfg.Weights.Year == 0 {
		cfg.Weights = DefaultWeights()
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 6 * time.Hour
	}
	if cfg.Caller.MaxAttempts == 0 {
		cfg.Caller = DefaultCallerConfig()
	}

	ordered := orderByPriority(providers, cfg.Priority)
	usable := make([]Provider, 0, len(ordered))
	for _, p := range ordered {
		if p.IsConfigured() {
			usable = append(usable, p)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNoProvidersConfigured
	}

	return &Resolver{
		providers: usable,
		store:     store,
		cfg:       cfg,
		logger:    logger.With().Str("component", "resolver").Logger(),
	}, nil
}

// Providers returns the names of the usable providers in priority order.
func (r *Resolver) Providers() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// Resolve runs the automatic path for one query. It never fails on provider
// errors: total provider unavailability yields a degraded Resolution with no
// winner. The only returned error is context cancellation.
func (r *Resolver) Resolve(ctx context.Context, query media.MediaQuery) (*Resolution, error) {
	candidates, degraded, err := r.searchAll(ctx, query)
	if err != nil {
		return nil, err
	}

	ranked := Merge(candidates, r.cfg.Priority)
	best := SelectBest(ranked, r.cfg.AutoAcceptThreshold)
	if best != nil {
		r.enrichDetails(ctx, query, best)
	}

	event := r.logger.Debug()
	if best != nil {
		event = r.logger.Info()
	}
	event.
		Str("query", query.String()).
		Int("candidates", len(ranked)).
		Bool("matched", best != nil).
		Bool("degraded", degraded).
		Msg("resolution completed")

	return &Resolution{
		Query:      query,
		Candidates: ranked,
		Best:       best,
		Degraded:   degraded,
	}, nil
}

// Search runs the manual path: the same fan-out and merge, but no
// auto-accept decision and no detail enrichment.
func (r *Resolver) Search(ctx context.Context, query media.MediaQuery) ([]media.Candidate, error) {
	candidates, _, err := r.searchAll(ctx, query)
	if err != nil {
		return nil, err
	}
	return Merge(candidates, r.cfg.Priority), nil
}

type providerResult struct {
	source     string
	candidates []media.Candidate
	err        error
}

// searchAll returns the scored candidate union for a query, consulting the
// cache first. degraded is true only when every provider failed with an
// error, as opposed to legitimately finding nothing.
func (r *Resolver) searchAll(ctx context.Context, query media.MediaQuery) ([]media.Candidate, bool, error) {
	key := r.searchKey(query)

	if data, ok := r.cacheGet(ctx, key); ok {
		var cached []media.Candidate
		if err := json.Unmarshal(data, &cached); err == nil {
			r.logger.Debug().Str("query", query.String()).Msg("search cache hit")
			return cached, false, nil
		}
	}

	results := make(chan providerResult, len(r.providers))
	var wg sync.WaitGroup
	for _, p := range r.providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			results <- r.searchProvider(ctx, p, query)
		}(p)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var all []media.Candidate
	responded := 0
	failed := 0
	for res := range results {
		if res.err != nil {
			failed++
			r.logger.Warn().
				Err(res.err).
				Str("provider", res.source).
				Str("query", query.String()).
				Msg("provider excluded from this query")
			continue
		}
		responded++
		all = append(all, res.candidates...)
	}

	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}

	for i := range all {
		all[i].Score = ScoreCandidate(query, all[i], r.cfg.Weights)
	}

	degraded := responded == 0 && failed > 0
	if !degraded {
		// Empty results are cached too; a provider outage is not, so the
		// next attempt retries the providers instead of memoizing the outage.
		r.cachePut(ctx, key, all)
	}
	return all, degraded, nil
}

// searchProvider runs one provider's search through the retrying caller.
// NotFound is a legitimate empty answer, not a failure.
func (r *Resolver) searchProvider(ctx context.Context, p Provider, query media.MediaQuery) providerResult {
	op := p.Name() + ".search"
	candidates, err := CallWithRetry(ctx, r.logger, r.cfg.Caller, op, func(ctx context.Context) ([]media.Candidate, error) {
		if query.IsTV() {
			return p.SearchEpisodes(ctx, query.Title, query.Year, query.Season, query.Episode)
		}
		return p.SearchMovies(ctx, query.Title, query.Year)
	})
	if err != nil {
		if isNotFound(err) {
			return providerResult{source: p.Name()}
		}
		return providerResult{source: p.Name(), err: err}
	}
	return providerResult{source: p.Name(), candidates: candidates}
}

// enrichDetails fetches full details for the winner for richer fields
// (overview, cast, runtime). The secondary call is cached and retried
// independently; its failure degrades gracefully and the match keeps the
// fields already present in the candidate.
func (r *Resolver) enrichDetails(ctx context.Context, query media.MediaQuery, best *media.Candidate) {
	p := r.providerByName(best.Source)
	if p == nil {
		return
	}

	key := cache.Key("details", best.Source, best.ID,
		strconv.Itoa(query.Season), strconv.Itoa(query.Episode))

	var detail *media.Candidate
	if data, ok := r.cacheGet(ctx, key); ok {
		var cached media.Candidate
		if err := json.Unmarshal(data, &cached); err == nil {
			detail = &cached
		}
	}

	if detail == nil {
		op := best.Source + ".details"
		fetched, err := CallWithRetry(ctx, r.logger, r.cfg.Caller, op, func(ctx context.Context) (*media.Candidate, error) {
			if query.IsTV() {
				return p.EpisodeDetails(ctx, best.ID, query.Season, query.Episode)
			}
			return p.MovieDetails(ctx, best.ID)
		})
		if err != nil || fetched == nil {
			r.logger.Warn().
				Err(err).
				Str("provider", best.Source).
				Str("id", best.ID).
				Msg("detail fetch failed, keeping search fields")
			return
		}

		if len(fetched.Cast) == 0 {
			cast, err := CallWithRetry(ctx, r.logger, r.cfg.Caller, best.Source+".cast", func(ctx context.Context) ([]string, error) {
				return p.Cast(ctx, best.ID, query.Type)
			})
			if err == nil {
				fetched.Cast = cast
			}
		}

		detail = fetched
		r.cachePutOne(ctx, key, *detail)
	}

	mergeDetail(best, *detail)
}

// mergeDetail copies richer non-empty detail fields onto the winner without
// touching its identity or score.
func mergeDetail(best *media.Candidate, detail media.Candidate) {
	if detail.Overview != "" {
		best.Overview = detail.Overview
	}
	if detail.Runtime > 0 {
		best.Runtime = detail.Runtime
	}
	if detail.AirDate != "" {
		best.AirDate = detail.AirDate
	}
	if len(detail.Cast) > 0 {
		best.Cast = detail.Cast
	}
	if detail.PosterURL != "" {
		best.PosterURL = detail.PosterURL
	}
	if detail.BackdropURL != "" {
		best.BackdropURL = detail.BackdropURL
	}
	if detail.SubtitleURL != "" {
		best.SubtitleURL = detail.SubtitleURL
	}
	if detail.Title != "" {
		best.Title = detail.Title
	}
	if detail.Year > 0 {
		best.Year = detail.Year
	}
}

// searchKey builds the cache key for a query over the enabled provider set,
// so changing the provider configuration never serves stale unions.
func (r *Resolver) searchKey(query media.MediaQuery) string {
	parts := []string{
		string(query.Type),
		NormalizeTitle(query.Title),
		strconv.Itoa(query.Year),
		strconv.Itoa(query.Season),
		strconv.Itoa(query.Episode),
	}
	parts = append(parts, r.Providers()...)
	return cache.Key("search", parts...)
}

// cacheGet treats every store error as a miss; correctness never depends on
// the cache.
func (r *Resolver) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	data, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		return nil, false
	}
	return data, ok
}

func (r *Resolver) cachePut(ctx context.Context, key string, candidates []media.Candidate) {
	if candidates == nil {
		candidates = []media.Candidate{}
	}
	data, err := json.Marshal(candidates)
	if err != nil {
		return
	}
	if err := r.store.Put(ctx, key, data, r.cfg.CacheTTL); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (r *Resolver) cachePutOne(ctx context.Context, key string, candidate media.Candidate) {
	data, err := json.Marshal(candidate)
	if err != nil {
		return
	}
	if err := r.store.Put(ctx, key, data, r.cfg.CacheTTL); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (r *Resolver) providerByName(name string) Provider {
	for _, p := range r.providers {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

func orderByPriority(providers []Provider, priority []string) []Provider {
	if len(priority) == 0 {
		return providers
	}

	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}

	ordered := make([]Provider, 0, len(providers))
	for _, name := range priority {
		if p, ok := byName[name]; ok {
			ordered = append(ordered, p)
			delete(byName, name)
		}
	}
	for _, p := range providers {
		if _, ok := byName[p.Name()]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
