// Package queue builds recommendation working sets and walks them with a cursor.
package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"songswipe/internal/catalog"
	"songswipe/internal/core"
	"songswipe/internal/store"
	"songswipe/internal/strategy"
)

// Rebuild sources reported to the Observer
const (
	SourceNative    = "native"
	SourceExpansion = "expansion"
	SourceChart     = "chart"
	SourceDiscovery = "discovery"
)

// DiscoveryRounds is how many strategy searches feed a working set when no direct lookup applies.
const DiscoveryRounds = 5

// Request carries the listener's current preferences.
type Request struct {
	Artists []core.Artist
	// LikedTrackIDs are primary catalog ids of recent likes, newest last; used as track seeds
	LikedTrackIDs []string
	// Terms are extra search terms merged into the discovery vocabulary
	Terms []string
}

// Observer receives one call per build.
type Observer interface {
	ObserveRebuild(source string, tracks int, err error, took time.Duration)
}

type radioLister interface {
	TrackRadio(ctx context.Context, trackID string) ([]core.Track, error)
}

type chartLister interface {
	Chart(ctx context.Context, limit int) ([]core.Track, error)
}

type Builder struct {
	config *core.PipelineConfig
	logger *zap.Logger

	primary     core.TrackSearcher
	related     core.RelatedArtistLister
	top         core.TopTrackLister
	recommender core.SeedRecommender
	radio       radioLister
	chart       chartLister
	secondary   core.ExactSearcher

	strategy   *strategy.Strategy
	fallback   []string
	qualifiers []string
	recent     *store.RecentTracks
	observer   Observer
	report     strategy.Reporter

	mu  sync.Mutex
	rng *rand.Rand

	version atomic.Uint64
}

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithSecondary sets the catalog used to resolve unplayable tracks by exact lookup.
func WithSecondary(s core.ExactSearcher) BuilderOption {
	return func(b *Builder) { b.secondary = s }
}

// WithStrategy replaces the discovery strategy.
func WithStrategy(s *strategy.Strategy) BuilderOption {
	return func(b *Builder) { b.strategy = s }
}

// WithRecentStore biases builds away from recently shown tracks.
func WithRecentStore(r *store.RecentTracks) BuilderOption {
	return func(b *Builder) { b.recent = r }
}

// WithRand fixes the shuffle source.
func WithRand(rng *rand.Rand) BuilderOption {
	return func(b *Builder) { b.rng = rng }
}

func WithObserver(o Observer) BuilderOption {
	return func(b *Builder) { b.observer = o }
}

// WithReporter receives every discovery search attempt.
func WithReporter(r strategy.Reporter) BuilderOption {
	return func(b *Builder) { b.report = r }
}

// WithFallbackTerms sets the vocabulary used when no seed artist is known.
func WithFallbackTerms(terms []string) BuilderOption {
	return func(b *Builder) { b.fallback = terms }
}

// NewBuilder wires a builder over the primary catalog. Expansion capabilities are
// detected from the catalog's method set.
func NewBuilder(config *core.PipelineConfig, primary core.TrackSearcher, logger *zap.Logger,
	opts ...BuilderOption) *Builder {
	b := &Builder{
		config:     config,
		logger:     logger.Named("queue"),
		primary:    primary,
		qualifiers: strategy.DefaultQualifiers,
		fallback:   fallbackTermsFor(primary.Kind()),
	}
	b.related, _ = primary.(core.RelatedArtistLister)
	b.top, _ = primary.(core.TopTrackLister)
	b.recommender, _ = primary.(core.SeedRecommender)
	b.radio, _ = primary.(radioLister)
	b.chart, _ = primary.(chartLister)

	for _, opt := range opts {
		opt(b)
	}

	if b.rng == nil {
		seed := config.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		b.rng = rand.New(rand.NewSource(seed))
	}
	if b.strategy == nil {
		b.strategy = strategy.New(primary, strategy.DefaultPolicy(config),
			rand.New(rand.NewSource(b.rng.Int63())), b.reportAttempt)
	}
	return b
}

func fallbackTermsFor(kind core.ProviderKind) []string {
	if kind == core.ProviderITunes {
		return catalog.ITunesGenreTerms
	}
	return catalog.DeezerSearchTerms
}

// Build produces a new working set. Partial failures are tolerated; only an empty
// result is an error, reported as core.ErrEmptyRecommendationSet.
func (b *Builder) Build(ctx context.Context, req Request) (*core.WorkingSet, error) {
	start := time.Now()

	raw, source, collectErr := b.collect(ctx, req)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	tracks := b.finish(ctx, raw)
	if len(tracks) == 0 {
		err := fmt.Errorf("%w: %d seed artists via %s", core.ErrEmptyRecommendationSet, len(req.Artists), source)
		if collectErr != nil {
			err = fmt.Errorf("%w: %w", err, collectErr)
		}
		b.observe(source, 0, err, start)
		return nil, err
	}

	set := &core.WorkingSet{Version: b.version.Add(1), Tracks: tracks}
	b.logger.Info("Built working set",
		zap.Uint64("version", set.Version),
		zap.String("source", source),
		zap.Int("raw", len(raw)),
		zap.Int("tracks", len(tracks)),
		zap.Duration("took", time.Since(start)))
	b.observe(source, len(tracks), nil, start)
	return set, nil
}

func (b *Builder) observe(source string, n int, err error, start time.Time) {
	if b.observer != nil {
		b.observer.ObserveRebuild(source, n, err, time.Since(start))
	}
}

func (b *Builder) collect(ctx context.Context, req Request) ([]core.Track, string, error) {
	var (
		tracks []core.Track
		source string
		err    error
	)

	switch {
	case b.config.Mode == core.ModeNative && b.recommender != nil:
		source = SourceNative
		tracks, err = b.recommend(ctx, req)
	case len(req.Artists) > 0:
		source = SourceExpansion
		tracks = b.expand(ctx, req.Artists)
		tracks = append(tracks, b.radioFor(ctx, req.LikedTrackIDs)...)
	case b.chart != nil:
		source = SourceChart
		tracks, err = b.chart.Chart(ctx, b.config.RecommendationLimit)
	}
	if err != nil {
		b.logger.Warn("Direct lookup failed, falling back to search",
			zap.String("source", source), zap.Error(err))
	}

	if len(tracks) > 0 || ctx.Err() != nil {
		return tracks, source, err
	}

	terms := strategy.CandidateTerms(req.Artists, b.qualifiers, b.fallback)
	terms = append(terms, req.Terms...)
	found, discoverErr := b.discover(ctx, terms)
	return found, SourceDiscovery, errors.Join(err, discoverErr)
}

func (b *Builder) recommend(ctx context.Context, req Request) ([]core.Track, error) {
	var seeds core.Seeds
	for _, a := range req.Artists {
		if seeds.Count() < core.MaxSeeds {
			seeds.ArtistIDs = append(seeds.ArtistIDs, a.ID)
		}
	}
	// newest likes first
	for i := len(req.LikedTrackIDs) - 1; i >= 0 && seeds.Count() < core.MaxSeeds; i-- {
		seeds.TrackIDs = append(seeds.TrackIDs, req.LikedTrackIDs[i])
	}
	return b.recommender.RecommendationsFromSeeds(ctx, seeds, b.config.RecommendationLimit)
}

// expand resolves seeds to related artists, then related artists to their top tracks.
// Lookups run concurrently but land in per-input slots so the merge order is stable.
func (b *Builder) expand(ctx context.Context, seeds []core.Artist) []core.Track {
	if b.top == nil {
		return nil
	}

	sources := make([][]core.Artist, len(seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.fanOut())
	for i, seed := range seeds {
		g.Go(func() error {
			sources[i] = b.relatedFor(gctx, seed)
			return nil
		})
	}
	_ = g.Wait()

	var artists []core.Artist
	for _, s := range sources {
		artists = append(artists, s...)
	}

	slots := make([][]core.Track, len(artists))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(b.fanOut())
	for i, artist := range artists {
		g.Go(func() error {
			tracks, err := b.top.TopTracksForArtist(gctx, artist.ID, b.config.TopTracksPerArtist)
			if err != nil {
				b.logger.Warn("Top tracks lookup failed",
					zap.String("artistID", artist.ID),
					zap.String("artist", artist.DisplayName),
					zap.Error(err))
				return nil
			}
			slots[i] = tracks
			return nil
		})
	}
	_ = g.Wait()

	var tracks []core.Track
	for _, s := range slots {
		tracks = append(tracks, s...)
	}
	return tracks
}

// relatedFor returns up to RelatedArtistLimit related artists, or the seed itself when the
// catalog cannot list or has no related artists.
func (b *Builder) relatedFor(ctx context.Context, seed core.Artist) []core.Artist {
	if b.related == nil {
		return []core.Artist{seed}
	}

	related, err := b.related.RelatedArtists(ctx, seed.ID)
	if err != nil {
		b.logger.Warn("Related artists lookup failed",
			zap.String("artistID", seed.ID),
			zap.String("artist", seed.DisplayName),
			zap.Error(err))
		return nil
	}
	if len(related) == 0 {
		return []core.Artist{seed}
	}
	if limit := b.config.RelatedArtistLimit; limit > 0 && len(related) > limit {
		related = related[:limit]
	}
	return related
}

func (b *Builder) radioFor(ctx context.Context, likedIDs []string) []core.Track {
	if b.radio == nil || len(likedIDs) == 0 {
		return nil
	}
	// the most recent like only; radio pages are long
	id := likedIDs[len(likedIDs)-1]
	tracks, err := b.radio.TrackRadio(ctx, id)
	if err != nil {
		b.logger.Warn("Track radio failed", zap.String("trackID", id), zap.Error(err))
		return nil
	}
	return tracks
}

func (b *Builder) discover(ctx context.Context, terms []string) ([]core.Track, error) {
	var (
		tracks  []core.Track
		lastErr error
	)
	for range DiscoveryRounds {
		track, err := b.strategy.FindPlayable(ctx, terms)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil || len(tracks) == 0 {
				break
			}
			continue
		}
		tracks = append(tracks, track)
	}
	return tracks, lastErr
}

// finish dedups, resolves, filters and shuffles raw tracks into the final order.
func (b *Builder) finish(ctx context.Context, raw []core.Track) []core.Track {
	tracks := dedup(raw)

	if b.recent != nil {
		if fresh := b.recent.Fresh(tracks); len(fresh) > 0 {
			tracks = fresh
		}
	}

	if b.secondary != nil {
		tracks = dedup(b.resolve(ctx, tracks))
	}

	if !b.config.AllowSilentTracks {
		playable := make([]core.Track, 0, len(tracks))
		for _, t := range tracks {
			if t.Playable() {
				playable = append(playable, t)
			}
		}
		if len(playable) > 0 {
			tracks = playable
		} else if len(tracks) > 0 {
			b.logger.Warn("No playable tracks, keeping silent ones", zap.Int("tracks", len(tracks)))
		}
	}

	b.mu.Lock()
	b.rng.Shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})
	b.mu.Unlock()

	return tracks
}

// resolve replaces unplayable tracks with a playable match from the secondary catalog.
// Tracks that cannot be resolved are left as they are and dropped by the playable filter.
func (b *Builder) resolve(ctx context.Context, tracks []core.Track) []core.Track {
	out := make([]core.Track, len(tracks))
	copy(out, tracks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.fanOut())
	for i, t := range tracks {
		if t.Playable() {
			continue
		}
		g.Go(func() error {
			match, err := b.secondary.SearchExact(gctx, t.Title, t.ArtistName)
			switch {
			case err != nil:
				b.logger.Debug("Exact lookup failed",
					zap.String("provider", string(b.secondary.Kind())),
					zap.String("title", t.Title),
					zap.Error(err))
			case match != nil && match.Playable():
				resolved := *match
				resolved.SeedID = t.SeedTrackID()
				out[i] = resolved
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (b *Builder) reportAttempt(a strategy.Attempt) {
	b.logger.Debug("Search attempt",
		zap.Int("attempt", a.Number),
		zap.String("term", a.Term),
		zap.Int("offset", a.Offset),
		zap.Int("results", a.Results),
		zap.Int("playable", a.Playable),
		zap.Error(a.Err))
	if b.report != nil {
		b.report(a)
	}
}

func (b *Builder) fanOut() int {
	if b.config.FanOutConcurrency > 0 {
		return b.config.FanOutConcurrency
	}
	return core.DefaultFanOutConcurrency
}

func dedup(tracks []core.Track) []core.Track {
	seen := make(map[string]struct{}, len(tracks))
	out := make([]core.Track, 0, len(tracks))
	for _, t := range tracks {
		key := store.Key(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
