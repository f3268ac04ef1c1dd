// Package session drives one listener's swipe session: the current track, decisions and rebuilds.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"songswipe/internal/core"
	"songswipe/internal/i18n"
	"songswipe/internal/queue"
	"songswipe/internal/store"
)

// LikedSeedMemory is how many recent likes are kept as track seeds.
const LikedSeedMemory = 5

var (
	// ErrNoCurrentTrack is returned for a decision while no track is displayed.
	ErrNoCurrentTrack = errors.New("no track is displayed")
	// ErrStaleCard is returned for a decision on a card that is no longer displayed.
	ErrStaleCard = errors.New("card is no longer displayed")
)

// Builder produces working sets.
type Builder interface {
	Build(ctx context.Context, req queue.Request) (*core.WorkingSet, error)
}

// TermSuggester proposes extra search terms for a set of artist names.
type TermSuggester interface {
	SuggestTerms(ctx context.Context, artistNames []string) ([]string, error)
}

// CredentialSink installs a user credential obtained by an external login.
type CredentialSink func(ctx context.Context, cred core.Credential) error

// Observer is told about every committed decision.
type Observer interface {
	ObserveDecision(d core.Decision)
}

// Status is an immutable snapshot for presentation layers.
type Status struct {
	Loading bool
	// Error is the localized message; empty when healthy
	Error   string
	Err     error
	Track   *core.Track
	Version uint64
	Index   int
	// Remaining counts the cards after the current one before a rebuild
	Remaining int
	Seeds     []core.Artist
}

type Option func(*Controller)

func WithRecentStore(r *store.RecentTracks) Option {
	return func(c *Controller) { c.recent = r }
}

func WithTermSuggester(s TermSuggester) Option {
	return func(c *Controller) { c.suggester = s }
}

func WithCredentialSink(sink CredentialSink) Option {
	return func(c *Controller) { c.credentials = sink }
}

func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// Controller is safe for concurrent use. Builds run without holding the lock; a build
// that finishes after a newer one started is discarded.
type Controller struct {
	logger    *zap.Logger
	localizer *i18n.Localizer
	builder   Builder

	recent      *store.RecentTracks
	suggester   TermSuggester
	credentials CredentialSink
	observer    Observer

	mu      sync.Mutex
	cursor  queue.Cursor
	seeds   []core.Artist
	terms   []string
	liked   []string
	loading bool
	err     error
	seq     uint64
}

func NewController(builder Builder, localizer *i18n.Localizer, logger *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		logger:    logger.Named("session"),
		localizer: localizer,
		builder:   builder,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetCurrentTrack returns the displayed track, if any.
func (c *Controller) GetCurrentTrack() (core.Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor.Current()
}

// Start builds the first working set when none exists yet.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	started := c.cursor.State() != queue.StateEmpty || c.loading
	c.mu.Unlock()
	if started {
		return nil
	}
	return c.rebuild(ctx)
}

// OnGestureCommitted records a decision and advances. When the working set is used up a
// rebuild runs before returning, so the next track is visible as soon as this returns.
func (c *Controller) OnGestureCommitted(ctx context.Context, d core.Decision) error {
	return c.commit(ctx, d, nil)
}

// CommitAt is OnGestureCommitted for the card at version and index. A decision for any
// other card is rejected with ErrStaleCard, so a repeated submit cannot land on the next card.
func (c *Controller) CommitAt(ctx context.Context, d core.Decision, version uint64, index int) error {
	return c.commit(ctx, d, func(cur *queue.Cursor) bool {
		return cur.Version() == version && cur.Index() == index
	})
}

func (c *Controller) commit(ctx context.Context, d core.Decision, displayed func(*queue.Cursor) bool) error {
	c.mu.Lock()
	track, ok := c.cursor.Current()
	if !ok {
		c.mu.Unlock()
		return ErrNoCurrentTrack
	}
	if displayed != nil && !displayed(&c.cursor) {
		c.mu.Unlock()
		return ErrStaleCard
	}

	if d == core.DecisionLike {
		c.liked = append(c.liked, track.SeedTrackID())
		if len(c.liked) > LikedSeedMemory {
			c.liked = c.liked[len(c.liked)-LikedSeedMemory:]
		}
	}
	if c.observer != nil {
		c.observer.ObserveDecision(d)
	}
	c.logger.Debug("Decision",
		zap.String("decision", d.String()),
		zap.String("trackID", track.ID),
		zap.Uint64("version", c.cursor.Version()),
		zap.Int("index", c.cursor.Index()))

	if c.cursor.Advance() == queue.StateReady {
		c.markCurrentShownLocked()
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.rebuild(ctx)
}

// SetSeedArtists replaces the seeds, drops the current working set and rebuilds.
func (c *Controller) SetSeedArtists(ctx context.Context, artists []core.Artist) error {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.DisplayName)
	}

	var terms []string
	if c.suggester != nil && len(names) > 0 {
		suggested, err := c.suggester.SuggestTerms(ctx, names)
		if err != nil {
			c.logger.Warn("Term suggestion failed, using built-in vocabulary", zap.Error(err))
		}
		terms = suggested
	}

	c.mu.Lock()
	c.seeds = slices.Clone(artists)
	c.terms = terms
	c.cursor.Discard()
	c.mu.Unlock()

	c.logger.Info("Seed artists changed", zap.Strings("artists", names), zap.Int("terms", len(terms)))
	return c.rebuild(ctx)
}

// OnCredentialObtained installs a credential from an external login and rebuilds so the
// next working set can use it.
func (c *Controller) OnCredentialObtained(ctx context.Context, cred core.Credential) error {
	if c.credentials != nil {
		if err := c.credentials(ctx, cred); err != nil {
			c.setError(err)
			return err
		}
	}
	c.mu.Lock()
	c.cursor.Discard()
	c.mu.Unlock()
	return c.rebuild(ctx)
}

// Retry re-runs the rebuild that left the session in an error state.
func (c *Controller) Retry(ctx context.Context) error {
	return c.rebuild(ctx)
}

// State returns a snapshot.
func (c *Controller) State() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		Loading:   c.loading,
		Err:       c.err,
		Version:   c.cursor.Version(),
		Index:     c.cursor.Index(),
		Remaining: c.cursor.Remaining(),
		Seeds:     slices.Clone(c.seeds),
	}
	if c.err != nil {
		s.Error = c.message(c.err)
	}
	if track, ok := c.cursor.Current(); ok {
		s.Track = &track
	}
	return s
}

func (c *Controller) rebuild(ctx context.Context) error {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.loading = true
	c.err = nil
	req := queue.Request{
		Artists:       slices.Clone(c.seeds),
		LikedTrackIDs: slices.Clone(c.liked),
		Terms:         slices.Clone(c.terms),
	}
	c.mu.Unlock()

	set, err := c.builder.Build(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.seq || (set != nil && set.Version < c.cursor.Version()) {
		c.logger.Debug("Discarding stale working set", zap.Uint64("seq", seq), zap.Uint64("latest", c.seq))
		return nil
	}

	c.loading = false
	if err != nil {
		c.err = err
		c.cursor.Discard()
		c.logger.Warn("Rebuild failed", zap.Int("seeds", len(req.Artists)), zap.Error(err))
		return err
	}

	c.cursor.Reset(set)
	c.markCurrentShownLocked()
	return nil
}

func (c *Controller) setError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
	c.loading = false
}

func (c *Controller) markCurrentShownLocked() {
	if c.recent == nil {
		return
	}
	if track, ok := c.cursor.Current(); ok {
		c.recent.MarkShown(track)
	}
}

func (c *Controller) message(err error) string {
	switch {
	case errors.Is(err, core.ErrCredentialExpiredOrInvalid):
		return c.localizer.T("error.credential")
	case errors.Is(err, core.ErrNoPlayableTrackFound):
		return c.localizer.T("error.no_playable")
	case errors.Is(err, core.ErrEmptyRecommendationSet) && len(c.seeds) > 0:
		return c.localizer.T("error.empty_set")
	case errors.Is(err, core.ErrProviderUnavailable):
		return c.localizer.T("error.provider")
	default:
		return c.localizer.T("error.load_track")
	}
}
