package core

import (
	"context"
	"time"
)

// ProviderKind identifies the catalog a record or client belongs to.
type ProviderKind string

const (
	// ProviderDeezer is the search-based catalog that serves previews without a credential
	ProviderDeezer ProviderKind = "deezer"
	// ProviderSpotify is the recommendation-based catalog that requires a bearer credential
	ProviderSpotify ProviderKind = "spotify"
	// ProviderITunes is the secondary catalog used for exact lookups
	ProviderITunes ProviderKind = "itunes"
	// ProviderLastFM is a discovery-only catalog; its tracks never carry previews
	ProviderLastFM ProviderKind = "lastfm"
)

// Track is the canonical unit of recommendation.
// PreviewURL and CoverImageURL are nil when the provider did not supply them.
type Track struct {
	ID            string
	Title         string
	ArtistName    string
	AlbumName     string
	CoverImageURL *string
	PreviewURL    *string
	ExternalURL   string
	Provider      ProviderKind
	// SeedID is the primary catalog id of a track that was swapped for a playable match
	// from another catalog; empty otherwise
	SeedID string
}

// SeedTrackID returns the id the primary catalog knows this track by.
func (t Track) SeedTrackID() string {
	if t.SeedID != "" {
		return t.SeedID
	}
	return t.ID
}

// Playable reports whether the track carries a preview.
func (t Track) Playable() bool {
	return t.PreviewURL != nil && *t.PreviewURL != ""
}

// Preview returns the preview URL or an empty string.
func (t Track) Preview() string {
	if t.PreviewURL == nil {
		return ""
	}
	return *t.PreviewURL
}

// Cover returns the cover image URL or an empty string.
func (t Track) Cover() string {
	if t.CoverImageURL == nil {
		return ""
	}
	return *t.CoverImageURL
}

// Artist is a seed preference picked by the user.
type Artist struct {
	ID          string
	DisplayName string
	ImageURL    string
}

// Decision is the outcome of one swipe.
type Decision int

const (
	// DecisionNone means no decision has been taken
	DecisionNone Decision = iota
	// DecisionLike accepts the displayed track
	DecisionLike
	// DecisionDislike rejects the displayed track
	DecisionDislike
)

func (d Decision) String() string {
	switch d {
	case DecisionLike:
		return "like"
	case DecisionDislike:
		return "dislike"
	default:
		return "none"
	}
}

// ParseDecision maps "like"/"dislike" to a Decision.
func ParseDecision(s string) (Decision, bool) {
	switch s {
	case "like":
		return DecisionLike, true
	case "dislike":
		return DecisionDislike, true
	default:
		return DecisionNone, false
	}
}

// WorkingSet is one recommendation epoch: an ordered, duplicate free list of tracks.
type WorkingSet struct {
	Version uint64
	Tracks  []Track
}

// Len returns the number of tracks in the set.
func (w *WorkingSet) Len() int {
	if w == nil {
		return 0
	}
	return len(w.Tracks)
}

// TrackSearcher runs a free-text catalog search.
type TrackSearcher interface {
	Kind() ProviderKind
	SearchByQuery(ctx context.Context, text string, offset, limit int) ([]Track, error)
}

// ExactSearcher resolves a title/artist pair to a playable track.
// It returns (nil, nil) when nothing playable matched.
type ExactSearcher interface {
	Kind() ProviderKind
	SearchExact(ctx context.Context, title, artistName string) (*Track, error)
}

// RelatedArtistLister lists artists related to a seed.
type RelatedArtistLister interface {
	RelatedArtists(ctx context.Context, artistID string) ([]Artist, error)
}

// TopTrackLister lists an artist's most popular tracks.
type TopTrackLister interface {
	TopTracksForArtist(ctx context.Context, artistID string, limit int) ([]Track, error)
}

// ArtistSearcher finds artists by name, for seed pickers.
type ArtistSearcher interface {
	SearchArtists(ctx context.Context, name string, limit int) ([]Artist, error)
}

// SeedRecommender exposes a native seed-based recommendation endpoint.
type SeedRecommender interface {
	RecommendationsFromSeeds(ctx context.Context, seeds Seeds, limit int) ([]Track, error)
}

// Seeds carries recommendation seeds. At most MaxSeeds identifiers in total are sent.
type Seeds struct {
	ArtistIDs []string
	TrackIDs  []string
	Genres    []string
}

// MaxSeeds is the upper bound of seed identifiers accepted by native recommendation endpoints.
const MaxSeeds = 5

// Count returns the total number of seed values.
func (s Seeds) Count() int {
	return len(s.ArtistIDs) + len(s.TrackIDs) + len(s.Genres)
}

// Credential is a bearer token with its validity window.
type Credential struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ObtainedAt   time.Time
	ExpiresIn    time.Duration
}

// ExpiresAt is ObtainedAt + ExpiresIn.
func (c Credential) ExpiresAt() time.Time {
	return c.ObtainedAt.Add(c.ExpiresIn)
}

// ValidAt reports whether the credential is usable at now, keeping a safety margin before expiry.
func (c Credential) ValidAt(now time.Time, margin time.Duration) bool {
	if c.AccessToken == "" {
		return false
	}
	return now.Add(margin).Before(c.ExpiresAt())
}

// CredentialProvider hands out a currently valid credential, refreshing it if needed.
type CredentialProvider interface {
	GetValidCredential(ctx context.Context) (Credential, error)
	Invalidate(stale Credential)
}
