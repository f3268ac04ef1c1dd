// Package spotify provides the Spotify Web API catalog: search, artist expansion and native recommendations.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"songswipe/internal/catalog"
	"songswipe/internal/core"
	"songswipe/pkg/fuzzy"
)

const (
	// MaxSearchLimit is the largest page the search endpoint accepts
	MaxSearchLimit = 50
	// RecommendationSeedTracks is the number of the user's top tracks used as seeds
	RecommendationSeedTracks = 5
	// exactSearchLimit is how many candidates a searchExact call inspects
	exactSearchLimit = 10
)

// DefaultSeedGenres seed recommendations when neither artists nor user history are available.
var DefaultSeedGenres = []string{"pop", "rock", "hip-hop"}

type Client struct {
	config     *core.SpotifyConfig
	logger     *zap.Logger
	client     *spotify.Client
	creds      core.CredentialProvider
	normalizer *fuzzy.Normalizer
	timeout    time.Duration
	observer   catalog.CallObserver

	// set once an authorization-code credential replaced the app credential
	userAuthorized atomic.Bool
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	baseURL   string
	transport http.RoundTripper
}

// WithBaseURL points the client at another API root, e.g. a test server. It must end with a slash.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) { o.baseURL = url }
}

// WithTransport overrides the underlying HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) { o.transport = rt }
}

func NewClient(config *core.SpotifyConfig, creds core.CredentialProvider, timeout time.Duration,
	logger *zap.Logger, opts ...Option) *Client {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := &http.Client{
		Transport: &bearerTransport{base: o.transport},
		Timeout:   timeout,
	}

	var spotifyOpts []spotify.ClientOption
	if o.baseURL != "" {
		spotifyOpts = append(spotifyOpts, spotify.WithBaseURL(o.baseURL))
	}

	return &Client{
		config:     config,
		logger:     logger.Named("spotify"),
		client:     spotify.New(httpClient, spotifyOpts...),
		creds:      creds,
		normalizer: fuzzy.NewNormalizer(),
		timeout:    timeout,
		observer:   nopObserver{},
	}
}

// SetObserver installs a call observer for metrics.
func (c *Client) SetObserver(o catalog.CallObserver) {
	if o != nil {
		c.observer = o
	}
}

// SetUserAuthorized records whether the credential belongs to a logged-in user,
// which enables seeding recommendations from the user's top tracks.
func (c *Client) SetUserAuthorized(ok bool) {
	c.userAuthorized.Store(ok)
}

func (c *Client) Kind() core.ProviderKind {
	return core.ProviderSpotify
}

func (c *Client) SearchByQuery(ctx context.Context, text string, offset, limit int) ([]core.Track, error) {
	var tracks []core.Track
	err := c.do(ctx, "search", func(ctx context.Context) error {
		results, err := c.client.Search(ctx, text, spotify.SearchTypeTrack,
			c.pageOptions(min(limit, MaxSearchLimit), offset)...)
		if err != nil {
			return err
		}
		if results.Tracks != nil {
			tracks = convertFullTracks(results.Tracks.Tracks)
		}
		return nil
	})
	return tracks, err
}

// SearchExact uses Spotify's field filters and keeps the best playable match.
func (c *Client) SearchExact(ctx context.Context, title, artistName string) (*core.Track, error) {
	query := fmt.Sprintf("track:%s", title)
	if artistName != "" && artistName != catalog.UnknownArtist {
		query += fmt.Sprintf(" artist:%s", artistName)
	}

	tracks, err := c.SearchByQuery(ctx, query, 0, exactSearchLimit)
	if err != nil {
		return nil, err
	}
	return catalog.PickExact(c.normalizer, tracks, title, artistName), nil
}

func (c *Client) SearchArtists(ctx context.Context, name string, limit int) ([]core.Artist, error) {
	var artists []core.Artist
	err := c.do(ctx, "search_artist", func(ctx context.Context) error {
		results, err := c.client.Search(ctx, name, spotify.SearchTypeArtist, spotify.Limit(min(limit, MaxSearchLimit)))
		if err != nil {
			return err
		}
		if results.Artists != nil {
			artists = convertArtists(results.Artists.Artists)
		}
		return nil
	})
	return artists, err
}

func (c *Client) RelatedArtists(ctx context.Context, artistID string) ([]core.Artist, error) {
	var artists []core.Artist
	err := c.do(ctx, "related_artists", func(ctx context.Context) error {
		related, err := c.client.GetRelatedArtists(ctx, spotify.ID(artistID))
		if err != nil {
			return err
		}
		artists = convertArtists(related)
		return nil
	})
	return artists, err
}

func (c *Client) TopTracksForArtist(ctx context.Context, artistID string, limit int) ([]core.Track, error) {
	var tracks []core.Track
	err := c.do(ctx, "top_tracks", func(ctx context.Context) error {
		top, err := c.client.GetArtistsTopTracks(ctx, spotify.ID(artistID), c.config.Market)
		if err != nil {
			return err
		}
		tracks = convertFullTracks(top)
		return nil
	})
	if len(tracks) > limit && limit > 0 {
		tracks = tracks[:limit]
	}
	return tracks, err
}

// RecommendationsFromSeeds asks the native recommendation endpoint. Without seeds it falls back
// to the user's top tracks when logged in, then to DefaultSeedGenres.
func (c *Client) RecommendationsFromSeeds(ctx context.Context, seeds core.Seeds, limit int) ([]core.Track, error) {
	if seeds.Count() == 0 {
		seeds = c.defaultSeeds(ctx)
	}
	seeds = capSeeds(seeds, core.MaxSeeds)

	spotifySeeds := spotify.Seeds{Genres: seeds.Genres}
	for _, id := range seeds.ArtistIDs {
		spotifySeeds.Artists = append(spotifySeeds.Artists, spotify.ID(id))
	}
	for _, id := range seeds.TrackIDs {
		spotifySeeds.Tracks = append(spotifySeeds.Tracks, spotify.ID(id))
	}

	var tracks []core.Track
	err := c.do(ctx, "recommendations", func(ctx context.Context) error {
		recs, err := c.client.GetRecommendations(ctx, spotifySeeds, nil,
			c.pageOptions(min(limit, core.DefaultRecommendationLimit), 0)...)
		if err != nil {
			return err
		}
		tracks = convertSimpleTracks(recs.Tracks)
		return nil
	})
	if err == nil {
		c.logger.Debug("Spotify recommendations",
			zap.Int("seed_artists", len(seeds.ArtistIDs)),
			zap.Int("seed_tracks", len(seeds.TrackIDs)),
			zap.Strings("seed_genres", seeds.Genres),
			zap.Int("tracks", len(tracks)))
	}
	return tracks, err
}

func (c *Client) defaultSeeds(ctx context.Context) core.Seeds {
	if c.userAuthorized.Load() {
		var ids []string
		err := c.do(ctx, "user_top_tracks", func(ctx context.Context) error {
			page, err := c.client.CurrentUsersTopTracks(ctx, spotify.Limit(RecommendationSeedTracks))
			if err != nil {
				return err
			}
			for _, t := range page.Tracks {
				ids = append(ids, string(t.ID))
			}
			return nil
		})
		if err != nil {
			c.logger.Warn("Could not read user top tracks, seeding with genres", zap.Error(err))
		} else if len(ids) > 0 {
			return core.Seeds{TrackIDs: ids}
		}
	}
	return core.Seeds{Genres: DefaultSeedGenres}
}

// do runs one API call with a credential attached. A 401 invalidates the credential and the call is
// retried once; any remaining failure is reported as core.ErrProviderUnavailable.
func (c *Client) do(ctx context.Context, op string, call func(ctx context.Context) error) error {
	start := time.Now()

	err := c.attempt(ctx, call)
	if errors.Is(err, core.ErrCredentialExpiredOrInvalid) {
		c.logger.Debug("Spotify rejected credential, refreshing", zap.String("op", op))
		err = c.attempt(ctx, call)
	}

	c.observer.ObserveProviderCall(string(core.ProviderSpotify), op, err, time.Since(start))
	if err != nil {
		return fmt.Errorf("%w: spotify %s: %w", core.ErrProviderUnavailable, op, err)
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, call func(ctx context.Context) error) error {
	cred, err := c.creds.GetValidCredential(ctx)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(withCredential(ctx, cred), c.timeout)
	defer cancel()

	err = call(callCtx)
	if isUnauthorized(err) {
		c.creds.Invalidate(cred)
		return fmt.Errorf("%w: %w", core.ErrCredentialExpiredOrInvalid, err)
	}
	return err
}

func (c *Client) pageOptions(limit, offset int) []spotify.RequestOption {
	opts := []spotify.RequestOption{spotify.Limit(limit)}
	if offset > 0 {
		opts = append(opts, spotify.Offset(offset))
	}
	if c.config.Market != "" {
		opts = append(opts, spotify.Market(c.config.Market))
	}
	return opts
}

func isUnauthorized(err error) bool {
	var apiErr spotify.Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

func capSeeds(seeds core.Seeds, limit int) core.Seeds {
	var out core.Seeds
	for _, id := range seeds.ArtistIDs {
		if out.Count() < limit {
			out.ArtistIDs = append(out.ArtistIDs, id)
		}
	}
	for _, id := range seeds.TrackIDs {
		if out.Count() < limit {
			out.TrackIDs = append(out.TrackIDs, id)
		}
	}
	for _, g := range seeds.Genres {
		if out.Count() < limit {
			out.Genres = append(out.Genres, g)
		}
	}
	return out
}

type nopObserver struct{}

func (nopObserver) ObserveProviderCall(string, string, error, time.Duration) {}
