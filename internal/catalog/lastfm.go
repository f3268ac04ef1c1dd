package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"songswipe/internal/core"
)

const lastFMMaxPage = 5

type lastFMError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

type lastFMSimilarResponse struct {
	lastFMError
	SimilarArtists struct {
		Artist []lastFMArtist `json:"artist"`
	} `json:"similarartists"`
}

type lastFMArtistSearchResponse struct {
	lastFMError
	Results struct {
		ArtistMatches struct {
			Artist []lastFMArtist `json:"artist"`
		} `json:"artistmatches"`
	} `json:"results"`
}

type lastFMTopTracksResponse struct {
	lastFMError
	TopTracks struct {
		Track []LastFMTrack `json:"track"`
	} `json:"toptracks"`
}

type lastFMTrackSearchResponse struct {
	lastFMError
	Results struct {
		TrackMatches struct {
			Track []LastFMTrack `json:"track"`
		} `json:"trackmatches"`
	} `json:"results"`
}

type lastFMArtist struct {
	Name  string        `json:"name"`
	MBID  string        `json:"mbid"`
	URL   string        `json:"url"`
	Image []LastFMImage `json:"image"`
}

// LastFMClient is a discovery-only provider: artist similarity and popularity, never audio.
// Artists are identified by name because every Last.fm method accepts one.
type LastFMClient struct {
	baseURL string
	apiKey  string
	logger  *zap.Logger
	req     *requester
}

func NewLastFMClient(config *core.LastFMConfig, timeout time.Duration, logger *zap.Logger) *LastFMClient {
	return &LastFMClient{
		baseURL: strings.TrimRight(config.BaseURL, "/") + "/",
		apiKey:  config.APIKey,
		logger:  logger.Named("lastfm"),
		req:     newRequester(core.ProviderLastFM, config.RequestsPerSec, timeout),
	}
}

// SetObserver installs a call observer for metrics.
func (c *LastFMClient) SetObserver(o CallObserver) {
	if o != nil {
		c.req.observer = o
	}
}

func (c *LastFMClient) Kind() core.ProviderKind {
	return core.ProviderLastFM
}

// SearchByQuery maps the offset onto Last.fm's 1-based pages, capped at page 5.
func (c *LastFMClient) SearchByQuery(ctx context.Context, text string, offset, limit int) ([]core.Track, error) {
	page := 1
	if limit > 0 {
		page = offset/limit + 1
	}
	page = min(page, lastFMMaxPage)

	q := url.Values{}
	q.Set("method", "track.search")
	q.Set("track", text)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))

	var resp lastFMTrackSearchResponse
	if err := c.call(ctx, "search", q, &resp, &resp.lastFMError); err != nil {
		return nil, err
	}
	return NormalizeAll(resp.Results.TrackMatches.Track), nil
}

func (c *LastFMClient) SearchArtists(ctx context.Context, name string, limit int) ([]core.Artist, error) {
	q := url.Values{}
	q.Set("method", "artist.search")
	q.Set("artist", name)
	q.Set("limit", strconv.Itoa(limit))

	var resp lastFMArtistSearchResponse
	if err := c.call(ctx, "search_artist", q, &resp, &resp.lastFMError); err != nil {
		return nil, err
	}
	return toArtists(resp.Results.ArtistMatches.Artist), nil
}

func (c *LastFMClient) RelatedArtists(ctx context.Context, artistID string) ([]core.Artist, error) {
	q := url.Values{}
	q.Set("method", "artist.getSimilar")
	q.Set("artist", artistID)
	q.Set("autocorrect", "1")

	var resp lastFMSimilarResponse
	if err := c.call(ctx, "related_artists", q, &resp, &resp.lastFMError); err != nil {
		return nil, err
	}
	return toArtists(resp.SimilarArtists.Artist), nil
}

func (c *LastFMClient) TopTracksForArtist(ctx context.Context, artistID string, limit int) ([]core.Track, error) {
	q := url.Values{}
	q.Set("method", "artist.getTopTracks")
	q.Set("artist", artistID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("autocorrect", "1")

	var resp lastFMTopTracksResponse
	if err := c.call(ctx, "top_tracks", q, &resp, &resp.lastFMError); err != nil {
		return nil, err
	}

	tracks := NormalizeAll(resp.TopTracks.Track)
	// artist.getTopTracks does not repeat the artist name on every entry
	for i := range tracks {
		if tracks[i].ArtistName == UnknownArtist {
			tracks[i].ArtistName = artistID
		}
	}
	return tracks, nil
}

func (c *LastFMClient) call(ctx context.Context, op string, q url.Values, dest any, apiErr *lastFMError) error {
	q.Set("api_key", c.apiKey)
	q.Set("format", "json")

	if err := c.req.getJSON(ctx, op, c.baseURL+"?"+q.Encode(), dest); err != nil {
		return err
	}
	if apiErr.Error != 0 {
		return fmt.Errorf("%w: lastfm %s: %s (code %d)", core.ErrProviderUnavailable, op, apiErr.Message, apiErr.Error)
	}
	return nil
}

func toArtists(in []lastFMArtist) []core.Artist {
	artists := make([]core.Artist, 0, len(in))
	for _, a := range in {
		if a.Name == "" {
			continue
		}
		var image string
		if len(a.Image) > 2 {
			image = a.Image[2].URL
		}
		artists = append(artists, core.Artist{ID: a.Name, DisplayName: a.Name, ImageURL: image})
	}
	return artists
}
