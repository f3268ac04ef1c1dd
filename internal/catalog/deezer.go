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
	"songswipe/pkg/fuzzy"
)

// DeezerSearchTerms is the fallback vocabulary used when no seed artists exist.
var DeezerSearchTerms = []string{
	"love", "night", "day", "heart", "dream", "time", "life", "dance",
	"rock", "pop", "soul", "blues", "summer", "winter", "fire", "water",
	"happy", "sad", "stars", "moon", "sun", "rain", "freedom", "hope",
}

const (
	// DeezerMaxIndex bounds the random pagination index of a search
	DeezerMaxIndex = 100
	// deezerExactLimit is how many candidates a searchExact call inspects
	deezerExactLimit = 10
)

// deezerError is the in-band error object Deezer returns with HTTP 200.
type deezerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type deezerTrackList struct {
	Data  []DeezerTrack `json:"data"`
	Total int           `json:"total"`
	Error *deezerError  `json:"error"`
}

type deezerArtistList struct {
	Data  []DeezerArtist `json:"data"`
	Error *deezerError   `json:"error"`
}

// DeezerClient talks to the public Deezer API. It needs no credential.
type DeezerClient struct {
	baseURL    string
	logger     *zap.Logger
	req        *requester
	normalizer *fuzzy.Normalizer
}

func NewDeezerClient(config *core.DeezerConfig, timeout time.Duration, logger *zap.Logger) *DeezerClient {
	return &DeezerClient{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		logger:     logger.Named("deezer"),
		req:        newRequester(core.ProviderDeezer, config.RequestsPerSec, timeout),
		normalizer: fuzzy.NewNormalizer(),
	}
}

// SetObserver installs a call observer for metrics.
func (c *DeezerClient) SetObserver(o CallObserver) {
	if o != nil {
		c.req.observer = o
	}
}

func (c *DeezerClient) Kind() core.ProviderKind {
	return core.ProviderDeezer
}

// SearchByQuery runs a free-text track search starting at the given result index.
func (c *DeezerClient) SearchByQuery(ctx context.Context, text string, offset, limit int) ([]core.Track, error) {
	params := url.Values{}
	params.Set("q", text)
	params.Set("index", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))

	return c.trackList(ctx, "search", "/search?"+params.Encode())
}

// SearchExact looks a track up by title and artist using Deezer's advanced search syntax.
func (c *DeezerClient) SearchExact(ctx context.Context, title, artistName string) (*core.Track, error) {
	query := fmt.Sprintf(`track:"%s"`, escapeQuote(title))
	if artistName != "" && artistName != UnknownArtist {
		query = fmt.Sprintf(`artist:"%s" %s`, escapeQuote(artistName), query)
	}

	tracks, err := c.SearchByQuery(ctx, query, 0, deezerExactLimit)
	if err != nil {
		return nil, err
	}
	return PickExact(c.normalizer, tracks, title, artistName), nil
}

// SearchArtists finds artists by name for the seed picker.
func (c *DeezerClient) SearchArtists(ctx context.Context, name string, limit int) ([]core.Artist, error) {
	params := url.Values{}
	params.Set("q", name)
	params.Set("limit", strconv.Itoa(limit))

	return c.artistList(ctx, "search_artist", "/search/artist?"+params.Encode())
}

func (c *DeezerClient) RelatedArtists(ctx context.Context, artistID string) ([]core.Artist, error) {
	return c.artistList(ctx, "related_artists", "/artist/"+url.PathEscape(artistID)+"/related")
}

func (c *DeezerClient) TopTracksForArtist(ctx context.Context, artistID string, limit int) ([]core.Track, error) {
	path := fmt.Sprintf("/artist/%s/top?limit=%d", url.PathEscape(artistID), limit)
	return c.trackList(ctx, "top_tracks", path)
}

// TrackRadio returns Deezer's radio mix seeded by one track.
func (c *DeezerClient) TrackRadio(ctx context.Context, trackID string) ([]core.Track, error) {
	return c.trackList(ctx, "track_radio", "/track/"+url.PathEscape(trackID)+"/radio")
}

// Chart returns the global top tracks.
func (c *DeezerClient) Chart(ctx context.Context, limit int) ([]core.Track, error) {
	return c.trackList(ctx, "chart", fmt.Sprintf("/chart/0/tracks?limit=%d", limit))
}

func (c *DeezerClient) trackList(ctx context.Context, op, path string) ([]core.Track, error) {
	var resp deezerTrackList
	if err := c.req.getJSON(ctx, op, c.baseURL+path, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: deezer %s: %s (code %d)", core.ErrProviderUnavailable, op, resp.Error.Message, resp.Error.Code)
	}

	tracks := NormalizeAll(resp.Data)
	c.logger.Debug("Deezer track list",
		zap.String("op", op),
		zap.Int("raw", len(resp.Data)),
		zap.Int("normalized", len(tracks)))
	return tracks, nil
}

func (c *DeezerClient) artistList(ctx context.Context, op, path string) ([]core.Artist, error) {
	var resp deezerArtistList
	if err := c.req.getJSON(ctx, op, c.baseURL+path, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: deezer %s: %s (code %d)", core.ErrProviderUnavailable, op, resp.Error.Message, resp.Error.Code)
	}

	artists := make([]core.Artist, 0, len(resp.Data))
	for _, a := range resp.Data {
		if artist, ok := NormalizeDeezerArtist(a); ok {
			artists = append(artists, artist)
		}
	}
	return artists, nil
}

func escapeQuote(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
