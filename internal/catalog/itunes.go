package catalog

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"songswipe/internal/core"
	"songswipe/pkg/fuzzy"
)

// ITunesGenreTerms is the vocabulary used for random discovery on iTunes.
var ITunesGenreTerms = []string{"pop", "rock", "hip-hop", "electronic", "indie", "r&b", "country"}

const (
	// ITunesMaxOffset bounds the random offset of a discovery search
	ITunesMaxOffset = 50
	iTunesExactLimit = 10
)

type iTunesSearchResponse struct {
	ResultCount int           `json:"resultCount"`
	Results     []ITunesTrack `json:"results"`
}

// ITunesClient queries the iTunes Search API. Results carry 30 second previews.
type ITunesClient struct {
	baseURL    string
	country    string
	logger     *zap.Logger
	req        *requester
	normalizer *fuzzy.Normalizer
}

func NewITunesClient(config *core.ITunesConfig, timeout time.Duration, logger *zap.Logger) *ITunesClient {
	return &ITunesClient{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		country:    config.Country,
		logger:     logger.Named("itunes"),
		req:        newRequester(core.ProviderITunes, 0, timeout),
		normalizer: fuzzy.NewNormalizer(),
	}
}

// SetObserver installs a call observer for metrics.
func (c *ITunesClient) SetObserver(o CallObserver) {
	if o != nil {
		c.req.observer = o
	}
}

func (c *ITunesClient) Kind() core.ProviderKind {
	return core.ProviderITunes
}

func (c *ITunesClient) SearchByQuery(ctx context.Context, text string, offset, limit int) ([]core.Track, error) {
	return c.search(ctx, "search", text, offset, limit)
}

// SearchExact searches "<artist> <title>" and keeps the best playable match.
func (c *ITunesClient) SearchExact(ctx context.Context, title, artistName string) (*core.Track, error) {
	term := title
	if artistName != "" && artistName != UnknownArtist {
		term = artistName + " " + title
	}

	tracks, err := c.search(ctx, "search_exact", term, 0, iTunesExactLimit)
	if err != nil {
		return nil, err
	}

	match := PickExact(c.normalizer, tracks, title, artistName)
	if match == nil {
		c.logger.Debug("No playable iTunes match",
			zap.String("title", title),
			zap.String("artist", artistName))
	}
	return match, nil
}

func (c *ITunesClient) search(ctx context.Context, op, term string, offset, limit int) ([]core.Track, error) {
	params := url.Values{}
	params.Set("term", term)
	params.Set("media", "music")
	params.Set("entity", "song")
	params.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	if c.country != "" {
		params.Set("country", c.country)
	}

	var resp iTunesSearchResponse
	if err := c.req.getJSON(ctx, op, c.baseURL+"/search?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	songs := resp.Results[:0]
	for _, r := range resp.Results {
		if r.Kind == "" || r.Kind == "song" {
			songs = append(songs, r)
		}
	}
	return NormalizeAll(songs), nil
}
