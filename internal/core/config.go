package core

import (
	"fmt"
	"time"

	"songswipe/internal/i18n"
)

// Queue builder modes
const (
	// ModeSeedExpansion expands seeds through related artists and their top tracks
	ModeSeedExpansion = "seed-expansion"
	// ModeNative asks the provider's recommendation endpoint directly
	ModeNative = "native"
)

// Pipeline defaults
const (
	DefaultMaxAttempts         = 10
	DefaultSearchLimit         = 50
	DefaultMaxSearchOffset     = 100
	DefaultRelatedArtistLimit  = 3
	DefaultTopTracksPerArtist  = 5
	DefaultRecommendationLimit = 50
	DefaultFanOutConcurrency   = 4
	DefaultProviderTimeout     = 10 * time.Second
	DefaultRecentTrackMemory   = 2000
)

type Config struct {
	Spotify  SpotifyConfig
	Deezer   DeezerConfig
	ITunes   ITunesConfig
	LastFM   LastFMConfig
	Pipeline PipelineConfig
	LLM      LLMConfig
	Server   ServerConfig
	Telegram TelegramConfig
	Log      LogConfig
	App      AppConfig
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Market       string
}

// Enabled reports whether Spotify credentials were supplied.
func (c SpotifyConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type DeezerConfig struct {
	BaseURL        string
	RequestsPerSec float64
}

type ITunesConfig struct {
	BaseURL string
	Country string
}

type LastFMConfig struct {
	APIKey         string
	BaseURL        string
	RequestsPerSec float64
}

type PipelineConfig struct {
	// Primary is the provider used for discovery: deezer, spotify or lastfm
	Primary string
	// Secondary resolves unplayable tracks by exact lookup: itunes, deezer or none
	Secondary           string
	Mode                string
	MaxAttempts         int
	SearchLimit         int
	MaxSearchOffset     int
	RelatedArtistLimit  int
	TopTracksPerArtist  int
	RecommendationLimit int
	FanOutConcurrency   int
	ProviderTimeout     time.Duration
	AllowSilentTracks   bool
	RecentTrackMemory   int
	// Seed fixes the shuffle seed when non-zero
	Seed int64
}

type LLMConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	MaxTerms int
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestsPerMin  int
	PublicBaseURL   string
	ShutdownTimeout time.Duration
}

type TelegramConfig struct {
	Enabled bool
	Token   string
}

type LogConfig struct {
	Level  string
	Format string
}

type AppConfig struct {
	Language string
	// MaxSessions bounds the in-memory listener sessions; the least recently used is evicted
	MaxSessions int
}

func DefaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			RedirectURL: "http://localhost:8080/auth/callback",
			Market:      "US",
		},
		Deezer: DeezerConfig{
			BaseURL:        "https://api.deezer.com",
			RequestsPerSec: 10,
		},
		ITunes: ITunesConfig{
			BaseURL: "https://itunes.apple.com",
			Country: "US",
		},
		LastFM: LastFMConfig{
			BaseURL:        "https://ws.audioscrobbler.com/2.0/",
			RequestsPerSec: 5,
		},
		Pipeline: PipelineConfig{
			Primary:             string(ProviderDeezer),
			Secondary:           string(ProviderITunes),
			Mode:                ModeSeedExpansion,
			MaxAttempts:         DefaultMaxAttempts,
			SearchLimit:         DefaultSearchLimit,
			MaxSearchOffset:     DefaultMaxSearchOffset,
			RelatedArtistLimit:  DefaultRelatedArtistLimit,
			TopTracksPerArtist:  DefaultTopTracksPerArtist,
			RecommendationLimit: DefaultRecommendationLimit,
			FanOutConcurrency:   DefaultFanOutConcurrency,
			ProviderTimeout:     DefaultProviderTimeout,
			RecentTrackMemory:   DefaultRecentTrackMemory,
		},
		LLM: LLMConfig{
			MaxTerms: 5,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestsPerMin:  120,
			ShutdownTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		App: AppConfig{
			Language:    i18n.DefaultLanguage,
			MaxSessions: 1024,
		},
	}
}

// Validate checks cross-field constraints that flags alone cannot express.
func (c *Config) Validate() error {
	switch ProviderKind(c.Pipeline.Primary) {
	case ProviderDeezer, ProviderLastFM:
	case ProviderSpotify:
		if !c.Spotify.Enabled() {
			return fmt.Errorf("primary provider spotify requires client id and secret")
		}
	default:
		return fmt.Errorf("unknown primary provider %q", c.Pipeline.Primary)
	}

	switch c.Pipeline.Secondary {
	case "", "none", string(ProviderITunes), string(ProviderDeezer):
	default:
		return fmt.Errorf("unknown secondary provider %q", c.Pipeline.Secondary)
	}

	switch c.Pipeline.Mode {
	case ModeSeedExpansion:
	case ModeNative:
		if ProviderKind(c.Pipeline.Primary) != ProviderSpotify {
			return fmt.Errorf("native mode needs a provider with a recommendation endpoint, got %q", c.Pipeline.Primary)
		}
	default:
		return fmt.Errorf("unknown pipeline mode %q", c.Pipeline.Mode)
	}

	if ProviderKind(c.Pipeline.Primary) == ProviderLastFM && c.LastFM.APIKey == "" {
		return fmt.Errorf("primary provider lastfm requires an api key")
	}
	if c.Pipeline.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.Pipeline.MaxAttempts)
	}
	if c.Pipeline.SearchLimit <= 0 {
		return fmt.Errorf("search limit must be positive, got %d", c.Pipeline.SearchLimit)
	}
	if c.Pipeline.ProviderTimeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("telegram frontend enabled without a bot token")
	}
	return nil
}
