// Package main provides the SongSwipe CLI application entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"songswipe/internal/auth"
	"songswipe/internal/catalog"
	"songswipe/internal/chat/telegram"
	"songswipe/internal/core"
	"songswipe/internal/flood"
	httpserver "songswipe/internal/http"
	"songswipe/internal/i18n"
	"songswipe/internal/llm"
	"songswipe/internal/queue"
	"songswipe/internal/session"
	"songswipe/internal/spotify"
	"songswipe/internal/store"
)

const (
	defaultServerHost = "0.0.0.0"
	noneProvider      = "none"
	// recentFalsePositiveRate sizes the bloom filter of the recently-shown store
	recentFalsePositiveRate = 0.01
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "songswipe",
	Short: "SongSwipe - swipe through song previews",
	Long: `SongSwipe builds an endless stack of playable song previews from your favourite artists
and lets you like or skip them by swiping, over HTTP or in a Telegram chat.`,
	RunE: runSongSwipe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	def := core.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", def.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", def.Log.Format, "log format (json, console)")
	supportedLangs := strings.Join(i18n.GetSupportedLanguages(), ", ")
	flags.String("language", def.App.Language, fmt.Sprintf("Language of user-facing messages (%s)", supportedLangs))
	flags.Int("max-sessions", def.App.MaxSessions, "Maximum listener sessions kept in memory")

	flags.String("primary-provider", def.Pipeline.Primary, "Discovery catalog (deezer, spotify, lastfm)")
	flags.String("secondary-provider", def.Pipeline.Secondary, "Catalog resolving tracks without preview (itunes, deezer, none)")
	flags.String("pipeline-mode", def.Pipeline.Mode, "Queue building mode (seed-expansion, native)")
	flags.Int("max-attempts", def.Pipeline.MaxAttempts, "Search attempts before giving up on a playable track")
	flags.Int("search-limit", def.Pipeline.SearchLimit, "Results requested per search")
	flags.Int("max-search-offset", def.Pipeline.MaxSearchOffset, "Upper bound of the random search offset")
	flags.Int("related-artist-limit", def.Pipeline.RelatedArtistLimit, "Related artists used per seed artist")
	flags.Int("top-tracks-per-artist", def.Pipeline.TopTracksPerArtist, "Top tracks fetched per artist")
	flags.Int("recommendation-limit", def.Pipeline.RecommendationLimit, "Tracks requested from native recommendations")
	flags.Int("fan-out-concurrency", def.Pipeline.FanOutConcurrency, "Concurrent catalog calls while expanding seeds")
	flags.Duration("provider-timeout", def.Pipeline.ProviderTimeout, "Timeout of a single catalog call")
	flags.Bool("allow-silent-tracks", false, "Keep tracks without preview in the working set")
	flags.Int("recent-track-memory", def.Pipeline.RecentTrackMemory, "Recently shown tracks remembered to avoid repeats")
	flags.Int64("shuffle-seed", 0, "Fixed shuffle seed, 0 for random")

	flags.String("deezer-base-url", def.Deezer.BaseURL, "Deezer API base URL")
	flags.Float64("deezer-requests-per-sec", def.Deezer.RequestsPerSec, "Deezer request rate limit")
	flags.String("itunes-base-url", def.ITunes.BaseURL, "iTunes Search API base URL")
	flags.String("itunes-country", def.ITunes.Country, "iTunes store country")
	flags.String("lastfm-api-key", "", "Last.fm API key")
	flags.String("lastfm-base-url", def.LastFM.BaseURL, "Last.fm API base URL")
	flags.Float64("lastfm-requests-per-sec", def.LastFM.RequestsPerSec, "Last.fm request rate limit")

	flags.String("spotify-client-id", "", "Spotify client ID")
	flags.String("spotify-client-secret", "", "Spotify client secret")
	flags.String("spotify-redirect-url", "", "Spotify OAuth callback URL (default: derived from server address)")
	flags.String("spotify-market", def.Spotify.Market, "Spotify market for search and top tracks")

	flags.String("llm-provider", noneProvider, "LLM provider for search term suggestions (openai, anthropic, ollama, none)")
	flags.String("llm-model", "", "LLM model name")
	flags.String("llm-api-key", "", "LLM API key")
	flags.String("llm-base-url", "", "LLM base URL (Ollama or OpenAI compatible servers)")
	flags.Int("llm-max-terms", def.LLM.MaxTerms, "Search terms suggested per seed change")

	flags.String("server-host", defaultServerHost, "HTTP server host")
	flags.Int("server-port", def.Server.Port, "HTTP server port")
	flags.Int("requests-per-minute", def.Server.RequestsPerMin, "Requests per client per minute, 0 disables limiting")
	flags.String("public-base-url", "", "Externally visible base URL of the HTTP server")

	flags.Bool("telegram-enabled", false, "Enable the Telegram frontend")
	flags.String("telegram-bot-token", "", "Telegram bot token")

	flags.Bool("generate-env-example", false, "Print an example .env file with every setting and exit")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix("SONGSWIPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configurePipeline(cfg)
	configureCatalogs(cfg)
	configureLLM(cfg)
	configureServer(cfg)
	configureSpotify(cfg)
	configureTelegram(cfg)
	configureApp(cfg)

	return cfg
}

func configurePipeline(cfg *core.Config) {
	cfg.Pipeline.Primary = viper.GetString("primary-provider")
	cfg.Pipeline.Secondary = viper.GetString("secondary-provider")
	cfg.Pipeline.Mode = viper.GetString("pipeline-mode")
	cfg.Pipeline.MaxAttempts = viper.GetInt("max-attempts")
	cfg.Pipeline.SearchLimit = viper.GetInt("search-limit")
	cfg.Pipeline.MaxSearchOffset = viper.GetInt("max-search-offset")
	cfg.Pipeline.RelatedArtistLimit = viper.GetInt("related-artist-limit")
	cfg.Pipeline.TopTracksPerArtist = viper.GetInt("top-tracks-per-artist")
	cfg.Pipeline.RecommendationLimit = viper.GetInt("recommendation-limit")
	cfg.Pipeline.FanOutConcurrency = viper.GetInt("fan-out-concurrency")
	cfg.Pipeline.ProviderTimeout = viper.GetDuration("provider-timeout")
	cfg.Pipeline.AllowSilentTracks = viper.GetBool("allow-silent-tracks")
	cfg.Pipeline.RecentTrackMemory = viper.GetInt("recent-track-memory")
	cfg.Pipeline.Seed = viper.GetInt64("shuffle-seed")
}

func configureCatalogs(cfg *core.Config) {
	cfg.Deezer.BaseURL = viper.GetString("deezer-base-url")
	cfg.Deezer.RequestsPerSec = viper.GetFloat64("deezer-requests-per-sec")
	cfg.ITunes.BaseURL = viper.GetString("itunes-base-url")
	cfg.ITunes.Country = viper.GetString("itunes-country")
	cfg.LastFM.APIKey = viper.GetString("lastfm-api-key")
	cfg.LastFM.BaseURL = viper.GetString("lastfm-base-url")
	cfg.LastFM.RequestsPerSec = viper.GetFloat64("lastfm-requests-per-sec")
}

func configureLLM(cfg *core.Config) {
	cfg.LLM.Provider = viper.GetString("llm-provider")
	cfg.LLM.Model = viper.GetString("llm-model")
	cfg.LLM.APIKey = viper.GetString("llm-api-key")
	cfg.LLM.BaseURL = viper.GetString("llm-base-url")
	cfg.LLM.MaxTerms = viper.GetInt("llm-max-terms")
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Server.RequestsPerMin = viper.GetInt("requests-per-minute")
	cfg.Server.PublicBaseURL = strings.TrimSuffix(viper.GetString("public-base-url"), "/")
	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = viper.GetString("log-format")
}

// configureSpotify runs after configureServer so the callback URL can follow the server address.
func configureSpotify(cfg *core.Config) {
	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	cfg.Spotify.Market = viper.GetString("spotify-market")
	cfg.Spotify.RedirectURL = viper.GetString("spotify-redirect-url")

	if cfg.Spotify.RedirectURL == "" {
		base := cfg.Server.PublicBaseURL
		if base == "" {
			serverHost := cfg.Server.Host
			if serverHost == defaultServerHost {
				serverHost = "127.0.0.1"
			}
			base = fmt.Sprintf("http://%s:%d", serverHost, cfg.Server.Port)
		}
		cfg.Spotify.RedirectURL = base + "/auth/callback"
	}
}

func configureTelegram(cfg *core.Config) {
	cfg.Telegram.Enabled = viper.GetBool("telegram-enabled")
	cfg.Telegram.Token = viper.GetString("telegram-bot-token")
}

func configureApp(cfg *core.Config) {
	cfg.App.Language = viper.GetString("language")
	if cfg.App.Language == "" {
		cfg.App.Language = i18n.DefaultLanguage
	}
	if !i18n.IsSupported(cfg.App.Language) {
		fmt.Fprintf(os.Stderr, "Warning: Unsupported language '%s', falling back to '%s'. Supported languages: %s\n",
			cfg.App.Language, i18n.DefaultLanguage, strings.Join(i18n.GetSupportedLanguages(), ", "))
		cfg.App.Language = i18n.DefaultLanguage
	}

	cfg.App.MaxSessions = viper.GetInt("max-sessions")
	if cfg.App.MaxSessions <= 0 {
		cfg.App.MaxSessions = session.DefaultMaxSessions
	}
}

func buildLogger(logCfg core.LogConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(logCfg.Level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	if logCfg.Format == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runSongSwipe(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting SongSwipe",
		zap.String("primary", config.Pipeline.Primary),
		zap.String("secondary", config.Pipeline.Secondary),
		zap.String("mode", config.Pipeline.Mode),
		zap.String("llm_provider", config.LLM.Provider),
		zap.Bool("telegram_enabled", config.Telegram.Enabled))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	svcs, err := initializeServices()
	if err != nil {
		return err
	}

	return runServices(ctx, svcs)
}

type services struct {
	httpServer *httpserver.Server
	telegram   *telegram.Frontend
	limiter    *flood.Limiter
}

// catalogs holds the provider clients that were configured.
type catalogs struct {
	deezer  *catalog.DeezerClient
	itunes  *catalog.ITunesClient
	lastfm  *catalog.LastFMClient
	spotify *spotify.Client
	creds   *auth.Provider
}

func createCatalogs(metrics *httpserver.Metrics) *catalogs {
	timeout := config.Pipeline.ProviderTimeout
	c := &catalogs{
		deezer: catalog.NewDeezerClient(&config.Deezer, timeout, logger),
		itunes: catalog.NewITunesClient(&config.ITunes, timeout, logger),
	}
	c.deezer.SetObserver(metrics)
	c.itunes.SetObserver(metrics)

	if config.LastFM.APIKey != "" {
		c.lastfm = catalog.NewLastFMClient(&config.LastFM, timeout, logger)
		c.lastfm.SetObserver(metrics)
	}

	if config.Spotify.Enabled() {
		c.creds = auth.NewProvider(spotify.NewClientCredentialsFetcher(&config.Spotify), logger)
		c.spotify = spotify.NewClient(&config.Spotify, c.creds, timeout, logger)
		c.spotify.SetObserver(metrics)
	}
	return c
}

func (c *catalogs) primary() core.TrackSearcher {
	switch core.ProviderKind(config.Pipeline.Primary) {
	case core.ProviderSpotify:
		return c.spotify
	case core.ProviderLastFM:
		return c.lastfm
	default:
		return c.deezer
	}
}

func (c *catalogs) secondary() core.ExactSearcher {
	switch config.Pipeline.Secondary {
	case string(core.ProviderITunes):
		return c.itunes
	case string(core.ProviderDeezer):
		return c.deezer
	default:
		return nil
	}
}

// artistSearch prefers the primary catalog so picked artist ids work with its related-artist lookups.
func (c *catalogs) artistSearch() core.ArtistSearcher {
	if s, ok := c.primary().(core.ArtistSearcher); ok {
		return s
	}
	return c.deezer
}

func createTermSuggester(metrics *httpserver.Metrics) (session.TermSuggester, error) {
	if config.LLM.Provider == noneProvider || config.LLM.Provider == "" {
		return nil, nil
	}
	provider, err := llm.NewProvider(&config.LLM, logger.Named("llm"))
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	provider.SetRecorder(metrics.RecordLLMCall)
	return provider, nil
}

func initializeServices() (*services, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := httpserver.NewMetrics(registry)

	cats := createCatalogs(metrics)
	recent := store.NewRecentTracks(config.Pipeline.RecentTrackMemory, recentFalsePositiveRate)

	builderOpts := []queue.BuilderOption{
		queue.WithRecentStore(recent),
		queue.WithObserver(metrics),
		queue.WithReporter(metrics.ObserveAttempt),
	}
	if secondary := cats.secondary(); secondary != nil {
		builderOpts = append(builderOpts, queue.WithSecondary(secondary))
	}
	builder := queue.NewBuilder(&config.Pipeline, cats.primary(), logger, builderOpts...)

	suggester, err := createTermSuggester(metrics)
	if err != nil {
		return nil, err
	}

	localizer := i18n.NewLocalizer(config.App.Language)
	controllerOpts := []session.Option{
		session.WithRecentStore(recent),
		session.WithObserver(metrics),
	}
	if suggester != nil {
		controllerOpts = append(controllerOpts, session.WithTermSuggester(suggester))
	}

	var userAuth *spotify.UserAuth
	if cats.spotify != nil {
		userAuth = spotify.NewUserAuth(&config.Spotify)
		controllerOpts = append(controllerOpts, session.WithCredentialSink(
			func(_ context.Context, cred core.Credential) error {
				cats.creds.SetCredential(cred, userAuth.RefreshFetcher())
				cats.spotify.SetUserAuthorized(true)
				logger.Info("Spotify user credential installed")
				return nil
			}))
	}

	var tg *telegram.Frontend
	manager := session.NewManager(config.App.MaxSessions,
		func(id string) *session.Controller {
			return session.NewController(builder, localizer, logger.With(zap.String("session", id)), controllerOpts...)
		},
		logger,
		session.WithAfterCommit(func(s *session.Session, d core.Decision, err error) {
			if tg != nil {
				tg.AfterCommit(s, d, err)
			}
		}))

	limiter := flood.New(config.Server.RequestsPerMin)

	apiOpts := []httpserver.APIOption{
		httpserver.WithArtistSearch(cats.artistSearch()),
		httpserver.WithLimiter(limiter),
		httpserver.WithMetrics(metrics),
	}
	if userAuth != nil {
		apiOpts = append(apiOpts, httpserver.WithLogin(userAuth))
	}
	api := httpserver.NewAPI(manager, localizer, logger, apiOpts...)

	if config.Telegram.Enabled {
		tg = telegram.NewFrontend(&telegram.Config{
			BotToken: config.Telegram.Token,
			Enabled:  true,
			Language: config.App.Language,
		}, manager, logger,
			telegram.WithArtistSearch(cats.artistSearch()),
			telegram.WithLimiter(limiter),
			telegram.WithThrottleRecorder(metrics))
	}

	return &services{
		httpServer: httpserver.NewServer(&config.Server, api, registry, logger),
		telegram:   tg,
		limiter:    limiter,
	}, nil
}

func runServices(ctx context.Context, svcs *services) error {
	if svcs.telegram != nil {
		if err := svcs.telegram.Start(ctx); err != nil {
			return err
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svcs.httpServer.Start(gCtx)
	})

	g.Go(func() error {
		svcs.limiter.Run(gCtx)
		return nil
	})

	if svcs.telegram != nil {
		g.Go(func() error {
			return svcs.telegram.Run(gCtx)
		})
	}

	logger.Info("SongSwipe started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("SongSwipe stopped with error", zap.Error(err))
		return err
	}

	logger.Info("SongSwipe stopped gracefully")
	return nil
}

func validateConfig() error {
	if err := config.Validate(); err != nil {
		return err
	}
	return validateLLMConfig()
}

func validateLLMConfig() error {
	if config.LLM.Provider != noneProvider && config.LLM.Provider != "" {
		if config.LLM.APIKey == "" && config.LLM.Provider != "ollama" {
			return fmt.Errorf("LLM API key is required for provider: %s", config.LLM.Provider)
		}
	}
	return nil
}

func generateEnvExample(cmd *cobra.Command) error {
	_, err := fmt.Fprint(cmd.OutOrStdout(), generateEnvExampleContent(cmd))
	return err
}

// envSection groups flags under one heading of the example file.
type envSection struct {
	title string
	note  string
	flags []string
}

var envSections = []envSection{
	{
		title: "Recommendation pipeline",
		note:  "deezer needs no credentials; spotify needs the Spotify section; lastfm needs an API key",
		flags: []string{
			"primary-provider", "secondary-provider", "pipeline-mode", "max-attempts", "search-limit",
			"max-search-offset", "related-artist-limit", "top-tracks-per-artist", "recommendation-limit",
			"fan-out-concurrency", "provider-timeout", "allow-silent-tracks", "recent-track-memory", "shuffle-seed",
		},
	},
	{
		title: "Catalogs",
		flags: []string{
			"deezer-base-url", "deezer-requests-per-sec", "itunes-base-url", "itunes-country",
			"lastfm-api-key", "lastfm-base-url", "lastfm-requests-per-sec",
		},
	},
	{
		title: "Spotify (optional)",
		note:  "Get credentials from https://developer.spotify.com/dashboard and add the redirect URL there",
		flags: []string{"spotify-client-id", "spotify-client-secret", "spotify-redirect-url", "spotify-market"},
	},
	{
		title: "Search term suggestions (optional)",
		note:  "Providers: none, openai, anthropic, ollama",
		flags: []string{"llm-provider", "llm-model", "llm-api-key", "llm-base-url", "llm-max-terms"},
	},
	{
		title: "HTTP server",
		flags: []string{"server-host", "server-port", "requests-per-minute", "public-base-url"},
	},
	{
		title: "Telegram (optional)",
		note:  "Create a bot with @BotFather and paste its token",
		flags: []string{"telegram-enabled", "telegram-bot-token"},
	},
	{
		title: "Application",
		flags: []string{"language", "max-sessions", "log-level", "log-format"},
	},
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# SongSwipe Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	content.WriteString("# Format: SONGSWIPE_<SETTING>=value\n")
	content.WriteString("# CLI equivalent: --<setting>\n")
	content.WriteString("#\n\n")

	for _, section := range envSections {
		generateSection(&content, cmd, section)
	}

	return content.String()
}

func generateSection(content *strings.Builder, cmd *cobra.Command, section envSection) {
	content.WriteString("# -----------------------------------------------------------------------------\n")
	fmt.Fprintf(content, "# %s\n", section.title)
	content.WriteString("# -----------------------------------------------------------------------------\n")
	if section.note != "" {
		fmt.Fprintf(content, "# %s\n", section.note)
	}
	fmt.Fprintf(content, "# CLI: --%s\n", strings.Join(section.flags, ", --"))

	for _, name := range section.flags {
		f := cmd.PersistentFlags().Lookup(name)
		if f == nil {
			continue
		}
		fmt.Fprintf(content, "%s=%s  # %s\n", flagToEnvVar(name), f.DefValue, f.Usage)
	}
	content.WriteString("\n")
}

func flagToEnvVar(flagName string) string {
	return "SONGSWIPE_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}
