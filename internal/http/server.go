// Package http serves the swipe API, health probes and Prometheus metrics.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"songswipe/internal/core"
)

type Server struct {
	config *core.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer builds the server. api may be nil, which leaves only the probes and metrics.
func NewServer(config *core.ServerConfig, api *API, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	logger = logger.Named("http")

	mux := setupRoutes(logger, gatherer)
	if api != nil {
		api.Register(mux)
	}

	return &Server{
		config: config,
		logger: logger,
		server: createHTTPServer(config, mux),
	}
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func setupRoutes(logger *zap.Logger, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok","service":"songswipe"}`)); err != nil {
			logger.Debug("Failed to write health response", zap.Error(err))
		}
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ready","service":"songswipe"}`)); err != nil {
			logger.Debug("Failed to write ready response", zap.Error(err))
		}
	})

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(indexPage)); err != nil {
			logger.Debug("Failed to write index page", zap.Error(err))
		}
	})

	return mux
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
    <title>SongSwipe</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .endpoint { margin: 10px 0; font-family: monospace; }
    </style>
</head>
<body>
    <h1>🎵 SongSwipe</h1>
    <p>Swipe right to like, left to skip.</p>

    <h2>API</h2>
    <div class="endpoint">GET /api/track</div>
    <div class="endpoint">GET /api/state</div>
    <div class="endpoint">POST /api/decision {"decision":"like"|"dislike","version":N,"index":N}</div>
    <div class="endpoint">POST /api/gesture {"type":"down"|"move"|"up"|"leave"|"press","x":0,"y":0}</div>
    <div class="endpoint">PUT /api/seeds {"artists":[...]} or {"names":[...]}</div>
    <div class="endpoint">GET /api/artists?q=name</div>
    <div class="endpoint">POST /api/retry</div>
    <div class="endpoint"><a href="/auth/login">/auth/login</a></div>

    <h2>Service</h2>
    <div class="endpoint"><a href="/metrics">/metrics</a> <a href="/healthz">/healthz</a> <a href="/readyz">/readyz</a> <a href="/debug/stats">/debug/stats</a></div>
</body>
</html>`
