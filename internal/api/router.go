package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gswatch-io/gswatch/internal/catalog"
	"github.com/gswatch-io/gswatch/internal/config"
	"github.com/gswatch-io/gswatch/internal/repositories"
)

// RouterConfig holds all dependencies needed to build the HTTP router.
// It is populated in main.go after all components are initialized and
// passed to NewRouter as a single struct.
type RouterConfig struct {
	Servers repositories.ServerRepository
	Metrics repositories.MetricRepository
	Catalog *catalog.Catalog
	Logger  *zap.Logger

	// Version and InviteLink are reported on /api/v1/info.
	Version    string
	InviteLink string

	// MetricsEnable exposes the metric-sample endpoints only when the
	// collector actually runs.
	MetricsEnable bool
}

// NewRouter builds and returns the fully configured Chi router.
// All data routes live under /api/v1; /metrics serves Prometheus.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	gameHandler := NewGameHandler(cfg.Catalog, cfg.Logger)
	infoHandler := NewInfoHandler(cfg.Servers, cfg.Version, cfg.InviteLink, cfg.Logger)
	serverHandler := NewServerHandler(cfg.Servers, cfg.Metrics, cfg.MetricsEnable, cfg.Logger)
	channelHandler := NewChannelHandler(cfg.Servers, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/games", gameHandler.List)
		r.Get("/info", infoHandler.Get)
		r.Get("/commands", listCommands)
		r.Get("/environment-variables", listEnvironmentVariables)

		r.Get("/servers", serverHandler.Counts)
		r.Get("/servers/{game_id}", serverHandler.ListByGame)
		r.Get("/servers/{game_id}/{address}/{query_port}/metrics", serverHandler.Samples)

		r.Get("/channels", channelHandler.Counts)
		r.Get("/channels/{channel_id}", channelHandler.ListByChannel)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// listEnvironmentVariables returns the configuration registry: names,
// descriptions and defaults only, never the runtime values.
func listEnvironmentVariables(w http.ResponseWriter, _ *http.Request) {
	Ok(w, config.Variables)
}
