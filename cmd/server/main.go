package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gswatch-io/gswatch/internal/alert"
	"github.com/gswatch-io/gswatch/internal/api"
	"github.com/gswatch-io/gswatch/internal/catalog"
	"github.com/gswatch-io/gswatch/internal/config"
	"github.com/gswatch-io/gswatch/internal/db"
	"github.com/gswatch-io/gswatch/internal/gateway"
	"github.com/gswatch-io/gswatch/internal/messenger"
	"github.com/gswatch-io/gswatch/internal/presence"
	"github.com/gswatch-io/gswatch/internal/protocol"
	"github.com/gswatch-io/gswatch/internal/repositories"
	"github.com/gswatch-io/gswatch/internal/scheduler"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gswatch",
		Short: "gswatch, a game server monitor bot",
		Long: `gswatch monitors game servers across dozens of query protocols and
publishes their live status as rich chat messages. Configuration is
environment-driven; see /api/v1/environment-variables for the registry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gswatch %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting gswatch",
		zap.String("version", version),
		zap.String("db_connection", cfg.DBConnection),
		zap.Duration("query_interval", cfg.QueryInterval),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	database, err := db.New(db.Config{
		Driver:   dbDriver(cfg),
		DSN:      dbDSN(cfg),
		Logger:   logger,
		LogLevel: gormLogLevel(cfg.Debug),
	})
	if err != nil {
		return err
	}

	servers := repositories.NewServerRepository(database)
	metrics := repositories.NewMetricRepository(database)

	games, err := catalog.Load()
	if err != nil {
		return err
	}
	logger.Info("game catalog loaded", zap.Int("games", games.Len()))

	registry := protocol.NewRegistry(protocol.Options{
		FactorioUsername: cfg.FactorioUsername,
		FactorioToken:    cfg.FactorioToken,
	})

	chat := messenger.NewDiscordClient(cfg.Token)
	renderer := &messenger.Renderer{Catalog: games, Version: version}
	refresher := messenger.NewRefresher(chat, servers, renderer, cfg.EditTimeout, logger)
	alerts := alert.NewEngine(servers, renderer, cfg.QueryInterval, logger)

	gw := gateway.NewClient(cfg.Token, logger)
	go gw.Run(ctx)
	presenceTask := presence.NewTask(servers, gw, cfg, logger)

	sched, err := scheduler.New(servers, metrics, registry, games, refresher, alerts, presenceTask, cfg, logger)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}

	var apiServer *http.Server
	if cfg.WebAPIEnable {
		apiServer = &http.Server{
			Addr: cfg.WebAPIListen,
			Handler: api.NewRouter(api.RouterConfig{
				Servers:       servers,
				Metrics:       metrics,
				Catalog:       games,
				Logger:        logger,
				Version:       version,
				InviteLink:    messenger.InviteLink(cfg.Token),
				MetricsEnable: cfg.MetricsEnable,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("web api listening", zap.String("addr", cfg.WebAPIListen))
			if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("web api server", zap.Error(err))
				cancel()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down gswatch")

	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("web api shutdown", zap.Error(err))
		}
	}

	return sched.Stop()
}

// dbDriver maps the configuration value onto the db package's driver name.
func dbDriver(cfg *config.Config) string {
	if cfg.DBConnection == "pgsql" {
		return "postgres"
	}
	return "sqlite"
}

// dbDSN resolves the connection string: SQLite defaults to a local file,
// Postgres gets the configured sslmode appended unless the url already
// carries one.
func dbDSN(cfg *config.Config) string {
	dsn := cfg.DatabaseURL

	if cfg.DBConnection == "pgsql" {
		if cfg.PostgresSSLMode != "" && !strings.Contains(dsn, "sslmode=") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "sslmode=" + cfg.PostgresSSLMode
		}
		return dsn
	}

	if dsn == "" {
		dsn = "gswatch.db"
	}
	return dsn
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		return cfg.Build()
	}
	return zap.NewProductionConfig().Build()
}

func gormLogLevel(debug bool) gormlogger.LogLevel {
	if debug {
		return gormlogger.Info
	}
	return gormlogger.Warn
}
