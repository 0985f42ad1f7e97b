package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/adapters/httpapi"
	redisLock "github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/adapters/sqlite"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// serveConfig is the environment configuration of the server mode.
type serveConfig struct {
	Addr        string        `env:"ARBOR_ADDR" envDefault:":8080"`
	CallbackURL string        `env:"ARBOR_CALLBACK_URL,required"`
	PluginRoot  string        `env:"ARBOR_PLUGIN_ROOT" envDefault:"plugins"`
	TurnTimeout time.Duration `env:"ARBOR_TURN_TIMEOUT" envDefault:"30s"`
	RedisAddr   string        `env:"ARBOR_REDIS_ADDR"`
	LogLevel    slog.Level    `env:"ARBOR_LOG_LEVEL" envDefault:"info"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot server",
	Long: `Starts the engine against the SQLite store and exposes the inbound HTTP
API, health check and Prometheus metrics. Outbound messages are POSTed to
the configured callback URL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg serveConfig
		if err := env.Parse(&cfg); err != nil {
			return fmt.Errorf("parse env: %w", err)
		}

		logger := logging.NewJSON(cfg.LogLevel)

		dbPath, _ := cmd.Flags().GetString("db")
		store, err := sqlite.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		registry := prometheus.NewRegistry()
		metrics := observability.NewMetrics(registry)

		opts := []arbor.Option{
			arbor.WithLogger(logger),
			arbor.WithPluginRoot(cfg.PluginRoot),
			arbor.WithTurnTimeout(cfg.TurnTimeout),
			arbor.WithHooks(metrics.Hooks()),
		}
		if cfg.RedisAddr != "" {
			client := backend.NewClient(&backend.Options{Addr: cfg.RedisAddr})
			defer client.Close()
			opts = append(opts, arbor.WithDistributedLocker(
				redisLock.NewLocker(client, "arbor:")))
		}

		bot, err := arbor.New(store,
			httpapi.NewPushConnector(cfg.CallbackURL, nil), opts...)
		if err != nil {
			return fmt.Errorf("assemble bot: %w", err)
		}

		srv := &http.Server{
			Addr: cfg.Addr,
			Handler: httpapi.NewHandler(bot,
				httpapi.WithLogger(logger),
				httpapi.WithMetrics(registry)),
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("arbor server listening", "addr", cfg.Addr, "db", dbPath)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutdown requested", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("close server: %w", err)
				}
			}
			logger.Info("arbor server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
