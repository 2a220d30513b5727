package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zenara-designs/reviews-gateway/internal/config"
	"github.com/zenara-designs/reviews-gateway/internal/logger"
	"github.com/zenara-designs/reviews-gateway/internal/server"
	"github.com/zenara-designs/reviews-gateway/internal/storage"
)

var portOverride string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reviews gateway HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if portOverride != "" {
			cfg.Server.Port = portOverride
		}

		log := logger.New(cfg.Log.Level)
		defer func() { _ = log.Sync() }()

		return serve(cmd.Context(), cfg, log)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&portOverride, "port", "p", "", "listen port (overrides PORT)")
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	var redis *storage.RedisClient
	if cfg.Redis.Enabled() {
		client, err := storage.NewRedis(cfg.Redis.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		redis = client
		log.Info("connected to redis", zap.String("addr", cfg.Redis.GetRedisAddr()))
	}

	var postgres *storage.Postgres
	if cfg.Database.URL != "" {
		db, err := storage.NewPostgres(cfg.Database.URL, storage.PostgresConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			SlowQuery:       cfg.Database.SlowQuery,
		}, log)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("migrate request logs: %w", err)
		}
		postgres = db
		log.Info("connected to postgres, request logging enabled")
	}

	srv := server.New(cfg, log, redis, postgres, server.WithVersion(versionInfo.Version))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(":" + cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}
