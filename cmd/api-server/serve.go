package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/MoeeinAali/CE419-WP/db"
	"github.com/MoeeinAali/CE419-WP/db/migrations"
	"github.com/MoeeinAali/CE419-WP/internal/auth"
	"github.com/MoeeinAali/CE419-WP/internal/cache"
	"github.com/MoeeinAali/CE419-WP/internal/config"
	"github.com/MoeeinAali/CE419-WP/internal/handlers"
	"github.com/MoeeinAali/CE419-WP/internal/logger"
	"github.com/MoeeinAali/CE419-WP/internal/marketplace"
)

var (
	_ marketplace.Store           = (*db.Storage)(nil)
	_ marketplace.Store           = (*db.MemoryStorage)(nil)
	_ marketplace.StatsCache      = (*cache.StatsCache)(nil)
	_ handlers.MarketplaceService = (*marketplace.Service)(nil)
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var inMemory bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts.cfg, inMemory)
		},
	}
	cmd.Flags().BoolVar(&inMemory, "memory", false, "keep data in process instead of PostgreSQL")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, inMemory bool) error {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer log.Sync()

	authn, err := auth.NewAuthenticator(cfg.JWTSecret)
	if err != nil {
		return err
	}

	var store marketplace.Store
	if inMemory {
		log.Warn("using in-memory storage; data is lost on exit")
		store = db.NewMemoryStorage()
	} else {
		if cfg.PostgresConn == "" {
			return errors.New("POSTGRES_CONN is not set")
		}
		dbConn, err := sqlx.Connect("postgres", cfg.PostgresConn)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer dbConn.Close()
		if err := migrations.Run(dbConn.DB); err != nil {
			return err
		}
		store = db.NewStorage(dbConn)
	}

	svcOpts := []marketplace.Option{marketplace.WithConflictWindow(cfg.ConflictWindow)}
	if cfg.RedisAddr != "" {
		statsCache, err := cache.NewStatsCache(cfg.RedisAddr, cfg.StatsCacheTTL, log)
		if err != nil {
			return err
		}
		defer statsCache.Close()
		svcOpts = append(svcOpts, marketplace.WithStatsCache(statsCache))
	}
	svc := marketplace.New(store, log, svcOpts...)
	h := handlers.NewHandler(svc, authn, log)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h.Routes(cfg.RequestTimeout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("starting server", "addr", cfg.ListenAddr, "conflict_window", cfg.ConflictWindow.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	log.Info("server stopped")
	return nil
}
