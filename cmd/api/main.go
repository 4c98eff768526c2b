package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"workshop/api/internal/app"
	"workshop/api/internal/config"
	"workshop/api/internal/feed"
	"workshop/api/internal/status"
	"workshop/api/internal/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	dataStore := store.NewPostgresStore(db)

	var activityFeed *feed.RedisFeed
	if cfg.RedisURL != "" {
		activityFeed, err = feed.NewRedisFeed(cfg.RedisURL)
		if err != nil {
			logger.Fatal("connect redis", zap.Error(err))
		}
		defer activityFeed.Close()
		logger.Info("activity feed enabled")
	} else {
		logger.Info("activity feed disabled, REDIS_URL not set")
	}

	policy := status.NewPolicy(dataStore, logger)
	builder := status.NewBuilder(dataStore, logger)
	mutator := status.NewService(dataStore, policy, activityFeed, logger)

	svc := app.New(cfg, builder, mutator, activityFeed, dataStore)
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      app.NewServer(svc, logger).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("stopped")
}
