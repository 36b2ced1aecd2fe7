package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jsonblog/config"
	"jsonblog/config/database"
	"jsonblog/internal/post/repository"
	"jsonblog/pkg/logger"
	"jsonblog/router"
	"jsonblog/socket"
)

func main() {
	// 1. Configuration comes from .env when present, otherwise from the OS environment.
	cfg, envLoaded := config.Load()
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	if !envLoaded {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}
	if err := cfg.Validate(); err != nil {
		logger.Sugar.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. The post store is the JSON document unless a SQL backend is selected.
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Sugar.Fatalf("Failed to open %s store: %v", cfg.Storage, err)
	}
	defer closeStore()

	// 3. The hub pushes post changes to every open list page.
	hub := socket.NewHub(store)
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router.Setup(cfg, store, hub),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Sugar.Infof("Blog listening on %s (storage: %s)", cfg.Addr, cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Sugar.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("Graceful shutdown failed: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	fileStore := repository.NewFileStore(cfg.PostsFile)
	if cfg.Storage == config.StorageFile {
		logger.Sugar.Infof("Using posts file %s", cfg.PostsFile)
		return fileStore, func() {}, nil
	}

	dsn := cfg.DatabaseURL
	if cfg.Storage == config.StorageSQLite {
		dsn = cfg.SQLitePath
	}
	db, err := database.Connect(cfg.Storage, dsn)
	if err != nil {
		return nil, nil, err
	}

	sqlStore := repository.NewSQLStore(db, cfg.Storage)
	if err := sqlStore.Init(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	// An empty table is seeded once from the JSON document, keeping ids.
	posts, err := fileStore.Load(ctx)
	if err != nil {
		logger.Sugar.Warnf("Skipping import from %s: %v", cfg.PostsFile, err)
	} else if n, err := sqlStore.Import(ctx, posts); err != nil {
		logger.Sugar.Warnf("Failed to import posts from %s: %v", cfg.PostsFile, err)
	} else if n > 0 {
		logger.Sugar.Infof("Imported %d posts from %s", n, cfg.PostsFile)
	}

	return sqlStore, func() { db.Close() }, nil
}
