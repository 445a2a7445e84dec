package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/picgallery/internal/api"
	"github.com/timmy/picgallery/internal/api/middleware"
	"github.com/timmy/picgallery/internal/config"
	"github.com/timmy/picgallery/internal/logger"
	"github.com/timmy/picgallery/internal/metrics"
	"github.com/timmy/picgallery/internal/repository"
	"github.com/timmy/picgallery/internal/service"
	"github.com/timmy/picgallery/internal/source"
	"github.com/timmy/picgallery/internal/source/manifest"
	"github.com/timmy/picgallery/internal/source/picsum"
	"github.com/timmy/picgallery/internal/storage"
)

func main() {
	appLogger := logger.NewFromEnv(logger.LoadFromEnv("picgallery-api"))
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	savedRepo := repository.NewSavedImageRepository(db)

	objectStorage, err := storage.NewStorage(&storage.Config{
		Type:      storage.StorageType(cfg.Storage.Type),
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
		LocalDir:  cfg.Storage.LocalDir,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}
	if err := storage.Prepare(ctx, objectStorage); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
	}

	picsumAdapter := picsum.NewAdapter(&picsum.Config{
		BaseURL:   cfg.Picsum.BaseURL,
		Timeout:   cfg.Picsum.Timeout,
		CacheSize: cfg.Picsum.CacheSize,
		CacheTTL:  cfg.Picsum.CacheTTL,
	})

	var src source.PageSource = picsumAdapter
	if cfg.Gallery.Source == "manifest" {
		src = manifest.NewAdapter(cfg.Gallery.ManifestPath, "manifest")
	}

	sessions := service.NewSessionManager(src, service.SessionOptions{
		PageSize:    cfg.Gallery.PageSize,
		MaxItems:    cfg.Gallery.MaxItems,
		Dedupe:      cfg.Gallery.Dedupe,
		TTL:         cfg.Gallery.SessionTTL,
		MaxSessions: cfg.Gallery.MaxSessions,
		Resolver:    picsumAdapter,
		Observer:    m,
		Gauge:       m,
	})
	defer sessions.CloseAll()
	go sessions.RunJanitor(ctx, cfg.Gallery.SweepInterval)

	mediaService := service.NewMediaService(objectStorage, savedRepo, m, appLogger, &service.MediaConfig{
		DownloadTimeout: cfg.Media.DownloadTimeout,
		MaxBytes:        cfg.Media.MaxBytes,
		ShareTTL:        cfg.Storage.ShareTTL,
	})

	router := api.SetupRouter(sessions, mediaService, m, appLogger, api.RouterConfig{
		Mode: cfg.Server.Mode,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
		Compression: cfg.Server.Compression,
		MaxPageSize: config.MaxPageSize,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":    cfg.Server.Port,
			"mode":    cfg.Server.Mode,
			"source":  src.GetSourceID(),
			"storage": cfg.Storage.Type,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
