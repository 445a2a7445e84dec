package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/timmy/picgallery/internal/config"
	"github.com/timmy/picgallery/internal/logger"
	"github.com/timmy/picgallery/internal/pager"
	"github.com/timmy/picgallery/internal/repository"
	"github.com/timmy/picgallery/internal/service"
	"github.com/timmy/picgallery/internal/source"
	"github.com/timmy/picgallery/internal/source/manifest"
	"github.com/timmy/picgallery/internal/source/picsum"
	"github.com/timmy/picgallery/internal/storage"
	"github.com/timmy/picgallery/internal/tui"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	sourceType := flag.String("source", "", "Page source: picsum or manifest (overrides config)")
	manifestPath := flag.String("manifest", "", "Manifest file for the manifest source")
	pageSize := flag.Int("page-size", 0, "Records per page (overrides config)")
	withMedia := flag.Bool("media", false, "Enable save and share (needs database and storage)")
	logFile := flag.String("log", "gallery.log", "Log file; the terminal is owned by the UI")
	flag.Parse()

	// stdout belongs to the UI, so logs go to a rotating file
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "picgallery-tui",
		Output:      &lumberjack.Logger{Filename: *logFile, MaxSize: 10, MaxBackups: 3},
	})
	logger.SetDefaultLogger(appLogger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *sourceType != "" {
		cfg.Gallery.Source = *sourceType
	}
	if *manifestPath != "" {
		cfg.Gallery.ManifestPath = *manifestPath
	}
	if *pageSize > 0 {
		cfg.Gallery.PageSize = *pageSize
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.SetComponent(appLogger.WithContext(ctx), "tui")

	var src source.PageSource
	switch cfg.Gallery.Source {
	case "manifest":
		src = manifest.NewAdapter(cfg.Gallery.ManifestPath, "manifest")
	default:
		src = picsum.NewAdapter(&picsum.Config{
			BaseURL:   cfg.Picsum.BaseURL,
			Timeout:   cfg.Picsum.Timeout,
			CacheSize: cfg.Picsum.CacheSize,
			CacheTTL:  cfg.Picsum.CacheTTL,
		})
	}

	cursor := pager.New(src, pager.Options{
		PageSize: cfg.Gallery.PageSize,
		MaxItems: cfg.Gallery.MaxItems,
		Dedupe:   cfg.Gallery.Dedupe,
	})

	var media tui.Media
	if *withMedia {
		mediaService, err := newMediaService(ctx, cfg, appLogger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize media: %v\n", err)
			os.Exit(1)
		}
		media = mediaService
	}

	appLogger.WithFields(logger.Fields{
		logger.FieldSource: src.GetSourceID(),
		"page_size":        cfg.Gallery.PageSize,
		"media":            *withMedia,
	}).Info("Starting gallery")

	p := tea.NewProgram(tui.New(ctx, cursor, media), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		appLogger.WithError(err).Error("Gallery exited with error")
		fmt.Fprintf(os.Stderr, "gallery: %v\n", err)
		os.Exit(1)
	}
	cursor.Close()
	_ = logger.Sync()
}

func newMediaService(ctx context.Context, cfg *config.Config, log *logger.Logger) (*service.MediaService, error) {
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, err
	}

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
		return nil, err
	}
	if err := storage.Prepare(ctx, objectStorage); err != nil {
		return nil, err
	}

	return service.NewMediaService(objectStorage, repository.NewSavedImageRepository(db), nil, log, &service.MediaConfig{
		DownloadTimeout: cfg.Media.DownloadTimeout,
		MaxBytes:        cfg.Media.MaxBytes,
		ShareTTL:        cfg.Storage.ShareTTL,
	}), nil
}
