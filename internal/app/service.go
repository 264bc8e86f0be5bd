package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/thumbcache/internal/config"
	"github.com/yokitheyo/thumbcache/internal/domain"
	"github.com/yokitheyo/thumbcache/internal/infrastructure/compressor"
	"github.com/yokitheyo/thumbcache/internal/infrastructure/fetcher"
	"github.com/yokitheyo/thumbcache/internal/infrastructure/processor"
	"github.com/yokitheyo/thumbcache/internal/infrastructure/resolver"
	"github.com/yokitheyo/thumbcache/internal/infrastructure/storage"
	"github.com/yokitheyo/thumbcache/internal/usecase"
)

// Service is the wired image service shared by the api and worker binaries.
type Service struct {
	*usecase.ThumbnailUsecase
	Store *storage.CacheStore
}

// SetLogLevel applies the configured level to the global logger.
func SetLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		zlog.Logger.Warn().Str("level", level).Msg("unknown log level, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// NewService builds the thumbnail service and its infrastructure from cfg.
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	engine, err := processor.NewImagingEngine(cfg.Placeholder.FontPath)
	if err != nil {
		return nil, fmt.Errorf("init image engine: %w", err)
	}

	paths, err := resolver.New(cfg.Thumbnail.BasePath, cfg.Thumbnail.Aliases)
	if err != nil {
		return nil, fmt.Errorf("init path resolver: %w", err)
	}

	store, err := storage.NewCacheStore(
		cfg.Thumbnail.CacheRoot,
		cfg.Thumbnail.URLPrefix,
		time.Duration(cfg.Thumbnail.CacheExpireSec)*time.Second,
	)
	if err != nil {
		return nil, fmt.Errorf("init cache store: %w", err)
	}

	mirror, err := storage.NewMirror(ctx, &cfg.Mirror)
	if err != nil {
		return nil, fmt.Errorf("init cache mirror: %w", err)
	}

	var comp domain.Compressor
	if cfg.Compression.Credential != "" {
		client, err := compressor.New(
			cfg.Compression.Endpoint,
			cfg.Compression.Credential,
			time.Duration(cfg.Compression.TimeoutSec)*time.Second,
			cfg.Compression.MaxSizeMB,
		)
		if err != nil {
			return nil, fmt.Errorf("init compressor: %w", err)
		}
		comp = client
	} else {
		zlog.Logger.Info().Msg("Compression disabled: no credential configured")
	}

	placeholders, err := usecase.NewPlaceholderUsecase(
		usecase.PlaceholderOptions{
			Defaults:  cfg.PlaceholderDefaults(),
			Cache:     cfg.Placeholder.Cache,
			RemoteURL: cfg.Placeholder.RemoteURL,
		},
		engine,
		fetcher.New(time.Duration(cfg.Placeholder.FetchTimeoutSec)*time.Second, cfg.Placeholder.MaxFetchSizeMB),
		store,
		mirror,
	)
	if err != nil {
		return nil, fmt.Errorf("init placeholder usecase: %w", err)
	}

	thumbnails, err := usecase.NewThumbnailUsecase(
		usecase.Options{
			DefaultQuality: cfg.Thumbnail.DefaultQuality,
			RequestTimeout: time.Duration(cfg.Thumbnail.RequestTimeoutSec) * time.Second,
		},
		paths,
		engine,
		store,
		placeholders,
		comp,
		mirror,
	)
	if err != nil {
		return nil, fmt.Errorf("init thumbnail usecase: %w", err)
	}

	zlog.Logger.Info().
		Str("cache_root", store.Root()).
		Str("url_prefix", store.URLPrefix()).
		Msg("Thumbnail service initialized")

	return &Service{ThumbnailUsecase: thumbnails, Store: store}, nil
}
