package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/thumbcache/internal/app"
	"github.com/yokitheyo/thumbcache/internal/config"
	httpHandler "github.com/yokitheyo/thumbcache/internal/handler/http"
	"github.com/yokitheyo/thumbcache/internal/handler/middleware"
	"github.com/yokitheyo/thumbcache/internal/infrastructure/kafka"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting Thumbcache API Server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load("")
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.ValidateServer(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("invalid server config")
	}
	app.SetLogLevel(cfg.Logging.Level)

	service, err := app.NewService(ctx, cfg)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize thumbnail service")
	}

	// Kafka Producer, optional
	var queue httpHandler.WarmPublisher
	if err := cfg.ValidateKafka(); err != nil {
		zlog.Logger.Warn().Err(err).Msg("Cache warming disabled")
	} else {
		producer := kafka.NewProducer(&cfg.Kafka)
		defer producer.Close()
		queue = producer
	}

	// Gin engine + middleware
	engine := ginext.New(cfg.Server.Mode)
	engine.Use(
		middleware.ErrorHandlerMiddleware(),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.CORSMiddleware(),
	)

	engine.GET("/health", func(c *ginext.Context) {
		c.JSON(http.StatusOK, ginext.H{"status": "ok"})
	})

	imageHandler := httpHandler.NewImageHandler(
		service,
		queue,
		service.Store.Root(),
		service.Store.URLPrefix(),
	)
	imageHandler.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Logger.Fatal().Err(err).Msg("Failed to start API server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	} else {
		zlog.Logger.Info().Msg("HTTP server stopped gracefully")
	}

	zlog.Logger.Info().Msg("API shutdown complete")
}
