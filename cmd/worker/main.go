package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/thumbcache/internal/app"
	"github.com/yokitheyo/thumbcache/internal/config"
	"github.com/yokitheyo/thumbcache/internal/infrastructure/kafka"
	"github.com/yokitheyo/thumbcache/internal/worker"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting Thumbcache Warm Worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load("")
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.ValidateKafka(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("invalid kafka config")
	}
	app.SetLogLevel(cfg.Logging.Level)

	service, err := app.NewService(ctx, cfg)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize thumbnail service")
	}
	warmWorker := worker.NewWarmWorker(service)

	// Kafka Consumer
	kafkaConsumer, err := kafka.NewConsumer(&cfg.Kafka, warmWorker.HandleWarmTask)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize Kafka consumer")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := kafkaConsumer.Start(ctx); err != nil {
			zlog.Logger.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		zlog.Logger.Warn().Msg("Warm task still running at shutdown deadline")
	}

	if err := kafkaConsumer.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("closing kafka consumer failed")
	}

	zlog.Logger.Info().Msg("Worker shutdown complete")
}
