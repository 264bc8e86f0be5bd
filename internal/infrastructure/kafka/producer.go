package kafka

import (
	"context"
	"encoding/json"
	"time"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/thumbcache/internal/config"
	"github.com/yokitheyo/thumbcache/internal/dto"
)

type Producer struct {
	client *wbfkafka.Producer
	topic  string
}

func NewProducer(cfg *config.KafkaConfig) *Producer {
	client := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)
	zlog.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka warm producer initialized")
	return &Producer{
		client: client,
		topic:  cfg.Topic,
	}
}

// PublishWarmTask sends task keyed by its id, retrying transient failures.
func (p *Producer) PublishWarmTask(ctx context.Context, task dto.WarmTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("task_id", task.ID).
			Msg("Failed to marshal warm task")
		return err
	}
	strategy := retry.Strategy{
		Attempts: 3,
		Delay:    2 * time.Second,
		Backoff:  2.0,
	}
	if err := p.client.SendWithRetry(ctx, strategy, []byte(task.ID), data); err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("task_id", task.ID).
			Str("source", task.Request.Source).
			Msg("Failed to send warm task")
		return err
	}
	zlog.Logger.Info().
		Str("task_id", task.ID).
		Str("source", task.Request.Source).
		Msg("Warm task sent to Kafka")
	return nil
}

func (p *Producer) Close() error {
	if err := p.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka producer")
		return err
	}
	zlog.Logger.Info().Msg("Kafka producer closed successfully")
	return nil
}
