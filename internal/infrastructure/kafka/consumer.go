package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/thumbcache/internal/config"
	"github.com/yokitheyo/thumbcache/internal/dto"
)

type MessageHandler func(ctx context.Context, task *dto.WarmTask) error

type Consumer struct {
	client    *wbfkafka.Consumer
	handler   MessageHandler
	topic     string
	taskRetry retry.Strategy
}

func NewConsumer(cfg *config.KafkaConfig, handler MessageHandler) (*Consumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("kafka consumer: handler is nil")
	}
	client := wbfkafka.NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID)

	zlog.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("group_id", cfg.GroupID).
		Msg("Kafka warm consumer initialized")

	return &Consumer{
		client:  client,
		handler: handler,
		topic:   cfg.Topic,
		taskRetry: retry.Strategy{
			Attempts: 5,
			Delay:    time.Second,
			Backoff:  2.0,
		},
	}, nil
}

// DecodeWarmTask parses and sanity-checks a warm task message.
func DecodeWarmTask(data []byte) (*dto.WarmTask, error) {
	var task dto.WarmTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("unmarshal warm task: %w", err)
	}
	if task.ID == "" {
		return nil, fmt.Errorf("invalid warm task: empty id")
	}
	if task.Request.Source == "" {
		return nil, fmt.Errorf("invalid warm task %s: empty source", task.ID)
	}
	return &task, nil
}

func (c *Consumer) Start(ctx context.Context) error {
	strategy := retry.Strategy{
		Attempts: 3,
		Delay:    2 * time.Second,
		Backoff:  2.0,
	}

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("Kafka consumer stopped")
			return nil
		default:
			msg, err := c.client.FetchWithRetry(ctx, strategy)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				zlog.Logger.Error().Err(err).Msg("Failed to fetch Kafka message")
				time.Sleep(time.Second)
				continue
			}

			task, err := DecodeWarmTask(msg.Value)
			if err != nil {
				zlog.Logger.Error().
					Err(err).
					Bytes("msg", msg.Value).
					Msg("Dropping malformed warm task")
				c.commit(ctx, msg, "")
				continue
			}

			zlog.Logger.Info().
				Str("task_id", task.ID).
				Str("source", task.Request.Source).
				Msg("Received warm task")

			if err := c.handle(ctx, task); err != nil {
				if ctx.Err() != nil {
					// Left uncommitted, picked up again after restart.
					continue
				}
				zlog.Logger.Error().
					Err(err).
					Str("task_id", task.ID).
					Msg("Warm task failed after retries, dropping")
			}

			c.commit(ctx, msg, task.ID)
		}
	}
}

// handle runs the handler until it succeeds, the attempts run out or ctx is
// done. A later commit on the partition would skip an uncommitted message, so
// retries happen here instead of through redelivery.
func (c *Consumer) handle(ctx context.Context, task *dto.WarmTask) error {
	attempts := c.taskRetry.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := c.taskRetry.Delay

	var err error
	for i := 1; ; i++ {
		if err = c.handler(ctx, task); err == nil {
			return nil
		}
		if i >= attempts {
			return err
		}
		zlog.Logger.Warn().
			Err(err).
			Str("task_id", task.ID).
			Int("attempt", i).
			Dur("retry_in", delay).
			Msg("Warm task failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if c.taskRetry.Backoff > 1 {
			delay = time.Duration(float64(delay) * c.taskRetry.Backoff)
		}
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafkago.Message, taskID string) {
	if err := c.client.Commit(ctx, msg); err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("Failed to commit message")
		return
	}
	zlog.Logger.Debug().Str("task_id", taskID).Msg("Message committed")
}

func (c *Consumer) Close() error {
	if err := c.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka consumer")
		return err
	}
	zlog.Logger.Info().Msg("Kafka consumer closed successfully")
	return nil
}
