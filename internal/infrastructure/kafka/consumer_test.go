package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
	"github.com/yokitheyo/thumbcache/internal/dto"
)

func TestDecodeWarmTask(t *testing.T) {
	task, err := DecodeWarmTask([]byte(`{"id":"t-1","request":{"source":"a.jpg","operations":[{"op":"resize","width":10}]}}`))
	require.NoError(t, err)
	assert.Equal(t, "t-1", task.ID)
	assert.Equal(t, "a.jpg", task.Request.Source)
	require.Len(t, task.Request.Operations, 1)
	assert.Equal(t, "resize", task.Request.Operations[0].Op)

	for name, raw := range map[string]string{
		"not json":     `{`,
		"missing id":   `{"request":{"source":"a.jpg"}}`,
		"empty source": `{"id":"t-2","request":{}}`,
	} {
		_, err := DecodeWarmTask([]byte(raw))
		assert.Error(t, err, name)
	}
}

func TestHandle_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	c := &Consumer{
		handler: func(ctx context.Context, task *dto.WarmTask) error {
			calls++
			if calls < 3 {
				return errors.New("disk full")
			}
			return nil
		},
		taskRetry: retry.Strategy{Attempts: 5, Delay: time.Millisecond, Backoff: 2},
	}

	require.NoError(t, c.handle(context.Background(), &dto.WarmTask{ID: "t"}))
	assert.Equal(t, 3, calls)
}

func TestHandle_GivesUpAfterAttempts(t *testing.T) {
	failure := errors.New("disk full")
	calls := 0
	c := &Consumer{
		handler: func(ctx context.Context, task *dto.WarmTask) error {
			calls++
			return failure
		},
		taskRetry: retry.Strategy{Attempts: 3, Delay: time.Millisecond},
	}

	assert.ErrorIs(t, c.handle(context.Background(), &dto.WarmTask{ID: "t"}), failure)
	assert.Equal(t, 3, calls)
}

func TestHandle_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	c := &Consumer{
		handler: func(ctx context.Context, task *dto.WarmTask) error {
			calls++
			cancel()
			return errors.New("timeout")
		},
		taskRetry: retry.Strategy{Attempts: 5, Delay: time.Hour},
	}

	assert.ErrorIs(t, c.handle(ctx, &dto.WarmTask{ID: "t"}), context.Canceled)
	assert.Equal(t, 1, calls)
}
