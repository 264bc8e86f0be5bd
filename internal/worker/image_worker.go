package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/thumbcache/internal/domain"
	"github.com/yokitheyo/thumbcache/internal/dto"
)

// WarmWorker pre-generates cache entries for queued requests.
type WarmWorker struct {
	service domain.ImageService
}

func NewWarmWorker(service domain.ImageService) *WarmWorker {
	return &WarmWorker{service: service}
}

// HandleWarmTask resolves the queued request. Requests that can never
// succeed are logged and reported as handled so the message is committed.
func (w *WarmWorker) HandleWarmTask(ctx context.Context, task *dto.WarmTask) error {
	req, err := task.Request.ToTransformRequest()
	if err != nil {
		zlog.Logger.Error().Err(err).Str("task_id", task.ID).Msg("invalid warm task, dropping")
		return nil
	}

	ref, err := w.service.ResolveImage(ctx, req, task.Request.PlaceholderSpec())
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidParameters), errors.Is(err, domain.ErrOutOfBounds), errors.Is(err, domain.ErrEngineFailure):
		zlog.Logger.Error().Err(err).Str("task_id", task.ID).Msg("warm task cannot succeed, dropping")
		return nil
	case errors.Is(err, domain.ErrRemoteFailure) && ref != nil:
		zlog.Logger.Warn().Err(err).Str("task_id", task.ID).Msg("entry cached without compression")
	default:
		return fmt.Errorf("warm %s: %w", task.Request.Source, err)
	}

	if ref == nil {
		zlog.Logger.Info().
			Str("task_id", task.ID).
			Str("source", task.Request.Source).
			Msg("source missing, nothing to warm")
		return nil
	}

	zlog.Logger.Info().
		Str("task_id", task.ID).
		Str("fingerprint", ref.Fingerprint).
		Str("url", ref.URL).
		Msg("cache entry warmed")
	return nil
}
