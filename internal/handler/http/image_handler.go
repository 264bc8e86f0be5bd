package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/thumbcache/internal/domain"
	"github.com/yokitheyo/thumbcache/internal/dto"
	"github.com/yokitheyo/thumbcache/internal/infrastructure/storage"
)

// WarmPublisher queues cache warming tasks.
type WarmPublisher interface {
	PublishWarmTask(ctx context.Context, task dto.WarmTask) error
}

type ImageHandler struct {
	service   domain.ImageService
	queue     WarmPublisher
	cacheRoot string
	urlPrefix string
}

// NewImageHandler builds the handler. queue may be nil, which disables /v1/warm.
func NewImageHandler(service domain.ImageService, queue WarmPublisher, cacheRoot, urlPrefix string) *ImageHandler {
	return &ImageHandler{
		service:   service,
		queue:     queue,
		cacheRoot: cacheRoot,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
	}
}

func (h *ImageHandler) RegisterRoutes(engine *ginext.Engine) {
	engine.POST("/v1/resolve", h.Resolve)
	engine.POST("/v1/placeholder", h.Placeholder)
	engine.POST("/v1/warm", h.Warm)
	engine.GET(h.urlPrefix+"/:shard/:file", h.ServeCached)
}

// Resolve POST /v1/resolve
func (h *ImageHandler) Resolve(c *ginext.Context) {
	var req dto.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	tr, err := req.ToTransformRequest()
	if err != nil {
		h.fail(c, err)
		return
	}

	ref, err := h.service.ResolveImage(c.Request.Context(), tr, req.PlaceholderSpec())
	if err != nil && !(ref != nil && errors.Is(err, domain.ErrRemoteFailure)) {
		h.fail(c, err)
		return
	}
	if ref == nil {
		c.Status(http.StatusNoContent)
		return
	}

	resp := dto.MapReferenceToResponse(ref)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("fingerprint", ref.Fingerprint).Msg("derivative served uncompressed")
		resp.Warning = "compression failed, uncompressed image served"
	}
	c.JSON(http.StatusOK, resp)
}

// Placeholder POST /v1/placeholder
func (h *ImageHandler) Placeholder(c *ginext.Context) {
	var req dto.PlaceholderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	ref, err := h.service.ResolvePlaceholder(c.Request.Context(), req.ToSpec())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapReferenceToResponse(ref))
}

// Warm POST /v1/warm
func (h *ImageHandler) Warm(c *ginext.Context) {
	if h.queue == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   "warm_disabled",
			Message: "Cache warming queue is not configured",
		})
		return
	}

	var req dto.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	tr, err := req.ToTransformRequest()
	if err == nil {
		err = tr.Validate()
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	task := dto.WarmTask{ID: uuid.NewString(), Request: req}
	if err := h.queue.PublishWarmTask(c.Request.Context(), task); err != nil {
		zlog.Logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to queue warm task")
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{
			Error:   "queue_unavailable",
			Message: "Failed to queue warm task",
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.WarmResponse{TaskID: task.ID, Status: "queued"})
}

var cachedFileRe = regexp.MustCompile(`^[0-9a-f]{32}\.[a-z0-9]+$`)

// ServeCached GET <urlPrefix>/:shard/:file
func (h *ImageHandler) ServeCached(c *ginext.Context) {
	shard := c.Param("shard")
	file := c.Param("file")
	if len(shard) != 2 || !cachedFileRe.MatchString(file) || !strings.HasPrefix(file, shard) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "not_found", Message: "Image not found"})
		return
	}

	path := filepath.Join(h.cacheRoot, shard, file)
	f, err := os.Open(path)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "not_found", Message: "Image not found"})
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || !stat.Mode().IsRegular() {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "not_found", Message: "Image not found"})
		return
	}

	c.Header("Content-Type", storage.ContentType(file))
	c.Header("Content-Length", strconv.FormatInt(stat.Size(), 10))
	c.Header("Cache-Control", "public, max-age=86400")
	c.Status(http.StatusOK)

	written, err := io.Copy(c.Writer, f)
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("file", file).
			Int64("bytes_written", written).
			Msg("failed to write cached image to response")
	}
}

func (h *ImageHandler) badRequest(c *ginext.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "invalid_request",
		Message: err.Error(),
		Code:    http.StatusBadRequest,
	})
}

func (h *ImageHandler) fail(c *ginext.Context, err error) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		zlog.Logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "An internal error occurred"
	}
	c.JSON(status, dto.ErrorResponse{Error: code, Message: msg, Code: status})
}

// StatusFor maps service errors onto HTTP statuses and error codes.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidParameters):
		return http.StatusBadRequest, "invalid_parameters"
	case errors.Is(err, domain.ErrOutOfBounds):
		return http.StatusBadRequest, "out_of_bounds"
	case errors.Is(err, domain.ErrEngineFailure):
		return http.StatusUnprocessableEntity, "engine_failure"
	case errors.Is(err, domain.ErrRemoteFailure):
		return http.StatusBadGateway, "remote_failure"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, domain.ErrStorageFailure):
		return http.StatusInternalServerError, "storage_failure"
	}
	return http.StatusInternalServerError, "internal_error"
}
