package fetcher

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/thumbcache/internal/domain"
)

const DefaultMaxSizeMB = 5

// HTTPFetcher downloads remote placeholder images with a size cap and timeout.
type HTTPFetcher struct {
	client       *http.Client
	maxSizeBytes int64
}

func New(timeout time.Duration, maxSizeMB int) *HTTPFetcher {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}
	return &HTTPFetcher{
		client:       &http.Client{Timeout: timeout},
		maxSizeBytes: int64(maxSizeMB) * 1024 * 1024,
	}
}

// Fetch returns the body and media type of an image at url. Transport
// failures, non-200 responses, oversized bodies and non-image content types
// are all reported as ErrRemoteFailure.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: build request: %v", domain.ErrRemoteFailure, err)
	}
	req.Header.Set("User-Agent", "thumbcache/1.0")
	req.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", fmt.Errorf("%w: %v", domain.ErrRemoteFailure, ctx.Err())
		}
		zlog.Logger.Error().Err(err).Str("url", url).Msg("remote fetch failed")
		return nil, "", fmt.Errorf("%w: %v", domain.ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		zlog.Logger.Warn().Str("url", url).Int("status", resp.StatusCode).Msg("unexpected status from remote")
		return nil, "", fmt.Errorf("%w: unexpected status code %d", domain.ErrRemoteFailure, resp.StatusCode)
	}

	contentType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("%w: content type %q is not an image", domain.ErrRemoteFailure, resp.Header.Get("Content-Type"))
	}

	if resp.ContentLength > f.maxSizeBytes {
		return nil, "", fmt.Errorf("%w: content length %d exceeds maximum %d bytes",
			domain.ErrRemoteFailure, resp.ContentLength, f.maxSizeBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSizeBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read body: %v", domain.ErrRemoteFailure, err)
	}
	if int64(len(data)) > f.maxSizeBytes {
		return nil, "", fmt.Errorf("%w: response body exceeds maximum %d bytes", domain.ErrRemoteFailure, f.maxSizeBytes)
	}

	zlog.Logger.Debug().
		Str("url", url).
		Str("content_type", contentType).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("remote image fetched")

	return data, contentType, nil
}
