package compressor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/thumbcache/internal/domain"
)

const DefaultMaxSizeMB = 20

// ShrinkClient talks to a TinyPNG-compatible recompression API: the image is
// posted to /shrink and the result is downloaded from the returned location.
type ShrinkClient struct {
	client       *http.Client
	endpoint     string
	credential   string
	maxSizeBytes int64
}

func New(endpoint, credential string, timeout time.Duration, maxSizeMB int) (*ShrinkClient, error) {
	if credential == "" {
		return nil, fmt.Errorf("%w: compression credential is empty", domain.ErrInvalidConfig)
	}
	if endpoint == "" {
		return nil, fmt.Errorf("%w: compression endpoint is empty", domain.ErrInvalidConfig)
	}
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}
	return &ShrinkClient{
		client:       &http.Client{Timeout: timeout},
		endpoint:     strings.TrimRight(endpoint, "/"),
		credential:   credential,
		maxSizeBytes: int64(maxSizeMB) * 1024 * 1024,
	}, nil
}

type shrinkResponse struct {
	Output struct {
		Size int64  `json:"size"`
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"output"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *ShrinkClient) Compress(ctx context.Context, data []byte) ([]byte, error) {
	start := time.Now()

	location, err := c.shrink(ctx, data)
	if err != nil {
		return nil, err
	}

	out, err := c.download(ctx, location)
	if err != nil {
		return nil, err
	}

	zlog.Logger.Info().
		Int("input_bytes", len(data)).
		Int("output_bytes", len(out)).
		Dur("duration", time.Since(start)).
		Msg("image recompressed")

	return out, nil
}

func (c *ShrinkClient) shrink(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/shrink", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: build shrink request: %v", domain.ErrRemoteFailure, err)
	}
	req.SetBasicAuth("api", c.credential)

	resp, err := c.client.Do(req)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("shrink request failed")
		return "", fmt.Errorf("%w: shrink: %v", domain.ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	var body shrinkResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body); err != nil && resp.StatusCode < 300 {
		return "", fmt.Errorf("%w: decode shrink response: %v", domain.ErrRemoteFailure, err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		zlog.Logger.Warn().
			Int("status", resp.StatusCode).
			Str("error", body.Error).
			Str("message", body.Message).
			Msg("shrink rejected")
		return "", fmt.Errorf("%w: shrink status %d: %s", domain.ErrRemoteFailure, resp.StatusCode, body.Message)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		location = body.Output.URL
	}
	if location == "" {
		return "", fmt.Errorf("%w: shrink response has no output location", domain.ErrRemoteFailure)
	}
	return location, nil
}

func (c *ShrinkClient) download(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build download request: %v", domain.ErrRemoteFailure, err)
	}
	req.SetBasicAuth("api", c.credential)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download: %v", domain.ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download status %d", domain.ErrRemoteFailure, resp.StatusCode)
	}

	out, err := io.ReadAll(io.LimitReader(resp.Body, c.maxSizeBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read download: %v", domain.ErrRemoteFailure, err)
	}
	if int64(len(out)) > c.maxSizeBytes {
		return nil, fmt.Errorf("%w: compressed image exceeds maximum %d bytes", domain.ErrRemoteFailure, c.maxSizeBytes)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: compressed image is empty", domain.ErrRemoteFailure)
	}
	return out, nil
}
