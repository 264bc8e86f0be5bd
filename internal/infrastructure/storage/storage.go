package storage

import (
	"context"
	"mime"
	"path/filepath"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/thumbcache/internal/config"
	"github.com/yokitheyo/thumbcache/internal/domain"
)

// NewMirror returns the configured mirror, or nil when mirroring is disabled.
func NewMirror(ctx context.Context, cfg *config.MirrorConfig) (domain.Mirror, error) {
	if !cfg.Enabled {
		zlog.Logger.Info().Msg("Cache mirror disabled")
		return nil, nil
	}
	zlog.Logger.Info().Str("endpoint", cfg.S3Endpoint).Str("bucket", cfg.S3Bucket).Msg("Initializing S3 cache mirror")
	return NewS3Mirror(ctx, cfg)
}

// ContentType guesses the MIME type of a cache entry from its extension.
func ContentType(p string) string {
	ext := filepath.Ext(p)
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
