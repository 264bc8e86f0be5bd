package domain

import (
	"context"
	"image/color"
	"io"
	"time"
)

// ImageService is the surface consumed by the HTTP handlers and the warm worker.
type ImageService interface {
	// ResolveImage returns the cached derivative for req, a placeholder when the
	// source is missing and placeholder is set, or nil when there is no result.
	ResolveImage(ctx context.Context, req TransformRequest, placeholder *PlaceholderSpec) (*Reference, error)
	ResolvePlaceholder(ctx context.Context, spec PlaceholderSpec) (*Reference, error)
}

type PathResolver interface {
	// Resolve turns an alias or relative path into an absolute, normalized path.
	Resolve(aliasOrPath string) (string, error)
	// Exists reports whether path is an existing regular file.
	Exists(path string) bool
	ModTime(path string) (time.Time, error)
}

// ImageHandle is an in-memory image. Every transforming method returns the
// handle to continue with; callers must not assume the receiver was mutated.
type ImageHandle interface {
	Size() (width, height int)
	Crop(x, y, width, height int) (ImageHandle, error)
	Resize(width, height int) ImageHandle
	Thumbnail(width, height int, mode FitMode) ImageHandle
	Paste(overlay ImageHandle, x, y int) ImageHandle
	// Encode writes the image in the format named by ext (".jpg", ".png", ...).
	Encode(w io.Writer, ext string, quality int) error
}

type ImageEngine interface {
	Open(path string) (ImageHandle, error)
	Canvas(width, height int, bg color.Color) ImageHandle
	// DrawText renders text horizontally centered on h, using size as the
	// glyph height for vertical centering.
	DrawText(h ImageHandle, text string, size int, fg color.Color) (ImageHandle, error)
}

type HTTPFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, contentType string, err error)
}

// Compressor recompresses an encoded image through a remote service.
type Compressor interface {
	Compress(ctx context.Context, data []byte) ([]byte, error)
}

// Mirror replicates committed cache entries to secondary storage.
type Mirror interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}
