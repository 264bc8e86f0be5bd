package usecase

import (
	"context"
	"image/color"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"github.com/yokitheyo/thumbcache/internal/domain"
	"github.com/yokitheyo/thumbcache/internal/infrastructure/processor"
	"github.com/yokitheyo/thumbcache/internal/infrastructure/resolver"
	"github.com/yokitheyo/thumbcache/internal/infrastructure/storage"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

type countingEngine struct {
	domain.ImageEngine
	opens atomic.Int32
}

func (e *countingEngine) Open(path string) (domain.ImageHandle, error) {
	e.opens.Add(1)
	return e.ImageEngine.Open(path)
}

type fakeFetcher struct {
	calls atomic.Int32
	data  []byte
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, "image/png", nil
}

type fakeCompressor struct {
	out []byte
	err error
}

func (c *fakeCompressor) Compress(ctx context.Context, data []byte) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.out, nil
}

type fakeMirror struct {
	mu   sync.Mutex
	keys []string
}

func (m *fakeMirror) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

type fixture struct {
	srcDir  string
	engine  *countingEngine
	paths   *resolver.FSResolver
	store   *storage.CacheStore
	fetcher *fakeFetcher
	defs    domain.PlaceholderDefaults
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	base, err := processor.NewImagingEngine("")
	require.NoError(t, err)

	srcDir := t.TempDir()
	paths, err := resolver.New(srcDir, map[string]string{"@assets": srcDir})
	require.NoError(t, err)

	store, err := storage.NewCacheStore(t.TempDir(), "/thumbnails", 0)
	require.NoError(t, err)

	return &fixture{
		srcDir:  srcDir,
		engine:  &countingEngine{ImageEngine: base},
		paths:   paths,
		store:   store,
		fetcher: &fakeFetcher{data: []byte("remote-png")},
		defs: domain.PlaceholderDefaults{
			Strategy:        domain.PlaceholderLocalRender,
			BackgroundColor: "#f5f5f5",
			TextColor:       "#cdcdcd",
			Text:            "No image",
			TextSize:        20,
		},
	}
}

// image writes a solid w x h image named name into the source directory.
func (f *fixture) image(t *testing.T, name string, w, h int, c color.Color) string {
	t.Helper()
	path := filepath.Join(f.srcDir, name)
	require.NoError(t, imaging.Save(imaging.New(w, h, c), path))
	return path
}

func (f *fixture) placeholders(t *testing.T, opts PlaceholderOptions, options ...PlaceholderOption) *PlaceholderUsecase {
	t.Helper()
	if opts.Defaults == (domain.PlaceholderDefaults{}) {
		opts.Defaults = f.defs
	}
	u, err := NewPlaceholderUsecase(opts, f.engine, f.fetcher, f.store, nil, options...)
	require.NoError(t, err)
	return u
}

func (f *fixture) service(t *testing.T, compressor domain.Compressor, mirror domain.Mirror) *ThumbnailUsecase {
	t.Helper()
	u, err := NewThumbnailUsecase(
		Options{},
		f.paths,
		f.engine,
		f.store,
		f.placeholders(t, PlaceholderOptions{}),
		compressor,
		mirror,
	)
	require.NoError(t, err)
	return u
}
