package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/thumbcache/internal/domain"
	"github.com/yokitheyo/thumbcache/internal/infrastructure/processor"
	"github.com/yokitheyo/thumbcache/internal/infrastructure/storage"
)

const defaultQuality = 92

type Options struct {
	// DefaultQuality replaces a zero request quality.
	DefaultQuality int
	// RequestTimeout bounds a single resolve; zero means no extra deadline.
	RequestTimeout time.Duration
}

// ThumbnailUsecase resolves transform requests to cached derivatives.
type ThumbnailUsecase struct {
	opts         Options
	resolver     domain.PathResolver
	engine       domain.ImageEngine
	pipeline     *Pipeline
	store        *storage.CacheStore
	placeholders *PlaceholderUsecase
	compressor   domain.Compressor
	cache        *materializer
}

var _ domain.ImageService = (*ThumbnailUsecase)(nil)

// NewThumbnailUsecase wires the service. compressor and mirror may be nil,
// which disables compression and replication.
func NewThumbnailUsecase(
	opts Options,
	resolver domain.PathResolver,
	engine domain.ImageEngine,
	store *storage.CacheStore,
	placeholders *PlaceholderUsecase,
	compressor domain.Compressor,
	mirror domain.Mirror,
) (*ThumbnailUsecase, error) {
	if resolver == nil || engine == nil || store == nil || placeholders == nil {
		return nil, fmt.Errorf("%w: thumbnail usecase", domain.ErrNilDependency)
	}
	if opts.DefaultQuality == 0 {
		opts.DefaultQuality = defaultQuality
	}
	if opts.DefaultQuality < domain.MinQuality || opts.DefaultQuality > domain.MaxQuality {
		return nil, fmt.Errorf("%w: default quality %d", domain.ErrInvalidConfig, opts.DefaultQuality)
	}

	pipeline, err := NewPipeline(engine, resolver)
	if err != nil {
		return nil, err
	}

	return &ThumbnailUsecase{
		opts:         opts,
		resolver:     resolver,
		engine:       engine,
		pipeline:     pipeline,
		store:        store,
		placeholders: placeholders,
		compressor:   compressor,
		cache:        newMaterializer(store, mirror),
	}, nil
}

func (u *ThumbnailUsecase) ResolveImage(ctx context.Context, req domain.TransformRequest, placeholder *domain.PlaceholderSpec) (*domain.Reference, error) {
	ctx, cancel := u.withTimeout(ctx)
	defer cancel()

	if req.SourcePath() == "" {
		return nil, &domain.ParamError{Op: "request", Field: "source", Reason: "source path is required"}
	}

	source, err := u.resolver.Resolve(req.SourcePath())
	if err != nil {
		return nil, err
	}
	if !u.resolver.Exists(source) {
		zlog.Logger.Debug().Str("source", source).Msg("source image missing")
		return u.fallback(ctx, placeholder)
	}

	modTime, err := u.resolver.ModTime(source)
	if err != nil {
		if errors.Is(err, domain.ErrSourceNotFound) {
			return u.fallback(ctx, placeholder)
		}
		return nil, err
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	quality := req.Quality()
	if quality == 0 {
		quality = u.opts.DefaultQuality
	}
	ops := req.Operations()
	ext := outputExt(source)

	fp := domain.ImageFingerprint(source, domain.CanonicalParams(ops, req.Compress()), quality, modTime, u.overlayStamps(ops)...)
	loc := u.store.Locate(fp, ext)
	ref := &domain.Reference{Kind: domain.RefCached, Fingerprint: fp, Path: loc.Path, URL: loc.URL}

	state, err := u.store.CheckFresh(loc.Path)
	if err != nil {
		return nil, err
	}
	if state == storage.Fresh {
		zlog.Logger.Debug().Str("fingerprint", fp).Msg("cache hit")
		return ref, nil
	}

	produce := func(ctx context.Context, w io.Writer) error {
		src, err := u.engine.Open(source)
		if err != nil {
			return err
		}
		out, err := u.pipeline.Apply(ctx, src, ops)
		if err != nil {
			return err
		}
		return out.Encode(w, ext, quality)
	}

	var post postCommitFunc
	if req.Compress() && u.compressor != nil {
		post = u.compress
	}

	start := time.Now()
	generated, postErr, err := u.cache.ensure(ctx, fp, loc, produce, post)
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("source", source).
			Str("fingerprint", fp).
			Msg("failed to generate derivative")
		return nil, err
	}
	if generated {
		zlog.Logger.Info().
			Str("source", source).
			Str("fingerprint", fp).
			Int("operations", len(ops)).
			Int("quality", quality).
			Dur("duration", time.Since(start)).
			Msg("derivative generated")
	}
	if postErr != nil {
		return ref, postErr
	}
	return ref, nil
}

// overlayStamps versions the watermark files of ops. Overlays that cannot be
// resolved are skipped here and reported by the pipeline.
func (u *ThumbnailUsecase) overlayStamps(ops []domain.Operation) []string {
	var stamps []string
	for _, op := range ops {
		wm, ok := domain.Concrete(op).(domain.Watermark)
		if !ok {
			continue
		}
		path, err := u.resolver.Resolve(wm.ImagePath)
		if err != nil {
			continue
		}
		modTime, err := u.resolver.ModTime(path)
		if err != nil {
			continue
		}
		stamps = append(stamps, domain.OverlayStamp(path, modTime))
	}
	return stamps
}

func (u *ThumbnailUsecase) ResolvePlaceholder(ctx context.Context, spec domain.PlaceholderSpec) (*domain.Reference, error) {
	ctx, cancel := u.withTimeout(ctx)
	defer cancel()
	return u.placeholders.Generate(ctx, spec)
}

func (u *ThumbnailUsecase) fallback(ctx context.Context, placeholder *domain.PlaceholderSpec) (*domain.Reference, error) {
	if placeholder == nil {
		return nil, nil
	}
	return u.placeholders.Generate(ctx, *placeholder)
}

// compress recompresses the committed file in place. The uncompressed entry
// stays valid when the remote service fails.
func (u *ThumbnailUsecase) compress(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read for compression: %v", domain.ErrStorageFailure, err)
	}

	out, err := u.compressor.Compress(ctx, data)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("path", path).Msg("compression failed, keeping uncompressed entry")
		if !errors.Is(err, domain.ErrRemoteFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrRemoteFailure, err)
		}
		return err
	}

	return u.store.Commit(ctx, path, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(out))
		return err
	})
}

func (u *ThumbnailUsecase) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if u.opts.RequestTimeout > 0 {
		return context.WithTimeout(ctx, u.opts.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// outputExt keeps the source format when the engine can write it and falls
// back to PNG otherwise.
func outputExt(source string) string {
	ext := strings.ToLower(filepath.Ext(source))
	if ext == "" || !processor.CanEncode(ext) {
		return ".png"
	}
	return ext
}
