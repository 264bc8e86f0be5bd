package usecase

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/url"
	"strings"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/thumbcache/internal/domain"
	"github.com/yokitheyo/thumbcache/internal/infrastructure/storage"
)

const placeholderExt = ".png"

type PlaceholderOptions struct {
	Defaults domain.PlaceholderDefaults
	// Cache stores remote placeholders locally instead of linking to them.
	Cache bool
	// RemoteURL is the base of the remote stub image service.
	RemoteURL string
}

type PlaceholderUsecase struct {
	opts        PlaceholderOptions
	engine      domain.ImageEngine
	fetcher     domain.HTTPFetcher
	store       *storage.CacheStore
	cache       *materializer
	randomColor func() string
}

type PlaceholderOption func(*PlaceholderUsecase)

// WithRandomColor replaces the random background color source.
func WithRandomColor(fn func() string) PlaceholderOption {
	return func(u *PlaceholderUsecase) {
		u.randomColor = fn
	}
}

func NewPlaceholderUsecase(
	opts PlaceholderOptions,
	engine domain.ImageEngine,
	fetcher domain.HTTPFetcher,
	store *storage.CacheStore,
	mirror domain.Mirror,
	options ...PlaceholderOption,
) (*PlaceholderUsecase, error) {
	if err := opts.Defaults.Validate(); err != nil {
		return nil, err
	}
	if engine == nil || store == nil {
		return nil, fmt.Errorf("%w: placeholder usecase needs an engine and a cache store", domain.ErrNilDependency)
	}
	if opts.Cache && fetcher == nil {
		return nil, fmt.Errorf("%w: cached remote placeholders need a fetcher", domain.ErrNilDependency)
	}

	u := &PlaceholderUsecase{
		opts:        opts,
		engine:      engine,
		fetcher:     fetcher,
		store:       store,
		cache:       newMaterializer(store, mirror),
		randomColor: randomHexColor,
	}
	for _, o := range options {
		o(u)
	}
	u.opts.RemoteURL = strings.TrimRight(u.opts.RemoteURL, "/")
	return u, nil
}

func (u *PlaceholderUsecase) Generate(ctx context.Context, spec domain.PlaceholderSpec) (*domain.Reference, error) {
	s, err := spec.Normalize(u.opts.Defaults)
	if err != nil {
		return nil, err
	}
	if s.IsRandom() && s.Strategy != domain.PlaceholderLocalRender {
		s.BackgroundColor = u.randomColor()
	}

	zlog.Logger.Debug().
		Str("strategy", string(s.Strategy)).
		Int("width", s.Width).
		Int("height", s.Height).
		Msg("generating placeholder")

	switch s.Strategy {
	case domain.PlaceholderRemoteURL:
		return u.remote(ctx, s)
	case domain.PlaceholderClientJS:
		return &domain.Reference{Kind: domain.RefDescriptor, URL: holderDescriptor(s)}, nil
	case domain.PlaceholderLocalRender:
		return u.local(ctx, s)
	}
	return nil, &domain.ParamError{Op: "placeholder", Field: "strategy", Reason: string(s.Strategy)}
}

func (u *PlaceholderUsecase) remote(ctx context.Context, s domain.PlaceholderSpec) (*domain.Reference, error) {
	remoteURL := fmt.Sprintf("%s/%dx%d/%s/%s/png?text=%s&size=%d",
		u.opts.RemoteURL,
		s.Width, s.Height,
		strings.TrimPrefix(s.BackgroundColor, "#"),
		strings.TrimPrefix(s.TextColor, "#"),
		url.QueryEscape(s.Text),
		s.TextSize,
	)
	if !u.opts.Cache {
		return &domain.Reference{Kind: domain.RefRemote, URL: remoteURL}, nil
	}

	return u.cached(ctx, s, func(ctx context.Context, w io.Writer) error {
		data, _, err := u.fetcher.Fetch(ctx, remoteURL)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
}

func (u *PlaceholderUsecase) local(ctx context.Context, s domain.PlaceholderSpec) (*domain.Reference, error) {
	bg, err := domain.ParseHexColor(s.BackgroundColor)
	if err != nil {
		return nil, err
	}
	fg, err := domain.ParseHexColor(s.TextColor)
	if err != nil {
		return nil, err
	}

	return u.cached(ctx, s, func(ctx context.Context, w io.Writer) error {
		canvas := u.engine.Canvas(s.Width, s.Height, bg)
		img, err := u.engine.DrawText(canvas, s.Text, s.TextSize, fg)
		if err != nil {
			return err
		}
		return img.Encode(w, placeholderExt, domain.MaxQuality)
	})
}

func (u *PlaceholderUsecase) cached(ctx context.Context, s domain.PlaceholderSpec, produce produceFunc) (*domain.Reference, error) {
	fp := domain.PlaceholderFingerprint(s.Strategy, s.Width, s.Height, s.Text, s.BackgroundColor, s.TextColor, s.TextSize)
	loc := u.store.Locate(fp, placeholderExt)
	ref := &domain.Reference{Kind: domain.RefCached, Fingerprint: fp, Path: loc.Path, URL: loc.URL}

	state, err := u.store.CheckFresh(loc.Path)
	if err != nil {
		return nil, err
	}
	if state == storage.Fresh {
		return ref, nil
	}

	generated, _, err := u.cache.ensure(ctx, fp, loc, produce, nil)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("fingerprint", fp).Msg("failed to generate placeholder")
		return nil, err
	}
	if generated {
		zlog.Logger.Info().
			Str("fingerprint", fp).
			Str("strategy", string(s.Strategy)).
			Msg("placeholder cached")
	}
	return ref, nil
}

// holderDescriptor builds the holder.js data-src value for s.
func holderDescriptor(s domain.PlaceholderSpec) string {
	d := fmt.Sprintf("holder.js/%dx%d?bg=%s&fg=%s&text=%s&size=%d",
		s.Width, s.Height,
		strings.TrimPrefix(s.BackgroundColor, "#"),
		strings.TrimPrefix(s.TextColor, "#"),
		url.QueryEscape(s.Text),
		s.TextSize,
	)
	if s.IsRandom() {
		d += "&random=yes"
	}
	return d
}

func randomHexColor() string {
	return fmt.Sprintf("#%06x", rand.IntN(0x1000000))
}
