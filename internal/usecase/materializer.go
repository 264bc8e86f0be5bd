package usecase

import (
	"context"
	"io"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/thumbcache/internal/domain"
	"github.com/yokitheyo/thumbcache/internal/infrastructure/storage"
	"golang.org/x/sync/singleflight"
)

type produceFunc func(ctx context.Context, w io.Writer) error

// postCommitFunc runs after a successful commit while the fingerprint lock is
// still held. Its error does not invalidate the committed entry.
type postCommitFunc func(ctx context.Context, path string) error

// materializer makes sure a cache entry exists, generating it at most once
// per fingerprint at a time.
type materializer struct {
	store  *storage.CacheStore
	mirror domain.Mirror
	group  singleflight.Group
}

func newMaterializer(store *storage.CacheStore, mirror domain.Mirror) *materializer {
	return &materializer{store: store, mirror: mirror}
}

type flightResult struct {
	generated bool
	postErr   error
}

// ensure returns once loc.Path holds a fresh entry. generated is true when
// this flight (possibly shared with concurrent callers) produced the file.
func (m *materializer) ensure(ctx context.Context, fp string, loc storage.Location, produce produceFunc, post postCommitFunc) (generated bool, postErr error, err error) {
	v, err, shared := m.group.Do(fp, func() (any, error) {
		unlock := m.store.Lock(fp)
		defer unlock()

		state, err := m.store.CheckFresh(loc.Path)
		if err != nil {
			return nil, err
		}
		if state == storage.Fresh {
			return flightResult{}, nil
		}

		if err := m.store.Commit(ctx, loc.Path, func(w io.Writer) error {
			return produce(ctx, w)
		}); err != nil {
			return nil, err
		}

		var res flightResult
		res.generated = true
		if post != nil {
			res.postErr = post(ctx, loc.Path)
		}
		m.replicate(ctx, loc.Path)
		return res, nil
	})
	if err != nil {
		return false, nil, err
	}

	res := v.(flightResult)
	if shared {
		zlog.Logger.Debug().Str("fingerprint", fp).Msg("cache entry generation shared")
	}
	return res.generated, res.postErr, nil
}

// replicate pushes the committed entry to the mirror. Mirror failures are
// logged only: the local cache is authoritative.
func (m *materializer) replicate(ctx context.Context, path string) {
	if m.mirror == nil {
		return
	}

	key, err := m.store.Rel(path)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("path", path).Msg("cannot derive mirror key")
		return
	}

	file, size, err := m.store.Open(path)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("path", path).Msg("cannot open entry for mirroring")
		return
	}
	defer file.Close()

	if err := m.mirror.Upload(ctx, key, file, size, storage.ContentType(path)); err != nil {
		zlog.Logger.Warn().Err(err).Str("key", key).Msg("failed to mirror cache entry")
	}
}
