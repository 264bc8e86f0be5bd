package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/thumbcache/internal/domain"
)

type Freshness int

const (
	Absent Freshness = iota
	Fresh
	Stale
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "absent"
	}
}

// Location is where a fingerprint lives on disk and under the public prefix.
type Location struct {
	Path string
	URL  string
	Dir  string
}

// CacheStore is a content-addressed file cache sharded by the first two
// characters of the fingerprint. There is no index: the filesystem is the
// only state, so several processes may share one root.
type CacheStore struct {
	root      string
	urlPrefix string
	expire    time.Duration
	now       func() time.Time
	locks     sync.Map
}

type Option func(*CacheStore)

// WithClock overrides the time source used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(s *CacheStore) {
		s.now = now
	}
}

// NewCacheStore creates root if needed. An expire of zero keeps entries forever.
func NewCacheStore(root, urlPrefix string, expire time.Duration, opts ...Option) (*CacheStore, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: cache root is empty, set thumbnail.cache_root in config or env", domain.ErrInvalidConfig)
	}
	if expire < 0 {
		return nil, fmt.Errorf("%w: negative cache expiration %s", domain.ErrInvalidConfig, expire)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve cache root: %v", domain.ErrInvalidConfig, err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create cache root: %v", domain.ErrStorageFailure, err)
	}

	s := &CacheStore{
		root:      absRoot,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		expire:    expire,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	zlog.Logger.Info().
		Str("root", s.root).
		Str("url_prefix", s.urlPrefix).
		Dur("expire", s.expire).
		Msg("CacheStore initialized")

	return s, nil
}

func (s *CacheStore) Root() string {
	return s.root
}

func (s *CacheStore) URLPrefix() string {
	return s.urlPrefix
}

func (s *CacheStore) Locate(fp, ext string) Location {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	shard := fp
	if len(fp) > 2 {
		shard = fp[:2]
	}
	name := fp + ext
	dir := filepath.Join(s.root, shard)
	return Location{
		Path: filepath.Join(dir, name),
		URL:  path.Join(s.urlPrefix, shard, name),
		Dir:  dir,
	}
}

// CheckFresh reports the state of the entry at p. Stale entries are removed
// before returning; losing that race to another evictor is not an error.
func (s *CacheStore) CheckFresh(p string) (Freshness, error) {
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Absent, nil
		}
		zlog.Logger.Error().Err(err).Str("path", p).Msg("failed to stat cache entry")
		return Absent, fmt.Errorf("%w: stat %s: %v", domain.ErrStorageFailure, p, err)
	}
	if !info.Mode().IsRegular() {
		return Absent, fmt.Errorf("%w: %s is not a regular file", domain.ErrStorageFailure, p)
	}

	if s.expire == 0 || s.now().Sub(info.ModTime()) <= s.expire {
		return Fresh, nil
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		zlog.Logger.Error().Err(err).Str("path", p).Msg("failed to evict stale cache entry")
		return Stale, fmt.Errorf("%w: evict %s: %v", domain.ErrStorageFailure, p, err)
	}
	zlog.Logger.Debug().Str("path", p).Msg("stale cache entry evicted")
	return Stale, nil
}

func (s *CacheStore) EnsureDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		zlog.Logger.Error().Err(err).Str("dir", dir).Msg("failed to create cache directory")
		return fmt.Errorf("%w: create directory %s: %v", domain.ErrStorageFailure, dir, err)
	}
	return nil
}

// Commit atomically replaces the file at p with whatever write produces.
// Readers see either the old file or the complete new one. Errors returned by
// write are passed through unchanged.
func (s *CacheStore) Commit(ctx context.Context, p string, write func(io.Writer) error) error {
	if write == nil {
		return fmt.Errorf("%w: commit writer", domain.ErrNilDependency)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(p)
	if err := s.EnsureDirectory(dir); err != nil {
		return err
	}

	tmpPath := filepath.Join(dir, "."+filepath.Base(p)+"."+uuid.NewString()+".tmp")
	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("path", tmpPath).Msg("failed to create temp file")
		return fmt.Errorf("%w: create temp file: %v", domain.ErrStorageFailure, err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = file.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := write(file); err != nil {
		zlog.Logger.Error().Err(err).Str("path", p).Msg("failed to write cache entry")
		return err
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("%w: sync temp file: %v", domain.ErrStorageFailure, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", domain.ErrStorageFailure, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("%w: chmod temp file: %v", domain.ErrStorageFailure, err)
	}
	if err := os.Rename(tmpPath, p); err != nil {
		zlog.Logger.Error().Err(err).Str("path", p).Msg("failed to rename temp file")
		return fmt.Errorf("%w: rename temp file: %v", domain.ErrStorageFailure, err)
	}
	committed = true

	zlog.Logger.Info().
		Str("path", p).
		Str("ext", filepath.Ext(p)).
		Msg("cache entry committed")
	return nil
}

// Lock serializes writers of one fingerprint within this process. The
// returned func must be called exactly once.
func (s *CacheStore) Lock(fp string) (unlock func()) {
	v, _ := s.locks.LoadOrStore(fp, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Open returns the cached file at p for reading.
func (s *CacheStore) Open(p string) (*os.File, int64, error) {
	file, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, p)
		}
		return nil, 0, fmt.Errorf("%w: open %s: %v", domain.ErrStorageFailure, p, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, fmt.Errorf("%w: stat %s: %v", domain.ErrStorageFailure, p, err)
	}
	return file, info.Size(), nil
}

// Rel returns p relative to the cache root using forward slashes, as used for
// mirror object keys.
func (s *CacheStore) Rel(p string) (string, error) {
	rel, err := filepath.Rel(s.root, p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %s is outside the cache root", domain.ErrStorageFailure, p)
	}
	return filepath.ToSlash(rel), nil
}
