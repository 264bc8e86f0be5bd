package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/thumbcache/internal/domain"
)

// FSResolver maps request paths onto the local filesystem. "@name/rest" is
// resolved against the alias table and every other path, absolute or not,
// against basePath. Results never leave their root.
type FSResolver struct {
	basePath string
	aliases  map[string]string
}

func New(basePath string, aliases map[string]string) (*FSResolver, error) {
	r := &FSResolver{aliases: make(map[string]string, len(aliases))}

	if basePath == "" {
		basePath = "."
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: base path %q: %v", domain.ErrInvalidConfig, basePath, err)
	}
	r.basePath = abs

	for name, target := range aliases {
		name = strings.TrimPrefix(name, "@")
		if name == "" || target == "" {
			return nil, fmt.Errorf("%w: empty alias or alias target", domain.ErrInvalidConfig)
		}
		abs, err := filepath.Abs(target)
		if err != nil {
			return nil, fmt.Errorf("%w: alias @%s: %v", domain.ErrInvalidConfig, name, err)
		}
		r.aliases[name] = abs
	}

	zlog.Logger.Info().
		Str("base_path", r.basePath).
		Int("aliases", len(r.aliases)).
		Msg("Path resolver initialized")

	return r, nil
}

func (r *FSResolver) Resolve(aliasOrPath string) (string, error) {
	p := strings.TrimSpace(aliasOrPath)
	if p == "" {
		return "", fmt.Errorf("%w: empty path", domain.ErrInvalidParameters)
	}

	root, rest := r.basePath, p
	if strings.HasPrefix(p, "@") {
		var name string
		name, rest, _ = strings.Cut(p[1:], "/")
		alias, ok := r.aliases[name]
		if !ok {
			return "", fmt.Errorf("%w: unknown alias @%s", domain.ErrInvalidParameters, name)
		}
		root = alias
	}

	resolved := filepath.Join(root, filepath.FromSlash(rest))
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path %q escapes its root", domain.ErrInvalidParameters, aliasOrPath)
	}
	return resolved, nil
}

func (r *FSResolver) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (r *FSResolver) ModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, path)
		}
		return time.Time{}, fmt.Errorf("%w: stat %s: %v", domain.ErrStorageFailure, path, err)
	}
	return info.ModTime(), nil
}
