// Package i18n loads translation catalogs and resolves dot-addressed keys
// against the active locale.
//
// Catalogs are YAML files laid out as locales/<locale>/<namespace>.yaml.
// The first segment of a key names the namespace, so "auth.login.title"
// reads login.title from auth.yaml.
package i18n

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/alecgard/ovpnadmin/internal/locale"
)

//go:embed locales
var embedded embed.FS

// Loader produces the namespaces of one locale.
type Loader func(ctx context.Context) (map[string]map[string]any, error)

// Registry maps locale identifiers to loaders and memoizes loaded bundles.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]Loader
	bundles map[string]*Bundle
	group   singleflight.Group
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		loaders: make(map[string]Loader),
		bundles: make(map[string]*Bundle),
	}
}

// DefaultRegistry registers every supported locale against the embedded
// catalogs.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, l := range locale.Supported() {
		r.Register(l, FSLoader(embedded, path.Join("locales", l)))
	}
	return r
}

// Register installs the loader for l, dropping any bundle already loaded
// for it.
func (r *Registry) Register(l string, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[l] = loader
	delete(r.bundles, l)
}

// Locales returns the registered locales, sorted.
func (r *Registry) Locales() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.loaders))
	for l := range r.loaders {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Preload loads the given locales synchronously. It stops at the first
// failure.
func (r *Registry) Preload(ctx context.Context, locales ...string) error {
	for _, l := range locales {
		if _, err := r.Load(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the bundle for l, running its loader at most once even
// under concurrent callers. Failed loads are not cached.
func (r *Registry) Load(ctx context.Context, l string) (*Bundle, error) {
	if b := r.Loaded(l); b != nil {
		return b, nil
	}
	r.mu.RLock()
	loader, ok := r.loaders[l]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", locale.ErrUnsupportedLocale, l)
	}

	v, err, _ := r.group.Do(l, func() (any, error) {
		if b := r.Loaded(l); b != nil {
			return b, nil
		}
		ns, err := loader(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading %s translations: %w", l, err)
		}
		b := &Bundle{locale: l, namespaces: ns}
		r.mu.Lock()
		r.bundles[l] = b
		r.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Bundle), nil
}

// Loaded returns the bundle for l if it has already been loaded.
func (r *Registry) Loaded(l string) *Bundle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bundles[l]
}

// FSLoader reads every *.yaml file directly under dir of fsys as one
// namespace named after the file.
func FSLoader(fsys fs.FS, dir string) Loader {
	return func(ctx context.Context) (map[string]map[string]any, error) {
		entries, err := fs.ReadDir(fsys, dir)
		if err != nil {
			return nil, err
		}
		out := make(map[string]map[string]any, len(entries))
		for _, e := range entries {
			if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
			if err != nil {
				return nil, err
			}
			var ns map[string]any
			if err := yaml.Unmarshal(data, &ns); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", e.Name(), err)
			}
			if ns == nil {
				ns = map[string]any{}
			}
			if err := stringKeys(ns, ""); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", e.Name(), err)
			}
			out[strings.TrimSuffix(e.Name(), ".yaml")] = ns
		}
		return out, nil
	}
}

// stringKeys rewrites nested maps in place so every level is keyed by
// string. YAML decodes a map with a numeric or boolean key such as 404 as
// map[any]any; scalar keys keep their text form and any other key is an
// error.
func stringKeys(m map[string]any, prefix string) error {
	for k, v := range m {
		at := k
		if prefix != "" {
			at = prefix + "." + k
		}
		switch child := v.(type) {
		case map[string]any:
			if err := stringKeys(child, at); err != nil {
				return err
			}
		case map[any]any:
			conv := make(map[string]any, len(child))
			for ck, cv := range child {
				switch ck.(type) {
				case string, int, int64, uint64, float64, bool:
					conv[fmt.Sprint(ck)] = cv
				default:
					return fmt.Errorf("key %s: unsupported map key %v of type %T", at, ck, ck)
				}
			}
			if err := stringKeys(conv, at); err != nil {
				return err
			}
			m[k] = conv
		}
	}
	return nil
}
