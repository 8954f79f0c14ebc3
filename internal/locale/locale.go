// Package locale decides which supported locale is active, persists the
// user's preference, and negotiates a locale for server-rendered requests.
package locale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alecgard/ovpnadmin/internal/logging"
	"github.com/alecgard/ovpnadmin/internal/storage"
)

const (
	EnUS   = "en-US"
	ZhHans = "zh-Hans"

	// Default is the locale used whenever no valid preference exists.
	Default = EnUS

	// PreferenceKey is the fixed storage key of the persisted preference.
	PreferenceKey = "ovpnadmin-locale"
)

// ErrUnsupportedLocale is returned by Set for values outside Supported().
var ErrUnsupportedLocale = errors.New("unsupported locale")

// supported is ordered; the first entry is the default.
var supported = []string{EnUS, ZhHans}

// Supported returns the statically supported locales, default first.
func Supported() []string {
	out := make([]string, len(supported))
	copy(out, supported)
	return out
}

// IsSupported reports whether l is an exact member of the supported set.
func IsSupported(l string) bool {
	for _, s := range supported {
		if s == l {
			return true
		}
	}
	return false
}

// Normalize clamps l to the supported set, replacing anything else with
// Default.
func Normalize(l string) string {
	if IsSupported(l) {
		return l
	}
	return Default
}

// Switcher is the translation layer that swaps its active dictionary.
type Switcher interface {
	Switch(locale string) error
}

// Store reads and writes the persisted locale preference and keeps the
// translation layer in step with it.
type Store struct {
	kv       storage.KV
	switcher Switcher
}

// NewStore creates a Store. kv may be nil for contexts without persistent
// storage (Get then always returns Default); switcher may be nil.
func NewStore(kv storage.KV, switcher Switcher) *Store {
	return &Store{kv: kv, switcher: switcher}
}

// Get returns the persisted preference if it is a supported locale, else
// Default. It never returns a value outside Supported().
func (s *Store) Get(ctx context.Context) string {
	return Normalize(s.Preference(ctx))
}

// Preference returns the persisted value when it is a supported locale and
// "" otherwise, so callers can fall through to other sources.
func (s *Store) Preference(ctx context.Context) string {
	if s == nil || s.kv == nil {
		return ""
	}
	raw, err := s.kv.Get(ctx, PreferenceKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logging.FromContext(ctx).Warn("reading locale preference", "error", err)
		}
		return ""
	}
	if !IsSupported(string(raw)) {
		return ""
	}
	return string(raw)
}

// Set validates l, switches the translation layer to it and persists it.
// It returns shouldReload unchanged so callers that cannot swap live can
// force a full reload.
func (s *Store) Set(ctx context.Context, l string, shouldReload bool) (bool, error) {
	if !IsSupported(l) {
		return false, fmt.Errorf("%w: %q", ErrUnsupportedLocale, l)
	}
	if s.switcher != nil {
		if err := s.switcher.Switch(l); err != nil {
			return false, fmt.Errorf("switching translations to %s: %w", l, err)
		}
	}
	if s.kv != nil {
		if err := s.kv.Set(ctx, PreferenceKey, []byte(l), time.Time{}); err != nil {
			return shouldReload, fmt.Errorf("persisting locale preference: %w", err)
		}
	}
	return shouldReload, nil
}

// Init switches the translation layer to the persisted preference and
// returns it. Call once at start-up.
func (s *Store) Init(ctx context.Context) string {
	l := s.Get(ctx)
	if s != nil && s.switcher != nil {
		if err := s.switcher.Switch(l); err != nil {
			logging.FromContext(ctx).Warn("switching translations at start-up", "locale", l, "error", err)
		}
	}
	return l
}

type contextKey struct{}

// ContextWithLocale attaches the resolved locale of a request.
func ContextWithLocale(ctx context.Context, l string) context.Context {
	return context.WithValue(ctx, contextKey{}, Normalize(l))
}

// FromContext returns the locale attached to ctx, or Default.
func FromContext(ctx context.Context) string {
	if l, ok := ctx.Value(contextKey{}).(string); ok {
		return l
	}
	return Default
}
