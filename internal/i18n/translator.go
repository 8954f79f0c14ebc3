package i18n

import (
	"context"
	"sync/atomic"
)

// Translator holds the active bundle. Switch swaps it in place, so every
// later T call renders in the new locale without rebuilding callers.
type Translator struct {
	reg    *Registry
	active atomic.Pointer[Bundle]
}

// NewTranslator loads l and makes it active.
func NewTranslator(ctx context.Context, reg *Registry, l string) (*Translator, error) {
	t := &Translator{reg: reg}
	b, err := reg.Load(ctx, l)
	if err != nil {
		return nil, err
	}
	t.active.Store(b)
	return t, nil
}

// Switch makes l the active locale, loading it first if needed.
func (t *Translator) Switch(l string) error {
	b, err := t.reg.Load(context.Background(), l)
	if err != nil {
		return err
	}
	t.active.Store(b)
	return nil
}

// Locale returns the active locale.
func (t *Translator) Locale() string {
	return t.Bundle().Locale()
}

// Bundle returns the active bundle.
func (t *Translator) Bundle() *Bundle {
	if t == nil {
		return nil
	}
	return t.active.Load()
}

// T resolves key against the active bundle.
func (t *Translator) T(key string, params map[string]any, fallback ...string) string {
	return t.Bundle().T(key, params, fallback...)
}
