package i18n

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Flatten returns the dot-paths of every leaf under m, sorted. prefix is
// prepended to each path.
func Flatten(prefix string, m map[string]any) []string {
	var out []string
	var walk func(p string, v any)
	walk = func(p string, v any) {
		child, ok := v.(map[string]any)
		if !ok || len(child) == 0 {
			out = append(out, p)
			return
		}
		for k, cv := range child {
			walk(p+"."+k, cv)
		}
	}
	for k, v := range m {
		p := k
		if prefix != "" {
			p = prefix + "." + k
		}
		walk(p, v)
	}
	sort.Strings(out)
	return out
}

// Keys returns every flattened key of b, namespace first.
func (b *Bundle) Keys() []string {
	var out []string
	for _, ns := range b.Namespaces() {
		out = append(out, Flatten(ns, b.namespaces[ns])...)
	}
	sort.Strings(out)
	return out
}

// Report lists, per locale, keys missing relative to the reference locale
// and keys the reference does not define.
type Report struct {
	Reference string
	Missing   map[string][]string
	Extra     map[string][]string
}

// OK reports whether every locale matched the reference exactly.
func (r Report) OK() bool {
	return len(r.Missing) == 0 && len(r.Extra) == 0
}

func (r Report) String() string {
	if r.OK() {
		return "ok"
	}
	var sb strings.Builder
	for _, l := range sortedKeys(r.Missing) {
		for _, k := range r.Missing[l] {
			fmt.Fprintf(&sb, "%s: missing %s\n", l, k)
		}
	}
	for _, l := range sortedKeys(r.Extra) {
		for _, k := range r.Extra[l] {
			fmt.Fprintf(&sb, "%s: extra %s\n", l, k)
		}
	}
	return sb.String()
}

// CheckConsistency loads every registered locale and compares its key set
// against reference.
func CheckConsistency(ctx context.Context, reg *Registry, reference string) (Report, error) {
	rep := Report{
		Reference: reference,
		Missing:   map[string][]string{},
		Extra:     map[string][]string{},
	}
	ref, err := reg.Load(ctx, reference)
	if err != nil {
		return rep, err
	}
	want := toSet(ref.Keys())

	for _, l := range reg.Locales() {
		if l == reference {
			continue
		}
		b, err := reg.Load(ctx, l)
		if err != nil {
			return rep, err
		}
		have := toSet(b.Keys())
		for k := range want {
			if !have[k] {
				rep.Missing[l] = append(rep.Missing[l], k)
			}
		}
		for k := range have {
			if !want[k] {
				rep.Extra[l] = append(rep.Extra[l], k)
			}
		}
		sort.Strings(rep.Missing[l])
		sort.Strings(rep.Extra[l])
	}
	return rep, nil
}

func toSet(keys []string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

func sortedKeys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
