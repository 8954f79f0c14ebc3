package i18n

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Bundle is the loaded catalog of one locale.
type Bundle struct {
	locale     string
	namespaces map[string]map[string]any
}

// Locale returns the bundle's locale.
func (b *Bundle) Locale() string {
	if b == nil {
		return ""
	}
	return b.locale
}

// Namespaces lists the bundle's namespace names, sorted.
func (b *Bundle) Namespaces() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.namespaces))
	for ns := range b.namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Namespace returns the raw nested table of ns.
func (b *Bundle) Namespace(ns string) (map[string]any, bool) {
	if b == nil {
		return nil, false
	}
	m, ok := b.namespaces[ns]
	return m, ok
}

// Lookup resolves key without interpolation.
func (b *Bundle) Lookup(key string) (string, bool) {
	if b == nil {
		return "", false
	}
	ns, rest, ok := strings.Cut(key, ".")
	if !ok {
		return "", false
	}
	var cur any = b.namespaces[ns]
	if cur == nil {
		return "", false
	}
	for _, part := range strings.Split(rest, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		if cur, ok = m[part]; !ok {
			return "", false
		}
	}
	switch v := cur.(type) {
	case string:
		return v, true
	case map[string]any, []any, nil:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}

// T resolves key and interpolates {{name}} placeholders from params. A
// missing key yields the first fallback, or the key itself.
func (b *Bundle) T(key string, params map[string]any, fallback ...string) string {
	s, ok := b.Lookup(key)
	if !ok {
		if len(fallback) > 0 && fallback[0] != "" {
			s = fallback[0]
		} else {
			return key
		}
	}
	return Interpolate(s, params)
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Interpolate substitutes {{name}} placeholders. Unknown names are left
// verbatim.
func Interpolate(s string, params map[string]any) string {
	if len(params) == 0 || !strings.Contains(s, "{{") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := params[name]; ok {
			return fmt.Sprint(v)
		}
		return m
	})
}
