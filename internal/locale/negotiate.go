package locale

import (
	"net/http"

	"golang.org/x/text/language"
)

// CookieName mirrors the preference for server-rendered first paint.
const CookieName = "ovpnadmin_locale"

var matcher = func() language.Matcher {
	tags := make([]language.Tag, len(supported))
	for i, s := range supported {
		tags[i] = language.MustParse(s)
	}
	return language.NewMatcher(tags)
}()

// Negotiate picks the best supported locale for an Accept-Language header
// using quality-weighted matching. Absent, malformed or unmatched headers
// yield Default.
func Negotiate(acceptLanguage string) string {
	if acceptLanguage == "" {
		return Default
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Default
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(supported) {
		return Default
	}
	return supported[idx]
}

// Resolve decides the locale of a server-rendered request: a valid stored
// preference wins, then a valid preference cookie, then Accept-Language
// negotiation, then Default. It never fails.
func Resolve(r *http.Request, stored string) string {
	if IsSupported(stored) {
		return stored
	}
	if r == nil {
		return Default
	}
	if c, err := r.Cookie(CookieName); err == nil && IsSupported(c.Value) {
		return c.Value
	}
	return Negotiate(r.Header.Get("Accept-Language"))
}
