package console

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/ovpnadmin/internal/locale"
)

// setLocale handles POST /locale. The preference is persisted for the
// browser and mirrored into a cookie, then the page reloads since rendered
// HTML cannot swap text in place.
func (c *Console) setLocale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	l := r.PostForm.Get("locale")
	if _, err := cs.locales.Set(ctx, l, true); err != nil {
		if errors.Is(err, locale.ErrUnsupportedLocale) {
			http.Error(w, "unsupported locale", http.StatusBadRequest)
			return
		}
		c.logWarn(r, "setting locale", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     locale.CookieName,
		Value:    l,
		Path:     "/",
		MaxAge:   int(365 * 24 * time.Hour / time.Second),
		Secure:   c.deps.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	target := r.PostForm.Get("next")
	if !safeNext(target) {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// translations handles GET /locales/{locale}/{namespace}.json for
// asynchronous client-side loading.
func (c *Console) translations(w http.ResponseWriter, r *http.Request) {
	l := chi.URLParam(r, "locale")
	ns := chi.URLParam(r, "namespace")

	b, err := c.deps.Registry.Load(r.Context(), l)
	if err != nil {
		if errors.Is(err, locale.ErrUnsupportedLocale) {
			writeError(w, http.StatusNotFound, "not_found", "unknown locale")
			return
		}
		c.logWarn(r, "loading translations", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load translations")
		return
	}
	m, ok := b.Namespace(ns)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown namespace")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, m)
}

func (c *Console) logWarn(r *http.Request, msg string, err error) {
	logFrom(r).Warn(msg, "error", err)
}
