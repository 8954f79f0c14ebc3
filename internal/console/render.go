package console

import (
	"bytes"
	"net/http"
	"net/url"
	"time"

	"github.com/alecgard/ovpnadmin/internal/i18n"
	"github.com/alecgard/ovpnadmin/internal/locale"
	"github.com/alecgard/ovpnadmin/internal/logging"
	"github.com/alecgard/ovpnadmin/internal/model"
	"github.com/alecgard/ovpnadmin/internal/notify"
	"github.com/alecgard/ovpnadmin/internal/policy"
)

// View is the data every page template receives.
type View struct {
	TitleKey string
	Path     string
	Locale   string
	Locales  []string
	User     *model.User
	Nav      []policy.NavLink
	Flash    []notify.Message
	Year     int

	// Form holds submitted values so a failed form re-renders filled in.
	Form url.Values
	Data any

	tr *i18n.Translator
}

// T translates key with alternating name/value interpolation pairs.
func (v View) T(key string, pairs ...any) string {
	return v.tr.T(key, params(pairs))
}

// Can reports whether the current user may perform action.
func (v View) Can(action string) bool {
	return v.User != nil && policy.Decide(*v.User, policy.Action(action), nil)
}

// CanEdit and CanDelete gate per-row user actions.
func (v View) CanEdit(target model.User) bool {
	return v.User != nil && policy.CanEditUser(*v.User, target)
}

func (v View) CanDelete(target model.User) bool {
	return v.User != nil && policy.CanDeleteUser(*v.User, target)
}

// Value returns the submitted form value for name.
func (v View) Value(name string) string {
	return v.Form.Get(name)
}

// render writes page with status, filling in the per-request parts of v.
func (c *Console) render(w http.ResponseWriter, r *http.Request, status int, page string, v View) {
	ctx := r.Context()
	cs := sessionFrom(ctx)

	v.Path = r.URL.Path
	v.Locales = locale.Supported()
	v.Year = time.Now().Year()
	v.Locale = locale.FromContext(ctx)
	var actor model.User
	if cs != nil {
		v.tr = cs.tr
		v.Locale = cs.tr.Locale()
		v.User = cs.auth.User()
		v.Flash = cs.flash.Drain(ctx)
		if v.User != nil {
			actor = *v.User
		}
	}
	v.Nav = policy.NavLinks(actor)

	t, ok := c.pages[page]
	if !ok {
		logging.FromContext(ctx).Error("unknown page template", "page", page)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		logging.FromContext(ctx).Error("rendering page", "page", page, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// redirectWithFlash queues a success message and redirects.
func (c *Console) redirectWithFlash(w http.ResponseWriter, r *http.Request, target, key string, pairs ...any) {
	cs := sessionFrom(r.Context())
	cs.notifier.Success(r.Context(), cs.t(key, pairs...))
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func loginURL(r *http.Request) string {
	next := r.URL.RequestURI()
	if r.Method != http.MethodGet {
		next = r.Referer()
		if u, err := url.Parse(next); err == nil {
			next = u.RequestURI()
		}
	}
	if !safeNext(next) {
		return "/login"
	}
	return "/login?next=" + url.QueryEscape(next)
}

// safeNext accepts only same-origin absolute paths.
func safeNext(next string) bool {
	return len(next) > 0 && next[0] == '/' && (len(next) == 1 || (next[1] != '/' && next[1] != '\\'))
}
