package console

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/alecgard/ovpnadmin/internal/apiclient"
	"github.com/alecgard/ovpnadmin/internal/auth"
	"github.com/alecgard/ovpnadmin/internal/i18n"
	"github.com/alecgard/ovpnadmin/internal/locale"
	"github.com/alecgard/ovpnadmin/internal/logging"
	"github.com/alecgard/ovpnadmin/internal/notify"
	"github.com/alecgard/ovpnadmin/internal/session"
	"github.com/alecgard/ovpnadmin/internal/storage"
)

const (
	// sessionCookie carries the console session id.
	sessionCookie = "ovpnadmin_sid"

	// sessionCookieMaxAge outlives the 7-day token slot so an expired
	// token is noticed and cleared rather than silently forgotten.
	sessionCookieMaxAge = 30 * 24 * time.Hour

	// verifiedKey marks a session revalidated within the verify interval.
	verifiedKey = "ovpnadmin-verified"
)

const consoleSessionKey contextKey = "console_session"

// consoleSession is one browser's client-side state, rebuilt per request.
type consoleSession struct {
	id       string
	kv       storage.KV
	store    *session.Store
	locales  *locale.Store
	tr       *i18n.Translator
	flash    *flashSink
	notifier *notify.Notifier
	client   *apiclient.Client
	auth     *auth.Controller

	// redirect is the last route the auth controller navigated to.
	redirect string
}

func (s *consoleSession) navigate(_ context.Context, route string) {
	s.redirect = route
}

// takeRedirect returns and forgets the pending navigation target.
func (s *consoleSession) takeRedirect() string {
	r := s.redirect
	s.redirect = ""
	return r
}

func (s *consoleSession) t(key string, pairs ...any) string {
	return s.tr.T(key, params(pairs))
}

func sessionFrom(ctx context.Context) *consoleSession {
	s, _ := ctx.Value(consoleSessionKey).(*consoleSession)
	return s
}

// withSession loads the browser's session, resolves its locale, wires the
// auth controller and revalidates a persisted login.
func (c *Console) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logging.FromContext(ctx)

		sid := c.sessionID(w, r)
		kv := storage.Prefixed(c.deps.KV, sid)
		slot := session.NewTokenSlot(kv, c.deps.Cipher)
		store := session.NewStore(kv, slot, c.deps.Cipher)
		if err := store.Load(ctx); err != nil {
			log.Error("loading console session", "error", err)
			http.Error(w, "console state unavailable", http.StatusServiceUnavailable)
			return
		}

		tr, err := i18n.NewTranslator(ctx, c.deps.Registry, locale.Default)
		if err != nil {
			log.Error("loading translations", "error", err)
			http.Error(w, "translations unavailable", http.StatusInternalServerError)
			return
		}
		locales := locale.NewStore(kv, tr)
		l := locale.Resolve(r, locales.Preference(ctx))
		if err := tr.Switch(l); err != nil {
			log.Warn("switching translations", "locale", l, "error", err)
		}
		ctx = locale.ContextWithLocale(ctx, tr.Locale())

		cs := &consoleSession{
			id:      sid,
			kv:      kv,
			store:   store,
			locales: locales,
			tr:      tr,
			flash:   newFlashSink(kv),
		}
		cs.notifier = c.deps.Notifier.Scoped(sid).WithSink(cs.flash)
		if m := c.deps.Metrics; m != nil {
			cs.notifier = cs.notifier.Observed(func(level notify.Level, suppressed bool) {
				m.ObserveNotification(string(level), suppressed)
			})
		}
		cs.client = c.deps.Client.WithSession(store)

		deps := auth.Deps{
			Notifier:  cs.notifier,
			Navigator: auth.NavigatorFunc(cs.navigate),
			Messages:  tr,
		}
		if c.deps.Metrics != nil {
			deps.Observer = c.deps.Metrics
		}
		cs.auth = auth.NewController(cs.client, store, deps)

		ctx = context.WithValue(ctx, consoleSessionKey, cs)
		ctx = auth.ContextWithController(ctx, cs.auth)
		r = r.WithContext(ctx)

		if !c.revalidate(ctx, cs) {
			if target := cs.takeRedirect(); target != "" && r.Method == http.MethodGet && r.URL.Path != target {
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// sessionID returns the browser's console session id, issuing a new one
// when the cookie is absent or malformed.
func (c *Console) sessionID(w http.ResponseWriter, r *http.Request) string {
	if ck, err := r.Cookie(sessionCookie); err == nil {
		if id, err := uuid.Parse(ck.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sessionCookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   c.deps.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// revalidate runs the start-up refresh for a persisted login at most once
// per verify interval. It reports false when a persisted login was found
// invalid and cleared.
func (c *Console) revalidate(ctx context.Context, cs *consoleSession) bool {
	if !cs.store.IsLogin() {
		return true
	}
	_, err := cs.kv.Get(ctx, verifiedKey)
	if err == nil {
		return true
	}
	if !errors.Is(err, storage.ErrNotFound) {
		logging.FromContext(ctx).Warn("reading session verification marker", "error", err)
	}
	if !cs.auth.Bootstrap(ctx) {
		return false
	}
	c.markVerified(ctx, cs)
	return true
}

func (c *Console) markVerified(ctx context.Context, cs *consoleSession) {
	exp := time.Now().Add(c.deps.VerifyInterval)
	if err := cs.kv.Set(ctx, verifiedKey, []byte("1"), exp); err != nil {
		logging.FromContext(ctx).Warn("writing session verification marker", "error", err)
	}
}

// params pairs alternating keys and values into interpolation parameters.
func params(pairs []any) map[string]any {
	if len(pairs) < 2 {
		return nil
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if k, ok := pairs[i].(string); ok {
			m[k] = pairs[i+1]
		}
	}
	return m
}
