// Package console serves the server-rendered web console.
//
// Every browser gets a console session id in a cookie. The session record,
// locale preference, token slot and pending flash messages of that browser
// live in the shared state storage under the id's prefix, and each request
// rebuilds its session store, translator and auth controller from them.
package console

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alecgard/ovpnadmin/internal/apiclient"
	"github.com/alecgard/ovpnadmin/internal/auth"
	"github.com/alecgard/ovpnadmin/internal/crypto"
	"github.com/alecgard/ovpnadmin/internal/i18n"
	"github.com/alecgard/ovpnadmin/internal/metrics"
	"github.com/alecgard/ovpnadmin/internal/notify"
	"github.com/alecgard/ovpnadmin/internal/policy"
	"github.com/alecgard/ovpnadmin/internal/ratelimit"
	"github.com/alecgard/ovpnadmin/internal/storage"
)

// DefaultVerifyInterval is how long a successful session revalidation is
// trusted before the next page load refreshes the token again.
const DefaultVerifyInterval = 5 * time.Minute

// Pinger checks the state database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds all dependencies for the console router.
type Deps struct {
	KV             storage.KV        // shared console state, prefixed per browser
	Client         *apiclient.Client // shared transport, bound per browser
	Registry       *i18n.Registry
	Notifier       *notify.Notifier
	Cipher         *crypto.Cipher
	Metrics        *metrics.Metrics
	Limiter        *ratelimit.Limiter // nil disables login throttling
	DB             Pinger
	SecureCookie   bool
	TrustProxy     bool // honour X-Forwarded-For from a reverse proxy
	VerifyInterval time.Duration
}

// Console renders pages for one deployment.
type Console struct {
	deps  Deps
	pages map[string]*template.Template
}

// New parses the embedded templates and fills in defaults.
func New(deps Deps) (*Console, error) {
	if deps.Client == nil {
		return nil, errors.New("console: backend client is required")
	}
	if deps.KV == nil {
		deps.KV = storage.NewMemory()
	}
	if deps.Registry == nil {
		deps.Registry = i18n.DefaultRegistry()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.New(nil, nil, 0)
	}
	if deps.VerifyInterval <= 0 {
		deps.VerifyInterval = DefaultVerifyInterval
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	return &Console{deps: deps, pages: pages}, nil
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(c *Console) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	if c.deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(slogRequestLogger)
	if c.deps.Metrics != nil {
		r.Use(metricsMiddleware(c.deps.Metrics))
	}

	r.Get("/health", c.health)
	if c.deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(c.deps.Metrics.Registry(), promhttp.HandlerOpts{}))
		r.Get("/metrics/summary", c.deps.Metrics.Handler())
	}
	r.Handle("/static/*", http.StripPrefix("/static/", staticHandler()))
	r.Get("/locales/{locale}/{namespace}.json", c.translations)

	r.Group(func(r chi.Router) {
		r.Use(c.withSession)

		r.NotFound(c.notFound)
		r.Get("/", c.home)
		r.Post("/locale", c.setLocale)

		r.Get("/login", c.loginForm)
		r.With(ratelimit.Middleware(c.deps.Limiter, http.HandlerFunc(c.loginThrottled), c.onThrottle)).
			Post("/login", c.login)
		r.Get("/register", c.registerForm)
		r.Post("/register", c.register)
		r.Get("/verify-email", c.verifyForm)
		r.Post("/verify-email", c.verify)
		r.Get("/forgot-password", c.forgotForm)
		r.Post("/forgot-password", c.forgot)
		r.Get("/reset-password", c.resetForm)
		r.Post("/reset-password", c.reset)
		r.Post("/logout", c.logout)

		// Authenticated pages.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)

			r.Get("/dashboard", c.dashboard)
			r.Get("/profile", c.profileForm)
			r.Post("/profile", c.updateProfile)

			r.Route("/clients", func(r chi.Router) {
				r.Use(c.require(policy.ViewClients))
				r.Get("/", c.listClients)
				r.Get("/connections", c.connections)
				r.Get("/{id}/config", c.downloadConfig)
				r.Group(func(r chi.Router) {
					r.Use(c.require(policy.ManageClients))
					r.Post("/", c.addClient)
					r.Get("/{id}/delete", c.confirmDeleteClient)
					r.Post("/{id}/delete", c.deleteClient)
				})
				r.With(c.require(policy.ManageServer)).Get("/logs", c.logs)
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(c.require(policy.ViewUsers))
				r.Get("/", c.listUsers)
				r.With(c.require(policy.CreateUser)).Get("/new", c.newUserForm)
				r.With(c.require(policy.CreateUser)).Post("/", c.createUser)
				r.Get("/{id}/edit", c.editUserForm)
				r.Post("/{id}", c.updateUser)
				r.Get("/{id}/delete", c.confirmDeleteUser)
				r.Post("/{id}/delete", c.deleteUser)
			})

			r.Route("/departments", func(r chi.Router) {
				r.Use(c.require(policy.ManageDepartments))
				r.Get("/", c.listDepartments)
				r.Get("/new", c.newDepartmentForm)
				r.Post("/", c.createDepartment)
				r.Get("/{id}/edit", c.editDepartmentForm)
				r.Post("/{id}", c.updateDepartment)
				r.Get("/{id}/delete", c.confirmDeleteDepartment)
				r.Post("/{id}/delete", c.deleteDepartment)
			})

			r.Group(func(r chi.Router) {
				r.Use(c.require(policy.ManageServer))
				r.Get("/server", c.serverStatus)
				r.Post("/server/{action}", c.controlServer)
				r.Get("/config", c.configForm)
				r.Post("/config", c.updateConfig)
			})
		})
	})

	return r
}

// require gates a route on a policy action, rendering the forbidden page
// for browsers.
func (c *Console) require(action policy.Action) func(http.Handler) http.Handler {
	return auth.RequireAction(action, http.HandlerFunc(c.forbidden))
}

func (c *Console) onThrottle() {
	if c.deps.Metrics != nil {
		c.deps.Metrics.IncLoginThrottled()
	}
}
