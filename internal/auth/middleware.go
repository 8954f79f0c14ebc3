package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/alecgard/ovpnadmin/internal/model"
	"github.com/alecgard/ovpnadmin/internal/policy"
)

type contextKey int

const controllerContextKey contextKey = iota

// ContextWithController returns a new context carrying the request's
// controller.
func ContextWithController(ctx context.Context, c *Controller) context.Context {
	return context.WithValue(ctx, controllerContextKey, c)
}

// FromContext extracts the controller from the context, or nil if not
// present.
func FromContext(ctx context.Context) *Controller {
	c, _ := ctx.Value(controllerContextKey).(*Controller)
	return c
}

// RequireUser lets the request through only when the controller in its
// context has an authenticated user with a fetched profile. Browsers are
// redirected to the login view; JSON clients get a 401 envelope.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := FromContext(r.Context())
		if c == nil || c.User() == nil {
			if wantsJSON(r) {
				writeUnauthorized(w, "login required")
				return
			}
			target := RouteLogin + "?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAction returns middleware that denies users the policy does not
// allow to perform action. forbidden renders the denial for browsers; JSON
// clients get a 403 envelope. It must run after RequireUser.
func RequireAction(action policy.Action, forbidden http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := FromContext(r.Context())
			var u *model.User
			if c != nil {
				u = c.User()
			}
			if u == nil || !policy.Decide(*u, action, nil) {
				if wantsJSON(r) || forbidden == nil {
					writeForbidden(w, "not allowed")
					return
				}
				forbidden.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") &&
		!strings.Contains(r.Header.Get("Accept"), "text/html")
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeEnvelope(w, http.StatusUnauthorized, "unauthorized", message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeEnvelope(w, http.StatusForbidden, "forbidden", message)
}

func writeEnvelope(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{Code: code, Message: message},
	})
}
