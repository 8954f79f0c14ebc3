package console

import (
	"encoding/json"
	"net/http"

	"github.com/alecgard/ovpnadmin/internal/apiclient"
	"github.com/alecgard/ovpnadmin/internal/logging"
)

// apiError is the body of JSON failures on the console's own endpoints.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body apiError
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (c *Console) forbidden(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, http.StatusForbidden, "error", View{
		TitleKey: "common.errors.forbidden",
		Data:     "common.errors.forbidden",
	})
}

func (c *Console) notFound(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, http.StatusNotFound, "error", View{
		TitleKey: "common.errors.not_found",
		Data:     "common.errors.not_found",
	})
}

// backendFailed handles a failed backend call for a page request. A 401 has
// already cleared the session, so the browser is sent to log in again; a 403
// renders the forbidden page; a 404 the not-found page. Anything else is
// flashed and reported false so the caller can re-render its form.
func (c *Console) backendFailed(w http.ResponseWriter, r *http.Request, err error) bool {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	logging.FromContext(ctx).Warn("backend call failed", "path", r.URL.Path, "error", err)

	switch {
	case apiclient.IsUnauthorized(err):
		cs.notifier.Error(ctx, cs.t("auth.errors.session_expired"))
		http.Redirect(w, r, loginURL(r), http.StatusSeeOther)
		return true
	case apiclient.IsForbidden(err):
		c.forbidden(w, r)
		return true
	case apiclient.IsNotFound(err):
		c.notFound(w, r)
		return true
	}
	cs.notifier.Error(ctx, cs.t("common.errors.request_failed", "message", apiclient.Message(err)))
	return false
}

// statusFor maps a non-redirecting backend failure to the status of the
// re-rendered form.
func statusFor(err error) int {
	if apiclient.IsValidation(err) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}
