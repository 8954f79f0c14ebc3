package console

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alecgard/ovpnadmin/internal/apiclient"
	"github.com/alecgard/ovpnadmin/internal/metrics"
	"github.com/alecgard/ovpnadmin/internal/model"
	"github.com/alecgard/ovpnadmin/internal/ratelimit"
	"github.com/alecgard/ovpnadmin/internal/storage"
)

// --- fake backend ---

const testPassword = "secret"

type fakeAPI struct {
	mu          sync.Mutex
	users       []model.User
	revoked     map[string]bool
	clients     []model.VPNClient
	conns       []model.Connection
	departments []model.Department
	config      []model.ConfigItem

	meUpdateStatus int
	deletedClients []string
	serverActions  []string
	configPatches  []map[string]any
	refreshes      int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		users: []model.User{
			{ID: "u1", Name: "Alice", Email: "alice@example.com", Role: model.RoleSuperadmin, DepartmentID: "d1"},
			{ID: "u2", Name: "Bob", Email: "bob@example.com", Role: model.RoleAdmin},
			{ID: "u3", Name: "Carol", Email: "carol@example.com", Role: model.RoleManager, DepartmentID: "d1"},
			{ID: "u4", Name: "Dave", Email: "dave@example.com", Role: model.RoleUser, DepartmentID: "d1"},
			{ID: "u5", Name: "Erin", Email: "erin@example.com", Role: model.RoleUser, DepartmentID: "d2"},
		},
		revoked: make(map[string]bool),
		clients: []model.VPNClient{
			{ID: "c1", Name: "dave-laptop", UserID: "u4", DepartmentID: "d1", Email: "dave@example.com"},
			{ID: "c2", Name: "erin-phone", UserID: "u5", DepartmentID: "d2", Email: "erin@example.com"},
		},
		conns: []model.Connection{
			{ClientID: "c1", CommonName: "dave-laptop", RealAddress: "198.51.100.4:51820", VirtualAddress: "10.8.0.4"},
			{ClientID: "c2", CommonName: "erin-phone", RealAddress: "203.0.113.9:40112", VirtualAddress: "10.8.0.9"},
		},
		departments: []model.Department{
			{ID: "d1", Name: "Engineering"},
			{ID: "d2", Name: "Sales"},
		},
		config: []model.ConfigItem{
			{Key: "port", Label: "Port", Type: model.ConfigNumber, Value: 1194.0, Required: true},
			{Key: "compress", Label: "Compression", Type: model.ConfigBoolean, Value: false},
			{Key: "proto", Label: "Protocol", Type: model.ConfigSelect, Value: "udp", Options: []model.ConfigOption{
				{Label: "UDP", Value: "udp"}, {Label: "TCP", Value: "tcp"},
			}},
		},
	}
}

func (a *fakeAPI) revoke(userID string) {
	a.mu.Lock()
	a.revoked[userID] = true
	a.mu.Unlock()
}

// caller resolves the bearer token "tok-<user id>".
func (a *fakeAPI) caller(r *http.Request) (model.User, bool) {
	id, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer tok-")
	if !ok || a.revoked[id] {
		return model.User{}, false
	}
	for _, u := range a.users {
		if u.ID == id {
			return u, true
		}
	}
	return model.User{}, false
}

func (a *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	authed := func(fn func(w http.ResponseWriter, r *http.Request, u model.User)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			a.mu.Lock()
			defer a.mu.Unlock()
			u, ok := a.caller(r)
			if !ok {
				writeAPIError(w, http.StatusUnauthorized, "token invalid")
				return
			}
			fn(w, r, u)
		}
	}

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var cred model.Credentials
		_ = json.NewDecoder(r.Body).Decode(&cred)
		a.mu.Lock()
		defer a.mu.Unlock()
		for _, u := range a.users {
			if u.Email == cred.Email && cred.Password == testPassword {
				delete(a.revoked, u.ID)
				apiJSON(w, http.StatusOK, map[string]string{"accessToken": "tok-" + u.ID})
				return
			}
		}
		writeAPIError(w, http.StatusBadRequest, "invalid credentials")
	})
	mux.HandleFunc("POST /auth/refresh", authed(func(w http.ResponseWriter, r *http.Request, u model.User) {
		a.refreshes++
		apiJSON(w, http.StatusOK, map[string]string{"token": "tok-" + u.ID})
	}))
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /auth/me", authed(func(w http.ResponseWriter, r *http.Request, u model.User) {
		apiJSON(w, http.StatusOK, u)
	}))
	mux.HandleFunc("PATCH /auth/me", authed(func(w http.ResponseWriter, r *http.Request, u model.User) {
		if a.meUpdateStatus != 0 {
			writeAPIError(w, a.meUpdateStatus, "email already taken")
			return
		}
		var up model.UserUpdate
		_ = json.NewDecoder(r.Body).Decode(&up)
		if up.Name != nil {
			u.Name = *up.Name
		}
		apiJSON(w, http.StatusOK, u)
	}))

	mux.HandleFunc("GET /openvpn/clients", authed(func(w http.ResponseWriter, r *http.Request, _ model.User) {
		apiJSON(w, http.StatusOK, a.clients)
	}))
	mux.HandleFunc("POST /openvpn/clients", authed(func(w http.ResponseWriter, r *http.Request, _ model.User) {
		var in model.VPNClientInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		vc := model.VPNClient{ID: "c" + in.Name, Name: in.Name, UserID: in.UserID}
		a.clients = append(a.clients, vc)
		apiJSON(w, http.StatusCreated, vc)
	}))
	mux.HandleFunc("DELETE /openvpn/clients/{id}", authed(func(w http.ResponseWriter, r *http.Request, _ model.User) {
		a.deletedClients = append(a.deletedClients, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("GET /openvpn/clients/{id}/config", authed(func(w http.ResponseWriter, r *http.Request, _ model.User) {
		_, _ = io.WriteString(w, "client\nremote vpn.example.com 1194\n# os="+r.URL.Query().Get("os")+"\n")
	}))
	mux.HandleFunc("GET /openvpn/connections", authed(func(w http.ResponseWriter, r *http.Request, _ model.User) {
		apiJSON(w, http.StatusOK, a.conns)
	}))
	mux.HandleFunc("GET /openvpn/logs", authed(func(w http.ResponseWriter, r *http.Request, _ model.User) {
		apiJSON(w, http.StatusOK, model.LogPage{
			Entries: []model.LogEntry{{Level: "info", Message: "Initialization Sequence Completed"}},
			Limit:   100,
			Total:   1,
		})
	}))

	mux.HandleFunc("GET /users", authed(func(w http.ResponseWriter, r *http.Request, _ model.User) {
		apiJSON(w, http.StatusOK, a.users)
	}))
	mux.HandleFunc("GET /users/{id}", authed(func(w http.ResponseWriter, r *http.Request, _ model.User) {
		for _, u := range a.users {
			if u.ID == r.PathValue("id") {
				apiJSON(w, http.StatusOK, u)
				return
			}
		}
		writeAPIError(w, http.StatusNotFound, "no such user")
	}))
	mux.HandleFunc("GET /departments", authed(func(w http.ResponseWriter, r *http.Request, _ model.User) {
		apiJSON(w, http.StatusOK, model.Page[model.Department]{
			Items:       a.departments,
			TotalItems:  len(a.departments),
			TotalPages:  1,
			CurrentPage: 1,
		})
	}))

	mux.HandleFunc("GET /server/status", authed(func(w http.ResponseWriter, r *http.Request, _ model.User) {
		apiJSON(w, http.StatusOK, model.ServerStatus{Running: true, Version: "2.6.12", Uptime: 3600})
	}))
	mux.HandleFunc("POST /server/{action}", authed(func(w http.ResponseWriter, r *http.Request, _ model.User) {
		a.serverActions = append(a.serverActions, r.PathValue("action"))
		w.WriteHeader(http.StatusAccepted)
	}))
	mux.HandleFunc("GET /server/config", authed(func(w http.ResponseWriter, r *http.Request, _ model.User) {
		apiJSON(w, http.StatusOK, a.config)
	}))
	mux.HandleFunc("PATCH /server/config", authed(func(w http.ResponseWriter, r *http.Request, _ model.User) {
		var patch map[string]any
		_ = json.NewDecoder(r.Body).Decode(&patch)
		a.configPatches = append(a.configPatches, patch)
		w.WriteHeader(http.StatusNoContent)
	}))
	return mux
}

func apiJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	apiJSON(w, status, map[string]any{"error": map[string]string{"code": "error", "message": message}})
}

// --- console harness ---

type harness struct {
	api     *fakeAPI
	console *Console
	router  http.Handler
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, mutate ...func(*Deps)) *harness {
	t.Helper()
	api := newFakeAPI()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	client, err := apiclient.New(srv.URL, nil)
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	m := metrics.New()
	deps := Deps{
		KV:      storage.NewMemory(),
		Client:  client,
		Metrics: m,
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	c, err := New(deps)
	if err != nil {
		t.Fatalf("console.New: %v", err)
	}
	return &harness{api: api, console: c, router: NewRouter(c), metrics: m}
}

// browser replays cookies across requests like a real user agent.
type browser struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
}

func (h *harness) browser(t *testing.T) *browser {
	return &browser{t: t, h: h.router, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.h.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, target, nil)
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	return b.do(http.MethodPost, target, form)
}

func (b *browser) login(email string) {
	b.t.Helper()
	rec := b.post("/login", url.Values{"email": {email}, "password": {testPassword}})
	if rec.Code != http.StatusSeeOther {
		b.t.Fatalf("login %s: status = %d, want 303; body: %s", email, rec.Code, rec.Body.String())
	}
}

func expectRedirect(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != want {
		t.Fatalf("Location = %q, want %q", got, want)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

// --- tests ---

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("expected error without a backend client")
	}
}

func TestFirstVisitIssuesSessionCookie(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)

	rec := b.get("/login")
	expectStatus(t, rec, http.StatusOK)
	ck, ok := b.cookies[sessionCookie]
	if !ok {
		t.Fatal("expected session cookie")
	}
	if !ck.HttpOnly || ck.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie flags: HttpOnly=%v SameSite=%v", ck.HttpOnly, ck.SameSite)
	}

	// The same browser keeps its id.
	b.get("/login")
	if b.cookies[sessionCookie].Value != ck.Value {
		t.Error("session id changed between requests")
	}
}

func TestLoginRedirectsAndFlashes(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)

	rec := b.post("/login", url.Values{
		"email":    {"dave@example.com"},
		"password": {testPassword},
		"next":     {"/clients"},
	})
	expectRedirect(t, rec, "/clients")

	rec = b.get("/clients")
	expectStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	if !strings.Contains(body, "Welcome back, Dave.") {
		t.Error("expected login flash on the next page")
	}
	if !strings.Contains(body, "dave-laptop") || strings.Contains(body, "erin-phone") {
		t.Error("a plain user must see only their own clients")
	}

	// The flash is shown once.
	if strings.Contains(b.get("/dashboard").Body.String(), "Welcome back") {
		t.Error("flash shown twice")
	}
}

func TestLoginRejectsUnsafeNext(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	rec := b.post("/login", url.Values{
		"email":    {"dave@example.com"},
		"password": {testPassword},
		"next":     {"//evil.example.com/"},
	})
	expectRedirect(t, rec, "/dashboard")
}

func TestLoginFailureKeepsEmailDropsPassword(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)

	rec := b.post("/login", url.Values{"email": {"dave@example.com"}, "password": {"wrong-pass"}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	body := rec.Body.String()
	if !strings.Contains(body, `value="dave@example.com"`) {
		t.Error("email not kept in the re-rendered form")
	}
	if strings.Contains(body, "wrong-pass") {
		t.Error("password echoed back")
	}
	if !strings.Contains(body, "invalid credentials") {
		t.Error("backend message not shown")
	}
}

func TestLoginThrottled(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Limiter = ratelimit.New(1, time.Minute) })
	b := h.browser(t)

	form := url.Values{"email": {"dave@example.com"}, "password": {"wrong"}}
	expectStatus(t, b.post("/login", form), http.StatusUnprocessableEntity)
	rec := b.post("/login", form)
	expectStatus(t, rec, http.StatusTooManyRequests)
	if !strings.Contains(rec.Body.String(), "Too many login attempts") {
		t.Error("expected throttle message")
	}
}

func TestLoginThrottleIgnoresForwardedFor(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		second     int
	}{
		{"direct", false, http.StatusTooManyRequests},
		{"behind proxy", true, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(d *Deps) {
				d.Limiter = ratelimit.New(1, time.Minute)
				d.TrustProxy = tt.trustProxy
			})
			attempt := func(forwardedFor string) int {
				form := url.Values{"email": {"dave@example.com"}, "password": {"wrong"}}
				req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				req.Header.Set("X-Forwarded-For", forwardedFor)
				rec := httptest.NewRecorder()
				h.router.ServeHTTP(rec, req)
				return rec.Code
			}

			if got := attempt("203.0.113.1"); got != http.StatusUnprocessableEntity {
				t.Fatalf("first attempt status = %d, want 422", got)
			}
			if got := attempt("203.0.113.2"); got != tt.second {
				t.Errorf("second attempt with new forwarded address: status = %d, want %d", got, tt.second)
			}
		})
	}
}

func TestRequireUserRedirectsAnonymous(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	expectRedirect(t, b.get("/users?page=2"), "/login?next=%2Fusers%3Fpage%3D2")
}

func TestSessionsAreIsolated(t *testing.T) {
	h := newHarness(t)
	alice := h.browser(t)
	other := h.browser(t)

	alice.login("alice@example.com")
	expectStatus(t, alice.get("/dashboard"), http.StatusOK)
	expectRedirect(t, other.get("/dashboard"), "/login?next=%2Fdashboard")
}

func TestNavigationFollowsRole(t *testing.T) {
	tests := []struct {
		email string
		want  []string
		deny  []string
	}{
		{"dave@example.com", []string{`href="/clients"`, `href="/profile"`}, []string{`href="/users"`, `href="/departments"`, `href="/server"`}},
		{"carol@example.com", []string{`href="/users"`}, []string{`href="/departments"`, `href="/server"`}},
		{"bob@example.com", []string{`href="/users"`, `href="/departments"`}, []string{`href="/server"`, `href="/config"`}},
		{"alice@example.com", []string{`href="/departments"`, `href="/server"`, `href="/config"`}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			h := newHarness(t)
			b := h.browser(t)
			b.login(tt.email)
			body := b.get("/dashboard").Body.String()
			for _, s := range tt.want {
				if !strings.Contains(body, s) {
					t.Errorf("nav missing %s", s)
				}
			}
			for _, s := range tt.deny {
				if strings.Contains(body, s) {
					t.Errorf("nav must not contain %s", s)
				}
			}
		})
	}
}

func TestForbiddenPageForInsufficientRole(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("bob@example.com")

	rec := b.get("/server")
	expectStatus(t, rec, http.StatusForbidden)
	if !strings.Contains(rec.Body.String(), "You are not allowed to do that.") {
		t.Error("expected forbidden message")
	}
	if len(h.api.serverActions) != 0 {
		t.Error("backend must not be reached")
	}
}

func TestBackendUnauthorizedSendsToLogin(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("dave@example.com")
	h.api.revoke("u4")

	expectRedirect(t, b.get("/clients"), "/login?next=%2Fclients")
	// The 401 cleared the stored session.
	expectRedirect(t, b.get("/dashboard"), "/login?next=%2Fdashboard")

	rec := b.get("/login")
	if !strings.Contains(rec.Body.String(), "Your session has expired.") {
		t.Error("expected session-expired flash")
	}
}

func TestRevalidationRefreshesPersistedLogin(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.VerifyInterval = time.Nanosecond })
	b := h.browser(t)
	b.login("dave@example.com")

	expectStatus(t, b.get("/dashboard"), http.StatusOK)
	if h.api.refreshes == 0 {
		t.Error("expected the persisted token to be refreshed")
	}
}

func TestRevalidationLogsOutInvalidLogin(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.VerifyInterval = time.Nanosecond })
	b := h.browser(t)
	b.login("dave@example.com")
	h.api.revoke("u4")

	expectRedirect(t, b.get("/dashboard"), "/")
	expectRedirect(t, b.get("/dashboard"), "/login?next=%2Fdashboard")
}

func TestRevalidationSkippedWithinInterval(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("dave@example.com")

	b.get("/dashboard")
	b.get("/profile")
	if h.api.refreshes != 0 {
		t.Errorf("refreshes = %d, want 0 within the verify interval", h.api.refreshes)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("dave@example.com")

	expectRedirect(t, b.post("/logout", nil), "/")
	expectRedirect(t, b.get("/dashboard"), "/login?next=%2Fdashboard")
}

func TestDeleteClientNeedsConfirmation(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("bob@example.com")

	expectRedirect(t, b.post("/clients/c1/delete", nil), "/clients/c1/delete")
	if len(h.api.deletedClients) != 0 {
		t.Fatal("deleted without confirmation")
	}

	rec := b.get("/clients/c1/delete")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `name="confirm" value="yes"`) {
		t.Error("confirmation form missing")
	}

	expectRedirect(t, b.post("/clients/c1/delete", url.Values{"confirm": {"yes"}}), "/clients")
	if len(h.api.deletedClients) != 1 || h.api.deletedClients[0] != "c1" {
		t.Errorf("deleted = %v, want [c1]", h.api.deletedClients)
	}
}

func TestClientOutsideScopeIsNotFound(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("carol@example.com")

	expectStatus(t, b.get("/clients/c2/config?os=linux"), http.StatusNotFound)
	expectStatus(t, b.get("/clients/c2/delete"), http.StatusNotFound)
}

func TestDownloadConfig(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("dave@example.com")

	rec := b.get("/clients/c1/config?os=linux")
	expectStatus(t, rec, http.StatusOK)
	_, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	if err != nil {
		t.Fatalf("Content-Disposition: %v", err)
	}
	if got, want := params["filename"], model.ProfileFilename("c1", model.OSLinux); got != want {
		t.Errorf("filename = %q, want %q", got, want)
	}
	if !strings.Contains(rec.Body.String(), "remote vpn.example.com") {
		t.Error("profile body not passed through")
	}

	expectRedirect(t, b.get("/clients/c1/config?os=beos"), "/clients")
}

func TestAddClientOwnerMustBeVisible(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("carol@example.com")

	// Erin is in another department.
	expectRedirect(t, b.post("/clients", url.Values{"name": {"x"}, "user_id": {"u5"}}), "/clients")
	if len(h.api.clients) != 2 {
		t.Fatal("client created for a user outside the manager's department")
	}

	expectRedirect(t, b.post("/clients", url.Values{"name": {"dave-phone"}, "user_id": {"u4"}}), "/clients")
	if len(h.api.clients) != 3 {
		t.Fatal("client not created")
	}
	if !strings.Contains(b.get("/clients").Body.String(), "Client dave-phone added.") {
		t.Error("expected added flash")
	}
}

func TestConnectionsFilteredByScope(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("dave@example.com")

	body := b.get("/clients/connections").Body.String()
	if !strings.Contains(body, "10.8.0.4") || strings.Contains(body, "10.8.0.9") {
		t.Error("connections not narrowed to the user's clients")
	}
}

func TestProfileFailureKeepsValues(t *testing.T) {
	h := newHarness(t)
	h.api.meUpdateStatus = http.StatusUnprocessableEntity
	b := h.browser(t)
	b.login("dave@example.com")

	rec := b.post("/profile", url.Values{
		"name":             {"Dave Renamed"},
		"email":            {"dave@example.com"},
		"password":         {"n3w-pass"},
		"password_confirm": {"n3w-pass"},
	})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	body := rec.Body.String()
	if !strings.Contains(body, `value="Dave Renamed"`) {
		t.Error("submitted name lost")
	}
	if strings.Contains(body, "n3w-pass") {
		t.Error("password echoed back")
	}
	// Validation failures do not end the session.
	expectStatus(t, b.get("/dashboard"), http.StatusOK)
}

func TestProfileUpdate(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("dave@example.com")

	expectRedirect(t, b.post("/profile", url.Values{"name": {"Dave R"}, "email": {"dave@example.com"}}), "/profile")
	body := b.get("/profile").Body.String()
	if !strings.Contains(body, "Profile updated.") || !strings.Contains(body, `value="Dave R"`) {
		t.Error("profile page does not reflect the update")
	}
}

func TestSetLocaleSwitchesRenderedText(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)

	if !strings.Contains(b.get("/login").Body.String(), "Log in") {
		t.Fatal("expected English login page")
	}
	expectRedirect(t, b.post("/locale", url.Values{"locale": {"zh-Hans"}, "next": {"/login"}}), "/login")
	if !strings.Contains(b.get("/login").Body.String(), "登录") {
		t.Error("expected Chinese login page after switching")
	}

	expectStatus(t, b.post("/locale", url.Values{"locale": {"fr-FR"}}), http.StatusBadRequest)
}

func TestAcceptLanguageUsedWithoutPreference(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), `lang="zh-Hans"`) {
		t.Error("expected negotiated zh-Hans page")
	}
}

func TestTranslationsEndpoint(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)

	rec := b.get("/locales/en-US/auth.json")
	expectStatus(t, rec, http.StatusOK)
	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if _, ok := doc["login"]; !ok {
		t.Error("auth namespace missing login section")
	}

	expectStatus(t, b.get("/locales/xx-XX/auth.json"), http.StatusNotFound)
	expectStatus(t, b.get("/locales/en-US/nope.json"), http.StatusNotFound)
}

func TestServerControlConfirmsStop(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("alice@example.com")

	rec := b.post("/server/stop", nil)
	expectStatus(t, rec, http.StatusOK)
	if len(h.api.serverActions) != 0 {
		t.Fatal("stop sent without confirmation")
	}

	expectRedirect(t, b.post("/server/stop", url.Values{"confirm": {"yes"}}), "/server")
	expectRedirect(t, b.post("/server/start", nil), "/server")
	if got := strings.Join(h.api.serverActions, ","); got != "stop,start" {
		t.Errorf("actions = %s, want stop,start", got)
	}

	expectStatus(t, b.post("/server/explode", nil), http.StatusNotFound)
}

func TestConfigUpdateSendsOnlyChanges(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("alice@example.com")

	rec := b.get("/config")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `value="1194"`) {
		t.Error("current value not rendered")
	}

	expectRedirect(t, b.post("/config", url.Values{
		"port":     {"1194"},
		"compress": {"true"},
		"proto":    {"udp"},
	}), "/config")
	if len(h.api.configPatches) != 1 {
		t.Fatalf("patches = %d, want 1", len(h.api.configPatches))
	}
	patch := h.api.configPatches[0]
	if len(patch) != 1 || patch["compress"] != true {
		t.Errorf("patch = %v, want only compress=true", patch)
	}
}

func TestConfigUpdateRejectsInvalidValues(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("alice@example.com")

	rec := b.post("/config", url.Values{"port": {"abc"}, "proto": {"sctp"}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	if len(h.api.configPatches) != 0 {
		t.Fatal("invalid config submitted")
	}
	body := rec.Body.String()
	if !strings.Contains(body, "port must be a number") || !strings.Contains(body, `value="abc"`) {
		t.Error("expected inline error with submitted values kept")
	}
}

func TestLogsPageForSuperadmin(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("alice@example.com")
	if !strings.Contains(b.get("/clients/logs").Body.String(), "Initialization Sequence Completed") {
		t.Error("log entry not rendered")
	}

	other := h.browser(t)
	other.login("bob@example.com")
	expectStatus(t, other.get("/clients/logs"), http.StatusForbidden)
}

func TestUnknownPageRendersNotFound(t *testing.T) {
	h := newHarness(t)
	rec := h.browser(t).get("/nowhere")
	expectStatus(t, rec, http.StatusNotFound)
	if !strings.Contains(rec.Body.String(), "does not exist") {
		t.Error("expected not-found page")
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		db     Pinger
		status int
		want   string
	}{
		{"no database", nil, http.StatusOK, "ok"},
		{"connected", fakePinger{}, http.StatusOK, "ok"},
		{"unreachable", fakePinger{err: errors.New("dial tcp: refused")}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(d *Deps) {
				if tt.db != nil {
					d.DB = tt.db
				}
			})
			rec := h.browser(t).get("/health")
			expectStatus(t, rec, tt.status)
			var body map[string]string
			_ = json.Unmarshal(rec.Body.Bytes(), &body)
			if body["status"] != tt.want {
				t.Errorf("status field = %q, want %q", body["status"], tt.want)
			}
		})
	}
}

func TestMetricsRecordRoutePatterns(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("bob@example.com")
	b.get("/users/u4/edit")

	families, err := h.metrics.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() != "ovpnadmin_http_requests_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "path_pattern" && lp.GetValue() == "/users/{id}/edit" {
					found = true
				}
				if lp.GetName() == "path_pattern" && strings.Contains(lp.GetValue(), "u4") {
					t.Errorf("raw id leaked into label %q", lp.GetValue())
				}
			}
		}
	}
	if !found {
		t.Error("expected a /users/{id}/edit series")
	}
}

func TestRequestIDEchoed(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q", got)
	}

	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request id")
	}
}
