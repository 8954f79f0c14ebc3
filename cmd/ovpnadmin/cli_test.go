package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"

	"github.com/alecgard/ovpnadmin/internal/model"
)

// fakeBackend serves the handful of routes the CLI tests need.
type fakeBackend struct {
	refreshes atomic.Int32
	loggedOut atomic.Bool
}

func (f *fakeBackend) handler() http.Handler {
	alice := model.User{ID: "u1", Name: "Alice", Email: "alice@example.com", Role: model.RoleUser, DepartmentID: "d1"}
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok" || f.loggedOut.Load() {
				w.WriteHeader(http.StatusUnauthorized)
				writeJSON(w, map[string]string{"message": "unauthorized"})
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var cred model.Credentials
		_ = json.NewDecoder(r.Body).Decode(&cred)
		if cred.Email != alice.Email || cred.Password != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]string{"message": "invalid credentials"})
			return
		}
		f.loggedOut.Store(false)
		writeJSON(w, map[string]string{"accessToken": "tok"})
	})
	mux.HandleFunc("POST /auth/refresh", authed(func(w http.ResponseWriter, r *http.Request) {
		f.refreshes.Add(1)
		writeJSON(w, map[string]string{"accessToken": "tok"})
	}))
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.loggedOut.Store(true)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /auth/me", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, alice)
	}))
	mux.HandleFunc("GET /openvpn/clients", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []model.VPNClient{
			{ID: "c1", Name: "alice-laptop", UserID: "u1", DepartmentID: "d1"},
			{ID: "c2", Name: "bob-phone", UserID: "u2", DepartmentID: "d1"},
		})
	}))
	mux.HandleFunc("GET /openvpn/clients/{id}/config", authed(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "client\nremote vpn.example.com 1194\n# %s %s\n", r.PathValue("id"), r.URL.Query().Get("os"))
	}))
	return mux
}

type cli struct {
	t       *testing.T
	cfgPath string
	fs      afero.Fs
}

func newCLI(t *testing.T, backendURL string) *cli {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`backend:
  base_url: %s
  timeout: 5s
database:
  url: postgres://unused
state:
  dir: %s
storage:
  secret: cli-test-secret
log:
  level: error
`, backendURL, filepath.Join(dir, "state"))
	path := filepath.Join(dir, "ovpnadmin.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	fs := afero.NewMemMapFs()
	prev := newFs
	newFs = func() afero.Fs { return fs }
	t.Cleanup(func() { newFs = prev })
	return &cli{t: t, cfgPath: path, fs: fs}
}

// run executes one command line and returns stdout, stderr and the error.
func (c *cli) run(args ...string) (string, string, error) {
	c.t.Helper()
	// Flag values survive between Execute calls on the shared tree.
	jsonOutput, assumeYes = false, false
	clientOS, clientOut = string(model.OSLinux), ""

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append([]string{"--config", c.cfgPath}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestCLISessionLifecycle(t *testing.T) {
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()
	c := newCLI(t, srv.URL)

	out, _, err := c.run("login", "--email", "alice@example.com", "--password", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Welcome back, Alice.") {
		t.Errorf("login output = %q", out)
	}

	out, _, err = c.run("whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out, "Logged in as Alice (User)") {
		t.Errorf("whoami output = %q", out)
	}
	if n := backend.refreshes.Load(); n != 1 {
		t.Errorf("refreshes = %d, want 1 (persisted login revalidated)", n)
	}

	out, _, err = c.run("clients", "list")
	if err != nil {
		t.Fatalf("clients list: %v", err)
	}
	if !strings.Contains(out, "alice-laptop") || strings.Contains(out, "bob-phone") {
		t.Errorf("clients list not scoped to own clients:\n%s", out)
	}

	if err := c.fs.MkdirAll("/profiles", 0o755); err != nil {
		t.Fatal(err)
	}
	out, _, err = c.run("clients", "config", "c1", "--os", "windows", "--out", "/profiles")
	if err != nil {
		t.Fatalf("clients config: %v", err)
	}
	data, err := afero.ReadFile(c.fs, "/profiles/c1.ovpn")
	if err != nil {
		t.Fatalf("profile not written: %v (output %q)", err, out)
	}
	if !strings.Contains(string(data), "# c1 windows") {
		t.Errorf("profile = %q", data)
	}

	if _, _, err := c.run("clients", "config", "c2"); err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("out-of-scope client error = %v, want not found", err)
	}

	if _, _, err := c.run("logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !backend.loggedOut.Load() {
		t.Error("backend logout not called")
	}
	if _, _, err := c.run("whoami"); err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Errorf("whoami after logout error = %v", err)
	}
}

func TestCLILoginFailureIsReported(t *testing.T) {
	srv := httptest.NewServer((&fakeBackend{}).handler())
	defer srv.Close()
	c := newCLI(t, srv.URL)

	_, errOut, err := c.run("login", "--email", "alice@example.com", "--password", "wrong")
	if err != errReported {
		t.Fatalf("err = %v, want errReported", err)
	}
	if !strings.Contains(errOut, "invalid credentials") {
		t.Errorf("stderr = %q, want backend message", errOut)
	}
}

func TestCLIPolicyRefusesLocally(t *testing.T) {
	srv := httptest.NewServer((&fakeBackend{}).handler())
	defer srv.Close()
	c := newCLI(t, srv.URL)

	if _, _, err := c.run("login", "--email", "alice@example.com", "--password", "secret"); err != nil {
		t.Fatal(err)
	}
	_, _, err := c.run("server", "status")
	if err == nil || !strings.Contains(err.Error(), "super administrators") {
		t.Errorf("server status as plain user error = %v", err)
	}
}

func TestSaveProfile(t *testing.T) {
	fs := afero.NewMemMapFs()
	profile := model.Profile{Filename: "c9.conf", Data: []byte("client\n")}
	if err := fs.MkdirAll("/out", 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		out  string
		want string
	}{
		{"", "c9.conf"},
		{"/out", "/out/c9.conf"},
		{"/out/custom.conf", "/out/custom.conf"},
	}
	for _, tt := range tests {
		got, err := saveProfile(fs, tt.out, profile)
		if err != nil {
			t.Fatalf("saveProfile(%q): %v", tt.out, err)
		}
		if got != tt.want {
			t.Errorf("saveProfile(%q) = %q, want %q", tt.out, got, tt.want)
		}
		info, err := fs.Stat(got)
		if err != nil {
			t.Fatalf("stat %s: %v", got, err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("%s mode = %o, want 600", got, perm)
		}
	}
}

func TestSaveProfileStaysInDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/home/op/profiles", 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := saveProfile(fs, "/home/op/profiles", model.Profile{Filename: "../../escaped.conf", Data: []byte("client\n")})
	if err != nil {
		t.Fatal(err)
	}
	if got != "/home/op/profiles/escaped.conf" {
		t.Errorf("path = %q, want /home/op/profiles/escaped.conf", got)
	}
	if ok, _ := afero.Exists(fs, "/home/escaped.conf"); ok {
		t.Error("profile written outside the output directory")
	}

	for _, name := range []string{"", "..", "/"} {
		if _, err := saveProfile(fs, "/home/op/profiles", model.Profile{Filename: name}); err == nil {
			t.Errorf("saveProfile with filename %q: expected error", name)
		}
	}
}

func TestParseAssignments(t *testing.T) {
	items := []model.ConfigItem{
		{Key: "port", Type: model.ConfigNumber, Value: 1194.0, Required: true},
		{Key: "compress", Type: model.ConfigBoolean, Value: false},
		{Key: "proto", Type: model.ConfigSelect, Value: "udp", Options: []model.ConfigOption{{Value: "udp"}, {Value: "tcp"}}},
		{Key: "push", Type: model.ConfigArray, Value: []any{"a"}},
	}

	tests := []struct {
		name   string
		args   []string
		want   map[string]any
		badKey string
	}{
		{"unchanged values dropped", []string{"port=1194", "proto=udp"}, map[string]any{}, ""},
		{"typed values", []string{"port=443", "compress=on", "push=a,b"}, map[string]any{"port": 443.0, "compress": true, "push": []string{"a", "b"}}, ""},
		{"missing equals", []string{"port"}, nil, "port"},
		{"unknown key", []string{"cipher=AES"}, nil, "cipher"},
		{"bad option", []string{"proto=sctp"}, nil, "proto"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, bad := parseAssignments(items, tt.args)
			if tt.badKey != "" {
				if bad == nil || bad.key != tt.badKey {
					t.Fatalf("error = %v, want failure on %q", bad, tt.badKey)
				}
				return
			}
			if bad != nil {
				t.Fatalf("unexpected error: %v", bad)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("changes = %v, want %v", got, tt.want)
			}
		})
	}
}
