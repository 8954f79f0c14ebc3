// Package apiclient is the single HTTP client the console uses to reach the
// backend REST API.
//
// Every request passes through the same interceptors: a request id, the
// caller's locale as Accept-Language, and the bearer token when the session
// holds one. Every response passes through the unauthorized handler, which
// clears the session on a 401 before the error reaches the caller. Other
// statuses are returned untouched as *APIError.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alecgard/ovpnadmin/internal/logging"
)

// maxBodySize caps how much of a backend response is read.
const maxBodySize = 32 << 20

// Session is the part of the session store the client needs.
type Session interface {
	AccessToken() string
	ClearLoginInfo(ctx context.Context) bool
}

// Observer records backend calls. status is 0 when no response arrived.
type Observer interface {
	ObserveBackend(route, method string, status int, d time.Duration)
}

// RequestInterceptor may modify an outgoing request.
type RequestInterceptor func(req *http.Request) error

// Client dispatches backend calls.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	session  Session
	observer Observer
	locale   func(ctx context.Context) string
	before   []RequestInterceptor
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the default client's timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithObserver reports every call to o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithLocale sets Accept-Language from fn on every request.
func WithLocale(fn func(ctx context.Context) string) Option {
	return func(c *Client) { c.locale = fn }
}

// WithRequestInterceptor appends an interceptor that runs after the
// built-in ones.
func WithRequestInterceptor(fn RequestInterceptor) Option {
	return func(c *Client) { c.before = append(c.before, fn) }
}

// New creates a client for the backend at baseURL. session may be nil, in
// which case requests are always unauthenticated.
func New(baseURL string, session Session, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 15 * time.Second},
		session: session,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithSession returns a copy of c bound to another session. The web console
// builds one per browser session on top of a shared transport.
func (c *Client) WithSession(s Session) *Client {
	cp := *c
	cp.session = s
	return &cp
}

type requestIDKey struct{}

// ContextWithRequestID propagates id as X-Request-ID on backend calls made
// with ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// call describes one backend request. route is the path template used as a
// metric label; path is the concrete path.
type call struct {
	method string
	route  string
	path   string
	query  url.Values
	body   any
}

func (c *Client) newRequest(ctx context.Context, cl call) (*http.Request, error) {
	u := *c.baseURL
	if p, err := url.PathUnescape(cl.path); err == nil {
		u.Path = c.baseURL.Path + p
		u.RawPath = c.baseURL.EscapedPath() + cl.path
	} else {
		u.Path = c.baseURL.Path + cl.path
	}
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", cl.route, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	for _, fn := range c.interceptors() {
		if err := fn(req); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func (c *Client) interceptors() []RequestInterceptor {
	out := []RequestInterceptor{c.attachRequestID, c.attachLocale, c.attachBearer}
	return append(out, c.before...)
}

func (c *Client) attachRequestID(req *http.Request) error {
	id, _ := req.Context().Value(requestIDKey{}).(string)
	if id == "" {
		id = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", id)
	return nil
}

func (c *Client) attachLocale(req *http.Request) error {
	if c.locale != nil {
		if l := c.locale(req.Context()); l != "" {
			req.Header.Set("Accept-Language", l)
		}
	}
	return nil
}

// attachBearer adds the token when there is one. Without a token the
// request goes out unauthenticated and the backend decides.
func (c *Client) attachBearer(req *http.Request) error {
	if c.session == nil {
		return nil
	}
	if tok := c.session.AccessToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return nil
}

// send performs cl and returns the response body of a 2xx response.
func (c *Client) send(ctx context.Context, cl call) ([]byte, error) {
	req, err := c.newRequest(ctx, cl)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(cl, 0, start)
		return nil, fmt.Errorf("%s %s: %w", cl.method, cl.route, err)
	}
	defer resp.Body.Close()
	c.observe(cl, resp.StatusCode, start)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading response: %w", cl.method, cl.route, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.handleUnauthorized(ctx, cl)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseError(cl, resp.StatusCode, data)
	}
	return data, nil
}

// handleUnauthorized clears the session once per 401 response, whichever
// endpoint produced it.
func (c *Client) handleUnauthorized(ctx context.Context, cl call) {
	if c.session == nil {
		return
	}
	if c.session.ClearLoginInfo(ctx) {
		logging.FromContext(ctx).Info("session cleared after unauthorized response",
			"route", cl.route,
			"method", cl.method,
		)
	}
}

func (c *Client) observe(cl call, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveBackend(cl.route, cl.method, status, time.Since(start))
	}
}

// do performs cl and decodes the JSON result into out when out is non-nil.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	data, err := c.send(ctx, cl)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(unwrap(data), out); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", cl.method, cl.route, err)
	}
	return nil
}

// unwrap strips a {"code","message","data"} response envelope when the
// backend uses one.
func unwrap(data []byte) []byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return data
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return data
	}
	inner, ok := env["data"]
	if !ok {
		return data
	}
	_, hasCode := env["code"]
	_, hasMessage := env["message"]
	if !hasCode && !hasMessage {
		return data
	}
	return inner
}

// path substitutes each {param} segment of route with the next escaped arg.
func path(route string, args ...string) string {
	if len(args) == 0 {
		return route
	}
	parts := strings.Split(route, "/")
	i := 0
	for j, p := range parts {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") && i < len(args) {
			parts[j] = url.PathEscape(args[i])
			i++
		}
	}
	return strings.Join(parts, "/")
}
