// Package auth orchestrates login, registration, token refresh, logout and
// profile updates against the backend, keeping the persisted session in
// step with the outcome.
//
// Controller methods never return raw backend errors to their callers.
// Failures move the controller into PhaseError, surface once through the
// notifier and yield a falsy result.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alecgard/ovpnadmin/internal/apiclient"
	"github.com/alecgard/ovpnadmin/internal/logging"
	"github.com/alecgard/ovpnadmin/internal/model"
	"github.com/alecgard/ovpnadmin/internal/notify"
	"github.com/alecgard/ovpnadmin/internal/policy"
	"github.com/alecgard/ovpnadmin/internal/session"
)

// Routes the controller redirects to.
const (
	RouteHome        = "/"
	RouteLogin       = "/login"
	RouteVerifyEmail = "/verify-email"
)

var (
	// ErrPasswordMismatch rejects a form whose password and confirmation
	// differ, before any network call.
	ErrPasswordMismatch = errors.New("password confirmation does not match")

	// ErrNotAuthenticated rejects authenticated-only operations.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrOwnRoleChange rejects a self role change the actor may not make.
	ErrOwnRoleChange = errors.New("cannot change own role")

	// ErrNoToken is returned when the backend accepted a login or refresh
	// without issuing a token.
	ErrNoToken = errors.New("backend issued no token")
)

// Backend is the slice of the API client the controller drives.
type Backend interface {
	Login(ctx context.Context, cred model.Credentials) (string, error)
	Register(ctx context.Context, r model.Registration) error
	Refresh(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (model.User, error)
	UpdateMe(ctx context.Context, up model.UserUpdate) (model.User, error)
	VerifyEmail(ctx context.Context, email, code string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
}

// Navigator performs redirects.
type Navigator interface {
	Navigate(ctx context.Context, route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, route string)

func (f NavigatorFunc) Navigate(ctx context.Context, route string) { f(ctx, route) }

// Messages translates notification keys.
type Messages interface {
	T(key string, params map[string]any, fallback ...string) string
}

// Observer records operation outcomes.
type Observer interface {
	ObserveAuth(operation string, ok bool)
}

// Deps are the controller's optional collaborators.
type Deps struct {
	Notifier  *notify.Notifier
	Navigator Navigator
	Messages  Messages
	Observer  Observer
}

// Controller is the single source of truth for "who is logged in and what
// failed" within one logical session. Concurrent operations are not
// serialized; the last to finish sets the final state.
type Controller struct {
	backend Backend
	session *session.Store
	deps    Deps
	now     func() time.Time

	mu    sync.RWMutex
	state State
}

// NewController creates a controller over an already loaded session store.
func NewController(backend Backend, store *session.Store, deps Deps) *Controller {
	c := &Controller{backend: backend, session: store, deps: deps, now: time.Now}
	c.state = State{Phase: c.restingPhase()}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// User returns the current user, or nil when none is authenticated.
// Role-dependent rendering must gate on this rather than on IsLogin.
func (c *Controller) User() *model.User {
	if !c.session.Authenticated() {
		return nil
	}
	u := c.session.User()
	return &u
}

// Session returns the underlying store.
func (c *Controller) Session() *session.Store {
	return c.session
}

func (c *Controller) restingPhase() Phase {
	if c.session.Authenticated() {
		return PhaseAuthenticated
	}
	return PhaseAnonymous
}

func (c *Controller) begin(op Op) {
	c.mu.Lock()
	c.state = State{Phase: PhaseAuthenticating, Op: op}
	c.mu.Unlock()
}

func (c *Controller) succeed(op Op) {
	c.mu.Lock()
	c.state = State{Phase: c.restingPhase(), Op: op}
	c.mu.Unlock()
	c.observe(op, true)
}

// fail records err, shows the user-facing message once and logs the cause.
func (c *Controller) fail(ctx context.Context, op Op, err error, key, fallback string) {
	c.mu.Lock()
	c.state = State{Phase: PhaseError, Op: op, Err: err}
	c.mu.Unlock()
	c.observe(op, false)

	logging.FromContext(ctx).Warn("auth operation failed", "op", string(op), "error", err)
	c.deps.Notifier.Error(ctx, c.message(err, key, fallback))
}

func (c *Controller) observe(op Op, ok bool) {
	if c.deps.Observer != nil {
		c.deps.Observer.ObserveAuth(string(op), ok)
	}
}

// message prefers the backend's own text, which is already localized via
// Accept-Language, over the generic translated key.
func (c *Controller) message(err error, key, fallback string) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return c.t(key, nil, fallback)
}

func (c *Controller) t(key string, params map[string]any, fallback string) string {
	if c.deps.Messages == nil {
		return fallback
	}
	return c.deps.Messages.T(key, params, fallback)
}

func (c *Controller) navigate(ctx context.Context, route string) {
	if c.deps.Navigator != nil {
		c.deps.Navigator.Navigate(ctx, route)
	}
}

// storeToken writes token to the session and its 7-day slot and marks the
// session logged in. Persistence failures are logged; memory is already
// updated.
func (c *Controller) storeToken(ctx context.Context, token string) {
	log := logging.FromContext(ctx)
	if err := c.session.UpdateAccessToken(ctx, token); err != nil {
		log.Error("persisting access token", "error", err)
	}
	if err := c.session.UpdateIsLogin(ctx, true); err != nil {
		log.Error("persisting login flag", "error", err)
	}
}

func (c *Controller) storeUser(ctx context.Context, u model.User) {
	if err := c.session.UpdateUser(ctx, u); err != nil {
		logging.FromContext(ctx).Error("persisting user", "error", err)
	}
}

// Login authenticates, then fetches the profile. It returns the fetched
// user on success.
func (c *Controller) Login(ctx context.Context, cred model.Credentials) (*model.User, bool) {
	c.begin(OpLogin)

	token, err := c.backend.Login(ctx, cred)
	if err == nil && token == "" {
		err = ErrNoToken
	}
	if err != nil {
		c.fail(ctx, OpLogin, err, "auth.errors.login_failed", "Login failed.")
		return nil, false
	}
	c.storeToken(ctx, token)

	u, err := c.backend.Me(ctx)
	if err != nil {
		c.fail(ctx, OpLogin, err, "auth.errors.profile_failed", "Your profile could not be loaded.")
		return nil, false
	}
	c.storeUser(ctx, u)
	c.succeed(OpLogin)

	logging.FromContext(ctx).Info("user logged in", "user_id", u.ID, "role", string(u.Role))
	return &u, true
}

// Register creates an account. A password confirmation mismatch is
// rejected locally. On true the caller moves on to email verification.
func (c *Controller) Register(ctx context.Context, r model.Registration) bool {
	c.begin(OpRegister)

	if r.Password != r.PasswordConfirm {
		c.fail(ctx, OpRegister, ErrPasswordMismatch, "auth.errors.password_mismatch", "Passwords do not match.")
		return false
	}
	if err := c.backend.Register(ctx, r); err != nil {
		c.fail(ctx, OpRegister, err, "auth.errors.register_failed", "Registration failed.")
		return false
	}
	c.succeed(OpRegister)
	return true
}

// RefreshToken revalidates the persisted session: it trades the current
// token for a new one and re-fetches the profile. On false the caller must
// Logout.
func (c *Controller) RefreshToken(ctx context.Context) bool {
	c.begin(OpRefresh)

	token, err := c.backend.Refresh(ctx)
	if err == nil && token == "" {
		err = ErrNoToken
	}
	if err != nil {
		c.fail(ctx, OpRefresh, err, "auth.errors.refresh_failed", "Your session could not be restored.")
		return false
	}
	c.storeToken(ctx, token)

	u, err := c.backend.Me(ctx)
	if err != nil {
		c.fail(ctx, OpRefresh, err, "auth.errors.profile_failed", "Your profile could not be loaded.")
		return false
	}
	c.storeUser(ctx, u)
	c.succeed(OpRefresh)
	return true
}

// Logout tells the backend, always clears the local session and always
// navigates home, whether or not the backend call succeeded.
func (c *Controller) Logout(ctx context.Context) {
	c.begin(OpLogout)

	if c.session.AccessToken() != "" {
		if err := c.backend.Logout(ctx); err != nil {
			logging.FromContext(ctx).Debug("backend logout failed", "error", err)
		}
	}
	c.session.ClearLoginInfo(ctx)
	c.succeed(OpLogout)
	c.navigate(ctx, RouteHome)
}

// UpdateUserInfo applies a partial update to the current user's profile.
// Authorization failures (401, 403) send the user to the login view;
// validation and transient failures keep them where they are.
func (c *Controller) UpdateUserInfo(ctx context.Context, up model.UserUpdate) (*model.User, bool) {
	c.begin(OpUpdateUserInfo)

	if !c.session.IsLogin() {
		c.fail(ctx, OpUpdateUserInfo, ErrNotAuthenticated, "auth.errors.login_required", "Please log in to continue.")
		c.navigate(ctx, RouteLogin)
		return nil, false
	}
	current := c.session.User()
	if up.Role != nil && *up.Role != current.Role && !policy.CanChangeOwnRole(current) {
		c.fail(ctx, OpUpdateUserInfo, ErrOwnRoleChange, "profile.role_locked", "You cannot change your own role.")
		return nil, false
	}

	u, err := c.backend.UpdateMe(ctx, up)
	if err != nil {
		c.fail(ctx, OpUpdateUserInfo, err, "auth.errors.update_failed", "Your profile could not be updated.")
		if apiclient.IsAuthFailure(err) {
			c.navigate(ctx, RouteLogin)
		}
		return nil, false
	}
	c.storeUser(ctx, u)
	c.succeed(OpUpdateUserInfo)
	return &u, true
}

// FetchProfile re-reads the current user's profile into the session.
func (c *Controller) FetchProfile(ctx context.Context) (*model.User, bool) {
	c.begin(OpFetchProfile)

	u, err := c.backend.Me(ctx)
	if err != nil {
		c.fail(ctx, OpFetchProfile, err, "auth.errors.profile_failed", "Your profile could not be loaded.")
		return nil, false
	}
	c.storeUser(ctx, u)
	c.succeed(OpFetchProfile)
	return &u, true
}

// VerifyEmail confirms a registration with the emailed code.
func (c *Controller) VerifyEmail(ctx context.Context, email, code string) bool {
	c.begin(OpVerifyEmail)
	if err := c.backend.VerifyEmail(ctx, email, code); err != nil {
		c.fail(ctx, OpVerifyEmail, err, "auth.errors.verify_failed", "Email verification failed.")
		return false
	}
	c.succeed(OpVerifyEmail)
	return true
}

// ForgotPassword requests a password reset email.
func (c *Controller) ForgotPassword(ctx context.Context, email string) bool {
	c.begin(OpForgotPassword)
	if err := c.backend.ForgotPassword(ctx, email); err != nil {
		c.fail(ctx, OpForgotPassword, err, "auth.errors.reset_failed", "Password reset failed.")
		return false
	}
	c.succeed(OpForgotPassword)
	return true
}

// ResetPassword sets a new password with an emailed token. The
// confirmation is checked locally first.
func (c *Controller) ResetPassword(ctx context.Context, token, password, confirm string) bool {
	c.begin(OpResetPassword)
	if password != confirm {
		c.fail(ctx, OpResetPassword, ErrPasswordMismatch, "auth.errors.password_mismatch", "Passwords do not match.")
		return false
	}
	if err := c.backend.ResetPassword(ctx, token, password); err != nil {
		c.fail(ctx, OpResetPassword, err, "auth.errors.reset_failed", "Password reset failed.")
		return false
	}
	c.succeed(OpResetPassword)
	return true
}

// Bootstrap runs once when a console session starts. A persisted login
// flag is never trusted as is: it is revalidated with RefreshToken, and a
// failed refresh forces a full Logout. It reports whether a user is
// authenticated afterwards.
func (c *Controller) Bootstrap(ctx context.Context) bool {
	if !c.session.IsLogin() {
		return false
	}
	if exp, ok := session.TokenExpiry(c.session.AccessToken()); ok && exp.Before(c.now()) {
		logging.FromContext(ctx).Info("persisted token already expired", "expired_at", exp)
	}
	if c.RefreshToken(ctx) {
		return true
	}
	c.Logout(ctx)
	return false
}
