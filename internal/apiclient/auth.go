package apiclient

import (
	"context"
	"net/http"

	"github.com/alecgard/ovpnadmin/internal/model"
)

// tokenResponse accepts either field name for the issued bearer token.
type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
}

func (t tokenResponse) value() string {
	if t.AccessToken != "" {
		return t.AccessToken
	}
	return t.Token
}

// Register creates an account. The backend then expects an email
// verification step.
func (c *Client) Register(ctx context.Context, r model.Registration) error {
	return c.do(ctx, call{method: http.MethodPost, route: "/auth/register", path: "/auth/register", body: r}, nil)
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, cred model.Credentials) (string, error) {
	var tr tokenResponse
	if err := c.do(ctx, call{method: http.MethodPost, route: "/auth/login", path: "/auth/login", body: cred}, &tr); err != nil {
		return "", err
	}
	return tr.value(), nil
}

// Logout invalidates the current token on the backend.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, call{method: http.MethodPost, route: "/auth/logout", path: "/auth/logout"}, nil)
}

// Refresh trades the current token for a fresh one.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	var tr tokenResponse
	if err := c.do(ctx, call{method: http.MethodPost, route: "/auth/refresh", path: "/auth/refresh"}, &tr); err != nil {
		return "", err
	}
	return tr.value(), nil
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var u model.User
	err := c.do(ctx, call{method: http.MethodGet, route: "/auth/me", path: "/auth/me"}, &u)
	return u, err
}

// UpdateMe applies a partial update to the authenticated user's profile.
func (c *Client) UpdateMe(ctx context.Context, up model.UserUpdate) (model.User, error) {
	var u model.User
	err := c.do(ctx, call{method: http.MethodPatch, route: "/auth/me", path: "/auth/me", body: up}, &u)
	return u, err
}

// VerifyEmail confirms an address with the emailed code.
func (c *Client) VerifyEmail(ctx context.Context, email, code string) error {
	body := map[string]string{"email": email, "code": code}
	return c.do(ctx, call{method: http.MethodPost, route: "/auth/verify-email", path: "/auth/verify-email", body: body}, nil)
}

// ForgotPassword asks the backend to email a reset token.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, call{method: http.MethodPost, route: "/auth/forgot-password", path: "/auth/forgot-password", body: body}, nil)
}

// ResetPassword sets a new password using an emailed token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	body := map[string]string{"token": token, "password": password}
	return c.do(ctx, call{method: http.MethodPost, route: "/auth/reset-password", path: "/auth/reset-password", body: body}, nil)
}
