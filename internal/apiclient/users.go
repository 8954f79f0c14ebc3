package apiclient

import (
	"context"
	"net/http"

	"github.com/alecgard/ovpnadmin/internal/model"
)

// ListUsers returns every user the backend lets the caller see. Department
// scoping for managers is applied by the caller.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := c.do(ctx, call{method: http.MethodGet, route: "/users", path: "/users"}, &users)
	return users, err
}

// GetUser fetches one user.
func (c *Client) GetUser(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := c.do(ctx, call{method: http.MethodGet, route: "/users/{id}", path: path("/users/{id}", id)}, &u)
	return u, err
}

// CreateUser creates a managed account.
func (c *Client) CreateUser(ctx context.Context, in model.CreateUserInput) (model.User, error) {
	var u model.User
	err := c.do(ctx, call{method: http.MethodPost, route: "/users", path: "/users", body: in}, &u)
	return u, err
}

// UpdateUser applies a partial update to a managed account.
func (c *Client) UpdateUser(ctx context.Context, id string, up model.UserUpdate) (model.User, error) {
	var u model.User
	err := c.do(ctx, call{method: http.MethodPatch, route: "/users/{id}", path: path("/users/{id}", id), body: up}, &u)
	return u, err
}

// DeleteUser deletes a managed account.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, call{method: http.MethodDelete, route: "/users/{id}", path: path("/users/{id}", id)}, nil)
}
