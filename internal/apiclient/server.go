package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/alecgard/ovpnadmin/internal/model"
)

// ServerAction controls the OpenVPN daemon.
type ServerAction string

const (
	ServerStart   ServerAction = "start"
	ServerStop    ServerAction = "stop"
	ServerRestart ServerAction = "restart"
)

// ParseServerAction validates s.
func ParseServerAction(s string) (ServerAction, error) {
	switch a := ServerAction(s); a {
	case ServerStart, ServerStop, ServerRestart:
		return a, nil
	}
	return "", fmt.Errorf("unknown server action %q", s)
}

// ServerStatus reports the daemon state.
func (c *Client) ServerStatus(ctx context.Context) (model.ServerStatus, error) {
	var st model.ServerStatus
	err := c.do(ctx, call{method: http.MethodGet, route: "/server/status", path: "/server/status"}, &st)
	return st, err
}

// ControlServer starts, stops or restarts the daemon.
func (c *Client) ControlServer(ctx context.Context, action ServerAction) error {
	if _, err := ParseServerAction(string(action)); err != nil {
		return err
	}
	return c.do(ctx, call{
		method: http.MethodPost,
		route:  "/server/{action}",
		path:   path("/server/{action}", string(action)),
	}, nil)
}

// ConfigItems returns the server configuration rows with labels in locale.
func (c *Client) ConfigItems(ctx context.Context, locale string) ([]model.ConfigItem, error) {
	var q url.Values
	if locale != "" {
		q = url.Values{"locale": {locale}}
	}
	var items []model.ConfigItem
	err := c.do(ctx, call{method: http.MethodGet, route: "/server/config", path: "/server/config", query: q}, &items)
	return items, err
}

// UpdateConfig submits a partial map of key to typed value.
func (c *Client) UpdateConfig(ctx context.Context, values map[string]any) error {
	return c.do(ctx, call{method: http.MethodPatch, route: "/server/config", path: "/server/config", body: values}, nil)
}
