package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alecgard/ovpnadmin/internal/model"
)

// ListClients returns the VPN clients visible to the caller.
func (c *Client) ListClients(ctx context.Context) ([]model.VPNClient, error) {
	var out []model.VPNClient
	err := c.do(ctx, call{method: http.MethodGet, route: "/openvpn/clients", path: "/openvpn/clients"}, &out)
	return out, err
}

// AddClient issues a client certificate.
func (c *Client) AddClient(ctx context.Context, in model.VPNClientInput) (model.VPNClient, error) {
	var vc model.VPNClient
	err := c.do(ctx, call{method: http.MethodPost, route: "/openvpn/clients", path: "/openvpn/clients", body: in}, &vc)
	return vc, err
}

// DeleteClient revokes and removes a client.
func (c *Client) DeleteClient(ctx context.Context, id string) error {
	return c.do(ctx, call{
		method: http.MethodDelete,
		route:  "/openvpn/clients/{id}",
		path:   path("/openvpn/clients/{id}", id),
	}, nil)
}

// ClientConfig downloads the profile of a client for os. The blob is passed
// through untouched and named {clientId}.{conf|ovpn}; any filename the
// backend suggests is ignored.
func (c *Client) ClientConfig(ctx context.Context, id string, os model.ClientOS) (model.Profile, error) {
	q := url.Values{}
	q.Set("os", string(os))
	data, err := c.send(ctx, call{
		method: http.MethodGet,
		route:  "/openvpn/clients/{id}/config",
		path:   path("/openvpn/clients/{id}/config", id),
		query:  q,
	})
	if err != nil {
		return model.Profile{}, err
	}
	return model.Profile{Filename: model.ProfileFilename(id, os), Data: data}, nil
}

// Logs returns a window of the server log.
func (c *Client) Logs(ctx context.Context, offset, limit int) (model.LogPage, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 100
	}
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var page model.LogPage
	err := c.do(ctx, call{method: http.MethodGet, route: "/openvpn/logs", path: "/openvpn/logs", query: q}, &page)
	return page, err
}

// Connections lists live VPN sessions.
func (c *Client) Connections(ctx context.Context) ([]model.Connection, error) {
	var out []model.Connection
	err := c.do(ctx, call{method: http.MethodGet, route: "/openvpn/connections", path: "/openvpn/connections"}, &out)
	return out, err
}
