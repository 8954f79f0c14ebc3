package console

import (
	"net/http"

	"github.com/alecgard/ovpnadmin/internal/apiclient"
	"github.com/alecgard/ovpnadmin/internal/model"
	"github.com/alecgard/ovpnadmin/internal/policy"
)

type dashboardData struct {
	Clients     int
	Connections int
	ShowCounts  bool
	Server      *model.ServerStatus
}

// dashboard handles GET /dashboard. The counts are best-effort: a failing
// backend call leaves them out rather than failing the page, except that
// an expired session still sends the browser to log in.
func (c *Console) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	actor := *cs.auth.User()
	var data dashboardData

	if policy.CanViewClients(actor) {
		clients, err := cs.client.ListClients(ctx)
		if apiclient.IsUnauthorized(err) {
			c.backendFailed(w, r, err)
			return
		}
		conns, cerr := cs.client.Connections(ctx)
		if apiclient.IsUnauthorized(cerr) {
			c.backendFailed(w, r, cerr)
			return
		}
		if err == nil && cerr == nil {
			visible := policy.VisibleClients(actor, clients)
			data.Clients = len(visible)
			data.Connections = len(policy.ConnectionsOf(visible, conns))
			data.ShowCounts = true
		} else {
			logFrom(r).Debug("dashboard counts unavailable", "clients_error", err, "connections_error", cerr)
		}
	}
	if policy.CanManageServer(actor) {
		st, err := cs.client.ServerStatus(ctx)
		switch {
		case err == nil:
			data.Server = &st
		case apiclient.IsUnauthorized(err):
			c.backendFailed(w, r, err)
			return
		default:
			logFrom(r).Debug("dashboard server status unavailable", "error", err)
		}
	}

	c.render(w, r, http.StatusOK, "dashboard", View{TitleKey: "dashboard.title", Data: data})
}
