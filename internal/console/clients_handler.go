package console

import (
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/ovpnadmin/internal/model"
	"github.com/alecgard/ovpnadmin/internal/policy"
)

// clientOSes are the profile flavours offered for download.
var clientOSes = []model.ClientOS{model.OSWindows, model.OSMacOS, model.OSLinux, model.OSAndroid, model.OSIOS}

// logPageSize is how many server log lines one page shows.
const logPageSize = 100

type clientsData struct {
	Clients   []model.VPNClient
	Owners    []model.User
	OwnerName map[string]string
	OSes      []model.ClientOS
}

type logsData struct {
	Page model.LogPage
	Prev int
	Next int
	More bool
}

// listClients handles GET /clients.
func (c *Console) listClients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	actor := *cs.auth.User()

	clients, err := cs.client.ListClients(ctx)
	if err != nil {
		if !c.backendFailed(w, r, err) {
			c.render(w, r, http.StatusBadGateway, "clients", View{TitleKey: "clients.title", Data: clientsData{OSes: clientOSes}})
		}
		return
	}
	data := clientsData{
		Clients:   policy.VisibleClients(actor, clients),
		OwnerName: map[string]string{actor.ID: actor.Name},
		OSes:      clientOSes,
	}
	if policy.CanManageClients(actor) {
		data.Owners = c.owners(r, actor)
		for _, u := range data.Owners {
			data.OwnerName[u.ID] = u.Name
		}
	}
	c.render(w, r, http.StatusOK, "clients", View{TitleKey: "clients.title", Data: data})
}

// addClient handles POST /clients.
func (c *Console) addClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	actor := *cs.auth.User()
	if err := r.ParseForm(); err != nil {
		cs.notifier.Error(ctx, cs.t("common.errors.invalid_form"))
		http.Redirect(w, r, "/clients", http.StatusSeeOther)
		return
	}

	in := model.VPNClientInput{
		UserID: r.PostForm.Get("user_id"),
		Name:   strings.TrimSpace(r.PostForm.Get("name")),
	}
	if !ownerAllowed(c.owners(r, actor), in.UserID) {
		cs.notifier.Error(ctx, cs.t("clients.forbidden"))
		http.Redirect(w, r, "/clients", http.StatusSeeOther)
		return
	}

	created, err := cs.client.AddClient(ctx, in)
	if err != nil {
		if !c.backendFailed(w, r, err) {
			http.Redirect(w, r, "/clients", http.StatusSeeOther)
		}
		return
	}
	c.redirectWithFlash(w, r, "/clients", "clients.added", "name", created.Name)
}

// downloadConfig handles GET /clients/{id}/config?os=...
func (c *Console) downloadConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)

	os, err := model.ParseClientOS(r.URL.Query().Get("os"))
	if err != nil {
		cs.notifier.Error(ctx, cs.t("common.errors.invalid_form"))
		http.Redirect(w, r, "/clients", http.StatusSeeOther)
		return
	}
	vc, ok := c.loadClient(w, r)
	if !ok {
		return
	}
	profile, err := cs.client.ClientConfig(ctx, vc.ID, os)
	if err != nil {
		if !c.backendFailed(w, r, err) {
			http.Redirect(w, r, "/clients", http.StatusSeeOther)
		}
		return
	}

	w.Header().Set("Content-Type", "application/x-openvpn-profile")
	disposition := mime.FormatMediaType("attachment", map[string]string{
		"filename": model.ProfileFilename(vc.ID, os),
	})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(profile.Data)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(profile.Data)
}

// confirmDeleteClient handles GET /clients/{id}/delete.
func (c *Console) confirmDeleteClient(w http.ResponseWriter, r *http.Request) {
	vc, ok := c.loadClient(w, r)
	if !ok {
		return
	}
	c.confirm(w, r, vc.Name, "/clients/"+url.PathEscape(vc.ID)+"/delete", "/clients")
}

// deleteClient handles POST /clients/{id}/delete.
func (c *Console) deleteClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	if !confirmed(r) {
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}
	vc, ok := c.loadClient(w, r)
	if !ok {
		return
	}
	if err := cs.client.DeleteClient(ctx, vc.ID); err != nil {
		if !c.backendFailed(w, r, err) {
			http.Redirect(w, r, "/clients", http.StatusSeeOther)
		}
		return
	}
	c.redirectWithFlash(w, r, "/clients", "clients.deleted", "name", vc.Name)
}

// connections handles GET /clients/connections.
func (c *Console) connections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	actor := *cs.auth.User()

	clients, err := cs.client.ListClients(ctx)
	if err == nil {
		var conns []model.Connection
		conns, err = cs.client.Connections(ctx)
		if err == nil {
			visible := policy.ConnectionsOf(policy.VisibleClients(actor, clients), conns)
			c.render(w, r, http.StatusOK, "connections", View{TitleKey: "clients.connections", Data: visible})
			return
		}
	}
	if !c.backendFailed(w, r, err) {
		c.render(w, r, http.StatusBadGateway, "connections", View{TitleKey: "clients.connections"})
	}
}

// logs handles GET /clients/logs?offset=N.
func (c *Console) logs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	page, err := cs.client.Logs(ctx, offset, logPageSize)
	if err != nil {
		if !c.backendFailed(w, r, err) {
			c.render(w, r, http.StatusBadGateway, "logs", View{TitleKey: "clients.logs", Data: logsData{}})
		}
		return
	}
	data := logsData{Page: page, Prev: offset - logPageSize, Next: offset + logPageSize}
	if data.Prev < 0 {
		data.Prev = 0
	}
	data.More = data.Next < page.Total
	c.render(w, r, http.StatusOK, "logs", View{TitleKey: "clients.logs", Data: data})
}

// loadClient finds the client named by {id} among those the actor may see,
// so ids outside the actor's scope read as not found.
func (c *Console) loadClient(w http.ResponseWriter, r *http.Request) (model.VPNClient, bool) {
	cs := sessionFrom(r.Context())
	actor := *cs.auth.User()
	id := chi.URLParam(r, "id")

	clients, err := cs.client.ListClients(r.Context())
	if err != nil {
		if !c.backendFailed(w, r, err) {
			http.Redirect(w, r, "/clients", http.StatusSeeOther)
		}
		return model.VPNClient{}, false
	}
	for _, vc := range policy.VisibleClients(actor, clients) {
		if vc.ID == id {
			return vc, true
		}
	}
	c.notFound(w, r)
	return model.VPNClient{}, false
}

// owners lists the users actor may issue clients to; failures leave only
// the actor.
func (c *Console) owners(r *http.Request, actor model.User) []model.User {
	cs := sessionFrom(r.Context())
	users, err := cs.client.ListUsers(r.Context())
	if err != nil {
		logFrom(r).Debug("owner list unavailable", "error", err)
		return []model.User{actor}
	}
	visible := policy.VisibleUsers(actor, users)
	if !ownerAllowed(visible, actor.ID) {
		visible = append([]model.User{actor}, visible...)
	}
	return visible
}

func ownerAllowed(owners []model.User, id string) bool {
	if id == "" {
		return false
	}
	for _, u := range owners {
		if u.ID == id {
			return true
		}
	}
	return false
}
