package console

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/ovpnadmin/internal/apiclient"
	"github.com/alecgard/ovpnadmin/internal/locale"
	"github.com/alecgard/ovpnadmin/internal/model"
)

// serverStatus handles GET /server.
func (c *Console) serverStatus(w http.ResponseWriter, r *http.Request) {
	cs := sessionFrom(r.Context())
	st, err := cs.client.ServerStatus(r.Context())
	if err != nil {
		if !c.backendFailed(w, r, err) {
			c.render(w, r, http.StatusBadGateway, "server", View{TitleKey: "server.title"})
		}
		return
	}
	c.render(w, r, http.StatusOK, "server", View{TitleKey: "server.title", Data: st})
}

// controlServer handles POST /server/{action}. Stop and restart go through
// the confirmation step.
func (c *Console) controlServer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)

	action, err := apiclient.ParseServerAction(chi.URLParam(r, "action"))
	if err != nil {
		c.notFound(w, r)
		return
	}
	label := cs.t("server." + string(action))
	if action != apiclient.ServerStart && !confirmed(r) {
		c.render(w, r, http.StatusOK, "confirm", View{
			TitleKey: "common.confirm.title",
			Data: confirmData{
				Message: label + "?",
				Action:  "/server/" + url.PathEscape(string(action)),
				Cancel:  "/server",
			},
		})
		return
	}

	if err := cs.client.ControlServer(ctx, action); err != nil {
		if !c.backendFailed(w, r, err) {
			http.Redirect(w, r, "/server", http.StatusSeeOther)
		}
		return
	}
	c.redirectWithFlash(w, r, "/server", "server.requested", "action", label)
}

type configData struct {
	Items []model.ConfigItem
}

// configForm handles GET /config.
func (c *Console) configForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)

	items, err := cs.client.ConfigItems(ctx, locale.FromContext(ctx))
	if err != nil {
		if !c.backendFailed(w, r, err) {
			c.render(w, r, http.StatusBadGateway, "config", View{TitleKey: "config.title", Data: configData{}})
		}
		return
	}
	form := url.Values{}
	for _, it := range items {
		form.Set(it.Key, it.DisplayValue())
	}
	c.render(w, r, http.StatusOK, "config", View{TitleKey: "config.title", Form: form, Data: configData{Items: items}})
}

// updateConfig handles POST /config. Only rows whose typed value changed
// are submitted; an invalid row keeps the whole form open.
func (c *Console) updateConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)

	items, err := cs.client.ConfigItems(ctx, locale.FromContext(ctx))
	if err != nil {
		if !c.backendFailed(w, r, err) {
			http.Redirect(w, r, "/config", http.StatusSeeOther)
		}
		return
	}
	if err := r.ParseForm(); err != nil {
		c.badForm(w, r, "config", "config.title")
		return
	}

	changes, invalid := configChanges(items, r.PostForm)
	if len(invalid) > 0 {
		for _, e := range invalid {
			cs.notifier.Error(ctx, cs.t("config.invalid", "key", e.key, "reason", e.err.Error()))
		}
		c.render(w, r, http.StatusUnprocessableEntity, "config", View{
			TitleKey: "config.title",
			Form:     r.PostForm,
			Data:     configData{Items: items},
		})
		return
	}
	if len(changes) > 0 {
		if err := cs.client.UpdateConfig(ctx, changes); err != nil {
			if !c.backendFailed(w, r, err) {
				c.render(w, r, statusFor(err), "config", View{
					TitleKey: "config.title",
					Form:     r.PostForm,
					Data:     configData{Items: items},
				})
			}
			return
		}
	}
	c.redirectWithFlash(w, r, "/config", "config.saved")
}

type invalidValue struct {
	key string
	err error
}

// configChanges type-checks every submitted row and returns the ones whose
// value differs from the current one. An unchecked boolean is absent from
// the form and parses as false.
func configChanges(items []model.ConfigItem, form url.Values) (map[string]any, []invalidValue) {
	changes := make(map[string]any)
	var invalid []invalidValue
	for _, it := range items {
		v, err := it.ParseValue(form.Get(it.Key))
		if err != nil {
			invalid = append(invalid, invalidValue{key: it.Key, err: err})
			continue
		}
		current, err := it.ParseValue(it.DisplayValue())
		if err == nil && fmt.Sprint(current) == fmt.Sprint(v) {
			continue
		}
		changes[it.Key] = v
	}
	return changes, invalid
}
