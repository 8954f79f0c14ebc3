package policy

import "github.com/alecgard/ovpnadmin/internal/model"

// NavLink is one entry of the navigation bar. Key is a translation key.
type NavLink struct {
	Key  string
	Path string
}

// NavLinks returns the navigation visible to actor. A zero actor gets the
// anonymous links.
func NavLinks(actor model.User) []NavLink {
	if !authenticated(actor) {
		return []NavLink{
			{Key: "common.nav.home", Path: "/"},
			{Key: "common.nav.login", Path: "/login"},
			{Key: "common.nav.register", Path: "/register"},
		}
	}
	links := []NavLink{
		{Key: "common.nav.dashboard", Path: "/dashboard"},
		{Key: "common.nav.clients", Path: "/clients"},
	}
	if CanViewUsers(actor) {
		links = append(links, NavLink{Key: "common.nav.users", Path: "/users"})
	}
	if CanManageDepartments(actor) {
		links = append(links, NavLink{Key: "common.nav.departments", Path: "/departments"})
	}
	if CanManageServer(actor) {
		links = append(links,
			NavLink{Key: "common.nav.server", Path: "/server"},
			NavLink{Key: "common.nav.config", Path: "/config"},
		)
	}
	return append(links, NavLink{Key: "common.nav.profile", Path: "/profile"})
}
