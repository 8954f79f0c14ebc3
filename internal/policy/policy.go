// Package policy decides what the current user may see and do. Every page
// and command asks here instead of comparing roles inline.
//
// The hierarchy is not linear: a manager's extra powers are scoped to their
// own department and to plain users, while an admin's are organisation-wide
// but stop short of superadmins and server control.
package policy

import "github.com/alecgard/ovpnadmin/internal/model"

// Action names one gated operation.
type Action string

const (
	ViewClients       Action = "clients.view"
	ManageClients     Action = "clients.manage"
	ViewUsers         Action = "users.view"
	CreateUser        Action = "users.create"
	EditUser          Action = "users.edit"
	DeleteUser        Action = "users.delete"
	EditFixedIP       Action = "users.fixed_ip"
	ManageDepartments Action = "departments.manage"
	ManageServer      Action = "server.manage"
	ChangeOwnRole     Action = "profile.role"
)

// Actions lists every gated action.
var Actions = []Action{
	ViewClients, ManageClients, ViewUsers, CreateUser, EditUser, DeleteUser,
	EditFixedIP, ManageDepartments, ManageServer, ChangeOwnRole,
}

// Decide is the single entry point for gating. target is consulted only by
// EditUser and DeleteUser; a nil target denies those.
func Decide(actor model.User, action Action, target *model.User) bool {
	switch action {
	case ViewClients:
		return CanViewClients(actor)
	case ManageClients:
		return CanManageClients(actor)
	case ViewUsers:
		return CanViewUsers(actor)
	case CreateUser:
		return CanCreateUsers(actor)
	case EditUser:
		return target != nil && CanEditUser(actor, *target)
	case DeleteUser:
		return target != nil && CanDeleteUser(actor, *target)
	case EditFixedIP:
		return CanEditFixedIP(actor)
	case ManageDepartments:
		return CanManageDepartments(actor)
	case ManageServer:
		return CanManageServer(actor)
	case ChangeOwnRole:
		return CanChangeOwnRole(actor)
	}
	return false
}

func authenticated(u model.User) bool {
	return !u.IsZero() && u.Role.Valid()
}

func is(u model.User, roles ...model.Role) bool {
	if !authenticated(u) {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// CanViewClients reports whether actor sees the clients page at all; what
// they see is narrowed by ClientScope.
func CanViewClients(actor model.User) bool {
	return authenticated(actor)
}

// Scope is the breadth of a listing.
type Scope int

const (
	ScopeNone Scope = iota
	ScopeOwn
	ScopeDepartment
	ScopeAll
)

// ClientScope returns which VPN clients actor may view.
func ClientScope(actor model.User) Scope {
	switch {
	case !authenticated(actor):
		return ScopeNone
	case actor.Role == model.RoleUser:
		return ScopeOwn
	case actor.Role == model.RoleManager:
		return ScopeDepartment
	default:
		return ScopeAll
	}
}

// VisibleClients narrows clients to actor's scope.
func VisibleClients(actor model.User, clients []model.VPNClient) []model.VPNClient {
	scope := ClientScope(actor)
	if scope == ScopeAll {
		return clients
	}
	out := make([]model.VPNClient, 0, len(clients))
	for _, c := range clients {
		switch {
		case scope == ScopeNone:
		case c.UserID == actor.ID:
			out = append(out, c)
		case scope == ScopeDepartment && sameDepartment(actor.DepartmentID, c.DepartmentID):
			out = append(out, c)
		}
	}
	return out
}

// CanManageClients reports whether actor may create and delete VPN clients.
func CanManageClients(actor model.User) bool {
	return is(actor, model.RoleManager, model.RoleAdmin, model.RoleSuperadmin)
}

// CanManageDepartments reports whether actor may create, edit and delete
// departments.
func CanManageDepartments(actor model.User) bool {
	return is(actor, model.RoleAdmin, model.RoleSuperadmin)
}

// CanViewUsers reports whether actor sees the user management list.
func CanViewUsers(actor model.User) bool {
	return CanCreateUsers(actor)
}

// CanCreateUsers reports whether actor may create any user at all.
func CanCreateUsers(actor model.User) bool {
	return is(actor, model.RoleManager, model.RoleAdmin, model.RoleSuperadmin)
}

// CreatableRoles lists the roles actor may assign to a new or edited user.
func CreatableRoles(actor model.User) []model.Role {
	switch {
	case is(actor, model.RoleSuperadmin):
		return []model.Role{model.RoleUser, model.RoleManager, model.RoleAdmin, model.RoleSuperadmin}
	case is(actor, model.RoleAdmin):
		return []model.Role{model.RoleUser, model.RoleManager, model.RoleAdmin}
	case is(actor, model.RoleManager):
		return []model.Role{model.RoleUser}
	}
	return nil
}

// CanAssignRole reports whether actor may give role to a user.
func CanAssignRole(actor model.User, role model.Role) bool {
	for _, r := range CreatableRoles(actor) {
		if r == role {
			return true
		}
	}
	return false
}

// CanCreateUser checks a concrete creation: managers may only create plain
// users inside their own department.
func CanCreateUser(actor model.User, role model.Role, departmentID string) bool {
	if !CanAssignRole(actor, role) {
		return false
	}
	if actor.Role == model.RoleManager {
		return sameDepartment(actor.DepartmentID, departmentID)
	}
	return true
}

// CanEditUser reports whether actor may edit target from the management
// list.
func CanEditUser(actor, target model.User) bool {
	switch {
	case is(actor, model.RoleSuperadmin):
		return true
	case is(actor, model.RoleAdmin):
		return target.Role != model.RoleSuperadmin
	case is(actor, model.RoleManager):
		return target.Role == model.RoleUser && sameDepartment(actor.DepartmentID, target.DepartmentID)
	}
	return false
}

// CanDeleteUser is CanEditUser except that nobody deletes their own account
// from the management list.
func CanDeleteUser(actor, target model.User) bool {
	if actor.ID == target.ID {
		return false
	}
	return CanEditUser(actor, target)
}

// CanEditFixedIP reports whether actor may set a user's fixed VPN address.
func CanEditFixedIP(actor model.User) bool {
	return is(actor, model.RoleAdmin, model.RoleSuperadmin)
}

// CanManageServer reports whether actor may view and control the OpenVPN
// server and its configuration.
func CanManageServer(actor model.User) bool {
	return is(actor, model.RoleSuperadmin)
}

// CanChangeOwnRole reports whether actor may change their own role.
func CanChangeOwnRole(actor model.User) bool {
	return is(actor, model.RoleSuperadmin)
}

// FilterByDepartment keeps users whose department id equals departmentID
// exactly. Child departments are not included.
func FilterByDepartment(users []model.User, departmentID string) []model.User {
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		if sameDepartment(departmentID, u.DepartmentID) {
			out = append(out, u)
		}
	}
	return out
}

// VisibleUsers narrows a full user listing to what actor may see.
func VisibleUsers(actor model.User, users []model.User) []model.User {
	switch {
	case is(actor, model.RoleAdmin, model.RoleSuperadmin):
		return users
	case is(actor, model.RoleManager):
		return FilterByDepartment(users, actor.DepartmentID)
	}
	return nil
}

func sameDepartment(a, b string) bool {
	return a != "" && a == b
}

// ConnectionsOf keeps the live sessions that belong to one of clients.
// Pass the output of VisibleClients to scope connections to an actor.
func ConnectionsOf(clients []model.VPNClient, conns []model.Connection) []model.Connection {
	ids := make(map[string]bool, len(clients))
	for _, c := range clients {
		ids[c.ID] = true
	}
	out := make([]model.Connection, 0, len(conns))
	for _, cn := range conns {
		if ids[cn.ClientID] {
			out = append(out, cn)
		}
	}
	return out
}
