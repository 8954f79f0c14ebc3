package policy

import (
	"reflect"
	"testing"

	"github.com/alecgard/ovpnadmin/internal/model"
)

var (
	plain      = model.User{ID: "u1", Role: model.RoleUser, DepartmentID: "d1"}
	manager    = model.User{ID: "m1", Role: model.RoleManager, DepartmentID: "d1"}
	admin      = model.User{ID: "a1", Role: model.RoleAdmin, DepartmentID: "d2"}
	superadmin = model.User{ID: "s1", Role: model.RoleSuperadmin}
)

func TestRoleActionTable(t *testing.T) {
	tests := []struct {
		action Action
		want   map[model.Role]bool
	}{
		{ViewClients, map[model.Role]bool{model.RoleUser: true, model.RoleManager: true, model.RoleAdmin: true, model.RoleSuperadmin: true}},
		{ManageClients, map[model.Role]bool{model.RoleUser: false, model.RoleManager: true, model.RoleAdmin: true, model.RoleSuperadmin: true}},
		{ManageDepartments, map[model.Role]bool{model.RoleUser: false, model.RoleManager: false, model.RoleAdmin: true, model.RoleSuperadmin: true}},
		{CreateUser, map[model.Role]bool{model.RoleUser: false, model.RoleManager: true, model.RoleAdmin: true, model.RoleSuperadmin: true}},
		{EditFixedIP, map[model.Role]bool{model.RoleUser: false, model.RoleManager: false, model.RoleAdmin: true, model.RoleSuperadmin: true}},
		{ManageServer, map[model.Role]bool{model.RoleUser: false, model.RoleManager: false, model.RoleAdmin: false, model.RoleSuperadmin: true}},
		{ChangeOwnRole, map[model.Role]bool{model.RoleUser: false, model.RoleManager: false, model.RoleAdmin: false, model.RoleSuperadmin: true}},
	}
	actors := map[model.Role]model.User{
		model.RoleUser:       plain,
		model.RoleManager:    manager,
		model.RoleAdmin:      admin,
		model.RoleSuperadmin: superadmin,
	}
	for _, tt := range tests {
		for role, want := range tt.want {
			if got := Decide(actors[role], tt.action, nil); got != want {
				t.Errorf("Decide(%s, %s) = %v, want %v", role, tt.action, got, want)
			}
		}
	}
}

func TestEditDeleteUser(t *testing.T) {
	sameDeptUser := model.User{ID: "u2", Role: model.RoleUser, DepartmentID: "d1"}
	otherDeptUser := model.User{ID: "u3", Role: model.RoleUser, DepartmentID: "d9"}
	sameDeptManager := model.User{ID: "m2", Role: model.RoleManager, DepartmentID: "d1"}
	otherManager := model.User{ID: "m3", Role: model.RoleManager, DepartmentID: "d9"}
	otherAdmin := model.User{ID: "a2", Role: model.RoleAdmin}
	otherSuper := model.User{ID: "s2", Role: model.RoleSuperadmin}

	tests := []struct {
		name      string
		actor     model.User
		target    model.User
		edit, del bool
	}{
		{"user cannot edit peers", plain, sameDeptUser, false, false},
		{"manager same department user", manager, sameDeptUser, true, true},
		{"manager other department user", manager, otherDeptUser, false, false},
		{"manager same department manager", manager, sameDeptManager, false, false},
		{"admin deletes manager", admin, otherManager, true, true},
		{"admin edits admin", admin, otherAdmin, true, true},
		{"admin never superadmin", admin, otherSuper, false, false},
		{"superadmin anyone", superadmin, otherSuper, true, true},
		{"superadmin not self delete", superadmin, superadmin, true, false},
		{"admin not self delete", admin, admin, true, false},
		{"manager not self delete", manager, manager, false, false},
		{"anonymous", model.User{}, sameDeptUser, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := tt.target
			if got := Decide(tt.actor, EditUser, &target); got != tt.edit {
				t.Errorf("edit = %v, want %v", got, tt.edit)
			}
			if got := Decide(tt.actor, DeleteUser, &target); got != tt.del {
				t.Errorf("delete = %v, want %v", got, tt.del)
			}
		})
	}

	if Decide(superadmin, DeleteUser, nil) {
		t.Error("nil target must deny")
	}
}

func TestManagerWithoutDepartment(t *testing.T) {
	m := model.User{ID: "m9", Role: model.RoleManager}
	u := model.User{ID: "u9", Role: model.RoleUser}
	if CanEditUser(m, u) {
		t.Error("empty department ids must not match")
	}
	if CanCreateUser(m, model.RoleUser, "") {
		t.Error("manager without department cannot create users")
	}
}

func TestCreatableRoles(t *testing.T) {
	tests := []struct {
		actor model.User
		want  []model.Role
	}{
		{plain, nil},
		{manager, []model.Role{model.RoleUser}},
		{admin, []model.Role{model.RoleUser, model.RoleManager, model.RoleAdmin}},
		{superadmin, model.Roles},
	}
	for _, tt := range tests {
		if got := CreatableRoles(tt.actor); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("CreatableRoles(%s) = %v, want %v", tt.actor.Role, got, tt.want)
		}
	}
}

func TestCanCreateUser(t *testing.T) {
	tests := []struct {
		name  string
		actor model.User
		role  model.Role
		dept  string
		want  bool
	}{
		{"manager own dept user", manager, model.RoleUser, "d1", true},
		{"manager other dept", manager, model.RoleUser, "d2", false},
		{"manager cannot create manager", manager, model.RoleManager, "d1", false},
		{"admin creates admin", admin, model.RoleAdmin, "d7", true},
		{"admin cannot create superadmin", admin, model.RoleSuperadmin, "", false},
		{"superadmin creates superadmin", superadmin, model.RoleSuperadmin, "", true},
		{"user cannot create", plain, model.RoleUser, "d1", false},
	}
	for _, tt := range tests {
		if got := CanCreateUser(tt.actor, tt.role, tt.dept); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFilterByDepartmentExact(t *testing.T) {
	users := []model.User{
		{ID: "1", DepartmentID: "d1"},
		{ID: "2", DepartmentID: "d1-sub"},
		{ID: "3", DepartmentID: "d2"},
		{ID: "4"},
		{ID: "5", DepartmentID: "d1"},
	}
	got := FilterByDepartment(users, "d1")
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "5" {
		t.Errorf("FilterByDepartment = %+v", got)
	}
	if got := FilterByDepartment(users, ""); len(got) != 0 {
		t.Errorf("empty department matched %d users", len(got))
	}
}

func TestVisibleUsers(t *testing.T) {
	users := []model.User{
		{ID: "1", DepartmentID: "d1"},
		{ID: "2", DepartmentID: "d2"},
	}
	if got := VisibleUsers(manager, users); len(got) != 1 || got[0].ID != "1" {
		t.Errorf("manager sees %+v", got)
	}
	if got := VisibleUsers(admin, users); len(got) != 2 {
		t.Errorf("admin sees %d", len(got))
	}
	if got := VisibleUsers(plain, users); len(got) != 0 {
		t.Errorf("user sees %d", len(got))
	}
}

func TestVisibleClients(t *testing.T) {
	clients := []model.VPNClient{
		{ID: "c1", UserID: "u1", DepartmentID: "d1"},
		{ID: "c2", UserID: "u2", DepartmentID: "d1"},
		{ID: "c3", UserID: "u3", DepartmentID: "d2"},
		{ID: "c4", UserID: "m1", DepartmentID: "d5"},
	}
	ids := func(cs []model.VPNClient) []string {
		out := []string{}
		for _, c := range cs {
			out = append(out, c.ID)
		}
		return out
	}
	tests := []struct {
		actor model.User
		want  []string
	}{
		{plain, []string{"c1"}},
		{manager, []string{"c1", "c2", "c4"}},
		{admin, []string{"c1", "c2", "c3", "c4"}},
		{model.User{}, []string{}},
	}
	for _, tt := range tests {
		if got := ids(VisibleClients(tt.actor, clients)); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("VisibleClients(%q) = %v, want %v", tt.actor.Role, got, tt.want)
		}
	}
}

func TestNavLinks(t *testing.T) {
	paths := func(u model.User) []string {
		var out []string
		for _, l := range NavLinks(u) {
			out = append(out, l.Path)
		}
		return out
	}
	tests := []struct {
		actor model.User
		want  []string
	}{
		{model.User{}, []string{"/", "/login", "/register"}},
		{plain, []string{"/dashboard", "/clients", "/profile"}},
		{manager, []string{"/dashboard", "/clients", "/users", "/profile"}},
		{admin, []string{"/dashboard", "/clients", "/users", "/departments", "/profile"}},
		{superadmin, []string{"/dashboard", "/clients", "/users", "/departments", "/server", "/config", "/profile"}},
	}
	for _, tt := range tests {
		if got := paths(tt.actor); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("NavLinks(%q) = %v, want %v", tt.actor.Role, got, tt.want)
		}
	}
}

func TestUnknownRoleDeniedEverything(t *testing.T) {
	odd := model.User{ID: "x", Role: "root"}
	for _, a := range Actions {
		target := plain
		if Decide(odd, a, &target) {
			t.Errorf("unknown role allowed %s", a)
		}
	}
}

func TestConnectionsOf(t *testing.T) {
	clients := []model.VPNClient{{ID: "c1"}, {ID: "c3"}}
	conns := []model.Connection{
		{ClientID: "c1", VirtualAddress: "10.8.0.2"},
		{ClientID: "c2", VirtualAddress: "10.8.0.3"},
		{ClientID: "c3", VirtualAddress: "10.8.0.4"},
	}
	var got []string
	for _, cn := range ConnectionsOf(clients, conns) {
		got = append(got, cn.ClientID)
	}
	if want := []string{"c1", "c3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ConnectionsOf = %v, want %v", got, want)
	}
	if n := len(ConnectionsOf(nil, conns)); n != 0 {
		t.Errorf("no clients kept %d connections", n)
	}
}
