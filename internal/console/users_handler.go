package console

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/ovpnadmin/internal/model"
	"github.com/alecgard/ovpnadmin/internal/policy"
)

type usersData struct {
	Users       []model.User
	Departments map[string]string
}

type userFormData struct {
	Target      *model.User
	Roles       []model.Role
	Departments []model.Department
	CanFixedIP  bool
	LockedDept  bool
	FormAction  string
	SubmitKey   string
}

type confirmData struct {
	Message string
	Action  string
	Cancel  string
}

// listUsers handles GET /users.
func (c *Console) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	actor := *cs.auth.User()

	users, err := cs.client.ListUsers(ctx)
	if err != nil {
		if !c.backendFailed(w, r, err) {
			c.render(w, r, http.StatusBadGateway, "users", View{TitleKey: "users.title", Data: usersData{}})
		}
		return
	}
	c.render(w, r, http.StatusOK, "users", View{
		TitleKey: "users.title",
		Data: usersData{
			Users:       policy.VisibleUsers(actor, users),
			Departments: c.departmentNames(r),
		},
	})
}

// newUserForm handles GET /users/new.
func (c *Console) newUserForm(w http.ResponseWriter, r *http.Request) {
	actor := *sessionFrom(r.Context()).auth.User()
	form := url.Values{"role": {string(model.RoleUser)}}
	if actor.Role == model.RoleManager {
		form.Set("department_id", actor.DepartmentID)
	}
	c.render(w, r, http.StatusOK, "user_form", View{
		TitleKey: "users.create",
		Form:     form,
		Data:     c.userFormData(r, actor, nil),
	})
}

// createUser handles POST /users.
func (c *Console) createUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	actor := *cs.auth.User()
	if err := r.ParseForm(); err != nil {
		c.badForm(w, r, "user_form", "users.create")
		return
	}
	form := r.PostForm

	in := model.CreateUserInput{
		Name:         strings.TrimSpace(form.Get("name")),
		Email:        strings.TrimSpace(form.Get("email")),
		Password:     form.Get("password"),
		Role:         model.Role(form.Get("role")),
		DepartmentID: form.Get("department_id"),
	}
	if policy.CanEditFixedIP(actor) {
		in.FixedIP = strings.TrimSpace(form.Get("fixed_ip"))
	}

	fail := func(status int) {
		c.render(w, r, status, "user_form", View{
			TitleKey: "users.create",
			Form:     withoutSecrets(form),
			Data:     c.userFormData(r, actor, nil),
		})
	}
	if in.Password != form.Get("password_confirm") {
		cs.notifier.Error(ctx, cs.t("auth.errors.password_mismatch"))
		fail(http.StatusUnprocessableEntity)
		return
	}
	if !policy.CanCreateUser(actor, in.Role, in.DepartmentID) {
		cs.notifier.Error(ctx, cs.t("users.role_not_allowed", "role", cs.t("common.roles."+string(in.Role))))
		fail(http.StatusForbidden)
		return
	}

	u, err := cs.client.CreateUser(ctx, in)
	if err != nil {
		if !c.backendFailed(w, r, err) {
			fail(statusFor(err))
		}
		return
	}
	c.redirectWithFlash(w, r, "/users", "users.created", "name", u.Name)
}

// editUserForm handles GET /users/{id}/edit.
func (c *Console) editUserForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	actor := *cs.auth.User()

	target, ok := c.loadUser(w, r)
	if !ok {
		return
	}
	if !policy.CanEditUser(actor, target) {
		c.forbidden(w, r)
		return
	}
	c.render(w, r, http.StatusOK, "user_form", View{
		TitleKey: "users.edit",
		Form: url.Values{
			"name":          {target.Name},
			"email":         {target.Email},
			"role":          {string(target.Role)},
			"department_id": {target.DepartmentID},
			"fixed_ip":      {target.FixedIP},
		},
		Data: c.userFormData(r, actor, &target),
	})
}

// updateUser handles POST /users/{id}.
func (c *Console) updateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	actor := *cs.auth.User()

	target, ok := c.loadUser(w, r)
	if !ok {
		return
	}
	if !policy.CanEditUser(actor, target) {
		c.forbidden(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		c.badForm(w, r, "user_form", "users.edit")
		return
	}
	form := r.PostForm
	fail := func(status int) {
		c.render(w, r, status, "user_form", View{
			TitleKey: "users.edit",
			Form:     withoutSecrets(form),
			Data:     c.userFormData(r, actor, &target),
		})
	}

	var up model.UserUpdate
	setIfChanged(&up.Name, form.Get("name"), target.Name)
	setIfChanged(&up.Email, form.Get("email"), target.Email)
	if role := model.Role(form.Get("role")); role != "" && role != target.Role {
		allowed := policy.CanAssignRole(actor, role)
		if target.ID == actor.ID {
			allowed = allowed && policy.CanChangeOwnRole(actor)
		}
		if !allowed {
			cs.notifier.Error(ctx, cs.t("users.role_not_allowed", "role", cs.t("common.roles."+string(role))))
			fail(http.StatusForbidden)
			return
		}
		up.Role = &role
	}
	if actor.Role != model.RoleManager {
		setIfChanged(&up.DepartmentID, form.Get("department_id"), target.DepartmentID)
	}
	if policy.CanEditFixedIP(actor) {
		setIfChanged(&up.FixedIP, form.Get("fixed_ip"), target.FixedIP)
	}
	if pw := form.Get("password"); pw != "" {
		if pw != form.Get("password_confirm") {
			cs.notifier.Error(ctx, cs.t("auth.errors.password_mismatch"))
			fail(http.StatusUnprocessableEntity)
			return
		}
		up.Password = &pw
	}

	u, err := cs.client.UpdateUser(ctx, target.ID, up)
	if err != nil {
		if !c.backendFailed(w, r, err) {
			fail(statusFor(err))
		}
		return
	}
	if u.ID == actor.ID {
		// Keep the cached record in step when editing oneself.
		cs.auth.FetchProfile(ctx)
	}
	c.redirectWithFlash(w, r, "/users", "users.updated", "name", u.Name)
}

// confirmDeleteUser handles GET /users/{id}/delete.
func (c *Console) confirmDeleteUser(w http.ResponseWriter, r *http.Request) {
	cs := sessionFrom(r.Context())
	actor := *cs.auth.User()
	target, ok := c.loadUser(w, r)
	if !ok {
		return
	}
	if !policy.CanDeleteUser(actor, target) {
		c.forbidden(w, r)
		return
	}
	c.confirm(w, r, target.Name, "/users/"+url.PathEscape(target.ID)+"/delete", "/users")
}

// deleteUser handles POST /users/{id}/delete.
func (c *Console) deleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	actor := *cs.auth.User()

	if !confirmed(r) {
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}
	target, ok := c.loadUser(w, r)
	if !ok {
		return
	}
	if target.ID == actor.ID {
		cs.notifier.Error(ctx, cs.t("users.cannot_delete_self"))
		http.Redirect(w, r, "/users", http.StatusSeeOther)
		return
	}
	if !policy.CanDeleteUser(actor, target) {
		c.forbidden(w, r)
		return
	}
	if err := cs.client.DeleteUser(ctx, target.ID); err != nil {
		if !c.backendFailed(w, r, err) {
			http.Redirect(w, r, "/users", http.StatusSeeOther)
		}
		return
	}
	c.redirectWithFlash(w, r, "/users", "users.deleted", "name", target.Name)
}

func (c *Console) loadUser(w http.ResponseWriter, r *http.Request) (model.User, bool) {
	cs := sessionFrom(r.Context())
	u, err := cs.client.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if !c.backendFailed(w, r, err) {
			http.Redirect(w, r, "/users", http.StatusSeeOther)
		}
		return model.User{}, false
	}
	return u, true
}

func (c *Console) userFormData(r *http.Request, actor model.User, target *model.User) userFormData {
	d := userFormData{
		Target:     target,
		Roles:      policy.CreatableRoles(actor),
		CanFixedIP: policy.CanEditFixedIP(actor),
		LockedDept: actor.Role == model.RoleManager,
		FormAction: "/users",
		SubmitKey:  "common.actions.create",
	}
	if target != nil {
		d.FormAction = "/users/" + url.PathEscape(target.ID)
		d.SubmitKey = "common.actions.save"
	}
	if !d.LockedDept {
		d.Departments = c.departments(r)
	}
	return d
}

// departments lists every department for select boxes; failures leave the
// list empty.
func (c *Console) departments(r *http.Request) []model.Department {
	cs := sessionFrom(r.Context())
	deps, err := cs.client.AllDepartments(r.Context())
	if err != nil {
		logFrom(r).Debug("department list unavailable", "error", err)
		return nil
	}
	return deps
}

func (c *Console) departmentNames(r *http.Request) map[string]string {
	deps := c.departments(r)
	names := make(map[string]string, len(deps))
	for _, d := range deps {
		names[d.ID] = d.Name
	}
	return names
}

// confirm renders the confirmation step that precedes every destructive
// action.
func (c *Console) confirm(w http.ResponseWriter, r *http.Request, name, action, cancel string) {
	cs := sessionFrom(r.Context())
	c.render(w, r, http.StatusOK, "confirm", View{
		TitleKey: "common.confirm.title",
		Data: confirmData{
			Message: cs.t("common.confirm.delete", "name", name),
			Action:  action,
			Cancel:  cancel,
		},
	})
}

func confirmed(r *http.Request) bool {
	return r.PostFormValue("confirm") == "yes"
}
