package main

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alecgard/ovpnadmin/internal/apiclient"
	"github.com/alecgard/ovpnadmin/internal/model"
	"github.com/alecgard/ovpnadmin/internal/policy"
)

var (
	userName         string
	userEmail        string
	userRole         string
	userDepartmentID string
	userFixedIP      string
	userSetPassword  bool

	deptName        string
	deptDescription string
	deptParentID    string
	deptHeadID      string
	deptPage        int
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the users you can see",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		actor, err := a.require(ctx, policy.ViewUsers)
		if err != nil {
			return err
		}
		all, err := a.client.ListUsers(ctx)
		if err != nil {
			return a.fail(err)
		}
		users := policy.VisibleUsers(actor, all)
		if jsonOutput {
			return a.printJSON(users)
		}
		names := departmentNames(ctx, a)
		rows := make([][]string, 0, len(users))
		for _, u := range users {
			rows = append(rows, []string{
				u.ID, u.Name, u.Email,
				a.t("common.roles." + string(u.Role)),
				names[u.DepartmentID],
				u.FixedIP,
			})
		}
		return a.table([]string{
			"common.labels.id", "common.labels.name", "common.labels.email",
			"common.labels.role", "common.labels.department", "users.fixed_ip",
		}, rows)
	}),
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		actor, err := a.require(ctx, policy.CreateUser)
		if err != nil {
			return err
		}
		role, err := model.ParseRole(userRole)
		if err != nil {
			return err
		}
		in := model.CreateUserInput{
			Name:         strings.TrimSpace(userName),
			Email:        strings.TrimSpace(userEmail),
			Role:         role,
			DepartmentID: userDepartmentID,
		}
		if in.DepartmentID == "" && actor.Role == model.RoleManager {
			in.DepartmentID = actor.DepartmentID
		}
		if userFixedIP != "" {
			if !policy.CanEditFixedIP(actor) {
				return errors.New(a.t("common.errors.forbidden"))
			}
			in.FixedIP = userFixedIP
		}
		if !policy.CanCreateUser(actor, in.Role, in.DepartmentID) {
			return errors.New(a.t("users.role_not_allowed", "role", a.t("common.roles."+string(role))))
		}
		in.Password = a.secret("", "common.labels.password")
		if in.Password != a.secret("", "common.labels.password_confirm") {
			return errors.New(a.t("auth.errors.password_mismatch"))
		}

		u, err := a.client.CreateUser(ctx, in)
		if err != nil {
			return a.fail(err)
		}
		if jsonOutput {
			return a.printJSON(u)
		}
		a.say("users.created", "name", u.Name)
		return nil
	}),
}

var usersUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a user",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, a *app, args []string) error {
		actor, err := a.login(ctx)
		if err != nil {
			return err
		}
		target, err := a.client.GetUser(ctx, args[0])
		if err != nil {
			return a.fail(err)
		}
		if !policy.CanEditUser(actor, target) {
			return errors.New(a.t("users.forbidden"))
		}

		flags := a.cmd.Flags()
		var up model.UserUpdate
		if flags.Changed("name") {
			up.Name = &userName
		}
		if flags.Changed("email") {
			up.Email = &userEmail
		}
		if flags.Changed("role") {
			role, err := model.ParseRole(userRole)
			if err != nil {
				return err
			}
			allowed := policy.CanAssignRole(actor, role)
			if target.ID == actor.ID {
				allowed = allowed && policy.CanChangeOwnRole(actor)
			}
			if !allowed {
				return errors.New(a.t("users.role_not_allowed", "role", a.t("common.roles."+string(role))))
			}
			up.Role = &role
		}
		if flags.Changed("department") {
			if actor.Role == model.RoleManager {
				return errors.New(a.t("users.forbidden"))
			}
			up.DepartmentID = &userDepartmentID
		}
		if flags.Changed("fixed-ip") {
			if !policy.CanEditFixedIP(actor) {
				return errors.New(a.t("common.errors.forbidden"))
			}
			up.FixedIP = &userFixedIP
		}
		if userSetPassword {
			pw := a.secret("", "profile.new_password")
			if pw != a.secret("", "common.labels.password_confirm") {
				return errors.New(a.t("auth.errors.password_mismatch"))
			}
			up.Password = &pw
		}

		u, err := a.client.UpdateUser(ctx, target.ID, up)
		if err != nil {
			return a.fail(err)
		}
		if u.ID == actor.ID {
			a.auth.FetchProfile(ctx)
		}
		if jsonOutput {
			return a.printJSON(u)
		}
		a.say("users.updated", "name", u.Name)
		return nil
	}),
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, a *app, args []string) error {
		actor, err := a.login(ctx)
		if err != nil {
			return err
		}
		target, err := a.client.GetUser(ctx, args[0])
		if err != nil {
			return a.fail(err)
		}
		if target.ID == actor.ID {
			return errors.New(a.t("users.cannot_delete_self"))
		}
		if !policy.CanDeleteUser(actor, target) {
			return errors.New(a.t("users.forbidden"))
		}
		if !a.confirm(a.t("common.confirm.delete", "name", target.Name)) {
			return errAborted
		}
		if err := a.client.DeleteUser(ctx, target.ID); err != nil {
			return a.fail(err)
		}
		a.say("users.deleted", "name", target.Name)
		return nil
	}),
}

var departmentsCmd = &cobra.Command{
	Use:     "departments",
	Aliases: []string{"depts"},
	Short:   "Manage departments",
}

var departmentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List departments one page at a time",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		if _, err := a.require(ctx, policy.ManageDepartments); err != nil {
			return err
		}
		res, err := a.client.ListDepartments(ctx, model.PageParams{Page: deptPage, PageSize: apiclient.DefaultPageSize})
		if err != nil {
			return a.fail(err)
		}
		if jsonOutput {
			return a.printJSON(res)
		}
		rows := make([][]string, 0, len(res.Items))
		for _, d := range res.Items {
			rows = append(rows, []string{d.ID, d.Name, d.ParentID, d.Description})
		}
		if err := a.table([]string{
			"common.labels.id", "common.labels.name", "departments.parent", "departments.description",
		}, rows); err != nil {
			return err
		}
		a.say("common.labels.page", "current", strconv.Itoa(res.CurrentPage), "total", strconv.Itoa(res.TotalPages))
		return nil
	}),
}

var departmentsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a department",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, _ []string) error {
		if _, err := a.require(ctx, policy.ManageDepartments); err != nil {
			return err
		}
		d, err := a.client.CreateDepartment(ctx, model.DepartmentInput{
			Name:        strings.TrimSpace(deptName),
			Description: deptDescription,
			ParentID:    deptParentID,
			HeadID:      deptHeadID,
		})
		if err != nil {
			return a.fail(err)
		}
		if jsonOutput {
			return a.printJSON(d)
		}
		a.say("departments.created", "name", d.Name)
		return nil
	}),
}

var departmentsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a department",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, a *app, args []string) error {
		if _, err := a.require(ctx, policy.ManageDepartments); err != nil {
			return err
		}
		current, err := findDepartment(ctx, a, args[0])
		if err != nil {
			return err
		}
		in := model.DepartmentInput{
			Name:        current.Name,
			Description: current.Description,
			ParentID:    current.ParentID,
			HeadID:      current.HeadID,
		}
		flags := a.cmd.Flags()
		if flags.Changed("name") {
			in.Name = strings.TrimSpace(deptName)
		}
		if flags.Changed("description") {
			in.Description = deptDescription
		}
		if flags.Changed("parent") {
			in.ParentID = deptParentID
		}
		if flags.Changed("head") {
			in.HeadID = deptHeadID
		}
		d, err := a.client.UpdateDepartment(ctx, current.ID, in)
		if err != nil {
			return a.fail(err)
		}
		if jsonOutput {
			return a.printJSON(d)
		}
		a.say("departments.updated", "name", d.Name)
		return nil
	}),
}

var departmentsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a department",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, a *app, args []string) error {
		if _, err := a.require(ctx, policy.ManageDepartments); err != nil {
			return err
		}
		d, err := findDepartment(ctx, a, args[0])
		if err != nil {
			return err
		}
		if !a.confirm(a.t("common.confirm.delete", "name", d.Name)) {
			return errAborted
		}
		if err := a.client.DeleteDepartment(ctx, d.ID); err != nil {
			return a.fail(err)
		}
		a.say("departments.deleted", "name", d.Name)
		return nil
	}),
}

// findDepartment looks id up in the full listing; the backend has no
// single-department read.
func findDepartment(ctx context.Context, a *app, id string) (model.Department, error) {
	all, err := a.client.AllDepartments(ctx)
	if err != nil {
		return model.Department{}, a.fail(err)
	}
	for _, d := range all {
		if d.ID == id {
			return d, nil
		}
	}
	return model.Department{}, errors.New(a.t("common.errors.not_found"))
}

// departmentNames maps department ids to names. A failed lookup leaves the
// column blank.
func departmentNames(ctx context.Context, a *app) map[string]string {
	names := map[string]string{}
	all, err := a.client.AllDepartments(ctx)
	if err != nil {
		return names
	}
	for _, d := range all {
		names[d.ID] = d.Name
	}
	return names
}

func init() {
	for _, c := range []*cobra.Command{usersCreateCmd, usersUpdateCmd} {
		f := c.Flags()
		f.StringVar(&userName, "name", "", "display name")
		f.StringVar(&userEmail, "email", "", "email address")
		f.StringVar(&userRole, "role", string(model.RoleUser), "role: user, manager, admin or superadmin")
		f.StringVar(&userDepartmentID, "department", "", "department id")
		f.StringVar(&userFixedIP, "fixed-ip", "", "fixed VPN address")
	}
	_ = usersCreateCmd.MarkFlagRequired("name")
	_ = usersCreateCmd.MarkFlagRequired("email")
	usersUpdateCmd.Flags().BoolVar(&userSetPassword, "password", false, "prompt for a new password")
	usersCmd.AddCommand(usersListCmd, usersCreateCmd, usersUpdateCmd, usersDeleteCmd)

	for _, c := range []*cobra.Command{departmentsCreateCmd, departmentsUpdateCmd} {
		f := c.Flags()
		f.StringVar(&deptName, "name", "", "department name")
		f.StringVar(&deptDescription, "description", "", "description")
		f.StringVar(&deptParentID, "parent", "", "parent department id")
		f.StringVar(&deptHeadID, "head", "", "id of the department head")
	}
	_ = departmentsCreateCmd.MarkFlagRequired("name")
	departmentsListCmd.Flags().IntVar(&deptPage, "page", 1, "page number")
	departmentsCmd.AddCommand(departmentsListCmd, departmentsCreateCmd, departmentsUpdateCmd, departmentsDeleteCmd)

	rootCmd.AddCommand(usersCmd, departmentsCmd)
}
