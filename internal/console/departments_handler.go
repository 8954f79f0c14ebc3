package console

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/ovpnadmin/internal/apiclient"
	"github.com/alecgard/ovpnadmin/internal/model"
)

type departmentsData struct {
	Page  model.Page[model.Department]
	Names map[string]string
	Prev  int
	Next  int
}

type departmentFormData struct {
	Target      *model.Department
	Departments []model.Department
	FormAction  string
	SubmitKey   string
}

// listDepartments handles GET /departments?page=N.
func (c *Console) listDepartments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	res, err := cs.client.ListDepartments(ctx, model.PageParams{Page: page, PageSize: apiclient.DefaultPageSize})
	if err != nil {
		if !c.backendFailed(w, r, err) {
			c.render(w, r, http.StatusBadGateway, "departments", View{TitleKey: "departments.title", Data: departmentsData{}})
		}
		return
	}

	data := departmentsData{Page: res, Names: c.departmentNames(r)}
	if res.CurrentPage > 1 {
		data.Prev = res.CurrentPage - 1
	}
	if res.CurrentPage < res.TotalPages {
		data.Next = res.CurrentPage + 1
	}
	c.render(w, r, http.StatusOK, "departments", View{TitleKey: "departments.title", Data: data})
}

// newDepartmentForm handles GET /departments/new.
func (c *Console) newDepartmentForm(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, http.StatusOK, "department_form", View{
		TitleKey: "departments.create",
		Data:     c.departmentFormData(r, nil),
	})
}

// createDepartment handles POST /departments.
func (c *Console) createDepartment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	if err := r.ParseForm(); err != nil {
		c.badForm(w, r, "department_form", "departments.create")
		return
	}

	d, err := cs.client.CreateDepartment(ctx, departmentInput(r.PostForm))
	if err != nil {
		if !c.backendFailed(w, r, err) {
			c.render(w, r, statusFor(err), "department_form", View{
				TitleKey: "departments.create",
				Form:     r.PostForm,
				Data:     c.departmentFormData(r, nil),
			})
		}
		return
	}
	c.redirectWithFlash(w, r, "/departments", "departments.created", "name", d.Name)
}

// editDepartmentForm handles GET /departments/{id}/edit.
func (c *Console) editDepartmentForm(w http.ResponseWriter, r *http.Request) {
	d, ok := c.loadDepartment(w, r)
	if !ok {
		return
	}
	c.render(w, r, http.StatusOK, "department_form", View{
		TitleKey: "departments.edit",
		Form: url.Values{
			"name":        {d.Name},
			"description": {d.Description},
			"parent_id":   {d.ParentID},
		},
		Data: c.departmentFormData(r, &d),
	})
}

// updateDepartment handles POST /departments/{id}.
func (c *Console) updateDepartment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	d, ok := c.loadDepartment(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		c.badForm(w, r, "department_form", "departments.edit")
		return
	}

	updated, err := cs.client.UpdateDepartment(ctx, d.ID, departmentInput(r.PostForm))
	if err != nil {
		if !c.backendFailed(w, r, err) {
			c.render(w, r, statusFor(err), "department_form", View{
				TitleKey: "departments.edit",
				Form:     r.PostForm,
				Data:     c.departmentFormData(r, &d),
			})
		}
		return
	}
	c.redirectWithFlash(w, r, "/departments", "departments.updated", "name", updated.Name)
}

// confirmDeleteDepartment handles GET /departments/{id}/delete.
func (c *Console) confirmDeleteDepartment(w http.ResponseWriter, r *http.Request) {
	d, ok := c.loadDepartment(w, r)
	if !ok {
		return
	}
	c.confirm(w, r, d.Name, "/departments/"+url.PathEscape(d.ID)+"/delete", "/departments")
}

// deleteDepartment handles POST /departments/{id}/delete.
func (c *Console) deleteDepartment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs := sessionFrom(ctx)
	if !confirmed(r) {
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}
	d, ok := c.loadDepartment(w, r)
	if !ok {
		return
	}
	if err := cs.client.DeleteDepartment(ctx, d.ID); err != nil {
		if !c.backendFailed(w, r, err) {
			http.Redirect(w, r, "/departments", http.StatusSeeOther)
		}
		return
	}
	c.redirectWithFlash(w, r, "/departments", "departments.deleted", "name", d.Name)
}

// loadDepartment finds the department named by the {id} URL parameter. The
// backend has no single-department endpoint, so it searches the full list.
func (c *Console) loadDepartment(w http.ResponseWriter, r *http.Request) (model.Department, bool) {
	cs := sessionFrom(r.Context())
	id := chi.URLParam(r, "id")
	all, err := cs.client.AllDepartments(r.Context())
	if err != nil {
		if !c.backendFailed(w, r, err) {
			http.Redirect(w, r, "/departments", http.StatusSeeOther)
		}
		return model.Department{}, false
	}
	for _, d := range all {
		if d.ID == id {
			return d, true
		}
	}
	c.notFound(w, r)
	return model.Department{}, false
}

func (c *Console) departmentFormData(r *http.Request, target *model.Department) departmentFormData {
	d := departmentFormData{
		Target:     target,
		FormAction: "/departments",
		SubmitKey:  "common.actions.create",
	}
	for _, dep := range c.departments(r) {
		// A department cannot be its own parent.
		if target == nil || dep.ID != target.ID {
			d.Departments = append(d.Departments, dep)
		}
	}
	if target != nil {
		d.FormAction = "/departments/" + url.PathEscape(target.ID)
		d.SubmitKey = "common.actions.save"
	}
	return d
}

func departmentInput(form url.Values) model.DepartmentInput {
	return model.DepartmentInput{
		Name:        strings.TrimSpace(form.Get("name")),
		Description: strings.TrimSpace(form.Get("description")),
		ParentID:    form.Get("parent_id"),
	}
}
