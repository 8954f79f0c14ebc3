package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alecgard/ovpnadmin/internal/model"
)

// DefaultPageSize is used when PageParams leaves PageSize unset.
const DefaultPageSize = 20

// ListDepartments returns one page of departments.
func (c *Client) ListDepartments(ctx context.Context, p model.PageParams) (model.Page[model.Department], error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("pageSize", strconv.Itoa(p.PageSize))

	var page model.Page[model.Department]
	err := c.do(ctx, call{method: http.MethodGet, route: "/departments", path: "/departments", query: q}, &page)
	return page, err
}

// AllDepartments walks every page.
func (c *Client) AllDepartments(ctx context.Context) ([]model.Department, error) {
	var out []model.Department
	for p := 1; ; p++ {
		page, err := c.ListDepartments(ctx, model.PageParams{Page: p, PageSize: 100})
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if len(page.Items) == 0 || p >= page.TotalPages {
			return out, nil
		}
	}
}

// CreateDepartment creates a department.
func (c *Client) CreateDepartment(ctx context.Context, in model.DepartmentInput) (model.Department, error) {
	var d model.Department
	err := c.do(ctx, call{method: http.MethodPost, route: "/departments", path: "/departments", body: in}, &d)
	return d, err
}

// UpdateDepartment replaces a department's fields.
func (c *Client) UpdateDepartment(ctx context.Context, id string, in model.DepartmentInput) (model.Department, error) {
	var d model.Department
	err := c.do(ctx, call{
		method: http.MethodPut,
		route:  "/departments/{id}",
		path:   path("/departments/{id}", id),
		body:   in,
	}, &d)
	return d, err
}

// DeleteDepartment deletes a department.
func (c *Client) DeleteDepartment(ctx context.Context, id string) error {
	return c.do(ctx, call{
		method: http.MethodDelete,
		route:  "/departments/{id}",
		path:   path("/departments/{id}", id),
	}, nil)
}
