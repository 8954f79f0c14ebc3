package model

import "time"

// Department groups users. ParentID is informational; scoping uses exact id
// equality.
type Department struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ParentID    string    `json:"parentId,omitempty"`
	HeadID      string    `json:"headId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DepartmentInput is used for create and update.
type DepartmentInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ParentID    string `json:"parentId,omitempty"`
	HeadID      string `json:"headId,omitempty"`
}

// PageParams selects one page of a paged listing.
type PageParams struct {
	Page     int
	PageSize int
}

// Page is the backend's paged listing envelope.
type Page[T any] struct {
	Items       []T `json:"items"`
	TotalItems  int `json:"totalItems"`
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
}
