// Package model holds the backend records the console caches and renders.
package model

import (
	"fmt"
	"time"
)

// Role is one of exactly four account roles.
type Role string

const (
	RoleUser       Role = "user"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Roles lists every role, least to most privileged.
var Roles = []Role{RoleUser, RoleManager, RoleAdmin, RoleSuperadmin}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleManager, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// ParseRole validates s as a role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// User is the session subject. A zero User means "not authenticated".
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	DepartmentID string    `json:"departmentId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Avatar       string    `json:"avatar,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	FixedIP      string    `json:"fixedIp,omitempty"`
}

// IsZero reports whether u is the empty record.
func (u User) IsZero() bool {
	return u.ID == ""
}

// Credentials are submitted to log in.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is submitted to create an account. PasswordConfirm never
// leaves the client.
type Registration struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"-"`
}

// UserUpdate is a partial profile or management update.
type UserUpdate struct {
	Name         *string `json:"name,omitempty"`
	Email        *string `json:"email,omitempty"`
	Password     *string `json:"password,omitempty"`
	Role         *Role   `json:"role,omitempty"`
	DepartmentID *string `json:"departmentId,omitempty"`
	Avatar       *string `json:"avatar,omitempty"`
	Bio          *string `json:"bio,omitempty"`
	FixedIP      *string `json:"fixedIp,omitempty"`
}

// CreateUserInput holds the fields to create a managed account.
type CreateUserInput struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         Role   `json:"role"`
	DepartmentID string `json:"departmentId,omitempty"`
	FixedIP      string `json:"fixedIp,omitempty"`
}
