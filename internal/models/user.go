package models

import (
	"strings"
	"time"
)

// UserRole is the integer role carried on the user row and in access tokens.
type UserRole int

const (
	RoleStudent    UserRole = 1
	RoleAdmin      UserRole = 2
	RoleSuperAdmin UserRole = 3
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r >= RoleStudent && r <= RoleSuperAdmin
}

func (r UserRole) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleAdmin:
		return "admin"
	case RoleSuperAdmin:
		return "super_admin"
	default:
		return "unknown"
	}
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Username     string     `db:"username" json:"username"`
	FullName     string     `db:"full_name" json:"full_name"`
	Phone        string     `db:"phone" json:"phone"`
	Address      string     `db:"address" json:"address"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// DisplayName prefers the username and falls back to the full name.
func (u User) DisplayName() string {
	return displayName(u.Username, u.FullName)
}

// AdminSummary identifies an approver admin.
type AdminSummary struct {
	ID        string    `db:"id" json:"adminId"`
	Username  string    `db:"username" json:"-"`
	FullName  string    `db:"full_name" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}

// DisplayName prefers the username and falls back to the full name.
func (a AdminSummary) DisplayName() string {
	return displayName(a.Username, a.FullName)
}

func displayName(username, fullName string) string {
	if name := strings.TrimSpace(username); name != "" {
		return name
	}
	return strings.TrimSpace(fullName)
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
