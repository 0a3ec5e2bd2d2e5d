package dto

import "github.com/noah-isme/ndc-portal-api/internal/models"

// UpdateProfileRequest edits the caller's own profile.
type UpdateProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,max=64"`
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=128"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
	Address  *string `json:"address" validate:"omitempty,max=500"`
}

// CreateUserRequest lets the super-admin provision accounts such as approver admins.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=6"`
	Username string          `json:"username" validate:"omitempty,max=64"`
	FullName string          `json:"full_name" validate:"required,max=128"`
	Role     models.UserRole `json:"role" validate:"required,min=1,max=3"`
}

// UpdateRoleRequest changes a user's role and/or active flag.
type UpdateRoleRequest struct {
	Role   *models.UserRole `json:"role" validate:"omitempty,min=1,max=3"`
	Active *bool            `json:"active"`
}

// UserQuery mirrors supported user listing filters.
type UserQuery struct {
	Role      *models.UserRole `form:"role"`
	Active    *bool            `form:"active"`
	Search    string           `form:"search"`
	Page      int              `form:"page"`
	PageSize  int              `form:"page_size"`
	SortBy    string           `form:"sort_by"`
	SortOrder string           `form:"sort_order"`
}

// CreateCourseRequest adds a course to the catalogue.
type CreateCourseRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}
