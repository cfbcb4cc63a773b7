package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleFormateur UserRole = "FORMATEUR"
	RoleStudent   UserRole = "STUDENT"
)

// Valid reports whether the role is known.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleFormateur, RoleStudent:
		return true
	}
	return false
}

// FormateurStatus is the admin review state of a formateur account.
type FormateurStatus string

const (
	FormateurPending  FormateurStatus = "PENDING"
	FormateurApproved FormateurStatus = "APPROVED"
	FormateurRejected FormateurStatus = "REJECTED"
)

// User represents an application user stored in the users table.
// FormateurStatus is nil for admins and students.
type User struct {
	ID              string           `db:"id" json:"id"`
	Name            string           `db:"name" json:"name"`
	Email           string           `db:"email" json:"email"`
	PasswordHash    string           `db:"password_hash" json:"-"`
	Role            UserRole         `db:"role" json:"role"`
	FormateurStatus *FormateurStatus `db:"formateur_status" json:"formateur_status"`
	AvatarURL       *string          `db:"avatar_url" json:"avatar_url,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// IsApprovedFormateur reports whether the user may author formations.
func (u *User) IsApprovedFormateur() bool {
	return u != nil && u.Role == RoleFormateur && u.FormateurStatus != nil && *u.FormateurStatus == FormateurApproved
}

// IsRejected reports whether an admin turned the formateur account down.
func (u *User) IsRejected() bool {
	return u.FormateurStatus != nil && *u.FormateurStatus == FormateurRejected
}

// Info projects the user onto the identity returned by the auth endpoints.
func (u *User) Info() UserInfo {
	return UserInfo{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, FormateurStatus: u.FormateurStatus}
}

// PublicProfile is the subset of a user exposed to other users.
type PublicProfile struct {
	ID        string   `db:"id" json:"id"`
	Name      string   `db:"name" json:"name"`
	Role      UserRole `db:"role" json:"role"`
	AvatarURL *string  `db:"avatar_url" json:"avatar_url,omitempty"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role            *UserRole
	FormateurStatus *FormateurStatus
	Search          string
	Page            int
	PageSize        int
	SortBy          string
	SortOrder       string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// CreateUserRequest is used by admins to create accounts of any role.
type CreateUserRequest struct {
	Name     string   `json:"name" validate:"required,min=2,max=120"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	Role     UserRole `json:"role" validate:"required,oneof=ADMIN FORMATEUR STUDENT"`
}

// UpdateProfileRequest updates the caller's own profile.
type UpdateProfileRequest struct {
	Name string `json:"name" validate:"required,min=2,max=120"`
}

// UpdateFormateurStatusRequest is the admin decision on a formateur account.
type UpdateFormateurStatusRequest struct {
	Status FormateurStatus `json:"status" validate:"required,oneof=APPROVED REJECTED"`
}
