package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin           UserRole = "ADMIN"
	RoleTeacher         UserRole = "TEACHER"
	RoleRegionalTeacher UserRole = "REGIONAL_TEACHER"
	RoleUser            UserRole = "USER"
)

// IsTeacher reports whether the role may publish availability, own pricing
// and withdraw funds.
func (r UserRole) IsTeacher() bool {
	return r == RoleTeacher || r == RoleRegionalTeacher
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// ActorContext identifies who is performing an operation. It is resolved
// from the JWT at the transport boundary and passed explicitly into every
// service call; services never read ambient session state.
type ActorContext struct {
	UserID   string
	Role     UserRole
	FullName string
}

// IsAdmin reports whether the actor holds the admin role.
func (a ActorContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
