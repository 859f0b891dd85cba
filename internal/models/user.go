package models

import "time"

// Role identifies what a session may do.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleStaff     Role = "staff"
	RoleAdmin     Role = "admin"
)

// Namespace separates applicant and staff sessions. A token issued in one
// namespace never validates in the other.
type Namespace string

const (
	NamespaceApplicant Namespace = "applicant"
	NamespaceStaff     Namespace = "staff"
)

// Opposite returns the other namespace.
func (n Namespace) Opposite() Namespace {
	if n == NamespaceStaff {
		return NamespaceApplicant
	}
	return NamespaceStaff
}

// CookieName is the session cookie carrying this namespace's token.
func (n Namespace) CookieName() string {
	return "portal_" + string(n)
}

// User is an applicant account stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Staff is a portal operator stored in the staff table.
type Staff struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	Role         Role      `db:"role" json:"role"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
