package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal describes the authenticated party in responses.
type Principal struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Role     Role   `json:"role"`
}

// LoginResult returns the issued session token.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Namespace Namespace `json:"namespace"`
	Principal Principal `json:"user"`
}

// SessionClaims is the JWT payload of both session namespaces.
type SessionClaims struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Username  string    `json:"username,omitempty"`
	Role      Role      `json:"role"`
	Namespace Namespace `json:"ns"`
	jwt.RegisteredClaims
}

// Principal projects claims into a response-friendly shape.
func (c *SessionClaims) Principal() Principal {
	return Principal{ID: c.UserID, Email: c.Email, Name: c.Name, Username: c.Username, Role: c.Role}
}

// IsStaff reports whether claims carry a staff or admin role.
func (c *SessionClaims) IsStaff() bool {
	return c != nil && c.Namespace == NamespaceStaff && (c.Role == RoleStaff || c.Role == RoleAdmin)
}
