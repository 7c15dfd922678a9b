// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the privilege level carried by a user and by their session token.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a registered storefront account.
//
// PasswordHash is never serialised; handlers can encode a *User directly.
// GitHubID is set only for accounts created or linked through GitHub sign-in,
// and such accounts may have an empty PasswordHash (password login is then
// impossible, which is what we want).
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	GitHubID     *int64    `json:"githubId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
