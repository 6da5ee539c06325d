package model

import "time"

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleGuest:
		return true
	}
	return false
}

// User represents an account in the system.
// This is a pure domain model with no database-specific dependencies or tags.
// The password hash is never serialized into responses.
type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullname"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is the token payload minted at login. It is immutable once signed;
// a fresh token is issued only by logging in again.
type Identity struct {
	ID       string `json:"id"`
	FullName string `json:"fullname"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// IdentityOf builds the token payload for a user.
func IdentityOf(u *User) Identity {
	return Identity{
		ID:       u.ID,
		FullName: u.FullName,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}
