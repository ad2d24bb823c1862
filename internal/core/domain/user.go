package domain

import "time"

// ProtectedPassword replaces the password field in every read response.
const ProtectedPassword = "protected"

// User models a directory identity. The (Email, Org) pair is unique; ID is
// unique across all orgs.
type User struct {
	ID                int64     `json:"id"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	Email             string    `json:"email"`
	Org               string    `json:"org"`
	EncryptedPassword string    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Address is owned by exactly one User and removed with it.
type Address struct {
	ID      int64  `json:"id"`
	UserID  int64  `json:"user_id"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	Country string `json:"country"`
}
