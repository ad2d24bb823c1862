package domain

import "time"

// Claims is the verified payload of a bearer token.
type Claims struct {
	Subject   string // email
	Org       string // optional
	IssuedAt  time.Time
	ExpiresAt time.Time
}
