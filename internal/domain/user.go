package domain

import "time"

// User represents an account that owns todos.
type User struct {
	ID           string
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Token is the single bearer credential issued to a user.
// Only a keyed digest and a sealed copy of the raw value are persisted.
type Token struct {
	UserID    string
	Digest    string
	Sealed    []byte
	CreatedAt time.Time
}
