package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is owned by the user-management side of the application; the auth
// service only reads the fields it needs to verify credentials and mint
// claims.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
