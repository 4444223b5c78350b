package users

import (
	"time"

	"github.com/clinistock/clinistock/internal/shared"
)

// User is an operator account.
type User struct {
	ID           int64     `json:"id"`
	Login        string    `json:"login"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ErrUserNotFound indicates an unknown user id or login.
var ErrUserNotFound = shared.NotFoundf("user")
