// Package user models the principal that starts attacks and owns workspaces.
package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	UUID         uuid.UUID
	Username     string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	LastLogin    *time.Time
}
