// Package workspace models the tenancy boundary: every aggregated and raw
// row belongs to exactly one workspace, cascade-deleted with it.
package workspace

import (
	"time"

	"github.com/google/uuid"
)

// Workspace is the root of all scoped data.
type Workspace struct {
	UUID        uuid.UUID
	Name        string
	Description string
	Owner       uuid.UUID
	CreatedAt   time.Time
}

// Member links a user to a workspace they can access but don't own.
type Member struct {
	Workspace uuid.UUID
	User      uuid.UUID
	CreatedAt time.Time
}
