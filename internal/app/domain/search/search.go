// Package search models a full-text search job and its result rows.
package search

import (
	"time"

	"github.com/google/uuid"
)

// Search is a search job record.
type Search struct {
	UUID       uuid.UUID
	Workspace  uuid.UUID
	StartedBy  uuid.UUID
	Term       string
	CreatedAt  time.Time
	FinishedAt *time.Time
	Error      string
}

// RefType identifies which table a Result's RefKey points into.
type RefType string

const (
	RefHost        RefType = "Host"
	RefPort        RefType = "Port"
	RefService     RefType = "Service"
	RefHttpService RefType = "HttpService"
	RefDomain      RefType = "Domain"
	RefDehashed    RefType = "DehashedEntry"
	RefTestSSL     RefType = "TestSslResult"
)

// Result is one row of a search job's scattered hits.
type Result struct {
	UUID    uuid.UUID
	Search  uuid.UUID
	RefType RefType
	RefKey  uuid.UUID
}
