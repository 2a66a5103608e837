// Package httpservice models the aggregated HttpService entity: an HTTP
// endpoint bound to a host+port, optionally scoped to a domain via SNI.
package httpservice

import (
	"time"

	"github.com/google/uuid"
)

// Certainty is the HttpService confidence ladder.
type Certainty int

const (
	Historical Certainty = iota
	SupposedTo
	Verified
)

func Max(a, b Certainty) Certainty {
	if b > a {
		return b
	}
	return a
}

func (c Certainty) String() string {
	switch c {
	case Historical:
		return "Historical"
	case SupposedTo:
		return "SupposedTo"
	case Verified:
		return "Verified"
	default:
		return "Unknown"
	}
}

// HttpService is the canonical per-workspace observation of an HTTP(S)
// endpoint.
type HttpService struct {
	UUID        uuid.UUID
	Workspace   uuid.UUID
	Name        string
	Host        uuid.UUID
	Port        uuid.UUID
	Domain      *uuid.UUID
	BasePath    string
	TLS         bool
	SNIRequired bool
	Certainty   Certainty
	Comment     string
	CreatedAt   time.Time
}

// NaturalKey identifies the row an upsert must match against.
type NaturalKey struct {
	Workspace uuid.UUID
	Host      uuid.UUID
	Port      uuid.UUID
	Domain    *uuid.UUID
	BasePath  string
}
