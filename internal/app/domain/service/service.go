// Package service models the aggregated Service entity: a service name
// observed on a host, optionally bound to a port.
package service

import (
	"time"

	"github.com/google/uuid"
)

// Certainty is the Service confidence ladder. UnknownService is the
// fallback for "something answered but we don't know what": although it
// is the highest constant, Max ranks it alongside MaybeVerified, so it
// outranks Historical and SupposedTo but never replaces a MaybeVerified
// or DefinitelyVerified certainty when merging.
type Certainty int

const (
	Historical Certainty = iota
	SupposedTo
	MaybeVerified
	DefinitelyVerified
	UnknownService
)

// Max merges two certainties without letting UnknownService masquerade as
// stronger evidence than an already-established definite match.
func Max(a, b Certainty) Certainty {
	rank := func(c Certainty) int {
		if c == UnknownService {
			return int(MaybeVerified) // ranks alongside "some evidence", never above DefinitelyVerified
		}
		return int(c)
	}
	if rank(b) > rank(a) {
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
	case MaybeVerified:
		return "MaybeVerified"
	case DefinitelyVerified:
		return "DefinitelyVerified"
	case UnknownService:
		return "UnknownService"
	default:
		return "Unknown"
	}
}

// Protocols is a transport-overlay bitset (e.g. TLS atop TCP). Its
// interpretation depends on the port's transport protocol, not on this
// type alone.
type Protocols uint32

const (
	ProtoTLS Protocols = 1 << iota
	ProtoSTARTTLS
)

// Service is the canonical per-workspace observation of a named service.
// Port may be nil: a service may exist without a port.
type Service struct {
	UUID      uuid.UUID
	Workspace uuid.UUID
	Host      uuid.UUID
	Port      *uuid.UUID
	Name      string
	Protocols Protocols
	Certainty Certainty
	Version   string
	Comment   string
	CreatedAt time.Time
}

// NaturalKey identifies the row an upsert must match against.
type NaturalKey struct {
	Workspace uuid.UUID
	Host      uuid.UUID
	Port      *uuid.UUID
	Name      string
}
