// Package domainentity models the aggregated Domain entity plus the two
// domain-relation edges (domain-domain, domain-host). Named "domainentity"
// rather than "domain" to avoid colliding with the stdlib-flavored word
// "domain" used informally elsewhere (attack/config domains, etc).
package domainentity

import (
	"time"

	"github.com/google/uuid"
)

// Certainty is the Domain confidence ladder.
type Certainty int

const (
	Unverified Certainty = iota
	Verified
)

func Max(a, b Certainty) Certainty {
	if b > a {
		return b
	}
	return a
}

func (c Certainty) String() string {
	if c == Verified {
		return "Verified"
	}
	return "Unverified"
}

// Domain is the canonical per-workspace observation of a domain name.
type Domain struct {
	UUID      uuid.UUID
	Workspace uuid.UUID
	Name      string
	Certainty Certainty
	Comment   string
	CreatedAt time.Time
}

// RelationType distinguishes the two edge kinds persisted in one table in
// some schemas; kept separate here for clarity.
type RelationType string

const (
	RelationCNAME RelationType = "Cname"
)

// DomainDomainRelation is a directed edge source -> destination (e.g. a
// CNAME chain link), scoped to a workspace.
type DomainDomainRelation struct {
	UUID        uuid.UUID
	Workspace   uuid.UUID
	Source      uuid.UUID
	Destination uuid.UUID
	CreatedAt   time.Time
}

// DomainHostRelation links a domain to a host it resolves to. IsDirect is
// true for an observed A/AAAA record, false when reached only through a
// CNAME chain. It flips false->true on new direct evidence but never the
// reverse.
type DomainHostRelation struct {
	UUID      uuid.UUID
	Workspace uuid.UUID
	Domain    uuid.UUID
	Host      uuid.UUID
	IsDirect  bool
	CreatedAt time.Time
}
