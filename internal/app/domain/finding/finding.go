// Package finding models workspace-scoped findings, the entities they
// affect, and the factory's late-binding identifier->definition map.
package finding

import (
	"time"

	"github.com/google/uuid"
)

// Severity mirrors common vulnerability-severity scales.
type Severity string

const (
	SeverityInfo     Severity = "Info"
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Definition is a reusable finding template (CWE-style write-up) that
// Finding rows reference.
type Definition struct {
	UUID        uuid.UUID
	Name        string
	Severity    Severity
	Summary     string
	Description string
	Impact      string
	Remediation string
	References  string
	CreatedAt   time.Time
}

// Category groups definitions for display; copied onto a Finding when it's
// created from a definition that belongs to categories.
type Category struct {
	UUID uuid.UUID
	Name string
}

// Finding is one workspace-scoped assertion that a definition applies to a
// set of affected entities.
type Finding struct {
	UUID       uuid.UUID
	Workspace  uuid.UUID
	Definition uuid.UUID
	Severity   Severity
	ToolDetails string
	CreatedAt  time.Time
}

// EntityKind identifies which of the five object families a FindingAffected
// row points at; exactly one of the corresponding FKs is non-null.
type EntityKind string

const (
	EntityHost        EntityKind = "Host"
	EntityPort        EntityKind = "Port"
	EntityService     EntityKind = "Service"
	EntityDomain      EntityKind = "Domain"
	EntityHttpService EntityKind = "HttpService"
)

// Affected links a Finding to exactly one aggregated entity.
type Affected struct {
	UUID      uuid.UUID
	Finding   uuid.UUID
	Entity    uuid.UUID
	Kind      EntityKind
	CreatedAt time.Time
}

// FactoryEntry maps a stable string identifier (as emitted by a probe, e.g.
// a testssl finding id) to an optional definition. An unmapped identifier
// is a silent no-op for the factory.
type FactoryEntry struct {
	Identifier string
	Definition *uuid.UUID
}
