// Package port models the aggregated Port entity: one row per
// (workspace, host, port_number, transport_protocol).
package port

import (
	"time"

	"github.com/google/uuid"
	"github.com/kraken-ng/kraken/internal/app/domain/host"
)

// Certainty mirrors host.Certainty; Port shares the same ladder.
type Certainty = host.Certainty

const (
	Historical = host.Historical
	SupposedTo = host.SupposedTo
	Verified   = host.Verified
)

// Protocol is the transport the port was observed on.
type Protocol string

const (
	TCP     Protocol = "Tcp"
	UDP     Protocol = "Udp"
	SCTP    Protocol = "Sctp"
	Unknown Protocol = "Unknown"
)

// Port is the canonical per-workspace observation of an open port on a host.
type Port struct {
	UUID      uuid.UUID
	Workspace uuid.UUID
	Host      uuid.UUID
	Number    uint16
	Transport Protocol
	Certainty Certainty
	Comment   string
	CreatedAt time.Time
}

// NaturalKey identifies the row an upsert must match against.
type NaturalKey struct {
	Workspace uuid.UUID
	Host      uuid.UUID
	Number    uint16
	Transport Protocol
}
