// Package host models the aggregated Host entity: one row per
// (workspace, ip_address).
package host

import (
	"net"
	"time"

	"github.com/google/uuid"
)

// Certainty is the Host/Port confidence ladder. Higher values replace
// lower ones on upsert; the order is never reversed.
type Certainty int

const (
	Historical Certainty = iota
	SupposedTo
	Verified
)

// Max returns the higher of a and b on the ladder.
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

// OSType is a coarse operating-system classification, refined as more
// evidence arrives but never downgraded to Unknown once set.
type OSType string

const (
	OSUnknown OSType = "Unknown"
	OSLinux   OSType = "Linux"
	OSWindows OSType = "Windows"
	OSApple   OSType = "Apple"
	OSAndroid OSType = "Android"
	OSFreeBSD OSType = "FreeBSD"
)

// Host is the canonical per-workspace observation of a live IP address.
type Host struct {
	UUID         uuid.UUID
	Workspace    uuid.UUID
	IPAddress    net.IP
	OSType       OSType
	ResponseTime *time.Duration
	Certainty    Certainty
	Comment      string
	CreatedAt    time.Time
}

// NaturalKey identifies the row an upsert must match against.
type NaturalKey struct {
	Workspace uuid.UUID
	IPAddress string // net.IP.String(), normalized
}
