package rawresult

import (
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/domain/host"
	"github.com/kraken-ng/kraken/internal/app/domain/port"
	"github.com/kraken-ng/kraken/internal/app/domain/service"
)

// The Manual* rows make a human-entered observation a first-class raw
// source, indistinguishable in provenance from an automated one.

type ManualHost struct {
	UUID      uuid.UUID
	Workspace uuid.UUID
	User      uuid.UUID
	IPAddress net.IP
	Certainty host.Certainty
	CreatedAt time.Time
}

type ManualPort struct {
	UUID      uuid.UUID
	Workspace uuid.UUID
	User      uuid.UUID
	Host      net.IP
	Number    uint16
	Transport port.Protocol
	Certainty port.Certainty
	CreatedAt time.Time
}

type ManualService struct {
	UUID      uuid.UUID
	Workspace uuid.UUID
	User      uuid.UUID
	Host      net.IP
	Port      *uint16
	Name      string
	Certainty service.Certainty
	CreatedAt time.Time
}

type ManualDomain struct {
	UUID      uuid.UUID
	Workspace uuid.UUID
	User      uuid.UUID
	Name      string
	CreatedAt time.Time
}

type ManualHttpService struct {
	UUID      uuid.UUID
	Workspace uuid.UUID
	User      uuid.UUID
	Host      net.IP
	Port      uint16
	Domain    string
	BasePath  string
	TLS       bool
	CreatedAt time.Time
}
