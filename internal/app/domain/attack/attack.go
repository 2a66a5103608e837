// Package attack models a single invocation of one probe kind against one
// workspace, tracked from creation through a terminal state.
package attack

import (
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the RPC methods a leech exposes. TCPPortScan is kept for
// decoding historical rows only; no new attack of that kind is dispatched.
type Kind string

const (
	KindBruteforceSubdomains    Kind = "BruteforceSubdomains"
	KindHostsAlive              Kind = "HostsAlive"
	KindTCPPortScan             Kind = "TcpPortScan" // deprecated, decode-only
	KindUDPServiceDetection     Kind = "UdpServiceDetection"
	KindServiceDetection        Kind = "ServiceDetection"
	KindCertificateTransparency Kind = "CertificateTransparency"
	KindDNSResolution           Kind = "DnsResolution"
	KindDNSTxtScan              Kind = "DnsTxtScan"
	KindOSDetection             Kind = "OsDetection"
	KindTestSSL                 Kind = "TestSsl"
	KindDehashedQuery           Kind = "DehashedQuery"
)

// Status is the attack lifecycle state. Terminal states are final; a
// terminal row is never reopened.
type Status string

const (
	StatusRunning     Status = "Running"
	StatusFinished    Status = "Finished"
	StatusErrored     Status = "Errored"
)

func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusErrored
}

// Attack is the per-invocation tracking row.
type Attack struct {
	UUID       uuid.UUID
	Workspace  uuid.UUID
	StartedBy  uuid.UUID
	Kind       Kind
	Leech      uuid.UUID
	Status     Status
	Error      string
	CreatedAt  time.Time
	FinishedAt *time.Time
}
