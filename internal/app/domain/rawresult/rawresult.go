// Package rawresult models the one-row-per-attack-kind raw result tables:
// each row references its originating Attack and carries a kind-specific
// payload, persisted before aggregation is attempted.
package rawresult

import (
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/domain/host"
)

// DNSRecordType enumerates the record kinds bruteforce/resolution attacks
// report.
type DNSRecordType string

const (
	DNSRecordA     DNSRecordType = "A"
	DNSRecordAAAA  DNSRecordType = "AAAA"
	DNSRecordCNAME DNSRecordType = "CNAME"
	DNSRecordMX    DNSRecordType = "MX"
	DNSRecordNS    DNSRecordType = "NS"
	DNSRecordTXT   DNSRecordType = "TXT"
	DNSRecordPTR   DNSRecordType = "PTR"
)

// BruteforceSubdomains is one discovered record for a subdomain
// bruteforce attack (also reused for general DNS resolution, which has
// the same shape with full record-type coverage).
type BruteforceSubdomains struct {
	UUID       uuid.UUID
	Attack     uuid.UUID
	Source     string // the queried/owned domain name
	RecordType DNSRecordType
	To         string // target: IP for A/AAAA, domain for CNAME/MX/NS/PTR, text for TXT
	CreatedAt  time.Time
}

// TCPPortScan is retained for decoding historical rows only; no sink
// writes new rows of this kind.
type TCPPortScan struct {
	UUID      uuid.UUID
	Attack    uuid.UUID
	Address   net.IP
	Port      uint16
	CreatedAt time.Time
}

// HostAlive records a single responsive host.
type HostAlive struct {
	UUID      uuid.UUID
	Attack    uuid.UUID
	Host      net.IP
	CreatedAt time.Time
}

// ServiceCertaintyHint is the probe's own confidence classification for a
// detected service, translated by the sink into the aggregator's
// service.Certainty ladder.
type ServiceCertaintyHint string

const (
	HintMaybeVerified      ServiceCertaintyHint = "MaybeVerified"
	HintDefinitelyVerified ServiceCertaintyHint = "DefinitelyVerified"
	HintUnknownService     ServiceCertaintyHint = "UnknownService"
)

// ServiceDetection covers both TCP service detection and UDP service
// detection (the same shape, different raw table in storage).
type ServiceDetection struct {
	UUID      uuid.UUID
	Attack    uuid.UUID
	Host      net.IP
	Port      uint16
	Transport string // "Tcp" or "Udp"
	Certainty ServiceCertaintyHint
	Names     []string // detected candidate service names
	CreatedAt time.Time
}

// CertificateTransparency is one certificate-transparency log hit.
type CertificateTransparency struct {
	UUID       uuid.UUID
	Attack     uuid.UUID
	CommonName string
	SANs       []string
	NotBefore  time.Time
	NotAfter   time.Time
	CreatedAt  time.Time
}

// OSDetection carries a refined OS classification for a host.
type OSDetection struct {
	UUID      uuid.UUID
	Attack    uuid.UUID
	Host      net.IP
	OSType    host.OSType
	Hints     []string
	CreatedAt time.Time
}

// TestSSLSeverity mirrors testssl.sh's finding severities.
type TestSSLSeverity string

// TestSSL is one testssl.sh finding for a known host/port pair.
type TestSSL struct {
	UUID       uuid.UUID
	Attack     uuid.UUID
	Host       net.IP
	Port       uint16
	FindingID  string
	Severity   TestSSLSeverity
	Service    string
	CreatedAt  time.Time
}

// DehashedEntry is a raw dehashed.com lookup hit; never aggregated.
type DehashedEntry struct {
	UUID       uuid.UUID
	Attack     uuid.UUID
	Email      string
	Username   string
	Password   string
	HashedPass string
	Database   string
	CreatedAt  time.Time
}

// DnsTxtScanSummaryType distinguishes the two shapes a TXT scan result row
// can hold.
type DnsTxtScanSummaryType string

const (
	DnsTxtSummaryServiceHints DnsTxtScanSummaryType = "ServiceHints"
	DnsTxtSummarySPF          DnsTxtScanSummaryType = "Spf"
)

// DnsTxtScan is the envelope row for one domain's TXT scan result; the
// concrete entries live in ServiceHintEntry/SpfEntry below.
type DnsTxtScan struct {
	UUID           uuid.UUID
	Attack         uuid.UUID
	Domain         string
	CollectionType DnsTxtScanSummaryType
	CreatedAt      time.Time
}

// ServiceHintEntry is one classified service-hint rule match belonging to
// a DnsTxtScan envelope with CollectionType == ServiceHints.
type ServiceHintEntry struct {
	UUID      uuid.UUID
	Scan      uuid.UUID
	Rule      string // the raw TXT value that matched
	HintType  string // service.Hint string form
	CreatedAt time.Time
}

// DnsTxtScanSpfType mirrors the SPF mechanism/modifier kinds that the
// aggregator cares about; a superset lives in the spf package's own
// richer AST, this is the flattened storage projection of it.
type DnsTxtScanSpfType string

const (
	SpfTypeAll       DnsTxtScanSpfType = "All"
	SpfTypeInclude   DnsTxtScanSpfType = "Include"
	SpfTypeA         DnsTxtScanSpfType = "A"
	SpfTypeMX        DnsTxtScanSpfType = "Mx"
	SpfTypePTR       DnsTxtScanSpfType = "Ptr"
	SpfTypeIP4       DnsTxtScanSpfType = "Ip4"
	SpfTypeIP6       DnsTxtScanSpfType = "Ip6"
	SpfTypeExists    DnsTxtScanSpfType = "Exists"
	SpfTypeRedirect  DnsTxtScanSpfType = "Redirect"
	SpfTypeExplain   DnsTxtScanSpfType = "Explanation"
	SpfTypeUnknown   DnsTxtScanSpfType = "Unknown"
)

// SpfEntry is one structured SPF part belonging to a DnsTxtScan envelope
// with CollectionType == Spf.
type SpfEntry struct {
	UUID      uuid.UUID
	Scan      uuid.UUID
	SpfType   DnsTxtScanSpfType
	Domain    string // resolved domain-spec, when the mechanism carries one
	IPNetwork string // CIDR, when the mechanism carries one
	CreatedAt time.Time
}
