// Package provenance models the AggregationSource many-to-many join
// between raw result rows (or manual insertions) and the aggregated rows
// they contributed to.
package provenance

import (
	"time"

	"github.com/google/uuid"
)

// SourceType tags which raw-result family produced a source row. The
// Manual* family makes a human-entered observation indistinguishable in
// provenance from an automated one.
type SourceType string

const (
	SourceBruteforceSubdomains    SourceType = "BruteforceSubdomains"
	SourceTCPPortScan             SourceType = "TcpPortScan"
	SourceHostAlive               SourceType = "HostAlive"
	SourceServiceDetection        SourceType = "ServiceDetection"
	SourceUDPServiceDetection     SourceType = "UdpServiceDetection"
	SourceCertificateTransparency SourceType = "CertificateTransparency"
	SourceDNSResolution           SourceType = "DnsResolution"
	SourceDNSTxtScan              SourceType = "DnsTxtScan"
	SourceOSDetection             SourceType = "OsDetection"
	SourceTestSSL                 SourceType = "TestSsl"
	SourceDehashed                SourceType = "DehashedQuery"
	SourceManualHost              SourceType = "ManualHost"
	SourceManualPort              SourceType = "ManualPort"
	SourceManualService           SourceType = "ManualService"
	SourceManualDomain            SourceType = "ManualDomain"
	SourceManualHttpService       SourceType = "ManualHttpService"
)

// Table identifies the aggregated table a source row points into.
type Table string

const (
	TableHost        Table = "Host"
	TablePort        Table = "Port"
	TableService     Table = "Service"
	TableHttpService Table = "HttpService"
	TableDomain      Table = "Domain"
)

// Source is one (raw row -> aggregated row) provenance link. Idempotent by
// its full tuple, so replaying an identical source is a no-op.
type Source struct {
	UUID            uuid.UUID
	Workspace       uuid.UUID
	SourceType      SourceType
	SourceUUID      uuid.UUID
	AggregatedTable Table
	AggregatedUUID  uuid.UUID
	CreatedAt       time.Time
}

// Key is the natural key Source rows are uniqued by.
type Key struct {
	Workspace       uuid.UUID
	SourceType      SourceType
	SourceUUID      uuid.UUID
	AggregatedTable Table
	AggregatedUUID  uuid.UUID
}

func (s Source) Key() Key {
	return Key{s.Workspace, s.SourceType, s.SourceUUID, s.AggregatedTable, s.AggregatedUUID}
}

// CountsBySource summarizes how many source rows of each type reference an
// aggregated row, used by list views.
type CountsBySource map[SourceType]int
