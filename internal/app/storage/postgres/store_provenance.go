package postgres

import (
	"context"
	"database/sql"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kraken-ng/kraken/internal/app/domain/host"
	"github.com/kraken-ng/kraken/internal/app/domain/port"
	"github.com/kraken-ng/kraken/internal/app/domain/provenance"
	"github.com/kraken-ng/kraken/internal/app/domain/rawresult"
	"github.com/kraken-ng/kraken/internal/app/domain/service"
	"github.com/kraken-ng/kraken/internal/app/krakenerr"
)

func (s *Store) RecordSource(ctx context.Context, src provenance.Source) (provenance.Source, error) {
	if src.UUID == uuid.Nil {
		src.UUID = uuid.New()
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = time.Now().UTC()
	}
	row := s.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO aggregation_source (uuid, workspace, source_type, source_uuid, aggregated_table, aggregated_uuid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_type, source_uuid, aggregated_table, aggregated_uuid) DO UPDATE SET workspace = aggregation_source.workspace
		RETURNING uuid, workspace, source_type, source_uuid, aggregated_table, aggregated_uuid, created_at
	`, src.UUID, src.Workspace, string(src.SourceType), src.SourceUUID, string(src.AggregatedTable), src.AggregatedUUID, src.CreatedAt)

	var out provenance.Source
	var sourceType, aggregatedTable string
	if err := row.Scan(&out.UUID, &out.Workspace, &sourceType, &out.SourceUUID, &aggregatedTable, &out.AggregatedUUID, &out.CreatedAt); err != nil {
		return provenance.Source{}, err
	}
	out.SourceType = provenance.SourceType(sourceType)
	out.AggregatedTable = provenance.Table(aggregatedTable)
	return out, nil
}

func (s *Store) Simple(ctx context.Context, ws uuid.UUID, table provenance.Table, ids []uuid.UUID) (map[uuid.UUID]provenance.CountsBySource, error) {
	out := make(map[uuid.UUID]provenance.CountsBySource, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = id.String()
	}
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT aggregated_uuid, source_type, count(*)
		FROM aggregation_source
		WHERE workspace = $1 AND aggregated_table = $2 AND aggregated_uuid = ANY($3::uuid[])
		GROUP BY aggregated_uuid, source_type
	`, ws, string(table), pq.Array(idStrs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var aggregatedUUID uuid.UUID
		var sourceType string
		var count int
		if err := rows.Scan(&aggregatedUUID, &sourceType, &count); err != nil {
			return nil, err
		}
		if out[aggregatedUUID] == nil {
			out[aggregatedUUID] = provenance.CountsBySource{}
		}
		out[aggregatedUUID][provenance.SourceType(sourceType)] = count
	}
	return out, rows.Err()
}

func (s *Store) Full(ctx context.Context, ws uuid.UUID, table provenance.Table, id uuid.UUID) ([]provenance.Source, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT uuid, workspace, source_type, source_uuid, aggregated_table, aggregated_uuid, created_at
		FROM aggregation_source
		WHERE workspace = $1 AND aggregated_table = $2 AND aggregated_uuid = $3
		ORDER BY created_at
	`, ws, string(table), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []provenance.Source
	for rows.Next() {
		var src provenance.Source
		var sourceType, aggregatedTable string
		if err := rows.Scan(&src.UUID, &src.Workspace, &sourceType, &src.SourceUUID, &aggregatedTable, &src.AggregatedUUID, &src.CreatedAt); err != nil {
			return nil, err
		}
		src.SourceType = provenance.SourceType(sourceType)
		src.AggregatedTable = provenance.Table(aggregatedTable)
		out = append(out, src)
	}
	return out, rows.Err()
}

// rawTableFor maps an automated source type to the raw table holding its
// rows; manual source families return "".
func rawTableFor(sourceType provenance.SourceType) string {
	switch sourceType {
	case provenance.SourceBruteforceSubdomains, provenance.SourceDNSResolution:
		return "raw_bruteforce_subdomains"
	case provenance.SourceTCPPortScan:
		return "raw_tcp_port_scan"
	case provenance.SourceHostAlive:
		return "raw_host_alive"
	case provenance.SourceServiceDetection, provenance.SourceUDPServiceDetection:
		return "raw_service_detection"
	case provenance.SourceCertificateTransparency:
		return "raw_certificate_transparency"
	case provenance.SourceDNSTxtScan:
		return "raw_dns_txt_scan"
	case provenance.SourceOSDetection:
		return "raw_os_detection"
	case provenance.SourceTestSSL:
		return "raw_testssl"
	case provenance.SourceDehashed:
		return "raw_dehashed_entry"
	}
	return ""
}

func (s *Store) ResolveSourceAttack(ctx context.Context, sourceType provenance.SourceType, sourceUUID uuid.UUID) (uuid.UUID, bool, error) {
	table := rawTableFor(sourceType)
	if table == "" {
		return uuid.Nil, false, nil
	}
	var attackID uuid.UUID
	err := s.conn(ctx).QueryRowContext(ctx, "SELECT attack FROM "+table+" WHERE uuid = $1", sourceUUID).Scan(&attackID)
	if err == sql.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return attackID, true, nil
}

// GetRawPayload rehydrates the typed raw row a source points at, used by
// the full() provenance drill-down.
func (s *Store) GetRawPayload(ctx context.Context, sourceType provenance.SourceType, sourceUUID uuid.UUID) (interface{}, error) {
	c := s.conn(ctx)
	switch sourceType {
	case provenance.SourceBruteforceSubdomains, provenance.SourceDNSResolution:
		var r rawresult.BruteforceSubdomains
		var recordType string
		err := c.QueryRowContext(ctx, `
			SELECT uuid, attack, source, record_type, "to", created_at
			FROM raw_bruteforce_subdomains WHERE uuid = $1
		`, sourceUUID).Scan(&r.UUID, &r.Attack, &r.Source, &recordType, &r.To, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		r.RecordType = rawresult.DNSRecordType(recordType)
		return r, nil

	case provenance.SourceTCPPortScan:
		var r rawresult.TCPPortScan
		var addr string
		var portNum int
		err := c.QueryRowContext(ctx, `
			SELECT uuid, attack, host, port, created_at FROM raw_tcp_port_scan WHERE uuid = $1
		`, sourceUUID).Scan(&r.UUID, &r.Attack, &addr, &portNum, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		r.Address = net.ParseIP(addr)
		r.Port = uint16(portNum)
		return r, nil

	case provenance.SourceHostAlive:
		var r rawresult.HostAlive
		var addr string
		err := c.QueryRowContext(ctx, `
			SELECT uuid, attack, host, created_at FROM raw_host_alive WHERE uuid = $1
		`, sourceUUID).Scan(&r.UUID, &r.Attack, &addr, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		r.Host = net.ParseIP(addr)
		return r, nil

	case provenance.SourceServiceDetection, provenance.SourceUDPServiceDetection:
		var r rawresult.ServiceDetection
		var addr, certainty string
		var portNum int
		err := c.QueryRowContext(ctx, `
			SELECT uuid, attack, host, port, transport, certainty, names, created_at
			FROM raw_service_detection WHERE uuid = $1
		`, sourceUUID).Scan(&r.UUID, &r.Attack, &addr, &portNum, &r.Transport, &certainty, pq.Array(&r.Names), &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		r.Host = net.ParseIP(addr)
		r.Port = uint16(portNum)
		r.Certainty = rawresult.ServiceCertaintyHint(certainty)
		return r, nil

	case provenance.SourceCertificateTransparency:
		var r rawresult.CertificateTransparency
		err := c.QueryRowContext(ctx, `
			SELECT uuid, attack, common_name, sans, not_before, not_after, created_at
			FROM raw_certificate_transparency WHERE uuid = $1
		`, sourceUUID).Scan(&r.UUID, &r.Attack, &r.CommonName, pq.Array(&r.SANs), &r.NotBefore, &r.NotAfter, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		return r, nil

	case provenance.SourceDNSTxtScan:
		var r rawresult.DnsTxtScan
		var collectionType string
		err := c.QueryRowContext(ctx, `
			SELECT uuid, attack, domain, collection_type, created_at FROM raw_dns_txt_scan WHERE uuid = $1
		`, sourceUUID).Scan(&r.UUID, &r.Attack, &r.Domain, &collectionType, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		r.CollectionType = rawresult.DnsTxtScanSummaryType(collectionType)
		return r, nil

	case provenance.SourceOSDetection:
		var r rawresult.OSDetection
		var addr, osType string
		err := c.QueryRowContext(ctx, `
			SELECT uuid, attack, host, os_type, hints, created_at FROM raw_os_detection WHERE uuid = $1
		`, sourceUUID).Scan(&r.UUID, &r.Attack, &addr, &osType, pq.Array(&r.Hints), &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		r.Host = net.ParseIP(addr)
		r.OSType = host.OSType(osType)
		return r, nil

	case provenance.SourceTestSSL:
		var r rawresult.TestSSL
		var addr, severity string
		var portNum int
		err := c.QueryRowContext(ctx, `
			SELECT uuid, attack, host, port, finding_id, severity, service, created_at
			FROM raw_testssl WHERE uuid = $1
		`, sourceUUID).Scan(&r.UUID, &r.Attack, &addr, &portNum, &r.FindingID, &severity, &r.Service, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		r.Host = net.ParseIP(addr)
		r.Port = uint16(portNum)
		r.Severity = rawresult.TestSSLSeverity(severity)
		return r, nil

	case provenance.SourceDehashed:
		var r rawresult.DehashedEntry
		err := c.QueryRowContext(ctx, `
			SELECT uuid, attack, email, username, password, hashed_pass, database, created_at
			FROM raw_dehashed_entry WHERE uuid = $1
		`, sourceUUID).Scan(&r.UUID, &r.Attack, &r.Email, &r.Username, &r.Password, &r.HashedPass, &r.Database, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		return r, nil

	case provenance.SourceManualHost:
		var r rawresult.ManualHost
		var addr string
		var certainty int
		err := c.QueryRowContext(ctx, `
			SELECT uuid, workspace, "user", ip_address, certainty, created_at FROM raw_manual_host WHERE uuid = $1
		`, sourceUUID).Scan(&r.UUID, &r.Workspace, &r.User, &addr, &certainty, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		r.IPAddress = net.ParseIP(addr)
		r.Certainty = host.Certainty(certainty)
		return r, nil

	case provenance.SourceManualPort:
		var r rawresult.ManualPort
		var addr, transport string
		var portNum, certainty int
		err := c.QueryRowContext(ctx, `
			SELECT uuid, workspace, "user", host, number, transport, certainty, created_at
			FROM raw_manual_port WHERE uuid = $1
		`, sourceUUID).Scan(&r.UUID, &r.Workspace, &r.User, &addr, &portNum, &transport, &certainty, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		r.Host = net.ParseIP(addr)
		r.Number = uint16(portNum)
		r.Transport = port.Protocol(transport)
		r.Certainty = host.Certainty(certainty)
		return r, nil

	case provenance.SourceManualService:
		var r rawresult.ManualService
		var addr string
		var portNum sql.NullInt64
		var certainty int
		err := c.QueryRowContext(ctx, `
			SELECT uuid, workspace, "user", host, port, name, certainty, created_at
			FROM raw_manual_service WHERE uuid = $1
		`, sourceUUID).Scan(&r.UUID, &r.Workspace, &r.User, &addr, &portNum, &r.Name, &certainty, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		r.Host = net.ParseIP(addr)
		if portNum.Valid {
			p := uint16(portNum.Int64)
			r.Port = &p
		}
		r.Certainty = service.Certainty(certainty)
		return r, nil

	case provenance.SourceManualDomain:
		var r rawresult.ManualDomain
		err := c.QueryRowContext(ctx, `
			SELECT uuid, workspace, "user", name, created_at FROM raw_manual_domain WHERE uuid = $1
		`, sourceUUID).Scan(&r.UUID, &r.Workspace, &r.User, &r.Name, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		return r, nil

	case provenance.SourceManualHttpService:
		var r rawresult.ManualHttpService
		var addr string
		var portNum int
		err := c.QueryRowContext(ctx, `
			SELECT uuid, workspace, "user", host, port, domain, base_path, tls, created_at
			FROM raw_manual_http_service WHERE uuid = $1
		`, sourceUUID).Scan(&r.UUID, &r.Workspace, &r.User, &addr, &portNum, &r.Domain, &r.BasePath, &r.TLS, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		r.Host = net.ParseIP(addr)
		r.Port = uint16(portNum)
		return r, nil
	}
	return nil, krakenerr.New(krakenerr.Internal, krakenerr.CodeMalformedResult, "unrecognized source type")
}
