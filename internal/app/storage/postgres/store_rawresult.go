package postgres

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kraken-ng/kraken/internal/app/domain/rawresult"
)

func (s *Store) InsertBruteforceSubdomains(ctx context.Context, r rawresult.BruteforceSubdomains) (rawresult.BruteforceSubdomains, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO raw_bruteforce_subdomains (uuid, attack, source, record_type, "to", created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.UUID, r.Attack, r.Source, string(r.RecordType), r.To, r.CreatedAt)
	if err != nil {
		return rawresult.BruteforceSubdomains{}, err
	}
	return r, nil
}

func (s *Store) InsertTCPPortScan(ctx context.Context, r rawresult.TCPPortScan) (rawresult.TCPPortScan, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO raw_tcp_port_scan (uuid, attack, host, port, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.UUID, r.Attack, r.Address.String(), int(r.Port), r.CreatedAt)
	if err != nil {
		return rawresult.TCPPortScan{}, err
	}
	return r, nil
}

func (s *Store) InsertHostAlive(ctx context.Context, r rawresult.HostAlive) (rawresult.HostAlive, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO raw_host_alive (uuid, attack, host, created_at) VALUES ($1, $2, $3, $4)
	`, r.UUID, r.Attack, r.Host.String(), r.CreatedAt)
	if err != nil {
		return rawresult.HostAlive{}, err
	}
	return r, nil
}

func (s *Store) InsertServiceDetection(ctx context.Context, r rawresult.ServiceDetection) (rawresult.ServiceDetection, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO raw_service_detection (uuid, attack, host, port, transport, certainty, names, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.UUID, r.Attack, r.Host.String(), int(r.Port), r.Transport, string(r.Certainty), pq.Array(r.Names), r.CreatedAt)
	if err != nil {
		return rawresult.ServiceDetection{}, err
	}
	return r, nil
}

func (s *Store) InsertCertificateTransparency(ctx context.Context, r rawresult.CertificateTransparency) (rawresult.CertificateTransparency, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO raw_certificate_transparency (uuid, attack, common_name, sans, not_before, not_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.UUID, r.Attack, r.CommonName, pq.Array(r.SANs), r.NotBefore, r.NotAfter, r.CreatedAt)
	if err != nil {
		return rawresult.CertificateTransparency{}, err
	}
	return r, nil
}

func (s *Store) InsertOSDetection(ctx context.Context, r rawresult.OSDetection) (rawresult.OSDetection, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO raw_os_detection (uuid, attack, host, os_type, hints, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.UUID, r.Attack, r.Host.String(), string(r.OSType), pq.Array(r.Hints), r.CreatedAt)
	if err != nil {
		return rawresult.OSDetection{}, err
	}
	return r, nil
}

func (s *Store) InsertTestSSL(ctx context.Context, r rawresult.TestSSL) (rawresult.TestSSL, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO raw_testssl (uuid, attack, host, port, finding_id, severity, service, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.UUID, r.Attack, r.Host.String(), int(r.Port), r.FindingID, string(r.Severity), r.Service, r.CreatedAt)
	if err != nil {
		return rawresult.TestSSL{}, err
	}
	return r, nil
}

func (s *Store) InsertDehashedEntry(ctx context.Context, r rawresult.DehashedEntry) (rawresult.DehashedEntry, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO raw_dehashed_entry (uuid, attack, email, username, password, hashed_pass, database, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.UUID, r.Attack, r.Email, r.Username, r.Password, r.HashedPass, r.Database, r.CreatedAt)
	if err != nil {
		return rawresult.DehashedEntry{}, err
	}
	return r, nil
}

func (s *Store) InsertDnsTxtScan(ctx context.Context, r rawresult.DnsTxtScan) (rawresult.DnsTxtScan, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO raw_dns_txt_scan (uuid, attack, domain, collection_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.UUID, r.Attack, r.Domain, string(r.CollectionType), r.CreatedAt)
	if err != nil {
		return rawresult.DnsTxtScan{}, err
	}
	return r, nil
}

func (s *Store) InsertServiceHintEntry(ctx context.Context, e rawresult.ServiceHintEntry) (rawresult.ServiceHintEntry, error) {
	if e.UUID == uuid.Nil {
		e.UUID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO raw_service_hint_entry (uuid, scan, rule, hint_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.UUID, e.Scan, e.Rule, e.HintType, e.CreatedAt)
	if err != nil {
		return rawresult.ServiceHintEntry{}, err
	}
	return e, nil
}

func (s *Store) InsertSpfEntry(ctx context.Context, e rawresult.SpfEntry) (rawresult.SpfEntry, error) {
	if e.UUID == uuid.Nil {
		e.UUID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO raw_spf_entry (uuid, scan, spf_type, domain, ip_network, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.UUID, e.Scan, string(e.SpfType), e.Domain, e.IPNetwork, e.CreatedAt)
	if err != nil {
		return rawresult.SpfEntry{}, err
	}
	return e, nil
}

func (s *Store) InsertManualHost(ctx context.Context, r rawresult.ManualHost) (rawresult.ManualHost, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO raw_manual_host (uuid, workspace, "user", ip_address, certainty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.UUID, r.Workspace, r.User, r.IPAddress.String(), int(r.Certainty), r.CreatedAt)
	if err != nil {
		return rawresult.ManualHost{}, err
	}
	return r, nil
}

func (s *Store) InsertManualPort(ctx context.Context, r rawresult.ManualPort) (rawresult.ManualPort, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO raw_manual_port (uuid, workspace, "user", host, number, transport, certainty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.UUID, r.Workspace, r.User, r.Host.String(), int(r.Number), string(r.Transport), int(r.Certainty), r.CreatedAt)
	if err != nil {
		return rawresult.ManualPort{}, err
	}
	return r, nil
}

func (s *Store) InsertManualService(ctx context.Context, r rawresult.ManualService) (rawresult.ManualService, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	var portNum interface{}
	if r.Port != nil {
		portNum = int(*r.Port)
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO raw_manual_service (uuid, workspace, "user", host, port, name, certainty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.UUID, r.Workspace, r.User, r.Host.String(), portNum, r.Name, int(r.Certainty), r.CreatedAt)
	if err != nil {
		return rawresult.ManualService{}, err
	}
	return r, nil
}

func (s *Store) InsertManualDomain(ctx context.Context, r rawresult.ManualDomain) (rawresult.ManualDomain, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO raw_manual_domain (uuid, workspace, "user", name, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.UUID, r.Workspace, r.User, r.Name, r.CreatedAt)
	if err != nil {
		return rawresult.ManualDomain{}, err
	}
	return r, nil
}

func (s *Store) InsertManualHttpService(ctx context.Context, r rawresult.ManualHttpService) (rawresult.ManualHttpService, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO raw_manual_http_service (uuid, workspace, "user", host, port, domain, base_path, tls, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.UUID, r.Workspace, r.User, r.Host.String(), int(r.Port), r.Domain, r.BasePath, r.TLS, r.CreatedAt)
	if err != nil {
		return rawresult.ManualHttpService{}, err
	}
	return r, nil
}

// ListDehashedEntries and ListTestSSL back the search scatter's sweep of
// raw-result tables; both join through attack to scope by workspace since
// neither raw table carries its own workspace column.

func (s *Store) ListDehashedEntries(ctx context.Context, ws uuid.UUID) ([]rawresult.DehashedEntry, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT r.uuid, r.attack, r.email, r.username, r.password, r.hashed_pass, r.database, r.created_at
		FROM raw_dehashed_entry r
		JOIN attack a ON a.uuid = r.attack
		WHERE a.workspace = $1
	`, ws)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []rawresult.DehashedEntry
	for rows.Next() {
		var r rawresult.DehashedEntry
		if err := rows.Scan(&r.UUID, &r.Attack, &r.Email, &r.Username, &r.Password, &r.HashedPass, &r.Database, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListTestSSL(ctx context.Context, ws uuid.UUID) ([]rawresult.TestSSL, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT r.uuid, r.attack, r.host, r.port, r.finding_id, r.severity, r.service, r.created_at
		FROM raw_testssl r
		JOIN attack a ON a.uuid = r.attack
		WHERE a.workspace = $1
	`, ws)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []rawresult.TestSSL
	for rows.Next() {
		var r rawresult.TestSSL
		var hostIP, severity string
		var portNum int
		if err := rows.Scan(&r.UUID, &r.Attack, &hostIP, &portNum, &r.FindingID, &severity, &r.Service, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Host = net.ParseIP(hostIP)
		r.Port = uint16(portNum)
		r.Severity = rawresult.TestSSLSeverity(severity)
		out = append(out, r)
	}
	return out, rows.Err()
}
