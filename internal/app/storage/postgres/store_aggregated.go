package postgres

import (
	"context"
	"database/sql"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/domain/domainentity"
	"github.com/kraken-ng/kraken/internal/app/domain/host"
	"github.com/kraken-ng/kraken/internal/app/domain/httpservice"
	"github.com/kraken-ng/kraken/internal/app/domain/port"
	"github.com/kraken-ng/kraken/internal/app/domain/service"
	"github.com/kraken-ng/kraken/internal/app/krakenerr"
)

// HostStore -----------------------------------------------------------------

func (s *Store) UpsertHost(ctx context.Context, h host.Host) (host.Host, error) {
	if h.UUID == uuid.Nil {
		h.UUID = uuid.New()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	var responseMS sql.NullInt64
	if h.ResponseTime != nil {
		responseMS = sql.NullInt64{Int64: h.ResponseTime.Milliseconds(), Valid: true}
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO host (uuid, workspace, ip_address, os_type, response_time_ms, certainty, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (workspace, ip_address) DO UPDATE SET
			os_type = EXCLUDED.os_type,
			response_time_ms = COALESCE(EXCLUDED.response_time_ms, host.response_time_ms),
			certainty = EXCLUDED.certainty,
			comment = EXCLUDED.comment
	`, h.UUID, h.Workspace, h.IPAddress.String(), string(h.OSType), responseMS, int(h.Certainty), h.Comment, h.CreatedAt)
	if err != nil {
		return host.Host{}, err
	}
	return s.GetHost(ctx, h.Workspace, h.UUID)
}

func (s *Store) scanHost(row *sql.Row) (host.Host, error) {
	var h host.Host
	var ip string
	var osType string
	var certainty int
	var responseMS sql.NullInt64
	if err := row.Scan(&h.UUID, &h.Workspace, &ip, &osType, &responseMS, &certainty, &h.Comment, &h.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return host.Host{}, notFound("host")
		}
		return host.Host{}, err
	}
	h.IPAddress = net.ParseIP(ip)
	h.OSType = host.OSType(osType)
	h.Certainty = host.Certainty(certainty)
	if responseMS.Valid {
		d := time.Duration(responseMS.Int64) * time.Millisecond
		h.ResponseTime = &d
	}
	return h, nil
}

func (s *Store) GetHost(ctx context.Context, ws, id uuid.UUID) (host.Host, error) {
	return s.scanHost(s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, workspace, ip_address, os_type, response_time_ms, certainty, comment, created_at
		FROM host WHERE workspace = $1 AND uuid = $2
	`, ws, id))
}

func (s *Store) FindHostByIP(ctx context.Context, ws uuid.UUID, ip string) (host.Host, bool, error) {
	h, err := s.scanHost(s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, workspace, ip_address, os_type, response_time_ms, certainty, comment, created_at
		FROM host WHERE workspace = $1 AND ip_address = $2
	`, ws, ip))
	if err != nil {
		if isNotFoundErr(err) {
			return host.Host{}, false, nil
		}
		return host.Host{}, false, err
	}
	return h, true, nil
}

func (s *Store) ListHosts(ctx context.Context, ws uuid.UUID, limit, offset int) ([]host.Host, int, error) {
	total, err := s.countWhere(ctx, "host", ws)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT uuid, workspace, ip_address, os_type, response_time_ms, certainty, comment, created_at
		FROM host WHERE workspace = $1 ORDER BY created_at LIMIT $2 OFFSET $3
	`, ws, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []host.Host
	for rows.Next() {
		var h host.Host
		var ip, osType string
		var certainty int
		var responseMS sql.NullInt64
		if err := rows.Scan(&h.UUID, &h.Workspace, &ip, &osType, &responseMS, &certainty, &h.Comment, &h.CreatedAt); err != nil {
			return nil, 0, err
		}
		h.IPAddress = net.ParseIP(ip)
		h.OSType = host.OSType(osType)
		h.Certainty = host.Certainty(certainty)
		if responseMS.Valid {
			d := time.Duration(responseMS.Int64) * time.Millisecond
			h.ResponseTime = &d
		}
		out = append(out, h)
	}
	return out, total, rows.Err()
}

func (s *Store) DeleteHost(ctx context.Context, ws, id uuid.UUID) error {
	_, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM host WHERE workspace = $1 AND uuid = $2`, ws, id)
	return err
}

func (s *Store) countWhere(ctx context.Context, table string, ws uuid.UUID) (int, error) {
	var n int
	row := s.conn(ctx).QueryRowContext(ctx, "SELECT count(*) FROM "+table+" WHERE workspace = $1", ws)
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// PortStore -------------------------------------------------------------

func (s *Store) UpsertPort(ctx context.Context, p port.Port) (port.Port, error) {
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO port (uuid, workspace, host, number, transport, certainty, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (workspace, host, number, transport) DO UPDATE SET
			certainty = EXCLUDED.certainty, comment = EXCLUDED.comment
	`, p.UUID, p.Workspace, p.Host, int(p.Number), string(p.Transport), int(p.Certainty), p.Comment, p.CreatedAt)
	if err != nil {
		return port.Port{}, err
	}
	return s.GetPort(ctx, p.Workspace, p.UUID)
}

func (s *Store) scanPort(row *sql.Row) (port.Port, error) {
	var p port.Port
	var transport string
	var number, certainty int
	if err := row.Scan(&p.UUID, &p.Workspace, &p.Host, &number, &transport, &certainty, &p.Comment, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return port.Port{}, notFound("port")
		}
		return port.Port{}, err
	}
	p.Number = uint16(number)
	p.Transport = port.Protocol(transport)
	p.Certainty = port.Certainty(certainty)
	return p, nil
}

func (s *Store) GetPort(ctx context.Context, ws, id uuid.UUID) (port.Port, error) {
	return s.scanPort(s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, workspace, host, number, transport, certainty, comment, created_at
		FROM port WHERE workspace = $1 AND uuid = $2
	`, ws, id))
}

func (s *Store) FindPort(ctx context.Context, key port.NaturalKey) (port.Port, bool, error) {
	p, err := s.scanPort(s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, workspace, host, number, transport, certainty, comment, created_at
		FROM port WHERE workspace = $1 AND host = $2 AND number = $3 AND transport = $4
	`, key.Workspace, key.Host, int(key.Number), string(key.Transport)))
	if err != nil {
		if isNotFoundErr(err) {
			return port.Port{}, false, nil
		}
		return port.Port{}, false, err
	}
	return p, true, nil
}

func (s *Store) ListPorts(ctx context.Context, ws uuid.UUID, limit, offset int) ([]port.Port, int, error) {
	total, err := s.countWhere(ctx, "port", ws)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT uuid, workspace, host, number, transport, certainty, comment, created_at
		FROM port WHERE workspace = $1 ORDER BY created_at LIMIT $2 OFFSET $3
	`, ws, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []port.Port
	for rows.Next() {
		var p port.Port
		var transport string
		var number, certainty int
		if err := rows.Scan(&p.UUID, &p.Workspace, &p.Host, &number, &transport, &certainty, &p.Comment, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		p.Number = uint16(number)
		p.Transport = port.Protocol(transport)
		p.Certainty = port.Certainty(certainty)
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (s *Store) DeletePort(ctx context.Context, ws, id uuid.UUID) error {
	_, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM port WHERE workspace = $1 AND uuid = $2`, ws, id)
	return err
}

// ServiceStore ----------------------------------------------------------

func (s *Store) UpsertService(ctx context.Context, svc service.Service) (service.Service, error) {
	if svc.UUID == uuid.Nil {
		svc.UUID = uuid.New()
	}
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO service (uuid, workspace, host, port, name, protocols, certainty, version, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, svc.UUID, svc.Workspace, svc.Host, svc.Port, svc.Name, int(svc.Protocols), int(svc.Certainty), svc.Version, svc.Comment, svc.CreatedAt)
	if err != nil {
		return service.Service{}, err
	}
	return svc, nil
}

func (s *Store) scanService(row *sql.Row) (service.Service, error) {
	var svc service.Service
	var port_ sql.NullString
	var protocols, certainty int
	if err := row.Scan(&svc.UUID, &svc.Workspace, &svc.Host, &port_, &svc.Name, &protocols, &certainty, &svc.Version, &svc.Comment, &svc.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return service.Service{}, notFound("service")
		}
		return service.Service{}, err
	}
	if port_.Valid {
		id, perr := uuid.Parse(port_.String)
		if perr == nil {
			svc.Port = &id
		}
	}
	svc.Protocols = service.Protocols(protocols)
	svc.Certainty = service.Certainty(certainty)
	return svc, nil
}

func (s *Store) GetService(ctx context.Context, ws, id uuid.UUID) (service.Service, error) {
	return s.scanService(s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, workspace, host, port, name, protocols, certainty, version, comment, created_at
		FROM service WHERE workspace = $1 AND uuid = $2
	`, ws, id))
}

func (s *Store) FindService(ctx context.Context, key service.NaturalKey) (service.Service, bool, error) {
	svc, err := s.scanService(s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, workspace, host, port, name, protocols, certainty, version, comment, created_at
		FROM service WHERE workspace = $1 AND host = $2 AND port IS NOT DISTINCT FROM $3 AND name = $4
	`, key.Workspace, key.Host, key.Port, key.Name))
	if err != nil {
		if isNotFoundErr(err) {
			return service.Service{}, false, nil
		}
		return service.Service{}, false, err
	}
	return svc, true, nil
}

func (s *Store) ListServices(ctx context.Context, ws uuid.UUID, limit, offset int) ([]service.Service, int, error) {
	total, err := s.countWhere(ctx, "service", ws)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT uuid, workspace, host, port, name, protocols, certainty, version, comment, created_at
		FROM service WHERE workspace = $1 ORDER BY created_at LIMIT $2 OFFSET $3
	`, ws, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []service.Service
	for rows.Next() {
		var svc service.Service
		var port_ sql.NullString
		var protocols, certainty int
		if err := rows.Scan(&svc.UUID, &svc.Workspace, &svc.Host, &port_, &svc.Name, &protocols, &certainty, &svc.Version, &svc.Comment, &svc.CreatedAt); err != nil {
			return nil, 0, err
		}
		if port_.Valid {
			if id, perr := uuid.Parse(port_.String); perr == nil {
				svc.Port = &id
			}
		}
		svc.Protocols = service.Protocols(protocols)
		svc.Certainty = service.Certainty(certainty)
		out = append(out, svc)
	}
	return out, total, rows.Err()
}

func (s *Store) DeleteService(ctx context.Context, ws, id uuid.UUID) error {
	_, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM service WHERE workspace = $1 AND uuid = $2`, ws, id)
	return err
}

// HttpServiceStore --------------------------------------------------------

func (s *Store) UpsertHttpService(ctx context.Context, h httpservice.HttpService) (httpservice.HttpService, error) {
	if h.UUID == uuid.Nil {
		h.UUID = uuid.New()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO http_service (uuid, workspace, name, host, port, domain, base_path, tls, sni_required, certainty, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, h.UUID, h.Workspace, h.Name, h.Host, h.Port, h.Domain, h.BasePath, h.TLS, h.SNIRequired, int(h.Certainty), h.Comment, h.CreatedAt)
	if err != nil {
		return httpservice.HttpService{}, err
	}
	return h, nil
}

func (s *Store) scanHttpService(row *sql.Row) (httpservice.HttpService, error) {
	var h httpservice.HttpService
	var domain sql.NullString
	var certainty int
	if err := row.Scan(&h.UUID, &h.Workspace, &h.Name, &h.Host, &h.Port, &domain, &h.BasePath, &h.TLS, &h.SNIRequired, &certainty, &h.Comment, &h.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return httpservice.HttpService{}, notFound("http service")
		}
		return httpservice.HttpService{}, err
	}
	if domain.Valid {
		if id, derr := uuid.Parse(domain.String); derr == nil {
			h.Domain = &id
		}
	}
	h.Certainty = httpservice.Certainty(certainty)
	return h, nil
}

func (s *Store) GetHttpService(ctx context.Context, ws, id uuid.UUID) (httpservice.HttpService, error) {
	return s.scanHttpService(s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, workspace, name, host, port, domain, base_path, tls, sni_required, certainty, comment, created_at
		FROM http_service WHERE workspace = $1 AND uuid = $2
	`, ws, id))
}

func (s *Store) FindHttpService(ctx context.Context, key httpservice.NaturalKey) (httpservice.HttpService, bool, error) {
	h, err := s.scanHttpService(s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, workspace, name, host, port, domain, base_path, tls, sni_required, certainty, comment, created_at
		FROM http_service
		WHERE workspace = $1 AND host = $2 AND port = $3 AND domain IS NOT DISTINCT FROM $4 AND base_path = $5
	`, key.Workspace, key.Host, key.Port, key.Domain, key.BasePath))
	if err != nil {
		if isNotFoundErr(err) {
			return httpservice.HttpService{}, false, nil
		}
		return httpservice.HttpService{}, false, err
	}
	return h, true, nil
}

func (s *Store) ListHttpServices(ctx context.Context, ws uuid.UUID, limit, offset int) ([]httpservice.HttpService, int, error) {
	total, err := s.countWhere(ctx, "http_service", ws)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT uuid, workspace, name, host, port, domain, base_path, tls, sni_required, certainty, comment, created_at
		FROM http_service WHERE workspace = $1 ORDER BY created_at LIMIT $2 OFFSET $3
	`, ws, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []httpservice.HttpService
	for rows.Next() {
		var h httpservice.HttpService
		var domain sql.NullString
		var certainty int
		if err := rows.Scan(&h.UUID, &h.Workspace, &h.Name, &h.Host, &h.Port, &domain, &h.BasePath, &h.TLS, &h.SNIRequired, &certainty, &h.Comment, &h.CreatedAt); err != nil {
			return nil, 0, err
		}
		if domain.Valid {
			if id, derr := uuid.Parse(domain.String); derr == nil {
				h.Domain = &id
			}
		}
		h.Certainty = httpservice.Certainty(certainty)
		out = append(out, h)
	}
	return out, total, rows.Err()
}

func (s *Store) DeleteHttpService(ctx context.Context, ws, id uuid.UUID) error {
	_, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM http_service WHERE workspace = $1 AND uuid = $2`, ws, id)
	return err
}

// DomainStore -------------------------------------------------------------

func (s *Store) UpsertDomain(ctx context.Context, d domainentity.Domain) (domainentity.Domain, error) {
	if d.UUID == uuid.Nil {
		d.UUID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO domain (uuid, workspace, name, comment, certainty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (workspace, name) DO UPDATE SET certainty = EXCLUDED.certainty
	`, d.UUID, d.Workspace, d.Name, d.Comment, int(d.Certainty), d.CreatedAt)
	if err != nil {
		return domainentity.Domain{}, err
	}
	return s.GetDomain(ctx, d.Workspace, d.UUID)
}

func (s *Store) scanDomain(row *sql.Row) (domainentity.Domain, error) {
	var d domainentity.Domain
	var certainty int
	if err := row.Scan(&d.UUID, &d.Workspace, &d.Name, &d.Comment, &certainty, &d.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return domainentity.Domain{}, notFound("domain")
		}
		return domainentity.Domain{}, err
	}
	d.Certainty = domainentity.Certainty(certainty)
	return d, nil
}

func (s *Store) GetDomain(ctx context.Context, ws, id uuid.UUID) (domainentity.Domain, error) {
	return s.scanDomain(s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, workspace, name, comment, certainty, created_at FROM domain WHERE workspace = $1 AND uuid = $2
	`, ws, id))
}

func (s *Store) FindDomainByName(ctx context.Context, ws uuid.UUID, name string) (domainentity.Domain, bool, error) {
	d, err := s.scanDomain(s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, workspace, name, comment, certainty, created_at FROM domain WHERE workspace = $1 AND name = $2
	`, ws, name))
	if err != nil {
		if isNotFoundErr(err) {
			return domainentity.Domain{}, false, nil
		}
		return domainentity.Domain{}, false, err
	}
	return d, true, nil
}

func (s *Store) ListDomains(ctx context.Context, ws uuid.UUID, limit, offset int) ([]domainentity.Domain, int, error) {
	total, err := s.countWhere(ctx, "domain", ws)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT uuid, workspace, name, comment, certainty, created_at
		FROM domain WHERE workspace = $1 ORDER BY created_at LIMIT $2 OFFSET $3
	`, ws, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []domainentity.Domain
	for rows.Next() {
		var d domainentity.Domain
		var certainty int
		if err := rows.Scan(&d.UUID, &d.Workspace, &d.Name, &d.Comment, &certainty, &d.CreatedAt); err != nil {
			return nil, 0, err
		}
		d.Certainty = domainentity.Certainty(certainty)
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (s *Store) DeleteDomain(ctx context.Context, ws, id uuid.UUID) error {
	_, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM domain WHERE workspace = $1 AND uuid = $2`, ws, id)
	return err
}

func (s *Store) UpsertDomainDomainRelation(ctx context.Context, r domainentity.DomainDomainRelation) (domainentity.DomainDomainRelation, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO domain_domain_relation (uuid, workspace, source, destination, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source, destination) DO NOTHING
	`, r.UUID, r.Workspace, r.Source, r.Destination, r.CreatedAt)
	if err != nil {
		return domainentity.DomainDomainRelation{}, err
	}
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, workspace, source, destination, created_at
		FROM domain_domain_relation WHERE source = $1 AND destination = $2
	`, r.Source, r.Destination)
	var out domainentity.DomainDomainRelation
	if err := row.Scan(&out.UUID, &out.Workspace, &out.Source, &out.Destination, &out.CreatedAt); err != nil {
		return domainentity.DomainDomainRelation{}, err
	}
	return out, nil
}

func (s *Store) UpsertDomainHostRelation(ctx context.Context, r domainentity.DomainHostRelation) (domainentity.DomainHostRelation, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO domain_host_relation (uuid, workspace, domain, host, is_direct, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (domain, host) DO UPDATE SET is_direct = domain_host_relation.is_direct OR EXCLUDED.is_direct
	`, r.UUID, r.Workspace, r.Domain, r.Host, r.IsDirect, r.CreatedAt)
	if err != nil {
		return domainentity.DomainHostRelation{}, err
	}
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, workspace, domain, host, is_direct, created_at
		FROM domain_host_relation WHERE domain = $1 AND host = $2
	`, r.Domain, r.Host)
	var out domainentity.DomainHostRelation
	if err := row.Scan(&out.UUID, &out.Workspace, &out.Domain, &out.Host, &out.IsDirect, &out.CreatedAt); err != nil {
		return domainentity.DomainHostRelation{}, err
	}
	return out, nil
}

func (s *Store) FindDirectDomainHostRelations(ctx context.Context, ws, destination uuid.UUID) ([]domainentity.DomainHostRelation, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT uuid, workspace, domain, host, is_direct, created_at
		FROM domain_host_relation WHERE workspace = $1 AND domain = $2 AND is_direct = true
	`, ws, destination)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domainentity.DomainHostRelation
	for rows.Next() {
		var r domainentity.DomainHostRelation
		if err := rows.Scan(&r.UUID, &r.Workspace, &r.Domain, &r.Host, &r.IsDirect, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) FindDomainDomainSources(ctx context.Context, ws, destination uuid.UUID) ([]domainentity.DomainDomainRelation, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT uuid, workspace, source, destination, created_at
		FROM domain_domain_relation WHERE workspace = $1 AND destination = $2
	`, ws, destination)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domainentity.DomainDomainRelation
	for rows.Next() {
		var r domainentity.DomainDomainRelation
		if err := rows.Scan(&r.UUID, &r.Workspace, &r.Source, &r.Destination, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListDomainHostRelations(ctx context.Context, ws, domain uuid.UUID) ([]domainentity.DomainHostRelation, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT uuid, workspace, domain, host, is_direct, created_at
		FROM domain_host_relation WHERE workspace = $1 AND domain = $2
	`, ws, domain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domainentity.DomainHostRelation
	for rows.Next() {
		var r domainentity.DomainHostRelation
		if err := rows.Scan(&r.UUID, &r.Workspace, &r.Domain, &r.Host, &r.IsDirect, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func isNotFoundErr(err error) bool {
	return krakenerr.Is(err, krakenerr.NotFound)
}
