package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/core/service"
	"github.com/kraken-ng/kraken/internal/app/domain/domainentity"
	"github.com/kraken-ng/kraken/internal/app/domain/host"
	"github.com/kraken-ng/kraken/internal/app/domain/httpservice"
	"github.com/kraken-ng/kraken/internal/app/domain/port"
	svc "github.com/kraken-ng/kraken/internal/app/domain/service"
)

// HostStore ---------------------------------------------------------------

func (m *Memory) UpsertHost(_ context.Context, h host.Host) (host.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.UUID == uuid.Nil {
		h.UUID = uuid.New()
	}
	m.hosts[h.UUID] = h
	return h, nil
}

func (m *Memory) GetHost(_ context.Context, ws, id uuid.UUID) (host.Host, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hosts[id]
	if !ok || h.Workspace != ws {
		return host.Host{}, notFound("host")
	}
	return h, nil
}

func (m *Memory) FindHostByIP(_ context.Context, ws uuid.UUID, ip string) (host.Host, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.hosts {
		if h.Workspace == ws && h.IPAddress.String() == ip {
			return h, true, nil
		}
	}
	return host.Host{}, false, nil
}

func (m *Memory) ListHosts(_ context.Context, ws uuid.UUID, limit, offset int) ([]host.Host, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []host.Host
	for _, h := range m.hosts {
		if h.Workspace == ws {
			all = append(all, h)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return paginate(all, limit, offset), len(all), nil
}

func (m *Memory) DeleteHost(_ context.Context, ws, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.hosts[id]; !ok || h.Workspace != ws {
		return notFound("host")
	}
	delete(m.hosts, id)
	return nil
}

// PortStore ---------------------------------------------------------------

func (m *Memory) UpsertPort(_ context.Context, p port.Port) (port.Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	m.ports[p.UUID] = p
	return p, nil
}

func (m *Memory) GetPort(_ context.Context, ws, id uuid.UUID) (port.Port, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.ports[id]
	if !ok || p.Workspace != ws {
		return port.Port{}, notFound("port")
	}
	return p, nil
}

func (m *Memory) FindPort(_ context.Context, key port.NaturalKey) (port.Port, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.ports {
		if p.Workspace == key.Workspace && p.Host == key.Host && p.Number == key.Number && p.Transport == key.Transport {
			return p, true, nil
		}
	}
	return port.Port{}, false, nil
}

func (m *Memory) ListPorts(_ context.Context, ws uuid.UUID, limit, offset int) ([]port.Port, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []port.Port
	for _, p := range m.ports {
		if p.Workspace == ws {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return paginate(all, limit, offset), len(all), nil
}

func (m *Memory) DeletePort(_ context.Context, ws, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.ports[id]; !ok || p.Workspace != ws {
		return notFound("port")
	}
	delete(m.ports, id)
	return nil
}

// ServiceStore --------------------------------------------------------------

func (m *Memory) UpsertService(_ context.Context, s svc.Service) (svc.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	m.services[s.UUID] = s
	return s, nil
}

func (m *Memory) GetService(_ context.Context, ws, id uuid.UUID) (svc.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.services[id]
	if !ok || s.Workspace != ws {
		return svc.Service{}, notFound("service")
	}
	return s, nil
}

func (m *Memory) FindService(_ context.Context, key svc.NaturalKey) (svc.Service, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.services {
		if s.Workspace != key.Workspace || s.Host != key.Host || s.Name != key.Name {
			continue
		}
		if !samePortPtr(s.Port, key.Port) {
			continue
		}
		return s, true, nil
	}
	return svc.Service{}, false, nil
}

func (m *Memory) ListServices(_ context.Context, ws uuid.UUID, limit, offset int) ([]svc.Service, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []svc.Service
	for _, s := range m.services {
		if s.Workspace == ws {
			all = append(all, s)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return paginate(all, limit, offset), len(all), nil
}

func (m *Memory) DeleteService(_ context.Context, ws, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.services[id]; !ok || s.Workspace != ws {
		return notFound("service")
	}
	delete(m.services, id)
	return nil
}

// HttpServiceStore ------------------------------------------------------------

func (m *Memory) UpsertHttpService(_ context.Context, s httpservice.HttpService) (httpservice.HttpService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	m.httpServices[s.UUID] = s
	return s, nil
}

func (m *Memory) GetHttpService(_ context.Context, ws, id uuid.UUID) (httpservice.HttpService, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.httpServices[id]
	if !ok || s.Workspace != ws {
		return httpservice.HttpService{}, notFound("http service")
	}
	return s, nil
}

func (m *Memory) FindHttpService(_ context.Context, key httpservice.NaturalKey) (httpservice.HttpService, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.httpServices {
		if s.Workspace != key.Workspace || s.Host != key.Host || s.Port != key.Port || s.BasePath != key.BasePath {
			continue
		}
		if !sameDomainPtr(s.Domain, key.Domain) {
			continue
		}
		return s, true, nil
	}
	return httpservice.HttpService{}, false, nil
}

func (m *Memory) ListHttpServices(_ context.Context, ws uuid.UUID, limit, offset int) ([]httpservice.HttpService, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []httpservice.HttpService
	for _, s := range m.httpServices {
		if s.Workspace == ws {
			all = append(all, s)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return paginate(all, limit, offset), len(all), nil
}

func (m *Memory) DeleteHttpService(_ context.Context, ws, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.httpServices[id]; !ok || s.Workspace != ws {
		return notFound("http service")
	}
	delete(m.httpServices, id)
	return nil
}

// DomainStore --------------------------------------------------------------

func (m *Memory) UpsertDomain(_ context.Context, d domainentity.Domain) (domainentity.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.UUID == uuid.Nil {
		d.UUID = uuid.New()
	}
	m.domains[d.UUID] = d
	return d, nil
}

func (m *Memory) GetDomain(_ context.Context, ws, id uuid.UUID) (domainentity.Domain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.domains[id]
	if !ok || d.Workspace != ws {
		return domainentity.Domain{}, notFound("domain")
	}
	return d, nil
}

func (m *Memory) FindDomainByName(_ context.Context, ws uuid.UUID, name string) (domainentity.Domain, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.domains {
		if d.Workspace == ws && d.Name == name {
			return d, true, nil
		}
	}
	return domainentity.Domain{}, false, nil
}

func (m *Memory) ListDomains(_ context.Context, ws uuid.UUID, limit, offset int) ([]domainentity.Domain, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []domainentity.Domain
	for _, d := range m.domains {
		if d.Workspace == ws {
			all = append(all, d)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return paginate(all, limit, offset), len(all), nil
}

func (m *Memory) DeleteDomain(_ context.Context, ws, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.domains[id]; !ok || d.Workspace != ws {
		return notFound("domain")
	}
	delete(m.domains, id)
	return nil
}

// UpsertDomainDomainRelation upserts by (workspace, source, destination):
// no attribute to merge beyond existence, so a repeat call is a no-op
// returning the existing row.
func (m *Memory) UpsertDomainDomainRelation(_ context.Context, r domainentity.DomainDomainRelation) (domainentity.DomainDomainRelation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.domainDomain {
		if existing.Workspace == r.Workspace && existing.Source == r.Source && existing.Destination == r.Destination {
			return existing, nil
		}
	}
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	m.domainDomain[r.UUID] = r
	return r, nil
}

// UpsertDomainHostRelation upserts by (workspace, domain, host), OR-merging
// IsDirect: once true, stays true.
func (m *Memory) UpsertDomainHostRelation(_ context.Context, r domainentity.DomainHostRelation) (domainentity.DomainHostRelation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.domainHost {
		if existing.Workspace == r.Workspace && existing.Domain == r.Domain && existing.Host == r.Host {
			if r.IsDirect && !existing.IsDirect {
				existing.IsDirect = true
				m.domainHost[id] = existing
			}
			return m.domainHost[id], nil
		}
	}
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	m.domainHost[r.UUID] = r
	return r, nil
}

func (m *Memory) FindDirectDomainHostRelations(_ context.Context, ws, destination uuid.UUID) ([]domainentity.DomainHostRelation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domainentity.DomainHostRelation
	for _, r := range m.domainHost {
		if r.Workspace == ws && r.Domain == destination && r.IsDirect {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) FindDomainDomainSources(_ context.Context, ws, destination uuid.UUID) ([]domainentity.DomainDomainRelation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domainentity.DomainDomainRelation
	for _, r := range m.domainDomain {
		if r.Workspace == ws && r.Destination == destination {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) ListDomainHostRelations(_ context.Context, ws, domain uuid.UUID) ([]domainentity.DomainHostRelation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domainentity.DomainHostRelation
	for _, r := range m.domainHost {
		if r.Workspace == ws && r.Domain == domain {
			out = append(out, r)
		}
	}
	return out, nil
}

// Descriptor advertises the in-memory backend for /system/descriptors.
func (m *Memory) Descriptor() service.Descriptor {
	return service.Descriptor{Name: "storage.memory", Domain: "persistence", Layer: service.LayerStorage}.
		WithCapabilities("aggregated", "raw-results", "provenance", "findings", "search", "editor-cache")
}

func samePortPtr(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameDomainPtr(a, b *uuid.UUID) bool {
	return samePortPtr(a, b)
}

func paginate[T any](all []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
