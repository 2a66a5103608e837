// Package aggregator translates a "we observed X" signal
// from any attack into an insert-or-upgrade of the corresponding canonical
// entity, returning its identifier.
package aggregator

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"

	core "github.com/kraken-ng/kraken/internal/app/core/service"
	"github.com/kraken-ng/kraken/internal/app/domain/domainentity"
	"github.com/kraken-ng/kraken/internal/app/domain/host"
	"github.com/kraken-ng/kraken/internal/app/domain/httpservice"
	"github.com/kraken-ng/kraken/internal/app/domain/port"
	"github.com/kraken-ng/kraken/internal/app/domain/service"
	"github.com/kraken-ng/kraken/internal/app/metrics"
	"github.com/kraken-ng/kraken/internal/app/storage"
	"github.com/kraken-ng/kraken/pkg/logger"
)

// Aggregator upserts the canonical Host/Port/Service/HttpService/Domain
// entities. It is safe under concurrent calls within a workspace because
// every exported operation acquires the per-workspace Locker first.
type Aggregator struct {
	hosts     storage.HostStore
	ports     storage.PortStore
	services  storage.ServiceStore
	httpsvcs  storage.HttpServiceStore
	domains   storage.DomainStore
	locker    Locker
	log       *logger.Logger
	tracer    core.Tracer
}

// New constructs an Aggregator. log may be nil.
func New(hosts storage.HostStore, ports storage.PortStore, services storage.ServiceStore, httpsvcs storage.HttpServiceStore, domains storage.DomainStore, locker Locker, log *logger.Logger) *Aggregator {
	if log == nil {
		log = logger.NewDefault("aggregator")
	}
	if locker == nil {
		locker = NewMapLocker()
	}
	return &Aggregator{
		hosts: hosts, ports: ports, services: services, httpsvcs: httpsvcs, domains: domains,
		locker: locker, log: log, tracer: core.NoopTracer,
	}
}

// SetTracer configures the tracer used for per-call spans.
func (a *Aggregator) SetTracer(t core.Tracer) {
	if t == nil {
		t = core.NoopTracer
	}
	a.tracer = t
}

func (a *Aggregator) withLock(ctx context.Context, ws uuid.UUID, fn func(ctx context.Context) error) error {
	unlock, err := a.locker.Lock(ctx, ws)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}

// AggregateHost upserts a Host by (workspace, ip). Certainty is
// monotonically merged: it only ever goes up the ladder.
func (a *Aggregator) AggregateHost(ctx context.Context, ws uuid.UUID, ip net.IP, certainty host.Certainty) (uuid.UUID, error) {
	ctx, end := a.tracer.StartSpan(ctx, "aggregator.AggregateHost")
	var id uuid.UUID
	err := a.withLock(ctx, ws, func(ctx context.Context) error {
		existing, found, err := a.hosts.FindHostByIP(ctx, ws, ip.String())
		if err != nil {
			return err
		}
		if found {
			existing.Certainty = host.Max(existing.Certainty, certainty)
			updated, err := a.hosts.UpsertHost(ctx, existing)
			if err != nil {
				return err
			}
			id = updated.UUID
			metrics.RecordAggregatorUpsert("host", "upgraded")
			return nil
		}
		created, err := a.hosts.UpsertHost(ctx, host.Host{
			UUID: uuid.New(), Workspace: ws, IPAddress: ip,
			OSType: host.OSUnknown, Certainty: certainty, CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		id = created.UUID
		metrics.RecordAggregatorUpsert("host", "inserted")
		return nil
	})
	end(err)
	return id, err
}

// AggregatePort upserts a Port by (workspace, host, number, transport).
func (a *Aggregator) AggregatePort(ctx context.Context, ws, hostID uuid.UUID, number uint16, transport port.Protocol, certainty port.Certainty) (uuid.UUID, error) {
	ctx, end := a.tracer.StartSpan(ctx, "aggregator.AggregatePort")
	var id uuid.UUID
	key := port.NaturalKey{Workspace: ws, Host: hostID, Number: number, Transport: transport}
	err := a.withLock(ctx, ws, func(ctx context.Context) error {
		existing, found, err := a.ports.FindPort(ctx, key)
		if err != nil {
			return err
		}
		if found {
			existing.Certainty = host.Max(existing.Certainty, certainty)
			updated, err := a.ports.UpsertPort(ctx, existing)
			if err != nil {
				return err
			}
			id = updated.UUID
			metrics.RecordAggregatorUpsert("port", "upgraded")
			return nil
		}
		created, err := a.ports.UpsertPort(ctx, port.Port{
			UUID: uuid.New(), Workspace: ws, Host: hostID, Number: number,
			Transport: transport, Certainty: certainty, CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		id = created.UUID
		metrics.RecordAggregatorUpsert("port", "inserted")
		return nil
	})
	end(err)
	return id, err
}

// AggregateService upserts a Service by (workspace, host, port?, name).
// portID may be nil, meaning the service has no known port.
func (a *Aggregator) AggregateService(ctx context.Context, ws, hostID uuid.UUID, portID *uuid.UUID, protocols service.Protocols, name string, certainty service.Certainty) (uuid.UUID, error) {
	ctx, end := a.tracer.StartSpan(ctx, "aggregator.AggregateService")
	var id uuid.UUID
	key := service.NaturalKey{Workspace: ws, Host: hostID, Port: portID, Name: name}
	err := a.withLock(ctx, ws, func(ctx context.Context) error {
		existing, found, err := a.services.FindService(ctx, key)
		if err != nil {
			return err
		}
		if found {
			existing.Certainty = service.Max(existing.Certainty, certainty)
			updated, err := a.services.UpsertService(ctx, existing)
			if err != nil {
				return err
			}
			id = updated.UUID
			metrics.RecordAggregatorUpsert("service", "upgraded")
			return nil
		}
		created, err := a.services.UpsertService(ctx, service.Service{
			UUID: uuid.New(), Workspace: ws, Host: hostID, Port: portID, Name: name,
			Protocols: protocols, Certainty: certainty, CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		id = created.UUID
		metrics.RecordAggregatorUpsert("service", "inserted")
		return nil
	})
	end(err)
	return id, err
}

// AggregateHttpService upserts an HttpService by its natural key.
func (a *Aggregator) AggregateHttpService(ctx context.Context, ws uuid.UUID, name string, hostID, portID uuid.UUID, domainID *uuid.UUID, basePath string, tls, sniRequired bool) (uuid.UUID, error) {
	ctx, end := a.tracer.StartSpan(ctx, "aggregator.AggregateHttpService")
	var id uuid.UUID
	key := httpservice.NaturalKey{Workspace: ws, Host: hostID, Port: portID, Domain: domainID, BasePath: basePath}
	err := a.withLock(ctx, ws, func(ctx context.Context) error {
		existing, found, err := a.httpsvcs.FindHttpService(ctx, key)
		if err != nil {
			return err
		}
		if found {
			updated, err := a.httpsvcs.UpsertHttpService(ctx, existing)
			if err != nil {
				return err
			}
			id = updated.UUID
			metrics.RecordAggregatorUpsert("http_service", "upgraded")
			return nil
		}
		created, err := a.httpsvcs.UpsertHttpService(ctx, httpservice.HttpService{
			UUID: uuid.New(), Workspace: ws, Name: name, Host: hostID, Port: portID,
			Domain: domainID, BasePath: basePath, TLS: tls, SNIRequired: sniRequired,
			Certainty: httpservice.Verified, CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		id = created.UUID
		metrics.RecordAggregatorUpsert("http_service", "inserted")
		return nil
	})
	end(err)
	return id, err
}

// AggregateDomain upserts a Domain by (workspace, name).
func (a *Aggregator) AggregateDomain(ctx context.Context, ws uuid.UUID, name string, certainty domainentity.Certainty, requestedBy uuid.UUID) (uuid.UUID, error) {
	ctx, end := a.tracer.StartSpan(ctx, "aggregator.AggregateDomain")
	var id uuid.UUID
	err := a.withLock(ctx, ws, func(ctx context.Context) error {
		existing, found, err := a.domains.FindDomainByName(ctx, ws, name)
		if err != nil {
			return err
		}
		if found {
			existing.Certainty = domainentity.Max(existing.Certainty, certainty)
			updated, err := a.domains.UpsertDomain(ctx, existing)
			if err != nil {
				return err
			}
			id = updated.UUID
			metrics.RecordAggregatorUpsert("domain", "upgraded")
			return nil
		}
		created, err := a.domains.UpsertDomain(ctx, domainentity.Domain{
			UUID: uuid.New(), Workspace: ws, Name: name, Certainty: certainty, CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		id = created.UUID
		metrics.RecordAggregatorUpsert("domain", "inserted")
		return nil
	})
	end(err)
	return id, err
}

// AggregateDomainHostRelation upserts the domain<->host edge. isDirect is
// OR-merged: once true, stays true.
func (a *Aggregator) AggregateDomainHostRelation(ctx context.Context, ws, domainID, hostID uuid.UUID, isDirect bool) error {
	ctx, end := a.tracer.StartSpan(ctx, "aggregator.AggregateDomainHostRelation")
	err := a.withLock(ctx, ws, func(ctx context.Context) error {
		_, err := a.domains.UpsertDomainHostRelation(ctx, domainentity.DomainHostRelation{
			UUID: uuid.New(), Workspace: ws, Domain: domainID, Host: hostID,
			IsDirect: isDirect, CreatedAt: time.Now().UTC(),
		})
		return err
	})
	end(err)
	return err
}

// AggregateDomainDomainRelation upserts the domain<->domain edge
// (source -> destination, e.g. a CNAME hop).
func (a *Aggregator) AggregateDomainDomainRelation(ctx context.Context, ws, source, destination uuid.UUID) error {
	ctx, end := a.tracer.StartSpan(ctx, "aggregator.AggregateDomainDomainRelation")
	err := a.withLock(ctx, ws, func(ctx context.Context) error {
		_, err := a.domains.UpsertDomainDomainRelation(ctx, domainentity.DomainDomainRelation{
			UUID: uuid.New(), Workspace: ws, Source: source, Destination: destination, CreatedAt: time.Now().UTC(),
		})
		return err
	})
	end(err)
	return err
}

// Descriptor advertises this component for the /system/descriptors inventory.
func (a *Aggregator) Descriptor() core.Descriptor {
	return core.Descriptor{Name: "aggregator", Domain: "result-aggregation", Layer: core.LayerAggregation}.
		WithCapabilities("host", "port", "service", "http-service", "domain", "relations")
}
