// Package search implements full-text search: a background job that scatters a search
// term across every aggregated table and two raw-result tables, recording
// one SearchResult row per hit and pushing a SearchFinished notification.
// Rehydrating a raw-result row's text fields uses github.com/tidwall/gjson
// against its JSON projection rather than a dedicated matcher per
// raw-result kind, mirroring how the aggregated-table
// scan below treats every entity kind uniformly.
package search

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	core "github.com/kraken-ng/kraken/internal/app/core/service"
	"github.com/kraken-ng/kraken/internal/app/domain/domainentity"
	"github.com/kraken-ng/kraken/internal/app/domain/host"
	"github.com/kraken-ng/kraken/internal/app/domain/httpservice"
	"github.com/kraken-ng/kraken/internal/app/domain/port"
	"github.com/kraken-ng/kraken/internal/app/domain/service"
	"github.com/kraken-ng/kraken/internal/app/storage"
	"github.com/kraken-ng/kraken/internal/app/ws"
	"github.com/kraken-ng/kraken/pkg/logger"

	domainsearch "github.com/kraken-ng/kraken/internal/app/domain/search"
)

const listPageSize = 500

// Dispatcher runs search jobs against every store it's wired with.
type Dispatcher struct {
	searches storage.SearchStore
	hosts    storage.HostStore
	ports    storage.PortStore
	services storage.ServiceStore
	http     storage.HttpServiceStore
	domains  storage.DomainStore
	raw      storage.RawResultStore

	notify ws.Notifier
	tracer core.Tracer
	hooks  core.ObservationHooks
	log    *logger.Logger

	wg sync.WaitGroup
}

// New constructs a Dispatcher. notify and log may be nil.
func New(searches storage.SearchStore, hosts storage.HostStore, ports storage.PortStore, services storage.ServiceStore, http storage.HttpServiceStore, domains storage.DomainStore, raw storage.RawResultStore, notify ws.Notifier, log *logger.Logger) *Dispatcher {
	if notify == nil {
		notify = ws.NoopNotifier{}
	}
	if log == nil {
		log = logger.NewDefault("search")
	}
	return &Dispatcher{
		searches: searches, hosts: hosts, ports: ports, services: services,
		http: http, domains: domains, raw: raw,
		notify: notify, tracer: core.NoopTracer, log: log,
	}
}

// SetTracer configures the tracer used for the scatter span.
func (d *Dispatcher) SetTracer(t core.Tracer) {
	if t == nil {
		t = core.NoopTracer
	}
	d.tracer = t
}

// SetObservationHooks instruments each scatter job, e.g. with the
// Prometheus-backed hooks from internal/app/metrics.
func (d *Dispatcher) SetObservationHooks(hooks core.ObservationHooks) {
	d.hooks = hooks
}

// Name identifies this component for system.Service / logging.
func (d *Dispatcher) Name() string { return "search" }

// Start creates the Search row and launches the scatter as a background
// goroutine, returning the search uuid immediately.
func (d *Dispatcher) Start(ctx context.Context, ws_, startedBy uuid.UUID, term string) (uuid.UUID, error) {
	s, err := d.searches.CreateSearch(ctx, domainsearch.Search{
		UUID: uuid.New(), Workspace: ws_, StartedBy: startedBy, Term: term,
	})
	if err != nil {
		return uuid.Nil, err
	}

	d.wg.Add(1)
	go d.scatter(context.WithoutCancel(ctx), s)

	return s.UUID, nil
}

// Stop waits for every in-flight scatter to finish.
func (d *Dispatcher) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() { defer close(done); d.wg.Wait() }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) scatter(ctx context.Context, s domainsearch.Search) {
	defer d.wg.Done()
	ctx, end := d.tracer.StartSpan(ctx, "search.scatter")
	observe := core.StartObservation(ctx, d.hooks, map[string]string{"workspace": s.Workspace.String()})

	term := strings.ToLower(s.Term)
	hits := 0
	err := d.scatterAll(ctx, s, term, &hits)
	end(err)
	observe(err)

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		d.log.WithField("search", s.UUID).WithField("error", err).Warn("search scatter failed")
	}
	if ferr := d.searches.FinishSearch(ctx, s.UUID, time.Now().UTC(), errMsg); ferr != nil {
		d.log.WithField("search", s.UUID).WithField("error", ferr).Error("failed to record search completion")
	}
	d.log.WithField("search", s.UUID).WithField("hits", hits).Debug("search scatter finished")
	d.notify.Notify(s.Workspace, ws.KindSearchFinished, ws.SearchFinishedPayload{UUID: s.UUID, OK: err == nil})
}

func (d *Dispatcher) scatterAll(ctx context.Context, s domainsearch.Search, term string, hits *int) error {
	if err := scanPages(ctx, func(ctx context.Context, limit, offset int) ([]host.Host, int, error) {
		return d.hosts.ListHosts(ctx, s.Workspace, limit, offset)
	}, func(h host.Host) error {
		if matches(h, term) {
			return d.record(ctx, s.UUID, domainsearch.RefHost, h.UUID, hits)
		}
		return nil
	}); err != nil {
		return err
	}

	if err := scanPages(ctx, func(ctx context.Context, limit, offset int) ([]port.Port, int, error) {
		return d.ports.ListPorts(ctx, s.Workspace, limit, offset)
	}, func(p port.Port) error {
		if matches(p, term) {
			return d.record(ctx, s.UUID, domainsearch.RefPort, p.UUID, hits)
		}
		return nil
	}); err != nil {
		return err
	}

	if err := scanPages(ctx, func(ctx context.Context, limit, offset int) ([]service.Service, int, error) {
		return d.services.ListServices(ctx, s.Workspace, limit, offset)
	}, func(svc service.Service) error {
		if matches(svc, term) {
			return d.record(ctx, s.UUID, domainsearch.RefService, svc.UUID, hits)
		}
		return nil
	}); err != nil {
		return err
	}

	if err := scanPages(ctx, func(ctx context.Context, limit, offset int) ([]httpservice.HttpService, int, error) {
		return d.http.ListHttpServices(ctx, s.Workspace, limit, offset)
	}, func(hs httpservice.HttpService) error {
		if matches(hs, term) {
			return d.record(ctx, s.UUID, domainsearch.RefHttpService, hs.UUID, hits)
		}
		return nil
	}); err != nil {
		return err
	}

	if err := scanPages(ctx, func(ctx context.Context, limit, offset int) ([]domainentity.Domain, int, error) {
		return d.domains.ListDomains(ctx, s.Workspace, limit, offset)
	}, func(dm domainentity.Domain) error {
		if matches(dm, term) {
			return d.record(ctx, s.UUID, domainsearch.RefDomain, dm.UUID, hits)
		}
		return nil
	}); err != nil {
		return err
	}

	dehashed, err := d.raw.ListDehashedEntries(ctx, s.Workspace)
	if err != nil {
		return err
	}
	for _, de := range dehashed {
		if matches(de, term) {
			if err := d.record(ctx, s.UUID, domainsearch.RefDehashed, de.UUID, hits); err != nil {
				return err
			}
		}
	}

	testssl, err := d.raw.ListTestSSL(ctx, s.Workspace)
	if err != nil {
		return err
	}
	for _, ts := range testssl {
		if matches(ts, term) {
			if err := d.record(ctx, s.UUID, domainsearch.RefTestSSL, ts.UUID, hits); err != nil {
				return err
			}
		}
	}

	return nil
}

// scanPages walks an aggregated table page by page so a workspace larger
// than one page is still swept in full; stopping at the first page would
// be a silent cap.
func scanPages[T any](ctx context.Context, list func(ctx context.Context, limit, offset int) ([]T, int, error), visit func(T) error) error {
	offset := 0
	for {
		items, total, err := list(ctx, listPageSize, offset)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := visit(item); err != nil {
				return err
			}
		}
		offset += len(items)
		if len(items) == 0 || offset >= total {
			return nil
		}
	}
}

func (d *Dispatcher) record(ctx context.Context, searchID uuid.UUID, refType domainsearch.RefType, refKey uuid.UUID, hits *int) error {
	if _, err := d.searches.AddResult(ctx, domainsearch.Result{UUID: uuid.New(), Search: searchID, RefType: refType, RefKey: refKey}); err != nil {
		return err
	}
	*hits++
	return nil
}

// matches marshals row to JSON and reports whether any of its top-level
// string fields contains term, case-insensitively. gjson.ParseBytes keeps
// this generic across every aggregated/raw row shape without a dedicated
// field list per kind.
func matches(row interface{}, term string) bool {
	b, err := json.Marshal(row)
	if err != nil {
		return false
	}
	found := false
	gjson.ParseBytes(b).ForEach(func(_, value gjson.Result) bool {
		if value.Type == gjson.String && strings.Contains(strings.ToLower(value.String()), term) {
			found = true
			return false
		}
		return true
	})
	return found
}

// Descriptor advertises this component for the /system/descriptors inventory.
func (d *Dispatcher) Descriptor() core.Descriptor {
	return core.Descriptor{Name: "search", Domain: "search", Layer: core.LayerAggregation}.
		WithCapabilities("start", "results")
}
