// Package app wires the core components into one Application value: an
// immutable context threaded through handlers instead of a process-wide
// singleton. Tests may construct alternative Applications against
// in-memory stores.
package app

import (
	"context"
	"fmt"

	"github.com/kraken-ng/kraken/internal/app/aggregator"
	"github.com/kraken-ng/kraken/internal/app/attackctl"
	"github.com/kraken-ng/kraken/internal/app/editorcache"
	"github.com/kraken-ng/kraken/internal/app/manual"
	"github.com/kraken-ng/kraken/internal/app/metrics"
	"github.com/kraken-ng/kraken/internal/app/oauthsrv"
	"github.com/kraken-ng/kraken/internal/app/rpc"
	"github.com/kraken-ng/kraken/internal/app/sink"
	"github.com/kraken-ng/kraken/internal/app/storage"
	"github.com/kraken-ng/kraken/internal/app/storage/memory"
	"github.com/kraken-ng/kraken/internal/app/system"
	"github.com/kraken-ng/kraken/internal/app/ws"
	"github.com/kraken-ng/kraken/pkg/logger"

	core "github.com/kraken-ng/kraken/internal/app/core/service"
	findingfactory "github.com/kraken-ng/kraken/internal/app/finding"
	provrecorder "github.com/kraken-ng/kraken/internal/app/provenance"
	searchsvc "github.com/kraken-ng/kraken/internal/app/search"
)

// Stores encapsulates persistence dependencies. Nil stores default to one
// shared in-memory implementation.
type Stores struct {
	DB         storage.Database
	Workspaces storage.WorkspaceStore
	Users      storage.UserStore
	Hosts      storage.HostStore
	Ports      storage.PortStore
	Services   storage.ServiceStore
	HttpSvcs   storage.HttpServiceStore
	Domains    storage.DomainStore
	Tags       storage.TagStore
	Attacks    storage.AttackStore
	Raw        storage.RawResultStore
	Provenance storage.ProvenanceStore
	Findings   storage.FindingStore
	Searches   storage.SearchStore
	Editor     storage.EditorCacheStore
}

func (s *Stores) applyDefaults(mem *memory.Memory) {
	if s == nil || mem == nil {
		return
	}
	if s.DB == nil {
		s.DB = mem
	}
	if s.Workspaces == nil {
		s.Workspaces = mem
	}
	if s.Users == nil {
		s.Users = mem
	}
	if s.Hosts == nil {
		s.Hosts = mem
	}
	if s.Ports == nil {
		s.Ports = mem
	}
	if s.Services == nil {
		s.Services = mem
	}
	if s.HttpSvcs == nil {
		s.HttpSvcs = mem
	}
	if s.Domains == nil {
		s.Domains = mem
	}
	if s.Tags == nil {
		s.Tags = mem
	}
	if s.Attacks == nil {
		s.Attacks = mem
	}
	if s.Raw == nil {
		s.Raw = mem
	}
	if s.Provenance == nil {
		s.Provenance = mem
	}
	if s.Findings == nil {
		s.Findings = mem
	}
	if s.Searches == nil {
		s.Searches = mem
	}
	if s.Editor == nil {
		s.Editor = mem
	}
}

type builderConfig struct {
	notifier        ws.Notifier
	locker          aggregator.Locker
	tracer          core.Tracer
	spillDir        string
	sessionKey      []byte
	dehashedQuerier rpc.DehashedQuerier
	dehashedRPS     float64
	dehashedBurst   int
}

// Option customises the application wiring.
type Option func(*builderConfig)

// WithNotifier injects the live WS push surface. Defaults to a noop.
func WithNotifier(n ws.Notifier) Option {
	return func(b *builderConfig) {
		if n != nil {
			b.notifier = n
		}
	}
}

// WithLocker overrides the per-workspace write lock, e.g. the postgres
// advisory-lock variant for multi-process deployments.
func WithLocker(l aggregator.Locker) Option {
	return func(b *builderConfig) {
		if l != nil {
			b.locker = l
		}
	}
}

// WithTracer instruments dispatch/stream/upsert spans.
func WithTracer(t core.Tracer) Option {
	return func(b *builderConfig) {
		if t != nil {
			b.tracer = t
		}
	}
}

// WithSpillDir sets the editor-cache spill directory.
func WithSpillDir(dir string) Option {
	return func(b *builderConfig) { b.spillDir = dir }
}

// WithSessionKey enables the OAuth token server, deriving its signing key
// from the configured session key.
func WithSessionKey(key []byte) Option {
	return func(b *builderConfig) { b.sessionKey = key }
}

// WithDehashed wires the rate-limited dehashed dispatcher.
func WithDehashed(q rpc.DehashedQuerier, rps float64, burst int) Option {
	return func(b *builderConfig) {
		b.dehashedQuerier = q
		b.dehashedRPS = rps
		b.dehashedBurst = burst
	}
}

// Application ties the core components together and manages the
// lifecycle of the ones owning background tasks.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Aggregator *aggregator.Aggregator
	Provenance *provrecorder.Recorder
	Sink       *sink.Sink
	Attacks    *attackctl.Controller
	Findings   *findingfactory.Factory
	Manual     *manual.Inserter
	Search     *searchsvc.Dispatcher
	Pool       *rpc.Pool
	Dehashed   *rpc.DehashedDispatcher
	OAuth      *oauthsrv.Server

	Notes            *editorcache.Cache
	DefinitionFields map[string]*editorcache.Cache

	Stores Stores
}

// New builds a fully wired application with the provided stores.
func New(stores Stores, log *logger.Logger, opts ...Option) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	cfg := builderConfig{
		notifier:      ws.NoopNotifier{},
		locker:        aggregator.NewMapLocker(),
		tracer:        core.NoopTracer,
		dehashedRPS:   5,
		dehashedBurst: 5,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	mem := memory.New()
	stores.applyDefaults(mem)

	manager := system.NewManager()

	agg := aggregator.New(stores.Hosts, stores.Ports, stores.Services, stores.HttpSvcs, stores.Domains, cfg.locker, log)
	agg.SetTracer(cfg.tracer)
	prov := provrecorder.New(stores.Provenance, log).WithAttackStore(stores.Attacks)
	factory := findingfactory.New(stores.Findings, stores.DB, log)
	snk := sink.New(agg, prov, stores.Raw, stores.Domains, stores.Hosts, stores.DB, factory, cfg.notifier, log)
	snk.SetTracer(cfg.tracer)

	pool := rpc.NewPool()
	attacks := attackctl.New(stores.Attacks, stores.Hosts, stores.Ports, pool, snk, cfg.notifier, log)
	attacks.SetTracer(cfg.tracer)

	searchDispatcher := searchsvc.New(stores.Searches, stores.Hosts, stores.Ports, stores.Services, stores.HttpSvcs, stores.Domains, stores.Raw, cfg.notifier, log)
	searchDispatcher.SetTracer(cfg.tracer)
	searchDispatcher.SetObservationHooks(metrics.SearchHooks())

	manualInserter := manual.New(agg, prov, stores.Raw, stores.DB, log)

	notes := editorcache.New("workspace-notes", editorcache.NewNotesBackend(stores.Editor), cfg.spillDir, log)
	defFields := editorcache.NewDefinitionFieldCaches(stores.Editor, cfg.spillDir)

	dehashed := rpc.NewDehashedDispatcher(cfg.dehashedQuerier, cfg.dehashedRPS, cfg.dehashedBurst, 16, log)

	var oauth *oauthsrv.Server
	if len(cfg.sessionKey) > 0 {
		var err error
		oauth, err = oauthsrv.New(cfg.sessionKey, log)
		if err != nil {
			return nil, fmt.Errorf("initialise oauth server: %w", err)
		}
	}

	// Every component with its own flush loop or drain worker goes under
	// lifecycle management; request-driven components do not.
	services := []system.Service{notes, dehashed}
	for _, c := range defFields {
		services = append(services, c)
	}
	for _, svc := range services {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	for _, dp := range []system.DescriptorProvider{agg, prov, factory, manualInserter, searchDispatcher, notes} {
		manager.RegisterDescriptor(dp)
	}

	return &Application{
		manager:          manager,
		log:              log,
		Aggregator:       agg,
		Provenance:       prov,
		Sink:             snk,
		Attacks:          attacks,
		Findings:         factory,
		Manual:           manualInserter,
		Search:           searchDispatcher,
		Pool:             pool,
		Dehashed:         dehashed,
		OAuth:            oauth,
		Notes:            notes,
		DefinitionFields: defFields,
		Stores:           stores,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(svc system.Service) error {
	return a.manager.Register(svc)
}

// Start begins every registered background service.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop drains in-flight attack streams and the search dispatcher, then
// stops the managed background services.
func (a *Application) Stop(ctx context.Context) error {
	if err := a.Attacks.Stop(ctx); err != nil {
		a.log.WithField("error", err).Warn("attack controller drain interrupted")
	}
	if err := a.Search.Stop(ctx); err != nil {
		a.log.WithField("error", err).Warn("search dispatcher drain interrupted")
	}
	return a.manager.Stop(ctx)
}

// Descriptors returns the advertised component inventory.
func (a *Application) Descriptors() []core.Descriptor {
	return a.manager.Descriptors()
}
