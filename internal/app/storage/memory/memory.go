// Package memory is the in-memory implementation of every interface in
// internal/app/storage, used for tests and small deployments: a single
// struct guarded by one RWMutex, one map per table, copying on the way in
// and out so callers never observe or corrupt another caller's view.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/domain/attack"
	"github.com/kraken-ng/kraken/internal/app/domain/domainentity"
	"github.com/kraken-ng/kraken/internal/app/domain/finding"
	"github.com/kraken-ng/kraken/internal/app/domain/host"
	"github.com/kraken-ng/kraken/internal/app/domain/httpservice"
	"github.com/kraken-ng/kraken/internal/app/domain/port"
	"github.com/kraken-ng/kraken/internal/app/domain/provenance"
	"github.com/kraken-ng/kraken/internal/app/domain/rawresult"
	"github.com/kraken-ng/kraken/internal/app/domain/search"
	"github.com/kraken-ng/kraken/internal/app/domain/service"
	"github.com/kraken-ng/kraken/internal/app/domain/tag"
	"github.com/kraken-ng/kraken/internal/app/domain/user"
	"github.com/kraken-ng/kraken/internal/app/domain/workspace"
)

// Memory is a thread-safe in-memory persistence layer implementing every
// storage interface. Deliberately simple: no indexes beyond Go maps, no
// query planner, linear scans for natural-key lookups.
type Memory struct {
	mu sync.RWMutex

	workspaces map[uuid.UUID]workspace.Workspace
	members    map[uuid.UUID][]workspace.Member
	users      map[uuid.UUID]user.User

	hosts        map[uuid.UUID]host.Host
	ports        map[uuid.UUID]port.Port
	services     map[uuid.UUID]service.Service
	httpServices map[uuid.UUID]httpservice.HttpService
	domains      map[uuid.UUID]domainentity.Domain
	domainDomain map[uuid.UUID]domainentity.DomainDomainRelation
	domainHost   map[uuid.UUID]domainentity.DomainHostRelation

	attacks map[uuid.UUID]attack.Attack

	bruteforce   map[uuid.UUID]rawresult.BruteforceSubdomains
	tcpPortScan  map[uuid.UUID]rawresult.TCPPortScan
	hostAlive    map[uuid.UUID]rawresult.HostAlive
	svcDetect    map[uuid.UUID]rawresult.ServiceDetection
	certTrans    map[uuid.UUID]rawresult.CertificateTransparency
	osDetect     map[uuid.UUID]rawresult.OSDetection
	testSSL      map[uuid.UUID]rawresult.TestSSL
	dehashed     map[uuid.UUID]rawresult.DehashedEntry
	dnsTxtScan   map[uuid.UUID]rawresult.DnsTxtScan
	svcHintEntry map[uuid.UUID]rawresult.ServiceHintEntry
	spfEntry     map[uuid.UUID]rawresult.SpfEntry

	manualHost    map[uuid.UUID]rawresult.ManualHost
	manualPort    map[uuid.UUID]rawresult.ManualPort
	manualService map[uuid.UUID]rawresult.ManualService
	manualDomain  map[uuid.UUID]rawresult.ManualDomain
	manualHTTP    map[uuid.UUID]rawresult.ManualHttpService

	provenance map[provenance.Key]provenance.Source

	definitions map[uuid.UUID]finding.Definition
	categories  map[uuid.UUID]finding.Category
	defCategory map[uuid.UUID][]uuid.UUID // definition -> categories
	findings    map[uuid.UUID]finding.Finding
	affected    map[uuid.UUID][]finding.Affected // finding -> affected
	factory     map[string]finding.FactoryEntry

	searches    map[uuid.UUID]search.Search
	searchRes   map[uuid.UUID][]search.Result

	globalTags map[uuid.UUID]tag.GlobalTag
	wsTags     map[uuid.UUID]tag.WorkspaceTag

	workspaceNotes map[uuid.UUID]string
	defFields      map[uuid.UUID]map[string]string
}

// New creates an empty in-memory store.
func New() *Memory {
	return &Memory{
		workspaces:   make(map[uuid.UUID]workspace.Workspace),
		members:      make(map[uuid.UUID][]workspace.Member),
		users:        make(map[uuid.UUID]user.User),
		hosts:        make(map[uuid.UUID]host.Host),
		ports:        make(map[uuid.UUID]port.Port),
		services:     make(map[uuid.UUID]service.Service),
		httpServices: make(map[uuid.UUID]httpservice.HttpService),
		domains:      make(map[uuid.UUID]domainentity.Domain),
		domainDomain: make(map[uuid.UUID]domainentity.DomainDomainRelation),
		domainHost:   make(map[uuid.UUID]domainentity.DomainHostRelation),
		attacks:      make(map[uuid.UUID]attack.Attack),
		bruteforce:   make(map[uuid.UUID]rawresult.BruteforceSubdomains),
		tcpPortScan:  make(map[uuid.UUID]rawresult.TCPPortScan),
		hostAlive:    make(map[uuid.UUID]rawresult.HostAlive),
		svcDetect:    make(map[uuid.UUID]rawresult.ServiceDetection),
		certTrans:    make(map[uuid.UUID]rawresult.CertificateTransparency),
		osDetect:     make(map[uuid.UUID]rawresult.OSDetection),
		testSSL:      make(map[uuid.UUID]rawresult.TestSSL),
		dehashed:     make(map[uuid.UUID]rawresult.DehashedEntry),
		dnsTxtScan:   make(map[uuid.UUID]rawresult.DnsTxtScan),
		svcHintEntry: make(map[uuid.UUID]rawresult.ServiceHintEntry),
		spfEntry:     make(map[uuid.UUID]rawresult.SpfEntry),
		manualHost:    make(map[uuid.UUID]rawresult.ManualHost),
		manualPort:    make(map[uuid.UUID]rawresult.ManualPort),
		manualService: make(map[uuid.UUID]rawresult.ManualService),
		manualDomain:  make(map[uuid.UUID]rawresult.ManualDomain),
		manualHTTP:    make(map[uuid.UUID]rawresult.ManualHttpService),
		provenance:    make(map[provenance.Key]provenance.Source),
		definitions:   make(map[uuid.UUID]finding.Definition),
		categories:    make(map[uuid.UUID]finding.Category),
		defCategory:   make(map[uuid.UUID][]uuid.UUID),
		findings:      make(map[uuid.UUID]finding.Finding),
		affected:      make(map[uuid.UUID][]finding.Affected),
		factory:       make(map[string]finding.FactoryEntry),
		searches:      make(map[uuid.UUID]search.Search),
		searchRes:     make(map[uuid.UUID][]search.Result),
		globalTags:    make(map[uuid.UUID]tag.GlobalTag),
		wsTags:        make(map[uuid.UUID]tag.WorkspaceTag),
		workspaceNotes: make(map[uuid.UUID]string),
		defFields:      make(map[uuid.UUID]map[string]string),
	}
}

// WithTx runs fn directly: the in-memory backend has no partial-write
// visibility to roll back, and mutation is already guarded by the
// aggregator's per-workspace lock.
func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
