// Package storage declares the persistence contracts every aggregated,
// raw-result, and supporting table is accessed through. Two
// implementations exist: an in-memory one (storage/memory) for tests and
// small deployments, and a postgres one (storage/postgres) for
// production.
package storage

import (
	"context"
	"time"

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

// WorkspaceStore persists workspaces and their membership.
type WorkspaceStore interface {
	CreateWorkspace(ctx context.Context, ws workspace.Workspace) (workspace.Workspace, error)
	GetWorkspace(ctx context.Context, id uuid.UUID) (workspace.Workspace, error)
	ListWorkspaces(ctx context.Context, member uuid.UUID) ([]workspace.Workspace, error)
	DeleteWorkspace(ctx context.Context, id uuid.UUID) error
	AddMember(ctx context.Context, m workspace.Member) error
	IsMember(ctx context.Context, ws, userID uuid.UUID) (bool, error)
}

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
}

// HostStore persists the aggregated Host entity.
type HostStore interface {
	UpsertHost(ctx context.Context, h host.Host) (host.Host, error)
	GetHost(ctx context.Context, ws, id uuid.UUID) (host.Host, error)
	FindHostByIP(ctx context.Context, ws uuid.UUID, ip string) (host.Host, bool, error)
	ListHosts(ctx context.Context, ws uuid.UUID, limit, offset int) ([]host.Host, int, error)
	DeleteHost(ctx context.Context, ws, id uuid.UUID) error
}

// PortStore persists the aggregated Port entity.
type PortStore interface {
	UpsertPort(ctx context.Context, p port.Port) (port.Port, error)
	GetPort(ctx context.Context, ws, id uuid.UUID) (port.Port, error)
	FindPort(ctx context.Context, key port.NaturalKey) (port.Port, bool, error)
	ListPorts(ctx context.Context, ws uuid.UUID, limit, offset int) ([]port.Port, int, error)
	DeletePort(ctx context.Context, ws, id uuid.UUID) error
}

// ServiceStore persists the aggregated Service entity.
type ServiceStore interface {
	UpsertService(ctx context.Context, s service.Service) (service.Service, error)
	GetService(ctx context.Context, ws, id uuid.UUID) (service.Service, error)
	FindService(ctx context.Context, key service.NaturalKey) (service.Service, bool, error)
	ListServices(ctx context.Context, ws uuid.UUID, limit, offset int) ([]service.Service, int, error)
	DeleteService(ctx context.Context, ws, id uuid.UUID) error
}

// HttpServiceStore persists the aggregated HttpService entity.
type HttpServiceStore interface {
	UpsertHttpService(ctx context.Context, s httpservice.HttpService) (httpservice.HttpService, error)
	GetHttpService(ctx context.Context, ws, id uuid.UUID) (httpservice.HttpService, error)
	FindHttpService(ctx context.Context, key httpservice.NaturalKey) (httpservice.HttpService, bool, error)
	ListHttpServices(ctx context.Context, ws uuid.UUID, limit, offset int) ([]httpservice.HttpService, int, error)
	DeleteHttpService(ctx context.Context, ws, id uuid.UUID) error
}

// DomainStore persists the aggregated Domain entity and its relations.
type DomainStore interface {
	UpsertDomain(ctx context.Context, d domainentity.Domain) (domainentity.Domain, error)
	GetDomain(ctx context.Context, ws, id uuid.UUID) (domainentity.Domain, error)
	FindDomainByName(ctx context.Context, ws uuid.UUID, name string) (domainentity.Domain, bool, error)
	ListDomains(ctx context.Context, ws uuid.UUID, limit, offset int) ([]domainentity.Domain, int, error)
	DeleteDomain(ctx context.Context, ws, id uuid.UUID) error

	UpsertDomainDomainRelation(ctx context.Context, r domainentity.DomainDomainRelation) (domainentity.DomainDomainRelation, error)
	UpsertDomainHostRelation(ctx context.Context, r domainentity.DomainHostRelation) (domainentity.DomainHostRelation, error)
	FindDirectDomainHostRelations(ctx context.Context, ws, destination uuid.UUID) ([]domainentity.DomainHostRelation, error)
	ListDomainHostRelations(ctx context.Context, ws, domain uuid.UUID) ([]domainentity.DomainHostRelation, error)
	FindDomainDomainSources(ctx context.Context, ws, destination uuid.UUID) ([]domainentity.DomainDomainRelation, error)
}

// TagStore persists global and workspace tags and their M2M links.
type TagStore interface {
	CreateGlobalTag(ctx context.Context, t tag.GlobalTag) (tag.GlobalTag, error)
	CreateWorkspaceTag(ctx context.Context, t tag.WorkspaceTag) (tag.WorkspaceTag, error)
	AttachGlobalTag(ctx context.Context, tagID, entity uuid.UUID, table provenance.Table) error
	AttachWorkspaceTag(ctx context.Context, tagID, entity uuid.UUID, table provenance.Table) error
}

// AttackStore persists Attack lifecycle rows.
type AttackStore interface {
	CreateAttack(ctx context.Context, a attack.Attack) (attack.Attack, error)
	GetAttack(ctx context.Context, ws, id uuid.UUID) (attack.Attack, error)
	ListAttacks(ctx context.Context, ws uuid.UUID, limit, offset int) ([]attack.Attack, int, error)
	FinishAttack(ctx context.Context, id uuid.UUID, finishedAt time.Time, errMsg string) error
	DeleteAttack(ctx context.Context, ws, id uuid.UUID) error
}

// RawResultStore persists the one-row-per-kind raw result tables.
type RawResultStore interface {
	InsertBruteforceSubdomains(ctx context.Context, r rawresult.BruteforceSubdomains) (rawresult.BruteforceSubdomains, error)
	InsertTCPPortScan(ctx context.Context, r rawresult.TCPPortScan) (rawresult.TCPPortScan, error)
	InsertHostAlive(ctx context.Context, r rawresult.HostAlive) (rawresult.HostAlive, error)
	InsertServiceDetection(ctx context.Context, r rawresult.ServiceDetection) (rawresult.ServiceDetection, error)
	InsertCertificateTransparency(ctx context.Context, r rawresult.CertificateTransparency) (rawresult.CertificateTransparency, error)
	InsertOSDetection(ctx context.Context, r rawresult.OSDetection) (rawresult.OSDetection, error)
	InsertTestSSL(ctx context.Context, r rawresult.TestSSL) (rawresult.TestSSL, error)
	InsertDehashedEntry(ctx context.Context, r rawresult.DehashedEntry) (rawresult.DehashedEntry, error)

	InsertDnsTxtScan(ctx context.Context, r rawresult.DnsTxtScan) (rawresult.DnsTxtScan, error)
	InsertServiceHintEntry(ctx context.Context, e rawresult.ServiceHintEntry) (rawresult.ServiceHintEntry, error)
	InsertSpfEntry(ctx context.Context, e rawresult.SpfEntry) (rawresult.SpfEntry, error)

	InsertManualHost(ctx context.Context, r rawresult.ManualHost) (rawresult.ManualHost, error)
	InsertManualPort(ctx context.Context, r rawresult.ManualPort) (rawresult.ManualPort, error)
	InsertManualService(ctx context.Context, r rawresult.ManualService) (rawresult.ManualService, error)
	InsertManualDomain(ctx context.Context, r rawresult.ManualDomain) (rawresult.ManualDomain, error)
	InsertManualHttpService(ctx context.Context, r rawresult.ManualHttpService) (rawresult.ManualHttpService, error)

	// ListDehashedEntries and ListTestSSL back the search scatter's sweep
	// of raw-result tables; both are scoped to a workspace via the
	// owning Attack row since neither raw table carries its own workspace
	// column.
	ListDehashedEntries(ctx context.Context, ws uuid.UUID) ([]rawresult.DehashedEntry, error)
	ListTestSSL(ctx context.Context, ws uuid.UUID) ([]rawresult.TestSSL, error)
}

// ProvenanceStore persists AggregationSource rows and serves the simple/
// full provenance queries used by list and drill-down views.
type ProvenanceStore interface {
	RecordSource(ctx context.Context, s provenance.Source) (provenance.Source, error)
	Simple(ctx context.Context, ws uuid.UUID, table provenance.Table, ids []uuid.UUID) (map[uuid.UUID]provenance.CountsBySource, error)
	Full(ctx context.Context, ws uuid.UUID, table provenance.Table, id uuid.UUID) ([]provenance.Source, error)

	// ResolveSourceAttack maps a raw source row back to its originating
	// attack; manual rows have none. GetRawPayload rehydrates the typed
	// raw row a source points at. Both back the full() drill-down's
	// per-attack grouping.
	ResolveSourceAttack(ctx context.Context, sourceType provenance.SourceType, sourceUUID uuid.UUID) (uuid.UUID, bool, error)
	GetRawPayload(ctx context.Context, sourceType provenance.SourceType, sourceUUID uuid.UUID) (interface{}, error)
}

// FindingStore persists findings, their affected-entity rows, definitions
// and the factory's identifier map.
type FindingStore interface {
	GetFactoryEntry(ctx context.Context, identifier string) (finding.FactoryEntry, bool, error)
	FindFindingByDefinition(ctx context.Context, ws, definition uuid.UUID) (finding.Finding, bool, error)
	CreateFinding(ctx context.Context, f finding.Finding) (finding.Finding, error)
	ListAffected(ctx context.Context, findingID uuid.UUID) ([]finding.Affected, error)
	CreateAffected(ctx context.Context, a finding.Affected) (finding.Affected, error)
	ListDefinitionCategories(ctx context.Context, definition uuid.UUID) ([]finding.Category, error)
	CopyFindingCategories(ctx context.Context, findingID uuid.UUID, categories []finding.Category) error
}

// SearchStore persists search jobs and their scattered result rows.
type SearchStore interface {
	CreateSearch(ctx context.Context, s search.Search) (search.Search, error)
	GetSearch(ctx context.Context, ws, id uuid.UUID) (search.Search, error)
	FinishSearch(ctx context.Context, id uuid.UUID, finishedAt time.Time, errMsg string) error
	AddResult(ctx context.Context, r search.Result) (search.Result, error)
	ListResults(ctx context.Context, searchID uuid.UUID, limit, offset int) ([]search.Result, int, error)
}

// EditorCacheStore is the storage surface the write-behind editor cache
// flushes to; one field per editable long-text column.
type EditorCacheStore interface {
	AppendWorkspaceNotes(ctx context.Context, ws uuid.UUID, notes string) error
	GetWorkspaceNotes(ctx context.Context, ws uuid.UUID) (string, bool, error)

	UpdateDefinitionField(ctx context.Context, definition uuid.UUID, field string, value string) error
	GetDefinitionField(ctx context.Context, definition uuid.UUID, field string) (string, bool, error)
}
