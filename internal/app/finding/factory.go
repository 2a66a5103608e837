// Package finding implements the finding factory: a buffered API that
// accumulates (entity, kind, identifier) triples and, on Process,
// resolves each identifier to a definition and idempotently creates
// Finding/Affected rows. The dedup unit is "per existing finding, not
// per definition": a second manually-created finding for the same
// definition gets its own independent set of affected rows.
package finding

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	core "github.com/kraken-ng/kraken/internal/app/core/service"
	"github.com/kraken-ng/kraken/internal/app/domain/finding"
	"github.com/kraken-ng/kraken/internal/app/storage"
	"github.com/kraken-ng/kraken/pkg/logger"
)

// toolDetailsAutoGenerated marks a synthesized FindingDetails row as
// factory-created rather than operator-written.
const toolDetailsAutoGenerated = "Auto generated by kraken™"

// entry is one accumulated (entity, kind, identifier) triple.
type entry struct {
	Entity     uuid.UUID
	Kind       finding.EntityKind
	Identifier string
}

// Factory buffers entries per workspace and commits them transactionally.
type Factory struct {
	mu      sync.Mutex
	pending map[uuid.UUID][]entry

	store storage.FindingStore
	db    storage.Database
	log   *logger.Logger
}

// New constructs a Factory. log may be nil.
func New(store storage.FindingStore, db storage.Database, log *logger.Logger) *Factory {
	if log == nil {
		log = logger.NewDefault("finding-factory")
	}
	return &Factory{pending: make(map[uuid.UUID][]entry), store: store, db: db, log: log}
}

// Add accumulates one (entity, kind, identifier) triple for workspace.
// Safe for concurrent callers.
func (f *Factory) Add(ws, entityUUID uuid.UUID, kind finding.EntityKind, identifier string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[ws] = append(f.pending[ws], entry{Entity: entityUUID, Kind: kind, Identifier: identifier})
}

// Process drains and commits every entry accumulated for workspace ws.
// Idempotent across repeated invocations with the same accumulated set:
// a second Process for the same entries adds no rows.
func (f *Factory) Process(ctx context.Context, ws uuid.UUID) error {
	ctx, end := core.NoopTracer.StartSpan(ctx, "finding.Process")
	var err error
	defer func() { end(err) }()

	f.mu.Lock()
	batch := f.pending[ws]
	delete(f.pending, ws)
	f.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	err = f.db.WithTx(ctx, func(ctx context.Context) error {
		for _, e := range batch {
			def, found, ferr := f.store.GetFactoryEntry(ctx, e.Identifier)
			if ferr != nil {
				return ferr
			}
			// An unmapped identifier is a silent no-op.
			if !found || def.Definition == nil {
				continue
			}
			definitionID := *def.Definition

			existingFinding, hasFinding, ferr := f.store.FindFindingByDefinition(ctx, ws, definitionID)
			if ferr != nil {
				return ferr
			}

			var fnd finding.Finding
			if hasFinding {
				fnd = existingFinding
			} else {
				fnd, ferr = f.store.CreateFinding(ctx, finding.Finding{
					UUID:        uuid.New(),
					Workspace:   ws,
					Definition:  definitionID,
					ToolDetails: toolDetailsAutoGenerated,
					CreatedAt:   time.Now().UTC(),
				})
				if ferr != nil {
					return ferr
				}
				categories, cerr := f.store.ListDefinitionCategories(ctx, definitionID)
				if cerr != nil {
					return cerr
				}
				if cerr := f.store.CopyFindingCategories(ctx, fnd.UUID, categories); cerr != nil {
					return cerr
				}
			}

			already, ferr := f.store.ListAffected(ctx, fnd.UUID)
			if ferr != nil {
				return ferr
			}
			if hasAffected(already, e.Entity, e.Kind) {
				continue
			}
			if _, ferr := f.store.CreateAffected(ctx, finding.Affected{
				UUID:      uuid.New(),
				Finding:   fnd.UUID,
				Entity:    e.Entity,
				Kind:      e.Kind,
				CreatedAt: time.Now().UTC(),
			}); ferr != nil {
				return ferr
			}
		}
		return nil
	})
	return err
}

func hasAffected(affected []finding.Affected, entity uuid.UUID, kind finding.EntityKind) bool {
	for _, a := range affected {
		if a.Entity == entity && a.Kind == kind {
			return true
		}
	}
	return false
}

// Descriptor advertises this component for the /system/descriptors inventory.
func (f *Factory) Descriptor() core.Descriptor {
	return core.Descriptor{Name: "finding-factory", Domain: "findings", Layer: core.LayerAggregation}.
		WithCapabilities("add", "process")
}
