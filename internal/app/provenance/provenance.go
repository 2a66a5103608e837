// Package provenance binds raw-result rows to aggregated
// entity rows via AggregationSource, and serve the simple/full read
// queries used by list and drill-down views.
package provenance

import (
	"context"
	"time"

	"github.com/google/uuid"

	core "github.com/kraken-ng/kraken/internal/app/core/service"
	"github.com/kraken-ng/kraken/internal/app/domain/attack"
	"github.com/kraken-ng/kraken/internal/app/domain/provenance"
	"github.com/kraken-ng/kraken/internal/app/storage"
	"github.com/kraken-ng/kraken/pkg/logger"
)

// Recorder records provenance links. It is always called immediately
// after an aggregator upsert within the same transaction (the sink owns
// the transaction boundary; Recorder itself performs no locking).
type Recorder struct {
	store   storage.ProvenanceStore
	attacks storage.AttackStore
	log     *logger.Logger
}

func New(store storage.ProvenanceStore, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.NewDefault("provenance")
	}
	return &Recorder{store: store, log: log}
}

// WithAttackStore wires the attack store Full uses to attach attack
// metadata to each per-attack source group; without it the groups carry
// the attack uuid only.
func (r *Recorder) WithAttackStore(attacks storage.AttackStore) *Recorder {
	r.attacks = attacks
	return r
}

// Record writes one (source row, aggregated row) provenance link. Callers
// write one row per aggregated row a result touches (e.g. a service
// detection writes one for Host, one for Port, one for Service).
func (r *Recorder) Record(ctx context.Context, ws uuid.UUID, sourceType provenance.SourceType, sourceUUID uuid.UUID, table provenance.Table, aggregatedUUID uuid.UUID) error {
	_, err := r.store.RecordSource(ctx, provenance.Source{
		UUID: uuid.New(), Workspace: ws, SourceType: sourceType, SourceUUID: sourceUUID,
		AggregatedTable: table, AggregatedUUID: aggregatedUUID, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		r.log.WithField("workspace", ws).WithField("table", table).WithField("aggregated", aggregatedUUID).
			Warn("failed to record provenance")
	}
	return err
}

// Simple summarizes source-type counts for a batch of aggregated rows,
// used by list views.
func (r *Recorder) Simple(ctx context.Context, ws uuid.UUID, table provenance.Table, ids []uuid.UUID) (map[uuid.UUID]provenance.CountsBySource, error) {
	return r.store.Simple(ctx, ws, table, ids)
}

// HydratedSource pairs one provenance link with its rehydrated raw
// payload.
type HydratedSource struct {
	Source  provenance.Source
	Payload interface{}
}

// AttackGroup is one attack's contribution to an aggregated row.
type AttackGroup struct {
	AttackUUID uuid.UUID
	Attack     *attack.Attack // nil when no attack store is wired
	Results    []HydratedSource
}

// FullResult groups an aggregated row's raw provenance into per-attack
// buckets plus the manual insertions, for drill-down display.
type FullResult struct {
	Attacks       []AttackGroup
	ManualInserts []HydratedSource
}

// Full returns the raw provenance for one aggregated row, grouped by
// originating attack and rehydrated with each source's typed payload.
func (r *Recorder) Full(ctx context.Context, ws uuid.UUID, table provenance.Table, id uuid.UUID) (FullResult, error) {
	sources, err := r.store.Full(ctx, ws, table, id)
	if err != nil {
		return FullResult{}, err
	}

	var out FullResult
	groups := make(map[uuid.UUID]int)
	for _, s := range sources {
		payload, perr := r.store.GetRawPayload(ctx, s.SourceType, s.SourceUUID)
		if perr != nil {
			// A source whose raw row is gone (cascaded attack delete
			// racing the read) is skipped, not fatal.
			r.log.WithField("source", s.SourceUUID).WithField("error", perr).Debug("provenance source has no raw row")
			continue
		}
		hydrated := HydratedSource{Source: s, Payload: payload}

		attackID, hasAttack, aerr := r.store.ResolveSourceAttack(ctx, s.SourceType, s.SourceUUID)
		if aerr != nil {
			return FullResult{}, aerr
		}
		if !hasAttack {
			out.ManualInserts = append(out.ManualInserts, hydrated)
			continue
		}
		idx, ok := groups[attackID]
		if !ok {
			group := AttackGroup{AttackUUID: attackID}
			if r.attacks != nil {
				if a, gerr := r.attacks.GetAttack(ctx, ws, attackID); gerr == nil {
					group.Attack = &a
				}
			}
			out.Attacks = append(out.Attacks, group)
			idx = len(out.Attacks) - 1
			groups[attackID] = idx
		}
		out.Attacks[idx].Results = append(out.Attacks[idx].Results, hydrated)
	}
	return out, nil
}

func (r *Recorder) Descriptor() core.Descriptor {
	return core.Descriptor{Name: "provenance", Domain: "result-aggregation", Layer: core.LayerAggregation}.
		WithCapabilities("record", "simple-query", "full-query")
}
