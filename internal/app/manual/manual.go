// Package manual implements user-driven insertion: one operation per
// aggregated kind that mirrors the result-sink's aggregation call but
// records the observation against a `Manual*` raw row instead of a probe
// result, so a human-entered fact is indistinguishable in provenance
// from an automated one.
package manual

import (
	"context"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/aggregator"
	core "github.com/kraken-ng/kraken/internal/app/core/service"
	"github.com/kraken-ng/kraken/internal/app/domain/domainentity"
	"github.com/kraken-ng/kraken/internal/app/domain/host"
	"github.com/kraken-ng/kraken/internal/app/domain/port"
	"github.com/kraken-ng/kraken/internal/app/domain/provenance"
	"github.com/kraken-ng/kraken/internal/app/domain/rawresult"
	provrecorder "github.com/kraken-ng/kraken/internal/app/provenance"
	"github.com/kraken-ng/kraken/internal/app/storage"
	"github.com/kraken-ng/kraken/pkg/logger"
)

// Inserter records a human-entered observation and drives the aggregator
// with it, exactly as the result sink does for probe output.
type Inserter struct {
	agg  *aggregator.Aggregator
	prov *provrecorder.Recorder
	raw  storage.RawResultStore
	db   storage.Database
	log  *logger.Logger
}

// New constructs an Inserter. log may be nil.
func New(agg *aggregator.Aggregator, prov *provrecorder.Recorder, raw storage.RawResultStore, db storage.Database, log *logger.Logger) *Inserter {
	if log == nil {
		log = logger.NewDefault("manual")
	}
	return &Inserter{agg: agg, prov: prov, raw: raw, db: db, log: log}
}

// Host records a manual host observation.
func (i *Inserter) Host(ctx context.Context, ws, user uuid.UUID, r rawresult.ManualHost) (uuid.UUID, error) {
	var id uuid.UUID
	err := i.db.WithTx(ctx, func(ctx context.Context) error {
		row, err := i.raw.InsertManualHost(ctx, r)
		if err != nil {
			return err
		}
		hostID, err := i.agg.AggregateHost(ctx, ws, row.IPAddress, row.Certainty)
		if err != nil {
			return err
		}
		id = hostID
		return i.prov.Record(ctx, ws, provenance.SourceManualHost, row.UUID, provenance.TableHost, hostID)
	})
	return id, err
}

// Port records a manual port observation, aggregating its host first.
func (i *Inserter) Port(ctx context.Context, ws, user uuid.UUID, r rawresult.ManualPort) (uuid.UUID, error) {
	var id uuid.UUID
	err := i.db.WithTx(ctx, func(ctx context.Context) error {
		row, err := i.raw.InsertManualPort(ctx, r)
		if err != nil {
			return err
		}
		hostID, err := i.agg.AggregateHost(ctx, ws, row.Host, host.SupposedTo)
		if err != nil {
			return err
		}
		if err := i.prov.Record(ctx, ws, provenance.SourceManualPort, row.UUID, provenance.TableHost, hostID); err != nil {
			return err
		}
		portID, err := i.agg.AggregatePort(ctx, ws, hostID, row.Number, row.Transport, row.Certainty)
		if err != nil {
			return err
		}
		id = portID
		return i.prov.Record(ctx, ws, provenance.SourceManualPort, row.UUID, provenance.TablePort, portID)
	})
	return id, err
}

// Service records a manual service observation, aggregating its host and
// (if given) port first.
func (i *Inserter) Service(ctx context.Context, ws, user uuid.UUID, r rawresult.ManualService) (uuid.UUID, error) {
	var id uuid.UUID
	err := i.db.WithTx(ctx, func(ctx context.Context) error {
		row, err := i.raw.InsertManualService(ctx, r)
		if err != nil {
			return err
		}
		hostID, err := i.agg.AggregateHost(ctx, ws, row.Host, host.SupposedTo)
		if err != nil {
			return err
		}
		if err := i.prov.Record(ctx, ws, provenance.SourceManualService, row.UUID, provenance.TableHost, hostID); err != nil {
			return err
		}

		var portID *uuid.UUID
		if row.Port != nil {
			pID, err := i.agg.AggregatePort(ctx, ws, hostID, *row.Port, port.TCP, port.SupposedTo)
			if err != nil {
				return err
			}
			if err := i.prov.Record(ctx, ws, provenance.SourceManualService, row.UUID, provenance.TablePort, pID); err != nil {
				return err
			}
			portID = &pID
		}

		svcID, err := i.agg.AggregateService(ctx, ws, hostID, portID, 0, row.Name, row.Certainty)
		if err != nil {
			return err
		}
		id = svcID
		return i.prov.Record(ctx, ws, provenance.SourceManualService, row.UUID, provenance.TableService, svcID)
	})
	return id, err
}

// Domain records a manual domain observation.
func (i *Inserter) Domain(ctx context.Context, ws, user uuid.UUID, r rawresult.ManualDomain) (uuid.UUID, error) {
	var id uuid.UUID
	err := i.db.WithTx(ctx, func(ctx context.Context) error {
		row, err := i.raw.InsertManualDomain(ctx, r)
		if err != nil {
			return err
		}
		domainID, err := i.agg.AggregateDomain(ctx, ws, row.Name, domainentity.Verified, user)
		if err != nil {
			return err
		}
		id = domainID
		return i.prov.Record(ctx, ws, provenance.SourceManualDomain, row.UUID, provenance.TableDomain, domainID)
	})
	return id, err
}

// HttpService records a manual HTTP service observation, aggregating its
// host, port, and (if given) domain first.
func (i *Inserter) HttpService(ctx context.Context, ws, user uuid.UUID, r rawresult.ManualHttpService) (uuid.UUID, error) {
	var id uuid.UUID
	err := i.db.WithTx(ctx, func(ctx context.Context) error {
		row, err := i.raw.InsertManualHttpService(ctx, r)
		if err != nil {
			return err
		}
		hostID, err := i.agg.AggregateHost(ctx, ws, row.Host, host.SupposedTo)
		if err != nil {
			return err
		}
		if err := i.prov.Record(ctx, ws, provenance.SourceManualHttpService, row.UUID, provenance.TableHost, hostID); err != nil {
			return err
		}
		portID, err := i.agg.AggregatePort(ctx, ws, hostID, row.Port, port.TCP, port.SupposedTo)
		if err != nil {
			return err
		}
		if err := i.prov.Record(ctx, ws, provenance.SourceManualHttpService, row.UUID, provenance.TablePort, portID); err != nil {
			return err
		}

		var domainID *uuid.UUID
		if row.Domain != "" {
			dID, err := i.agg.AggregateDomain(ctx, ws, row.Domain, domainentity.Unverified, user)
			if err != nil {
				return err
			}
			if err := i.prov.Record(ctx, ws, provenance.SourceManualHttpService, row.UUID, provenance.TableDomain, dID); err != nil {
				return err
			}
			domainID = &dID
		}

		httpID, err := i.agg.AggregateHttpService(ctx, ws, "", hostID, portID, domainID, row.BasePath, row.TLS, false)
		if err != nil {
			return err
		}
		id = httpID
		return i.prov.Record(ctx, ws, provenance.SourceManualHttpService, row.UUID, provenance.TableHttpService, httpID)
	})
	return id, err
}

// Descriptor advertises this component for the /system/descriptors inventory.
func (i *Inserter) Descriptor() core.Descriptor {
	return core.Descriptor{Name: "manual", Domain: "result-aggregation", Layer: core.LayerAggregation}.
		WithCapabilities("host", "port", "service", "http-service", "domain")
}
