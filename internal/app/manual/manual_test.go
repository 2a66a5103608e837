package manual

import (
	"context"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraken-ng/kraken/internal/app/aggregator"
	"github.com/kraken-ng/kraken/internal/app/domain/host"
	"github.com/kraken-ng/kraken/internal/app/domain/port"
	"github.com/kraken-ng/kraken/internal/app/domain/provenance"
	"github.com/kraken-ng/kraken/internal/app/domain/rawresult"
	"github.com/kraken-ng/kraken/internal/app/storage/memory"

	provrecorder "github.com/kraken-ng/kraken/internal/app/provenance"
)

func newTestInserter(t *testing.T) (*Inserter, *memory.Memory) {
	t.Helper()
	mem := memory.New()
	agg := aggregator.New(mem, mem, mem, mem, mem, aggregator.NewMapLocker(), nil)
	return New(agg, provrecorder.New(mem, nil), mem, mem, nil), mem
}

func TestHost_ProvenanceMatchesAutomatedShape(t *testing.T) {
	ins, mem := newTestInserter(t)
	ctx := context.Background()
	ws := uuid.New()

	id, err := ins.Host(ctx, ws, uuid.New(), rawresult.ManualHost{
		UUID:      uuid.New(),
		Workspace: ws,
		IPAddress: net.ParseIP("203.0.113.7"),
		Certainty: host.SupposedTo,
	})
	require.NoError(t, err)

	h, err := mem.GetHost(ctx, ws, id)
	require.NoError(t, err)
	assert.Equal(t, host.SupposedTo, h.Certainty)

	counts, err := mem.Simple(ctx, ws, provenance.TableHost, []uuid.UUID{id})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[id][provenance.SourceManualHost],
		"manual insertion is a first-class raw source")
}

// A manual SupposedTo host later verified by
// host-alive keeps one row; here the manual path merges onto an existing
// Verified row without downgrading it.
func TestHost_NeverDowngradesCertainty(t *testing.T) {
	ins, mem := newTestInserter(t)
	ctx := context.Background()
	ws := uuid.New()

	agg := aggregator.New(mem, mem, mem, mem, mem, aggregator.NewMapLocker(), nil)
	verified, err := agg.AggregateHost(ctx, ws, net.ParseIP("203.0.113.7"), host.Verified)
	require.NoError(t, err)

	id, err := ins.Host(ctx, ws, uuid.New(), rawresult.ManualHost{
		UUID: uuid.New(), Workspace: ws, IPAddress: net.ParseIP("203.0.113.7"), Certainty: host.SupposedTo,
	})
	require.NoError(t, err)
	assert.Equal(t, verified, id)

	h, err := mem.GetHost(ctx, ws, id)
	require.NoError(t, err)
	assert.Equal(t, host.Verified, h.Certainty)
}

func TestPort_AggregatesHostAndPort(t *testing.T) {
	ins, mem := newTestInserter(t)
	ctx := context.Background()
	ws := uuid.New()

	portID, err := ins.Port(ctx, ws, uuid.New(), rawresult.ManualPort{
		UUID:      uuid.New(),
		Workspace: ws,
		Host:      net.ParseIP("203.0.113.7"),
		Number:    443,
		Transport: port.TCP,
		Certainty: port.Verified,
	})
	require.NoError(t, err)

	h, found, err := mem.FindHostByIP(ctx, ws, "203.0.113.7")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, host.SupposedTo, h.Certainty, "the implied host is only SupposedTo")

	p, err := mem.GetPort(ctx, ws, portID)
	require.NoError(t, err)
	assert.Equal(t, uint16(443), p.Number)

	counts, err := mem.Simple(ctx, ws, provenance.TablePort, []uuid.UUID{portID})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[portID][provenance.SourceManualPort])
}

func TestDomain_Insert(t *testing.T) {
	ins, mem := newTestInserter(t)
	ctx := context.Background()
	ws := uuid.New()

	id, err := ins.Domain(ctx, ws, uuid.New(), rawresult.ManualDomain{
		UUID: uuid.New(), Workspace: ws, Name: "kraken.test",
	})
	require.NoError(t, err)

	d, err := mem.GetDomain(ctx, ws, id)
	require.NoError(t, err)
	assert.Equal(t, "kraken.test", d.Name)

	counts, err := mem.Simple(ctx, ws, provenance.TableDomain, []uuid.UUID{id})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[id][provenance.SourceManualDomain])
}

func TestReplay_ManualInsertIsIdempotentOnAggregates(t *testing.T) {
	ins, mem := newTestInserter(t)
	ctx := context.Background()
	ws := uuid.New()

	r := rawresult.ManualHost{
		UUID: uuid.New(), Workspace: ws, IPAddress: net.ParseIP("203.0.113.7"), Certainty: host.SupposedTo,
	}
	first, err := ins.Host(ctx, ws, uuid.New(), r)
	require.NoError(t, err)
	second, err := ins.Host(ctx, ws, uuid.New(), r)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, total, err := mem.ListHosts(ctx, ws, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
