package aggregator

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraken-ng/kraken/internal/app/domain/domainentity"
	"github.com/kraken-ng/kraken/internal/app/domain/host"
	"github.com/kraken-ng/kraken/internal/app/domain/port"
	"github.com/kraken-ng/kraken/internal/app/domain/service"
	"github.com/kraken-ng/kraken/internal/app/storage/memory"
)

func newTestAggregator(t *testing.T) (*Aggregator, *memory.Memory) {
	t.Helper()
	mem := memory.New()
	return New(mem, mem, mem, mem, mem, NewMapLocker(), nil), mem
}

func TestAggregateHost_UpsertByNaturalKey(t *testing.T) {
	agg, mem := newTestAggregator(t)
	ctx := context.Background()
	ws := uuid.New()

	first, err := agg.AggregateHost(ctx, ws, net.ParseIP("203.0.113.7"), host.SupposedTo)
	require.NoError(t, err)
	second, err := agg.AggregateHost(ctx, ws, net.ParseIP("203.0.113.7"), host.Historical)
	require.NoError(t, err)
	assert.Equal(t, first, second, "same natural key returns the same identifier")

	h, err := mem.GetHost(ctx, ws, first)
	require.NoError(t, err)
	assert.Equal(t, host.SupposedTo, h.Certainty, "certainty never decreases")

	_, err = agg.AggregateHost(ctx, ws, net.ParseIP("203.0.113.7"), host.Verified)
	require.NoError(t, err)
	h, err = mem.GetHost(ctx, ws, first)
	require.NoError(t, err)
	assert.Equal(t, host.Verified, h.Certainty)

	_, total, err := mem.ListHosts(ctx, ws, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestAggregateHost_WorkspacesAreIsolated(t *testing.T) {
	agg, _ := newTestAggregator(t)
	ctx := context.Background()

	a, err := agg.AggregateHost(ctx, uuid.New(), net.ParseIP("203.0.113.7"), host.Verified)
	require.NoError(t, err)
	b, err := agg.AggregateHost(ctx, uuid.New(), net.ParseIP("203.0.113.7"), host.Verified)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestAggregatePort_TransportIsPartOfKey(t *testing.T) {
	agg, mem := newTestAggregator(t)
	ctx := context.Background()
	ws := uuid.New()

	hostID, err := agg.AggregateHost(ctx, ws, net.ParseIP("203.0.113.7"), host.Verified)
	require.NoError(t, err)

	tcp, err := agg.AggregatePort(ctx, ws, hostID, 53, port.TCP, port.Verified)
	require.NoError(t, err)
	udp, err := agg.AggregatePort(ctx, ws, hostID, 53, port.UDP, port.Verified)
	require.NoError(t, err)
	assert.NotEqual(t, tcp, udp)

	_, total, err := mem.ListPorts(ctx, ws, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestAggregateService_PortlessService(t *testing.T) {
	agg, mem := newTestAggregator(t)
	ctx := context.Background()
	ws := uuid.New()

	hostID, err := agg.AggregateHost(ctx, ws, net.ParseIP("203.0.113.7"), host.Verified)
	require.NoError(t, err)

	id, err := agg.AggregateService(ctx, ws, hostID, nil, 0, "dns", service.SupposedTo)
	require.NoError(t, err)
	svc, err := mem.GetService(ctx, ws, id)
	require.NoError(t, err)
	assert.Nil(t, svc.Port)
}

func TestAggregateService_UnknownServiceIsNotAboveDefinite(t *testing.T) {
	agg, mem := newTestAggregator(t)
	ctx := context.Background()
	ws := uuid.New()

	hostID, err := agg.AggregateHost(ctx, ws, net.ParseIP("203.0.113.7"), host.Verified)
	require.NoError(t, err)
	portID, err := agg.AggregatePort(ctx, ws, hostID, 22, port.TCP, port.Verified)
	require.NoError(t, err)

	id, err := agg.AggregateService(ctx, ws, hostID, &portID, 0, "ssh", service.DefinitelyVerified)
	require.NoError(t, err)
	_, err = agg.AggregateService(ctx, ws, hostID, &portID, 0, "ssh", service.UnknownService)
	require.NoError(t, err)

	svc, err := mem.GetService(ctx, ws, id)
	require.NoError(t, err)
	assert.Equal(t, service.DefinitelyVerified, svc.Certainty,
		"UnknownService is the fallback, not an upgrade over DefinitelyVerified")
}

func TestAggregateDomainHostRelation_DirectFlipIsOneWay(t *testing.T) {
	agg, mem := newTestAggregator(t)
	ctx := context.Background()
	ws := uuid.New()

	domainID, err := agg.AggregateDomain(ctx, ws, "kraken.test", domainentity.Verified, uuid.New())
	require.NoError(t, err)
	hostID, err := agg.AggregateHost(ctx, ws, net.ParseIP("203.0.113.7"), host.Verified)
	require.NoError(t, err)

	require.NoError(t, agg.AggregateDomainHostRelation(ctx, ws, domainID, hostID, false))
	rels, err := mem.ListDomainHostRelations(ctx, ws, domainID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.False(t, rels[0].IsDirect)

	require.NoError(t, agg.AggregateDomainHostRelation(ctx, ws, domainID, hostID, true))
	rels, err = mem.ListDomainHostRelations(ctx, ws, domainID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.True(t, rels[0].IsDirect, "false -> true flips")

	require.NoError(t, agg.AggregateDomainHostRelation(ctx, ws, domainID, hostID, false))
	rels, err = mem.ListDomainHostRelations(ctx, ws, domainID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.True(t, rels[0].IsDirect, "true never reverts")
}

// Concurrent upserts of the same natural key must collapse to one row:
// the per-workspace lock serialises the find-then-insert window.
func TestAggregateHost_ConcurrentSameKey(t *testing.T) {
	agg, mem := newTestAggregator(t)
	ctx := context.Background()
	ws := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := agg.AggregateHost(ctx, ws, net.ParseIP("203.0.113.7"), host.Verified)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, total, err := mem.ListHosts(ctx, ws, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestAggregateHost_DistinctWorkspacesInParallel(t *testing.T) {
	agg, mem := newTestAggregator(t)
	ctx := context.Background()

	workspaces := make([]uuid.UUID, 8)
	for i := range workspaces {
		workspaces[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for i, ws := range workspaces {
		wg.Add(1)
		go func(i int, ws uuid.UUID) {
			defer wg.Done()
			_, err := agg.AggregateHost(ctx, ws, net.ParseIP(fmt.Sprintf("203.0.113.%d", i+1)), host.Verified)
			assert.NoError(t, err)
		}(i, ws)
	}
	wg.Wait()

	for _, ws := range workspaces {
		_, total, err := mem.ListHosts(ctx, ws, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	}
}
