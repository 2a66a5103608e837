package provenance

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraken-ng/kraken/internal/app/domain/attack"
	domainprov "github.com/kraken-ng/kraken/internal/app/domain/provenance"
	"github.com/kraken-ng/kraken/internal/app/domain/rawresult"
	"github.com/kraken-ng/kraken/internal/app/storage/memory"
)

func TestRecord_IdempotentByTuple(t *testing.T) {
	mem := memory.New()
	r := New(mem, nil)
	ctx := context.Background()
	ws := uuid.New()
	source := uuid.New()
	aggregated := uuid.New()

	require.NoError(t, r.Record(ctx, ws, domainprov.SourceHostAlive, source, domainprov.TableHost, aggregated))
	require.NoError(t, r.Record(ctx, ws, domainprov.SourceHostAlive, source, domainprov.TableHost, aggregated))

	counts, err := r.Simple(ctx, ws, domainprov.TableHost, []uuid.UUID{aggregated})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[aggregated][domainprov.SourceHostAlive])
}

func TestSimple_CountsBySourceType(t *testing.T) {
	mem := memory.New()
	r := New(mem, nil)
	ctx := context.Background()
	ws := uuid.New()
	aggregated := uuid.New()

	require.NoError(t, r.Record(ctx, ws, domainprov.SourceHostAlive, uuid.New(), domainprov.TableHost, aggregated))
	require.NoError(t, r.Record(ctx, ws, domainprov.SourceHostAlive, uuid.New(), domainprov.TableHost, aggregated))
	require.NoError(t, r.Record(ctx, ws, domainprov.SourceManualHost, uuid.New(), domainprov.TableHost, aggregated))

	counts, err := r.Simple(ctx, ws, domainprov.TableHost, []uuid.UUID{aggregated})
	require.NoError(t, err)
	assert.Equal(t, 2, counts[aggregated][domainprov.SourceHostAlive])
	assert.Equal(t, 1, counts[aggregated][domainprov.SourceManualHost])
}

// Full groups sources by their originating attack, rehydrates the raw
// payloads, and splits manual inserts out.
func TestFull_GroupsByAttack(t *testing.T) {
	mem := memory.New()
	r := New(mem, nil).WithAttackStore(mem)
	ctx := context.Background()
	ws := uuid.New()
	aggregated := uuid.New()

	a, err := mem.CreateAttack(ctx, attack.Attack{
		UUID: uuid.New(), Workspace: ws, Kind: attack.KindHostsAlive,
		Status: attack.StatusRunning, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	raw, err := mem.InsertHostAlive(ctx, rawresult.HostAlive{
		UUID: uuid.New(), Attack: a.UUID, Host: net.ParseIP("203.0.113.7"),
	})
	require.NoError(t, err)
	require.NoError(t, r.Record(ctx, ws, domainprov.SourceHostAlive, raw.UUID, domainprov.TableHost, aggregated))

	manual, err := mem.InsertManualHost(ctx, rawresult.ManualHost{
		UUID: uuid.New(), Workspace: ws, User: uuid.New(), IPAddress: net.ParseIP("203.0.113.7"),
	})
	require.NoError(t, err)
	require.NoError(t, r.Record(ctx, ws, domainprov.SourceManualHost, manual.UUID, domainprov.TableHost, aggregated))

	full, err := r.Full(ctx, ws, domainprov.TableHost, aggregated)
	require.NoError(t, err)

	require.Len(t, full.Attacks, 1)
	assert.Equal(t, a.UUID, full.Attacks[0].AttackUUID)
	require.NotNil(t, full.Attacks[0].Attack)
	assert.Equal(t, attack.KindHostsAlive, full.Attacks[0].Attack.Kind)
	require.Len(t, full.Attacks[0].Results, 1)
	payload, ok := full.Attacks[0].Results[0].Payload.(rawresult.HostAlive)
	require.True(t, ok)
	assert.Equal(t, raw.UUID, payload.UUID)

	require.Len(t, full.ManualInserts, 1)
	_, ok = full.ManualInserts[0].Payload.(rawresult.ManualHost)
	assert.True(t, ok)
}
