package memory

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraken-ng/kraken/internal/app/domain/attack"
	"github.com/kraken-ng/kraken/internal/app/domain/domainentity"
	"github.com/kraken-ng/kraken/internal/app/domain/host"
	"github.com/kraken-ng/kraken/internal/app/domain/provenance"
	"github.com/kraken-ng/kraken/internal/app/domain/workspace"
)

// A workspace delete cascades to everything scoped by it.
func TestDeleteWorkspace_Cascades(t *testing.T) {
	m := New()
	ctx := context.Background()

	ws, err := m.CreateWorkspace(ctx, workspace.Workspace{UUID: uuid.New(), Name: "pentest", Owner: uuid.New()})
	require.NoError(t, err)
	other, err := m.CreateWorkspace(ctx, workspace.Workspace{UUID: uuid.New(), Name: "other", Owner: uuid.New()})
	require.NoError(t, err)

	h, err := m.UpsertHost(ctx, host.Host{UUID: uuid.New(), Workspace: ws.UUID, IPAddress: net.ParseIP("203.0.113.7")})
	require.NoError(t, err)
	_, err = m.UpsertDomain(ctx, domainentity.Domain{UUID: uuid.New(), Workspace: ws.UUID, Name: "kraken.test"})
	require.NoError(t, err)
	_, err = m.CreateAttack(ctx, attack.Attack{UUID: uuid.New(), Workspace: ws.UUID, Kind: attack.KindHostsAlive, CreatedAt: time.Now()})
	require.NoError(t, err)
	_, err = m.RecordSource(ctx, provenance.Source{
		UUID: uuid.New(), Workspace: ws.UUID, SourceType: provenance.SourceHostAlive,
		SourceUUID: uuid.New(), AggregatedTable: provenance.TableHost, AggregatedUUID: h.UUID,
	})
	require.NoError(t, err)

	survivor, err := m.UpsertHost(ctx, host.Host{UUID: uuid.New(), Workspace: other.UUID, IPAddress: net.ParseIP("203.0.113.8")})
	require.NoError(t, err)

	require.NoError(t, m.DeleteWorkspace(ctx, ws.UUID))

	_, total, err := m.ListHosts(ctx, ws.UUID, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	_, total, err = m.ListDomains(ctx, ws.UUID, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	_, total, err = m.ListAttacks(ctx, ws.UUID, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	counts, err := m.Simple(ctx, ws.UUID, provenance.TableHost, []uuid.UUID{h.UUID})
	require.NoError(t, err)
	assert.Empty(t, counts)

	// The other workspace is untouched.
	_, err = m.GetHost(ctx, other.UUID, survivor.UUID)
	assert.NoError(t, err)
}

func TestUpsertHost_DeepCopiesOnWayOut(t *testing.T) {
	m := New()
	ctx := context.Background()
	ws := uuid.New()

	created, err := m.UpsertHost(ctx, host.Host{UUID: uuid.New(), Workspace: ws, IPAddress: net.ParseIP("203.0.113.7")})
	require.NoError(t, err)

	got, err := m.GetHost(ctx, ws, created.UUID)
	require.NoError(t, err)
	got.Comment = "mutated by caller"

	again, err := m.GetHost(ctx, ws, created.UUID)
	require.NoError(t, err)
	assert.Empty(t, again.Comment)
}

func TestGetAttack_ScopedToWorkspace(t *testing.T) {
	m := New()
	ctx := context.Background()
	ws := uuid.New()

	a, err := m.CreateAttack(ctx, attack.Attack{UUID: uuid.New(), Workspace: ws, Kind: attack.KindHostsAlive})
	require.NoError(t, err)

	_, err = m.GetAttack(ctx, uuid.New(), a.UUID)
	assert.Error(t, err, "another workspace cannot address the attack")
}

func TestFinishAttack_TerminalRowsStayTerminal(t *testing.T) {
	m := New()
	ctx := context.Background()

	a, err := m.CreateAttack(ctx, attack.Attack{UUID: uuid.New(), Workspace: uuid.New(), Status: attack.StatusRunning})
	require.NoError(t, err)

	require.NoError(t, m.FinishAttack(ctx, a.UUID, time.Now().UTC(), "boom"))
	got, err := m.GetAttack(ctx, a.Workspace, a.UUID)
	require.NoError(t, err)
	assert.Equal(t, attack.StatusErrored, got.Status)

	// A late clean-finish signal must not reopen or flip the row.
	require.NoError(t, m.FinishAttack(ctx, a.UUID, time.Now().UTC(), ""))
	got, err = m.GetAttack(ctx, a.Workspace, a.UUID)
	require.NoError(t, err)
	assert.Equal(t, attack.StatusErrored, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestWorkspaceNotes_RoundTrip(t *testing.T) {
	m := New()
	ctx := context.Background()
	ws := uuid.New()

	_, ok, err := m.GetWorkspaceNotes(ctx, ws)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.AppendWorkspaceNotes(ctx, ws, "initial recon notes"))
	notes, ok, err := m.GetWorkspaceNotes(ctx, ws)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "initial recon notes", notes)
}
