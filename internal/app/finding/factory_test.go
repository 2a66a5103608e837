package finding

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainfinding "github.com/kraken-ng/kraken/internal/app/domain/finding"
	"github.com/kraken-ng/kraken/internal/app/storage/memory"
)

// Add twice, process twice: exactly one Finding and
// one FindingAffected survive.
func TestProcess_Idempotent(t *testing.T) {
	mem := memory.New()
	f := New(mem, mem, nil)
	ctx := context.Background()
	ws := uuid.New()
	hostID := uuid.New()
	defID := uuid.New()
	mem.PutFactoryEntry(domainfinding.FactoryEntry{Identifier: "weak-cipher", Definition: &defID})

	f.Add(ws, hostID, domainfinding.EntityHost, "weak-cipher")
	f.Add(ws, hostID, domainfinding.EntityHost, "weak-cipher")
	require.NoError(t, f.Process(ctx, ws))
	require.NoError(t, f.Process(ctx, ws))

	found, ok, err := mem.FindFindingByDefinition(ctx, ws, defID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Auto generated by kraken™", found.ToolDetails)

	affected, err := mem.ListAffected(ctx, found.UUID)
	require.NoError(t, err)
	require.Len(t, affected, 1)
	assert.Equal(t, hostID, affected[0].Entity)
	assert.Equal(t, domainfinding.EntityHost, affected[0].Kind)
}

func TestProcess_UnmappedIdentifierIsSilentNoop(t *testing.T) {
	mem := memory.New()
	f := New(mem, mem, nil)
	ctx := context.Background()
	ws := uuid.New()

	f.Add(ws, uuid.New(), domainfinding.EntityHost, "nobody-mapped-this")
	require.NoError(t, f.Process(ctx, ws))

	_, ok, err := mem.FindFindingByDefinition(ctx, ws, uuid.Nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProcess_NilDefinitionEntryIsDropped(t *testing.T) {
	mem := memory.New()
	f := New(mem, mem, nil)
	ctx := context.Background()
	ws := uuid.New()
	// Late binding: the identifier is known but not yet bound to a
	// definition.
	mem.PutFactoryEntry(domainfinding.FactoryEntry{Identifier: "pending-id"})

	f.Add(ws, uuid.New(), domainfinding.EntityPort, "pending-id")
	require.NoError(t, f.Process(ctx, ws))
}

func TestProcess_AttachesNewEntitiesToExistingFinding(t *testing.T) {
	mem := memory.New()
	f := New(mem, mem, nil)
	ctx := context.Background()
	ws := uuid.New()
	defID := uuid.New()
	mem.PutFactoryEntry(domainfinding.FactoryEntry{Identifier: "weak-cipher", Definition: &defID})

	hostA := uuid.New()
	f.Add(ws, hostA, domainfinding.EntityHost, "weak-cipher")
	require.NoError(t, f.Process(ctx, ws))

	hostB := uuid.New()
	f.Add(ws, hostB, domainfinding.EntityHost, "weak-cipher")
	require.NoError(t, f.Process(ctx, ws))

	found, ok, err := mem.FindFindingByDefinition(ctx, ws, defID)
	require.NoError(t, err)
	require.True(t, ok)
	affected, err := mem.ListAffected(ctx, found.UUID)
	require.NoError(t, err)
	assert.Len(t, affected, 2, "second entity attaches to the existing finding, no second finding")
}

func TestProcess_BufferIsScopedPerWorkspace(t *testing.T) {
	mem := memory.New()
	f := New(mem, mem, nil)
	ctx := context.Background()
	wsA, wsB := uuid.New(), uuid.New()
	defID := uuid.New()
	mem.PutFactoryEntry(domainfinding.FactoryEntry{Identifier: "weak-cipher", Definition: &defID})

	f.Add(wsA, uuid.New(), domainfinding.EntityHost, "weak-cipher")
	f.Add(wsB, uuid.New(), domainfinding.EntityHost, "weak-cipher")
	require.NoError(t, f.Process(ctx, wsA))

	_, ok, err := mem.FindFindingByDefinition(ctx, wsB, defID)
	require.NoError(t, err)
	assert.False(t, ok, "processing workspace A must not consume workspace B's buffer")

	require.NoError(t, f.Process(ctx, wsB))
	_, ok, err = mem.FindFindingByDefinition(ctx, wsB, defID)
	require.NoError(t, err)
	assert.True(t, ok)
}
