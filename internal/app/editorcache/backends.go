package editorcache

import (
	"context"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/storage"
)

// notesBackend adapts storage.EditorCacheStore's workspace-notes pair to
// the single-field Backend contract.
type notesBackend struct {
	store storage.EditorCacheStore
}

// NewNotesBackend builds the Backend for the workspace-notes cache
// instance.
func NewNotesBackend(store storage.EditorCacheStore) Backend {
	return notesBackend{store: store}
}

func (b notesBackend) Load(ctx context.Context, key uuid.UUID) (string, bool, error) {
	return b.store.GetWorkspaceNotes(ctx, key)
}

func (b notesBackend) Persist(ctx context.Context, key uuid.UUID, value string) error {
	return b.store.AppendWorkspaceNotes(ctx, key, value)
}

// definitionFieldBackend adapts one named column of a FindingDefinition
// (summary/description/impact/remediation/references) to the single-field
// Backend contract. One instance per field, each with its own flusher.
type definitionFieldBackend struct {
	store storage.EditorCacheStore
	field string
}

// NewDefinitionFieldBackend builds the Backend for one finding-definition
// long-text field.
func NewDefinitionFieldBackend(store storage.EditorCacheStore, field string) Backend {
	return definitionFieldBackend{store: store, field: field}
}

func (b definitionFieldBackend) Load(ctx context.Context, key uuid.UUID) (string, bool, error) {
	return b.store.GetDefinitionField(ctx, key, b.field)
}

func (b definitionFieldBackend) Persist(ctx context.Context, key uuid.UUID, value string) error {
	return b.store.UpdateDefinitionField(ctx, key, b.field, value)
}

// Field name constants for the five finding-definition cache instances.
const (
	FieldSummary     = "summary"
	FieldDescription = "description"
	FieldImpact      = "impact"
	FieldRemediation = "remediation"
	FieldReferences  = "references"
)

// NewDefinitionFieldCaches builds the five independent finding-definition
// field caches in one call, each with its own flush loop.
func NewDefinitionFieldCaches(store storage.EditorCacheStore, spillDir string) map[string]*Cache {
	fields := []string{FieldSummary, FieldDescription, FieldImpact, FieldRemediation, FieldReferences}
	caches := make(map[string]*Cache, len(fields))
	for _, f := range fields {
		caches[f] = New("definition."+f, NewDefinitionFieldBackend(store, f), spillDir, nil)
	}
	return caches
}
