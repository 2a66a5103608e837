package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/domain/finding"
)

// PutFactoryEntry seeds the identifier -> definition map administrators
// configure out of band; there is no HTTP surface for this
// in scope, so tests and wiring code call this directly.
func (m *Memory) PutFactoryEntry(e finding.FactoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factory[e.Identifier] = e
}

func (m *Memory) GetFactoryEntry(_ context.Context, identifier string) (finding.FactoryEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.factory[identifier]
	return e, ok, nil
}

// PutDefinitionCategories seeds the categories a definition belongs to.
func (m *Memory) PutDefinitionCategories(definition uuid.UUID, categories []finding.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(categories))
	for _, c := range categories {
		m.categories[c.UUID] = c
		ids = append(ids, c.UUID)
	}
	m.defCategory[definition] = ids
}

func (m *Memory) ListDefinitionCategories(_ context.Context, definition uuid.UUID) ([]finding.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.defCategory[definition]
	out := make([]finding.Category, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.categories[id])
	}
	return out, nil
}

// FindFindingByDefinition returns the first Finding in the workspace that
// references the given definition. The
// factory dedups affected-pairs against *this* finding specifically, not
// "some finding for the definition exists anywhere" -- callers needing
// the full set should extend this with a ListFindingsByDefinition if ever
// more than one finding per definition is created deliberately (the
// factory only ever creates one, see finding.Process).
func (m *Memory) FindFindingByDefinition(_ context.Context, ws, definition uuid.UUID) (finding.Finding, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.findings {
		if f.Workspace == ws && f.Definition == definition {
			return f, true, nil
		}
	}
	return finding.Finding{}, false, nil
}

func (m *Memory) CreateFinding(_ context.Context, f finding.Finding) (finding.Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.UUID == uuid.Nil {
		f.UUID = uuid.New()
	}
	m.findings[f.UUID] = f
	return f, nil
}

func (m *Memory) ListAffected(_ context.Context, findingID uuid.UUID) ([]finding.Affected, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]finding.Affected, len(m.affected[findingID]))
	copy(out, m.affected[findingID])
	return out, nil
}

func (m *Memory) CreateAffected(_ context.Context, a finding.Affected) (finding.Affected, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	m.affected[a.Finding] = append(m.affected[a.Finding], a)
	return a, nil
}

func (m *Memory) CopyFindingCategories(_ context.Context, findingID uuid.UUID, categories []finding.Category) error {
	// Categories are attached to definitions in this store, not findings
	// directly; the finding factory copies them for display purposes
	// only, which the in-memory store treats as a no-op side table.
	return nil
}
