package memory

import (
	"context"

	"github.com/google/uuid"
)

// AppendWorkspaceNotes keeps a single map slot per workspace. The name
// matches the postgres backend, which issues a fresh INSERT per flush
// with no cleanup of prior rows; in memory there is no row history to
// bloat, so the unbounded-growth debt documented there never manifests.
func (m *Memory) AppendWorkspaceNotes(_ context.Context, ws uuid.UUID, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workspaceNotes[ws] = notes
	return nil
}

func (m *Memory) GetWorkspaceNotes(_ context.Context, ws uuid.UUID) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	notes, ok := m.workspaceNotes[ws]
	return notes, ok, nil
}

// PutDefinitionField seeds a field so editorcache.Cache.Get finds it on
// first miss (the cache requires prior existence before update).
func (m *Memory) PutDefinitionField(definition uuid.UUID, field, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields, ok := m.defFields[definition]
	if !ok {
		fields = make(map[string]string)
		m.defFields[definition] = fields
	}
	fields[field] = value
}

func (m *Memory) UpdateDefinitionField(_ context.Context, definition uuid.UUID, field string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields, ok := m.defFields[definition]
	if !ok {
		return notFound("finding definition")
	}
	fields[field] = value
	return nil
}

func (m *Memory) GetDefinitionField(_ context.Context, definition uuid.UUID, field string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fields, ok := m.defFields[definition]
	if !ok {
		return "", false, nil
	}
	value, ok := fields[field]
	return value, ok, nil
}
