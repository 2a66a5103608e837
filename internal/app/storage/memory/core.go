package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/domain/provenance"
	"github.com/kraken-ng/kraken/internal/app/domain/tag"
	"github.com/kraken-ng/kraken/internal/app/domain/user"
	"github.com/kraken-ng/kraken/internal/app/domain/workspace"
	"github.com/kraken-ng/kraken/internal/app/krakenerr"
)

func notFound(entity string) error {
	return krakenerr.New(krakenerr.NotFound, krakenerr.CodeInvalidUUID, entity+" not found")
}

// WorkspaceStore ------------------------------------------------------------

func (m *Memory) CreateWorkspace(_ context.Context, ws workspace.Workspace) (workspace.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ws.UUID == uuid.Nil {
		ws.UUID = uuid.New()
	}
	m.workspaces[ws.UUID] = ws
	return ws, nil
}

func (m *Memory) GetWorkspace(_ context.Context, id uuid.UUID) (workspace.Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ws, ok := m.workspaces[id]
	if !ok {
		return workspace.Workspace{}, notFound("workspace")
	}
	return ws, nil
}

func (m *Memory) ListWorkspaces(_ context.Context, member uuid.UUID) ([]workspace.Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []workspace.Workspace
	for _, ws := range m.workspaces {
		if ws.Owner == member {
			out = append(out, ws)
			continue
		}
		for _, mem := range m.members[ws.UUID] {
			if mem.User == member {
				out = append(out, ws)
				break
			}
		}
	}
	return out, nil
}

// DeleteWorkspace cascades to every table scoped by the workspace: every
// map keyed or filterable by workspace is swept.
func (m *Memory) DeleteWorkspace(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workspaces, id)
	delete(m.members, id)

	for k, v := range m.hosts {
		if v.Workspace == id {
			delete(m.hosts, k)
		}
	}
	for k, v := range m.ports {
		if v.Workspace == id {
			delete(m.ports, k)
		}
	}
	for k, v := range m.services {
		if v.Workspace == id {
			delete(m.services, k)
		}
	}
	for k, v := range m.httpServices {
		if v.Workspace == id {
			delete(m.httpServices, k)
		}
	}
	for k, v := range m.domains {
		if v.Workspace == id {
			delete(m.domains, k)
		}
	}
	for k, v := range m.domainDomain {
		if v.Workspace == id {
			delete(m.domainDomain, k)
		}
	}
	for k, v := range m.domainHost {
		if v.Workspace == id {
			delete(m.domainHost, k)
		}
	}
	for k, v := range m.attacks {
		if v.Workspace == id {
			delete(m.attacks, k)
		}
	}
	for k := range m.provenance {
		if k.Workspace == id {
			delete(m.provenance, k)
		}
	}
	for k, v := range m.findings {
		if v.Workspace == id {
			delete(m.findings, k)
			delete(m.affected, k)
		}
	}
	for k, v := range m.searches {
		if v.Workspace == id {
			delete(m.searches, k)
			delete(m.searchRes, k)
		}
	}
	delete(m.workspaceNotes, id)
	return nil
}

func (m *Memory) AddMember(_ context.Context, mem workspace.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.members[mem.Workspace] {
		if existing.User == mem.User {
			return krakenerr.New(krakenerr.Conflict, krakenerr.CodeAlreadyExists, "already a member")
		}
	}
	m.members[mem.Workspace] = append(m.members[mem.Workspace], mem)
	return nil
}

func (m *Memory) IsMember(_ context.Context, ws, userID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workspaces[ws]
	if !ok {
		return false, notFound("workspace")
	}
	if w.Owner == userID {
		return true, nil
	}
	for _, mem := range m.members[ws] {
		if mem.User == userID {
			return true, nil
		}
	}
	return false, nil
}

// UserStore -------------------------------------------------------------

func (m *Memory) CreateUser(_ context.Context, u user.User) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.UUID == uuid.Nil {
		u.UUID = uuid.New()
	}
	m.users[u.UUID] = u
	return u, nil
}

func (m *Memory) GetUser(_ context.Context, id uuid.UUID) (user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return user.User{}, notFound("user")
	}
	return u, nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return user.User{}, notFound("user")
}

// TagStore ----------------------------------------------------------------

func (m *Memory) CreateGlobalTag(_ context.Context, t tag.GlobalTag) (tag.GlobalTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	m.globalTags[t.UUID] = t
	return t, nil
}

func (m *Memory) CreateWorkspaceTag(_ context.Context, t tag.WorkspaceTag) (tag.WorkspaceTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	m.wsTags[t.UUID] = t
	return t, nil
}

// AttachGlobalTag and AttachWorkspaceTag are no-ops beyond existence
// checks: no operation queries the M2M join separately, so it is not
// materialized as its own map.
func (m *Memory) AttachGlobalTag(_ context.Context, tagID, entity uuid.UUID, table provenance.Table) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.globalTags[tagID]; !ok {
		return notFound("global tag")
	}
	return nil
}

func (m *Memory) AttachWorkspaceTag(_ context.Context, tagID, entity uuid.UUID, table provenance.Table) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.wsTags[tagID]; !ok {
		return notFound("workspace tag")
	}
	return nil
}
