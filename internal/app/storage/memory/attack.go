package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/domain/attack"
)

func (m *Memory) CreateAttack(_ context.Context, a attack.Attack) (attack.Attack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	m.attacks[a.UUID] = a
	return a, nil
}

func (m *Memory) GetAttack(_ context.Context, ws, id uuid.UUID) (attack.Attack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attacks[id]
	if !ok || a.Workspace != ws {
		return attack.Attack{}, notFound("attack")
	}
	return a, nil
}

func (m *Memory) ListAttacks(_ context.Context, ws uuid.UUID, limit, offset int) ([]attack.Attack, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []attack.Attack
	for _, a := range m.attacks {
		if a.Workspace == ws {
			all = append(all, a)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return paginate(all, limit, offset), len(all), nil
}

// FinishAttack sets the terminal fields. Terminal rows are never reopened
//: a row already marked Finished/Errored is left untouched.
func (m *Memory) FinishAttack(_ context.Context, id uuid.UUID, finishedAt time.Time, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attacks[id]
	if !ok {
		return notFound("attack")
	}
	if a.Status.Terminal() {
		return nil
	}
	a.FinishedAt = &finishedAt
	a.Error = errMsg
	if errMsg != "" {
		a.Status = attack.StatusErrored
	} else {
		a.Status = attack.StatusFinished
	}
	m.attacks[id] = a
	return nil
}

// DeleteAttack drops the attack row itself. Provenance rows referencing
// its raw results cascade along via DeleteWorkspace / raw-row deletion
// paths; this store keeps raw rows independently addressable so other
// sources' provenance is unaffected.
func (m *Memory) DeleteAttack(_ context.Context, ws, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attacks[id]
	if !ok || a.Workspace != ws {
		return notFound("attack")
	}
	delete(m.attacks, id)
	return nil
}
