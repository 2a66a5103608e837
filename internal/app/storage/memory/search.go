package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/domain/search"
)

func (m *Memory) CreateSearch(_ context.Context, s search.Search) (search.Search, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	m.searches[s.UUID] = s
	return s, nil
}

func (m *Memory) GetSearch(_ context.Context, ws, id uuid.UUID) (search.Search, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.searches[id]
	if !ok || s.Workspace != ws {
		return search.Search{}, notFound("search")
	}
	return s, nil
}

func (m *Memory) FinishSearch(_ context.Context, id uuid.UUID, finishedAt time.Time, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.searches[id]
	if !ok {
		return notFound("search")
	}
	s.FinishedAt = &finishedAt
	s.Error = errMsg
	m.searches[id] = s
	return nil
}

func (m *Memory) AddResult(_ context.Context, r search.Result) (search.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	m.searchRes[r.Search] = append(m.searchRes[r.Search], r)
	return r, nil
}

func (m *Memory) ListResults(_ context.Context, searchID uuid.UUID, limit, offset int) ([]search.Result, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.searchRes[searchID]
	return paginate(all, limit, offset), len(all), nil
}
