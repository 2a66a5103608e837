package system

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	name     string
	startErr error
	mu       sync.Mutex
	started  int
	stopped  int
}

func (s *stubService) Name() string { return s.name }

func (s *stubService) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	return s.startErr
}

func (s *stubService) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	return nil
}

func TestManager_StartStop(t *testing.T) {
	m := NewManager()
	a := &stubService{name: "a"}
	b := &stubService{name: "b"}
	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(b))

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.Stop(ctx))
	assert.Equal(t, 1, a.started)
	assert.Equal(t, 1, a.stopped)
	assert.Equal(t, 1, b.started)
	assert.Equal(t, 1, b.stopped)
}

func TestManager_RejectsDuplicateNames(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(&stubService{name: "a"}))
	assert.Error(t, m.Register(&stubService{name: "a"}))
}

func TestManager_StartFailureStopsStartedServices(t *testing.T) {
	m := NewManager()
	a := &stubService{name: "a"}
	failing := &stubService{name: "b", startErr: errors.New("bind: address already in use")}
	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(failing))

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, a.started)
	assert.Equal(t, 1, a.stopped, "already-started services are rolled back")
}
