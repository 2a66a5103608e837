package rpc

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraken-ng/kraken/internal/app/domain/rawresult"
	"github.com/kraken-ng/kraken/internal/app/krakenerr"
)

type stubQuerier struct {
	calls atomic.Int64
	err   error
}

func (s *stubQuerier) Query(_ context.Context, q DehashedQuery) ([]rawresult.DehashedEntry, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return []rawresult.DehashedEntry{{Email: q.Term}}, nil
}

func TestDehashedDispatcher_RoundTrip(t *testing.T) {
	q := &stubQuerier{}
	d := NewDehashedDispatcher(q, 100, 10, 4, nil)
	require.NoError(t, d.Start(context.Background()))
	defer func() { _ = d.Stop(context.Background()) }()

	entries, err := d.Do(context.Background(), DehashedQuery{Column: "email", Term: "alice@example.com"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice@example.com", entries[0].Email)
	assert.Equal(t, int64(1), q.calls.Load())
}

func TestDehashedDispatcher_UpstreamErrorIsIntegration(t *testing.T) {
	q := &stubQuerier{err: assert.AnError}
	d := NewDehashedDispatcher(q, 100, 10, 4, nil)
	require.NoError(t, d.Start(context.Background()))
	defer func() { _ = d.Stop(context.Background()) }()

	_, err := d.Do(context.Background(), DehashedQuery{Column: "email", Term: "x"})
	require.Error(t, err)
	assert.True(t, krakenerr.Is(err, krakenerr.Integration))
}

func TestDehashedDispatcher_NotConfigured(t *testing.T) {
	d := NewDehashedDispatcher(nil, 1, 1, 1, nil)
	_, err := d.Do(context.Background(), DehashedQuery{})
	require.Error(t, err)
	assert.True(t, krakenerr.Is(err, krakenerr.Integration))
}

func TestDehashedDispatcher_CallerContextCancels(t *testing.T) {
	// Never started: the queue is drained by nobody, so Do must unblock
	// via the caller's context.
	d := NewDehashedDispatcher(&stubQuerier{}, 1, 1, 1, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.Do(ctx, DehashedQuery{})
	// First Do lands in the buffered queue, so it blocks awaiting a reply.
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
