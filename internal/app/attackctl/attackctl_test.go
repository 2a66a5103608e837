package attackctl

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraken-ng/kraken/internal/app/aggregator"
	"github.com/kraken-ng/kraken/internal/app/domain/attack"
	"github.com/kraken-ng/kraken/internal/app/domain/rawresult"
	"github.com/kraken-ng/kraken/internal/app/rpc"
	"github.com/kraken-ng/kraken/internal/app/sink"
	"github.com/kraken-ng/kraken/internal/app/storage/memory"
	"github.com/kraken-ng/kraken/internal/app/ws"

	provrecorder "github.com/kraken-ng/kraken/internal/app/provenance"
)

// fakeStream replays a fixed frame sequence, then ends with endErr (io.EOF
// for a clean close).
type fakeStream struct {
	mu     sync.Mutex
	frames []*rpc.Frame
	endErr error
	closed bool
}

func (s *fakeStream) Recv(_ context.Context) (*rpc.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil, s.endErr
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeClient struct {
	stream *fakeStream
	err    error
}

func (c *fakeClient) Call(_ context.Context, _ rpc.Request) (rpc.Stream, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

// recordingNotifier captures pushed frames for assertions.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []ws.MessageKind
	payloads []interface{}
}

func (n *recordingNotifier) Notify(_ uuid.UUID, kind ws.MessageKind, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, kind)
	n.payloads = append(n.payloads, payload)
}

func (n *recordingNotifier) finished() (ws.AttackFinishedPayload, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, k := range n.messages {
		if k == ws.KindAttackFinished {
			p, ok := n.payloads[i].(ws.AttackFinishedPayload)
			return p, ok
		}
	}
	return ws.AttackFinishedPayload{}, false
}

func newTestController(t *testing.T, stream *fakeStream, callErr error) (*Controller, *memory.Memory, *recordingNotifier, uuid.UUID) {
	t.Helper()
	mem := memory.New()
	agg := aggregator.New(mem, mem, mem, mem, mem, aggregator.NewMapLocker(), nil)
	prov := provrecorder.New(mem, nil)
	snk := sink.New(agg, prov, mem, mem, mem, mem, nil, nil, nil)

	pool := rpc.NewPool()
	leechID := uuid.New()
	pool.Add(rpc.LeechConn{
		Leech:  rpc.Leech{UUID: leechID, Name: "leech-1"},
		Client: &fakeClient{stream: stream, err: callErr},
	})

	notifier := &recordingNotifier{}
	return New(mem, mem, mem, pool, snk, notifier, nil), mem, notifier, leechID
}

func waitTerminal(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
}

// A stream closing after zero frames finishes ok.
func TestStart_EmptyStreamFinishesOK(t *testing.T) {
	stream := &fakeStream{endErr: io.EOF}
	c, mem, notifier, _ := newTestController(t, stream, nil)
	ctx := context.Background()
	wsID := uuid.New()

	id, err := c.Start(ctx, wsID, uuid.New(), attack.KindHostsAlive, nil, []string{"203.0.113.0/24"}, nil)
	require.NoError(t, err)
	waitTerminal(t, c)

	a, err := mem.GetAttack(ctx, wsID, id)
	require.NoError(t, err)
	assert.Equal(t, attack.StatusFinished, a.Status)
	assert.Empty(t, a.Error)
	require.NotNil(t, a.FinishedAt)

	p, ok := notifier.finished()
	require.True(t, ok)
	assert.True(t, p.OK)
	assert.True(t, stream.closed)
}

func TestStart_FramesReachTheSink(t *testing.T) {
	stream := &fakeStream{
		frames: []*rpc.Frame{{
			Kind: attack.KindHostsAlive,
			HostAlive: &rawresult.HostAlive{
				UUID: uuid.New(),
				Host: net.ParseIP("203.0.113.7"),
			},
		}},
		endErr: io.EOF,
	}
	c, mem, _, _ := newTestController(t, stream, nil)
	ctx := context.Background()
	wsID := uuid.New()

	_, err := c.Start(ctx, wsID, uuid.New(), attack.KindHostsAlive, nil, nil, nil)
	require.NoError(t, err)
	waitTerminal(t, c)

	_, total, err := mem.ListHosts(ctx, wsID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestStart_TransportErrorMarksAttackErrored(t *testing.T) {
	stream := &fakeStream{endErr: errors.New("connection reset")}
	c, mem, notifier, _ := newTestController(t, stream, nil)
	ctx := context.Background()
	wsID := uuid.New()

	id, err := c.Start(ctx, wsID, uuid.New(), attack.KindHostsAlive, nil, nil, nil)
	require.NoError(t, err)
	waitTerminal(t, c)

	a, err := mem.GetAttack(ctx, wsID, id)
	require.NoError(t, err)
	assert.Equal(t, attack.StatusErrored, a.Status)
	assert.Contains(t, a.Error, "connection reset")

	p, ok := notifier.finished()
	require.True(t, ok)
	assert.False(t, p.OK)
}

// A malformed frame (payload missing for its tagged kind) is fatal to the
// stream: loud failure over silent drop.
func TestStart_MalformedFrameFailsStream(t *testing.T) {
	stream := &fakeStream{
		frames: []*rpc.Frame{{Kind: attack.KindHostsAlive}},
		endErr: io.EOF,
	}
	c, mem, _, _ := newTestController(t, stream, nil)
	ctx := context.Background()
	wsID := uuid.New()

	id, err := c.Start(ctx, wsID, uuid.New(), attack.KindHostsAlive, nil, nil, nil)
	require.NoError(t, err)
	waitTerminal(t, c)

	a, err := mem.GetAttack(ctx, wsID, id)
	require.NoError(t, err)
	assert.Equal(t, attack.StatusErrored, a.Status)
}

func TestStart_NoLeechAvailable(t *testing.T) {
	mem := memory.New()
	agg := aggregator.New(mem, mem, mem, mem, mem, aggregator.NewMapLocker(), nil)
	snk := sink.New(agg, provrecorder.New(mem, nil), mem, mem, mem, mem, nil, nil, nil)
	c := New(mem, mem, mem, rpc.NewPool(), snk, nil, nil)

	_, err := c.Start(context.Background(), uuid.New(), uuid.New(), attack.KindHostsAlive, nil, nil, nil)
	require.Error(t, err)
}

func TestStart_ExplicitLeechSelection(t *testing.T) {
	stream := &fakeStream{endErr: io.EOF}
	c, mem, _, leechID := newTestController(t, stream, nil)
	ctx := context.Background()
	wsID := uuid.New()

	id, err := c.Start(ctx, wsID, uuid.New(), attack.KindHostsAlive, &leechID, nil, nil)
	require.NoError(t, err)
	waitTerminal(t, c)

	a, err := mem.GetAttack(ctx, wsID, id)
	require.NoError(t, err)
	assert.Equal(t, leechID, a.Leech)

	unknown := uuid.New()
	_, err = c.Start(ctx, wsID, uuid.New(), attack.KindHostsAlive, &unknown, nil, nil)
	require.Error(t, err)
}

// Cancellation: deleting a running attack tears down the stream without
// writing a terminal state.
func TestCancel_StopsInFlightStream(t *testing.T) {
	// A stream that blocks until cancelled.
	blocking := &blockingStream{unblock: make(chan struct{})}
	mem := memory.New()
	agg := aggregator.New(mem, mem, mem, mem, mem, aggregator.NewMapLocker(), nil)
	snk := sink.New(agg, provrecorder.New(mem, nil), mem, mem, mem, mem, nil, nil, nil)
	pool := rpc.NewPool()
	pool.Add(rpc.LeechConn{Leech: rpc.Leech{UUID: uuid.New()}, Client: &blockingClient{stream: blocking}})
	c := New(mem, mem, mem, pool, snk, nil, nil)

	ctx := context.Background()
	wsID := uuid.New()
	id, err := c.Start(ctx, wsID, uuid.New(), attack.KindHostsAlive, nil, nil, nil)
	require.NoError(t, err)

	c.Cancel(id)
	waitTerminal(t, c)
	assert.True(t, blocking.wasClosed())
}

type blockingStream struct {
	mu      sync.Mutex
	closed  bool
	unblock chan struct{}
}

func (s *blockingStream) Recv(ctx context.Context) (*rpc.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.unblock:
		return nil, io.EOF
	}
}

func (s *blockingStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.unblock)
	}
	return nil
}

func (s *blockingStream) wasClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type blockingClient struct{ stream *blockingStream }

func (c *blockingClient) Call(_ context.Context, _ rpc.Request) (rpc.Stream, error) {
	return c.stream, nil
}

