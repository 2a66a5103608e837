package search

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraken-ng/kraken/internal/app/domain/domainentity"
	"github.com/kraken-ng/kraken/internal/app/domain/host"
	domainsearch "github.com/kraken-ng/kraken/internal/app/domain/search"
	"github.com/kraken-ng/kraken/internal/app/storage/memory"
	"github.com/kraken-ng/kraken/internal/app/ws"
)

type captureNotifier struct {
	mu       sync.Mutex
	finished []ws.SearchFinishedPayload
}

func (n *captureNotifier) Notify(_ uuid.UUID, kind ws.MessageKind, payload interface{}) {
	if kind != ws.KindSearchFinished {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if p, ok := payload.(ws.SearchFinishedPayload); ok {
		n.finished = append(n.finished, p)
	}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *memory.Memory, *captureNotifier) {
	t.Helper()
	mem := memory.New()
	notifier := &captureNotifier{}
	return New(mem, mem, mem, mem, mem, mem, mem, notifier, nil), mem, notifier
}

func runSearch(t *testing.T, d *Dispatcher, wsID uuid.UUID, term string) uuid.UUID {
	t.Helper()
	id, err := d.Start(context.Background(), wsID, uuid.New(), term)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
	return id
}

func TestSearch_FindsHostsAndDomains(t *testing.T) {
	d, mem, notifier := newTestDispatcher(t)
	ctx := context.Background()
	wsID := uuid.New()

	h, err := mem.UpsertHost(ctx, host.Host{UUID: uuid.New(), Workspace: wsID, IPAddress: net.ParseIP("203.0.113.7")})
	require.NoError(t, err)
	dom, err := mem.UpsertDomain(ctx, domainentity.Domain{UUID: uuid.New(), Workspace: wsID, Name: "mail.kraken.test"})
	require.NoError(t, err)
	_, err = mem.UpsertDomain(ctx, domainentity.Domain{UUID: uuid.New(), Workspace: wsID, Name: "unrelated.example"})
	require.NoError(t, err)

	searchID := runSearch(t, d, wsID, "kraken")

	results, total, err := mem.ListResults(ctx, searchID, 50, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, domainsearch.RefDomain, results[0].RefType)
	assert.Equal(t, dom.UUID, results[0].RefKey)

	searchID = runSearch(t, d, wsID, "203.0.113")
	results, total, err = mem.ListResults(ctx, searchID, 50, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, domainsearch.RefHost, results[0].RefType)
	assert.Equal(t, h.UUID, results[0].RefKey)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.finished, 2)
	assert.True(t, notifier.finished[0].OK)
}

func TestSearch_ScopedToWorkspace(t *testing.T) {
	d, mem, _ := newTestDispatcher(t)
	ctx := context.Background()
	wsA, wsB := uuid.New(), uuid.New()

	_, err := mem.UpsertDomain(ctx, domainentity.Domain{UUID: uuid.New(), Workspace: wsB, Name: "kraken.test"})
	require.NoError(t, err)

	searchID := runSearch(t, d, wsA, "kraken")
	_, total, err := mem.ListResults(ctx, searchID, 50, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

// A workspace larger than one list page is swept in full, not capped at
// the first page.
func TestSearch_SweepsPastOnePage(t *testing.T) {
	d, mem, _ := newTestDispatcher(t)
	ctx := context.Background()
	wsID := uuid.New()

	count := listPageSize + 25
	base := time.Now().UTC()
	for i := 0; i < count; i++ {
		_, err := mem.UpsertDomain(ctx, domainentity.Domain{
			UUID: uuid.New(), Workspace: wsID, Name: fmt.Sprintf("sub-%04d.kraken.test", i),
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		})
		require.NoError(t, err)
	}

	searchID := runSearch(t, d, wsID, "kraken")
	_, total, err := mem.ListResults(ctx, searchID, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, count, total)
}

func TestSearch_MarksJobFinished(t *testing.T) {
	d, mem, _ := newTestDispatcher(t)
	wsID := uuid.New()
	searchID := runSearch(t, d, wsID, "anything")

	// The Search row is terminal with no error.
	s, err := mem.GetSearch(context.Background(), wsID, searchID)
	require.NoError(t, err)
	require.NotNil(t, s.FinishedAt)
	assert.Empty(t, s.Error)
}
