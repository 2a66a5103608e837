package aggregator

import (
	"context"
	"database/sql"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

// Locker serialises aggregator writes per workspace: the
// natural-key check and subsequent insert must not race with a concurrent
// matching insert. Cross-workspace writes proceed in parallel; read-only
// lookups need no lock.
type Locker interface {
	Lock(ctx context.Context, workspace uuid.UUID) (unlock func(), err error)
}

// MapLocker is the in-process implementation: a map from workspace id to
// a *sync.Mutex, guarded by its own top-level mutex for map mutation. This
// is the single-process default; it does not coordinate across multiple
// kraken instances.
type MapLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewMapLocker() *MapLocker {
	return &MapLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *MapLocker) Lock(ctx context.Context, workspace uuid.UUID) (func(), error) {
	l.mu.Lock()
	wsLock, ok := l.locks[workspace]
	if !ok {
		wsLock = &sync.Mutex{}
		l.locks[workspace] = wsLock
	}
	l.mu.Unlock()

	wsLock.Lock()
	return wsLock.Unlock, nil
}

// PostgresAdvisoryLocker substitutes a pg_advisory_xact_lock for
// multi-process deployments, where an in-process mutex cannot serialise
// writers. The lock is released automatically when the enclosing
// transaction ends, so callers must invoke Lock after BEGIN and let the
// unlock func be a no-op; callers of the Locker interface are unchanged.
type PostgresAdvisoryLocker struct {
	db *sql.DB
}

func NewPostgresAdvisoryLocker(db *sql.DB) *PostgresAdvisoryLocker {
	return &PostgresAdvisoryLocker{db: db}
}

func (l *PostgresAdvisoryLocker) Lock(ctx context.Context, workspace uuid.UUID) (func(), error) {
	key := workspaceLockKey(workspace)
	if _, err := l.db.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", key); err != nil {
		return nil, err
	}
	// Released implicitly at transaction end; nothing to do on unlock.
	return func() {}, nil
}

func workspaceLockKey(workspace uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write(workspace[:])
	return int64(h.Sum64())
}
