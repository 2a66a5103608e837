package storage

import "context"

// Database wraps the unit-of-work used by every result sink and manual
// insertion handler: raw-result insert, aggregator upsert, and provenance
// record must land in a single transaction. The memory
// implementation runs fn directly (its mutation is already guarded by the
// aggregator's per-workspace lock); the postgres implementation begins a
// real *sql.Tx, threads it through ctx, and commits/rolls back around fn.
type Database interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
