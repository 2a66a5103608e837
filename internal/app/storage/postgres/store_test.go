package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraken-ng/kraken/internal/app/domain/provenance"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestFindHostByIP_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	ws := uuid.New()

	mock.ExpectQuery("SELECT uuid, workspace, ip_address").
		WithArgs(ws, "203.0.113.7").
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}))

	_, found, err := store.FindHostByIP(context.Background(), ws, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSource_UsesConflictClause(t *testing.T) {
	store, mock := newMockStore(t)
	src := provenance.Source{
		UUID:            uuid.New(),
		Workspace:       uuid.New(),
		SourceType:      provenance.SourceHostAlive,
		SourceUUID:      uuid.New(),
		AggregatedTable: provenance.TableHost,
		AggregatedUUID:  uuid.New(),
		CreatedAt:       time.Now().UTC(),
	}

	mock.ExpectQuery("INSERT INTO aggregation_source .*ON CONFLICT").
		WithArgs(src.UUID, src.Workspace, string(src.SourceType), src.SourceUUID, string(src.AggregatedTable), src.AggregatedUUID, src.CreatedAt).
		WillReturnRows(sqlmock.NewRows(
			[]string{"uuid", "workspace", "source_type", "source_uuid", "aggregated_table", "aggregated_uuid", "created_at"},
		).AddRow(src.UUID, src.Workspace, string(src.SourceType), src.SourceUUID, string(src.AggregatedTable), src.AggregatedUUID, src.CreatedAt))

	out, err := store.RecordSource(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, src.UUID, out.UUID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(ctx context.Context) error {
		return assert.AnError
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM host").WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(ctx context.Context) error {
		return store.DeleteHost(ctx, uuid.New(), uuid.New())
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveSourceAttack_ManualHasNone(t *testing.T) {
	store, _ := newMockStore(t)

	_, ok, err := store.ResolveSourceAttack(context.Background(), provenance.SourceManualHost, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok, "manual rows have no originating attack")
}
