package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/domain/search"
	"github.com/kraken-ng/kraken/internal/app/krakenerr"
)

func (s *Store) CreateSearch(ctx context.Context, srch search.Search) (search.Search, error) {
	if srch.UUID == uuid.Nil {
		srch.UUID = uuid.New()
	}
	if srch.CreatedAt.IsZero() {
		srch.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO search (uuid, workspace, started_by, term, error, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, srch.UUID, srch.Workspace, srch.StartedBy, srch.Term, srch.Error, srch.CreatedAt, srch.FinishedAt)
	if err != nil {
		return search.Search{}, err
	}
	return srch, nil
}

func (s *Store) GetSearch(ctx context.Context, ws, id uuid.UUID) (search.Search, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, workspace, started_by, term, error, created_at, finished_at
		FROM search WHERE workspace = $1 AND uuid = $2
	`, ws, id)
	var out search.Search
	if err := row.Scan(&out.UUID, &out.Workspace, &out.StartedBy, &out.Term, &out.Error, &out.CreatedAt, &out.FinishedAt); err != nil {
		if err == sql.ErrNoRows {
			return search.Search{}, krakenerr.New(krakenerr.NotFound, krakenerr.CodeInvalidUUID, "search does not exist")
		}
		return search.Search{}, err
	}
	return out, nil
}

func (s *Store) FinishSearch(ctx context.Context, id uuid.UUID, finishedAt time.Time, errMsg string) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE search SET error = $1, finished_at = $2 WHERE uuid = $3
	`, errMsg, finishedAt, id)
	return err
}

func (s *Store) AddResult(ctx context.Context, r search.Result) (search.Result, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO search_result (uuid, search, ref_type, ref_key) VALUES ($1, $2, $3, $4)
	`, r.UUID, r.Search, string(r.RefType), r.RefKey)
	if err != nil {
		return search.Result{}, err
	}
	return r, nil
}

func (s *Store) ListResults(ctx context.Context, searchID uuid.UUID, limit, offset int) ([]search.Result, int, error) {
	var total int
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT count(*) FROM search_result WHERE search = $1`, searchID)
	if err := row.Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT uuid, search, ref_type, ref_key FROM search_result WHERE search = $1
		ORDER BY uuid LIMIT $2 OFFSET $3
	`, searchID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []search.Result
	for rows.Next() {
		var r search.Result
		var refType string
		if err := rows.Scan(&r.UUID, &r.Search, &refType, &r.RefKey); err != nil {
			return nil, 0, err
		}
		r.RefType = search.RefType(refType)
		out = append(out, r)
	}
	return out, total, rows.Err()
}
