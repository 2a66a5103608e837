package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/domain/attack"
)

func (s *Store) CreateAttack(ctx context.Context, a attack.Attack) (attack.Attack, error) {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = attack.StatusRunning
	}
	var leech interface{}
	if a.Leech != uuid.Nil {
		leech = a.Leech
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO attack (uuid, workspace, started_by, kind, leech, status, error, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.UUID, a.Workspace, a.StartedBy, string(a.Kind), leech, string(a.Status), a.Error, a.CreatedAt, a.FinishedAt)
	if err != nil {
		return attack.Attack{}, err
	}
	return a, nil
}

func (s *Store) scanAttack(row *sql.Row) (attack.Attack, error) {
	var a attack.Attack
	var kind, status string
	var leech uuid.NullUUID
	var finishedAt sql.NullTime
	if err := row.Scan(&a.UUID, &a.Workspace, &a.StartedBy, &kind, &leech, &status, &a.Error, &a.CreatedAt, &finishedAt); err != nil {
		if err == sql.ErrNoRows {
			return attack.Attack{}, notFound("attack")
		}
		return attack.Attack{}, err
	}
	a.Kind = attack.Kind(kind)
	a.Status = attack.Status(status)
	if leech.Valid {
		a.Leech = leech.UUID
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		a.FinishedAt = &t
	}
	return a, nil
}

func (s *Store) GetAttack(ctx context.Context, ws, id uuid.UUID) (attack.Attack, error) {
	return s.scanAttack(s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, workspace, started_by, kind, leech, status, error, created_at, finished_at
		FROM attack WHERE workspace = $1 AND uuid = $2
	`, ws, id))
}

func (s *Store) ListAttacks(ctx context.Context, ws uuid.UUID, limit, offset int) ([]attack.Attack, int, error) {
	total, err := s.countWhere(ctx, "attack", ws)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT uuid, workspace, started_by, kind, leech, status, error, created_at, finished_at
		FROM attack WHERE workspace = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, ws, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []attack.Attack
	for rows.Next() {
		var a attack.Attack
		var kind, status string
		var leech uuid.NullUUID
		var finishedAt sql.NullTime
		if err := rows.Scan(&a.UUID, &a.Workspace, &a.StartedBy, &kind, &leech, &status, &a.Error, &a.CreatedAt, &finishedAt); err != nil {
			return nil, 0, err
		}
		a.Kind = attack.Kind(kind)
		a.Status = attack.Status(status)
		if leech.Valid {
			a.Leech = leech.UUID
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			a.FinishedAt = &t
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (s *Store) FinishAttack(ctx context.Context, id uuid.UUID, finishedAt time.Time, errMsg string) error {
	status := attack.StatusFinished
	if errMsg != "" {
		status = attack.StatusErrored
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE attack SET status = $1, error = $2, finished_at = $3 WHERE uuid = $4
	`, string(status), errMsg, finishedAt, id)
	return err
}

func (s *Store) DeleteAttack(ctx context.Context, ws, id uuid.UUID) error {
	_, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM attack WHERE workspace = $1 AND uuid = $2`, ws, id)
	return err
}
