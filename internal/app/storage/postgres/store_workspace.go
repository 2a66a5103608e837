package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/domain/user"
	"github.com/kraken-ng/kraken/internal/app/domain/workspace"
	"github.com/kraken-ng/kraken/internal/app/krakenerr"
)

func notFound(entity string) error {
	return krakenerr.New(krakenerr.NotFound, krakenerr.CodeInvalidUUID, entity+" not found")
}

// WorkspaceStore ------------------------------------------------------------

func (s *Store) CreateWorkspace(ctx context.Context, ws workspace.Workspace) (workspace.Workspace, error) {
	if ws.UUID == uuid.Nil {
		ws.UUID = uuid.New()
	}
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO workspace (uuid, name, description, owner, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ws.UUID, ws.Name, ws.Description, ws.Owner, ws.CreatedAt)
	if err != nil {
		return workspace.Workspace{}, err
	}
	return ws, nil
}

func (s *Store) GetWorkspace(ctx context.Context, id uuid.UUID) (workspace.Workspace, error) {
	var ws workspace.Workspace
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, name, description, owner, created_at FROM workspace WHERE uuid = $1
	`, id)
	if err := row.Scan(&ws.UUID, &ws.Name, &ws.Description, &ws.Owner, &ws.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return workspace.Workspace{}, notFound("workspace")
		}
		return workspace.Workspace{}, err
	}
	return ws, nil
}

func (s *Store) ListWorkspaces(ctx context.Context, member uuid.UUID) ([]workspace.Workspace, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT DISTINCT w.uuid, w.name, w.description, w.owner, w.created_at
		FROM workspace w
		LEFT JOIN workspace_member m ON m.workspace = w.uuid
		WHERE w.owner = $1 OR m."user" = $1
		ORDER BY w.created_at
	`, member)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []workspace.Workspace
	for rows.Next() {
		var ws workspace.Workspace
		if err := rows.Scan(&ws.UUID, &ws.Name, &ws.Description, &ws.Owner, &ws.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

func (s *Store) DeleteWorkspace(ctx context.Context, id uuid.UUID) error {
	_, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM workspace WHERE uuid = $1`, id)
	return err
}

func (s *Store) AddMember(ctx context.Context, m workspace.Member) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO workspace_member (workspace, "user", created_at) VALUES ($1, $2, $3)
		ON CONFLICT (workspace, "user") DO NOTHING
	`, m.Workspace, m.User, m.CreatedAt)
	return err
}

func (s *Store) IsMember(ctx context.Context, ws, userID uuid.UUID) (bool, error) {
	var exists bool
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM workspace w
			LEFT JOIN workspace_member m ON m.workspace = w.uuid
			WHERE w.uuid = $1 AND (w.owner = $2 OR m."user" = $2)
		)
	`, ws, userID)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// UserStore -------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.UUID == uuid.Nil {
		u.UUID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO kraken_user (uuid, username, display_name, password_hash, created_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.UUID, u.Username, u.DisplayName, u.PasswordHash, u.CreatedAt, u.LastLogin)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (user.User, error) {
	return s.scanUser(s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, username, display_name, password_hash, created_at, last_login FROM kraken_user WHERE uuid = $1
	`, id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return s.scanUser(s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, username, display_name, password_hash, created_at, last_login FROM kraken_user WHERE username = $1
	`, username))
}

func (s *Store) scanUser(row *sql.Row) (user.User, error) {
	var u user.User
	if err := row.Scan(&u.UUID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.CreatedAt, &u.LastLogin); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, notFound("user")
		}
		return user.User{}, err
	}
	return u, nil
}
