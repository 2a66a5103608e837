package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/domain/provenance"
	"github.com/kraken-ng/kraken/internal/app/domain/tag"
)

func (s *Store) CreateGlobalTag(ctx context.Context, t tag.GlobalTag) (tag.GlobalTag, error) {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO global_tag (uuid, name, color_r, color_g, color_b, color_a)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.UUID, t.Name, t.Color.R, t.Color.G, t.Color.B, t.Color.A)
	if err != nil {
		return tag.GlobalTag{}, err
	}
	return t, nil
}

func (s *Store) CreateWorkspaceTag(ctx context.Context, t tag.WorkspaceTag) (tag.WorkspaceTag, error) {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO workspace_tag (uuid, workspace, name, color_r, color_g, color_b, color_a)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.UUID, t.Workspace, t.Name, t.Color.R, t.Color.G, t.Color.B, t.Color.A)
	if err != nil {
		return tag.WorkspaceTag{}, err
	}
	return t, nil
}

func (s *Store) AttachGlobalTag(ctx context.Context, tagID, entity uuid.UUID, table provenance.Table) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO global_tag_link (tag, entity, entity_table, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tag, entity, entity_table) DO NOTHING
	`, tagID, entity, string(table), time.Now().UTC())
	return err
}

func (s *Store) AttachWorkspaceTag(ctx context.Context, tagID, entity uuid.UUID, table provenance.Table) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO workspace_tag_link (tag, entity, entity_table, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tag, entity, entity_table) DO NOTHING
	`, tagID, entity, string(table), time.Now().UTC())
	return err
}
