package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/kraken-ng/kraken/internal/app/domain/finding"
)

func (s *Store) GetFactoryEntry(ctx context.Context, identifier string) (finding.FactoryEntry, bool, error) {
	var entry finding.FactoryEntry
	var definition uuid.NullUUID
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT identifier, definition FROM finding_factory_entry WHERE identifier = $1
	`, identifier)
	if err := row.Scan(&entry.Identifier, &definition); err != nil {
		if err == sql.ErrNoRows {
			return finding.FactoryEntry{}, false, nil
		}
		return finding.FactoryEntry{}, false, err
	}
	if definition.Valid {
		id := definition.UUID
		entry.Definition = &id
	}
	return entry, true, nil
}

func (s *Store) FindFindingByDefinition(ctx context.Context, ws, definition uuid.UUID) (finding.Finding, bool, error) {
	var f finding.Finding
	var severity string
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT uuid, workspace, definition, severity, tool_details, created_at
		FROM finding WHERE workspace = $1 AND definition = $2
	`, ws, definition)
	if err := row.Scan(&f.UUID, &f.Workspace, &f.Definition, &severity, &f.ToolDetails, &f.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return finding.Finding{}, false, nil
		}
		return finding.Finding{}, false, err
	}
	f.Severity = finding.Severity(severity)
	return f, true, nil
}

func (s *Store) CreateFinding(ctx context.Context, f finding.Finding) (finding.Finding, error) {
	if f.UUID == uuid.Nil {
		f.UUID = uuid.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO finding (uuid, workspace, definition, severity, tool_details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, f.UUID, f.Workspace, f.Definition, string(f.Severity), f.ToolDetails, f.CreatedAt)
	if err != nil {
		return finding.Finding{}, err
	}
	return f, nil
}

func (s *Store) ListAffected(ctx context.Context, findingID uuid.UUID) ([]finding.Affected, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT uuid, finding, entity, kind, created_at FROM finding_affected WHERE finding = $1
	`, findingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []finding.Affected
	for rows.Next() {
		var a finding.Affected
		var kind string
		if err := rows.Scan(&a.UUID, &a.Finding, &a.Entity, &kind, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Kind = finding.EntityKind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CreateAffected(ctx context.Context, a finding.Affected) (finding.Affected, error) {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO finding_affected (uuid, finding, entity, kind, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (finding, entity, kind) DO NOTHING
	`, a.UUID, a.Finding, a.Entity, string(a.Kind), a.CreatedAt)
	if err != nil {
		return finding.Affected{}, err
	}
	return a, nil
}

func (s *Store) ListDefinitionCategories(ctx context.Context, definition uuid.UUID) ([]finding.Category, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT c.uuid, c.name
		FROM finding_category c
		JOIN finding_definition_category dc ON dc.category = c.uuid
		WHERE dc.definition = $1
	`, definition)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []finding.Category
	for rows.Next() {
		var c finding.Category
		if err := rows.Scan(&c.UUID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CopyFindingCategories(ctx context.Context, findingID uuid.UUID, categories []finding.Category) error {
	for _, c := range categories {
		if _, err := s.conn(ctx).ExecContext(ctx, `
			INSERT INTO finding_category_link (finding, category) VALUES ($1, $2)
			ON CONFLICT (finding, category) DO NOTHING
		`, findingID, c.UUID); err != nil {
			return err
		}
	}
	return nil
}
