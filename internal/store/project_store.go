package store

import (
	"context"
	"fmt"

	"github.com/nhle/collabtask/internal/model"
)

// ReplaceOrganizations makes orgs the complete cached organization list.
func (s *SQLiteStore) ReplaceOrganizations(ctx context.Context, orgs []model.Organization) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM organizations"); err != nil {
		return fmt.Errorf("clearing organizations: %w", err)
	}

	for _, o := range orgs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO organizations (id, name, description, address, website, role, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, o.Name, o.Description, o.Address, o.Website, o.Role,
			o.CreatedAt.UTC(), o.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting organization %s: %w", o.ID, err)
		}
	}

	return tx.Commit()
}

// GetOrganizations returns the cached organizations ordered by name.
func (s *SQLiteStore) GetOrganizations(ctx context.Context) ([]model.Organization, error) {
	// sqlx maps untagged fields by lower-cased name.
	var orgs []model.Organization
	err := s.db.SelectContext(ctx, &orgs, `
		SELECT id, name, description, address, website, role,
			created_at AS "createdat", updated_at AS "updatedat"
		FROM organizations ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("querying organizations: %w", err)
	}
	return orgs, nil
}

// ReplaceProjects makes projects the complete cached project list of orgID.
func (s *SQLiteStore) ReplaceProjects(ctx context.Context, orgID string, projects []model.Project) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE org_id = ?", orgID); err != nil {
		return fmt.Errorf("clearing projects of organization %s: %w", orgID, err)
	}

	for _, p := range projects {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO projects (id, org_id, name, description, archived, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, orgID, p.Name, p.Description, boolToInt(p.Archived),
			p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting project %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// GetProjects returns the cached projects of orgID ordered by name.
// Archived projects are included only when includeArchived is set.
func (s *SQLiteStore) GetProjects(ctx context.Context, orgID string, includeArchived bool) ([]model.Project, error) {
	query := `
		SELECT id, name, description, archived, created_at, updated_at
		FROM projects WHERE org_id = ?`
	if !includeArchived {
		query += " AND archived = 0"
	}
	query += " ORDER BY name COLLATE NOCASE"

	rows, err := s.db.QueryxContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var (
			p        model.Project
			archived int
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &archived, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		p.Archived = archived != 0
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
