package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/stratusmedia/cedrus/pkg/types"
)

func (s *Store) ListProjects(ctx context.Context, q types.Query) (types.PageList[types.Project], error) {
	limit := q.EffectiveLimit()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, owner_type, owner_id, api_key_hash, created_at, updated_at
		 FROM projects WHERE id > ? ORDER BY id LIMIT ?`,
		q.StartKey, limit+1,
	)
	if err != nil {
		return types.PageList[types.Project]{}, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []types.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return types.PageList[types.Project]{}, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return types.PageList[types.Project]{}, err
	}

	return paginate(out, limit, func(p types.Project) string { return p.ID.String() }), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (types.Project, error) {
	var id, ownerType, ownerID, apiKeyHash, name string
	var createdAt, updatedAt int64
	if err := row.Scan(&id, &name, &ownerType, &ownerID, &apiKeyHash, &createdAt, &updatedAt); err != nil {
		return types.Project{}, fmt.Errorf("scan project: %w", err)
	}
	pid, err := types.ParseProjectID(id)
	if err != nil {
		return types.Project{}, err
	}
	return types.Project{
		ID:         pid,
		Name:       name,
		Owner:      types.NewEntityUID(ownerType, ownerID),
		APIKeyHash: apiKeyHash,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}

func (s *Store) LoadProject(ctx context.Context, id types.ProjectID) (*types.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, owner_type, owner_id, api_key_hash, created_at, updated_at FROM projects WHERE id = ?`,
		id.String(),
	)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SaveProject(ctx context.Context, project types.Project, createOnly bool) error {
	if createOnly {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO projects (id, name, owner_type, owner_id, api_key_hash, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			project.ID.String(), project.Name, project.Owner.Type, project.Owner.ID,
			project.APIKeyHash, project.CreatedAt, project.UpdatedAt,
		)
		if isUniqueConstraintErr(err) {
			return types.New(types.KindIDConflict, fmt.Sprintf("project %s already exists", project.ID))
		}
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, owner_type = ?, owner_id = ?, api_key_hash = ?, updated_at = ?
		 WHERE id = ?`,
		project.Name, project.Owner.Type, project.Owner.ID, project.APIKeyHash, project.UpdatedAt,
		project.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

func (s *Store) RemoveProject(ctx context.Context, id types.ProjectID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("remove project: %w", err)
	}
	return nil
}

func (s *Store) LoadIdentitySource(ctx context.Context, projectID types.ProjectID) (*types.IdentitySourceConfig, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM identity_sources WHERE project_id = ?`, projectID.String()).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load identity source: %w", err)
	}
	src, err := decodeIdentitySource(doc)
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func (s *Store) SaveIdentitySource(ctx context.Context, projectID types.ProjectID, src types.IdentitySourceConfig) error {
	doc, err := encodeIdentitySource(src)
	if err != nil {
		return fmt.Errorf("encode identity source: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO identity_sources (project_id, doc) VALUES (?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET doc = excluded.doc`,
		projectID.String(), doc,
	)
	if err != nil {
		return fmt.Errorf("save identity source: %w", err)
	}
	return nil
}

func (s *Store) RemoveIdentitySource(ctx context.Context, projectID types.ProjectID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM identity_sources WHERE project_id = ?`, projectID.String())
	if err != nil {
		return fmt.Errorf("remove identity source: %w", err)
	}
	return nil
}

func (s *Store) LoadSchema(ctx context.Context, projectID types.ProjectID) (*types.Schema, error) {
	var mode string
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT mode, doc FROM schemas WHERE project_id = ?`, projectID.String()).Scan(&mode, &doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return &types.Schema{Document: doc, Mode: types.SchemaMode(mode)}, nil
}

func (s *Store) SaveSchema(ctx context.Context, projectID types.ProjectID, schema types.Schema) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schemas (project_id, mode, doc) VALUES (?, ?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET mode = excluded.mode, doc = excluded.doc`,
		projectID.String(), string(schema.Mode), schema.Document,
	)
	if err != nil {
		return fmt.Errorf("save schema: %w", err)
	}
	return nil
}

func (s *Store) RemoveSchema(ctx context.Context, projectID types.ProjectID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM schemas WHERE project_id = ?`, projectID.String())
	if err != nil {
		return fmt.Errorf("remove schema: %w", err)
	}
	return nil
}

// paginate truncates items to limit and computes the next page's cursor.
func paginate[T any](items []T, limit uint32, keyOf func(T) string) types.PageList[T] {
	if uint32(len(items)) <= limit {
		return types.PageList[T]{Items: items}
	}
	return types.PageList[T]{Items: items[:limit], LastKey: keyOf(items[limit-1])}
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	// modernc.org/sqlite reports constraint violations with this substring;
	// there is no typed sentinel exported for it.
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
