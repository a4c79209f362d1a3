package sqlitestore

import (
	"context"
	"fmt"

	"github.com/stratusmedia/cedrus/pkg/types"
)

func (s *Store) LoadEntities(ctx context.Context, projectID types.ProjectID, q types.Query) (types.PageList[types.Entity], error) {
	limit := q.EffectiveLimit()
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM entities WHERE project_id = ? AND (entity_type || '::' || entity_id) > ?
		 ORDER BY entity_type, entity_id LIMIT ?`,
		projectID.String(), q.StartKey, limit+1,
	)
	if err != nil {
		return types.PageList[types.Entity]{}, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []types.Entity
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return types.PageList[types.Entity]{}, fmt.Errorf("scan entity: %w", err)
		}
		e, err := decodeEntity(doc)
		if err != nil {
			return types.PageList[types.Entity]{}, fmt.Errorf("decode entity: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return types.PageList[types.Entity]{}, err
	}

	return paginate(out, limit, func(e types.Entity) string { return e.UID.Type + "::" + e.UID.ID }), nil
}

func (s *Store) SaveEntities(ctx context.Context, projectID types.ProjectID, entities []types.Entity, createOnly bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entities {
		doc, err := encodeEntity(e)
		if err != nil {
			return fmt.Errorf("encode entity %s: %w", e.UID, err)
		}
		if createOnly {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO entities (project_id, entity_type, entity_id, doc) VALUES (?, ?, ?, ?)`,
				projectID.String(), e.UID.Type, e.UID.ID, doc,
			)
			if isUniqueConstraintErr(err) {
				return types.New(types.KindIDConflict, fmt.Sprintf("entity %s already exists", e.UID))
			}
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO entities (project_id, entity_type, entity_id, doc) VALUES (?, ?, ?, ?)
				 ON CONFLICT(project_id, entity_type, entity_id) DO UPDATE SET doc = excluded.doc`,
				projectID.String(), e.UID.Type, e.UID.ID, doc,
			)
		}
		if err != nil {
			return fmt.Errorf("save entity %s: %w", e.UID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entities: %w", err)
	}
	return nil
}

func (s *Store) RemoveEntities(ctx context.Context, projectID types.ProjectID, uids []types.EntityUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range uids {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM entities WHERE project_id = ? AND entity_type = ? AND entity_id = ?`,
			projectID.String(), u.Type, u.ID,
		)
		if err != nil {
			return fmt.Errorf("remove entity %s: %w", u, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entity removal: %w", err)
	}
	return nil
}
