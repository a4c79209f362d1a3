package sqlitestore

import (
	"context"
	"fmt"

	"github.com/stratusmedia/cedrus/pkg/types"
)

func (s *Store) LoadPolicies(ctx context.Context, projectID types.ProjectID, q types.Query) (types.PageHash[types.PolicyID, types.Policy], error) {
	limit := q.EffectiveLimit()
	rows, err := s.db.QueryContext(ctx,
		`SELECT policy_id, text FROM policies WHERE project_id = ? AND policy_id > ? ORDER BY policy_id LIMIT ?`,
		projectID.String(), q.StartKey, limit+1,
	)
	if err != nil {
		return types.PageHash[types.PolicyID, types.Policy]{}, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var ids []types.PolicyID
	items := map[types.PolicyID]types.Policy{}
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return types.PageHash[types.PolicyID, types.Policy]{}, fmt.Errorf("scan policy: %w", err)
		}
		pid := types.PolicyID(id)
		ids = append(ids, pid)
		items[pid] = types.Policy{ID: pid, Text: text}
	}
	if err := rows.Err(); err != nil {
		return types.PageHash[types.PolicyID, types.Policy]{}, err
	}

	if uint32(len(ids)) > limit {
		last := ids[limit-1]
		out := map[types.PolicyID]types.Policy{}
		for _, id := range ids[:limit] {
			out[id] = items[id]
		}
		return types.PageHash[types.PolicyID, types.Policy]{Items: out, LastKey: string(last)}, nil
	}
	return types.PageHash[types.PolicyID, types.Policy]{Items: items}, nil
}

func (s *Store) SavePolicies(ctx context.Context, projectID types.ProjectID, policies map[types.PolicyID]types.Policy, createOnly bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for id, p := range policies {
		var err error
		if createOnly {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO policies (project_id, policy_id, text) VALUES (?, ?, ?)`,
				projectID.String(), string(id), p.Text,
			)
			if isUniqueConstraintErr(err) {
				return types.New(types.KindIDConflict, fmt.Sprintf("policy %s already exists", id))
			}
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO policies (project_id, policy_id, text) VALUES (?, ?, ?)
				 ON CONFLICT(project_id, policy_id) DO UPDATE SET text = excluded.text`,
				projectID.String(), string(id), p.Text,
			)
		}
		if err != nil {
			return fmt.Errorf("save policy %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit policies: %w", err)
	}
	return nil
}

func (s *Store) RemovePolicies(ctx context.Context, projectID types.ProjectID, ids []types.PolicyID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		_, err := tx.ExecContext(ctx, `DELETE FROM policies WHERE project_id = ? AND policy_id = ?`, projectID.String(), string(id))
		if err != nil {
			return fmt.Errorf("remove policy %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit policy removal: %w", err)
	}
	return nil
}

func (s *Store) LoadTemplates(ctx context.Context, projectID types.ProjectID, q types.Query) (types.PageHash[types.PolicyID, types.Template], error) {
	limit := q.EffectiveLimit()
	rows, err := s.db.QueryContext(ctx,
		`SELECT policy_id, text FROM templates WHERE project_id = ? AND policy_id > ? ORDER BY policy_id LIMIT ?`,
		projectID.String(), q.StartKey, limit+1,
	)
	if err != nil {
		return types.PageHash[types.PolicyID, types.Template]{}, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var ids []types.PolicyID
	items := map[types.PolicyID]types.Template{}
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return types.PageHash[types.PolicyID, types.Template]{}, fmt.Errorf("scan template: %w", err)
		}
		pid := types.PolicyID(id)
		ids = append(ids, pid)
		items[pid] = types.Template{ID: pid, Text: text}
	}
	if err := rows.Err(); err != nil {
		return types.PageHash[types.PolicyID, types.Template]{}, err
	}

	if uint32(len(ids)) > limit {
		last := ids[limit-1]
		out := map[types.PolicyID]types.Template{}
		for _, id := range ids[:limit] {
			out[id] = items[id]
		}
		return types.PageHash[types.PolicyID, types.Template]{Items: out, LastKey: string(last)}, nil
	}
	return types.PageHash[types.PolicyID, types.Template]{Items: items}, nil
}

func (s *Store) SaveTemplates(ctx context.Context, projectID types.ProjectID, templates map[types.PolicyID]types.Template, createOnly bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for id, t := range templates {
		var err error
		if createOnly {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO templates (project_id, policy_id, text) VALUES (?, ?, ?)`,
				projectID.String(), string(id), t.Text,
			)
			if isUniqueConstraintErr(err) {
				return types.New(types.KindIDConflict, fmt.Sprintf("template %s already exists", id))
			}
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO templates (project_id, policy_id, text) VALUES (?, ?, ?)
				 ON CONFLICT(project_id, policy_id) DO UPDATE SET text = excluded.text`,
				projectID.String(), string(id), t.Text,
			)
		}
		if err != nil {
			return fmt.Errorf("save template %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit templates: %w", err)
	}
	return nil
}

func (s *Store) RemoveTemplates(ctx context.Context, projectID types.ProjectID, ids []types.PolicyID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		_, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE project_id = ? AND policy_id = ?`, projectID.String(), string(id))
		if err != nil {
			return fmt.Errorf("remove template %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template removal: %w", err)
	}
	return nil
}

func (s *Store) LoadTemplateLinks(ctx context.Context, projectID types.ProjectID, q types.Query) (types.PageList[types.TemplateLink], error) {
	limit := q.EffectiveLimit()
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM template_links WHERE project_id = ? AND link_id > ? ORDER BY link_id LIMIT ?`,
		projectID.String(), q.StartKey, limit+1,
	)
	if err != nil {
		return types.PageList[types.TemplateLink]{}, fmt.Errorf("list template links: %w", err)
	}
	defer rows.Close()

	var out []types.TemplateLink
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return types.PageList[types.TemplateLink]{}, fmt.Errorf("scan template link: %w", err)
		}
		l, err := decodeTemplateLink(doc)
		if err != nil {
			return types.PageList[types.TemplateLink]{}, fmt.Errorf("decode template link: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return types.PageList[types.TemplateLink]{}, err
	}

	return paginate(out, limit, func(l types.TemplateLink) string { return string(l.LinkID) }), nil
}

func (s *Store) SaveTemplateLinks(ctx context.Context, projectID types.ProjectID, links []types.TemplateLink, createOnly bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, l := range links {
		doc, err := encodeTemplateLink(l)
		if err != nil {
			return fmt.Errorf("encode template link %s: %w", l.LinkID, err)
		}
		if createOnly {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO template_links (project_id, link_id, template_id, doc) VALUES (?, ?, ?, ?)`,
				projectID.String(), string(l.LinkID), string(l.TemplateID), doc,
			)
			if isUniqueConstraintErr(err) {
				return types.New(types.KindIDConflict, fmt.Sprintf("template link %s already exists", l.LinkID))
			}
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO template_links (project_id, link_id, template_id, doc) VALUES (?, ?, ?, ?)
				 ON CONFLICT(project_id, link_id) DO UPDATE SET template_id = excluded.template_id, doc = excluded.doc`,
				projectID.String(), string(l.LinkID), string(l.TemplateID), doc,
			)
		}
		if err != nil {
			return fmt.Errorf("save template link %s: %w", l.LinkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template links: %w", err)
	}
	return nil
}

func (s *Store) RemoveTemplateLinks(ctx context.Context, projectID types.ProjectID, ids []types.PolicyID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		_, err := tx.ExecContext(ctx, `DELETE FROM template_links WHERE project_id = ? AND link_id = ?`, projectID.String(), string(id))
		if err != nil {
			return fmt.Errorf("remove template link %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template link removal: %w", err)
	}
	return nil
}
