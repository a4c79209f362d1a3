package cedrus

import (
	"context"
	"fmt"

	"github.com/stratusmedia/cedrus/pkg/durable"
	"github.com/stratusmedia/cedrus/pkg/snapshot"
	"github.com/stratusmedia/cedrus/pkg/types"
)

// loadSnapshotFromDurable reads every piece of projectID's state directly
// from the Durable Store and compiles it into a ready-to-serve Snapshot.
// Used by InitCache (to warm the Shared Cache) and as LoadCache's
// fallback when the Shared Cache is missing a project.
func loadSnapshotFromDurable(ctx context.Context, db durable.Store, projectID types.ProjectID) (*snapshot.Snapshot, error) {
	schema, err := db.LoadSchema(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	entities, err := loadAllEntities(ctx, db, projectID)
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	policies, err := loadAllPolicies(ctx, db, projectID)
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	templates, err := loadAllTemplates(ctx, db, projectID)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	links, err := loadAllTemplateLinks(ctx, db, projectID)
	if err != nil {
		return nil, fmt.Errorf("load template links: %w", err)
	}

	snap := snapshot.New(projectID)
	if schema != nil {
		snap.Schema = *schema
	}
	snap.Entities = entities
	snap.Policies = policies
	snap.Templates = templates
	snap.TemplateLinks = links

	if err := snap.Compile(); err != nil {
		return nil, fmt.Errorf("compile snapshot: %w", err)
	}
	return snap, nil
}

func loadAllEntities(ctx context.Context, db durable.Store, projectID types.ProjectID) (map[types.EntityUID]types.Entity, error) {
	out := map[types.EntityUID]types.Entity{}
	q := types.NewQuery()
	for {
		page, err := db.LoadEntities(ctx, projectID, q)
		if err != nil {
			return nil, err
		}
		for _, e := range page.Items {
			out[e.UID] = e
		}
		if page.LastKey == "" {
			return out, nil
		}
		q.StartKey = page.LastKey
	}
}

func loadAllPolicies(ctx context.Context, db durable.Store, projectID types.ProjectID) (map[types.PolicyID]types.Policy, error) {
	out := map[types.PolicyID]types.Policy{}
	q := types.NewQuery()
	for {
		page, err := db.LoadPolicies(ctx, projectID, q)
		if err != nil {
			return nil, err
		}
		for k, v := range page.Items {
			out[k] = v
		}
		if page.LastKey == "" {
			return out, nil
		}
		q.StartKey = page.LastKey
	}
}

func loadAllTemplates(ctx context.Context, db durable.Store, projectID types.ProjectID) (map[types.PolicyID]types.Template, error) {
	out := map[types.PolicyID]types.Template{}
	q := types.NewQuery()
	for {
		page, err := db.LoadTemplates(ctx, projectID, q)
		if err != nil {
			return nil, err
		}
		for k, v := range page.Items {
			out[k] = v
		}
		if page.LastKey == "" {
			return out, nil
		}
		q.StartKey = page.LastKey
	}
}

func loadAllTemplateLinks(ctx context.Context, db durable.Store, projectID types.ProjectID) (map[types.PolicyID]types.TemplateLink, error) {
	out := map[types.PolicyID]types.TemplateLink{}
	q := types.NewQuery()
	for {
		page, err := db.LoadTemplateLinks(ctx, projectID, q)
		if err != nil {
			return nil, err
		}
		for _, l := range page.Items {
			out[l.LinkID] = l
		}
		if page.LastKey == "" {
			return out, nil
		}
		q.StartKey = page.LastKey
	}
}

func loadAllProjects(ctx context.Context, db durable.Store) ([]types.Project, error) {
	var out []types.Project
	q := types.NewQuery()
	for {
		page, err := db.ListProjects(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.LastKey == "" {
			return out, nil
		}
		q.StartKey = page.LastKey
	}
}
