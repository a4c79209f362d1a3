package cedrus

import (
	"context"

	"github.com/stratusmedia/cedrus/pkg/types"
)

// ProjectSchemaFind loads projectID's schema, or nil if none has been set.
func (c *Core) ProjectSchemaFind(ctx context.Context, projectID types.ProjectID) (*types.Schema, error) {
	if err := c.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	return c.db.LoadSchema(ctx, projectID)
}

// ProjectEntitiesFind lists projectID's entities from the Durable Store,
// paginated per q.
func (c *Core) ProjectEntitiesFind(ctx context.Context, projectID types.ProjectID, q types.Query) (types.PageList[types.Entity], error) {
	if err := c.requireProject(ctx, projectID); err != nil {
		return types.PageList[types.Entity]{}, err
	}
	return c.db.LoadEntities(ctx, projectID, q)
}

// ProjectPoliciesFind lists projectID's static policies from the Durable
// Store, paginated per q.
func (c *Core) ProjectPoliciesFind(ctx context.Context, projectID types.ProjectID, q types.Query) (types.PageHash[types.PolicyID, types.Policy], error) {
	if err := c.requireProject(ctx, projectID); err != nil {
		return types.PageHash[types.PolicyID, types.Policy]{}, err
	}
	return c.db.LoadPolicies(ctx, projectID, q)
}

// ProjectTemplatesFind lists projectID's policy templates from the
// Durable Store, paginated per q.
func (c *Core) ProjectTemplatesFind(ctx context.Context, projectID types.ProjectID, q types.Query) (types.PageHash[types.PolicyID, types.Template], error) {
	if err := c.requireProject(ctx, projectID); err != nil {
		return types.PageHash[types.PolicyID, types.Template]{}, err
	}
	return c.db.LoadTemplates(ctx, projectID, q)
}

// ProjectTemplateLinksFind lists projectID's template links from the
// Durable Store, paginated per q.
func (c *Core) ProjectTemplateLinksFind(ctx context.Context, projectID types.ProjectID, q types.Query) (types.PageList[types.TemplateLink], error) {
	if err := c.requireProject(ctx, projectID); err != nil {
		return types.PageList[types.TemplateLink]{}, err
	}
	return c.db.LoadTemplateLinks(ctx, projectID, q)
}
