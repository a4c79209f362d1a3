package cedrus

import (
	"context"

	"github.com/stratusmedia/cedrus/pkg/authz"
	"github.com/stratusmedia/cedrus/pkg/types"
)

// Authorize answers one authorization question against projectID's
// current snapshot.
func (c *Core) Authorize(ctx context.Context, projectID types.ProjectID, req authz.Request) (authz.Decision, error) {
	return c.evaluator.Authorize(ctx, projectID, req)
}

// AuthorizeBatch answers every request in reqs against projectID's
// current snapshot, preserving input order.
func (c *Core) AuthorizeBatch(ctx context.Context, projectID types.ProjectID, reqs []authz.Request) ([]authz.Decision, error) {
	return c.evaluator.AuthorizeBatch(ctx, projectID, reqs)
}

// AuthorizeBatchFromResources answers whether principal may perform
// action on each of resources, returning one bool per resource in input
// order. It is a convenience wrapper for the common case of checking one
// principal/action pair against many candidate resources (e.g. filtering
// a list view down to what the caller may see).
func (c *Core) AuthorizeBatchFromResources(ctx context.Context, projectID types.ProjectID, principal, action types.EntityUID, resources []types.EntityUID) ([]bool, error) {
	reqs := make([]authz.Request, len(resources))
	for i, r := range resources {
		reqs[i] = authz.Request{Principal: principal, Action: action, Resource: r}
	}
	decisions, err := c.evaluator.AuthorizeBatch(ctx, projectID, reqs)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(decisions))
	for i, d := range decisions {
		out[i] = d.Allowed
	}
	return out, nil
}

// IsAllowed is a convenience wrapper combining the admin-project bypass
// with a single authorization check: a principal in the Admins group is
// always allowed, independent of the target project's own policies.
func (c *Core) IsAllowed(ctx context.Context, projectID types.ProjectID, principal, action, resource types.EntityUID) (bool, error) {
	if c.IsAdmin(principal) {
		return true, nil
	}
	decision, err := c.evaluator.Authorize(ctx, projectID, authz.Request{Principal: principal, Action: action, Resource: resource})
	if err != nil {
		return false, err
	}
	return decision.Allowed, nil
}
