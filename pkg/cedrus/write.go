package cedrus

import (
	"context"
	"fmt"

	"github.com/stratusmedia/cedrus/pkg/eventbus"
	"github.com/stratusmedia/cedrus/pkg/snapshot"
	"github.com/stratusmedia/cedrus/pkg/types"
)

// requireProject returns KindNoSuchProject if id is not present in the
// Durable Store, the same guard every write-path operation starts with.
func (c *Core) requireProject(ctx context.Context, id types.ProjectID) error {
	p, err := c.db.LoadProject(ctx, id)
	if err != nil {
		return types.Wrap(types.KindBackendUnavailable, "load project", err)
	}
	if p == nil {
		return types.New(types.KindNoSuchProject, id.String())
	}
	return nil
}

func (c *Core) publish(ctx context.Context, e eventbus.Event) {
	if err := c.bus.Publish(ctx, e); err != nil {
		c.logger.Warn("event publish failed", "kind", e.Kind, "project_id", e.ProjectID.String(), "error", err)
	}
}

func (c *Core) warnCache(op string, projectID types.ProjectID, err error) {
	if err != nil {
		c.logger.Warn("shared cache mirror failed", "op", op, "project_id", projectID.String(), "error", err)
	}
}

// ProjectPutSchema validates every currently stored entity against schema
// (in mode strict, any mismatch rejects the write; in lenient, mismatches
// are retained as snapshot diagnostics) and installs it as the project's
// schema.
func (c *Core) ProjectPutSchema(ctx context.Context, projectID types.ProjectID, schema types.Schema) error {
	if err := c.requireProject(ctx, projectID); err != nil {
		return err
	}

	trial := snapshot.CloneOrNew(c.registry.Get(projectID), projectID)
	trial.Schema = schema
	if err := trial.Compile(); err != nil {
		return err
	}

	if err := c.db.SaveSchema(ctx, projectID, schema); err != nil {
		return types.Wrap(types.KindBackendUnavailable, "save schema", err)
	}

	if err := c.registry.Mutate(projectID, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
		next := snapshot.CloneOrNew(current, projectID)
		next.Schema = schema
		if err := next.Compile(); err != nil {
			return nil, err
		}
		return next, nil
	}); err != nil {
		return err
	}

	c.warnCache("project_put_schema", projectID, c.cache.PutSchema(ctx, projectID, schema))
	c.publish(ctx, eventbus.ProjectPutSchema(c.id, projectID))
	return nil
}

func (c *Core) ProjectRemoveSchema(ctx context.Context, projectID types.ProjectID) error {
	if err := c.requireProject(ctx, projectID); err != nil {
		return err
	}

	if err := c.db.RemoveSchema(ctx, projectID); err != nil {
		return types.Wrap(types.KindBackendUnavailable, "remove schema", err)
	}

	if err := c.registry.Mutate(projectID, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
		next := snapshot.CloneOrNew(current, projectID)
		next.Schema = types.Schema{}
		if err := next.Compile(); err != nil {
			return nil, err
		}
		return next, nil
	}); err != nil {
		return err
	}

	c.warnCache("project_remove_schema", projectID, c.cache.DeleteSchema(ctx, projectID))
	c.publish(ctx, eventbus.ProjectRemoveSchema(c.id, projectID))
	return nil
}

// ProjectAddEntities adds entities as a set-union with conflict detection:
// any entity whose UID already exists in the project is a KindIDConflict
// rejecting the entire call, all-or-nothing. Every parent UID referenced
// by a new entity must resolve to an entity already present or being
// added in the same call, or the call fails with KindReferentialIntegrity
// and no durable write occurs.
func (c *Core) ProjectAddEntities(ctx context.Context, projectID types.ProjectID, entities []types.Entity) error {
	if err := c.requireProject(ctx, projectID); err != nil {
		return err
	}

	snap := c.registry.Get(projectID)

	present := map[types.EntityUID]struct{}{}
	if snap != nil {
		for uid := range snap.Entities {
			present[uid] = struct{}{}
		}
	}
	for _, e := range entities {
		if _, exists := present[e.UID]; exists {
			return types.New(types.KindIDConflict, fmt.Sprintf("entity %s already exists", e.UID))
		}
		present[e.UID] = struct{}{}
	}
	for _, e := range entities {
		for parent := range e.Parents {
			if _, ok := present[parent]; !ok {
				return types.New(types.KindReferentialIntegrity, fmt.Sprintf("entity %s has unknown parent %s", e.UID, parent))
			}
		}
	}

	if err := c.db.SaveEntities(ctx, projectID, entities, true); err != nil {
		if types.Is(err, types.KindIDConflict) {
			return err
		}
		return types.Wrap(types.KindBackendUnavailable, "save entities", err)
	}

	if err := c.registry.Mutate(projectID, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
		next := snapshot.CloneOrNew(current, projectID)
		for _, e := range entities {
			next.Entities[e.UID] = e
		}
		if err := next.Compile(); err != nil {
			return nil, err
		}
		return next, nil
	}); err != nil {
		return err
	}

	c.warnCache("project_add_entities", projectID, c.cache.PutEntities(ctx, projectID, entities))

	uids := make([]types.EntityUID, len(entities))
	for i, e := range entities {
		uids[i] = e.UID
	}
	c.publish(ctx, eventbus.ProjectAddEntities(c.id, projectID, uids))
	return nil
}

// ProjectRemoveEntities is idempotent: removing an unknown UID is a no-op
// for that UID, not an error.
func (c *Core) ProjectRemoveEntities(ctx context.Context, projectID types.ProjectID, uids []types.EntityUID) error {
	if err := c.requireProject(ctx, projectID); err != nil {
		return err
	}

	if err := c.db.RemoveEntities(ctx, projectID, uids); err != nil {
		return types.Wrap(types.KindBackendUnavailable, "remove entities", err)
	}

	if err := c.registry.Mutate(projectID, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
		next := snapshot.CloneOrNew(current, projectID)
		for _, u := range uids {
			delete(next.Entities, u)
		}
		if err := next.Compile(); err != nil {
			return nil, err
		}
		return next, nil
	}); err != nil {
		return err
	}

	c.warnCache("project_remove_entities", projectID, c.cache.DeleteEntities(ctx, projectID, uids))
	c.publish(ctx, eventbus.ProjectRemoveEntities(c.id, projectID, uids))
	return nil
}

// ProjectAddPolicies adds static policies as a set-union with conflict
// detection. A policy id colliding with an existing policy id or an
// existing template link id is rejected with KindIDConflict, since a
// link's instantiated policy always wins that tie per the compilation
// order in Snapshot.Compile.
func (c *Core) ProjectAddPolicies(ctx context.Context, projectID types.ProjectID, policies map[types.PolicyID]types.Policy) error {
	if err := c.requireProject(ctx, projectID); err != nil {
		return err
	}

	snap := c.registry.Get(projectID)
	for id := range policies {
		if snap != nil {
			if _, exists := snap.Policies[id]; exists {
				return types.New(types.KindIDConflict, fmt.Sprintf("policy %s already exists", id))
			}
			if _, exists := snap.TemplateLinks[id]; exists {
				return types.New(types.KindIDConflict, fmt.Sprintf("policy id %s collides with an existing template link", id))
			}
		}
	}

	if err := c.db.SavePolicies(ctx, projectID, policies, true); err != nil {
		if types.Is(err, types.KindIDConflict) {
			return err
		}
		return types.Wrap(types.KindBackendUnavailable, "save policies", err)
	}

	if err := c.registry.Mutate(projectID, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
		next := snapshot.CloneOrNew(current, projectID)
		for id, p := range policies {
			next.Policies[id] = p
		}
		if err := next.Compile(); err != nil {
			return nil, err
		}
		return next, nil
	}); err != nil {
		return err
	}

	c.warnCache("project_add_policies", projectID, c.cache.PutPolicies(ctx, projectID, policies))

	ids := make([]types.PolicyID, 0, len(policies))
	for id := range policies {
		ids = append(ids, id)
	}
	c.publish(ctx, eventbus.ProjectAddPolicies(c.id, projectID, ids))
	return nil
}

func (c *Core) ProjectRemovePolicies(ctx context.Context, projectID types.ProjectID, ids []types.PolicyID) error {
	if err := c.requireProject(ctx, projectID); err != nil {
		return err
	}

	if err := c.db.RemovePolicies(ctx, projectID, ids); err != nil {
		return types.Wrap(types.KindBackendUnavailable, "remove policies", err)
	}

	if err := c.registry.Mutate(projectID, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
		next := snapshot.CloneOrNew(current, projectID)
		for _, id := range ids {
			delete(next.Policies, id)
		}
		if err := next.Compile(); err != nil {
			return nil, err
		}
		return next, nil
	}); err != nil {
		return err
	}

	c.warnCache("project_remove_policies", projectID, c.cache.DeletePolicies(ctx, projectID, ids))
	c.publish(ctx, eventbus.ProjectRemovePolicies(c.id, projectID, ids))
	return nil
}

// ProjectAddTemplates adds policy templates as a set-union with conflict
// detection, mirroring ProjectAddPolicies.
func (c *Core) ProjectAddTemplates(ctx context.Context, projectID types.ProjectID, templates map[types.PolicyID]types.Template) error {
	if err := c.requireProject(ctx, projectID); err != nil {
		return err
	}

	snap := c.registry.Get(projectID)
	if snap != nil {
		for id := range templates {
			if _, exists := snap.Templates[id]; exists {
				return types.New(types.KindIDConflict, fmt.Sprintf("template %s already exists", id))
			}
		}
	}

	if err := c.db.SaveTemplates(ctx, projectID, templates, true); err != nil {
		if types.Is(err, types.KindIDConflict) {
			return err
		}
		return types.Wrap(types.KindBackendUnavailable, "save templates", err)
	}

	if err := c.registry.Mutate(projectID, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
		next := snapshot.CloneOrNew(current, projectID)
		for id, t := range templates {
			next.Templates[id] = t
		}
		if err := next.Compile(); err != nil {
			return nil, err
		}
		return next, nil
	}); err != nil {
		return err
	}

	c.warnCache("project_add_templates", projectID, c.cache.PutTemplates(ctx, projectID, templates))

	ids := make([]types.PolicyID, 0, len(templates))
	for id := range templates {
		ids = append(ids, id)
	}
	c.publish(ctx, eventbus.ProjectAddTemplates(c.id, projectID, ids))
	return nil
}

// ProjectRemoveTemplates fails with KindReferentialIntegrity if any
// template targeted for removal still has a live template link; the
// caller must remove the link first.
func (c *Core) ProjectRemoveTemplates(ctx context.Context, projectID types.ProjectID, ids []types.PolicyID) error {
	if err := c.requireProject(ctx, projectID); err != nil {
		return err
	}

	snap := c.registry.Get(projectID)
	if snap != nil {
		removing := map[types.PolicyID]struct{}{}
		for _, id := range ids {
			removing[id] = struct{}{}
		}
		for _, link := range snap.TemplateLinks {
			if _, targeted := removing[link.TemplateID]; targeted {
				return types.New(types.KindReferentialIntegrity, fmt.Sprintf("template %s has live link %s", link.TemplateID, link.LinkID))
			}
		}
	}

	if err := c.db.RemoveTemplates(ctx, projectID, ids); err != nil {
		return types.Wrap(types.KindBackendUnavailable, "remove templates", err)
	}

	if err := c.registry.Mutate(projectID, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
		next := snapshot.CloneOrNew(current, projectID)
		for _, id := range ids {
			delete(next.Templates, id)
		}
		if err := next.Compile(); err != nil {
			return nil, err
		}
		return next, nil
	}); err != nil {
		return err
	}

	c.warnCache("project_remove_templates", projectID, c.cache.DeleteTemplates(ctx, projectID, ids))
	c.publish(ctx, eventbus.ProjectRemoveTemplates(c.id, projectID, ids))
	return nil
}

// ProjectAddTemplateLinks instantiates each link against its template,
// rejecting the whole call if any link's template is unknown
// (KindNoSuchTemplate) or any link id collides with an existing policy or
// link id (KindIDConflict).
func (c *Core) ProjectAddTemplateLinks(ctx context.Context, projectID types.ProjectID, links []types.TemplateLink) error {
	if err := c.requireProject(ctx, projectID); err != nil {
		return err
	}

	snap := c.registry.Get(projectID)
	for _, link := range links {
		if snap != nil {
			if _, ok := snap.Templates[link.TemplateID]; !ok {
				return types.New(types.KindNoSuchTemplate, string(link.TemplateID))
			}
			if _, exists := snap.Policies[link.LinkID]; exists {
				return types.New(types.KindIDConflict, fmt.Sprintf("link id %s collides with an existing policy", link.LinkID))
			}
			if _, exists := snap.TemplateLinks[link.LinkID]; exists {
				return types.New(types.KindIDConflict, fmt.Sprintf("link %s already exists", link.LinkID))
			}
		}
	}

	if err := c.db.SaveTemplateLinks(ctx, projectID, links, true); err != nil {
		if types.Is(err, types.KindIDConflict) {
			return err
		}
		return types.Wrap(types.KindBackendUnavailable, "save template links", err)
	}

	if err := c.registry.Mutate(projectID, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
		next := snapshot.CloneOrNew(current, projectID)
		for _, l := range links {
			next.TemplateLinks[l.LinkID] = l
		}
		if err := next.Compile(); err != nil {
			return nil, err
		}
		return next, nil
	}); err != nil {
		return err
	}

	c.warnCache("project_add_template_links", projectID, c.cache.PutTemplateLinks(ctx, projectID, links))

	ids := make([]types.PolicyID, len(links))
	for i, l := range links {
		ids[i] = l.LinkID
	}
	c.publish(ctx, eventbus.ProjectAddTemplateLinks(c.id, projectID, ids))
	return nil
}

func (c *Core) ProjectRemoveTemplateLinks(ctx context.Context, projectID types.ProjectID, ids []types.PolicyID) error {
	if err := c.requireProject(ctx, projectID); err != nil {
		return err
	}

	if err := c.db.RemoveTemplateLinks(ctx, projectID, ids); err != nil {
		return types.Wrap(types.KindBackendUnavailable, "remove template links", err)
	}

	if err := c.registry.Mutate(projectID, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
		next := snapshot.CloneOrNew(current, projectID)
		for _, id := range ids {
			delete(next.TemplateLinks, id)
		}
		if err := next.Compile(); err != nil {
			return nil, err
		}
		return next, nil
	}); err != nil {
		return err
	}

	c.warnCache("project_remove_template_links", projectID, c.cache.DeleteTemplateLinks(ctx, projectID, ids))
	c.publish(ctx, eventbus.ProjectRemoveTemplateLinks(c.id, projectID, ids))
	return nil
}

func (c *Core) ProjectPutIdentitySource(ctx context.Context, projectID types.ProjectID, src types.IdentitySourceConfig) error {
	if err := c.requireProject(ctx, projectID); err != nil {
		return err
	}
	if err := c.db.SaveIdentitySource(ctx, projectID, src); err != nil {
		return types.Wrap(types.KindBackendUnavailable, "save identity source", err)
	}
	c.warnCache("project_put_identity_source", projectID, c.cache.PutIdentitySource(ctx, projectID, src))
	c.publish(ctx, eventbus.ProjectPutIdentitySource(c.id, projectID))
	return nil
}

func (c *Core) ProjectRemoveIdentitySource(ctx context.Context, projectID types.ProjectID) error {
	if err := c.requireProject(ctx, projectID); err != nil {
		return err
	}
	if err := c.db.RemoveIdentitySource(ctx, projectID); err != nil {
		return types.Wrap(types.KindBackendUnavailable, "remove identity source", err)
	}
	c.warnCache("project_remove_identity_source", projectID, c.cache.DeleteIdentitySource(ctx, projectID))
	c.publish(ctx, eventbus.ProjectRemoveIdentitySource(c.id, projectID))
	return nil
}
