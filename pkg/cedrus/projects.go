package cedrus

import (
	"context"
	"fmt"

	"github.com/stratusmedia/cedrus/internal/seed"
	"github.com/stratusmedia/cedrus/pkg/eventbus"
	"github.com/stratusmedia/cedrus/pkg/snapshot"
	"github.com/stratusmedia/cedrus/pkg/types"
)

// ProjectsFind lists projects from the Durable Store.
func (c *Core) ProjectsFind(ctx context.Context, q types.Query) (types.PageList[types.Project], error) {
	return c.db.ListProjects(ctx, q)
}

// ProjectFind loads one project by id, or nil if it doesn't exist.
func (c *Core) ProjectFind(ctx context.Context, projectID types.ProjectID) (*types.Project, error) {
	return c.db.LoadProject(ctx, projectID)
}

// ProjectCreate creates a new project owned by owner. If rawAPIKey is
// empty, a fresh key is generated; either way the raw key is returned
// exactly once — only its bcrypt hash is stored. Creation also installs
// an empty authorization snapshot for the new project and, inside the
// admin project (not the new project itself), an entity representing the
// project plus a ProjectAdminRole template link scoping owner to it, so
// the admin project's built-in policies recognize the owner as authorized
// to manage this project.
func (c *Core) ProjectCreate(ctx context.Context, name string, owner types.EntityUID, rawAPIKey string) (types.Project, string, error) {
	id, err := types.NewProjectID()
	if err != nil {
		return types.Project{}, "", fmt.Errorf("generate project id: %w", err)
	}

	if rawAPIKey == "" {
		rawAPIKey, err = generateAPIKey()
		if err != nil {
			return types.Project{}, "", err
		}
	}
	hash, err := hashAPIKey(rawAPIKey)
	if err != nil {
		return types.Project{}, "", err
	}

	now := nowUnix()
	project := types.Project{
		ID:         id,
		Name:       name,
		Owner:      owner,
		APIKeyHash: hash,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := c.db.SaveProject(ctx, project, true); err != nil {
		return types.Project{}, "", err
	}

	if err := c.registry.Mutate(id, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
		next := snapshot.CloneOrNew(current, id)
		if err := next.Compile(); err != nil {
			return nil, err
		}
		return next, nil
	}); err != nil {
		return types.Project{}, "", err
	}

	c.warnCache("project_create", id, c.cache.PutProject(ctx, project))

	projectEntity := types.NewEntity(types.ProjectEntityUID(id))
	if err := c.db.SaveEntities(ctx, types.AdminProjectID, []types.Entity{projectEntity}, true); err != nil {
		return types.Project{}, "", fmt.Errorf("save project entity in admin project: %w", err)
	}
	link := types.TemplateLink{
		TemplateID: seed.ProjectAdminRoleTemplateID,
		LinkID:     projectAdminLinkID(id),
		Values: map[types.SlotID]types.EntityUID{
			types.SlotPrincipal: owner,
			types.SlotResource:  types.ProjectEntityUID(id),
		},
	}
	if err := c.db.SaveTemplateLinks(ctx, types.AdminProjectID, []types.TemplateLink{link}, true); err != nil {
		return types.Project{}, "", fmt.Errorf("save project admin link: %w", err)
	}

	if err := c.registry.Mutate(types.AdminProjectID, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
		next := snapshot.CloneOrNew(current, types.AdminProjectID)
		next.Entities[projectEntity.UID] = projectEntity
		next.TemplateLinks[link.LinkID] = link
		if err := next.Compile(); err != nil {
			return nil, err
		}
		return next, nil
	}); err != nil {
		return types.Project{}, "", fmt.Errorf("update admin snapshot: %w", err)
	}

	c.warnCache("project_create", types.AdminProjectID, c.cache.PutEntities(ctx, types.AdminProjectID, []types.Entity{projectEntity}))
	c.warnCache("project_create", types.AdminProjectID, c.cache.PutTemplateLinks(ctx, types.AdminProjectID, []types.TemplateLink{link}))

	c.indexAPIKey(hash, owner)
	c.publish(ctx, eventbus.ProjectCreate(c.id, id))

	return project, rawAPIKey, nil
}

// ProjectUpdate applies an optimistic-concurrency update: expectedUpdatedAt
// must match the stored project's UpdatedAt or the call fails with
// KindIDConflict. Only Name and APIKeyHash are mutable; if neither
// differs from the stored record, the call is a no-op (no durable write,
// no event) rather than bumping UpdatedAt for nothing.
func (c *Core) ProjectUpdate(ctx context.Context, projectID types.ProjectID, name, apiKeyHash string, expectedUpdatedAt int64) (types.Project, error) {
	original, err := c.db.LoadProject(ctx, projectID)
	if err != nil {
		return types.Project{}, types.Wrap(types.KindBackendUnavailable, "load project", err)
	}
	if original == nil {
		return types.Project{}, types.New(types.KindNoSuchProject, projectID.String())
	}
	if original.UpdatedAt != expectedUpdatedAt {
		return types.Project{}, types.New(types.KindIDConflict, "project was modified concurrently")
	}

	pristine := true
	oldHash := original.APIKeyHash
	if name != "" && original.Name != name {
		original.Name = name
		pristine = false
	}
	if apiKeyHash != "" && original.APIKeyHash != apiKeyHash {
		original.APIKeyHash = apiKeyHash
		pristine = false
	}
	if pristine {
		return *original, nil
	}

	original.UpdatedAt = nowUnix()
	if err := c.db.SaveProject(ctx, *original, false); err != nil {
		return types.Project{}, types.Wrap(types.KindBackendUnavailable, "save project", err)
	}

	c.warnCache("project_update", projectID, c.cache.PutProject(ctx, *original))

	if original.APIKeyHash != oldHash {
		c.unindexAPIKey(oldHash)
		c.indexAPIKey(original.APIKeyHash, original.Owner)
	}

	c.publish(ctx, eventbus.ProjectUpdate(c.id, projectID))
	return *original, nil
}

// ProjectRemove purges the project's schema, entities, policies,
// templates, and template links from the Durable Store, the Shared
// Cache, and the Registry, along with the admin-project bookkeeping
// ProjectCreate installed (the project entity and its ProjectAdminRole
// link). The removed project's API key hash travels in the emitted event
// so peer instances can evict it from their own in-memory index.
func (c *Core) ProjectRemove(ctx context.Context, projectID types.ProjectID) (types.Project, error) {
	project, err := c.db.LoadProject(ctx, projectID)
	if err != nil {
		return types.Project{}, types.Wrap(types.KindBackendUnavailable, "load project", err)
	}
	if project == nil {
		return types.Project{}, types.New(types.KindNoSuchProject, projectID.String())
	}

	if err := c.db.RemoveProject(ctx, projectID); err != nil {
		return types.Project{}, types.Wrap(types.KindBackendUnavailable, "remove project", err)
	}

	c.registry.Remove(projectID)
	c.warnCache("project_remove", projectID, c.cache.DeleteProject(ctx, projectID))
	c.warnCache("project_remove", projectID, c.cache.Clear(ctx, projectID))
	c.unindexAPIKey(project.APIKeyHash)

	linkID := projectAdminLinkID(projectID)
	projectUID := types.ProjectEntityUID(projectID)
	if err := c.db.RemoveTemplateLinks(ctx, types.AdminProjectID, []types.PolicyID{linkID}); err != nil {
		c.logger.Warn("remove admin project link failed", "project_id", projectID.String(), "error", err)
	}
	if err := c.db.RemoveEntities(ctx, types.AdminProjectID, []types.EntityUID{projectUID}); err != nil {
		c.logger.Warn("remove admin project entity failed", "project_id", projectID.String(), "error", err)
	}
	if err := c.registry.Mutate(types.AdminProjectID, func(current *snapshot.Snapshot) (*snapshot.Snapshot, error) {
		next := snapshot.CloneOrNew(current, types.AdminProjectID)
		delete(next.TemplateLinks, linkID)
		delete(next.Entities, projectUID)
		if err := next.Compile(); err != nil {
			return nil, err
		}
		return next, nil
	}); err != nil {
		c.logger.Warn("update admin snapshot after project removal failed", "project_id", projectID.String(), "error", err)
	}
	c.warnCache("project_remove", types.AdminProjectID, c.cache.DeleteTemplateLinks(ctx, types.AdminProjectID, []types.PolicyID{linkID}))
	c.warnCache("project_remove", types.AdminProjectID, c.cache.DeleteEntities(ctx, types.AdminProjectID, []types.EntityUID{projectUID}))

	c.publish(ctx, eventbus.ProjectRemove(c.id, projectID, project.APIKeyHash))
	return *project, nil
}

// ProjectIdentitySourceFind loads the project's identity source
// configuration, or nil if none has been set.
func (c *Core) ProjectIdentitySourceFind(ctx context.Context, projectID types.ProjectID) (*types.IdentitySourceConfig, error) {
	if err := c.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	return c.db.LoadIdentitySource(ctx, projectID)
}
