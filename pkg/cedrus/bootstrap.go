package cedrus

import (
	"context"
	"fmt"

	"github.com/stratusmedia/cedrus/internal/seed"
	"github.com/stratusmedia/cedrus/pkg/snapshot"
	"github.com/stratusmedia/cedrus/pkg/types"
)

// InitProject is idempotent: if the admin project does not exist in the
// Durable Store, it creates it with the nil UUID and seeds the canonical
// Cedrus::User/Project/Group entity types, the Admins group, and the
// built-in policy set that grants admins full control over project
// management. If the admin project already exists this is a no-op.
func (c *Core) InitProject(ctx context.Context) error {
	existing, err := c.db.LoadProject(ctx, types.AdminProjectID)
	if err != nil {
		return fmt.Errorf("load admin project: %w", err)
	}
	if existing != nil {
		return nil
	}

	now := nowUnix()
	admin := types.Project{
		ID:        types.AdminProjectID,
		Name:      "Cedrus Admin",
		Owner:     c.admin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.db.SaveProject(ctx, admin, true); err != nil {
		return fmt.Errorf("save admin project: %w", err)
	}

	schema := types.Schema{Document: seed.Schema(), Mode: types.SchemaModeLenient}
	if err := c.db.SaveSchema(ctx, types.AdminProjectID, schema); err != nil {
		return fmt.Errorf("save admin schema: %w", err)
	}

	entities := seed.Entities()
	entityList := make([]types.Entity, 0, len(entities))
	for _, e := range entities {
		entityList = append(entityList, e)
	}
	if err := c.db.SaveEntities(ctx, types.AdminProjectID, entityList, true); err != nil {
		return fmt.Errorf("save admin entities: %w", err)
	}

	if err := c.db.SavePolicies(ctx, types.AdminProjectID, seed.Policies(), true); err != nil {
		return fmt.Errorf("save admin policies: %w", err)
	}

	if err := c.db.SaveTemplates(ctx, types.AdminProjectID, seed.Templates(), true); err != nil {
		return fmt.Errorf("save admin templates: %w", err)
	}

	return nil
}

// InitCache rehydrates every project in the Durable Store and publishes
// its snapshot into the Shared Cache. Intended to run on exactly one
// instance at startup; safe to re-run since every write is an overwrite.
func (c *Core) InitCache(ctx context.Context) error {
	projects, err := loadAllProjects(ctx, c.db)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	// The admin project is loaded separately since ListProjects may or may
	// not include the nil UUID depending on backend semantics; loading it
	// twice is harmless because every cache write here is an overwrite.
	projects = append(projects, types.Project{ID: types.AdminProjectID})

	seenAdmin := false
	for _, p := range projects {
		if p.ID.IsAdmin() {
			if seenAdmin {
				continue
			}
			seenAdmin = true
			admin, err := c.db.LoadProject(ctx, types.AdminProjectID)
			if err != nil {
				return fmt.Errorf("load admin project: %w", err)
			}
			if admin == nil {
				continue
			}
			p = *admin
		}
		if err := c.warmCacheForProject(ctx, p); err != nil {
			return fmt.Errorf("warm cache for project %s: %w", p.ID, err)
		}
	}
	return nil
}

func (c *Core) warmCacheForProject(ctx context.Context, p types.Project) error {
	snap, err := loadSnapshotFromDurable(ctx, c.db, p.ID)
	if err != nil {
		return err
	}

	if err := c.cache.PutProject(ctx, p); err != nil {
		return err
	}
	if src, err := c.db.LoadIdentitySource(ctx, p.ID); err == nil && src != nil {
		if err := c.cache.PutIdentitySource(ctx, p.ID, *src); err != nil {
			return err
		}
	}
	if !snap.Schema.IsEmpty() {
		if err := c.cache.PutSchema(ctx, p.ID, snap.Schema); err != nil {
			return err
		}
	}
	entityList := make([]types.Entity, 0, len(snap.Entities))
	for _, e := range snap.Entities {
		entityList = append(entityList, e)
	}
	if err := c.cache.PutEntities(ctx, p.ID, entityList); err != nil {
		return err
	}
	if err := c.cache.PutPolicies(ctx, p.ID, snap.Policies); err != nil {
		return err
	}
	if err := c.cache.PutTemplates(ctx, p.ID, snap.Templates); err != nil {
		return err
	}
	linkList := make([]types.TemplateLink, 0, len(snap.TemplateLinks))
	for _, l := range snap.TemplateLinks {
		linkList = append(linkList, l)
	}
	if err := c.cache.PutTemplateLinks(ctx, p.ID, linkList); err != nil {
		return err
	}
	return nil
}

// LoadCache installs a snapshot into the local Registry for the admin
// project and every project listed in the Shared Cache. A listed project
// whose cached records are all empty is loaded from the Durable Store
// instead; projects the cache does not list are not loaded. Intended to
// run on every instance at startup. Also indexes the API-key hash of each
// loaded project's cached record.
func (c *Core) LoadCache(ctx context.Context) error {
	projects, err := c.cache.Projects(ctx)
	if err != nil {
		return fmt.Errorf("list cached projects: %w", err)
	}

	known := map[types.ProjectID]struct{}{types.AdminProjectID: {}}
	for _, p := range projects {
		known[p.ID] = struct{}{}
	}

	for id := range known {
		snap, err := c.loadSnapshotForRegistry(ctx, id)
		if err != nil {
			return fmt.Errorf("load snapshot for project %s: %w", id, err)
		}
		if snap == nil {
			continue
		}
		c.registry.Put(snap)

		p, ok, err := c.cache.GetProject(ctx, id)
		if err != nil {
			return fmt.Errorf("load project %s from cache: %w", id, err)
		}
		if ok && p != nil {
			c.indexAPIKey(p.APIKeyHash, p.Owner)
		}
	}
	return nil
}

// loadSnapshotForRegistry tries the Shared Cache first and falls back to
// the Durable Store on a miss.
func (c *Core) loadSnapshotForRegistry(ctx context.Context, id types.ProjectID) (*snapshot.Snapshot, error) {
	schema, _, err := c.cache.GetSchema(ctx, id)
	if err != nil {
		return nil, err
	}
	entities, err := c.cache.GetAllEntities(ctx, id)
	if err != nil {
		return nil, err
	}
	policies, err := c.cache.GetPolicies(ctx, id)
	if err != nil {
		return nil, err
	}
	templates, err := c.cache.GetTemplates(ctx, id)
	if err != nil {
		return nil, err
	}
	links, err := c.cache.GetTemplateLinks(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(entities) == 0 && len(policies) == 0 && len(templates) == 0 && len(links) == 0 && schema == nil {
		// The cache has nothing for this project; fall back to the
		// durable store rather than installing an empty snapshot.
		return loadSnapshotFromDurable(ctx, c.db, id)
	}

	snap := snapshot.New(id)
	if schema != nil {
		snap.Schema = *schema
	}
	snap.Entities = entities
	snap.Policies = policies
	snap.Templates = templates
	linkMap := make(map[types.PolicyID]types.TemplateLink, len(links))
	for _, l := range links {
		linkMap[l.LinkID] = l
	}
	snap.TemplateLinks = linkMap

	if err := snap.Compile(); err != nil {
		return nil, fmt.Errorf("compile snapshot for project %s: %w", id, err)
	}
	return snap, nil
}

// Subscribe registers a handler with the Event Bus that applies every
// received event to this instance's Registry, skipping events this
// instance published itself. It returns whatever the Bus's Subscribe
// returns; eventbus.None registers nothing and returns nil at once.
func (c *Core) Subscribe(ctx context.Context) error {
	return c.bus.Subscribe(ctx, c.handleEvent)
}
