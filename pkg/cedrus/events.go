package cedrus

import (
	"context"
	"fmt"

	"github.com/stratusmedia/cedrus/pkg/eventbus"
	"github.com/stratusmedia/cedrus/pkg/types"
)

// handleEvent applies one event received from the Event Bus to this
// instance's Registry. Events this instance published itself are skipped
// since the write path already applied the mutation locally before
// publishing; applying it again would be redundant, not incorrect, but
// skipping avoids needless cache reads.
func (c *Core) handleEvent(ctx context.Context, e eventbus.Event) error {
	if e.SenderID == c.id {
		return nil
	}

	switch e.Kind {
	case eventbus.KindReloadAll:
		return c.LoadCache(ctx)

	case eventbus.KindProjectCreate:
		if err := c.refreshProjectSnapshot(ctx, e.ProjectID); err != nil {
			return err
		}
		return c.reindexAPIKey(ctx, e.ProjectID)

	case eventbus.KindProjectUpdate:
		return c.reindexAPIKey(ctx, e.ProjectID)

	case eventbus.KindProjectRemove:
		c.registry.Remove(e.ProjectID)
		c.unindexAPIKey(e.APIKey)
		return nil

	case eventbus.KindProjectPutIdentitySource, eventbus.KindProjectRemoveIdentitySource:
		// Identity source configuration is not part of a project's
		// authorization snapshot; nothing for the registry to refresh.
		return nil

	case eventbus.KindProjectPutSchema, eventbus.KindProjectRemoveSchema,
		eventbus.KindProjectAddEntities, eventbus.KindProjectRemoveEntities,
		eventbus.KindProjectAddPolicies, eventbus.KindProjectRemovePolicies,
		eventbus.KindProjectAddTemplates, eventbus.KindProjectRemoveTemplates,
		eventbus.KindProjectAddTemplateLinks, eventbus.KindProjectRemoveTemplateLinks:
		return c.refreshProjectSnapshot(ctx, e.ProjectID)

	default:
		return fmt.Errorf("cedrus: unknown event kind %q", e.Kind)
	}
}

// refreshProjectSnapshot re-reads projectID's full state from the Shared
// Cache (falling back to the Durable Store on a miss) and installs it
// into the Registry, recompiling in the process.
func (c *Core) refreshProjectSnapshot(ctx context.Context, projectID types.ProjectID) error {
	snap, err := c.loadSnapshotForRegistry(ctx, projectID)
	if err != nil {
		return err
	}
	if snap != nil {
		c.registry.Put(snap)
	}
	return nil
}

func (c *Core) reindexAPIKey(ctx context.Context, projectID types.ProjectID) error {
	p, ok, err := c.cache.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if ok && p != nil {
		c.indexAPIKey(p.APIKeyHash, p.Owner)
	}
	return nil
}
