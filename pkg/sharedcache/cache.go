// Package sharedcache mirrors project state across Cedrus instances so a
// freshly booted instance can warm its registry without reading the
// durable store for every project. It is a mirror, never the source of
// truth: a cache miss always falls back to the durable store.
package sharedcache

import (
	"context"

	"github.com/stratusmedia/cedrus/pkg/types"
)

// Cache is a namespaced, best-effort mirror of project state. Every
// method is scoped to one project except Projects, which lists the
// projects the cache currently knows about.
type Cache interface {
	Clear(ctx context.Context, projectID types.ProjectID) error

	Projects(ctx context.Context) ([]types.Project, error)
	GetProject(ctx context.Context, projectID types.ProjectID) (*types.Project, bool, error)
	PutProject(ctx context.Context, project types.Project) error
	DeleteProject(ctx context.Context, projectID types.ProjectID) error

	GetIdentitySource(ctx context.Context, projectID types.ProjectID) (*types.IdentitySourceConfig, bool, error)
	PutIdentitySource(ctx context.Context, projectID types.ProjectID, src types.IdentitySourceConfig) error
	DeleteIdentitySource(ctx context.Context, projectID types.ProjectID) error

	GetSchema(ctx context.Context, projectID types.ProjectID) (*types.Schema, bool, error)
	PutSchema(ctx context.Context, projectID types.ProjectID, schema types.Schema) error
	DeleteSchema(ctx context.Context, projectID types.ProjectID) error

	GetEntities(ctx context.Context, projectID types.ProjectID, uids []types.EntityUID) ([]types.Entity, error)
	// GetAllEntities returns every entity the cache holds for projectID,
	// used to rebuild a full snapshot rather than just the closure an
	// authorization request touched.
	GetAllEntities(ctx context.Context, projectID types.ProjectID) (map[types.EntityUID]types.Entity, error)
	PutEntities(ctx context.Context, projectID types.ProjectID, entities []types.Entity) error
	DeleteEntities(ctx context.Context, projectID types.ProjectID, uids []types.EntityUID) error

	GetPolicies(ctx context.Context, projectID types.ProjectID) (map[types.PolicyID]types.Policy, error)
	PutPolicies(ctx context.Context, projectID types.ProjectID, policies map[types.PolicyID]types.Policy) error
	DeletePolicies(ctx context.Context, projectID types.ProjectID, ids []types.PolicyID) error

	GetTemplates(ctx context.Context, projectID types.ProjectID) (map[types.PolicyID]types.Template, error)
	PutTemplates(ctx context.Context, projectID types.ProjectID, templates map[types.PolicyID]types.Template) error
	DeleteTemplates(ctx context.Context, projectID types.ProjectID, ids []types.PolicyID) error

	GetTemplateLinks(ctx context.Context, projectID types.ProjectID) ([]types.TemplateLink, error)
	PutTemplateLinks(ctx context.Context, projectID types.ProjectID, links []types.TemplateLink) error
	DeleteTemplateLinks(ctx context.Context, projectID types.ProjectID, ids []types.PolicyID) error
}

// Config is the sealed configuration for selecting a Cache implementation.
type Config interface {
	isSharedCacheConfig()
}

// InMemoryConfig selects the in-core InMemory cache: a single process's
// view, not shared across instances. Correct for a single-instance
// deployment or for tests.
type InMemoryConfig struct{}

func (InMemoryConfig) isSharedCacheConfig() {}

// DistributedConfig selects an externally supplied Cache backed by a
// shared store (e.g. a key-value cache cluster) reachable by every
// instance. Cedrus core has no concrete client of its own; the embedding
// application constructs the Cache and passes it in.
type DistributedConfig struct {
	Cache Cache
}

func (DistributedConfig) isSharedCacheConfig() {}

// New builds the Cache named by cfg.
func New(cfg Config) (Cache, error) {
	switch c := cfg.(type) {
	case InMemoryConfig:
		return NewInMemory(), nil
	case DistributedConfig:
		return c.Cache, nil
	default:
		return nil, errUnknownConfig(cfg)
	}
}
