// Package durable defines the system-of-record contract every Cedrus
// deployment must satisfy: every write the core performs is committed
// here before its effects are visible anywhere else.
package durable

import (
	"context"
	"fmt"

	"github.com/stratusmedia/cedrus/pkg/durable/sqlitestore"
	"github.com/stratusmedia/cedrus/pkg/types"
)

// Store is the durable system of record for every project's data. Each
// method that touches more than one object is atomic for that call: a
// caller never observes a partial write across the objects passed to a
// single Save/Remove call, though atomicity does not extend across
// separate calls (e.g. a policy save and a subsequent cache mirror are
// two different systems).
type Store interface {
	ListProjects(ctx context.Context, q types.Query) (types.PageList[types.Project], error)
	LoadProject(ctx context.Context, id types.ProjectID) (*types.Project, error)
	// SaveProject creates or overwrites a project record. When creating,
	// implementations must reject the call with a KindIDConflict error if
	// a project with the same ID already exists.
	SaveProject(ctx context.Context, project types.Project, createOnly bool) error
	RemoveProject(ctx context.Context, id types.ProjectID) error

	LoadIdentitySource(ctx context.Context, projectID types.ProjectID) (*types.IdentitySourceConfig, error)
	SaveIdentitySource(ctx context.Context, projectID types.ProjectID, src types.IdentitySourceConfig) error
	RemoveIdentitySource(ctx context.Context, projectID types.ProjectID) error

	LoadSchema(ctx context.Context, projectID types.ProjectID) (*types.Schema, error)
	SaveSchema(ctx context.Context, projectID types.ProjectID, schema types.Schema) error
	RemoveSchema(ctx context.Context, projectID types.ProjectID) error

	LoadEntities(ctx context.Context, projectID types.ProjectID, q types.Query) (types.PageList[types.Entity], error)
	// SaveEntities upserts entities. When createOnly is true, every entity
	// whose UID already exists rejects the whole call with KindIDConflict
	// before any of the batch is written, the same create-only contract
	// SaveProject gives projects.
	SaveEntities(ctx context.Context, projectID types.ProjectID, entities []types.Entity, createOnly bool) error
	RemoveEntities(ctx context.Context, projectID types.ProjectID, uids []types.EntityUID) error

	LoadPolicies(ctx context.Context, projectID types.ProjectID, q types.Query) (types.PageHash[types.PolicyID, types.Policy], error)
	// SavePolicies upserts policies, or with createOnly true rejects the
	// whole call with KindIDConflict if any policy id already exists.
	SavePolicies(ctx context.Context, projectID types.ProjectID, policies map[types.PolicyID]types.Policy, createOnly bool) error
	RemovePolicies(ctx context.Context, projectID types.ProjectID, ids []types.PolicyID) error

	LoadTemplates(ctx context.Context, projectID types.ProjectID, q types.Query) (types.PageHash[types.PolicyID, types.Template], error)
	// SaveTemplates upserts templates, or with createOnly true rejects the
	// whole call with KindIDConflict if any template id already exists.
	SaveTemplates(ctx context.Context, projectID types.ProjectID, templates map[types.PolicyID]types.Template, createOnly bool) error
	RemoveTemplates(ctx context.Context, projectID types.ProjectID, ids []types.PolicyID) error

	LoadTemplateLinks(ctx context.Context, projectID types.ProjectID, q types.Query) (types.PageList[types.TemplateLink], error)
	// SaveTemplateLinks upserts links, or with createOnly true rejects the
	// whole call with KindIDConflict if any link id already exists.
	SaveTemplateLinks(ctx context.Context, projectID types.ProjectID, links []types.TemplateLink, createOnly bool) error
	RemoveTemplateLinks(ctx context.Context, projectID types.ProjectID, ids []types.PolicyID) error

	Close() error
}

// Config is the sealed configuration for selecting a Store implementation.
type Config interface {
	isDurableConfig()
}

// SQLiteConfig selects the in-core SQLite-backed Store, the reference
// implementation this module ships so the system is runnable without an
// external database.
type SQLiteConfig struct {
	// Path is the database file path, or ":memory:" for an ephemeral
	// in-process database.
	Path string
}

func (SQLiteConfig) isDurableConfig() {}

// CouchDBConfig selects an externally supplied Store backed by CouchDB.
// Cedrus core has no concrete CouchDB client of its own; the embedding
// application constructs the Store and passes it in through the Store
// field.
type CouchDBConfig struct {
	Store Store
}

func (CouchDBConfig) isDurableConfig() {}

// DynamoDBConfig selects an externally supplied Store backed by DynamoDB.
type DynamoDBConfig struct {
	Store Store
}

func (DynamoDBConfig) isDurableConfig() {}

// ExternalConfig wraps any already-constructed Store, for deployments
// that bring their own backend.
type ExternalConfig struct {
	Store Store
}

func (ExternalConfig) isDurableConfig() {}

// New builds the Store named by cfg.
func New(cfg Config) (Store, error) {
	switch c := cfg.(type) {
	case SQLiteConfig:
		return sqlitestore.Open(c.Path)
	case CouchDBConfig:
		return c.Store, nil
	case DynamoDBConfig:
		return c.Store, nil
	case ExternalConfig:
		return c.Store, nil
	default:
		return nil, fmt.Errorf("durable: unknown config type %T", cfg)
	}
}
