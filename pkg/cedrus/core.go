// Package cedrus is the top-level orchestrator: it wires the Durable
// Store, Shared Cache, and Event Bus together with the Registry and
// Evaluator into the single entry point an embedding application calls
// into for every project and authorization operation.
package cedrus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/stratusmedia/cedrus/pkg/authz"
	"github.com/stratusmedia/cedrus/pkg/durable"
	"github.com/stratusmedia/cedrus/pkg/eventbus"
	"github.com/stratusmedia/cedrus/pkg/registry"
	"github.com/stratusmedia/cedrus/pkg/sharedcache"
	"github.com/stratusmedia/cedrus/pkg/types"
)

// Config constructs a Core. Durable, SharedCache, and EventBus select the
// concrete backend for each capability. Logger is optional and defaults
// to slog.Default(). MaxBatchSize overrides authz.DefaultMaxBatchSize
// when positive.
type Config struct {
	Durable      durable.Config
	SharedCache  sharedcache.Config
	EventBus     eventbus.Config
	Logger       *slog.Logger
	MaxBatchSize int
}

// Core is the authorization and state-management engine described by
// this module: it holds one Registry of compiled project snapshots, one
// Evaluator answering authorization questions against them, and the
// plumbing that keeps both consistent with the Durable Store, Shared
// Cache, and peer instances reachable over the Event Bus.
type Core struct {
	id    string
	admin types.EntityUID

	db    durable.Store
	cache sharedcache.Cache
	bus   eventbus.Bus

	registry  *registry.Registry
	evaluator *authz.Evaluator
	logger    *slog.Logger

	// apiKeys maps an API key hash to the owner EntityUID it authenticates
	// as, populated from project records (the Shared Cache's on LoadCache
	// and peer events, this instance's own on ProjectCreate/ProjectUpdate)
	// so collaborators can resolve a key hash without a storage round-trip.
	apiKeys sync.Map
}

// New constructs a Core from cfg. It opens the configured backends (for
// SQLite, the database file is opened and migrated) but loads no project
// data into the Registry; call InitProject,
// then either InitCache (exactly one instance) or LoadCache (every
// instance), then Subscribe, before serving traffic.
func New(cfg Config) (*Core, error) {
	db, err := durable.New(cfg.Durable)
	if err != nil {
		return nil, fmt.Errorf("construct durable store: %w", err)
	}
	cache, err := sharedcache.New(cfg.SharedCache)
	if err != nil {
		return nil, fmt.Errorf("construct shared cache: %w", err)
	}
	bus, err := eventbus.New(cfg.EventBus)
	if err != nil {
		return nil, fmt.Errorf("construct event bus: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reg := registry.New()
	evalOpts := []authz.Option{authz.WithLogger(logger)}
	if cfg.MaxBatchSize > 0 {
		evalOpts = append(evalOpts, authz.WithMaxBatchSize(cfg.MaxBatchSize))
	}

	instanceID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate instance id: %w", err)
	}

	return &Core{
		id:        instanceID.String(),
		admin:     types.NewEntityUID(types.AdminGroupType, types.AdminsGroupID),
		db:        db,
		cache:     cache,
		bus:       bus,
		registry:  reg,
		evaluator: authz.New(reg, evalOpts...),
		logger:    logger,
	}, nil
}

// ID returns this instance's identifier, used to tag events this instance
// publishes so the Subscribe handler can skip self-originated ones.
func (c *Core) ID() string {
	return c.id
}

// Close releases the Durable Store's and Event Bus's resources.
func (c *Core) Close() error {
	busErr := c.bus.Close()
	dbErr := c.db.Close()
	if busErr != nil {
		return fmt.Errorf("close event bus: %w", busErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close durable store: %w", dbErr)
	}
	return nil
}

// ResolveOwner returns the EntityUID that owns the API key hash keyHash,
// or false if no project's key matches. Collaborators use this per the
// identity source contract: an API key that matches a project's stored
// hash authenticates as that project's owner, without a storage
// round-trip.
func (c *Core) ResolveOwner(keyHash string) (types.EntityUID, bool) {
	v, ok := c.apiKeys.Load(keyHash)
	if !ok {
		return types.EntityUID{}, false
	}
	return v.(types.EntityUID), true
}

func (c *Core) indexAPIKey(keyHash string, owner types.EntityUID) {
	if keyHash == "" {
		return
	}
	c.apiKeys.Store(keyHash, owner)
}

func (c *Core) unindexAPIKey(keyHash string) {
	if keyHash == "" {
		return
	}
	c.apiKeys.Delete(keyHash)
}

// IsAdmin reports whether principal is a member (directly or transitively,
// via Parents) of the Admins group in the admin project's current
// snapshot.
func (c *Core) IsAdmin(principal types.EntityUID) bool {
	snap := c.registry.Get(types.AdminProjectID)
	if snap == nil {
		return false
	}
	ent, ok := snap.Entities[principal]
	if !ok {
		return false
	}
	if _, ok := ent.Parents[c.admin]; ok {
		return true
	}
	// Walk the parent chain rather than requiring direct membership, since
	// a caller may be a member of a group that is itself a member of Admins.
	visited := map[types.EntityUID]struct{}{principal: {}}
	queue := ent.ParentUIDs()
	for len(queue) > 0 {
		uid := queue[0]
		queue = queue[1:]
		if uid == c.admin {
			return true
		}
		if _, seen := visited[uid]; seen {
			continue
		}
		visited[uid] = struct{}{}
		if parent, ok := snap.Entities[uid]; ok {
			queue = append(queue, parent.ParentUIDs()...)
		}
	}
	return false
}
