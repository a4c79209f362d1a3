package sharedcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/stratusmedia/cedrus/pkg/types"
)

// InMemory is a Cache scoped to a single process, backed by a sync.Map of
// per-project entries the same way this codebase's other concurrent
// caches shard by key rather than taking one lock for the whole table.
type InMemory struct {
	projects sync.Map // types.ProjectID -> *projectEntry
}

type projectEntry struct {
	mu             sync.RWMutex
	project        *types.Project
	identitySource *types.IdentitySourceConfig
	schema         *types.Schema
	entities       map[types.EntityUID]types.Entity
	policies       map[types.PolicyID]types.Policy
	templates      map[types.PolicyID]types.Template
	links          map[types.PolicyID]types.TemplateLink
}

func newProjectEntry() *projectEntry {
	return &projectEntry{
		entities:  map[types.EntityUID]types.Entity{},
		policies:  map[types.PolicyID]types.Policy{},
		templates: map[types.PolicyID]types.Template{},
		links:     map[types.PolicyID]types.TemplateLink{},
	}
}

// NewInMemory returns an empty in-process Cache.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (c *InMemory) entry(projectID types.ProjectID) *projectEntry {
	if v, ok := c.projects.Load(projectID); ok {
		return v.(*projectEntry)
	}
	v, _ := c.projects.LoadOrStore(projectID, newProjectEntry())
	return v.(*projectEntry)
}

func (c *InMemory) Clear(ctx context.Context, projectID types.ProjectID) error {
	c.projects.Delete(projectID)
	return nil
}

func (c *InMemory) Projects(ctx context.Context) ([]types.Project, error) {
	var out []types.Project
	c.projects.Range(func(_, v any) bool {
		e := v.(*projectEntry)
		e.mu.RLock()
		if e.project != nil {
			out = append(out, *e.project)
		}
		e.mu.RUnlock()
		return true
	})
	return out, nil
}

func (c *InMemory) GetProject(ctx context.Context, projectID types.ProjectID) (*types.Project, bool, error) {
	e := c.entry(projectID)
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.project == nil {
		return nil, false, nil
	}
	p := *e.project
	return &p, true, nil
}

func (c *InMemory) PutProject(ctx context.Context, project types.Project) error {
	e := c.entry(project.ID)
	e.mu.Lock()
	defer e.mu.Unlock()
	p := project
	e.project = &p
	return nil
}

func (c *InMemory) DeleteProject(ctx context.Context, projectID types.ProjectID) error {
	c.projects.Delete(projectID)
	return nil
}

func (c *InMemory) GetIdentitySource(ctx context.Context, projectID types.ProjectID) (*types.IdentitySourceConfig, bool, error) {
	e := c.entry(projectID)
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.identitySource == nil {
		return nil, false, nil
	}
	src := *e.identitySource
	return &src, true, nil
}

func (c *InMemory) PutIdentitySource(ctx context.Context, projectID types.ProjectID, src types.IdentitySourceConfig) error {
	e := c.entry(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()
	s := src
	e.identitySource = &s
	return nil
}

func (c *InMemory) DeleteIdentitySource(ctx context.Context, projectID types.ProjectID) error {
	e := c.entry(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.identitySource = nil
	return nil
}

func (c *InMemory) GetSchema(ctx context.Context, projectID types.ProjectID) (*types.Schema, bool, error) {
	e := c.entry(projectID)
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.schema == nil {
		return nil, false, nil
	}
	s := *e.schema
	return &s, true, nil
}

func (c *InMemory) PutSchema(ctx context.Context, projectID types.ProjectID, schema types.Schema) error {
	e := c.entry(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()
	s := schema
	e.schema = &s
	return nil
}

func (c *InMemory) DeleteSchema(ctx context.Context, projectID types.ProjectID) error {
	e := c.entry(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.schema = nil
	return nil
}

func (c *InMemory) GetEntities(ctx context.Context, projectID types.ProjectID, uids []types.EntityUID) ([]types.Entity, error) {
	e := c.entry(projectID)
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.Entity, 0, len(uids))
	for _, u := range uids {
		if ent, ok := e.entities[u]; ok {
			out = append(out, ent)
		}
	}
	return out, nil
}

func (c *InMemory) GetAllEntities(ctx context.Context, projectID types.ProjectID) (map[types.EntityUID]types.Entity, error) {
	e := c.entry(projectID)
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[types.EntityUID]types.Entity, len(e.entities))
	for k, v := range e.entities {
		out[k] = v
	}
	return out, nil
}

func (c *InMemory) PutEntities(ctx context.Context, projectID types.ProjectID, entities []types.Entity) error {
	e := c.entry(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ent := range entities {
		e.entities[ent.UID] = ent
	}
	return nil
}

func (c *InMemory) DeleteEntities(ctx context.Context, projectID types.ProjectID, uids []types.EntityUID) error {
	e := c.entry(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, u := range uids {
		delete(e.entities, u)
	}
	return nil
}

func (c *InMemory) GetPolicies(ctx context.Context, projectID types.ProjectID) (map[types.PolicyID]types.Policy, error) {
	e := c.entry(projectID)
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[types.PolicyID]types.Policy, len(e.policies))
	for k, v := range e.policies {
		out[k] = v
	}
	return out, nil
}

func (c *InMemory) PutPolicies(ctx context.Context, projectID types.ProjectID, policies map[types.PolicyID]types.Policy) error {
	e := c.entry(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range policies {
		e.policies[k] = v
	}
	return nil
}

func (c *InMemory) DeletePolicies(ctx context.Context, projectID types.ProjectID, ids []types.PolicyID) error {
	e := c.entry(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		delete(e.policies, id)
	}
	return nil
}

func (c *InMemory) GetTemplates(ctx context.Context, projectID types.ProjectID) (map[types.PolicyID]types.Template, error) {
	e := c.entry(projectID)
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[types.PolicyID]types.Template, len(e.templates))
	for k, v := range e.templates {
		out[k] = v
	}
	return out, nil
}

func (c *InMemory) PutTemplates(ctx context.Context, projectID types.ProjectID, templates map[types.PolicyID]types.Template) error {
	e := c.entry(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range templates {
		e.templates[k] = v
	}
	return nil
}

func (c *InMemory) DeleteTemplates(ctx context.Context, projectID types.ProjectID, ids []types.PolicyID) error {
	e := c.entry(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		delete(e.templates, id)
	}
	return nil
}

func (c *InMemory) GetTemplateLinks(ctx context.Context, projectID types.ProjectID) ([]types.TemplateLink, error) {
	e := c.entry(projectID)
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.TemplateLink, 0, len(e.links))
	for _, l := range e.links {
		out = append(out, l)
	}
	return out, nil
}

func (c *InMemory) PutTemplateLinks(ctx context.Context, projectID types.ProjectID, links []types.TemplateLink) error {
	e := c.entry(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, l := range links {
		e.links[l.LinkID] = l
	}
	return nil
}

func (c *InMemory) DeleteTemplateLinks(ctx context.Context, projectID types.ProjectID, ids []types.PolicyID) error {
	e := c.entry(projectID)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		delete(e.links, id)
	}
	return nil
}

func errUnknownConfig(cfg Config) error {
	return fmt.Errorf("sharedcache: unknown config type %T", cfg)
}
