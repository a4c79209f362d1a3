package types

// Entity is one node in a project's entity graph.
type Entity struct {
	UID     EntityUID
	Attrs   map[string]AttrValue
	Parents map[EntityUID]struct{}
	Tags    map[string]AttrValue
}

// NewEntity builds an Entity with empty attribute/tag maps and the given
// parents.
func NewEntity(uid EntityUID, parents ...EntityUID) Entity {
	e := Entity{
		UID:     uid,
		Attrs:   map[string]AttrValue{},
		Parents: make(map[EntityUID]struct{}, len(parents)),
		Tags:    map[string]AttrValue{},
	}
	for _, p := range parents {
		e.Parents[p] = struct{}{}
	}
	return e
}

// Clone returns a deep-enough copy of e: the map fields are copied, the
// AttrValue leaves (immutable) are shared.
func (e Entity) Clone() Entity {
	out := Entity{
		UID:     e.UID,
		Attrs:   make(map[string]AttrValue, len(e.Attrs)),
		Parents: make(map[EntityUID]struct{}, len(e.Parents)),
		Tags:    make(map[string]AttrValue, len(e.Tags)),
	}
	for k, v := range e.Attrs {
		out.Attrs[k] = v
	}
	for k := range e.Parents {
		out.Parents[k] = struct{}{}
	}
	for k, v := range e.Tags {
		out.Tags[k] = v
	}
	return out
}

// ParentUIDs returns the entity's parents as a slice, for iteration order
// that doesn't depend on map ranging.
func (e Entity) ParentUIDs() []EntityUID {
	out := make([]EntityUID, 0, len(e.Parents))
	for p := range e.Parents {
		out = append(out, p)
	}
	return out
}

// IdentitySourceConfig describes how upstream collaborators translate an
// authenticated caller into the EntityUID the core receives. The core does
// not act on this configuration itself (spec.md §4.6); it only stores and
// hands it back to the collaborator that resolves identities.
type IdentitySourceConfig struct {
	PrincipalEntityType string
	Raw                 map[string]any
}

// Project is one tenant namespace: its own schema, entity graph, and
// policy set.
type Project struct {
	ID             ProjectID
	Name           string
	Owner          EntityUID
	APIKeyHash     string
	IdentitySource *IdentitySourceConfig
	CreatedAt      int64 // unix seconds
	UpdatedAt      int64 // unix seconds
}

// AdminUserType and friends name the canonical entity types seeded into
// the admin project by Core.InitProject.
const (
	AdminUserType    = "Cedrus::User"
	AdminProjectType = "Cedrus::Project"
	AdminGroupType   = "Cedrus::Group"
	AdminsGroupID    = "Admins"
)

// ProjectEntityUID is the entity uid the admin project uses to represent a
// non-admin project as a Cedar resource (e.g. as ?resource in the
// project-admin template link).
func ProjectEntityUID(id ProjectID) EntityUID {
	return NewEntityUID(AdminProjectType, id.String())
}
