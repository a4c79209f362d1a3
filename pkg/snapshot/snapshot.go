package snapshot

import (
	"fmt"
	"strings"

	"github.com/cedar-policy/cedar-go"

	"github.com/stratusmedia/cedrus/pkg/types"
)

// Snapshot is one project's fully compiled, ready-to-authorize state: a
// Cedar policy set with every static policy and every instantiated
// template link, and the entity map those policies evaluate against.
type Snapshot struct {
	ProjectID types.ProjectID

	Schema        types.Schema
	Entities      map[types.EntityUID]types.Entity
	Policies      map[types.PolicyID]types.Policy
	Templates     map[types.PolicyID]types.Template
	TemplateLinks map[types.PolicyID]types.TemplateLink // keyed by LinkID

	CedarPolicySet *cedar.PolicySet
	CedarEntities  cedar.EntityMap

	// Diagnostics holds the lenient-mode schema findings of the last
	// Compile: a schema document that does not parse, or entities whose
	// type the schema does not declare. Compile fails outright on a policy
	// or instantiated link that does not parse, a link to an unknown
	// template, or a slot with no bound value (in either mode), and, in
	// strict mode, on those same schema findings.
	Diagnostics []string
}

// New returns an empty Snapshot for projectID.
func New(projectID types.ProjectID) *Snapshot {
	return &Snapshot{
		ProjectID:     projectID,
		Entities:      map[types.EntityUID]types.Entity{},
		Policies:      map[types.PolicyID]types.Policy{},
		Templates:     map[types.PolicyID]types.Template{},
		TemplateLinks: map[types.PolicyID]types.TemplateLink{},
	}
}

// Clone returns a new Snapshot holding a copy of s's raw maps, so a
// caller can add or remove entries and recompile without mutating a
// snapshot a concurrent reader might still be holding. The clone is not
// compiled; call Compile after mutating it.
func (s *Snapshot) Clone() *Snapshot {
	next := New(s.ProjectID)
	next.Schema = s.Schema
	for k, v := range s.Entities {
		next.Entities[k] = v
	}
	for k, v := range s.Policies {
		next.Policies[k] = v
	}
	for k, v := range s.Templates {
		next.Templates[k] = v
	}
	for k, v := range s.TemplateLinks {
		next.TemplateLinks[k] = v
	}
	return next
}

// CloneOrNew returns current.Clone(), or a fresh empty Snapshot for id if
// current is nil. Written for Registry.Mutate callbacks, which receive
// nil when no snapshot exists yet for the project.
func CloneOrNew(current *Snapshot, id types.ProjectID) *Snapshot {
	if current == nil {
		return New(id)
	}
	return current.Clone()
}

// Compile builds CedarPolicySet and CedarEntities from the snapshot's raw
// state. It instantiates every template link by substituting its slot
// values as literal Cedar entity-uid syntax into the template's text and
// reparsing the result; a template has no other representation in this
// package, since the stable policy-set API parses only policy source
// text, not a slot-aware AST.
func (s *Snapshot) Compile() error {
	s.Diagnostics = nil
	ps := cedar.NewPolicySet()

	for id, p := range s.Policies {
		policy, err := parseSinglePolicy(string(id), p.Text)
		if err != nil {
			return types.Wrap(types.KindInvalidPolicy, fmt.Sprintf("policy %s", id), err)
		}
		ps.Add(cedar.PolicyID(id), policy)
	}

	for _, link := range s.TemplateLinks {
		tmpl, ok := s.Templates[link.TemplateID]
		if !ok {
			return types.New(types.KindNoSuchTemplate, fmt.Sprintf("link %s references unknown template %s", link.LinkID, link.TemplateID))
		}
		text, err := instantiateTemplate(tmpl.Text, link.Values)
		if err != nil {
			return types.Wrap(types.KindInvalidSlot, fmt.Sprintf("link %s", link.LinkID), err)
		}
		policy, err := parseSinglePolicy(string(link.LinkID), text)
		if err != nil {
			return types.Wrap(types.KindInvalidPolicy, fmt.Sprintf("instantiated link %s", link.LinkID), err)
		}
		ps.Add(cedar.PolicyID(link.LinkID), policy)
	}

	s.CedarPolicySet = ps
	s.CedarEntities = cedarEntityMap(s.Entities)

	if !s.Schema.IsEmpty() {
		sch, err := parseSchema(s.Schema.Document)
		if err != nil {
			if s.Schema.Mode == types.SchemaModeStrict {
				return types.Wrap(types.KindInvalidSchema, "project schema", err)
			}
			s.Diagnostics = append(s.Diagnostics, err.Error())
		} else {
			mismatches := validateEntitiesAgainstSchema(sch, s.Entities)
			if s.Schema.Mode == types.SchemaModeStrict && len(mismatches) > 0 {
				return types.New(types.KindSchemaMismatch, strings.Join(mismatches, "; "))
			}
			s.Diagnostics = append(s.Diagnostics, mismatches...)
		}
	}

	return nil
}

// parseSinglePolicy parses exactly one Cedar policy and returns it under
// id, using the stable file-level parser since no single-policy parse
// entry point is exposed.
func parseSinglePolicy(id string, text string) (*cedar.Policy, error) {
	ps, err := cedar.NewPolicySetFromBytes(id+".cedar", []byte(text))
	if err != nil {
		return nil, err
	}
	policy := ps.Get("policy0")
	if policy == nil {
		return nil, fmt.Errorf("no policy found in document")
	}
	return policy, nil
}

// instantiateTemplate substitutes every slot token in tmplText with the
// literal Cedar entity-uid syntax of its bound value. Slot tokens only
// ever appear in scope position (principal == ?principal, resource ==
// ?resource), so literal textual substitution is equivalent to binding
// the slot in Cedar's own template-link semantics.
func instantiateTemplate(tmplText string, values map[types.SlotID]types.EntityUID) (string, error) {
	out := tmplText
	for _, slot := range []types.SlotID{types.SlotPrincipal, types.SlotResource} {
		if !strings.Contains(out, string(slot)) {
			continue
		}
		uid, ok := values[slot]
		if !ok {
			return "", fmt.Errorf("template references slot %s with no bound value", slot)
		}
		out = strings.ReplaceAll(out, string(slot), uid.String())
	}
	return out, nil
}
