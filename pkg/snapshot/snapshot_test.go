package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratusmedia/cedrus/pkg/types"
)

func newProjectID(t *testing.T) types.ProjectID {
	t.Helper()
	id, err := types.NewProjectID()
	require.NoError(t, err)
	return id
}

func TestCompileEmptySnapshot(t *testing.T) {
	s := New(newProjectID(t))
	require.NoError(t, s.Compile())
	assert.NotNil(t, s.CedarPolicySet)
	assert.Empty(t, s.CedarEntities)
}

func TestCompileStaticPolicy(t *testing.T) {
	s := New(newProjectID(t))
	s.Policies["owner-can-view"] = types.Policy{
		ID: "owner-can-view",
		Text: `permit (
			principal,
			action,
			resource
		) when {
			resource.owner == principal
		};`,
	}
	require.NoError(t, s.Compile())
	assert.NotNil(t, s.CedarPolicySet.Get("owner-can-view"))
}

func TestCompileInvalidPolicySyntax(t *testing.T) {
	s := New(newProjectID(t))
	s.Policies["broken"] = types.Policy{ID: "broken", Text: "this is not cedar"}
	err := s.Compile()
	require.Error(t, err)
	assert.Equal(t, types.KindInvalidPolicy, types.KindOf(err))
}

func TestCompileTemplateLinkInstantiation(t *testing.T) {
	s := New(newProjectID(t))
	s.Templates["AdminRole"] = types.Template{
		ID: "AdminRole",
		Text: `permit (
			principal == ?principal,
			action,
			resource == ?resource
		);`,
	}
	s.TemplateLinks["alice-admin"] = types.TemplateLink{
		TemplateID: "AdminRole",
		LinkID:     "alice-admin",
		Values: map[types.SlotID]types.EntityUID{
			types.SlotPrincipal: types.NewEntityUID("User", "alice"),
			types.SlotResource:  types.NewEntityUID("Project", "p1"),
		},
	}
	require.NoError(t, s.Compile())
	assert.NotNil(t, s.CedarPolicySet.Get("alice-admin"))
}

func TestCompileTemplateLinkMissingTemplate(t *testing.T) {
	s := New(newProjectID(t))
	s.TemplateLinks["orphan"] = types.TemplateLink{
		TemplateID: "DoesNotExist",
		LinkID:     "orphan",
	}
	err := s.Compile()
	require.Error(t, err)
	assert.Equal(t, types.KindNoSuchTemplate, types.KindOf(err))
}

func TestCompileTemplateLinkMissingSlotValue(t *testing.T) {
	s := New(newProjectID(t))
	s.Templates["AdminRole"] = types.Template{
		ID: "AdminRole",
		Text: `permit (
			principal == ?principal,
			action,
			resource == ?resource
		);`,
	}
	s.TemplateLinks["alice-admin"] = types.TemplateLink{
		TemplateID: "AdminRole",
		LinkID:     "alice-admin",
		Values: map[types.SlotID]types.EntityUID{
			types.SlotPrincipal: types.NewEntityUID("User", "alice"),
			// resource slot deliberately left unbound
		},
	}
	err := s.Compile()
	require.Error(t, err)
	assert.Equal(t, types.KindInvalidSlot, types.KindOf(err))
}

func TestCompileLinkWinsOverPolicyIDCollision(t *testing.T) {
	s := New(newProjectID(t))
	s.Policies["same-id"] = types.Policy{ID: "same-id", Text: `forbid (principal, action, resource);`}
	s.Templates["AdminRole"] = types.Template{
		ID: "AdminRole",
		Text: `permit (
			principal == ?principal,
			action,
			resource == ?resource
		);`,
	}
	s.TemplateLinks["same-id"] = types.TemplateLink{
		TemplateID: "AdminRole",
		LinkID:     "same-id",
		Values: map[types.SlotID]types.EntityUID{
			types.SlotPrincipal: types.NewEntityUID("User", "alice"),
			types.SlotResource:  types.NewEntityUID("Project", "p1"),
		},
	}
	require.NoError(t, s.Compile())

	policy := s.CedarPolicySet.Get("same-id")
	require.NotNil(t, policy)
	assert.Contains(t, string(policy.MarshalCedar()), "permit")
}

func TestCompileSchemaStrictRejectsUndeclaredEntityType(t *testing.T) {
	s := New(newProjectID(t))
	s.Schema = types.Schema{
		Document: []byte(`{"MyApp":{"entityTypes":{"User":{"shape":{"type":"Record","attributes":{}}}},"actions":{}}}`),
		Mode:     types.SchemaModeStrict,
	}
	s.Entities[types.NewEntityUID("MyApp::Document", "doc1")] = types.NewEntity(types.NewEntityUID("MyApp::Document", "doc1"))

	err := s.Compile()
	require.Error(t, err)
	assert.Equal(t, types.KindSchemaMismatch, types.KindOf(err))
}

func TestCompileSchemaLenientRetainsDiagnostics(t *testing.T) {
	s := New(newProjectID(t))
	s.Schema = types.Schema{
		Document: []byte(`{"MyApp":{"entityTypes":{"User":{"shape":{"type":"Record","attributes":{}}}},"actions":{}}}`),
		Mode:     types.SchemaModeLenient,
	}
	s.Entities[types.NewEntityUID("MyApp::Document", "doc1")] = types.NewEntity(types.NewEntityUID("MyApp::Document", "doc1"))

	require.NoError(t, s.Compile())
	assert.NotEmpty(t, s.Diagnostics)
}

func TestCompileSchemaAllowsDeclaredType(t *testing.T) {
	s := New(newProjectID(t))
	s.Schema = types.Schema{
		Document: []byte(`{"MyApp":{"entityTypes":{"User":{"shape":{"type":"Record","attributes":{}}}},"actions":{}}}`),
		Mode:     types.SchemaModeStrict,
	}
	s.Entities[types.NewEntityUID("MyApp::User", "alice")] = types.NewEntity(types.NewEntityUID("MyApp::User", "alice"))

	require.NoError(t, s.Compile())
	assert.Empty(t, s.Diagnostics)
}

func TestCloneOrNewFromNilReturnsEmpty(t *testing.T) {
	id := newProjectID(t)
	s := CloneOrNew(nil, id)
	assert.Equal(t, id, s.ProjectID)
	assert.Empty(t, s.Entities)
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	s := New(newProjectID(t))
	uid := types.NewEntityUID("T", "e1")
	s.Entities[uid] = types.NewEntity(uid)

	clone := s.Clone()
	delete(clone.Entities, uid)

	assert.Len(t, s.Entities, 1)
	assert.Len(t, clone.Entities, 0)
}
