package sharedcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratusmedia/cedrus/pkg/types"
)

func newID(t *testing.T) types.ProjectID {
	t.Helper()
	id, err := types.NewProjectID()
	require.NoError(t, err)
	return id
}

func TestProjectRoundTrip(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()
	id := newID(t)

	_, ok, err := c.GetProject(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.PutProject(ctx, types.Project{ID: id, Name: "acme"}))
	got, ok, err := c.GetProject(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "acme", got.Name)

	require.NoError(t, c.DeleteProject(ctx, id))
	_, ok, err = c.GetProject(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProjectsListsAllMirroredProjects(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()
	a, b := newID(t), newID(t)
	require.NoError(t, c.PutProject(ctx, types.Project{ID: a}))
	require.NoError(t, c.PutProject(ctx, types.Project{ID: b}))

	projects, err := c.Projects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}

func TestClearRemovesEntireProjectEntry(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()
	id := newID(t)
	require.NoError(t, c.PutProject(ctx, types.Project{ID: id}))
	require.NoError(t, c.PutPolicies(ctx, id, map[types.PolicyID]types.Policy{
		"p1": {ID: "p1", Text: "permit(principal,action,resource);"},
	}))

	require.NoError(t, c.Clear(ctx, id))

	_, ok, err := c.GetProject(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
	policies, err := c.GetPolicies(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, policies)
}

func TestIdentitySourceRoundTrip(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()
	id := newID(t)

	_, ok, err := c.GetIdentitySource(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.PutIdentitySource(ctx, id, types.IdentitySourceConfig{PrincipalEntityType: "MyApp::User"}))
	got, ok, err := c.GetIdentitySource(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "MyApp::User", got.PrincipalEntityType)

	require.NoError(t, c.DeleteIdentitySource(ctx, id))
	_, ok, err = c.GetIdentitySource(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSchemaRoundTrip(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()
	id := newID(t)

	_, ok, err := c.GetSchema(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.PutSchema(ctx, id, types.Schema{Document: []byte(`{}`)}))
	got, ok, err := c.GetSchema(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{}`), got.Document)

	require.NoError(t, c.DeleteSchema(ctx, id))
	_, ok, err = c.GetSchema(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEntitiesRoundTrip(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()
	id := newID(t)

	alice := types.NewEntity(types.NewEntityUID("T", "alice"))
	bob := types.NewEntity(types.NewEntityUID("T", "bob"))
	require.NoError(t, c.PutEntities(ctx, id, []types.Entity{alice, bob}))

	got, err := c.GetEntities(ctx, id, []types.EntityUID{alice.UID, types.NewEntityUID("T", "nobody")})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, alice.UID, got[0].UID)

	all, err := c.GetAllEntities(ctx, id)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, c.DeleteEntities(ctx, id, []types.EntityUID{alice.UID}))
	all, err = c.GetAllEntities(ctx, id)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	_, stillThere := all[bob.UID]
	assert.True(t, stillThere)
}

func TestPoliciesRoundTrip(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()
	id := newID(t)

	require.NoError(t, c.PutPolicies(ctx, id, map[types.PolicyID]types.Policy{
		"p1": {ID: "p1", Text: "permit(principal,action,resource);"},
	}))
	got, err := c.GetPolicies(ctx, id)
	require.NoError(t, err)
	require.Contains(t, got, types.PolicyID("p1"))

	require.NoError(t, c.DeletePolicies(ctx, id, []types.PolicyID{"p1"}))
	got, err = c.GetPolicies(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTemplatesRoundTrip(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()
	id := newID(t)

	require.NoError(t, c.PutTemplates(ctx, id, map[types.PolicyID]types.Template{
		"AdminRole": {ID: "AdminRole", Text: "permit(principal == ?principal, action, resource == ?resource);"},
	}))
	got, err := c.GetTemplates(ctx, id)
	require.NoError(t, err)
	require.Contains(t, got, types.PolicyID("AdminRole"))

	require.NoError(t, c.DeleteTemplates(ctx, id, []types.PolicyID{"AdminRole"}))
	got, err = c.GetTemplates(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTemplateLinksRoundTrip(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()
	id := newID(t)

	link := types.TemplateLink{
		TemplateID: "AdminRole",
		LinkID:     "alice-admin",
		Values: map[types.SlotID]types.EntityUID{
			types.SlotPrincipal: types.NewEntityUID("User", "alice"),
		},
	}
	require.NoError(t, c.PutTemplateLinks(ctx, id, []types.TemplateLink{link}))

	got, err := c.GetTemplateLinks(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, link.LinkID, got[0].LinkID)

	require.NoError(t, c.DeleteTemplateLinks(ctx, id, []types.PolicyID{link.LinkID}))
	got, err = c.GetTemplateLinks(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// Entries are keyed per project: writes to one project must never leak into
// another's view of the cache.
func TestEntriesAreIsolatedPerProject(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()
	a, b := newID(t), newID(t)

	require.NoError(t, c.PutPolicies(ctx, a, map[types.PolicyID]types.Policy{
		"p1": {ID: "p1", Text: "permit(principal,action,resource);"},
	}))

	got, err := c.GetPolicies(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, got)
}
