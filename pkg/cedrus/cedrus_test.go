package cedrus

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratusmedia/cedrus/pkg/authz"
	"github.com/stratusmedia/cedrus/pkg/durable"
	"github.com/stratusmedia/cedrus/pkg/eventbus"
	"github.com/stratusmedia/cedrus/pkg/sharedcache"
	"github.com/stratusmedia/cedrus/pkg/types"
)

// testBus fans every published event out to every subscribed handler
// synchronously, standing in for a real broker so two Core instances can
// be exercised against each other in a single process.
type testBus struct {
	mu       sync.Mutex
	handlers []eventbus.Handler
}

func newTestBus() *testBus {
	return &testBus{}
}

func (b *testBus) Publish(ctx context.Context, e eventbus.Event) error {
	b.mu.Lock()
	handlers := append([]eventbus.Handler{}, b.handlers...)
	b.mu.Unlock()
	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (b *testBus) Subscribe(ctx context.Context, h eventbus.Handler) error {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
	return nil
}

func (b *testBus) Close() error { return nil }

func newTestCore(t *testing.T, dbPath string, cache sharedcache.Cache, bus eventbus.Bus) *Core {
	t.Helper()
	c, err := New(Config{
		Durable:     durable.SQLiteConfig{Path: dbPath},
		SharedCache: sharedcache.DistributedConfig{Cache: cache},
		EventBus:    eventbus.DistributedConfig{Bus: bus},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func bootstrapCore(t *testing.T) *Core {
	t.Helper()
	c := newTestCore(t, ":memory:", sharedcache.NewInMemory(), eventbus.NewNone())
	ctx := context.Background()
	require.NoError(t, c.InitProject(ctx))
	require.NoError(t, c.InitCache(ctx))
	require.NoError(t, c.LoadCache(ctx))
	return c
}

// scenario 1 & 2 from spec.md §8: the document's owner is permitted,
// anyone else is denied without error.
func TestOwnerCanViewAndUnknownPrincipalDenied(t *testing.T) {
	c := bootstrapCore(t)
	ctx := context.Background()

	owner := types.NewEntityUID("MyApp::User", "alice")
	project, _, err := c.ProjectCreate(ctx, "docs", owner, "")
	require.NoError(t, err)

	require.NoError(t, c.ProjectAddPolicies(ctx, project.ID, map[types.PolicyID]types.Policy{
		"owner-can-view": {ID: "owner-can-view", Text: `permit (principal, action, resource) when { resource.owner == principal };`},
	}))

	alice := types.NewEntity(owner)
	doc1 := types.NewEntity(types.NewEntityUID("MyApp::Document", "doc1"))
	doc1.Attrs["owner"] = types.EntityValue(owner)
	require.NoError(t, c.ProjectAddEntities(ctx, project.ID, []types.Entity{alice, doc1}))

	decision, err := c.Authorize(ctx, project.ID, authz.Request{
		Principal: owner,
		Action:    types.NewEntityUID("Action", "viewDocument"),
		Resource:  doc1.UID,
	})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = c.Authorize(ctx, project.ID, authz.Request{
		Principal: types.NewEntityUID("MyApp::User", "bob"),
		Action:    types.NewEntityUID("Action", "viewDocument"),
		Resource:  doc1.UID,
	})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

// scenario 5 from spec.md §8: an entity referencing an unknown parent is
// rejected, and no durable write happens for the whole call.
func TestAddEntitiesRejectsDanglingParent(t *testing.T) {
	c := bootstrapCore(t)
	ctx := context.Background()

	owner := types.NewEntityUID("MyApp::User", "alice")
	project, _, err := c.ProjectCreate(ctx, "docs", owner, "")
	require.NoError(t, err)

	child := types.NewEntity(types.NewEntityUID("T", "child"), types.NewEntityUID("T", "ghost-parent"))
	err = c.ProjectAddEntities(ctx, project.ID, []types.Entity{child})
	require.Error(t, err)
	assert.Equal(t, types.KindReferentialIntegrity, types.KindOf(err))

	page, err := c.ProjectEntitiesFind(ctx, project.ID, types.NewQuery())
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

// scenario 3 from spec.md §8: a template link instantiates against its
// template, and removing the template while a link still references it
// fails until the link is removed first.
func TestTemplateLinkLifecycleBlocksTemplateRemovalUntilUnlinked(t *testing.T) {
	c := bootstrapCore(t)
	ctx := context.Background()

	owner := types.NewEntityUID("MyApp::User", "alice")
	project, _, err := c.ProjectCreate(ctx, "docs", owner, "")
	require.NoError(t, err)

	require.NoError(t, c.ProjectAddTemplates(ctx, project.ID, map[types.PolicyID]types.Template{
		"AdminRole": {ID: "AdminRole", Text: `permit (principal == ?principal, action, resource == ?resource);`},
	}))

	resource := types.NewEntityUID("MyApp::Document", "doc1")
	require.NoError(t, c.ProjectAddTemplateLinks(ctx, project.ID, []types.TemplateLink{
		{
			TemplateID: "AdminRole",
			LinkID:     "alice-admin",
			Values: map[types.SlotID]types.EntityUID{
				types.SlotPrincipal: owner,
				types.SlotResource:  resource,
			},
		},
	}))

	decision, err := c.Authorize(ctx, project.ID, authz.Request{
		Principal: owner,
		Action:    types.NewEntityUID("Action", "anything"),
		Resource:  resource,
	})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	err = c.ProjectRemoveTemplates(ctx, project.ID, []types.PolicyID{"AdminRole"})
	require.Error(t, err)
	assert.Equal(t, types.KindReferentialIntegrity, types.KindOf(err))

	require.NoError(t, c.ProjectRemoveTemplateLinks(ctx, project.ID, []types.PolicyID{"alice-admin"}))
	require.NoError(t, c.ProjectRemoveTemplates(ctx, project.ID, []types.PolicyID{"AdminRole"}))
}

// scenario 6 from spec.md §8: removing a project purges the admin
// project's bookkeeping entity and template link installed for it.
func TestProjectRemovePurgesAdminBookkeeping(t *testing.T) {
	c := bootstrapCore(t)
	ctx := context.Background()

	owner := types.NewEntityUID("MyApp::User", "alice")
	project, _, err := c.ProjectCreate(ctx, "docs", owner, "")
	require.NoError(t, err)

	adminSnapBefore := c.registry.Get(types.AdminProjectID)
	require.NotNil(t, adminSnapBefore)
	_, hasEntity := adminSnapBefore.Entities[types.ProjectEntityUID(project.ID)]
	assert.True(t, hasEntity)
	_, hasLink := adminSnapBefore.TemplateLinks[projectAdminLinkID(project.ID)]
	assert.True(t, hasLink)

	_, err = c.ProjectRemove(ctx, project.ID)
	require.NoError(t, err)

	adminSnapAfter := c.registry.Get(types.AdminProjectID)
	require.NotNil(t, adminSnapAfter)
	_, hasEntity = adminSnapAfter.Entities[types.ProjectEntityUID(project.ID)]
	assert.False(t, hasEntity)
	_, hasLink = adminSnapAfter.TemplateLinks[projectAdminLinkID(project.ID)]
	assert.False(t, hasLink)

	_, err = c.Authorize(ctx, project.ID, authz.Request{
		Principal: owner,
		Action:    types.NewEntityUID("Action", "view"),
		Resource:  types.NewEntityUID("T", "r"),
	})
	assert.Equal(t, types.KindNoSuchProject, types.KindOf(err))
}

// scenario 4 from spec.md §8: two instances sharing a durable store, a
// distributed cache, and an event bus converge on the same authorization
// answer once the writing instance's events are delivered.
func TestTwoInstanceEventualConsistency(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cedrus.db")
	cache := sharedcache.NewInMemory()
	bus := newTestBus()

	writer := newTestCore(t, dbPath, cache, bus)
	reader := newTestCore(t, dbPath, cache, bus)
	ctx := context.Background()

	require.NoError(t, writer.InitProject(ctx))
	require.NoError(t, writer.InitCache(ctx))
	require.NoError(t, writer.LoadCache(ctx))
	require.NoError(t, reader.LoadCache(ctx))
	require.NoError(t, writer.Subscribe(ctx))
	require.NoError(t, reader.Subscribe(ctx))

	owner := types.NewEntityUID("MyApp::User", "alice")
	project, _, err := writer.ProjectCreate(ctx, "docs", owner, "")
	require.NoError(t, err)

	require.NoError(t, writer.ProjectAddPolicies(ctx, project.ID, map[types.PolicyID]types.Policy{
		"owner-can-view": {ID: "owner-can-view", Text: `permit (principal, action, resource) when { resource.owner == principal };`},
	}))

	doc1 := types.NewEntity(types.NewEntityUID("MyApp::Document", "doc1"))
	doc1.Attrs["owner"] = types.EntityValue(owner)
	alice := types.NewEntity(owner)
	require.NoError(t, writer.ProjectAddEntities(ctx, project.ID, []types.Entity{alice, doc1}))

	decision, err := reader.Authorize(ctx, project.ID, authz.Request{
		Principal: owner,
		Action:    types.NewEntityUID("Action", "viewDocument"),
		Resource:  doc1.UID,
	})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestProjectUpdateIsNoOpWhenPristine(t *testing.T) {
	c := bootstrapCore(t)
	ctx := context.Background()
	owner := types.NewEntityUID("MyApp::User", "alice")
	project, _, err := c.ProjectCreate(ctx, "docs", owner, "")
	require.NoError(t, err)

	updated, err := c.ProjectUpdate(ctx, project.ID, "", "", project.UpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, project.UpdatedAt, updated.UpdatedAt)
}

// spec.md §4.6: a presented API key resolves to its owning project's
// owner without a storage round-trip.
func TestResolveOwnerFindsProjectOwnerByAPIKeyHash(t *testing.T) {
	c := bootstrapCore(t)
	ctx := context.Background()
	owner := types.NewEntityUID("MyApp::User", "alice")

	project, rawKey, err := c.ProjectCreate(ctx, "docs", owner, "")
	require.NoError(t, err)
	require.NotEmpty(t, rawKey)

	resolved, ok := c.ResolveOwner(project.APIKeyHash)
	require.True(t, ok)
	assert.Equal(t, owner, resolved)

	_, err = c.ProjectRemove(ctx, project.ID)
	require.NoError(t, err)

	_, ok = c.ResolveOwner(project.APIKeyHash)
	assert.False(t, ok)
}

// spec.md §5/§8: two concurrent ProjectAddEntities calls racing on the
// same EntityUID must leave exactly one winner; the loser sees
// KindIDConflict rather than silently overwriting the winner's write.
func TestConcurrentAddEntitiesSameUIDOneWinnerOneConflict(t *testing.T) {
	c := bootstrapCore(t)
	ctx := context.Background()

	owner := types.NewEntityUID("MyApp::User", "alice")
	project, _, err := c.ProjectCreate(ctx, "docs", owner, "")
	require.NoError(t, err)

	uid := types.NewEntityUID("T", "race")
	const racers = 8
	errs := make([]error, racers)

	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(i int) {
			defer wg.Done()
			errs[i] = c.ProjectAddEntities(ctx, project.ID, []types.Entity{types.NewEntity(uid)})
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case types.KindOf(err) == types.KindIDConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)

	page, err := c.ProjectEntitiesFind(ctx, project.ID, types.NewQuery())
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, uid, page.Items[0].UID)
}

func TestProjectUpdateRejectsStaleExpectedUpdatedAt(t *testing.T) {
	c := bootstrapCore(t)
	ctx := context.Background()
	owner := types.NewEntityUID("MyApp::User", "alice")
	project, _, err := c.ProjectCreate(ctx, "docs", owner, "")
	require.NoError(t, err)

	_, err = c.ProjectUpdate(ctx, project.ID, "renamed", "", project.UpdatedAt-1)
	require.Error(t, err)
	assert.Equal(t, types.KindIDConflict, types.KindOf(err))
}
