package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratusmedia/cedrus/pkg/types"
)

func TestProjectRemoveCarriesAPIKey(t *testing.T) {
	id, err := types.NewProjectID()
	require.NoError(t, err)

	e := ProjectRemove("instance-a", id, "secret-key")
	assert.Equal(t, KindProjectRemove, e.Kind)
	assert.Equal(t, id, e.ProjectID)
	assert.Equal(t, "secret-key", e.APIKey)
	assert.Equal(t, "instance-a", e.SenderID)
}

func TestProjectAddEntitiesCarriesUIDs(t *testing.T) {
	id, err := types.NewProjectID()
	require.NoError(t, err)
	uids := []types.EntityUID{types.NewEntityUID("T", "a"), types.NewEntityUID("T", "b")}

	e := ProjectAddEntities("instance-a", id, uids)
	assert.Equal(t, KindProjectAddEntities, e.Kind)
	assert.Equal(t, uids, e.EntityUIDs)
}

func TestProjectAddPoliciesCarriesPolicyIDs(t *testing.T) {
	id, err := types.NewProjectID()
	require.NoError(t, err)
	ids := []types.PolicyID{"p1", "p2"}

	e := ProjectAddPolicies("instance-a", id, ids)
	assert.Equal(t, KindProjectAddPolicies, e.Kind)
	assert.Equal(t, ids, e.PolicyIDs)
}

func TestProjectRemoveTemplateLinksCarriesLinkIDs(t *testing.T) {
	id, err := types.NewProjectID()
	require.NoError(t, err)
	ids := []types.PolicyID{"link1"}

	e := ProjectRemoveTemplateLinks("instance-a", id, ids)
	assert.Equal(t, KindProjectRemoveTemplateLinks, e.Kind)
	assert.Equal(t, ids, e.PolicyIDs)
}

func TestProjectUpdateCarriesNoExtraPayload(t *testing.T) {
	id, err := types.NewProjectID()
	require.NoError(t, err)

	e := ProjectUpdate("instance-a", id)
	assert.Equal(t, KindProjectUpdate, e.Kind)
	assert.Empty(t, e.APIKey)
	assert.Empty(t, e.EntityUIDs)
	assert.Empty(t, e.PolicyIDs)
}
