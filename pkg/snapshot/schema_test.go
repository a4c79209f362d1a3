package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratusmedia/cedrus/pkg/types"
)

func TestParseSchemaInvalidJSON(t *testing.T) {
	_, err := parseSchema([]byte("not json"))
	assert.Error(t, err)
}

func TestParseSchemaQualifiesEntityTypesByNamespace(t *testing.T) {
	sch, err := parseSchema([]byte(`{
		"MyApp": {
			"entityTypes": {
				"User": {"shape": {"type": "Record", "attributes": {}}},
				"Document": {"shape": {"type": "Record", "attributes": {}}}
			},
			"actions": {}
		}
	}`))
	require.NoError(t, err)

	_, hasUser := sch.EntityTypeInfoFor("MyApp::User")
	_, hasDoc := sch.EntityTypeInfoFor("MyApp::Document")
	assert.True(t, hasUser)
	assert.True(t, hasDoc)
}

func TestValidateEntitiesAgainstSchemaFlagsUndeclaredType(t *testing.T) {
	sch, err := parseSchema([]byte(`{
		"MyApp": {
			"entityTypes": {"User": {"shape": {"type": "Record", "attributes": {}}}},
			"actions": {}
		}
	}`))
	require.NoError(t, err)

	entities := map[types.EntityUID]types.Entity{
		types.NewEntityUID("MyApp::User", "alice"):    types.NewEntity(types.NewEntityUID("MyApp::User", "alice")),
		types.NewEntityUID("MyApp::Document", "doc1"): types.NewEntity(types.NewEntityUID("MyApp::Document", "doc1")),
	}
	mismatches := validateEntitiesAgainstSchema(sch, entities)
	require.Len(t, mismatches, 1)
	assert.Contains(t, mismatches[0], "MyApp::Document")
}
