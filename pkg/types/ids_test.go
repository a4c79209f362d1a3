package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminProjectIDIsNil(t *testing.T) {
	assert.True(t, AdminProjectID.IsAdmin())
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", AdminProjectID.String())
}

func TestNewProjectIDIsNotAdmin(t *testing.T) {
	id, err := NewProjectID()
	require.NoError(t, err)
	assert.False(t, id.IsAdmin())
}

func TestNewProjectIDUnique(t *testing.T) {
	a, err := NewProjectID()
	require.NoError(t, err)
	b, err := NewProjectID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestParseProjectIDRoundTrip(t *testing.T) {
	id, err := NewProjectID()
	require.NoError(t, err)

	parsed, err := ParseProjectID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseProjectIDInvalid(t *testing.T) {
	_, err := ParseProjectID("not-a-uuid")
	assert.Error(t, err)
}

func TestEntityUIDString(t *testing.T) {
	u := NewEntityUID("MyApp::User", "alice")
	assert.Equal(t, `MyApp::User::"alice"`, u.String())
}

func TestEntityUIDStringEscapesQuotes(t *testing.T) {
	u := NewEntityUID("MyApp::User", `ali"ce`)
	assert.Equal(t, `MyApp::User::"ali\"ce"`, u.String())
}

func TestEntityUIDIsZero(t *testing.T) {
	assert.True(t, EntityUID{}.IsZero())
	assert.False(t, NewEntityUID("T", "1").IsZero())
}

func TestProjectEntityUID(t *testing.T) {
	id, err := NewProjectID()
	require.NoError(t, err)
	uid := ProjectEntityUID(id)
	assert.Equal(t, AdminProjectType, uid.Type)
	assert.Equal(t, id.String(), uid.ID)
}
