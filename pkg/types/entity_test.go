package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEntityParents(t *testing.T) {
	parent := NewEntityUID("T", "p1")
	e := NewEntity(NewEntityUID("T", "c1"), parent)
	_, ok := e.Parents[parent]
	assert.True(t, ok)
	assert.Len(t, e.ParentUIDs(), 1)
}

func TestEntityCloneIsIndependent(t *testing.T) {
	e := NewEntity(NewEntityUID("T", "c1"), NewEntityUID("T", "p1"))
	e.Attrs["name"] = StringValue("alice")

	clone := e.Clone()
	clone.Attrs["name"] = StringValue("bob")
	delete(clone.Parents, NewEntityUID("T", "p1"))

	assert.Equal(t, StringValue("alice"), e.Attrs["name"])
	assert.Len(t, e.Parents, 1)
	assert.Len(t, clone.Parents, 0)
}

func TestProjectEntityUIDUsesAdminProjectType(t *testing.T) {
	id := AdminProjectID
	uid := ProjectEntityUID(id)
	assert.Equal(t, AdminProjectType, uid.Type)
}
