// Package seed holds the built-in admin-project schema, entities, and
// policy set that Bootstrap installs the first time a deployment starts,
// the same way this codebase's lineage ships one embedded default policy
// document rather than requiring an operator to hand-author it.
package seed

import (
	_ "embed"

	"github.com/stratusmedia/cedrus/pkg/types"
)

//go:embed admin.cedarschema.json
var schemaDocument []byte

//go:embed admin.cedar
var adminsPolicyText string

// ProjectAdminRoleTemplateID names the built-in template, installed in the
// admin project, that every new project's owner is linked against so the
// admin project's policies recognize them as authorized to manage that
// project.
const ProjectAdminRoleTemplateID types.PolicyID = "ProjectAdminRole"

// AdminsManageProjectsPolicyID names the built-in static policy granting
// members of the Admins group unconditional access within the admin
// project.
const AdminsManageProjectsPolicyID types.PolicyID = "AdminsManageProjects"

// Schema returns a defensive copy of the admin project's built-in schema
// document.
func Schema() []byte {
	out := make([]byte, len(schemaDocument))
	copy(out, schemaDocument)
	return out
}

// Policies returns the admin project's built-in static policy set, keyed
// by policy id.
func Policies() map[types.PolicyID]types.Policy {
	return map[types.PolicyID]types.Policy{
		AdminsManageProjectsPolicyID: {ID: AdminsManageProjectsPolicyID, Text: adminsPolicyText},
	}
}

// Templates returns the admin project's built-in templates.
func Templates() map[types.PolicyID]types.Template {
	return map[types.PolicyID]types.Template{
		ProjectAdminRoleTemplateID: {ID: ProjectAdminRoleTemplateID, Text: projectAdminRoleTemplate},
	}
}

// projectAdminRoleTemplate grants its linked principal every action on its
// linked resource, used to scope a project's owner to that one project
// entity inside the admin project's policy set.
const projectAdminRoleTemplate = `permit (
    principal == ?principal,
    action,
    resource == ?resource
);`

// Entities returns the admin project's built-in entity graph: the Admins
// group, initially empty. Membership is granted by parenting a user
// entity to it, not by anything seed installs.
func Entities() map[types.EntityUID]types.Entity {
	admins := types.NewEntity(types.NewEntityUID(types.AdminGroupType, types.AdminsGroupID))
	return map[types.EntityUID]types.Entity{
		admins.UID: admins,
	}
}
