// Package eventbus propagates write-path events across Cedrus instances so
// that each instance's in-memory registry stays eventually consistent with
// the durable store.
package eventbus

import "github.com/stratusmedia/cedrus/pkg/types"

// Kind names the variant of an Event's payload.
type Kind string

const (
	KindReloadAll                   Kind = "reload_all"
	KindProjectCreate               Kind = "project_create"
	KindProjectUpdate               Kind = "project_update"
	KindProjectRemove               Kind = "project_remove"
	KindProjectPutIdentitySource    Kind = "project_put_identity_source"
	KindProjectRemoveIdentitySource Kind = "project_remove_identity_source"
	KindProjectPutSchema            Kind = "project_put_schema"
	KindProjectRemoveSchema         Kind = "project_remove_schema"
	KindProjectAddEntities          Kind = "project_add_entities"
	KindProjectRemoveEntities       Kind = "project_remove_entities"
	KindProjectAddPolicies          Kind = "project_add_policies"
	KindProjectRemovePolicies       Kind = "project_remove_policies"
	KindProjectAddTemplates         Kind = "project_add_templates"
	KindProjectRemoveTemplates      Kind = "project_remove_templates"
	KindProjectAddTemplateLinks     Kind = "project_add_template_links"
	KindProjectRemoveTemplateLinks  Kind = "project_remove_template_links"
)

// Event is one write-path notification published to every other instance
// subscribed to the bus. SenderID lets a subscriber skip events it
// published itself, since that instance already applied the mutation
// locally before publishing.
type Event struct {
	SenderID   string
	Kind       Kind
	ProjectID  types.ProjectID
	APIKey     string            // set only on KindProjectRemove
	EntityUIDs []types.EntityUID // set on entity add/remove events
	PolicyIDs  []types.PolicyID  // set on policy/template/link add/remove events
}

func New(senderID string, kind Kind, projectID types.ProjectID) Event {
	return Event{SenderID: senderID, Kind: kind, ProjectID: projectID}
}

func ProjectCreate(senderID string, id types.ProjectID) Event {
	return New(senderID, KindProjectCreate, id)
}

func ProjectUpdate(senderID string, id types.ProjectID) Event {
	return New(senderID, KindProjectUpdate, id)
}

func ProjectRemove(senderID string, id types.ProjectID, apiKey string) Event {
	e := New(senderID, KindProjectRemove, id)
	e.APIKey = apiKey
	return e
}

func ProjectPutIdentitySource(senderID string, id types.ProjectID) Event {
	return New(senderID, KindProjectPutIdentitySource, id)
}

func ProjectRemoveIdentitySource(senderID string, id types.ProjectID) Event {
	return New(senderID, KindProjectRemoveIdentitySource, id)
}

func ProjectPutSchema(senderID string, id types.ProjectID) Event {
	return New(senderID, KindProjectPutSchema, id)
}

func ProjectRemoveSchema(senderID string, id types.ProjectID) Event {
	return New(senderID, KindProjectRemoveSchema, id)
}

func ProjectAddEntities(senderID string, id types.ProjectID, uids []types.EntityUID) Event {
	e := New(senderID, KindProjectAddEntities, id)
	e.EntityUIDs = uids
	return e
}

func ProjectRemoveEntities(senderID string, id types.ProjectID, uids []types.EntityUID) Event {
	e := New(senderID, KindProjectRemoveEntities, id)
	e.EntityUIDs = uids
	return e
}

func ProjectAddPolicies(senderID string, id types.ProjectID, ids []types.PolicyID) Event {
	e := New(senderID, KindProjectAddPolicies, id)
	e.PolicyIDs = ids
	return e
}

func ProjectRemovePolicies(senderID string, id types.ProjectID, ids []types.PolicyID) Event {
	e := New(senderID, KindProjectRemovePolicies, id)
	e.PolicyIDs = ids
	return e
}

func ProjectAddTemplates(senderID string, id types.ProjectID, ids []types.PolicyID) Event {
	e := New(senderID, KindProjectAddTemplates, id)
	e.PolicyIDs = ids
	return e
}

func ProjectRemoveTemplates(senderID string, id types.ProjectID, ids []types.PolicyID) Event {
	e := New(senderID, KindProjectRemoveTemplates, id)
	e.PolicyIDs = ids
	return e
}

func ProjectAddTemplateLinks(senderID string, id types.ProjectID, ids []types.PolicyID) Event {
	e := New(senderID, KindProjectAddTemplateLinks, id)
	e.PolicyIDs = ids
	return e
}

func ProjectRemoveTemplateLinks(senderID string, id types.ProjectID, ids []types.PolicyID) Event {
	e := New(senderID, KindProjectRemoveTemplateLinks, id)
	e.PolicyIDs = ids
	return e
}
