// Package snapshot compiles one project's schema, entities, policies,
// templates, and template links into a single Cedar policy set and
// entity map ready for authorization.
package snapshot

import (
	"github.com/cedar-policy/cedar-go"

	"github.com/stratusmedia/cedrus/pkg/types"
)

// CedarEntityUID converts a project-local EntityUID into cedar-go's form.
// Exported so the evaluator can build ad hoc Cedar requests without
// duplicating this conversion.
func CedarEntityUID(u types.EntityUID) cedar.EntityUID {
	return cedar.NewEntityUID(cedar.EntityType(u.Type), cedar.String(u.ID))
}

// CedarValue converts an AttrValue into the cedar.Value cedar-go expects.
func CedarValue(v types.AttrValue) cedar.Value {
	switch val := v.(type) {
	case types.StringValue:
		return cedar.String(val)
	case types.LongValue:
		return cedar.Long(val)
	case types.BoolValue:
		return cedar.Boolean(val)
	case types.EntityValue:
		return CedarEntityUID(types.EntityUID(val))
	case types.SetValue:
		elems := make([]cedar.Value, len(val))
		for i, e := range val {
			elems[i] = CedarValue(e)
		}
		return cedar.NewSet(elems...)
	case types.RecordValue:
		m := cedar.RecordMap{}
		for k, e := range val {
			m[cedar.String(k)] = CedarValue(e)
		}
		return cedar.NewRecord(m)
	default:
		return cedar.String("")
	}
}

// CedarEntity converts a types.Entity into the form cedar.Authorize needs.
func CedarEntity(e types.Entity) cedar.Entity {
	parents := make([]cedar.EntityUID, 0, len(e.Parents))
	for p := range e.Parents {
		parents = append(parents, CedarEntityUID(p))
	}
	attrs := cedar.RecordMap{}
	for k, v := range e.Attrs {
		attrs[cedar.String(k)] = CedarValue(v)
	}
	tags := cedar.RecordMap{}
	for k, v := range e.Tags {
		tags[cedar.String(k)] = CedarValue(v)
	}
	return cedar.Entity{
		UID:        CedarEntityUID(e.UID),
		Parents:    cedar.NewEntityUIDSet(parents...),
		Attributes: cedar.NewRecord(attrs),
		Tags:       cedar.NewRecord(tags),
	}
}

// cedarEntityMap converts a project's full entity graph into a cedar.EntityMap.
func cedarEntityMap(entities map[types.EntityUID]types.Entity) cedar.EntityMap {
	out := cedar.EntityMap{}
	for uid, e := range entities {
		out[CedarEntityUID(uid)] = CedarEntity(e)
	}
	return out
}
