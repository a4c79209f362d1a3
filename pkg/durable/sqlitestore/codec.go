package sqlitestore

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/stratusmedia/cedrus/pkg/types"
)

// The AttrValue sum type has no natural CBOR encoding of its own (it's an
// interface), so every value is round-tripped through this tagged wire
// form with stable integer field numbers, the same way the rest of this
// codebase keeps wire encodings stable across releases.
type wireValueKind uint8

const (
	wireKindString wireValueKind = 1
	wireKindLong   wireValueKind = 2
	wireKindBool   wireValueKind = 3
	wireKindEntity wireValueKind = 4
	wireKindSet    wireValueKind = 5
	wireKindRecord wireValueKind = 6
)

type wireValue struct {
	Kind       wireValueKind        `cbor:"0,keyasint"`
	Str        string               `cbor:"1,keyasint,omitempty"`
	Long       int64                `cbor:"2,keyasint,omitempty"`
	Bool       bool                 `cbor:"3,keyasint,omitempty"`
	EntityType string               `cbor:"4,keyasint,omitempty"`
	EntityID   string               `cbor:"5,keyasint,omitempty"`
	Set        []wireValue          `cbor:"6,keyasint,omitempty"`
	Record     map[string]wireValue `cbor:"7,keyasint,omitempty"`
}

func toWireValue(v types.AttrValue) wireValue {
	switch val := v.(type) {
	case types.StringValue:
		return wireValue{Kind: wireKindString, Str: string(val)}
	case types.LongValue:
		return wireValue{Kind: wireKindLong, Long: int64(val)}
	case types.BoolValue:
		return wireValue{Kind: wireKindBool, Bool: bool(val)}
	case types.EntityValue:
		return wireValue{Kind: wireKindEntity, EntityType: val.Type, EntityID: val.ID}
	case types.SetValue:
		out := make([]wireValue, len(val))
		for i, e := range val {
			out[i] = toWireValue(e)
		}
		return wireValue{Kind: wireKindSet, Set: out}
	case types.RecordValue:
		out := make(map[string]wireValue, len(val))
		for k, e := range val {
			out[k] = toWireValue(e)
		}
		return wireValue{Kind: wireKindRecord, Record: out}
	default:
		panic(fmt.Sprintf("sqlitestore: unknown AttrValue kind %T", v))
	}
}

func fromWireValue(w wireValue) types.AttrValue {
	switch w.Kind {
	case wireKindString:
		return types.StringValue(w.Str)
	case wireKindLong:
		return types.LongValue(w.Long)
	case wireKindBool:
		return types.BoolValue(w.Bool)
	case wireKindEntity:
		return types.EntityValue(types.NewEntityUID(w.EntityType, w.EntityID))
	case wireKindSet:
		out := make(types.SetValue, len(w.Set))
		for i, e := range w.Set {
			out[i] = fromWireValue(e)
		}
		return out
	case wireKindRecord:
		out := make(types.RecordValue, len(w.Record))
		for k, e := range w.Record {
			out[k] = fromWireValue(e)
		}
		return out
	default:
		return types.StringValue("")
	}
}

type wireEntity struct {
	Type    string               `cbor:"0,keyasint"`
	ID      string               `cbor:"1,keyasint"`
	Attrs   map[string]wireValue `cbor:"2,keyasint,omitempty"`
	Parents []wireEntityUID      `cbor:"3,keyasint,omitempty"`
	Tags    map[string]wireValue `cbor:"4,keyasint,omitempty"`
}

type wireEntityUID struct {
	Type string `cbor:"0,keyasint"`
	ID   string `cbor:"1,keyasint"`
}

func encodeEntity(e types.Entity) ([]byte, error) {
	w := wireEntity{
		Type:    e.UID.Type,
		ID:      e.UID.ID,
		Attrs:   make(map[string]wireValue, len(e.Attrs)),
		Parents: make([]wireEntityUID, 0, len(e.Parents)),
		Tags:    make(map[string]wireValue, len(e.Tags)),
	}
	for k, v := range e.Attrs {
		w.Attrs[k] = toWireValue(v)
	}
	for p := range e.Parents {
		w.Parents = append(w.Parents, wireEntityUID{Type: p.Type, ID: p.ID})
	}
	for k, v := range e.Tags {
		w.Tags[k] = toWireValue(v)
	}
	return cbor.Marshal(w)
}

func decodeEntity(data []byte) (types.Entity, error) {
	var w wireEntity
	if err := cbor.Unmarshal(data, &w); err != nil {
		return types.Entity{}, err
	}
	e := types.NewEntity(types.NewEntityUID(w.Type, w.ID))
	for k, v := range w.Attrs {
		e.Attrs[k] = fromWireValue(v)
	}
	for _, p := range w.Parents {
		e.Parents[types.NewEntityUID(p.Type, p.ID)] = struct{}{}
	}
	for k, v := range w.Tags {
		e.Tags[k] = fromWireValue(v)
	}
	return e, nil
}

type wireIdentitySource struct {
	PrincipalEntityType string         `cbor:"0,keyasint"`
	Raw                 map[string]any `cbor:"1,keyasint,omitempty"`
}

func encodeIdentitySource(src types.IdentitySourceConfig) ([]byte, error) {
	return cbor.Marshal(wireIdentitySource{PrincipalEntityType: src.PrincipalEntityType, Raw: src.Raw})
}

func decodeIdentitySource(data []byte) (types.IdentitySourceConfig, error) {
	var w wireIdentitySource
	if err := cbor.Unmarshal(data, &w); err != nil {
		return types.IdentitySourceConfig{}, err
	}
	return types.IdentitySourceConfig{PrincipalEntityType: w.PrincipalEntityType, Raw: w.Raw}, nil
}

type wireTemplateLink struct {
	TemplateID string            `cbor:"0,keyasint"`
	LinkID     string            `cbor:"1,keyasint"`
	ValueTypes map[string]string `cbor:"3,keyasint,omitempty"`
	ValueIDs   map[string]string `cbor:"4,keyasint,omitempty"`
}

func encodeTemplateLink(l types.TemplateLink) ([]byte, error) {
	w := wireTemplateLink{
		TemplateID: string(l.TemplateID),
		LinkID:     string(l.LinkID),
		ValueTypes: make(map[string]string, len(l.Values)),
		ValueIDs:   make(map[string]string, len(l.Values)),
	}
	for slot, uid := range l.Values {
		w.ValueTypes[string(slot)] = uid.Type
		w.ValueIDs[string(slot)] = uid.ID
	}
	return cbor.Marshal(w)
}

func decodeTemplateLink(data []byte) (types.TemplateLink, error) {
	var w wireTemplateLink
	if err := cbor.Unmarshal(data, &w); err != nil {
		return types.TemplateLink{}, err
	}
	l := types.TemplateLink{
		TemplateID: types.PolicyID(w.TemplateID),
		LinkID:     types.PolicyID(w.LinkID),
		Values:     make(map[types.SlotID]types.EntityUID, len(w.ValueTypes)),
	}
	for slot, t := range w.ValueTypes {
		l.Values[types.SlotID(slot)] = types.NewEntityUID(t, w.ValueIDs[slot])
	}
	return l, nil
}
