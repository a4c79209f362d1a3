package types

// SchemaMode controls how strictly a project's schema is enforced when
// compiling a snapshot.
type SchemaMode string

const (
	// SchemaModeStrict fails compilation when the schema document does not
	// parse or an entity's type is not declared by it. Actions, policies,
	// and entity attributes are not checked against the schema.
	SchemaModeStrict SchemaMode = "strict"
	// SchemaModeLenient validates what the schema can check but never
	// fails compilation solely because the schema is absent or partial.
	SchemaModeLenient SchemaMode = "lenient"
)

// Schema is a project's Cedar schema document, stored as the raw JSON
// Cedar schema format understood by the validator.
type Schema struct {
	Document []byte
	Mode     SchemaMode
}

// IsEmpty reports whether no schema document has been set.
func (s Schema) IsEmpty() bool {
	return len(s.Document) == 0
}

// Policy is a static Cedar policy, stored as Cedar source text so it can
// be handed directly to the policy-set parser.
type Policy struct {
	ID   PolicyID
	Text string
}

// Template is a Cedar policy template: source text containing the
// ?principal and/or ?resource slot tokens in its scope clause.
type Template struct {
	ID   PolicyID
	Text string
}

// TemplateLink binds concrete entity uids to a template's slots, producing
// one enforceable policy.
type TemplateLink struct {
	TemplateID PolicyID
	LinkID     PolicyID
	Values     map[SlotID]EntityUID
}
