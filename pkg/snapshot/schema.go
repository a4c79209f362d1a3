package snapshot

import (
	"fmt"

	cedar "github.com/cedar-policy/cedar-go"
	cedarschema "github.com/cedar-policy/cedar-go/x/exp/schema"

	"github.com/stratusmedia/cedrus/pkg/types"
)

// parseSchema parses a Cedar JSON schema document with cedar-go's
// experimental schema introspection package, which models declared entity
// types, attributes, and actions independent of any one authorization
// request. Full type-checking of policy bodies against a schema requires
// Cedar's own validator; this package checks only the structural fact a
// write path can enforce cheaply: that an entity's declared type exists
// in the schema.
func parseSchema(document []byte) (*cedarschema.Schema, error) {
	sch := &cedarschema.Schema{}
	if err := sch.UnmarshalJSON(document); err != nil {
		return nil, fmt.Errorf("parse schema document: %w", err)
	}
	return sch, nil
}

// validateEntitiesAgainstSchema checks that every entity's type is declared
// by the schema; Compile runs it in both modes and treats its findings as
// errors in strict mode and as diagnostics in lenient mode. It never rejects an entity solely
// because the schema doesn't model its attributes in detail: Cedar's own
// validator is the authority on attribute-level type checking, and this
// package does not reimplement it.
func validateEntitiesAgainstSchema(sch *cedarschema.Schema, entities map[types.EntityUID]types.Entity) []string {
	var diagnostics []string
	for uid := range entities {
		if _, ok := sch.EntityTypeInfoFor(cedar.EntityType(uid.Type)); !ok {
			diagnostics = append(diagnostics, fmt.Sprintf("entity %s has undeclared type %q", uid, uid.Type))
		}
	}
	return diagnostics
}
