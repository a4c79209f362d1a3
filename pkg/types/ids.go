package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ProjectID identifies a project. The nil UUID names the admin project;
// every other project is assigned a v7 (time-ordered) UUID at creation.
type ProjectID uuid.UUID

// AdminProjectID is the distinguished project that governs access to
// Cedrus itself.
var AdminProjectID = ProjectID(uuid.Nil)

// NewProjectID generates a fresh v7 project id.
func NewProjectID() (ProjectID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return ProjectID{}, fmt.Errorf("generate project id: %w", err)
	}
	return ProjectID(id), nil
}

// IsAdmin reports whether id names the admin project.
func (id ProjectID) IsAdmin() bool {
	return id == AdminProjectID
}

func (id ProjectID) String() string {
	return uuid.UUID(id).String()
}

// ParseProjectID parses a canonical UUID string into a ProjectID.
func ParseProjectID(s string) (ProjectID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ProjectID{}, fmt.Errorf("parse project id %q: %w", s, err)
	}
	return ProjectID(u), nil
}

// EntityUID identifies a Cedar entity within a project: a Cedar-qualified
// type name (e.g. "MyApp::User") plus an opaque id.
type EntityUID struct {
	Type string
	ID   string
}

// NewEntityUID builds an EntityUID.
func NewEntityUID(entityType, id string) EntityUID {
	return EntityUID{Type: entityType, ID: id}
}

func (u EntityUID) String() string {
	return fmt.Sprintf(`%s::"%s"`, u.Type, strings.ReplaceAll(u.ID, `"`, `\"`))
}

// IsZero reports whether u is the zero value (used to detect "no resource"
// slots, etc).
func (u EntityUID) IsZero() bool {
	return u.Type == "" && u.ID == ""
}

// PolicyID uniquely identifies a static policy, template, or template link
// within a project.
type PolicyID string

// SlotID names a template slot.
type SlotID string

const (
	SlotPrincipal SlotID = "?principal"
	SlotResource  SlotID = "?resource"
)
