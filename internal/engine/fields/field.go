package fields

import "time"

// FieldType is the closed set of declared types for a custom field.
// Switches over it must be exhaustive; adding a type is a change that
// must be handled in the validator, the store and the API layer.
type FieldType string

const (
	TypeShortText FieldType = "short_text"
	TypeLongText  FieldType = "long_text"
	TypeNumber    FieldType = "number"
	TypeBoolean   FieldType = "boolean"
	TypeDate      FieldType = "date"
	TypeChoice    FieldType = "choice"
)

func (t FieldType) Valid() bool {
	switch t {
	case TypeShortText, TypeLongText, TypeNumber, TypeBoolean, TypeDate, TypeChoice:
		return true
	}
	return false
}

// shortTextMaxLength caps short_text fields even when no explicit
// max_length is configured.
const shortTextMaxLength = 255

// Scope is the boundary within which definition names are unique.
// ProjectID nil means the definition is organization-wide and applies to
// every entity in the organization; a set ProjectID narrows it to one
// project.
type Scope struct {
	OrganizationID string
	ProjectID      *string
}

// Definition is the schema of one custom field. Constraints irrelevant to
// the declared type are left zero. Once any value references a definition
// its type is locked (see Service.Locked).
type Definition struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	ProjectID      *string    `json:"project_id,omitempty"`
	Name           string     `json:"name"`
	Type           FieldType  `json:"type"`
	Required       bool       `json:"required"`
	DisplayOrder   int        `json:"display_order"`
	MinLength      *int       `json:"min_length,omitempty"`
	MaxLength      *int       `json:"max_length,omitempty"`
	Pattern        string     `json:"pattern,omitempty"`
	MinValue       *float64   `json:"min_value,omitempty"`
	MaxValue       *float64   `json:"max_value,omitempty"`
	Choices        []string   `json:"choices,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CreatedBy      string     `json:"created_by"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`

	// Locked is derived, not stored: true once any value references this
	// definition, after which the type cannot change.
	Locked bool `json:"locked"`
}

func (d *Definition) Scope() Scope {
	return Scope{OrganizationID: d.OrganizationID, ProjectID: d.ProjectID}
}

// Value is the tagged union stored for a field: exactly one slot is used,
// keyed by Type. Text kinds (short_text, long_text, choice) and dates use
// the text slot, with dates normalized to RFC3339 UTC. Numbers use the
// number slot; booleans use the number slot as 0/1.
type Value struct {
	Type   FieldType
	Text   string
	Number float64
}

// Native returns the JSON-friendly representation of the value.
func (v Value) Native() any {
	switch v.Type {
	case TypeNumber:
		return v.Number
	case TypeBoolean:
		return v.Number != 0
	case TypeShortText, TypeLongText, TypeDate, TypeChoice:
		return v.Text
	}
	return nil
}

// usesTextSlot reports which storage slot the type writes.
func (t FieldType) usesTextSlot() bool {
	switch t {
	case TypeShortText, TypeLongText, TypeDate, TypeChoice:
		return true
	case TypeNumber, TypeBoolean:
		return false
	}
	return false
}

// ValueRow is one stored value joined with its definition metadata.
type ValueRow struct {
	ID           string    `json:"id"`
	EntityID     string    `json:"entity_id"`
	DefinitionID string    `json:"definition_id"`
	Name         string    `json:"name"`
	Value        Value     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TypedValue is the display shape for one field on an entity: the type tag
// lets the frontend pick an input widget without inspecting the value.
type TypedValue struct {
	Type  FieldType `json:"type"`
	Value any       `json:"value"`
}
