package fields

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateName means an active definition with the same name already
	// exists in the scope. The schema enforces this with a partial unique
	// index, so concurrent creates cannot both slip through.
	ErrDuplicateName = errors.New("field name already exists in scope")

	// ErrFieldLocked means the definition has stored values and its type can
	// no longer change.
	ErrFieldLocked = errors.New("field type is locked")

	// ErrScopeMismatch means a submitted value names a definition that does
	// not belong to the entity's scope.
	ErrScopeMismatch = errors.New("field not defined in scope")

	ErrNotFound = errors.New("field definition not found")
)

type Reason string

const (
	ReasonTypeMismatch    Reason = "type_mismatch"
	ReasonOutOfRange      Reason = "out_of_range"
	ReasonTooLong         Reason = "too_long"
	ReasonPatternMismatch Reason = "pattern_mismatch"
	ReasonRequiredMissing Reason = "required_missing"
	ReasonInvalidChoice   Reason = "invalid_choice"
)

// FieldError is one validation failure, scoped to a field name with a
// machine-readable reason code.
type FieldError struct {
	Field   string `json:"field"`
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every failure from one submission so a caller
// can surface all problems in a single round trip.
type ValidationErrors []*FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}
