package fields

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// CreateDefinitionParams carries everything needed to declare a new field.
// Constraints that do not apply to the declared type are dropped.
type CreateDefinitionParams struct {
	Name         string
	Type         FieldType
	Required     bool
	DisplayOrder int
	MinLength    *int
	MaxLength    *int
	Pattern      string
	MinValue     *float64
	MaxValue     *float64
	Choices      []string
	CreatedBy    string
}

func (s *Service) CreateDefinition(scope Scope, params CreateDefinitionParams) (*Definition, error) {
	if params.Name == "" {
		return nil, &FieldError{Field: "name", Reason: ReasonRequiredMissing, Message: "field name is required"}
	}
	if !params.Type.Valid() {
		return nil, &FieldError{Field: "type", Reason: ReasonTypeMismatch, Message: fmt.Sprintf("unknown field type %q", params.Type)}
	}

	// Values and reads are keyed by field name, so a name must be
	// unambiguous everywhere the scope is visible: an organization-wide
	// definition may not share a name with any project definition in the
	// organization, and a project definition may not shadow an
	// organization-wide one.
	taken, err := s.repo.ActiveNameExists(scope, params.Name, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDuplicateName
	}

	def := &Definition{
		ID:             uuid.NewString(),
		OrganizationID: scope.OrganizationID,
		ProjectID:      scope.ProjectID,
		Name:           params.Name,
		Type:           params.Type,
		Required:       params.Required,
		DisplayOrder:   params.DisplayOrder,
		CreatedAt:      time.Now().UTC(),
		CreatedBy:      params.CreatedBy,
	}
	applyConstraints(def, params.MinLength, params.MaxLength, params.Pattern, params.MinValue, params.MaxValue, params.Choices)

	if err := s.repo.CreateDefinition(def); err != nil {
		return nil, err
	}

	log.Info().
		Str("field_id", def.ID).
		Str("organization_id", def.OrganizationID).
		Str("field_name", def.Name).
		Str("field_type", string(def.Type)).
		Msg("field_definition_created")

	return def, nil
}

// DefinitionPatch applies only the fields present (non-nil). Narrowing
// bounds never re-validates values already stored.
type DefinitionPatch struct {
	Name         *string
	Type         *FieldType
	Required     *bool
	DisplayOrder *int
	MinLength    *int
	MaxLength    *int
	Pattern      *string
	MinValue     *float64
	MaxValue     *float64
	Choices      []string
}

func (s *Service) UpdateDefinition(id string, patch DefinitionPatch) (*Definition, error) {
	def, err := s.repo.GetDefinition(id)
	if err != nil {
		return nil, err
	}
	if def == nil || def.DeletedAt != nil {
		return nil, ErrNotFound
	}

	if patch.Type != nil && *patch.Type != def.Type {
		if !patch.Type.Valid() {
			return nil, &FieldError{Field: "type", Reason: ReasonTypeMismatch, Message: fmt.Sprintf("unknown field type %q", *patch.Type)}
		}
		locked, err := s.Locked(id)
		if err != nil {
			return nil, err
		}
		if locked {
			log.Warn().Str("field_id", id).Msg("field_type_change_rejected_locked")
			return nil, ErrFieldLocked
		}
		def.Type = *patch.Type
	}

	if patch.Name != nil && *patch.Name != def.Name {
		scope := Scope{OrganizationID: def.OrganizationID, ProjectID: def.ProjectID}
		taken, err := s.repo.ActiveNameExists(scope, *patch.Name, def.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrDuplicateName
		}
		def.Name = *patch.Name
	}
	if patch.Required != nil {
		def.Required = *patch.Required
	}
	if patch.DisplayOrder != nil {
		def.DisplayOrder = *patch.DisplayOrder
	}
	if patch.MinLength != nil {
		def.MinLength = patch.MinLength
	}
	if patch.MaxLength != nil {
		def.MaxLength = patch.MaxLength
	}
	if patch.Pattern != nil {
		def.Pattern = *patch.Pattern
	}
	if patch.MinValue != nil {
		def.MinValue = patch.MinValue
	}
	if patch.MaxValue != nil {
		def.MaxValue = patch.MaxValue
	}
	if patch.Choices != nil {
		def.Choices = patch.Choices
	}
	applyConstraints(def, def.MinLength, def.MaxLength, def.Pattern, def.MinValue, def.MaxValue, def.Choices)

	if err := s.repo.UpdateDefinition(def); err != nil {
		return nil, err
	}

	def.Locked, err = s.Locked(id)
	if err != nil {
		return nil, err
	}

	log.Info().Str("field_id", id).Msg("field_definition_updated")
	return def, nil
}

func (s *Service) SoftDeleteDefinition(id string) error {
	def, err := s.repo.GetDefinition(id)
	if err != nil {
		return err
	}
	if def == nil {
		return ErrNotFound
	}

	if err := s.repo.SoftDeleteDefinition(id, time.Now().UTC()); err != nil {
		return err
	}

	log.Info().Str("field_id", id).Msg("field_definition_deleted")
	return nil
}

func (s *Service) GetDefinition(id string) (*Definition, error) {
	def, err := s.repo.GetDefinition(id)
	if err != nil {
		return nil, err
	}
	if def == nil || def.DeletedAt != nil {
		return nil, ErrNotFound
	}
	def.Locked, err = s.Locked(id)
	if err != nil {
		return nil, err
	}
	return def, nil
}

func (s *Service) ListDefinitions(scope Scope, includeDeleted bool) ([]*Definition, error) {
	defs, err := s.repo.ListDefinitions(scope, includeDeleted)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		def.Locked, err = s.Locked(def.ID)
		if err != nil {
			return nil, err
		}
	}
	return defs, nil
}

// Locked reports whether a definition's type may no longer change: true
// once any value references it.
func (s *Service) Locked(definitionID string) (bool, error) {
	count, err := s.repo.CountValues(definitionID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetValuesTx validates and upserts an entity's custom field values inside
// the caller's transaction, so the write is atomic with the owning entity
// mutation. Validation failures are collected across all fields and
// returned as one ValidationErrors batch; nothing is written in that case.
//
// Submission semantics: a key absent from raw leaves any stored value
// unchanged (on create, absence of a required field is a failure); an
// explicit null clears an optional value and is rejected for a required
// one.
func (s *Service) SetValuesTx(tx *sql.Tx, scope Scope, entityID string, raw map[string]any, isCreate bool) error {
	defs, err := s.repo.ListDefinitions(scope, false)
	if err != nil {
		return err
	}

	byName := make(map[string]*Definition, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
	}

	for name := range raw {
		if _, ok := byName[name]; !ok {
			return fmt.Errorf("%w: %q", ErrScopeMismatch, name)
		}
	}

	var errs ValidationErrors
	var upserts []*ValueRow
	var clears []string
	now := time.Now().UTC()

	for _, def := range defs {
		rawValue, present := raw[def.Name]

		if !present {
			if def.Required && isCreate {
				errs = append(errs, &FieldError{
					Field:   def.Name,
					Reason:  ReasonRequiredMissing,
					Message: "required field is missing",
				})
			}
			continue
		}

		if rawValue == nil {
			if def.Required {
				errs = append(errs, &FieldError{
					Field:   def.Name,
					Reason:  ReasonRequiredMissing,
					Message: "required field cannot be cleared",
				})
				continue
			}
			clears = append(clears, def.ID)
			continue
		}

		value, ferr := Validate(def, rawValue)
		if ferr != nil {
			errs = append(errs, ferr)
			continue
		}

		upserts = append(upserts, &ValueRow{
			ID:           uuid.NewString(),
			EntityID:     entityID,
			DefinitionID: def.ID,
			Name:         def.Name,
			Value:        value,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	if len(errs) > 0 {
		return errs
	}

	for _, row := range upserts {
		if err := s.repo.UpsertValueTx(tx, row); err != nil {
			return err
		}
	}
	for _, definitionID := range clears {
		if err := s.repo.DeleteValueTx(tx, entityID, definitionID); err != nil {
			return err
		}
	}

	return nil
}

// GetValues returns an entity's values keyed by field name, each tagged
// with the field type for display.
func (s *Service) GetValues(entityID string) (map[string]TypedValue, error) {
	rows, err := s.repo.ValuesByEntity(entityID)
	if err != nil {
		return nil, err
	}

	values := make(map[string]TypedValue, len(rows))
	for _, row := range rows {
		values[row.Name] = TypedValue{Type: row.Value.Type, Value: row.Value.Native()}
	}
	return values, nil
}

// applyConstraints keeps only the constraints meaningful for the declared
// type; the rest are cleared rather than stored and ignored.
func applyConstraints(def *Definition, minLen, maxLen *int, pattern string, minVal, maxVal *float64, choices []string) {
	def.MinLength, def.MaxLength, def.Pattern = nil, nil, ""
	def.MinValue, def.MaxValue = nil, nil
	def.Choices = nil

	switch def.Type {
	case TypeShortText, TypeLongText:
		def.MinLength = minLen
		def.MaxLength = maxLen
		def.Pattern = pattern
	case TypeNumber:
		def.MinValue = minVal
		def.MaxValue = maxVal
	case TypeChoice:
		def.Choices = choices
	case TypeBoolean, TypeDate:
	}
}
