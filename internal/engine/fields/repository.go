package fields

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) BeginTx() (*sql.Tx, error) {
	return r.db.Begin()
}

const definitionColumns = `
	id, organization_id, project_id, field_name, field_type, is_required,
	display_order, min_length, max_length, pattern, min_value, max_value,
	choices, created_at, created_by, deleted_at
`

func (r *Repository) CreateDefinition(def *Definition) error {
	choicesJSON, _ := json.Marshal(def.Choices)

	_, err := r.db.Exec(`
		INSERT INTO field_definitions (
			id, organization_id, project_id, field_name, field_type, is_required,
			display_order, min_length, max_length, pattern, min_value, max_value,
			choices, created_at, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		def.ID,
		def.OrganizationID,
		def.ProjectID,
		def.Name,
		string(def.Type),
		def.Required,
		def.DisplayOrder,
		def.MinLength,
		def.MaxLength,
		def.Pattern,
		def.MinValue,
		def.MaxValue,
		string(choicesJSON),
		def.CreatedAt,
		def.CreatedBy,
	)
	return mapUniqueErr(err)
}

func (r *Repository) GetDefinition(id string) (*Definition, error) {
	row := r.db.QueryRow(`
		SELECT `+definitionColumns+`
		FROM field_definitions WHERE id = ?
	`, id)
	def, err := scanDefinition(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return def, nil
}

func (r *Repository) UpdateDefinition(def *Definition) error {
	choicesJSON, _ := json.Marshal(def.Choices)

	_, err := r.db.Exec(`
		UPDATE field_definitions SET
			field_name = ?, field_type = ?, is_required = ?, display_order = ?,
			min_length = ?, max_length = ?, pattern = ?, min_value = ?, max_value = ?,
			choices = ?
		WHERE id = ?
	`,
		def.Name,
		string(def.Type),
		def.Required,
		def.DisplayOrder,
		def.MinLength,
		def.MaxLength,
		def.Pattern,
		def.MinValue,
		def.MaxValue,
		string(choicesJSON),
		def.ID,
	)
	return mapUniqueErr(err)
}

// SoftDeleteDefinition retires a definition. Calling it again after the
// first deletion matches zero rows and is a no-op.
func (r *Repository) SoftDeleteDefinition(id string, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE field_definitions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, now, id)
	return err
}

// ListDefinitions returns the definitions active in a scope: all
// organization-wide definitions plus, when the scope names a project, that
// project's definitions. Ordered by display_order then name.
func (r *Repository) ListDefinitions(scope Scope, includeDeleted bool) ([]*Definition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM field_definitions
		WHERE organization_id = ? AND (project_id IS NULL OR project_id = ?)
	`
	projectID := ""
	if scope.ProjectID != nil {
		projectID = *scope.ProjectID
	}
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += " ORDER BY display_order, field_name"

	rows, err := r.db.Query(query, scope.OrganizationID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// ActiveNameExists reports whether an active definition with the name
// exists in any layer the scope overlaps. A project scope overlaps its
// own layer and the organization-wide layer; an organization-wide scope
// overlaps every project in the organization. excludeID lets a rename
// skip the definition being updated.
func (r *Repository) ActiveNameExists(scope Scope, name, excludeID string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM field_definitions
		WHERE organization_id = ? AND field_name = ? AND deleted_at IS NULL AND id != ?
	`
	args := []interface{}{scope.OrganizationID, name, excludeID}
	if scope.ProjectID != nil {
		query += " AND (project_id IS NULL OR project_id = ?)"
		args = append(args, *scope.ProjectID)
	}

	var count int
	err := r.db.QueryRow(query, args...).Scan(&count)
	return count > 0, err
}

// CountValues backs the lock policy: a definition with any stored value is
// locked for type changes.
func (r *Repository) CountValues(definitionID string) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM field_values WHERE field_id = ?
	`, definitionID).Scan(&count)
	return count, err
}

func (r *Repository) UpsertValueTx(tx *sql.Tx, row *ValueRow) error {
	var text sql.NullString
	var number sql.NullFloat64
	if row.Value.Type.usesTextSlot() {
		text = sql.NullString{String: row.Value.Text, Valid: true}
	} else {
		number = sql.NullFloat64{Float64: row.Value.Number, Valid: true}
	}

	_, err := tx.Exec(`
		INSERT INTO field_values (id, entity_id, field_id, value_text, value_number, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id, field_id) DO UPDATE SET
			value_text = excluded.value_text,
			value_number = excluded.value_number,
			updated_at = excluded.updated_at
	`, row.ID, row.EntityID, row.DefinitionID, text, number, row.CreatedAt, row.UpdatedAt)
	return err
}

func (r *Repository) DeleteValueTx(tx *sql.Tx, entityID, definitionID string) error {
	_, err := tx.Exec(`
		DELETE FROM field_values WHERE entity_id = ? AND field_id = ?
	`, entityID, definitionID)
	return err
}

// ValuesByEntity returns an entity's stored values joined with definition
// metadata, skipping values whose definition has been retired.
func (r *Repository) ValuesByEntity(entityID string) ([]*ValueRow, error) {
	rows, err := r.db.Query(`
		SELECT v.id, v.entity_id, v.field_id, d.field_name, d.field_type,
		       v.value_text, v.value_number, v.created_at, v.updated_at
		FROM field_values v
		JOIN field_definitions d ON d.id = v.field_id
		WHERE v.entity_id = ? AND d.deleted_at IS NULL
		ORDER BY d.display_order, d.field_name
	`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []*ValueRow
	for rows.Next() {
		var row ValueRow
		var fieldType string
		var text sql.NullString
		var number sql.NullFloat64

		err := rows.Scan(
			&row.ID,
			&row.EntityID,
			&row.DefinitionID,
			&row.Name,
			&fieldType,
			&text,
			&number,
			&row.CreatedAt,
			&row.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		row.Value = Value{Type: FieldType(fieldType)}
		if text.Valid {
			row.Value.Text = text.String
		}
		if number.Valid {
			row.Value.Number = number.Float64
		}
		values = append(values, &row)
	}
	return values, rows.Err()
}

func (r *Repository) DeleteValuesByEntityTx(tx *sql.Tx, entityID string) error {
	_, err := tx.Exec(`DELETE FROM field_values WHERE entity_id = ?`, entityID)
	return err
}

func scanDefinition(s interface {
	Scan(dest ...interface{}) error
}) (*Definition, error) {
	var def Definition
	var projectID sql.NullString
	var fieldType string
	var minLength, maxLength sql.NullInt64
	var pattern sql.NullString
	var minValue, maxValue sql.NullFloat64
	var choicesRaw []byte
	var deletedAt sql.NullTime

	err := s.Scan(
		&def.ID,
		&def.OrganizationID,
		&projectID,
		&def.Name,
		&fieldType,
		&def.Required,
		&def.DisplayOrder,
		&minLength,
		&maxLength,
		&pattern,
		&minValue,
		&maxValue,
		&choicesRaw,
		&def.CreatedAt,
		&def.CreatedBy,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	def.Type = FieldType(fieldType)
	if projectID.Valid {
		def.ProjectID = &projectID.String
	}
	if minLength.Valid {
		v := int(minLength.Int64)
		def.MinLength = &v
	}
	if maxLength.Valid {
		v := int(maxLength.Int64)
		def.MaxLength = &v
	}
	if pattern.Valid {
		def.Pattern = pattern.String
	}
	if minValue.Valid {
		def.MinValue = &minValue.Float64
	}
	if maxValue.Valid {
		def.MaxValue = &maxValue.Float64
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		def.DeletedAt = &t
	}
	if len(choicesRaw) > 0 {
		json.Unmarshal(choicesRaw, &def.Choices)
	}

	return &def, nil
}

// mapUniqueErr translates a storage-level uniqueness violation into
// ErrDuplicateName so concurrent duplicate creates surface consistently.
func mapUniqueErr(err error) error {
	if err == nil {
		return nil
	}
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrDuplicateName
	}
	return err
}
