package records

import (
	"database/sql"
	"time"

	"redbud/internal/platform/models"
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

// Projects

func (r *Repository) CreateProject(p *models.Project) error {
	_, err := r.db.Exec(`
		INSERT INTO projects (id, organization_id, title, description, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.OrganizationID, p.Title, p.Description, p.CreatedAt, p.CreatedBy)
	return err
}

func (r *Repository) GetProject(id string) (*models.Project, error) {
	p := &models.Project{}
	var deletedAt sql.NullTime
	err := r.db.QueryRow(`
		SELECT id, organization_id, title, description, created_at, created_by, deleted_at
		FROM projects WHERE id = ?
	`, id).Scan(&p.ID, &p.OrganizationID, &p.Title, &p.Description, &p.CreatedAt, &p.CreatedBy, &deletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		p.DeletedAt = &t
	}
	return p, nil
}

func (r *Repository) UpdateProject(p *models.Project) error {
	_, err := r.db.Exec(`
		UPDATE projects SET title = ?, description = ? WHERE id = ?
	`, p.Title, p.Description, p.ID)
	return err
}

func (r *Repository) SoftDeleteProject(id string, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE projects SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, now, id)
	return err
}

func (r *Repository) ListProjects(orgID string) ([]*models.Project, error) {
	rows, err := r.db.Query(`
		SELECT id, organization_id, title, description, created_at, created_by, deleted_at
		FROM projects WHERE organization_id = ? AND deleted_at IS NULL
		ORDER BY title
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p := &models.Project{}
		var deletedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Title, &p.Description, &p.CreatedAt, &p.CreatedBy, &deletedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Species

func (r *Repository) CreateSpecies(sp *models.Species) error {
	_, err := r.db.Exec(`
		INSERT INTO species (id, organization_id, genus, species_name, subspecies, variety, cultivar, common_name, description, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sp.ID, sp.OrganizationID, sp.Genus, sp.SpeciesName, sp.Subspecies, sp.Variety, sp.Cultivar, sp.CommonName, sp.Description, sp.CreatedAt, sp.CreatedBy)
	return err
}

func (r *Repository) GetSpecies(id string) (*models.Species, error) {
	sp := &models.Species{}
	var deletedAt sql.NullTime
	err := r.db.QueryRow(`
		SELECT id, organization_id, genus, species_name, subspecies, variety, cultivar, common_name, description, created_at, created_by, deleted_at
		FROM species WHERE id = ?
	`, id).Scan(&sp.ID, &sp.OrganizationID, &sp.Genus, &sp.SpeciesName, &sp.Subspecies, &sp.Variety, &sp.Cultivar, &sp.CommonName, &sp.Description, &sp.CreatedAt, &sp.CreatedBy, &deletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		sp.DeletedAt = &t
	}
	return sp, nil
}

func (r *Repository) UpdateSpecies(sp *models.Species) error {
	_, err := r.db.Exec(`
		UPDATE species SET genus = ?, species_name = ?, subspecies = ?, variety = ?, cultivar = ?, common_name = ?, description = ?
		WHERE id = ?
	`, sp.Genus, sp.SpeciesName, sp.Subspecies, sp.Variety, sp.Cultivar, sp.CommonName, sp.Description, sp.ID)
	return err
}

func (r *Repository) SoftDeleteSpecies(id string, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE species SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, now, id)
	return err
}

func (r *Repository) ListSpecies(orgID string) ([]*models.Species, error) {
	rows, err := r.db.Query(`
		SELECT id, organization_id, genus, species_name, subspecies, variety, cultivar, common_name, description, created_at, created_by, deleted_at
		FROM species WHERE organization_id = ? AND deleted_at IS NULL
		ORDER BY genus, species_name
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.Species
	for rows.Next() {
		sp := &models.Species{}
		var deletedAt sql.NullTime
		err := rows.Scan(&sp.ID, &sp.OrganizationID, &sp.Genus, &sp.SpeciesName, &sp.Subspecies, &sp.Variety, &sp.Cultivar, &sp.CommonName, &sp.Description, &sp.CreatedAt, &sp.CreatedBy, &deletedAt)
		if err != nil {
			return nil, err
		}
		list = append(list, sp)
	}
	return list, rows.Err()
}

// Accessions

func (r *Repository) CreateAccessionTx(tx *sql.Tx, a *models.Accession) error {
	_, err := tx.Exec(`
		INSERT INTO accessions (id, organization_id, project_id, code, description, species_id, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.OrganizationID, a.ProjectID, a.Code, a.Description, a.SpeciesID, a.CreatedAt, a.CreatedBy)
	return err
}

func (r *Repository) UpdateAccessionTx(tx *sql.Tx, a *models.Accession) error {
	_, err := tx.Exec(`
		UPDATE accessions SET code = ?, description = ?, species_id = ? WHERE id = ?
	`, a.Code, a.Description, a.SpeciesID, a.ID)
	return err
}

func (r *Repository) GetAccession(id string) (*models.Accession, error) {
	a := &models.Accession{}
	var projectID, speciesID sql.NullString
	var deletedAt sql.NullTime
	err := r.db.QueryRow(`
		SELECT id, organization_id, project_id, code, description, species_id, created_at, created_by, deleted_at
		FROM accessions WHERE id = ?
	`, id).Scan(&a.ID, &a.OrganizationID, &projectID, &a.Code, &a.Description, &speciesID, &a.CreatedAt, &a.CreatedBy, &deletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if projectID.Valid {
		a.ProjectID = &projectID.String
	}
	if speciesID.Valid {
		a.SpeciesID = &speciesID.String
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		a.DeletedAt = &t
	}
	return a, nil
}

func (r *Repository) SoftDeleteAccession(id string, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE accessions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, now, id)
	return err
}

func (r *Repository) ListAccessions(orgID string, projectID *string) ([]*models.Accession, error) {
	query := `
		SELECT id, organization_id, project_id, code, description, species_id, created_at, created_by, deleted_at
		FROM accessions WHERE organization_id = ? AND deleted_at IS NULL
	`
	args := []any{orgID}
	if projectID != nil {
		query += " AND project_id = ?"
		args = append(args, *projectID)
	}
	query += " ORDER BY code"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.Accession
	for rows.Next() {
		a := &models.Accession{}
		var pid, sid sql.NullString
		var deletedAt sql.NullTime
		err := rows.Scan(&a.ID, &a.OrganizationID, &pid, &a.Code, &a.Description, &sid, &a.CreatedAt, &a.CreatedBy, &deletedAt)
		if err != nil {
			return nil, err
		}
		if pid.Valid {
			a.ProjectID = &pid.String
		}
		if sid.Valid {
			a.SpeciesID = &sid.String
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// Plants

func (r *Repository) CreatePlantTx(tx *sql.Tx, p *models.Plant) error {
	_, err := tx.Exec(`
		INSERT INTO plants (id, accession_id, code, created_at, created_by)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.AccessionID, p.Code, p.CreatedAt, p.CreatedBy)
	return err
}

func (r *Repository) UpdatePlantTx(tx *sql.Tx, p *models.Plant) error {
	_, err := tx.Exec(`UPDATE plants SET code = ? WHERE id = ?`, p.Code, p.ID)
	return err
}

func (r *Repository) GetPlant(id string) (*models.Plant, error) {
	p := &models.Plant{}
	var deletedAt sql.NullTime
	err := r.db.QueryRow(`
		SELECT id, accession_id, code, created_at, created_by, deleted_at
		FROM plants WHERE id = ?
	`, id).Scan(&p.ID, &p.AccessionID, &p.Code, &p.CreatedAt, &p.CreatedBy, &deletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		p.DeletedAt = &t
	}
	return p, nil
}

func (r *Repository) SoftDeletePlant(id string, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE plants SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, now, id)
	return err
}

func (r *Repository) ListPlants(accessionID string) ([]*models.Plant, error) {
	rows, err := r.db.Query(`
		SELECT id, accession_id, code, created_at, created_by, deleted_at
		FROM plants WHERE accession_id = ? AND deleted_at IS NULL
		ORDER BY code
	`, accessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.Plant
	for rows.Next() {
		p := &models.Plant{}
		var deletedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.AccessionID, &p.Code, &p.CreatedAt, &p.CreatedBy, &deletedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Event types

func (r *Repository) CreateEventType(et *models.EventType) error {
	_, err := r.db.Exec(`
		INSERT INTO event_types (id, organization_id, name, description, display_order, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, et.ID, et.OrganizationID, et.Name, et.Description, et.DisplayOrder, et.CreatedAt, et.CreatedBy)
	return err
}

func (r *Repository) GetEventType(id string) (*models.EventType, error) {
	et := &models.EventType{}
	var deletedAt sql.NullTime
	err := r.db.QueryRow(`
		SELECT id, organization_id, name, description, display_order, created_at, created_by, deleted_at
		FROM event_types WHERE id = ?
	`, id).Scan(&et.ID, &et.OrganizationID, &et.Name, &et.Description, &et.DisplayOrder, &et.CreatedAt, &et.CreatedBy, &deletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		et.DeletedAt = &t
	}
	return et, nil
}

func (r *Repository) SoftDeleteEventType(id string, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE event_types SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, now, id)
	return err
}

func (r *Repository) ListEventTypes(orgID string) ([]*models.EventType, error) {
	rows, err := r.db.Query(`
		SELECT id, organization_id, name, description, display_order, created_at, created_by, deleted_at
		FROM event_types WHERE organization_id = ? AND deleted_at IS NULL
		ORDER BY display_order, name
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.EventType
	for rows.Next() {
		et := &models.EventType{}
		var deletedAt sql.NullTime
		err := rows.Scan(&et.ID, &et.OrganizationID, &et.Name, &et.Description, &et.DisplayOrder, &et.CreatedAt, &et.CreatedBy, &deletedAt)
		if err != nil {
			return nil, err
		}
		list = append(list, et)
	}
	return list, rows.Err()
}

// Plant events

func (r *Repository) CreatePlantEventTx(tx *sql.Tx, e *models.PlantEvent) error {
	_, err := tx.Exec(`
		INSERT INTO plant_events (id, plant_id, event_type_id, event_date, notes, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.PlantID, e.EventTypeID, e.EventDate, e.Notes, e.CreatedAt, e.CreatedBy)
	return err
}

func (r *Repository) GetPlantEvent(id string) (*models.PlantEvent, error) {
	e := &models.PlantEvent{}
	err := r.db.QueryRow(`
		SELECT id, plant_id, event_type_id, event_date, notes, created_at, created_by
		FROM plant_events WHERE id = ?
	`, id).Scan(&e.ID, &e.PlantID, &e.EventTypeID, &e.EventDate, &e.Notes, &e.CreatedAt, &e.CreatedBy)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func (r *Repository) ListPlantEvents(plantID string) ([]*models.PlantEvent, error) {
	rows, err := r.db.Query(`
		SELECT id, plant_id, event_type_id, event_date, notes, created_at, created_by
		FROM plant_events WHERE plant_id = ?
		ORDER BY event_date DESC
	`, plantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.PlantEvent
	for rows.Next() {
		e := &models.PlantEvent{}
		if err := rows.Scan(&e.ID, &e.PlantID, &e.EventTypeID, &e.EventDate, &e.Notes, &e.CreatedAt, &e.CreatedBy); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
