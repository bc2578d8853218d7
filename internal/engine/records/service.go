package records

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"redbud/internal/engine/fields"
	"redbud/internal/engine/permissions"
	"redbud/internal/platform/models"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrMissingTitle = errors.New("title is required")
	ErrMissingCode  = errors.New("code is required")
	ErrMissingGenus = errors.New("genus is required")
	ErrMissingName  = errors.New("name is required")
)

// Service owns the record hierarchy: projects group accessions, accessions
// group plants, plants accumulate events. Custom field values ride along
// with accessions, plants and events inside the same transaction as the
// row itself.
//
// Cross-organization references resolve to ErrNotFound rather than a
// permission error, so probing cannot distinguish "absent" from "foreign".
type Service struct {
	repo   *Repository
	fields *fields.Service
	perms  *permissions.Evaluator
}

func NewService(repo *Repository, fieldsSvc *fields.Service, perms *permissions.Evaluator) *Service {
	return &Service{repo: repo, fields: fieldsSvc, perms: perms}
}

// Projects

func (s *Service) CreateProject(caller *models.User, orgID, title, description string) (*models.Project, error) {
	if err := s.perms.RequireManage(caller, orgID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, ErrMissingTitle
	}

	p := &models.Project{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Title:          strings.TrimSpace(title),
		Description:    description,
		CreatedAt:      time.Now().UTC(),
		CreatedBy:      caller.ID,
	}
	if err := s.repo.CreateProject(p); err != nil {
		return nil, err
	}

	log.Info().Str("project_id", p.ID).Str("organization_id", orgID).Msg("project_created")
	return p, nil
}

func (s *Service) GetProject(caller *models.User, id string) (*models.Project, error) {
	p, err := s.repo.GetProject(id)
	if err != nil {
		return nil, err
	}
	if p == nil || p.DeletedAt != nil {
		return nil, ErrNotFound
	}
	if err := s.perms.RequireMember(caller, p.OrganizationID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdateProject(caller *models.User, id, title, description string) (*models.Project, error) {
	p, err := s.repo.GetProject(id)
	if err != nil {
		return nil, err
	}
	if p == nil || p.DeletedAt != nil {
		return nil, ErrNotFound
	}
	if err := s.perms.RequireManage(caller, p.OrganizationID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, ErrMissingTitle
	}

	p.Title = strings.TrimSpace(title)
	p.Description = description
	if err := s.repo.UpdateProject(p); err != nil {
		return nil, err
	}
	return p, nil
}

// SoftDeleteProject hides the project. Accessions under it survive and
// keep their project reference; project-scoped field definitions stay
// resolvable for them.
func (s *Service) SoftDeleteProject(caller *models.User, id string) error {
	p, err := s.repo.GetProject(id)
	if err != nil {
		return err
	}
	if p == nil || p.DeletedAt != nil {
		return ErrNotFound
	}
	if err := s.perms.RequireManage(caller, p.OrganizationID); err != nil {
		return err
	}
	if err := s.repo.SoftDeleteProject(id, time.Now().UTC()); err != nil {
		return err
	}
	log.Info().Str("project_id", id).Msg("project_deleted")
	return nil
}

func (s *Service) ListProjects(caller *models.User, orgID string) ([]*models.Project, error) {
	if err := s.perms.RequireMember(caller, orgID); err != nil {
		return nil, err
	}
	return s.repo.ListProjects(orgID)
}

// Species

type SpeciesParams struct {
	Genus       string `json:"genus"`
	SpeciesName string `json:"species_name"`
	Subspecies  string `json:"subspecies"`
	Variety     string `json:"variety"`
	Cultivar    string `json:"cultivar"`
	CommonName  string `json:"common_name"`
	Description string `json:"description"`
}

func (s *Service) CreateSpecies(caller *models.User, orgID string, params SpeciesParams) (*models.Species, error) {
	if err := s.perms.RequireMember(caller, orgID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Genus) == "" {
		return nil, ErrMissingGenus
	}

	sp := &models.Species{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Genus:          strings.TrimSpace(params.Genus),
		SpeciesName:    params.SpeciesName,
		Subspecies:     params.Subspecies,
		Variety:        params.Variety,
		Cultivar:       params.Cultivar,
		CommonName:     params.CommonName,
		Description:    params.Description,
		CreatedAt:      time.Now().UTC(),
		CreatedBy:      caller.ID,
	}
	if err := s.repo.CreateSpecies(sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Service) GetSpecies(caller *models.User, id string) (*models.Species, error) {
	sp, err := s.repo.GetSpecies(id)
	if err != nil {
		return nil, err
	}
	if sp == nil || sp.DeletedAt != nil {
		return nil, ErrNotFound
	}
	if err := s.perms.RequireMember(caller, sp.OrganizationID); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Service) UpdateSpecies(caller *models.User, id string, params SpeciesParams) (*models.Species, error) {
	sp, err := s.repo.GetSpecies(id)
	if err != nil {
		return nil, err
	}
	if sp == nil || sp.DeletedAt != nil {
		return nil, ErrNotFound
	}
	if err := s.perms.RequireMember(caller, sp.OrganizationID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Genus) == "" {
		return nil, ErrMissingGenus
	}

	sp.Genus = strings.TrimSpace(params.Genus)
	sp.SpeciesName = params.SpeciesName
	sp.Subspecies = params.Subspecies
	sp.Variety = params.Variety
	sp.Cultivar = params.Cultivar
	sp.CommonName = params.CommonName
	sp.Description = params.Description
	if err := s.repo.UpdateSpecies(sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Service) SoftDeleteSpecies(caller *models.User, id string) error {
	sp, err := s.repo.GetSpecies(id)
	if err != nil {
		return err
	}
	if sp == nil || sp.DeletedAt != nil {
		return ErrNotFound
	}
	if err := s.perms.RequireManage(caller, sp.OrganizationID); err != nil {
		return err
	}
	return s.repo.SoftDeleteSpecies(id, time.Now().UTC())
}

func (s *Service) ListSpecies(caller *models.User, orgID string) ([]*models.Species, error) {
	if err := s.perms.RequireMember(caller, orgID); err != nil {
		return nil, err
	}
	return s.repo.ListSpecies(orgID)
}

// Accessions

type AccessionParams struct {
	ProjectID   *string        `json:"project_id"`
	Code        string         `json:"code"`
	Description string         `json:"description"`
	SpeciesID   *string        `json:"species_id"`
	Values      map[string]any `json:"values"`
}

// AccessionDetail pairs the accession with its resolved custom field
// values.
type AccessionDetail struct {
	*models.Accession
	Values map[string]fields.TypedValue `json:"values"`
}

func (s *Service) CreateAccession(caller *models.User, orgID string, params AccessionParams) (*AccessionDetail, error) {
	if err := s.perms.RequireMember(caller, orgID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Code) == "" {
		return nil, ErrMissingCode
	}
	if err := s.checkProjectRef(orgID, params.ProjectID); err != nil {
		return nil, err
	}
	if err := s.checkSpeciesRef(orgID, params.SpeciesID); err != nil {
		return nil, err
	}

	a := &models.Accession{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		ProjectID:      params.ProjectID,
		Code:           strings.TrimSpace(params.Code),
		Description:    params.Description,
		SpeciesID:      params.SpeciesID,
		CreatedAt:      time.Now().UTC(),
		CreatedBy:      caller.ID,
	}

	tx, err := s.repo.BeginTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.repo.CreateAccessionTx(tx, a); err != nil {
		return nil, err
	}
	scope := fields.Scope{OrganizationID: orgID, ProjectID: a.ProjectID}
	if err := s.fields.SetValuesTx(tx, scope, a.ID, params.Values, true); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().Str("accession_id", a.ID).Str("organization_id", orgID).Msg("accession_created")
	return s.accessionDetail(a)
}

func (s *Service) GetAccession(caller *models.User, id string) (*AccessionDetail, error) {
	a, err := s.repo.GetAccession(id)
	if err != nil {
		return nil, err
	}
	if a == nil || a.DeletedAt != nil {
		return nil, ErrNotFound
	}
	if err := s.perms.RequireMember(caller, a.OrganizationID); err != nil {
		return nil, err
	}
	return s.accessionDetail(a)
}

func (s *Service) UpdateAccession(caller *models.User, id string, params AccessionParams) (*AccessionDetail, error) {
	a, err := s.repo.GetAccession(id)
	if err != nil {
		return nil, err
	}
	if a == nil || a.DeletedAt != nil {
		return nil, ErrNotFound
	}
	if err := s.perms.RequireMember(caller, a.OrganizationID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Code) == "" {
		return nil, ErrMissingCode
	}
	if err := s.checkSpeciesRef(a.OrganizationID, params.SpeciesID); err != nil {
		return nil, err
	}

	// The project link is fixed at creation; moving an accession between
	// projects would silently re-scope its custom field definitions.
	a.Code = strings.TrimSpace(params.Code)
	a.Description = params.Description
	a.SpeciesID = params.SpeciesID

	tx, err := s.repo.BeginTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.repo.UpdateAccessionTx(tx, a); err != nil {
		return nil, err
	}
	scope := fields.Scope{OrganizationID: a.OrganizationID, ProjectID: a.ProjectID}
	if err := s.fields.SetValuesTx(tx, scope, a.ID, params.Values, false); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.accessionDetail(a)
}

// SoftDeleteAccession hides the accession. Its field values stay stored;
// they become unreachable along with the row.
func (s *Service) SoftDeleteAccession(caller *models.User, id string) error {
	a, err := s.repo.GetAccession(id)
	if err != nil {
		return err
	}
	if a == nil || a.DeletedAt != nil {
		return ErrNotFound
	}
	if err := s.perms.RequireMember(caller, a.OrganizationID); err != nil {
		return err
	}
	if err := s.repo.SoftDeleteAccession(id, time.Now().UTC()); err != nil {
		return err
	}
	log.Info().Str("accession_id", id).Msg("accession_deleted")
	return nil
}

func (s *Service) ListAccessions(caller *models.User, orgID string, projectID *string) ([]*models.Accession, error) {
	if err := s.perms.RequireMember(caller, orgID); err != nil {
		return nil, err
	}
	return s.repo.ListAccessions(orgID, projectID)
}

func (s *Service) accessionDetail(a *models.Accession) (*AccessionDetail, error) {
	values, err := s.fields.GetValues(a.ID)
	if err != nil {
		return nil, err
	}
	return &AccessionDetail{Accession: a, Values: values}, nil
}

// Plants

type PlantParams struct {
	Code   string         `json:"code"`
	Values map[string]any `json:"values"`
}

type PlantDetail struct {
	*models.Plant
	Values map[string]fields.TypedValue `json:"values"`
}

// plantScope resolves the field scope a plant inherits from its accession.
func (s *Service) plantScope(accessionID string) (fields.Scope, *models.Accession, error) {
	a, err := s.repo.GetAccession(accessionID)
	if err != nil {
		return fields.Scope{}, nil, err
	}
	if a == nil || a.DeletedAt != nil {
		return fields.Scope{}, nil, ErrNotFound
	}
	return fields.Scope{OrganizationID: a.OrganizationID, ProjectID: a.ProjectID}, a, nil
}

func (s *Service) CreatePlant(caller *models.User, accessionID string, params PlantParams) (*PlantDetail, error) {
	scope, _, err := s.plantScope(accessionID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.RequireMember(caller, scope.OrganizationID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Code) == "" {
		return nil, ErrMissingCode
	}

	p := &models.Plant{
		ID:          uuid.NewString(),
		AccessionID: accessionID,
		Code:        strings.TrimSpace(params.Code),
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   caller.ID,
	}

	tx, err := s.repo.BeginTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.repo.CreatePlantTx(tx, p); err != nil {
		return nil, err
	}
	if err := s.fields.SetValuesTx(tx, scope, p.ID, params.Values, true); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().Str("plant_id", p.ID).Str("accession_id", accessionID).Msg("plant_created")
	return s.plantDetail(p)
}

func (s *Service) GetPlant(caller *models.User, id string) (*PlantDetail, error) {
	p, err := s.repo.GetPlant(id)
	if err != nil {
		return nil, err
	}
	if p == nil || p.DeletedAt != nil {
		return nil, ErrNotFound
	}
	scope, _, err := s.plantScope(p.AccessionID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.RequireMember(caller, scope.OrganizationID); err != nil {
		return nil, err
	}
	return s.plantDetail(p)
}

func (s *Service) UpdatePlant(caller *models.User, id string, params PlantParams) (*PlantDetail, error) {
	p, err := s.repo.GetPlant(id)
	if err != nil {
		return nil, err
	}
	if p == nil || p.DeletedAt != nil {
		return nil, ErrNotFound
	}
	scope, _, err := s.plantScope(p.AccessionID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.RequireMember(caller, scope.OrganizationID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Code) == "" {
		return nil, ErrMissingCode
	}

	p.Code = strings.TrimSpace(params.Code)

	tx, err := s.repo.BeginTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.repo.UpdatePlantTx(tx, p); err != nil {
		return nil, err
	}
	if err := s.fields.SetValuesTx(tx, scope, p.ID, params.Values, false); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.plantDetail(p)
}

func (s *Service) SoftDeletePlant(caller *models.User, id string) error {
	p, err := s.repo.GetPlant(id)
	if err != nil {
		return err
	}
	if p == nil || p.DeletedAt != nil {
		return ErrNotFound
	}
	scope, _, err := s.plantScope(p.AccessionID)
	if err != nil {
		return err
	}
	if err := s.perms.RequireMember(caller, scope.OrganizationID); err != nil {
		return err
	}
	return s.repo.SoftDeletePlant(id, time.Now().UTC())
}

func (s *Service) ListPlants(caller *models.User, accessionID string) ([]*models.Plant, error) {
	scope, _, err := s.plantScope(accessionID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.RequireMember(caller, scope.OrganizationID); err != nil {
		return nil, err
	}
	return s.repo.ListPlants(accessionID)
}

func (s *Service) plantDetail(p *models.Plant) (*PlantDetail, error) {
	values, err := s.fields.GetValues(p.ID)
	if err != nil {
		return nil, err
	}
	return &PlantDetail{Plant: p, Values: values}, nil
}

// Event types

func (s *Service) CreateEventType(caller *models.User, orgID, name, description string, displayOrder int) (*models.EventType, error) {
	if err := s.perms.RequireManage(caller, orgID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrMissingName
	}

	et := &models.EventType{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Name:           strings.TrimSpace(name),
		Description:    description,
		DisplayOrder:   displayOrder,
		CreatedAt:      time.Now().UTC(),
		CreatedBy:      caller.ID,
	}
	if err := s.repo.CreateEventType(et); err != nil {
		return nil, err
	}
	return et, nil
}

func (s *Service) SoftDeleteEventType(caller *models.User, id string) error {
	et, err := s.repo.GetEventType(id)
	if err != nil {
		return err
	}
	if et == nil || et.DeletedAt != nil {
		return ErrNotFound
	}
	if err := s.perms.RequireManage(caller, et.OrganizationID); err != nil {
		return err
	}
	return s.repo.SoftDeleteEventType(id, time.Now().UTC())
}

func (s *Service) ListEventTypes(caller *models.User, orgID string) ([]*models.EventType, error) {
	if err := s.perms.RequireMember(caller, orgID); err != nil {
		return nil, err
	}
	return s.repo.ListEventTypes(orgID)
}

// Plant events

type PlantEventParams struct {
	EventTypeID string         `json:"event_type_id"`
	EventDate   time.Time      `json:"event_date"`
	Notes       string         `json:"notes"`
	Values      map[string]any `json:"values"`
}

type PlantEventDetail struct {
	*models.PlantEvent
	Values map[string]fields.TypedValue `json:"values"`
}

// CreatePlantEvent logs an event against a plant. Event custom fields
// resolve organization-wide; project-scoped definitions do not apply to
// events.
func (s *Service) CreatePlantEvent(caller *models.User, plantID string, params PlantEventParams) (*PlantEventDetail, error) {
	p, err := s.repo.GetPlant(plantID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.DeletedAt != nil {
		return nil, ErrNotFound
	}
	scope, _, err := s.plantScope(p.AccessionID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.RequireMember(caller, scope.OrganizationID); err != nil {
		return nil, err
	}

	et, err := s.repo.GetEventType(params.EventTypeID)
	if err != nil {
		return nil, err
	}
	if et == nil || et.DeletedAt != nil || et.OrganizationID != scope.OrganizationID {
		return nil, ErrNotFound
	}

	eventDate := params.EventDate
	if eventDate.IsZero() {
		eventDate = time.Now().UTC()
	}

	e := &models.PlantEvent{
		ID:          uuid.NewString(),
		PlantID:     plantID,
		EventTypeID: params.EventTypeID,
		EventDate:   eventDate.UTC(),
		Notes:       params.Notes,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   caller.ID,
	}

	tx, err := s.repo.BeginTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.repo.CreatePlantEventTx(tx, e); err != nil {
		return nil, err
	}
	eventScope := fields.Scope{OrganizationID: scope.OrganizationID}
	if err := s.fields.SetValuesTx(tx, eventScope, e.ID, params.Values, true); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().Str("event_id", e.ID).Str("plant_id", plantID).Msg("plant_event_created")
	return s.plantEventDetail(e)
}

func (s *Service) ListPlantEvents(caller *models.User, plantID string) ([]*models.PlantEvent, error) {
	p, err := s.repo.GetPlant(plantID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.DeletedAt != nil {
		return nil, ErrNotFound
	}
	scope, _, err := s.plantScope(p.AccessionID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.RequireMember(caller, scope.OrganizationID); err != nil {
		return nil, err
	}
	return s.repo.ListPlantEvents(plantID)
}

func (s *Service) plantEventDetail(e *models.PlantEvent) (*PlantEventDetail, error) {
	values, err := s.fields.GetValues(e.ID)
	if err != nil {
		return nil, err
	}
	return &PlantEventDetail{PlantEvent: e, Values: values}, nil
}

// Reference checks

func (s *Service) checkProjectRef(orgID string, projectID *string) error {
	if projectID == nil {
		return nil
	}
	p, err := s.repo.GetProject(*projectID)
	if err != nil {
		return err
	}
	if p == nil || p.DeletedAt != nil || p.OrganizationID != orgID {
		return ErrNotFound
	}
	return nil
}

func (s *Service) checkSpeciesRef(orgID string, speciesID *string) error {
	if speciesID == nil {
		return nil
	}
	sp, err := s.repo.GetSpecies(*speciesID)
	if err != nil {
		return err
	}
	if sp == nil || sp.DeletedAt != nil || sp.OrganizationID != orgID {
		return ErrNotFound
	}
	return nil
}
