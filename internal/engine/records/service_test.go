package records

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"redbud/internal/engine/fields"
	"redbud/internal/engine/permissions"
	"redbud/internal/platform/models"
	"redbud/internal/platform/repositories"
)

func setupTestDB(t *testing.T) *sql.DB {
	// File-backed so reads through the pool see rows written by an open
	// transaction's connection.
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db")+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE organization_memberships (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		role TEXT NOT NULL,
		joined_at TIMESTAMP NOT NULL,
		removed_at TIMESTAMP
	);
	CREATE TABLE projects (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		created_by TEXT NOT NULL,
		deleted_at TIMESTAMP
	);
	CREATE TABLE species (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		genus TEXT NOT NULL,
		species_name TEXT NOT NULL DEFAULT '',
		subspecies TEXT NOT NULL DEFAULT '',
		variety TEXT NOT NULL DEFAULT '',
		cultivar TEXT NOT NULL DEFAULT '',
		common_name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		created_by TEXT NOT NULL,
		deleted_at TIMESTAMP
	);
	CREATE TABLE accessions (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		project_id TEXT,
		code TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		species_id TEXT,
		created_at TIMESTAMP NOT NULL,
		created_by TEXT NOT NULL,
		deleted_at TIMESTAMP
	);
	CREATE TABLE plants (
		id TEXT PRIMARY KEY,
		accession_id TEXT NOT NULL,
		code TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		created_by TEXT NOT NULL,
		deleted_at TIMESTAMP
	);
	CREATE TABLE event_types (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		display_order INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		created_by TEXT NOT NULL,
		deleted_at TIMESTAMP
	);
	CREATE TABLE plant_events (
		id TEXT PRIMARY KEY,
		plant_id TEXT NOT NULL,
		event_type_id TEXT NOT NULL,
		event_date TIMESTAMP NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		created_by TEXT NOT NULL
	);
	CREATE TABLE field_definitions (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		project_id TEXT,
		field_name TEXT NOT NULL,
		field_type TEXT NOT NULL,
		is_required INTEGER NOT NULL DEFAULT 0,
		display_order INTEGER NOT NULL DEFAULT 0,
		min_length INTEGER,
		max_length INTEGER,
		pattern TEXT,
		min_value REAL,
		max_value REAL,
		choices TEXT,
		created_at TIMESTAMP NOT NULL,
		created_by TEXT NOT NULL,
		deleted_at TIMESTAMP
	);
	CREATE UNIQUE INDEX idx_field_definitions_name
		ON field_definitions (organization_id, ifnull(project_id, ''), field_name)
		WHERE deleted_at IS NULL;
	CREATE TABLE field_values (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		field_id TEXT NOT NULL,
		value_text TEXT,
		value_number REAL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (entity_id, field_id)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return db
}

type fixture struct {
	svc      *Service
	fieldSvc *fields.Service
	db       *sql.DB
	member   *models.User
	admin    *models.User
	orgID    string
}

func newFixture(t *testing.T) *fixture {
	db := setupTestDB(t)

	memberships := repositories.NewMembershipRepository(db)
	perms := permissions.NewEvaluator(memberships)
	fieldSvc := fields.NewService(fields.NewRepository(db))
	svc := NewService(NewRepository(db), fieldSvc, perms)

	orgID := uuid.NewString()
	admin := &models.User{ID: uuid.NewString()}
	member := &models.User{ID: uuid.NewString()}

	now := time.Now().UTC()
	for _, m := range []*models.OrganizationMembership{
		{ID: uuid.NewString(), UserID: admin.ID, OrganizationID: orgID, Role: models.RoleAdmin, JoinedAt: now},
		{ID: uuid.NewString(), UserID: member.ID, OrganizationID: orgID, Role: models.RoleMember, JoinedAt: now},
	} {
		if err := memberships.Create(m); err != nil {
			t.Fatalf("Failed to create membership: %v", err)
		}
	}

	return &fixture{svc: svc, fieldSvc: fieldSvc, db: db, member: member, admin: admin, orgID: orgID}
}

func TestProject_AdminOnlyMutations(t *testing.T) {
	f := newFixture(t)

	// Members cannot create projects.
	if _, err := f.svc.CreateProject(f.member, f.orgID, "Prairie restoration", ""); !errors.Is(err, permissions.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	p, err := f.svc.CreateProject(f.admin, f.orgID, "Prairie restoration", "north plot")
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	// Members can read.
	got, err := f.svc.GetProject(f.member, p.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if got.Title != "Prairie restoration" {
		t.Errorf("unexpected title %q", got.Title)
	}

	if err := f.svc.SoftDeleteProject(f.admin, p.ID); err != nil {
		t.Fatalf("SoftDeleteProject failed: %v", err)
	}
	if _, err := f.svc.GetProject(f.member, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted project should be gone, got %v", err)
	}
	if err := f.svc.SoftDeleteProject(f.admin, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete should report not found, got %v", err)
	}
}

func TestAccession_CreateWithValues(t *testing.T) {
	f := newFixture(t)

	if _, err := f.fieldSvc.CreateDefinition(fields.Scope{OrganizationID: f.orgID}, fields.CreateDefinitionParams{
		Name: "provenance", Type: fields.TypeShortText, CreatedBy: f.admin.ID,
	}); err != nil {
		t.Fatalf("CreateDefinition failed: %v", err)
	}

	a, err := f.svc.CreateAccession(f.member, f.orgID, AccessionParams{
		Code:   "ACC-001",
		Values: map[string]any{"provenance": "wild collected"},
	})
	if err != nil {
		t.Fatalf("CreateAccession failed: %v", err)
	}
	if a.Values["provenance"].Value != "wild collected" {
		t.Errorf("expected value in response, got %+v", a.Values)
	}

	got, err := f.svc.GetAccession(f.member, a.ID)
	if err != nil {
		t.Fatalf("GetAccession failed: %v", err)
	}
	if got.Values["provenance"].Value != "wild collected" {
		t.Errorf("expected stored value, got %+v", got.Values)
	}
}

func TestAccession_FailedValuesRollBackRow(t *testing.T) {
	f := newFixture(t)

	if _, err := f.fieldSvc.CreateDefinition(fields.Scope{OrganizationID: f.orgID}, fields.CreateDefinitionParams{
		Name: "height_cm", Type: fields.TypeNumber, MaxValue: floatPtr(500), CreatedBy: f.admin.ID,
	}); err != nil {
		t.Fatalf("CreateDefinition failed: %v", err)
	}

	_, err := f.svc.CreateAccession(f.member, f.orgID, AccessionParams{
		Code:   "ACC-002",
		Values: map[string]any{"height_cm": 600.0},
	})
	var verrs fields.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}

	// The accession insert must have rolled back with the values.
	list, err := f.svc.ListAccessions(f.member, f.orgID, nil)
	if err != nil {
		t.Fatalf("ListAccessions failed: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no accessions after rollback, got %d", len(list))
	}
}

func TestAccession_CrossOrgProjectRef(t *testing.T) {
	f := newFixture(t)

	otherOrg := uuid.NewString()
	foreign, err := f.svc.repo.GetProject("missing")
	if err != nil || foreign != nil {
		t.Fatalf("unexpected: %v %v", foreign, err)
	}

	p := &models.Project{ID: uuid.NewString(), OrganizationID: otherOrg, Title: "Other", CreatedAt: time.Now().UTC(), CreatedBy: "x"}
	if err := f.svc.repo.CreateProject(p); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	// A project in another organization reads as absent.
	_, err = f.svc.CreateAccession(f.member, f.orgID, AccessionParams{Code: "ACC-003", ProjectID: &p.ID})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign project, got %v", err)
	}
}

func TestPlant_InheritsProjectScope(t *testing.T) {
	f := newFixture(t)

	project, err := f.svc.CreateProject(f.admin, f.orgID, "Greenhouse", "")
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	if _, err := f.fieldSvc.CreateDefinition(fields.Scope{OrganizationID: f.orgID, ProjectID: &project.ID}, fields.CreateDefinitionParams{
		Name: "bench_number", Type: fields.TypeNumber, CreatedBy: f.admin.ID,
	}); err != nil {
		t.Fatalf("CreateDefinition failed: %v", err)
	}

	acc, err := f.svc.CreateAccession(f.member, f.orgID, AccessionParams{Code: "ACC-004", ProjectID: &project.ID})
	if err != nil {
		t.Fatalf("CreateAccession failed: %v", err)
	}

	// Plants under a project accession can use the project's fields.
	plant, err := f.svc.CreatePlant(f.member, acc.ID, PlantParams{
		Code:   "P-1",
		Values: map[string]any{"bench_number": 7.0},
	})
	if err != nil {
		t.Fatalf("CreatePlant failed: %v", err)
	}
	if plant.Values["bench_number"].Value != 7.0 {
		t.Errorf("expected bench_number 7, got %+v", plant.Values)
	}

	// An accession outside the project cannot reach the field.
	acc2, err := f.svc.CreateAccession(f.member, f.orgID, AccessionParams{Code: "ACC-005"})
	if err != nil {
		t.Fatalf("CreateAccession failed: %v", err)
	}
	_, err = f.svc.CreatePlant(f.member, acc2.ID, PlantParams{
		Code:   "P-2",
		Values: map[string]any{"bench_number": 7.0},
	})
	if !errors.Is(err, fields.ErrScopeMismatch) {
		t.Fatalf("expected ErrScopeMismatch, got %v", err)
	}
}

func TestPlantEvents(t *testing.T) {
	f := newFixture(t)

	acc, err := f.svc.CreateAccession(f.member, f.orgID, AccessionParams{Code: "ACC-006"})
	if err != nil {
		t.Fatalf("CreateAccession failed: %v", err)
	}
	plant, err := f.svc.CreatePlant(f.member, acc.ID, PlantParams{Code: "P-1"})
	if err != nil {
		t.Fatalf("CreatePlant failed: %v", err)
	}

	// Event types are admin-managed vocabulary.
	if _, err := f.svc.CreateEventType(f.member, f.orgID, "Watered", "", 1); !errors.Is(err, permissions.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	et, err := f.svc.CreateEventType(f.admin, f.orgID, "Watered", "", 1)
	if err != nil {
		t.Fatalf("CreateEventType failed: %v", err)
	}

	when := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	event, err := f.svc.CreatePlantEvent(f.member, plant.ID, PlantEventParams{
		EventTypeID: et.ID,
		EventDate:   when,
		Notes:       "deep soak",
	})
	if err != nil {
		t.Fatalf("CreatePlantEvent failed: %v", err)
	}
	if !event.EventDate.Equal(when) {
		t.Errorf("expected backdated event date, got %v", event.EventDate)
	}

	list, err := f.svc.ListPlantEvents(f.member, plant.ID)
	if err != nil {
		t.Fatalf("ListPlantEvents failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 event, got %d", len(list))
	}

	// An event type from another organization reads as absent.
	_, err = f.svc.CreatePlantEvent(f.member, plant.ID, PlantEventParams{EventTypeID: uuid.NewString()})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOutsiderSeesNothing(t *testing.T) {
	f := newFixture(t)

	outsider := &models.User{ID: uuid.NewString()}

	acc, err := f.svc.CreateAccession(f.member, f.orgID, AccessionParams{Code: "ACC-007"})
	if err != nil {
		t.Fatalf("CreateAccession failed: %v", err)
	}

	if _, err := f.svc.GetAccession(outsider, acc.ID); !errors.Is(err, permissions.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.ListAccessions(outsider, f.orgID, nil); !errors.Is(err, permissions.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func floatPtr(v float64) *float64 { return &v }
