package invites

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"redbud/internal/engine/permissions"
	"redbud/internal/platform/config"
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
	CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		is_site_admin INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE TABLE organizations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		created_by TEXT NOT NULL
	);
	CREATE TABLE organization_memberships (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		role TEXT NOT NULL,
		joined_at TIMESTAMP NOT NULL,
		removed_at TIMESTAMP
	);
	CREATE UNIQUE INDEX idx_memberships_active
		ON organization_memberships (user_id, organization_id)
		WHERE removed_at IS NULL;
	CREATE TABLE invites (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		invite_type TEXT NOT NULL,
		organization_id TEXT,
		role TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		used_by TEXT,
		used_at TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return db
}

type fixture struct {
	svc         *Service
	db          *sql.DB
	users       *repositories.UserRepository
	memberships *repositories.MembershipRepository
	admin       *models.User
	member      *models.User
	orgID       string
}

func newFixture(t *testing.T) *fixture {
	db := setupTestDB(t)

	users := repositories.NewUserRepository(db)
	orgs := repositories.NewOrganizationRepository(db)
	memberships := repositories.NewMembershipRepository(db)
	invites := repositories.NewInviteRepository(db)
	perms := permissions.NewEvaluator(memberships)

	svc := NewService(invites, memberships, users, orgs, perms, config.InvitesConfig{
		ExpirationDays:      7,
		SiteAdminExpirHours: 24,
	})

	now := time.Now().UTC()
	admin := &models.User{ID: uuid.NewString(), Email: "admin@example.com", PasswordHash: "x", CreatedAt: now, UpdatedAt: now}
	member := &models.User{ID: uuid.NewString(), Email: "member@example.com", PasswordHash: "x", CreatedAt: now, UpdatedAt: now}
	for _, u := range []*models.User{admin, member} {
		if err := users.Create(u); err != nil {
			t.Fatalf("Failed to create user: %v", err)
		}
	}

	orgID := uuid.NewString()
	if err := orgs.Create(&models.Organization{ID: orgID, Name: "Arboretum", CreatedAt: now, CreatedBy: admin.ID}); err != nil {
		t.Fatalf("Failed to create org: %v", err)
	}
	if err := memberships.Create(&models.OrganizationMembership{
		ID: uuid.NewString(), UserID: admin.ID, OrganizationID: orgID, Role: models.RoleAdmin, JoinedAt: now,
	}); err != nil {
		t.Fatalf("Failed to create membership: %v", err)
	}

	return &fixture{svc: svc, db: db, users: users, memberships: memberships, admin: admin, member: member, orgID: orgID}
}

func TestCreateOrgInvite_Permissions(t *testing.T) {
	f := newFixture(t)

	invite, err := f.svc.CreateOrgInvite(f.admin, f.orgID, models.RoleMember)
	if err != nil {
		t.Fatalf("admin should create invites: %v", err)
	}
	if invite.Code == "" || invite.Type != models.InviteTypeOrganization {
		t.Errorf("unexpected invite: %+v", invite)
	}

	// A non-member cannot issue invites.
	if _, err := f.svc.CreateOrgInvite(f.member, f.orgID, models.RoleMember); !errors.Is(err, permissions.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	// Neither can a plain member.
	now := time.Now().UTC()
	f.memberships.Create(&models.OrganizationMembership{
		ID: uuid.NewString(), UserID: f.member.ID, OrganizationID: f.orgID, Role: models.RoleMember, JoinedAt: now,
	})
	if _, err := f.svc.CreateOrgInvite(f.member, f.orgID, models.RoleMember); !errors.Is(err, permissions.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for member, got %v", err)
	}

	if _, err := f.svc.CreateOrgInvite(f.admin, f.orgID, models.OrgRole("owner")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := f.svc.CreateOrgInvite(f.admin, "nope", models.RoleMember); !errors.Is(err, ErrOrgNotFound) {
		t.Fatalf("expected ErrOrgNotFound, got %v", err)
	}
}

func TestConsume_GrantsMembership(t *testing.T) {
	f := newFixture(t)

	invite, err := f.svc.CreateOrgInvite(f.admin, f.orgID, models.RoleMember)
	if err != nil {
		t.Fatalf("CreateOrgInvite failed: %v", err)
	}

	consumed, err := f.svc.Consume(invite.Code, f.member)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if consumed.UsedBy == nil || *consumed.UsedBy != f.member.ID {
		t.Errorf("invite should record the consumer")
	}

	m, err := f.memberships.GetActive(f.member.ID, f.orgID)
	if err != nil || m == nil {
		t.Fatalf("expected active membership, got %v / %v", m, err)
	}
	if m.Role != models.RoleMember {
		t.Errorf("expected role member, got %s", m.Role)
	}
}

func TestConsume_Twice(t *testing.T) {
	f := newFixture(t)

	invite, err := f.svc.CreateOrgInvite(f.admin, f.orgID, models.RoleMember)
	if err != nil {
		t.Fatalf("CreateOrgInvite failed: %v", err)
	}

	if _, err := f.svc.Consume(invite.Code, f.member); err != nil {
		t.Fatalf("first consume failed: %v", err)
	}

	other := &models.User{ID: uuid.NewString(), Email: "late@example.com", PasswordHash: "x", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	f.users.Create(other)

	if _, err := f.svc.Consume(invite.Code, other); !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("expected ErrAlreadyUsed, got %v", err)
	}
	if m, _ := f.memberships.GetActive(other.ID, f.orgID); m != nil {
		t.Error("second consumer must not gain a membership")
	}
}

func TestConsume_Concurrent(t *testing.T) {
	f := newFixture(t)

	invite, err := f.svc.CreateOrgInvite(f.admin, f.orgID, models.RoleMember)
	if err != nil {
		t.Fatalf("CreateOrgInvite failed: %v", err)
	}

	now := time.Now().UTC()
	late := &models.User{ID: uuid.NewString(), Email: "late@example.com", PasswordHash: "x", CreatedAt: now, UpdatedAt: now}
	if err := f.users.Create(late); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	// Two signups race on the same code; the conditional update lets
	// exactly one mark it used.
	type outcome struct {
		user *models.User
		err  error
	}
	start := make(chan struct{})
	results := make(chan outcome, 2)
	for _, u := range []*models.User{f.member, late} {
		u := u
		go func() {
			<-start
			_, err := f.svc.Consume(invite.Code, u)
			results <- outcome{user: u, err: err}
		}()
	}
	close(start)

	var winner *models.User
	var losses int
	for i := 0; i < 2; i++ {
		switch o := <-results; {
		case o.err == nil:
			winner = o.user
		case errors.Is(o.err, ErrAlreadyUsed):
			losses++
		default:
			t.Fatalf("unexpected error: %v", o.err)
		}
	}
	if winner == nil || losses != 1 {
		t.Fatalf("expected exactly one winner, got winner=%v losses=%d", winner, losses)
	}

	for _, u := range []*models.User{f.member, late} {
		m, err := f.memberships.GetActive(u.ID, f.orgID)
		if err != nil {
			t.Fatalf("GetActive failed: %v", err)
		}
		if (m != nil) != (u == winner) {
			t.Errorf("membership for %s does not match race outcome", u.Email)
		}
	}
}

func TestConsume_Expired(t *testing.T) {
	f := newFixture(t)

	invite, err := f.svc.CreateOrgInvite(f.admin, f.orgID, models.RoleMember)
	if err != nil {
		t.Fatalf("CreateOrgInvite failed: %v", err)
	}

	// Backdate the expiry.
	if _, err := f.db.Exec(`UPDATE invites SET expires_at = ? WHERE code = ?`, time.Now().UTC().Add(-time.Minute), invite.Code); err != nil {
		t.Fatalf("backdate failed: %v", err)
	}

	if _, err := f.svc.Consume(invite.Code, f.member); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, err := f.svc.Validate(invite.Code); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired from Validate, got %v", err)
	}
	if m, _ := f.memberships.GetActive(f.member.ID, f.orgID); m != nil {
		t.Error("expired invite must not grant membership")
	}
}

func TestInvite_ExpiryBoundaryIsStrict(t *testing.T) {
	now := time.Now().UTC()
	invite := &models.Invite{ExpiresAt: now}

	// Valid strictly before the instant, invalid at and after it.
	if !invite.IsValid(now.Add(-time.Nanosecond)) {
		t.Error("invite should be valid just before expiry")
	}
	if invite.IsValid(now) {
		t.Error("invite must be invalid at the exact expiry instant")
	}
	if invite.IsValid(now.Add(time.Nanosecond)) {
		t.Error("invite must be invalid after expiry")
	}
}

func TestConsume_IdempotentForExistingMember(t *testing.T) {
	f := newFixture(t)

	invite, err := f.svc.CreateOrgInvite(f.admin, f.orgID, models.RoleMember)
	if err != nil {
		t.Fatalf("CreateOrgInvite failed: %v", err)
	}

	// The admin is already an active member; consuming must not create a
	// second membership or fail on the partial unique index.
	if _, err := f.svc.Consume(invite.Code, f.admin); err != nil {
		t.Fatalf("consume by existing member failed: %v", err)
	}

	m, err := f.memberships.GetActive(f.admin.ID, f.orgID)
	if err != nil || m == nil {
		t.Fatalf("membership lookup failed: %v", err)
	}
	if m.Role != models.RoleAdmin {
		t.Errorf("existing role must be preserved, got %s", m.Role)
	}
}

func TestMembership_Reactivation(t *testing.T) {
	f := newFixture(t)

	invite, err := f.svc.CreateOrgInvite(f.admin, f.orgID, models.RoleMember)
	if err != nil {
		t.Fatalf("CreateOrgInvite failed: %v", err)
	}
	if _, err := f.svc.Consume(invite.Code, f.member); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}

	first, _ := f.memberships.GetActive(f.member.ID, f.orgID)
	if err := f.memberships.Remove(first.ID, time.Now().UTC()); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if m, _ := f.memberships.GetActive(f.member.ID, f.orgID); m != nil {
		t.Fatal("membership should be inactive after removal")
	}

	// A fresh invite readmits with a brand new membership row.
	invite2, err := f.svc.CreateOrgInvite(f.admin, f.orgID, models.RoleAdmin)
	if err != nil {
		t.Fatalf("second invite failed: %v", err)
	}
	if _, err := f.svc.Consume(invite2.Code, f.member); err != nil {
		t.Fatalf("re-consume failed: %v", err)
	}

	second, _ := f.memberships.GetActive(f.member.ID, f.orgID)
	if second == nil {
		t.Fatal("expected reactivated membership")
	}
	if second.ID == first.ID {
		t.Error("reactivation must create a new row, not revive the old one")
	}
	if second.Role != models.RoleAdmin {
		t.Errorf("new membership carries the new invite's role, got %s", second.Role)
	}

	// The removed row survives as history.
	all, err := f.memberships.ListByOrg(f.orgID, true)
	if err != nil {
		t.Fatalf("ListByOrg failed: %v", err)
	}
	removed := 0
	for _, m := range all {
		if m.UserID == f.member.ID && m.RemovedAt != nil {
			removed++
		}
	}
	if removed != 1 {
		t.Errorf("expected 1 removed membership in history, got %d", removed)
	}
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)

	invite, err := f.svc.CreateOrgInvite(f.admin, f.orgID, models.RoleMember)
	if err != nil {
		t.Fatalf("CreateOrgInvite failed: %v", err)
	}

	// A non-admin cannot revoke.
	if err := f.svc.Revoke(invite.Code, f.member); !errors.Is(err, permissions.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if err := f.svc.Revoke(invite.Code, f.admin); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	// A revoked invite cannot be consumed or re-revoked.
	if _, err := f.svc.Consume(invite.Code, f.member); !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("expected ErrAlreadyUsed after revoke, got %v", err)
	}
	if err := f.svc.Revoke(invite.Code, f.admin); !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("expected ErrAlreadyUsed on double revoke, got %v", err)
	}
}

func TestSiteAdminInvite(t *testing.T) {
	f := newFixture(t)

	// Only site admins may mint site admin invites.
	if _, err := f.svc.CreateSiteAdminInvite(f.admin); !errors.Is(err, permissions.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	now := time.Now().UTC()
	siteAdmin := &models.User{ID: uuid.NewString(), Email: "root@example.com", PasswordHash: "x", IsSiteAdmin: true, CreatedAt: now, UpdatedAt: now}
	f.users.Create(siteAdmin)

	invite, err := f.svc.CreateSiteAdminInvite(siteAdmin)
	if err != nil {
		t.Fatalf("CreateSiteAdminInvite failed: %v", err)
	}
	if invite.Type != models.InviteTypeSiteAdmin || invite.OrganizationID != nil {
		t.Errorf("unexpected invite: %+v", invite)
	}
	// Short validity window.
	if invite.ExpiresAt.After(now.Add(25 * time.Hour)) {
		t.Errorf("site admin invite expiry too far out: %v", invite.ExpiresAt)
	}

	if _, err := f.svc.Consume(invite.Code, f.member); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}

	promoted, err := f.users.GetByID(f.member.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !promoted.IsSiteAdmin {
		t.Error("consuming a site admin invite must set the flag")
	}
}
