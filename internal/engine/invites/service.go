package invites

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"redbud/internal/engine/permissions"
	"redbud/internal/platform/config"
	"redbud/internal/platform/models"
	"redbud/internal/platform/repositories"
)

var (
	ErrNotFound    = errors.New("invite not found")
	ErrExpired     = errors.New("invite has expired")
	ErrAlreadyUsed = errors.New("invite has already been used")
	ErrOrgNotFound = errors.New("organization not found")
	ErrInvalidRole = errors.New("invalid role for invite")
)

// Service drives the invite lifecycle: Created, Valid while unexpired,
// then Consumed or (passively) Expired. Expiration is computed at check
// time; there is no background sweep.
type Service struct {
	invites     *repositories.InviteRepository
	memberships *repositories.MembershipRepository
	users       *repositories.UserRepository
	orgs        *repositories.OrganizationRepository
	perms       *permissions.Evaluator
	cfg         config.InvitesConfig
}

func NewService(
	invites *repositories.InviteRepository,
	memberships *repositories.MembershipRepository,
	users *repositories.UserRepository,
	orgs *repositories.OrganizationRepository,
	perms *permissions.Evaluator,
	cfg config.InvitesConfig,
) *Service {
	return &Service{
		invites:     invites,
		memberships: memberships,
		users:       users,
		orgs:        orgs,
		perms:       perms,
		cfg:         cfg,
	}
}

// CreateOrgInvite issues a single-use invite granting a role in an
// organization. The code is an unguessable UUID; the validity window comes
// from config.
func (s *Service) CreateOrgInvite(issuer *models.User, orgID string, role models.OrgRole) (*models.Invite, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	org, err := s.orgs.GetByID(orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrOrgNotFound
	}

	if err := s.perms.RequireManage(issuer, orgID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	invite := &models.Invite{
		ID:             uuid.NewString(),
		Code:           uuid.NewString(),
		Type:           models.InviteTypeOrganization,
		OrganizationID: &orgID,
		Role:           string(role),
		CreatedBy:      issuer.ID,
		CreatedAt:      now,
		ExpiresAt:      now.AddDate(0, 0, s.cfg.ExpirationDays),
	}

	if err := s.invites.Create(invite); err != nil {
		return nil, err
	}

	log.Info().
		Str("invite_id", invite.ID).
		Str("organization_id", orgID).
		Str("role", invite.Role).
		Time("expires_at", invite.ExpiresAt).
		Msg("invite_created")

	return invite, nil
}

// CreateSiteAdminInvite issues an invite that grants the global admin flag.
// These carry a short expiration window.
func (s *Service) CreateSiteAdminInvite(issuer *models.User) (*models.Invite, error) {
	if err := s.perms.RequireSiteAdmin(issuer); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	invite := &models.Invite{
		ID:        uuid.NewString(),
		Code:      uuid.NewString(),
		Type:      models.InviteTypeSiteAdmin,
		Role:      "site_admin",
		CreatedBy: issuer.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(s.cfg.SiteAdminExpirHours) * time.Hour),
	}

	if err := s.invites.Create(invite); err != nil {
		return nil, err
	}

	log.Info().Str("invite_id", invite.ID).Msg("site_admin_invite_created")
	return invite, nil
}

// Validation is the read-only answer to "what would this code grant".
type Validation struct {
	Invite       *models.Invite
	Organization *models.Organization
}

// Validate checks a code without mutating anything. Expiration is strict:
// a code checked at exactly its expiration instant is expired.
func (s *Service) Validate(code string) (*Validation, error) {
	invite, err := s.invites.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if invite == nil {
		return nil, ErrNotFound
	}
	if invite.UsedAt != nil {
		return nil, ErrAlreadyUsed
	}
	if !time.Now().UTC().Before(invite.ExpiresAt) {
		return nil, ErrExpired
	}

	v := &Validation{Invite: invite}
	if invite.OrganizationID != nil {
		v.Organization, err = s.orgs.GetByID(*invite.OrganizationID)
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Consume marks the invite used and grants what it carries, in one
// transaction.
func (s *Service) Consume(code string, user *models.User) (*models.Invite, error) {
	tx, err := s.invites.BeginTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	invite, err := s.ConsumeTx(tx, code, user)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return invite, nil
}

// ConsumeTx consumes an invite inside the caller's transaction (signup
// creates the user row in the same one). The validity check and the mark
// are a single conditional update, so concurrent consumers of one code
// resolve to exactly one winner; the loser gets ErrAlreadyUsed.
func (s *Service) ConsumeTx(tx *sql.Tx, code string, user *models.User) (*models.Invite, error) {
	invite, err := s.invites.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if invite == nil {
		return nil, ErrNotFound
	}

	now := time.Now().UTC()
	won, err := s.invites.MarkUsedTx(tx, code, &user.ID, now)
	if err != nil {
		return nil, err
	}
	if !won {
		if invite.UsedAt != nil {
			return nil, ErrAlreadyUsed
		}
		if !now.Before(invite.ExpiresAt) {
			return nil, ErrExpired
		}
		// Lost a race decided after our read.
		return nil, ErrAlreadyUsed
	}

	invite.UsedBy = &user.ID
	invite.UsedAt = &now

	switch invite.Type {
	case models.InviteTypeSiteAdmin:
		if err := s.users.SetSiteAdminTx(tx, user.ID, true); err != nil {
			return nil, err
		}
		log.Info().Str("user_id", user.ID).Str("invite_id", invite.ID).Msg("site_admin_invite_consumed")

	case models.InviteTypeOrganization:
		existing, err := s.memberships.GetActiveTx(tx, user.ID, *invite.OrganizationID)
		if err != nil {
			return nil, err
		}
		// An already-active membership makes the grant a no-op, but the
		// invite stays consumed.
		if existing == nil {
			membership := &models.OrganizationMembership{
				ID:             uuid.NewString(),
				UserID:         user.ID,
				OrganizationID: *invite.OrganizationID,
				Role:           models.OrgRole(invite.Role),
				JoinedAt:       now,
			}
			if err := s.memberships.CreateTx(tx, membership); err != nil {
				return nil, err
			}
		}
		log.Info().
			Str("user_id", user.ID).
			Str("invite_id", invite.ID).
			Str("organization_id", *invite.OrganizationID).
			Str("role", invite.Role).
			Msg("invite_consumed")
	}

	return invite, nil
}

// Revoke deactivates an invite without granting anything: it is marked
// used with no consumer. Already-consumed invites cannot be revoked.
func (s *Service) Revoke(code string, revoker *models.User) error {
	invite, err := s.invites.GetByCode(code)
	if err != nil {
		return err
	}
	if invite == nil {
		return ErrNotFound
	}

	switch invite.Type {
	case models.InviteTypeSiteAdmin:
		if err := s.perms.RequireSiteAdmin(revoker); err != nil {
			return err
		}
	default:
		if err := s.perms.RequireManage(revoker, *invite.OrganizationID); err != nil {
			return err
		}
	}

	tx, err := s.invites.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	won, err := s.invites.RevokeTx(tx, code, time.Now().UTC())
	if err != nil {
		return err
	}
	if !won {
		return ErrAlreadyUsed
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	log.Info().Str("invite_id", invite.ID).Str("revoked_by", revoker.ID).Msg("invite_revoked")
	return nil
}

// ListOrgInvites returns the outstanding invites for an organization.
func (s *Service) ListOrgInvites(caller *models.User, orgID string) ([]*models.Invite, error) {
	org, err := s.orgs.GetByID(orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrOrgNotFound
	}
	if err := s.perms.RequireManage(caller, orgID); err != nil {
		return nil, err
	}
	return s.invites.ListActiveByOrg(orgID, time.Now().UTC())
}

func (s *Service) ListSiteAdminInvites(caller *models.User) ([]*models.Invite, error) {
	if err := s.perms.RequireSiteAdmin(caller); err != nil {
		return nil, err
	}
	return s.invites.ListActiveSiteAdmin(time.Now().UTC())
}
