package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apiContext "redbud/internal/api/context"
	"redbud/internal/engine/permissions"
	"redbud/internal/pkg/errors"
	"redbud/internal/platform/audit"
	"redbud/internal/platform/models"
	"redbud/internal/platform/repositories"
)

type OrgHandler struct {
	orgRepo        *repositories.OrganizationRepository
	membershipRepo *repositories.MembershipRepository
	userRepo       *repositories.UserRepository
	perms          *permissions.Evaluator
	audit          *audit.Logger
}

func NewOrgHandler(orgRepo *repositories.OrganizationRepository, membershipRepo *repositories.MembershipRepository, userRepo *repositories.UserRepository, perms *permissions.Evaluator, auditLog *audit.Logger) *OrgHandler {
	return &OrgHandler{
		orgRepo:        orgRepo,
		membershipRepo: membershipRepo,
		userRepo:       userRepo,
		perms:          perms,
		audit:          auditLog,
	}
}

type CreateOrgRequest struct {
	Name string `json:"name"`
}

// Create makes a new organization with the caller as its first admin.
// The organization and the membership commit together.
func (h *OrgHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	var req CreateOrgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Organization name is required", nil)
		return
	}

	now := time.Now().UTC()
	org := &models.Organization{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		CreatedAt: now,
		CreatedBy: user.ID,
	}
	membership := &models.OrganizationMembership{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		OrganizationID: org.ID,
		Role:           models.RoleAdmin,
		JoinedAt:       now,
	}

	tx, err := h.orgRepo.BeginTx()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	defer tx.Rollback()

	if err := h.orgRepo.CreateTx(tx, org); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create organization", nil)
		return
	}
	if err := h.membershipRepo.CreateTx(tx, membership); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create organization", nil)
		return
	}
	if err := tx.Commit(); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	log.Info().Str("organization_id", org.ID).Str("created_by", user.ID).Msg("organization_created")
	h.audit.Log(user.ID, org.ID, "organization.created", "organization", org.ID, nil)

	writeJSON(w, http.StatusCreated, org)
}

// List returns the caller's organizations; site admins see all of them.
func (h *OrgHandler) List(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	var (
		orgs []*models.Organization
		err  error
	)
	if h.perms.IsSiteAdmin(user) {
		orgs, err = h.orgRepo.List()
	} else {
		orgs, err = h.orgRepo.ListByMember(user.ID)
	}
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

func (h *OrgHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")

	org, err := h.orgRepo.GetByID(orgID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if org == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "resource not found", nil)
		return
	}
	if err := h.perms.RequireMember(user, orgID); err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, org)
}

// MemberView joins the membership row with the member's email for
// listing.
type MemberView struct {
	*models.OrganizationMembership
	Email string `json:"email"`
}

func (h *OrgHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")

	includeRemoved := r.URL.Query().Get("include_removed") == "true"
	if includeRemoved {
		// Removal history is admin-only.
		if err := h.perms.RequireManage(user, orgID); err != nil {
			errors.WriteDomainError(w, err)
			return
		}
	} else if err := h.perms.RequireMember(user, orgID); err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	memberships, err := h.membershipRepo.ListByOrg(orgID, includeRemoved)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	members := make([]*MemberView, 0, len(memberships))
	for _, m := range memberships {
		mv := &MemberView{OrganizationMembership: m}
		if u, err := h.userRepo.GetByID(m.UserID); err == nil && u != nil {
			mv.Email = u.Email
		}
		members = append(members, mv)
	}

	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

type AddMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AddMember grants membership directly, bypassing the invite flow. A
// previously removed user gets a brand new membership row; the old one
// stays as history.
func (h *OrgHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")

	if err := h.perms.RequireManage(user, orgID); err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	role := models.OrgRole(req.Role)
	if !role.Valid() {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid role", nil)
		return
	}

	target, err := h.userRepo.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if target == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "resource not found", nil)
		return
	}

	existing, err := h.membershipRepo.GetActive(target.ID, orgID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if existing != nil {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "User is already a member", nil)
		return
	}

	membership := &models.OrganizationMembership{
		ID:             uuid.NewString(),
		UserID:         target.ID,
		OrganizationID: orgID,
		Role:           role,
		JoinedAt:       time.Now().UTC(),
	}
	if err := h.membershipRepo.Create(membership); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to add member", nil)
		return
	}

	h.audit.Log(user.ID, orgID, "member.added", "membership", membership.ID, map[string]any{
		"user_id": target.ID,
		"role":    string(role),
	})

	writeJSON(w, http.StatusCreated, membership)
}

type UpdateMemberRequest struct {
	Role string `json:"role"`
}

func (h *OrgHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")
	membershipID := apiContext.Param(r, "membership_id")

	if err := h.perms.RequireManage(user, orgID); err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	membership, err := h.membershipRepo.GetByID(membershipID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if membership == nil || membership.OrganizationID != orgID || !membership.Active() {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "resource not found", nil)
		return
	}

	var req UpdateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	role := models.OrgRole(req.Role)
	if !role.Valid() {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid role", nil)
		return
	}

	if err := h.membershipRepo.UpdateRole(membershipID, role); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update role", nil)
		return
	}

	h.audit.Log(user.ID, orgID, "member.role_changed", "membership", membershipID, map[string]any{
		"user_id": membership.UserID,
		"role":    string(role),
	})

	membership.Role = role
	writeJSON(w, http.StatusOK, membership)
}

func (h *OrgHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")
	membershipID := apiContext.Param(r, "membership_id")

	if err := h.perms.RequireManage(user, orgID); err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	membership, err := h.membershipRepo.GetByID(membershipID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if membership == nil || membership.OrganizationID != orgID || !membership.Active() {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "resource not found", nil)
		return
	}

	if err := h.membershipRepo.Remove(membershipID, time.Now().UTC()); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to remove member", nil)
		return
	}

	h.audit.Log(user.ID, orgID, "member.removed", "membership", membershipID, map[string]any{
		"user_id": membership.UserID,
	})

	w.WriteHeader(http.StatusNoContent)
}

// Audit returns recent administrative activity for the organization.
func (h *OrgHandler) Audit(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")

	if err := h.perms.RequireManage(user, orgID); err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	entries, err := h.audit.ListByOrg(orgID, 100)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
