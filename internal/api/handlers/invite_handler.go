package handlers

import (
	"encoding/json"
	"net/http"

	apiContext "redbud/internal/api/context"
	"redbud/internal/engine/invites"
	"redbud/internal/pkg/errors"
	"redbud/internal/platform/audit"
	"redbud/internal/platform/models"
)

type InviteHandler struct {
	inviteSvc *invites.Service
	audit     *audit.Logger
}

func NewInviteHandler(inviteSvc *invites.Service, auditLog *audit.Logger) *InviteHandler {
	return &InviteHandler{inviteSvc: inviteSvc, audit: auditLog}
}

type CreateInviteRequest struct {
	Role string `json:"role"`
}

func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")

	var req CreateInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	invite, err := h.inviteSvc.CreateOrgInvite(user, orgID, models.OrgRole(req.Role))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	h.audit.Log(user.ID, orgID, "invite.created", "invite", invite.ID, map[string]any{
		"role": invite.Role,
	})

	writeJSON(w, http.StatusCreated, invite)
}

func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")

	list, err := h.inviteSvc.ListOrgInvites(user, orgID)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"invites": list})
}

// Validate answers what a code would grant without consuming it. It is
// unauthenticated so prospective users can check a link before signing
// up.
func (h *InviteHandler) Validate(w http.ResponseWriter, r *http.Request) {
	code := apiContext.Param(r, "code")

	v, err := h.inviteSvc.Validate(code)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	resp := map[string]any{
		"invite_type": v.Invite.Type,
		"role":        v.Invite.Role,
		"expires_at":  v.Invite.ExpiresAt,
	}
	if v.Organization != nil {
		resp["organization"] = map[string]any{
			"id":   v.Organization.ID,
			"name": v.Organization.Name,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Accept consumes an invite on behalf of an existing, authenticated
// user.
func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	code := apiContext.Param(r, "code")

	invite, err := h.inviteSvc.Consume(code, user)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	orgID := ""
	if invite.OrganizationID != nil {
		orgID = *invite.OrganizationID
	}
	h.audit.Log(user.ID, orgID, "invite.consumed", "invite", invite.ID, nil)

	writeJSON(w, http.StatusOK, invite)
}

func (h *InviteHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	code := apiContext.Param(r, "code")

	if err := h.inviteSvc.Revoke(code, user); err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateSiteAdmin issues an invite that grants the global admin flag.
func (h *InviteHandler) CreateSiteAdmin(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	invite, err := h.inviteSvc.CreateSiteAdminInvite(user)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	h.audit.Log(user.ID, "", "invite.site_admin_created", "invite", invite.ID, nil)

	writeJSON(w, http.StatusCreated, invite)
}

func (h *InviteHandler) ListSiteAdmin(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	list, err := h.inviteSvc.ListSiteAdminInvites(user)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"invites": list})
}
