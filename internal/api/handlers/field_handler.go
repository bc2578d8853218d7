package handlers

import (
	"encoding/json"
	"net/http"

	apiContext "redbud/internal/api/context"
	"redbud/internal/engine/fields"
	"redbud/internal/engine/permissions"
	"redbud/internal/pkg/errors"
	"redbud/internal/platform/audit"
)

type FieldHandler struct {
	fieldSvc *fields.Service
	perms    *permissions.Evaluator
	audit    *audit.Logger
}

func NewFieldHandler(fieldSvc *fields.Service, perms *permissions.Evaluator, auditLog *audit.Logger) *FieldHandler {
	return &FieldHandler{fieldSvc: fieldSvc, perms: perms, audit: auditLog}
}

type CreateFieldRequest struct {
	ProjectID    *string  `json:"project_id"`
	Name         string   `json:"field_name"`
	Type         string   `json:"field_type"`
	Required     bool     `json:"required"`
	DisplayOrder int      `json:"display_order"`
	MinLength    *int     `json:"min_length"`
	MaxLength    *int     `json:"max_length"`
	Pattern      string   `json:"pattern"`
	MinValue     *float64 `json:"min_value"`
	MaxValue     *float64 `json:"max_value"`
	Choices      []string `json:"choices"`
}

func (h *FieldHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")

	if err := h.perms.RequireManage(user, orgID); err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	var req CreateFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	scope := fields.Scope{OrganizationID: orgID, ProjectID: req.ProjectID}
	def, err := h.fieldSvc.CreateDefinition(scope, fields.CreateDefinitionParams{
		Name:         req.Name,
		Type:         fields.FieldType(req.Type),
		Required:     req.Required,
		DisplayOrder: req.DisplayOrder,
		MinLength:    req.MinLength,
		MaxLength:    req.MaxLength,
		Pattern:      req.Pattern,
		MinValue:     req.MinValue,
		MaxValue:     req.MaxValue,
		Choices:      req.Choices,
		CreatedBy:    user.ID,
	})
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	h.audit.Log(user.ID, orgID, "field.created", "field_definition", def.ID, map[string]any{
		"field_name": def.Name,
		"field_type": string(def.Type),
	})

	writeJSON(w, http.StatusCreated, def)
}

// List returns the definitions visible in a scope: organization-wide
// ones plus, when project_id is given, that project's.
func (h *FieldHandler) List(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	orgID := apiContext.Param(r, "org_id")

	if err := h.perms.RequireMember(user, orgID); err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	scope := fields.Scope{OrganizationID: orgID}
	if pid := r.URL.Query().Get("project_id"); pid != "" {
		scope.ProjectID = &pid
	}

	defs, err := h.fieldSvc.ListDefinitions(scope, false)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"fields": defs})
}

func (h *FieldHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	fieldID := apiContext.Param(r, "field_id")

	def, err := h.fieldSvc.GetDefinition(fieldID)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	if err := h.perms.RequireMember(user, def.OrganizationID); err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, def)
}

type UpdateFieldRequest struct {
	Name         *string  `json:"field_name"`
	Type         *string  `json:"field_type"`
	Required     *bool    `json:"required"`
	DisplayOrder *int     `json:"display_order"`
	MinLength    *int     `json:"min_length"`
	MaxLength    *int     `json:"max_length"`
	Pattern      *string  `json:"pattern"`
	MinValue     *float64 `json:"min_value"`
	MaxValue     *float64 `json:"max_value"`
	Choices      []string `json:"choices"`
}

func (h *FieldHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	fieldID := apiContext.Param(r, "field_id")

	def, err := h.fieldSvc.GetDefinition(fieldID)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	if err := h.perms.RequireManage(user, def.OrganizationID); err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	var req UpdateFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	patch := fields.DefinitionPatch{
		Name:         req.Name,
		Required:     req.Required,
		DisplayOrder: req.DisplayOrder,
		MinLength:    req.MinLength,
		MaxLength:    req.MaxLength,
		Pattern:      req.Pattern,
		MinValue:     req.MinValue,
		MaxValue:     req.MaxValue,
		Choices:      req.Choices,
	}
	if req.Type != nil {
		t := fields.FieldType(*req.Type)
		patch.Type = &t
	}

	updated, err := h.fieldSvc.UpdateDefinition(fieldID, patch)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	h.audit.Log(user.ID, updated.OrganizationID, "field.updated", "field_definition", updated.ID, nil)

	writeJSON(w, http.StatusOK, updated)
}

func (h *FieldHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)
	fieldID := apiContext.Param(r, "field_id")

	def, err := h.fieldSvc.GetDefinition(fieldID)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	if err := h.perms.RequireManage(user, def.OrganizationID); err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	if err := h.fieldSvc.SoftDeleteDefinition(fieldID); err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	h.audit.Log(user.ID, def.OrganizationID, "field.deleted", "field_definition", fieldID, nil)

	w.WriteHeader(http.StatusNoContent)
}
