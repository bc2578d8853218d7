package handlers

import (
	"net/http"

	apiContext "redbud/internal/api/context"
	"redbud/internal/engine/permissions"
	"redbud/internal/pkg/errors"
	"redbud/internal/platform/repositories"
)

type UserHandler struct {
	userRepo *repositories.UserRepository
	perms    *permissions.Evaluator
}

func NewUserHandler(userRepo *repositories.UserRepository, perms *permissions.Evaluator) *UserHandler {
	return &UserHandler{userRepo: userRepo, perms: perms}
}

// List returns every registered user with their active organization
// count. Site admins only.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	if err := h.perms.RequireSiteAdmin(user); err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	users, err := h.userRepo.ListWithOrgCounts()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}
