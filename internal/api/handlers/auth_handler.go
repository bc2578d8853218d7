package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	apiContext "redbud/internal/api/context"
	"redbud/internal/engine/invites"
	"redbud/internal/pkg/errors"
	"redbud/internal/pkg/validator"
	"redbud/internal/platform/auth"
	"redbud/internal/platform/models"
	"redbud/internal/platform/repositories"
)

type AuthHandler struct {
	userRepo  *repositories.UserRepository
	orgRepo   *repositories.OrganizationRepository
	inviteSvc *invites.Service
	tokenSvc  *auth.TokenService
}

func NewAuthHandler(userRepo *repositories.UserRepository, orgRepo *repositories.OrganizationRepository, inviteSvc *invites.Service, tokenSvc *auth.TokenService) *AuthHandler {
	return &AuthHandler{
		userRepo:  userRepo,
		orgRepo:   orgRepo,
		inviteSvc: inviteSvc,
		tokenSvc:  tokenSvc,
	}
}

type SignupRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	InviteCode string `json:"invite_code,omitempty"`
}

type AuthResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

// Signup registers a user. An invite code is optional: without one the
// account starts with no memberships. When a code is supplied, user
// creation and invite consumption commit in one transaction, so a lost
// invite race leaves no orphaned account.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	email, err := validator.Email(req.Email)
	if err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	if err := validator.Password(req.Password); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	existing, err := h.userRepo.GetByEmail(email)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if existing != nil {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "User already exists", nil)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to hash password", nil)
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hashed),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tx, err := h.orgRepo.BeginTx()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	defer tx.Rollback()

	if err := h.userRepo.CreateTx(tx, user); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create user", nil)
		return
	}

	if req.InviteCode != "" {
		invite, err := h.inviteSvc.ConsumeTx(tx, req.InviteCode, user)
		if err != nil {
			errors.WriteDomainError(w, err)
			return
		}
		if invite.Type == models.InviteTypeSiteAdmin {
			user.IsSiteAdmin = true
		}
	}

	if err := tx.Commit(); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	token, err := h.tokenSvc.GenerateAccessToken(user.ID, user.Email, user.IsSiteAdmin)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate token", nil)
		return
	}

	log.Info().Str("user_id", user.ID).Msg("user_registered")

	writeJSON(w, http.StatusCreated, AuthResponse{User: user, AccessToken: token})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	email, err := validator.Email(req.Email)
	if err != nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid credentials", nil)
		return
	}

	user, err := h.userRepo.GetByEmail(email)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if user == nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid credentials", nil)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := h.tokenSvc.GenerateAccessToken(user.ID, user.Email, user.IsSiteAdmin)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate token", nil)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: user, AccessToken: token})
}

// Me returns the authenticated user and the organizations they belong to.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := apiContext.CurrentUser(r)

	orgs, err := h.orgRepo.ListByMember(user.ID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":          user,
		"organizations": orgs,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
