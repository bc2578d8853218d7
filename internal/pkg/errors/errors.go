package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"redbud/internal/engine/fields"
	"redbud/internal/engine/invites"
	"redbud/internal/engine/permissions"
	"redbud/internal/engine/records"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeFieldLocked       = "FIELD_LOCKED"
	ErrCodeInviteGone        = "INVITE_GONE"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}

// WriteDomainError translates engine errors into the HTTP envelope.
// Validation failures carry the per-field batch in details; everything
// unrecognized becomes a 500 without leaking its message.
func WriteDomainError(w http.ResponseWriter, err error) {
	var verrs fields.ValidationErrors
	if errors.As(err, &verrs) {
		WriteError(w, http.StatusUnprocessableEntity, ErrCodeValidationFailed, "field validation failed", verrs)
		return
	}
	var ferr *fields.FieldError
	if errors.As(err, &ferr) {
		WriteError(w, http.StatusUnprocessableEntity, ErrCodeValidationFailed, "field validation failed", fields.ValidationErrors{ferr})
		return
	}

	switch {
	case errors.Is(err, permissions.ErrForbidden):
		WriteError(w, http.StatusForbidden, ErrCodeForbidden, "insufficient permissions", nil)
	case errors.Is(err, fields.ErrDuplicateName):
		WriteError(w, http.StatusConflict, ErrCodeConflict, "a field with this name already exists", nil)
	case errors.Is(err, fields.ErrFieldLocked):
		WriteError(w, http.StatusConflict, ErrCodeFieldLocked, "field type cannot change while values exist", nil)
	case errors.Is(err, fields.ErrScopeMismatch):
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
	case errors.Is(err, invites.ErrExpired):
		WriteError(w, http.StatusGone, ErrCodeInviteGone, "invite has expired", nil)
	case errors.Is(err, invites.ErrAlreadyUsed):
		WriteError(w, http.StatusGone, ErrCodeInviteGone, "invite has already been used", nil)
	case errors.Is(err, invites.ErrInvalidRole):
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
	case errors.Is(err, invites.ErrNotFound),
		errors.Is(err, invites.ErrOrgNotFound),
		errors.Is(err, fields.ErrNotFound),
		errors.Is(err, records.ErrNotFound):
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, "resource not found", nil)
	case errors.Is(err, records.ErrMissingTitle),
		errors.Is(err, records.ErrMissingCode),
		errors.Is(err, records.ErrMissingGenus),
		errors.Is(err, records.ErrMissingName):
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "internal server error", nil)
	}
}
