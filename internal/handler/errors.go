package handler

import (
	"log/slog"
	"net/http"

	"github.com/dolaglobo/mmf-ledger/internal/errors"
	u "github.com/dolaglobo/mmf-ledger/internal/utils"
)

// writeServiceError maps the domain error taxonomy onto HTTP statuses. Shared
// by every handler so the mapping stays in one place.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, operation string) {
	switch {
	case errors.IsNotFound(err):
		u.WriteError(w, http.StatusNotFound, err.Error(), "")
	case errors.IsValidationError(err):
		u.WriteError(w, http.StatusBadRequest, "validation error", err.Error())
	case errors.IsInsufficientFunds(err):
		u.WriteError(w, http.StatusBadRequest, "insufficient balance", "")
	case errors.IsAlreadyExists(err):
		u.WriteError(w, http.StatusConflict, err.Error(), "")
	case errors.IsConflict(err):
		u.WriteError(w, http.StatusConflict, "transition already applied", "")
	case errors.IsInvalidTransition(err):
		u.WriteError(w, http.StatusUnprocessableEntity, "invalid status transition", err.Error())
	case errors.IsUnauthorized(err):
		u.WriteError(w, http.StatusForbidden, "not allowed", "")
	default:
		logger.Error("internal server error during "+operation, "error", err.Error())
		u.WriteError(w, http.StatusInternalServerError, "internal server error", "")
	}
}
