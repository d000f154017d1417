package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clouddrive/clouddrive-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notAuthenticated *domain.ErrNotAuthenticated
	var unauthorized *domain.ErrUnauthorized
	var forbidden *domain.ErrForbidden
	var invalidTransition *domain.ErrInvalidTransition
	var alreadyPending *domain.ErrRequestAlreadyPending
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var storeUnavailable *domain.ErrStoreUnavailable

	switch {
	case errors.As(err, &notAuthenticated):
		logger.Warn("not authenticated", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &invalidTransition):
		logger.Debug("invalid transition",
			zap.String("event", invalidTransition.Event),
			zap.String("from", string(invalidTransition.From)),
		)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &alreadyPending):
		logger.Debug("request already pending", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &storeUnavailable):
		logger.Error("profile store unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
