package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/poolcosts/backend/src/logger"
	"github.com/username/poolcosts/backend/src/model"
	"github.com/username/poolcosts/backend/src/paperless"
	"github.com/username/poolcosts/backend/src/security/validation"
	"github.com/username/poolcosts/backend/src/services"
	"github.com/username/poolcosts/backend/src/utils"
)

// sendServiceError maps service and repository errors to HTTP status codes.
func sendServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	ctxLogger := logger.FromContext(r.Context())
	switch {
	case errors.Is(err, model.ErrNotFound):
		utils.SendJSONError(w, "not found", http.StatusNotFound)
	case errors.Is(err, validation.ErrValidationFailed), errors.Is(err, services.ErrInvalidPatch):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrSyncInProgress):
		utils.SendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, paperless.ErrTagNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	default:
		var statusErr *paperless.StatusError
		if errors.As(err, &statusErr) {
			ctxLogger.Error("Paperless request failed", "action", action, "status", statusErr.StatusCode, "error", err)
			utils.SendJSONError(w, "Paperless request failed", http.StatusBadGateway)
			return
		}
		logger.ErrorFromContext(r.Context(), "Request failed", "action", action, "error", err)
		utils.SendJSONError(w, "Internal server error while "+action, http.StatusInternalServerError)
	}
}

// idParam reads the {id} URL parameter. It writes a 400 and returns false when invalid.
func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		utils.SendJSONError(w, "Invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// yearParam reads the optional ?year= query parameter.
func yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, err := validation.ValidateYearString(r.URL.Query().Get("year"))
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return year, true
}
