package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/zatekoja/teleconsult/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/teleconsult/pkg/errors"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondWithAppError maps service errors onto HTTP statuses. Messages of
// internal failures are not exposed.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("unhandled error")
		respondWithJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  string(apperrors.ErrorTypeInternal),
		})
		return
	}

	status := statusForType(appErr.Type)
	message := appErr.Message
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("code", string(appErr.Type)).Msg("request failed")
		if appErr.Type == apperrors.ErrorTypeInternal {
			message = "internal server error"
		}
	}

	respondWithJSON(w, status, ErrorResponse{Error: message, Code: string(appErr.Type)})
}

func statusForType(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.ErrorTypeForbidden, apperrors.ErrorTypeProfileRequired:
		return http.StatusForbidden
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid request payload",
			Code:  string(apperrors.ErrorTypeInvalidRequest),
		})
		return false
	}
	return true
}

// parseIDParam reads a positive int64 path value
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid " + name + ": must be a positive integer",
			Code:  string(apperrors.ErrorTypeInvalidRequest),
		})
		return 0, false
	}
	return id, true
}
