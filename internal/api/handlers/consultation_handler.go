package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/zatekoja/teleconsult/internal/api/middleware"
	"github.com/zatekoja/teleconsult/internal/domain/entities"
	apperrors "github.com/zatekoja/teleconsult/pkg/errors"
)

// ConsultationService defines the consultation note operations exposed over HTTP
type ConsultationService interface {
	CreateConsultation(ctx context.Context, identity entities.Identity, input entities.ConsultationInput) (*entities.Consultation, error)
	GetByAppointmentID(ctx context.Context, identity entities.Identity, appointmentID int64) (*entities.Consultation, error)
	PatientHistory(ctx context.Context, identity entities.Identity, patientID *int64) ([]*entities.Consultation, error)
}

// ConsultationHandler handles consultation note requests
type ConsultationHandler struct {
	service ConsultationService
}

// NewConsultationHandler creates a new consultation handler
func NewConsultationHandler(service ConsultationService) *ConsultationHandler {
	return &ConsultationHandler{service: service}
}

// CreateConsultation handles POST /api/consultations
func (h *ConsultationHandler) CreateConsultation(w http.ResponseWriter, r *http.Request) {
	var input entities.ConsultationInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.AppointmentID <= 0 {
		respondWithAppError(w, r, apperrors.NewInvalidRequestError("appointment_id is required"))
		return
	}

	consultation, err := h.service.CreateConsultation(r.Context(), middleware.IdentityFromContext(r.Context()), input)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, consultation)
}

// GetByAppointment handles GET /api/consultations/appointment/{appointmentId}
func (h *ConsultationHandler) GetByAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, ok := parseIDParam(w, r, "appointmentId")
	if !ok {
		return
	}

	consultation, err := h.service.GetByAppointmentID(r.Context(), middleware.IdentityFromContext(r.Context()), appointmentID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, consultation)
}

// PatientHistory handles GET /api/consultations/history
func (h *ConsultationHandler) PatientHistory(w http.ResponseWriter, r *http.Request) {
	var patientID *int64
	if raw := r.URL.Query().Get("patient_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondWithAppError(w, r, apperrors.NewInvalidRequestError("patient_id must be a positive integer"))
			return
		}
		patientID = &id
	}

	history, err := h.service.PatientHistory(r.Context(), middleware.IdentityFromContext(r.Context()), patientID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"consultations": history,
		"count":         len(history),
	})
}
