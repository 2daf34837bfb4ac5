package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/teleconsult/internal/api/middleware"
	"github.com/zatekoja/teleconsult/internal/domain/entities"
	apperrors "github.com/zatekoja/teleconsult/pkg/errors"
)

// SchedulerService defines the appointment operations exposed over HTTP
type SchedulerService interface {
	BookAppointment(ctx context.Context, identity entities.Identity, req entities.BookingRequest) (*entities.Appointment, error)
	ListMyAppointments(ctx context.Context, identity entities.Identity) ([]*entities.Appointment, error)
	CancelAppointment(ctx context.Context, identity entities.Identity, appointmentID int64) (*entities.Appointment, error)
	CompleteAppointment(ctx context.Context, identity entities.Identity, appointmentID int64) (*entities.Appointment, error)
}

// AppointmentHandler handles appointment requests
type AppointmentHandler struct {
	service SchedulerService
}

// NewAppointmentHandler creates a new appointment handler
func NewAppointmentHandler(service SchedulerService) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
	}
}

// BookAppointment handles POST /api/appointments
func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req entities.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.DoctorID <= 0 {
		respondWithAppError(w, r, apperrors.NewInvalidRequestError("doctor_id is required"))
		return
	}
	if req.StartTime.IsZero() {
		respondWithAppError(w, r, apperrors.NewInvalidRequestError("start_time is required (RFC3339)"))
		return
	}

	appointment, err := h.service.BookAppointment(r.Context(), middleware.IdentityFromContext(r.Context()), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, appointment)
}

// ListMyAppointments handles GET /api/appointments
func (h *AppointmentHandler) ListMyAppointments(w http.ResponseWriter, r *http.Request) {
	appointments, err := h.service.ListMyAppointments(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": appointments,
		"count":        len(appointments),
	})
}

// CancelAppointment handles PUT /api/appointments/cancel/{id}
func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	appointment, err := h.service.CancelAppointment(r.Context(), middleware.IdentityFromContext(r.Context()), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, appointment)
}

// CompleteAppointment handles PUT /api/appointments/complete/{id}
func (h *AppointmentHandler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	appointment, err := h.service.CompleteAppointment(r.Context(), middleware.IdentityFromContext(r.Context()), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, appointment)
}
