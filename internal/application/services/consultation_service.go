package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/domain/providers"
	"github.com/zatekoja/teleconsult/internal/domain/repositories"
	"github.com/zatekoja/teleconsult/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/teleconsult/pkg/errors"
)

const (
	msgNotesForbidden       = "You are not authorized to create notes for this consultation."
	msgNotesExist           = "Consultation notes already exist for this appointment."
	msgNotesCancelled       = "Cannot create notes for a cancelled appointment."
	msgNotesReadForbidden   = "You are not authorized to view these consultation notes."
	msgHistoryForbidden     = "You are not authorized to view this patient's history."
	msgPatientNotFound      = "Patient not found."
	msgNotesNotFoundPattern = "Consultation notes not found for appointment ID: %d"
)

// ConsultationService records the notes a doctor writes for an appointment
type ConsultationService struct {
	consultations repositories.ConsultationRepository
	appointments  repositories.AppointmentRepository
	directory     repositories.DirectoryRepository
	events        providers.EventPublisher
	now           func() time.Time
}

// NewConsultationService creates a new consultation service
func NewConsultationService(
	consultations repositories.ConsultationRepository,
	appointments repositories.AppointmentRepository,
	directory repositories.DirectoryRepository,
) *ConsultationService {
	return &ConsultationService{
		consultations: consultations,
		appointments:  appointments,
		directory:     directory,
		now:           time.Now,
	}
}

// SetEventPublisher enables appointment.completed events for notes that close an appointment
func (s *ConsultationService) SetEventPublisher(events providers.EventPublisher) {
	s.events = events
}

// SetClock overrides the time source
func (s *ConsultationService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateConsultation stores notes for an appointment and completes it when still scheduled
func (s *ConsultationService) CreateConsultation(ctx context.Context, identity entities.Identity, input entities.ConsultationInput) (*entities.Consultation, error) {
	ctx, span := observability.StartSpan(ctx, "ConsultationService.CreateConsultation")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.Int64("appointment_id", input.AppointmentID))

	if !identity.IsAuthenticated() {
		return nil, apperrors.NewUnauthenticatedError(msgAuthenticationRequired)
	}

	appointment, err := s.appointments.GetByID(ctx, input.AppointmentID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewNotFoundError(msgAppointmentNotFound)
		}
		return nil, err
	}

	doctor, err := s.directory.FindDoctorByUserID(ctx, identity.UserID)
	if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, err
	}
	if doctor == nil || doctor.ID != appointment.DoctorID {
		return nil, apperrors.NewForbiddenError(msgNotesForbidden)
	}

	if appointment.Status == entities.AppointmentStatusCancelled {
		return nil, apperrors.NewInvalidRequestError(msgNotesCancelled)
	}

	if _, err := s.consultations.GetByAppointmentID(ctx, appointment.ID); err == nil {
		return nil, apperrors.NewInvalidRequestError(msgNotesExist)
	} else if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, err
	}

	now := s.now()
	consultation := &entities.Consultation{
		AppointmentID:     appointment.ID,
		ConsultationDate:  now,
		SubjectiveNotes:   input.SubjectiveNotes,
		ObjectiveFindings: input.ObjectiveFindings,
		Assessment:        input.Assessment,
		Plan:              input.Plan,
		CreatedAt:         now,
	}

	completed, err := s.consultations.CreateAndComplete(ctx, consultation, now)
	if err != nil {
		if errors.Is(err, repositories.ErrAppointmentCancelled) {
			return nil, apperrors.NewInvalidRequestError(msgNotesCancelled)
		}
		if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			return nil, apperrors.NewInvalidRequestError(msgNotesExist)
		}
		observability.RecordError(span, err)
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Int64("consultation_id", consultation.ID).
		Int64("appointment_id", appointment.ID).
		Bool("completed_appointment", completed).
		Msg("consultation notes created")

	if completed {
		appointment.Status = entities.AppointmentStatusCompleted
		appointment.EndTime = now
		appointment.UpdatedAt = now
		publishAppointmentEvent(ctx, s.events, entities.NewAppointmentEvent(entities.AppointmentEventCompleted, appointment, now))
	}

	return consultation, nil
}

// GetByAppointmentID returns the notes of an appointment to one of its parties
func (s *ConsultationService) GetByAppointmentID(ctx context.Context, identity entities.Identity, appointmentID int64) (*entities.Consultation, error) {
	ctx, span := observability.StartSpan(ctx, "ConsultationService.GetByAppointmentID")
	defer span.End()

	if !identity.IsAuthenticated() {
		return nil, apperrors.NewUnauthenticatedError(msgAuthenticationRequired)
	}

	notFound := apperrors.NewNotFoundError(fmt.Sprintf(msgNotesNotFoundPattern, appointmentID))

	appointment, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, notFound
		}
		return nil, err
	}

	parties, err := loadParties(ctx, s.directory, appointment)
	if err != nil {
		return nil, err
	}
	if !parties.includes(identity) {
		return nil, apperrors.NewForbiddenError(msgNotesReadForbidden)
	}

	consultation, err := s.consultations.GetByAppointmentID(ctx, appointmentID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, notFound
		}
		return nil, err
	}
	return consultation, nil
}

// PatientHistory lists a patient's consultation notes, newest first. A nil
// patientID selects the caller's own patient profile.
func (s *ConsultationService) PatientHistory(ctx context.Context, identity entities.Identity, patientID *int64) ([]*entities.Consultation, error) {
	ctx, span := observability.StartSpan(ctx, "ConsultationService.PatientHistory")
	defer span.End()

	if !identity.IsAuthenticated() {
		return nil, apperrors.NewUnauthenticatedError(msgAuthenticationRequired)
	}

	if patientID == nil {
		patient, err := s.directory.FindPatientByUserID(ctx, identity.UserID)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				return nil, apperrors.NewProfileRequiredError(msgPatientProfileNotFound)
			}
			return nil, err
		}
		return s.consultations.ListByPatient(ctx, patient.ID)
	}

	patient, err := s.directory.FindPatientByID(ctx, *patientID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewNotFoundError(msgPatientNotFound)
		}
		return nil, err
	}

	if !identity.HasRole(entities.RoleDoctor) && patient.UserID != identity.UserID {
		return nil, apperrors.NewForbiddenError(msgHistoryForbidden)
	}

	return s.consultations.ListByPatient(ctx, patient.ID)
}
