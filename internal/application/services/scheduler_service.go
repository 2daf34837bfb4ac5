package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/domain/providers"
	"github.com/zatekoja/teleconsult/internal/domain/repositories"
	"github.com/zatekoja/teleconsult/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/teleconsult/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const (
	msgAuthenticationRequired = "Authentication required."
	msgPatientProfileBooking  = "Patient profile required for booking."
	msgDoctorNotFound         = "Doctor not found."
	msgLeadTime               = "Appointments must be booked at least 1 hour in advance."
	msgDoctorUnavailable      = "Doctor is not available at the requested time. Please check their schedule."
	msgAppointmentNotFound    = "Appointment not found."
	msgCancelForbidden        = "You do not have permission to cancel this appointment."
	msgCompleteForbidden      = "Only the assigned doctor can mark this appointment as complete."
	msgDoctorProfileNotFound  = "Doctor profile not found."
	msgPatientProfileNotFound = "Patient profile not found."
)

// SchedulerService books tele-consultations and drives their lifecycle
type SchedulerService struct {
	appointments repositories.AppointmentRepository
	directory    repositories.DirectoryRepository
	meetings     providers.MeetingRoomProvider
	notifier     providers.Notifier
	events       providers.EventPublisher
	metrics      *observability.Metrics
	now          func() time.Time
}

// NewSchedulerService creates a new scheduler service
func NewSchedulerService(
	appointments repositories.AppointmentRepository,
	directory repositories.DirectoryRepository,
	meetings providers.MeetingRoomProvider,
	notifier providers.Notifier,
) *SchedulerService {
	return &SchedulerService{
		appointments: appointments,
		directory:    directory,
		meetings:     meetings,
		notifier:     notifier,
		now:          time.Now,
	}
}

// SetEventPublisher enables appointment lifecycle events
func (s *SchedulerService) SetEventPublisher(events providers.EventPublisher) {
	s.events = events
}

// SetMetrics enables booking and transition counters
func (s *SchedulerService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// SetClock overrides the time source
func (s *SchedulerService) SetClock(now func() time.Time) {
	s.now = now
}

// BookAppointment books a 60 minute slot with a doctor for the calling patient
func (s *SchedulerService) BookAppointment(ctx context.Context, identity entities.Identity, req entities.BookingRequest) (*entities.Appointment, error) {
	ctx, span := observability.StartSpan(ctx, "SchedulerService.BookAppointment")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.Int64("doctor_id", req.DoctorID))

	if !identity.IsAuthenticated() {
		return nil, apperrors.NewUnauthenticatedError(msgAuthenticationRequired)
	}

	patient, err := s.directory.FindPatientByUserID(ctx, identity.UserID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewProfileRequiredError(msgPatientProfileBooking)
		}
		observability.RecordError(span, err)
		return nil, err
	}

	doctor, err := s.directory.FindDoctorByID(ctx, req.DoctorID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewNotFoundError(msgDoctorNotFound)
		}
		observability.RecordError(span, err)
		return nil, err
	}

	now := s.now()
	startTime := req.StartTime
	endTime := startTime.Add(entities.SlotDuration)

	if startTime.Before(now.Add(entities.MinBookingLeadTime)) {
		observability.RecordBooking(ctx, s.metrics, "rejected")
		return nil, apperrors.NewInvalidRequestError(msgLeadTime)
	}

	appointment := &entities.Appointment{
		DoctorID:              doctor.ID,
		PatientID:             patient.ID,
		StartTime:             startTime,
		EndTime:               endTime,
		PurposeOfConsultation: req.PurposeOfConsultation,
		InitialSymptoms:       req.InitialSymptoms,
		Status:                entities.AppointmentStatusScheduled,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	err = s.appointments.WithDoctorLock(ctx, doctor.ID, func(ctx context.Context, repo repositories.AppointmentRepository) error {
		windowStart, windowEnd := entities.ConflictWindow(startTime)
		conflicts, err := repo.FindConflicting(ctx, doctor.ID, windowStart, windowEnd)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return apperrors.NewInvalidRequestError(msgDoctorUnavailable)
		}

		appointment.MeetingLink = s.meetings.AllocateMeetingLink(ctx)
		return repo.Create(ctx, appointment)
	})
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeInvalidRequest) {
			observability.RecordBooking(ctx, s.metrics, "conflict")
			return nil, err
		}
		observability.RecordBooking(ctx, s.metrics, "error")
		observability.RecordError(span, err)
		return nil, err
	}

	observability.RecordBooking(ctx, s.metrics, "booked")
	observability.LoggerFromContext(ctx).Info().
		Int64("appointment_id", appointment.ID).
		Int64("doctor_id", doctor.ID).
		Int64("patient_id", patient.ID).
		Time("start_time", startTime).
		Msg("appointment booked")

	s.publish(ctx, entities.AppointmentEventBooked, appointment)

	s.notifier.Notify(entities.PatientBookingConfirmation{
		AppointmentID:         appointment.ID,
		RecipientEmail:        patient.Email,
		PatientName:           patient.FullName(),
		DoctorName:            doctor.FullName(),
		AppointmentTime:       appointment.StartTime,
		IsVirtual:             true,
		MeetingLink:           appointment.MeetingLink,
		PurposeOfConsultation: appointment.PurposeOfConsultation,
	})
	s.notifier.Notify(entities.DoctorBookingNotice{
		AppointmentID:         appointment.ID,
		RecipientEmail:        doctor.Email,
		DoctorName:            doctor.FullName(),
		PatientFullName:       patient.FullName(),
		AppointmentTime:       appointment.StartTime,
		IsVirtual:             true,
		MeetingLink:           appointment.MeetingLink,
		InitialSymptoms:       appointment.InitialSymptoms,
		PurposeOfConsultation: appointment.PurposeOfConsultation,
	})

	return appointment, nil
}

// ListMyAppointments returns every appointment of the caller's doctor or patient profile, newest first
func (s *SchedulerService) ListMyAppointments(ctx context.Context, identity entities.Identity) ([]*entities.Appointment, error) {
	ctx, span := observability.StartSpan(ctx, "SchedulerService.ListMyAppointments")
	defer span.End()

	if !identity.IsAuthenticated() {
		return nil, apperrors.NewUnauthenticatedError(msgAuthenticationRequired)
	}

	switch kind := identity.ProfileKind(); kind {
	case entities.ProfileKindDoctor:
		doctor, err := s.directory.FindDoctorByUserID(ctx, identity.UserID)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				return nil, apperrors.NewProfileRequiredError(msgDoctorProfileNotFound)
			}
			return nil, err
		}
		return s.appointments.ListByDoctor(ctx, doctor.ID)

	case entities.ProfileKindPatient:
		patient, err := s.directory.FindPatientByUserID(ctx, identity.UserID)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				return nil, apperrors.NewProfileRequiredError(msgPatientProfileNotFound)
			}
			return nil, err
		}
		return s.appointments.ListByPatient(ctx, patient.ID)

	default:
		return nil, apperrors.NewInternalError(fmt.Sprintf("unhandled profile kind %s", kind), nil)
	}
}

// CancelAppointment cancels a scheduled appointment on behalf of its doctor or patient
func (s *SchedulerService) CancelAppointment(ctx context.Context, identity entities.Identity, appointmentID int64) (*entities.Appointment, error) {
	ctx, span := observability.StartSpan(ctx, "SchedulerService.CancelAppointment")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.Int64("appointment_id", appointmentID))

	if !identity.IsAuthenticated() {
		return nil, apperrors.NewUnauthenticatedError(msgAuthenticationRequired)
	}

	appointment, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	parties, err := loadParties(ctx, s.directory, appointment)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if !parties.includes(identity) {
		return nil, apperrors.NewForbiddenError(msgCancelForbidden)
	}

	if appointment.Status.IsTerminal() {
		return nil, alreadyTerminal(appointment.Status)
	}

	updated, err := s.transition(ctx, appointment.ID, entities.AppointmentStatusCancelled, nil)
	if err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Int64("appointment_id", updated.ID).
		Int64("cancelled_by", identity.UserID).
		Msg("appointment cancelled")

	s.publish(ctx, entities.AppointmentEventCancelled, updated)

	cancellingPartyName, ok := parties.nameOf(identity)
	if !ok {
		observability.LoggerFromContext(ctx).Error().
			Int64("appointment_id", updated.ID).
			Int64("user_id", identity.UserID).
			Msg("cancelling user matches neither party, skipping notifications")
		return updated, nil
	}

	s.notifier.Notify(entities.CancellationNotice{
		AppointmentID:       updated.ID,
		Audience:            entities.AudienceDoctor,
		RecipientEmail:      parties.doctor.Email,
		RecipientName:       parties.doctor.FullName(),
		CancellingPartyName: cancellingPartyName,
		AppointmentTime:     updated.StartTime,
		DoctorLastName:      parties.doctor.LastName,
		PatientFullName:     parties.patient.FullName(),
	})
	s.notifier.Notify(entities.CancellationNotice{
		AppointmentID:       updated.ID,
		Audience:            entities.AudiencePatient,
		RecipientEmail:      parties.patient.Email,
		RecipientName:       parties.patient.FullName(),
		CancellingPartyName: cancellingPartyName,
		AppointmentTime:     updated.StartTime,
		DoctorLastName:      parties.doctor.LastName,
		PatientFullName:     parties.patient.FullName(),
	})

	return updated, nil
}

// CompleteAppointment marks a scheduled appointment as completed. Only the
// assigned doctor may do this; the end time becomes the completion time.
func (s *SchedulerService) CompleteAppointment(ctx context.Context, identity entities.Identity, appointmentID int64) (*entities.Appointment, error) {
	ctx, span := observability.StartSpan(ctx, "SchedulerService.CompleteAppointment")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.Int64("appointment_id", appointmentID))

	if !identity.IsAuthenticated() {
		return nil, apperrors.NewUnauthenticatedError(msgAuthenticationRequired)
	}

	appointment, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	doctor, err := s.directory.FindDoctorByUserID(ctx, identity.UserID)
	if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		observability.RecordError(span, err)
		return nil, err
	}
	if doctor == nil || doctor.ID != appointment.DoctorID {
		return nil, apperrors.NewForbiddenError(msgCompleteForbidden)
	}

	if appointment.Status.IsTerminal() {
		return nil, alreadyTerminal(appointment.Status)
	}

	endTime := s.now()
	updated, err := s.transition(ctx, appointment.ID, entities.AppointmentStatusCompleted, &endTime)
	if err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Int64("appointment_id", updated.ID).
		Int64("doctor_id", doctor.ID).
		Msg("appointment completed")

	s.publish(ctx, entities.AppointmentEventCompleted, updated)
	return updated, nil
}

func (s *SchedulerService) getAppointment(ctx context.Context, id int64) (*entities.Appointment, error) {
	appointment, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewNotFoundError(msgAppointmentNotFound)
		}
		return nil, err
	}
	return appointment, nil
}

// transition moves a SCHEDULED appointment to status to. Losing a race to a
// concurrent transition reports the status that won.
func (s *SchedulerService) transition(ctx context.Context, id int64, to entities.AppointmentStatus, endTime *time.Time) (*entities.Appointment, error) {
	updated, err := s.appointments.TransitionStatus(ctx, id, entities.AppointmentStatusScheduled, to, endTime)
	if errors.Is(err, repositories.ErrStatusChanged) {
		observability.RecordTransition(ctx, s.metrics, string(to), "stale")
		current, getErr := s.appointments.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, alreadyTerminal(current.Status)
	}
	if err != nil {
		observability.RecordTransition(ctx, s.metrics, string(to), "error")
		return nil, err
	}

	observability.RecordTransition(ctx, s.metrics, string(to), "ok")
	return updated, nil
}

func (s *SchedulerService) publish(ctx context.Context, eventType entities.AppointmentEventType, appointment *entities.Appointment) {
	publishAppointmentEvent(ctx, s.events, entities.NewAppointmentEvent(eventType, appointment, s.now()))
}

// publishAppointmentEvent fans an event out to the doctor and patient
// channels. Failures are logged and never reach the caller.
func publishAppointmentEvent(ctx context.Context, events providers.EventPublisher, event *entities.AppointmentEvent) {
	if events == nil {
		return
	}

	for _, channel := range []string{
		providers.GetDoctorChannel(event.DoctorID),
		providers.GetPatientChannel(event.PatientID),
	} {
		if err := events.Publish(ctx, channel, event); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("channel", channel).
				Int64("appointment_id", event.AppointmentID).
				Msg("failed to publish appointment event")
		}
	}
}

func alreadyTerminal(status entities.AppointmentStatus) error {
	return apperrors.NewInvalidRequestError(fmt.Sprintf("Appointment is already %s.", strings.ToLower(string(status))))
}

// appointmentParties holds the directory profiles behind an appointment
type appointmentParties struct {
	doctor  *entities.Doctor
	patient *entities.Patient
}

func loadParties(ctx context.Context, directory repositories.DirectoryRepository, appointment *entities.Appointment) (*appointmentParties, error) {
	doctor, err := directory.FindDoctorByID(ctx, appointment.DoctorID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load appointment doctor", err)
	}
	patient, err := directory.FindPatientByID(ctx, appointment.PatientID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load appointment patient", err)
	}
	return &appointmentParties{doctor: doctor, patient: patient}, nil
}

func (p *appointmentParties) includes(identity entities.Identity) bool {
	_, ok := p.nameOf(identity)
	return ok
}

func (p *appointmentParties) nameOf(identity entities.Identity) (string, bool) {
	switch identity.UserID {
	case p.doctor.UserID:
		return p.doctor.FullName(), true
	case p.patient.UserID:
		return p.patient.FullName(), true
	default:
		return "", false
	}
}
