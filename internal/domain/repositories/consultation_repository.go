package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/zatekoja/teleconsult/internal/domain/entities"
)

// ErrAppointmentCancelled is returned by CreateAndComplete when the
// appointment is CANCELLED at the time of the write. Nothing is stored.
var ErrAppointmentCancelled = errors.New("appointment is cancelled")

// ConsultationRepository defines the interface for consultation notes
type ConsultationRepository interface {
	// CreateAndComplete stores the notes and, in the same transaction, moves a
	// SCHEDULED appointment to COMPLETED with end time completedAt. It reports
	// whether the appointment changed state. The appointment row is locked for
	// the duration of the write. A missing appointment fails with a NOT_FOUND
	// AppError, a cancelled one with ErrAppointmentCancelled, and a second set of
	// notes for the same appointment with a CONFLICT AppError.
	CreateAndComplete(ctx context.Context, consultation *entities.Consultation, completedAt time.Time) (bool, error)

	// GetByAppointmentID retrieves the notes of an appointment
	GetByAppointmentID(ctx context.Context, appointmentID int64) (*entities.Consultation, error)

	// ListByPatient retrieves a patient's notes ordered by consultation date, newest first
	ListByPatient(ctx context.Context, patientID int64) ([]*entities.Consultation, error)
}
