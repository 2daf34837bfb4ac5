package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/zatekoja/teleconsult/internal/domain/entities"
)

// ErrStatusChanged is returned by TransitionStatus when the appointment is no
// longer in the expected source status.
var ErrStatusChanged = errors.New("appointment status changed concurrently")

// AppointmentRepository defines the interface for appointment data operations
type AppointmentRepository interface {
	// WithDoctorLock runs fn while holding exclusive booking rights for the
	// doctor. Reads and writes made through the repository handed to fn commit
	// together when fn returns nil and are discarded otherwise.
	WithDoctorLock(ctx context.Context, doctorID int64, fn func(ctx context.Context, repo AppointmentRepository) error) error

	// Create persists a new appointment and assigns its ID
	Create(ctx context.Context, appointment *entities.Appointment) error

	// GetByID retrieves an appointment by ID
	GetByID(ctx context.Context, id int64) (*entities.Appointment, error)

	// FindConflicting returns the doctor's SCHEDULED appointments overlapping
	// the half-open window [windowStart, windowEnd)
	FindConflicting(ctx context.Context, doctorID int64, windowStart, windowEnd time.Time) ([]*entities.Appointment, error)

	// ListByDoctor retrieves a doctor's appointments, newest first
	ListByDoctor(ctx context.Context, doctorID int64) ([]*entities.Appointment, error)

	// ListByPatient retrieves a patient's appointments, newest first
	ListByPatient(ctx context.Context, patientID int64) ([]*entities.Appointment, error)

	// TransitionStatus moves an appointment from one status to another and
	// optionally overwrites its end time. Returns ErrStatusChanged when the
	// stored status is not from.
	TransitionStatus(ctx context.Context, id int64, from, to entities.AppointmentStatus, endTime *time.Time) (*entities.Appointment, error)
}
