package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/domain/repositories"
	"github.com/zatekoja/teleconsult/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/teleconsult/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/teleconsult/pkg/errors"
)

// bookingLockNamespace occupies the high bits of every per-doctor advisory lock key
const bookingLockNamespace int64 = 0x5ca1 << 48

const bookingLockQuery = "SELECT pg_advisory_xact_lock($1)"

// bookingLockKey maps a doctor ID to its advisory lock key. XOR with a
// constant is one-to-one, so no two doctors ever share a lock.
func bookingLockKey(doctorID int64) int64 {
	return bookingLockNamespace ^ doctorID
}

const appointmentsTable = "appointments"

var appointmentColumns = []interface{}{
	"id", "doctor_id", "patient_id", "start_time", "end_time",
	"meeting_link", "purpose_of_consultation", "initial_symptoms",
	"status", "created_at", "updated_at",
}

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// AppointmentAdapter implements the AppointmentRepository interface
type AppointmentAdapter struct {
	client  *postgres.Client
	q       queryer
	inTx    bool
	dialect goqu.DialectWrapper
	metrics *observability.Metrics
	now     func() time.Time
}

// NewAppointmentAdapter creates a new appointment adapter. metrics may be nil.
func NewAppointmentAdapter(client *postgres.Client, metrics *observability.Metrics) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		client:  client,
		q:       client.DB(),
		dialect: goqu.Dialect("postgres"),
		metrics: metrics,
		now:     time.Now,
	}
}

// WithDoctorLock opens a transaction, takes a transaction-scoped advisory
// lock keyed by the doctor and runs fn against a repository bound to it.
func (a *AppointmentAdapter) WithDoctorLock(ctx context.Context, doctorID int64, fn func(ctx context.Context, repo repositories.AppointmentRepository) error) (err error) {
	if a.inTx {
		if _, err := a.q.ExecContext(ctx, bookingLockQuery, bookingLockKey(doctorID)); err != nil {
			return apperrors.NewInternalError("failed to acquire booking lock", err)
		}
		return fn(ctx, a)
	}

	start := time.Now()
	defer func() {
		observability.RecordDBMetric(ctx, a.metrics, "booking_tx", time.Since(start))
	}()

	tx, err := a.client.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, bookingLockQuery, bookingLockKey(doctorID)); err != nil {
		return apperrors.NewInternalError("failed to acquire booking lock", err)
	}

	txRepo := &AppointmentAdapter{
		client:  a.client,
		q:       tx,
		inTx:    true,
		dialect: a.dialect,
		metrics: a.metrics,
		now:     a.now,
	}
	if err = fn(ctx, txRepo); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit booking", err)
	}
	return nil
}

// Create inserts a new appointment and assigns its ID
func (a *AppointmentAdapter) Create(ctx context.Context, appointment *entities.Appointment) error {
	record := goqu.Record{
		"doctor_id":               appointment.DoctorID,
		"patient_id":              appointment.PatientID,
		"start_time":              appointment.StartTime,
		"end_time":                appointment.EndTime,
		"meeting_link":            appointment.MeetingLink,
		"purpose_of_consultation": appointment.PurposeOfConsultation,
		"initial_symptoms":        appointment.InitialSymptoms,
		"status":                  appointment.Status,
		"created_at":              appointment.CreatedAt,
		"updated_at":              appointment.UpdatedAt,
	}

	query, args, err := a.dialect.Insert(appointmentsTable).
		Rows(record).
		Returning("id").
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if err := a.q.QueryRowContext(ctx, query, args...).Scan(&appointment.ID); err != nil {
		return apperrors.NewInternalError("failed to create appointment", err)
	}
	return nil
}

// GetByID retrieves an appointment by ID
func (a *AppointmentAdapter) GetByID(ctx context.Context, id int64) (*entities.Appointment, error) {
	query, args, err := a.dialect.Select(appointmentColumns...).
		From(appointmentsTable).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointment(a.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %d not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get appointment", err)
	}
	return appointment, nil
}

// FindConflicting returns the doctor's SCHEDULED appointments overlapping [windowStart, windowEnd)
func (a *AppointmentAdapter) FindConflicting(ctx context.Context, doctorID int64, windowStart, windowEnd time.Time) ([]*entities.Appointment, error) {
	ds := a.dialect.Select(appointmentColumns...).
		From(appointmentsTable).
		Where(
			goqu.Ex{
				"doctor_id": doctorID,
				"status":    entities.AppointmentStatusScheduled,
			},
			goqu.C("start_time").Lt(windowEnd),
			goqu.C("end_time").Gt(windowStart),
		).
		Order(goqu.I("start_time").Asc())

	return a.list(ctx, ds, "failed to find conflicting appointments")
}

// ListByDoctor retrieves a doctor's appointments, newest first
func (a *AppointmentAdapter) ListByDoctor(ctx context.Context, doctorID int64) ([]*entities.Appointment, error) {
	ds := a.dialect.Select(appointmentColumns...).
		From(appointmentsTable).
		Where(goqu.Ex{"doctor_id": doctorID}).
		Order(goqu.I("id").Desc())

	return a.list(ctx, ds, "failed to list doctor appointments")
}

// ListByPatient retrieves a patient's appointments, newest first
func (a *AppointmentAdapter) ListByPatient(ctx context.Context, patientID int64) ([]*entities.Appointment, error) {
	ds := a.dialect.Select(appointmentColumns...).
		From(appointmentsTable).
		Where(goqu.Ex{"patient_id": patientID}).
		Order(goqu.I("id").Desc())

	return a.list(ctx, ds, "failed to list patient appointments")
}

// TransitionStatus performs a conditional status update. The row only changes
// when its stored status still equals from.
func (a *AppointmentAdapter) TransitionStatus(ctx context.Context, id int64, from, to entities.AppointmentStatus, endTime *time.Time) (*entities.Appointment, error) {
	record := goqu.Record{
		"status":     to,
		"updated_at": a.now(),
	}
	if endTime != nil {
		record["end_time"] = *endTime
	}

	query, args, err := a.dialect.Update(appointmentsTable).
		Set(record).
		Where(goqu.Ex{"id": id, "status": from}).
		Returning(appointmentColumns...).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build update query", err)
	}

	appointment, err := scanAppointment(a.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := a.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, repositories.ErrStatusChanged
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to update appointment status", err)
	}
	return appointment, nil
}

func (a *AppointmentAdapter) list(ctx context.Context, ds *goqu.SelectDataset, failMsg string) ([]*entities.Appointment, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError(failMsg, err)
	}
	defer rows.Close()

	appointments := make([]*entities.Appointment, 0)
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan appointment", err)
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError(failMsg, err)
	}

	return appointments, nil
}

func scanAppointment(row rowScanner) (*entities.Appointment, error) {
	appointment := &entities.Appointment{}
	var purpose, symptoms sql.NullString

	err := row.Scan(
		&appointment.ID,
		&appointment.DoctorID,
		&appointment.PatientID,
		&appointment.StartTime,
		&appointment.EndTime,
		&appointment.MeetingLink,
		&purpose,
		&symptoms,
		&appointment.Status,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	appointment.PurposeOfConsultation = purpose.String
	appointment.InitialSymptoms = symptoms.String
	return appointment, nil
}
