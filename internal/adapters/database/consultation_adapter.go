package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"
	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/domain/repositories"
	"github.com/zatekoja/teleconsult/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/teleconsult/pkg/errors"
)

const (
	consultationsTable = "consultations"
	pqUniqueViolation  = "23505"
)

var consultationColumns = []interface{}{
	goqu.I("c.id"), goqu.I("c.appointment_id"), goqu.I("c.consultation_date"),
	goqu.I("c.subjective_notes"), goqu.I("c.objective_findings"),
	goqu.I("c.assessment"), goqu.I("c.plan"), goqu.I("c.created_at"),
}

// ConsultationAdapter implements the ConsultationRepository interface
type ConsultationAdapter struct {
	client  *postgres.Client
	dialect goqu.DialectWrapper
}

// NewConsultationAdapter creates a new consultation adapter
func NewConsultationAdapter(client *postgres.Client) repositories.ConsultationRepository {
	return &ConsultationAdapter{
		client:  client,
		dialect: goqu.Dialect("postgres"),
	}
}

// CreateAndComplete inserts the notes and completes a scheduled appointment in
// one transaction. The appointment row is locked FOR UPDATE before the insert,
// so a concurrent cancellation is either seen here or waits for commit.
func (a *ConsultationAdapter) CreateAndComplete(ctx context.Context, consultation *entities.Consultation, completedAt time.Time) (completed bool, err error) {
	lockQuery, lockArgs, err := a.dialect.Select("status").
		From(appointmentsTable).
		Where(goqu.Ex{"id": consultation.AppointmentID}).
		ForUpdate(exp.Wait).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build lock query", err)
	}

	insertQuery, insertArgs, err := a.dialect.Insert(consultationsTable).
		Rows(goqu.Record{
			"appointment_id":     consultation.AppointmentID,
			"consultation_date":  consultation.ConsultationDate,
			"subjective_notes":   consultation.SubjectiveNotes,
			"objective_findings": consultation.ObjectiveFindings,
			"assessment":         consultation.Assessment,
			"plan":               consultation.Plan,
			"created_at":         consultation.CreatedAt,
		}).
		Returning("id").
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build insert query", err)
	}

	updateQuery, updateArgs, err := a.dialect.Update(appointmentsTable).
		Set(goqu.Record{
			"status":     entities.AppointmentStatusCompleted,
			"end_time":   completedAt,
			"updated_at": completedAt,
		}).
		Where(goqu.Ex{
			"id":     consultation.AppointmentID,
			"status": entities.AppointmentStatusScheduled,
		}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build update query", err)
	}

	tx, err := a.client.BeginTx(ctx, nil)
	if err != nil {
		return false, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status entities.AppointmentStatus
	if err = tx.QueryRowContext(ctx, lockQuery, lockArgs...).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %d not found", consultation.AppointmentID))
		}
		return false, apperrors.NewInternalError("failed to lock appointment", err)
	}
	if status == entities.AppointmentStatusCancelled {
		return false, repositories.ErrAppointmentCancelled
	}

	if err = tx.QueryRowContext(ctx, insertQuery, insertArgs...).Scan(&consultation.ID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return false, apperrors.NewConflictError("consultation already exists for appointment", err)
		}
		return false, apperrors.NewInternalError("failed to create consultation", err)
	}

	result, err := tx.ExecContext(ctx, updateQuery, updateArgs...)
	if err != nil {
		return false, apperrors.NewInternalError("failed to complete appointment", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("failed to get rows affected", err)
	}

	if err = tx.Commit(); err != nil {
		return false, apperrors.NewInternalError("failed to commit consultation", err)
	}
	return rowsAffected > 0, nil
}

// GetByAppointmentID retrieves the notes of an appointment
func (a *ConsultationAdapter) GetByAppointmentID(ctx context.Context, appointmentID int64) (*entities.Consultation, error) {
	query, args, err := a.dialect.Select(consultationColumns...).
		From(goqu.T(consultationsTable).As("c")).
		Where(goqu.I("c.appointment_id").Eq(appointmentID)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	consultation, err := scanConsultation(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("consultation for appointment %d not found", appointmentID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get consultation", err)
	}
	return consultation, nil
}

// ListByPatient retrieves a patient's notes, newest consultation first
func (a *ConsultationAdapter) ListByPatient(ctx context.Context, patientID int64) ([]*entities.Consultation, error) {
	query, args, err := a.dialect.Select(consultationColumns...).
		From(goqu.T(consultationsTable).As("c")).
		Join(goqu.T(appointmentsTable).As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("c.appointment_id")))).
		Where(goqu.I("a.patient_id").Eq(patientID)).
		Order(goqu.I("c.consultation_date").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list consultations", err)
	}
	defer rows.Close()

	consultations := make([]*entities.Consultation, 0)
	for rows.Next() {
		consultation, err := scanConsultation(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan consultation", err)
		}
		consultations = append(consultations, consultation)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to list consultations", err)
	}

	return consultations, nil
}

func scanConsultation(row rowScanner) (*entities.Consultation, error) {
	c := &entities.Consultation{}
	var subjective, objective, assessment, plan sql.NullString

	if err := row.Scan(
		&c.ID,
		&c.AppointmentID,
		&c.ConsultationDate,
		&subjective,
		&objective,
		&assessment,
		&plan,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}

	c.SubjectiveNotes = subjective.String
	c.ObjectiveFindings = objective.String
	c.Assessment = assessment.String
	c.Plan = plan.String
	return c, nil
}
