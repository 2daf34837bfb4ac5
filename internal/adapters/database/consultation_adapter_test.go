package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/domain/repositories"
	"github.com/zatekoja/teleconsult/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/teleconsult/pkg/errors"
)

var consultationColumnNames = []string{
	"id", "appointment_id", "consultation_date", "subjective_notes",
	"objective_findings", "assessment", "plan", "created_at",
}

const appointmentLockPattern = `SELECT "status" FROM "appointments" WHERE \("id" = 5\) FOR UPDATE`

func expectAppointmentLock(mock sqlmock.Sqlmock, status entities.AppointmentStatus) {
	mock.ExpectQuery(appointmentLockPattern).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(status)))
}

func TestConsultationAdapter_CreateAndComplete(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 40, 0, 0, time.UTC)
	newConsultation := func() *entities.Consultation {
		return &entities.Consultation{
			AppointmentID:    5,
			ConsultationDate: now,
			SubjectiveNotes:  "headache",
			Plan:             "rest",
			CreatedAt:        now,
		}
	}

	t.Run("inserts and completes in one transaction", func(t *testing.T) {
		// Arrange
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		adapter := NewConsultationAdapter(postgres.NewClientFromDB(db))

		mock.ExpectBegin()
		expectAppointmentLock(mock, entities.AppointmentStatusScheduled)
		mock.ExpectQuery(`INSERT INTO "consultations" .* RETURNING "id"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
		mock.ExpectExec(`UPDATE "appointments" SET .*"status"='COMPLETED'.* WHERE \(\("id" = 5\) AND \("status" = 'SCHEDULED'\)\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		consultation := newConsultation()

		// Act
		completed, err := adapter.CreateAndComplete(context.Background(), consultation, now)

		// Assert
		require.NoError(t, err)
		assert.True(t, completed)
		assert.Equal(t, int64(11), consultation.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already completed appointment keeps its state", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		adapter := NewConsultationAdapter(postgres.NewClientFromDB(db))

		mock.ExpectBegin()
		expectAppointmentLock(mock, entities.AppointmentStatusCompleted)
		mock.ExpectQuery(`INSERT INTO "consultations"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))
		mock.ExpectExec(`UPDATE "appointments"`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		completed, err := adapter.CreateAndComplete(context.Background(), newConsultation(), now)

		require.NoError(t, err)
		assert.False(t, completed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate is a conflict and rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		adapter := NewConsultationAdapter(postgres.NewClientFromDB(db))

		mock.ExpectBegin()
		expectAppointmentLock(mock, entities.AppointmentStatusScheduled)
		mock.ExpectQuery(`INSERT INTO "consultations"`).
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
		mock.ExpectRollback()

		completed, err := adapter.CreateAndComplete(context.Background(), newConsultation(), now)

		assert.False(t, completed)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelled appointment rolls back before insert", func(t *testing.T) {
		// Arrange
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		adapter := NewConsultationAdapter(postgres.NewClientFromDB(db))

		mock.ExpectBegin()
		expectAppointmentLock(mock, entities.AppointmentStatusCancelled)
		mock.ExpectRollback()
		consultation := newConsultation()

		// Act
		completed, err := adapter.CreateAndComplete(context.Background(), consultation, now)

		// Assert
		assert.ErrorIs(t, err, repositories.ErrAppointmentCancelled)
		assert.False(t, completed)
		assert.Zero(t, consultation.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing appointment is not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		adapter := NewConsultationAdapter(postgres.NewClientFromDB(db))

		mock.ExpectBegin()
		mock.ExpectQuery(appointmentLockPattern).
			WillReturnRows(sqlmock.NewRows([]string{"status"}))
		mock.ExpectRollback()

		_, err = adapter.CreateAndComplete(context.Background(), newConsultation(), now)

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConsultationAdapter_ListByPatient(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	adapter := NewConsultationAdapter(postgres.NewClientFromDB(db))

	later := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	earlier := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .* FROM "consultations" AS "c" INNER JOIN "appointments" AS "a" ON \("a"."id" = "c"."appointment_id"\) WHERE \("a"."patient_id" = 9\) ORDER BY "c"."consultation_date" DESC`).
		WillReturnRows(sqlmock.NewRows(consultationColumnNames).
			AddRow(int64(2), int64(6), later, "follow up", nil, nil, nil, later).
			AddRow(int64(1), int64(5), earlier, "headache", "normal", "tension", "rest", earlier))

	consultations, err := adapter.ListByPatient(context.Background(), 9)

	require.NoError(t, err)
	require.Len(t, consultations, 2)
	assert.Equal(t, int64(6), consultations[0].AppointmentID)
	assert.Empty(t, consultations[0].Plan)
	assert.Equal(t, "rest", consultations[1].Plan)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsultationAdapter_GetByAppointmentID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	adapter := NewConsultationAdapter(postgres.NewClientFromDB(db))

	mock.ExpectQuery(`SELECT .* FROM "consultations" AS "c" WHERE \("c"."appointment_id" = 5\)`).
		WillReturnRows(sqlmock.NewRows(consultationColumnNames))

	consultation, err := adapter.GetByAppointmentID(context.Background(), 5)

	assert.Nil(t, consultation)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
