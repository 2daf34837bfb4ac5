//go:build integration

package database

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/domain/repositories"
	"github.com/zatekoja/teleconsult/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/teleconsult/migrations"
	"github.com/zatekoja/teleconsult/pkg/config"
	apperrors "github.com/zatekoja/teleconsult/pkg/errors"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

type PostgresIntegrationTestSuite struct {
	suite.Suite
	client        *postgres.Client
	appointments  repositories.AppointmentRepository
	consultations repositories.ConsultationRepository
	directory     repositories.DirectoryRepository
	doctorID      int64
	patientID     int64
}

func TestPostgresIntegrationTestSuite(t *testing.T) {
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("Skipping integration test: TEST_DB_HOST not set")
	}
	suite.Run(t, new(PostgresIntegrationTestSuite))
}

func (s *PostgresIntegrationTestSuite) SetupSuite() {
	cfg := &config.DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "teleconsult_test"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}

	client, err := postgres.NewClient(cfg)
	require.NoError(s.T(), err, "Failed to create postgres client")
	require.NoError(s.T(), client.Migrate(context.Background(), migrations.Files))

	s.client = client
	s.appointments = NewAppointmentAdapter(client, nil)
	s.consultations = NewConsultationAdapter(client)
	s.directory = NewDirectoryAdapter(client)
}

func (s *PostgresIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *PostgresIntegrationTestSuite) SetupTest() {
	ctx := context.Background()
	_, err := s.client.DB().ExecContext(ctx, `
		TRUNCATE TABLE notifications, consultations, appointments, doctors, patients
		RESTART IDENTITY CASCADE`)
	s.Require().NoError(err)

	err = s.client.DB().QueryRowContext(ctx, `
		INSERT INTO doctors (user_id, first_name, last_name, email, specialization)
		VALUES (101, 'Ada', 'Okafor', 'ada@example.com', 'General Practice')
		RETURNING id`).Scan(&s.doctorID)
	s.Require().NoError(err)

	err = s.client.DB().QueryRowContext(ctx, `
		INSERT INTO patients (user_id, first_name, last_name, email)
		VALUES (201, 'Chioma', 'Eze', 'chioma@example.com')
		RETURNING id`).Scan(&s.patientID)
	s.Require().NoError(err)
}

func (s *PostgresIntegrationTestSuite) newAppointment(start time.Time) *entities.Appointment {
	now := time.Now().UTC()
	return &entities.Appointment{
		DoctorID:    s.doctorID,
		PatientID:   s.patientID,
		StartTime:   start,
		EndTime:     start.Add(entities.SlotDuration),
		MeetingLink: "https://meet.jit.si/dat-it",
		Status:      entities.AppointmentStatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *PostgresIntegrationTestSuite) TestDirectoryLookups() {
	ctx := context.Background()

	doctor, err := s.directory.FindDoctorByUserID(ctx, 101)
	s.Require().NoError(err)
	s.Equal(s.doctorID, doctor.ID)
	s.Equal("Ada Okafor", doctor.FullName())

	patient, err := s.directory.FindPatientByID(ctx, s.patientID)
	s.Require().NoError(err)
	s.Equal(int64(201), patient.UserID)

	_, err = s.directory.FindDoctorByUserID(ctx, 201)
	s.Error(err)
}

func (s *PostgresIntegrationTestSuite) TestBookingLifecycle() {
	ctx := context.Background()
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)

	appointment := s.newAppointment(start)
	err := s.appointments.WithDoctorLock(ctx, s.doctorID, func(ctx context.Context, repo repositories.AppointmentRepository) error {
		windowStart, windowEnd := entities.ConflictWindow(start)
		conflicts, err := repo.FindConflicting(ctx, s.doctorID, windowStart, windowEnd)
		if err != nil {
			return err
		}
		s.Empty(conflicts)
		return repo.Create(ctx, appointment)
	})
	s.Require().NoError(err)
	s.NotZero(appointment.ID)

	windowStart, windowEnd := entities.ConflictWindow(start.Add(30 * time.Minute))
	conflicts, err := s.appointments.FindConflicting(ctx, s.doctorID, windowStart, windowEnd)
	s.Require().NoError(err)
	s.Len(conflicts, 1)

	cancelled, err := s.appointments.TransitionStatus(ctx, appointment.ID,
		entities.AppointmentStatusScheduled, entities.AppointmentStatusCancelled, nil)
	s.Require().NoError(err)
	s.Equal(entities.AppointmentStatusCancelled, cancelled.Status)

	_, err = s.appointments.TransitionStatus(ctx, appointment.ID,
		entities.AppointmentStatusScheduled, entities.AppointmentStatusCompleted, nil)
	s.ErrorIs(err, repositories.ErrStatusChanged)

	conflicts, err = s.appointments.FindConflicting(ctx, s.doctorID, windowStart, windowEnd)
	s.Require().NoError(err)
	s.Empty(conflicts, "cancelled appointments must not block the slot")
}

func (s *PostgresIntegrationTestSuite) TestConcurrentBookingsSerialise() {
	ctx := context.Background()
	start := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour)

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.appointments.WithDoctorLock(ctx, s.doctorID, func(ctx context.Context, repo repositories.AppointmentRepository) error {
				windowStart, windowEnd := entities.ConflictWindow(start)
				conflicts, err := repo.FindConflicting(ctx, s.doctorID, windowStart, windowEnd)
				if err != nil {
					return err
				}
				if len(conflicts) > 0 {
					return nil
				}
				if err := repo.Create(ctx, s.newAppointment(start)); err != nil {
					return err
				}
				mu.Lock()
				created++
				mu.Unlock()
				return nil
			})
			assert.NoError(s.T(), err)
		}()
	}
	wg.Wait()

	s.Equal(1, created)
	list, err := s.appointments.ListByDoctor(ctx, s.doctorID)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *PostgresIntegrationTestSuite) TestConsultationCompletesAppointment() {
	ctx := context.Background()
	start := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Minute)

	appointment := s.newAppointment(start)
	s.Require().NoError(s.appointments.Create(ctx, appointment))

	completedAt := time.Now().UTC().Truncate(time.Microsecond)
	consultation := &entities.Consultation{
		AppointmentID:    appointment.ID,
		ConsultationDate: completedAt,
		Assessment:       "Seasonal allergies",
		CreatedAt:        completedAt,
	}
	completed, err := s.consultations.CreateAndComplete(ctx, consultation, completedAt)
	s.Require().NoError(err)
	s.True(completed)
	s.NotZero(consultation.ID)

	stored, err := s.appointments.GetByID(ctx, appointment.ID)
	s.Require().NoError(err)
	s.Equal(entities.AppointmentStatusCompleted, stored.Status)

	history, err := s.consultations.ListByPatient(ctx, s.patientID)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal("Seasonal allergies", history[0].Assessment)

	_, err = s.consultations.CreateAndComplete(ctx, &entities.Consultation{
		AppointmentID:    appointment.ID,
		ConsultationDate: completedAt,
		CreatedAt:        completedAt,
	}, completedAt)
	s.Error(err, "a second set of notes for the same appointment must be rejected")
}

func (s *PostgresIntegrationTestSuite) TestConsultationOnCancelledAppointment() {
	ctx := context.Background()
	start := time.Now().UTC().Add(-5 * time.Hour).Truncate(time.Minute)

	appointment := s.newAppointment(start)
	s.Require().NoError(s.appointments.Create(ctx, appointment))
	_, err := s.appointments.TransitionStatus(ctx, appointment.ID, entities.AppointmentStatusScheduled, entities.AppointmentStatusCancelled, nil)
	s.Require().NoError(err)

	completedAt := time.Now().UTC().Truncate(time.Microsecond)
	_, err = s.consultations.CreateAndComplete(ctx, &entities.Consultation{
		AppointmentID:    appointment.ID,
		ConsultationDate: completedAt,
		CreatedAt:        completedAt,
	}, completedAt)
	s.ErrorIs(err, repositories.ErrAppointmentCancelled)

	_, err = s.consultations.GetByAppointmentID(ctx, appointment.ID)
	s.True(apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
