package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/domain/repositories"
	"github.com/zatekoja/teleconsult/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/teleconsult/pkg/errors"
)

var (
	doctorColumns  = []interface{}{"id", "user_id", "first_name", "last_name", "email", "specialization", "created_at"}
	patientColumns = []interface{}{"id", "user_id", "first_name", "last_name", "email", "created_at"}
)

// DirectoryAdapter reads doctor and patient profiles
type DirectoryAdapter struct {
	client  *postgres.Client
	dialect goqu.DialectWrapper
}

// NewDirectoryAdapter creates a new directory adapter
func NewDirectoryAdapter(client *postgres.Client) repositories.DirectoryRepository {
	return &DirectoryAdapter{
		client:  client,
		dialect: goqu.Dialect("postgres"),
	}
}

// FindDoctorByID retrieves a doctor by profile ID
func (a *DirectoryAdapter) FindDoctorByID(ctx context.Context, id int64) (*entities.Doctor, error) {
	return a.findDoctor(ctx, goqu.Ex{"id": id}, fmt.Sprintf("doctor with id %d not found", id))
}

// FindDoctorByUserID retrieves the doctor profile attached to an account
func (a *DirectoryAdapter) FindDoctorByUserID(ctx context.Context, userID int64) (*entities.Doctor, error) {
	return a.findDoctor(ctx, goqu.Ex{"user_id": userID}, fmt.Sprintf("doctor for user %d not found", userID))
}

// FindPatientByID retrieves a patient by profile ID
func (a *DirectoryAdapter) FindPatientByID(ctx context.Context, id int64) (*entities.Patient, error) {
	return a.findPatient(ctx, goqu.Ex{"id": id}, fmt.Sprintf("patient with id %d not found", id))
}

// FindPatientByUserID retrieves the patient profile attached to an account
func (a *DirectoryAdapter) FindPatientByUserID(ctx context.Context, userID int64) (*entities.Patient, error) {
	return a.findPatient(ctx, goqu.Ex{"user_id": userID}, fmt.Sprintf("patient for user %d not found", userID))
}

func (a *DirectoryAdapter) findDoctor(ctx context.Context, where goqu.Ex, notFound string) (*entities.Doctor, error) {
	query, args, err := a.dialect.Select(doctorColumns...).From("doctors").Where(where).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	doctor := &entities.Doctor{}
	var specialization sql.NullString
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&doctor.ID,
		&doctor.UserID,
		&doctor.FirstName,
		&doctor.LastName,
		&doctor.Email,
		&specialization,
		&doctor.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get doctor", err)
	}

	doctor.Specialization = specialization.String
	return doctor, nil
}

func (a *DirectoryAdapter) findPatient(ctx context.Context, where goqu.Ex, notFound string) (*entities.Patient, error) {
	query, args, err := a.dialect.Select(patientColumns...).From("patients").Where(where).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	patient := &entities.Patient{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&patient.ID,
		&patient.UserID,
		&patient.FirstName,
		&patient.LastName,
		&patient.Email,
		&patient.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}

	return patient, nil
}
