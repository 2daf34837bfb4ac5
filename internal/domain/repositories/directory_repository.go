package repositories

import (
	"context"

	"github.com/zatekoja/teleconsult/internal/domain/entities"
)

// DirectoryRepository resolves doctor and patient profiles. Missing profiles
// are reported as NOT_FOUND AppErrors.
type DirectoryRepository interface {
	// FindDoctorByID retrieves a doctor by profile ID
	FindDoctorByID(ctx context.Context, id int64) (*entities.Doctor, error)

	// FindDoctorByUserID retrieves the doctor profile attached to an account
	FindDoctorByUserID(ctx context.Context, userID int64) (*entities.Doctor, error)

	// FindPatientByID retrieves a patient by profile ID
	FindPatientByID(ctx context.Context, id int64) (*entities.Patient, error)

	// FindPatientByUserID retrieves the patient profile attached to an account
	FindPatientByUserID(ctx context.Context, userID int64) (*entities.Patient, error)
}
