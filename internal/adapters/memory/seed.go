package memory

import "github.com/zatekoja/teleconsult/internal/domain/entities"

// DemoDoctors is the development doctor roster. Account IDs 1-2 are doctors.
func DemoDoctors() []entities.Doctor {
	return []entities.Doctor{
		{UserID: 1, FirstName: "Ada", LastName: "Okafor", Email: "ada.okafor@dathealth.example", Specialization: "General Practice"},
		{UserID: 2, FirstName: "Tunde", LastName: "Bello", Email: "tunde.bello@dathealth.example", Specialization: "Dermatology"},
	}
}

// DemoPatients is the development patient roster. Account IDs 3-4 are patients.
func DemoPatients() []entities.Patient {
	return []entities.Patient{
		{UserID: 3, FirstName: "Chioma", LastName: "Eze", Email: "chioma.eze@example.com"},
		{UserID: 4, FirstName: "Musa", LastName: "Ibrahim", Email: "musa.ibrahim@example.com"},
	}
}

// SeedDemo loads the demo roster for local development; mint matching tokens
// with cmd/devtoken.
func (s *Store) SeedDemo() {
	for _, d := range DemoDoctors() {
		s.AddDoctor(d)
	}
	for _, p := range DemoPatients() {
		s.AddPatient(p)
	}
}
