package entities

import "time"

// Consultation holds the SOAP notes a doctor writes for an appointment
type Consultation struct {
	ID                int64     `json:"id" db:"id"`
	AppointmentID     int64     `json:"appointment_id" db:"appointment_id"`
	ConsultationDate  time.Time `json:"consultation_date" db:"consultation_date"`
	SubjectiveNotes   string    `json:"subjective_notes,omitempty" db:"subjective_notes"`
	ObjectiveFindings string    `json:"objective_findings,omitempty" db:"objective_findings"`
	Assessment        string    `json:"assessment,omitempty" db:"assessment"`
	Plan              string    `json:"plan,omitempty" db:"plan"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// ConsultationInput carries the doctor supplied fields of a consultation
type ConsultationInput struct {
	AppointmentID     int64  `json:"appointment_id"`
	SubjectiveNotes   string `json:"subjective_notes"`
	ObjectiveFindings string `json:"objective_findings"`
	Assessment        string `json:"assessment"`
	Plan              string `json:"plan"`
}
