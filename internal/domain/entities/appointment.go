package entities

import (
	"time"
)

const (
	// SlotDuration is the fixed length of every tele-consultation
	SlotDuration = 60 * time.Minute

	// MinBookingLeadTime is how far in the future a slot must start
	MinBookingLeadTime = time.Hour

	// BookingBuffer is the rest period a doctor gets before each new slot
	BookingBuffer = 60 * time.Minute
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "SCHEDULED"
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled: {AppointmentStatusCancelled, AppointmentStatusCompleted},
	AppointmentStatusCancelled: {},
	AppointmentStatusCompleted: {},
}

// IsValid reports whether s is a known status
func (s AppointmentStatus) IsValid() bool {
	_, ok := appointmentTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s
func (s AppointmentStatus) IsTerminal() bool {
	next, ok := appointmentTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether the state machine allows s -> next
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Appointment represents a booked tele-consultation
type Appointment struct {
	ID                    int64             `json:"id" db:"id"`
	DoctorID              int64             `json:"doctor_id" db:"doctor_id"`
	PatientID             int64             `json:"patient_id" db:"patient_id"`
	StartTime             time.Time         `json:"start_time" db:"start_time"`
	EndTime               time.Time         `json:"end_time" db:"end_time"`
	MeetingLink           string            `json:"meeting_link" db:"meeting_link"`
	PurposeOfConsultation string            `json:"purpose_of_consultation,omitempty" db:"purpose_of_consultation"`
	InitialSymptoms       string            `json:"initial_symptoms,omitempty" db:"initial_symptoms"`
	Status                AppointmentStatus `json:"status" db:"status"`
	CreatedAt             time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at" db:"updated_at"`
}

// IsParty reports whether the doctor or patient profile belongs to the appointment
func (a *Appointment) IsParty(doctorID, patientID int64) bool {
	return (doctorID != 0 && a.DoctorID == doctorID) || (patientID != 0 && a.PatientID == patientID)
}

// ConflictWindow returns the half-open window [start-BookingBuffer, start+SlotDuration)
// that must be free of SCHEDULED appointments for a booking starting at start.
func ConflictWindow(start time.Time) (time.Time, time.Time) {
	return start.Add(-BookingBuffer), start.Add(SlotDuration)
}

// Overlaps reports whether [start, end) intersects [windowStart, windowEnd)
func Overlaps(start, end, windowStart, windowEnd time.Time) bool {
	return start.Before(windowEnd) && end.After(windowStart)
}

// BookingRequest carries the caller supplied fields of a new appointment
type BookingRequest struct {
	DoctorID              int64     `json:"doctor_id"`
	StartTime             time.Time `json:"start_time"`
	PurposeOfConsultation string    `json:"purpose_of_consultation"`
	InitialSymptoms       string    `json:"initial_symptoms"`
}
