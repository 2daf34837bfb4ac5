package entities

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentEventType represents the lifecycle change an event reports
type AppointmentEventType string

const (
	AppointmentEventBooked    AppointmentEventType = "appointment.booked"
	AppointmentEventCancelled AppointmentEventType = "appointment.cancelled"
	AppointmentEventCompleted AppointmentEventType = "appointment.completed"
)

// AppointmentEvent is published whenever an appointment changes state
type AppointmentEvent struct {
	ID            string               `json:"id"`
	Type          AppointmentEventType `json:"type"`
	AppointmentID int64                `json:"appointment_id"`
	DoctorID      int64                `json:"doctor_id"`
	PatientID     int64                `json:"patient_id"`
	Status        AppointmentStatus    `json:"status"`
	StartTime     time.Time            `json:"start_time"`
	EndTime       time.Time            `json:"end_time"`
	Timestamp     time.Time            `json:"timestamp"`
}

// NewAppointmentEvent snapshots appointment a for the given event type
func NewAppointmentEvent(eventType AppointmentEventType, a *Appointment, at time.Time) *AppointmentEvent {
	return &AppointmentEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		AppointmentID: a.ID,
		DoctorID:      a.DoctorID,
		PatientID:     a.PatientID,
		Status:        a.Status,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Timestamp:     at,
	}
}
