package entities

import (
	"fmt"
	"time"
)

// NotificationKind identifies a notification variant
type NotificationKind string

const (
	NotificationKindPatientBookingConfirmation NotificationKind = "patient_booking_confirmation"
	NotificationKindDoctorBookingNotice        NotificationKind = "doctor_booking_notice"
	NotificationKindCancellationNotice         NotificationKind = "cancellation_notice"
)

// Template names, one per variant
const (
	TemplatePatientAppointment      = "patient-appointment"
	TemplateDoctorAppointment       = "doctor-appointment"
	TemplateAppointmentCancellation = "appointment-cancellation"
)

// Notification is implemented only by the variants in this file
type Notification interface {
	Kind() NotificationKind
	TemplateName() string
	Subject() string
	Recipient() string
	AppointmentRef() int64

	notification()
}

// PatientBookingConfirmation tells the patient their slot is booked
type PatientBookingConfirmation struct {
	AppointmentID         int64
	RecipientEmail        string
	PatientName           string
	DoctorName            string
	AppointmentTime       time.Time
	IsVirtual             bool
	MeetingLink           string
	PurposeOfConsultation string
}

func (PatientBookingConfirmation) notification() {}

func (n PatientBookingConfirmation) Kind() NotificationKind {
	return NotificationKindPatientBookingConfirmation
}
func (n PatientBookingConfirmation) TemplateName() string { return TemplatePatientAppointment }
func (n PatientBookingConfirmation) Subject() string {
	return "DAT Health: Your Appointment is Confirmed"
}
func (n PatientBookingConfirmation) Recipient() string     { return n.RecipientEmail }
func (n PatientBookingConfirmation) AppointmentRef() int64 { return n.AppointmentID }

// DoctorBookingNotice tells the doctor a patient booked them
type DoctorBookingNotice struct {
	AppointmentID         int64
	RecipientEmail        string
	DoctorName            string
	PatientFullName       string
	AppointmentTime       time.Time
	IsVirtual             bool
	MeetingLink           string
	InitialSymptoms       string
	PurposeOfConsultation string
}

func (DoctorBookingNotice) notification() {}

func (n DoctorBookingNotice) Kind() NotificationKind { return NotificationKindDoctorBookingNotice }
func (n DoctorBookingNotice) TemplateName() string   { return TemplateDoctorAppointment }
func (n DoctorBookingNotice) Subject() string        { return "DAT Health: New Appointment Booked" }
func (n DoctorBookingNotice) Recipient() string      { return n.RecipientEmail }
func (n DoctorBookingNotice) AppointmentRef() int64  { return n.AppointmentID }

// CancellationAudience is the party a cancellation notice is addressed to
type CancellationAudience string

const (
	AudienceDoctor  CancellationAudience = "doctor"
	AudiencePatient CancellationAudience = "patient"
)

// CancellationNotice tells one party that an appointment was cancelled
type CancellationNotice struct {
	AppointmentID       int64
	Audience            CancellationAudience
	RecipientEmail      string
	RecipientName       string
	CancellingPartyName string
	AppointmentTime     time.Time
	DoctorLastName      string
	PatientFullName     string
}

func (CancellationNotice) notification() {}

func (n CancellationNotice) Kind() NotificationKind { return NotificationKindCancellationNotice }
func (n CancellationNotice) TemplateName() string   { return TemplateAppointmentCancellation }
func (n CancellationNotice) Recipient() string      { return n.RecipientEmail }
func (n CancellationNotice) AppointmentRef() int64  { return n.AppointmentID }

func (n CancellationNotice) Subject() string {
	if n.Audience == AudiencePatient {
		return fmt.Sprintf("DAT Health: Appointment CANCELED (ID: %d)", n.AppointmentID)
	}
	return "DAT Health: Appointment Cancellation"
}

// NotificationChannel represents the delivery channel
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
)

// NotificationStatus represents the delivery status
type NotificationStatus string

const (
	NotificationStatusSent   NotificationStatus = "sent"
	NotificationStatusFailed NotificationStatus = "failed"
)

// NotificationRecord is the persisted log of one delivery attempt
type NotificationRecord struct {
	ID            string              `json:"id" db:"id"`
	AppointmentID int64               `json:"appointment_id" db:"appointment_id"`
	Kind          NotificationKind    `json:"kind" db:"kind"`
	Channel       NotificationChannel `json:"channel" db:"channel"`
	Recipient     string              `json:"recipient" db:"recipient"`
	Subject       string              `json:"subject" db:"subject"`
	Body          string              `json:"body" db:"body"`
	Status        NotificationStatus  `json:"status" db:"status"`
	MessageID     *string             `json:"message_id,omitempty" db:"message_id"`
	ErrorMessage  *string             `json:"error_message,omitempty" db:"error_message"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	SentAt        *time.Time          `json:"sent_at,omitempty" db:"sent_at"`
}
