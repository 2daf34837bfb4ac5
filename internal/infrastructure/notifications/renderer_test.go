package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/teleconsult/internal/domain/entities"
)

func TestTemplateRenderer_Render(t *testing.T) {
	lagos, err := time.LoadLocation("Africa/Lagos")
	require.NoError(t, err)
	renderer, err := NewTemplateRenderer(lagos)
	require.NoError(t, err)

	at := time.Date(2026, 3, 2, 13, 30, 0, 0, time.UTC)

	tests := []struct {
		name         string
		notification entities.Notification
		contains     []string
		excludes     []string
	}{
		{
			name: "patient confirmation",
			notification: entities.PatientBookingConfirmation{
				AppointmentID:         5,
				RecipientEmail:        "chioma@example.com",
				PatientName:           "Chioma Eze",
				DoctorName:            "Ada Okafor",
				AppointmentTime:       at,
				IsVirtual:             true,
				MeetingLink:           "https://meet.jit.si/dat-0123456789",
				PurposeOfConsultation: "Follow-up",
			},
			contains: []string{"Hello Chioma Eze", "Dr. Ada Okafor", "Monday, Mar 02, 2026 at 02:30 PM", "https://meet.jit.si/dat-0123456789", "Purpose: Follow-up"},
		},
		{
			name: "doctor notice escapes patient input",
			notification: entities.DoctorBookingNotice{
				AppointmentID:   5,
				RecipientEmail:  "ada@clinic.example",
				DoctorName:      "Ada Okafor",
				PatientFullName: "Chioma Eze",
				AppointmentTime: at,
				IsVirtual:       true,
				MeetingLink:     "https://meet.jit.si/dat-0123456789",
				InitialSymptoms: "<script>alert(1)</script>",
			},
			contains: []string{"Chioma Eze", "&lt;script&gt;", "Monday, Mar 02, 2026 at 02:30 PM"},
			excludes: []string{"<script>", "Purpose:"},
		},
		{
			name: "cancellation to patient",
			notification: entities.CancellationNotice{
				AppointmentID:       5,
				Audience:            entities.AudiencePatient,
				RecipientEmail:      "chioma@example.com",
				RecipientName:       "Chioma Eze",
				CancellingPartyName: "Ada Okafor",
				AppointmentTime:     at,
				DoctorLastName:      "Okafor",
				PatientFullName:     "Chioma Eze",
			},
			contains: []string{"(ID: 5)", "Dr. Okafor", "cancelled by Ada Okafor"},
			excludes: []string{"free again"},
		},
		{
			name: "cancellation to doctor",
			notification: entities.CancellationNotice{
				AppointmentID:       5,
				Audience:            entities.AudienceDoctor,
				RecipientEmail:      "ada@clinic.example",
				RecipientName:       "Ada Okafor",
				CancellingPartyName: "Chioma Eze",
				AppointmentTime:     at,
				DoctorLastName:      "Okafor",
				PatientFullName:     "Chioma Eze",
			},
			contains: []string{"Hello Ada Okafor", "appointment with Chioma Eze", "cancelled by Chioma Eze", "free again"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := renderer.Render(tt.notification)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, body, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, body, s)
			}
		})
	}
}
