package providers

import (
	"context"
	"fmt"

	"github.com/zatekoja/teleconsult/internal/domain/entities"
)

// EventPublisher publishes appointment events
type EventPublisher interface {
	// Publish publishes an event to all subscribers of channel
	Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error
}

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	EventPublisher

	// Subscribe subscribes to events on a channel until ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelDoctorPrefix prefixes per-doctor appointment channels
	EventChannelDoctorPrefix = "appointments:doctor:"

	// EventChannelPatientPrefix prefixes per-patient appointment channels
	EventChannelPatientPrefix = "appointments:patient:"
)

// GetDoctorChannel returns the channel carrying a doctor's appointment events
func GetDoctorChannel(doctorID int64) string {
	return fmt.Sprintf("%s%d", EventChannelDoctorPrefix, doctorID)
}

// GetPatientChannel returns the channel carrying a patient's appointment events
func GetPatientChannel(patientID int64) string {
	return fmt.Sprintf("%s%d", EventChannelPatientPrefix, patientID)
}
