package repositories

import (
	"context"

	"github.com/zatekoja/teleconsult/internal/domain/entities"
)

// NotificationLogRepository stores the outcome of notification deliveries
type NotificationLogRepository interface {
	// Record persists one delivery attempt
	Record(ctx context.Context, record *entities.NotificationRecord) error

	// ListByAppointment retrieves the deliveries made for an appointment, oldest first
	ListByAppointment(ctx context.Context, appointmentID int64) ([]*entities.NotificationRecord, error)
}
