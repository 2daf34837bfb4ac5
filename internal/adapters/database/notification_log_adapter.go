package database

import (
	"context"

	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/domain/repositories"
	"github.com/zatekoja/teleconsult/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/teleconsult/pkg/errors"
)

// NotificationLogAdapter persists delivery attempts with sqlx
type NotificationLogAdapter struct {
	client *postgres.Client
}

// NewNotificationLogAdapter creates a new notification log adapter
func NewNotificationLogAdapter(client *postgres.Client) repositories.NotificationLogRepository {
	return &NotificationLogAdapter{client: client}
}

const insertNotificationQuery = `
	INSERT INTO notifications (
		id, appointment_id, kind, channel, recipient, subject, body,
		status, message_id, error_message, created_at, sent_at
	) VALUES (
		:id, :appointment_id, :kind, :channel, :recipient, :subject, :body,
		:status, :message_id, :error_message, :created_at, :sent_at
	)`

const listNotificationsQuery = `
	SELECT id, appointment_id, kind, channel, recipient, subject, body,
		status, message_id, error_message, created_at, sent_at
	FROM notifications
	WHERE appointment_id = $1
	ORDER BY created_at ASC`

// Record persists one delivery attempt
func (a *NotificationLogAdapter) Record(ctx context.Context, record *entities.NotificationRecord) error {
	if _, err := a.client.DBX().NamedExecContext(ctx, insertNotificationQuery, record); err != nil {
		return apperrors.NewInternalError("failed to record notification", err)
	}
	return nil
}

// ListByAppointment retrieves the deliveries made for an appointment, oldest first
func (a *NotificationLogAdapter) ListByAppointment(ctx context.Context, appointmentID int64) ([]*entities.NotificationRecord, error) {
	records := make([]*entities.NotificationRecord, 0)
	if err := a.client.DBX().SelectContext(ctx, &records, listNotificationsQuery, appointmentID); err != nil {
		return nil, apperrors.NewInternalError("failed to list notifications", err)
	}
	return records, nil
}
