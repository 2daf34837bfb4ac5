package providers

import (
	"context"

	"github.com/zatekoja/teleconsult/internal/domain/entities"
)

// Notifier accepts notifications for asynchronous delivery. Notify must not
// block on delivery and has no failure path visible to the caller.
type Notifier interface {
	Notify(n entities.Notification)
}

// EmailMessage is a rendered email ready for delivery
type EmailMessage struct {
	To       string
	Subject  string
	HTMLBody string
}

// EmailSender delivers rendered emails
type EmailSender interface {
	// Send delivers msg and returns the provider's message ID
	Send(ctx context.Context, msg EmailMessage) (string, error)
}

// NotificationRenderer turns a notification variant into an email body
type NotificationRenderer interface {
	Render(n entities.Notification) (string, error)
}
