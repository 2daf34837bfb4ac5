package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/teleconsult/internal/domain/providers"
)

// LogSender writes emails to the log instead of delivering them
type LogSender struct{}

// NewLogSender creates a development sender
func NewLogSender() *LogSender {
	return &LogSender{}
}

var _ providers.EmailSender = (*LogSender)(nil)

// Send logs msg and returns a local message ID
func (s *LogSender) Send(ctx context.Context, msg providers.EmailMessage) (string, error) {
	id := "log-" + uuid.NewString()
	log.Info().
		Str("message_id", id).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("body_bytes", len(msg.HTMLBody)).
		Msg("email not delivered, NOTIFICATION_SENDER=log")
	return id, nil
}
