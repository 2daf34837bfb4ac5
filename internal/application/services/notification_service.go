package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/domain/providers"
	"github.com/zatekoja/teleconsult/internal/domain/repositories"
	"github.com/zatekoja/teleconsult/internal/infrastructure/observability"
	"github.com/zatekoja/teleconsult/pkg/retry"
)

// NotificationServiceConfig sizes the delivery worker pool
type NotificationServiceConfig struct {
	Workers     int
	QueueSize   int
	Retry       retry.Config
	SendTimeout time.Duration
}

// DefaultNotificationServiceConfig returns the settings used when none are configured
func DefaultNotificationServiceConfig() NotificationServiceConfig {
	return NotificationServiceConfig{
		Workers:     2,
		QueueSize:   256,
		Retry:       retry.DeliveryConfig(),
		SendTimeout: 10 * time.Second,
	}
}

// NotificationService renders and delivers notifications on background
// workers. Notify never blocks the caller: when the queue is full the
// notification is dropped and counted.
type NotificationService struct {
	renderer providers.NotificationRenderer
	sender   providers.EmailSender
	logRepo  repositories.NotificationLogRepository
	metrics  *observability.Metrics
	cfg      NotificationServiceConfig

	queue chan entities.Notification
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	startOnce sync.Once
	stopOnce  sync.Once
	now       func() time.Time
}

// NewNotificationService creates a new notification service. logRepo may be
// nil, in which case delivery outcomes are only logged.
func NewNotificationService(
	renderer providers.NotificationRenderer,
	sender providers.EmailSender,
	logRepo repositories.NotificationLogRepository,
	cfg NotificationServiceConfig,
) *NotificationService {
	defaults := DefaultNotificationServiceConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = defaults.Retry
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaults.SendTimeout
	}

	return &NotificationService{
		renderer: renderer,
		sender:   sender,
		logRepo:  logRepo,
		cfg:      cfg,
		queue:    make(chan entities.Notification, cfg.QueueSize),
		now:      time.Now,
	}
}

// SetMetrics enables delivery counters
func (s *NotificationService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// Start launches the delivery workers
func (s *NotificationService) Start() {
	s.startOnce.Do(func() {
		for i := 0; i < s.cfg.Workers; i++ {
			s.wg.Add(1)
			go s.worker(i)
		}
		log.Info().Int("workers", s.cfg.Workers).Int("queue_size", s.cfg.QueueSize).Msg("notification workers started")
	})
}

// Stop stops accepting notifications and waits for queued ones to be
// delivered, or for ctx to expire.
func (s *NotificationService) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		log.Warn().Int("pending", len(s.queue)).Msg("notification shutdown timed out; pending notifications may be lost")
		return ctx.Err()
	}
}

// Notify enqueues n for delivery
func (s *NotificationService) Notify(n entities.Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.drop(n, "notification service stopped, dropping notification")
		return
	}

	select {
	case s.queue <- n:
	default:
		s.drop(n, "notification queue full, dropping notification")
	}
}

func (s *NotificationService) drop(n entities.Notification, msg string) {
	log.Warn().
		Str("kind", string(n.Kind())).
		Int64("appointment_id", n.AppointmentRef()).
		Msg(msg)
	observability.RecordNotificationDropped(context.Background(), s.metrics, string(n.Kind()))
}

func (s *NotificationService) worker(id int) {
	defer s.wg.Done()
	for n := range s.queue {
		s.deliver(context.Background(), n)
	}
	log.Debug().Int("worker", id).Msg("notification worker stopped")
}

func (s *NotificationService) deliver(ctx context.Context, n entities.Notification) {
	ctx, span := observability.StartSpan(ctx, "NotificationService.deliver")
	defer span.End()

	logger := log.With().
		Str("kind", string(n.Kind())).
		Int64("appointment_id", n.AppointmentRef()).
		Str("recipient", n.Recipient()).
		Logger()

	record := &entities.NotificationRecord{
		ID:            uuid.NewString(),
		AppointmentID: n.AppointmentRef(),
		Kind:          n.Kind(),
		Channel:       entities.ChannelEmail,
		Recipient:     n.Recipient(),
		Subject:       n.Subject(),
		CreatedAt:     s.now(),
	}

	body, err := s.renderer.Render(n)
	if err != nil {
		logger.Error().Err(err).Msg("failed to render notification")
		observability.RecordError(span, err)
		s.finish(ctx, record, "", err)
		return
	}
	record.Body = body

	msg := providers.EmailMessage{To: n.Recipient(), Subject: n.Subject(), HTMLBody: body}

	var messageID string
	err = retry.DoWithLog(ctx, s.cfg.Retry, "mail", func() error {
		sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		defer cancel()

		id, sendErr := s.sender.Send(sendCtx, msg)
		if sendErr != nil {
			return sendErr
		}
		messageID = id
		return nil
	}, func(attempt int, err error, nextDelay time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("next_delay", nextDelay).Msg("notification delivery failed, retrying")
	})
	if err != nil {
		logger.Error().Err(err).Msg("notification delivery failed")
		observability.RecordError(span, err)
		s.finish(ctx, record, "", err)
		return
	}

	logger.Info().Str("message_id", messageID).Msg("notification sent")
	s.finish(ctx, record, messageID, nil)
}

func (s *NotificationService) finish(ctx context.Context, record *entities.NotificationRecord, messageID string, deliveryErr error) {
	if deliveryErr != nil {
		record.Status = entities.NotificationStatusFailed
		errMsg := deliveryErr.Error()
		record.ErrorMessage = &errMsg
	} else {
		record.Status = entities.NotificationStatusSent
		sentAt := s.now()
		record.SentAt = &sentAt
		if messageID != "" {
			record.MessageID = &messageID
		}
	}

	observability.RecordNotification(ctx, s.metrics, string(record.Kind), string(record.Status))

	if s.logRepo == nil {
		return
	}
	if err := s.logRepo.Record(ctx, record); err != nil {
		log.Error().Err(err).
			Str("notification_id", record.ID).
			Str("status", string(record.Status)).
			Msg("failed to record notification outcome")
	}
}
