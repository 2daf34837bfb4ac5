package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"github.com/zatekoja/teleconsult/internal/domain/providers"
	"github.com/zatekoja/teleconsult/pkg/retry"
)

// HTTPMailSender sends email through a transactional mail HTTP API
type HTTPMailSender struct {
	url        string
	apiKey     string
	from       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[string]
}

// HTTPMailSenderConfig configures HTTPMailSender
type HTTPMailSenderConfig struct {
	URL     string
	APIKey  string
	From    string
	Timeout time.Duration

	// BreakerFailures is the number of consecutive failed sends that opens
	// the circuit; BreakerCooldown is how long it stays open.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// NewHTTPMailSender creates a new mail API sender
func NewHTTPMailSender(cfg HTTPMailSenderConfig) (*HTTPMailSender, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mail API URL must be set")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	return &HTTPMailSender{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		from:   cfg.From,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        "mail-api",
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			// A rejected message says nothing about the API's health
			IsSuccessful: func(err error) bool {
				return err == nil || retry.IsPermanent(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
					Msg("mail API circuit breaker changed state")
			},
		}),
	}, nil
}

var _ providers.EmailSender = (*HTTPMailSender)(nil)

// MailRequest is the JSON body posted to the mail API
type MailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// MailResponse is the JSON body returned by the mail API
type MailResponse struct {
	ID string `json:"id"`
}

// Send posts msg to the mail API and returns the provider message ID. Client
// errors other than 429 are wrapped with retry.Permanent. While the circuit is
// open Send fails fast with gobreaker.ErrOpenState.
func (s *HTTPMailSender) Send(ctx context.Context, msg providers.EmailMessage) (string, error) {
	return s.breaker.Execute(func() (string, error) {
		return s.post(ctx, msg)
	})
}

func (s *HTTPMailSender) post(ctx context.Context, msg providers.EmailMessage) (string, error) {
	payload, err := json.Marshal(MailRequest{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTMLBody,
	})
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("failed to marshal message: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := fmt.Errorf("mail API error (status %d): %s", resp.StatusCode, string(body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", retry.Permanent(apiErr)
		}
		return "", apiErr
	}

	var mailResp MailResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &mailResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return mailResp.ID, nil
}
