package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zatekoja/teleconsult/internal/api/middleware"
	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/domain/providers"
	"github.com/zatekoja/teleconsult/internal/domain/repositories"
	"github.com/zatekoja/teleconsult/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/teleconsult/pkg/errors"
)

// DefaultHeartbeatInterval is how often an idle stream sends a heartbeat
const DefaultHeartbeatInterval = 30 * time.Second

// StreamHandler pushes appointment lifecycle events to the caller over Server-Sent Events
type StreamHandler struct {
	eventBus  providers.EventBus
	directory repositories.DirectoryRepository
	heartbeat time.Duration

	mu      sync.RWMutex
	clients map[string]int // channel -> open streams
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(eventBus providers.EventBus, directory repositories.DirectoryRepository) *StreamHandler {
	return &StreamHandler{
		eventBus:  eventBus,
		directory: directory,
		heartbeat: DefaultHeartbeatInterval,
		clients:   make(map[string]int),
	}
}

// SetHeartbeatInterval overrides the heartbeat period
func (h *StreamHandler) SetHeartbeatInterval(d time.Duration) {
	h.heartbeat = d
}

// StreamAppointments handles GET /api/appointments/stream. Doctors receive
// events for their schedule, everyone else for their own bookings.
func (h *StreamHandler) StreamAppointments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := middleware.IdentityFromContext(ctx)
	logger := observability.LoggerFromContext(ctx)

	channel, err := h.channelFor(r, identity)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventChan, err := h.eventBus.Subscribe(ctx, channel)
	if err != nil {
		logger.Error().Err(err).Str("channel", channel).Msg("failed to subscribe to appointment events")
		respondWithAppError(w, r, apperrors.NewExternalError("event stream unavailable", err))
		return
	}

	h.registerClient(channel)
	defer h.unregisterClient(channel)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	h.sendEvent(w, "connected", map[string]interface{}{
		"channel":   channel,
		"timestamp": time.Now(),
	})
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Str("channel", channel).Msg("client disconnected from appointment stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			h.sendEvent(w, string(event.Type), event)
			flusher.Flush()
		}
	}
}

func (h *StreamHandler) channelFor(r *http.Request, identity entities.Identity) (string, error) {
	if !identity.IsAuthenticated() {
		return "", apperrors.NewUnauthenticatedError("Authentication required.")
	}

	switch identity.ProfileKind() {
	case entities.ProfileKindDoctor:
		doctor, err := h.directory.FindDoctorByUserID(r.Context(), identity.UserID)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				return "", apperrors.NewProfileRequiredError("Doctor profile not found.")
			}
			return "", err
		}
		return providers.GetDoctorChannel(doctor.ID), nil
	default:
		patient, err := h.directory.FindPatientByUserID(r.Context(), identity.UserID)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				return "", apperrors.NewProfileRequiredError("Patient profile not found.")
			}
			return "", err
		}
		return providers.GetPatientChannel(patient.ID), nil
	}
}

func (h *StreamHandler) registerClient(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[channel]++
}

func (h *StreamHandler) unregisterClient(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[channel]--
	if h.clients[channel] <= 0 {
		delete(h.clients, channel)
	}
}

// sendEvent sends an SSE event to the client
func (h *StreamHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of open streams
func (h *StreamHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, n := range h.clients {
		count += n
	}
	return count
}
