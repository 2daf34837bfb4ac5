package routes

import (
	"net/http"

	"github.com/zatekoja/teleconsult/internal/api/handlers"
	"github.com/zatekoja/teleconsult/internal/api/middleware"
	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	appointmentHandler  *handlers.AppointmentHandler
	consultationHandler *handlers.ConsultationHandler
	streamHandler       *handlers.StreamHandler

	tokens         middleware.TokenValidator
	rateLimiter    *middleware.RateLimiter
	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router. streamHandler and rateLimiter may be nil.
func NewRouter(
	appointmentHandler *handlers.AppointmentHandler,
	consultationHandler *handlers.ConsultationHandler,
	streamHandler *handlers.StreamHandler,
	tokens middleware.TokenValidator,
	rateLimiter *middleware.RateLimiter,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                 http.NewServeMux(),
		appointmentHandler:  appointmentHandler,
		consultationHandler: consultationHandler,
		streamHandler:       streamHandler,
		tokens:              tokens,
		rateLimiter:         rateLimiter,
		allowedOrigins:      allowedOrigins,
		metrics:             metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	authenticated := middleware.AuthMiddleware(r.tokens)
	protect := func(h http.HandlerFunc) http.Handler {
		return authenticated(h)
	}
	doctorOnly := func(h http.HandlerFunc) http.Handler {
		return authenticated(middleware.RequireRole(entities.RoleDoctor, h))
	}

	// Appointment endpoints
	r.mux.Handle("POST /api/appointments", protect(r.appointmentHandler.BookAppointment))
	r.mux.Handle("GET /api/appointments", protect(r.appointmentHandler.ListMyAppointments))
	r.mux.Handle("PUT /api/appointments/cancel/{id}", protect(r.appointmentHandler.CancelAppointment))
	r.mux.Handle("PUT /api/appointments/complete/{id}", doctorOnly(r.appointmentHandler.CompleteAppointment))

	if r.streamHandler != nil {
		r.mux.Handle("GET /api/appointments/stream", protect(r.streamHandler.StreamAppointments))
	}

	// Consultation endpoints
	r.mux.Handle("POST /api/consultations", doctorOnly(r.consultationHandler.CreateConsultation))
	r.mux.Handle("GET /api/consultations/appointment/{appointmentId}", protect(r.consultationHandler.GetByAppointment))
	r.mux.Handle("GET /api/consultations/history", protect(r.consultationHandler.PatientHistory))

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	if r.rateLimiter != nil {
		handler = r.rateLimiter.Middleware(handler)
	}
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// CORS wraps everything so headers are set even on rejected requests
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
