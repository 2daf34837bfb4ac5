package handlers_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/teleconsult/internal/adapters/events"
	"github.com/zatekoja/teleconsult/internal/adapters/memory"
	"github.com/zatekoja/teleconsult/internal/api/handlers"
	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/domain/providers"
)

func streamServer(t *testing.T, h *handlers.StreamHandler, identity entities.Identity) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.StreamAppointments(w, withIdentity(r, identity))
	}))
	t.Cleanup(server.Close)
	return server
}

// readEvent returns the next "event:" name and its data line
func readEvent(t *testing.T, reader *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestStreamHandler_StreamAppointments(t *testing.T) {
	store := memory.NewStore()
	doctor := store.AddDoctor(entities.Doctor{UserID: 1, FirstName: "Ada", LastName: "Okafor"})
	bus := events.NewMemoryEventBus()
	defer bus.Close()

	h := handlers.NewStreamHandler(bus, store.Directory())
	server := streamServer(t, h, entities.Identity{UserID: 1, Roles: []entities.Role{entities.RoleDoctor}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	name, data := readEvent(t, reader)
	assert.Equal(t, "connected", name)
	assert.Contains(t, data, providers.GetDoctorChannel(doctor.ID))
	assert.Equal(t, 1, h.GetClientCount())

	appointment := &entities.Appointment{ID: 5, DoctorID: doctor.ID, PatientID: 9, Status: entities.AppointmentStatusScheduled}
	event := entities.NewAppointmentEvent(entities.AppointmentEventBooked, appointment, time.Now())
	require.NoError(t, bus.Publish(context.Background(), providers.GetDoctorChannel(doctor.ID), event))

	name, data = readEvent(t, reader)
	assert.Equal(t, "appointment.booked", name)
	assert.Contains(t, data, `"appointment_id":5`)

	cancel()
	assert.Eventually(t, func() bool { return h.GetClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestStreamHandler_Heartbeat(t *testing.T) {
	store := memory.NewStore()
	store.AddPatient(entities.Patient{UserID: 3, FirstName: "Chioma", LastName: "Eze"})
	bus := events.NewMemoryEventBus()
	defer bus.Close()

	h := handlers.NewStreamHandler(bus, store.Directory())
	h.SetHeartbeatInterval(20 * time.Millisecond)
	server := streamServer(t, h, patientIdentity)

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	name, _ := readEvent(t, reader)
	require.Equal(t, "connected", name)

	name, _ = readEvent(t, reader)
	assert.Equal(t, "heartbeat", name)
}

func TestStreamHandler_RequiresProfile(t *testing.T) {
	store := memory.NewStore()
	bus := events.NewMemoryEventBus()
	defer bus.Close()

	h := handlers.NewStreamHandler(bus, store.Directory())
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/appointments/stream", nil), patientIdentity)
	w := httptest.NewRecorder()

	h.StreamAppointments(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "PROFILE_REQUIRED", decodeError(t, w).Code)
}
