package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/domain/providers"
	"github.com/zatekoja/teleconsult/internal/domain/repositories"
)

// Mocks

type MockAppointmentRepository struct {
	mock.Mock
}

func (m *MockAppointmentRepository) WithDoctorLock(ctx context.Context, doctorID int64, fn func(ctx context.Context, repo repositories.AppointmentRepository) error) error {
	args := m.Called(ctx, doctorID)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx, m)
}

func (m *MockAppointmentRepository) Create(ctx context.Context, appointment *entities.Appointment) error {
	args := m.Called(ctx, appointment)
	return args.Error(0)
}

func (m *MockAppointmentRepository) GetByID(ctx context.Context, id int64) (*entities.Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) FindConflicting(ctx context.Context, doctorID int64, windowStart, windowEnd time.Time) ([]*entities.Appointment, error) {
	args := m.Called(ctx, doctorID, windowStart, windowEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) ListByDoctor(ctx context.Context, doctorID int64) ([]*entities.Appointment, error) {
	args := m.Called(ctx, doctorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) ListByPatient(ctx context.Context, patientID int64) ([]*entities.Appointment, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) TransitionStatus(ctx context.Context, id int64, from, to entities.AppointmentStatus, endTime *time.Time) (*entities.Appointment, error) {
	args := m.Called(ctx, id, from, to, endTime)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

type MockDirectoryRepository struct {
	mock.Mock
}

func (m *MockDirectoryRepository) FindDoctorByID(ctx context.Context, id int64) (*entities.Doctor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Doctor), args.Error(1)
}

func (m *MockDirectoryRepository) FindDoctorByUserID(ctx context.Context, userID int64) (*entities.Doctor, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Doctor), args.Error(1)
}

func (m *MockDirectoryRepository) FindPatientByID(ctx context.Context, id int64) (*entities.Patient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Patient), args.Error(1)
}

func (m *MockDirectoryRepository) FindPatientByUserID(ctx context.Context, userID int64) (*entities.Patient, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Patient), args.Error(1)
}

type MockMeetingRoomProvider struct {
	mock.Mock
}

func (m *MockMeetingRoomProvider) AllocateMeetingLink(ctx context.Context) string {
	args := m.Called(ctx)
	return args.String(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(n entities.Notification) {
	m.Called(n)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, msg providers.EmailMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(n entities.Notification) (string, error) {
	args := m.Called(n)
	return args.String(0), args.Error(1)
}

// recordingNotifier captures notifications for tests that run against the memory store
type recordingNotifier struct {
	mu   sync.Mutex
	sent []entities.Notification
}

func (r *recordingNotifier) Notify(n entities.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) all() []entities.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entities.Notification(nil), r.sent...)
}

type staticMeetings struct{}

func (staticMeetings) AllocateMeetingLink(ctx context.Context) string {
	return "https://meet.jit.si/dat-0123456789"
}
