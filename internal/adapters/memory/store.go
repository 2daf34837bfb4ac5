package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/domain/repositories"
	apperrors "github.com/zatekoja/teleconsult/pkg/errors"
)

// Store is a process-local backend for every repository. It serves
// STORAGE_DRIVER=memory and tests that need real concurrency semantics.
type Store struct {
	mu sync.RWMutex

	appointments      map[int64]*entities.Appointment
	nextAppointmentID int64

	doctors       map[int64]*entities.Doctor
	patients      map[int64]*entities.Patient
	nextProfileID int64

	consultations      map[int64]*entities.Consultation
	nextConsultationID int64

	notifications []*entities.NotificationRecord

	locksMu     sync.Mutex
	doctorLocks map[int64]*sync.Mutex

	now func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		appointments:  make(map[int64]*entities.Appointment),
		doctors:       make(map[int64]*entities.Doctor),
		patients:      make(map[int64]*entities.Patient),
		consultations: make(map[int64]*entities.Consultation),
		doctorLocks:   make(map[int64]*sync.Mutex),
		now:           time.Now,
	}
}

// SetClock overrides the time source for timestamps the store sets itself
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Appointments returns the store's AppointmentRepository
func (s *Store) Appointments() repositories.AppointmentRepository {
	return &appointmentRepo{store: s}
}

// Directory returns the store's DirectoryRepository
func (s *Store) Directory() repositories.DirectoryRepository {
	return &directoryRepo{store: s}
}

// Consultations returns the store's ConsultationRepository
func (s *Store) Consultations() repositories.ConsultationRepository {
	return &consultationRepo{store: s}
}

// NotificationLog returns the store's NotificationLogRepository
func (s *Store) NotificationLog() repositories.NotificationLogRepository {
	return &notificationLogRepo{store: s}
}

// AddDoctor registers a doctor profile, assigning an ID when d.ID is zero
func (s *Store) AddDoctor(d entities.Doctor) *entities.Doctor {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == 0 {
		s.nextProfileID++
		d.ID = s.nextProfileID
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}
	s.doctors[d.ID] = &d
	out := d
	return &out
}

// AddPatient registers a patient profile, assigning an ID when p.ID is zero
func (s *Store) AddPatient(p entities.Patient) *entities.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		s.nextProfileID++
		p.ID = s.nextProfileID
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.patients[p.ID] = &p
	out := p
	return &out
}

func (s *Store) doctorLock(doctorID int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.doctorLocks[doctorID]
	if !ok {
		lock = &sync.Mutex{}
		s.doctorLocks[doctorID] = lock
	}
	return lock
}

func copyAppointment(a *entities.Appointment) *entities.Appointment {
	out := *a
	return &out
}

func sortByIDDesc(appointments []*entities.Appointment) {
	sort.Slice(appointments, func(i, j int) bool { return appointments[i].ID > appointments[j].ID })
}

type appointmentRepo struct {
	store *Store
}

// WithDoctorLock serializes fn per doctor. Appointments created through the
// repository handed to fn become visible only when fn returns nil.
func (r *appointmentRepo) WithDoctorLock(ctx context.Context, doctorID int64, fn func(ctx context.Context, repo repositories.AppointmentRepository) error) error {
	lock := r.store.doctorLock(doctorID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return apperrors.NewInternalError("booking aborted", err)
	}

	tx := &stagedAppointmentRepo{appointmentRepo: r}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, a := range tx.staged {
		r.store.appointments[a.ID] = a
	}
	return nil
}

func (r *appointmentRepo) Create(ctx context.Context, appointment *entities.Appointment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextAppointmentID++
	appointment.ID = r.store.nextAppointmentID
	r.store.appointments[appointment.ID] = copyAppointment(appointment)
	return nil
}

func (r *appointmentRepo) GetByID(ctx context.Context, id int64) (*entities.Appointment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	a, ok := r.store.appointments[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %d not found", id))
	}
	return copyAppointment(a), nil
}

func (r *appointmentRepo) FindConflicting(ctx context.Context, doctorID int64, windowStart, windowEnd time.Time) ([]*entities.Appointment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	conflicts := make([]*entities.Appointment, 0)
	for _, a := range r.store.appointments {
		if a.DoctorID == doctorID && a.Status == entities.AppointmentStatusScheduled &&
			entities.Overlaps(a.StartTime, a.EndTime, windowStart, windowEnd) {
			conflicts = append(conflicts, copyAppointment(a))
		}
	}
	return conflicts, nil
}

func (r *appointmentRepo) ListByDoctor(ctx context.Context, doctorID int64) ([]*entities.Appointment, error) {
	return r.filter(func(a *entities.Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (r *appointmentRepo) ListByPatient(ctx context.Context, patientID int64) ([]*entities.Appointment, error) {
	return r.filter(func(a *entities.Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *appointmentRepo) filter(keep func(a *entities.Appointment) bool) []*entities.Appointment {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*entities.Appointment, 0)
	for _, a := range r.store.appointments {
		if keep(a) {
			out = append(out, copyAppointment(a))
		}
	}
	sortByIDDesc(out)
	return out
}

func (r *appointmentRepo) TransitionStatus(ctx context.Context, id int64, from, to entities.AppointmentStatus, endTime *time.Time) (*entities.Appointment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	a, ok := r.store.appointments[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %d not found", id))
	}
	if a.Status != from {
		return nil, repositories.ErrStatusChanged
	}

	a.Status = to
	a.UpdatedAt = r.store.now()
	if endTime != nil {
		a.EndTime = *endTime
	}
	return copyAppointment(a), nil
}

// stagedAppointmentRepo buffers inserts made inside WithDoctorLock
type stagedAppointmentRepo struct {
	*appointmentRepo
	staged []*entities.Appointment
}

func (t *stagedAppointmentRepo) WithDoctorLock(ctx context.Context, doctorID int64, fn func(ctx context.Context, repo repositories.AppointmentRepository) error) error {
	return fn(ctx, t)
}

func (t *stagedAppointmentRepo) Create(ctx context.Context, appointment *entities.Appointment) error {
	t.store.mu.Lock()
	t.store.nextAppointmentID++
	appointment.ID = t.store.nextAppointmentID
	t.store.mu.Unlock()

	t.staged = append(t.staged, copyAppointment(appointment))
	return nil
}

func (t *stagedAppointmentRepo) FindConflicting(ctx context.Context, doctorID int64, windowStart, windowEnd time.Time) ([]*entities.Appointment, error) {
	conflicts, err := t.appointmentRepo.FindConflicting(ctx, doctorID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	for _, a := range t.staged {
		if a.DoctorID == doctorID && a.Status == entities.AppointmentStatusScheduled &&
			entities.Overlaps(a.StartTime, a.EndTime, windowStart, windowEnd) {
			conflicts = append(conflicts, copyAppointment(a))
		}
	}
	return conflicts, nil
}

type directoryRepo struct {
	store *Store
}

func (r *directoryRepo) FindDoctorByID(ctx context.Context, id int64) (*entities.Doctor, error) {
	return r.findDoctor(func(d *entities.Doctor) bool { return d.ID == id }, fmt.Sprintf("doctor with id %d not found", id))
}

func (r *directoryRepo) FindDoctorByUserID(ctx context.Context, userID int64) (*entities.Doctor, error) {
	return r.findDoctor(func(d *entities.Doctor) bool { return d.UserID == userID }, fmt.Sprintf("doctor for user %d not found", userID))
}

func (r *directoryRepo) FindPatientByID(ctx context.Context, id int64) (*entities.Patient, error) {
	return r.findPatient(func(p *entities.Patient) bool { return p.ID == id }, fmt.Sprintf("patient with id %d not found", id))
}

func (r *directoryRepo) FindPatientByUserID(ctx context.Context, userID int64) (*entities.Patient, error) {
	return r.findPatient(func(p *entities.Patient) bool { return p.UserID == userID }, fmt.Sprintf("patient for user %d not found", userID))
}

func (r *directoryRepo) findDoctor(match func(d *entities.Doctor) bool, notFound string) (*entities.Doctor, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, d := range r.store.doctors {
		if match(d) {
			out := *d
			return &out, nil
		}
	}
	return nil, apperrors.NewNotFoundError(notFound)
}

func (r *directoryRepo) findPatient(match func(p *entities.Patient) bool, notFound string) (*entities.Patient, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, p := range r.store.patients {
		if match(p) {
			out := *p
			return &out, nil
		}
	}
	return nil, apperrors.NewNotFoundError(notFound)
}

type consultationRepo struct {
	store *Store
}

func (r *consultationRepo) CreateAndComplete(ctx context.Context, consultation *entities.Consultation, completedAt time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	a, ok := r.store.appointments[consultation.AppointmentID]
	if !ok {
		return false, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %d not found", consultation.AppointmentID))
	}
	if a.Status == entities.AppointmentStatusCancelled {
		return false, repositories.ErrAppointmentCancelled
	}
	if _, exists := r.store.consultations[consultation.AppointmentID]; exists {
		return false, apperrors.NewConflictError("consultation already exists for appointment", nil)
	}

	r.store.nextConsultationID++
	consultation.ID = r.store.nextConsultationID
	stored := *consultation
	r.store.consultations[consultation.AppointmentID] = &stored

	if a.Status != entities.AppointmentStatusScheduled {
		return false, nil
	}
	a.Status = entities.AppointmentStatusCompleted
	a.EndTime = completedAt
	a.UpdatedAt = completedAt
	return true, nil
}

func (r *consultationRepo) GetByAppointmentID(ctx context.Context, appointmentID int64) (*entities.Consultation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	c, ok := r.store.consultations[appointmentID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("consultation for appointment %d not found", appointmentID))
	}
	out := *c
	return &out, nil
}

func (r *consultationRepo) ListByPatient(ctx context.Context, patientID int64) ([]*entities.Consultation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*entities.Consultation, 0)
	for appointmentID, c := range r.store.consultations {
		a, ok := r.store.appointments[appointmentID]
		if !ok || a.PatientID != patientID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConsultationDate.After(out[j].ConsultationDate) })
	return out, nil
}

type notificationLogRepo struct {
	store *Store
}

func (r *notificationLogRepo) Record(ctx context.Context, record *entities.NotificationRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored := *record
	r.store.notifications = append(r.store.notifications, &stored)
	return nil
}

func (r *notificationLogRepo) ListByAppointment(ctx context.Context, appointmentID int64) ([]*entities.NotificationRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*entities.NotificationRecord, 0)
	for _, n := range r.store.notifications {
		if n.AppointmentID == appointmentID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}
