// Package scheduling derives bookable slots and books appointments without
// ever letting two live appointments share a (doctor, date, time) slot.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medibook-server/internal/directory"
	"medibook-server/internal/models"
)

// Errors returned by the engine.
var (
	ErrSlotConflict        = errors.New("slot is already booked")
	ErrSlotUnavailable     = errors.New("time is not a bookable slot for this doctor")
	ErrSlotInPast          = errors.New("slot is in the past")
	ErrInvalidDate         = errors.New("date must be YYYY-MM-DD")
	ErrInvalidTime         = errors.New("time must be HH:MM")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrDoctorUnavailable   = errors.New("doctor is not accepting appointments")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSelfBooking         = errors.New("doctors cannot book appointments with themselves")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidTransition   = errors.New("invalid appointment status transition")
	ErrInvalidConsultation = errors.New("invalid consultation type")
	ErrInvalidStatus       = errors.New("invalid appointment status")
)

// Directory is the part of the directory store the engine reads.
type Directory interface {
	AccountByID(ctx context.Context, id string) (*models.Account, error)
	DoctorProfileByAccount(ctx context.Context, accountID string) (*models.DoctorProfile, error)
	SchedulesForDay(ctx context.Context, doctorID string, day models.Weekday) ([]models.DoctorSchedule, error)
}

// Engine implements slot listing, booking and appointment lifecycle.
type Engine struct {
	db       *gorm.DB
	dir      Directory
	locker   Locker
	template Template
	loc      *time.Location
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocker sets the slot locker. The default is an in-process KeyedMutex.
func WithLocker(l Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithTemplate sets the fallback business-hours template.
func WithTemplate(t Template) Option {
	return func(e *Engine) { e.template = t }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the zone appointment wall-clock times are in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// NewEngine creates an Engine.
func NewEngine(db *gorm.DB, dir Directory, opts ...Option) *Engine {
	e := &Engine{
		db:       db,
		dir:      dir,
		locker:   NewKeyedMutex(),
		template: DefaultTemplate,
		loc:      time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ListAvailableSlots returns the free slots of a doctor on date, in time order.
// Slots that have already started are left out.
func (e *Engine) ListAvailableSlots(ctx context.Context, doctorID, date string) ([]string, error) {
	day, err := e.parseDate(date)
	if err != nil {
		return nil, err
	}
	profile, err := e.doctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !profile.IsAvailable {
		return []string{}, nil
	}

	candidates, err := e.candidateSlots(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}

	var taken []string
	err = e.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("doctor_id = ? AND date = ? AND status <> ?", doctorID, day.Format(models.DateLayout), models.AppointmentCancelled).
		Pluck("time", &taken).Error
	if err != nil {
		return nil, fmt.Errorf("load booked slots: %w", err)
	}
	booked := make(map[string]bool, len(taken))
	for _, t := range taken {
		booked[t] = true
	}

	now := e.now()
	free := make([]string, 0, len(candidates))
	for _, slot := range candidates {
		if booked[slot] {
			continue
		}
		start, err := e.slotStart(day, slot)
		if err != nil || !start.After(now) {
			continue
		}
		free = append(free, slot)
	}
	return free, nil
}

// candidateSlots derives the slot layout for a doctor's day. Available weekly
// schedules for that weekday define it; a doctor with no schedule for the
// weekday falls back to the default template.
func (e *Engine) candidateSlots(ctx context.Context, doctorID string, day time.Time) ([]string, error) {
	schedules, err := e.dir.SchedulesForDay(ctx, doctorID, models.WeekdayOf(day))
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	if len(schedules) == 0 {
		return e.template.Slots(), nil
	}
	lists := make([][]string, 0, len(schedules))
	for _, s := range schedules {
		if !s.IsAvailable {
			continue
		}
		slots, err := scheduleSlots(s)
		if err != nil {
			return nil, err
		}
		lists = append(lists, slots)
	}
	return mergeSlots(lists...), nil
}

// BookingRequest holds what a patient submits to book a slot.
type BookingRequest struct {
	PatientID        string
	DoctorID         string
	Date             string
	Time             string
	Symptoms         string
	Notes            string
	ConsultationType string
}

// Book creates a SCHEDULED appointment for a free slot. The fee is copied from
// the doctor's profile at booking time.
func (e *Engine) Book(ctx context.Context, req BookingRequest) (*models.Appointment, error) {
	day, err := e.parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	clock, err := normalizeClock(req.Time)
	if err != nil {
		return nil, err
	}
	consultation, ok := models.ParseConsultationType(req.ConsultationType)
	if !ok {
		return nil, ErrInvalidConsultation
	}
	if req.PatientID == req.DoctorID {
		return nil, ErrSelfBooking
	}

	profile, err := e.doctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if !profile.IsAvailable {
		return nil, ErrDoctorUnavailable
	}
	if _, err := e.dir.AccountByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, directory.ErrAccountNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	if err := e.checkBookable(ctx, req.DoctorID, day, clock); err != nil {
		return nil, err
	}

	date := day.Format(models.DateLayout)
	unlock, err := e.locker.Lock(ctx, models.SlotKey(req.DoctorID, date, clock))
	if err != nil {
		return nil, err
	}
	defer unlock()

	appointment := models.Appointment{
		PatientID:        req.PatientID,
		DoctorID:         req.DoctorID,
		Date:             date,
		Time:             clock,
		Status:           models.AppointmentScheduled,
		ConsultationType: consultation,
		Symptoms:         strings.TrimSpace(req.Symptoms),
		Notes:            strings.TrimSpace(req.Notes),
		Fee:              profile.ConsultationFee,
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureSlotFree(tx, req.DoctorID, date, clock, ""); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(&appointment).Error
	})
	if err != nil {
		if models.IsUniqueViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, err
	}
	return e.Get(ctx, appointment.ID)
}

// ensureSlotFree fails with ErrSlotConflict when a live appointment other than
// exceptID holds the slot.
func ensureSlotFree(tx *gorm.DB, doctorID, date, clock, exceptID string) error {
	q := tx.Model(&models.Appointment{}).
		Where("doctor_id = ? AND date = ? AND time = ? AND status <> ?", doctorID, date, clock, models.AppointmentCancelled)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrSlotConflict
	}
	return nil
}

func (e *Engine) checkBookable(ctx context.Context, doctorID string, day time.Time, clock string) error {
	start, err := e.slotStart(day, clock)
	if err != nil {
		return err
	}
	if !start.After(e.now()) {
		return ErrSlotInPast
	}
	candidates, err := e.candidateSlots(ctx, doctorID, day)
	if err != nil {
		return err
	}
	for _, c := range candidates {
		if c == clock {
			return nil
		}
	}
	return ErrSlotUnavailable
}

// UpdateStatus moves an appointment to a new status following the transition
// table. Prescription and notes are replaced when non-nil.
func (e *Engine) UpdateStatus(ctx context.Context, id string, to models.AppointmentStatus, prescription, notes *string) (*models.Appointment, error) {
	if _, ok := models.ParseAppointmentStatus(string(to)); !ok {
		return nil, ErrInvalidStatus
	}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var appointment models.Appointment
		if err := tx.First(&appointment, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAppointmentNotFound
			}
			return err
		}
		if !CanTransition(appointment.Status, to) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, appointment.Status, to)
		}
		appointment.Status = to
		if prescription != nil {
			appointment.Prescription = *prescription
		}
		if notes != nil {
			appointment.Notes = *notes
		}
		return tx.Omit(clause.Associations).Save(&appointment).Error
	})
	if err != nil {
		return nil, err
	}
	return e.Get(ctx, id)
}

// Cancel marks an appointment CANCELLED, releasing its slot.
func (e *Engine) Cancel(ctx context.Context, id string) (*models.Appointment, error) {
	return e.UpdateStatus(ctx, id, models.AppointmentCancelled, nil, nil)
}

// Reschedule moves a SCHEDULED appointment to another free slot of the same doctor.
func (e *Engine) Reschedule(ctx context.Context, id, date, clock string) (*models.Appointment, error) {
	day, err := e.parseDate(date)
	if err != nil {
		return nil, err
	}
	clock, err = normalizeClock(clock)
	if err != nil {
		return nil, err
	}

	current, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.AppointmentScheduled {
		return nil, fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, current.Status)
	}
	newDate := day.Format(models.DateLayout)
	if current.Date == newDate && current.Time == clock {
		return current, nil
	}
	if err := e.checkBookable(ctx, current.DoctorID, day, clock); err != nil {
		return nil, err
	}

	unlock, err := e.locker.Lock(ctx, models.SlotKey(current.DoctorID, newDate, clock))
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var appointment models.Appointment
		if err := tx.First(&appointment, "id = ?", id).Error; err != nil {
			return err
		}
		if appointment.Status != models.AppointmentScheduled {
			return fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, appointment.Status)
		}
		if err := ensureSlotFree(tx, appointment.DoctorID, newDate, clock, appointment.ID); err != nil {
			return err
		}
		appointment.Date = newDate
		appointment.Time = clock
		return tx.Omit(clause.Associations).Save(&appointment).Error
	})
	if err != nil {
		if models.IsUniqueViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, err
	}
	return e.Get(ctx, id)
}

// Get loads an appointment with both participants.
func (e *Engine) Get(ctx context.Context, id string) (*models.Appointment, error) {
	var appointment models.Appointment
	err := e.db.WithContext(ctx).Preload("Patient").Preload("Doctor").First(&appointment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &appointment, nil
}

// Filter narrows List. Empty fields match everything; From and To are inclusive dates.
type Filter struct {
	PatientID string
	DoctorID  string
	Status    models.AppointmentStatus
	From      string
	To        string
}

// List returns appointments in date and time order.
func (e *Engine) List(ctx context.Context, f Filter) ([]models.Appointment, error) {
	q := e.db.WithContext(ctx).Preload("Patient").Preload("Doctor").Order("date asc, time asc")
	if f.PatientID != "" {
		q = q.Where("patient_id = ?", f.PatientID)
	}
	if f.DoctorID != "" {
		q = q.Where("doctor_id = ?", f.DoctorID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != "" {
		from, err := e.parseDate(f.From)
		if err != nil {
			return nil, err
		}
		q = q.Where("date >= ?", from.Format(models.DateLayout))
	}
	if f.To != "" {
		to, err := e.parseDate(f.To)
		if err != nil {
			return nil, err
		}
		q = q.Where("date <= ?", to.Format(models.DateLayout))
	}
	var appointments []models.Appointment
	if err := q.Find(&appointments).Error; err != nil {
		return nil, err
	}
	return appointments, nil
}

func (e *Engine) doctor(ctx context.Context, doctorID string) (*models.DoctorProfile, error) {
	profile, err := e.dir.DoctorProfileByAccount(ctx, doctorID)
	if err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return profile, nil
}

func (e *Engine) parseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(s), e.loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

func (e *Engine) slotStart(day time.Time, clock string) (time.Time, error) {
	offset, err := parseClock(clock)
	if err != nil {
		return time.Time{}, ErrInvalidTime
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, e.loc).Add(offset), nil
}

// normalizeClock accepts "H:MM", "HH:MM" and "HH:MM:SS" and returns "HH:MM".
func normalizeClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(models.TimeLayout), nil
		}
	}
	return "", ErrInvalidTime
}
