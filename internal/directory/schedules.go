package directory

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"medibook-server/internal/models"
)

// ScheduleInput describes a weekly availability window.
type ScheduleInput struct {
	DayOfWeek          string
	StartTime          string
	EndTime            string
	SlotMinutes        int
	MaxPatientsPerSlot int
	Fee                float64
	IsAvailable        bool
}

func (in ScheduleInput) apply(s *models.DoctorSchedule) error {
	day, ok := models.ParseWeekday(in.DayOfWeek)
	if !ok {
		return fmt.Errorf("%w: unknown day %q", ErrInvalidSchedule, in.DayOfWeek)
	}
	start, err := time.Parse(models.TimeLayout, in.StartTime)
	if err != nil {
		return fmt.Errorf("%w: start time must be HH:MM", ErrInvalidSchedule)
	}
	end, err := time.Parse(models.TimeLayout, in.EndTime)
	if err != nil {
		return fmt.Errorf("%w: end time must be HH:MM", ErrInvalidSchedule)
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start time must be before end time", ErrInvalidSchedule)
	}
	minutes := in.SlotMinutes
	if minutes == 0 {
		minutes = 30
	}
	if minutes < 5 || time.Duration(minutes)*time.Minute > end.Sub(start) {
		return fmt.Errorf("%w: slot length does not fit the window", ErrInvalidSchedule)
	}
	maxPatients := in.MaxPatientsPerSlot
	if maxPatients <= 0 {
		maxPatients = 1
	}

	s.DayOfWeek = day
	s.StartTime = start.Format(models.TimeLayout)
	s.EndTime = end.Format(models.TimeLayout)
	s.SlotMinutes = minutes
	s.MaxPatientsPerSlot = maxPatients
	s.Fee = in.Fee
	s.IsAvailable = in.IsAvailable
	return nil
}

// CreateSchedule adds a weekly window for a doctor.
func (d *Directory) CreateSchedule(ctx context.Context, doctorID string, in ScheduleInput) (*models.DoctorSchedule, error) {
	if _, err := d.DoctorProfileByAccount(ctx, doctorID); err != nil {
		return nil, err
	}
	schedule := models.DoctorSchedule{DoctorID: doctorID}
	if err := in.apply(&schedule); err != nil {
		return nil, err
	}
	if err := d.db.WithContext(ctx).Omit("Doctor").Create(&schedule).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListSchedules returns all windows of a doctor.
func (d *Directory) ListSchedules(ctx context.Context, doctorID string) ([]models.DoctorSchedule, error) {
	var schedules []models.DoctorSchedule
	err := d.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Order("day_of_week asc, start_time asc").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

// SchedulesForDay returns every window a doctor has on day, available or not,
// ordered by start time.
func (d *Directory) SchedulesForDay(ctx context.Context, doctorID string, day models.Weekday) ([]models.DoctorSchedule, error) {
	var schedules []models.DoctorSchedule
	err := d.db.WithContext(ctx).
		Where("doctor_id = ? AND day_of_week = ?", doctorID, day).
		Order("start_time asc").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

func (d *Directory) ownedSchedule(tx *gorm.DB, doctorID, id string) (*models.DoctorSchedule, error) {
	var schedule models.DoctorSchedule
	if err := tx.First(&schedule, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrScheduleNotFound)
	}
	if schedule.DoctorID != doctorID {
		return nil, ErrNotOwner
	}
	return &schedule, nil
}

// UpdateSchedule replaces a window owned by doctorID.
func (d *Directory) UpdateSchedule(ctx context.Context, doctorID, id string, in ScheduleInput) (*models.DoctorSchedule, error) {
	var out *models.DoctorSchedule
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		schedule, err := d.ownedSchedule(tx, doctorID, id)
		if err != nil {
			return err
		}
		if err := in.apply(schedule); err != nil {
			return err
		}
		if err := tx.Omit("Doctor").Save(schedule).Error; err != nil {
			return err
		}
		out = schedule
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSchedule removes a window owned by doctorID.
func (d *Directory) DeleteSchedule(ctx context.Context, doctorID, id string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		schedule, err := d.ownedSchedule(tx, doctorID, id)
		if err != nil {
			return err
		}
		return tx.Delete(schedule).Error
	})
}
