// Package jobs runs periodic background work on a cron schedule.
package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"medibook-server/internal/models"
	"medibook-server/internal/notify"
	"medibook-server/internal/scheduling"
)

// Runner owns the cron scheduler.
type Runner struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

// NewRunner creates a Runner. Overlapping runs of the same job are skipped.
func NewRunner(logger zerolog.Logger) *Runner {
	return &Runner{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
	}
}

// Add registers fn under spec, a standard five-field cron expression or a
// descriptor such as "@every 5m".
func (r *Runner) Add(name, spec string, fn func(ctx context.Context) error) error {
	_, err := r.cron.AddFunc(spec, func() {
		started := time.Now()
		if err := fn(context.Background()); err != nil {
			r.logger.Error().Err(err).Str("job", name).Msg("job failed")
			return
		}
		r.logger.Debug().Str("job", name).Dur("took", time.Since(started)).Msg("job finished")
	})
	if err != nil {
		return fmt.Errorf("schedule %s job %q: %w", name, spec, err)
	}
	return nil
}

// Start runs the scheduler in its own goroutine.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (r *Runner) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// StatsSource is satisfied by *sql.DB.
type StatsSource interface {
	Stats() sql.DBStats
}

// PoolStats logs database connection pool usage.
func PoolStats(db StatsSource, logger zerolog.Logger) func(ctx context.Context) error {
	return func(context.Context) error {
		s := db.Stats()
		logger.Info().
			Int("open", s.OpenConnections).
			Int("in_use", s.InUse).
			Int("idle", s.Idle).
			Int64("wait_count", s.WaitCount).
			Dur("wait_duration", s.WaitDuration).
			Msg("database pool stats")
		return nil
	}
}

// AppointmentLister is the part of the scheduling engine reminders need.
type AppointmentLister interface {
	List(ctx context.Context, f scheduling.Filter) ([]models.Appointment, error)
}

// Reminders notifies every patient with a SCHEDULED appointment tomorrow.
// A failed delivery is logged and the rest are still attempted.
func Reminders(appointments AppointmentLister, notifier notify.Notifier, now func() time.Time, logger zerolog.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		tomorrow := now().AddDate(0, 0, 1).Format(models.DateLayout)
		due, err := appointments.List(ctx, scheduling.Filter{
			Status: models.AppointmentScheduled,
			From:   tomorrow,
			To:     tomorrow,
		})
		if err != nil {
			return fmt.Errorf("list appointments for %s: %w", tomorrow, err)
		}
		sent := 0
		for i := range due {
			if err := notifier.AppointmentEvent(ctx, notify.EventReminder, &due[i]); err != nil {
				logger.Warn().Err(err).Str("appointment_id", due[i].ID).Msg("reminder not delivered")
				continue
			}
			sent++
		}
		logger.Info().Str("date", tomorrow).Int("due", len(due)).Int("sent", sent).Msg("appointment reminders processed")
		return nil
	}
}
