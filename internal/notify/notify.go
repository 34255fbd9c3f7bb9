// Package notify tells patients and doctors about appointment changes.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"medibook-server/internal/models"
)

// Event is what happened to an appointment.
type Event string

const (
	EventBooked      Event = "booked"
	EventCancelled   Event = "cancelled"
	EventRescheduled Event = "rescheduled"
	EventCompleted   Event = "completed"
	EventReminder    Event = "reminder"
)

// Notifier delivers appointment events. Participants must be preloaded.
type Notifier interface {
	AppointmentEvent(ctx context.Context, event Event, a *models.Appointment) error
}

// LogNotifier only logs events. Used when no SMTP server is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// AppointmentEvent implements Notifier.
func (n *LogNotifier) AppointmentEvent(_ context.Context, event Event, a *models.Appointment) error {
	n.logger.Info().
		Str("event", string(event)).
		Str("appointment_id", a.ID).
		Str("patient_id", a.PatientID).
		Str("doctor_id", a.DoctorID).
		Str("slot", a.Date+" "+a.Time).
		Msg("appointment notification")
	return nil
}

// Async hands events to a background goroutine so callers never wait on or
// fail because of delivery. Errors are logged.
type Async struct {
	next    Notifier
	logger  zerolog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsync wraps next.
func NewAsync(next Notifier, logger zerolog.Logger) *Async {
	return &Async{next: next, logger: logger, timeout: 30 * time.Second}
}

// AppointmentEvent implements Notifier. It always returns nil.
func (a *Async) AppointmentEvent(_ context.Context, event Event, appt *models.Appointment) error {
	snapshot := *appt
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.next.AppointmentEvent(ctx, event, &snapshot); err != nil {
			a.logger.Error().Err(err).
				Str("event", string(event)).
				Str("appointment_id", snapshot.ID).
				Msg("failed to deliver appointment notification")
		}
	}()
	return nil
}

// Wait blocks until queued deliveries finish.
func (a *Async) Wait() {
	a.wg.Wait()
}

func subject(event Event, a *models.Appointment) string {
	when := a.Date + " " + a.Time
	switch event {
	case EventBooked:
		return "Appointment confirmed for " + when
	case EventCancelled:
		return "Appointment cancelled: " + when
	case EventRescheduled:
		return "Appointment moved to " + when
	case EventCompleted:
		return "Your visit summary is ready"
	case EventReminder:
		return "Reminder: appointment on " + when
	}
	return "Appointment update"
}

func body(event Event, a *models.Appointment) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<p>Hello %s,</p>", a.Patient.FullName())
	switch event {
	case EventBooked:
		fmt.Fprintf(&sb, "<p>Your %s appointment with Dr. %s is booked for %s at %s.</p>",
			strings.ToLower(strings.ReplaceAll(string(a.ConsultationType), "_", " ")), a.Doctor.FullName(), a.Date, a.Time)
		if a.Fee > 0 {
			fmt.Fprintf(&sb, "<p>Consultation fee: %.2f</p>", a.Fee)
		}
	case EventCancelled:
		fmt.Fprintf(&sb, "<p>Your appointment with Dr. %s on %s at %s has been cancelled.</p>", a.Doctor.FullName(), a.Date, a.Time)
	case EventRescheduled:
		fmt.Fprintf(&sb, "<p>Your appointment with Dr. %s now takes place on %s at %s.</p>", a.Doctor.FullName(), a.Date, a.Time)
	case EventCompleted:
		fmt.Fprintf(&sb, "<p>Dr. %s has completed your consultation. Your visit record is available in the app.</p>", a.Doctor.FullName())
	case EventReminder:
		fmt.Fprintf(&sb, "<p>This is a reminder of your appointment with Dr. %s on %s at %s.</p>", a.Doctor.FullName(), a.Date, a.Time)
	}
	sb.WriteString("<p>MediBook</p>")
	return sb.String()
}
