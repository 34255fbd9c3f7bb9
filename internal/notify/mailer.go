package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-gomail/gomail"

	"medibook-server/internal/models"
)

// ErrNoRecipient is returned when the patient has no email address.
var ErrNoRecipient = errors.New("appointment has no recipient email")

// sender is satisfied by *gomail.Dialer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer emails appointment events to the patient, copying the doctor on
// bookings and cancellations.
type Mailer struct {
	dialer sender
	from   string
}

// NewMailer creates a Mailer for an SMTP server.
func NewMailer(host string, port int, username, password, from string) *Mailer {
	return &Mailer{dialer: gomail.NewDialer(host, port, username, password), from: from}
}

// AppointmentEvent implements Notifier.
func (m *Mailer) AppointmentEvent(ctx context.Context, event Event, a *models.Appointment) error {
	if a.Patient.Email == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", a.Patient.Email)
	if a.Doctor.Email != "" && (event == EventBooked || event == EventCancelled || event == EventRescheduled) {
		msg.SetHeader("Cc", a.Doctor.Email)
	}
	msg.SetHeader("Subject", subject(event, a))
	msg.SetBody("text/html", body(event, a))

	return m.send(ctx, msg)
}

// send returns when delivery finishes or ctx is done. gomail bounds only the
// TCP connect, so a stalled SMTP exchange is abandoned here; the buffered
// channel lets the delivery goroutine exit whenever the server answers.
func (m *Mailer) send(ctx context.Context, msg *gomail.Message) error {
	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("smtp delivery abandoned: %w", ctx.Err())
	}
}
