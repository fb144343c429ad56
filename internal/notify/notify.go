// Package notify e-mails the practitioner when a patient books an appointment
// from the public site.
package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"NutriVida_Pro/internal/config"
	"NutriVida_Pro/internal/database"

	"github.com/go-gomail/gomail"
	"github.com/rs/zerolog/log"
)

const sendTimeout = 15 * time.Second

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	dialer  sender
	from    string
	to      string
	timeout time.Duration
}

// NewMailer returns nil when SMTP is not fully configured.
func NewMailer(cfg *config.Config) *Mailer {
	if !cfg.MailEnabled() {
		return nil
	}
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	return &Mailer{
		dialer:  gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		from:    from,
		to:      cfg.NotifyEmail,
		timeout: sendTimeout,
	}
}

// AppointmentCreated sends the notice in the background. Delivery failures
// are logged and never reach the patient who booked.
func (m *Mailer) AppointmentCreated(a database.Appointment) {
	go func() {
		if err := m.send(a); err != nil {
			log.Error().Err(err).Int64("appointment_id", a.ID).Msg("Failed to send appointment notification")
			return
		}
		log.Info().Int64("appointment_id", a.ID).Str("to", m.to).Msg("Appointment notification sent")
	}()
}

func (m *Mailer) send(a database.Appointment) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to)
	msg.SetHeader("Subject", "Nueva cita: "+a.PatientName)
	msg.SetBody("text/html", appointmentBody(a))

	errChan := make(chan error, 1)
	go func() {
		errChan <- m.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-errChan:
		return err
	case <-time.After(m.timeout):
		return fmt.Errorf("email sending timeout")
	}
}

func appointmentBody(a database.Appointment) string {
	var b strings.Builder
	b.WriteString("<h2>Nueva cita agendada</h2><ul>")
	row := func(label string, value *string) {
		v := "-"
		if value != nil && *value != "" {
			v = *value
		}
		fmt.Fprintf(&b, "<li><strong>%s:</strong> %s</li>", label, html.EscapeString(v))
	}
	row("Paciente", &a.PatientName)
	row("Fecha y hora", &a.AppointmentDatetime)
	row("Correo", a.PatientEmail)
	row("Teléfono", a.PatientPhone)
	row("Motivo", a.Reason)
	b.WriteString("</ul>")
	return b.String()
}
