package notify

import (
	"errors"
	"testing"
	"time"

	"NutriVida_Pro/internal/config"
	"NutriVida_Pro/internal/database"

	"github.com/go-gomail/gomail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDialer struct {
	sent  chan *gomail.Message
	err   error
	delay time.Duration
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	time.Sleep(f.delay)
	if f.err != nil {
		return f.err
	}
	f.sent <- m[0]
	return nil
}

func TestNewMailer_DisabledWithoutSMTP(t *testing.T) {
	assert.Nil(t, NewMailer(&config.Config{SMTPHost: "smtp.test"}))

	m := NewMailer(&config.Config{
		SMTPHost: "smtp.test", SMTPPort: 587, SMTPUser: "clinic@test.mx", SMTPPass: "x",
		NotifyEmail: "dra@test.mx",
	})
	require.NotNil(t, m)
	assert.Equal(t, "clinic@test.mx", m.from)
}

func TestAppointmentCreated_SendsNotice(t *testing.T) {
	d := &fakeDialer{sent: make(chan *gomail.Message, 1)}
	m := &Mailer{dialer: d, from: "clinic@test.mx", to: "dra@test.mx", timeout: time.Second}

	phone := "555-1"
	m.AppointmentCreated(database.Appointment{
		ID:                  3,
		PatientName:         "Ana Lopez",
		PatientPhone:        &phone,
		AppointmentDatetime: "2025-06-01T10:00",
	})

	select {
	case msg := <-d.sent:
		assert.Equal(t, []string{"dra@test.mx"}, msg.GetHeader("To"))
		assert.Equal(t, []string{"Nueva cita: Ana Lopez"}, msg.GetHeader("Subject"))
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not sent")
	}
}

func TestSend_Errors(t *testing.T) {
	m := &Mailer{dialer: &fakeDialer{err: errors.New("auth failed")}, timeout: time.Second}
	assert.EqualError(t, m.send(database.Appointment{PatientName: "Ana"}), "auth failed")

	m = &Mailer{dialer: &fakeDialer{delay: 200 * time.Millisecond}, timeout: 20 * time.Millisecond}
	assert.EqualError(t, m.send(database.Appointment{PatientName: "Ana"}), "email sending timeout")
}

func TestAppointmentBody(t *testing.T) {
	reason := "Control de peso"
	body := appointmentBody(database.Appointment{PatientName: "Ana", AppointmentDatetime: "2025-06-01T10:00", Reason: &reason})
	assert.Contains(t, body, "Control de peso")
	assert.Contains(t, body, "<strong>Correo:</strong> -")

	body = appointmentBody(database.Appointment{PatientName: "Ana <López>"})
	assert.Contains(t, body, "Ana &lt;López&gt;")
}
