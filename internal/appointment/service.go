package appointment

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"NutriVida_Pro/internal/apperr"
	"NutriVida_Pro/internal/database"
	"NutriVida_Pro/internal/patient"
	"NutriVida_Pro/internal/utility"

	"github.com/rs/zerolog/log"
)

type Store interface {
	CreateAppointment(ctx context.Context, arg database.CreateAppointmentParams) (int64, error)
	GetAppointment(ctx context.Context, id int64) (database.Appointment, error)
	ListAppointments(ctx context.Context, arg database.ListAppointmentsParams) ([]database.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id int64, status string) (int64, error)
	LinkAppointmentPatient(ctx context.Context, id, patientID int64) error
	CountAppointmentsOn(ctx context.Context, day string) (database.StatusCounts, error)
	CountAppointmentsSince(ctx context.Context, from string) (database.StatusCounts, error)
	GetPatient(ctx context.Context, id int64) (database.Patient, error)
}

// PatientCreator registers a patient with the registry's validation and
// phone-uniqueness rules.
type PatientCreator interface {
	Create(ctx context.Context, in patient.Input) (database.Patient, error)
}

// Listener is told about every appointment booked from the public site.
type Listener interface {
	AppointmentCreated(a database.Appointment)
}

type CreateInput struct {
	PatientName         string `json:"patient_name"`
	PatientEmail        string `json:"patient_email"`
	PatientPhone        string `json:"patient_phone"`
	Reason              string `json:"reason"`
	AppointmentDatetime string `json:"appointment_datetime"`
}

type ListFilter struct {
	Status   string
	Query    string
	DateFrom string
	DateTo   string
}

type Stats struct {
	Today  database.StatusCounts `json:"today"`
	Last30 database.StatusCounts `json:"last30"`
}

type Service struct {
	store     Store
	patients  PatientCreator
	listeners []Listener
	now       func() time.Time
}

func NewService(store Store, patients PatientCreator, listeners ...Listener) *Service {
	return &Service{store: store, patients: patients, listeners: listeners, now: time.Now}
}

// Create books a pending appointment. It is the only public operation.
func (s *Service) Create(ctx context.Context, in CreateInput) (database.Appointment, error) {
	name := strings.TrimSpace(in.PatientName)
	when := strings.TrimSpace(in.AppointmentDatetime)
	if name == "" || when == "" {
		return database.Appointment{}, apperr.Validation("patient_name and appointment_datetime are required")
	}
	if !utility.ValidEmail(in.PatientEmail) {
		return database.Appointment{}, apperr.Validation("Invalid email address")
	}

	id, err := s.store.CreateAppointment(ctx, database.CreateAppointmentParams{
		PatientName:         name,
		PatientEmail:        utility.StringPtr(strings.TrimSpace(in.PatientEmail)),
		PatientPhone:        utility.StringPtr(strings.TrimSpace(in.PatientPhone)),
		Reason:              utility.StringPtr(in.Reason),
		AppointmentDatetime: when,
	})
	if err != nil {
		return database.Appointment{}, apperr.Storage("Failed to create appointment", err)
	}

	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return database.Appointment{}, apperr.Storage("Appointment created but could not be retrieved", err)
	}

	for _, l := range s.listeners {
		l.AppointmentCreated(a)
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]database.Appointment, error) {
	rows, err := s.store.ListAppointments(ctx, database.ListAppointmentsParams{
		Status:   strings.TrimSpace(f.Status),
		Query:    strings.TrimSpace(f.Query),
		DateFrom: strings.TrimSpace(f.DateFrom),
		DateTo:   strings.TrimSpace(f.DateTo),
	})
	if err != nil {
		return nil, apperr.Storage("Failed to retrieve appointments", err)
	}
	return rows, nil
}

func (s *Service) Get(ctx context.Context, id int64) (database.Appointment, error) {
	a, err := s.store.GetAppointment(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return a, apperr.NotFound("Appointment not found")
	}
	if err != nil {
		return a, apperr.Storage("Failed to retrieve appointment", err)
	}
	return a, nil
}

// UpdateStatus moves an appointment to any of the three states.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) error {
	status = strings.TrimSpace(status)
	if !database.ValidStatus(status) {
		return apperr.Validation("Invalid status")
	}
	n, err := s.store.UpdateAppointmentStatus(ctx, id, status)
	if err != nil {
		return apperr.Storage("Failed to update appointment", err)
	}
	if n == 0 {
		return apperr.NotFound("Appointment not found")
	}
	return nil
}

// Stats counts appointments by status for today and for everything dated
// from 30 days ago onwards, upcoming bookings included.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	now := s.now()
	today := database.FormatDate(now)
	from := database.FormatDate(now.AddDate(0, 0, -30))

	var st Stats
	var err error
	if st.Today, err = s.store.CountAppointmentsOn(ctx, today); err != nil {
		return st, apperr.Storage("Failed to retrieve today's statistics", err)
	}
	if st.Last30, err = s.store.CountAppointmentsSince(ctx, from); err != nil {
		return st, apperr.Storage("Failed to retrieve 30-day statistics", err)
	}
	return st, nil
}

// ConvertToPatient returns the patient behind an appointment, registering one
// from the appointment's contact data when no email or phone match exists.
// The appointment is linked to the patient either way.
func (s *Service) ConvertToPatient(ctx context.Context, id int64) (database.Patient, bool, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return database.Patient{}, false, err
	}

	if a.LinkedPatientID != nil {
		p, err := s.store.GetPatient(ctx, *a.LinkedPatientID)
		if err != nil {
			return database.Patient{}, false, apperr.Storage("Failed to retrieve linked patient", err)
		}
		if a.PatientID == nil {
			s.link(ctx, a.ID, p.ID)
		}
		return p, false, nil
	}

	if a.PatientPhone == nil {
		return database.Patient{}, false, apperr.Validation("The appointment has no phone number; register the patient manually")
	}

	in := patient.Input{FullName: a.PatientName, Phone: *a.PatientPhone}
	if a.PatientEmail != nil {
		in.Email = *a.PatientEmail
	}
	p, err := s.patients.Create(ctx, in)
	if err != nil {
		return database.Patient{}, false, err
	}
	s.link(ctx, a.ID, p.ID)
	return p, true, nil
}

// link failures are logged only. The email/phone match still surfaces the
// patient on reads.
func (s *Service) link(ctx context.Context, appointmentID, patientID int64) {
	if err := s.store.LinkAppointmentPatient(ctx, appointmentID, patientID); err != nil {
		log.Error().Err(err).Int64("appointment_id", appointmentID).Int64("patient_id", patientID).
			Msg("Failed to link appointment to patient")
	}
}
