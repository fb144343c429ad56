package patient

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"NutriVida_Pro/internal/apperr"
	"NutriVida_Pro/internal/database"
	"NutriVida_Pro/internal/utility"
)

// Store is the slice of the query layer the patient registry needs.
type Store interface {
	CreatePatient(ctx context.Context, arg database.PatientParams) (int64, error)
	GetPatient(ctx context.Context, id int64) (database.Patient, error)
	GetPatientByPhone(ctx context.Context, phone string) (database.Patient, error)
	GetPatientDetail(ctx context.Context, id int64) (database.PatientDetail, error)
	ListPatients(ctx context.Context, arg database.ListPatientsParams) ([]database.PatientListRow, error)
	PatientExists(ctx context.Context, id int64) (bool, error)
	PhoneTaken(ctx context.Context, phone string, exceptID int64) (bool, error)
	UpdatePatient(ctx context.Context, id int64, arg database.PatientParams) (int64, error)
	DeletePatient(ctx context.Context, id int64) (int64, error)
	GetPatientStats(ctx context.Context, patientID int64) (database.PatientStats, error)
}

// Input is the demographic payload accepted on create and update.
type Input struct {
	FullName         string `json:"full_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	BirthDate        string `json:"birth_date"`
	Gender           string `json:"gender"`
	Occupation       string `json:"occupation"`
	Address          string `json:"address"`
	EmergencyContact string `json:"emergency_contact"`
	EmergencyPhone   string `json:"emergency_phone"`
	BloodType        string `json:"blood_type"`
	Allergies        string `json:"allergies"`
	Notes            string `json:"notes"`
}

func (in Input) params() database.PatientParams {
	return database.PatientParams{
		FullName:         strings.TrimSpace(in.FullName),
		Email:            utility.StringPtr(strings.TrimSpace(in.Email)),
		Phone:            strings.TrimSpace(in.Phone),
		BirthDate:        utility.StringPtr(in.BirthDate),
		Gender:           utility.StringPtr(in.Gender),
		Occupation:       utility.StringPtr(in.Occupation),
		Address:          utility.StringPtr(in.Address),
		EmergencyContact: utility.StringPtr(in.EmergencyContact),
		EmergencyPhone:   utility.StringPtr(in.EmergencyPhone),
		BloodType:        utility.StringPtr(in.BloodType),
		Allergies:        utility.StringPtr(in.Allergies),
		Notes:            utility.StringPtr(in.Notes),
	}
}

func (in Input) validate() error {
	if strings.TrimSpace(in.FullName) == "" || strings.TrimSpace(in.Phone) == "" {
		return apperr.Validation("full_name and phone are required")
	}
	if !utility.ValidEmail(in.Email) {
		return apperr.Validation("Invalid email address")
	}
	return nil
}

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type ListParams struct {
	Search string
	Limit  int
	Offset int
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, p ListParams) ([]database.PatientListRow, error) {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	rows, err := s.store.ListPatients(ctx, database.ListPatientsParams{
		Search: strings.TrimSpace(p.Search),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		return nil, apperr.Storage("Failed to retrieve patients", err)
	}
	return rows, nil
}

func (s *Service) Get(ctx context.Context, id int64) (database.PatientDetail, error) {
	d, err := s.store.GetPatientDetail(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return d, apperr.NotFound("Patient not found")
	}
	if err != nil {
		return d, apperr.Storage("Failed to retrieve patient", err)
	}
	return d, nil
}

func (s *Service) Create(ctx context.Context, in Input) (database.Patient, error) {
	if err := in.validate(); err != nil {
		return database.Patient{}, err
	}
	arg := in.params()

	taken, err := s.store.PhoneTaken(ctx, arg.Phone, 0)
	if err != nil {
		return database.Patient{}, apperr.Storage("Failed to verify patient", err)
	}
	if taken {
		return database.Patient{}, apperr.Conflict("A patient with this phone number already exists")
	}

	id, err := s.store.CreatePatient(ctx, arg)
	if database.IsUniqueViolation(err) {
		// Lost a race with a concurrent create for the same phone.
		return database.Patient{}, apperr.Conflict("A patient with this phone number already exists")
	}
	if err != nil {
		return database.Patient{}, apperr.Storage("Failed to create patient", err)
	}

	p, err := s.store.GetPatient(ctx, id)
	if err != nil {
		return database.Patient{}, apperr.Storage("Patient created but could not be retrieved", err)
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, id int64, in Input) (database.Patient, error) {
	if err := in.validate(); err != nil {
		return database.Patient{}, err
	}
	arg := in.params()

	exists, err := s.store.PatientExists(ctx, id)
	if err != nil {
		return database.Patient{}, apperr.Storage("Failed to verify patient", err)
	}
	if !exists {
		return database.Patient{}, apperr.NotFound("Patient not found")
	}

	taken, err := s.store.PhoneTaken(ctx, arg.Phone, id)
	if err != nil {
		return database.Patient{}, apperr.Storage("Failed to verify phone", err)
	}
	if taken {
		return database.Patient{}, apperr.Conflict("Another patient already has this phone number")
	}

	if _, err := s.store.UpdatePatient(ctx, id, arg); err != nil {
		if database.IsUniqueViolation(err) {
			return database.Patient{}, apperr.Conflict("Another patient already has this phone number")
		}
		return database.Patient{}, apperr.Storage("Failed to update patient", err)
	}

	p, err := s.store.GetPatient(ctx, id)
	if err != nil {
		return database.Patient{}, apperr.Storage("Patient updated but could not be retrieved", err)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	n, err := s.store.DeletePatient(ctx, id)
	if err != nil {
		return apperr.Storage("Failed to delete patient", err)
	}
	if n == 0 {
		return apperr.NotFound("Patient not found")
	}
	return nil
}

func (s *Service) FindByPhone(ctx context.Context, phone string) (database.Patient, error) {
	p, err := s.store.GetPatientByPhone(ctx, strings.TrimSpace(phone))
	if errors.Is(err, sql.ErrNoRows) {
		return p, apperr.NotFound("Patient not found")
	}
	if err != nil {
		return p, apperr.Storage("Failed to search patient", err)
	}
	return p, nil
}

// Stats aggregates weight and BMI over the patient's consultations.
func (s *Service) Stats(ctx context.Context, id int64) (database.PatientStats, error) {
	exists, err := s.store.PatientExists(ctx, id)
	if err != nil {
		return database.PatientStats{}, apperr.Storage("Failed to verify patient", err)
	}
	if !exists {
		return database.PatientStats{}, apperr.NotFound("Patient not found")
	}

	st, err := s.store.GetPatientStats(ctx, id)
	if err != nil {
		return st, apperr.Storage("Failed to retrieve statistics", err)
	}
	if st.InitialWeight != nil && st.CurrentWeight != nil {
		diff := utility.Round2(*st.CurrentWeight - *st.InitialWeight)
		st.WeightDifference = &diff
	}
	return st, nil
}
