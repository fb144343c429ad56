// Package consultation records SOAP consultations and keeps the rest of the
// clinic in step with them: the patient's current vitals, the appointment the
// consultation fulfils, and the body measurements taken during it.
package consultation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"NutriVida_Pro/internal/apperr"
	"NutriVida_Pro/internal/database"
	"NutriVida_Pro/internal/utility"

	"github.com/rs/zerolog/log"
)

const (
	DefaultLimit        = 50
	MaxLimit            = 500
	DefaultRecentLimit  = 10
	DefaultHistoryLimit = 20
	DefaultNoteType     = "Seguimiento"
)

// Cascade steps reported to the failure hook.
const (
	StepPatientVitals     = "patient_vitals"
	StepAppointmentStatus = "appointment_status"
	StepMeasurements      = "measurements"
)

type Store interface {
	CreateConsultation(ctx context.Context, arg database.CreateConsultationParams) (int64, error)
	GetConsultation(ctx context.Context, id int64) (database.Consultation, error)
	GetConsultationWithPatient(ctx context.Context, id int64) (database.ConsultationWithPatient, error)
	GetConsultationPatientID(ctx context.Context, id int64) (int64, error)
	UpdateConsultation(ctx context.Context, arg database.UpdateConsultationParams) (int64, error)
	DeleteConsultation(ctx context.Context, id int64) (int64, error)
	ListConsultationsByPatient(ctx context.Context, arg database.ListConsultationsByPatientParams) ([]database.ConsultationWithPatient, error)
	ListRecentConsultations(ctx context.Context, limit int) ([]database.ConsultationWithPatient, error)
	WeightHistory(ctx context.Context, patientID int64, limit int) ([]database.WeightPoint, error)

	PatientExists(ctx context.Context, id int64) (bool, error)
	AppointmentExists(ctx context.Context, id int64) (bool, error)

	CreateEvolutionNote(ctx context.Context, arg database.CreateEvolutionNoteParams) (int64, error)
	GetEvolutionNote(ctx context.Context, id int64) (database.EvolutionNote, error)
	ListEvolutionNotesByConsultation(ctx context.Context, consultationID int64) ([]database.EvolutionNote, error)
	ListMeasurementsByConsultation(ctx context.Context, consultationID int64) ([]database.Measurement, error)

	CreateCalculation(ctx context.Context, arg database.CreateCalculationParams) (int64, error)
	GetCalculation(ctx context.Context, id int64) (database.NutritionalCalculation, error)
	ListCalculationsByPatient(ctx context.Context, patientID int64) ([]database.NutritionalCalculation, error)

	CascadeStore
}

// CascadeStore holds the writes that follow a consultation insert. None of
// them can undo the consultation.
type CascadeStore interface {
	UpdatePatientVitals(ctx context.Context, arg database.UpdatePatientVitalsParams) error
	CompleteAppointment(ctx context.Context, id, patientID int64) (int64, error)
	CreateMeasurement(ctx context.Context, arg database.CreateMeasurementParams) (int64, error)
	DeleteMeasurementsByConsultation(ctx context.Context, consultationID int64) (int64, error)
}

// Listener is told about every consultation that was stored.
type Listener interface {
	ConsultationCreated(c database.Consultation)
}

type MeasurementsInput struct {
	Chest        *float64 `json:"chest"`
	ArmLeft      *float64 `json:"arm_left"`
	ArmRight     *float64 `json:"arm_right"`
	ForearmLeft  *float64 `json:"forearm_left"`
	ForearmRight *float64 `json:"forearm_right"`
	ThighLeft    *float64 `json:"thigh_left"`
	ThighRight   *float64 `json:"thigh_right"`
	CalfLeft     *float64 `json:"calf_left"`
	CalfRight    *float64 `json:"calf_right"`
	Notes        *string  `json:"notes"`
}

func (m *MeasurementsInput) empty() bool {
	if m == nil {
		return true
	}
	for _, f := range []*float64{
		m.Chest, m.ArmLeft, m.ArmRight, m.ForearmLeft, m.ForearmRight,
		m.ThighLeft, m.ThighRight, m.CalfLeft, m.CalfRight,
	} {
		if f != nil {
			return false
		}
	}
	return m.Notes == nil || strings.TrimSpace(*m.Notes) == ""
}

type CreateInput struct {
	PatientID        int64  `json:"patient_id"`
	AppointmentID    *int64 `json:"appointment_id"`
	ConsultationDate string `json:"consultation_date"`
	database.ConsultationFields
	CreatedBy    string             `json:"created_by"`
	Measurements *MeasurementsInput `json:"measurements"`
}

type UpdateInput struct {
	ConsultationDate string `json:"consultation_date"`
	database.ConsultationFields
}

type NoteInput struct {
	Note        string `json:"note"`
	NoteType    string `json:"note_type"`
	IsImportant bool   `json:"is_important"`
	CreatedBy   string `json:"created_by"`
}

// CalculationInput is the payload of the energy calculator: the patient
// data it was fed and the results it produced.
type CalculationInput struct {
	PatientID      int64            `json:"patient_id"`
	ConsultationID *int64           `json:"consultation_id"`
	Data           *CalculationData `json:"calculation_data"`
}

type CalculationData struct {
	Weight        *float64           `json:"weight"`
	Height        *float64           `json:"height"`
	Age           *int64             `json:"age"`
	Gender        string             `json:"gender"`
	Formula       string             `json:"formula"`
	ActivityLevel *float64           `json:"activityLevel"`
	StressFactor  *float64           `json:"stressFactor"`
	Goal          string             `json:"goal"`
	Condition     string             `json:"condition"`
	Results       CalculationResults `json:"results"`
}

type CalculationResults struct {
	TMB         *float64 `json:"tmb"`
	GET         *float64 `json:"get"`
	CalorieGoal struct {
		Calories *float64 `json:"calories"`
	} `json:"calorieGoal"`
	Macros struct {
		Protein MacroAmount `json:"protein"`
		Carbs   MacroAmount `json:"carbs"`
		Fats    MacroAmount `json:"fats"`
	} `json:"macros"`
	Metadata struct {
		DistributionStrategy string `json:"distribution_strategy"`
	} `json:"metadata"`
	MealDistribution json.RawMessage `json:"mealDistribution"`
}

type MacroAmount struct {
	Grams *float64 `json:"grams"`
}

type Option func(*Service)

func WithListeners(listeners ...Listener) Option {
	return func(s *Service) { s.listeners = append(s.listeners, listeners...) }
}

// WithCascadeFailureHook registers fn to be called with the step name each
// time a post-insert write fails.
func WithCascadeFailureHook(fn func(step string)) Option {
	return func(s *Service) { s.onCascadeFailure = fn }
}

type Service struct {
	store            Store
	listeners        []Listener
	onCascadeFailure func(step string)
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BMI is weight over squared height in metres, rounded to two decimals. It
// is nil unless both inputs are positive.
func BMI(weightKg, heightCm *float64) *float64 {
	if weightKg == nil || heightCm == nil || *weightKg <= 0 || *heightCm <= 0 {
		return nil
	}
	m := *heightCm / 100
	v := utility.Round2(*weightKg / (m * m))
	return &v
}

func WaistHipRatio(waist, hip *float64) *float64 {
	if waist == nil || hip == nil || *waist <= 0 || *hip <= 0 {
		return nil
	}
	v := utility.Round2(*waist / *hip)
	return &v
}

// derive normalises f and overwrites whatever bmi and waist_hip_ratio the
// client sent.
func derive(f *database.ConsultationFields) {
	f.Normalize()
	f.BMI = BMI(f.Weight, f.Height)
	f.WaistHipRatio = WaistHipRatio(f.Waist, f.Hip)
}

// Create stores a consultation and then runs the cascade. Once the row is
// inserted the call succeeds even if a cascade step fails.
func (s *Service) Create(ctx context.Context, in CreateInput) (database.Consultation, error) {
	date := strings.TrimSpace(in.ConsultationDate)
	if in.PatientID <= 0 || date == "" {
		return database.Consultation{}, apperr.Validation("patient_id and consultation_date are required")
	}
	derive(&in.ConsultationFields)

	ok, err := s.store.PatientExists(ctx, in.PatientID)
	if err != nil {
		return database.Consultation{}, apperr.Storage("Failed to verify patient", err)
	}
	if !ok {
		return database.Consultation{}, apperr.NotFound("Patient not found")
	}

	if in.AppointmentID != nil {
		ok, err := s.store.AppointmentExists(ctx, *in.AppointmentID)
		if err != nil {
			return database.Consultation{}, apperr.Storage("Failed to verify appointment", err)
		}
		if !ok {
			return database.Consultation{}, apperr.NotFound("Appointment not found")
		}
	}

	id, err := s.store.CreateConsultation(ctx, database.CreateConsultationParams{
		PatientID:        in.PatientID,
		AppointmentID:    in.AppointmentID,
		ConsultationDate: date,
		Fields:           in.ConsultationFields,
		CreatedBy:        utility.StringPtr(strings.TrimSpace(in.CreatedBy)),
	})
	if err != nil {
		return database.Consultation{}, apperr.Storage("Failed to create consultation", err)
	}

	s.cascade(ctx, id, date, in)

	c, err := s.store.GetConsultation(ctx, id)
	if err != nil {
		return database.Consultation{}, apperr.Storage("Consultation created but could not be retrieved", err)
	}
	for _, l := range s.listeners {
		l.ConsultationCreated(c)
	}
	return c, nil
}

func (s *Service) cascade(ctx context.Context, id int64, date string, in CreateInput) {
	logger := log.With().Int64("consultation_id", id).Int64("patient_id", in.PatientID).Logger()

	if in.Weight != nil {
		err := s.store.UpdatePatientVitals(ctx, database.UpdatePatientVitalsParams{
			ID:                   in.PatientID,
			CurrentWeight:        in.Weight,
			CurrentBMI:           in.BMI,
			LastConsultationDate: date,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to update patient vitals after consultation")
			s.cascadeFailed(StepPatientVitals)
		}
	}

	if in.AppointmentID != nil {
		if _, err := s.store.CompleteAppointment(ctx, *in.AppointmentID, in.PatientID); err != nil {
			logger.Error().Err(err).Int64("appointment_id", *in.AppointmentID).
				Msg("Failed to mark appointment as done after consultation")
			s.cascadeFailed(StepAppointmentStatus)
		}
	}

	if m := in.Measurements; !m.empty() {
		_, err := s.store.CreateMeasurement(ctx, database.CreateMeasurementParams{
			PatientID:       in.PatientID,
			ConsultationID:  id,
			MeasurementDate: date,
			Chest:           m.Chest,
			ArmLeft:         m.ArmLeft,
			ArmRight:        m.ArmRight,
			ForearmLeft:     m.ForearmLeft,
			ForearmRight:    m.ForearmRight,
			ThighLeft:       m.ThighLeft,
			ThighRight:      m.ThighRight,
			CalfLeft:        m.CalfLeft,
			CalfRight:       m.CalfRight,
			Notes:           m.Notes,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to store measurements after consultation")
			s.cascadeFailed(StepMeasurements)
		}
	}
}

func (s *Service) cascadeFailed(step string) {
	if s.onCascadeFailure != nil {
		s.onCascadeFailure(step)
	}
}

// Update overwrites every clinical field. Fields missing from in are cleared;
// the consultation date is kept when in leaves it blank.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (database.Consultation, error) {
	derive(&in.ConsultationFields)

	n, err := s.store.UpdateConsultation(ctx, database.UpdateConsultationParams{
		ID:               id,
		ConsultationDate: utility.StringPtr(strings.TrimSpace(in.ConsultationDate)),
		Fields:           in.ConsultationFields,
	})
	if err != nil {
		return database.Consultation{}, apperr.Storage("Failed to update consultation", err)
	}
	if n == 0 {
		return database.Consultation{}, apperr.NotFound("Consultation not found")
	}

	c, err := s.store.GetConsultation(ctx, id)
	if err != nil {
		return database.Consultation{}, apperr.Storage("Consultation updated but could not be retrieved", err)
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	n, err := s.store.DeleteConsultation(ctx, id)
	if err != nil {
		return apperr.Storage("Failed to delete consultation", err)
	}
	if n == 0 {
		return apperr.NotFound("Consultation not found")
	}
	if _, err := s.store.DeleteMeasurementsByConsultation(ctx, id); err != nil {
		log.Error().Err(err).Int64("consultation_id", id).Msg("Failed to delete measurements of consultation")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (database.ConsultationWithPatient, error) {
	c, err := s.store.GetConsultationWithPatient(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return c, apperr.NotFound("Consultation not found")
	}
	if err != nil {
		return c, apperr.Storage("Failed to retrieve consultation", err)
	}
	return c, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]database.ConsultationWithPatient, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.store.ListConsultationsByPatient(ctx, database.ListConsultationsByPatientParams{
		PatientID: patientID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, apperr.Storage("Failed to retrieve consultations", err)
	}
	return rows, nil
}

func (s *Service) WeightHistory(ctx context.Context, patientID int64, limit int) ([]database.WeightPoint, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	points, err := s.store.WeightHistory(ctx, patientID, limit)
	if err != nil {
		return nil, apperr.Storage("Failed to retrieve weight history", err)
	}
	return points, nil
}

func (s *Service) Recent(ctx context.Context, limit int) ([]database.ConsultationWithPatient, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := s.store.ListRecentConsultations(ctx, limit)
	if err != nil {
		return nil, apperr.Storage("Failed to retrieve recent consultations", err)
	}
	return rows, nil
}

// AddEvolutionNote attaches a follow-up note to a consultation. The note
// belongs to the consultation's patient.
func (s *Service) AddEvolutionNote(ctx context.Context, consultationID int64, in NoteInput) (database.EvolutionNote, error) {
	note := strings.TrimSpace(in.Note)
	if note == "" {
		return database.EvolutionNote{}, apperr.Validation("note is required")
	}
	noteType := strings.TrimSpace(in.NoteType)
	if noteType == "" {
		noteType = DefaultNoteType
	}

	patientID, err := s.patientOf(ctx, consultationID)
	if err != nil {
		return database.EvolutionNote{}, err
	}

	id, err := s.store.CreateEvolutionNote(ctx, database.CreateEvolutionNoteParams{
		PatientID:      patientID,
		ConsultationID: consultationID,
		NoteType:       noteType,
		Note:           note,
		IsImportant:    in.IsImportant,
		CreatedBy:      utility.StringPtr(strings.TrimSpace(in.CreatedBy)),
	})
	if err != nil {
		return database.EvolutionNote{}, apperr.Storage("Failed to create note", err)
	}
	n, err := s.store.GetEvolutionNote(ctx, id)
	if err != nil {
		return database.EvolutionNote{}, apperr.Storage("Note created but could not be retrieved", err)
	}
	return n, nil
}

func (s *Service) Notes(ctx context.Context, consultationID int64) ([]database.EvolutionNote, error) {
	if _, err := s.patientOf(ctx, consultationID); err != nil {
		return nil, err
	}
	notes, err := s.store.ListEvolutionNotesByConsultation(ctx, consultationID)
	if err != nil {
		return nil, apperr.Storage("Failed to retrieve notes", err)
	}
	return notes, nil
}

func (s *Service) Measurements(ctx context.Context, consultationID int64) ([]database.Measurement, error) {
	if _, err := s.patientOf(ctx, consultationID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListMeasurementsByConsultation(ctx, consultationID)
	if err != nil {
		return nil, apperr.Storage("Failed to retrieve measurements", err)
	}
	return rows, nil
}

// SaveCalculation stores a calculator result for a patient. When a
// consultation is named it must belong to that patient.
func (s *Service) SaveCalculation(ctx context.Context, in CalculationInput) (database.NutritionalCalculation, error) {
	if in.PatientID <= 0 || in.Data == nil {
		return database.NutritionalCalculation{}, apperr.Validation("patient_id and calculation_data are required")
	}

	ok, err := s.store.PatientExists(ctx, in.PatientID)
	if err != nil {
		return database.NutritionalCalculation{}, apperr.Storage("Failed to verify patient", err)
	}
	if !ok {
		return database.NutritionalCalculation{}, apperr.NotFound("Patient not found")
	}
	if in.ConsultationID != nil {
		owner, err := s.patientOf(ctx, *in.ConsultationID)
		if err != nil {
			return database.NutritionalCalculation{}, err
		}
		if owner != in.PatientID {
			return database.NutritionalCalculation{}, apperr.Validation("The consultation belongs to another patient")
		}
	}

	d := in.Data
	r := d.Results
	id, err := s.store.CreateCalculation(ctx, database.CreateCalculationParams{
		PatientID:            in.PatientID,
		ConsultationID:       in.ConsultationID,
		Weight:               d.Weight,
		Height:               d.Height,
		Age:                  d.Age,
		Gender:               utility.StringPtr(strings.TrimSpace(d.Gender)),
		FormulaUsed:          utility.StringPtr(strings.TrimSpace(d.Formula)),
		ActivityLevel:        d.ActivityLevel,
		StressFactor:         d.StressFactor,
		Goal:                 utility.StringPtr(strings.TrimSpace(d.Goal)),
		Condition:            utility.StringPtr(strings.TrimSpace(d.Condition)),
		TMBValue:             r.TMB,
		GETValue:             r.GET,
		CaloriesPrescribed:   r.CalorieGoal.Calories,
		ProteinGrams:         r.Macros.Protein.Grams,
		CarbsGrams:           r.Macros.Carbs.Grams,
		FatsGrams:            r.Macros.Fats.Grams,
		DistributionStrategy: utility.StringPtr(strings.TrimSpace(r.Metadata.DistributionStrategy)),
		MealDistribution:     r.MealDistribution,
	})
	if err != nil {
		return database.NutritionalCalculation{}, apperr.Storage("Failed to save calculation", err)
	}
	calc, err := s.store.GetCalculation(ctx, id)
	if err != nil {
		return database.NutritionalCalculation{}, apperr.Storage("Calculation saved but could not be retrieved", err)
	}
	return calc, nil
}

// Calculations lists a patient's saved calculations, newest first.
func (s *Service) Calculations(ctx context.Context, patientID int64) ([]database.NutritionalCalculation, error) {
	rows, err := s.store.ListCalculationsByPatient(ctx, patientID)
	if err != nil {
		return nil, apperr.Storage("Failed to retrieve calculations", err)
	}
	return rows, nil
}

func (s *Service) patientOf(ctx context.Context, consultationID int64) (int64, error) {
	patientID, err := s.store.GetConsultationPatientID(ctx, consultationID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.NotFound("Consultation not found")
	}
	if err != nil {
		return 0, apperr.Storage("Failed to retrieve consultation", err)
	}
	return patientID, nil
}
