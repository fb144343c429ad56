package database

import (
	"encoding/json"
	"strings"
)

const (
	StatusPending   = "pendiente"
	StatusDone      = "realizada"
	StatusCancelled = "cancelada"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusDone, StatusCancelled:
		return true
	}
	return false
}

type Doctor struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type Patient struct {
	ID                   int64    `json:"id"`
	FullName             string   `json:"full_name"`
	Email                *string  `json:"email"`
	Phone                string   `json:"phone"`
	BirthDate            *string  `json:"birth_date"`
	Gender               *string  `json:"gender"`
	Occupation           *string  `json:"occupation"`
	Address              *string  `json:"address"`
	EmergencyContact     *string  `json:"emergency_contact"`
	EmergencyPhone       *string  `json:"emergency_phone"`
	BloodType            *string  `json:"blood_type"`
	Allergies            *string  `json:"allergies"`
	Notes                *string  `json:"notes"`
	CurrentWeight        *float64 `json:"current_weight"`
	CurrentBMI           *float64 `json:"current_bmi"`
	LastConsultationDate *string  `json:"last_consultation_date"`
	CreatedAt            string   `json:"created_at"`
	UpdatedAt            string   `json:"updated_at"`
}

type PatientListRow struct {
	Patient
	TotalConsultations int64    `json:"total_consultations"`
	LastConsultation   *string  `json:"last_consultation"`
	FirstConsultation  *string  `json:"first_consultation"`
	LatestWeight       *float64 `json:"latest_weight"`
	LatestBMI          *float64 `json:"latest_bmi"`
}

type PatientDetail struct {
	Patient
	TotalConsultations int64   `json:"total_consultations"`
	LastConsultation   *string `json:"last_consultation"`
	FirstConsultation  *string `json:"first_consultation"`
	TotalAppointments  int64   `json:"total_appointments"`
}

type PatientStats struct {
	TotalConsultations int64    `json:"total_consultations"`
	MinWeight          *float64 `json:"min_weight"`
	MaxWeight          *float64 `json:"max_weight"`
	AvgWeight          *float64 `json:"avg_weight"`
	MinBMI             *float64 `json:"min_bmi"`
	MaxBMI             *float64 `json:"max_bmi"`
	AvgBMI             *float64 `json:"avg_bmi"`
	InitialWeight      *float64 `json:"initial_weight"`
	CurrentWeight      *float64 `json:"current_weight"`
	WeightDifference   *float64 `json:"weight_difference,omitempty"`
}

type Appointment struct {
	ID                  int64   `json:"id"`
	PatientName         string  `json:"patient_name"`
	PatientEmail        *string `json:"patient_email"`
	PatientPhone        *string `json:"patient_phone"`
	PatientID           *int64  `json:"patient_id"`
	Reason              *string `json:"reason"`
	AppointmentDatetime string  `json:"appointment_datetime"`
	Status              string  `json:"status"`
	CreatedAt           string  `json:"created_at"`
	UpdatedAt           string  `json:"updated_at"`
	LinkedPatientID     *int64  `json:"linked_patient_id"`
}

type StatusCounts struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Done      int64 `json:"done"`
	Cancelled int64 `json:"cancelled"`
}

// ConsultationFields holds every client-writable SOAP column. The order of
// soapColumns and ConsultationFields.ptrs must stay in sync.
type ConsultationFields struct {
	// Subjective
	Subjective       *string `json:"subjective"`
	Symptoms         *string `json:"symptoms"`
	Appetite         *string `json:"appetite"`
	SleepQuality     *string `json:"sleep_quality"`
	StressLevel      *string `json:"stress_level"`
	PhysicalActivity *string `json:"physical_activity"`
	WaterIntake      *string `json:"water_intake"`
	BowelHabits      *string `json:"bowel_habits"`

	// Objective: anthropometry
	Weight            *float64 `json:"weight"`
	Height            *float64 `json:"height"`
	BMI               *float64 `json:"bmi"`
	Waist             *float64 `json:"waist"`
	Hip               *float64 `json:"hip"`
	WaistHipRatio     *float64 `json:"waist_hip_ratio"`
	BodyFat           *float64 `json:"body_fat"`
	BodyFatPercentage *float64 `json:"body_fat_percentage"`
	MuscleMass        *float64 `json:"muscle_mass"`
	IdealWeight       *float64 `json:"ideal_weight"`

	// Objective: vitals
	BloodPressure *string  `json:"blood_pressure"`
	HeartRate     *float64 `json:"heart_rate"`
	Temperature   *float64 `json:"temperature"`

	// Objective: biochemical
	Glucose        *float64 `json:"glucose"`
	HbA1c          *float64 `json:"hba1c"`
	Cholesterol    *float64 `json:"cholesterol"`
	Triglycerides  *float64 `json:"triglycerides"`
	HDL            *float64 `json:"hdl"`
	LDL            *float64 `json:"ldl"`
	Hemoglobin     *float64 `json:"hemoglobin"`
	Albumin        *float64 `json:"albumin"`
	ObjectiveNotes *string  `json:"objective_notes"`

	// Assessment
	PESProblem        *string `json:"pes_problem"`
	PESEtiology       *string `json:"pes_etiology"`
	PESSigns          *string `json:"pes_signs"`
	Diagnosis         *string `json:"diagnosis"`
	AssessmentNotes   *string `json:"assessment_notes"`
	NutritionalStatus *string `json:"nutritional_status"`
	RiskLevel         *string `json:"risk_level"`
	Priority          *string `json:"priority"`

	// Plan
	TreatmentPlan          *string  `json:"treatment_plan"`
	TreatmentGoals         *string  `json:"treatment_goals"`
	CaloriesPrescribed     *float64 `json:"calories_prescribed"`
	ProteinPrescribed      *float64 `json:"protein_prescribed"`
	CarbsPrescribed        *float64 `json:"carbs_prescribed"`
	FatsPrescribed         *float64 `json:"fats_prescribed"`
	DietType               *string  `json:"diet_type"`
	SupplementsRecommended *string  `json:"supplements_recommended"`
	EducationProvided      *string  `json:"education_provided"`
	Referrals              *string  `json:"referrals"`
	NextAppointment        *string  `json:"next_appointment"`

	Notes *string `json:"notes"`
}

var soapColumns = []string{
	"subjective", "symptoms", "appetite", "sleep_quality",
	"stress_level", "physical_activity", "water_intake", "bowel_habits",
	"weight", "height", "bmi", "waist", "hip", "waist_hip_ratio",
	"body_fat", "body_fat_percentage", "muscle_mass", "ideal_weight",
	"blood_pressure", "heart_rate", "temperature",
	"glucose", "hba1c", "cholesterol", "triglycerides", "hdl", "ldl",
	"hemoglobin", "albumin", "objective_notes",
	"pes_problem", "pes_etiology", "pes_signs", "diagnosis",
	"assessment_notes", "nutritional_status", "risk_level", "priority",
	"treatment_plan", "treatment_goals", "calories_prescribed",
	"protein_prescribed", "carbs_prescribed", "fats_prescribed",
	"diet_type", "supplements_recommended", "education_provided",
	"referrals", "next_appointment",
	"notes",
}

func (f *ConsultationFields) ptrs() []interface{} {
	return []interface{}{
		&f.Subjective, &f.Symptoms, &f.Appetite, &f.SleepQuality,
		&f.StressLevel, &f.PhysicalActivity, &f.WaterIntake, &f.BowelHabits,
		&f.Weight, &f.Height, &f.BMI, &f.Waist, &f.Hip, &f.WaistHipRatio,
		&f.BodyFat, &f.BodyFatPercentage, &f.MuscleMass, &f.IdealWeight,
		&f.BloodPressure, &f.HeartRate, &f.Temperature,
		&f.Glucose, &f.HbA1c, &f.Cholesterol, &f.Triglycerides, &f.HDL, &f.LDL,
		&f.Hemoglobin, &f.Albumin, &f.ObjectiveNotes,
		&f.PESProblem, &f.PESEtiology, &f.PESSigns, &f.Diagnosis,
		&f.AssessmentNotes, &f.NutritionalStatus, &f.RiskLevel, &f.Priority,
		&f.TreatmentPlan, &f.TreatmentGoals, &f.CaloriesPrescribed,
		&f.ProteinPrescribed, &f.CarbsPrescribed, &f.FatsPrescribed,
		&f.DietType, &f.SupplementsRecommended, &f.EducationProvided,
		&f.Referrals, &f.NextAppointment,
		&f.Notes,
	}
}

// args dereferences every field so the driver sees plain values or nil.
func (f *ConsultationFields) args() []interface{} {
	ptrs := f.ptrs()
	out := make([]interface{}, len(ptrs))
	for i, p := range ptrs {
		switch v := p.(type) {
		case **string:
			if *v != nil {
				out[i] = **v
			}
		case **float64:
			if *v != nil {
				out[i] = **v
			}
		}
	}
	return out
}

// Normalize clears blank strings and zero numbers. Clients send "" or 0 for
// fields the practitioner left empty, and those are stored as NULL.
func (f *ConsultationFields) Normalize() {
	for _, p := range f.ptrs() {
		switch v := p.(type) {
		case **string:
			if *v != nil && strings.TrimSpace(**v) == "" {
				*v = nil
			}
		case **float64:
			if *v != nil && **v == 0 {
				*v = nil
			}
		}
	}
}

type Consultation struct {
	ID               int64  `json:"id"`
	PatientID        int64  `json:"patient_id"`
	AppointmentID    *int64 `json:"appointment_id"`
	ConsultationDate string `json:"consultation_date"`
	ConsultationFields
	CreatedBy *string `json:"created_by"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type ConsultationWithPatient struct {
	Consultation
	PatientName  string  `json:"patient_name"`
	PatientEmail *string `json:"patient_email,omitempty"`
	PatientPhone *string `json:"patient_phone,omitempty"`
	NotesCount   *int64  `json:"notes_count,omitempty"`
}

type WeightPoint struct {
	Date              string   `json:"date"`
	Weight            *float64 `json:"weight"`
	BMI               *float64 `json:"bmi"`
	BodyFatPercentage *float64 `json:"body_fat_percentage"`
	MuscleMass        *float64 `json:"muscle_mass"`
}

type Measurement struct {
	ID              int64    `json:"id"`
	PatientID       int64    `json:"patient_id"`
	ConsultationID  *int64   `json:"consultation_id"`
	MeasurementDate string   `json:"measurement_date"`
	Chest           *float64 `json:"chest"`
	ArmLeft         *float64 `json:"arm_left"`
	ArmRight        *float64 `json:"arm_right"`
	ForearmLeft     *float64 `json:"forearm_left"`
	ForearmRight    *float64 `json:"forearm_right"`
	ThighLeft       *float64 `json:"thigh_left"`
	ThighRight      *float64 `json:"thigh_right"`
	CalfLeft        *float64 `json:"calf_left"`
	CalfRight       *float64 `json:"calf_right"`
	Notes           *string  `json:"notes"`
	CreatedAt       string   `json:"created_at"`
}

type EvolutionNote struct {
	ID             int64   `json:"id"`
	PatientID      int64   `json:"patient_id"`
	ConsultationID *int64  `json:"consultation_id"`
	NoteDate       string  `json:"note_date"`
	NoteType       string  `json:"note_type"`
	Note           string  `json:"note"`
	IsImportant    bool    `json:"is_important"`
	CreatedBy      *string `json:"created_by"`
	CreatedAt      string  `json:"created_at"`
}

// NutritionalCalculation is an energy and macronutrient plan worked out for a
// patient, optionally during a consultation.
type NutritionalCalculation struct {
	ID                   int64           `json:"id"`
	PatientID            int64           `json:"patient_id"`
	ConsultationID       *int64          `json:"consultation_id"`
	CalculationDate      string          `json:"calculation_date"`
	Weight               *float64        `json:"weight"`
	Height               *float64        `json:"height"`
	Age                  *int64          `json:"age"`
	Gender               *string         `json:"gender"`
	FormulaUsed          *string         `json:"formula_used"`
	ActivityLevel        *float64        `json:"activity_level"`
	StressFactor         *float64        `json:"stress_factor"`
	Goal                 *string         `json:"goal"`
	Condition            *string         `json:"condition"`
	TMBValue             *float64        `json:"tmb_value"`
	GETValue             *float64        `json:"get_value"`
	CaloriesPrescribed   *float64        `json:"calories_prescribed"`
	ProteinGrams         *float64        `json:"protein_grams"`
	CarbsGrams           *float64        `json:"carbs_grams"`
	FatsGrams            *float64        `json:"fats_grams"`
	DistributionStrategy *string         `json:"distribution_strategy"`
	MealDistribution     json.RawMessage `json:"meal_distribution"`
	CreatedAt            string          `json:"created_at"`
}

type VisitStats struct {
	Total int64 `json:"total"`
	Today int64 `json:"today"`
}
