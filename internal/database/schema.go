package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS doctors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS patients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		full_name TEXT NOT NULL,
		email TEXT,
		phone TEXT NOT NULL,
		birth_date TEXT,
		gender TEXT,
		occupation TEXT,
		address TEXT,
		emergency_contact TEXT,
		emergency_phone TEXT,
		blood_type TEXT,
		allergies TEXT,
		notes TEXT,
		current_weight REAL,
		current_bmi REAL,
		last_consultation_date TEXT,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_name TEXT NOT NULL,
		patient_email TEXT,
		patient_phone TEXT,
		patient_id INTEGER REFERENCES patients(id) ON DELETE SET NULL,
		reason TEXT,
		appointment_datetime TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pendiente'
			CHECK (status IN ('pendiente', 'realizada', 'cancelada')),
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS consultations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id INTEGER NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
		appointment_id INTEGER REFERENCES appointments(id) ON DELETE SET NULL,
		consultation_date TEXT NOT NULL,
		subjective TEXT, symptoms TEXT, appetite TEXT, sleep_quality TEXT,
		stress_level TEXT, physical_activity TEXT, water_intake TEXT, bowel_habits TEXT,
		weight REAL, height REAL, bmi REAL, waist REAL, hip REAL, waist_hip_ratio REAL,
		body_fat REAL, body_fat_percentage REAL, muscle_mass REAL, ideal_weight REAL,
		blood_pressure TEXT, heart_rate REAL, temperature REAL,
		glucose REAL, hba1c REAL, cholesterol REAL, triglycerides REAL,
		hdl REAL, ldl REAL, hemoglobin REAL, albumin REAL, objective_notes TEXT,
		pes_problem TEXT, pes_etiology TEXT, pes_signs TEXT, diagnosis TEXT,
		assessment_notes TEXT, nutritional_status TEXT, risk_level TEXT, priority TEXT,
		treatment_plan TEXT, treatment_goals TEXT, calories_prescribed REAL,
		protein_prescribed REAL, carbs_prescribed REAL, fats_prescribed REAL,
		diet_type TEXT, supplements_recommended TEXT, education_provided TEXT,
		referrals TEXT, next_appointment TEXT,
		notes TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	// consultation_id is not a foreign key. The consultation service removes
	// these rows when their consultation is deleted.
	`CREATE TABLE IF NOT EXISTS measurements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id INTEGER NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
		consultation_id INTEGER,
		measurement_date TEXT NOT NULL,
		chest REAL, arm_left REAL, arm_right REAL,
		forearm_left REAL, forearm_right REAL,
		thigh_left REAL, thigh_right REAL,
		calf_left REAL, calf_right REAL,
		notes TEXT,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS evolution_notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id INTEGER NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
		consultation_id INTEGER REFERENCES consultations(id) ON DELETE SET NULL,
		note_date TEXT NOT NULL DEFAULT (datetime('now')),
		note_type TEXT NOT NULL DEFAULT 'Seguimiento',
		note TEXT NOT NULL,
		is_important INTEGER NOT NULL DEFAULT 0,
		created_by TEXT,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS nutritional_calculations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id INTEGER NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
		consultation_id INTEGER REFERENCES consultations(id) ON DELETE SET NULL,
		calculation_date TEXT NOT NULL DEFAULT (datetime('now')),
		weight REAL, height REAL, age INTEGER, gender TEXT,
		formula_used TEXT, activity_level REAL, stress_factor REAL,
		goal TEXT, "condition" TEXT,
		tmb_value REAL, get_value REAL, calories_prescribed REAL,
		protein_grams REAL, carbs_grams REAL, fats_grams REAL,
		distribution_strategy TEXT, meal_distribution TEXT,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS page_visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now', 'localtime'))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_patients_phone ON patients(phone)`,
	`CREATE INDEX IF NOT EXISTS idx_appointments_datetime ON appointments(appointment_datetime)`,
	`CREATE INDEX IF NOT EXISTS idx_consultations_patient ON consultations(patient_id, consultation_date)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_consultation ON evolution_notes(consultation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_measurements_consultation ON measurements(consultation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_calculations_patient ON nutritional_calculations(patient_id, calculation_date)`,
}

// Columns added after the first deployments. Databases created by older
// builds get them through ALTER TABLE on startup.
var lateColumns = []struct {
	table  string
	column string
	def    string
}{
	{"appointments", "patient_id", "INTEGER"},
	{"patients", "current_weight", "REAL"},
	{"patients", "current_bmi", "REAL"},
	{"patients", "last_consultation_date", "TEXT"},
	{"consultations", "appointment_id", "INTEGER"},
}

// Migrate creates missing tables and indexes and adds late columns. It is
// idempotent.
func Migrate(ctx context.Context, db DBTX) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	for _, lc := range lateColumns {
		added, err := ensureColumn(ctx, db, lc.table, lc.column, lc.def)
		if err != nil {
			return err
		}
		if added {
			log.Info().Str("table", lc.table).Str("column", lc.column).Msg("Column added")
		}
	}

	// Consultation columns are checked against the full SOAP list so old
	// databases with the minimal consultations table are upgraded too.
	for _, col := range soapColumns {
		def := "TEXT"
		if isRealColumn(col) {
			def = "REAL"
		}
		if _, err := ensureColumn(ctx, db, "consultations", col, def); err != nil {
			return err
		}
	}
	if _, err := ensureColumn(ctx, db, "consultations", "created_by", "TEXT"); err != nil {
		return err
	}

	return nil
}

func ensureColumn(ctx context.Context, db DBTX, table, column, def string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("read schema of %s: %w", table, err)
	}

	exists := false
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue interface{}
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			rows.Close()
			return false, fmt.Errorf("scan schema of %s: %w", table, err)
		}
		if strings.EqualFold(name, column) {
			exists = true
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return false, err
	}
	rows.Close()

	if exists {
		return false, nil
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, def)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return false, fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return true, nil
}

func isRealColumn(col string) bool {
	switch col {
	case "weight", "height", "bmi", "waist", "hip", "waist_hip_ratio",
		"body_fat", "body_fat_percentage", "muscle_mass", "ideal_weight",
		"heart_rate", "temperature",
		"glucose", "hba1c", "cholesterol", "triglycerides", "hdl", "ldl",
		"hemoglobin", "albumin",
		"calories_prescribed", "protein_prescribed", "carbs_prescribed", "fats_prescribed":
		return true
	}
	return false
}
