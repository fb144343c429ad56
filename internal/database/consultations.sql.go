package database

import (
	"context"
	"strings"
)

var consultationColumns = "c.id, c.patient_id, c.appointment_id, c.consultation_date, " +
	"c." + strings.Join(soapColumns, ", c.") +
	", c.created_by, COALESCE(c.created_at, ''), COALESCE(c.updated_at, '')"

func (c *Consultation) ptrs() []interface{} {
	out := []interface{}{&c.ID, &c.PatientID, &c.AppointmentID, &c.ConsultationDate}
	out = append(out, c.ConsultationFields.ptrs()...)
	return append(out, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
}

type CreateConsultationParams struct {
	PatientID        int64
	AppointmentID    *int64
	ConsultationDate string
	Fields           ConsultationFields
	CreatedBy        *string
}

var createConsultation = "INSERT INTO consultations (patient_id, appointment_id, consultation_date, " +
	strings.Join(soapColumns, ", ") +
	", created_by, created_at, updated_at) VALUES (?, ?, ?, " +
	placeholders(len(soapColumns)) +
	", ?, datetime('now'), datetime('now'))"

func (q *Queries) CreateConsultation(ctx context.Context, arg CreateConsultationParams) (int64, error) {
	args := []interface{}{arg.PatientID, nullInt(arg.AppointmentID), arg.ConsultationDate}
	args = append(args, arg.Fields.args()...)
	args = append(args, nullString(arg.CreatedBy))

	res, err := q.db.ExecContext(ctx, createConsultation, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

var getConsultation = "SELECT " + consultationColumns + " FROM consultations c WHERE c.id = ?"

func (q *Queries) GetConsultation(ctx context.Context, id int64) (Consultation, error) {
	var c Consultation
	err := q.db.QueryRowContext(ctx, getConsultation, id).Scan(c.ptrs()...)
	return c, err
}

var getConsultationWithPatient = "SELECT " + consultationColumns +
	", p.full_name, p.email, p.phone" +
	" FROM consultations c JOIN patients p ON p.id = c.patient_id WHERE c.id = ?"

func (q *Queries) GetConsultationWithPatient(ctx context.Context, id int64) (ConsultationWithPatient, error) {
	var c ConsultationWithPatient
	dest := append(c.Consultation.ptrs(), &c.PatientName, &c.PatientEmail, &c.PatientPhone)
	err := q.db.QueryRowContext(ctx, getConsultationWithPatient, id).Scan(dest...)
	return c, err
}

const getConsultationPatientID = `SELECT patient_id FROM consultations WHERE id = ?`

func (q *Queries) GetConsultationPatientID(ctx context.Context, id int64) (int64, error) {
	var patientID int64
	err := q.db.QueryRowContext(ctx, getConsultationPatientID, id).Scan(&patientID)
	return patientID, err
}

type UpdateConsultationParams struct {
	ID int64
	// ConsultationDate keeps the stored value when nil.
	ConsultationDate *string
	Fields           ConsultationFields
}

var updateConsultation = "UPDATE consultations SET consultation_date = COALESCE(?, consultation_date), " +
	strings.Join(soapColumns, " = ?, ") + " = ?, updated_at = datetime('now') WHERE id = ?"

func (q *Queries) UpdateConsultation(ctx context.Context, arg UpdateConsultationParams) (int64, error) {
	args := []interface{}{nullString(arg.ConsultationDate)}
	args = append(args, arg.Fields.args()...)
	args = append(args, arg.ID)

	res, err := q.db.ExecContext(ctx, updateConsultation, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteConsultation = `DELETE FROM consultations WHERE id = ?`

func (q *Queries) DeleteConsultation(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteConsultation, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type ListConsultationsByPatientParams struct {
	PatientID int64
	Limit     int
	Offset    int
}

var listConsultationsByPatient = "SELECT " + consultationColumns +
	", p.full_name, (SELECT COUNT(*) FROM evolution_notes n WHERE n.consultation_id = c.id)" +
	" FROM consultations c JOIN patients p ON p.id = c.patient_id" +
	" WHERE c.patient_id = ? ORDER BY c.consultation_date DESC, c.id DESC LIMIT ? OFFSET ?"

func (q *Queries) ListConsultationsByPatient(ctx context.Context, arg ListConsultationsByPatientParams) ([]ConsultationWithPatient, error) {
	rows, err := q.db.QueryContext(ctx, listConsultationsByPatient, arg.PatientID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []ConsultationWithPatient{}
	for rows.Next() {
		var i ConsultationWithPatient
		var notes int64
		dest := append(i.Consultation.ptrs(), &i.PatientName, &notes)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		i.NotesCount = &notes
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

var listRecentConsultations = "SELECT " + consultationColumns +
	", p.full_name, p.phone" +
	" FROM consultations c JOIN patients p ON p.id = c.patient_id" +
	" ORDER BY c.consultation_date DESC, c.id DESC LIMIT ?"

func (q *Queries) ListRecentConsultations(ctx context.Context, limit int) ([]ConsultationWithPatient, error) {
	rows, err := q.db.QueryContext(ctx, listRecentConsultations, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []ConsultationWithPatient{}
	for rows.Next() {
		var i ConsultationWithPatient
		dest := append(i.Consultation.ptrs(), &i.PatientName, &i.PatientPhone)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const weightHistory = `SELECT consultation_date, weight, bmi, body_fat_percentage, muscle_mass
FROM consultations
WHERE patient_id = ? AND weight IS NOT NULL
ORDER BY consultation_date ASC, id ASC
LIMIT ?`

func (q *Queries) WeightHistory(ctx context.Context, patientID int64, limit int) ([]WeightPoint, error) {
	rows, err := q.db.QueryContext(ctx, weightHistory, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []WeightPoint{}
	for rows.Next() {
		var i WeightPoint
		if err := rows.Scan(&i.Date, &i.Weight, &i.BMI, &i.BodyFatPercentage, &i.MuscleMass); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
