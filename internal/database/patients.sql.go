package database

import (
	"context"
	"strings"
)

const patientColumns = `p.id, p.full_name, p.email, p.phone, p.birth_date, p.gender, p.occupation,
	p.address, p.emergency_contact, p.emergency_phone, p.blood_type, p.allergies, p.notes,
	p.current_weight, p.current_bmi, p.last_consultation_date, COALESCE(p.created_at, ''), COALESCE(p.updated_at, '')`

func (p *Patient) ptrs() []interface{} {
	return []interface{}{
		&p.ID, &p.FullName, &p.Email, &p.Phone, &p.BirthDate, &p.Gender, &p.Occupation,
		&p.Address, &p.EmergencyContact, &p.EmergencyPhone, &p.BloodType, &p.Allergies, &p.Notes,
		&p.CurrentWeight, &p.CurrentBMI, &p.LastConsultationDate, &p.CreatedAt, &p.UpdatedAt,
	}
}

// PatientParams carries the demographic fields a client may write.
type PatientParams struct {
	FullName         string
	Email            *string
	Phone            string
	BirthDate        *string
	Gender           *string
	Occupation       *string
	Address          *string
	EmergencyContact *string
	EmergencyPhone   *string
	BloodType        *string
	Allergies        *string
	Notes            *string
}

func (arg PatientParams) args() []interface{} {
	return []interface{}{
		arg.FullName, nullString(arg.Email), arg.Phone, nullString(arg.BirthDate),
		nullString(arg.Gender), nullString(arg.Occupation), nullString(arg.Address),
		nullString(arg.EmergencyContact), nullString(arg.EmergencyPhone),
		nullString(arg.BloodType), nullString(arg.Allergies), nullString(arg.Notes),
	}
}

const createPatient = `INSERT INTO patients (
	full_name, email, phone, birth_date, gender, occupation,
	address, emergency_contact, emergency_phone, blood_type,
	allergies, notes, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))`

func (q *Queries) CreatePatient(ctx context.Context, arg PatientParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createPatient, arg.args()...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getPatient = `SELECT ` + patientColumns + ` FROM patients p WHERE p.id = ?`

func (q *Queries) GetPatient(ctx context.Context, id int64) (Patient, error) {
	var p Patient
	err := q.db.QueryRowContext(ctx, getPatient, id).Scan(p.ptrs()...)
	return p, err
}

const getPatientByPhone = `SELECT ` + patientColumns + ` FROM patients p WHERE p.phone = ?`

func (q *Queries) GetPatientByPhone(ctx context.Context, phone string) (Patient, error) {
	var p Patient
	err := q.db.QueryRowContext(ctx, getPatientByPhone, phone).Scan(p.ptrs()...)
	return p, err
}

const patientExists = `SELECT EXISTS(SELECT 1 FROM patients WHERE id = ?)`

func (q *Queries) PatientExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, patientExists, id).Scan(&exists)
	return exists, err
}

const phoneTakenByOther = `SELECT EXISTS(SELECT 1 FROM patients WHERE phone = ? AND id <> ?)`

// PhoneTaken reports whether phone belongs to a patient other than exceptID.
// Pass 0 to check against every patient.
func (q *Queries) PhoneTaken(ctx context.Context, phone string, exceptID int64) (bool, error) {
	var taken bool
	err := q.db.QueryRowContext(ctx, phoneTakenByOther, phone, exceptID).Scan(&taken)
	return taken, err
}

const getPatientDetail = `SELECT ` + patientColumns + `,
	(SELECT COUNT(*) FROM consultations c WHERE c.patient_id = p.id),
	(SELECT MAX(c.consultation_date) FROM consultations c WHERE c.patient_id = p.id),
	(SELECT MIN(c.consultation_date) FROM consultations c WHERE c.patient_id = p.id),
	(SELECT COUNT(*) FROM appointments a WHERE a.patient_id = p.id)
FROM patients p
WHERE p.id = ?`

func (q *Queries) GetPatientDetail(ctx context.Context, id int64) (PatientDetail, error) {
	var d PatientDetail
	dest := append(d.Patient.ptrs(),
		&d.TotalConsultations, &d.LastConsultation, &d.FirstConsultation, &d.TotalAppointments)
	err := q.db.QueryRowContext(ctx, getPatientDetail, id).Scan(dest...)
	return d, err
}

const listPatients = `SELECT ` + patientColumns + `,
	(SELECT COUNT(*) FROM consultations c WHERE c.patient_id = p.id),
	(SELECT MAX(c.consultation_date) FROM consultations c WHERE c.patient_id = p.id),
	(SELECT MIN(c.consultation_date) FROM consultations c WHERE c.patient_id = p.id),
	(SELECT c.weight FROM consultations c WHERE c.patient_id = p.id
		ORDER BY c.consultation_date DESC, c.id DESC LIMIT 1),
	(SELECT c.bmi FROM consultations c WHERE c.patient_id = p.id
		ORDER BY c.consultation_date DESC, c.id DESC LIMIT 1)
FROM patients p`

type ListPatientsParams struct {
	Search string
	Limit  int
	Offset int
}

func (q *Queries) ListPatients(ctx context.Context, arg ListPatientsParams) ([]PatientListRow, error) {
	var sb strings.Builder
	sb.WriteString(listPatients)
	var args []interface{}
	if arg.Search != "" {
		sb.WriteString(` WHERE p.full_name LIKE ? OR p.email LIKE ? OR p.phone LIKE ?`)
		like := "%" + arg.Search + "%"
		args = append(args, like, like, like)
	}
	sb.WriteString(` ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`)
	args = append(args, arg.Limit, arg.Offset)

	rows, err := q.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []PatientListRow{}
	for rows.Next() {
		var i PatientListRow
		dest := append(i.Patient.ptrs(),
			&i.TotalConsultations, &i.LastConsultation, &i.FirstConsultation,
			&i.LatestWeight, &i.LatestBMI)
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

const updatePatient = `UPDATE patients SET
	full_name = ?, email = ?, phone = ?, birth_date = ?, gender = ?, occupation = ?,
	address = ?, emergency_contact = ?, emergency_phone = ?, blood_type = ?,
	allergies = ?, notes = ?, updated_at = datetime('now')
WHERE id = ?`

func (q *Queries) UpdatePatient(ctx context.Context, id int64, arg PatientParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updatePatient, append(arg.args(), id)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deletePatient = `DELETE FROM patients WHERE id = ?`

func (q *Queries) DeletePatient(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deletePatient, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const updatePatientVitals = `UPDATE patients
SET current_weight = ?, current_bmi = ?, last_consultation_date = ?, updated_at = datetime('now')
WHERE id = ?`

type UpdatePatientVitalsParams struct {
	ID                   int64
	CurrentWeight        *float64
	CurrentBMI           *float64
	LastConsultationDate string
}

func (q *Queries) UpdatePatientVitals(ctx context.Context, arg UpdatePatientVitalsParams) error {
	_, err := q.db.ExecContext(ctx, updatePatientVitals,
		nullFloat(arg.CurrentWeight), nullFloat(arg.CurrentBMI), arg.LastConsultationDate, arg.ID)
	return err
}

const getPatientStats = `SELECT
	COUNT(*),
	MIN(weight), MAX(weight), AVG(weight),
	MIN(bmi), MAX(bmi), AVG(bmi),
	(SELECT weight FROM consultations WHERE patient_id = ? AND weight IS NOT NULL
		ORDER BY consultation_date ASC, id ASC LIMIT 1),
	(SELECT weight FROM consultations WHERE patient_id = ? AND weight IS NOT NULL
		ORDER BY consultation_date DESC, id DESC LIMIT 1)
FROM consultations
WHERE patient_id = ?`

func (q *Queries) GetPatientStats(ctx context.Context, patientID int64) (PatientStats, error) {
	var s PatientStats
	err := q.db.QueryRowContext(ctx, getPatientStats, patientID, patientID, patientID).Scan(
		&s.TotalConsultations,
		&s.MinWeight, &s.MaxWeight, &s.AvgWeight,
		&s.MinBMI, &s.MaxBMI, &s.AvgBMI,
		&s.InitialWeight, &s.CurrentWeight,
	)
	return s, err
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(i *int64) interface{} {
	if i == nil {
		return nil
	}
	return *i
}
