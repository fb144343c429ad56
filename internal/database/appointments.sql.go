package database

import (
	"context"
	"strings"
)

// linkedPatientID prefers an explicit link and falls back to an exact,
// non-empty email or phone match against the patient registry.
const linkedPatientID = `COALESCE(a.patient_id, (
	SELECT p.id FROM patients p
	WHERE (a.patient_email IS NOT NULL AND a.patient_email <> '' AND p.email = a.patient_email)
	   OR (a.patient_phone IS NOT NULL AND a.patient_phone <> '' AND p.phone = a.patient_phone)
	ORDER BY p.id
	LIMIT 1
))`

const appointmentColumns = `a.id, a.patient_name, a.patient_email, a.patient_phone, a.patient_id,
	a.reason, a.appointment_datetime, a.status, COALESCE(a.created_at, ''), COALESCE(a.updated_at, ''), ` + linkedPatientID

func scanAppointment(s scanner) (Appointment, error) {
	var a Appointment
	err := s.Scan(
		&a.ID, &a.PatientName, &a.PatientEmail, &a.PatientPhone, &a.PatientID,
		&a.Reason, &a.AppointmentDatetime, &a.Status, &a.CreatedAt, &a.UpdatedAt,
		&a.LinkedPatientID,
	)
	return a, err
}

type CreateAppointmentParams struct {
	PatientName         string
	PatientEmail        *string
	PatientPhone        *string
	Reason              *string
	AppointmentDatetime string
}

const createAppointment = `INSERT INTO appointments
	(patient_name, patient_email, patient_phone, reason, appointment_datetime, status)
VALUES (?, ?, ?, ?, ?, 'pendiente')`

func (q *Queries) CreateAppointment(ctx context.Context, arg CreateAppointmentParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createAppointment,
		arg.PatientName,
		nullString(arg.PatientEmail),
		nullString(arg.PatientPhone),
		nullString(arg.Reason),
		arg.AppointmentDatetime,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getAppointment = `SELECT ` + appointmentColumns + ` FROM appointments a WHERE a.id = ?`

func (q *Queries) GetAppointment(ctx context.Context, id int64) (Appointment, error) {
	return scanAppointment(q.db.QueryRowContext(ctx, getAppointment, id))
}

const appointmentExists = `SELECT EXISTS(SELECT 1 FROM appointments WHERE id = ?)`

func (q *Queries) AppointmentExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, appointmentExists, id).Scan(&exists)
	return exists, err
}

type ListAppointmentsParams struct {
	Status   string
	Query    string
	DateFrom string
	DateTo   string
}

func (q *Queries) ListAppointments(ctx context.Context, arg ListAppointmentsParams) ([]Appointment, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + appointmentColumns + ` FROM appointments a WHERE 1=1`)
	var args []interface{}

	if arg.Status != "" {
		sb.WriteString(` AND a.status = ?`)
		args = append(args, arg.Status)
	}
	if arg.Query != "" {
		sb.WriteString(` AND (a.patient_name LIKE ? OR a.patient_email LIKE ?)`)
		like := "%" + arg.Query + "%"
		args = append(args, like, like)
	}
	if arg.DateFrom != "" {
		sb.WriteString(` AND date(a.appointment_datetime) >= date(?)`)
		args = append(args, arg.DateFrom)
	}
	if arg.DateTo != "" {
		sb.WriteString(` AND date(a.appointment_datetime) <= date(?)`)
		args = append(args, arg.DateTo)
	}
	sb.WriteString(` ORDER BY a.created_at DESC, a.id DESC`)

	rows, err := q.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateAppointmentStatus = `UPDATE appointments SET status = ?, updated_at = datetime('now') WHERE id = ?`

func (q *Queries) UpdateAppointmentStatus(ctx context.Context, id int64, status string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateAppointmentStatus, status, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const completeAppointment = `UPDATE appointments
SET status = 'realizada', patient_id = ?, updated_at = datetime('now')
WHERE id = ?`

// CompleteAppointment marks the appointment as done and links it to patientID.
func (q *Queries) CompleteAppointment(ctx context.Context, id, patientID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, completeAppointment, patientID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const linkAppointmentPatient = `UPDATE appointments SET patient_id = ?, updated_at = datetime('now') WHERE id = ?`

func (q *Queries) LinkAppointmentPatient(ctx context.Context, id, patientID int64) error {
	_, err := q.db.ExecContext(ctx, linkAppointmentPatient, patientID, id)
	return err
}

const countAppointmentsByStatus = `SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN status = 'pendiente' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'realizada' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'cancelada' THEN 1 ELSE 0 END), 0)
FROM appointments`

func scanCounts(s scanner) (StatusCounts, error) {
	var c StatusCounts
	err := s.Scan(&c.Total, &c.Pending, &c.Done, &c.Cancelled)
	return c, err
}

// CountAppointments counts every appointment by status.
func (q *Queries) CountAppointments(ctx context.Context) (StatusCounts, error) {
	return scanCounts(q.db.QueryRowContext(ctx, countAppointmentsByStatus))
}

// CountAppointmentsOn counts appointments whose date is exactly day (YYYY-MM-DD).
func (q *Queries) CountAppointmentsOn(ctx context.Context, day string) (StatusCounts, error) {
	return scanCounts(q.db.QueryRowContext(ctx,
		countAppointmentsByStatus+` WHERE date(appointment_datetime) = date(?)`, day))
}

// CountAppointmentsSince counts appointments dated on or after from
// (YYYY-MM-DD). Upcoming bookings are included.
func (q *Queries) CountAppointmentsSince(ctx context.Context, from string) (StatusCounts, error) {
	return scanCounts(q.db.QueryRowContext(ctx,
		countAppointmentsByStatus+` WHERE date(appointment_datetime) >= date(?)`, from))
}
