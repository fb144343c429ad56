package database

import (
	"context"
)

const measurementColumns = `id, patient_id, consultation_id, measurement_date,
	chest, arm_left, arm_right, forearm_left, forearm_right,
	thigh_left, thigh_right, calf_left, calf_right, notes, COALESCE(created_at, '')`

type CreateMeasurementParams struct {
	PatientID       int64
	ConsultationID  int64
	MeasurementDate string
	Chest           *float64
	ArmLeft         *float64
	ArmRight        *float64
	ForearmLeft     *float64
	ForearmRight    *float64
	ThighLeft       *float64
	ThighRight      *float64
	CalfLeft        *float64
	CalfRight       *float64
	Notes           *string
}

const createMeasurement = `INSERT INTO measurements (
	patient_id, consultation_id, measurement_date,
	chest, arm_left, arm_right, forearm_left, forearm_right,
	thigh_left, thigh_right, calf_left, calf_right, notes
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateMeasurement(ctx context.Context, arg CreateMeasurementParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createMeasurement,
		arg.PatientID, arg.ConsultationID, arg.MeasurementDate,
		nullFloat(arg.Chest), nullFloat(arg.ArmLeft), nullFloat(arg.ArmRight),
		nullFloat(arg.ForearmLeft), nullFloat(arg.ForearmRight),
		nullFloat(arg.ThighLeft), nullFloat(arg.ThighRight),
		nullFloat(arg.CalfLeft), nullFloat(arg.CalfRight),
		nullString(arg.Notes),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const listMeasurementsByConsultation = `SELECT ` + measurementColumns + `
FROM measurements WHERE consultation_id = ? ORDER BY id`

func (q *Queries) ListMeasurementsByConsultation(ctx context.Context, consultationID int64) ([]Measurement, error) {
	rows, err := q.db.QueryContext(ctx, listMeasurementsByConsultation, consultationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Measurement{}
	for rows.Next() {
		var m Measurement
		if err := rows.Scan(
			&m.ID, &m.PatientID, &m.ConsultationID, &m.MeasurementDate,
			&m.Chest, &m.ArmLeft, &m.ArmRight, &m.ForearmLeft, &m.ForearmRight,
			&m.ThighLeft, &m.ThighRight, &m.CalfLeft, &m.CalfRight, &m.Notes, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteMeasurementsByConsultation = `DELETE FROM measurements WHERE consultation_id = ?`

func (q *Queries) DeleteMeasurementsByConsultation(ctx context.Context, consultationID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteMeasurementsByConsultation, consultationID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const evolutionNoteColumns = `id, patient_id, consultation_id, note_date, note_type, note,
	is_important, created_by, COALESCE(created_at, '')`

func scanEvolutionNote(s scanner) (EvolutionNote, error) {
	var n EvolutionNote
	err := s.Scan(&n.ID, &n.PatientID, &n.ConsultationID, &n.NoteDate, &n.NoteType, &n.Note,
		&n.IsImportant, &n.CreatedBy, &n.CreatedAt)
	return n, err
}

type CreateEvolutionNoteParams struct {
	PatientID      int64
	ConsultationID int64
	NoteType       string
	Note           string
	IsImportant    bool
	CreatedBy      *string
}

const createEvolutionNote = `INSERT INTO evolution_notes (
	patient_id, consultation_id, note_date, note_type, note, is_important, created_by
) VALUES (?, ?, datetime('now'), ?, ?, ?, ?)`

func (q *Queries) CreateEvolutionNote(ctx context.Context, arg CreateEvolutionNoteParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createEvolutionNote,
		arg.PatientID, arg.ConsultationID, arg.NoteType, arg.Note, arg.IsImportant, nullString(arg.CreatedBy))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getEvolutionNote = `SELECT ` + evolutionNoteColumns + ` FROM evolution_notes WHERE id = ?`

func (q *Queries) GetEvolutionNote(ctx context.Context, id int64) (EvolutionNote, error) {
	return scanEvolutionNote(q.db.QueryRowContext(ctx, getEvolutionNote, id))
}

const listEvolutionNotesByConsultation = `SELECT ` + evolutionNoteColumns + `
FROM evolution_notes WHERE consultation_id = ? ORDER BY note_date DESC, id DESC`

func (q *Queries) ListEvolutionNotesByConsultation(ctx context.Context, consultationID int64) ([]EvolutionNote, error) {
	rows, err := q.db.QueryContext(ctx, listEvolutionNotesByConsultation, consultationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []EvolutionNote{}
	for rows.Next() {
		n, err := scanEvolutionNote(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
