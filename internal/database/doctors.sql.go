package database

import (
	"context"
)

const getDoctorByEmail = `SELECT id, name, email, password_hash, COALESCE(created_at, ''), COALESCE(updated_at, '')
FROM doctors WHERE email = ?`

func (q *Queries) GetDoctorByEmail(ctx context.Context, email string) (Doctor, error) {
	var d Doctor
	err := q.db.QueryRowContext(ctx, getDoctorByEmail, email).Scan(
		&d.ID, &d.Name, &d.Email, &d.PasswordHash, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

const getDoctor = `SELECT id, name, email, password_hash, COALESCE(created_at, ''), COALESCE(updated_at, '')
FROM doctors WHERE id = ?`

func (q *Queries) GetDoctor(ctx context.Context, id int64) (Doctor, error) {
	var d Doctor
	err := q.db.QueryRowContext(ctx, getDoctor, id).Scan(
		&d.ID, &d.Name, &d.Email, &d.PasswordHash, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

type CreateDoctorParams struct {
	Name         string
	Email        string
	PasswordHash string
}

const createDoctor = `INSERT INTO doctors (name, email, password_hash) VALUES (?, ?, ?)`

func (q *Queries) CreateDoctor(ctx context.Context, arg CreateDoctorParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createDoctor, arg.Name, arg.Email, arg.PasswordHash)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
