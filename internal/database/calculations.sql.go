package database

import (
	"context"
	"encoding/json"
)

const calculationColumns = `id, patient_id, consultation_id, calculation_date,
	weight, height, age, gender, formula_used, activity_level, stress_factor, goal, "condition",
	tmb_value, get_value, calories_prescribed, protein_grams, carbs_grams, fats_grams,
	distribution_strategy, meal_distribution, COALESCE(created_at, '')`

func scanCalculation(s scanner) (NutritionalCalculation, error) {
	var n NutritionalCalculation
	var meals *string
	err := s.Scan(
		&n.ID, &n.PatientID, &n.ConsultationID, &n.CalculationDate,
		&n.Weight, &n.Height, &n.Age, &n.Gender, &n.FormulaUsed, &n.ActivityLevel, &n.StressFactor,
		&n.Goal, &n.Condition,
		&n.TMBValue, &n.GETValue, &n.CaloriesPrescribed, &n.ProteinGrams, &n.CarbsGrams, &n.FatsGrams,
		&n.DistributionStrategy, &meals, &n.CreatedAt,
	)
	if meals != nil && json.Valid([]byte(*meals)) {
		n.MealDistribution = json.RawMessage(*meals)
	}
	return n, err
}

type CreateCalculationParams struct {
	PatientID            int64
	ConsultationID       *int64
	Weight               *float64
	Height               *float64
	Age                  *int64
	Gender               *string
	FormulaUsed          *string
	ActivityLevel        *float64
	StressFactor         *float64
	Goal                 *string
	Condition            *string
	TMBValue             *float64
	GETValue             *float64
	CaloriesPrescribed   *float64
	ProteinGrams         *float64
	CarbsGrams           *float64
	FatsGrams            *float64
	DistributionStrategy *string
	MealDistribution     json.RawMessage
}

const createCalculation = `INSERT INTO nutritional_calculations (
	patient_id, consultation_id, calculation_date,
	weight, height, age, gender, formula_used, activity_level, stress_factor, goal, "condition",
	tmb_value, get_value, calories_prescribed, protein_grams, carbs_grams, fats_grams,
	distribution_strategy, meal_distribution
) VALUES (?, ?, datetime('now'), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateCalculation(ctx context.Context, arg CreateCalculationParams) (int64, error) {
	var meals interface{}
	if len(arg.MealDistribution) > 0 && string(arg.MealDistribution) != "null" {
		meals = string(arg.MealDistribution)
	}
	res, err := q.db.ExecContext(ctx, createCalculation,
		arg.PatientID, nullInt(arg.ConsultationID),
		nullFloat(arg.Weight), nullFloat(arg.Height), nullInt(arg.Age), nullString(arg.Gender),
		nullString(arg.FormulaUsed), nullFloat(arg.ActivityLevel), nullFloat(arg.StressFactor),
		nullString(arg.Goal), nullString(arg.Condition),
		nullFloat(arg.TMBValue), nullFloat(arg.GETValue), nullFloat(arg.CaloriesPrescribed),
		nullFloat(arg.ProteinGrams), nullFloat(arg.CarbsGrams), nullFloat(arg.FatsGrams),
		nullString(arg.DistributionStrategy), meals,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getCalculation = `SELECT ` + calculationColumns + ` FROM nutritional_calculations WHERE id = ?`

func (q *Queries) GetCalculation(ctx context.Context, id int64) (NutritionalCalculation, error) {
	return scanCalculation(q.db.QueryRowContext(ctx, getCalculation, id))
}

const listCalculationsByPatient = `SELECT ` + calculationColumns + `
FROM nutritional_calculations WHERE patient_id = ?
ORDER BY calculation_date DESC, id DESC`

func (q *Queries) ListCalculationsByPatient(ctx context.Context, patientID int64) ([]NutritionalCalculation, error) {
	rows, err := q.db.QueryContext(ctx, listCalculationsByPatient, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []NutritionalCalculation{}
	for rows.Next() {
		n, err := scanCalculation(rows)
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
