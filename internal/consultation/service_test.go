package consultation

import (
	"context"
	"errors"
	"testing"

	"NutriVida_Pro/internal/apperr"
	"NutriVida_Pro/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }
func int64Ptr(i int64) *int64     { return &i }
func strPtr(s string) *string     { return &s }

func newTestStore(t *testing.T) *database.Queries {
	t.Helper()
	db, err := database.NewService(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db.Queries()
}

func seedPatient(t *testing.T, q *database.Queries, phone string) int64 {
	t.Helper()
	id, err := q.CreatePatient(context.Background(), database.PatientParams{FullName: "Ana López", Phone: phone})
	require.NoError(t, err)
	return id
}

func seedAppointment(t *testing.T, q *database.Queries) int64 {
	t.Helper()
	id, err := q.CreateAppointment(context.Background(), database.CreateAppointmentParams{
		PatientName:         "Ana",
		AppointmentDatetime: "2025-06-01T10:00",
	})
	require.NoError(t, err)
	return id
}

// failingCascade breaks every post-insert write.
type failingCascade struct {
	*database.Queries
}

var errBroken = errors.New("disk on fire")

func (failingCascade) UpdatePatientVitals(context.Context, database.UpdatePatientVitalsParams) error {
	return errBroken
}

func (failingCascade) CompleteAppointment(context.Context, int64, int64) (int64, error) {
	return 0, errBroken
}

func (failingCascade) CreateMeasurement(context.Context, database.CreateMeasurementParams) (int64, error) {
	return 0, errBroken
}

type recordingListener struct {
	got []database.Consultation
}

func (r *recordingListener) ConsultationCreated(c database.Consultation) {
	r.got = append(r.got, c)
}

func TestBMI(t *testing.T) {
	tests := []struct {
		name           string
		weight, height *float64
		want           *float64
	}{
		{"regular", floatPtr(70), floatPtr(175), floatPtr(22.86)},
		{"rounds half up", floatPtr(60), floatPtr(160), floatPtr(23.44)},
		{"missing weight", nil, floatPtr(175), nil},
		{"missing height", floatPtr(70), nil, nil},
		{"zero height", floatPtr(70), floatPtr(0), nil},
		{"negative weight", floatPtr(-1), floatPtr(170), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BMI(tt.weight, tt.height))
		})
	}
}

func TestWaistHipRatio(t *testing.T) {
	assert.Equal(t, floatPtr(0.89), WaistHipRatio(floatPtr(80), floatPtr(90)))
	assert.Nil(t, WaistHipRatio(floatPtr(80), nil))
	assert.Nil(t, WaistHipRatio(floatPtr(0), floatPtr(90)))
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newTestStore(t))
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{ConsultationDate: "2025-06-01"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Create(ctx, CreateInput{PatientID: 1})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Create(ctx, CreateInput{PatientID: 99, ConsultationDate: "2025-06-01"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCreate_UnknownAppointment(t *testing.T) {
	q := newTestStore(t)
	svc := NewService(q)
	pid := seedPatient(t, q, "555-1")

	_, err := svc.Create(context.Background(), CreateInput{
		PatientID:        pid,
		AppointmentID:    int64Ptr(42),
		ConsultationDate: "2025-06-01",
	})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	rows, err := q.ListConsultationsByPatient(context.Background(), database.ListConsultationsByPatientParams{PatientID: pid, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCreate_Cascade(t *testing.T) {
	q := newTestStore(t)
	listener := &recordingListener{}
	svc := NewService(q, WithListeners(listener))
	ctx := context.Background()

	pid := seedPatient(t, q, "555-1")
	aid := seedAppointment(t, q)

	in := CreateInput{
		PatientID:        pid,
		AppointmentID:    int64Ptr(aid),
		ConsultationDate: "2025-06-01",
		CreatedBy:        "Dra. Nutricionista",
		Measurements:     &MeasurementsInput{Chest: floatPtr(92), ArmLeft: floatPtr(28.5)},
	}
	in.Weight = floatPtr(70)
	in.Height = floatPtr(175)
	in.Waist = floatPtr(80)
	in.Hip = floatPtr(90)
	in.BMI = floatPtr(99) // client value is ignored
	in.Subjective = strPtr("Refiere cansancio")
	in.Diagnosis = strPtr("   ")

	c, err := svc.Create(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, c.BMI)
	assert.Equal(t, 22.86, *c.BMI)
	require.NotNil(t, c.WaistHipRatio)
	assert.Equal(t, 0.89, *c.WaistHipRatio)
	assert.Nil(t, c.Diagnosis)
	require.NotNil(t, c.CreatedBy)
	assert.Equal(t, "Dra. Nutricionista", *c.CreatedBy)
	require.Len(t, listener.got, 1)

	p, err := q.GetPatient(ctx, pid)
	require.NoError(t, err)
	require.NotNil(t, p.CurrentWeight)
	assert.Equal(t, 70.0, *p.CurrentWeight)
	require.NotNil(t, p.CurrentBMI)
	assert.Equal(t, 22.86, *p.CurrentBMI)
	require.NotNil(t, p.LastConsultationDate)
	assert.Equal(t, "2025-06-01", *p.LastConsultationDate)

	a, err := q.GetAppointment(ctx, aid)
	require.NoError(t, err)
	assert.Equal(t, database.StatusDone, a.Status)
	require.NotNil(t, a.PatientID)
	assert.Equal(t, pid, *a.PatientID)

	ms, err := svc.Measurements(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, 92.0, *ms[0].Chest)
	assert.Equal(t, "2025-06-01", ms[0].MeasurementDate)
}

func TestCreate_WithoutWeightLeavesVitals(t *testing.T) {
	q := newTestStore(t)
	svc := NewService(q)
	ctx := context.Background()
	pid := seedPatient(t, q, "555-1")

	_, err := svc.Create(ctx, CreateInput{PatientID: pid, ConsultationDate: "2025-06-01", Measurements: &MeasurementsInput{}})
	require.NoError(t, err)

	p, err := q.GetPatient(ctx, pid)
	require.NoError(t, err)
	assert.Nil(t, p.CurrentWeight)
	assert.Nil(t, p.LastConsultationDate)

	rows, err := q.ListConsultationsByPatient(ctx, database.ListConsultationsByPatientParams{PatientID: pid, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	ms, err := q.ListMeasurementsByConsultation(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.Empty(t, ms, "an empty measurements payload stores nothing")
}

func TestCreate_CascadeFailuresAreSwallowed(t *testing.T) {
	q := newTestStore(t)
	var failed []string
	svc := NewService(failingCascade{q}, WithCascadeFailureHook(func(step string) {
		failed = append(failed, step)
	}))
	ctx := context.Background()

	pid := seedPatient(t, q, "555-1")
	aid := seedAppointment(t, q)

	in := CreateInput{
		PatientID:        pid,
		AppointmentID:    int64Ptr(aid),
		ConsultationDate: "2025-06-01",
		Measurements:     &MeasurementsInput{Chest: floatPtr(92)},
	}
	in.Weight = floatPtr(70)
	in.Height = floatPtr(175)

	c, err := svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, []string{StepPatientVitals, StepAppointmentStatus, StepMeasurements}, failed)

	_, err = q.GetConsultation(ctx, c.ID)
	require.NoError(t, err, "the consultation stays stored")

	a, err := q.GetAppointment(ctx, aid)
	require.NoError(t, err)
	assert.Equal(t, database.StatusPending, a.Status)
}

func TestUpdate(t *testing.T) {
	q := newTestStore(t)
	svc := NewService(q)
	ctx := context.Background()
	pid := seedPatient(t, q, "555-1")

	in := CreateInput{PatientID: pid, ConsultationDate: "2025-06-01"}
	in.Weight = floatPtr(70)
	in.Height = floatPtr(175)
	in.Notes = strPtr("primera")
	c, err := svc.Create(ctx, in)
	require.NoError(t, err)

	up := UpdateInput{}
	up.Weight = floatPtr(72)
	up.Height = floatPtr(175)
	updated, err := svc.Update(ctx, c.ID, up)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", updated.ConsultationDate)
	assert.Equal(t, 23.51, *updated.BMI)
	assert.Nil(t, updated.Notes, "omitted fields are cleared")

	p, err := q.GetPatient(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 70.0, *p.CurrentWeight, "updates do not cascade")

	_, err = svc.Update(ctx, 999, up)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDelete(t *testing.T) {
	q := newTestStore(t)
	svc := NewService(q)
	ctx := context.Background()
	pid := seedPatient(t, q, "555-1")

	c, err := svc.Create(ctx, CreateInput{
		PatientID:        pid,
		ConsultationDate: "2025-06-01",
		Measurements:     &MeasurementsInput{Chest: floatPtr(90)},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, c.ID))
	ms, err := q.ListMeasurementsByConsultation(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, ms)

	_, err = svc.Get(ctx, c.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.True(t, apperr.Is(svc.Delete(ctx, c.ID), apperr.KindNotFound))
}

func TestListByPatientAndHistory(t *testing.T) {
	q := newTestStore(t)
	svc := NewService(q)
	ctx := context.Background()
	pid := seedPatient(t, q, "555-1")

	empty, err := svc.ListByPatient(ctx, pid, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, d := range []struct {
		date   string
		weight float64
	}{{"2025-01-10", 80}, {"2025-03-10", 76}, {"2025-02-10", 78}} {
		in := CreateInput{PatientID: pid, ConsultationDate: d.date}
		in.Weight = floatPtr(d.weight)
		in.Height = floatPtr(170)
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}
	_, err = svc.Create(ctx, CreateInput{PatientID: pid, ConsultationDate: "2025-04-01"})
	require.NoError(t, err)

	rows, err := svc.ListByPatient(ctx, pid, 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "2025-04-01", rows[0].ConsultationDate)
	assert.Equal(t, "2025-01-10", rows[3].ConsultationDate)
	assert.Equal(t, "Ana López", rows[0].PatientName)

	history, err := svc.WeightHistory(ctx, pid, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "2025-01-10", history[0].Date)
	assert.Equal(t, 76.0, *history[2].Weight)

	p, err := q.GetPatient(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 78.0, *p.CurrentWeight, "vitals follow the last write, not the latest date")

	recent, err := svc.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "2025-04-01", recent[0].ConsultationDate)
	require.NotNil(t, recent[0].PatientPhone)
	assert.Equal(t, "555-1", *recent[0].PatientPhone)
}

func TestEvolutionNotes(t *testing.T) {
	q := newTestStore(t)
	svc := NewService(q)
	ctx := context.Background()
	pid := seedPatient(t, q, "555-1")

	c, err := svc.Create(ctx, CreateInput{PatientID: pid, ConsultationDate: "2025-06-01"})
	require.NoError(t, err)

	_, err = svc.AddEvolutionNote(ctx, c.ID, NoteInput{Note: "  "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.AddEvolutionNote(ctx, 999, NoteInput{Note: "hola"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	n, err := svc.AddEvolutionNote(ctx, c.ID, NoteInput{Note: "Buena adherencia"})
	require.NoError(t, err)
	assert.Equal(t, DefaultNoteType, n.NoteType)
	assert.Equal(t, pid, n.PatientID)
	assert.False(t, n.IsImportant)

	_, err = svc.AddEvolutionNote(ctx, c.ID, NoteInput{Note: "Alergia", NoteType: "Alerta", IsImportant: true})
	require.NoError(t, err)

	notes, err := svc.Notes(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 2)

	rows, err := svc.ListByPatient(ctx, pid, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, rows[0].NotesCount)
	assert.Equal(t, int64(2), *rows[0].NotesCount)

	_, err = svc.Notes(ctx, 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSaveCalculation(t *testing.T) {
	q := newTestStore(t)
	svc := NewService(q)
	ctx := context.Background()
	pid := seedPatient(t, q, "555-1")
	other := seedPatient(t, q, "555-2")

	c, err := svc.Create(ctx, CreateInput{PatientID: pid, ConsultationDate: "2025-06-01"})
	require.NoError(t, err)

	_, err = svc.SaveCalculation(ctx, CalculationInput{PatientID: pid})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.SaveCalculation(ctx, CalculationInput{PatientID: 999, Data: &CalculationData{}})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.SaveCalculation(ctx, CalculationInput{PatientID: other, ConsultationID: &c.ID, Data: &CalculationData{}})
	assert.True(t, apperr.Is(err, apperr.KindValidation), "consultation of another patient")

	data := &CalculationData{
		Weight: floatPtr(70), Height: floatPtr(175), Age: int64Ptr(35),
		Gender: "F", Formula: "mifflin", ActivityLevel: floatPtr(1.55), Goal: "perdida",
	}
	data.Results.TMB = floatPtr(1400)
	data.Results.GET = floatPtr(2170)
	data.Results.CalorieGoal.Calories = floatPtr(1800)
	data.Results.Macros.Protein.Grams = floatPtr(120)
	data.Results.MealDistribution = []byte(`{"desayuno":0.25}`)

	calc, err := svc.SaveCalculation(ctx, CalculationInput{PatientID: pid, ConsultationID: &c.ID, Data: data})
	require.NoError(t, err)
	assert.Equal(t, pid, calc.PatientID)
	require.NotNil(t, calc.CaloriesPrescribed)
	assert.Equal(t, 1800.0, *calc.CaloriesPrescribed)
	require.NotNil(t, calc.FormulaUsed)
	assert.Equal(t, "mifflin", *calc.FormulaUsed)
	assert.Nil(t, calc.Condition)
	assert.JSONEq(t, `{"desayuno":0.25}`, string(calc.MealDistribution))

	_, err = svc.SaveCalculation(ctx, CalculationInput{PatientID: pid, Data: &CalculationData{Goal: "mantenimiento"}})
	require.NoError(t, err)

	rows, err := svc.Calculations(ctx, pid)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Greater(t, rows[0].ID, rows[1].ID)

	rows, err = svc.Calculations(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
