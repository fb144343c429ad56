package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"NutriVida_Pro/internal/apperr"
	"NutriVida_Pro/internal/database"
	"NutriVida_Pro/internal/patient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	mu  sync.Mutex
	got []database.Appointment
}

func (r *recordingListener) AppointmentCreated(a database.Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, a)
}

func newTestService(t *testing.T, listeners ...Listener) (*Service, *database.Queries) {
	t.Helper()
	db, err := database.NewService(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	q := db.Queries()
	svc := NewService(q, patient.NewService(q), listeners...)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local) }
	return svc, q
}

func TestCreate(t *testing.T) {
	rec := &recordingListener{}
	svc, _ := newTestService(t, rec)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{PatientName: "Ana"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.Create(ctx, CreateInput{AppointmentDatetime: "2025-06-01T10:00"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.Create(ctx, CreateInput{PatientName: "Ana", PatientEmail: "ana@", AppointmentDatetime: "2025-06-01T10:00"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, rec.got)

	a, err := svc.Create(ctx, CreateInput{
		PatientName:         "Ana",
		PatientPhone:        "555-1",
		AppointmentDatetime: "2025-06-01T10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, database.StatusPending, a.Status)
	assert.Nil(t, a.PatientEmail)
	require.Len(t, rec.got, 1)
	assert.Equal(t, a.ID, rec.got[0].ID)
}

func TestUpdateStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{PatientName: "Ana", AppointmentDatetime: "2025-06-01T10:00"})
	require.NoError(t, err)

	err = svc.UpdateStatus(ctx, a.ID, "archivada")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, database.StatusPending, got.Status, "invalid status leaves the row unchanged")

	for _, st := range []string{database.StatusDone, database.StatusPending, database.StatusCancelled, database.StatusDone} {
		require.NoError(t, svc.UpdateStatus(ctx, a.ID, st))
		got, err := svc.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, st, got.Status)
	}

	assert.True(t, apperr.Is(svc.UpdateStatus(ctx, 999, database.StatusDone), apperr.KindNotFound))
}

func TestStats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, dt := range []string{
		"2025-06-15T09:00", // today
		"2025-06-15T17:30", // today
		"2025-06-01T10:00", // within 30 days
		"2025-05-16T10:00", // exactly 30 days ago
		"2025-04-01T10:00", // too old
		"2025-07-01T10:00", // upcoming
	} {
		_, err := svc.Create(ctx, CreateInput{PatientName: "P " + dt, AppointmentDatetime: dt})
		require.NoError(t, err)
	}
	require.NoError(t, svc.UpdateStatus(ctx, 2, database.StatusCancelled))
	require.NoError(t, svc.UpdateStatus(ctx, 3, database.StatusDone))

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, database.StatusCounts{Total: 2, Pending: 1, Cancelled: 1}, st.Today)
	assert.Equal(t, database.StatusCounts{Total: 5, Pending: 3, Done: 1, Cancelled: 1}, st.Last30)
}

func TestConvertToPatient(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{
		PatientName: "Ana", PatientEmail: "ana@test.mx", PatientPhone: "555-1",
		AppointmentDatetime: "2025-06-01T10:00",
	})
	require.NoError(t, err)

	p, created, err := svc.ConvertToPatient(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Ana", p.FullName)
	assert.Equal(t, "555-1", p.Phone)

	got, err := q.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PatientID)
	assert.Equal(t, p.ID, *got.PatientID)

	// A second booking by the same person resolves to the same patient.
	again, err := svc.Create(ctx, CreateInput{PatientName: "Ana L.", PatientEmail: "ana@test.mx", AppointmentDatetime: "2025-07-01T10:00"})
	require.NoError(t, err)
	p2, created, err := svc.ConvertToPatient(ctx, again.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p.ID, p2.ID)

	noPhone, err := svc.Create(ctx, CreateInput{PatientName: "Luis", AppointmentDatetime: "2025-07-02T10:00"})
	require.NoError(t, err)
	_, _, err = svc.ConvertToPatient(ctx, noPhone.ID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, _, err = svc.ConvertToPatient(ctx, 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
