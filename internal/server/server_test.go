package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"NutriVida_Pro/internal/auth"
	"NutriVida_Pro/internal/config"
	"NutriVida_Pro/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type client struct {
	t       *testing.T
	handler http.Handler
	cookies []*http.Cookie
}

func (cl *client) do(method, path, body string) *httptest.ResponseRecorder {
	cl.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cl.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	cl.handler.ServeHTTP(rec, req)
	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		cl.cookies = cookies
	}
	return rec
}

func newTestServer(t *testing.T) (*Server, *client) {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewService(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = auth.SeedDoctor(ctx, db.Queries(), "Dra. Nutricionista", "dra@test.mx", "secreto123")
	require.NoError(t, err)

	cfg := &config.Config{
		Port:              "0",
		Env:               "development",
		SessionSecret:     "test-secret",
		SessionMaxAgeDays: 7,
		CORSOrigins:       []string{"http://localhost:5173"},
		VisitDedupWindow:  time.Minute,
		LoginAttemptsPM:   10,
	}
	s := New(cfg, db, nil)
	return s, &client{t: t, handler: s.RegisterRoutes()}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestAppointmentToConsultationScenario(t *testing.T) {
	_, cl := newTestServer(t)

	rec := cl.do(http.MethodPost, "/api/appointments", `{"patient_name":"Ana","appointment_datetime":"2025-06-01T10:00"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var booked struct {
		AppointmentID int64 `json:"appointmentId"`
		Appointment   struct {
			Status string `json:"status"`
		} `json:"appointment"`
	}
	decode(t, rec, &booked)
	assert.Equal(t, "pendiente", booked.Appointment.Status)

	rec = cl.do(http.MethodGet, fmt.Sprintf("/api/appointments/%d", booked.AppointmentID), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "private routes need a session")

	rec = cl.do(http.MethodPost, "/api/auth/login", `{"email":"dra@test.mx","password":"secreto123"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, cl.cookies)

	rec = cl.do(http.MethodPost, "/api/patients", `{"full_name":"Ana","phone":"555-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = cl.do(http.MethodPost, "/api/consultations", fmt.Sprintf(
		`{"patient_id":1,"appointment_id":%d,"consultation_date":"2025-06-01","weight":60,"height":160}`,
		booked.AppointmentID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Consultation struct {
			BMI       float64 `json:"bmi"`
			CreatedBy string  `json:"created_by"`
		} `json:"consultation"`
	}
	decode(t, rec, &created)
	assert.Equal(t, 23.44, created.Consultation.BMI)
	assert.Equal(t, "Dra. Nutricionista", created.Consultation.CreatedBy)

	rec = cl.do(http.MethodGet, fmt.Sprintf("/api/appointments/%d", booked.AppointmentID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Appointment struct {
			Status    string `json:"status"`
			PatientID *int64 `json:"patient_id"`
		} `json:"appointment"`
	}
	decode(t, rec, &got)
	assert.Equal(t, "realizada", got.Appointment.Status)
	require.NotNil(t, got.Appointment.PatientID)
	assert.Equal(t, int64(1), *got.Appointment.PatientID)

	rec = cl.do(http.MethodGet, "/api/patients/1", "")
	assert.Contains(t, rec.Body.String(), `"current_bmi":23.44`)

	rec = cl.do(http.MethodGet, "/api/dashboard/summary", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"done":1`)

	rec = cl.do(http.MethodPost, "/api/auth/logout", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = cl.do(http.MethodGet, "/api/patients", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginThrottleIgnoresSpoofedForwardedFor(t *testing.T) {
	_, cl := newTestServer(t)

	codes := map[int]int{}
	for i := 0; i < 15; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"email":"dra@test.mx","password":"wrong-password"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rec := httptest.NewRecorder()
		cl.handler.ServeHTTP(rec, req)
		codes[rec.Code]++
	}
	assert.Equal(t, 10, codes[http.StatusUnauthorized])
	assert.Equal(t, 5, codes[http.StatusTooManyRequests])
}

func TestHealthAndMetrics(t *testing.T) {
	_, cl := newTestServer(t)

	rec := cl.do(http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"up"`)
	assert.NotContains(t, rec.Body.String(), "leads_database")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	cl.do(http.MethodPost, "/api/appointments", `{"patient_name":"Ana","appointment_datetime":"2025-06-01T10:00"}`)

	rec = cl.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nutrivida_appointments_created_total 1")
	assert.Contains(t, rec.Body.String(), `route="/api/health"`)
}

func TestPublicEndpoints(t *testing.T) {
	_, cl := newTestServer(t)

	rec := cl.do(http.MethodPost, "/api/visits", `{"path":"/"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = cl.do(http.MethodPost, "/api/landing/form", `{"nombre":"Ana"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":false`)

	rec = cl.do(http.MethodGet, "/api/visits/stats", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORSAllowsConfiguredOriginWithCredentials(t *testing.T) {
	_, cl := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/appointments", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	cl.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
