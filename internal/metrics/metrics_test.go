package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"NutriVida_Pro/internal/database"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMiddlewareCountsByRoute(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/patients/:id", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/boom", func(c echo.Context) error { return echo.ErrForbidden })

	for _, path := range []string{"/api/patients/1", "/api/patients/2", "/boom"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := scrape(t, m)
	assert.Contains(t, out, `nutrivida_http_requests_total{method="GET",route="/api/patients/:id",status="200"} 2`)
	assert.Contains(t, out, `nutrivida_http_requests_total{method="GET",route="/boom",status="403"} 1`)
}

func TestDomainCounters(t *testing.T) {
	m := New()
	m.AppointmentCreated(database.Appointment{})
	m.ConsultationCreated(database.Consultation{})
	m.ConsultationCreated(database.Consultation{})
	m.RecordCascadeFailure("measurements")

	out := scrape(t, m)
	assert.Contains(t, out, "nutrivida_appointments_created_total 1")
	assert.Contains(t, out, "nutrivida_consultations_created_total 2")
	assert.Contains(t, out, `nutrivida_consultation_cascade_failures_total{step="measurements"} 1`)
	assert.Contains(t, out, "go_goroutines")
}
