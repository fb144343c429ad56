package appointment

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func denyAll(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": "Not authenticated"})
	}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPublicCreateAndGuardedReads(t *testing.T) {
	svc, _ := newTestService(t)
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api/appointments"), denyAll)

	rec := do(e, http.MethodPost, "/api/appointments", `{"patient_name":"Ana","appointment_datetime":"2025-06-01T10:00"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"pendiente"`)
	assert.Contains(t, rec.Body.String(), `"appointmentId":1`)

	rec = do(e, http.MethodPost, "/api/appointments", `{"patient_name":"Ana"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, path := range []string{"/api/appointments", "/api/appointments/stats", "/api/appointments/1"} {
		rec = do(e, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec = do(e, http.MethodPatch, "/api/appointments/1/status", `{"status":"realizada"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatusRoute(t *testing.T) {
	svc, _ := newTestService(t)
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api/appointments"), passThrough)

	do(e, http.MethodPost, "/api/appointments", `{"patient_name":"Ana","appointment_datetime":"2025-06-01T10:00"}`)

	rec := do(e, http.MethodPatch, "/api/appointments/1/status", `{"status":"Realizada"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPatch, "/api/appointments/1/status", `{"status":"cancelada"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodPatch, "/api/appointments/7/status", `{"status":"cancelada"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodGet, "/api/appointments?status=cancelada", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancelada"`)

	rec = do(e, http.MethodGet, "/api/appointments/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"last30"`)
}
