package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"NutriVida_Pro/internal/database"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	payloads []json.RawMessage
	err      error
}

func (m *memStore) InsertLead(_ context.Context, payload json.RawMessage) (database.Lead, error) {
	if m.err != nil {
		return database.Lead{}, m.err
	}
	m.payloads = append(m.payloads, payload)
	return database.Lead{ID: int64(len(m.payloads)), CreatedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}, nil
}

func post(h *Handler, body string) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e.Group("/api/landing"))
	req := httptest.NewRequest(http.MethodPost, "/api/landing/form", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSubmitForm(t *testing.T) {
	store := &memStore{}
	rec := post(NewHandler(store), `{"nombre":"Ana","interes":"nutrición deportiva"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":1`)
	assert.Contains(t, rec.Body.String(), `"createdAt":"2025-06-01T10:00:00Z"`)
	require.Len(t, store.payloads, 1)
	assert.JSONEq(t, `{"nombre":"Ana","interes":"nutrición deportiva"}`, string(store.payloads[0]))
}

func TestSubmitForm_Errors(t *testing.T) {
	rec := post(NewHandler(nil), `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = post(NewHandler(&memStore{}), `{"nombre":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(NewHandler(&memStore{err: errors.New("connection refused")}), `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}
