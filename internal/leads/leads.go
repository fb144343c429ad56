// Package leads accepts landing page contact forms and keeps the submitted
// JSON as is.
package leads

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"NutriVida_Pro/internal/apperr"
	"NutriVida_Pro/internal/database"
	"NutriVida_Pro/internal/utility"

	"github.com/labstack/echo/v4"
)

const maxPayloadBytes = 64 << 10

type Store interface {
	InsertLead(ctx context.Context, payload json.RawMessage) (database.Lead, error)
}

type Handler struct {
	store Store
}

// NewHandler accepts a nil store; the form endpoint then answers 503.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/form", h.SubmitFormHandler)
}

func (h *Handler) SubmitFormHandler(c echo.Context) error {
	if h.store == nil {
		return utility.Fail(c, http.StatusServiceUnavailable, "Landing form storage is not configured")
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPayloadBytes+1))
	if err != nil {
		return utility.Fail(c, http.StatusBadRequest, "Invalid request body")
	}
	if len(raw) > maxPayloadBytes {
		return utility.Fail(c, http.StatusRequestEntityTooLarge, "Form payload too large")
	}
	if !json.Valid(raw) {
		return utility.Fail(c, http.StatusBadRequest, "Form payload must be valid JSON")
	}

	lead, err := h.store.InsertLead(c.Request().Context(), json.RawMessage(raw))
	if err != nil {
		return utility.RespondError(c, apperr.Storage("Failed to store landing form", err))
	}
	return utility.OK(c, http.StatusCreated, map[string]interface{}{
		"id":        lead.ID,
		"createdAt": lead.CreatedAt,
	})
}
