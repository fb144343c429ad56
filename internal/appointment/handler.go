package appointment

import (
	"net/http"

	"NutriVida_Pro/internal/utility"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the registry on g. Creating an appointment is
// public; every other route goes through guard.
func (h *Handler) RegisterRoutes(g *echo.Group, guard echo.MiddlewareFunc) {
	g.POST("", h.CreateAppointmentHandler)
	g.GET("", h.ListAppointmentsHandler, guard)
	g.GET("/stats", h.AppointmentStatsHandler, guard)
	g.GET("/:id", h.GetAppointmentHandler, guard)
	g.PATCH("/:id/status", h.UpdateStatusHandler, guard)
	g.POST("/:id/patient", h.ConvertToPatientHandler, guard)
}

func (h *Handler) CreateAppointmentHandler(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return utility.Fail(c, http.StatusBadRequest, "Invalid request body")
	}
	a, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusCreated, map[string]interface{}{
		"message":       "Appointment created",
		"appointmentId": a.ID,
		"appointment":   a,
	})
}

func (h *Handler) ListAppointmentsHandler(c echo.Context) error {
	rows, err := h.svc.List(c.Request().Context(), ListFilter{
		Status:   c.QueryParam("status"),
		Query:    c.QueryParam("q"),
		DateFrom: c.QueryParam("date_from"),
		DateTo:   c.QueryParam("date_to"),
	})
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{"appointments": rows})
}

func (h *Handler) GetAppointmentHandler(c echo.Context) error {
	id, err := utility.ParamID(c, "id")
	if err != nil {
		return utility.RespondError(c, err)
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{"appointment": a})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatusHandler(c echo.Context) error {
	id, err := utility.ParamID(c, "id")
	if err != nil {
		return utility.RespondError(c, err)
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return utility.Fail(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status); err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{"message": "Status updated"})
}

func (h *Handler) AppointmentStatsHandler(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{
		"today":  st.Today,
		"last30": st.Last30,
	})
}

func (h *Handler) ConvertToPatientHandler(c echo.Context) error {
	id, err := utility.ParamID(c, "id")
	if err != nil {
		return utility.RespondError(c, err)
	}
	p, created, err := h.svc.ConvertToPatient(c.Request().Context(), id)
	if err != nil {
		return utility.RespondError(c, err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return utility.OK(c, status, map[string]interface{}{
		"patient": p,
		"created": created,
	})
}
