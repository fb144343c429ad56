package consultation

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

// RegisterRoutes mounts the consultation engine on g behind guard.
func (h *Handler) RegisterRoutes(g *echo.Group, guard echo.MiddlewareFunc) {
	g.POST("", h.CreateConsultationHandler, guard)
	g.GET("/recent/all", h.RecentConsultationsHandler, guard)
	g.POST("/calculations", h.SaveCalculationHandler, guard)
	g.GET("/calculations/patient/:patientId", h.ListCalculationsHandler, guard)
	g.GET("/patient/:patientId", h.ListByPatientHandler, guard)
	g.GET("/patient/:patientId/weight-history", h.WeightHistoryHandler, guard)
	g.GET("/:id", h.GetConsultationHandler, guard)
	g.PUT("/:id", h.UpdateConsultationHandler, guard)
	g.DELETE("/:id", h.DeleteConsultationHandler, guard)
	g.POST("/:id/notes", h.AddNoteHandler, guard)
	g.GET("/:id/notes", h.ListNotesHandler, guard)
	g.GET("/:id/measurements", h.ListMeasurementsHandler, guard)
}

// author falls back to the practitioner in session when the body names no one.
func author(c echo.Context, given string) string {
	if given != "" {
		return given
	}
	name, _ := c.Get("doctor_name").(string)
	return name
}

func (h *Handler) CreateConsultationHandler(c echo.Context) error {
	var in CreateInput
	if err := bindForm(c, &in); err != nil {
		return utility.Fail(c, http.StatusBadRequest, "Invalid request body")
	}
	in.CreatedBy = author(c, in.CreatedBy)

	cons, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusCreated, map[string]interface{}{
		"message":      "Consultation created",
		"consultation": cons,
	})
}

func (h *Handler) GetConsultationHandler(c echo.Context) error {
	id, err := utility.ParamID(c, "id")
	if err != nil {
		return utility.RespondError(c, err)
	}
	cons, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{"consultation": cons})
}

func (h *Handler) ListByPatientHandler(c echo.Context) error {
	patientID, err := utility.ParamID(c, "patientId")
	if err != nil {
		return utility.RespondError(c, err)
	}
	limit := utility.QueryInt(c, "limit", DefaultLimit)
	offset := utility.QueryInt(c, "offset", 0)

	rows, err := h.svc.ListByPatient(c.Request().Context(), patientID, limit, offset)
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{
		"consultations": rows,
		"total":         len(rows),
	})
}

func (h *Handler) WeightHistoryHandler(c echo.Context) error {
	patientID, err := utility.ParamID(c, "patientId")
	if err != nil {
		return utility.RespondError(c, err)
	}
	points, err := h.svc.WeightHistory(c.Request().Context(), patientID, utility.QueryInt(c, "limit", DefaultHistoryLimit))
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{"history": points})
}

func (h *Handler) UpdateConsultationHandler(c echo.Context) error {
	id, err := utility.ParamID(c, "id")
	if err != nil {
		return utility.RespondError(c, err)
	}
	var in UpdateInput
	if err := bindForm(c, &in); err != nil {
		return utility.Fail(c, http.StatusBadRequest, "Invalid request body")
	}
	cons, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{
		"message":      "Consultation updated",
		"consultation": cons,
	})
}

func (h *Handler) DeleteConsultationHandler(c echo.Context) error {
	id, err := utility.ParamID(c, "id")
	if err != nil {
		return utility.RespondError(c, err)
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{
		"message":    "Consultation deleted",
		"deleted_id": id,
	})
}

func (h *Handler) AddNoteHandler(c echo.Context) error {
	id, err := utility.ParamID(c, "id")
	if err != nil {
		return utility.RespondError(c, err)
	}
	var in NoteInput
	if err := c.Bind(&in); err != nil {
		return utility.Fail(c, http.StatusBadRequest, "Invalid request body")
	}
	in.CreatedBy = author(c, in.CreatedBy)

	note, err := h.svc.AddEvolutionNote(c.Request().Context(), id, in)
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusCreated, map[string]interface{}{
		"message": "Note added",
		"note":    note,
	})
}

func (h *Handler) ListNotesHandler(c echo.Context) error {
	id, err := utility.ParamID(c, "id")
	if err != nil {
		return utility.RespondError(c, err)
	}
	notes, err := h.svc.Notes(c.Request().Context(), id)
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{"notes": notes})
}

func (h *Handler) ListMeasurementsHandler(c echo.Context) error {
	id, err := utility.ParamID(c, "id")
	if err != nil {
		return utility.RespondError(c, err)
	}
	rows, err := h.svc.Measurements(c.Request().Context(), id)
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{"measurements": rows})
}

func (h *Handler) RecentConsultationsHandler(c echo.Context) error {
	rows, err := h.svc.Recent(c.Request().Context(), utility.QueryInt(c, "limit", DefaultRecentLimit))
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{"consultations": rows})
}

func (h *Handler) SaveCalculationHandler(c echo.Context) error {
	var in CalculationInput
	if err := c.Bind(&in); err != nil {
		return utility.Fail(c, http.StatusBadRequest, "Invalid request body")
	}
	calc, err := h.svc.SaveCalculation(c.Request().Context(), in)
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusCreated, map[string]interface{}{
		"message":     "Calculation saved",
		"id":          calc.ID,
		"calculation": calc,
	})
}

func (h *Handler) ListCalculationsHandler(c echo.Context) error {
	patientID, err := utility.ParamID(c, "patientId")
	if err != nil {
		return utility.RespondError(c, err)
	}
	rows, err := h.svc.Calculations(c.Request().Context(), patientID)
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{"calculations": rows})
}
