package patient

import (
	"net/http"

	"NutriVida_Pro/internal/apperr"
	"NutriVida_Pro/internal/utility"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the registry on g. Every route requires a session;
// the caller passes the guard as middleware.
func (h *Handler) RegisterRoutes(g *echo.Group, guard echo.MiddlewareFunc) {
	g.GET("", h.ListPatientsHandler, guard)
	g.POST("", h.CreatePatientHandler, guard)
	g.GET("/search/phone/:phone", h.FindByPhoneHandler, guard)
	g.GET("/:id", h.GetPatientHandler, guard)
	g.PUT("/:id", h.UpdatePatientHandler, guard)
	g.DELETE("/:id", h.DeletePatientHandler, guard)
	g.GET("/:id/stats", h.PatientStatsHandler, guard)
}

func (h *Handler) ListPatientsHandler(c echo.Context) error {
	p := ListParams{
		Search: c.QueryParam("search"),
		Limit:  utility.QueryInt(c, "limit", DefaultLimit),
		Offset: utility.QueryInt(c, "offset", 0),
	}
	rows, err := h.svc.List(c.Request().Context(), p)
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{
		"patients": rows,
		"total":    len(rows),
		"limit":    p.Limit,
		"offset":   p.Offset,
	})
}

func (h *Handler) GetPatientHandler(c echo.Context) error {
	id, err := utility.ParamID(c, "id")
	if err != nil {
		return utility.RespondError(c, err)
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{"patient": d})
}

func (h *Handler) CreatePatientHandler(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return utility.Fail(c, http.StatusBadRequest, "Invalid request body")
	}
	p, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusCreated, map[string]interface{}{
		"message": "Patient created",
		"patient": p,
	})
}

func (h *Handler) UpdatePatientHandler(c echo.Context) error {
	id, err := utility.ParamID(c, "id")
	if err != nil {
		return utility.RespondError(c, err)
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return utility.Fail(c, http.StatusBadRequest, "Invalid request body")
	}
	p, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{
		"message": "Patient updated",
		"patient": p,
	})
}

func (h *Handler) DeletePatientHandler(c echo.Context) error {
	id, err := utility.ParamID(c, "id")
	if err != nil {
		return utility.RespondError(c, err)
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{
		"message":    "Patient deleted",
		"deleted_id": id,
	})
}

func (h *Handler) FindByPhoneHandler(c echo.Context) error {
	p, err := h.svc.FindByPhone(c.Request().Context(), c.Param("phone"))
	if apperr.Is(err, apperr.KindNotFound) {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"ok":    false,
			"found": false,
			"error": apperr.PublicMessage(err),
		})
	}
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{"found": true, "patient": p})
}

func (h *Handler) PatientStatsHandler(c echo.Context) error {
	id, err := utility.ParamID(c, "id")
	if err != nil {
		return utility.RespondError(c, err)
	}
	st, err := h.svc.Stats(c.Request().Context(), id)
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{"stats": st})
}
