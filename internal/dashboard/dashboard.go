// Package dashboard serves the practitioner's summary panel and keeps open
// dashboards fresh over a websocket.
package dashboard

import (
	"context"
	"net/http"

	"NutriVida_Pro/internal/apperr"
	"NutriVida_Pro/internal/database"
	"NutriVida_Pro/internal/utility"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

type Store interface {
	CountAppointments(ctx context.Context) (database.StatusCounts, error)
	GetVisitStats(ctx context.Context, day string) (database.VisitStats, error)
}

type Summary struct {
	Appointments database.StatusCounts `json:"appointments"`
	VisitsTotal  int64                 `json:"visits_total"`
	VisitsToday  int64                 `json:"visits_today"`
}

type Handler struct {
	store Store
	hub   *utility.Hub
	today func() string
}

func NewHandler(store Store, hub *utility.Hub, today func() string) *Handler {
	return &Handler{store: store, hub: hub, today: today}
}

func (h *Handler) RegisterRoutes(g *echo.Group, guard echo.MiddlewareFunc) {
	g.GET("/summary", h.SummaryHandler, guard)
	g.GET("/ws", h.DashboardSocketHandler, guard)
}

// Summary gathers appointment and visit counters concurrently.
func (h *Handler) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := h.store.CountAppointments(ctx)
		if err != nil {
			return apperr.Storage("Failed to count appointments", err)
		}
		s.Appointments = counts
		return nil
	})
	g.Go(func() error {
		v, err := h.store.GetVisitStats(ctx, h.today())
		if err != nil {
			return apperr.Storage("Failed to count visits", err)
		}
		s.VisitsTotal = v.Total
		s.VisitsToday = v.Today
		return nil
	})

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return s, nil
}

func (h *Handler) SummaryHandler(c echo.Context) error {
	s, err := h.Summary(c.Request().Context())
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{"summary": s})
}

// DashboardSocketHandler holds the connection open until the client goes
// away. The server only writes; reads just detect the disconnect.
func (h *Handler) DashboardSocketHandler(c echo.Context) error {
	ws, err := h.hub.Upgrade(c.Response(), c.Request())
	if err != nil {
		return err
	}
	defer ws.Close()

	clientID := uuid.NewString()
	h.hub.RegisterClient(clientID, ws)
	defer h.hub.UnregisterClient(clientID)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	return nil
}

// Notifier pushes a refresh to every open dashboard when an appointment is
// booked or a consultation is stored.
type Notifier struct {
	hub *utility.Hub
}

func NewNotifier(hub *utility.Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) AppointmentCreated(database.Appointment) {
	go n.hub.TriggerDashboardUpdate()
}

func (n *Notifier) ConsultationCreated(database.Consultation) {
	go n.hub.TriggerDashboardUpdate()
}
