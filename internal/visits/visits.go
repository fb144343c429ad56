// Package visits counts landing page traffic. A client IP is counted at most
// once per dedupe window.
package visits

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"NutriVida_Pro/internal/apperr"
	"NutriVida_Pro/internal/database"
	"NutriVida_Pro/internal/utility"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/labstack/echo/v4"
)

const maxTrackedIPs = 50000

type Store interface {
	CreatePageVisit(ctx context.Context, path, createdAt string) (int64, error)
	GetVisitStats(ctx context.Context, day string) (database.VisitStats, error)
}

type Counter struct {
	mu    sync.Mutex
	store Store
	seen  *expirable.LRU[string, struct{}]
	now   func() time.Time
}

func NewCounter(store Store, window time.Duration) *Counter {
	return &Counter{
		store: store,
		seen:  expirable.NewLRU[string, struct{}](maxTrackedIPs, nil, window),
		now:   time.Now,
	}
}

// Record stores a visit to path unless ip was already counted inside the
// window. The returned id is zero when the visit was skipped.
func (c *Counter) Record(ctx context.Context, ip, path string) (int64, bool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "/"
	}
	if ip != "" && !c.claim(ip) {
		return 0, false, nil
	}

	id, err := c.store.CreatePageVisit(ctx, path, database.FormatTime(c.now()))
	if err != nil {
		if ip != "" {
			c.seen.Remove(ip)
		}
		return 0, false, apperr.Storage("Failed to record visit", err)
	}
	return id, true, nil
}

// claim marks ip as counted and reports whether it was not counted already.
func (c *Counter) claim(ip string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen.Get(ip); ok {
		return false
	}
	c.seen.Add(ip, struct{}{})
	return true
}

func (c *Counter) Stats(ctx context.Context) (database.VisitStats, error) {
	s, err := c.store.GetVisitStats(ctx, database.FormatDate(c.now()))
	if err != nil {
		return s, apperr.Storage("Failed to retrieve visit statistics", err)
	}
	return s, nil
}

type Handler struct {
	counter *Counter
}

func NewHandler(counter *Counter) *Handler {
	return &Handler{counter: counter}
}

func (h *Handler) RegisterRoutes(g *echo.Group, guard echo.MiddlewareFunc) {
	g.POST("", h.RecordVisitHandler)
	g.GET("/stats", h.VisitStatsHandler, guard)
}

type visitRequest struct {
	Path string `json:"path"`
}

func (h *Handler) RecordVisitHandler(c echo.Context) error {
	var req visitRequest
	// The body is optional; a malformed one counts as a visit to "/".
	_ = c.Bind(&req)

	id, counted, err := h.counter.Record(c.Request().Context(), c.RealIP(), req.Path)
	if err != nil {
		return utility.RespondError(c, err)
	}
	if !counted {
		return utility.OK(c, http.StatusOK, map[string]interface{}{
			"message": "Visit already counted",
			"counted": false,
		})
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{
		"message": "Visit recorded",
		"counted": true,
		"visitId": id,
	})
}

func (h *Handler) VisitStatsHandler(c echo.Context) error {
	s, err := h.counter.Stats(c.Request().Context())
	if err != nil {
		return utility.RespondError(c, err)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{
		"total": s.Total,
		"today": s.Today,
	})
}
