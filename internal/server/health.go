package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// healthHandler reports the state of both stores plus host figures. It
// answers 503 when SQLite is down; Postgres only backs the landing form and
// does not affect the status code.
func (s *Server) healthHandler(c echo.Context) error {
	dbHealth := s.db.Health()
	status := http.StatusOK
	if dbHealth["status"] != "up" {
		status = http.StatusServiceUnavailable
	}

	body := map[string]interface{}{
		"ok":       status == http.StatusOK,
		"database": dbHealth,
		"runtime":  s.runtimeStats(),
	}
	if s.leads != nil {
		body["leads_database"] = s.leads.Health()
	}
	return c.JSON(status, body)
}

func (s *Server) runtimeStats() map[string]interface{} {
	stats := map[string]interface{}{
		"uptime":     time.Since(s.startTime).Round(time.Second).String(),
		"start_time": s.startTime.Format(time.RFC3339),
	}

	if v, err := mem.VirtualMemory(); err == nil {
		stats["memory"] = map[string]interface{}{
			"total_gb":     fmt.Sprintf("%.2f GB", float64(v.Total)/1024/1024/1024),
			"used_percent": fmt.Sprintf("%.2f%%", v.UsedPercent),
		}
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		stats["cpu_percent"] = fmt.Sprintf("%.2f%%", pct[0])
	}
	if h, err := host.Info(); err == nil {
		stats["os"] = h.OS
		stats["platform"] = h.Platform
		stats["hostname"] = h.Hostname
	}
	return stats
}
