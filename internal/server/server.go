/*
Package server implements the application's network transport layer.
It builds the services behind every /api route, wires their listeners,
and wraps the echo router in an http.Server with production timeouts.
*/
package server

import (
	"net/http"
	"time"

	"NutriVida_Pro/internal/config"
	"NutriVida_Pro/internal/database"
	"NutriVida_Pro/internal/metrics"
	"NutriVida_Pro/internal/utility"
)

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	cfg *config.Config

	// db is the clinic's SQLite store.
	db database.Service

	// leads is nil when DATABASE_URL is not set.
	leads *database.LeadStore

	// hub fans dashboard refreshes out to open websockets.
	hub *utility.Hub

	metrics *metrics.Metrics

	startTime time.Time
}

func New(cfg *config.Config, db database.Service, leads *database.LeadStore) *Server {
	return &Server{
		cfg:       cfg,
		db:        db,
		leads:     leads,
		hub:       utility.NewHub(cfg.CORSOrigins...),
		metrics:   metrics.New(),
		startTime: time.Now(),
	}
}

// NewServer returns the http.Server for s, with network timeouts suited to a
// small clinic API. WriteTimeout does not apply to hijacked websockets.
func (s *Server) NewServer() *http.Server {
	return &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
