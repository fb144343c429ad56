package server

import (
	"net/http"
	"time"

	"NutriVida_Pro/internal/appointment"
	"NutriVida_Pro/internal/auth"
	"NutriVida_Pro/internal/consultation"
	"NutriVida_Pro/internal/dashboard"
	"NutriVida_Pro/internal/database"
	"NutriVida_Pro/internal/leads"
	"NutriVida_Pro/internal/notify"
	"NutriVida_Pro/internal/patient"
	"NutriVida_Pro/internal/utility"
	"NutriVida_Pro/internal/visits"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

const loginLimiterTTL = 15 * time.Minute

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	extractor, err := utility.IPExtractor(s.cfg.TrustedProxies)
	if err != nil {
		log.Error().Err(err).Msg("Ignoring TRUSTED_PROXIES; using the socket address")
		extractor = echo.ExtractIPDirect()
	}
	e.IPExtractor = extractor

	e.Use(LoggerMiddleware)
	e.Use(middleware.Recover())
	e.Use(s.metrics.Middleware())
	e.Use(middleware.BodyLimit("2M"))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	q := s.db.Queries()

	// Auth
	sessionStore := auth.NewSessionStore(s.cfg.SessionSecret, s.cfg.SessionMaxAge(), s.cfg.IsProduction())
	authHandler := auth.NewHandler(sessionStore, q, utility.NewIPRateLimiter(s.cfg.LoginAttemptsPM, loginLimiterTTL))
	guard := authHandler.SessionAuthMiddleware

	// Listeners for new appointments and consultations
	refresher := dashboard.NewNotifier(s.hub)
	appointmentListeners := []appointment.Listener{refresher, s.metrics}
	if mailer := notify.NewMailer(s.cfg); mailer != nil {
		appointmentListeners = append(appointmentListeners, mailer)
	} else {
		log.Info().Msg("SMTP not configured; appointment e-mails disabled")
	}

	patients := patient.NewService(q)
	appointments := appointment.NewService(q, patients, appointmentListeners...)
	consultations := consultation.NewService(q,
		consultation.WithListeners(refresher, s.metrics),
		consultation.WithCascadeFailureHook(s.metrics.RecordCascadeFailure),
	)
	counter := visits.NewCounter(q, s.cfg.VisitDedupWindow)

	// Leads are optional; a nil *LeadStore must not reach the handler as a
	// non-nil interface.
	var leadStore leads.Store
	if s.leads != nil {
		leadStore = s.leads
	}

	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	api := e.Group("/api")
	api.GET("/health", s.healthHandler)

	authHandler.RegisterRoutes(api.Group("/auth"))
	patient.NewHandler(patients).RegisterRoutes(api.Group("/patients"), guard)
	appointment.NewHandler(appointments).RegisterRoutes(api.Group("/appointments"), guard)
	consultation.NewHandler(consultations).RegisterRoutes(api.Group("/consultations"), guard)
	visits.NewHandler(counter).RegisterRoutes(api.Group("/visits"), guard)
	dashboard.NewHandler(q, s.hub, s.today).RegisterRoutes(api.Group("/dashboard"), guard)
	leads.NewHandler(leadStore).RegisterRoutes(api.Group("/landing"))

	return e
}

func (s *Server) today() string {
	return database.FormatDate(time.Now())
}

// LoggerMiddleware tags the request with an id, stores a request-scoped
// logger under "logger" and writes one access line when the handler returns.
func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().Str("request_id", requestID).Logger()
		c.Set("logger", &logger)

		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		status := c.Response().Status
		evt := logger.Info()
		if status >= http.StatusInternalServerError {
			evt = logger.Error()
		}
		evt.Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.RealIP()).
			Msg("request")
		return nil
	}
}
