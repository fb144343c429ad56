package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"NutriVida_Pro/internal/apperr"
	"NutriVida_Pro/internal/database"
	"NutriVida_Pro/internal/utility"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	SessionName = "nvpsid"

	keyDoctorID    = "doctor_id"
	keyDoctorName  = "doctor_name"
	keyDoctorEmail = "doctor_email"

	MinPasswordLength = 8
)

// DoctorStore is the slice of the query layer the auth package needs.
type DoctorStore interface {
	GetDoctorByEmail(ctx context.Context, email string) (database.Doctor, error)
	CreateDoctor(ctx context.Context, arg database.CreateDoctorParams) (int64, error)
}

// Doctor is the practitioner identity carried by the session.
type Doctor struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// NewSessionStore builds the cookie store backing the practitioner session.
// Production deployments serve the API and the dashboard from different
// sites, so the cookie must be SameSite=None and therefore Secure.
func NewSessionStore(secret string, maxAge time.Duration, production bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.MaxAge(int(maxAge.Seconds()))
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = production
	store.Options.SameSite = http.SameSiteLaxMode
	if production {
		store.Options.SameSite = http.SameSiteNoneMode
	}
	return store
}

type Handler struct {
	store   sessions.Store
	doctors DoctorStore
	limiter *utility.IPRateLimiter
}

func NewHandler(store sessions.Store, doctors DoctorStore, limiter *utility.IPRateLimiter) *Handler {
	return &Handler{store: store, doctors: doctors, limiter: limiter}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/login", h.LoginHandler)
	g.POST("/logout", h.LogoutHandler)
	g.GET("/me", h.MeHandler)
}

var (
	errNotAuthenticated   = apperr.Unauthenticated("Not authenticated")
	errInvalidCredentials = apperr.Unauthenticated("Invalid credentials")
)

// SessionAuthMiddleware rejects requests without a practitioner session and
// exposes the practitioner as "doctor_id" and "doctor_name" in the echo
// context.
func (h *Handler) SessionAuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		doctor, ok := h.currentDoctor(c)
		if !ok {
			return utility.RespondError(c, errNotAuthenticated)
		}
		c.Set("doctor_id", doctor.ID)
		c.Set("doctor_name", doctor.Name)
		return next(c)
	}
}

func (h *Handler) currentDoctor(c echo.Context) (Doctor, bool) {
	sess, err := h.store.Get(c.Request(), SessionName)
	if err != nil {
		// A cookie signed with an old secret decodes with an error; treat it
		// as no session.
		utility.Logger(c).Debug().Err(err).Msg("Invalid session cookie")
		return Doctor{}, false
	}
	id, ok := sess.Values[keyDoctorID].(int64)
	if !ok || id <= 0 {
		return Doctor{}, false
	}
	name, _ := sess.Values[keyDoctorName].(string)
	email, _ := sess.Values[keyDoctorEmail].(string)
	return Doctor{ID: id, Name: name, Email: email}, true
}

func (h *Handler) LoginHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		return utility.Fail(c, http.StatusTooManyRequests, "Too many login attempts, please try again later")
	}

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return utility.Fail(c, http.StatusBadRequest, "Invalid request")
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return utility.Fail(c, http.StatusBadRequest, "Email and password are required")
	}

	doctor, err := h.doctors.GetDoctorByEmail(ctx, req.Email)
	if errors.Is(err, sql.ErrNoRows) {
		log.Warn().Str("email", req.Email).Msg("Login attempt for unknown email")
		return utility.RespondError(c, errInvalidCredentials)
	}
	if err != nil {
		utility.Logger(c).Error().Err(err).Msg("Failed to look up doctor")
		return utility.Fail(c, http.StatusInternalServerError, "Internal server error")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(doctor.PasswordHash), []byte(req.Password)); err != nil {
		log.Warn().Str("email", req.Email).Msg("Failed login attempt")
		return utility.RespondError(c, errInvalidCredentials)
	}

	// A cookie that fails to decode still yields a usable new session.
	sess, err := h.store.New(c.Request(), SessionName)
	if err != nil && sess == nil {
		utility.Logger(c).Error().Err(err).Msg("Failed to create session")
		return utility.Fail(c, http.StatusInternalServerError, "Failed to create session")
	}
	sess.Values[keyDoctorID] = doctor.ID
	sess.Values[keyDoctorName] = doctor.Name
	sess.Values[keyDoctorEmail] = doctor.Email
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		utility.Logger(c).Error().Err(err).Msg("Failed to save session")
		return utility.Fail(c, http.StatusInternalServerError, "Failed to save session")
	}

	log.Info().Int64("doctor_id", doctor.ID).Msg("Doctor logged in")
	return utility.OK(c, http.StatusOK, map[string]interface{}{
		"doctor": Doctor{ID: doctor.ID, Name: doctor.Name, Email: doctor.Email},
	})
}

func (h *Handler) LogoutHandler(c echo.Context) error {
	sess, _ := h.store.Get(c.Request(), SessionName)
	if sess != nil {
		sess.Values = map[interface{}]interface{}{}
		sess.Options.MaxAge = -1
		if err := sess.Save(c.Request(), c.Response()); err != nil {
			utility.Logger(c).Error().Err(err).Msg("Failed to clear session")
			return utility.Fail(c, http.StatusInternalServerError, "Could not log out")
		}
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{"message": "Logged out"})
}

func (h *Handler) MeHandler(c echo.Context) error {
	doctor, ok := h.currentDoctor(c)
	if !ok {
		return utility.RespondError(c, errNotAuthenticated)
	}
	return utility.OK(c, http.StatusOK, map[string]interface{}{"doctor": doctor})
}

// SeedResult reports what SeedDoctor did.
type SeedResult struct {
	ID      int64
	Email   string
	Existed bool
}

// SeedDoctor creates the practitioner account when no doctor with email is
// registered yet. It never overwrites an existing account.
func SeedDoctor(ctx context.Context, doctors DoctorStore, name, email, password string) (SeedResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return SeedResult{}, fmt.Errorf("DOCTOR_EMAIL and DOCTOR_PASSWORD are required")
	}
	if len(password) < MinPasswordLength {
		return SeedResult{}, fmt.Errorf("DOCTOR_PASSWORD must be at least %d characters", MinPasswordLength)
	}

	existing, err := doctors.GetDoctorByEmail(ctx, email)
	if err == nil {
		log.Info().Int64("doctor_id", existing.ID).Str("email", email).Msg("Doctor already registered, seed skipped")
		return SeedResult{ID: existing.ID, Email: email, Existed: true}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return SeedResult{}, fmt.Errorf("look up doctor: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return SeedResult{}, fmt.Errorf("hash password: %w", err)
	}

	id, err := doctors.CreateDoctor(ctx, database.CreateDoctorParams{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("create doctor: %w", err)
	}

	log.Info().Int64("doctor_id", id).Str("email", email).Msg("Doctor account created")
	return SeedResult{ID: id, Email: email}, nil
}
