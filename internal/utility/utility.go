package utility

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"NutriVida_Pro/internal/apperr"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// IPExtractor resolves the client IP from X-Forwarded-For, honouring the
// header only when it arrives through loopback or one of the trusted proxy
// ranges. Any other peer is identified by its socket address, so a spoofed
// header cannot rotate the per-IP throttles.
func IPExtractor(trustedProxies []string) (echo.IPExtractor, error) {
	opts := []echo.TrustOption{
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy range %q: %w", cidr, err)
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}

// StringPtr returns nil for blank strings so optional columns store NULL.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Logger returns the request-scoped logger set by the request logger
// middleware, or the global logger outside a request.
func Logger(c echo.Context) *zerolog.Logger {
	if l, ok := c.Get("logger").(*zerolog.Logger); ok && l != nil {
		return l
	}
	l := log.Logger
	return &l
}

// OK writes the success envelope {"ok": true, ...fields}.
func OK(c echo.Context, status int, fields map[string]interface{}) error {
	body := map[string]interface{}{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	return c.JSON(status, body)
}

// Fail writes the failure envelope {"ok": false, "error": msg}.
func Fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]interface{}{"ok": false, "error": msg})
}

// RespondError maps an error to its status code and writes the failure
// envelope. Storage causes are logged and never sent to the client.
func RespondError(c echo.Context, err error) error {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		Logger(c).Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	}
	return Fail(c, status, apperr.PublicMessage(err))
}

// ParamID parses a positive integer path parameter.
func ParamID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("Invalid " + name)
	}
	return id, nil
}

// QueryInt reads a non-negative integer query parameter, falling back to
// def when it is absent or malformed.
func QueryInt(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
