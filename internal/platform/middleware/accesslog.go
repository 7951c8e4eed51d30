package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// AccessLog returns middleware that records every clinical-data access under
// /api/* for audit purposes: which resource collection was read, from where,
// and with what outcome. Session ids are PHI-adjacent bearer handles, so only
// a short prefix is logged.
func AccessLog(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if !strings.HasPrefix(path, "/api/") {
				return next(c)
			}

			err := next(c)

			rid, _ := c.Get("request_id").(string)
			logger.Info().
				Str("type", "phi_access").
				Str("request_id", rid).
				Str("resource", resourceFromPath(path)).
				Str("session", truncateToken(c.Param("session_id"))).
				Str("remote_ip", c.RealIP()).
				Str("user_agent", c.Request().UserAgent()).
				Int("status", c.Response().Status).
				Time("at", time.Now().UTC()).
				Msg("clinical data access")

			return err
		}
	}
}

// resourceFromPath extracts the collection name from paths like
// /api/medications/:session_id.
func resourceFromPath(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/api/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func truncateToken(tok string) string {
	if len(tok) <= 8 {
		return tok
	}
	return tok[:8] + "…"
}
