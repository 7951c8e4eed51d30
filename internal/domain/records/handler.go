package records

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fhirportal/fhirportal/pkg/pagination"
)

// Handler exposes the clinical-data API consumed by the dashboard.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patient/:session_id", h.fetch(KindDemographics))
	api.GET("/medications/:session_id", h.fetch(KindMedications))
	api.GET("/labs/:session_id", h.fetch(KindLabs))
	api.GET("/vitals/:session_id", h.fetch(KindVitals))
	api.GET("/logout/:session_id", h.Logout)
}

func (h *Handler) fetch(kind Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionID := c.Param("session_id")
		params := pagination.FromContext(c)

		page, err := h.svc.Fetch(c.Request().Context(), sessionID, kind, params)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, page)
	}
}

// Logout destroys the session; repeating it for an already-absent id still
// succeeds.
func (h *Handler) Logout(c echo.Context) error {
	if err := h.svc.Logout(c.Request().Context(), c.Param("session_id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "logout failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// mapError converts service errors to HTTP responses. Bodies name the error
// category and upstream status only; tokens and verifiers never appear.
func mapError(err error) error {
	if errors.Is(err, ErrSessionInvalid) {
		return echo.NewHTTPError(http.StatusUnauthorized, echo.Map{
			"error":  "session_invalid",
			"detail": "session is invalid or expired, please log in again",
		})
	}

	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return echo.NewHTTPError(http.StatusBadGateway, echo.Map{
			"error":           "upstream_error",
			"upstream_status": upstreamErr.Status,
		})
	}

	return echo.NewHTTPError(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
}
