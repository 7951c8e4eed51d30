package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
)

// Handler exposes the login and callback endpoints.
type Handler struct {
	flow *Flow
}

func NewHandler(flow *Flow) *Handler {
	return &Handler{flow: flow}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/login", h.Login)
	e.GET("/callback", h.Callback)
}

// Login initiates the upstream OAuth2 flow with a 302 to the authorize
// endpoint.
func (h *Handler) Login(c echo.Context) error {
	redirectURL, err := h.flow.BeginLogin(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to initiate login")
	}
	return c.Redirect(http.StatusFound, redirectURL)
}

// Callback completes the handshake. Failures redirect back to the home page
// with an error code in the query string so the presentation layer can show
// an actionable message; no token or verifier material ever appears there.
func (h *Handler) Callback(c echo.Context) error {
	if errParam := c.QueryParam("error"); errParam != "" {
		return redirectError(c, errParam, c.QueryParam("error_description"))
	}

	code := c.QueryParam("code")
	state := c.QueryParam("state")
	if code == "" || state == "" {
		return redirectError(c, "missing_params", "")
	}

	sessionID, err := h.flow.HandleCallback(c.Request().Context(), code, state)
	if err != nil {
		var exchangeErr *TokenExchangeError
		switch {
		case errors.Is(err, ErrInvalidState):
			return redirectError(c, "invalid_state", "")
		case errors.As(err, &exchangeErr):
			detail := ""
			if exchangeErr.Status != 0 {
				detail = fmt.Sprintf("upstream status %d", exchangeErr.Status)
			}
			return redirectError(c, "token_error", detail)
		default:
			return redirectError(c, "internal_error", "")
		}
	}

	return c.Redirect(http.StatusFound, "/dashboard?session="+url.QueryEscape(sessionID))
}

func redirectError(c echo.Context, code, detail string) error {
	q := url.Values{}
	q.Set("error", code)
	if detail != "" {
		q.Set("details", detail)
	}
	return c.Redirect(http.StatusFound, "/?"+q.Encode())
}
