package auth

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned when a callback's state value was never
// issued, already consumed, or expired. This is the CSRF/replay defense:
// the login attempt is terminal and the user must restart at /login.
var ErrInvalidState = errors.New("invalid or expired state parameter")

// TokenExchangeError is returned when the upstream token endpoint rejects
// the code exchange or the response is unusable. It carries the upstream
// status and a short detail for diagnostics; it never contains the access
// token or the PKCE verifier.
type TokenExchangeError struct {
	Status int
	Detail string
	Err    error
}

func (e *TokenExchangeError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("token exchange failed: upstream status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("token exchange failed: %s", e.Detail)
}

func (e *TokenExchangeError) Unwrap() error { return e.Err }
