// Package session holds the server-side state created by a completed
// SMART on FHIR login: the upstream access token, the patient context it was
// issued for, and the PKCE verifier that obtained it. Sessions are owned
// exclusively by a Store; collaborators receive copies by lookup.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session id is unknown, deleted, or expired.
var ErrNotFound = errors.New("session not found")

// Session is the state held for one authenticated browser.
type Session struct {
	AccessToken  string
	PatientID    string
	TokenExpiry  time.Time
	PKCEVerifier string
	IDToken      string
	FHIRUser     string
	CreatedAt    time.Time
}

// Expired reports whether the session's access token is past its expiry.
func (s Session) Expired(now time.Time) bool {
	return !s.TokenExpiry.IsZero() && now.After(s.TokenExpiry)
}

// Store is the session persistence contract. The in-memory implementation
// is the only one shipped; a durable backend can be swapped in without
// touching the auth flow or the records service.
type Store interface {
	// Create allocates an unguessable id, inserts the session, and returns
	// the id.
	Create(ctx context.Context, s Session) (string, error)
	// Get returns the session for id, or ErrNotFound when the id is absent
	// or the session's token has expired. Expired sessions are removed.
	Get(ctx context.Context, id string) (Session, error)
	// Delete removes the session. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
}
