package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/fhirportal/fhirportal/internal/platform/session"
)

const (
	// defaultTokenTTL is assumed when the token response omits expires_in.
	defaultTokenTTL = time.Hour
	// defaultPendingTTL bounds how long a login attempt may sit between the
	// authorize redirect and the callback.
	defaultPendingTTL = 10 * time.Minute
	// maxErrorDetail caps how much upstream error body is kept for
	// diagnostics.
	maxErrorDetail = 512
)

// Config holds the upstream OAuth2/FHIR endpoints and client registration.
type Config struct {
	AuthURL      string
	TokenURL     string
	FHIRBaseURL  string
	ClientID     string
	RedirectURI  string
	Scopes       []string
	PatientClaim string        // token-response claim carrying the launched patient id
	PendingTTL   time.Duration // optional, defaults to 10m
	SessionTTL   time.Duration // optional, session lifetime when expires_in is absent
	Timeout      time.Duration // optional, bounds the token exchange
}

// Flow orchestrates the two-leg authorization-code handshake with PKCE.
// BeginLogin issues the redirect; HandleCallback exchanges the code and
// creates a session. Each attempt gets a fresh verifier and state.
type Flow struct {
	oauth        oauth2.Config
	fhirBaseURL  string
	patientClaim string
	sessionTTL   time.Duration
	pending      *pendingStore
	sessions     session.Store
	client       *http.Client
	logger       zerolog.Logger
}

// NewFlow wires a Flow against the given session store. The store is
// injected so tests can observe created sessions directly.
func NewFlow(cfg Config, sessions session.Store, logger zerolog.Logger) *Flow {
	pendingTTL := cfg.PendingTTL
	if pendingTTL <= 0 {
		pendingTTL = defaultPendingTTL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	claim := cfg.PatientClaim
	if claim == "" {
		claim = "patient"
	}
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = defaultTokenTTL
	}

	return &Flow{
		oauth: oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Scopes:      cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		fhirBaseURL:  cfg.FHIRBaseURL,
		patientClaim: claim,
		sessionTTL:   sessionTTL,
		pending:      newPendingStore(pendingTTL),
		sessions:     sessions,
		client:       &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// BeginLogin starts a new authorization attempt: it generates a PKCE pair
// and state, records the pending correlation, and returns the upstream
// authorize URL to redirect the browser to. The SMART `aud` parameter names
// the FHIR server the token will be used against.
func (f *Flow) BeginLogin(ctx context.Context) (string, error) {
	pair, err := GeneratePKCE()
	if err != nil {
		return "", err
	}

	state, err := f.pending.Add(pair.Verifier)
	if err != nil {
		return "", err
	}

	url := f.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", pair.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("aud", f.fhirBaseURL),
	)

	f.logger.Info().Msg("login initiated, redirecting to authorize endpoint")
	return url, nil
}

// HandleCallback completes the handshake: it validates state, exchanges the
// code (with the recorded verifier) for tokens, and creates a session.
// The pending entry is consumed before the network call, so a replayed
// state fails regardless of the exchange outcome.
func (f *Flow) HandleCallback(ctx context.Context, code, state string) (string, error) {
	verifier, ok := f.pending.Consume(state)
	if !ok {
		f.logger.Warn().Msg("callback with unknown or replayed state")
		return "", ErrInvalidState
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)
	tok, err := f.oauth.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", verifier),
	)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			f.logger.Error().Int("upstream_status", status).Msg("token endpoint rejected code exchange")
			return "", &TokenExchangeError{Status: status, Detail: truncate(string(re.Body)), Err: err}
		}
		f.logger.Error().Err(err).Msg("token exchange transport failure")
		return "", &TokenExchangeError{Detail: "transport failure during code exchange", Err: err}
	}

	patientID, _ := tok.Extra(f.patientClaim).(string)
	if patientID == "" {
		// Without a patient context every downstream query is meaningless;
		// fail closed rather than guess. The exchange itself succeeded, so
		// no upstream status is attached.
		return "", &TokenExchangeError{
			Detail: fmt.Sprintf("token response missing %q claim", f.patientClaim),
		}
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(f.sessionTTL)
	}

	sess := session.Session{
		AccessToken:  tok.AccessToken,
		PatientID:    patientID,
		TokenExpiry:  expiry,
		PKCEVerifier: verifier,
	}

	if rawID, ok := tok.Extra("id_token").(string); ok && rawID != "" {
		sess.IDToken = rawID
		sess.FHIRUser = fhirUserFromIDToken(rawID)
	}

	id, err := f.sessions.Create(ctx, sess)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	f.logger.Info().Str("patient_id", patientID).Time("token_expiry", expiry).Msg("token acquired, session created")
	return id, nil
}

// fhirUserFromIDToken extracts the fhirUser claim from an OIDC id_token.
// The token was received directly from the token endpoint over TLS, so the
// claims are read without signature verification. The value is only used
// for display.
func fhirUserFromIDToken(raw string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return ""
	}
	fhirUser, _ := claims["fhirUser"].(string)
	return fhirUser
}

func truncate(s string) string {
	if len(s) > maxErrorDetail {
		return s[:maxErrorDetail]
	}
	return s
}
