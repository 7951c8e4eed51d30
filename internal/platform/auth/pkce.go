// Package auth implements the browser-facing leg of the SMART on FHIR
// standalone launch: PKCE generation, the authorization redirect, and the
// authorization-code-for-token exchange that creates a server-side session.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// PKCEPair binds a code_verifier to its S256 code_challenge. Only the
// challenge is ever sent through the browser; the verifier stays in this
// process until the token exchange.
type PKCEPair struct {
	Verifier  string
	Challenge string
}

// GeneratePKCE produces a fresh pair: a 43-character verifier from 32 bytes
// of crypto/rand, and its derived challenge. Every authorization attempt
// gets its own pair; verifiers are never reused.
func GeneratePKCE() (PKCEPair, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return PKCEPair{}, fmt.Errorf("generating code verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(buf)
	return PKCEPair{
		Verifier:  verifier,
		Challenge: DeriveChallenge(verifier),
	}, nil
}

// DeriveChallenge computes the S256 code_challenge for a verifier:
// base64url-encoded SHA-256 digest, no padding.
func DeriveChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// VerifyPKCE checks a code_verifier against a code_challenge using S256.
func VerifyPKCE(verifier, challenge string) bool {
	computed := DeriveChallenge(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}
