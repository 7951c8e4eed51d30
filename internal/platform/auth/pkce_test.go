package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
)

func TestGeneratePKCE_ChallengeDerivation(t *testing.T) {
	pair, err := GeneratePKCE()
	if err != nil {
		t.Fatalf("GeneratePKCE failed: %v", err)
	}

	if len(pair.Verifier) < 43 || len(pair.Verifier) > 128 {
		t.Errorf("verifier length %d outside [43, 128]", len(pair.Verifier))
	}

	// Verifier must be drawn from unreserved URI characters.
	const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"
	for _, r := range pair.Verifier {
		if !strings.ContainsRune(unreserved, r) {
			t.Errorf("verifier contains reserved character %q", r)
		}
	}

	hash := sha256.Sum256([]byte(pair.Verifier))
	want := base64.RawURLEncoding.EncodeToString(hash[:])
	if pair.Challenge != want {
		t.Errorf("challenge mismatch: expected %s, got %s", want, pair.Challenge)
	}
}

func TestDeriveChallenge_Deterministic(t *testing.T) {
	pair, err := GeneratePKCE()
	if err != nil {
		t.Fatalf("GeneratePKCE failed: %v", err)
	}

	first := DeriveChallenge(pair.Verifier)
	second := DeriveChallenge(pair.Verifier)
	if first != second {
		t.Errorf("challenge derivation not deterministic: %s != %s", first, second)
	}
	if first != pair.Challenge {
		t.Errorf("re-derived challenge %s differs from generated %s", first, pair.Challenge)
	}
}

func TestGeneratePKCE_NoReuse(t *testing.T) {
	const n = 10000
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		pair, err := GeneratePKCE()
		if err != nil {
			t.Fatalf("GeneratePKCE failed on iteration %d: %v", i, err)
		}
		if seen[pair.Verifier] {
			t.Fatalf("verifier reused after %d iterations", i)
		}
		seen[pair.Verifier] = true
	}
}

func TestVerifyPKCE(t *testing.T) {
	pair, err := GeneratePKCE()
	if err != nil {
		t.Fatalf("GeneratePKCE failed: %v", err)
	}

	if !VerifyPKCE(pair.Verifier, pair.Challenge) {
		t.Error("expected matching pair to verify")
	}
	if VerifyPKCE("wrong-verifier-wrong-verifier-wrong-verifier", pair.Challenge) {
		t.Error("expected mismatched verifier to fail")
	}
}
