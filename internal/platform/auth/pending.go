package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// pendingAuth correlates an issued state value with the PKCE verifier that
// must accompany the eventual code exchange.
type pendingAuth struct {
	Verifier  string
	CreatedAt time.Time
}

// pendingStore provides thread-safe storage for in-flight authorization
// attempts, keyed by state. Entries are one-shot: Consume removes them, so a
// replayed state always misses.
type pendingStore struct {
	mu      sync.Mutex
	pending map[string]pendingAuth
	ttl     time.Duration
	now     func() time.Time
}

func newPendingStore(ttl time.Duration) *pendingStore {
	return &pendingStore{
		pending: make(map[string]pendingAuth),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Add generates a new state value and records the verifier against it.
func (s *pendingStore) Add(verifier string) (string, error) {
	state, err := newStateToken()
	if err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}

	s.mu.Lock()
	s.prune()
	s.pending[state] = pendingAuth{Verifier: verifier, CreatedAt: s.now()}
	s.mu.Unlock()

	return state, nil
}

// Consume retrieves and removes the verifier for state. The second return
// is false when the state is unknown, already consumed, or expired.
func (s *pendingStore) Consume(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[state]
	if !ok {
		return "", false
	}
	delete(s.pending, state)

	if s.now().Sub(p.CreatedAt) > s.ttl {
		return "", false
	}
	return p.Verifier, true
}

// prune drops expired entries. Caller holds the lock.
func (s *pendingStore) prune() {
	cutoff := s.now().Add(-s.ttl)
	for state, p := range s.pending {
		if p.CreatedAt.Before(cutoff) {
			delete(s.pending, state)
		}
	}
}

func newStateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
