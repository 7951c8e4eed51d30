package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestSession() Session {
	return Session{
		AccessToken: "token-abc",
		PatientID:   "patient-1",
		TokenExpiry: time.Now().Add(time.Hour),
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.Create(ctx, newTestSession())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty session id")
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AccessToken != "token-abc" || got.PatientID != "patient-1" {
		t.Errorf("unexpected session contents: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "no-such-id"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_GetExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s := newTestSession()
	s.TokenExpiry = time.Now().Add(-time.Minute)
	id, err := store.Create(ctx, s)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := store.Get(ctx, id); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for expired session, got %v", err)
	}
	if store.Len() != 0 {
		t.Error("expected expired session to be removed on Get")
	}
}

func TestMemoryStore_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.Create(ctx, newTestSession())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Errorf("first Delete failed: %v", err)
	}
	if err := store.Delete(ctx, id); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, id); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStore_ConcurrentCreates(t *testing.T) {
	const n = 100
	ctx := context.Background()
	store := NewMemoryStore()

	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := store.Create(ctx, newTestSession())
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate session id: %s", id)
		}
		seen[id] = true
		if _, err := store.Get(ctx, id); err != nil {
			t.Errorf("session %s not retrievable: %v", id, err)
		}
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct sessions, got %d", n, len(seen))
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	s := Session{TokenExpiry: now.Add(time.Second)}
	if s.Expired(now) {
		t.Error("session should not be expired before its expiry")
	}
	if !s.Expired(now.Add(2 * time.Second)) {
		t.Error("session should be expired after its expiry")
	}
	if (Session{}).Expired(now) {
		t.Error("zero expiry should never be treated as expired")
	}
}
