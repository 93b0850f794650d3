package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestIssueResolve(t *testing.T) {
	svc := NewSessionService(NewMemorySessionStore())

	token, err := svc.Issue("alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if len(token) != tokenLength*2 {
		t.Errorf("len(token) = %d; want %d hex chars", len(token), tokenLength*2)
	}

	username, err := svc.Resolve(token)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if username != "alice" {
		t.Errorf("Resolve = %q; want %q", username, "alice")
	}
}

func TestIssue_TokensAreUnique(t *testing.T) {
	svc := NewSessionService(NewMemorySessionStore())

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := svc.Issue("alice")
		if err != nil {
			t.Fatalf("Issue returned error: %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate token issued: %q", token)
		}
		seen[token] = true
	}
}

func TestIssue_ConcurrentSessionsPerUser(t *testing.T) {
	svc := NewSessionService(NewMemorySessionStore())

	first, err := svc.Issue("alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	second, err := svc.Issue("alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	// Issuing a second session must not invalidate the first.
	for _, token := range []string{first, second} {
		if _, err := svc.Resolve(token); err != nil {
			t.Errorf("Resolve(%q) returned error: %v", token, err)
		}
	}
}

func TestResolve_UnknownOrEmptyToken(t *testing.T) {
	svc := NewSessionService(NewMemorySessionStore())

	if _, err := svc.Resolve(""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Resolve(empty) error = %v; want ErrUnauthorized", err)
	}
	if _, err := svc.Resolve("deadbeef"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Resolve(unknown) error = %v; want ErrUnauthorized", err)
	}
}

func TestResolve_ExpiryBoundary(t *testing.T) {
	store := NewMemorySessionStore()
	svc := NewSessionService(store)

	issuedAt := time.Now()
	svc.now = func() time.Time { return issuedAt }

	token, err := svc.Issue("alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	tests := []struct {
		name    string
		at      time.Time
		wantErr bool
	}{
		{"just issued", issuedAt, false},
		{"one second before expiry", issuedAt.Add(sessionTTL - time.Second), false},
		{"exactly at expiry", issuedAt.Add(sessionTTL), true},
		{"after expiry", issuedAt.Add(sessionTTL + time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Re-issue if a previous expired check evicted the token.
			if _, ok := store.Get(token); !ok {
				svc.now = func() time.Time { return issuedAt }
				token, err = svc.Issue("alice")
				if err != nil {
					t.Fatalf("Issue returned error: %v", err)
				}
			}
			svc.now = func() time.Time { return tt.at }
			_, err := svc.Resolve(token)
			if tt.wantErr && !errors.Is(err, ErrUnauthorized) {
				t.Errorf("Resolve error = %v; want ErrUnauthorized", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Resolve returned error: %v", err)
			}
		})
	}
}

func TestResolve_EvictsExpiredLazily(t *testing.T) {
	store := NewMemorySessionStore()
	svc := NewSessionService(store)

	issuedAt := time.Now()
	svc.now = func() time.Time { return issuedAt }
	token, err := svc.Issue("alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	svc.now = func() time.Time { return issuedAt.Add(sessionTTL + time.Minute) }
	if _, err := svc.Resolve(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Resolve error = %v; want ErrUnauthorized", err)
	}

	// The expired session is deleted on the access that discovered it.
	if _, ok := store.Get(token); ok {
		t.Error("expired session still present after resolve")
	}
}

func TestDeleteExpired(t *testing.T) {
	store := NewMemorySessionStore()
	svc := NewSessionService(store)

	issuedAt := time.Now()
	svc.now = func() time.Time { return issuedAt }

	stale, err := svc.Issue("alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	svc.now = func() time.Time { return issuedAt.Add(sessionTTL) }
	fresh, err := svc.Issue("bob")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	removed := store.DeleteExpired(issuedAt.Add(sessionTTL))
	if removed != 1 {
		t.Errorf("DeleteExpired = %d; want 1", removed)
	}
	if _, ok := store.Get(stale); ok {
		t.Error("stale session survived sweep")
	}
	if _, ok := store.Get(fresh); !ok {
		t.Error("fresh session removed by sweep")
	}
}

func TestStartSessionSweeper(t *testing.T) {
	store := NewMemorySessionStore()
	svc := NewSessionService(store)

	issuedAt := time.Now().Add(-2 * sessionTTL)
	svc.now = func() time.Time { return issuedAt }
	token, err := svc.Issue("alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartSessionSweeper(ctx, store, 10*time.Millisecond, zap.NewNop())

	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := store.Get(token); !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("sweeper did not remove expired session")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
