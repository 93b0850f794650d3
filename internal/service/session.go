package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayermolov/vaultkeeper/internal/models"
)

// sessionTTL is the fixed validity window of a bearer token.
const sessionTTL = 24 * time.Hour

// tokenLength is the number of random bytes per token (256 bits of entropy
// before hex encoding).
const tokenLength = 32

// SessionStore abstracts session storage so sessions can live in memory
// (default) or in persistent backing storage. Implementations must be safe
// for concurrent use.
type SessionStore interface {
	// Get retrieves a session by token. ok is false if no such token
	// exists. Expiry is the caller's concern.
	Get(token string) (models.Session, bool)
	// Put creates or replaces the session for the given token.
	Put(token string, session models.Session)
	// Delete removes a session by token.
	Delete(token string)
}

// MemorySessionStore is the in-memory SessionStore.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// NewMemorySessionStore creates an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]models.Session)}
}

// Get retrieves a session by token.
func (m *MemorySessionStore) Get(token string) (models.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	return s, ok
}

// Put stores a session under the given token.
func (m *MemorySessionStore) Put(token string, session models.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = session
}

// Delete removes the session for the given token.
func (m *MemorySessionStore) Delete(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

// DeleteExpired removes every session expired as of now and returns how
// many were removed.
func (m *MemorySessionStore) DeleteExpired(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for token, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed
}

// SessionService issues bearer tokens on login and resolves them back to
// identities. Expired sessions are evicted lazily on first access.
type SessionService struct {
	store SessionStore
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionService constructs a SessionService over the given store with
// the standard 24h TTL.
func NewSessionService(store SessionStore) *SessionService {
	return &SessionService{store: store, ttl: sessionTTL, now: time.Now}
}

// Issue generates a fresh cryptographically random token for the given
// username and records it with an absolute expiry. A user may hold any
// number of concurrent sessions.
func (s *SessionService) Issue(username string) (string, error) {
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(buf)
	s.store.Put(token, models.Session{
		Username:  username,
		ExpiresAt: s.now().Add(s.ttl),
	})
	return token, nil
}

// Resolve returns the username a token authenticates as. Unknown tokens and
// expired ones fail identically with ErrUnauthorized; an expired session is
// deleted on the access that discovers it.
func (s *SessionService) Resolve(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	sess, ok := s.store.Get(token)
	if !ok {
		return "", ErrUnauthorized
	}
	if !s.now().Before(sess.ExpiresAt) {
		s.store.Delete(token)
		return "", ErrUnauthorized
	}
	return sess.Username, nil
}

// expiredDeleter is the subset of a session store the sweeper needs.
type expiredDeleter interface {
	DeleteExpired(now time.Time) int
}

// StartSessionSweeper reclaims abandoned expired sessions on an interval.
// Resolution stays lazy; the sweeper only keeps never-touched tokens from
// accumulating. It runs until ctx is cancelled.
func StartSessionSweeper(ctx context.Context, store expiredDeleter, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := store.DeleteExpired(time.Now()); removed > 0 {
					log.Info("swept expired sessions", zap.Int("removed", removed))
				}
			}
		}
	}()
}
