package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "pm_session"

// SessionTTL is the server-side inactivity expiry; any authenticated request
// slides the window forward.
const SessionTTL = 24 * time.Hour

const sessionTokenBytes = 32

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// MemorySessionStore keeps sessions in process memory; state is lost on
// restart. Expired entries are evicted opportunistically on the next Create
// rather than by a timer.
type MemorySessionStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		expires: make(map[string]time.Time),
		ttl:     SessionTTL,
		now:     time.Now,
	}
}

func (s *MemorySessionStore) Create(ctx context.Context) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked()
	s.expires[token] = s.now().Add(s.ttl)
	return token, nil
}

func (s *MemorySessionStore) Valid(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.expires[token]
	if !ok {
		return false, nil
	}
	if s.now().After(expiry) {
		delete(s.expires, token)
		return false, nil
	}
	s.expires[token] = s.now().Add(s.ttl)
	return true, nil
}

func (s *MemorySessionStore) Invalidate(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expires, token)
	return nil
}

func (s *MemorySessionStore) evictExpiredLocked() {
	now := s.now()
	for token, expiry := range s.expires {
		if now.After(expiry) {
			delete(s.expires, token)
		}
	}
}
