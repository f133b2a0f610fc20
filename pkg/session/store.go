package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/registrar/pkg/tenant"
)

// Store is the session cache. Implementations must be safe for
// concurrent use; mutation is last-write-wins per session.
type Store interface {
	// Create starts a session for a principal and returns it.
	Create(ctx context.Context, principalID string) (*Session, error)

	// Get returns the session, refreshing its last-activity
	// timestamp. Expired sessions are removed and reported as
	// ErrNotFound.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// SetContext caches a tenant context for the institution and
	// makes that institution current.
	SetContext(ctx context.Context, sessionID string, tc tenant.Context) error

	// SwitchContext atomically discards every cached context and
	// installs the new one. No caller can observe the session with
	// the old contexts cleared but the new one absent.
	SwitchContext(ctx context.Context, sessionID string, tc tenant.Context) error

	// ClearContexts drops all cached contexts but keeps the session.
	ClearContexts(ctx context.Context, sessionID string) error

	// Destroy removes the session outright (logout).
	Destroy(ctx context.Context, sessionID string) error

	// Sweep removes all sessions past their TTL and returns how many
	// were dropped.
	Sweep(ctx context.Context) (int, error)

	// Len returns the number of live sessions.
	Len(ctx context.Context) (int, error)
}

// MemoryStore is the default in-process session cache with TTL-based
// expiry. Sweep is driven externally (hourly via cron in the server
// binary).
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithTTL overrides the default 24h session TTL.
func WithTTL(ttl time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) { s.ttl = ttl }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]Session),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, principalID string) (*Session, error) {
	now := s.now()
	sess := Session{
		ID:           uuid.NewString(),
		PrincipalID:  principalID,
		Contexts:     make(map[string]tenant.Context),
		CreatedAt:    now,
		LastActivity: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	out := cloneSession(sess)
	return &out, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Session, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if sess.Expired(now, s.ttl) {
		delete(s.sessions, sessionID)
		return nil, ErrNotFound
	}

	sess.LastActivity = now
	s.sessions[sessionID] = sess

	out := cloneSession(sess)
	return &out, nil
}

// SetContext implements Store.
func (s *MemoryStore) SetContext(_ context.Context, sessionID string, tc tenant.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if sess.Contexts == nil {
		sess.Contexts = make(map[string]tenant.Context)
	}
	sess.Contexts[tc.InstitutionID] = tc
	sess.CurrentInstitutionID = tc.InstitutionID
	sess.LastActivity = s.now()
	s.sessions[sessionID] = sess
	return nil
}

// SwitchContext implements Store. The map swap happens in one
// critical section so the session is never observable half-switched.
func (s *MemoryStore) SwitchContext(_ context.Context, sessionID string, tc tenant.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.Contexts = map[string]tenant.Context{tc.InstitutionID: tc}
	sess.CurrentInstitutionID = tc.InstitutionID
	sess.LastActivity = s.now()
	s.sessions[sessionID] = sess
	return nil
}

// ClearContexts implements Store.
func (s *MemoryStore) ClearContexts(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.Contexts = make(map[string]tenant.Context)
	sess.CurrentInstitutionID = ""
	sess.LastActivity = s.now()
	s.sessions[sessionID] = sess
	return nil
}

// Destroy implements Store.
func (s *MemoryStore) Destroy(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Sweep implements Store.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.Expired(now, s.ttl) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len implements Store.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}
