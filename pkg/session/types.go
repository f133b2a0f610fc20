package session

import (
	"errors"
	"time"

	"github.com/campuskit/registrar/pkg/tenant"
)

// DefaultTTL is how long a session survives without activity.
const DefaultTTL = 24 * time.Hour

var (
	// ErrNotFound indicates the session does not exist or has expired.
	ErrNotFound = errors.New("session not found")

	// ErrContextMissing indicates no tenant context is established for
	// the requested institution. Callers must establish one rather
	// than fall back to stale data.
	ErrContextMissing = errors.New("institution context required")
)

// Session holds per-principal state: the current institution, cached
// tenant contexts per institution, and the last-activity timestamp
// used for TTL expiry. A session has a single owner by construction,
// so no cross-session coordination is needed.
type Session struct {
	ID                   string                    `json:"id"`
	PrincipalID          string                    `json:"principal_id"`
	CurrentInstitutionID string                    `json:"current_institution_id,omitempty"`
	Contexts             map[string]tenant.Context `json:"contexts,omitempty"`
	CreatedAt            time.Time                 `json:"created_at"`
	LastActivity         time.Time                 `json:"last_activity"`
}

// Expired reports whether the session has passed its TTL at the given
// instant.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastActivity) > ttl
}

// CurrentContext returns the cached context for the session's current
// institution, if both are set.
func (s *Session) CurrentContext() (tenant.Context, bool) {
	if s.CurrentInstitutionID == "" || s.Contexts == nil {
		return tenant.Context{}, false
	}
	tc, ok := s.Contexts[s.CurrentInstitutionID]
	return tc, ok
}

func cloneSession(s Session) Session {
	out := s
	out.Contexts = make(map[string]tenant.Context, len(s.Contexts))
	for k, v := range s.Contexts {
		out.Contexts[k] = v
	}
	return out
}
