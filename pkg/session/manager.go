package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/campuskit/registrar/pkg/observability"
	"github.com/campuskit/registrar/pkg/tenant"
)

// Manager ties the session cache to the tenant context resolver. It
// is the component request handlers talk to: establish a context,
// read the current one, switch institutions, log out.
type Manager struct {
	store    Store
	resolver *tenant.Resolver
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewManager creates a session manager.
func NewManager(store Store, resolver *tenant.Resolver, logger *observability.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{
		store:    store,
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
	}
}

// Login creates a session for an authenticated principal.
func (m *Manager) Login(ctx context.Context, principalID string) (*Session, error) {
	sess, err := m.store.Create(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if m.metrics != nil {
		m.metrics.SessionsCreatedTotal.Inc()
		if n, err := m.store.Len(ctx); err == nil {
			m.metrics.SessionsActive.Set(float64(n))
		}
	}
	m.logger.WithField("principal_id", principalID).Info("session created")
	return sess, nil
}

// Logout destroys the session.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	if err := m.store.Destroy(ctx, sessionID); err != nil {
		return err
	}
	if m.metrics != nil {
		if n, err := m.store.Len(ctx); err == nil {
			m.metrics.SessionsActive.Set(float64(n))
		}
	}
	return nil
}

// EstablishContext resolves a tenant context for the session's
// principal and caches it on the session. Already-cached contexts are
// revalidated against the stores; any drift forces a rebuild rather
// than reuse of stale authorization data.
func (m *Manager) EstablishContext(ctx context.Context, sessionID, institutionID string) (tenant.Context, error) {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return tenant.Context{}, err
	}

	if cached, ok := sess.Contexts[institutionID]; ok {
		if err := m.resolver.Validate(ctx, cached); err == nil {
			if sess.CurrentInstitutionID != institutionID {
				if err := m.store.SetContext(ctx, sessionID, cached); err != nil {
					return tenant.Context{}, err
				}
			}
			return cached, nil
		} else if !errors.Is(err, tenant.ErrSessionCorruption) {
			return tenant.Context{}, err
		}
		// Corrupt cache entry: fall through and rebuild from scratch.
		m.logger.WithFields(map[string]interface{}{
			"session_id":     sessionID,
			"institution_id": institutionID,
		}).Warn("discarding stale tenant context")
	}

	tc, err := m.resolver.Establish(ctx, institutionID, sess.PrincipalID)
	if err != nil {
		return tenant.Context{}, err
	}
	if err := m.store.SetContext(ctx, sessionID, tc); err != nil {
		return tenant.Context{}, err
	}
	return tc, nil
}

// CurrentContext returns the session's current tenant context.
func (m *Manager) CurrentContext(ctx context.Context, sessionID string) (tenant.Context, error) {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return tenant.Context{}, err
	}
	tc, ok := sess.CurrentContext()
	if !ok {
		return tenant.Context{}, ErrContextMissing
	}
	return tc, nil
}

// Switch moves the session to a new institution. The new context is
// established first and then atomically replaces every cached
// context, so no stale context from the previous institution can leak
// into the new one and no caller observes a half-switched session.
func (m *Manager) Switch(ctx context.Context, sessionID, newInstitutionID string) (tenant.Context, error) {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return tenant.Context{}, err
	}

	tc, err := m.resolver.Establish(ctx, newInstitutionID, sess.PrincipalID)
	if err != nil {
		return tenant.Context{}, err
	}

	if err := m.store.SwitchContext(ctx, sessionID, tc); err != nil {
		return tenant.Context{}, err
	}

	if m.metrics != nil {
		m.metrics.ContextSwitchesTotal.Inc()
	}
	m.logger.WithFields(map[string]interface{}{
		"principal_id":   sess.PrincipalID,
		"institution_id": newInstitutionID,
	}).Info("institution context switched")
	return tc, nil
}

// Sweep removes expired sessions. Wired to an hourly cron job in the
// server binary.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	removed, err := m.store.Sweep(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		m.logger.Infof("swept %d expired sessions", removed)
	}
	if m.metrics != nil {
		m.metrics.SessionsExpiredTotal.Add(float64(removed))
		if n, err := m.store.Len(ctx); err == nil {
			m.metrics.SessionsActive.Set(float64(n))
		}
	}
	return removed, nil
}
