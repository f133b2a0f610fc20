package tenant

import (
	"context"
	"fmt"
	"time"

	"github.com/campuskit/registrar/pkg/observability"
)

// Resolver establishes tenant contexts from the backing stores.
type Resolver struct {
	institutions InstitutionStore
	users        UserStore
	logger       *observability.Logger
}

// NewResolver creates a new tenant context resolver.
func NewResolver(institutions InstitutionStore, users UserStore, logger *observability.Logger) *Resolver {
	return &Resolver{
		institutions: institutions,
		users:        users,
		logger:       logger,
	}
}

// Establish validates institution state and principal membership and
// produces a fresh immutable context. Contexts are never partially
// updated; a failed establishment returns nothing reusable.
func (r *Resolver) Establish(ctx context.Context, institutionID, principalID string) (Context, error) {
	institution, err := r.institutions.GetInstitution(ctx, institutionID)
	if err != nil {
		return Context{}, err
	}
	if !institution.IsActive() {
		return Context{}, fmt.Errorf("institution %s: %w", institutionID, ErrInstitutionInactive)
	}

	principal, err := r.users.GetPrincipal(ctx, principalID)
	if err != nil {
		return Context{}, err
	}

	profile, ok := principal.ActiveProfile(institutionID)
	if !ok {
		r.logger.WithFields(map[string]interface{}{
			"principal_id":   principalID,
			"institution_id": institutionID,
		}).Warn("context establishment refused: no active profile")
		return Context{}, fmt.Errorf("principal %s in institution %s: %w", principalID, institutionID, ErrNoInstitutionalAccess)
	}

	return Context{
		InstitutionID: institutionID,
		PrincipalID:   principalID,
		Institution:   *institution,
		Profile:       *profile,
		EstablishedAt: time.Now(),
	}, nil
}

// Validate re-checks a previously established context against current
// store state. Role or status drift means the cached context can no
// longer be trusted for authorization and must be rebuilt.
func (r *Resolver) Validate(ctx context.Context, tc Context) error {
	principal, err := r.users.GetPrincipal(ctx, tc.PrincipalID)
	if err != nil {
		return err
	}
	profile, ok := principal.ActiveProfile(tc.InstitutionID)
	if !ok {
		return fmt.Errorf("profile no longer active: %w", ErrSessionCorruption)
	}
	if profile.Role != tc.Profile.Role {
		return fmt.Errorf("role changed from %s to %s: %w", tc.Profile.Role, profile.Role, ErrSessionCorruption)
	}
	return nil
}
