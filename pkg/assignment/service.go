package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campuskit/registrar/pkg/audit"
	"github.com/campuskit/registrar/pkg/observability"
	"github.com/campuskit/registrar/pkg/roles"
	"github.com/campuskit/registrar/pkg/tenant"
)

var (
	// ErrNotAuthorized rejects actors below institution admin.
	ErrNotAuthorized = errors.New("not authorized to change roles")

	// ErrTargetAboveActor rejects changes to a principal whose role is
	// not below the actor's in the hierarchy.
	ErrTargetAboveActor = errors.New("target role is not below actor role")

	// ErrSameRole rejects no-op assignments.
	ErrSameRole = errors.New("principal already has this role")

	// ErrInvalidRole rejects roles the registry does not know.
	ErrInvalidRole = errors.New("invalid role")

	// ErrProfileNotPending rejects rejection of a profile that has
	// already been approved.
	ErrProfileNotPending = errors.New("profile is not pending")
)

// Service performs role changes within a single institution. All
// mutations go through the user store and land on the audit trail
// with the previous role preserved in the profile's history.
type Service struct {
	registry *roles.Registry
	users    tenant.UserStore
	sink     audit.Sink
	logger   *observability.Logger
	now      func() time.Time
}

// NewService creates a role assignment service.
func NewService(registry *roles.Registry, users tenant.UserStore, sink audit.Sink, logger *observability.Logger) *Service {
	return &Service{
		registry: registry,
		users:    users,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
	}
}

// Assign changes the target principal's role within the actor's
// institution. The actor must hold institution admin there, both the
// target's current role and the requested role must sit below the
// actor's, and the new role must differ from the current one.
func (s *Service) Assign(ctx context.Context, actor tenant.Context, targetPrincipalID string, newRole roles.Role, reason string, meta audit.RequestMeta) (*tenant.InstitutionProfile, error) {
	if !s.registry.IsValid(newRole) {
		return nil, fmt.Errorf("role %q: %w", newRole, ErrInvalidRole)
	}

	profile, err := s.mutableProfile(ctx, actor, targetPrincipalID)
	if err != nil {
		return nil, err
	}

	if profile.Role == newRole {
		s.audit(ctx, audit.EventRoleChange, actor, targetPrincipalID, string(newRole), false, ErrSameRole.Error(), meta)
		return nil, fmt.Errorf("principal %s: %w", targetPrincipalID, ErrSameRole)
	}
	// The hierarchy gate applies to the role being granted as much as
	// to the one being replaced. An admin can never mint another
	// admin this way.
	if !s.registry.CanPromote(actor.Role(), newRole) {
		s.audit(ctx, audit.EventRoleChange, actor, targetPrincipalID, string(newRole), false, ErrTargetAboveActor.Error(), meta)
		return nil, fmt.Errorf("actor %s granting %s: %w", actor.Role(), newRole, ErrTargetAboveActor)
	}
	if !s.registry.CanPromote(actor.Role(), profile.Role) {
		s.audit(ctx, audit.EventRoleChange, actor, targetPrincipalID, string(newRole), false, ErrTargetAboveActor.Error(), meta)
		return nil, fmt.Errorf("actor %s over %s: %w", actor.Role(), profile.Role, ErrTargetAboveActor)
	}

	updated, err := s.applyRoleChange(ctx, actor, targetPrincipalID, profile, newRole, reason)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, audit.EventRoleChange, actor, targetPrincipalID, string(newRole), true,
		fmt.Sprintf("role changed from %s to %s", updated.LastRoleChange.PreviousRole, newRole), meta)
	return updated, nil
}

// RemoveAdminPrivileges demotes an institution admin to student or
// teacher. Unlike Assign it permits acting on a peer admin, which is
// how an institution rotates administrators without a super-admin.
func (s *Service) RemoveAdminPrivileges(ctx context.Context, actor tenant.Context, targetPrincipalID string, newRole roles.Role, reason string, meta audit.RequestMeta) (*tenant.InstitutionProfile, error) {
	if newRole != roles.RoleStudent && newRole != roles.RoleTeacher {
		return nil, fmt.Errorf("demotion target %q: %w", newRole, ErrInvalidRole)
	}

	profile, err := s.mutableProfile(ctx, actor, targetPrincipalID)
	if err != nil {
		return nil, err
	}
	if profile.Role != roles.RoleInstitutionAdmin {
		return nil, fmt.Errorf("principal %s is %s, not an admin: %w", targetPrincipalID, profile.Role, ErrInvalidRole)
	}

	updated, err := s.applyRoleChange(ctx, actor, targetPrincipalID, profile, newRole, reason)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, audit.EventRoleRemoval, actor, targetPrincipalID, string(newRole), true,
		fmt.Sprintf("admin privileges removed, now %s", newRole), meta)
	return updated, nil
}

// RejectPendingProfile deletes a registration that was never
// approved. Approved profiles cannot be rejected, only demoted.
func (s *Service) RejectPendingProfile(ctx context.Context, actor tenant.Context, targetPrincipalID, reason string, meta audit.RequestMeta) error {
	if actor.Role() != roles.RoleInstitutionAdmin {
		return fmt.Errorf("actor role %s: %w", actor.Role(), ErrNotAuthorized)
	}

	target, err := s.users.GetPrincipal(ctx, targetPrincipalID)
	if err != nil {
		return fmt.Errorf("failed to load principal: %w", err)
	}
	profile, ok := target.Profile(actor.InstitutionID)
	if !ok {
		return fmt.Errorf("principal %s in institution %s: %w", targetPrincipalID, actor.InstitutionID, tenant.ErrNoInstitutionalAccess)
	}
	if profile.Status != tenant.ProfileStatusPending {
		return fmt.Errorf("principal %s status %s: %w", targetPrincipalID, profile.Status, ErrProfileNotPending)
	}

	if err := s.users.DeleteProfile(ctx, targetPrincipalID, actor.InstitutionID); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	s.audit(ctx, audit.EventProfileRejected, actor, targetPrincipalID, string(profile.Role), true, reason, meta)
	return nil
}

// mutableProfile loads the target's profile in the actor's
// institution and verifies the actor may change roles at all.
func (s *Service) mutableProfile(ctx context.Context, actor tenant.Context, targetPrincipalID string) (*tenant.InstitutionProfile, error) {
	if actor.Role() != roles.RoleInstitutionAdmin {
		return nil, fmt.Errorf("actor role %s: %w", actor.Role(), ErrNotAuthorized)
	}

	target, err := s.users.GetPrincipal(ctx, targetPrincipalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load principal: %w", err)
	}
	profile, ok := target.ActiveProfile(actor.InstitutionID)
	if !ok {
		return nil, fmt.Errorf("principal %s in institution %s: %w", targetPrincipalID, actor.InstitutionID, tenant.ErrNoInstitutionalAccess)
	}
	return profile, nil
}

func (s *Service) applyRoleChange(ctx context.Context, actor tenant.Context, targetPrincipalID string, profile *tenant.InstitutionProfile, newRole roles.Role, reason string) (*tenant.InstitutionProfile, error) {
	change := tenant.RoleChange{
		PreviousRole: profile.Role,
		NewRole:      newRole,
		ChangedBy:    actor.PrincipalID,
		ChangedAt:    s.now(),
		Reason:       reason,
	}

	updated := *profile
	updated.Role = newRole
	updated.RoleHistory = append(append([]tenant.RoleChange(nil), profile.RoleHistory...), change)
	updated.LastRoleChange = &change

	if err := s.users.SaveProfile(ctx, targetPrincipalID, &updated); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return &updated, nil
}

func (s *Service) audit(ctx context.Context, event audit.EventType, actor tenant.Context, targetID, role string, allowed bool, reason string, meta audit.RequestMeta) {
	entry := &audit.Entry{
		EventType:     event,
		PrincipalID:   actor.PrincipalID,
		InstitutionID: actor.InstitutionID,
		Action:        string(event),
		Resource:      string(roles.ResourceUser),
		ResourceID:    targetID,
		Allowed:       allowed,
		Reason:        reason,
		Metadata:      map[string]string{"role": role},
	}
	if err := s.sink.Record(ctx, entry.WithMeta(meta)); err != nil {
		s.logger.WithError(err).Error("audit write failed")
	}
}
