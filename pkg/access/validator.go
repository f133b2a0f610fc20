package access

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/campuskit/registrar/pkg/audit"
	"github.com/campuskit/registrar/pkg/observability"
	"github.com/campuskit/registrar/pkg/roles"
	"github.com/campuskit/registrar/pkg/tenant"
)

const (
	decisionCacheSize = 4096
	decisionCacheTTL  = 5 * time.Minute
)

// Validator orchestrates cross-tenant checks, permission evaluation
// and resource-ownership checks, recording every decision on the
// audit trail regardless of outcome.
type Validator struct {
	registry  *roles.Registry
	users     tenant.UserStore
	accessors map[roles.Resource]ResourceAccessor
	sink      audit.Sink
	cache     *lru.LRU[string, roles.Decision]
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewValidator creates an access validator. The accessor table is the
// static dispatch map for resource-ownership checks; it is fixed at
// construction.
func NewValidator(
	registry *roles.Registry,
	users tenant.UserStore,
	accessors map[roles.Resource]ResourceAccessor,
	sink audit.Sink,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Validator {
	return &Validator{
		registry:  registry,
		users:     users,
		accessors: accessors,
		sink:      sink,
		cache:     lru.NewLRU[string, roles.Decision](decisionCacheSize, nil, decisionCacheTTL),
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckPermission is the sole externally callable authorization
// primitive. Controllers route every role check through it; the
// decision is audited and counted whether allowed or denied.
func (v *Validator) CheckPermission(ctx context.Context, tc tenant.Context, resource roles.Resource, action roles.Action, ec roles.EvalContext, meta audit.RequestMeta) roles.Decision {
	decision := v.evaluate(tc.Role(), resource, action, ec)

	v.record(ctx, &audit.Entry{
		EventType:     audit.EventPermissionCheck,
		PrincipalID:   tc.PrincipalID,
		InstitutionID: tc.InstitutionID,
		Action:        string(action),
		Resource:      string(resource),
		Allowed:       decision.Allowed,
		Reason:        decision.Reason,
	}, meta)

	if v.metrics != nil {
		v.metrics.ObservePermissionCheck(string(tc.Role()), string(resource), string(action), decision.Allowed)
		if !decision.Allowed {
			v.metrics.AccessDenialsTotal.WithLabelValues("permission").Inc()
		}
	}
	return decision
}

// evaluate consults the decision cache for condition-free grants and
// falls back to a full evaluation. Conditional grants depend on
// request facts and are never cached.
func (v *Validator) evaluate(role roles.Role, resource roles.Resource, action roles.Action, ec roles.EvalContext) roles.Decision {
	conditional := false
	if def, ok := v.registry.Get(role); ok {
		if grant, ok := def.Grant(resource); ok {
			conditional = len(grant.Conditions) > 0
		}
	}

	if !conditional {
		key := string(role) + "|" + string(resource) + "|" + string(action)
		if cached, ok := v.cache.Get(key); ok {
			cached.CheckedAt = time.Now()
			return cached
		}
		decision := v.registry.Evaluate(role, resource, action, ec)
		v.cache.Add(key, decision)
		return decision
	}

	return v.registry.Evaluate(role, resource, action, ec)
}

// CheckCrossInstitutional reports whether a principal may operate
// within the target institution: allowed iff they hold an active
// profile there. Every call is audited, successful ones included, so
// cross-tenant movement stays traceable.
func (v *Validator) CheckCrossInstitutional(ctx context.Context, principalID, targetInstitutionID string, meta audit.RequestMeta) (bool, error) {
	entry := &audit.Entry{
		EventType:     audit.EventCrossTenant,
		PrincipalID:   principalID,
		InstitutionID: targetInstitutionID,
		Action:        "access",
		Resource:      string(roles.ResourceInstitution),
	}

	principal, err := v.users.GetPrincipal(ctx, principalID)
	if err != nil {
		entry.Allowed = false
		entry.CrossTenant = true
		entry.Reason = "principal lookup failed"
		v.record(ctx, entry, meta)
		v.countCrossTenant(false)
		return false, err
	}

	_, ok := principal.ActiveProfile(targetInstitutionID)
	entry.Allowed = ok
	if ok {
		entry.Reason = "active profile in institution"
	} else {
		entry.CrossTenant = true
		entry.Reason = "no active profile in institution"
	}
	v.record(ctx, entry, meta)
	v.countCrossTenant(ok)

	if !ok {
		return false, fmt.Errorf("principal %s in institution %s: %w", principalID, targetInstitutionID, ErrCrossInstitutionalAccess)
	}
	return true, nil
}

// CheckResourceAccess validates access to one resource under the
// given tenant context. The permission check runs first: a denied
// role never triggers a resource fetch, so denials reveal nothing
// about what exists. When the grant carries ownership conditions the
// resource is fetched (filtered by institution) and its ownership
// facts feed the condition evaluation; absence under that filter is
// reported as not-found, never as forbidden.
func (v *Validator) CheckResourceAccess(ctx context.Context, tc tenant.Context, resource roles.Resource, action roles.Action, resourceID string, meta audit.RequestMeta) (Result, error) {
	entry := &audit.Entry{
		EventType:     audit.EventPermissionCheck,
		PrincipalID:   tc.PrincipalID,
		InstitutionID: tc.InstitutionID,
		Action:        string(action),
		Resource:      string(resource),
		ResourceID:    resourceID,
	}

	role := tc.Role()
	def, ok := v.registry.Get(role)
	if !ok {
		return v.deny(ctx, entry, meta, "unknown role", nil)
	}
	grant, ok := def.Grant(resource)
	if !ok || !grant.HasAction(action) {
		reason := fmt.Sprintf("role %s may not %s %s", role, action, resource)
		return v.deny(ctx, entry, meta, reason, ErrInsufficientPrivileges)
	}

	accessor, ok := v.accessors[resource]
	if !ok {
		return v.deny(ctx, entry, meta, "no accessor for resource type", ErrUnknownResourceType)
	}

	info, err := accessor.Get(ctx, tc.InstitutionID, resourceID)
	if err != nil {
		v.logger.WithError(err).WithFields(map[string]interface{}{
			"resource":    string(resource),
			"resource_id": resourceID,
		}).Error("resource accessor failed")
		return v.deny(ctx, entry, meta, "resource lookup failed", fmt.Errorf("resource lookup failed"))
	}
	if info == nil {
		entry.EventType = audit.EventAccessDenied
		entry.Reason = "resource not found in institution"
		v.record(ctx, entry, meta)
		if v.metrics != nil {
			v.metrics.AccessDenialsTotal.WithLabelValues("not_found").Inc()
		}
		return Result{Allowed: false, NotFound: true, Reason: "resource not found"}, ErrResourceNotFound
	}

	ec := roles.EvalContext{
		UserID:          tc.PrincipalID,
		ResourceOwnerID: info.OwnerID,
		TargetProfileID: info.OwnerID,
		CourseTeacherID: info.TeacherID,
	}
	decision := v.registry.Evaluate(role, resource, action, ec)

	entry.Allowed = decision.Allowed
	entry.Reason = decision.Reason
	if !decision.Allowed {
		entry.EventType = audit.EventAccessDenied
	}
	v.record(ctx, entry, meta)
	if v.metrics != nil {
		v.metrics.ObservePermissionCheck(string(role), string(resource), string(action), decision.Allowed)
		if !decision.Allowed {
			v.metrics.AccessDenialsTotal.WithLabelValues("condition").Inc()
		}
	}

	if !decision.Allowed {
		return Result{Allowed: false, Decision: decision, Reason: decision.Reason}, ErrInsufficientPrivileges
	}
	return Result{Allowed: true, Decision: decision, Reason: decision.Reason}, nil
}

func (v *Validator) deny(ctx context.Context, entry *audit.Entry, meta audit.RequestMeta, reason string, err error) (Result, error) {
	entry.EventType = audit.EventAccessDenied
	entry.Allowed = false
	entry.Reason = reason
	v.record(ctx, entry, meta)
	if v.metrics != nil {
		v.metrics.AccessDenialsTotal.WithLabelValues("permission").Inc()
	}
	if err == nil {
		err = ErrInsufficientPrivileges
	}
	return Result{Allowed: false, Reason: reason}, err
}

func (v *Validator) record(ctx context.Context, entry *audit.Entry, meta audit.RequestMeta) {
	if err := v.sink.Record(ctx, entry.WithMeta(meta)); err != nil {
		// A failed audit write must not fail the request, but it is
		// never silent either.
		v.logger.WithError(err).Error("audit write failed")
	}
}

func (v *Validator) countCrossTenant(allowed bool) {
	if v.metrics == nil {
		return
	}
	if allowed {
		v.metrics.CrossTenantAttemptsTotal.WithLabelValues("true").Inc()
	} else {
		v.metrics.CrossTenantAttemptsTotal.WithLabelValues("false").Inc()
		v.metrics.AccessDenialsTotal.WithLabelValues("cross_tenant").Inc()
	}
}
