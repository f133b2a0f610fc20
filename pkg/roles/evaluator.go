package roles

import (
	"fmt"
	"time"
)

// Evaluate decides whether a role may perform an action on a resource.
// It is a pure function over the registry: no storage access, no side
// effects. Checks run in order and stop at the first denial so callers
// get a specific reason.
func (r *Registry) Evaluate(role Role, resource Resource, action Action, ec EvalContext) Decision {
	decision := Decision{
		Role:      role,
		Resource:  resource,
		Action:    action,
		CheckedAt: time.Now(),
	}

	def, ok := r.Get(role)
	if !ok {
		decision.Reason = "unknown role"
		return decision
	}

	grant, ok := def.Grant(resource)
	if !ok {
		decision.Reason = fmt.Sprintf("role %s has no permissions on %s", role, resource)
		return decision
	}

	if !grant.HasAction(action) {
		decision.Reason = fmt.Sprintf("role %s may not %s %s", role, action, resource)
		return decision
	}

	for _, cond := range grant.Conditions {
		if reason, ok := checkCondition(cond, ec); !ok {
			decision.Reason = reason
			return decision
		}
	}

	decision.Allowed = true
	decision.Reason = fmt.Sprintf("granted by role %s", role)
	return decision
}

// checkCondition evaluates a single grant condition against the
// request context. An empty or mismatched context fails closed.
func checkCondition(cond Condition, ec EvalContext) (string, bool) {
	switch cond {
	case ConditionOwnOnly:
		if ec.UserID == "" || ec.UserID != ec.ResourceOwnerID {
			return "resource is not owned by the requesting user", false
		}
	case ConditionOwnProfileOnly:
		if ec.UserID == "" || ec.UserID != ec.TargetProfileID {
			return "profile belongs to a different user", false
		}
	case ConditionOwnCoursesOnly:
		if ec.UserID == "" || ec.UserID != ec.CourseTeacherID {
			return "course is taught by a different teacher", false
		}
	case ConditionActiveSemesterOnly:
		if ec.Semester == "" || ec.Semester != ec.ActiveSemester {
			return "action is limited to the active semester", false
		}
	default:
		return fmt.Sprintf("unrecognized condition %q", cond), false
	}
	return "", true
}

// CanPromote reports whether an actor may grant the target role.
// Only institution admins hold promotion authority, and they may only
// grant roles strictly below their own level. A teacher outranks a
// student but still cannot promote anyone.
func (r *Registry) CanPromote(actor, target Role) bool {
	if actor != RoleInstitutionAdmin {
		return false
	}
	actorDef, ok := r.Get(actor)
	if !ok {
		return false
	}
	targetDef, ok := r.Get(target)
	if !ok {
		return false
	}
	return targetDef.Level < actorDef.Level
}
