package roles

import (
	"time"
)

// Role represents an institution-scoped role name
type Role string

const (
	RoleStudent          Role = "student"
	RoleTeacher          Role = "teacher"
	RoleInstitutionAdmin Role = "institution_admin"
)

// Hierarchy levels, higher = more privileged
const (
	LevelStudent          = 1
	LevelTeacher          = 2
	LevelInstitutionAdmin = 3
)

// Resource represents a resource type in the system
type Resource string

const (
	ResourceCourse      Resource = "course"
	ResourceEnrollment  Resource = "enrollment"
	ResourceUser        Resource = "user"
	ResourceInstitution Resource = "institution"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionEnroll  Action = "enroll"
	ActionDrop    Action = "drop"
	ActionGrade   Action = "grade"
	ActionApprove Action = "approve"
)

// Condition narrows a grant to resources the principal has a
// relationship with. Conditions are checked against the EvalContext
// supplied by the caller.
type Condition string

const (
	ConditionOwnOnly            Condition = "ownOnly"
	ConditionOwnProfileOnly     Condition = "ownProfileOnly"
	ConditionOwnCoursesOnly     Condition = "ownCoursesOnly"
	ConditionActiveSemesterOnly Condition = "activeSemesterOnly"
)

// Grant maps a resource to the actions a role may perform on it,
// optionally narrowed by conditions.
type Grant struct {
	Resource   Resource    `json:"resource"`
	Actions    []Action    `json:"actions"`
	Conditions []Condition `json:"conditions,omitempty"`
}

// HasAction reports whether the grant includes the given action.
func (g Grant) HasAction(action Action) bool {
	for _, a := range g.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Definition is an immutable role definition. Definitions are built
// once at startup; any override produces a new value via WithGrant
// rather than mutating the shared table.
type Definition struct {
	Name        Role               `json:"name"`
	DisplayName string             `json:"display_name"`
	Description string             `json:"description,omitempty"`
	Level       int                `json:"level"`
	Grants      map[Resource]Grant `json:"grants"`
}

// Grant returns the grant for a resource, if any.
func (d Definition) Grant(resource Resource) (Grant, bool) {
	g, ok := d.Grants[resource]
	return g, ok
}

// WithGrant returns a copy of the definition with the given grant
// replaced or added. The receiver is left untouched so shared
// definitions stay race-free.
func (d Definition) WithGrant(grant Grant) Definition {
	grants := make(map[Resource]Grant, len(d.Grants)+1)
	for r, g := range d.Grants {
		grants[r] = g
	}
	grants[grant.Resource] = grant
	out := d
	out.Grants = grants
	return out
}

// EvalContext carries the request-scoped facts conditions are checked
// against. Zero values mean "unknown" and fail ownership conditions.
type EvalContext struct {
	UserID          string
	ResourceOwnerID string
	TargetProfileID string
	CourseTeacherID string
	Semester        string
	ActiveSemester  string
}

// Decision is the result of a permission evaluation.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason"`
	Role      Role      `json:"role"`
	Resource  Resource  `json:"resource"`
	Action    Action    `json:"action"`
	CheckedAt time.Time `json:"checked_at"`
}
