package roles

import (
	"fmt"
	"sort"
)

// Registry holds the role definitions for the process. It is built
// once at startup and treated as read-only afterwards; evaluation
// never mutates it.
type Registry struct {
	definitions map[Role]Definition
}

// NewRegistry creates a registry with the built-in role table.
func NewRegistry() *Registry {
	return &Registry{definitions: builtinDefinitions()}
}

// NewRegistryWith creates a registry from explicit definitions,
// typically the built-ins plus per-institution overrides produced
// with Definition.WithGrant.
func NewRegistryWith(defs ...Definition) (*Registry, error) {
	m := make(map[Role]Definition, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("role definition missing name")
		}
		if _, dup := m[d.Name]; dup {
			return nil, fmt.Errorf("duplicate role definition %q", d.Name)
		}
		m[d.Name] = d
	}
	return &Registry{definitions: m}, nil
}

// Get returns the definition for a role name.
func (r *Registry) Get(role Role) (Definition, bool) {
	d, ok := r.definitions[role]
	return d, ok
}

// Level returns the hierarchy level for a role, or 0 for unknown roles.
func (r *Registry) Level(role Role) int {
	if d, ok := r.definitions[role]; ok {
		return d.Level
	}
	return 0
}

// Roles returns the known role names sorted by ascending hierarchy level.
func (r *Registry) Roles() []Role {
	out := make([]Role, 0, len(r.definitions))
	for name := range r.definitions {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.definitions[out[i]].Level < r.definitions[out[j]].Level
	})
	return out
}

// IsValid reports whether the role name is known to the registry.
func (r *Registry) IsValid(role Role) bool {
	_, ok := r.definitions[role]
	return ok
}

func builtinDefinitions() map[Role]Definition {
	return map[Role]Definition{
		RoleStudent: {
			Name:        RoleStudent,
			DisplayName: "Student",
			Description: "Can browse courses and manage their own enrollments and profile",
			Level:       LevelStudent,
			Grants: map[Resource]Grant{
				ResourceCourse: {
					Resource: ResourceCourse,
					Actions:  []Action{ActionRead},
				},
				ResourceEnrollment: {
					Resource:   ResourceEnrollment,
					Actions:    []Action{ActionCreate, ActionRead, ActionDelete},
					Conditions: []Condition{ConditionOwnOnly},
				},
				ResourceUser: {
					Resource:   ResourceUser,
					Actions:    []Action{ActionRead, ActionUpdate},
					Conditions: []Condition{ConditionOwnProfileOnly},
				},
			},
		},
		RoleTeacher: {
			Name:        RoleTeacher,
			DisplayName: "Teacher",
			Description: "Can manage and grade the courses they teach",
			Level:       LevelTeacher,
			Grants: map[Resource]Grant{
				ResourceCourse: {
					Resource:   ResourceCourse,
					Actions:    []Action{ActionRead, ActionUpdate, ActionGrade},
					Conditions: []Condition{ConditionOwnCoursesOnly},
				},
				ResourceEnrollment: {
					Resource:   ResourceEnrollment,
					Actions:    []Action{ActionRead, ActionGrade},
					Conditions: []Condition{ConditionOwnCoursesOnly},
				},
				ResourceUser: {
					Resource:   ResourceUser,
					Actions:    []Action{ActionRead, ActionUpdate},
					Conditions: []Condition{ConditionOwnProfileOnly},
				},
			},
		},
		RoleInstitutionAdmin: {
			Name:        RoleInstitutionAdmin,
			DisplayName: "Institution Administrator",
			Description: "Full control over the institution's courses, enrollments and users",
			Level:       LevelInstitutionAdmin,
			Grants: map[Resource]Grant{
				ResourceCourse: {
					Resource: ResourceCourse,
					Actions:  []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete},
				},
				ResourceEnrollment: {
					Resource: ResourceEnrollment,
					Actions:  []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete},
				},
				ResourceUser: {
					Resource: ResourceUser,
					Actions:  []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionApprove},
				},
				ResourceInstitution: {
					Resource: ResourceInstitution,
					Actions:  []Action{ActionRead, ActionUpdate},
				},
			},
		},
	}
}
