package tenant

import (
	"time"

	"github.com/campuskit/registrar/pkg/roles"
)

// InstitutionStatus represents institution lifecycle status
type InstitutionStatus string

const (
	InstitutionStatusActive   InstitutionStatus = "active"
	InstitutionStatusInactive InstitutionStatus = "inactive"
)

// InstitutionSettings holds per-institution academic policy settings.
type InstitutionSettings struct {
	RegistrationTimeoutDays int    `json:"registration_timeout_days"`
	AcademicYear            string `json:"academic_year,omitempty"`
	CurrentSemester         string `json:"current_semester,omitempty"`
}

// Institution is an isolated organizational unit owning its own
// users, courses and enrollments. The core treats it as read-mostly;
// lifecycle mutation happens in the calling layer.
type Institution struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Status    InstitutionStatus   `json:"status"`
	Settings  InstitutionSettings `json:"settings"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// IsActive reports whether the institution accepts requests.
func (i *Institution) IsActive() bool {
	return i.Status == InstitutionStatusActive
}

// ProfileStatus represents an institution profile's lifecycle status
type ProfileStatus string

const (
	ProfileStatusPending  ProfileStatus = "pending"
	ProfileStatusActive   ProfileStatus = "active"
	ProfileStatusInactive ProfileStatus = "inactive"
)

// RoleChange is one append-only role-history entry.
type RoleChange struct {
	PreviousRole roles.Role `json:"previous_role"`
	NewRole      roles.Role `json:"new_role"`
	ChangedBy    string     `json:"changed_by"`
	ChangedAt    time.Time  `json:"changed_at"`
	Reason       string     `json:"reason,omitempty"`
}

// InstitutionProfile is a principal's role/status record scoped to one
// institution. At most one profile exists per (principal, institution)
// pair. Profiles are never deleted, only status-transitioned, with the
// single exception of rejecting a still-pending registration.
type InstitutionProfile struct {
	InstitutionID  string            `json:"institution_id"`
	Role           roles.Role        `json:"role"`
	Status         ProfileStatus     `json:"status"`
	ProfileData    map[string]string `json:"profile_data,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	ApprovedAt     *time.Time        `json:"approved_at,omitempty"`
	ApprovedBy     string            `json:"approved_by,omitempty"`
	RoleHistory    []RoleChange      `json:"role_history,omitempty"`
	LastRoleChange *RoleChange       `json:"last_role_change,omitempty"`
}

// IsActive reports whether the profile grants access right now.
func (p *InstitutionProfile) IsActive() bool {
	return p.Status == ProfileStatusActive
}

// Principal is an authenticated user with one profile per institution
// they have ever registered with.
type Principal struct {
	ID        string               `json:"id"`
	Username  string               `json:"username"`
	Email     string               `json:"email,omitempty"`
	FullName  string               `json:"full_name,omitempty"`
	IsActive  bool                 `json:"is_active"`
	Profiles  []InstitutionProfile `json:"profiles,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Profile returns the principal's profile for an institution, if any.
func (u *Principal) Profile(institutionID string) (*InstitutionProfile, bool) {
	for i := range u.Profiles {
		if u.Profiles[i].InstitutionID == institutionID {
			return &u.Profiles[i], true
		}
	}
	return nil, false
}

// ActiveProfile returns the principal's active profile for an
// institution, if any.
func (u *Principal) ActiveProfile(institutionID string) (*InstitutionProfile, bool) {
	p, ok := u.Profile(institutionID)
	if !ok || !p.IsActive() {
		return nil, false
	}
	return p, true
}

// Context is the resolved (institution, profile) pair attached to a
// request. It is a value-semantics snapshot: callers receive copies
// and nothing downstream can mutate the cached original. Invalid
// contexts are discarded and rebuilt, never patched.
type Context struct {
	InstitutionID string             `json:"institution_id"`
	PrincipalID   string             `json:"principal_id"`
	Institution   Institution        `json:"institution"`
	Profile       InstitutionProfile `json:"profile"`
	EstablishedAt time.Time          `json:"established_at"`
}

// Role returns the principal's role within the context's institution.
func (c Context) Role() roles.Role {
	return c.Profile.Role
}
