package access

import (
	"context"
	"errors"

	"github.com/campuskit/registrar/pkg/roles"
)

var (
	// ErrCrossInstitutionalAccess indicates a principal touched an
	// institution where they hold no active profile.
	ErrCrossInstitutionalAccess = errors.New("cross-institutional access denied")

	// ErrInsufficientPrivileges indicates the role's permission table
	// denied the action.
	ErrInsufficientPrivileges = errors.New("insufficient privileges")

	// ErrResourceNotFound is reported both when a resource does not
	// exist and when it exists in another institution, so a denial
	// never confirms existence across tenant boundaries.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrUnknownResourceType indicates no accessor is registered for
	// the requested resource type.
	ErrUnknownResourceType = errors.New("unknown resource type")
)

// ResourceInfo carries the ownership facts condition evaluation needs.
type ResourceInfo struct {
	ID            string
	InstitutionID string
	OwnerID       string
	TeacherID     string
}

// ResourceAccessor fetches one resource type scoped to an
// institution. Implementations must filter by institution id at the
// store level; returning (nil, nil) means "not found under that
// filter", which deliberately covers both absence and other-tenant
// existence.
type ResourceAccessor interface {
	Get(ctx context.Context, institutionID, resourceID string) (*ResourceInfo, error)
}

// AccessorFunc adapts a function to the ResourceAccessor interface.
type AccessorFunc func(ctx context.Context, institutionID, resourceID string) (*ResourceInfo, error)

// Get implements ResourceAccessor.
func (f AccessorFunc) Get(ctx context.Context, institutionID, resourceID string) (*ResourceInfo, error) {
	return f(ctx, institutionID, resourceID)
}

// Result is the outcome of an access check.
type Result struct {
	Allowed  bool           `json:"allowed"`
	Reason   string         `json:"reason"`
	Decision roles.Decision `json:"decision,omitempty"`
	NotFound bool           `json:"not_found,omitempty"`
}
