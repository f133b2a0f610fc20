package tenant

import "context"

// InstitutionStore is the external institution collaborator. The core
// only reads from it.
type InstitutionStore interface {
	// GetInstitution retrieves an institution by ID. A missing
	// institution returns ErrInstitutionNotFound.
	GetInstitution(ctx context.Context, id string) (*Institution, error)
}

// UserStore is the external user/profile collaborator. The role
// assignment service is the only component that writes through it.
type UserStore interface {
	// GetPrincipal retrieves a principal with all institution
	// profiles. A missing principal returns ErrPrincipalNotFound.
	GetPrincipal(ctx context.Context, id string) (*Principal, error)

	// SaveProfile persists a principal's profile for one institution,
	// including its role history.
	SaveProfile(ctx context.Context, principalID string, profile *InstitutionProfile) error

	// DeleteProfile removes a profile outright. Only valid for
	// still-pending registrations being rejected.
	DeleteProfile(ctx context.Context, principalID, institutionID string) error
}
