package tenant

import "errors"

var (
	// ErrInstitutionNotFound indicates the requested institution does not exist.
	ErrInstitutionNotFound = errors.New("institution not found")

	// ErrInstitutionInactive indicates the institution exists but is not active.
	ErrInstitutionInactive = errors.New("institution is not active")

	// ErrPrincipalNotFound indicates the acting principal does not exist.
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrNoInstitutionalAccess indicates the principal has no active
	// profile for the requested institution.
	ErrNoInstitutionalAccess = errors.New("no active profile for institution")

	// ErrSessionCorruption indicates a cached context disagrees with
	// the principal's current stored profile. The only safe response
	// is to discard the context and re-establish it.
	ErrSessionCorruption = errors.New("tenant context out of sync with stored profile")
)
