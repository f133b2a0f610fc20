package tenant

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory InstitutionStore + UserStore. It backs
// local development mode and tests; production deployments use the
// PostgreSQL stores in pkg/storage/postgres.
type MemoryStore struct {
	mu           sync.RWMutex
	institutions map[string]Institution
	principals   map[string]Principal
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		institutions: make(map[string]Institution),
		principals:   make(map[string]Principal),
	}
}

// PutInstitution inserts or replaces an institution.
func (s *MemoryStore) PutInstitution(inst Institution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.institutions[inst.ID] = inst
}

// PutPrincipal inserts or replaces a principal.
func (s *MemoryStore) PutPrincipal(p Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principals[p.ID] = clonePrincipal(p)
}

// GetInstitution implements InstitutionStore.
func (s *MemoryStore) GetInstitution(_ context.Context, id string) (*Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.institutions[id]
	if !ok {
		return nil, fmt.Errorf("institution %s: %w", id, ErrInstitutionNotFound)
	}
	out := inst
	return &out, nil
}

// GetPrincipal implements UserStore.
func (s *MemoryStore) GetPrincipal(_ context.Context, id string) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[id]
	if !ok {
		return nil, fmt.Errorf("principal %s: %w", id, ErrPrincipalNotFound)
	}
	out := clonePrincipal(p)
	return &out, nil
}

// SaveProfile implements UserStore.
func (s *MemoryStore) SaveProfile(_ context.Context, principalID string, profile *InstitutionProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[principalID]
	if !ok {
		return fmt.Errorf("principal %s: %w", principalID, ErrPrincipalNotFound)
	}
	for i := range p.Profiles {
		if p.Profiles[i].InstitutionID == profile.InstitutionID {
			p.Profiles[i] = *profile
			s.principals[principalID] = p
			return nil
		}
	}
	p.Profiles = append(p.Profiles, *profile)
	s.principals[principalID] = p
	return nil
}

// DeleteProfile implements UserStore.
func (s *MemoryStore) DeleteProfile(_ context.Context, principalID, institutionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[principalID]
	if !ok {
		return fmt.Errorf("principal %s: %w", principalID, ErrPrincipalNotFound)
	}
	for i := range p.Profiles {
		if p.Profiles[i].InstitutionID == institutionID {
			p.Profiles = append(p.Profiles[:i], p.Profiles[i+1:]...)
			s.principals[principalID] = p
			return nil
		}
	}
	return fmt.Errorf("principal %s has no profile for institution %s", principalID, institutionID)
}

func clonePrincipal(p Principal) Principal {
	out := p
	out.Profiles = make([]InstitutionProfile, len(p.Profiles))
	copy(out.Profiles, p.Profiles)
	for i := range out.Profiles {
		if p.Profiles[i].RoleHistory != nil {
			out.Profiles[i].RoleHistory = append([]RoleChange(nil), p.Profiles[i].RoleHistory...)
		}
	}
	return out
}
