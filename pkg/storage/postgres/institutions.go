package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/campuskit/registrar/pkg/tenant"
)

// InstitutionStore reads institutions from PostgreSQL.
type InstitutionStore struct {
	db *sql.DB
}

// NewInstitutionStore creates a Postgres-backed institution store.
func NewInstitutionStore(db *sql.DB) *InstitutionStore {
	return &InstitutionStore{db: db}
}

// GetInstitution implements tenant.InstitutionStore.
func (s *InstitutionStore) GetInstitution(ctx context.Context, id string) (*tenant.Institution, error) {
	var (
		inst     tenant.Institution
		settings []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, settings, created_at, updated_at FROM institutions WHERE id = $1`,
		id,
	).Scan(&inst.ID, &inst.Name, &inst.Status, &settings, &inst.CreatedAt, &inst.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("institution %s: %w", id, tenant.ErrInstitutionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load institution: %w", err)
	}

	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &inst.Settings); err != nil {
			return nil, fmt.Errorf("failed to decode institution settings: %w", err)
		}
	}
	return &inst, nil
}

// CreateInstitution inserts a new institution.
func (s *InstitutionStore) CreateInstitution(ctx context.Context, inst *tenant.Institution) error {
	settings, err := json.Marshal(inst.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode institution settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO institutions (id, name, status, settings) VALUES ($1, $2, $3, $4)`,
		inst.ID, inst.Name, inst.Status, settings,
	)
	if err != nil {
		return fmt.Errorf("failed to create institution: %w", err)
	}
	return nil
}

// SetStatus flips an institution's lifecycle status. Deactivation is
// how a tenant is suspended without deleting its data.
func (s *InstitutionStore) SetStatus(ctx context.Context, id string, status tenant.InstitutionStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE institutions SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update institution status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("institution %s: %w", id, tenant.ErrInstitutionNotFound)
	}
	return nil
}
