package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/campuskit/registrar/pkg/tenant"
)

// UserStore reads and writes principals and their per-institution
// profiles. Profiles live in their own table; the JSONB columns carry
// the freeform profile data and the role history.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a Postgres-backed user store.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// GetPrincipal implements tenant.UserStore. The returned principal
// carries every institution profile.
func (s *UserStore) GetPrincipal(ctx context.Context, id string) (*tenant.Principal, error) {
	var (
		p        tenant.Principal
		email    sql.NullString
		fullName sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, full_name, is_active, created_at, updated_at FROM principals WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Username, &email, &fullName, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("principal %s: %w", id, tenant.ErrPrincipalNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load principal: %w", err)
	}

	p.Email = email.String
	p.FullName = fullName.String

	profiles, err := s.loadProfiles(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Profiles = profiles
	return &p, nil
}

func (s *UserStore) loadProfiles(ctx context.Context, principalID string) ([]tenant.InstitutionProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT institution_id, role, status, profile_data, role_history, last_role_change,
		        created_at, approved_at, approved_by
		 FROM institution_profiles WHERE principal_id = $1 ORDER BY institution_id`,
		principalID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	defer rows.Close()

	var profiles []tenant.InstitutionProfile
	for rows.Next() {
		var (
			profile        tenant.InstitutionProfile
			profileData    []byte
			roleHistory    []byte
			lastRoleChange []byte
			approvedAt     sql.NullTime
			approvedBy     sql.NullString
		)
		if err := rows.Scan(
			&profile.InstitutionID, &profile.Role, &profile.Status,
			&profileData, &roleHistory, &lastRoleChange,
			&profile.CreatedAt, &approvedAt, &approvedBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}

		if len(profileData) > 0 {
			if err := json.Unmarshal(profileData, &profile.ProfileData); err != nil {
				return nil, fmt.Errorf("failed to decode profile data: %w", err)
			}
		}
		if len(roleHistory) > 0 {
			if err := json.Unmarshal(roleHistory, &profile.RoleHistory); err != nil {
				return nil, fmt.Errorf("failed to decode role history: %w", err)
			}
		}
		if len(lastRoleChange) > 0 {
			profile.LastRoleChange = &tenant.RoleChange{}
			if err := json.Unmarshal(lastRoleChange, profile.LastRoleChange); err != nil {
				return nil, fmt.Errorf("failed to decode last role change: %w", err)
			}
		}
		if approvedAt.Valid {
			t := approvedAt.Time
			profile.ApprovedAt = &t
		}
		if approvedBy.Valid {
			profile.ApprovedBy = approvedBy.String
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return profiles, nil
}

// SaveProfile implements tenant.UserStore with an upsert keyed on
// (principal, institution).
func (s *UserStore) SaveProfile(ctx context.Context, principalID string, profile *tenant.InstitutionProfile) error {
	profileData, err := json.Marshal(profile.ProfileData)
	if err != nil {
		return fmt.Errorf("failed to encode profile data: %w", err)
	}
	roleHistory, err := json.Marshal(profile.RoleHistory)
	if err != nil {
		return fmt.Errorf("failed to encode role history: %w", err)
	}
	var lastRoleChange interface{}
	if profile.LastRoleChange != nil {
		encoded, err := json.Marshal(profile.LastRoleChange)
		if err != nil {
			return fmt.Errorf("failed to encode last role change: %w", err)
		}
		lastRoleChange = encoded
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO institution_profiles
			(principal_id, institution_id, role, status, profile_data, role_history, last_role_change, approved_at, approved_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (principal_id, institution_id) DO UPDATE SET
			role = EXCLUDED.role,
			status = EXCLUDED.status,
			profile_data = EXCLUDED.profile_data,
			role_history = EXCLUDED.role_history,
			last_role_change = EXCLUDED.last_role_change,
			approved_at = EXCLUDED.approved_at,
			approved_by = EXCLUDED.approved_by`,
		principalID, profile.InstitutionID, profile.Role, profile.Status,
		profileData, roleHistory, lastRoleChange, profile.ApprovedAt, nullable(profile.ApprovedBy),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// DeleteProfile implements tenant.UserStore.
func (s *UserStore) DeleteProfile(ctx context.Context, principalID, institutionID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM institution_profiles WHERE principal_id = $1 AND institution_id = $2`,
		principalID, institutionID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("principal %s in institution %s: %w", principalID, institutionID, tenant.ErrNoInstitutionalAccess)
	}
	return nil
}

// CreatePrincipal inserts a new principal, generating an ID when the
// caller leaves it empty.
func (s *UserStore) CreatePrincipal(ctx context.Context, p *tenant.Principal) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO principals (id, username, email, full_name, is_active) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Username, nullable(p.Email), nullable(p.FullName), p.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create principal: %w", err)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
