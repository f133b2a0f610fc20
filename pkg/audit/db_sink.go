package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DBSink persists audit entries to PostgreSQL for deployments that
// need a durable trail alongside the bounded in-memory one.
type DBSink struct {
	db *sql.DB
}

// NewDBSink creates a database-backed audit sink and ensures the
// audit_entries table exists.
func NewDBSink(db *sql.DB) (*DBSink, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	sink := &DBSink{db: db}
	if err := sink.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_entries table: %w", err)
	}
	return sink, nil
}

func (s *DBSink) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_entries (
		id UUID PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		principal_id VARCHAR(255),
		username VARCHAR(255),
		institution_id VARCHAR(255),
		action VARCHAR(50),
		resource VARCHAR(50),
		resource_id VARCHAR(255),
		allowed BOOLEAN NOT NULL,
		reason TEXT,
		cross_tenant BOOLEAN NOT NULL DEFAULT FALSE,
		ip_address VARCHAR(45),
		user_agent TEXT,
		request_id VARCHAR(100),
		metadata JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_entries_timestamp ON audit_entries(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_entries_institution ON audit_entries(institution_id);
	CREATE INDEX IF NOT EXISTS idx_audit_entries_principal ON audit_entries(principal_id);
	CREATE INDEX IF NOT EXISTS idx_audit_entries_denied ON audit_entries(allowed) WHERE NOT allowed;
	`
	_, err := s.db.Exec(query)
	return err
}

// Record implements Sink.
func (s *DBSink) Record(ctx context.Context, entry *Entry) error {
	var metadata []byte
	if entry.Metadata != nil {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_entries (
			id, timestamp, event_type, principal_id, username, institution_id,
			action, resource, resource_id, allowed, reason, cross_tenant,
			ip_address, user_agent, request_id, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Timestamp,
		string(entry.EventType),
		nullable(entry.PrincipalID),
		nullable(entry.Username),
		nullable(entry.InstitutionID),
		nullable(entry.Action),
		nullable(entry.Resource),
		nullable(entry.ResourceID),
		entry.Allowed,
		nullable(entry.Reason),
		entry.CrossTenant,
		nullable(entry.IPAddress),
		nullable(entry.UserAgent),
		nullable(entry.RequestID),
		metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Cleanup removes entries older than the cutoff and returns how many
// rows were deleted. Driven by a daily cron job.
func (s *DBSink) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM audit_entries WHERE timestamp < $1", olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up audit entries: %w", err)
	}
	return result.RowsAffected()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
