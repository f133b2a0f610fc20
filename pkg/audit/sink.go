package audit

import (
	"context"
	"time"
)

// Sink receives audit entries. Implementations must be safe for
// concurrent appends; ordering across principals is only guaranteed
// by timestamp.
type Sink interface {
	// Record appends one entry. Record must never drop an entry
	// silently on a write conflict, though bounded sinks may evict
	// old entries to make room.
	Record(ctx context.Context, entry *Entry) error
}

// Trail extends Sink with the read paths exposed by the audit API.
type Trail interface {
	Sink

	// Recent returns the most recent entries, newest first,
	// optionally filtered by institution. limit <= 0 uses a default.
	Recent(ctx context.Context, institutionID string, limit int) ([]Entry, error)

	// Alerts returns the most recent denied entries, newest first.
	Alerts(ctx context.Context, institutionID string, limit int) ([]Entry, error)

	// CrossTenant returns the most recent cross-institutional
	// entries, newest first.
	CrossTenant(ctx context.Context, institutionID string, limit int) ([]Entry, error)

	// Summarize aggregates the trail for one institution over a
	// trailing window.
	Summarize(ctx context.Context, institutionID string, window time.Duration) (*Summary, error)
}
