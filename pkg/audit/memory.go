package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/registrar/pkg/observability"
)

// DefaultCapacity bounds the in-memory trail.
const DefaultCapacity = 10000

// defaultQueryLimit applies when a read path gets limit <= 0.
const defaultQueryLimit = 100

// MemorySink is a bounded, process-local audit trail. When full it
// evicts the oldest entries; the trail is best-effort and lost on
// restart, the durable DBSink exists for deployments that need more.
type MemorySink struct {
	mu       sync.RWMutex
	entries  []Entry
	start    int
	count    int
	capacity int
	metrics  *observability.Metrics
}

// NewMemorySink creates a bounded in-memory sink. capacity <= 0 uses
// DefaultCapacity.
func NewMemorySink(capacity int, metrics *observability.Metrics) *MemorySink {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemorySink{
		entries:  make([]Entry, capacity),
		capacity: capacity,
		metrics:  metrics,
	}
}

// Record implements Sink.
func (s *MemorySink) Record(_ context.Context, entry *Entry) error {
	e := *entry
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	s.mu.Lock()
	evicted := false
	if s.count == s.capacity {
		// Ring is full: overwrite the oldest slot.
		s.start = (s.start + 1) % s.capacity
		s.count--
		evicted = true
	}
	s.entries[(s.start+s.count)%s.capacity] = e
	s.count++
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.AuditEntriesTotal.WithLabelValues(string(e.EventType)).Inc()
		if evicted {
			s.metrics.AuditEvictionsTotal.Inc()
		}
	}
	return nil
}

// Len returns the number of retained entries.
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// filter walks the ring newest-first collecting entries that match.
func (s *MemorySink) filter(limit int, match func(*Entry) bool) []Entry {
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, limit)
	for i := s.count - 1; i >= 0 && len(out) < limit; i-- {
		e := s.entries[(s.start+i)%s.capacity]
		if match(&e) {
			out = append(out, e)
		}
	}
	return out
}

func matchInstitution(institutionID string) func(*Entry) bool {
	return func(e *Entry) bool {
		return institutionID == "" || e.InstitutionID == institutionID
	}
}

// Recent implements Trail.
func (s *MemorySink) Recent(_ context.Context, institutionID string, limit int) ([]Entry, error) {
	return s.filter(limit, matchInstitution(institutionID)), nil
}

// Alerts implements Trail: denied decisions only.
func (s *MemorySink) Alerts(_ context.Context, institutionID string, limit int) ([]Entry, error) {
	inst := matchInstitution(institutionID)
	return s.filter(limit, func(e *Entry) bool {
		return !e.Allowed && inst(e)
	}), nil
}

// CrossTenant implements Trail.
func (s *MemorySink) CrossTenant(_ context.Context, institutionID string, limit int) ([]Entry, error) {
	inst := matchInstitution(institutionID)
	return s.filter(limit, func(e *Entry) bool {
		return e.CrossTenant && inst(e)
	}), nil
}

// Summarize implements Trail.
func (s *MemorySink) Summarize(_ context.Context, institutionID string, window time.Duration) (*Summary, error) {
	now := time.Now()
	cutoff := now.Add(-window)

	summary := &Summary{
		InstitutionID:     institutionID,
		WindowStart:       cutoff,
		WindowEnd:         now,
		EntriesByAction:   make(map[string]int),
		EntriesByResource: make(map[string]int),
		EntriesByEvent:    make(map[EventType]int),
	}
	principals := make(map[string]struct{})

	s.mu.RLock()
	for i := 0; i < s.count; i++ {
		e := s.entries[(s.start+i)%s.capacity]
		if e.Timestamp.Before(cutoff) {
			continue
		}
		if institutionID != "" && e.InstitutionID != institutionID {
			continue
		}
		summary.TotalEntries++
		if !e.Allowed {
			summary.DeniedEntries++
		}
		if e.CrossTenant {
			summary.CrossTenantCount++
		}
		if e.Action != "" {
			summary.EntriesByAction[e.Action]++
		}
		if e.Resource != "" {
			summary.EntriesByResource[e.Resource]++
		}
		summary.EntriesByEvent[e.EventType]++
		if e.PrincipalID != "" {
			principals[e.PrincipalID] = struct{}{}
		}
	}
	s.mu.RUnlock()

	summary.UniquePrincipals = len(principals)
	if summary.TotalEntries > 0 {
		summary.DenialRate = float64(summary.DeniedEntries) / float64(summary.TotalEntries)
	}
	return summary, nil
}
