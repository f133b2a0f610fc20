package audit

import (
	"time"
)

// EventType categorizes an audit entry
type EventType string

const (
	// Authorization events
	EventPermissionCheck EventType = "authz.permission_check"
	EventAccessDenied    EventType = "authz.access_denied"
	EventRoleChange      EventType = "authz.role_change"
	EventRoleRemoval     EventType = "authz.role_removal"

	// Tenancy events
	EventContextEstablish EventType = "tenant.context_establish"
	EventContextSwitch    EventType = "tenant.context_switch"
	EventCrossTenant      EventType = "tenant.cross_institution"
	EventProfileRejected  EventType = "tenant.profile_rejected"

	// Enrollment events
	EventEnroll      EventType = "enrollment.enroll"
	EventDrop        EventType = "enrollment.drop"
	EventAdminEnroll EventType = "enrollment.admin_enroll"
	EventAdminRemove EventType = "enrollment.admin_remove"

	// Session events
	EventSessionCreate  EventType = "session.create"
	EventSessionDestroy EventType = "session.destroy"
)

// RequestMeta carries transport-level facts about the request that
// triggered an entry.
type RequestMeta struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Entry is a single audit record. Entries are append-only; the
// in-memory trail is bounded and explicitly lossy, a best-effort
// security trail rather than a system of record.
type Entry struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	EventType     EventType         `json:"event_type"`
	PrincipalID   string            `json:"principal_id,omitempty"`
	Username      string            `json:"username,omitempty"`
	InstitutionID string            `json:"institution_id,omitempty"`
	Action        string            `json:"action,omitempty"`
	Resource      string            `json:"resource,omitempty"`
	ResourceID    string            `json:"resource_id,omitempty"`
	Allowed       bool              `json:"allowed"`
	Reason        string            `json:"reason,omitempty"`
	CrossTenant   bool              `json:"cross_tenant,omitempty"`
	IPAddress     string            `json:"ip_address,omitempty"`
	UserAgent     string            `json:"user_agent,omitempty"`
	RequestID     string            `json:"request_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// WithMeta copies request metadata onto the entry.
func (e *Entry) WithMeta(meta RequestMeta) *Entry {
	e.IPAddress = meta.IPAddress
	e.UserAgent = meta.UserAgent
	e.RequestID = meta.RequestID
	return e
}

// Summary aggregates the trail over a trailing time window.
type Summary struct {
	InstitutionID     string            `json:"institution_id,omitempty"`
	WindowStart       time.Time         `json:"window_start"`
	WindowEnd         time.Time         `json:"window_end"`
	TotalEntries      int               `json:"total_entries"`
	DeniedEntries     int               `json:"denied_entries"`
	DenialRate        float64           `json:"denial_rate"`
	CrossTenantCount  int               `json:"cross_tenant_count"`
	UniquePrincipals  int               `json:"unique_principals"`
	EntriesByAction   map[string]int    `json:"entries_by_action,omitempty"`
	EntriesByResource map[string]int    `json:"entries_by_resource,omitempty"`
	EntriesByEvent    map[EventType]int `json:"entries_by_event,omitempty"`
}
