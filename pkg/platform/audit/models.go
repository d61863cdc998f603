// Package audit defines the audit event model and publishers. Events carry
// only coarse location data (area codes); raw coordinates never enter the
// audit stream.
package audit

import "time"

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategorySecurity covers events relevant to abuse monitoring:
	// quota exhaustion, challenge escalations, override use.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for operational visibility:
	// admission decisions, store degradation, exports.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	AnonID    string        `json:"anon_id,omitempty"`
	Tier      string        `json:"tier,omitempty"`
	Verdict   string        `json:"verdict,omitempty"`
	AreaCode  string        `json:"area_code,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Detail    string        `json:"detail,omitempty"`
}

// Action names for the admission pipeline.
const (
	ActionAdmissionDecision = "admission_decision"
	ActionOverrideUsed      = "trusted_override_used"
	ActionQuotaExhausted    = "quota_exhausted"
	ActionQuotaDegraded     = "quota_store_degraded"
	ActionQuotaRecovered    = "quota_store_recovered"
	ActionKMZExported       = "kmz_exported"
)
