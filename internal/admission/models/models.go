// Package models holds the admission domain types: tiers, verdicts, the
// per-request context, and the decision value returned to callers.
package models

import (
	pkgerrors "dilldrill/pkg/errors"
)

// Tier is a named access level determining quota limit, result cap, and
// friction requirement.
type Tier string

const (
	TierFree Tier = "FREE"
	TierPaid Tier = "PAID"
)

// IsValid checks if the tier is one of the supported enum values.
func (t Tier) IsValid() bool {
	switch t {
	case TierFree, TierPaid:
		return true
	}
	return false
}

// String returns the string representation.
func (t Tier) String() string { return string(t) }

// ParseTier creates a Tier from a string, validating it.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeInvalidInput, "invalid tier: must be FREE or PAID")
	}
	return t, nil
}

// Verdict is the admission outcome for a single call. Every call terminates
// in exactly one of the three; nothing is persisted beyond the quota record.
type Verdict string

const (
	VerdictAllow             Verdict = "ALLOW"
	VerdictBlock             Verdict = "BLOCK"
	VerdictChallengeRequired Verdict = "CHALLENGE_REQUIRED"
)

// FrictionType names the human-verification mechanism a challenge demands.
type FrictionType string

const (
	FrictionTurnstile FrictionType = "TURNSTILE"
)

// RequestContext is everything the policy engine needs about one request.
// Identity fields come from the session collaborator; FrictionPassed is the
// verified-token signal from the verification collaborator. The engine
// trusts both and never re-validates them.
type RequestContext struct {
	AnonID          string
	Tier            Tier
	TrustedOverride bool
	FrictionPassed  bool
	// AreaCode is the coarse spatial bucket of the query point, carried for
	// aggregation only. Never a raw coordinate.
	AreaCode string
}

// PolicyDecision is the ephemeral outcome of one admission evaluation.
type PolicyDecision struct {
	Verdict         Verdict      `json:"verdict"`
	Tier            Tier         `json:"tier"`
	ChecksUsed      int          `json:"checks_used_today"`
	ChecksRemaining int          `json:"checks_remaining"`
	ResultCap       int          `json:"max_results"`
	FrictionType    FrictionType `json:"friction_type,omitempty"`
	RetryAfter      int          `json:"retry_after,omitempty"` // seconds
}

// Allowed reports whether the search may proceed.
func (d *PolicyDecision) Allowed() bool {
	return d.Verdict == VerdictAllow
}
