// Package entitlement maps a client's entitlement key to an access tier.
// The key scheme is a placeholder for a billing integration: keys carrying
// the paid prefix unlock the paid tier, everything else is free.
package entitlement

import (
	"strings"

	"dilldrill/internal/admission/models"
)

const paidPrefix = "paid_"

// Service resolves access tiers from entitlement keys.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// TierFor returns the tier granted by key. Absent or unrecognized keys
// resolve to the free tier; entitlement never blocks a request outright.
func (s *Service) TierFor(key string) models.Tier {
	if strings.HasPrefix(key, paidPrefix) {
		return models.TierPaid
	}
	return models.TierFree
}
