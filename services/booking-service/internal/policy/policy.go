package policy

import "github.com/norastrand/bookwise/services/booking-service/internal/model"

// HasAccess decides whether a client's subscription satisfies an offering's
// required tier. A nil requiredTier means the offering is open to everyone.
// Otherwise the client needs a currently active subscription at or above the
// required tier; no subscription at all is a denial.
func HasAccess(sub *model.Subscription, requiredTier *model.Tier) bool {
	if requiredTier == nil {
		return true
	}
	if sub == nil || !sub.IsActive {
		return false
	}
	have := sub.Tier.Rank()
	need := requiredTier.Rank()
	if have < 0 || need < 0 {
		return false
	}
	return have >= need
}
