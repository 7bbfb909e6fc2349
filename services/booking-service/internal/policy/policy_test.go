package policy

import (
	"testing"

	"github.com/norastrand/bookwise/services/booking-service/internal/model"
)

func tierPtr(t model.Tier) *model.Tier { return &t }

func TestHasAccess(t *testing.T) {
	growth := tierPtr(model.TierGrowth)

	cases := []struct {
		name     string
		sub      *model.Subscription
		required *model.Tier
		want     bool
	}{
		{"no tier required, no subscription", nil, nil, true},
		{"no tier required, inactive subscription", &model.Subscription{Tier: model.TierGrowth, IsActive: false}, nil, true},
		{"required but no subscription", nil, growth, false},
		{"required but inactive", &model.Subscription{Tier: model.TierGrowth, IsActive: false}, growth, false},
		{"lower tier rejected", &model.Subscription{Tier: model.TierSelfGuided, IsActive: true}, growth, false},
		{"exact tier accepted", &model.Subscription{Tier: model.TierGrowth, IsActive: true}, growth, true},
		{"higher tier accepted", &model.Subscription{Tier: model.TierPremium, IsActive: true}, growth, true},
		{"unknown tier rejected", &model.Subscription{Tier: model.Tier("enterprise"), IsActive: true}, growth, false},
	}
	for _, tc := range cases {
		if got := HasAccess(tc.sub, tc.required); got != tc.want {
			t.Errorf("%s: HasAccess = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestTierOrdering(t *testing.T) {
	if !(model.TierSelfGuided.Rank() < model.TierGrowth.Rank() && model.TierGrowth.Rank() < model.TierPremium.Rank()) {
		t.Fatal("tier ordering must be self-guided < growth < premium")
	}
}
