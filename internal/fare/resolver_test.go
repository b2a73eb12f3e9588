package fare

import (
	"errors"
	"testing"

	"github.com/coopfare/engine/internal/domain"
)

func testTiers() []domain.FareTier {
	return []domain.FareTier{
		{ID: "t1", TenantID: "coop-x", MinPassengers: 1, MaxPassengers: 1, Multiplier: "1.00"},
		{ID: "t2", TenantID: "coop-x", MinPassengers: 2, MaxPassengers: 3, Multiplier: "0.95"},
		{ID: "t3", TenantID: "coop-x", MinPassengers: 4, MaxPassengers: 6, Multiplier: "0.90"},
		{ID: "t4", TenantID: "coop-x", MinPassengers: 7, Multiplier: "0.85"},
	}
}

func TestResolveTier(t *testing.T) {
	tests := []struct {
		passengers int
		wantTier   string
	}{
		{1, "t1"},
		{2, "t2"},
		{3, "t2"},
		{4, "t3"},
		{6, "t3"},
		{7, "t4"},
		{50, "t4"}, // unbounded top tier
	}
	for _, tc := range tests {
		tier, err := ResolveTier(testTiers(), tc.passengers)
		if err != nil {
			t.Fatalf("ResolveTier(%d): %v", tc.passengers, err)
		}
		if tier.ID != tc.wantTier {
			t.Errorf("ResolveTier(%d) = %s, want %s", tc.passengers, tier.ID, tc.wantTier)
		}
	}
}

func TestResolveTierGap(t *testing.T) {
	// A misconfigured table with a hole between 3 and 5 passengers.
	tiers := []domain.FareTier{
		{ID: "t1", MinPassengers: 1, MaxPassengers: 3, Multiplier: "1.00"},
		{ID: "t2", MinPassengers: 5, Multiplier: "0.90"},
	}
	_, err := ResolveTier(tiers, 4)
	if !errors.Is(err, domain.ErrTierGap) {
		t.Fatalf("got %v, want ErrTierGap", err)
	}
}

func TestResolveTierOverlap(t *testing.T) {
	// Overlapping ranges: the tier with the lowest min wins.
	tiers := []domain.FareTier{
		{ID: "wide", MinPassengers: 2, MaxPassengers: 8, Multiplier: "0.95"},
		{ID: "narrow", MinPassengers: 4, MaxPassengers: 6, Multiplier: "0.90"},
	}
	tier, err := ResolveTier(tiers, 5)
	if err != nil {
		t.Fatalf("ResolveTier: %v", err)
	}
	if tier.ID != "wide" {
		t.Errorf("overlap resolved to %s, want wide (lowest min)", tier.ID)
	}
}

func TestResolveTierInvalidCount(t *testing.T) {
	for _, n := range []int{0, -3} {
		if _, err := ResolveTier(testTiers(), n); !errors.Is(err, domain.ErrInvalidCostInput) {
			t.Errorf("ResolveTier(%d): got %v, want ErrInvalidCostInput", n, err)
		}
	}
}
