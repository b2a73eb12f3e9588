package fare

import (
	"fmt"
	"log"

	"github.com/coopfare/engine/internal/domain"
)

// ResolveTier maps a passenger count to the tenant's discount tier. A count
// no tier covers is a configuration defect and returns ErrTierGap rather
// than defaulting. If ranges were misconfigured to overlap, the tier with
// the lowest min wins (most inclusive, largest discount) and the overlap is
// logged as a configuration warning.
func ResolveTier(tiers []domain.FareTier, passengers int) (*domain.FareTier, error) {
	if passengers < 1 {
		return nil, fmt.Errorf("%w: passenger count %d", domain.ErrInvalidCostInput, passengers)
	}

	var matches []domain.FareTier
	for _, t := range tiers {
		if passengers < t.MinPassengers {
			continue
		}
		if t.MaxPassengers != 0 && passengers > t.MaxPassengers {
			continue
		}
		matches = append(matches, t)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("passenger count %d: %w", passengers, domain.ErrTierGap)
	case 1:
		return &matches[0], nil
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.MinPassengers < best.MinPassengers {
			best = m
		}
	}
	log.Printf("[fare] WARNING: overlapping tiers for %d passengers (tenant %s), using tier %s (min=%d)",
		passengers, best.TenantID, best.ID, best.MinPassengers)
	return &best, nil
}
