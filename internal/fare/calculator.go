package fare

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coopfare/engine/internal/currency"
	"github.com/coopfare/engine/internal/domain"
	"github.com/coopfare/engine/internal/repository"
)

// Breakdown is the transparent result of a fare computation. Every cost
// component's contribution to the per-passenger fare is reconstructable.
type Breakdown struct {
	Components    domain.CostComponents `json:"components"`
	BaseCostPence int64                 `json:"base_cost_pence"`
	// SharePence is the per-passenger apportionment of the base cost before
	// the tier multiplier, rounded half-to-even to the penny.
	SharePence int64  `json:"share_pence"`
	TierID     string `json:"tier_id"`
	Multiplier string `json:"multiplier"`
	FarePence  int64  `json:"fare_pence"`
}

// ComponentShares returns each component's per-passenger contribution after
// the tier multiplier, in wage/fuel/vehicle/overhead order. Shares are
// rounded individually, so they reconcile with the fare to within a penny
// or two of independent rounding.
func (b Breakdown) ComponentShares(passengers int) []int64 {
	mult, err := decimal.NewFromString(b.Multiplier)
	if err != nil {
		// A stored record can only carry a bad multiplier if the tier
		// table was corrupted after pricing; fall back to the unscaled
		// shares rather than invent a fare.
		log.Printf("[fare] WARNING: unparseable multiplier %q on breakdown (tier %s), using 1.00", b.Multiplier, b.TierID)
		mult = decimal.New(1, 0)
	}
	n := decimal.New(int64(passengers), 0)
	parts := []int64{b.Components.WagePence, b.Components.FuelPence, b.Components.VehiclePence, b.Components.OverheadPence}
	out := make([]int64, len(parts))
	for i, p := range parts {
		out[i] = decimal.New(p, 0).Div(n).Mul(mult).RoundBank(0).IntPart()
	}
	return out
}

// ComputeFare apportions the trip's base cost across passengers and applies
// the tier multiplier. Division rounds half-to-even to the penny to avoid
// systematic bias across many trips. Pure; no persistence.
func ComputeFare(c domain.CostComponents, passengers int, tier domain.FareTier) (Breakdown, error) {
	if passengers < 1 {
		return Breakdown{}, fmt.Errorf("%w: passenger count %d", domain.ErrInvalidCostInput, passengers)
	}
	if c.Negative() {
		return Breakdown{}, fmt.Errorf("%w: negative cost component", domain.ErrInvalidCostInput)
	}
	mult, err := tier.MultiplierDecimal()
	if err != nil {
		return Breakdown{}, err
	}

	base := c.Total()
	share := decimal.New(base, 0).Div(decimal.New(int64(passengers), 0)).RoundBank(0)
	fare := share.Mul(mult).RoundBank(0)

	return Breakdown{
		Components:    c,
		BaseCostPence: base,
		SharePence:    share.IntPart(),
		TierID:        tier.ID,
		Multiplier:    tier.Multiplier,
		FarePence:     fare.IntPart(),
	}, nil
}

// DeriveComponents computes a trip's cost components from the tenant's rate
// settings and the trip's measurements.
func DeriveComponents(s domain.FareCalculationSettings, distanceKm, durationMinutes float64) (domain.CostComponents, error) {
	if distanceKm < 0 || durationMinutes < 0 {
		return domain.CostComponents{}, fmt.Errorf("%w: negative trip measurement", domain.ErrInvalidCostInput)
	}
	km := decimal.NewFromFloat(distanceKm)
	hours := decimal.NewFromFloat(durationMinutes).Div(decimal.New(60, 0))

	return domain.CostComponents{
		WagePence:     decimal.New(s.WageRateHourPence, 0).Mul(hours).RoundBank(0).IntPart(),
		FuelPence:     decimal.New(s.FuelRateKmPence, 0).Mul(km).RoundBank(0).IntPart(),
		VehiclePence:  decimal.New(s.VehicleRateKmPence, 0).Mul(km).RoundBank(0).IntPart(),
		OverheadPence: s.OverheadTripPence,
	}, nil
}

// Calculator computes and persists trip fares. Settings and tiers are
// loaded per call and passed through explicitly; the calculator keeps no
// tenant state.
type Calculator struct {
	settingsRepo *repository.SettingsRepo
	tripRepo     *repository.TripRepo
}

func NewCalculator(settingsRepo *repository.SettingsRepo, tripRepo *repository.TripRepo) *Calculator {
	return &Calculator{settingsRepo: settingsRepo, tripRepo: tripRepo}
}

// TripInput describes one finalized trip from the trip record provider.
// Explicit cost components take precedence; otherwise components are
// derived from the tenant's rate settings and the trip measurements.
type TripInput struct {
	TripID          string                 `json:"trip_id"`
	TenantID        string                 `json:"tenant_id"`
	PassengerCount  int                    `json:"passenger_count"`
	DistanceKm      float64                `json:"distance_km"`
	DurationMinutes float64                `json:"duration_minutes"`
	Components      *domain.CostComponents `json:"components,omitempty"`
	CompletedAt     time.Time              `json:"completed_at"`
}

// ComputeTripFare prices one trip and persists the record. Re-pricing the
// same trip (a passenger joined or left) appends a new version and
// supersedes the old one.
func (c *Calculator) ComputeTripFare(in TripInput) (*domain.TripFareRecord, error) {
	if in.TripID == "" || in.TenantID == "" {
		return nil, fmt.Errorf("%w: trip_id and tenant_id are required", domain.ErrInvalidCostInput)
	}

	settings, err := c.settingsRepo.GetFareSettings(in.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load fare settings: %w", err)
	}
	tiers, err := c.settingsRepo.GetTiers(in.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load tiers: %w", err)
	}

	components := domain.CostComponents{}
	if in.Components != nil {
		components = *in.Components
	} else {
		components, err = DeriveComponents(*settings, in.DistanceKm, in.DurationMinutes)
		if err != nil {
			return nil, err
		}
	}

	tier, err := ResolveTier(tiers, in.PassengerCount)
	if err != nil {
		return nil, err
	}

	breakdown, err := ComputeFare(components, in.PassengerCount, *tier)
	if err != nil {
		return nil, err
	}

	completedAt := in.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	rec := &domain.TripFareRecord{
		ID:             uuid.NewString(),
		TripID:         in.TripID,
		TenantID:       in.TenantID,
		PassengerCount: in.PassengerCount,
		Components:     breakdown.Components,
		BaseCostPence:  breakdown.BaseCostPence,
		TierID:         breakdown.TierID,
		Multiplier:     breakdown.Multiplier,
		FarePence:      breakdown.FarePence,
		CompletedAt:    completedAt.UTC(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.tripRepo.Insert(rec); err != nil {
		return nil, fmt.Errorf("persist fare record: %w", err)
	}

	log.Printf("[fare] Priced trip %s (tenant=%s): %d passengers, base=%s, fare=%s (tier %s x%s)",
		in.TripID, in.TenantID, in.PassengerCount,
		currency.Format(breakdown.BaseCostPence), currency.Format(breakdown.FarePence),
		tier.ID, tier.Multiplier)

	return rec, nil
}
