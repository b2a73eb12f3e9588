package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// FareCalculationSettings is a tenant's cost model: the rates the engine
// uses to derive per-trip cost components. Exactly one active row per
// tenant. All rates are in pence.
type FareCalculationSettings struct {
	TenantID          string `json:"tenant_id"`
	WageRateHourPence int64  `json:"wage_rate_hour_pence"`
	FuelRateKmPence   int64  `json:"fuel_rate_km_pence"`
	VehicleRateKmPence int64 `json:"vehicle_rate_km_pence"`
	OverheadTripPence int64  `json:"overhead_trip_pence"`
}

// Validate rejects negative rates at settings-write time.
func (s FareCalculationSettings) Validate() error {
	if s.WageRateHourPence < 0 || s.FuelRateKmPence < 0 || s.VehicleRateKmPence < 0 || s.OverheadTripPence < 0 {
		return fmt.Errorf("%w: rates must be non-negative", ErrInvalidCostInput)
	}
	return nil
}

// FareTier is a passenger-count band with a fare multiplier. MaxPassengers
// of zero means the band is unbounded above. Multiplier is a decimal string
// such as "0.90"; fares decrease as passengers join by moving into tiers
// with smaller multipliers.
type FareTier struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenant_id"`
	MinPassengers int    `json:"min_passengers"`
	MaxPassengers int    `json:"max_passengers,omitempty"`
	Multiplier    string `json:"multiplier"`
}

// MultiplierDecimal parses the tier's fare multiplier.
func (t FareTier) MultiplierDecimal() (decimal.Decimal, error) {
	m, err := decimal.NewFromString(t.Multiplier)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("tier %s: bad multiplier %q: %w", t.ID, t.Multiplier, err)
	}
	if m.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("tier %s: negative multiplier %q", t.ID, t.Multiplier)
	}
	return m, nil
}

// ValidateTiers checks a tenant's tier table is non-overlapping and
// exhaustive across [1, ∞). Enforced when an administrator saves tiers, so
// resolution never hits a gap at run time.
func ValidateTiers(tiers []FareTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("tier table is empty")
	}
	sorted := make([]FareTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinPassengers < sorted[j].MinPassengers })

	if sorted[0].MinPassengers > 1 {
		return fmt.Errorf("tier table has a gap below %d passengers", sorted[0].MinPassengers)
	}
	for i, t := range sorted {
		if _, err := t.MultiplierDecimal(); err != nil {
			return err
		}
		if t.MinPassengers < 1 {
			return fmt.Errorf("tier %s: min_passengers must be >= 1", t.ID)
		}
		if t.MaxPassengers != 0 && t.MaxPassengers < t.MinPassengers {
			return fmt.Errorf("tier %s: max_passengers below min_passengers", t.ID)
		}
		if i == len(sorted)-1 {
			if t.MaxPassengers != 0 {
				return fmt.Errorf("tier table has a gap above %d passengers", t.MaxPassengers)
			}
			continue
		}
		if t.MaxPassengers == 0 {
			return fmt.Errorf("tier %s: unbounded tier overlaps tier %s", t.ID, sorted[i+1].ID)
		}
		next := sorted[i+1]
		if next.MinPassengers <= t.MaxPassengers {
			return fmt.Errorf("tiers %s and %s overlap", t.ID, next.ID)
		}
		if next.MinPassengers > t.MaxPassengers+1 {
			return fmt.Errorf("tier table has a gap between %d and %d passengers", t.MaxPassengers, next.MinPassengers)
		}
	}
	return nil
}

type ModelKind string

const (
	ModelWorker    ModelKind = "worker"    // drivers are members
	ModelPassenger ModelKind = "passenger" // customers are members
	ModelHybrid    ModelKind = "hybrid"    // both, pool split by ratio
)

// CooperativeModel is a closed variant over the three cooperative forms.
// Only the hybrid form carries a customer/driver split; the split is
// validated at construction and sums to 100.
type CooperativeModel struct {
	Kind            ModelKind `json:"kind"`
	CustomerPercent int       `json:"customer_percent,omitempty"`
	DriverPercent   int       `json:"driver_percent,omitempty"`
}

func WorkerModel() CooperativeModel {
	return CooperativeModel{Kind: ModelWorker}
}

func PassengerModel() CooperativeModel {
	return CooperativeModel{Kind: ModelPassenger}
}

// HybridModel builds a hybrid cooperative with an explicit customer/driver
// pool split. Pass 0/0 for the default policy of an equal split.
func HybridModel(customerPercent, driverPercent int) (CooperativeModel, error) {
	if customerPercent == 0 && driverPercent == 0 {
		customerPercent, driverPercent = 50, 50
	}
	if customerPercent < 0 || driverPercent < 0 || customerPercent+driverPercent != 100 {
		return CooperativeModel{}, fmt.Errorf("%w: hybrid split %d/%d", ErrSettingsInvariant, customerPercent, driverPercent)
	}
	return CooperativeModel{Kind: ModelHybrid, CustomerPercent: customerPercent, DriverPercent: driverPercent}, nil
}

// NewCooperativeModel validates a model loaded from storage or an API
// payload.
func NewCooperativeModel(kind string, customerPercent, driverPercent int) (CooperativeModel, error) {
	switch ModelKind(kind) {
	case ModelWorker:
		return WorkerModel(), nil
	case ModelPassenger:
		return PassengerModel(), nil
	case ModelHybrid:
		return HybridModel(customerPercent, driverPercent)
	default:
		return CooperativeModel{}, fmt.Errorf("unknown cooperative model %q", kind)
	}
}

// Includes reports whether the model admits the given member type.
func (m CooperativeModel) Includes(t MemberType) bool {
	switch m.Kind {
	case ModelWorker:
		return t == MemberDriver
	case ModelPassenger:
		return t == MemberCustomer
	default:
		return true
	}
}

// DividendScheduleSettings is a tenant's surplus allocation policy.
// Reserves, business and dividend percentages must total exactly 100.
type DividendScheduleSettings struct {
	TenantID          string           `json:"tenant_id"`
	Enabled           bool             `json:"enabled"`
	Frequency         Frequency        `json:"frequency"`
	ReservesPercent   int              `json:"reserves_percent"`
	BusinessPercent   int              `json:"business_percent"`
	DividendPercent   int              `json:"dividend_percent"`
	Model             CooperativeModel `json:"model"`
	AutoDistribute    bool             `json:"auto_distribute"`
	NotificationEmail string           `json:"notification_email,omitempty"`
}

// Validate enforces the percentage invariant. Rejected at settings-write
// time; the allocator re-validates defensively.
func (s DividendScheduleSettings) Validate() error {
	if s.Frequency != FrequencyMonthly && s.Frequency != FrequencyQuarterly {
		return fmt.Errorf("unknown frequency %q", s.Frequency)
	}
	if s.ReservesPercent < 0 || s.BusinessPercent < 0 || s.DividendPercent < 0 {
		return fmt.Errorf("%w: got %d/%d/%d", ErrSettingsInvariant,
			s.ReservesPercent, s.BusinessPercent, s.DividendPercent)
	}
	if total := s.ReservesPercent + s.BusinessPercent + s.DividendPercent; total != 100 {
		return fmt.Errorf("%w: %d + %d + %d = %d", ErrSettingsInvariant,
			s.ReservesPercent, s.BusinessPercent, s.DividendPercent, total)
	}
	if _, err := NewCooperativeModel(string(s.Model.Kind), s.Model.CustomerPercent, s.Model.DriverPercent); err != nil {
		return err
	}
	return nil
}
