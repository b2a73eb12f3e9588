package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/coopfare/engine/internal/domain"
)

// Pools is the split of a period's surplus.
type Pools struct {
	ReservesPence int64 `json:"reserves_pence"`
	BusinessPence int64 `json:"business_pence"`
	DividendPence int64 `json:"dividend_pence"`
}

// AllocateSurplus splits the surplus per the tenant's percentages. Reserves
// are rounded half-to-even; business is rounded the same way but capped at
// what reserves left behind, and the dividend pool takes whatever remains.
// The three pools always sum exactly to the surplus and none of them can go
// negative, even when independent rounding of the first two would overshoot
// a zero dividend percentage. A non-positive surplus yields all-zero pools;
// a deficit period is not an error.
//
// The percentage invariant is enforced at settings-write time; the
// re-validation here is defensive.
func AllocateSurplus(surplusPence int64, s domain.DividendScheduleSettings) (Pools, error) {
	if err := s.Validate(); err != nil {
		return Pools{}, fmt.Errorf("allocation settings: %w", err)
	}
	if surplusPence <= 0 {
		return Pools{}, nil
	}

	surplus := decimal.New(surplusPence, 0)
	hundred := decimal.New(100, 0)

	reserves := surplus.Mul(decimal.New(int64(s.ReservesPercent), 0)).Div(hundred).RoundBank(0).IntPart()
	business := surplus.Mul(decimal.New(int64(s.BusinessPercent), 0)).Div(hundred).RoundBank(0).IntPart()
	if business > surplusPence-reserves {
		business = surplusPence - reserves
	}

	return Pools{
		ReservesPence: reserves,
		BusinessPence: business,
		DividendPence: surplusPence - reserves - business,
	}, nil
}
