package settlement

import (
	"errors"
	"testing"

	"github.com/coopfare/engine/internal/domain"
)

func schedule(reserves, business, dividend int) domain.DividendScheduleSettings {
	return domain.DividendScheduleSettings{
		TenantID:        "coop-x",
		Frequency:       domain.FrequencyMonthly,
		ReservesPercent: reserves,
		BusinessPercent: business,
		DividendPercent: dividend,
		Model:           domain.WorkerModel(),
	}
}

func TestAllocateSurplus(t *testing.T) {
	tests := []struct {
		name         string
		surplus      int64
		settings     domain.DividendScheduleSettings
		wantReserves int64
		wantBusiness int64
		wantDividend int64
	}{
		{
			name:         "clean split of £1000",
			surplus:      100_000,
			settings:     schedule(20, 30, 50),
			wantReserves: 20_000,
			wantBusiness: 30_000,
			wantDividend: 50_000,
		},
		{
			// 333 * 20% = 66.6 -> 67 (round half up is 67; .6 rounds up
			// regardless), 333 * 30% = 99.9 -> 100, dividend takes 166.
			name:         "remainder lands in dividend pool",
			surplus:      333,
			settings:     schedule(20, 30, 50),
			wantReserves: 67,
			wantBusiness: 100,
			wantDividend: 166,
		},
		{
			// 50 * 25% = 12.5, rounds half-to-even to 12.
			name:         "half penny rounds to even",
			surplus:      50,
			settings:     schedule(25, 25, 50),
			wantReserves: 12,
			wantBusiness: 12,
			wantDividend: 26,
		},
		{
			name:         "everything to dividends",
			surplus:      999,
			settings:     schedule(0, 0, 100),
			wantReserves: 0,
			wantBusiness: 0,
			wantDividend: 999,
		},
		{
			// 103 * 50% = 51.5 rounds half-to-even to 52 for both pools,
			// which would leave the dividend pool at -1; business is
			// capped at what reserves left behind instead.
			name:         "no dividend percent with odd surplus",
			surplus:      103,
			settings:     schedule(50, 50, 0),
			wantReserves: 52,
			wantBusiness: 51,
			wantDividend: 0,
		},
		{
			name:         "no dividend percent with even surplus",
			surplus:      100,
			settings:     schedule(50, 50, 0),
			wantReserves: 50,
			wantBusiness: 50,
			wantDividend: 0,
		},
		{
			name:     "zero surplus",
			surplus:  0,
			settings: schedule(20, 30, 50),
		},
		{
			name:     "deficit period",
			surplus:  -42_000,
			settings: schedule(20, 30, 50),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pools, err := AllocateSurplus(tc.surplus, tc.settings)
			if err != nil {
				t.Fatalf("AllocateSurplus: %v", err)
			}
			if pools.ReservesPence != tc.wantReserves {
				t.Errorf("reserves = %d, want %d", pools.ReservesPence, tc.wantReserves)
			}
			if pools.BusinessPence != tc.wantBusiness {
				t.Errorf("business = %d, want %d", pools.BusinessPence, tc.wantBusiness)
			}
			if pools.DividendPence != tc.wantDividend {
				t.Errorf("dividend = %d, want %d", pools.DividendPence, tc.wantDividend)
			}
			if tc.surplus > 0 {
				if sum := pools.ReservesPence + pools.BusinessPence + pools.DividendPence; sum != tc.surplus {
					t.Errorf("pools sum to %d, want exactly %d", sum, tc.surplus)
				}
			}
		})
	}
}

func TestAllocateSurplusRejectsBrokenSettings(t *testing.T) {
	_, err := AllocateSurplus(1000, schedule(20, 30, 49))
	if !errors.Is(err, domain.ErrSettingsInvariant) {
		t.Fatalf("got %v, want ErrSettingsInvariant", err)
	}
}
