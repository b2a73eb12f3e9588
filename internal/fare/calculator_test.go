package fare

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/coopfare/engine/internal/domain"
	"github.com/coopfare/engine/internal/repository"
)

func TestComputeFare(t *testing.T) {
	tier := func(mult string) domain.FareTier {
		return domain.FareTier{ID: "t", Multiplier: mult}
	}

	tests := []struct {
		name       string
		components domain.CostComponents
		passengers int
		multiplier string
		wantShare  int64
		wantFare   int64
	}{
		{
			// £20.00 base, 4 passengers, 0.90 multiplier: £4.50 each.
			name:       "even split with discount",
			components: domain.CostComponents{WagePence: 1000, FuelPence: 500, VehiclePence: 350, OverheadPence: 150},
			passengers: 4,
			multiplier: "0.90",
			wantShare:  500,
			wantFare:   450,
		},
		{
			name:       "single passenger no discount",
			components: domain.CostComponents{WagePence: 800, OverheadPence: 200},
			passengers: 1,
			multiplier: "1.00",
			wantShare:  1000,
			wantFare:   1000,
		},
		{
			// 1001 / 2 = 500.5, rounds half-to-even down to 500.
			name:       "half penny rounds to even (down)",
			components: domain.CostComponents{WagePence: 1001},
			passengers: 2,
			multiplier: "1.00",
			wantShare:  500,
			wantFare:   500,
		},
		{
			// 1003 / 2 = 501.5, rounds half-to-even up to 502.
			name:       "half penny rounds to even (up)",
			components: domain.CostComponents{WagePence: 1003},
			passengers: 2,
			multiplier: "1.00",
			wantShare:  502,
			wantFare:   502,
		},
		{
			name:       "zero cost trip",
			components: domain.CostComponents{},
			passengers: 3,
			multiplier: "0.95",
			wantShare:  0,
			wantFare:   0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, err := ComputeFare(tc.components, tc.passengers, tier(tc.multiplier))
			if err != nil {
				t.Fatalf("ComputeFare: %v", err)
			}
			if b.SharePence != tc.wantShare {
				t.Errorf("share = %d, want %d", b.SharePence, tc.wantShare)
			}
			if b.FarePence != tc.wantFare {
				t.Errorf("fare = %d, want %d", b.FarePence, tc.wantFare)
			}
			if b.BaseCostPence != tc.components.Total() {
				t.Errorf("base = %d, want %d", b.BaseCostPence, tc.components.Total())
			}
		})
	}
}

func TestComponentShares(t *testing.T) {
	b, err := ComputeFare(domain.CostComponents{
		WagePence: 1000, FuelPence: 500, VehiclePence: 300, OverheadPence: 200,
	}, 4, domain.FareTier{ID: "t", Multiplier: "0.90"})
	if err != nil {
		t.Fatalf("ComputeFare: %v", err)
	}

	shares := b.ComponentShares(4)
	want := []int64{225, 112, 68, 45} // 250*0.9, 125*0.9, 75*0.9 rounds to even, 50*0.9
	for i, got := range shares {
		if got != want[i] {
			t.Errorf("share[%d] = %d, want %d", i, got, want[i])
		}
	}

	// Independently rounded shares reconcile with the fare to the penny.
	var sum int64
	for _, s := range shares {
		sum += s
	}
	if diff := sum - b.FarePence; diff < -2 || diff > 2 {
		t.Errorf("shares sum %d vs fare %d, off by %d", sum, b.FarePence, diff)
	}
}

func TestComponentSharesBadMultiplierFallsBackUnscaled(t *testing.T) {
	b := Breakdown{
		Components: domain.CostComponents{
			WagePence: 1000, FuelPence: 500, VehiclePence: 300, OverheadPence: 200,
		},
		TierID:     "t",
		Multiplier: "not-a-number",
	}

	shares := b.ComponentShares(4)
	want := []int64{250, 125, 75, 50}
	for i, got := range shares {
		if got != want[i] {
			t.Errorf("share[%d] = %d, want %d (unscaled)", i, got, want[i])
		}
	}
}

func TestComputeFareRejectsBadInput(t *testing.T) {
	tier := domain.FareTier{ID: "t", Multiplier: "1.00"}

	_, err := ComputeFare(domain.CostComponents{WagePence: 100}, 0, tier)
	if !errors.Is(err, domain.ErrInvalidCostInput) {
		t.Errorf("zero passengers: got %v, want ErrInvalidCostInput", err)
	}

	_, err = ComputeFare(domain.CostComponents{FuelPence: -50}, 2, tier)
	if !errors.Is(err, domain.ErrInvalidCostInput) {
		t.Errorf("negative component: got %v, want ErrInvalidCostInput", err)
	}
}

func TestDeriveComponents(t *testing.T) {
	settings := domain.FareCalculationSettings{
		TenantID:           "coop-x",
		WageRateHourPence:  1500,
		FuelRateKmPence:    20,
		VehicleRateKmPence: 10,
		OverheadTripPence:  150,
	}

	// 30 minutes of wage at £15/h, 10km of fuel and vehicle.
	c, err := DeriveComponents(settings, 10, 30)
	if err != nil {
		t.Fatalf("DeriveComponents: %v", err)
	}
	if c.WagePence != 750 {
		t.Errorf("wage = %d, want 750", c.WagePence)
	}
	if c.FuelPence != 200 {
		t.Errorf("fuel = %d, want 200", c.FuelPence)
	}
	if c.VehiclePence != 100 {
		t.Errorf("vehicle = %d, want 100", c.VehiclePence)
	}
	if c.OverheadPence != 150 {
		t.Errorf("overhead = %d, want 150", c.OverheadPence)
	}

	if _, err := DeriveComponents(settings, -1, 10); !errors.Is(err, domain.ErrInvalidCostInput) {
		t.Errorf("negative distance: got %v, want ErrInvalidCostInput", err)
	}
}

// --- calculator persistence ---

func setupCalculator(t *testing.T) (*Calculator, *repository.TripRepo, *sql.DB) {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	settingsRepo := repository.NewSettingsRepo(db)
	tripRepo := repository.NewTripRepo(db)

	err = settingsRepo.SaveFareSettings(domain.FareCalculationSettings{
		TenantID:           "coop-x",
		WageRateHourPence:  1500,
		FuelRateKmPence:    20,
		VehicleRateKmPence: 10,
		OverheadTripPence:  150,
	})
	if err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if err := settingsRepo.ReplaceTiers("coop-x", testTiers()); err != nil {
		t.Fatalf("save tiers: %v", err)
	}

	return NewCalculator(settingsRepo, tripRepo), tripRepo, db
}

func TestComputeTripFareSupersedes(t *testing.T) {
	calc, tripRepo, _ := setupCalculator(t)

	in := TripInput{
		TripID:         "trip-1",
		TenantID:       "coop-x",
		PassengerCount: 2,
		Components:     &domain.CostComponents{WagePence: 1200, FuelPence: 400, VehiclePence: 250, OverheadPence: 150},
		CompletedAt:    time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	first, err := calc.ComputeTripFare(in)
	if err != nil {
		t.Fatalf("first pricing: %v", err)
	}
	// £20.00 / 2 * 0.95 = £9.50.
	if first.FarePence != 950 {
		t.Errorf("first fare = %d, want 950", first.FarePence)
	}

	// A third passenger joins; re-price the same trip.
	in.PassengerCount = 3
	second, err := calc.ComputeTripFare(in)
	if err != nil {
		t.Fatalf("second pricing: %v", err)
	}
	// £20.00 / 3 = 666.67 -> 667, * 0.95 = 633.65 -> 634.
	if second.FarePence != 634 {
		t.Errorf("second fare = %d, want 634", second.FarePence)
	}

	current, err := tripRepo.GetCurrent("trip-1")
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if current.ID != second.ID {
		t.Errorf("current record = %s, want latest version %s", current.ID, second.ID)
	}
	if current.Superseded {
		t.Error("current record must not be superseded")
	}

	versions, err := tripRepo.GetVersions("trip-1")
	if err != nil {
		t.Fatalf("get versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("got %d versions, want 2", len(versions))
	}
	superseded := 0
	for _, v := range versions {
		if v.Superseded {
			superseded++
		}
	}
	if superseded != 1 {
		t.Errorf("got %d superseded versions, want exactly 1", superseded)
	}
}

func TestComputeTripFareDerivesComponents(t *testing.T) {
	calc, _, _ := setupCalculator(t)

	rec, err := calc.ComputeTripFare(TripInput{
		TripID:          "trip-derived",
		TenantID:        "coop-x",
		PassengerCount:  1,
		DistanceKm:      10,
		DurationMinutes: 30,
		CompletedAt:     time.Date(2024, 3, 12, 14, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("pricing: %v", err)
	}
	// wage 750 + fuel 200 + vehicle 100 + overhead 150 = 1200, single
	// passenger at multiplier 1.00.
	if rec.BaseCostPence != 1200 {
		t.Errorf("base = %d, want 1200", rec.BaseCostPence)
	}
	if rec.FarePence != 1200 {
		t.Errorf("fare = %d, want 1200", rec.FarePence)
	}
	if rec.RevenuePence() != 1200 {
		t.Errorf("revenue = %d, want 1200", rec.RevenuePence())
	}
}

func TestComputeTripFareUnknownTenant(t *testing.T) {
	calc, _, _ := setupCalculator(t)

	_, err := calc.ComputeTripFare(TripInput{
		TripID:         "trip-x",
		TenantID:       "nobody",
		PassengerCount: 1,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
