// Command generate rebuilds testdata/seed.json: two tenants with
// contrasting cooperative models plus a month of completed trips.
package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/coopfare/engine/internal/domain"
	"github.com/coopfare/engine/internal/fare"
)

type tenantSeed struct {
	FareSettings domain.FareCalculationSettings  `json:"fare_settings"`
	Tiers        []domain.FareTier               `json:"tiers"`
	Schedule     domain.DividendScheduleSettings `json:"schedule"`
	Members      []domain.Member                 `json:"members"`
}

type seedFile struct {
	Tenants []tenantSeed     `json:"tenants"`
	Trips   []fare.TripInput `json:"trips"`
}

func main() {
	rng := rand.New(rand.NewSource(42))
	baseDir := findTestdataDir()

	tiers := func(tenantID string) []domain.FareTier {
		return []domain.FareTier{
			{ID: tenantID + "-t1", TenantID: tenantID, MinPassengers: 1, MaxPassengers: 1, Multiplier: "1.00"},
			{ID: tenantID + "-t2", TenantID: tenantID, MinPassengers: 2, MaxPassengers: 3, Multiplier: "0.95"},
			{ID: tenantID + "-t3", TenantID: tenantID, MinPassengers: 4, MaxPassengers: 6, Multiplier: "0.90"},
			{ID: tenantID + "-t4", TenantID: tenantID, MinPassengers: 7, Multiplier: "0.85"},
		}
	}

	hybrid, err := domain.HybridModel(60, 40)
	if err != nil {
		panic(err)
	}

	sf := seedFile{
		Tenants: []tenantSeed{
			{
				FareSettings: domain.FareCalculationSettings{
					TenantID:           "coop-leeds",
					WageRateHourPence:  1500,
					FuelRateKmPence:    18,
					VehicleRateKmPence: 12,
					OverheadTripPence:  150,
				},
				Tiers: tiers("coop-leeds"),
				Schedule: domain.DividendScheduleSettings{
					TenantID:        "coop-leeds",
					Enabled:         true,
					Frequency:       domain.FrequencyMonthly,
					ReservesPercent: 20,
					BusinessPercent: 30,
					DividendPercent: 50,
					Model:           domain.WorkerModel(),
					AutoDistribute:  true,
				},
				Members: members(rng, "coop-leeds", 8, 0),
			},
			{
				FareSettings: domain.FareCalculationSettings{
					TenantID:           "coop-bristol",
					WageRateHourPence:  1400,
					FuelRateKmPence:    20,
					VehicleRateKmPence: 10,
					OverheadTripPence:  120,
				},
				Tiers: tiers("coop-bristol"),
				Schedule: domain.DividendScheduleSettings{
					TenantID:        "coop-bristol",
					Enabled:         true,
					Frequency:       domain.FrequencyQuarterly,
					ReservesPercent: 25,
					BusinessPercent: 25,
					DividendPercent: 50,
					Model:           hybrid,
					AutoDistribute:  false,
				},
				Members: members(rng, "coop-bristol", 5, 12),
			},
		},
	}

	// Completed trips across 2024-03 for both tenants.
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, tenantID := range []string{"coop-leeds", "coop-bristol"} {
		for i := 1; i <= 40; i++ {
			day := rng.Intn(31)
			hour := 6 + rng.Intn(16)
			completed := start.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
			sf.Trips = append(sf.Trips, fare.TripInput{
				TripID:          fmt.Sprintf("%s-trip-%03d", tenantID, i),
				TenantID:        tenantID,
				PassengerCount:  1 + rng.Intn(8),
				DistanceKm:      2 + rng.Float64()*28,
				DurationMinutes: 8 + rng.Float64()*50,
				CompletedAt:     completed,
			})
		}
	}

	out, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		panic(err)
	}
	path := filepath.Join(baseDir, "seed.json")
	if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
		panic(err)
	}
	fmt.Printf("Wrote %s (%d tenants, %d trips)\n", path, len(sf.Tenants), len(sf.Trips))
}

func members(rng *rand.Rand, tenantID string, drivers, customers int) []domain.Member {
	var out []domain.Member
	for i := 1; i <= drivers; i++ {
		out = append(out, domain.Member{
			ID:       fmt.Sprintf("%s-drv-%02d", tenantID, i),
			TenantID: tenantID,
			Type:     domain.MemberDriver,
			Weight:   float64(20 + rng.Intn(160)), // hours worked in the period
		})
	}
	for i := 1; i <= customers; i++ {
		out = append(out, domain.Member{
			ID:       fmt.Sprintf("%s-cus-%02d", tenantID, i),
			TenantID: tenantID,
			Type:     domain.MemberCustomer,
			Weight:   float64(1 + rng.Intn(30)), // trips taken in the period
		})
	}
	return out
}

func findTestdataDir() string {
	candidates := []string{"testdata", filepath.Join("..", "..", "testdata"), "."}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			if filepath.Base(mustAbs(c)) == "testdata" {
				return c
			}
		}
	}
	return "."
}

func mustAbs(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
