package domain

import "time"

// CostComponents are the four underlying cost inputs of a trip, in pence.
// Each contributes individually to the final fare so the breakdown stays
// reconstructable for members.
type CostComponents struct {
	WagePence     int64 `json:"wage_pence"`
	FuelPence     int64 `json:"fuel_pence"`
	VehiclePence  int64 `json:"vehicle_pence"`
	OverheadPence int64 `json:"overhead_pence"`
}

// Total is the trip's base cost before apportionment.
func (c CostComponents) Total() int64 {
	return c.WagePence + c.FuelPence + c.VehiclePence + c.OverheadPence
}

// Negative reports whether any component is below zero.
func (c CostComponents) Negative() bool {
	return c.WagePence < 0 || c.FuelPence < 0 || c.VehiclePence < 0 || c.OverheadPence < 0
}

// TripFareRecord is the computed fare for one trip. Records are append-only:
// re-pricing a trip (a passenger joining or leaving) writes a new record and
// marks the previous version superseded; amounts are never edited in place.
type TripFareRecord struct {
	ID             string         `json:"id"`
	TripID         string         `json:"trip_id"`
	TenantID       string         `json:"tenant_id"`
	PassengerCount int            `json:"passenger_count"`
	Components     CostComponents `json:"components"`
	BaseCostPence  int64          `json:"base_cost_pence"`
	TierID         string         `json:"tier_id"`
	Multiplier     string         `json:"multiplier"`
	// FarePence is the per-passenger fare after apportionment and the tier
	// multiplier. Trip revenue is FarePence × PassengerCount.
	FarePence   int64      `json:"fare_pence"`
	CompletedAt time.Time  `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	Superseded  bool       `json:"superseded"`
	SupersededAt *time.Time `json:"superseded_at,omitempty"`
}

// RevenuePence is the fare collected across all passengers of the trip.
func (r TripFareRecord) RevenuePence() int64 {
	return r.FarePence * int64(r.PassengerCount)
}

// OperatingCost is a standalone cost entry recorded against a tenant outside
// any single trip (insurance, licensing, depot rent). Aggregated into the
// period's cost side alongside per-trip base costs.
type OperatingCost struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Category    string    `json:"category"`
	AmountPence int64     `json:"amount_pence"`
	IncurredAt  time.Time `json:"incurred_at"`
}
