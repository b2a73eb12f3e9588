package settlement

import (
	"fmt"

	"github.com/coopfare/engine/internal/domain"
	"github.com/coopfare/engine/internal/repository"
)

// Aggregation summarises one tenant-period: fare revenue against trip base
// costs and standalone operating costs. Surplus may be negative.
type Aggregation struct {
	TripCount    int   `json:"trip_count"`
	RevenuePence int64 `json:"revenue_pence"`
	CostsPence   int64 `json:"costs_pence"`
	SurplusPence int64 `json:"surplus_pence"`
}

// Aggregator is the pure read-reduce over the period's records. Running it
// twice over the same inputs yields the same result; only the settlement
// process persists the output, once per period.
type Aggregator struct {
	tripRepo *repository.TripRepo
	costRepo *repository.CostRepo
}

func NewAggregator(tripRepo *repository.TripRepo, costRepo *repository.CostRepo) *Aggregator {
	return &Aggregator{tripRepo: tripRepo, costRepo: costRepo}
}

// Aggregate sums the latest non-superseded fare records and operating costs
// inside the period window.
func (a *Aggregator) Aggregate(tenantID string, p domain.Period) (Aggregation, error) {
	records, err := a.tripRepo.ListForPeriod(tenantID, p.Start, p.End)
	if err != nil {
		return Aggregation{}, fmt.Errorf("load fare records: %w", err)
	}

	var agg Aggregation
	for _, rec := range records {
		agg.TripCount++
		agg.RevenuePence += rec.RevenuePence()
		agg.CostsPence += rec.BaseCostPence
	}

	operating, err := a.costRepo.SumForPeriod(tenantID, p.Start, p.End)
	if err != nil {
		return Aggregation{}, fmt.Errorf("sum operating costs: %w", err)
	}
	agg.CostsPence += operating

	agg.SurplusPence = agg.RevenuePence - agg.CostsPence
	return agg, nil
}
