package settlement

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/coopfare/engine/internal/domain"
)

// Share is one member's cut of the dividend pool.
type Share struct {
	Member      domain.Member `json:"member"`
	AmountPence int64         `json:"amount_pence"`
}

// Distribution is the computed payout plan for a period's dividend pool.
// Σshares + RetainedPence always equals the pool to the penny; the retained
// part (sub-pools with no eligible group) stays in the commonwealth fund.
type Distribution struct {
	Shares        []Share `json:"shares"`
	RetainedPence int64   `json:"retained_pence"`
}

// DistributeDividends computes per-member payouts for the pool under the
// tenant's cooperative model. For hybrid models the pool is first split by
// the configured customer/driver ratio (customer side rounded half-to-even,
// driver side taking the remainder); within each member type the sub-pool
// is divided pro-rata by eligibility weight. Rounding remainders go to the
// member with the largest weight, ties broken by lowest member id, so the
// operation is reproducible.
//
// A positive pool with nobody eligible at all fails with
// ErrNoEligibleMembers; the caller retains the pool in the fund.
func DistributeDividends(poolPence int64, model domain.CooperativeModel, members []domain.Member) (Distribution, error) {
	if poolPence <= 0 {
		return Distribution{}, nil
	}

	byType := map[domain.MemberType][]domain.Member{}
	for _, m := range members {
		if !model.Includes(m.Type) || m.Weight <= 0 {
			continue
		}
		byType[m.Type] = append(byType[m.Type], m)
	}

	type subPool struct {
		memberType domain.MemberType
		pool       int64
	}
	var subPools []subPool
	switch model.Kind {
	case domain.ModelWorker:
		subPools = []subPool{{domain.MemberDriver, poolPence}}
	case domain.ModelPassenger:
		subPools = []subPool{{domain.MemberCustomer, poolPence}}
	case domain.ModelHybrid:
		customer := decimal.New(poolPence, 0).
			Mul(decimal.New(int64(model.CustomerPercent), 0)).
			Div(decimal.New(100, 0)).RoundBank(0).IntPart()
		subPools = []subPool{
			{domain.MemberCustomer, customer},
			{domain.MemberDriver, poolPence - customer},
		}
	default:
		return Distribution{}, fmt.Errorf("unknown cooperative model %q", model.Kind)
	}

	var dist Distribution
	distributed := false
	for _, sp := range subPools {
		group := byType[sp.memberType]
		if len(group) == 0 {
			// Nobody eligible on this side; the sub-pool stays in the fund.
			dist.RetainedPence += sp.pool
			continue
		}
		distributed = true
		dist.Shares = append(dist.Shares, proRata(sp.pool, group)...)
	}

	if !distributed {
		return Distribution{}, fmt.Errorf("pool %d: %w", poolPence, domain.ErrNoEligibleMembers)
	}
	return dist, nil
}

// proRata divides a sub-pool across one member-type group by weight. The
// rounding remainder is assigned to the largest weight, deterministically.
func proRata(poolPence int64, group []domain.Member) []Share {
	sorted := make([]domain.Member, len(group))
	copy(sorted, group)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var totalWeight decimal.Decimal
	for _, m := range sorted {
		totalWeight = totalWeight.Add(decimal.NewFromFloat(m.Weight))
	}

	pool := decimal.New(poolPence, 0)
	shares := make([]Share, len(sorted))
	var assigned int64
	largest := 0
	for i, m := range sorted {
		amount := pool.Mul(decimal.NewFromFloat(m.Weight)).Div(totalWeight).RoundBank(0).IntPart()
		shares[i] = Share{Member: m, AmountPence: amount}
		assigned += amount
		// Strict greater-than keeps the tie on the lowest member id.
		if m.Weight > sorted[largest].Weight {
			largest = i
		}
	}

	if remainder := poolPence - assigned; remainder != 0 {
		shares[largest].AmountPence += remainder
	}

	// Zero-pence shares carry no payout and no ledger entry.
	out := shares[:0]
	for _, s := range shares {
		if s.AmountPence > 0 {
			out = append(out, s)
		}
	}
	return out
}
