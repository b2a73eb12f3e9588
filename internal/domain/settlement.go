package domain

import "time"

type SettlementStatus string

const (
	SettlementOpen         SettlementStatus = "open"
	SettlementAggregating  SettlementStatus = "aggregating"
	SettlementAllocated    SettlementStatus = "allocated"
	SettlementDistributing SettlementStatus = "distributing"
	SettlementSettled      SettlementStatus = "settled"
	SettlementNoSurplus    SettlementStatus = "no_surplus"
	SettlementFailed       SettlementStatus = "failed"
)

// settlementTransitions is the allowed state machine for a period run.
// Failed is terminal for the run but claimable again: recovery re-enters
// Aggregating only while no contribution exists, otherwise resumes at
// Distributing from the recorded contribution.
var settlementTransitions = map[SettlementStatus][]SettlementStatus{
	SettlementOpen:         {SettlementAggregating},
	SettlementAggregating:  {SettlementAllocated, SettlementNoSurplus, SettlementFailed, SettlementOpen},
	SettlementAllocated:    {SettlementDistributing, SettlementSettled, SettlementFailed, SettlementOpen},
	SettlementDistributing: {SettlementSettled, SettlementFailed},
	SettlementFailed:       {SettlementAggregating, SettlementDistributing},
}

// CanTransition reports whether a settlement may move between two statuses.
func CanTransition(from, to SettlementStatus) bool {
	for _, next := range settlementTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends the run. Failed runs stay
// claimable for resume; Settled and NoSurplus are final.
func (s SettlementStatus) Terminal() bool {
	return s == SettlementSettled || s == SettlementNoSurplus
}

// Claimable reports whether a new trigger may take the period lock.
func (s SettlementStatus) Claimable() bool {
	return s == SettlementOpen || s == SettlementFailed
}

// PeriodSettlement is the state of one (tenant, period) processing run.
// At most one non-terminal settlement exists per key; the row doubles as
// the period lock.
type PeriodSettlement struct {
	TenantID      string           `json:"tenant_id"`
	PeriodID      string           `json:"period_id"`
	Status        SettlementStatus `json:"status"`
	RevenuePence  int64            `json:"revenue_pence"`
	CostsPence    int64            `json:"costs_pence"`
	SurplusPence  int64            `json:"surplus_pence"`
	ReservesPence int64            `json:"reserves_pence"`
	BusinessPence int64            `json:"business_pence"`
	DividendPence int64            `json:"dividend_pence"`
	FailureReason string           `json:"failure_reason,omitempty"`
	LockedBy      string           `json:"locked_by,omitempty"`
	LockedAt      *time.Time       `json:"locked_at,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
