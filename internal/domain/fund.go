package domain

import "time"

// CommonwealthFund is a tenant's cooperative reserve pool. BalancePence is
// always derived as Σcontributions − Σdistributions; it is never settable
// directly and can never go negative.
type CommonwealthFund struct {
	ID           string `json:"id"`
	TenantID     string `json:"tenant_id"`
	BalancePence int64  `json:"balance_pence"`
}

// CommonwealthContribution is an inflow into the fund: one period's dividend
// pool. At most one contribution exists per (fund, period).
type CommonwealthContribution struct {
	ID          string    `json:"id"`
	FundID      string    `json:"fund_id"`
	PeriodID    string    `json:"period_id"`
	AmountPence int64     `json:"amount_pence"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}

// CommonwealthDistribution is an outflow from the fund to a member.
type CommonwealthDistribution struct {
	ID            string     `json:"id"`
	FundID        string     `json:"fund_id"`
	PeriodID      string     `json:"period_id"`
	RecipientType MemberType `json:"recipient_type"`
	RecipientID   string     `json:"recipient_id"`
	AmountPence   int64      `json:"amount_pence"`
	CreatedAt     time.Time  `json:"created_at"`
}

type MemberType string

const (
	MemberCustomer MemberType = "customer"
	MemberDriver   MemberType = "driver"
)

// Member is one eligible cooperative member with its period weight: trips
// taken for passenger co-ops, hours worked for driver co-ops. Weights come
// from the tenant's member directory, not from this engine.
type Member struct {
	ID       string     `json:"id"`
	TenantID string     `json:"tenant_id"`
	Type     MemberType `json:"type"`
	Weight   float64    `json:"weight"`
}

type DividendStatus string

const (
	DividendPending DividendStatus = "pending"
	DividendPaid    DividendStatus = "paid"
)

// MemberDividend is one member's payout for a period. The sum of a period's
// dividends plus the remainder retained in the fund equals the period's
// dividend pool to the penny.
type MemberDividend struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	PeriodID    string         `json:"period_id"`
	MemberType  MemberType     `json:"member_type"`
	MemberID    string         `json:"member_id"`
	AmountPence int64          `json:"amount_pence"`
	Status      DividendStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	PaidAt      *time.Time     `json:"paid_at,omitempty"`
}
