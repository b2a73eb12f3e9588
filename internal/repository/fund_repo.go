package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coopfare/engine/internal/domain"
)

// FundRepo stores the commonwealth fund ledger: one fund row per tenant plus
// append-only contribution and distribution entries. The fund balance is
// always derived from the entries, never stored.
type FundRepo struct {
	db *sql.DB
}

func NewFundRepo(db *sql.DB) *FundRepo {
	return &FundRepo{db: db}
}

// GetOrCreateFund returns the tenant's fund, creating the row on first use.
func (r *FundRepo) GetOrCreateFund(tenantID string) (*domain.CommonwealthFund, error) {
	if _, err := r.db.Exec(
		`INSERT INTO commonwealth_funds (id, tenant_id) VALUES (?, ?)
		 ON CONFLICT(tenant_id) DO NOTHING`,
		uuid.NewString(), tenantID,
	); err != nil {
		return nil, fmt.Errorf("ensure fund: %w", err)
	}

	var f domain.CommonwealthFund
	if err := r.db.QueryRow(
		"SELECT id, tenant_id FROM commonwealth_funds WHERE tenant_id = ?", tenantID,
	).Scan(&f.ID, &f.TenantID); err != nil {
		return nil, err
	}

	balance, err := r.Balance(f.ID)
	if err != nil {
		return nil, err
	}
	f.BalancePence = balance
	return &f, nil
}

// Balance derives the fund balance as Σcontributions − Σdistributions.
func (r *FundRepo) Balance(fundID string) (int64, error) {
	var in, out sql.NullInt64
	if err := r.db.QueryRow(
		"SELECT SUM(amount) FROM commonwealth_contributions WHERE fund_id = ?", fundID,
	).Scan(&in); err != nil {
		return 0, err
	}
	if err := r.db.QueryRow(
		"SELECT SUM(amount) FROM commonwealth_distributions WHERE fund_id = ?", fundID,
	).Scan(&out); err != nil {
		return 0, err
	}
	return in.Int64 - out.Int64, nil
}

// InsertContribution appends an inflow. The UNIQUE(fund_id, period_id)
// constraint is the at-most-once settlement guard.
func (r *FundRepo) InsertContribution(c *domain.CommonwealthContribution) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := r.db.Exec(
		`INSERT INTO commonwealth_contributions (id, fund_id, period_id, amount, source, created_at)
		 VALUES (?,?,?,?,?,?)`,
		c.ID, c.FundID, c.PeriodID, c.AmountPence, c.Source, c.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("fund %s period %s: %w", c.FundID, c.PeriodID, domain.ErrDuplicateContribution)
	}
	return err
}

// GetContribution returns the contribution for a (fund, period), or
// ErrNotFound.
func (r *FundRepo) GetContribution(fundID, periodID string) (*domain.CommonwealthContribution, error) {
	var c domain.CommonwealthContribution
	var createdStr string
	err := r.db.QueryRow(
		`SELECT id, fund_id, period_id, amount, source, created_at
		 FROM commonwealth_contributions WHERE fund_id = ? AND period_id = ?`,
		fundID, periodID,
	).Scan(&c.ID, &c.FundID, &c.PeriodID, &c.AmountPence, &c.Source, &createdStr)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("contribution for period %s: %w", periodID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	return &c, nil
}

func (r *FundRepo) InsertDistribution(d *domain.CommonwealthDistribution) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := r.db.Exec(
		`INSERT INTO commonwealth_distributions
		 (id, fund_id, period_id, recipient_type, recipient_id, amount, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		d.ID, d.FundID, d.PeriodID, string(d.RecipientType), d.RecipientID,
		d.AmountPence, d.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// SumDistributionsForPeriod totals outflows recorded against one period.
func (r *FundRepo) SumDistributionsForPeriod(fundID, periodID string) (int64, error) {
	var total sql.NullInt64
	err := r.db.QueryRow(
		`SELECT SUM(amount) FROM commonwealth_distributions WHERE fund_id = ? AND period_id = ?`,
		fundID, periodID,
	).Scan(&total)
	return total.Int64, err
}

// ListContributions returns a fund's inflows, newest first.
func (r *FundRepo) ListContributions(fundID string) ([]domain.CommonwealthContribution, error) {
	rows, err := r.db.Query(
		`SELECT id, fund_id, period_id, amount, source, created_at
		 FROM commonwealth_contributions WHERE fund_id = ? ORDER BY created_at DESC`, fundID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CommonwealthContribution
	for rows.Next() {
		var c domain.CommonwealthContribution
		var createdStr string
		if err := rows.Scan(&c.ID, &c.FundID, &c.PeriodID, &c.AmountPence, &c.Source, &createdStr); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListDistributions returns a fund's outflows, newest first.
func (r *FundRepo) ListDistributions(fundID string) ([]domain.CommonwealthDistribution, error) {
	rows, err := r.db.Query(
		`SELECT id, fund_id, period_id, recipient_type, recipient_id, amount, created_at
		 FROM commonwealth_distributions WHERE fund_id = ? ORDER BY created_at DESC`, fundID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CommonwealthDistribution
	for rows.Next() {
		var d domain.CommonwealthDistribution
		var recType, createdStr string
		if err := rows.Scan(&d.ID, &d.FundID, &d.PeriodID, &recType, &d.RecipientID, &d.AmountPence, &createdStr); err != nil {
			return nil, err
		}
		d.RecipientType = domain.MemberType(recType)
		d.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		out = append(out, d)
	}
	return out, rows.Err()
}
