package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coopfare/engine/internal/domain"
)

// CostRepo stores standalone operating costs recorded against a tenant.
type CostRepo struct {
	db *sql.DB
}

func NewCostRepo(db *sql.DB) *CostRepo {
	return &CostRepo{db: db}
}

func (r *CostRepo) Insert(c *domain.OperatingCost) error {
	if c.AmountPence < 0 {
		return fmt.Errorf("%w: operating cost must be non-negative", domain.ErrInvalidCostInput)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := r.db.Exec(
		`INSERT INTO operating_costs (id, tenant_id, category, amount, incurred_at)
		 VALUES (?,?,?,?,?)`,
		c.ID, c.TenantID, c.Category, c.AmountPence, c.IncurredAt.UTC().Format(time.RFC3339),
	)
	return err
}

// SumForPeriod totals operating costs incurred inside the window.
func (r *CostRepo) SumForPeriod(tenantID string, from, to time.Time) (int64, error) {
	var total sql.NullInt64
	err := r.db.QueryRow(
		`SELECT SUM(amount) FROM operating_costs
		 WHERE tenant_id = ? AND incurred_at >= ? AND incurred_at < ?`,
		tenantID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339),
	).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}

// ListForPeriod returns the cost entries inside the window, oldest first.
func (r *CostRepo) ListForPeriod(tenantID string, from, to time.Time) ([]domain.OperatingCost, error) {
	rows, err := r.db.Query(
		`SELECT id, tenant_id, category, amount, incurred_at FROM operating_costs
		 WHERE tenant_id = ? AND incurred_at >= ? AND incurred_at < ?
		 ORDER BY incurred_at`,
		tenantID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var costs []domain.OperatingCost
	for rows.Next() {
		var c domain.OperatingCost
		var incurredStr string
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Category, &c.AmountPence, &incurredStr); err != nil {
			return nil, err
		}
		c.IncurredAt, _ = time.Parse(time.RFC3339, incurredStr)
		costs = append(costs, c)
	}
	return costs, rows.Err()
}
