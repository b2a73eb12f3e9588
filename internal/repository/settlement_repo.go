package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/coopfare/engine/internal/domain"
)

// SettlementRepo stores period settlement rows. The row is also the
// (tenant, period) mutual-exclusion lock: a run claims it with a
// compare-and-set update and every status transition is guarded by the
// expected current status, so concurrent triggers cannot interleave.
type SettlementRepo struct {
	db *sql.DB
}

func NewSettlementRepo(db *sql.DB) *SettlementRepo {
	return &SettlementRepo{db: db}
}

// Get returns the settlement row for a (tenant, period).
func (r *SettlementRepo) Get(tenantID, periodID string) (*domain.PeriodSettlement, error) {
	row := r.db.QueryRow(selectSettlement+" WHERE tenant_id = ? AND period_id = ?", tenantID, periodID)
	s, err := scanSettlement(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("settlement %s/%s: %w", tenantID, periodID, domain.ErrNotFound)
	}
	return s, err
}

// Claim takes the period lock. The row is created as Open on first claim.
// A settled period yields ErrDuplicateContribution; a row held by another
// run yields ErrAlreadyRunning. On success the returned row reflects the
// state before this claim, so the caller can decide between a fresh run and
// a resume.
func (r *SettlementRepo) Claim(tenantID, periodID, lockedBy string) (*domain.PeriodSettlement, error) {
	now := time.Now().UTC()
	if _, err := r.db.Exec(
		`INSERT INTO period_settlements (tenant_id, period_id, status, updated_at)
		 VALUES (?,?,?,?)
		 ON CONFLICT(tenant_id, period_id) DO NOTHING`,
		tenantID, periodID, string(domain.SettlementOpen), now.Format(time.RFC3339),
	); err != nil {
		return nil, fmt.Errorf("ensure settlement row: %w", err)
	}

	prior, err := r.Get(tenantID, periodID)
	if err != nil {
		return nil, err
	}

	res, err := r.db.Exec(
		`UPDATE period_settlements SET locked_by = ?, locked_at = ?, updated_at = ?
		 WHERE tenant_id = ? AND period_id = ?
		   AND status IN (?, ?) AND locked_by IS NULL`,
		lockedBy, now.Format(time.RFC3339), now.Format(time.RFC3339),
		tenantID, periodID,
		string(domain.SettlementOpen), string(domain.SettlementFailed),
	)
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if prior.Status.Terminal() {
			return nil, fmt.Errorf("period %s already settled: %w", periodID, domain.ErrDuplicateContribution)
		}
		return nil, fmt.Errorf("period %s/%s: %w", tenantID, periodID, domain.ErrAlreadyRunning)
	}
	return prior, nil
}

// Release drops the period lock if this run still holds it.
func (r *SettlementRepo) Release(tenantID, periodID, lockedBy string) error {
	_, err := r.db.Exec(
		`UPDATE period_settlements SET locked_by = NULL, locked_at = NULL, updated_at = ?
		 WHERE tenant_id = ? AND period_id = ? AND locked_by = ?`,
		time.Now().UTC().Format(time.RFC3339), tenantID, periodID, lockedBy,
	)
	return err
}

// ForceRelease is the operator escape hatch for a run that died without
// releasing its lock. It clears the lock unconditionally and moves a
// mid-pipeline settlement to Failed so the next claim can pick it up.
// Terminal settlements keep their status; only the stale lock is dropped.
func (r *SettlementRepo) ForceRelease(tenantID, periodID, reason string) error {
	s, err := r.Get(tenantID, periodID)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(
		`UPDATE period_settlements SET locked_by = NULL, locked_at = NULL, updated_at = ?
		 WHERE tenant_id = ? AND period_id = ?`,
		time.Now().UTC().Format(time.RFC3339), tenantID, periodID,
	); err != nil {
		return fmt.Errorf("force release: %w", err)
	}
	switch s.Status {
	case domain.SettlementAggregating, domain.SettlementAllocated, domain.SettlementDistributing:
		if err := r.SetFailure(tenantID, periodID, reason); err != nil {
			return err
		}
		return r.Transition(tenantID, periodID, s.Status, domain.SettlementFailed)
	}
	return nil
}

// Transition moves the settlement between statuses, enforcing the state
// machine both in code and with a status-guarded update.
func (r *SettlementRepo) Transition(tenantID, periodID string, from, to domain.SettlementStatus) error {
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("settlement %s/%s: illegal transition %s -> %s", tenantID, periodID, from, to)
	}
	res, err := r.db.Exec(
		`UPDATE period_settlements SET status = ?, updated_at = ?
		 WHERE tenant_id = ? AND period_id = ? AND status = ?`,
		string(to), time.Now().UTC().Format(time.RFC3339),
		tenantID, periodID, string(from),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("settlement %s/%s: status moved under us (expected %s): %w",
			tenantID, periodID, from, domain.ErrAlreadyRunning)
	}
	return nil
}

// SaveTotals stores the aggregation result on the settlement row.
func (r *SettlementRepo) SaveTotals(tenantID, periodID string, revenue, costs, surplus int64) error {
	_, err := r.db.Exec(
		`UPDATE period_settlements SET revenue = ?, costs = ?, surplus = ?, updated_at = ?
		 WHERE tenant_id = ? AND period_id = ?`,
		revenue, costs, surplus, time.Now().UTC().Format(time.RFC3339), tenantID, periodID,
	)
	return err
}

// SavePools stores the allocation result on the settlement row.
func (r *SettlementRepo) SavePools(tenantID, periodID string, reserves, business, dividend int64) error {
	_, err := r.db.Exec(
		`UPDATE period_settlements SET reserves_pool = ?, business_pool = ?, dividend_pool = ?, updated_at = ?
		 WHERE tenant_id = ? AND period_id = ?`,
		reserves, business, dividend, time.Now().UTC().Format(time.RFC3339), tenantID, periodID,
	)
	return err
}

// SetFailure records why a run failed alongside the Failed status.
func (r *SettlementRepo) SetFailure(tenantID, periodID, reason string) error {
	_, err := r.db.Exec(
		`UPDATE period_settlements SET failure_reason = ?, updated_at = ?
		 WHERE tenant_id = ? AND period_id = ?`,
		reason, time.Now().UTC().Format(time.RFC3339), tenantID, periodID,
	)
	return err
}

// ListByTenant returns a tenant's settlements, newest period first.
func (r *SettlementRepo) ListByTenant(tenantID string) ([]domain.PeriodSettlement, error) {
	rows, err := r.db.Query(
		selectSettlement+" WHERE tenant_id = ? ORDER BY period_id DESC", tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PeriodSettlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// CountByStatus returns settlement counts keyed by status, for the
// dashboard.
func (r *SettlementRepo) CountByStatus() (map[string]int, error) {
	rows, err := r.db.Query(
		"SELECT status, COUNT(*) FROM period_settlements GROUP BY status",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

const selectSettlement = `SELECT tenant_id, period_id, status, revenue, costs, surplus,
	reserves_pool, business_pool, dividend_pool, failure_reason, locked_by, locked_at, updated_at
	FROM period_settlements`

func scanSettlement(row rowScanner) (*domain.PeriodSettlement, error) {
	var s domain.PeriodSettlement
	var status, updatedStr string
	var reason, lockedBy, lockedAt sql.NullString

	err := row.Scan(
		&s.TenantID, &s.PeriodID, &status, &s.RevenuePence, &s.CostsPence, &s.SurplusPence,
		&s.ReservesPence, &s.BusinessPence, &s.DividendPence, &reason, &lockedBy, &lockedAt, &updatedStr,
	)
	if err != nil {
		return nil, err
	}

	s.Status = domain.SettlementStatus(status)
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedStr)
	if reason.Valid {
		s.FailureReason = reason.String
	}
	if lockedBy.Valid {
		s.LockedBy = lockedBy.String
	}
	if lockedAt.Valid {
		t, _ := time.Parse(time.RFC3339, lockedAt.String)
		s.LockedAt = &t
	}
	return &s, nil
}
