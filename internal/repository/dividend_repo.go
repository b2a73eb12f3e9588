package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coopfare/engine/internal/domain"
)

// DividendRepo stores per-member dividend payouts.
type DividendRepo struct {
	db *sql.DB
}

func NewDividendRepo(db *sql.DB) *DividendRepo {
	return &DividendRepo{db: db}
}

// InsertBatch writes a period's dividends in one transaction. Existing rows
// for the same (tenant, period, member) are left untouched so a resumed run
// does not double-create.
func (r *DividendRepo) InsertBatch(dividends []domain.MemberDividend) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO member_dividends
		 (id, tenant_id, period_id, member_type, member_id, amount, status, created_at, paid_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range dividends {
		d := &dividends[i]
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		var paidAt any
		if d.PaidAt != nil {
			paidAt = d.PaidAt.UTC().Format(time.RFC3339)
		}
		res, err := stmt.Exec(
			d.ID, d.TenantID, d.PeriodID, string(d.MemberType), d.MemberID,
			d.AmountPence, string(d.Status), d.CreatedAt.UTC().Format(time.RFC3339), paidAt,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert dividend %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// MarkPaid transitions a pending dividend to paid.
func (r *DividendRepo) MarkPaid(id string, paidAt time.Time) error {
	res, err := r.db.Exec(
		`UPDATE member_dividends SET status = ?, paid_at = ? WHERE id = ? AND status = ?`,
		string(domain.DividendPaid), paidAt.UTC().Format(time.RFC3339), id, string(domain.DividendPending),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("dividend %s not pending: %w", id, domain.ErrNotFound)
	}
	return nil
}

// GetForPeriod returns a period's dividends ordered by member id.
func (r *DividendRepo) GetForPeriod(tenantID, periodID string) ([]domain.MemberDividend, error) {
	rows, err := r.db.Query(
		selectDividend+` WHERE tenant_id = ? AND period_id = ? ORDER BY member_type, member_id`,
		tenantID, periodID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDividends(rows)
}

type DividendFilter struct {
	TenantID   string
	PeriodID   string
	MemberID   string
	MemberType string
	Status     string
	Page       int
	Limit      int
}

func (r *DividendRepo) List(f DividendFilter) ([]domain.MemberDividend, int, error) {
	where, args := buildDividendWhere(f)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM member_dividends"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := selectDividend + where + " ORDER BY created_at DESC, member_id LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	dividends, err := collectDividends(rows)
	return dividends, total, err
}

func buildDividendWhere(f DividendFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.TenantID != "" {
		clauses = append(clauses, "tenant_id = ?")
		args = append(args, f.TenantID)
	}
	if f.PeriodID != "" {
		clauses = append(clauses, "period_id = ?")
		args = append(args, f.PeriodID)
	}
	if f.MemberID != "" {
		clauses = append(clauses, "member_id = ?")
		args = append(args, f.MemberID)
	}
	if f.MemberType != "" {
		clauses = append(clauses, "member_type = ?")
		args = append(args, f.MemberType)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

const selectDividend = `SELECT id, tenant_id, period_id, member_type, member_id,
	amount, status, created_at, paid_at FROM member_dividends`

func collectDividends(rows *sql.Rows) ([]domain.MemberDividend, error) {
	var out []domain.MemberDividend
	for rows.Next() {
		var d domain.MemberDividend
		var memberType, status, createdStr string
		var paidAt sql.NullString
		if err := rows.Scan(&d.ID, &d.TenantID, &d.PeriodID, &memberType, &d.MemberID,
			&d.AmountPence, &status, &createdStr, &paidAt); err != nil {
			return nil, err
		}
		d.MemberType = domain.MemberType(memberType)
		d.Status = domain.DividendStatus(status)
		d.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		if paidAt.Valid {
			t, _ := time.Parse(time.RFC3339, paidAt.String)
			d.PaidAt = &t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
