package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/coopfare/engine/internal/domain"
)

// TripRepo stores the append-only arena of trip fare record versions. A
// re-priced trip gets a fresh record; the previous version is flagged
// superseded in the same transaction so readers always see exactly one live
// version per trip.
type TripRepo struct {
	db *sql.DB
}

func NewTripRepo(db *sql.DB) *TripRepo {
	return &TripRepo{db: db}
}

// Insert writes a new fare record and supersedes any live version for the
// same trip atomically.
func (r *TripRepo) Insert(rec *domain.TripFareRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.Exec(
		`UPDATE trip_fare_records SET superseded = 1, superseded_at = ?
		 WHERE trip_id = ? AND tenant_id = ? AND superseded = 0`,
		now.Format(time.RFC3339), rec.TripID, rec.TenantID,
	); err != nil {
		return fmt.Errorf("supersede: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO trip_fare_records
		 (id, trip_id, tenant_id, passenger_count, wage_cost, fuel_cost, vehicle_cost, overhead_cost,
		  base_cost, tier_id, multiplier, fare, completed_at, created_at, superseded)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,0)`,
		rec.ID, rec.TripID, rec.TenantID, rec.PassengerCount,
		rec.Components.WagePence, rec.Components.FuelPence, rec.Components.VehiclePence, rec.Components.OverheadPence,
		rec.BaseCostPence, rec.TierID, rec.Multiplier, rec.FarePence,
		rec.CompletedAt.Format(time.RFC3339), rec.CreatedAt.Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	return tx.Commit()
}

// GetCurrent returns the live (non-superseded) fare record for a trip.
func (r *TripRepo) GetCurrent(tripID string) (*domain.TripFareRecord, error) {
	row := r.db.QueryRow(selectRecord+" WHERE trip_id = ? AND superseded = 0", tripID)
	rec, err := scanTripRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trip %s: %w", tripID, domain.ErrNotFound)
	}
	return rec, err
}

// GetVersions returns every fare record ever written for a trip, newest
// first, for audit.
func (r *TripRepo) GetVersions(tripID string) ([]domain.TripFareRecord, error) {
	rows, err := r.db.Query(selectRecord+" WHERE trip_id = ? ORDER BY created_at DESC", tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTripRecords(rows)
}

// ListForPeriod returns the live fare records whose trip completed inside
// the window. This is the aggregator's revenue input.
func (r *TripRepo) ListForPeriod(tenantID string, from, to time.Time) ([]domain.TripFareRecord, error) {
	rows, err := r.db.Query(
		selectRecord+` WHERE tenant_id = ? AND superseded = 0
		 AND completed_at >= ? AND completed_at < ?`,
		tenantID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTripRecords(rows)
}

type TripFilter struct {
	TenantID string
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}

// List returns live fare records for the API, paginated.
func (r *TripRepo) List(f TripFilter) ([]domain.TripFareRecord, int, error) {
	where, args := buildTripWhere(f)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM trip_fare_records"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := selectRecord + where + " ORDER BY completed_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records, err := collectTripRecords(rows)
	return records, total, err
}

func buildTripWhere(f TripFilter) (string, []any) {
	clauses := []string{"superseded = 0"}
	var args []any

	if f.TenantID != "" {
		clauses = append(clauses, "tenant_id = ?")
		args = append(args, f.TenantID)
	}
	if f.From != nil {
		clauses = append(clauses, "completed_at >= ?")
		args = append(args, f.From.UTC().Format(time.RFC3339))
	}
	if f.To != nil {
		clauses = append(clauses, "completed_at < ?")
		args = append(args, f.To.UTC().Format(time.RFC3339))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

const selectRecord = `SELECT id, trip_id, tenant_id, passenger_count,
	wage_cost, fuel_cost, vehicle_cost, overhead_cost, base_cost,
	tier_id, multiplier, fare, completed_at, created_at, superseded, superseded_at
	FROM trip_fare_records`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTripRecord(row rowScanner) (*domain.TripFareRecord, error) {
	var rec domain.TripFareRecord
	var completedStr, createdStr string
	var supersededAt sql.NullString

	err := row.Scan(
		&rec.ID, &rec.TripID, &rec.TenantID, &rec.PassengerCount,
		&rec.Components.WagePence, &rec.Components.FuelPence, &rec.Components.VehiclePence, &rec.Components.OverheadPence,
		&rec.BaseCostPence, &rec.TierID, &rec.Multiplier, &rec.FarePence,
		&completedStr, &createdStr, &rec.Superseded, &supersededAt,
	)
	if err != nil {
		return nil, err
	}

	rec.CompletedAt, _ = time.Parse(time.RFC3339, completedStr)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	if supersededAt.Valid {
		t, _ := time.Parse(time.RFC3339, supersededAt.String)
		rec.SupersededAt = &t
	}
	return &rec, nil
}

func collectTripRecords(rows *sql.Rows) ([]domain.TripFareRecord, error) {
	var records []domain.TripFareRecord
	for rows.Next() {
		rec, err := scanTripRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}
