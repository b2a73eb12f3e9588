package repository

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/coopfare/engine/internal/domain"
)

// SettingsRepo stores tenant configuration: the fare cost model, the fare
// tier table and the dividend schedule. Invariants (percentages totalling
// 100, non-overlapping exhaustive tiers) are enforced here at write time so
// the engine never loads a defective configuration.
type SettingsRepo struct {
	db *sql.DB
}

func NewSettingsRepo(db *sql.DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

func (r *SettingsRepo) GetFareSettings(tenantID string) (*domain.FareCalculationSettings, error) {
	var s domain.FareCalculationSettings
	err := r.db.QueryRow(
		`SELECT tenant_id, wage_rate_hour, fuel_rate_km, vehicle_rate_km, overhead_trip
		 FROM fare_calculation_settings WHERE tenant_id = ?`, tenantID,
	).Scan(&s.TenantID, &s.WageRateHourPence, &s.FuelRateKmPence, &s.VehicleRateKmPence, &s.OverheadTripPence)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("fare settings for tenant %s: %w", tenantID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveFareSettings upserts a tenant's cost model after validation.
func (r *SettingsRepo) SaveFareSettings(s domain.FareCalculationSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	_, err := r.db.Exec(
		`INSERT INTO fare_calculation_settings
		 (tenant_id, wage_rate_hour, fuel_rate_km, vehicle_rate_km, overhead_trip)
		 VALUES (?,?,?,?,?)
		 ON CONFLICT(tenant_id) DO UPDATE SET
		   wage_rate_hour=excluded.wage_rate_hour,
		   fuel_rate_km=excluded.fuel_rate_km,
		   vehicle_rate_km=excluded.vehicle_rate_km,
		   overhead_trip=excluded.overhead_trip`,
		s.TenantID, s.WageRateHourPence, s.FuelRateKmPence, s.VehicleRateKmPence, s.OverheadTripPence,
	)
	return err
}

func (r *SettingsRepo) GetTiers(tenantID string) ([]domain.FareTier, error) {
	rows, err := r.db.Query(
		`SELECT id, tenant_id, min_passengers, max_passengers, multiplier
		 FROM fare_tiers WHERE tenant_id = ? ORDER BY min_passengers`, tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []domain.FareTier
	for rows.Next() {
		var t domain.FareTier
		var maxNull sql.NullInt64
		if err := rows.Scan(&t.ID, &t.TenantID, &t.MinPassengers, &maxNull, &t.Multiplier); err != nil {
			return nil, err
		}
		if maxNull.Valid {
			t.MaxPassengers = int(maxNull.Int64)
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// ReplaceTiers validates and atomically replaces a tenant's tier table.
func (r *SettingsRepo) ReplaceTiers(tenantID string, tiers []domain.FareTier) error {
	for i := range tiers {
		tiers[i].TenantID = tenantID
		if tiers[i].ID == "" {
			tiers[i].ID = uuid.NewString()
		}
	}
	if err := domain.ValidateTiers(tiers); err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM fare_tiers WHERE tenant_id = ?", tenantID); err != nil {
		return fmt.Errorf("clear tiers: %w", err)
	}
	for _, t := range tiers {
		var maxVal any
		if t.MaxPassengers != 0 {
			maxVal = t.MaxPassengers
		}
		if _, err := tx.Exec(
			`INSERT INTO fare_tiers (id, tenant_id, min_passengers, max_passengers, multiplier)
			 VALUES (?,?,?,?,?)`,
			t.ID, t.TenantID, t.MinPassengers, maxVal, t.Multiplier,
		); err != nil {
			return fmt.Errorf("insert tier: %w", err)
		}
	}
	return tx.Commit()
}

func (r *SettingsRepo) GetSchedule(tenantID string) (*domain.DividendScheduleSettings, error) {
	var s domain.DividendScheduleSettings
	var freq, model string
	var custPct, drvPct int
	var email sql.NullString
	err := r.db.QueryRow(
		`SELECT tenant_id, enabled, frequency, reserves_percent, business_percent, dividend_percent,
		        model, customer_percent, driver_percent, auto_distribute, notification_email
		 FROM dividend_schedule_settings WHERE tenant_id = ?`, tenantID,
	).Scan(&s.TenantID, &s.Enabled, &freq, &s.ReservesPercent, &s.BusinessPercent, &s.DividendPercent,
		&model, &custPct, &drvPct, &s.AutoDistribute, &email)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dividend schedule for tenant %s: %w", tenantID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	s.Frequency = domain.Frequency(freq)
	s.Model, err = domain.NewCooperativeModel(model, custPct, drvPct)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, err)
	}
	if email.Valid {
		s.NotificationEmail = email.String
	}
	return &s, nil
}

// SaveSchedule upserts a tenant's allocation policy. Violations of the
// percentage invariant are rejected here, never deferred to allocation time.
func (r *SettingsRepo) SaveSchedule(s domain.DividendScheduleSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	var email any
	if s.NotificationEmail != "" {
		email = s.NotificationEmail
	}
	_, err := r.db.Exec(
		`INSERT INTO dividend_schedule_settings
		 (tenant_id, enabled, frequency, reserves_percent, business_percent, dividend_percent,
		  model, customer_percent, driver_percent, auto_distribute, notification_email)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(tenant_id) DO UPDATE SET
		   enabled=excluded.enabled,
		   frequency=excluded.frequency,
		   reserves_percent=excluded.reserves_percent,
		   business_percent=excluded.business_percent,
		   dividend_percent=excluded.dividend_percent,
		   model=excluded.model,
		   customer_percent=excluded.customer_percent,
		   driver_percent=excluded.driver_percent,
		   auto_distribute=excluded.auto_distribute,
		   notification_email=excluded.notification_email`,
		s.TenantID, s.Enabled, string(s.Frequency), s.ReservesPercent, s.BusinessPercent, s.DividendPercent,
		string(s.Model.Kind), s.Model.CustomerPercent, s.Model.DriverPercent, s.AutoDistribute, email,
	)
	return err
}

// ListEnabledSchedules returns every tenant schedule the period controller
// should consider on a cycle.
func (r *SettingsRepo) ListEnabledSchedules() ([]domain.DividendScheduleSettings, error) {
	rows, err := r.db.Query(
		`SELECT tenant_id FROM dividend_schedule_settings WHERE enabled = 1`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []domain.DividendScheduleSettings
	for _, id := range ids {
		s, err := r.GetSchedule(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}
