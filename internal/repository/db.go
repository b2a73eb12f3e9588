package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fare_calculation_settings (
			tenant_id TEXT PRIMARY KEY,
			wage_rate_hour INTEGER NOT NULL,
			fuel_rate_km INTEGER NOT NULL,
			vehicle_rate_km INTEGER NOT NULL,
			overhead_trip INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS fare_tiers (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			min_passengers INTEGER NOT NULL,
			max_passengers INTEGER,
			multiplier TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fare_tiers_tenant ON fare_tiers(tenant_id)`,

		`CREATE TABLE IF NOT EXISTS dividend_schedule_settings (
			tenant_id TEXT PRIMARY KEY,
			enabled INTEGER NOT NULL,
			frequency TEXT NOT NULL,
			reserves_percent INTEGER NOT NULL,
			business_percent INTEGER NOT NULL,
			dividend_percent INTEGER NOT NULL,
			model TEXT NOT NULL,
			customer_percent INTEGER NOT NULL DEFAULT 0,
			driver_percent INTEGER NOT NULL DEFAULT 0,
			auto_distribute INTEGER NOT NULL,
			notification_email TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS trip_fare_records (
			id TEXT PRIMARY KEY,
			trip_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			passenger_count INTEGER NOT NULL,
			wage_cost INTEGER NOT NULL,
			fuel_cost INTEGER NOT NULL,
			vehicle_cost INTEGER NOT NULL,
			overhead_cost INTEGER NOT NULL,
			base_cost INTEGER NOT NULL,
			tier_id TEXT NOT NULL,
			multiplier TEXT NOT NULL,
			fare INTEGER NOT NULL,
			completed_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL,
			superseded INTEGER NOT NULL DEFAULT 0,
			superseded_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trip_fare_records_trip ON trip_fare_records(trip_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trip_fare_records_tenant ON trip_fare_records(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trip_fare_records_completed ON trip_fare_records(completed_at)`,

		`CREATE TABLE IF NOT EXISTS operating_costs (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			category TEXT NOT NULL,
			amount INTEGER NOT NULL,
			incurred_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_operating_costs_tenant ON operating_costs(tenant_id, incurred_at)`,

		`CREATE TABLE IF NOT EXISTS commonwealth_funds (
			id TEXT PRIMARY KEY,
			tenant_id TEXT UNIQUE NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS commonwealth_contributions (
			id TEXT PRIMARY KEY,
			fund_id TEXT NOT NULL,
			period_id TEXT NOT NULL,
			amount INTEGER NOT NULL,
			source TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE (fund_id, period_id),
			FOREIGN KEY (fund_id) REFERENCES commonwealth_funds(id)
		)`,

		`CREATE TABLE IF NOT EXISTS commonwealth_distributions (
			id TEXT PRIMARY KEY,
			fund_id TEXT NOT NULL,
			period_id TEXT NOT NULL,
			recipient_type TEXT NOT NULL,
			recipient_id TEXT NOT NULL,
			amount INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (fund_id) REFERENCES commonwealth_funds(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_commonwealth_distributions_fund ON commonwealth_distributions(fund_id)`,

		`CREATE TABLE IF NOT EXISTS member_dividends (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			period_id TEXT NOT NULL,
			member_type TEXT NOT NULL,
			member_id TEXT NOT NULL,
			amount INTEGER NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			paid_at DATETIME,
			UNIQUE (tenant_id, period_id, member_type, member_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_member_dividends_tenant ON member_dividends(tenant_id, period_id)`,

		`CREATE TABLE IF NOT EXISTS period_settlements (
			tenant_id TEXT NOT NULL,
			period_id TEXT NOT NULL,
			status TEXT NOT NULL,
			revenue INTEGER NOT NULL DEFAULT 0,
			costs INTEGER NOT NULL DEFAULT 0,
			surplus INTEGER NOT NULL DEFAULT 0,
			reserves_pool INTEGER NOT NULL DEFAULT 0,
			business_pool INTEGER NOT NULL DEFAULT 0,
			dividend_pool INTEGER NOT NULL DEFAULT 0,
			failure_reason TEXT,
			locked_by TEXT,
			locked_at DATETIME,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (tenant_id, period_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_period_settlements_status ON period_settlements(status)`,

		`CREATE TABLE IF NOT EXISTS members (
			tenant_id TEXT NOT NULL,
			member_id TEXT NOT NULL,
			member_type TEXT NOT NULL,
			weight REAL NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (tenant_id, member_id, member_type)
		)`,

		`CREATE TABLE IF NOT EXISTS trip_import_batches (
			id TEXT PRIMARY KEY,
			file_hash TEXT UNIQUE NOT NULL,
			trip_count INTEGER NOT NULL,
			ingested_at DATETIME NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:60], err)
		}
	}

	return nil
}
