package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/coopfare/engine/internal/api"
	"github.com/coopfare/engine/internal/domain"
	"github.com/coopfare/engine/internal/fare"
	"github.com/coopfare/engine/internal/ingestion"
	"github.com/coopfare/engine/internal/ledger"
	"github.com/coopfare/engine/internal/repository"
	"github.com/coopfare/engine/internal/scheduler"
	"github.com/coopfare/engine/internal/settlement"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment as-is")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "coopfare.db"
	}

	interval := time.Minute
	if v := os.Getenv("SCHEDULER_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("Bad SCHEDULER_INTERVAL %q: %v", v, err)
		}
		interval = d
	}

	log.Printf("Initializing database at %s", dbPath)
	db, err := repository.InitDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to init DB: %v", err)
	}
	defer db.Close()

	// Create repositories.
	settingsRepo := repository.NewSettingsRepo(db)
	tripRepo := repository.NewTripRepo(db)
	costRepo := repository.NewCostRepo(db)
	fundRepo := repository.NewFundRepo(db)
	dividendRepo := repository.NewDividendRepo(db)
	settlementRepo := repository.NewSettlementRepo(db)
	memberRepo := repository.NewMemberRepo(db)

	// Create services.
	ledgerSvc := ledger.NewService(fundRepo)
	calculator := fare.NewCalculator(settingsRepo, tripRepo)
	aggregator := settlement.NewAggregator(tripRepo, costRepo)
	runner := settlement.NewRunner(settingsRepo, settlementRepo, dividendRepo, aggregator, ledgerSvc, memberRepo)
	ingestionSvc := ingestion.NewService(db, calculator)

	// Seed tenants if DB is empty.
	count, err := memberRepo.Count()
	if err != nil {
		log.Fatalf("Failed to count members: %v", err)
	}
	if count == 0 {
		log.Println("Database is empty, seeding from testdata...")
		if err := seed(settingsRepo, memberRepo, ingestionSvc); err != nil {
			log.Printf("WARNING: Failed to seed: %v", err)
		}
	} else {
		log.Printf("Database already has %d members, skipping seed", count)
	}

	// Period controller runs in the background for tenants with an
	// enabled schedule.
	sched := scheduler.New(settingsRepo, settlementRepo, runner, interval)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	// Create router.
	router := api.NewRouter(api.Deps{
		SettingsRepo:   settingsRepo,
		TripRepo:       tripRepo,
		CostRepo:       costRepo,
		DividendRepo:   dividendRepo,
		SettlementRepo: settlementRepo,
		MemberRepo:     memberRepo,
		Ledger:         ledgerSvc,
		Calculator:     calculator,
		Runner:         runner,
		Ingestion:      ingestionSvc,
	})

	log.Printf("Cooperative Fare & Surplus Distribution Engine")
	log.Printf("Listening on http://localhost:%s", port)
	log.Printf("API base: http://localhost:%s/api/v1", port)
	log.Printf("")
	log.Printf("Endpoints:")
	log.Printf("  POST   /api/v1/trips/import")
	log.Printf("  POST   /api/v1/trips/{tripID}/fare")
	log.Printf("  GET    /api/v1/trips/{tripID}/fare")
	log.Printf("  GET    /api/v1/trips")
	log.Printf("  POST   /api/v1/tenants/{tenantID}/periods/{periodID}/run")
	log.Printf("  GET    /api/v1/tenants/{tenantID}/periods/{periodID}/settlement")
	log.Printf("  GET    /api/v1/tenants/{tenantID}/settlements")
	log.Printf("  GET    /api/v1/tenants/{tenantID}/fund")
	log.Printf("  PUT    /api/v1/tenants/{tenantID}/settings/fares")
	log.Printf("  PUT    /api/v1/tenants/{tenantID}/settings/schedule")
	log.Printf("  POST   /api/v1/tenants/{tenantID}/costs")
	log.Printf("  POST   /api/v1/tenants/{tenantID}/members")
	log.Printf("  GET    /api/v1/dividends")
	log.Printf("  GET    /api/v1/dashboard")

	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// seedFile mirrors testdata/seed.json: per-tenant configuration plus a
// batch of completed trips to price on first boot.
type seedFile struct {
	Tenants []struct {
		FareSettings domain.FareCalculationSettings  `json:"fare_settings"`
		Tiers        []domain.FareTier               `json:"tiers"`
		Schedule     domain.DividendScheduleSettings `json:"schedule"`
		Members      []domain.Member                 `json:"members"`
	} `json:"tenants"`
	Trips []fare.TripInput `json:"trips"`
}

func seed(settingsRepo *repository.SettingsRepo, memberRepo *repository.MemberRepo, ingestionSvc *ingestion.Service) error {
	// Try multiple possible locations for testdata.
	candidates := []string{
		"testdata/seed.json",
		filepath.Join(".", "testdata", "seed.json"),
	}

	// Also try to find relative to the executable.
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(dir, "testdata", "seed.json"),
			filepath.Join(dir, "..", "..", "testdata", "seed.json"),
		)
	}

	var data []byte
	var loadErr error
	for _, path := range candidates {
		data, loadErr = os.ReadFile(path)
		if loadErr == nil {
			log.Printf("Loaded seed data from %s", path)
			break
		}
	}
	if loadErr != nil {
		return fmt.Errorf("could not find seed.json in any candidate path: %w", loadErr)
	}

	var sf seedFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("unmarshal seed file: %w", err)
	}

	for _, t := range sf.Tenants {
		if err := settingsRepo.SaveFareSettings(t.FareSettings); err != nil {
			return fmt.Errorf("seed fare settings for %s: %w", t.FareSettings.TenantID, err)
		}
		if err := settingsRepo.ReplaceTiers(t.FareSettings.TenantID, t.Tiers); err != nil {
			return fmt.Errorf("seed tiers for %s: %w", t.FareSettings.TenantID, err)
		}
		if err := settingsRepo.SaveSchedule(t.Schedule); err != nil {
			return fmt.Errorf("seed schedule for %s: %w", t.Schedule.TenantID, err)
		}
		for _, m := range t.Members {
			if err := memberRepo.Upsert(m, true); err != nil {
				return fmt.Errorf("seed member %s: %w", m.ID, err)
			}
		}
		log.Printf("Seeded tenant %s (%d tiers, %d members)",
			t.FareSettings.TenantID, len(t.Tiers), len(t.Members))
	}

	if len(sf.Trips) > 0 {
		tripData, err := json.Marshal(sf.Trips)
		if err != nil {
			return fmt.Errorf("marshal seed trips: %w", err)
		}
		res, err := ingestionSvc.ImportTrips(tripData)
		if err != nil {
			return fmt.Errorf("import seed trips: %w", err)
		}
		log.Printf("Seeded trips: %d priced, %d rejected", res.TripsPriced, res.TripsRejected)
	}

	return nil
}
