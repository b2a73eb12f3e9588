package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coopfare/engine/internal/domain"
	"github.com/coopfare/engine/internal/ledger"
	"github.com/coopfare/engine/internal/repository"
	"github.com/coopfare/engine/internal/settlement"
)

func setupScheduler(t *testing.T) (*Scheduler, *repository.SettingsRepo, *repository.SettlementRepo, *repository.TripRepo, *repository.MemberRepo) {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	settingsRepo := repository.NewSettingsRepo(db)
	settlementRepo := repository.NewSettlementRepo(db)
	tripRepo := repository.NewTripRepo(db)
	costRepo := repository.NewCostRepo(db)
	memberRepo := repository.NewMemberRepo(db)
	ledgerSvc := ledger.NewService(repository.NewFundRepo(db))
	runner := settlement.NewRunner(settingsRepo, settlementRepo, repository.NewDividendRepo(db),
		settlement.NewAggregator(tripRepo, costRepo), ledgerSvc, memberRepo)

	return New(settingsRepo, settlementRepo, runner, time.Minute), settingsRepo, settlementRepo, tripRepo, memberRepo
}

func TestCycleSettlesLastCompletedPeriod(t *testing.T) {
	sched, settingsRepo, settlementRepo, tripRepo, memberRepo := setupScheduler(t)

	err := settingsRepo.SaveSchedule(domain.DividendScheduleSettings{
		TenantID:        "coop-x",
		Enabled:         true,
		Frequency:       domain.FrequencyMonthly,
		ReservesPercent: 20,
		BusinessPercent: 30,
		DividendPercent: 50,
		Model:           domain.WorkerModel(),
		AutoDistribute:  true,
	})
	if err != nil {
		t.Fatalf("save schedule: %v", err)
	}
	m := domain.Member{ID: "drv-a", TenantID: "coop-x", Type: domain.MemberDriver, Weight: 100}
	if err := memberRepo.Upsert(m, true); err != nil {
		t.Fatalf("upsert member: %v", err)
	}

	// A trip inside the period the scheduler is due to settle.
	period := domain.LastCompletedPeriod(domain.FrequencyMonthly, time.Now())
	trip := domain.TripFareRecord{
		ID: uuid.NewString(), TripID: "trip-1", TenantID: "coop-x",
		PassengerCount: 1, BaseCostPence: 10_000, FarePence: 30_000,
		Components: domain.CostComponents{WagePence: 10_000},
		TierID:     "t1", Multiplier: "1.00",
		CompletedAt: period.Start.Add(24 * time.Hour), CreatedAt: time.Now().UTC(),
	}
	if err := tripRepo.Insert(&trip); err != nil {
		t.Fatalf("insert trip: %v", err)
	}

	sched.Cycle(context.Background())

	st, err := settlementRepo.Get("coop-x", period.ID)
	if err != nil {
		t.Fatalf("get settlement: %v", err)
	}
	if st.Status != domain.SettlementSettled {
		t.Fatalf("status = %s, want settled", st.Status)
	}

	// The next cycle sees the terminal settlement and leaves it alone.
	before := st.UpdatedAt
	sched.Cycle(context.Background())
	st, err = settlementRepo.Get("coop-x", period.ID)
	if err != nil {
		t.Fatalf("get settlement again: %v", err)
	}
	if !st.UpdatedAt.Equal(before) {
		t.Error("second cycle touched a settled period")
	}
}

func TestCycleSkipsDisabledTenants(t *testing.T) {
	sched, settingsRepo, settlementRepo, _, _ := setupScheduler(t)

	err := settingsRepo.SaveSchedule(domain.DividendScheduleSettings{
		TenantID:        "coop-off",
		Enabled:         false,
		Frequency:       domain.FrequencyMonthly,
		ReservesPercent: 20,
		BusinessPercent: 30,
		DividendPercent: 50,
		Model:           domain.WorkerModel(),
	})
	if err != nil {
		t.Fatalf("save schedule: %v", err)
	}

	sched.Cycle(context.Background())

	period := domain.LastCompletedPeriod(domain.FrequencyMonthly, time.Now())
	if _, err := settlementRepo.Get("coop-off", period.ID); err == nil {
		t.Error("disabled tenant was settled")
	}
}
