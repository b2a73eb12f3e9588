package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/coopfare/engine/internal/domain"
	"github.com/coopfare/engine/internal/repository"
	"github.com/coopfare/engine/internal/settlement"
)

// Scheduler triggers period settlement for each tenant at its configured
// frequency. Each cycle it settles the most recent fully-elapsed period of
// every enabled tenant; locks held elsewhere and already-settled periods
// are skipped and retried next cycle.
type Scheduler struct {
	settingsRepo   *repository.SettingsRepo
	settlementRepo *repository.SettlementRepo
	runner         *settlement.Runner
	interval       time.Duration
}

func New(settingsRepo *repository.SettingsRepo, settlementRepo *repository.SettlementRepo, runner *settlement.Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		settingsRepo:   settingsRepo,
		settlementRepo: settlementRepo,
		runner:         runner,
		interval:       interval,
	}
}

// Run loops until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("[scheduler] Started, interval %s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[scheduler] Stopped")
			return
		case <-ticker.C:
			s.Cycle(ctx)
		}
	}
}

// Cycle runs one pass over every enabled tenant schedule.
func (s *Scheduler) Cycle(ctx context.Context) {
	schedules, err := s.settingsRepo.ListEnabledSchedules()
	if err != nil {
		log.Printf("[scheduler] ERROR: list schedules: %v", err)
		return
	}

	now := time.Now()
	for _, sched := range schedules {
		period := domain.LastCompletedPeriod(sched.Frequency, now)
		s.trigger(ctx, sched.TenantID, period.ID)
	}
}

func (s *Scheduler) trigger(ctx context.Context, tenantID, periodID string) {
	// Skip periods that already reached a final state without burning a
	// claim on them.
	if existing, err := s.settlementRepo.Get(tenantID, periodID); err == nil {
		if existing.Status.Terminal() {
			return
		}
	}

	result, err := s.runner.RunPeriod(ctx, tenantID, periodID)
	switch {
	case err == nil:
		log.Printf("[scheduler] Settled %s/%s: status=%s", tenantID, periodID, result.Status)
	case errors.Is(err, domain.ErrAlreadyRunning):
		log.Printf("[scheduler] %s/%s already running, retry next cycle", tenantID, periodID)
	case errors.Is(err, domain.ErrDuplicateContribution):
		// Settled by a concurrent trigger between our check and the claim.
	default:
		log.Printf("[scheduler] ERROR: run %s/%s: %v", tenantID, periodID, err)
	}
}
