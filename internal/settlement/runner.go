package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/coopfare/engine/internal/currency"
	"github.com/coopfare/engine/internal/domain"
	"github.com/coopfare/engine/internal/ledger"
	"github.com/coopfare/engine/internal/repository"
)

// MemberProvider yields eligible members and their period weights. The
// weighting itself (trips taken, hours worked) belongs to the tenant's
// member directory, not to this engine.
type MemberProvider interface {
	EligibleMembers(tenantID string, model domain.CooperativeModel) ([]domain.Member, error)
}

// Runner executes the settlement lifecycle for one (tenant, period):
// claim → aggregate → allocate → contribute → distribute → settle.
// Runs for different tenants and non-overlapping periods proceed
// concurrently; the claimed settlement row serialises everything else.
type Runner struct {
	settingsRepo   *repository.SettingsRepo
	settlementRepo *repository.SettlementRepo
	dividendRepo   *repository.DividendRepo
	aggregator     *Aggregator
	ledger         *ledger.Service
	members        MemberProvider
}

func NewRunner(
	settingsRepo *repository.SettingsRepo,
	settlementRepo *repository.SettlementRepo,
	dividendRepo *repository.DividendRepo,
	aggregator *Aggregator,
	ledgerSvc *ledger.Service,
	members MemberProvider,
) *Runner {
	return &Runner{
		settingsRepo:   settingsRepo,
		settlementRepo: settlementRepo,
		dividendRepo:   dividendRepo,
		aggregator:     aggregator,
		ledger:         ledgerSvc,
		members:        members,
	}
}

// SettlementStatus reports the state of one tenant-period run.
func (r *Runner) SettlementStatus(tenantID, periodID string) (*domain.PeriodSettlement, error) {
	return r.settlementRepo.Get(tenantID, periodID)
}

// RunPeriod runs (or resumes) the settlement for one tenant-period. A held
// lock fails fast with ErrAlreadyRunning; a settled period fails with
// ErrDuplicateContribution and performs no writes. Cancellation via ctx is
// honoured only before the contribution is committed: once money enters
// the ledger the run goes to Settled or explicit Failed, never half-undone.
func (r *Runner) RunPeriod(ctx context.Context, tenantID, periodID string) (*domain.PeriodSettlement, error) {
	period, err := domain.ParsePeriod(periodID)
	if err != nil {
		return nil, err
	}

	settings, err := r.settingsRepo.GetSchedule(tenantID)
	if err != nil {
		return nil, fmt.Errorf("load schedule settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if settings.Frequency != period.Frequency {
		return nil, fmt.Errorf("period %s is %s but tenant %s settles %s",
			periodID, period.Frequency, tenantID, settings.Frequency)
	}

	runID := uuid.NewString()
	prior, err := r.settlementRepo.Claim(tenantID, periodID, runID)
	if err != nil {
		return nil, err
	}
	defer r.settlementRepo.Release(tenantID, periodID, runID)

	log.Printf("[settlement] Run %s claimed %s/%s (prior status=%s)", runID[:8], tenantID, periodID, prior.Status)

	if prior.Status == domain.SettlementFailed {
		if _, err := r.ledger.GetContribution(tenantID, periodID); err == nil {
			// Money is already in the ledger; recovery must resume from the
			// recorded contribution. Re-aggregating would double-count and
			// the duplicate-contribution guard would reject it anyway.
			return r.resume(tenantID, periodID, *settings, prior)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		log.Printf("[settlement] %s/%s: no contribution recorded, restarting failed run", tenantID, periodID)
		if err := r.settlementRepo.Transition(tenantID, periodID, domain.SettlementFailed, domain.SettlementAggregating); err != nil {
			return nil, err
		}
	} else {
		if err := r.settlementRepo.Transition(tenantID, periodID, domain.SettlementOpen, domain.SettlementAggregating); err != nil {
			return nil, err
		}
	}

	return r.execute(ctx, tenantID, period, *settings)
}

// execute runs the pipeline from Aggregating to a terminal status.
func (r *Runner) execute(ctx context.Context, tenantID string, period domain.Period, settings domain.DividendScheduleSettings) (*domain.PeriodSettlement, error) {
	periodID := period.ID

	// Aggregation and allocation are pure; the run is still cancellable.
	if err := r.cancelled(ctx, tenantID, periodID, domain.SettlementAggregating); err != nil {
		return nil, err
	}

	agg, err := r.aggregator.Aggregate(tenantID, period)
	if err != nil {
		return nil, r.fail(tenantID, periodID, domain.SettlementAggregating, err)
	}
	if err := r.settlementRepo.SaveTotals(tenantID, periodID, agg.RevenuePence, agg.CostsPence, agg.SurplusPence); err != nil {
		return nil, r.fail(tenantID, periodID, domain.SettlementAggregating, err)
	}

	if agg.SurplusPence <= 0 {
		log.Printf("[settlement] %s/%s: surplus %s, nothing to allocate",
			tenantID, periodID, currency.Format(agg.SurplusPence))
		if err := r.settlementRepo.Transition(tenantID, periodID, domain.SettlementAggregating, domain.SettlementNoSurplus); err != nil {
			return nil, err
		}
		return r.settlementRepo.Get(tenantID, periodID)
	}

	pools, err := AllocateSurplus(agg.SurplusPence, settings)
	if err != nil {
		return nil, r.fail(tenantID, periodID, domain.SettlementAggregating, err)
	}
	if err := r.settlementRepo.SavePools(tenantID, periodID, pools.ReservesPence, pools.BusinessPence, pools.DividendPence); err != nil {
		return nil, r.fail(tenantID, periodID, domain.SettlementAggregating, err)
	}
	if err := r.settlementRepo.Transition(tenantID, periodID, domain.SettlementAggregating, domain.SettlementAllocated); err != nil {
		return nil, err
	}

	log.Printf("[settlement] %s/%s: surplus=%s -> reserves=%s business=%s dividend=%s",
		tenantID, periodID, currency.Format(agg.SurplusPence),
		currency.Format(pools.ReservesPence), currency.Format(pools.BusinessPence), currency.Format(pools.DividendPence))

	if pools.DividendPence == 0 {
		log.Printf("[settlement] %s/%s: dividend pool is empty, nothing to contribute", tenantID, periodID)
		if err := r.settlementRepo.Transition(tenantID, periodID, domain.SettlementAllocated, domain.SettlementSettled); err != nil {
			return nil, err
		}
		return r.settlementRepo.Get(tenantID, periodID)
	}

	// Last cancellation point: nothing has entered the ledger yet.
	if err := r.cancelled(ctx, tenantID, periodID, domain.SettlementAllocated); err != nil {
		return nil, err
	}

	if _, err := r.ledger.RecordContribution(tenantID, periodID, pools.DividendPence); err != nil {
		return nil, r.fail(tenantID, periodID, domain.SettlementAllocated, err)
	}
	if err := r.settlementRepo.Transition(tenantID, periodID, domain.SettlementAllocated, domain.SettlementDistributing); err != nil {
		return nil, err
	}

	if err := r.distribute(tenantID, periodID, pools.DividendPence, settings); err != nil {
		return nil, err
	}
	return r.settlementRepo.Get(tenantID, periodID)
}

// resume picks a Failed run back up from its recorded contribution.
func (r *Runner) resume(tenantID, periodID string, settings domain.DividendScheduleSettings, prior *domain.PeriodSettlement) (*domain.PeriodSettlement, error) {
	log.Printf("[settlement] %s/%s: resuming distribution from recorded contribution of %s",
		tenantID, periodID, currency.Format(prior.DividendPence))
	if err := r.settlementRepo.Transition(tenantID, periodID, domain.SettlementFailed, domain.SettlementDistributing); err != nil {
		return nil, err
	}
	if err := r.distribute(tenantID, periodID, prior.DividendPence, settings); err != nil {
		return nil, err
	}
	return r.settlementRepo.Get(tenantID, periodID)
}

// distribute creates the period's member dividends and, under
// auto-distribute, pays them out of the fund. Safe to re-run: dividend rows
// are created at most once per member and only pending rows are paid.
func (r *Runner) distribute(tenantID, periodID string, poolPence int64, settings domain.DividendScheduleSettings) error {
	members, err := r.members.EligibleMembers(tenantID, settings.Model)
	if err != nil {
		return r.fail(tenantID, periodID, domain.SettlementDistributing, err)
	}

	dist, err := DistributeDividends(poolPence, settings.Model, members)
	if errors.Is(err, domain.ErrNoEligibleMembers) {
		// Non-fatal: the pool stays in the commonwealth fund.
		log.Printf("[settlement] %s/%s: no eligible members, %s retained in fund",
			tenantID, periodID, currency.Format(poolPence))
		return r.settlementRepo.Transition(tenantID, periodID, domain.SettlementDistributing, domain.SettlementSettled)
	}
	if err != nil {
		return r.fail(tenantID, periodID, domain.SettlementDistributing, err)
	}
	if dist.RetainedPence > 0 {
		log.Printf("[settlement] %s/%s: %s retained in fund (no eligible group)",
			tenantID, periodID, currency.Format(dist.RetainedPence))
	}

	now := time.Now().UTC()
	dividends := make([]domain.MemberDividend, 0, len(dist.Shares))
	for _, share := range dist.Shares {
		dividends = append(dividends, domain.MemberDividend{
			TenantID:    tenantID,
			PeriodID:    periodID,
			MemberType:  share.Member.Type,
			MemberID:    share.Member.ID,
			AmountPence: share.AmountPence,
			Status:      domain.DividendPending,
			CreatedAt:   now,
		})
	}
	if _, err := r.dividendRepo.InsertBatch(dividends); err != nil {
		return r.fail(tenantID, periodID, domain.SettlementDistributing, err)
	}

	if settings.AutoDistribute {
		if err := r.payPending(tenantID, periodID); err != nil {
			return r.fail(tenantID, periodID, domain.SettlementDistributing, err)
		}
	}

	return r.settlementRepo.Transition(tenantID, periodID, domain.SettlementDistributing, domain.SettlementSettled)
}

// payPending pays every pending dividend of the period out of the fund.
// Rows already paid by an earlier attempt are skipped, which is what makes
// resume safe.
func (r *Runner) payPending(tenantID, periodID string) error {
	dividends, err := r.dividendRepo.GetForPeriod(tenantID, periodID)
	if err != nil {
		return err
	}
	paid := 0
	for _, d := range dividends {
		if d.Status != domain.DividendPending {
			continue
		}
		if _, err := r.ledger.RecordDistribution(tenantID, periodID, d.MemberType, d.MemberID, d.AmountPence); err != nil {
			return fmt.Errorf("pay member %s: %w", d.MemberID, err)
		}
		if err := r.dividendRepo.MarkPaid(d.ID, time.Now()); err != nil {
			return fmt.Errorf("mark paid %s: %w", d.ID, err)
		}
		paid++
	}
	log.Printf("[settlement] %s/%s: paid %d member dividends", tenantID, periodID, paid)
	return nil
}

// cancelled checks ctx at a suspension point where cancellation is still
// allowed and, if cancelled, rewinds the settlement to Open.
func (r *Runner) cancelled(ctx context.Context, tenantID, periodID string, from domain.SettlementStatus) error {
	if ctx.Err() == nil {
		return nil
	}
	log.Printf("[settlement] %s/%s: run cancelled in %s", tenantID, periodID, from)
	if err := r.settlementRepo.Transition(tenantID, periodID, from, domain.SettlementOpen); err != nil {
		return err
	}
	return ctx.Err()
}

// fail moves the settlement to Failed with the cause recorded, so tenant
// administration sees the specific failure pending manual resume.
func (r *Runner) fail(tenantID, periodID string, from domain.SettlementStatus, cause error) error {
	log.Printf("[settlement] %s/%s: FAILED in %s: %v", tenantID, periodID, from, cause)
	if err := r.settlementRepo.SetFailure(tenantID, periodID, cause.Error()); err != nil {
		log.Printf("[settlement] WARNING: record failure reason: %v", err)
	}
	if err := r.settlementRepo.Transition(tenantID, periodID, from, domain.SettlementFailed); err != nil {
		log.Printf("[settlement] WARNING: transition to failed: %v", err)
	}
	return cause
}
