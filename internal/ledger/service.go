package ledger

import (
	"fmt"
	"log"
	"time"

	"github.com/coopfare/engine/internal/currency"
	"github.com/coopfare/engine/internal/domain"
	"github.com/coopfare/engine/internal/repository"
)

// Service is the commonwealth fund ledger: an append-only record of money
// entering and leaving a tenant's cooperative fund. The fund balance is
// derived from the entries, never written directly, which preserves
// balance = Σcontributions − Σdistributions.
//
// Read-then-write sequences here (duplicate check, balance check) are only
// safe because every caller holds the (tenant, period) settlement lock.
type Service struct {
	fundRepo *repository.FundRepo
}

func NewService(fundRepo *repository.FundRepo) *Service {
	return &Service{fundRepo: fundRepo}
}

// RecordContribution appends one period's dividend-pool inflow. A second
// contribution for the same (tenant, period) fails with
// ErrDuplicateContribution, the at-most-once settlement guard.
func (s *Service) RecordContribution(tenantID, periodID string, amountPence int64) (*domain.CommonwealthContribution, error) {
	if amountPence <= 0 {
		return nil, fmt.Errorf("contribution must be positive, got %s", currency.Format(amountPence))
	}

	fund, err := s.fundRepo.GetOrCreateFund(tenantID)
	if err != nil {
		return nil, fmt.Errorf("load fund: %w", err)
	}

	if _, err := s.fundRepo.GetContribution(fund.ID, periodID); err == nil {
		return nil, fmt.Errorf("period %s: %w", periodID, domain.ErrDuplicateContribution)
	}

	c := &domain.CommonwealthContribution{
		FundID:      fund.ID,
		PeriodID:    periodID,
		AmountPence: amountPence,
		Source:      "surplus_allocation",
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.fundRepo.InsertContribution(c); err != nil {
		return nil, err
	}

	log.Printf("[ledger] Recorded contribution %s for tenant %s period %s",
		currency.Format(amountPence), tenantID, periodID)
	return c, nil
}

// GetContribution returns the recorded contribution for a tenant-period, or
// ErrNotFound if the period has not been allocated yet.
func (s *Service) GetContribution(tenantID, periodID string) (*domain.CommonwealthContribution, error) {
	fund, err := s.fundRepo.GetOrCreateFund(tenantID)
	if err != nil {
		return nil, err
	}
	return s.fundRepo.GetContribution(fund.ID, periodID)
}

// RecordDistribution appends one outflow to a member. The amount must not
// exceed the fund's current derived balance; drawing the balance negative
// is an invariant violation, not a recoverable condition.
func (s *Service) RecordDistribution(tenantID, periodID string, recipientType domain.MemberType, recipientID string, amountPence int64) (*domain.CommonwealthDistribution, error) {
	if amountPence <= 0 {
		return nil, fmt.Errorf("distribution must be positive, got %s", currency.Format(amountPence))
	}

	fund, err := s.fundRepo.GetOrCreateFund(tenantID)
	if err != nil {
		return nil, fmt.Errorf("load fund: %w", err)
	}

	balance, err := s.fundRepo.Balance(fund.ID)
	if err != nil {
		return nil, fmt.Errorf("derive balance: %w", err)
	}
	if amountPence > balance {
		return nil, fmt.Errorf("distribution %s exceeds balance %s: %w",
			currency.Format(amountPence), currency.Format(balance), domain.ErrInsufficientFunds)
	}

	d := &domain.CommonwealthDistribution{
		FundID:        fund.ID,
		PeriodID:      periodID,
		RecipientType: recipientType,
		RecipientID:   recipientID,
		AmountPence:   amountPence,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.fundRepo.InsertDistribution(d); err != nil {
		return nil, err
	}
	return d, nil
}

// FundView is the fund with its ledger entries, for audit.
type FundView struct {
	Fund          domain.CommonwealthFund           `json:"fund"`
	Contributions []domain.CommonwealthContribution `json:"contributions"`
	Distributions []domain.CommonwealthDistribution `json:"distributions"`
}

// Fund returns a tenant's fund with derived balance and full ledger.
func (s *Service) Fund(tenantID string) (*FundView, error) {
	fund, err := s.fundRepo.GetOrCreateFund(tenantID)
	if err != nil {
		return nil, err
	}
	contributions, err := s.fundRepo.ListContributions(fund.ID)
	if err != nil {
		return nil, err
	}
	distributions, err := s.fundRepo.ListDistributions(fund.ID)
	if err != nil {
		return nil, err
	}
	return &FundView{
		Fund:          *fund,
		Contributions: contributions,
		Distributions: distributions,
	}, nil
}

// PeriodPayout sums the distributions already paid out for one period.
func (s *Service) PeriodPayout(tenantID, periodID string) (int64, error) {
	fund, err := s.fundRepo.GetOrCreateFund(tenantID)
	if err != nil {
		return 0, err
	}
	return s.fundRepo.SumDistributionsForPeriod(fund.ID, periodID)
}

// Balance returns the derived balance for a tenant's fund.
func (s *Service) Balance(tenantID string) (int64, error) {
	fund, err := s.fundRepo.GetOrCreateFund(tenantID)
	if err != nil {
		return 0, err
	}
	return fund.BalancePence, nil
}
