package ledger

import (
	"errors"
	"testing"

	"github.com/coopfare/engine/internal/domain"
	"github.com/coopfare/engine/internal/repository"
)

func setupService(t *testing.T) *Service {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	return NewService(repository.NewFundRepo(db))
}

func TestRecordContribution(t *testing.T) {
	svc := setupService(t)

	c, err := svc.RecordContribution("coop-x", "2024-03", 50_000)
	if err != nil {
		t.Fatalf("RecordContribution: %v", err)
	}
	if c.AmountPence != 50_000 {
		t.Errorf("amount = %d, want 50000", c.AmountPence)
	}

	balance, err := svc.Balance("coop-x")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 50_000 {
		t.Errorf("balance = %d, want 50000", balance)
	}

	// A second contribution for the same period is the double-count guard.
	_, err = svc.RecordContribution("coop-x", "2024-03", 10_000)
	if !errors.Is(err, domain.ErrDuplicateContribution) {
		t.Fatalf("second contribution: got %v, want ErrDuplicateContribution", err)
	}

	// A different period is fine, and so is the same period for another
	// tenant.
	if _, err := svc.RecordContribution("coop-x", "2024-04", 10_000); err != nil {
		t.Errorf("next period: %v", err)
	}
	if _, err := svc.RecordContribution("coop-y", "2024-03", 10_000); err != nil {
		t.Errorf("other tenant: %v", err)
	}
}

func TestRecordContributionRejectsNonPositive(t *testing.T) {
	svc := setupService(t)
	for _, amount := range []int64{0, -500} {
		if _, err := svc.RecordContribution("coop-x", "2024-03", amount); err == nil {
			t.Errorf("contribution of %d accepted", amount)
		}
	}
}

func TestRecordDistribution(t *testing.T) {
	svc := setupService(t)

	if _, err := svc.RecordContribution("coop-x", "2024-03", 10_000); err != nil {
		t.Fatalf("seed contribution: %v", err)
	}

	if _, err := svc.RecordDistribution("coop-x", "2024-03", domain.MemberDriver, "drv-a", 6_000); err != nil {
		t.Fatalf("RecordDistribution: %v", err)
	}

	balance, err := svc.Balance("coop-x")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 4_000 {
		t.Errorf("balance = %d, want 4000", balance)
	}

	// Drawing past the derived balance must fail.
	_, err = svc.RecordDistribution("coop-x", "2024-03", domain.MemberDriver, "drv-b", 4_001)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("overdraw: got %v, want ErrInsufficientFunds", err)
	}

	// Exactly the remaining balance empties the fund.
	if _, err := svc.RecordDistribution("coop-x", "2024-03", domain.MemberDriver, "drv-b", 4_000); err != nil {
		t.Fatalf("drain fund: %v", err)
	}
	balance, _ = svc.Balance("coop-x")
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}
}

func TestFundView(t *testing.T) {
	svc := setupService(t)

	if _, err := svc.RecordContribution("coop-x", "2024-03", 10_000); err != nil {
		t.Fatalf("contribution: %v", err)
	}
	if _, err := svc.RecordContribution("coop-x", "2024-04", 5_000); err != nil {
		t.Fatalf("contribution: %v", err)
	}
	if _, err := svc.RecordDistribution("coop-x", "2024-03", domain.MemberCustomer, "cus-a", 2_500); err != nil {
		t.Fatalf("distribution: %v", err)
	}

	view, err := svc.Fund("coop-x")
	if err != nil {
		t.Fatalf("Fund: %v", err)
	}
	if view.Fund.BalancePence != 12_500 {
		t.Errorf("balance = %d, want 12500", view.Fund.BalancePence)
	}
	if len(view.Contributions) != 2 {
		t.Errorf("got %d contributions, want 2", len(view.Contributions))
	}
	if len(view.Distributions) != 1 {
		t.Errorf("got %d distributions, want 1", len(view.Distributions))
	}

	// An untouched tenant gets an empty fund with zero balance.
	empty, err := svc.Fund("coop-new")
	if err != nil {
		t.Fatalf("Fund for new tenant: %v", err)
	}
	if empty.Fund.BalancePence != 0 || len(empty.Contributions) != 0 {
		t.Error("new tenant fund should start empty")
	}
}
