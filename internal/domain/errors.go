package domain

import "errors"

// Sentinel errors surfaced by the engine. Callers compare with errors.Is;
// repositories and services wrap them with context via fmt.Errorf("%w").
var (
	// ErrTierGap indicates no fare tier covers the passenger count. A gap in
	// the tier table is a configuration defect, never silently defaulted.
	ErrTierGap = errors.New("no fare tier matches passenger count")

	// ErrInvalidCostInput rejects a single trip calculation without aborting
	// the surrounding run.
	ErrInvalidCostInput = errors.New("invalid cost input")

	// ErrSettingsInvariant indicates allocation percentages do not total 100.
	ErrSettingsInvariant = errors.New("allocation percentages must total 100")

	// ErrDuplicateContribution enforces at-most-once settlement per
	// tenant-period.
	ErrDuplicateContribution = errors.New("contribution already recorded for period")

	// ErrInsufficientFunds indicates a distribution would take the
	// commonwealth fund balance negative.
	ErrInsufficientFunds = errors.New("insufficient commonwealth fund balance")

	// ErrNoEligibleMembers indicates a positive dividend pool with nobody to
	// pay; the pool is retained in the fund.
	ErrNoEligibleMembers = errors.New("no eligible members for dividend pool")

	// ErrAlreadyRunning indicates the (tenant, period) settlement lock is
	// held by another run. Fail fast, retry next cycle.
	ErrAlreadyRunning = errors.New("settlement already in progress for period")

	// ErrNotResumable indicates a failed settlement cannot be resumed
	// automatically and needs manual review.
	ErrNotResumable = errors.New("settlement requires manual review")

	ErrNotFound = errors.New("not found")
)
