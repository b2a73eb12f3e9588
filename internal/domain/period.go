package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// Period is one settlement window for a tenant. IDs are "2024-03" for
// monthly periods and "2024-Q1" for quarterly ones. Boundaries are
// half-open [Start, End) in UTC.
type Period struct {
	ID        string    `json:"id"`
	Frequency Frequency `json:"frequency"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// ParsePeriod parses a period ID and derives its boundaries.
func ParsePeriod(id string) (Period, error) {
	if i := strings.Index(id, "-Q"); i > 0 {
		year, err := strconv.Atoi(id[:i])
		if err != nil {
			return Period{}, fmt.Errorf("invalid period %q", id)
		}
		q, err := strconv.Atoi(id[i+2:])
		if err != nil || q < 1 || q > 4 {
			return Period{}, fmt.Errorf("invalid period %q", id)
		}
		start := time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
		return Period{
			ID:        id,
			Frequency: FrequencyQuarterly,
			Start:     start,
			End:       start.AddDate(0, 3, 0),
		}, nil
	}

	t, err := time.Parse("2006-01", id)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q", id)
	}
	return Period{
		ID:        id,
		Frequency: FrequencyMonthly,
		Start:     t,
		End:       t.AddDate(0, 1, 0),
	}, nil
}

// LastCompletedPeriod returns the most recent period of the given frequency
// that has fully elapsed at the reference time. This is the period the
// scheduler settles on each cycle.
func LastCompletedPeriod(freq Frequency, now time.Time) Period {
	now = now.UTC()
	switch freq {
	case FrequencyQuarterly:
		q := (int(now.Month())-1)/3 + 1 // current quarter, 1-based
		year := now.Year()
		q--
		if q == 0 {
			q = 4
			year--
		}
		p, _ := ParsePeriod(fmt.Sprintf("%d-Q%d", year, q))
		return p
	default:
		prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		p, _ := ParsePeriod(prev.Format("2006-01"))
		return p
	}
}

// Contains reports whether t falls inside the period window.
func (p Period) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(p.Start) && t.Before(p.End)
}
