package domain

import (
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		id        string
		wantFreq  Frequency
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{
			id:        "2024-03",
			wantFreq:  FrequencyMonthly,
			wantStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			id:        "2024-12",
			wantFreq:  FrequencyMonthly,
			wantStart: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			id:        "2024-Q1",
			wantFreq:  FrequencyQuarterly,
			wantStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			id:        "2024-Q4",
			wantFreq:  FrequencyQuarterly,
			wantStart: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{id: "2024-Q5", wantErr: true},
		{id: "2024-Q0", wantErr: true},
		{id: "2024-13", wantErr: true},
		{id: "garbage", wantErr: true},
		{id: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			p, err := ParsePeriod(tc.id)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParsePeriod(%q) succeeded, want error", tc.id)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePeriod(%q): %v", tc.id, err)
			}
			if p.Frequency != tc.wantFreq {
				t.Errorf("frequency = %s, want %s", p.Frequency, tc.wantFreq)
			}
			if !p.Start.Equal(tc.wantStart) {
				t.Errorf("start = %v, want %v", p.Start, tc.wantStart)
			}
			if !p.End.Equal(tc.wantEnd) {
				t.Errorf("end = %v, want %v", p.End, tc.wantEnd)
			}
		})
	}
}

func TestLastCompletedPeriod(t *testing.T) {
	tests := []struct {
		name string
		freq Frequency
		now  time.Time
		want string
	}{
		{"monthly mid-month", FrequencyMonthly, time.Date(2024, 4, 15, 12, 0, 0, 0, time.UTC), "2024-03"},
		{"monthly january", FrequencyMonthly, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "2023-12"},
		{"quarterly mid-q2", FrequencyQuarterly, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), "2024-Q1"},
		{"quarterly january", FrequencyQuarterly, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "2023-Q4"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := LastCompletedPeriod(tc.freq, tc.now)
			if got.ID != tc.want {
				t.Errorf("LastCompletedPeriod(%s, %v) = %s, want %s", tc.freq, tc.now, got.ID, tc.want)
			}
			if !got.End.After(got.Start) {
				t.Errorf("period %s has non-positive window", got.ID)
			}
		})
	}
}

func TestPeriodContains(t *testing.T) {
	p, err := ParsePeriod("2024-03")
	if err != nil {
		t.Fatalf("ParsePeriod: %v", err)
	}

	if !p.Contains(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("start boundary should be inside")
	}
	if !p.Contains(time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)) {
		t.Error("last instant of the month should be inside")
	}
	if p.Contains(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("end boundary is exclusive")
	}
	if p.Contains(time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)) {
		t.Error("previous month should be outside")
	}
}
