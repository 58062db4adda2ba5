package domain

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAdvanceDailyAndWeekly(t *testing.T) {
	from := date(2024, time.March, 10)

	if got := Advance(from, FrequencyDaily, 1); !got.Equal(date(2024, time.March, 11)) {
		t.Fatalf("daily: got %v", got)
	}
	if got := Advance(from, FrequencyDaily, 10); !got.Equal(date(2024, time.March, 20)) {
		t.Fatalf("daily skip 10: got %v", got)
	}
	if got := Advance(from, FrequencyWeekly, 1); !got.Equal(date(2024, time.March, 17)) {
		t.Fatalf("weekly: got %v", got)
	}
	if got := Advance(from, FrequencyWeekly, 2); !got.Equal(date(2024, time.March, 24)) {
		t.Fatalf("weekly skip 2: got %v", got)
	}
}

func TestAdvanceMonthlyClampsToShortMonth(t *testing.T) {
	// Jan 31 lands on the last day of February.
	if got := Advance(date(2023, time.January, 31), FrequencyMonthly, 1); !got.Equal(date(2023, time.February, 28)) {
		t.Fatalf("non-leap: got %v", got)
	}
	if got := Advance(date(2024, time.January, 31), FrequencyMonthly, 1); !got.Equal(date(2024, time.February, 29)) {
		t.Fatalf("leap: got %v", got)
	}
}

func TestAdvanceMonthlyClampIsSticky(t *testing.T) {
	// Once clamped to Feb 28, later periods stay on the 28th.
	clamped := Advance(date(2023, time.January, 31), FrequencyMonthly, 1)
	next := Advance(clamped, FrequencyMonthly, 1)
	if !next.Equal(date(2023, time.March, 28)) {
		t.Fatalf("expected Mar 28, got %v", next)
	}
}

func TestAdvanceMonthlyNoOverflow(t *testing.T) {
	// A naive AddDate would roll Jan 31 + 1 month into March 2/3.
	got := Advance(date(2023, time.January, 31), FrequencyMonthly, 1)
	if got.Month() != time.February {
		t.Fatalf("overflowed into %v", got.Month())
	}
}

func TestAdvanceMonthlySkipMultiplies(t *testing.T) {
	if got := Advance(date(2024, time.January, 15), FrequencyMonthly, 3); !got.Equal(date(2024, time.April, 15)) {
		t.Fatalf("quarterly: got %v", got)
	}
	if got := Advance(date(2023, time.December, 31), FrequencyMonthly, 2); !got.Equal(date(2024, time.February, 29)) {
		t.Fatalf("bimonthly across year: got %v", got)
	}
}

func TestAdvanceYearly(t *testing.T) {
	if got := Advance(date(2024, time.June, 1), FrequencyYearly, 1); !got.Equal(date(2025, time.June, 1)) {
		t.Fatalf("yearly: got %v", got)
	}
	// Feb 29 clamps to Feb 28 in a non-leap year.
	if got := Advance(date(2024, time.February, 29), FrequencyYearly, 1); !got.Equal(date(2025, time.February, 28)) {
		t.Fatalf("leap day: got %v", got)
	}
	if got := Advance(date(2024, time.February, 29), FrequencyYearly, 4); !got.Equal(date(2028, time.February, 29)) {
		t.Fatalf("leap to leap: got %v", got)
	}
}

func TestAdvanceZeroSkipTreatedAsOne(t *testing.T) {
	if got := Advance(date(2024, time.March, 10), FrequencyDaily, 0); !got.Equal(date(2024, time.March, 11)) {
		t.Fatalf("zero skip: got %v", got)
	}
}

func TestDueDateFor(t *testing.T) {
	template := RecurringCharge{TimeToPayDays: 14}
	chargeDate := date(2024, time.March, 1)
	if got := template.DueDateFor(chargeDate); !got.Equal(date(2024, time.March, 15)) {
		t.Fatalf("due date: got %v", got)
	}

	immediate := RecurringCharge{TimeToPayDays: 0}
	if got := immediate.DueDateFor(chargeDate); !got.Equal(chargeDate) {
		t.Fatalf("zero ttp due date: got %v", got)
	}
}

func TestFrequencyValid(t *testing.T) {
	for _, f := range []Frequency{FrequencyYearly, FrequencyMonthly, FrequencyWeekly, FrequencyDaily} {
		if !f.Valid() {
			t.Fatalf("%s should be valid", f)
		}
	}
	if Frequency("HOURLY").Valid() {
		t.Fatalf("unknown frequency should be invalid")
	}
}
