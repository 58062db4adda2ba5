package domain

import "time"

// Advance returns the next charge date one period after from. Daily and
// weekly periods are fixed day counts. Monthly and yearly periods preserve
// the day-of-month, clamping to the last valid day of the landing month
// (Jan 31 -> Feb 28, or Feb 29 in a leap year). The advance derives only
// from the stored date, so a clamped date stays on the clamped day for
// subsequent periods.
func Advance(from time.Time, frequency Frequency, skip int) time.Time {
	if skip < 1 {
		skip = 1
	}
	switch frequency {
	case FrequencyDaily:
		return from.AddDate(0, 0, skip)
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7*skip)
	case FrequencyMonthly:
		return addMonthsClamped(from, skip)
	case FrequencyYearly:
		return addMonthsClamped(from, 12*skip)
	default:
		return from
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	// Day 1 of the landing month is safe from normalization overflow.
	anchor := time.Date(year, month+time.Month(months), 1, hour, minute, sec, t.Nanosecond(), t.Location())
	if last := daysIn(anchor.Year(), anchor.Month()); day > last {
		day = last
	}
	return time.Date(anchor.Year(), anchor.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
