// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for advancing recurring
// schedules. Each frequency has its own advancer that encapsulates how
// one period is added to a calendar date.

package services

import (
	"fmt"
	"time"

	"ledger/internal/core"
)

// DateAdvancer is the strategy interface for stepping a recurring
// schedule forward by one period of its frequency.
type DateAdvancer interface {
	// Advance returns the date one period after d.
	Advance(d core.Date) core.Date
}

// WeeklyAdvancer implements DateAdvancer for weekly schedules.
type WeeklyAdvancer struct{}

// Advance adds seven days.
func (WeeklyAdvancer) Advance(d core.Date) core.Date {
	return core.Date{Time: d.AddDate(0, 0, 7)}
}

// BiWeeklyAdvancer implements DateAdvancer for every-two-weeks schedules.
type BiWeeklyAdvancer struct{}

// Advance adds fourteen days.
func (BiWeeklyAdvancer) Advance(d core.Date) core.Date {
	return core.Date{Time: d.AddDate(0, 0, 14)}
}

// MonthlyAdvancer implements DateAdvancer for monthly schedules.
type MonthlyAdvancer struct{}

// Advance moves to the same day of the next month, clamped to the
// month's length: Jan 31 advances to Feb 29 on a leap year, never
// overflowing into March.
func (MonthlyAdvancer) Advance(d core.Date) core.Date {
	year, month, day := d.Year(), d.Month()+1, d.Day()
	if month > 12 {
		month = 1
		year++
	}
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return core.NewDate(year, month, day)
}

// AnnuallyAdvancer implements DateAdvancer for yearly schedules.
type AnnuallyAdvancer struct{}

// Advance moves to the same calendar day next year, clamping Feb 29 to
// Feb 28 on non-leap years.
func (AnnuallyAdvancer) Advance(d core.Date) core.Date {
	year, month, day := d.Year()+1, d.Month(), d.Day()
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return core.NewDate(year, month, day)
}

func lastDayOfMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// advanceStrategies maps frequencies to their corresponding advancers.
var advanceStrategies = map[core.Frequency]DateAdvancer{
	core.Weekly:   WeeklyAdvancer{},
	core.BiWeekly: BiWeeklyAdvancer{},
	core.Monthly:  MonthlyAdvancer{},
	core.Annually: AnnuallyAdvancer{},
}

// GetDateAdvancer returns the advancer for a frequency.
// Returns an error if the frequency is not supported.
func GetDateAdvancer(frequency core.Frequency) (DateAdvancer, error) {
	advancer, ok := advanceStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency %q: %w", frequency, core.ErrInvalidFrequency)
	}
	return advancer, nil
}
