// Package services provides business logic and orchestration services.
//
// This file implements the strategy registry for recurring transaction
// schedules. Each interval (daily, weekly, monthly, yearly) has its own
// stepper that computes the next occurrence on the calendar.

package services

import (
	"fmt"
	"time"

	"savvycent/internal/core"
)

// IntervalStepper is the strategy interface for advancing a recurring schedule.
type IntervalStepper interface {
	// Next returns the occurrence after from. anchor is the template's
	// original date; calendar steppers use its day of month so that a schedule
	// starting on the 31st returns to the 31st after a short month.
	Next(from, anchor time.Time) time.Time
}

// DailyStepper advances by one calendar day.
type DailyStepper struct{}

func (DailyStepper) Next(from, _ time.Time) time.Time {
	return startOfDay(from).AddDate(0, 0, 1)
}

// WeeklyStepper advances by seven days.
type WeeklyStepper struct{}

func (WeeklyStepper) Next(from, _ time.Time) time.Time {
	return startOfDay(from).AddDate(0, 0, 7)
}

// MonthlyStepper advances by one calendar month, clamping the day to the
// last day of the target month.
type MonthlyStepper struct{}

func (MonthlyStepper) Next(from, anchor time.Time) time.Time {
	from = from.UTC()
	return clampedDate(from.Year(), from.Month()+1, anchorDay(from, anchor))
}

// YearlyStepper advances by one calendar year. Feb 29 maps to Feb 28 in
// non-leap years.
type YearlyStepper struct{}

func (YearlyStepper) Next(from, anchor time.Time) time.Time {
	from = from.UTC()
	return clampedDate(from.Year()+1, from.Month(), anchorDay(from, anchor))
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// anchorDay keeps the template's day of month when from sits on it (or on
// its clamped value in a short month); otherwise from's own day wins.
func anchorDay(from, anchor time.Time) int {
	if anchor.IsZero() {
		return from.Day()
	}
	day := anchor.UTC().Day()
	if from.Day() == min(day, daysIn(from.Year(), from.Month())) {
		return day
	}
	return from.Day()
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampedDate builds year-month-day at midnight UTC, normalizing month
// overflow first and then capping day at the month's length.
func clampedDate(year int, month time.Month, day int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	day = min(day, daysIn(first.Year(), first.Month()))
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// intervalSteppers maps recurring intervals to their steppers.
var intervalSteppers = map[core.RecurringInterval]IntervalStepper{
	core.Daily:   DailyStepper{},
	core.Weekly:  WeeklyStepper{},
	core.Monthly: MonthlyStepper{},
	core.Yearly:  YearlyStepper{},
}

// GetIntervalStepper returns the stepper for an interval.
func GetIntervalStepper(interval core.RecurringInterval) (IntervalStepper, error) {
	stepper, ok := intervalSteppers[interval]
	if !ok {
		return nil, fmt.Errorf("unknown recurring interval %q: %w", interval, core.ErrValidation)
	}
	return stepper, nil
}

// NextRecurringDate computes the occurrence following from for the given interval.
func NextRecurringDate(from, anchor time.Time, interval core.RecurringInterval) (time.Time, error) {
	stepper, err := GetIntervalStepper(interval)
	if err != nil {
		return time.Time{}, err
	}
	return stepper.Next(from, anchor), nil
}
