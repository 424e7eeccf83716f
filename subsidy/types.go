// Package subsidy implements the career-up subsidy domain: the 3% wage-increase
// eligibility test, deadline and status derivation for applications, the
// document checklist, and the records tracked per client company.
package subsidy

import (
	"github.com/warp/careerup/generic"
)

// Period labels used to tag validation messages.
const (
	PeriodPre  = "転換前"
	PeriodPost = "転換後"
)

// MonthlySalaryRecord is one calendar month of pay for one worker on one side
// of the conversion.
type MonthlySalaryRecord struct {
	YearMonth string // label only; never used in arithmetic

	BaseSalary      generic.Amount
	FixedAllowances generic.Amount // paid every month unconditionally; counted

	// Tracked for display. Never counted toward the wage test.
	OvertimePay        generic.Amount
	CommutingAllowance generic.Amount

	WorkDays          int // actual attendance days
	ScheduledWorkDays int // contractually scheduled days; 0 means "not prorated"
}

// IsShortMonth reports whether fewer days were worked than scheduled.
func (r MonthlySalaryRecord) IsShortMonth() bool {
	return r.ScheduledWorkDays > 0 && r.WorkDays < r.ScheduledWorkDays
}

// SalaryComparisonSet holds six months before and six months after a conversion.
// Order is chronological by convention; sums do not depend on it.
type SalaryComparisonSet struct {
	Pre  []MonthlySalaryRecord
	Post []MonthlySalaryRecord
}

// ComparisonMonths returns the payroll month labels to collect for a conversion:
// six months before the conversion month and six months from it onwards.
func ComparisonMonths(conversionDate generic.TimePoint) (pre, post []string) {
	before, after := generic.MonthsAround(conversionDate, DefaultPolicy().MonthsPerPeriod)
	pre = make([]string, len(before))
	post = make([]string, len(after))
	for i := range before {
		pre[i] = before[i].String()
		post[i] = after[i].String()
	}
	return pre, post
}
