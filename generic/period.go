package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is an inclusive calendar range [Start, End].
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// YEAR-MONTH - Label for one payroll month
// =============================================================================

// YearMonth is a payroll month, e.g. 2025-04.
type YearMonth struct {
	Year  int
	Month time.Month
}

func YearMonthOf(tp TimePoint) YearMonth { return YearMonth{Year: tp.Year(), Month: tp.Month()} }

// AddMonths moves by n calendar months.
func (ym YearMonth) AddMonths(n int) YearMonth {
	t := time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// Period returns the first..last day of the month.
func (ym YearMonth) Period() Period {
	return Period{Start: StartOfMonth(ym.Year, ym.Month), End: EndOfMonth(ym.Year, ym.Month)}
}

func (ym YearMonth) String() string { return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month)) }

// =============================================================================
// COMPARISON WINDOW - Months before and after an event
// =============================================================================

// MonthsAround returns n months strictly before the month of pivot and n months
// starting with the pivot month itself, both in chronological order.
//
// Examples (n=6, pivot 2025-04-01):
//   before: 2024-10 .. 2025-03
//   after:  2025-04 .. 2025-09
func MonthsAround(pivot TimePoint, n int) (before, after []YearMonth) {
	anchor := YearMonthOf(pivot)
	before = make([]YearMonth, n)
	after = make([]YearMonth, n)
	for i := 0; i < n; i++ {
		before[i] = anchor.AddMonths(i - n)
		after[i] = anchor.AddMonths(i)
	}
	return before, after
}
