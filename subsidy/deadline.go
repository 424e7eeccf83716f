/*
deadline.go - Presentation fields derived from a stored application

PURPOSE:
  Everything shown next to an application that is not stored: days until
  the filing deadline, the urgency bucket, and the status label.
  Derived on every read so a record never carries a stale countdown.

DAYS REMAINING:
  Both the deadline and "now" are truncated to their calendar date first,
  then differenced in whole days. Time of day never matters:

    deadline 2025-06-10 23:00, now 2025-06-10 01:00  ->  0
    deadline 2025-06-09,       now 2025-06-10        -> -1

  The caller picks the wall clock (the desk runs in Asia/Tokyo).

BUCKETS:
  days < 0      overdue
  0..7          urgent
  8..14         soon
  15..30        upcoming
  > 30          normal
  no deadline   none

SEE ALSO:
  - eligibility.go: the wage test
  - api/scheduler.go: periodic bucket counts for alerting
*/
package subsidy

import (
	"sort"
	"time"

	"github.com/warp/careerup/generic"
)

// DeadlineBucket is the urgency class of a deadline.
type DeadlineBucket string

const (
	BucketOverdue  DeadlineBucket = "overdue"
	BucketUrgent   DeadlineBucket = "urgent"
	BucketSoon     DeadlineBucket = "soon"
	BucketUpcoming DeadlineBucket = "upcoming"
	BucketNormal   DeadlineBucket = "normal"
	BucketNone     DeadlineBucket = "none"
)

// AllBuckets lists buckets from most to least urgent.
func AllBuckets() []DeadlineBucket {
	return []DeadlineBucket{BucketOverdue, BucketUrgent, BucketSoon, BucketUpcoming, BucketNormal, BucketNone}
}

// CalculateDaysRemaining returns whole calendar days from now's date to the
// deadline's date. Negative once the deadline has passed.
func CalculateDaysRemaining(deadline, now time.Time) int {
	return generic.DaysBetween(generic.DateOf(now), generic.DateOf(deadline))
}

// BucketFor classifies a days-remaining value.
func BucketFor(daysRemaining int) DeadlineBucket {
	switch {
	case daysRemaining < 0:
		return BucketOverdue
	case daysRemaining <= 7:
		return BucketUrgent
	case daysRemaining <= 14:
		return BucketSoon
	case daysRemaining <= 30:
		return BucketUpcoming
	default:
		return BucketNormal
	}
}

// ApplicationView is an application plus its derived presentation fields.
type ApplicationView struct {
	Application

	HasDeadline   bool
	DaysRemaining int // meaningful only when HasDeadline
	Bucket        DeadlineBucket
	StatusLabel   string
}

// DeriveApplicationView computes the presentation fields of app as of now.
func DeriveApplicationView(app Application, now time.Time) ApplicationView {
	view := ApplicationView{
		Application: app,
		StatusLabel: StatusLabel(app.Status),
		Bucket:      BucketNone,
	}
	if !app.HasDeadline() {
		return view
	}
	view.HasDeadline = true
	view.DaysRemaining = generic.DaysBetween(generic.DateOf(now), app.ApplicationDeadline)
	view.Bucket = BucketFor(view.DaysRemaining)
	return view
}

// DeriveAll maps DeriveApplicationView over apps.
func DeriveAll(apps []Application, now time.Time) []ApplicationView {
	out := make([]ApplicationView, len(apps))
	for i, a := range apps {
		out[i] = DeriveApplicationView(a, now)
	}
	return out
}

// SuggestDeadline proposes a filing deadline for a conversion date: the
// post-conversion wage period runs six months, and the filing window closes
// two months after that. Eight months counted from the conversion day end
// the day before the same day eight months on, or on the last day of that
// month when it has no such day (2025-06-30 gives 2026-02-28).
func SuggestDeadline(conversion generic.TimePoint) generic.TimePoint {
	target := conversion.AddMonths(8)
	if target.Day() < conversion.Day() {
		return target
	}
	return target.AddDays(-1)
}

// DeadlineSummary counts open applications per bucket.
type DeadlineSummary map[DeadlineBucket]int

// SummarizeDeadlines buckets every open application. Closed applications
// (submitted or later) are skipped.
func SummarizeDeadlines(apps []Application, now time.Time) DeadlineSummary {
	summary := DeadlineSummary{}
	for _, b := range AllBuckets() {
		summary[b] = 0
	}
	for _, a := range apps {
		if a.Status.IsClosed() {
			continue
		}
		summary[DeriveApplicationView(a, now).Bucket]++
	}
	return summary
}

// DueWithin returns open applications whose deadline is at most days away,
// overdue ones included, most urgent first.
func DueWithin(apps []Application, now time.Time, days int) []ApplicationView {
	var out []ApplicationView
	for _, a := range apps {
		if a.Status.IsClosed() || !a.HasDeadline() {
			continue
		}
		v := DeriveApplicationView(a, now)
		if v.DaysRemaining <= days {
			out = append(out, v)
		}
	}
	sortByUrgency(out)
	return out
}

func sortByUrgency(views []ApplicationView) {
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].DaysRemaining < views[j].DaysRemaining
	})
}
