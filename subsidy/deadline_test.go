package subsidy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/subsidy"
)

var tokyo = time.FixedZone("JST", 9*60*60)

func TestDaysRemaining_TimeOfDayIgnored(t *testing.T) {
	// GIVEN: Deadline late on the same calendar day as now
	// THEN: Due today, exactly 0
	deadline := time.Date(2025, 6, 10, 23, 0, 0, 0, tokyo)
	now := time.Date(2025, 6, 10, 1, 0, 0, 0, tokyo)

	assert.Equal(t, 0, subsidy.CalculateDaysRemaining(deadline, now))
}

func TestDaysRemaining_YesterdayIsMinusOne(t *testing.T) {
	deadline := time.Date(2025, 6, 9, 0, 0, 0, 0, tokyo)
	now := time.Date(2025, 6, 10, 18, 30, 0, 0, tokyo)

	assert.Equal(t, -1, subsidy.CalculateDaysRemaining(deadline, now))
}

func TestDaysRemaining_AcrossMonthAndYear(t *testing.T) {
	now := time.Date(2025, 12, 30, 9, 0, 0, 0, tokyo)

	assert.Equal(t, 2, subsidy.CalculateDaysRemaining(time.Date(2026, 1, 1, 0, 0, 0, 0, tokyo), now))
	assert.Equal(t, 62, subsidy.CalculateDaysRemaining(time.Date(2026, 3, 2, 0, 0, 0, 0, tokyo), now))
}

func TestBucketFor_Boundaries(t *testing.T) {
	cases := []struct {
		days int
		want subsidy.DeadlineBucket
	}{
		{-30, subsidy.BucketOverdue},
		{-1, subsidy.BucketOverdue},
		{0, subsidy.BucketUrgent},
		{7, subsidy.BucketUrgent},
		{8, subsidy.BucketSoon},
		{14, subsidy.BucketSoon},
		{15, subsidy.BucketUpcoming},
		{30, subsidy.BucketUpcoming},
		{31, subsidy.BucketNormal},
		{365, subsidy.BucketNormal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, subsidy.BucketFor(tc.days), "days=%d", tc.days)
	}
}

func TestDeriveApplicationView(t *testing.T) {
	// GIVEN: An application due in 5 days
	app := subsidy.Application{
		ID:                  "app-1",
		Status:              subsidy.StatusDocumentsReady,
		ApplicationDeadline: generic.NewTimePoint(2025, 6, 15),
	}
	now := time.Date(2025, 6, 10, 22, 0, 0, 0, tokyo)

	// WHEN: Deriving
	view := subsidy.DeriveApplicationView(app, now)

	// THEN: Countdown, bucket and label are filled; the record is untouched
	assert.True(t, view.HasDeadline)
	assert.Equal(t, 5, view.DaysRemaining)
	assert.Equal(t, subsidy.BucketUrgent, view.Bucket)
	assert.Equal(t, "書類準備完了", view.StatusLabel)
	assert.Equal(t, app, view.Application)
}

func TestDeriveApplicationView_NoDeadline(t *testing.T) {
	view := subsidy.DeriveApplicationView(subsidy.Application{Status: subsidy.StatusPreparing}, time.Now())

	assert.False(t, view.HasDeadline)
	assert.Equal(t, subsidy.BucketNone, view.Bucket)
	assert.Equal(t, 0, view.DaysRemaining)
}

func TestDeriveApplicationView_RecomputedAsTimeMoves(t *testing.T) {
	app := subsidy.Application{ApplicationDeadline: generic.NewTimePoint(2025, 6, 10)}

	before := subsidy.DeriveApplicationView(app, time.Date(2025, 6, 9, 12, 0, 0, 0, tokyo))
	after := subsidy.DeriveApplicationView(app, time.Date(2025, 6, 11, 12, 0, 0, 0, tokyo))

	assert.Equal(t, 1, before.DaysRemaining)
	assert.Equal(t, -1, after.DaysRemaining)
	assert.Equal(t, subsidy.BucketOverdue, after.Bucket)
}

func TestSuggestDeadline(t *testing.T) {
	tests := []struct {
		conversion generic.TimePoint
		want       string
	}{
		{generic.NewTimePoint(2025, 4, 1), "2025-11-30"},
		{generic.NewTimePoint(2025, 1, 15), "2025-09-14"},
		// No 30th in February: the window ends on the month's last day.
		{generic.NewTimePoint(2025, 6, 30), "2026-02-28"},
		{generic.NewTimePoint(2025, 8, 31), "2026-04-30"},
		{generic.NewTimePoint(2023, 6, 29), "2024-02-28"},
		{generic.NewTimePoint(2023, 6, 30), "2024-02-29"},
	}
	for _, tt := range tests {
		t.Run(tt.conversion.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, subsidy.SuggestDeadline(tt.conversion).String())
		})
	}
}

func TestSummarizeDeadlines_SkipsClosed(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, tokyo)
	apps := []subsidy.Application{
		{Status: subsidy.StatusPreparing, ApplicationDeadline: generic.NewTimePoint(2025, 5, 30)},
		{Status: subsidy.StatusPreparing, ApplicationDeadline: generic.NewTimePoint(2025, 6, 3)},
		{Status: subsidy.StatusDocumentsReady, ApplicationDeadline: generic.NewTimePoint(2025, 6, 20)},
		{Status: subsidy.StatusSubmitted, ApplicationDeadline: generic.NewTimePoint(2025, 5, 1)},
		{Status: subsidy.StatusPreparing},
	}

	summary := subsidy.SummarizeDeadlines(apps, now)

	assert.Equal(t, 1, summary[subsidy.BucketOverdue])
	assert.Equal(t, 1, summary[subsidy.BucketUrgent])
	assert.Equal(t, 1, summary[subsidy.BucketUpcoming])
	assert.Equal(t, 1, summary[subsidy.BucketNone])
	assert.Equal(t, 0, summary[subsidy.BucketSoon])
}

func TestDueWithin_SortedMostUrgentFirst(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, tokyo)
	apps := []subsidy.Application{
		{ID: "far", Status: subsidy.StatusPreparing, ApplicationDeadline: generic.NewTimePoint(2025, 9, 1)},
		{ID: "soon", Status: subsidy.StatusPreparing, ApplicationDeadline: generic.NewTimePoint(2025, 6, 10)},
		{ID: "late", Status: subsidy.StatusPreparing, ApplicationDeadline: generic.NewTimePoint(2025, 5, 25)},
		{ID: "done", Status: subsidy.StatusPaid, ApplicationDeadline: generic.NewTimePoint(2025, 6, 2)},
	}

	due := subsidy.DueWithin(apps, now, 14)

	if assert.Len(t, due, 2) {
		assert.Equal(t, generic.ApplicationID("late"), due[0].ID)
		assert.Equal(t, generic.ApplicationID("soon"), due[1].ID)
	}
}
