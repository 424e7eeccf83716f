/*
scheduler.go - Deadline monitor

PURPOSE:
  Periodically walks every office's applications, counts open ones per
  deadline bucket and logs those that are overdue or due within a week.
  The counts feed the applications_by_deadline_bucket gauge so that an
  alert can fire before a filing window closes.

DESIGN:
  - Runs a background loop with a configurable check interval
  - First pass happens immediately on start
  - Submitted and later applications are ignored
  - The last pass is kept for GET /api/monitor and the CLI

CONFIGURATION:
  - Interval: How often to check (default: 1 hour)
  - Location: Time zone of the desk's calendar (default: JST)

USAGE:
  monitor := NewDeadlineMonitor(repo, metricsManager)
  go monitor.Run(ctx)   // or monitor.Start() / monitor.Stop()

SEE ALSO:
  - subsidy/deadline.go: bucket rules
  - metrics/metrics.go: SetBucketCounts, RecordMonitorRun
*/
package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/metrics"
	"github.com/warp/careerup/subsidy"
)

// DefaultMonitorInterval is used when no interval is configured.
const DefaultMonitorInterval = time.Hour

// OfficeReport is the outcome of one pass for one office.
type OfficeReport struct {
	OfficeID generic.OfficeID `json:"office_id"`
	Buckets  map[string]int   `json:"buckets"`
	Overdue  []string         `json:"overdue"`
	Urgent   []string         `json:"urgent"`
}

// MonitorReport is the outcome of one pass.
type MonitorReport struct {
	RanAt   time.Time      `json:"ran_at"`
	Offices []OfficeReport `json:"offices"`
	Errors  []string       `json:"errors,omitempty"`
}

// DeadlineMonitor watches filing deadlines across offices.
type DeadlineMonitor struct {
	Repo     subsidy.Repository
	Metrics  *metrics.Manager
	Interval time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
	// Location decides which calendar date "today" is. It must match the
	// Handler's so badges and alerts agree.
	Location *time.Location

	mu     sync.Mutex
	last   *MonitorReport
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDeadlineMonitor creates a monitor with the default interval.
func NewDeadlineMonitor(repo subsidy.Repository, m *metrics.Manager) *DeadlineMonitor {
	if m == nil {
		m = metrics.NewManager()
	}
	return &DeadlineMonitor{
		Repo:     repo,
		Metrics:  m,
		Interval: DefaultMonitorInterval,
		Logger:   slog.New(slog.DiscardHandler),
		Now:      time.Now,
		Location: defaultLocation,
	}
}

// Run checks once immediately, then on every tick until ctx is done.
func (dm *DeadlineMonitor) Run(ctx context.Context) error {
	interval := dm.Interval
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	dm.Logger.Info("deadline monitor started", "interval", interval)

	dm.RunNow(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			dm.RunNow(ctx)
		case <-ctx.Done():
			dm.Logger.Info("deadline monitor stopped")
			return nil
		}
	}
}

// Start runs the monitor in the background until Stop is called.
func (dm *DeadlineMonitor) Start() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	dm.cancel = cancel
	dm.wg.Add(1)
	go func() {
		defer dm.wg.Done()
		_ = dm.Run(ctx)
	}()
}

// Stop halts a monitor started with Start and waits for it to exit.
func (dm *DeadlineMonitor) Stop() {
	dm.mu.Lock()
	cancel := dm.cancel
	dm.cancel = nil
	dm.mu.Unlock()

	if cancel != nil {
		cancel()
		dm.wg.Wait()
	}
}

// RunNow performs a single pass and returns its report.
func (dm *DeadlineMonitor) RunNow(ctx context.Context) *MonitorReport {
	now := dm.now()
	report := &MonitorReport{RanAt: now, Offices: []OfficeReport{}}

	offices, err := dm.Repo.ListOffices(ctx)
	if err != nil {
		dm.Logger.Error("deadline monitor: list offices", "error", err)
		report.Errors = append(report.Errors, err.Error())
		dm.finish(report)
		return report
	}

	for _, office := range offices {
		apps, err := dm.Repo.ListApplications(ctx, office, subsidy.ApplicationFilter{})
		if err != nil {
			dm.Logger.Error("deadline monitor: list applications", "office", office, "error", err)
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", office, err))
			continue
		}
		report.Offices = append(report.Offices, dm.checkOffice(office, apps, now))
	}

	dm.finish(report)
	return report
}

func (dm *DeadlineMonitor) now() time.Time {
	if dm.Location == nil {
		return dm.Now()
	}
	return dm.Now().In(dm.Location)
}

func (dm *DeadlineMonitor) checkOffice(office generic.OfficeID, apps []subsidy.Application, now time.Time) OfficeReport {
	rep := OfficeReport{
		OfficeID: office,
		Buckets:  make(map[string]int),
		Overdue:  []string{},
		Urgent:   []string{},
	}
	for b, n := range subsidy.SummarizeDeadlines(apps, now) {
		rep.Buckets[string(b)] = n
	}
	dm.Metrics.SetBucketCounts(string(office), rep.Buckets)

	for _, v := range subsidy.DueWithin(apps, now, 7) {
		switch v.Bucket {
		case subsidy.BucketOverdue:
			rep.Overdue = append(rep.Overdue, string(v.ID))
			dm.Logger.Warn("application deadline passed",
				"office", office, "application", v.ID, "worker", v.WorkerName,
				"deadline", v.ApplicationDeadline.String(), "days_overdue", -v.DaysRemaining)
		case subsidy.BucketUrgent:
			rep.Urgent = append(rep.Urgent, string(v.ID))
			dm.Logger.Info("application deadline approaching",
				"office", office, "application", v.ID, "worker", v.WorkerName,
				"deadline", v.ApplicationDeadline.String(), "days_remaining", v.DaysRemaining)
		}
	}
	return rep
}

func (dm *DeadlineMonitor) finish(report *MonitorReport) {
	dm.Metrics.RecordMonitorRun(report.RanAt)
	dm.mu.Lock()
	dm.last = report
	dm.mu.Unlock()
}

// Last returns the most recent report, or nil before the first pass.
func (dm *DeadlineMonitor) Last() *MonitorReport {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.last
}

// NextRunTime estimates when the next scheduled check will occur.
func (dm *DeadlineMonitor) NextRunTime() time.Time {
	last := dm.Last()
	if last == nil {
		return dm.Now()
	}
	return last.RanAt.Add(dm.Interval)
}
