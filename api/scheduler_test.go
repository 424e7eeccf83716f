package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/metrics"
	"github.com/warp/careerup/store/memory"
	"github.com/warp/careerup/subsidy"
)

func newTestMonitor(t *testing.T) (*DeadlineMonitor, *Handler) {
	t.Helper()
	repo := memory.New()
	m := metrics.NewManager()
	h := NewHandler(repo, WithClock(func() time.Time { return testNow }), WithMetrics(m))

	dm := NewDeadlineMonitor(repo, m)
	dm.Now = func() time.Time { return testNow }
	return dm, h
}

func TestDeadlineMonitor_RunNow(t *testing.T) {
	// GIVEN: Two offices with demo data
	dm, h := newTestMonitor(t)
	ctx := context.Background()
	_, err := h.loadScenario(ctx, "deadline-mix", "office-a")
	require.NoError(t, err)
	_, err = h.loadScenario(ctx, "new-client", "office-b")
	require.NoError(t, err)

	// WHEN: Running a pass
	report := dm.RunNow(ctx)

	// THEN: Both offices are reported with their overdue and urgent work
	require.Len(t, report.Offices, 2)
	byOffice := map[string]OfficeReport{}
	for _, o := range report.Offices {
		byOffice[string(o.OfficeID)] = o
	}
	a := byOffice["office-a"]
	assert.Equal(t, []string{"demo-app-overdue"}, a.Overdue)
	assert.Equal(t, []string{"demo-app-urgent"}, a.Urgent)
	assert.Equal(t, 1, a.Buckets["soon"])
	assert.Equal(t, 1, a.Buckets["none"])

	b := byOffice["office-b"]
	assert.Empty(t, b.Overdue)
	assert.Equal(t, 1, b.Buckets["normal"])

	// THEN: The report is kept for later reads
	assert.Same(t, report, dm.Last())
	assert.Equal(t, testNow.Add(DefaultMonitorInterval), dm.NextRunTime())
}

func TestDeadlineMonitor_RunStopsWithContext(t *testing.T) {
	dm, _ := newTestMonitor(t)
	dm.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- dm.Run(ctx) }()

	require.Eventually(t, func() bool { return dm.Last() != nil }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestDeadlineMonitor_StartStop(t *testing.T) {
	dm, _ := newTestMonitor(t)
	dm.Interval = 10 * time.Millisecond

	dm.Start()
	dm.Start() // second start is a no-op
	require.Eventually(t, func() bool { return dm.Last() != nil }, time.Second, 5*time.Millisecond)
	dm.Stop()
	dm.Stop()
}

func TestMonitorEndpoint(t *testing.T) {
	repo := memory.New()
	h := NewHandler(repo, WithClock(func() time.Time { return testNow }))
	dm := NewDeadlineMonitor(repo, h.Metrics)
	dm.Now = h.Now
	h.Monitor = dm
	router := NewRouter(h, RouterConfig{StaticDir: t.TempDir()})
	ts := &testServer{t: t, repo: repo, h: h, router: router}

	dm.RunNow(context.Background())
	rec := ts.do("GET", "/api/monitor", nil)

	require.Equal(t, 200, rec.Code)
	var report MonitorReport
	ts.decode(rec, &report)
	assert.True(t, report.RanAt.Equal(testNow))
}

func TestDeadlineMonitor_AgreesWithAPIOnAUTCHost(t *testing.T) {
	// GIVEN: A host clock in UTC at 23:00 on 06-09, already 08:00 on 06-10 in Tokyo
	hostNow := time.Date(2025, 6, 9, 23, 0, 0, 0, time.UTC)
	clock := func() time.Time { return hostNow }

	repo := memory.New()
	m := metrics.NewManager()
	h := NewHandler(repo, WithClock(clock), WithMetrics(m))
	ts := &testServer{t: t, repo: repo, h: h, router: NewRouter(h, RouterConfig{StaticDir: t.TempDir()})}

	dm := NewDeadlineMonitor(repo, m)
	dm.Now = clock

	// GIVEN: An application due on 06-09
	ctx := context.Background()
	client, err := repo.CreateClient(ctx, subsidy.Client{OfficeID: "o1", Name: "株式会社テスト"})
	require.NoError(t, err)
	app, err := repo.CreateApplication(ctx, subsidy.Application{
		OfficeID:            "o1",
		ClientID:            client.ID,
		WorkerName:          "山田 太郎",
		ConversionDate:      generic.NewTimePoint(2025, time.April, 1),
		ApplicationDeadline: generic.NewTimePoint(2025, time.June, 9),
	})
	require.NoError(t, err)

	// WHEN: The API and the monitor look at it at the same instant
	rec := ts.do("GET", "/api/offices/o1/applications/"+string(app.ID), nil)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	var dto ApplicationDTO
	ts.decode(rec, &dto)
	report := dm.RunNow(ctx)

	// THEN: Both call it overdue by one day
	require.NotNil(t, dto.DaysRemaining)
	assert.Equal(t, -1, *dto.DaysRemaining)
	assert.Equal(t, string(subsidy.BucketOverdue), dto.Bucket)

	require.Len(t, report.Offices, 1)
	assert.Equal(t, []string{string(app.ID)}, report.Offices[0].Overdue)
	assert.Empty(t, report.Offices[0].Urgent)
	assert.Equal(t, 1, report.Offices[0].Buckets[dto.Bucket])
}
