/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario correctly sets up the expected state:
	- Clients and applications are created in the requested office
	- Deadlines land in the intended buckets relative to today
	- Loading again replaces rather than duplicates

These tests run against the SQLite store so they double as integration tests.
*/
package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/store/sqlite"
	"github.com/warp/careerup/subsidy"
)

func setupScenarioHandler(t *testing.T) *Handler {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewHandler(store, WithClock(func() time.Time { return testNow }))
}

func TestScenario_DeadlineMix(t *testing.T) {
	// GIVEN: The deadline-mix scenario
	h := setupScenarioHandler(t)
	ctx := context.Background()

	// WHEN: Loading it into an office
	summary, err := h.loadScenario(ctx, "deadline-mix", "demo")
	require.NoError(t, err)

	// THEN: Every bucket is represented among the open applications
	assert.Equal(t, 2, summary.Clients)
	assert.Equal(t, 7, summary.Applications)

	apps, err := h.Repo.ListApplications(ctx, "demo", subsidy.ApplicationFilter{})
	require.NoError(t, err)
	buckets := subsidy.SummarizeDeadlines(apps, testNow)
	for _, b := range subsidy.AllBuckets() {
		assert.Equal(t, 1, buckets[b], "bucket %s", b)
	}
}

func TestScenario_ReloadReplaces(t *testing.T) {
	h := setupScenarioHandler(t)
	ctx := context.Background()

	_, err := h.loadScenario(ctx, "deadline-mix", "demo")
	require.NoError(t, err)
	_, err = h.loadScenario(ctx, "new-client", "demo")
	require.NoError(t, err)

	clients, err := h.Repo.ListClients(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "ひかりデザイン株式会社", clients[0].Name)
}

func TestScenario_NewClientHasPlanWarning(t *testing.T) {
	h := setupScenarioHandler(t)
	ctx := context.Background()

	_, err := h.loadScenario(ctx, "new-client", "demo")
	require.NoError(t, err)

	c, err := h.Repo.GetClient(ctx, "demo", "demo-hikari")
	require.NoError(t, err)
	a, err := h.Repo.GetApplication(ctx, "demo", "demo-app-unplanned")
	require.NoError(t, err)
	assert.NotEmpty(t, subsidy.PlanWarning(*c, *a))
}

func TestScenario_WageCheckTotals(t *testing.T) {
	h := setupScenarioHandler(t)
	ctx := context.Background()

	_, err := h.loadScenario(ctx, "wage-check", "demo")
	require.NoError(t, err)

	pass, err := h.Repo.GetApplication(ctx, "demo", "demo-app-pass")
	require.NoError(t, err)
	short, err := h.Repo.GetApplication(ctx, "demo", "demo-app-short")
	require.NoError(t, err)

	rate := func(a *subsidy.Application) string {
		return subsidy.IncreaseRate(a.PreTotalSalary.Value, a.PostTotalSalary.Sub(a.PreTotalSalary).Value).StringFixed(2)
	}
	assert.Equal(t, "4.55", rate(pass))
	assert.Equal(t, "2.40", rate(short))
}

func TestScenario_ScopedToOffice(t *testing.T) {
	h := setupScenarioHandler(t)
	ctx := context.Background()

	_, err := h.loadScenario(ctx, "deadline-mix", "demo-a")
	require.NoError(t, err)
	_, err = h.loadScenario(ctx, "deadline-mix", "demo-b")
	require.NoError(t, err)

	a, err := h.Repo.ListApplications(ctx, "demo-a", subsidy.ApplicationFilter{})
	require.NoError(t, err)
	assert.Len(t, a, 7)
}

func TestScenario_Unknown(t *testing.T) {
	h := setupScenarioHandler(t)

	_, err := h.loadScenario(context.Background(), "nope", "demo")

	assert.True(t, generic.IsNotFound(err))
}

func TestScenarioEndpoints(t *testing.T) {
	// GIVEN: A logged-in desk
	ts := newTestServer(t)

	// WHEN: Listing and loading a scenario over HTTP
	rec := ts.do(http.MethodGet, "/api/demo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []ScenarioDTO
	ts.decode(rec, &list)
	assert.Len(t, list, len(scenarios))

	rec = ts.do(http.MethodPost, "/api/demo/load", LoadScenarioRequest{ScenarioID: "wage-check", OfficeID: "demo"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The current scenario is reported and the data is visible
	rec = ts.do(http.MethodGet, "/api/demo/current", nil)
	var current ScenarioDTO
	ts.decode(rec, &current)
	assert.Equal(t, "wage-check", current.ID)

	rec = ts.do(http.MethodGet, "/api/offices/demo/applications", nil)
	var apps []ApplicationDTO
	ts.decode(rec, &apps)
	assert.Len(t, apps, 2)

	rec = ts.do(http.MethodPost, "/api/demo/load", LoadScenarioRequest{ScenarioID: "wage-check"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
