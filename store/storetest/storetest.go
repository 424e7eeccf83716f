// Package storetest holds the behaviour every subsidy.Repository must share.
// Each store package runs it from its own tests.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/subsidy"
)

const (
	officeA generic.OfficeID = "office-a"
	officeB generic.OfficeID = "office-b"
)

// Run exercises repo implementations built by newRepo. Each subtest gets a
// fresh repository.
func Run(t *testing.T, newRepo func(t *testing.T) subsidy.Repository) {
	t.Run("ClientCRUD", func(t *testing.T) { testClientCRUD(t, newRepo(t)) })
	t.Run("ApplicationCRUD", func(t *testing.T) { testApplicationCRUD(t, newRepo(t)) })
	t.Run("OfficeIsolation", func(t *testing.T) { testOfficeIsolation(t, newRepo(t)) })
	t.Run("DeleteClientCascades", func(t *testing.T) { testDeleteClientCascades(t, newRepo(t)) })
	t.Run("StatusChangesAreRecorded", func(t *testing.T) { testStatusHistory(t, newRepo(t)) })
	t.Run("HistoryIsOfficeScoped", func(t *testing.T) { testHistoryIsOfficeScoped(t, newRepo(t)) })
	t.Run("InvalidTransitionRejected", func(t *testing.T) { testInvalidTransition(t, newRepo(t)) })
	t.Run("ChecklistRoundTrip", func(t *testing.T) { testChecklist(t, newRepo(t)) })
	t.Run("ApplicationNeedsClient", func(t *testing.T) { testApplicationNeedsClient(t, newRepo(t)) })
	t.Run("FilterAndOrder", func(t *testing.T) { testFilterAndOrder(t, newRepo(t)) })
	t.Run("RestoreMerge", func(t *testing.T) { testRestoreMerge(t, newRepo(t)) })
	t.Run("RestoreReplace", func(t *testing.T) { testRestoreReplace(t, newRepo(t)) })
	t.Run("RestoreIsAtomic", func(t *testing.T) { testRestoreAtomic(t, newRepo(t)) })
	t.Run("SubscribeReceivesChanges", func(t *testing.T) { testSubscribe(t, newRepo(t)) })
}

// =============================================================================
// FIXTURES
// =============================================================================

func newClient(office generic.OfficeID, name string) subsidy.Client {
	return subsidy.Client{
		OfficeID:      office,
		Name:          name,
		ContactPerson: "人事部 田中",
		Email:         "hr@example.jp",
		EmployeeCount: 42,
	}
}

func newApplication(office generic.OfficeID, client generic.ClientID, worker string) subsidy.Application {
	return subsidy.Application{
		OfficeID:            office,
		ClientID:            client,
		WorkerName:          worker,
		ConversionType:      subsidy.ConversionFixedTermToRegular,
		ConversionDate:      generic.NewTimePoint(2025, 4, 1),
		ApplicationDeadline: generic.NewTimePoint(2025, 11, 30),
		SubsidyAmount:       generic.NewYen(800000),
	}
}

func mustClient(t *testing.T, repo subsidy.Repository, office generic.OfficeID, name string) *subsidy.Client {
	t.Helper()
	c, err := repo.CreateClient(context.Background(), newClient(office, name))
	require.NoError(t, err)
	return c
}

func mustApplication(t *testing.T, repo subsidy.Repository, office generic.OfficeID, client generic.ClientID, worker string) *subsidy.Application {
	t.Helper()
	a, err := repo.CreateApplication(context.Background(), newApplication(office, client, worker))
	require.NoError(t, err)
	return a
}

// =============================================================================
// CASES
// =============================================================================

func testClientCRUD(t *testing.T, repo subsidy.Repository) {
	ctx := context.Background()

	// GIVEN: A new client
	created := mustClient(t, repo, officeA, "株式会社ミナト")
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	// WHEN: Patching the contact
	contact := "総務部 鈴木"
	planDate := generic.NewTimePoint(2025, 2, 1)
	updated, err := repo.UpdateClient(ctx, officeA, created.ID, subsidy.ClientPatch{
		ContactPerson:   &contact,
		PlanSubmittedAt: &planDate,
	})
	require.NoError(t, err)

	// THEN: Only the patched fields changed
	assert.Equal(t, "総務部 鈴木", updated.ContactPerson)
	assert.Equal(t, "株式会社ミナト", updated.Name)

	got, err := repo.GetClient(ctx, officeA, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "総務部 鈴木", got.ContactPerson)
	assert.True(t, got.PlanSubmittedAt.Equal(planDate))
	assert.Equal(t, 42, got.EmployeeCount)

	list, err := repo.ListClients(ctx, officeA)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// Invalid patch is rejected and nothing changes
	empty := ""
	_, err = repo.UpdateClient(ctx, officeA, created.ID, subsidy.ClientPatch{Name: &empty})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	require.NoError(t, repo.DeleteClient(ctx, officeA, created.ID))
	_, err = repo.GetClient(ctx, officeA, created.ID)
	assert.ErrorIs(t, err, generic.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteClient(ctx, officeA, created.ID), generic.ErrNotFound)
}

func testApplicationCRUD(t *testing.T, repo subsidy.Repository) {
	ctx := context.Background()
	c := mustClient(t, repo, officeA, "株式会社ミナト")

	created := mustApplication(t, repo, officeA, c.ID, "山田 太郎")
	assert.Equal(t, subsidy.StatusPreparing, created.Status, "status defaults to preparing")

	got, err := repo.GetApplication(ctx, officeA, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "山田 太郎", got.WorkerName)
	assert.True(t, got.ConversionDate.Equal(generic.NewTimePoint(2025, 4, 1)))
	assert.True(t, got.ApplicationDeadline.Equal(generic.NewTimePoint(2025, 11, 30)))
	assert.True(t, got.SubsidyAmount.Equal(generic.NewYen(800000)))

	// WHEN: Recording wage-test totals and clearing the deadline
	pre, post := generic.NewYen(1260000), generic.NewYen(1362000)
	noDeadline := generic.TimePoint{}
	priority := true
	updated, err := repo.UpdateApplication(ctx, officeA, created.ID, subsidy.ApplicationPatch{
		PreTotalSalary:      &pre,
		PostTotalSalary:     &post,
		ApplicationDeadline: &noDeadline,
		PriorityTarget:      &priority,
	})
	require.NoError(t, err)
	assert.False(t, updated.HasDeadline())

	got, err = repo.GetApplication(ctx, officeA, created.ID)
	require.NoError(t, err)
	assert.True(t, got.PostTotalSalary.Equal(post))
	assert.False(t, got.HasDeadline())
	assert.True(t, got.PriorityTarget)

	require.NoError(t, repo.DeleteApplication(ctx, officeA, created.ID))
	_, err = repo.GetApplication(ctx, officeA, created.ID)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func testOfficeIsolation(t *testing.T, repo subsidy.Repository) {
	ctx := context.Background()
	c := mustClient(t, repo, officeA, "株式会社ミナト")
	a := mustApplication(t, repo, officeA, c.ID, "山田 太郎")
	mustClient(t, repo, officeB, "有限会社カワセ")

	// Office B cannot see or touch office A's records
	_, err := repo.GetClient(ctx, officeB, c.ID)
	assert.ErrorIs(t, err, generic.ErrNotFound)
	_, err = repo.GetApplication(ctx, officeB, a.ID)
	assert.ErrorIs(t, err, generic.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteApplication(ctx, officeB, a.ID), generic.ErrNotFound)

	apps, err := repo.ListApplications(ctx, officeB, subsidy.ApplicationFilter{})
	require.NoError(t, err)
	assert.Empty(t, apps)

	offices, err := repo.ListOffices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []generic.OfficeID{officeA, officeB}, offices)
}

func testDeleteClientCascades(t *testing.T, repo subsidy.Repository) {
	ctx := context.Background()
	c1 := mustClient(t, repo, officeA, "株式会社ミナト")
	c2 := mustClient(t, repo, officeA, "有限会社カワセ")
	a1 := mustApplication(t, repo, officeA, c1.ID, "山田 太郎")
	mustApplication(t, repo, officeA, c1.ID, "佐藤 花子")
	a3 := mustApplication(t, repo, officeA, c2.ID, "鈴木 一郎")
	_, err := repo.ChangeStatus(ctx, officeA, a1.ID, subsidy.StatusSubmitted, "")
	require.NoError(t, err)

	// WHEN: Deleting the first client
	require.NoError(t, repo.DeleteClient(ctx, officeA, c1.ID))

	// THEN: Its applications are gone, the other client's remain
	apps, err := repo.ListApplications(ctx, officeA, subsidy.ApplicationFilter{})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, a3.ID, apps[0].ID)

	_, err = repo.StatusHistory(ctx, officeA, a1.ID)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func testStatusHistory(t *testing.T, repo subsidy.Repository) {
	ctx := context.Background()
	c := mustClient(t, repo, officeA, "株式会社ミナト")
	a := mustApplication(t, repo, officeA, c.ID, "山田 太郎")

	_, err := repo.ChangeStatus(ctx, officeA, a.ID, subsidy.StatusSubmitted, "労働局へ郵送")
	require.NoError(t, err)
	updated, err := repo.ChangeStatus(ctx, officeA, a.ID, subsidy.StatusUnderReview, "")
	require.NoError(t, err)
	assert.Equal(t, subsidy.StatusUnderReview, updated.Status)

	history, err := repo.StatusHistory(ctx, officeA, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, subsidy.StatusPreparing, history[0].To)
	assert.Equal(t, subsidy.StatusPreparing, history[1].From)
	assert.Equal(t, subsidy.StatusSubmitted, history[1].To)
	assert.Equal(t, "労働局へ郵送", history[1].Note)
	assert.Equal(t, subsidy.StatusUnderReview, history[2].To)
}

func testHistoryIsOfficeScoped(t *testing.T, repo subsidy.Repository) {
	ctx := context.Background()

	// GIVEN the same backup restored into two offices
	backup := func() ([]subsidy.Client, []subsidy.Application) {
		c := newClient("", "株式会社ミナト")
		c.ID = "c1"
		a := newApplication("", "c1", "山田 太郎")
		a.ID = "a1"
		return []subsidy.Client{c}, []subsidy.Application{a}
	}
	clients, apps := backup()
	require.NoError(t, repo.Restore(ctx, officeA, clients, apps, false))
	clients, apps = backup()
	require.NoError(t, repo.Restore(ctx, officeB, clients, apps, false))

	// WHEN office A files its application
	_, err := repo.ChangeStatus(ctx, officeA, "a1", subsidy.StatusSubmitted, "filed in A")
	require.NoError(t, err)

	// THEN office B's trail does not show it
	historyB, err := repo.StatusHistory(ctx, officeB, "a1")
	require.NoError(t, err)
	assert.Empty(t, historyB)

	// WHEN office B deletes its copy
	require.NoError(t, repo.DeleteApplication(ctx, officeB, "a1"))

	// THEN office A keeps its trail
	historyA, err := repo.StatusHistory(ctx, officeA, "a1")
	require.NoError(t, err)
	require.Len(t, historyA, 1)
	assert.Equal(t, "filed in A", historyA[0].Note)

	// WHEN office B is replaced wholesale
	require.NoError(t, repo.Restore(ctx, officeB, nil, nil, true))

	// THEN office A still keeps its trail
	historyA, err = repo.StatusHistory(ctx, officeA, "a1")
	require.NoError(t, err)
	assert.Len(t, historyA, 1)
}

func testInvalidTransition(t *testing.T, repo subsidy.Repository) {
	ctx := context.Background()
	c := mustClient(t, repo, officeA, "株式会社ミナト")
	a := mustApplication(t, repo, officeA, c.ID, "山田 太郎")

	// preparing -> rejected is not allowed
	_, err := repo.ChangeStatus(ctx, officeA, a.ID, subsidy.StatusRejected, "")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)

	// documents_ready needs the checklist
	_, err = repo.ChangeStatus(ctx, officeA, a.ID, subsidy.StatusDocumentsReady, "")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)

	got, err := repo.GetApplication(ctx, officeA, a.ID)
	require.NoError(t, err)
	assert.Equal(t, subsidy.StatusPreparing, got.Status)

	history, err := repo.StatusHistory(ctx, officeA, a.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "rejected moves leave no history")
}

func testChecklist(t *testing.T, repo subsidy.Repository) {
	ctx := context.Background()
	c := mustClient(t, repo, officeA, "株式会社ミナト")
	a := mustApplication(t, repo, officeA, c.ID, "山田 太郎")

	// WHEN: Checking off every required document in two patches
	docs := subsidy.RequiredDocuments(a.ConversionType)
	_, err := repo.UpdateApplication(ctx, officeA, a.ID, subsidy.ApplicationPatch{
		Checklist: subsidy.ChecklistOf(docs[:3]...),
	})
	require.NoError(t, err)
	_, err = repo.UpdateApplication(ctx, officeA, a.ID, subsidy.ApplicationPatch{
		Checklist: subsidy.ChecklistOf(docs[3:]...),
	})
	require.NoError(t, err)

	// THEN: The checklist is complete and documents_ready is allowed
	got, err := repo.GetApplication(ctx, officeA, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Checklist.Complete(got.ConversionType))

	_, err = repo.ChangeStatus(ctx, officeA, a.ID, subsidy.StatusDocumentsReady, "")
	assert.NoError(t, err)

	// Unchecking persists too
	_, err = repo.UpdateApplication(ctx, officeA, a.ID, subsidy.ApplicationPatch{
		Checklist: subsidy.Checklist{docs[0]: false},
	})
	require.NoError(t, err)
	apps, err := repo.ListApplications(ctx, officeA, subsidy.ApplicationFilter{})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.False(t, apps[0].Checklist[docs[0]])
	assert.True(t, apps[0].Checklist[docs[1]])
}

func testApplicationNeedsClient(t *testing.T, repo subsidy.Repository) {
	_, err := repo.CreateApplication(context.Background(), newApplication(officeA, "no-such-client", "山田 太郎"))
	assert.ErrorIs(t, err, generic.ErrNotFound)

	_, err = repo.CreateApplication(context.Background(), subsidy.Application{OfficeID: officeA})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func testFilterAndOrder(t *testing.T, repo subsidy.Repository) {
	ctx := context.Background()
	c1 := mustClient(t, repo, officeA, "株式会社ミナト")
	c2 := mustClient(t, repo, officeA, "有限会社カワセ")

	late := newApplication(officeA, c1.ID, "B 遅い")
	late.ApplicationDeadline = generic.NewTimePoint(2025, 12, 31)
	early := newApplication(officeA, c1.ID, "A 早い")
	early.ApplicationDeadline = generic.NewTimePoint(2025, 7, 1)
	none := newApplication(officeA, c2.ID, "C 期限なし")
	none.ApplicationDeadline = generic.TimePoint{}
	for _, a := range []subsidy.Application{late, early, none} {
		_, err := repo.CreateApplication(ctx, a)
		require.NoError(t, err)
	}

	all, err := repo.ListApplications(ctx, officeA, subsidy.ApplicationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "A 早い", all[0].WorkerName)
	assert.Equal(t, "B 遅い", all[1].WorkerName)
	assert.Equal(t, "C 期限なし", all[2].WorkerName, "no deadline sorts last")

	byClient, err := repo.ListApplications(ctx, officeA, subsidy.ApplicationFilter{ClientID: c2.ID})
	require.NoError(t, err)
	assert.Len(t, byClient, 1)

	_, err = repo.ChangeStatus(ctx, officeA, all[0].ID, subsidy.StatusSubmitted, "")
	require.NoError(t, err)
	submitted, err := repo.ListApplications(ctx, officeA, subsidy.ApplicationFilter{
		Statuses: []subsidy.ApplicationStatus{subsidy.StatusSubmitted},
	})
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	assert.Equal(t, all[0].ID, submitted[0].ID)
}

func testRestoreMerge(t *testing.T, repo subsidy.Repository) {
	ctx := context.Background()
	existing := mustClient(t, repo, officeA, "株式会社ミナト")

	imported := newClient(officeA, "有限会社カワセ")
	imported.ID = "c-imported"
	renamed := *existing
	renamed.Name = "株式会社ミナト商事"
	app := newApplication(officeA, "c-imported", "佐藤 花子")
	app.ID = "a-imported"
	app.Checklist = subsidy.ChecklistOf(subsidy.DocCareerUpPlan)

	err := repo.Restore(ctx, officeA, []subsidy.Client{renamed, imported}, []subsidy.Application{app}, false)
	require.NoError(t, err)

	clients, err := repo.ListClients(ctx, officeA)
	require.NoError(t, err)
	assert.Len(t, clients, 2)

	got, err := repo.GetClient(ctx, officeA, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "株式会社ミナト商事", got.Name)

	gotApp, err := repo.GetApplication(ctx, officeA, "a-imported")
	require.NoError(t, err)
	assert.True(t, gotApp.Checklist[subsidy.DocCareerUpPlan])
}

func testRestoreReplace(t *testing.T, repo subsidy.Repository) {
	ctx := context.Background()
	old := mustClient(t, repo, officeA, "株式会社ミナト")
	mustApplication(t, repo, officeA, old.ID, "山田 太郎")
	other := mustClient(t, repo, officeB, "有限会社カワセ")

	fresh := newClient(officeA, "合同会社ソラ")
	fresh.ID = "c-fresh"
	err := repo.Restore(ctx, officeA, []subsidy.Client{fresh}, nil, true)
	require.NoError(t, err)

	clients, err := repo.ListClients(ctx, officeA)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, generic.ClientID("c-fresh"), clients[0].ID)

	apps, err := repo.ListApplications(ctx, officeA, subsidy.ApplicationFilter{})
	require.NoError(t, err)
	assert.Empty(t, apps)

	// Other offices are untouched
	_, err = repo.GetClient(ctx, officeB, other.ID)
	assert.NoError(t, err)
}

func testRestoreAtomic(t *testing.T, repo subsidy.Repository) {
	ctx := context.Background()
	keep := mustClient(t, repo, officeA, "株式会社ミナト")

	orphan := newApplication(officeA, "missing-client", "山田 太郎")
	err := repo.Restore(ctx, officeA, []subsidy.Client{newClient(officeA, "新規")}, []subsidy.Application{orphan}, true)
	assert.ErrorIs(t, err, generic.ErrNotFound)

	clients, err := repo.ListClients(ctx, officeA)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, keep.ID, clients[0].ID)
}

func testSubscribe(t *testing.T, repo subsidy.Repository) {
	ctx := context.Background()

	var mu sync.Mutex
	var got []generic.Change
	cancel := repo.Subscribe(officeA, func(c generic.Change) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, c)
	})

	c := mustClient(t, repo, officeA, "株式会社ミナト")
	mustClient(t, repo, officeB, "他事務所")
	a := mustApplication(t, repo, officeA, c.ID, "山田 太郎")

	cancel()
	cancel()
	require.NoError(t, repo.DeleteApplication(ctx, officeA, a.ID))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2, "office B writes and post-cancel writes are not delivered")
	assert.Equal(t, generic.Change{OfficeID: officeA, Collection: generic.CollectionClients, Kind: generic.ChangeCreated, ID: string(c.ID)}, got[0])
	assert.Equal(t, generic.CollectionApplications, got[1].Collection)
	assert.Equal(t, generic.ChangeCreated, got[1].Kind)
}
