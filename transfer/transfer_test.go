package transfer_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/store/memory"
	"github.com/warp/careerup/subsidy"
	"github.com/warp/careerup/transfer"
)

var jst = time.FixedZone("JST", 9*60*60)

func seed(t *testing.T, repo subsidy.Repository, office generic.OfficeID) (*subsidy.Client, *subsidy.Application) {
	t.Helper()
	ctx := context.Background()
	c, err := repo.CreateClient(ctx, subsidy.Client{
		OfficeID:        office,
		Name:            "株式会社ミナト",
		PlanSubmittedAt: generic.NewTimePoint(2025, 2, 1),
	})
	require.NoError(t, err)
	a, err := repo.CreateApplication(ctx, subsidy.Application{
		OfficeID:            office,
		ClientID:            c.ID,
		WorkerName:          "山田 太郎",
		ConversionDate:      generic.NewTimePoint(2025, 4, 1),
		ApplicationDeadline: generic.NewTimePoint(2025, 6, 15),
		SubsidyAmount:       generic.NewYen(800000),
		PriorityTarget:      true,
		Checklist:           subsidy.ChecklistOf(subsidy.DocCareerUpPlan, subsidy.DocApplicationForm),
	})
	require.NoError(t, err)
	return c, a
}

func TestExportImport_RoundTripIntoAnotherOffice(t *testing.T) {
	// GIVEN: An office with one client and one application
	ctx := context.Background()
	repo := memory.New()
	c, a := seed(t, repo, "office-a")

	// WHEN: Exporting, encoding, decoding and importing into office B
	doc, err := transfer.Export(ctx, repo, "office-a", time.Date(2025, 6, 10, 9, 0, 0, 0, jst))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, transfer.Encode(&buf, doc))

	decoded, err := transfer.Decode(&buf)
	require.NoError(t, err)
	summary, err := transfer.Import(ctx, repo, "office-b", decoded, transfer.ModeReplace)
	require.NoError(t, err)

	// THEN: Office B holds an equivalent copy
	assert.Equal(t, transfer.Summary{Mode: transfer.ModeReplace, Clients: 1, Applications: 1}, summary)

	gotClient, err := repo.GetClient(ctx, "office-b", c.ID)
	require.NoError(t, err)
	assert.Equal(t, "株式会社ミナト", gotClient.Name)
	assert.True(t, gotClient.PlanSubmittedAt.Equal(generic.NewTimePoint(2025, 2, 1)))

	gotApp, err := repo.GetApplication(ctx, "office-b", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "山田 太郎", gotApp.WorkerName)
	assert.True(t, gotApp.ApplicationDeadline.Equal(generic.NewTimePoint(2025, 6, 15)))
	assert.True(t, gotApp.SubsidyAmount.Equal(generic.NewYen(800000)))
	assert.True(t, gotApp.PriorityTarget)
	assert.True(t, gotApp.Checklist[subsidy.DocApplicationForm])
}

func TestDecode_LegacyDocument(t *testing.T) {
	// GIVEN: An unversioned export with a missing status and an extra field
	raw := `{
		"clients": [{"id": "c1", "name": "有限会社カワセ", "fax": "03-0000-0000"}],
		"applications": [{"id": "a1", "client_id": "c1", "worker_name": "佐藤", "conversion_date": "2025-01-10", "subsidy_amount": 570000}]
	}`

	doc, err := transfer.Decode(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, transfer.FormatVersion, doc.Version)

	clients, apps, err := doc.Records("office-a")
	require.NoError(t, err)
	require.Len(t, clients, 1)
	require.Len(t, apps, 1)
	assert.Equal(t, subsidy.StatusPreparing, apps[0].Status)
	assert.False(t, apps[0].HasDeadline())
	assert.Equal(t, generic.OfficeID("office-a"), apps[0].OfficeID)
}

func TestDecode_RejectsNewerVersionAndGarbage(t *testing.T) {
	_, err := transfer.Decode(strings.NewReader(`{"version": 99}`))
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	_, err = transfer.Decode(strings.NewReader(`not json`))
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestRecords_CollectsAllDateProblems(t *testing.T) {
	doc := &transfer.Document{
		Clients: []transfer.ClientRecord{{ID: "c1", Name: "x", PlanSubmittedAt: "2025/02/01"}},
		Applications: []transfer.ApplicationRecord{
			{ID: "a1", ClientID: "c1", WorkerName: "y", ConversionDate: "April", ApplicationDeadline: "2025-13-01"},
		},
	}

	_, _, err := doc.Records("office-a")
	var ve *generic.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Problems, 3)
}

func TestImport_MergeKeepsExisting(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	seed(t, repo, "office-a")

	doc := &transfer.Document{
		Clients: []transfer.ClientRecord{{ID: "c-new", Name: "合同会社ソラ"}},
	}
	_, err := transfer.Import(ctx, repo, "office-a", doc, transfer.ModeMerge)
	require.NoError(t, err)

	clients, err := repo.ListClients(ctx, "office-a")
	require.NoError(t, err)
	assert.Len(t, clients, 2)
}

func TestParseMode(t *testing.T) {
	m, err := transfer.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, transfer.ModeMerge, m)

	m, err = transfer.ParseMode("replace")
	require.NoError(t, err)
	assert.Equal(t, transfer.ModeReplace, m)

	_, err = transfer.ParseMode("overwrite")
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestWriteApplicationsCSV(t *testing.T) {
	// GIVEN: One application due in 5 days
	ctx := context.Background()
	repo := memory.New()
	seed(t, repo, "office-a")
	clients, _ := repo.ListClients(ctx, "office-a")
	apps, _ := repo.ListApplications(ctx, "office-a", subsidy.ApplicationFilter{})

	// WHEN: Writing the CSV
	var buf bytes.Buffer
	now := time.Date(2025, 6, 10, 18, 0, 0, 0, jst)
	require.NoError(t, transfer.WriteApplicationsCSV(&buf, clients, apps, now))

	// THEN: BOM, header and a derived row
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\ufeff"))

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\ufeff"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "顧客名", rows[0][1])

	row := rows[1]
	assert.Equal(t, "株式会社ミナト", row[1])
	assert.Equal(t, "山田 太郎", row[2])
	assert.Equal(t, "2025-06-15", row[5])
	assert.Equal(t, "5", row[6])
	assert.Equal(t, "urgent", row[7])
	assert.Equal(t, "準備中", row[8])
	assert.Equal(t, "800000", row[9])
	assert.Equal(t, "○", row[10])
	assert.Equal(t, "2/10", row[11])
}
