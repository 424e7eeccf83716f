package subsidy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/subsidy"
)

func TestStatusLabel_KnownCodes(t *testing.T) {
	assert.Equal(t, "準備中", subsidy.StatusLabel(subsidy.StatusPreparing))
	assert.Equal(t, "審査中", subsidy.StatusLabel(subsidy.StatusUnderReview))
	assert.Equal(t, "不支給", subsidy.StatusLabel(subsidy.StatusRejected))
	for _, s := range subsidy.AllStatuses() {
		assert.NotEmpty(t, subsidy.StatusLabel(s))
	}
}

func TestStatusLabel_UnknownFallsBackToPreparing(t *testing.T) {
	want := subsidy.StatusLabel(subsidy.StatusPreparing)
	assert.Equal(t, want, subsidy.StatusLabel("unknown_code"))
	assert.Equal(t, want, subsidy.StatusLabel(""))
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to subsidy.ApplicationStatus
		ok       bool
	}{
		{subsidy.StatusPreparing, subsidy.StatusDocumentsReady, true},
		{subsidy.StatusPreparing, subsidy.StatusSubmitted, true},
		{subsidy.StatusSubmitted, subsidy.StatusUnderReview, true},
		{subsidy.StatusApproved, subsidy.StatusPaid, true},
		{subsidy.StatusUnderReview, subsidy.StatusRejected, true},
		{subsidy.StatusRejected, subsidy.StatusPreparing, true},
		{subsidy.StatusApproved, subsidy.StatusPreparing, true},
		{"", subsidy.StatusDocumentsReady, true},

		{subsidy.StatusPaid, subsidy.StatusPreparing, false},
		{subsidy.StatusPreparing, subsidy.StatusRejected, false},
		{subsidy.StatusRejected, subsidy.StatusApproved, false},
		{subsidy.StatusApproved, subsidy.StatusSubmitted, false},
		{subsidy.StatusSubmitted, subsidy.StatusSubmitted, false},
		{subsidy.StatusPreparing, "archived", false},
	}
	for _, tc := range cases {
		err := subsidy.CanTransition(tc.from, tc.to)
		if tc.ok {
			assert.NoError(t, err, "%s -> %s", tc.from, tc.to)
		} else {
			assert.ErrorIs(t, err, generic.ErrInvalidTransition, "%s -> %s", tc.from, tc.to)
		}
	}
}

func TestCheckStatusChange_DocumentsReadyNeedsChecklist(t *testing.T) {
	// GIVEN: A preparing application missing its wage ledgers
	app := subsidy.Application{
		Status:         subsidy.StatusPreparing,
		ConversionType: subsidy.ConversionFixedTermToRegular,
		Checklist:      subsidy.ChecklistOf(subsidy.DocCareerUpPlan),
	}

	// WHEN: Moving to documents_ready
	err := app.CheckStatusChange(subsidy.StatusDocumentsReady)

	// THEN: Rejected with the missing documents named
	var te *generic.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Reason, "賃金台帳")

	// WHEN: Everything is collected
	app.Checklist = subsidy.ChecklistOf(subsidy.RequiredDocuments(app.ConversionType)...)
	assert.NoError(t, app.CheckStatusChange(subsidy.StatusDocumentsReady))
}

func TestApplication_Validate(t *testing.T) {
	app := subsidy.Application{
		ClientID:            "c-1",
		WorkerName:          "山田 太郎",
		ConversionType:      subsidy.ConversionFixedTermToRegular,
		ConversionDate:      generic.NewTimePoint(2025, 4, 1),
		ApplicationDeadline: generic.NewTimePoint(2025, 11, 30),
		SubsidyAmount:       generic.NewYen(800000),
	}
	require.NoError(t, app.Validate())

	bad := app
	bad.WorkerName = "  "
	bad.ApplicationDeadline = generic.NewTimePoint(2025, 3, 1)
	bad.Checklist = subsidy.Checklist{"fax_cover": true}

	err := bad.Validate()
	var ve *generic.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Problems, 3)
	assert.True(t, generic.IsClientError(err))
}

func TestApplication_NormalizeDefaults(t *testing.T) {
	app := subsidy.Application{WorkerName: " 佐藤 "}
	app.Normalize()

	assert.Equal(t, "佐藤", app.WorkerName)
	assert.Equal(t, subsidy.StatusPreparing, app.Status)
	assert.Equal(t, subsidy.ConversionFixedTermToRegular, app.ConversionType)
	assert.NotNil(t, app.Checklist)
}

func TestApplicationPatch_Apply(t *testing.T) {
	app := subsidy.Application{
		WorkerName: "旧姓",
		Notes:      "keep",
		Checklist:  subsidy.ChecklistOf(subsidy.DocCareerUpPlan),
	}
	name := "新姓"
	noDeadline := generic.TimePoint{}
	app.ApplicationDeadline = generic.NewTimePoint(2025, 1, 1)

	subsidy.ApplicationPatch{
		WorkerName:          &name,
		ApplicationDeadline: &noDeadline,
		Checklist:           subsidy.Checklist{subsidy.DocApplicationForm: true},
	}.Apply(&app)

	assert.Equal(t, "新姓", app.WorkerName)
	assert.Equal(t, "keep", app.Notes)
	assert.False(t, app.HasDeadline())
	assert.True(t, app.Checklist[subsidy.DocCareerUpPlan])
	assert.True(t, app.Checklist[subsidy.DocApplicationForm])
}

func TestApplicationFilter(t *testing.T) {
	a := subsidy.Application{ClientID: "c-1", Status: subsidy.StatusSubmitted}

	assert.True(t, subsidy.ApplicationFilter{}.Matches(a))
	assert.True(t, subsidy.ApplicationFilter{ClientID: "c-1"}.Matches(a))
	assert.False(t, subsidy.ApplicationFilter{ClientID: "c-2"}.Matches(a))
	assert.True(t, subsidy.ApplicationFilter{Statuses: []subsidy.ApplicationStatus{subsidy.StatusPreparing, subsidy.StatusSubmitted}}.Matches(a))
	assert.False(t, subsidy.ApplicationFilter{Statuses: []subsidy.ApplicationStatus{subsidy.StatusPaid}}.Matches(a))
}

func TestChecklist_Progress(t *testing.T) {
	c := subsidy.ChecklistOf(subsidy.DocCareerUpPlan, subsidy.DocApplicationForm)

	p := c.Progress(subsidy.ConversionFixedTermToRegular)
	assert.Equal(t, 2, p.Done)
	assert.Equal(t, 10, p.Required)
	assert.Equal(t, 20, p.Percent)

	dispatch := c.Progress(subsidy.ConversionDispatchToRegular)
	assert.Equal(t, 11, dispatch.Required)
	assert.Contains(t, c.Missing(subsidy.ConversionDispatchToRegular), subsidy.DocDispatchContract)
	assert.NotContains(t, c.Missing(subsidy.ConversionFixedTermToRegular), subsidy.DocDispatchContract)
}

func TestClient_ValidateAndPlanWarning(t *testing.T) {
	c := subsidy.Client{Name: "株式会社サンプル", Email: "info@example.jp"}
	require.NoError(t, c.Validate())

	assert.Error(t, subsidy.Client{Email: "nope"}.Validate())

	app := subsidy.Application{ConversionDate: generic.NewTimePoint(2025, 4, 1)}
	assert.Contains(t, subsidy.PlanWarning(c, app), "未登録")

	c.PlanSubmittedAt = generic.NewTimePoint(2025, 5, 1)
	assert.Contains(t, subsidy.PlanWarning(c, app), "より前")

	c.PlanSubmittedAt = generic.NewTimePoint(2025, 3, 1)
	assert.Empty(t, subsidy.PlanWarning(c, app))
}
