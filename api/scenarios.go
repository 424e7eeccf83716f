/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate one office with realistic
	clients and applications. Dates are placed relative to today so that
	every deadline bucket shows up whenever the demo is loaded.

AVAILABLE SCENARIOS:

	deadline-mix:     Applications spread over every deadline bucket
	wage-check:       Saved calculator totals on both sides of the 3% line
	new-client:       A client whose career-up plan has not been filed yet

HOW SCENARIOS WORK:
 1. Build clients and applications for the requested office
 2. Replace the office's records with them in one Restore call

USAGE VIA API:

	POST /api/demo/load
	{"scenario_id": "deadline-mix", "office_id": "demo"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create a builder: buildXxxScenario(today)
 3. Register it in scenarioBuilders

NOTE:

	Scenarios replace the office's data. Only use in demo offices.

SEE ALSO:
  - handlers.go: Handler struct
  - subsidy/repository.go: Restore
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/subsidy"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "deadline-mix",
		Name:        "期限の混在",
		Description: "期限切れ・7日以内・14日以内・30日以内・余裕あり・期限未設定の申請",
		Category:    "deadlines",
	},
	{
		ID:          "wage-check",
		Name:        "賃金上昇率の判定",
		Description: "3%要件を満たす申請と、わずかに届かない申請",
		Category:    "eligibility",
	},
	{
		ID:          "new-client",
		Name:        "計画書未提出の顧問先",
		Description: "キャリアアップ計画書の提出前に転換した申請（警告の表示例）",
		Category:    "clients",
	},
}

// scenarioData is what a builder returns for Restore.
type scenarioData struct {
	Clients      []subsidy.Client
	Applications []subsidy.Application
}

var scenarioBuilders = map[string]func(today generic.TimePoint) scenarioData{
	"deadline-mix": buildDeadlineMixScenario,
	"wage-check":   buildWageCheckScenario,
	"new-client":   buildNewClientScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the most recently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario replaces an office's records with a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.OfficeID == "" {
		writeError(w, http.StatusBadRequest, "office_id is required", nil)
		return
	}
	summary, err := h.loadScenario(r.Context(), req.ScenarioID, generic.OfficeID(req.OfficeID))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type scenarioSummary struct {
	ScenarioID   string `json:"scenario_id"`
	OfficeID     string `json:"office_id"`
	Clients      int    `json:"clients"`
	Applications int    `json:"applications"`
}

func (h *Handler) loadScenario(ctx context.Context, id string, office generic.OfficeID) (scenarioSummary, error) {
	build, ok := scenarioBuilders[id]
	if !ok {
		return scenarioSummary{}, &generic.NotFoundError{Kind: "scenario", ID: id}
	}
	data := build(generic.DateOf(h.now()))
	if err := h.Repo.Restore(ctx, office, data.Clients, data.Applications, true); err != nil {
		return scenarioSummary{}, fmt.Errorf("load scenario %s: %w", id, err)
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()

	h.Logger.Info("scenario loaded", "scenario", id, "office", office,
		"clients", len(data.Clients), "applications", len(data.Applications))
	return scenarioSummary{
		ScenarioID:   id,
		OfficeID:     string(office),
		Clients:      len(data.Clients),
		Applications: len(data.Applications),
	}, nil
}

// =============================================================================
// BUILDERS
// =============================================================================

func demoApplication(id string, client generic.ClientID, worker string, conversion generic.TimePoint) subsidy.Application {
	return subsidy.Application{
		ID:             generic.ApplicationID(id),
		ClientID:       client,
		WorkerName:     worker,
		ConversionType: subsidy.ConversionFixedTermToRegular,
		ConversionDate: conversion,
		Status:         subsidy.StatusPreparing,
		SubsidyAmount:  generic.NewYen(800_000),
	}
}

func buildDeadlineMixScenario(today generic.TimePoint) scenarioData {
	clients := []subsidy.Client{
		{
			ID:              "demo-sakura",
			Name:            "株式会社さくら製作所",
			ContactPerson:   "山田 花子",
			Email:           "yamada@sakura.example.jp",
			Phone:           "03-1234-5678",
			EmployeeCount:   42,
			Industry:        "製造業",
			PlanSubmittedAt: today.AddMonths(-14),
		},
		{
			ID:              "demo-aozora",
			Name:            "青空ケアサービス合同会社",
			ContactPerson:   "佐藤 一郎",
			EmployeeCount:   18,
			Industry:        "介護",
			PlanSubmittedAt: today.AddMonths(-12),
		},
	}

	// One application per bucket, keyed by days until the deadline.
	offsets := []struct {
		id     string
		client generic.ClientID
		worker string
		days   int
		status subsidy.ApplicationStatus
	}{
		{"demo-app-overdue", "demo-sakura", "鈴木 太郎", -3, subsidy.StatusPreparing},
		{"demo-app-urgent", "demo-sakura", "高橋 美咲", 5, subsidy.StatusDocumentsReady},
		{"demo-app-soon", "demo-aozora", "伊藤 健", 12, subsidy.StatusPreparing},
		{"demo-app-upcoming", "demo-aozora", "渡辺 さやか", 25, subsidy.StatusPreparing},
		{"demo-app-normal", "demo-sakura", "中村 大輔", 90, subsidy.StatusPreparing},
		{"demo-app-submitted", "demo-aozora", "小林 直子", 2, subsidy.StatusSubmitted},
	}

	apps := make([]subsidy.Application, 0, len(offsets)+1)
	for _, o := range offsets {
		deadline := today.AddDays(o.days)
		a := demoApplication(o.id, o.client, o.worker, deadline.AddMonths(-8).AddDays(1))
		a.ApplicationDeadline = deadline
		a.Status = o.status
		if o.status != subsidy.StatusPreparing {
			a.Checklist = subsidy.ChecklistOf(subsidy.RequiredDocuments(a.ConversionType)...)
		} else {
			a.Checklist = subsidy.ChecklistOf(subsidy.DocCareerUpPlan, subsidy.DocContractBefore, subsidy.DocContractAfter)
		}
		apps = append(apps, a)
	}

	undated := demoApplication("demo-app-undated", "demo-aozora", "加藤 陽介", today.AddMonths(-1))
	undated.ConversionType = subsidy.ConversionDispatchToRegular
	undated.Notes = "派遣元との契約書を取り寄せ中"
	apps = append(apps, undated)

	return scenarioData{Clients: clients, Applications: apps}
}

func buildWageCheckScenario(today generic.TimePoint) scenarioData {
	clients := []subsidy.Client{{
		ID:              "demo-minato",
		Name:            "みなと物流株式会社",
		ContactPerson:   "木村 誠",
		EmployeeCount:   65,
		Industry:        "運輸業",
		PlanSubmittedAt: today.AddMonths(-10),
	}}

	conversion := today.AddMonths(-7)

	// 1,320,000 -> 1,380,000 is +4.55%.
	pass := demoApplication("demo-app-pass", "demo-minato", "林 優子", conversion)
	pass.ApplicationDeadline = subsidy.SuggestDeadline(conversion)
	pass.PreTotalSalary = generic.NewYen(1_320_000)
	pass.PostTotalSalary = generic.NewYen(1_380_000)
	pass.Checklist = subsidy.ChecklistOf(subsidy.DocWageLedgerBefore, subsidy.DocWageLedgerAfter,
		subsidy.DocAttendanceBefore, subsidy.DocAttendanceAfter)

	// 1,500,000 -> 1,536,000 is +2.40%, short by 9,000 yen in total.
	short := demoApplication("demo-app-short", "demo-minato", "清水 拓也", conversion)
	short.ApplicationDeadline = subsidy.SuggestDeadline(conversion)
	short.PriorityTarget = true
	short.SubsidyAmount = generic.NewYen(800_000)
	short.PreTotalSalary = generic.NewYen(1_500_000)
	short.PostTotalSalary = generic.NewYen(1_536_000)
	short.Notes = "基本給の見直しを提案済み"

	return scenarioData{Clients: clients, Applications: []subsidy.Application{pass, short}}
}

func buildNewClientScenario(today generic.TimePoint) scenarioData {
	clients := []subsidy.Client{{
		ID:            "demo-hikari",
		Name:          "ひかりデザイン株式会社",
		ContactPerson: "森 由美",
		EmployeeCount: 7,
		Industry:      "サービス業",
		Notes:         "キャリアアップ計画書の提出日を確認すること",
	}}

	a := demoApplication("demo-app-unplanned", "demo-hikari", "池田 翔", today.AddMonths(-2))
	a.ConversionType = subsidy.ConversionIndefiniteToRegular
	a.SubsidyAmount = generic.NewYen(400_000)
	a.ApplicationDeadline = subsidy.SuggestDeadline(a.ConversionDate)

	return scenarioData{Clients: clients, Applications: []subsidy.Application{a}}
}
