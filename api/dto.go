/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types carry
  decimal amounts and TimePoints; the wire carries whole yen and
  YYYY-MM-DD strings.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Clients:      ClientDTO, ClientRequest
  Applications: ApplicationDTO, ApplicationRequest, StatusChangeRequest,
                StatusChangeDTO, ChecklistRequest, DeadlineRowDTO
  Eligibility:  EligibilityRequest, MonthlySalaryDTO, EligibilityResponse
  Sessions:     LoginRequest, SessionDTO
  Scenarios:    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  DTOs only parse. Business validation lives in the subsidy package and is
  reached through the repository.

SEE ALSO:
  - handlers.go: Uses these types
  - subsidy/: Domain types
*/
package api

import (
	"fmt"
	"time"

	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/subsidy"
)

// =============================================================================
// CLIENTS
// =============================================================================

type ClientDTO struct {
	ID              string `json:"id"`
	OfficeID        string `json:"office_id"`
	Name            string `json:"name"`
	ContactPerson   string `json:"contact_person"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	EmployeeCount   int    `json:"employee_count"`
	Industry        string `json:"industry"`
	PlanSubmittedAt string `json:"plan_submitted_at,omitempty"`
	Notes           string `json:"notes"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// ClientRequest is used for both create and update. On update, absent
// fields are left unchanged.
type ClientRequest struct {
	Name            *string `json:"name"`
	ContactPerson   *string `json:"contact_person"`
	Email           *string `json:"email"`
	Phone           *string `json:"phone"`
	EmployeeCount   *int    `json:"employee_count"`
	Industry        *string `json:"industry"`
	PlanSubmittedAt *string `json:"plan_submitted_at"` // "" clears
	Notes           *string `json:"notes"`
}

// =============================================================================
// APPLICATIONS
// =============================================================================

// ApplicationDTO is an application with the fields derived at request time.
type ApplicationDTO struct {
	ID                  string          `json:"id"`
	OfficeID            string          `json:"office_id"`
	ClientID            string          `json:"client_id"`
	ClientName          string          `json:"client_name,omitempty"`
	WorkerName          string          `json:"worker_name"`
	ConversionType      string          `json:"conversion_type"`
	ConversionLabel     string          `json:"conversion_label"`
	ConversionDate      string          `json:"conversion_date"`
	ApplicationDeadline string          `json:"application_deadline,omitempty"`
	Status              string          `json:"status"`
	SubsidyAmount       int64           `json:"subsidy_amount"`
	PriorityTarget      bool            `json:"priority_target"`
	PreTotalSalary      int64           `json:"pre_total_salary"`
	PostTotalSalary     int64           `json:"post_total_salary"`
	Checklist           map[string]bool `json:"checklist"`
	Notes               string          `json:"notes"`
	CreatedAt           string          `json:"created_at,omitempty"`
	UpdatedAt           string          `json:"updated_at,omitempty"`

	// Derived
	HasDeadline       bool              `json:"has_deadline"`
	DaysRemaining     *int              `json:"days_remaining,omitempty"`
	Bucket            string            `json:"bucket"`
	StatusLabel       string            `json:"status_label"`
	ChecklistProgress ChecklistProgress `json:"checklist_progress"`
	PlanWarning       string            `json:"plan_warning,omitempty"`
}

type ChecklistProgress struct {
	Done     int      `json:"done"`
	Required int      `json:"required"`
	Percent  int      `json:"percent"`
	Missing  []string `json:"missing"`
}

// ApplicationRequest is used for both create and update. Status is only
// honoured on create; later changes go through the status endpoint.
type ApplicationRequest struct {
	ClientID            *string         `json:"client_id"`
	WorkerName          *string         `json:"worker_name"`
	ConversionType      *string         `json:"conversion_type"`
	ConversionDate      *string         `json:"conversion_date"`
	ApplicationDeadline *string         `json:"application_deadline"` // "" clears
	Status              *string         `json:"status"`
	SubsidyAmount       *int64          `json:"subsidy_amount"`
	PriorityTarget      *bool           `json:"priority_target"`
	PreTotalSalary      *int64          `json:"pre_total_salary"`
	PostTotalSalary     *int64          `json:"post_total_salary"`
	Checklist           map[string]bool `json:"checklist"`
	Notes               *string         `json:"notes"`
	// SuggestDeadline fills application_deadline from the conversion date
	// when no deadline is given.
	SuggestDeadline bool `json:"suggest_deadline"`
}

type StatusChangeRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type StatusChangeDTO struct {
	From      string `json:"from"`
	FromLabel string `json:"from_label"`
	To        string `json:"to"`
	ToLabel   string `json:"to_label"`
	Note      string `json:"note,omitempty"`
	ChangedAt string `json:"changed_at"`
}

// ChecklistRequest sets individual checklist items.
type ChecklistRequest struct {
	Items map[string]bool `json:"items"`
}

// DeadlineRowDTO is one row of the deadline calendar.
type DeadlineRowDTO struct {
	ApplicationID string `json:"application_id"`
	ClientID      string `json:"client_id"`
	ClientName    string `json:"client_name"`
	WorkerName    string `json:"worker_name"`
	Deadline      string `json:"deadline"`
	DaysRemaining int    `json:"days_remaining"`
	Bucket        string `json:"bucket"`
	Status        string `json:"status"`
	StatusLabel   string `json:"status_label"`
}

type DeadlinesResponse struct {
	AsOf    string           `json:"as_of"`
	Rows    []DeadlineRowDTO `json:"rows"`
	Summary map[string]int   `json:"summary"`
}

// =============================================================================
// ELIGIBILITY
// =============================================================================

type MonthlySalaryDTO struct {
	YearMonth          string `json:"year_month,omitempty"`
	BaseSalary         int64  `json:"base_salary"`
	FixedAllowances    int64  `json:"fixed_allowances"`
	OvertimePay        int64  `json:"overtime_pay"`
	CommutingAllowance int64  `json:"commuting_allowance"`
	WorkDays           int    `json:"work_days"`
	ScheduledWorkDays  int    `json:"scheduled_work_days"`
}

type EligibilityRequest struct {
	Pre  []MonthlySalaryDTO `json:"pre"`
	Post []MonthlySalaryDTO `json:"post"`
	// When set, the totals are saved onto the application.
	OfficeID      string `json:"office_id,omitempty"`
	ApplicationID string `json:"application_id,omitempty"`
}

type EligibilityResponse struct {
	Success                 bool     `json:"success"`
	PreTotalSalary          int64    `json:"pre_total_salary"`
	PostTotalSalary         int64    `json:"post_total_salary"`
	IncreaseAmount          int64    `json:"increase_amount"`
	IncreaseRate            string   `json:"increase_rate"`
	MeetsRequirement        bool     `json:"meets_requirement"`
	RequiredMonthlyIncrease *int64   `json:"required_monthly_increase,omitempty"`
	Message                 string   `json:"message"`
	Warnings                []string `json:"warnings"`
	Errors                  []string `json:"errors"`
	Saved                   bool     `json:"saved,omitempty"`
}

type ComparisonMonthsResponse struct {
	ConversionDate    string   `json:"conversion_date"`
	PreMonths         []string `json:"pre_months"`
	PostMonths        []string `json:"post_months"`
	SuggestedDeadline string   `json:"suggested_deadline"`
}

// =============================================================================
// OCR
// =============================================================================

type OCRResponse struct {
	DocumentType  string             `json:"document_type"`
	DocumentLabel string             `json:"document_label"`
	Fields        any                `json:"fields"`
	SalaryRecords []MonthlySalaryDTO `json:"salary_records,omitempty"`
}

// =============================================================================
// SESSIONS
// =============================================================================

type LoginRequest struct {
	Password string `json:"password"`
}

type SessionDTO struct {
	Token       string `json:"token,omitempty"`
	ExpiresAt   string `json:"expires_at"`
	AuthEnabled bool   `json:"auth_enabled"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request to load a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
	OfficeID   string `json:"office_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatDate(tp generic.TimePoint) string {
	if tp.IsZero() {
		return ""
	}
	return tp.String()
}

// parseOptionalDate accepts "" as "not set".
func parseOptionalDate(field, s string) (generic.TimePoint, error) {
	if s == "" {
		return generic.TimePoint{}, nil
	}
	tp, err := generic.ParseDate(s)
	if err != nil {
		return generic.TimePoint{}, &generic.ValidationError{Field: field, Problems: []string{
			fmt.Sprintf("%q is not a YYYY-MM-DD date", s),
		}}
	}
	return tp, nil
}

func toClientDTO(c subsidy.Client) ClientDTO {
	return ClientDTO{
		ID:              string(c.ID),
		OfficeID:        string(c.OfficeID),
		Name:            c.Name,
		ContactPerson:   c.ContactPerson,
		Email:           c.Email,
		Phone:           c.Phone,
		EmployeeCount:   c.EmployeeCount,
		Industry:        c.Industry,
		PlanSubmittedAt: formatDate(c.PlanSubmittedAt),
		Notes:           c.Notes,
		CreatedAt:       formatTime(c.CreatedAt),
		UpdatedAt:       formatTime(c.UpdatedAt),
	}
}

// toClientPatch converts the request. Absent fields stay nil.
func (req ClientRequest) toClientPatch() (subsidy.ClientPatch, error) {
	patch := subsidy.ClientPatch{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		EmployeeCount: req.EmployeeCount,
		Industry:      req.Industry,
		Notes:         req.Notes,
	}
	if req.PlanSubmittedAt != nil {
		tp, err := parseOptionalDate("plan_submitted_at", *req.PlanSubmittedAt)
		if err != nil {
			return patch, err
		}
		patch.PlanSubmittedAt = &tp
	}
	return patch, nil
}

// toClient builds a new client for office from the request.
func (req ClientRequest) toClient(office generic.OfficeID) (subsidy.Client, error) {
	patch, err := req.toClientPatch()
	if err != nil {
		return subsidy.Client{}, err
	}
	c := subsidy.Client{OfficeID: office}
	patch.Apply(&c)
	return c, nil
}

func toApplicationDTO(v subsidy.ApplicationView, client *subsidy.Client) ApplicationDTO {
	a := v.Application
	checklist := make(map[string]bool, len(a.Checklist))
	for k, done := range a.Checklist {
		checklist[string(k)] = done
	}
	progress := a.Checklist.Progress(a.ConversionType)
	missing := make([]string, 0)
	for _, m := range a.Checklist.Missing(a.ConversionType) {
		missing = append(missing, string(m))
	}

	dto := ApplicationDTO{
		ID:                  string(a.ID),
		OfficeID:            string(a.OfficeID),
		ClientID:            string(a.ClientID),
		WorkerName:          a.WorkerName,
		ConversionType:      string(a.ConversionType),
		ConversionLabel:     subsidy.ConversionLabel(a.ConversionType),
		ConversionDate:      formatDate(a.ConversionDate),
		ApplicationDeadline: formatDate(a.ApplicationDeadline),
		Status:              string(a.Status),
		SubsidyAmount:       a.SubsidyAmount.Int64(),
		PriorityTarget:      a.PriorityTarget,
		PreTotalSalary:      a.PreTotalSalary.Int64(),
		PostTotalSalary:     a.PostTotalSalary.Int64(),
		Checklist:           checklist,
		Notes:               a.Notes,
		CreatedAt:           formatTime(a.CreatedAt),
		UpdatedAt:           formatTime(a.UpdatedAt),
		HasDeadline:         v.HasDeadline,
		Bucket:              string(v.Bucket),
		StatusLabel:         v.StatusLabel,
		ChecklistProgress: ChecklistProgress{
			Done:     progress.Done,
			Required: progress.Required,
			Percent:  progress.Percent,
			Missing:  missing,
		},
	}
	if v.HasDeadline {
		days := v.DaysRemaining
		dto.DaysRemaining = &days
	}
	if client != nil {
		dto.ClientName = client.Name
		dto.PlanWarning = subsidy.PlanWarning(*client, a)
	}
	return dto
}

// toApplicationPatch converts the request. Absent fields stay nil.
func (req ApplicationRequest) toApplicationPatch() (subsidy.ApplicationPatch, error) {
	var problems []string
	patch := subsidy.ApplicationPatch{
		WorkerName:     req.WorkerName,
		PriorityTarget: req.PriorityTarget,
		Notes:          req.Notes,
	}
	if req.ConversionType != nil {
		ct := subsidy.ConversionType(*req.ConversionType)
		patch.ConversionType = &ct
	}
	if req.ConversionDate != nil {
		tp, err := parseOptionalDate("conversion_date", *req.ConversionDate)
		if err != nil {
			problems = append(problems, err.Error())
		}
		patch.ConversionDate = &tp
	}
	if req.ApplicationDeadline != nil {
		tp, err := parseOptionalDate("application_deadline", *req.ApplicationDeadline)
		if err != nil {
			problems = append(problems, err.Error())
		}
		patch.ApplicationDeadline = &tp
	}
	if req.SubsidyAmount != nil {
		amt := generic.NewYen(*req.SubsidyAmount)
		patch.SubsidyAmount = &amt
	}
	if req.PreTotalSalary != nil {
		amt := generic.NewYen(*req.PreTotalSalary)
		patch.PreTotalSalary = &amt
	}
	if req.PostTotalSalary != nil {
		amt := generic.NewYen(*req.PostTotalSalary)
		patch.PostTotalSalary = &amt
	}
	if len(req.Checklist) > 0 {
		patch.Checklist = toChecklist(req.Checklist)
	}
	if len(problems) > 0 {
		return patch, &generic.ValidationError{Field: "application", Problems: problems}
	}
	return patch, nil
}

// toApplication builds a new application for office from the request.
func (req ApplicationRequest) toApplication(office generic.OfficeID) (subsidy.Application, error) {
	patch, err := req.toApplicationPatch()
	if err != nil {
		return subsidy.Application{}, err
	}
	a := subsidy.Application{OfficeID: office, SubsidyAmount: generic.ZeroYen()}
	if req.ClientID != nil {
		a.ClientID = generic.ClientID(*req.ClientID)
	}
	if req.Status != nil {
		a.Status = subsidy.ApplicationStatus(*req.Status)
	}
	patch.Apply(&a)
	if req.SuggestDeadline && !a.HasDeadline() && !a.ConversionDate.IsZero() {
		a.ApplicationDeadline = subsidy.SuggestDeadline(a.ConversionDate)
	}
	return a, nil
}

func toChecklist(items map[string]bool) subsidy.Checklist {
	c := make(subsidy.Checklist, len(items))
	for k, v := range items {
		c[subsidy.DocumentKind(k)] = v
	}
	return c
}

func toStatusChangeDTO(c subsidy.StatusChange) StatusChangeDTO {
	from := ""
	fromLabel := ""
	if c.From != "" {
		from = string(c.From)
		fromLabel = subsidy.StatusLabel(c.From)
	}
	return StatusChangeDTO{
		From:      from,
		FromLabel: fromLabel,
		To:        string(c.To),
		ToLabel:   subsidy.StatusLabel(c.To),
		Note:      c.Note,
		ChangedAt: formatTime(c.ChangedAt),
	}
}

func toDeadlineRow(v subsidy.ApplicationView, clientName string) DeadlineRowDTO {
	return DeadlineRowDTO{
		ApplicationID: string(v.ID),
		ClientID:      string(v.ClientID),
		ClientName:    clientName,
		WorkerName:    v.WorkerName,
		Deadline:      formatDate(v.ApplicationDeadline),
		DaysRemaining: v.DaysRemaining,
		Bucket:        string(v.Bucket),
		Status:        string(v.Status),
		StatusLabel:   v.StatusLabel,
	}
}

func (d MonthlySalaryDTO) toRecord() subsidy.MonthlySalaryRecord {
	return subsidy.MonthlySalaryRecord{
		YearMonth:          d.YearMonth,
		BaseSalary:         generic.NewYen(d.BaseSalary),
		FixedAllowances:    generic.NewYen(d.FixedAllowances),
		OvertimePay:        generic.NewYen(d.OvertimePay),
		CommutingAllowance: generic.NewYen(d.CommutingAllowance),
		WorkDays:           d.WorkDays,
		ScheduledWorkDays:  d.ScheduledWorkDays,
	}
}

func toMonthlySalaryDTO(r subsidy.MonthlySalaryRecord) MonthlySalaryDTO {
	return MonthlySalaryDTO{
		YearMonth:          r.YearMonth,
		BaseSalary:         r.BaseSalary.Int64(),
		FixedAllowances:    r.FixedAllowances.Int64(),
		OvertimePay:        r.OvertimePay.Int64(),
		CommutingAllowance: r.CommutingAllowance.Int64(),
		WorkDays:           r.WorkDays,
		ScheduledWorkDays:  r.ScheduledWorkDays,
	}
}

func toRecords(dtos []MonthlySalaryDTO) []subsidy.MonthlySalaryRecord {
	out := make([]subsidy.MonthlySalaryRecord, len(dtos))
	for i, d := range dtos {
		out[i] = d.toRecord()
	}
	return out
}

func toEligibilityResponse(r subsidy.EligibilityResult) EligibilityResponse {
	resp := EligibilityResponse{
		Success:          r.Success,
		PreTotalSalary:   r.PreTotalSalary.Int64(),
		PostTotalSalary:  r.PostTotalSalary.Int64(),
		IncreaseAmount:   r.IncreaseAmount.Int64(),
		IncreaseRate:     r.RateForDisplay(),
		MeetsRequirement: r.MeetsRequirement,
		Message:          r.Message,
		Warnings:         nonNil(r.Warnings),
		Errors:           nonNil(r.Errors),
	}
	if r.Success && !r.MeetsRequirement {
		n := r.RequiredMonthlyIncrease.Int64()
		resp.RequiredMonthlyIncrease = &n
	}
	return resp
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
