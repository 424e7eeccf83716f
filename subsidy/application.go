package subsidy

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/careerup/generic"
)

// =============================================================================
// STATUS - Application lifecycle
// =============================================================================

// ApplicationStatus is the lifecycle code of a subsidy application.
type ApplicationStatus string

const (
	StatusPreparing      ApplicationStatus = "preparing"
	StatusDocumentsReady ApplicationStatus = "documents_ready"
	StatusSubmitted      ApplicationStatus = "submitted"
	StatusUnderReview    ApplicationStatus = "under_review"
	StatusApproved       ApplicationStatus = "approved"
	StatusPaid           ApplicationStatus = "paid"
	StatusRejected       ApplicationStatus = "rejected"
)

// pipeline is the forward order. rejected sits outside it.
var pipeline = []ApplicationStatus{
	StatusPreparing,
	StatusDocumentsReady,
	StatusSubmitted,
	StatusUnderReview,
	StatusApproved,
	StatusPaid,
}

var statusLabels = map[ApplicationStatus]string{
	StatusPreparing:      "準備中",
	StatusDocumentsReady: "書類準備完了",
	StatusSubmitted:      "申請済み",
	StatusUnderReview:    "審査中",
	StatusApproved:       "支給決定",
	StatusPaid:           "入金済み",
	StatusRejected:       "不支給",
}

// AllStatuses returns every known status, pipeline order first.
func AllStatuses() []ApplicationStatus {
	out := make([]ApplicationStatus, 0, len(pipeline)+1)
	out = append(out, pipeline...)
	return append(out, StatusRejected)
}

// Valid reports whether s is a known status code.
func (s ApplicationStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// StatusLabel returns the display label for code. Unknown or empty codes
// (legacy records) render as preparing.
func StatusLabel(code ApplicationStatus) string {
	if label, ok := statusLabels[code]; ok {
		return label
	}
	return statusLabels[StatusPreparing]
}

// IsClosed reports whether no further work is expected on the application.
// Closed applications never count toward deadline alerts.
func (s ApplicationStatus) IsClosed() bool {
	switch s {
	case StatusSubmitted, StatusUnderReview, StatusApproved, StatusPaid, StatusRejected:
		return true
	}
	return false
}

func pipelineIndex(s ApplicationStatus) int {
	for i, p := range pipeline {
		if p == s {
			return i
		}
	}
	return -1
}

// CanTransition checks a status move in isolation.
//
// Allowed:
//   - any forward move along the pipeline (skipping is allowed)
//   - submitted / under_review -> rejected
//   - anything except paid -> preparing (rework)
func CanTransition(from, to ApplicationStatus) error {
	if !from.Valid() {
		from = StatusPreparing
	}
	deny := func(reason string) error {
		return &generic.TransitionError{From: string(from), To: string(to), Reason: reason}
	}

	if !to.Valid() {
		return deny("unknown status")
	}
	if from == to {
		return deny("already in this status")
	}

	switch {
	case to == StatusPreparing:
		if from == StatusPaid {
			return deny("paid applications are final")
		}
		return nil
	case to == StatusRejected:
		if from == StatusSubmitted || from == StatusUnderReview {
			return nil
		}
		return deny("only submitted applications can be rejected")
	case from == StatusRejected:
		return deny("rejected applications must be reopened as preparing first")
	}

	if pipelineIndex(to) <= pipelineIndex(from) {
		return deny("cannot move backwards except to preparing")
	}
	return nil
}

// =============================================================================
// CONVERSION TYPE
// =============================================================================

// ConversionType is the kind of employment conversion being subsidized.
type ConversionType string

const (
	ConversionFixedTermToRegular  ConversionType = "fixed_term_to_regular"
	ConversionIndefiniteToRegular ConversionType = "indefinite_to_regular"
	ConversionDispatchToRegular   ConversionType = "dispatch_to_regular"
)

var conversionLabels = map[ConversionType]string{
	ConversionFixedTermToRegular:  "有期雇用→正規雇用",
	ConversionIndefiniteToRegular: "無期雇用→正規雇用",
	ConversionDispatchToRegular:   "派遣→正規雇用（直接雇用）",
}

func (c ConversionType) Valid() bool {
	_, ok := conversionLabels[c]
	return ok
}

func ConversionLabel(c ConversionType) string {
	if label, ok := conversionLabels[c]; ok {
		return label
	}
	return string(c)
}

// =============================================================================
// APPLICATION
// =============================================================================

// Application is one subsidy application for one converted worker.
type Application struct {
	ID       generic.ApplicationID
	OfficeID generic.OfficeID
	ClientID generic.ClientID

	WorkerName     string
	ConversionType ConversionType
	ConversionDate generic.TimePoint

	// ApplicationDeadline is optional; the zero TimePoint means "no deadline".
	ApplicationDeadline generic.TimePoint

	Status         ApplicationStatus
	SubsidyAmount  generic.Amount
	PriorityTarget bool // 重点支援対象者, raises the subsidy tier

	// Totals from the last wage-test run. Zero means "not yet calculated".
	PreTotalSalary  generic.Amount
	PostTotalSalary generic.Amount

	Checklist Checklist
	Notes     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasDeadline reports whether a deadline is set.
func (a Application) HasDeadline() bool {
	return !a.ApplicationDeadline.IsZero()
}

// Normalize fills defaults for fields a caller may leave empty.
func (a *Application) Normalize() {
	a.WorkerName = strings.TrimSpace(a.WorkerName)
	if a.Status == "" {
		a.Status = StatusPreparing
	}
	if a.SubsidyAmount.Unit == "" {
		a.SubsidyAmount.Unit = generic.UnitYen
	}
	if a.ConversionType == "" {
		a.ConversionType = ConversionFixedTermToRegular
	}
	if a.Checklist == nil {
		a.Checklist = Checklist{}
	}
}

// Validate checks the fields a consultant must supply.
func (a Application) Validate() error {
	var problems []string
	if a.ClientID == "" {
		problems = append(problems, "client_id is required")
	}
	if strings.TrimSpace(a.WorkerName) == "" {
		problems = append(problems, "worker_name is required")
	}
	if !a.ConversionType.Valid() {
		problems = append(problems, fmt.Sprintf("unknown conversion_type %q", a.ConversionType))
	}
	if a.ConversionDate.IsZero() {
		problems = append(problems, "conversion_date is required")
	}
	if a.Status != "" && !a.Status.Valid() {
		problems = append(problems, fmt.Sprintf("unknown status %q", a.Status))
	}
	if a.SubsidyAmount.IsNegative() {
		problems = append(problems, "subsidy_amount must not be negative")
	}
	if a.HasDeadline() && !a.ConversionDate.IsZero() && a.ApplicationDeadline.Before(a.ConversionDate) {
		problems = append(problems, "application_deadline must not precede conversion_date")
	}
	for kind := range a.Checklist {
		if !KnownDocument(kind) {
			problems = append(problems, fmt.Sprintf("unknown checklist item %q", kind))
		}
	}
	if len(problems) > 0 {
		return &generic.ValidationError{Field: "application", Problems: problems}
	}
	return nil
}

// CheckStatusChange combines CanTransition with the record-level rules:
// documents_ready requires a complete checklist.
func (a Application) CheckStatusChange(to ApplicationStatus) error {
	if err := CanTransition(a.Status, to); err != nil {
		return err
	}
	if to == StatusDocumentsReady && !a.Checklist.Complete(a.ConversionType) {
		missing := a.Checklist.Missing(a.ConversionType)
		labels := make([]string, len(missing))
		for i, m := range missing {
			labels[i] = DocumentLabel(m)
		}
		return &generic.TransitionError{
			From:   string(a.Status),
			To:     string(to),
			Reason: "checklist incomplete: " + strings.Join(labels, ", "),
		}
	}
	return nil
}

// ApplicationPatch holds optional replacements. Nil fields are left unchanged.
// Status is not patchable; use Repository.ChangeStatus.
type ApplicationPatch struct {
	WorkerName          *string
	ConversionType      *ConversionType
	ConversionDate      *generic.TimePoint
	ApplicationDeadline *generic.TimePoint // zero TimePoint clears the deadline
	SubsidyAmount       *generic.Amount
	PriorityTarget      *bool
	PreTotalSalary      *generic.Amount
	PostTotalSalary     *generic.Amount
	Checklist           Checklist // merged item by item
	Notes               *string
}

// Apply writes the patch onto a.
func (p ApplicationPatch) Apply(a *Application) {
	if p.WorkerName != nil {
		a.WorkerName = *p.WorkerName
	}
	if p.ConversionType != nil {
		a.ConversionType = *p.ConversionType
	}
	if p.ConversionDate != nil {
		a.ConversionDate = *p.ConversionDate
	}
	if p.ApplicationDeadline != nil {
		a.ApplicationDeadline = *p.ApplicationDeadline
	}
	if p.SubsidyAmount != nil {
		a.SubsidyAmount = *p.SubsidyAmount
	}
	if p.PriorityTarget != nil {
		a.PriorityTarget = *p.PriorityTarget
	}
	if p.PreTotalSalary != nil {
		a.PreTotalSalary = *p.PreTotalSalary
	}
	if p.PostTotalSalary != nil {
		a.PostTotalSalary = *p.PostTotalSalary
	}
	if len(p.Checklist) > 0 {
		if a.Checklist == nil {
			a.Checklist = Checklist{}
		}
		for k, v := range p.Checklist {
			a.Checklist[k] = v
		}
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
}

// StatusChange is one entry of an application's status history.
type StatusChange struct {
	ApplicationID generic.ApplicationID
	From          ApplicationStatus
	To            ApplicationStatus
	Note          string
	ChangedAt     time.Time
}

// ApplicationFilter narrows ListApplications. Zero fields match everything.
type ApplicationFilter struct {
	ClientID generic.ClientID
	Statuses []ApplicationStatus
}

// Matches reports whether a passes the filter.
func (f ApplicationFilter) Matches(a Application) bool {
	if f.ClientID != "" && a.ClientID != f.ClientID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if a.Status == s {
			return true
		}
	}
	return false
}
