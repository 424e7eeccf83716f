/*
Package ocr reads payroll documents with an external vision model.

PURPOSE:
  Consultants photograph employment contracts, wage ledgers and attendance
  records. The model returns JSON which is decoded into one typed struct per
  document type and validated before anything else sees it. The calculator
  never consumes these values directly; the UI may offer them as a
  pre-fill that the consultant confirms.

EXTRACTION UNION:
  Extraction is implemented only by *EmploymentContract, *WageLedger and
  *AttendanceRecord. Every field the model may leave out is a pointer or an
  empty string.

SEE ALSO:
  - anthropic.go: Messages API client
  - retry.go: Backoff for transient upstream failures
*/
package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/subsidy"
)

// DocumentType tags an uploaded image.
type DocumentType string

const (
	DocEmploymentContract DocumentType = "employment_contract"
	DocWageLedger         DocumentType = "wage_ledger"
	DocAttendanceRecord   DocumentType = "attendance_record"
)

var documentLabels = map[DocumentType]string{
	DocEmploymentContract: "雇用契約書",
	DocWageLedger:         "賃金台帳",
	DocAttendanceRecord:   "出勤簿",
}

// Label returns the Japanese name of the document type.
func (t DocumentType) Label() string { return documentLabels[t] }

func (t DocumentType) Valid() bool {
	_, ok := documentLabels[t]
	return ok
}

// ParseDocumentType accepts the wire name of a document type.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(strings.TrimSpace(s))
	if !t.Valid() {
		return "", &generic.ValidationError{Field: "document_type", Problems: []string{
			fmt.Sprintf("unknown document type %q", s),
		}}
	}
	return t, nil
}

// MaxImageBytes is the largest upload forwarded to the model.
const MaxImageBytes = 5 << 20

var supportedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Document is one uploaded image.
type Document struct {
	Type      DocumentType
	MediaType string
	Data      []byte
}

func (d Document) Validate() error {
	var problems []string
	if !d.Type.Valid() {
		problems = append(problems, fmt.Sprintf("unknown document type %q", d.Type))
	}
	if !supportedMediaTypes[d.MediaType] {
		problems = append(problems, fmt.Sprintf("unsupported media type %q", d.MediaType))
	}
	switch {
	case len(d.Data) == 0:
		problems = append(problems, "image is empty")
	case len(d.Data) > MaxImageBytes:
		problems = append(problems, fmt.Sprintf("image is %d bytes, limit is %d", len(d.Data), MaxImageBytes))
	}
	if len(problems) > 0 {
		return &generic.ValidationError{Field: "document", Problems: problems}
	}
	return nil
}

// Client extracts structured fields from a document.
type Client interface {
	Extract(ctx context.Context, doc Document) (Extraction, error)
}

// =============================================================================
// EXTRACTION UNION
// =============================================================================

// Extraction is the typed result of reading one document.
type Extraction interface {
	DocumentType() DocumentType
	Validate() error
	isExtraction()
}

// EmploymentContract holds the fields read from a labour contract.
type EmploymentContract struct {
	WorkerName     string `json:"worker_name,omitempty"`
	EmployerName   string `json:"employer_name,omitempty"`
	EmploymentType string `json:"employment_type,omitempty"` // as printed, e.g. 有期契約 or 正社員
	StartDate      string `json:"start_date,omitempty"`
	EndDate        string `json:"end_date,omitempty"`
	BaseSalary     *int64 `json:"base_salary,omitempty"`
	// Allowances paid every month regardless of attendance.
	FixedAllowances *int64   `json:"fixed_allowances,omitempty"`
	WeeklyHours     *float64 `json:"weekly_hours,omitempty"`
}

func (*EmploymentContract) isExtraction()              {}
func (*EmploymentContract) DocumentType() DocumentType { return DocEmploymentContract }

func (c *EmploymentContract) Validate() error {
	var p problems
	p.date("start_date", c.StartDate)
	p.date("end_date", c.EndDate)
	p.nonNegative("base_salary", c.BaseSalary)
	p.nonNegative("fixed_allowances", c.FixedAllowances)
	if c.WeeklyHours != nil && (*c.WeeklyHours < 0 || *c.WeeklyHours > 168) {
		p.add("weekly_hours: %v is out of range", *c.WeeklyHours)
	}
	if c.StartDate != "" && c.EndDate != "" && c.EndDate < c.StartDate {
		p.add("end_date %s is before start_date %s", c.EndDate, c.StartDate)
	}
	return p.err(DocEmploymentContract)
}

// WageLedger holds one worker's monthly pay lines.
type WageLedger struct {
	WorkerName string            `json:"worker_name,omitempty"`
	Months     []WageLedgerMonth `json:"months"`
}

type WageLedgerMonth struct {
	YearMonth          string `json:"year_month,omitempty"`
	BaseSalary         *int64 `json:"base_salary,omitempty"`
	FixedAllowances    *int64 `json:"fixed_allowances,omitempty"`
	OvertimePay        *int64 `json:"overtime_pay,omitempty"`
	CommutingAllowance *int64 `json:"commuting_allowance,omitempty"`
	WorkDays           *int   `json:"work_days,omitempty"`
	ScheduledWorkDays  *int   `json:"scheduled_work_days,omitempty"`
}

func (*WageLedger) isExtraction()              {}
func (*WageLedger) DocumentType() DocumentType { return DocWageLedger }

func (l *WageLedger) Validate() error {
	var p problems
	if len(l.Months) == 0 {
		p.add("months: no rows found")
	}
	for i, m := range l.Months {
		prefix := fmt.Sprintf("months[%d]", i)
		p.yearMonth(prefix+".year_month", m.YearMonth)
		p.nonNegative(prefix+".base_salary", m.BaseSalary)
		p.nonNegative(prefix+".fixed_allowances", m.FixedAllowances)
		p.nonNegative(prefix+".overtime_pay", m.OvertimePay)
		p.nonNegative(prefix+".commuting_allowance", m.CommutingAllowance)
		p.days(prefix+".work_days", m.WorkDays)
		p.days(prefix+".scheduled_work_days", m.ScheduledWorkDays)
	}
	return p.err(DocWageLedger)
}

// SalaryRecords converts the ledger rows into calculator input. Missing
// numbers become zero so the calculator's own validation reports them.
func (l *WageLedger) SalaryRecords() []subsidy.MonthlySalaryRecord {
	records := make([]subsidy.MonthlySalaryRecord, 0, len(l.Months))
	for _, m := range l.Months {
		records = append(records, subsidy.MonthlySalaryRecord{
			YearMonth:          m.YearMonth,
			BaseSalary:         yen(m.BaseSalary),
			FixedAllowances:    yen(m.FixedAllowances),
			OvertimePay:        yen(m.OvertimePay),
			CommutingAllowance: yen(m.CommutingAllowance),
			WorkDays:           intOr(m.WorkDays),
			ScheduledWorkDays:  intOr(m.ScheduledWorkDays),
		})
	}
	return records
}

// AttendanceRecord holds one worker's monthly attendance totals.
type AttendanceRecord struct {
	WorkerName string            `json:"worker_name,omitempty"`
	Months     []AttendanceMonth `json:"months"`
}

type AttendanceMonth struct {
	YearMonth         string `json:"year_month,omitempty"`
	WorkDays          *int   `json:"work_days,omitempty"`
	ScheduledWorkDays *int   `json:"scheduled_work_days,omitempty"`
	AbsenceDays       *int   `json:"absence_days,omitempty"`
	PaidLeaveDays     *int   `json:"paid_leave_days,omitempty"`
}

func (*AttendanceRecord) isExtraction()              {}
func (*AttendanceRecord) DocumentType() DocumentType { return DocAttendanceRecord }

func (r *AttendanceRecord) Validate() error {
	var p problems
	if len(r.Months) == 0 {
		p.add("months: no rows found")
	}
	for i, m := range r.Months {
		prefix := fmt.Sprintf("months[%d]", i)
		p.yearMonth(prefix+".year_month", m.YearMonth)
		p.days(prefix+".work_days", m.WorkDays)
		p.days(prefix+".scheduled_work_days", m.ScheduledWorkDays)
		p.days(prefix+".absence_days", m.AbsenceDays)
		p.days(prefix+".paid_leave_days", m.PaidLeaveDays)
		if m.WorkDays != nil && m.ScheduledWorkDays != nil && *m.WorkDays > *m.ScheduledWorkDays {
			p.add("%s: work_days %d exceeds scheduled_work_days %d", prefix, *m.WorkDays, *m.ScheduledWorkDays)
		}
	}
	return p.err(DocAttendanceRecord)
}

// newExtraction returns an empty value of the concrete type for t.
func newExtraction(t DocumentType) (Extraction, error) {
	switch t {
	case DocEmploymentContract:
		return &EmploymentContract{}, nil
	case DocWageLedger:
		return &WageLedger{}, nil
	case DocAttendanceRecord:
		return &AttendanceRecord{}, nil
	}
	return nil, fmt.Errorf("%w: unknown document type %q", generic.ErrInvalidInput, t)
}

// =============================================================================
// HELPERS
// =============================================================================

type problems []string

func (p *problems) add(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p *problems) date(field, s string) {
	if s == "" {
		return
	}
	if _, err := generic.ParseDate(s); err != nil {
		p.add("%s: %q is not YYYY-MM-DD", field, s)
	}
}

func (p *problems) yearMonth(field, s string) {
	if s == "" {
		return
	}
	if _, err := generic.ParseDate(s + "-01"); err != nil {
		p.add("%s: %q is not YYYY-MM", field, s)
	}
}

func (p *problems) nonNegative(field string, v *int64) {
	if v != nil && *v < 0 {
		p.add("%s: %d is negative", field, *v)
	}
}

func (p *problems) days(field string, v *int) {
	if v != nil && (*v < 0 || *v > 31) {
		p.add("%s: %d is out of range", field, *v)
	}
}

func (p problems) err(t DocumentType) error {
	if len(p) == 0 {
		return nil
	}
	return &generic.ValidationError{Field: string(t), Problems: p}
}

func yen(v *int64) generic.Amount {
	if v == nil {
		return generic.ZeroYen()
	}
	return generic.NewYen(*v)
}

func intOr(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
