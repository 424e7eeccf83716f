/*
Package transfer moves an office's records in and out of the desk.

PURPOSE:
  Backup and migration: one JSON document holds every client and
  application of an office. Import either merges (upsert by ID) or
  replaces the office's records wholesale. A CSV export of applications
  gives consultants a spreadsheet view.

DOCUMENT FORMAT (version 1):
  {
    "version": 1,
    "office_id": "office-1",
    "exported_at": "2025-06-10T09:00:00+09:00",
    "clients":      [ { "id": "...", "name": "...", ... } ],
    "applications": [ { "id": "...", "client_id": "...", "checklist": ["career_up_plan"], ... } ]
  }

  Money is whole yen as an integer. Dates are YYYY-MM-DD; an empty
  string means "not set". Unknown fields are ignored so older desks can
  read newer exports.

ATOMICITY:
  Import hands the whole batch to Repository.Restore, which writes all or
  nothing.

SEE ALSO:
  - csv.go: Spreadsheet export
  - subsidy/repository.go: Restore
*/
package transfer

import (
	"context"
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/subsidy"
)

// FormatVersion is the document version written by Export.
const FormatVersion = 1

// =============================================================================
// DOCUMENT
// =============================================================================

type Document struct {
	Version      int                 `json:"version"`
	OfficeID     generic.OfficeID    `json:"office_id"`
	ExportedAt   time.Time           `json:"exported_at"`
	Clients      []ClientRecord      `json:"clients"`
	Applications []ApplicationRecord `json:"applications"`
}

type ClientRecord struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ContactPerson   string    `json:"contact_person,omitempty"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	EmployeeCount   int       `json:"employee_count,omitempty"`
	Industry        string    `json:"industry,omitempty"`
	PlanSubmittedAt string    `json:"plan_submitted_at,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

type ApplicationRecord struct {
	ID                  string    `json:"id"`
	ClientID            string    `json:"client_id"`
	WorkerName          string    `json:"worker_name"`
	ConversionType      string    `json:"conversion_type,omitempty"`
	ConversionDate      string    `json:"conversion_date"`
	ApplicationDeadline string    `json:"application_deadline,omitempty"`
	Status              string    `json:"status,omitempty"`
	SubsidyAmount       int64     `json:"subsidy_amount"`
	PriorityTarget      bool      `json:"priority_target,omitempty"`
	PreTotalSalary      int64     `json:"pre_total_salary,omitempty"`
	PostTotalSalary     int64     `json:"post_total_salary,omitempty"`
	Checklist           []string  `json:"checklist,omitempty"`
	Notes               string    `json:"notes,omitempty"`
	CreatedAt           time.Time `json:"created_at,omitempty"`
	UpdatedAt           time.Time `json:"updated_at,omitempty"`
}

// =============================================================================
// EXPORT
// =============================================================================

// Export snapshots every record of office.
func Export(ctx context.Context, repo subsidy.Repository, office generic.OfficeID, now time.Time) (*Document, error) {
	clients, err := repo.ListClients(ctx, office)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	apps, err := repo.ListApplications(ctx, office, subsidy.ApplicationFilter{})
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}

	doc := &Document{
		Version:      FormatVersion,
		OfficeID:     office,
		ExportedAt:   now,
		Clients:      make([]ClientRecord, 0, len(clients)),
		Applications: make([]ApplicationRecord, 0, len(apps)),
	}
	for _, c := range clients {
		doc.Clients = append(doc.Clients, clientRecord(c))
	}
	for _, a := range apps {
		doc.Applications = append(doc.Applications, applicationRecord(a))
	}
	return doc, nil
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func clientRecord(c subsidy.Client) ClientRecord {
	return ClientRecord{
		ID:              string(c.ID),
		Name:            c.Name,
		ContactPerson:   c.ContactPerson,
		Email:           c.Email,
		Phone:           c.Phone,
		EmployeeCount:   c.EmployeeCount,
		Industry:        c.Industry,
		PlanSubmittedAt: dateString(c.PlanSubmittedAt),
		Notes:           c.Notes,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func applicationRecord(a subsidy.Application) ApplicationRecord {
	checked := a.Checklist.Checked()
	docs := make([]string, len(checked))
	for i, d := range checked {
		docs[i] = string(d)
	}
	return ApplicationRecord{
		ID:                  string(a.ID),
		ClientID:            string(a.ClientID),
		WorkerName:          a.WorkerName,
		ConversionType:      string(a.ConversionType),
		ConversionDate:      dateString(a.ConversionDate),
		ApplicationDeadline: dateString(a.ApplicationDeadline),
		Status:              string(a.Status),
		SubsidyAmount:       a.SubsidyAmount.Int64(),
		PriorityTarget:      a.PriorityTarget,
		PreTotalSalary:      a.PreTotalSalary.Int64(),
		PostTotalSalary:     a.PostTotalSalary.Int64(),
		Checklist:           docs,
		Notes:               a.Notes,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

func dateString(tp generic.TimePoint) string {
	if tp.IsZero() {
		return ""
	}
	return tp.String()
}

// =============================================================================
// IMPORT
// =============================================================================

// Mode selects how Import treats existing records.
type Mode string

const (
	ModeMerge   Mode = "merge"   // upsert by ID, keep everything else
	ModeReplace Mode = "replace" // drop the office's records first
)

// ParseMode accepts "merge", "replace" or "" (merge).
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeMerge:
		return ModeMerge, nil
	case ModeReplace:
		return ModeReplace, nil
	}
	return "", &generic.ValidationError{Field: "mode", Problems: []string{fmt.Sprintf("unknown import mode %q", s)}}
}

// Summary reports what an import loaded.
type Summary struct {
	Mode         Mode `json:"mode"`
	Clients      int  `json:"clients"`
	Applications int  `json:"applications"`
}

// Decode reads a document and checks its version.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &generic.ValidationError{Field: "document", Problems: []string{err.Error()}}
	}
	if doc.Version == 0 {
		doc.Version = FormatVersion
	}
	if doc.Version > FormatVersion {
		return nil, &generic.ValidationError{Field: "document", Problems: []string{
			fmt.Sprintf("version %d is newer than supported version %d", doc.Version, FormatVersion),
		}}
	}
	return &doc, nil
}

// Records converts the document into domain records for office, collecting
// every conversion problem before failing.
func (d *Document) Records(office generic.OfficeID) ([]subsidy.Client, []subsidy.Application, error) {
	var problems []string

	clients := make([]subsidy.Client, 0, len(d.Clients))
	for i, r := range d.Clients {
		plan, err := optionalDate(r.PlanSubmittedAt)
		if err != nil {
			problems = append(problems, fmt.Sprintf("clients[%d].plan_submitted_at: %v", i, err))
		}
		clients = append(clients, subsidy.Client{
			ID:              generic.ClientID(r.ID),
			OfficeID:        office,
			Name:            r.Name,
			ContactPerson:   r.ContactPerson,
			Email:           r.Email,
			Phone:           r.Phone,
			EmployeeCount:   r.EmployeeCount,
			Industry:        r.Industry,
			PlanSubmittedAt: plan,
			Notes:           r.Notes,
			CreatedAt:       r.CreatedAt,
			UpdatedAt:       r.UpdatedAt,
		})
	}

	apps := make([]subsidy.Application, 0, len(d.Applications))
	for i, r := range d.Applications {
		conversion, err := optionalDate(r.ConversionDate)
		if err != nil {
			problems = append(problems, fmt.Sprintf("applications[%d].conversion_date: %v", i, err))
		}
		deadline, err := optionalDate(r.ApplicationDeadline)
		if err != nil {
			problems = append(problems, fmt.Sprintf("applications[%d].application_deadline: %v", i, err))
		}
		checklist := make(subsidy.Checklist, len(r.Checklist))
		for _, doc := range r.Checklist {
			checklist[subsidy.DocumentKind(doc)] = true
		}
		apps = append(apps, subsidy.Application{
			ID:                  generic.ApplicationID(r.ID),
			OfficeID:            office,
			ClientID:            generic.ClientID(r.ClientID),
			WorkerName:          r.WorkerName,
			ConversionType:      subsidy.ConversionType(r.ConversionType),
			ConversionDate:      conversion,
			ApplicationDeadline: deadline,
			Status:              legacyStatus(r.Status),
			SubsidyAmount:       generic.NewYen(r.SubsidyAmount),
			PriorityTarget:      r.PriorityTarget,
			PreTotalSalary:      generic.NewYen(r.PreTotalSalary),
			PostTotalSalary:     generic.NewYen(r.PostTotalSalary),
			Checklist:           checklist,
			Notes:               r.Notes,
			CreatedAt:           r.CreatedAt,
			UpdatedAt:           r.UpdatedAt,
		})
	}

	if len(problems) > 0 {
		return nil, nil, &generic.ValidationError{Field: "document", Problems: problems}
	}
	return clients, apps, nil
}

// Import loads doc into office.
func Import(ctx context.Context, repo subsidy.Repository, office generic.OfficeID, doc *Document, mode Mode) (Summary, error) {
	clients, apps, err := doc.Records(office)
	if err != nil {
		return Summary{}, err
	}
	if err := repo.Restore(ctx, office, clients, apps, mode == ModeReplace); err != nil {
		return Summary{}, err
	}
	return Summary{Mode: mode, Clients: len(clients), Applications: len(apps)}, nil
}

func optionalDate(s string) (generic.TimePoint, error) {
	if s == "" {
		return generic.TimePoint{}, nil
	}
	return generic.ParseDate(s)
}

// legacyStatus maps unknown or missing codes to preparing, matching how
// they are displayed.
func legacyStatus(s string) subsidy.ApplicationStatus {
	status := subsidy.ApplicationStatus(s)
	if !status.Valid() {
		return subsidy.StatusPreparing
	}
	return status
}
