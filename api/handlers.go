/*
handlers.go - HTTP API handlers for the subsidy desk

PURPOSE:
  Exposes clients, applications, the wage-increase calculator, deadline
  views, import/export and document OCR over REST. Handlers parse the
  request, call the repository or the subsidy package, and serialize the
  result. Every application read carries the fields derived at request time
  (days remaining, bucket, status label, checklist progress).

ENDPOINTS:
  Sessions:
    POST   /api/auth/login                     Exchange the office password for a token
    POST   /api/auth/logout                    End the session
    GET    /api/auth/session                   Current session

  Clients (per office):
    GET    /api/offices/{office}/clients
    POST   /api/offices/{office}/clients
    GET    /api/offices/{office}/clients/{id}
    PATCH  /api/offices/{office}/clients/{id}
    DELETE /api/offices/{office}/clients/{id}  Cascades to applications

  Applications (per office):
    GET    /api/offices/{office}/applications  ?client_id= &status=a,b &bucket=urgent
    POST   /api/offices/{office}/applications
    GET    /api/offices/{office}/applications/{id}
    PATCH  /api/offices/{office}/applications/{id}
    DELETE /api/offices/{office}/applications/{id}
    POST   /api/offices/{office}/applications/{id}/status
    GET    /api/offices/{office}/applications/{id}/history
    PUT    /api/offices/{office}/applications/{id}/checklist

  Deadlines, transfer, events:
    GET    /api/offices/{office}/deadlines     ?within=N
    GET    /api/offices/{office}/export.json
    GET    /api/offices/{office}/export.csv
    POST   /api/offices/{office}/import        ?mode=merge|replace
    GET    /api/offices/{office}/events        Server-sent events

  Calculator and OCR:
    POST   /api/eligibility/calculate
    GET    /api/eligibility/months             ?conversion_date=YYYY-MM-DD
    POST   /api/ocr/extract                    multipart: file, document_type

ERROR HANDLING:
  Errors are returned as JSON {error, code, details}:
  - 400: Validation errors, invalid input
  - 401: Missing, wrong or expired session
  - 404: Resource not found (including other offices' records)
  - 409: Status transition not allowed
  - 502: OCR upstream failure
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - events.go: Change stream
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/warp/careerup/auth"
	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/metrics"
	"github.com/warp/careerup/ocr"
	"github.com/warp/careerup/subsidy"
	"github.com/warp/careerup/transfer"
)

const (
	maxJSONBody   = 1 << 20
	maxImportBody = 32 << 20
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Repo    subsidy.Repository
	Gate    *auth.Gate
	OCR     ocr.Client // nil when no API key is configured
	Policy  subsidy.EligibilityPolicy
	Metrics *metrics.Manager
	Monitor *DeadlineMonitor // optional
	Logger  *slog.Logger

	// Location decides the calendar day used for days remaining.
	Location *time.Location
	Now      func() time.Time

	mu              sync.Mutex
	currentScenario string
}

type HandlerOption func(*Handler)

func WithGate(g *auth.Gate) HandlerOption            { return func(h *Handler) { h.Gate = g } }
func WithOCR(c ocr.Client) HandlerOption             { return func(h *Handler) { h.OCR = c } }
func WithMetrics(m *metrics.Manager) HandlerOption   { return func(h *Handler) { h.Metrics = m } }
func WithMonitor(m *DeadlineMonitor) HandlerOption   { return func(h *Handler) { h.Monitor = m } }
func WithLogger(l *slog.Logger) HandlerOption        { return func(h *Handler) { h.Logger = l } }
func WithLocation(loc *time.Location) HandlerOption  { return func(h *Handler) { h.Location = loc } }
func WithClock(now func() time.Time) HandlerOption   { return func(h *Handler) { h.Now = now } }
func WithPolicy(p subsidy.EligibilityPolicy) HandlerOption {
	return func(h *Handler) { h.Policy = p }
}

// Japan has no daylight saving time, so a fixed zone is exact.
var defaultLocation = time.FixedZone("JST", 9*60*60)

// NewHandler creates a new handler over repo.
func NewHandler(repo subsidy.Repository, opts ...HandlerOption) *Handler {
	h := &Handler{
		Repo:     repo,
		Gate:     auth.NewGate(""),
		Policy:   subsidy.DefaultPolicy(),
		Logger:   slog.New(slog.DiscardHandler),
		Location: defaultLocation,
		Now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.Metrics == nil {
		h.Metrics = metrics.NewManager()
	}
	return h
}

// now is the current instant in the desk's time zone.
func (h *Handler) now() time.Time {
	return h.Now().In(h.Location)
}

func officeParam(r *http.Request) generic.OfficeID {
	return generic.OfficeID(chi.URLParam(r, "office"))
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

const sessionCookie = "careerup_session"

// Login exchanges the office password for a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.Gate.Login(req.Password)
	if err != nil {
		h.Logger.Warn("login failed", "remote", r.RemoteAddr)
		h.writeDomainError(w, r, err)
		return
	}
	h.Metrics.SetActiveSessions(h.Gate.Active())

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, SessionDTO{Token: s.Token, ExpiresAt: formatTime(s.ExpiresAt), AuthEnabled: h.Gate.Enabled()})
}

// Logout ends the caller's session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Gate.Logout(sessionToken(r))
	h.Metrics.SetActiveSessions(h.Gate.Active())
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

// GetSession reports the caller's session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.Gate.Authenticate(sessionToken(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionDTO{ExpiresAt: formatTime(s.ExpiresAt), AuthEnabled: h.Gate.Enabled()})
}

type sessionKey struct{}

// RequireSession rejects requests without a valid session.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return h.requireSession(sessionToken, next)
}

// RequireStreamSession is RequireSession for the event stream, which also
// takes the token from the query string.
func (h *Handler) RequireStreamSession(next http.Handler) http.Handler {
	return h.requireSession(streamToken, next)
}

func (h *Handler) requireSession(tokenOf func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := h.Gate.Authenticate(tokenOf(r))
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, s)))
	})
}

// sessionToken reads the bearer token or the session cookie.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// streamToken also accepts ?token= for EventSource clients, which cannot
// set headers. Other routes never read it, so tokens stay out of most
// access log lines.
func streamToken(r *http.Request) string {
	if t := sessionToken(r); t != "" {
		return t
	}
	return r.URL.Query().Get("token")
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns the office's clients.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Repo.ListClients(r.Context(), officeParam(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = toClientDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetClient returns a single client.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.Repo.GetClient(r.Context(), officeParam(r), generic.ClientID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(*c))
}

// CreateClient creates a client in the office.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := req.toClient(officeParam(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	created, err := h.Repo.CreateClient(r.Context(), c)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(*created))
}

// UpdateClient applies a partial update.
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch, err := req.toClientPatch()
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	updated, err := h.Repo.UpdateClient(r.Context(), officeParam(r), generic.ClientID(chi.URLParam(r, "id")), patch)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(*updated))
}

// DeleteClient removes the client and its applications.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeleteClient(r.Context(), officeParam(r), generic.ClientID(chi.URLParam(r, "id"))); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// APPLICATION HANDLERS
// =============================================================================

// ListApplications returns the office's applications with derived fields.
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	office := officeParam(r)
	q := r.URL.Query()

	filter := subsidy.ApplicationFilter{ClientID: generic.ClientID(q.Get("client_id"))}
	if s := q.Get("status"); s != "" {
		for _, code := range strings.Split(s, ",") {
			status := subsidy.ApplicationStatus(strings.TrimSpace(code))
			if !status.Valid() {
				writeError(w, http.StatusBadRequest, "Unknown status filter", errors.New(string(status)))
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	bucket := subsidy.DeadlineBucket(q.Get("bucket"))

	apps, err := h.Repo.ListApplications(ctx, office, filter)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	clients, err := h.clientIndex(ctx, office)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	now := h.now()
	dtos := make([]ApplicationDTO, 0, len(apps))
	for _, v := range subsidy.DeriveAll(apps, now) {
		if bucket != "" && v.Bucket != bucket {
			continue
		}
		dtos = append(dtos, toApplicationDTO(v, clients[v.ClientID]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetApplication returns a single application with derived fields.
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	a, err := h.Repo.GetApplication(r.Context(), officeParam(r), generic.ApplicationID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeApplication(w, r, http.StatusOK, a)
}

// CreateApplication creates an application for one of the office's clients.
func (h *Handler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req ApplicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := req.toApplication(officeParam(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	created, err := h.Repo.CreateApplication(r.Context(), a)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeApplication(w, r, http.StatusCreated, created)
}

// UpdateApplication applies a partial update. Status is ignored here.
func (h *Handler) UpdateApplication(w http.ResponseWriter, r *http.Request) {
	var req ApplicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status != nil {
		writeError(w, http.StatusBadRequest, "Use the status endpoint to change status", nil)
		return
	}
	patch, err := req.toApplicationPatch()
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	updated, err := h.Repo.UpdateApplication(r.Context(), officeParam(r), generic.ApplicationID(chi.URLParam(r, "id")), patch)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeApplication(w, r, http.StatusOK, updated)
}

// DeleteApplication removes an application and its history.
func (h *Handler) DeleteApplication(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeleteApplication(r.Context(), officeParam(r), generic.ApplicationID(chi.URLParam(r, "id"))); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangeStatus moves an application through the status pipeline.
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusChangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	to := subsidy.ApplicationStatus(req.Status)
	if !to.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown status", errors.New(req.Status))
		return
	}
	updated, err := h.Repo.ChangeStatus(r.Context(), officeParam(r), generic.ApplicationID(chi.URLParam(r, "id")), to, req.Note)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.Logger.Info("application status changed",
		"office", updated.OfficeID, "application", updated.ID, "status", updated.Status)
	h.writeApplication(w, r, http.StatusOK, updated)
}

// GetStatusHistory lists status changes, oldest first.
func (h *Handler) GetStatusHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.Repo.StatusHistory(r.Context(), officeParam(r), generic.ApplicationID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	dtos := make([]StatusChangeDTO, len(history))
	for i, c := range history {
		dtos[i] = toStatusChangeDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetChecklist ticks or unticks checklist items.
func (h *Handler) SetChecklist(w http.ResponseWriter, r *http.Request) {
	var req ChecklistRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "No checklist items given", nil)
		return
	}
	patch := subsidy.ApplicationPatch{Checklist: toChecklist(req.Items)}
	updated, err := h.Repo.UpdateApplication(r.Context(), officeParam(r), generic.ApplicationID(chi.URLParam(r, "id")), patch)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeApplication(w, r, http.StatusOK, updated)
}

func (h *Handler) writeApplication(w http.ResponseWriter, r *http.Request, status int, a *subsidy.Application) {
	client, err := h.Repo.GetClient(r.Context(), a.OfficeID, a.ClientID)
	if err != nil && !generic.IsNotFound(err) {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, status, toApplicationDTO(subsidy.DeriveApplicationView(*a, h.now()), client))
}

func (h *Handler) clientIndex(ctx context.Context, office generic.OfficeID) (map[generic.ClientID]*subsidy.Client, error) {
	clients, err := h.Repo.ListClients(ctx, office)
	if err != nil {
		return nil, err
	}
	idx := make(map[generic.ClientID]*subsidy.Client, len(clients))
	for i := range clients {
		idx[clients[i].ID] = &clients[i]
	}
	return idx, nil
}

// =============================================================================
// DEADLINE HANDLERS
// =============================================================================

// ListDeadlines returns open applications with a deadline at most `within`
// days away (all of them when omitted), soonest first.
func (h *Handler) ListDeadlines(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	office := officeParam(r)

	within := math.MaxInt32
	if s := r.URL.Query().Get("within"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "within must be a non-negative number of days", err)
			return
		}
		within = n
	}

	apps, err := h.Repo.ListApplications(ctx, office, subsidy.ApplicationFilter{})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	clients, err := h.clientIndex(ctx, office)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	now := h.now()
	rows := make([]DeadlineRowDTO, 0)
	for _, v := range subsidy.DueWithin(apps, now, within) {
		name := ""
		if c := clients[v.ClientID]; c != nil {
			name = c.Name
		}
		rows = append(rows, toDeadlineRow(v, name))
	}
	summary := make(map[string]int)
	for b, n := range subsidy.SummarizeDeadlines(apps, now) {
		summary[string(b)] = n
	}
	writeJSON(w, http.StatusOK, DeadlinesResponse{
		AsOf:    generic.DateOf(now).String(),
		Rows:    rows,
		Summary: summary,
	})
}

// =============================================================================
// TRANSFER HANDLERS
// =============================================================================

// ExportJSON downloads the office's records as a transfer document.
func (h *Handler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	office := officeParam(r)
	doc, err := transfer.Export(r.Context(), h.Repo, office, h.now())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := transfer.Encode(&buf, doc); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="careerup-`+string(office)+`.json"`)
	_, _ = w.Write(buf.Bytes())
}

// ExportCSV downloads the office's applications as a spreadsheet.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	office := officeParam(r)
	clients, err := h.Repo.ListClients(ctx, office)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	apps, err := h.Repo.ListApplications(ctx, office, subsidy.ApplicationFilter{})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := transfer.WriteApplicationsCSV(&buf, clients, apps, h.now()); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="applications-`+string(office)+`.csv"`)
	_, _ = w.Write(buf.Bytes())
}

// Import loads a transfer document into the office.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	mode, err := transfer.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	doc, err := transfer.Decode(http.MaxBytesReader(w, r.Body, maxImportBody))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	office := officeParam(r)
	summary, err := transfer.Import(r.Context(), h.Repo, office, doc, mode)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.Metrics.RecordImport(summary.Clients, summary.Applications)
	h.Logger.Info("records imported", "office", office, "mode", mode,
		"clients", summary.Clients, "applications", summary.Applications)
	writeJSON(w, http.StatusOK, summary)
}

// =============================================================================
// ELIGIBILITY HANDLERS
// =============================================================================

// CalculateEligibility runs the wage-increase test. Calculator failures are
// part of the 200 response; only malformed JSON is a 400. When an
// application is named and the check passed validation, its totals are saved.
func (h *Handler) CalculateEligibility(w http.ResponseWriter, r *http.Request) {
	var req EligibilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result := h.Policy.CalculateSalaryIncrease(toRecords(req.Pre), toRecords(req.Post))
	h.Metrics.RecordEligibilityCheck(verdict(result))
	resp := toEligibilityResponse(result)

	if result.Success && req.ApplicationID != "" {
		if _, err := h.Gate.Authenticate(sessionToken(r)); err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		patch := subsidy.ApplicationPatch{
			PreTotalSalary:  &result.PreTotalSalary,
			PostTotalSalary: &result.PostTotalSalary,
		}
		_, err := h.Repo.UpdateApplication(r.Context(), generic.OfficeID(req.OfficeID), generic.ApplicationID(req.ApplicationID), patch)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		resp.Saved = true
	}
	writeJSON(w, http.StatusOK, resp)
}

func verdict(r subsidy.EligibilityResult) string {
	switch {
	case !r.Success:
		return "invalid"
	case r.MeetsRequirement:
		return "pass"
	default:
		return "fail"
	}
}

// ComparisonMonths lists the six months on each side of a conversion date.
func (h *Handler) ComparisonMonths(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("conversion_date")
	conversion, err := generic.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "conversion_date must be YYYY-MM-DD", err)
		return
	}
	pre, post := subsidy.ComparisonMonths(conversion)
	writeJSON(w, http.StatusOK, ComparisonMonthsResponse{
		ConversionDate:    conversion.String(),
		PreMonths:         pre,
		PostMonths:        post,
		SuggestedDeadline: subsidy.SuggestDeadline(conversion).String(),
	})
}

// =============================================================================
// OCR HANDLERS
// =============================================================================

// ExtractDocument forwards an uploaded image to the OCR client.
func (h *Handler) ExtractDocument(w http.ResponseWriter, r *http.Request) {
	if h.OCR == nil {
		writeErrorCode(w, http.StatusServiceUnavailable, "OCR is not configured", "ocr_disabled", nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, ocr.MaxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(ocr.MaxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart upload", err)
		return
	}
	docType, err := ocr.ParseDocumentType(r.FormValue("document_type"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required", err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read upload", err)
		return
	}
	mediaType := header.Header.Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(data)
	}

	ext, err := h.OCR.Extract(r.Context(), ocr.Document{Type: docType, MediaType: mediaType, Data: data})
	if err != nil {
		h.Metrics.RecordOCRRequest(string(docType), ocrOutcome(err))
		h.writeDomainError(w, r, err)
		return
	}
	h.Metrics.RecordOCRRequest(string(docType), "ok")

	resp := OCRResponse{DocumentType: string(docType), DocumentLabel: docType.Label(), Fields: ext}
	if ledger, ok := ext.(*ocr.WageLedger); ok {
		for _, rec := range ledger.SalaryRecords() {
			resp.SalaryRecords = append(resp.SalaryRecords, toMonthlySalaryDTO(rec))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func ocrOutcome(err error) string {
	switch {
	case errors.Is(err, generic.ErrUpstream):
		return "upstream_error"
	case errors.Is(err, generic.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

// =============================================================================
// HEALTH
// =============================================================================

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Repo.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeErrorCode(w, http.StatusServiceUnavailable, "Store unavailable", "unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetMonitorReport returns the last deadline monitor pass.
func (h *Handler) GetMonitorReport(w http.ResponseWriter, r *http.Request) {
	if h.Monitor == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, h.Monitor.Last())
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	writeErrorCode(w, status, message, "", err)
}

func writeErrorCode(w http.ResponseWriter, status int, message, code string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the generic error kinds onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status  int
		code    string
		message string
		details any = err.Error()
	)
	var ve *generic.ValidationError
	var te *generic.TransitionError
	switch {
	case errors.As(err, &ve):
		status, code, message, details = http.StatusBadRequest, "invalid_input", "Invalid "+ve.Field, ve.Problems
	case errors.Is(err, generic.ErrSessionExpired):
		status, code, message = http.StatusUnauthorized, "session_expired", "Session expired"
	case errors.Is(err, generic.ErrUnauthorized):
		status, code, message = http.StatusUnauthorized, "unauthorized", "Login required"
	case generic.IsNotFound(err):
		status, code, message = http.StatusNotFound, "not_found", "Not found"
	case errors.As(err, &te):
		status, code, message = http.StatusConflict, "invalid_transition", "Status change not allowed"
	case errors.Is(err, generic.ErrInvalidInput):
		status, code, message = http.StatusBadRequest, "invalid_input", "Invalid input"
	case errors.Is(err, generic.ErrUpstream):
		status, code, message = http.StatusBadGateway, "upstream_error", "OCR service failed"
	default:
		status, code, message = http.StatusInternalServerError, "internal", "Internal error"
		h.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

// decodeJSON reads a size-limited JSON body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}
