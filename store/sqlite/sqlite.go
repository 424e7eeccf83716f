/*
Package sqlite provides a SQLite-backed subsidy.Repository.

PURPOSE:
  Durable storage for the subsidy desk: clients, applications, their
  status history and document checklists, partitioned by office.

KEY TABLES:
  clients:               One row per client company, keyed (office_id, id)
  applications:          One row per application, FK to clients (cascade)
  status_history:        Append-only log of status changes
  application_checklist: One row per collected document

OFFICE ISOLATION:
  Every key includes office_id and every query filters on it. A record
  from another office is indistinguishable from a missing one.

CASCADES:
  Foreign keys are on. Deleting a client removes its applications,
  their history and their checklist rows in one statement.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, plus WAL journaling so readers
  don't block the writer.

CHANGE FEED:
  Every committed write publishes a generic.Change AFTER commit.

USAGE:
  store, err := sqlite.New("./data/careerup.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Versioned, forward-only, tracked in PRAGMA user_version.
  See migrations.go.

SEE ALSO:
  - subsidy/repository.go: Interface definition
  - store/memory: In-memory implementation for tests and the demo
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/subsidy"
)

// Store implements subsidy.Repository using SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	feed   generic.Feed
	logger *slog.Logger
	now    func() time.Time
}

var _ subsidy.Repository = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for migration and maintenance messages.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls
	// and serializes writers.
	db.SetMaxOpenConns(1)

	store := &Store{
		db:     db,
		logger: discardLogger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Subscribe(office generic.OfficeID, fn func(generic.Change)) func() {
	return s.feed.Subscribe(office, fn)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) ListOffices(ctx context.Context) ([]generic.OfficeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT office_id FROM clients
		UNION
		SELECT office_id FROM applications
		ORDER BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list offices: %w", err)
	}
	defer rows.Close()

	var out []generic.OfficeID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, generic.OfficeID(id))
	}
	return out, rows.Err()
}

// =============================================================================
// CLIENTS
// =============================================================================

const clientColumns = `id, office_id, name, contact_person, email, phone, employee_count,
	industry, plan_submitted_at, notes, created_at, updated_at`

func (s *Store) ListClients(ctx context.Context, office generic.OfficeID) ([]subsidy.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE office_id = ? ORDER BY name, id`, office)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var out []subsidy.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetClient(ctx context.Context, office generic.OfficeID, id generic.ClientID) (*subsidy.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getClient(ctx, s.db, office, id)
}

func getClient(ctx context.Context, q execer, office generic.OfficeID, id generic.ClientID) (*subsidy.Client, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE office_id = ? AND id = ?`, office, id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: "client", ID: string(id), OfficeID: office}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &c, nil
}

func (s *Store) CreateClient(ctx context.Context, c subsidy.Client) (*subsidy.Client, error) {
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.ID == "" {
		c.ID = generic.ClientID(uuid.NewString())
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now

	s.mu.Lock()
	err := upsertClient(ctx, s.db, c)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.feed.Publish(generic.Change{OfficeID: c.OfficeID, Collection: generic.CollectionClients, Kind: generic.ChangeCreated, ID: string(c.ID)})
	return &c, nil
}

func (s *Store) UpdateClient(ctx context.Context, office generic.OfficeID, id generic.ClientID, patch subsidy.ClientPatch) (*subsidy.Client, error) {
	s.mu.Lock()
	c, err := getClient(ctx, s.db, office, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	patch.Apply(c)
	c.Normalize()
	if err := c.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	c.UpdatedAt = s.now()
	err = upsertClient(ctx, s.db, *c)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.feed.Publish(generic.Change{OfficeID: office, Collection: generic.CollectionClients, Kind: generic.ChangeUpdated, ID: string(id)})
	return c, nil
}

func (s *Store) DeleteClient(ctx context.Context, office generic.OfficeID, id generic.ClientID) error {
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE office_id = ? AND id = ?`, office, id)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Kind: "client", ID: string(id), OfficeID: office}
	}

	s.feed.Publish(generic.Change{OfficeID: office, Collection: generic.CollectionClients, Kind: generic.ChangeDeleted, ID: string(id)})
	s.feed.Publish(generic.Change{OfficeID: office, Collection: generic.CollectionApplications, Kind: generic.ChangeDeleted})
	return nil
}

func upsertClient(ctx context.Context, q execer, c subsidy.Client) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(office_id, id) DO UPDATE SET
			name = excluded.name,
			contact_person = excluded.contact_person,
			email = excluded.email,
			phone = excluded.phone,
			employee_count = excluded.employee_count,
			industry = excluded.industry,
			plan_submitted_at = excluded.plan_submitted_at,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`,
		c.ID, c.OfficeID, c.Name, c.ContactPerson, c.Email, c.Phone, c.EmployeeCount,
		c.Industry, nullDate(c.PlanSubmittedAt), c.Notes,
		c.CreatedAt.Format(time.RFC3339Nano), c.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(r rowScanner) (subsidy.Client, error) {
	var (
		c                    subsidy.Client
		id, office           string
		planSubmitted        sql.NullString
		createdAt, updatedAt string
	)
	err := r.Scan(&id, &office, &c.Name, &c.ContactPerson, &c.Email, &c.Phone, &c.EmployeeCount,
		&c.Industry, &planSubmitted, &c.Notes, &createdAt, &updatedAt)
	if err != nil {
		return c, err
	}
	c.ID = generic.ClientID(id)
	c.OfficeID = generic.OfficeID(office)
	c.PlanSubmittedAt = parseDate(planSubmitted)
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return c, nil
}

// =============================================================================
// APPLICATIONS
// =============================================================================

const applicationColumns = `id, office_id, client_id, worker_name, conversion_type, conversion_date,
	application_deadline, status, subsidy_amount, priority_target, pre_total_salary,
	post_total_salary, notes, created_at, updated_at`

func (s *Store) ListApplications(ctx context.Context, office generic.OfficeID, filter subsidy.ApplicationFilter) ([]subsidy.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + applicationColumns + ` FROM applications WHERE office_id = ?`
	args := []any{office}
	if filter.ClientID != "" {
		query += ` AND client_id = ?`
		args = append(args, filter.ClientID)
	}
	query += ` ORDER BY application_deadline IS NULL, application_deadline, worker_name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	var out []subsidy.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		if filter.Matches(a) {
			out = append(out, a)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	checklists, err := loadChecklists(ctx, s.db, office, "")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Checklist = checklists[out[i].ID]
		if out[i].Checklist == nil {
			out[i].Checklist = subsidy.Checklist{}
		}
	}
	return out, nil
}

func (s *Store) GetApplication(ctx context.Context, office generic.OfficeID, id generic.ApplicationID) (*subsidy.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getApplication(ctx, s.db, office, id)
}

func getApplication(ctx context.Context, q execer, office generic.OfficeID, id generic.ApplicationID) (*subsidy.Application, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE office_id = ? AND id = ?`, office, id)
	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: "application", ID: string(id), OfficeID: office}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	checklists, err := loadChecklists(ctx, q, office, id)
	if err != nil {
		return nil, err
	}
	a.Checklist = checklists[id]
	if a.Checklist == nil {
		a.Checklist = subsidy.Checklist{}
	}
	return &a, nil
}

func (s *Store) CreateApplication(ctx context.Context, a subsidy.Application) (*subsidy.Application, error) {
	a.Normalize()
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if a.ID == "" {
		a.ID = generic.ApplicationID(uuid.NewString())
	}
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now

	s.mu.Lock()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getClient(ctx, tx, a.OfficeID, a.ClientID); err != nil {
			return err
		}
		if err := upsertApplication(ctx, tx, a); err != nil {
			return err
		}
		return appendHistory(ctx, tx, a.OfficeID, subsidy.StatusChange{
			ApplicationID: a.ID,
			To:            a.Status,
			ChangedAt:     now,
		})
	})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.feed.Publish(generic.Change{OfficeID: a.OfficeID, Collection: generic.CollectionApplications, Kind: generic.ChangeCreated, ID: string(a.ID)})
	return &a, nil
}

func (s *Store) UpdateApplication(ctx context.Context, office generic.OfficeID, id generic.ApplicationID, patch subsidy.ApplicationPatch) (*subsidy.Application, error) {
	var updated *subsidy.Application

	s.mu.Lock()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		a, err := getApplication(ctx, tx, office, id)
		if err != nil {
			return err
		}
		patch.Apply(a)
		a.Normalize()
		if err := a.Validate(); err != nil {
			return err
		}
		a.UpdatedAt = s.now()
		updated = a
		return upsertApplication(ctx, tx, *a)
	})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.feed.Publish(generic.Change{OfficeID: office, Collection: generic.CollectionApplications, Kind: generic.ChangeUpdated, ID: string(id)})
	return updated, nil
}

func (s *Store) ChangeStatus(ctx context.Context, office generic.OfficeID, id generic.ApplicationID, to subsidy.ApplicationStatus, note string) (*subsidy.Application, error) {
	var updated *subsidy.Application

	s.mu.Lock()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		a, err := getApplication(ctx, tx, office, id)
		if err != nil {
			return err
		}
		if err := a.CheckStatusChange(to); err != nil {
			return err
		}
		now := s.now()
		from := a.Status
		a.Status = to
		a.UpdatedAt = now
		updated = a

		if _, err := tx.ExecContext(ctx,
			`UPDATE applications SET status = ?, updated_at = ? WHERE office_id = ? AND id = ?`,
			to, now.Format(time.RFC3339Nano), office, id); err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}
		return appendHistory(ctx, tx, office, subsidy.StatusChange{
			ApplicationID: id,
			From:          from,
			To:            to,
			Note:          note,
			ChangedAt:     now,
		})
	})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.feed.Publish(generic.Change{OfficeID: office, Collection: generic.CollectionApplications, Kind: generic.ChangeUpdated, ID: string(id)})
	return updated, nil
}

func (s *Store) StatusHistory(ctx context.Context, office generic.OfficeID, id generic.ApplicationID) ([]subsidy.StatusChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applications WHERE office_id = ? AND id = ?`, office, id).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check application: %w", err)
	}
	if exists == 0 {
		return nil, &generic.NotFoundError{Kind: "application", ID: string(id), OfficeID: office}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT from_status, to_status, note, changed_at
		FROM status_history
		WHERE office_id = ? AND application_id = ?
		ORDER BY seq ASC
	`, office, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}
	defer rows.Close()

	var out []subsidy.StatusChange
	for rows.Next() {
		var from, to, note, changedAt string
		if err := rows.Scan(&from, &to, &note, &changedAt); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(time.RFC3339Nano, changedAt)
		out = append(out, subsidy.StatusChange{
			ApplicationID: id,
			From:          subsidy.ApplicationStatus(from),
			To:            subsidy.ApplicationStatus(to),
			Note:          note,
			ChangedAt:     ts,
		})
	}
	return out, rows.Err()
}

func (s *Store) DeleteApplication(ctx context.Context, office generic.OfficeID, id generic.ApplicationID) error {
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE office_id = ? AND id = ?`, office, id)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Kind: "application", ID: string(id), OfficeID: office}
	}

	s.feed.Publish(generic.Change{OfficeID: office, Collection: generic.CollectionApplications, Kind: generic.ChangeDeleted, ID: string(id)})
	return nil
}

func upsertApplication(ctx context.Context, q execer, a subsidy.Application) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO applications (`+applicationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(office_id, id) DO UPDATE SET
			client_id = excluded.client_id,
			worker_name = excluded.worker_name,
			conversion_type = excluded.conversion_type,
			conversion_date = excluded.conversion_date,
			application_deadline = excluded.application_deadline,
			status = excluded.status,
			subsidy_amount = excluded.subsidy_amount,
			priority_target = excluded.priority_target,
			pre_total_salary = excluded.pre_total_salary,
			post_total_salary = excluded.post_total_salary,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`,
		a.ID, a.OfficeID, a.ClientID, a.WorkerName, a.ConversionType,
		a.ConversionDate.String(), nullDate(a.ApplicationDeadline), a.Status,
		a.SubsidyAmount.Value.String(), a.PriorityTarget,
		a.PreTotalSalary.Value.String(), a.PostTotalSalary.Value.String(), a.Notes,
		a.CreatedAt.Format(time.RFC3339Nano), a.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save application: %w", err)
	}
	return saveChecklist(ctx, q, a)
}

func scanApplication(r rowScanner) (subsidy.Application, error) {
	var (
		a                                 subsidy.Application
		id, office, client                string
		conversionType, conversionDate    string
		deadline                          sql.NullString
		status                            string
		subsidyAmount, preTotal, postTotal string
		createdAt, updatedAt              string
	)
	err := r.Scan(&id, &office, &client, &a.WorkerName, &conversionType, &conversionDate,
		&deadline, &status, &subsidyAmount, &a.PriorityTarget, &preTotal,
		&postTotal, &a.Notes, &createdAt, &updatedAt)
	if err != nil {
		return a, err
	}
	a.ID = generic.ApplicationID(id)
	a.OfficeID = generic.OfficeID(office)
	a.ClientID = generic.ClientID(client)
	a.ConversionType = subsidy.ConversionType(conversionType)
	a.ConversionDate = parseDate(sql.NullString{String: conversionDate, Valid: true})
	a.ApplicationDeadline = parseDate(deadline)
	a.Status = subsidy.ApplicationStatus(status)
	if a.SubsidyAmount, err = parseAmount("subsidy_amount", subsidyAmount); err != nil {
		return a, err
	}
	if a.PreTotalSalary, err = parseAmount("pre_total_salary", preTotal); err != nil {
		return a, err
	}
	if a.PostTotalSalary, err = parseAmount("post_total_salary", postTotal); err != nil {
		return a, err
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return a, nil
}

func appendHistory(ctx context.Context, q execer, office generic.OfficeID, c subsidy.StatusChange) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO status_history (office_id, application_id, from_status, to_status, note, changed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, office, c.ApplicationID, c.From, c.To, c.Note, c.ChangedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

// =============================================================================
// CHECKLIST
// =============================================================================

func saveChecklist(ctx context.Context, q execer, a subsidy.Application) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM application_checklist WHERE office_id = ? AND application_id = ?`,
		a.OfficeID, a.ID); err != nil {
		return fmt.Errorf("failed to clear checklist: %w", err)
	}
	for _, doc := range a.Checklist.Checked() {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO application_checklist (office_id, application_id, document) VALUES (?, ?, ?)`,
			a.OfficeID, a.ID, doc); err != nil {
			return fmt.Errorf("failed to save checklist: %w", err)
		}
	}
	return nil
}

// loadChecklists returns checklists for one application, or for the whole
// office when id is empty.
func loadChecklists(ctx context.Context, q execer, office generic.OfficeID, id generic.ApplicationID) (map[generic.ApplicationID]subsidy.Checklist, error) {
	query := `SELECT application_id, document FROM application_checklist WHERE office_id = ?`
	args := []any{office}
	if id != "" {
		query += ` AND application_id = ?`
		args = append(args, id)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load checklists: %w", err)
	}
	defer rows.Close()

	out := make(map[generic.ApplicationID]subsidy.Checklist)
	for rows.Next() {
		var appID, doc string
		if err := rows.Scan(&appID, &doc); err != nil {
			return nil, err
		}
		key := generic.ApplicationID(appID)
		if out[key] == nil {
			out[key] = subsidy.Checklist{}
		}
		out[key][subsidy.DocumentKind(doc)] = true
	}
	return out, rows.Err()
}

// =============================================================================
// BULK
// =============================================================================

// Restore loads records in one transaction; on any error nothing is written.
func (s *Store) Restore(ctx context.Context, office generic.OfficeID, clients []subsidy.Client, apps []subsidy.Application, replace bool) error {
	now := s.now()
	for i := range clients {
		c := &clients[i]
		c.OfficeID = office
		c.Normalize()
		if err := c.Validate(); err != nil {
			return err
		}
		if c.ID == "" {
			c.ID = generic.ClientID(uuid.NewString())
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
	}
	for i := range apps {
		a := &apps[i]
		a.OfficeID = office
		a.Normalize()
		if err := a.Validate(); err != nil {
			return err
		}
		if a.ID == "" {
			a.ID = generic.ApplicationID(uuid.NewString())
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.UpdatedAt = now
	}

	s.mu.Lock()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if replace {
			if _, err := tx.ExecContext(ctx, `DELETE FROM clients WHERE office_id = ?`, office); err != nil {
				return fmt.Errorf("failed to clear office: %w", err)
			}
		}
		for _, c := range clients {
			if err := upsertClient(ctx, tx, c); err != nil {
				return err
			}
		}
		for _, a := range apps {
			if _, err := getClient(ctx, tx, office, a.ClientID); err != nil {
				return err
			}
			if err := upsertApplication(ctx, tx, a); err != nil {
				return err
			}
		}
		return nil
	})
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Info("restored office", "office", office, "clients", len(clients), "applications", len(apps), "replace", replace)
	s.feed.Publish(generic.Change{OfficeID: office, Collection: generic.CollectionClients, Kind: generic.ChangeReplaced})
	s.feed.Publish(generic.Change{OfficeID: office, Collection: generic.CollectionApplications, Kind: generic.ChangeReplaced})
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func nullDate(tp generic.TimePoint) sql.NullString {
	if tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func parseDate(ns sql.NullString) generic.TimePoint {
	if !ns.Valid || ns.String == "" {
		return generic.TimePoint{}
	}
	tp, err := generic.ParseDate(ns.String)
	if err != nil {
		return generic.TimePoint{}
	}
	return tp
}

func parseAmount(column, value string) (generic.Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return generic.Amount{}, fmt.Errorf("corrupt %s %q: %w", column, value, err)
	}
	return generic.Amount{Value: d, Unit: generic.UnitYen}, nil
}
