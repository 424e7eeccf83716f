// Package memory provides an in-memory subsidy.Repository for tests and the demo.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/subsidy"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	clients map[generic.OfficeID]map[generic.ClientID]subsidy.Client
	apps    map[generic.OfficeID]map[generic.ApplicationID]subsidy.Application
	history map[generic.OfficeID]map[generic.ApplicationID][]subsidy.StatusChange
	feed    generic.Feed
	now     func() time.Time
}

var _ subsidy.Repository = (*Memory)(nil)

func New() *Memory {
	return &Memory{
		clients: make(map[generic.OfficeID]map[generic.ClientID]subsidy.Client),
		apps:    make(map[generic.OfficeID]map[generic.ApplicationID]subsidy.Application),
		history: make(map[generic.OfficeID]map[generic.ApplicationID][]subsidy.StatusChange),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Subscribe(office generic.OfficeID, fn func(generic.Change)) func() {
	return m.feed.Subscribe(office, fn)
}

func (m *Memory) ListOffices(_ context.Context) ([]generic.OfficeID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[generic.OfficeID]bool)
	for o := range m.clients {
		seen[o] = true
	}
	for o := range m.apps {
		seen[o] = true
	}
	out := make([]generic.OfficeID, 0, len(seen))
	for o := range seen {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// =============================================================================
// CLIENTS
// =============================================================================

func (m *Memory) ListClients(_ context.Context, office generic.OfficeID) ([]subsidy.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]subsidy.Client, 0, len(m.clients[office]))
	for _, c := range m.clients[office] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) GetClient(_ context.Context, office generic.OfficeID, id generic.ClientID) (*subsidy.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clients[office][id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "client", ID: string(id), OfficeID: office}
	}
	return &c, nil
}

func (m *Memory) CreateClient(_ context.Context, c subsidy.Client) (*subsidy.Client, error) {
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if c.ID == "" {
		c.ID = generic.ClientID(uuid.NewString())
	}
	now := m.now()
	c.CreatedAt, c.UpdatedAt = now, now
	m.putClientLocked(c)
	m.mu.Unlock()

	m.feed.Publish(generic.Change{OfficeID: c.OfficeID, Collection: generic.CollectionClients, Kind: generic.ChangeCreated, ID: string(c.ID)})
	return &c, nil
}

func (m *Memory) UpdateClient(_ context.Context, office generic.OfficeID, id generic.ClientID, patch subsidy.ClientPatch) (*subsidy.Client, error) {
	m.mu.Lock()
	c, ok := m.clients[office][id]
	if !ok {
		m.mu.Unlock()
		return nil, &generic.NotFoundError{Kind: "client", ID: string(id), OfficeID: office}
	}
	patch.Apply(&c)
	c.Normalize()
	if err := c.Validate(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	c.UpdatedAt = m.now()
	m.putClientLocked(c)
	m.mu.Unlock()

	m.feed.Publish(generic.Change{OfficeID: office, Collection: generic.CollectionClients, Kind: generic.ChangeUpdated, ID: string(id)})
	return &c, nil
}

func (m *Memory) DeleteClient(_ context.Context, office generic.OfficeID, id generic.ClientID) error {
	m.mu.Lock()
	if _, ok := m.clients[office][id]; !ok {
		m.mu.Unlock()
		return &generic.NotFoundError{Kind: "client", ID: string(id), OfficeID: office}
	}
	delete(m.clients[office], id)
	removedApps := 0
	for appID, a := range m.apps[office] {
		if a.ClientID == id {
			delete(m.apps[office], appID)
			delete(m.history[office], appID)
			removedApps++
		}
	}
	m.mu.Unlock()

	m.feed.Publish(generic.Change{OfficeID: office, Collection: generic.CollectionClients, Kind: generic.ChangeDeleted, ID: string(id)})
	if removedApps > 0 {
		m.feed.Publish(generic.Change{OfficeID: office, Collection: generic.CollectionApplications, Kind: generic.ChangeDeleted})
	}
	return nil
}

func (m *Memory) putClientLocked(c subsidy.Client) {
	if m.clients[c.OfficeID] == nil {
		m.clients[c.OfficeID] = make(map[generic.ClientID]subsidy.Client)
	}
	m.clients[c.OfficeID][c.ID] = c
}

// =============================================================================
// APPLICATIONS
// =============================================================================

func (m *Memory) ListApplications(_ context.Context, office generic.OfficeID, filter subsidy.ApplicationFilter) ([]subsidy.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]subsidy.Application, 0, len(m.apps[office]))
	for _, a := range m.apps[office] {
		if filter.Matches(a) {
			out = append(out, copyApplication(a))
		}
	}
	sortApplications(out)
	return out, nil
}

func (m *Memory) GetApplication(_ context.Context, office generic.OfficeID, id generic.ApplicationID) (*subsidy.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.apps[office][id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "application", ID: string(id), OfficeID: office}
	}
	a = copyApplication(a)
	return &a, nil
}

func (m *Memory) CreateApplication(_ context.Context, a subsidy.Application) (*subsidy.Application, error) {
	a.Normalize()
	if err := a.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, ok := m.clients[a.OfficeID][a.ClientID]; !ok {
		m.mu.Unlock()
		return nil, &generic.NotFoundError{Kind: "client", ID: string(a.ClientID), OfficeID: a.OfficeID}
	}
	if a.ID == "" {
		a.ID = generic.ApplicationID(uuid.NewString())
	}
	now := m.now()
	a.CreatedAt, a.UpdatedAt = now, now
	m.putApplicationLocked(copyApplication(a))
	m.appendHistoryLocked(a.OfficeID, subsidy.StatusChange{
		ApplicationID: a.ID,
		To:            a.Status,
		ChangedAt:     now,
	})
	m.mu.Unlock()

	m.feed.Publish(generic.Change{OfficeID: a.OfficeID, Collection: generic.CollectionApplications, Kind: generic.ChangeCreated, ID: string(a.ID)})
	out := copyApplication(a)
	return &out, nil
}

func (m *Memory) UpdateApplication(_ context.Context, office generic.OfficeID, id generic.ApplicationID, patch subsidy.ApplicationPatch) (*subsidy.Application, error) {
	m.mu.Lock()
	a, ok := m.apps[office][id]
	if !ok {
		m.mu.Unlock()
		return nil, &generic.NotFoundError{Kind: "application", ID: string(id), OfficeID: office}
	}
	a = copyApplication(a)
	patch.Apply(&a)
	a.Normalize()
	if err := a.Validate(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	a.UpdatedAt = m.now()
	m.putApplicationLocked(a)
	m.mu.Unlock()

	m.feed.Publish(generic.Change{OfficeID: office, Collection: generic.CollectionApplications, Kind: generic.ChangeUpdated, ID: string(id)})
	out := copyApplication(a)
	return &out, nil
}

func (m *Memory) ChangeStatus(_ context.Context, office generic.OfficeID, id generic.ApplicationID, to subsidy.ApplicationStatus, note string) (*subsidy.Application, error) {
	m.mu.Lock()
	a, ok := m.apps[office][id]
	if !ok {
		m.mu.Unlock()
		return nil, &generic.NotFoundError{Kind: "application", ID: string(id), OfficeID: office}
	}
	if err := a.CheckStatusChange(to); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	now := m.now()
	from := a.Status
	a.Status = to
	a.UpdatedAt = now
	m.putApplicationLocked(a)
	m.appendHistoryLocked(office, subsidy.StatusChange{
		ApplicationID: id,
		From:          from,
		To:            to,
		Note:          note,
		ChangedAt:     now,
	})
	m.mu.Unlock()

	m.feed.Publish(generic.Change{OfficeID: office, Collection: generic.CollectionApplications, Kind: generic.ChangeUpdated, ID: string(id)})
	out := copyApplication(a)
	return &out, nil
}

func (m *Memory) StatusHistory(_ context.Context, office generic.OfficeID, id generic.ApplicationID) ([]subsidy.StatusChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.apps[office][id]; !ok {
		return nil, &generic.NotFoundError{Kind: "application", ID: string(id), OfficeID: office}
	}
	return append([]subsidy.StatusChange(nil), m.history[office][id]...), nil
}

func (m *Memory) DeleteApplication(_ context.Context, office generic.OfficeID, id generic.ApplicationID) error {
	m.mu.Lock()
	if _, ok := m.apps[office][id]; !ok {
		m.mu.Unlock()
		return &generic.NotFoundError{Kind: "application", ID: string(id), OfficeID: office}
	}
	delete(m.apps[office], id)
	delete(m.history[office], id)
	m.mu.Unlock()

	m.feed.Publish(generic.Change{OfficeID: office, Collection: generic.CollectionApplications, Kind: generic.ChangeDeleted, ID: string(id)})
	return nil
}

func (m *Memory) putApplicationLocked(a subsidy.Application) {
	if m.apps[a.OfficeID] == nil {
		m.apps[a.OfficeID] = make(map[generic.ApplicationID]subsidy.Application)
	}
	m.apps[a.OfficeID][a.ID] = a
}

// =============================================================================
// BULK
// =============================================================================

// Restore loads records atomically: everything is validated before anything
// is written.
func (m *Memory) Restore(_ context.Context, office generic.OfficeID, clients []subsidy.Client, apps []subsidy.Application, replace bool) error {
	for i := range clients {
		clients[i].OfficeID = office
		clients[i].Normalize()
		if err := clients[i].Validate(); err != nil {
			return err
		}
	}
	for i := range apps {
		apps[i].OfficeID = office
		apps[i].Normalize()
		if err := apps[i].Validate(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	known := make(map[generic.ClientID]bool)
	if !replace {
		for id := range m.clients[office] {
			known[id] = true
		}
	}
	for _, c := range clients {
		known[c.ID] = true
	}
	for _, a := range apps {
		if !known[a.ClientID] {
			m.mu.Unlock()
			return &generic.NotFoundError{Kind: "client", ID: string(a.ClientID), OfficeID: office}
		}
	}

	if replace {
		delete(m.history, office)
		delete(m.clients, office)
		delete(m.apps, office)
	}
	now := m.now()
	for _, c := range clients {
		if c.ID == "" {
			c.ID = generic.ClientID(uuid.NewString())
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
		m.putClientLocked(c)
	}
	for _, a := range apps {
		if a.ID == "" {
			a.ID = generic.ApplicationID(uuid.NewString())
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.UpdatedAt = now
		m.putApplicationLocked(copyApplication(a))
	}
	m.mu.Unlock()

	m.feed.Publish(generic.Change{OfficeID: office, Collection: generic.CollectionClients, Kind: generic.ChangeReplaced})
	m.feed.Publish(generic.Change{OfficeID: office, Collection: generic.CollectionApplications, Kind: generic.ChangeReplaced})
	return nil
}

func (m *Memory) appendHistoryLocked(office generic.OfficeID, c subsidy.StatusChange) {
	if m.history[office] == nil {
		m.history[office] = make(map[generic.ApplicationID][]subsidy.StatusChange)
	}
	m.history[office][c.ApplicationID] = append(m.history[office][c.ApplicationID], c)
}

func copyApplication(a subsidy.Application) subsidy.Application {
	cl := make(subsidy.Checklist, len(a.Checklist))
	for k, v := range a.Checklist {
		cl[k] = v
	}
	a.Checklist = cl
	return a
}

// sortApplications orders by deadline (none last), then worker name.
func sortApplications(apps []subsidy.Application) {
	sort.SliceStable(apps, func(i, j int) bool {
		a, b := apps[i], apps[j]
		if a.HasDeadline() != b.HasDeadline() {
			return a.HasDeadline()
		}
		if a.HasDeadline() && !a.ApplicationDeadline.Equal(b.ApplicationDeadline) {
			return a.ApplicationDeadline.Before(b.ApplicationDeadline)
		}
		return a.WorkerName < b.WorkerName
	})
}
