/*
store.go - Change feed shared by store implementations

PURPOSE:
  Stores publish a Change after every committed write so that open views
  (the SSE stream, the deadline monitor) can re-read. The feed carries no
  record payload: subscribers pull fresh data and re-derive presentation
  fields themselves. Derivation is never embedded in the callback.

CONTRACT:
  - Publish is called AFTER commit, never inside a transaction
  - Callbacks run synchronously on the writer's goroutine; keep them short
    (hand off to a channel if work is needed)
  - Subscribe returns a cancel func; calling it twice is harmless

EXAMPLE:
  cancel := feed.Subscribe("office-1", func(c generic.Change) {
      select {
      case notify <- c:
      default: // drop, the reader will re-sync on the next event
      }
  })
  defer cancel()

SEE ALSO:
  - subsidy/repository.go: Repository.Subscribe
  - api/events.go: Server-sent events stream
*/
package generic

import "sync"

// =============================================================================
// CHANGE - One committed write
// =============================================================================

type Collection string

const (
	CollectionClients      Collection = "clients"
	CollectionApplications Collection = "applications"
)

type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeReplaced ChangeKind = "replaced" // bulk import
)

type Change struct {
	OfficeID   OfficeID   `json:"office_id"`
	Collection Collection `json:"collection"`
	Kind       ChangeKind `json:"kind"`
	ID         string     `json:"id,omitempty"`
}

// =============================================================================
// FEED - Per-office fan-out
// =============================================================================

// Feed fans out changes to subscribers of an office. The zero value is ready to use.
type Feed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[OfficeID]map[int]func(Change)
}

// Subscribe registers fn for changes in office and returns a cancel func.
func (f *Feed) Subscribe(office OfficeID, fn func(Change)) (cancel func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subs == nil {
		f.subs = make(map[OfficeID]map[int]func(Change))
	}
	if f.subs[office] == nil {
		f.subs[office] = make(map[int]func(Change))
	}
	id := f.nextID
	f.nextID++
	f.subs[office][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs[office], id)
			if len(f.subs[office]) == 0 {
				delete(f.subs, office)
			}
		})
	}
}

// Publish delivers c to every subscriber of c.OfficeID.
func (f *Feed) Publish(c Change) {
	f.mu.RLock()
	fns := make([]func(Change), 0, len(f.subs[c.OfficeID]))
	for _, fn := range f.subs[c.OfficeID] {
		fns = append(fns, fn)
	}
	f.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Subscribers returns the number of active subscriptions for office.
func (f *Feed) Subscribers(office OfficeID) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[office])
}
