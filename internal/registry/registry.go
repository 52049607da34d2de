package registry

import (
	"log/slog"
	"sync"

	"github.com/alertbridge/alertbridge/pkg/protocol"
)

// Registry is a thread-safe in-memory set of currently-firing alerts keyed
// by alert ID. It enforces a hard capacity: inserting a new ID at capacity
// evicts the single oldest entry by starts_at (insertion order breaks ties)
// before the insert.
//
// Only firing alerts are held; Remove drops an alert the moment a resolved
// record arrives. State is volatile — a restart empties the registry.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]protocol.Alert
	order []string // insertion order of live IDs, for deterministic snapshots
	max   int
}

// New creates a Registry holding at most max alerts. max must be positive.
func New(max int) *Registry {
	return &Registry{
		byID: make(map[string]protocol.Alert),
		max:  max,
	}
}

// Upsert inserts or replaces the alert keyed by a.ID. Replacing keeps the
// original insertion position. Returns the ID of an entry evicted to make
// room, or "" when nothing was evicted.
func (r *Registry) Upsert(a protocol.Alert) (evicted string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[a.ID]; ok {
		r.byID[a.ID] = a
		return ""
	}

	if len(r.byID) >= r.max {
		evicted = r.evictOldestLocked()
	}

	r.byID[a.ID] = a
	r.order = append(r.order, a.ID)
	return evicted
}

// Remove deletes the alert with the given ID. Removing an absent ID is a
// no-op, so resolved records arriving twice are harmless.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	r.dropFromOrderLocked(id)
	return true
}

// Snapshot returns all current alerts in insertion order. The slice is a
// copy; callers may hold it across further mutations.
func (r *Registry) Snapshot() []protocol.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.Alert, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Count returns the number of alerts currently held.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// CriticalCount returns the number of held alerts with critical severity.
func (r *Registry) CriticalCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, a := range r.byID {
		if a.Severity == protocol.SeverityCritical {
			n++
		}
	}
	return n
}

// Max returns the configured capacity.
func (r *Registry) Max() int {
	return r.max
}

// evictOldestLocked removes and returns the ID of the entry with the
// earliest starts_at. Entries whose starts_at did not parse sort oldest;
// insertion order decides between equals. Caller holds r.mu.
func (r *Registry) evictOldestLocked() string {
	if len(r.order) == 0 {
		return ""
	}

	oldest := r.order[0]
	oldestT := r.byID[oldest].StartTime()
	for _, id := range r.order[1:] {
		if t := r.byID[id].StartTime(); t.Before(oldestT) {
			oldest, oldestT = id, t
		}
	}

	slog.Warn("registry: at capacity, evicting oldest alert",
		"evicted_id", oldest,
		"starts_at", r.byID[oldest].StartsAt,
		"max", r.max,
	)
	delete(r.byID, oldest)
	r.dropFromOrderLocked(oldest)
	return oldest
}

func (r *Registry) dropFromOrderLocked(id string) {
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
