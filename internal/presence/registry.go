// Package presence tracks which users hold a live connection right now.
// The Registry is the single source of truth for "online"; the persisted
// is_online column is only a mirror for offline readers.
package presence

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"chatflow/internal/domain"
	"chatflow/internal/metrics"
)

// Registry maps each user to its current handle. A newer handle for the
// same user replaces the older one (last writer wins). All methods are safe
// for concurrent use and never block on I/O.
type Registry struct {
	mu      sync.RWMutex
	handles map[domain.UserID]Handle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[domain.UserID]Handle)}
}

// Register stores h as the user's current handle and returns the handle it
// replaced, if any, so the caller can close it.
func (r *Registry) Register(h Handle) (previous Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous = r.handles[h.UserID()]
	r.handles[h.UserID()] = h
	if previous == nil {
		metrics.OnlineConnections.Inc()
	}
	return previous
}

// Unregister removes the entry for h's user only if h is still the stored
// handle. A late disconnect of a superseded handle is a no-op.
func (r *Registry) Unregister(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.handles[h.UserID()]
	if !ok || current != h {
		return false
	}
	delete(r.handles, h.UserID())
	metrics.OnlineConnections.Dec()
	return true
}

func (r *Registry) Lookup(id domain.UserID) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	return h, ok
}

func (r *Registry) IsOnline(id domain.UserID) bool {
	_, ok := r.Lookup(id)
	return ok
}

// ListOnline returns the online user ids in ascending order.
func (r *Registry) ListOnline() []domain.UserID {
	r.mu.RLock()
	ids := lo.Keys(r.handles)
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Others snapshots every handle except the one registered for exclude.
func (r *Registry) Others(exclude domain.UserID) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Handle, 0, len(r.handles))
	for id, h := range r.handles {
		if id != exclude {
			out = append(out, h)
		}
	}
	return out
}

// Send delivers ev to id's current handle. It reports whether the event was
// enqueued; an absent user counts as not delivered.
func (r *Registry) Send(id domain.UserID, ev domain.Event) bool {
	h, ok := r.Lookup(id)
	if !ok {
		metrics.RecordLive(string(ev.Type), metrics.OutcomeOffline)
		return false
	}
	if !h.Deliver(ev) {
		return false
	}
	metrics.RecordLive(string(ev.Type), metrics.OutcomeDelivered)
	return true
}

// Broadcast delivers ev to every registered handle except exclude's, outside
// the registry lock. Returns the number of handles that accepted it.
func (r *Registry) Broadcast(ev domain.Event, exclude domain.UserID) int {
	n := 0
	for _, h := range r.Others(exclude) {
		if h.Deliver(ev) {
			n++
		}
	}
	if n > 0 {
		metrics.LiveEvents.WithLabelValues(string(ev.Type), metrics.OutcomeDelivered).Add(float64(n))
	}
	return n
}
