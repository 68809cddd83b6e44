package tunnel

import (
	"sync"

	"tunneld/internal/metrics"
	"tunneld/util"
)

// Registry is the set of live tunnel sessions, keyed by handle.  It is
// the only mutable shared state in the feature: notification delivery,
// close callbacks, and Stop can all race, so every operation holds the
// mutex.
type Registry struct {
	mu      sync.Mutex
	nextID  ID
	entries map[ID]registered
	pending map[ID]struct{}
	log     *util.Logger
}

type registered struct {
	sess   Session
	origin Origin
}

// NewRegistry returns an empty registry.
func NewRegistry(log *util.Logger) *Registry {
	return &Registry{
		entries: make(map[ID]registered),
		pending: make(map[ID]struct{}),
		log:     log,
	}
}

// Allocate hands out the next session handle and marks it pending.
// Handles are allocated before connect so a session carries its own
// identity into the close callback even if it is never registered; the
// pending mark lets Add and Remove agree on which happened first.
func (r *Registry) Allocate() ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.pending[r.nextID] = struct{}{}
	return r.nextID
}

// IsDuplicate reports whether a live session was built from the same
// (access token, region, service) triple.  An O(n) scan; the number of
// concurrent sessions is small.
func (r *Registry) IsDuplicate(o Origin) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.origin == o {
			return true
		}
	}
	return false
}

// Add registers a session under its own handle.  It reports false —
// and registers nothing — when the handle's close callback has already
// fired: a session whose destination leg died between Connect and Add
// must not become an entry nothing will ever remove.
func (r *Registry) Add(sess Session, o Origin) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := sess.ID()
	if _, ok := r.pending[id]; !ok {
		r.log.Debug("session %d closed before registration, discarding", id)
		return false
	}
	delete(r.pending, id)
	r.entries[id] = registered{sess: sess, origin: o}
	metrics.ActiveSessions.Set(float64(len(r.entries)))
	metrics.SessionsTotal.Inc()
	return true
}

// Remove deletes the session with the given handle.  A pending handle
// (allocated, not yet added) is cleared so a racing Add discards the
// dead session.  Removing an unknown handle is a no-op: close
// callbacks can repeat, or fire after StopAll already saw the entry.
func (r *Registry) Remove(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[id]; ok {
		delete(r.pending, id)
		return
	}
	if _, ok := r.entries[id]; !ok {
		return
	}
	delete(r.entries, id)
	metrics.ActiveSessions.Set(float64(len(r.entries)))
	r.log.Debug("session %d removed, %d remaining", id, len(r.entries))
}

// StopAll requests every registered session to stop.  It does not wait:
// each session reports actual termination through its close callback,
// which removes it here.  Stop runs outside the lock so a callback
// fired during shutdown cannot deadlock against Remove.
func (r *Registry) StopAll() {
	r.mu.Lock()
	live := make([]Session, 0, len(r.entries))
	for id, e := range r.entries {
		r.log.Debug("requesting shutdown of session %d", id)
		live = append(live, e.sess)
	}
	r.mu.Unlock()

	for _, s := range live {
		s.Stop()
	}
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
