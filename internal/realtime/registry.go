// internal/realtime/registry.go
package realtime

import (
	"sync"
)

// Registry maps user ids to the set of live connection ids for that user.
// A "room" is nothing more than one of these sets. A single mutex covers
// the whole structure: entries are created and deleted as a side effect of
// membership changes, so per-entry locking cannot keep the two indexes
// consistent.
type Registry struct {
	mu     sync.Mutex
	byUser map[string]map[string]struct{} // userID -> set of connIDs
	owner  map[string]string              // connID -> userID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[string]struct{}),
		owner:  make(map[string]string),
	}
}

// Register adds connID to userID's set, creating the set if absent.
// Idempotent. If connID is currently registered under a different user, the
// old registration is replaced in the same critical section, so no lookup
// ever observes the connection in two sets.
func (r *Registry) Register(userID, connID string) {
	if userID == "" || connID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.owner[connID]; ok {
		if prev == userID {
			return
		}
		r.removeLocked(prev, connID)
	}

	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[string]struct{})
		r.byUser[userID] = set
	}
	set[connID] = struct{}{}
	r.owner[connID] = userID
}

// Unregister removes connID from whichever user set contains it. Safe to
// call with an unknown id; calling it twice is a no-op the second time.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owner[connID]
	if !ok {
		return
	}
	r.removeLocked(userID, connID)
}

// removeLocked deletes the membership edge. Empty sets are removed
// immediately so byUser never holds an empty entry. Caller holds r.mu.
func (r *Registry) removeLocked(userID, connID string) {
	delete(r.owner, connID)
	if set, ok := r.byUser[userID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.byUser, userID)
		}
	}
}

// Lookup returns a snapshot of the live connection ids for userID. The
// result is empty (never nil) when the user has no connections.
func (r *Registry) Lookup(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byUser[userID]
	out := make([]string, 0, len(set))
	for connID := range set {
		out = append(out, connID)
	}
	return out
}

// UserFor returns the user id a connection is registered under, if any.
func (r *Registry) UserFor(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.owner[connID]
	return userID, ok
}

// Users returns the number of users with at least one live connection.
func (r *Registry) Users() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}

// Size returns the number of registered connections.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owner)
}
