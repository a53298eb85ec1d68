package persona

import (
	"sort"
	"sync"
	"time"
)

// Registry owns every UserState. The registry lock only guards the map;
// per-user state is guarded by each UserState's own mutex, so a sweep over
// all users never holds one lock across them.
type Registry struct {
	mu    sync.RWMutex
	users map[string]*UserState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]*UserState)}
}

// Get returns the state for id, creating it with defaults if absent.
func (r *Registry) Get(id string, now time.Time) *UserState {
	r.mu.RLock()
	u := r.users[id]
	r.mu.RUnlock()
	if u != nil {
		return u
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if u = r.users[id]; u != nil {
		return u
	}
	u = newUserState(id, now)
	r.users[id] = u
	return u
}

// Lookup returns the state for id, or nil if the user has never been seen.
func (r *Registry) Lookup(id string) *UserState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[id]
}

// IDs returns all known user IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len is the number of known users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// put installs u, replacing any existing state for u.ID.
func (r *Registry) put(u *UserState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}
