package auth

import (
	"sync"
	"time"

	"academyhub/internal/session"
)

// StoreFactory builds the session store for a browser-session id, wiring its
// namespaced persistence tiers.
type StoreFactory func(sid string) *session.Store

type registryEntry struct {
	store    *session.Store
	lastSeen time.Time
}

// Registry maps browser-session ids to their session stores, creating them on
// demand. Stores idle for longer than the ttl are swept on lookup, so a client
// that never presents its cookie again cannot grow the map without bound.
// Sweeping an idle store is not a logout: the persisted tiers survive, and the
// next request with that cookie gets a fresh store that rehydrates from them.
type Registry struct {
	mu        sync.Mutex
	stores    map[string]*registryEntry
	factory   StoreFactory
	ttl       time.Duration
	nextSweep time.Time
}

// NewRegistry creates an empty registry. A non-positive ttl disables idle
// eviction.
func NewRegistry(factory StoreFactory, ttl time.Duration) *Registry {
	return &Registry{
		stores:  make(map[string]*registryEntry),
		factory: factory,
		ttl:     ttl,
	}
}

// Lookup returns the store for sid, creating it if this is the first request
// of a browser session (or the first after an eviction).
func (r *Registry) Lookup(sid string) *session.Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.sweepLocked(now)

	entry, ok := r.stores[sid]
	if !ok {
		entry = &registryEntry{store: r.factory(sid)}
		r.stores[sid] = entry
	}
	entry.lastSeen = now
	return entry.store
}

// Evict drops the store for sid. The next request with the same cookie gets a
// fresh store that hydrates from whatever persisted storage still holds.
func (r *Registry) Evict(sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, sid)
}

// Len reports how many browser sessions currently hold a store.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// sweepLocked drops entries idle past the ttl, at most once per sweep
// interval. Must be called with r.mu held.
func (r *Registry) sweepLocked(now time.Time) {
	if r.ttl <= 0 || now.Before(r.nextSweep) {
		return
	}
	for sid, entry := range r.stores {
		if now.Sub(entry.lastSeen) > r.ttl {
			delete(r.stores, sid)
		}
	}
	interval := r.ttl
	if interval > time.Minute {
		interval = time.Minute
	}
	r.nextSweep = now.Add(interval)
}
