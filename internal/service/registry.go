// Package service coordinates the live market aggregates with persistence,
// distributed locking, and event fan-out. Every mutating operation takes the
// universe-tree lock, runs the aggregate operation, persists the snapshot and
// its stake event, then publishes the lifecycle event.
package service

import (
	"sync"

	"github.com/alanyoungcy/resolvd/internal/reporting"
	"github.com/alanyoungcy/resolvd/internal/universe"
)

// Registry holds the live market aggregates and the universe tree they
// report into. Aggregates are in-memory state; the Postgres stores hold
// read-model snapshots and history, not the source of truth for the
// lifecycle math.
type Registry struct {
	mu      sync.RWMutex
	genesis *universe.Universe
	markets map[string]*reporting.Market
}

// NewRegistry creates a Registry rooted at the given genesis universe.
func NewRegistry(genesis *universe.Universe) *Registry {
	return &Registry{
		genesis: genesis,
		markets: make(map[string]*reporting.Market),
	}
}

// Genesis returns the root universe of the tree.
func (r *Registry) Genesis() *universe.Universe {
	return r.genesis
}

// Add registers a live market aggregate.
func (r *Registry) Add(m *reporting.Market) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markets[m.ID()] = m
}

// Get returns the live aggregate for the given market id.
func (r *Registry) Get(id string) (*reporting.Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[id]
	return m, ok
}

// All returns every registered aggregate. The slice is a fresh copy; the
// aggregates themselves are shared.
func (r *Registry) All() []*reporting.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*reporting.Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, m)
	}
	return out
}

// Len returns the number of registered markets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}
