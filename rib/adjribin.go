package rib

import "sync"

// AdjRIBIn is a pure cache of what a peer has advertised to us, keyed
// identically to Adj-RIB-Out (spec.md §3). It never forwards to other
// peers; this core computes no decision process.
type AdjRIBIn struct {
	mu     sync.RWMutex
	routes map[Index]Route
}

func NewAdjRIBIn() *AdjRIBIn { return &AdjRIBIn{routes: map[Index]Route{}} }

// Store records a received route, overwriting any prior route at the
// same index (same prefix, same path-id).
func (rib *AdjRIBIn) Store(r Route) error {
	idx, err := r.Index()
	if err != nil {
		return err
	}
	rib.mu.Lock()
	rib.routes[idx] = r
	rib.mu.Unlock()
	return nil
}

// Withdraw removes the route at the given index, if present.
func (rib *AdjRIBIn) Withdraw(idx Index) {
	rib.mu.Lock()
	delete(rib.routes, idx)
	rib.mu.Unlock()
}

// Get returns the route at idx, if present.
func (rib *AdjRIBIn) Get(idx Index) (Route, bool) {
	rib.mu.RLock()
	defer rib.mu.RUnlock()
	r, ok := rib.routes[idx]
	return r, ok
}

// All returns every currently-held route, for `show adj-rib-in`.
func (rib *AdjRIBIn) All() []Route {
	rib.mu.RLock()
	defer rib.mu.RUnlock()
	out := make([]Route, 0, len(rib.routes))
	for _, r := range rib.routes {
		out = append(out, r)
	}
	return out
}

// Clear drops every route, on session reset without graceful restart.
func (rib *AdjRIBIn) Clear() {
	rib.mu.Lock()
	rib.routes = map[Index]Route{}
	rib.mu.Unlock()
}

// Len reports the table size, for metrics.
func (rib *AdjRIBIn) Len() int {
	rib.mu.RLock()
	defer rib.mu.RUnlock()
	return len(rib.routes)
}
