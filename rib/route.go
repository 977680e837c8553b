// Package rib implements the per-peer Adj-RIB-In cache and the
// Adj-RIB-Out diff/group engine (spec.md §3/§4.3).
package rib

import (
	"fmt"

	"github.com/routebird/bgpd/bgp"
)

// Direction distinguishes a route's role: received from a peer, or
// destined for one.
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
)

// Index is the RIB key: family ∥ NLRI canonical encoding ∥ path-id,
// per spec.md §3. Routes for different path-ids on the same prefix are
// distinct entries (testable property 12).
type Index struct {
	Family Family
	NLRI   string // canonical encoded bytes, as a comparable string
	PathID uint32
}

// Family is a local alias kept distinct from bgp.Family only so this
// package's exported API reads naturally; it is the same value.
type Family = bgp.Family

// Route is the immutable (family, NLRI, attribute-set, next-hop,
// direction) tuple of spec.md §3. Two routes are equal iff every
// component is equal; since AttrSet is interned (attrset.go), that
// reduces to a pointer-identity comparison.
type Route struct {
	Family    Family
	NLRI      bgp.NLRI
	PathID    uint32
	Attrs     *AttrSet
	NextHop   []byte
	Direction Direction
	Watchdog  string
}

// Index computes this route's RIB key.
func (r Route) Index() (Index, error) {
	enc, err := r.NLRI.Marshal()
	if err != nil {
		return Index{}, fmt.Errorf("rib: encode NLRI: %w", err)
	}
	return Index{Family: r.Family, NLRI: string(enc), PathID: r.PathID}, nil
}

// Equal compares two routes for the no-op re-announcement check
// (testable property 8): same attribute-set pointer, same next-hop
// bytes and same watchdog tag. NLRI/family/path-id equality is implied
// by sharing an Index.
func (r Route) Equal(o Route) bool {
	if r.Attrs != o.Attrs {
		return false
	}
	if len(r.NextHop) != len(o.NextHop) {
		return false
	}
	for i := range r.NextHop {
		if r.NextHop[i] != o.NextHop[i] {
			return false
		}
	}
	return r.Watchdog == o.Watchdog
}
