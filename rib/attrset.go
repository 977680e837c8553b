package rib

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/routebird/bgpd/bgp"
)

// AttrSet is an immutable, interned path-attribute set. Grouping in
// the outgoing engine compares attribute sets by pointer identity
// (spec.md §5's memory policy: "equal attribute sets are interned so
// grouping is a pointer-identity comparison") rather than by walking
// the slice on every comparison.
type AttrSet struct {
	Attrs []bgp.Attr
	hash  [32]byte
}

// Interner deduplicates AttrSets by their encoded content hash.
type Interner struct {
	mu    sync.Mutex
	table map[[32]byte]*AttrSet
}

func NewInterner() *Interner { return &Interner{table: map[[32]byte]*AttrSet{}} }

// Intern returns the canonical *AttrSet for attrs, constructing one if
// this exact attribute set hasn't been seen before.
func (in *Interner) Intern(attrs []bgp.Attr) (*AttrSet, error) {
	h := sha256.New()
	for _, a := range attrs {
		b, err := bgp.MarshalAttr(a)
		if err != nil {
			return nil, fmt.Errorf("rib: hash attribute %d: %w", a.Type, err)
		}
		h.Write(b)
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))

	in.mu.Lock()
	defer in.mu.Unlock()
	if existing, ok := in.table[sum]; ok {
		return existing, nil
	}
	set := &AttrSet{Attrs: append([]bgp.Attr{}, attrs...), hash: sum}
	in.table[sum] = set
	return set, nil
}
