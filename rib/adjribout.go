package rib

import (
	"sort"
	"sync"

	"github.com/routebird/bgpd/bgp"
)

// Mode names the outgoing engine's pacing modes; spec.md §4.3. Updates
// does not read it: it always groups routes by attribute-set pointer,
// so ModePerRoute behaves like ModeGrouped.
type Mode int

const (
	ModeGrouped Mode = iota
	ModePerRoute
)

// OutboundMessage is one encoded UPDATE ready for the wire, tagged
// with the family it carries so callers can log/meter it.
type OutboundMessage struct {
	Family bgp.Family
	Body   []byte
}

// AdjRIBOut is the per-peer outgoing engine: three index→route
// dictionaries per spec.md §3, diffed on each call to Updates.
type AdjRIBOut struct {
	mu   sync.Mutex
	Mode Mode

	announced map[Index]Route
	new       map[Index]Route
	withdraw  map[Index]Route

	watchdogDisabled map[string]bool
}

func NewAdjRIBOut() *AdjRIBOut {
	return &AdjRIBOut{
		announced:        map[Index]Route{},
		new:              map[Index]Route{},
		withdraw:         map[Index]Route{},
		watchdogDisabled: map[string]bool{},
	}
}

// Announce stages r for advertisement. If r is byte-identical to what
// is already in `new` or `announced`, this remains a no-op at emit
// time (testable property 8). Later Announce/Withdraw calls on the
// same index supersede earlier ones (the "later-in-time" tie-break).
func (o *AdjRIBOut) Announce(r Route) error {
	idx, err := r.Index()
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.withdraw, idx)
	o.new[idx] = r
	return nil
}

// Withdraw stages idx for removal, provided it was (or is about to be)
// announced; if the peer never received it, this is a no-op.
func (o *AdjRIBOut) Withdraw(idx Index) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if r, ok := o.new[idx]; ok {
		delete(o.new, idx)
		if _, wasAnnounced := o.announced[idx]; wasAnnounced {
			o.withdraw[idx] = r
		}
		return
	}
	if r, ok := o.announced[idx]; ok {
		o.withdraw[idx] = r
	}
}

// SetWatchdog enables or disables every route tagged with name.
// Disabling moves them out of effective advertisement (treated as
// withdrawn) without discarding the stored route; re-enabling restores
// them into `new` so they are re-sent.
func (o *AdjRIBOut) SetWatchdog(name string, enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.watchdogDisabled[name] = !enabled
	if enabled {
		for idx, r := range o.announced {
			if r.Watchdog == name {
				o.new[idx] = r
			}
		}
	} else {
		for idx, r := range o.new {
			if r.Watchdog == name {
				if _, wasAnnounced := o.announced[idx]; wasAnnounced {
					o.withdraw[idx] = r
				}
			}
		}
		for idx, r := range o.announced {
			if r.Watchdog == name {
				o.withdraw[idx] = r
			}
		}
	}
}

// All returns every currently-announced route, for `show adj-rib-out`;
// routes whose watchdog is disabled stay listed after their withdrawal.
func (o *AdjRIBOut) All() []Route {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Route, 0, len(o.announced))
	for _, r := range o.announced {
		out = append(out, r)
	}
	return out
}

// RequestRefresh re-stages every announced route of a family into
// `new`, for an incoming ROUTE-REFRESH request (spec.md §4.3).
func (o *AdjRIBOut) RequestRefresh(f bgp.Family) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for idx, r := range o.announced {
		if idx.Family == f {
			o.new[idx] = r
		}
	}
}

// Updates computes the pending diff and returns wire-ready UPDATE
// messages: all withdrawals for a family strictly before any
// announcements for that family (testable property 4), each packed to
// fit msgSize, grouped by identical attribute-set pointer (testable
// property 5). Calling Updates again with no intervening Announce/
// Withdraw returns nothing (idempotent).
func (o *AdjRIBOut) Updates(msgSize int) ([]OutboundMessage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	withdrawByFamily := map[bgp.Family][]Route{}
	for idx, r := range o.withdraw {
		withdrawByFamily[idx.Family] = append(withdrawByFamily[idx.Family], r)
	}

	announceByFamily := map[bgp.Family]map[*AttrSet][]Route{}
	for idx, r := range o.new {
		if r.Watchdog != "" && o.watchdogDisabled[r.Watchdog] {
			continue
		}
		if existing, ok := o.announced[idx]; ok && existing.Equal(r) {
			o.announced[idx] = r
			continue // no-op re-announcement, testable property 8
		}
		if announceByFamily[idx.Family] == nil {
			announceByFamily[idx.Family] = map[*AttrSet][]Route{}
		}
		announceByFamily[idx.Family][r.Attrs] = append(announceByFamily[idx.Family][r.Attrs], r)
	}

	var out []OutboundMessage

	families := map[bgp.Family]bool{}
	for f := range withdrawByFamily {
		families[f] = true
	}
	for f := range announceByFamily {
		families[f] = true
	}
	sorted := sortedFamilies(families)

	for _, f := range sorted {
		msgs, err := packWithdrawals(f, withdrawByFamily[f], msgSize)
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}
	for _, f := range sorted {
		for attrs, routes := range announceByFamily[f] {
			msgs, err := packAnnouncements(f, attrs, routes, msgSize)
			if err != nil {
				return nil, err
			}
			out = append(out, msgs...)
		}
	}

	for idx, r := range o.withdraw {
		delete(o.withdraw, idx)
		if r.Watchdog != "" && o.watchdogDisabled[r.Watchdog] {
			continue // kept so re-enabling the watchdog can find it
		}
		delete(o.announced, idx)
	}
	for idx, r := range o.new {
		if r.Watchdog != "" && o.watchdogDisabled[r.Watchdog] {
			continue
		}
		o.announced[idx] = r
		delete(o.new, idx)
	}
	return out, nil
}

func sortedFamilies(set map[bgp.Family]bool) []bgp.Family {
	out := make([]bgp.Family, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AFI != out[j].AFI {
			return out[i].AFI < out[j].AFI
		}
		return out[i].SAFI < out[j].SAFI
	})
	return out
}

const budgetHeadroom = 64 // leaves room for the 19-byte header plus length fields across any family's framing

func packWithdrawals(f bgp.Family, routes []Route, msgSize int) ([]OutboundMessage, error) {
	if len(routes) == 0 {
		return nil, nil
	}
	budget := msgSize - bgp.HeaderLength - budgetHeadroom
	var out []OutboundMessage
	var batch []Route
	batchLen := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		body, err := encodeWithdraw(f, batch)
		if err != nil {
			return err
		}
		out = append(out, OutboundMessage{Family: f, Body: bgp.EncodeFrame(bgp.MsgUpdate, body)})
		batch = nil
		batchLen = 0
		return nil
	}
	for _, r := range routes {
		enc, err := r.NLRI.Marshal()
		if err != nil {
			return nil, err
		}
		n := len(enc)
		if r.PathID != 0 {
			n += 4
		}
		if batchLen+n > budget && len(batch) > 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		batch = append(batch, r)
		batchLen += n
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func packAnnouncements(f bgp.Family, attrs *AttrSet, routes []Route, msgSize int) ([]OutboundMessage, error) {
	attrBytes := 0
	for _, a := range attrs.Attrs {
		b, err := bgp.MarshalAttr(a)
		if err != nil {
			return nil, err
		}
		attrBytes += len(b)
	}
	budget := msgSize - bgp.HeaderLength - budgetHeadroom - attrBytes
	var out []OutboundMessage
	var batch []Route
	batchLen := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		body, err := encodeAnnounce(f, attrs, batch)
		if err != nil {
			return err
		}
		out = append(out, OutboundMessage{Family: f, Body: bgp.EncodeFrame(bgp.MsgUpdate, body)})
		batch = nil
		batchLen = 0
		return nil
	}
	for _, r := range routes {
		enc, err := r.NLRI.Marshal()
		if err != nil {
			return nil, err
		}
		n := len(enc)
		if r.PathID != 0 {
			n += 4
		}
		if batchLen+n > budget && len(batch) > 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		batch = append(batch, r)
		batchLen += n
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeWithdraw(f bgp.Family, routes []Route) ([]byte, error) {
	if f == bgp.FamilyIPv4Unicast {
		u := bgp.Update{}
		for _, r := range routes {
			u.WithdrawnRoutes = append(u.WithdrawnRoutes, r.NLRI)
		}
		return bgp.MarshalUpdate(u, false)
	}
	mp := bgp.MPUnreachNLRI{Family: f}
	for _, r := range routes {
		mp.NLRI = append(mp.NLRI, bgp.PathNLRI{PathID: r.PathID, NLRI: r.NLRI})
	}
	u := bgp.Update{Attrs: []bgp.Attr{{Flags: bgp.FlagOptional, Type: bgp.AttrMPUnreachNLRI, Value: mp}}}
	return bgp.MarshalUpdate(u, false)
}

func encodeAnnounce(f bgp.Family, attrs *AttrSet, routes []Route) ([]byte, error) {
	if f == bgp.FamilyIPv4Unicast {
		u := bgp.Update{Attrs: attrs.Attrs}
		for _, r := range routes {
			u.NLRI = append(u.NLRI, r.NLRI)
		}
		return bgp.MarshalUpdate(u, false)
	}
	nextHop := routes[0].NextHop
	mp := bgp.MPReachNLRI{Family: f, NextHop: nextHop}
	for _, r := range routes {
		mp.NLRI = append(mp.NLRI, bgp.PathNLRI{PathID: r.PathID, NLRI: r.NLRI})
	}
	combined := append([]bgp.Attr{}, attrs.Attrs...)
	combined = append(combined, bgp.Attr{Flags: bgp.FlagOptional, Type: bgp.AttrMPReachNLRI, Value: mp})
	u := bgp.Update{Attrs: combined}
	return bgp.MarshalUpdate(u, false)
}

// EndOfRIB encodes the graceful-restart End-of-RIB marker for family f, RFC 4724 §2.
func EndOfRIB(f bgp.Family) []byte {
	if f == bgp.FamilyIPv4Unicast {
		body, _ := bgp.MarshalUpdate(bgp.Update{}, false)
		return bgp.EncodeFrame(bgp.MsgUpdate, body)
	}
	u := bgp.Update{Attrs: []bgp.Attr{{Flags: bgp.FlagOptional, Type: bgp.AttrMPUnreachNLRI, Value: bgp.MPUnreachNLRI{Family: f}}}}
	body, _ := bgp.MarshalUpdate(u, false)
	return bgp.EncodeFrame(bgp.MsgUpdate, body)
}
