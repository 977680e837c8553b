// Package session implements the per-peer BGP state machine: OPEN
// negotiation, capability intersection, keepalive/hold timing and
// reconnection backoff. Connection collision resolution is not
// implemented.
package session

import (
	"time"

	"github.com/routebird/bgpd/bgp"
)

// GracefulRestart is the per-session outcome of graceful-restart
// capability exchange, RFC 4724 §3.
type GracefulRestart struct {
	Negotiated  bool
	RestartFlag bool
	RestartTime time.Duration
	Preserved   map[bgp.Family]bool
}

// Negotiation is the immutable record of a session's agreed
// capabilities, produced once at the end of the OPEN exchange (spec
// §4.6). Codec and RIB read only this object; they never consult raw
// OPEN bytes again.
type Negotiation struct {
	asn4            bool
	families        map[bgp.Family]bool
	addPathSend     map[bgp.Family]bool
	addPathReceive  map[bgp.Family]bool
	msgSize         int
	enhancedRefresh bool
	linkLocalNH     bool
	gracefulRestart GracefulRestart
	localASN        bgp.ASN
	peerASN         bgp.ASN
	holdTime        time.Duration
}

func (n Negotiation) ASN4() bool                        { return n.asn4 }
func (n Negotiation) AddPathSend(f bgp.Family) bool      { return n.addPathSend[f] }
func (n Negotiation) AddPathReceive(f bgp.Family) bool   { return n.addPathReceive[f] }
func (n Negotiation) MsgSize() int                       { return n.msgSize }
func (n Negotiation) EnhancedRefresh() bool              { return n.enhancedRefresh }
func (n Negotiation) LinkLocalNH() bool                  { return n.linkLocalNH }
func (n Negotiation) GracefulRestartState() GracefulRestart { return n.gracefulRestart }
func (n Negotiation) HoldTime() time.Duration            { return n.holdTime }
func (n Negotiation) KeepaliveInterval() time.Duration   { return n.holdTime / 3 }

// Families returns the AFI/SAFI set this session may exchange routes
// for: the intersection of each side's multiprotocol advertisements.
func (n Negotiation) Families() []bgp.Family {
	out := make([]bgp.Family, 0, len(n.families))
	for f := range n.families {
		out = append(out, f)
	}
	return out
}

func (n Negotiation) Supports(f bgp.Family) bool { return n.families[f] }

// CodecContext adapts this Negotiation to the bgp package's codec
// boundary object (spec §4.6's "codec reads only this object").
func (n Negotiation) CodecContext() *bgp.CodecContext {
	return &bgp.CodecContext{ASN4: n.asn4, AddPathReceive: n.addPathReceive, LinkLocalNH: n.linkLocalNH}
}

// Negotiate computes the Negotiation from the local OPEN we sent and
// the peer's OPEN we received, per spec §4.2/§4.6: every query method
// is the intersection (not the union) of what each side offered;
// ASN4 and graceful restart likewise need both sides to have
// advertised them.
func Negotiate(sent, received bgp.Open, localASN bgp.ASN, holdTime time.Duration) Negotiation {
	n := Negotiation{
		families:       map[bgp.Family]bool{},
		addPathSend:    map[bgp.Family]bool{},
		addPathReceive: map[bgp.Family]bool{},
		msgSize:        bgp.MaxMessageLength,
		localASN:       localASN,
		peerASN:        received.EffectiveASN(),
		holdTime:       holdTime,
	}

	localFamilies := map[bgp.Family]bool{}
	peerFamilies := map[bgp.Family]bool{}
	for _, c := range sent.Capabilities {
		if f, ok := c.AsMultiprotocol(); ok {
			localFamilies[f] = true
		}
		if c.Code == bgp.CapASN4 {
			// locally always offered when the daemon's own ASN is 4-byte;
			// intersection with the peer decides actual ASN4 use below.
		}
	}
	for _, c := range received.Capabilities {
		if f, ok := c.AsMultiprotocol(); ok {
			peerFamilies[f] = true
		}
	}
	if len(localFamilies) == 0 {
		localFamilies[bgp.FamilyIPv4Unicast] = true
	}
	if len(peerFamilies) == 0 {
		peerFamilies[bgp.FamilyIPv4Unicast] = true
	}
	for f := range localFamilies {
		if peerFamilies[f] {
			n.families[f] = true
		}
	}

	n.asn4 = sent.HasCapability(bgp.CapASN4) && received.HasCapability(bgp.CapASN4)

	localAddPath := map[bgp.Family]byte{}
	peerAddPath := map[bgp.Family]byte{}
	for _, c := range sent.Capabilities {
		if entries, ok := c.AsAddPath(); ok {
			for _, e := range entries {
				localAddPath[e.Family] = e.Direction
			}
		}
	}
	for _, c := range received.Capabilities {
		if entries, ok := c.AsAddPath(); ok {
			for _, e := range entries {
				peerAddPath[e.Family] = e.Direction
			}
		}
	}
	for f := range n.families {
		// We send add-path to the peer iff we offered send/both and the
		// peer offered receive/both for the same family (and vice versa).
		if canSend(localAddPath[f]) && canReceive(peerAddPath[f]) {
			n.addPathSend[f] = true
		}
		if canReceive(localAddPath[f]) && canSend(peerAddPath[f]) {
			n.addPathReceive[f] = true
		}
	}

	n.enhancedRefresh = sent.HasCapability(bgp.CapEnhancedRouteRefresh) && received.HasCapability(bgp.CapEnhancedRouteRefresh)
	n.linkLocalNH = sent.HasCapability(bgp.CapLinkLocalNextHop) && received.HasCapability(bgp.CapLinkLocalNextHop)

	if sent.HasCapability(bgp.CapExtendedMessage) && received.HasCapability(bgp.CapExtendedMessage) {
		n.msgSize = bgp.MaxExtendedMessageLength
	}

	n.gracefulRestart = negotiateGracefulRestart(sent, received)

	return n
}

func canSend(dir byte) bool    { return dir == bgp.AddPathSend || dir == bgp.AddPathBoth }
func canReceive(dir byte) bool { return dir == bgp.AddPathReceive || dir == bgp.AddPathBoth }

func negotiateGracefulRestart(sent, received bgp.Open) GracefulRestart {
	var localGR, peerGR bgp.GracefulRestartState
	var localOK, peerOK bool
	for _, c := range sent.Capabilities {
		if g, ok := c.AsGracefulRestart(); ok {
			localGR, localOK = g, true
		}
	}
	for _, c := range received.Capabilities {
		if g, ok := c.AsGracefulRestart(); ok {
			peerGR, peerOK = g, true
		}
	}
	if !localOK || !peerOK {
		return GracefulRestart{}
	}
	preserved := map[bgp.Family]bool{}
	localByFamily := map[bgp.Family]bool{}
	for _, f := range localGR.Families {
		localByFamily[f.Family] = true
	}
	for _, f := range peerGR.Families {
		if localByFamily[f.Family] {
			preserved[f.Family] = f.Forwarding
		}
	}
	return GracefulRestart{
		Negotiated:  true,
		RestartFlag: peerGR.RestartFlag,
		RestartTime: time.Duration(peerGR.RestartTime) * time.Second,
		Preserved:   preserved,
	}
}
