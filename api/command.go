// Package api implements the line-oriented control channel (spec.md
// §4.5): a text or JSON dual-encoding protocol between the core and an
// external controller, carrying the command grammar of spec.md §6 plus
// the generic `announce attribute ... nlri ...` form supplemented from
// ExaBGP's route/attribute grammar (SPEC_FULL.md).
package api

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/routebird/bgpd/bgp"
	"github.com/routebird/bgpd/reactor"
	"github.com/routebird/bgpd/rib"
)

// ParsedCommand is the intermediate form a text or JSON line decodes
// to, before Build turns it into a reactor.Command.
type ParsedCommand struct {
	Neighbors []string // empty = all peers
	Verb      string   // "announce", "withdraw", "show", "neighbor", "reload", "shutdown"
	Noun      string   // "route", "flow", "eor", "route-refresh", "watchdog", "attribute", "neighbor(s)", "adj-rib-in", "adj-rib-out"
	Args      map[string]string
	Lists     map[string][]string
	Teardown  byte
	HasTeardown bool
}

// Interner is shared across every Build call so identical attribute
// sets across commands intern to the same *rib.AttrSet pointer,
// keeping the outgoing engine's grouping a pointer comparison.
var sharedInterner = rib.NewInterner()

// Build turns a ParsedCommand into a reactor.Command closure.
func Build(pc ParsedCommand) (reactor.Command, error) {
	switch pc.Verb {
	case "announce":
		switch pc.Noun {
		case "route":
			return buildAnnounceRoute(pc)
		case "attribute":
			return buildAnnounceAttribute(pc)
		case "eor":
			return buildEOR(pc)
		case "route-refresh":
			return buildRouteRefreshRequest(pc)
		case "watchdog":
			return buildWatchdog(pc, true)
		case "flow":
			return buildAnnounceFlow(pc)
		}
	case "withdraw":
		switch pc.Noun {
		case "route":
			return buildWithdrawRoute(pc)
		case "watchdog":
			return buildWatchdog(pc, false)
		}
	case "neighbor":
		if pc.HasTeardown {
			return buildTeardown(pc)
		}
	}
	return reactor.Command{}, fmt.Errorf("api: unsupported command %q %q", pc.Verb, pc.Noun)
}

func buildAnnounceRoute(pc ParsedCommand) (reactor.Command, error) {
	prefix, err := netip.ParsePrefix(pc.Args["route"])
	if err != nil {
		return reactor.Command{}, fmt.Errorf("api: bad prefix: %w", err)
	}
	nh, err := netip.ParseAddr(pc.Args["next-hop"])
	if err != nil {
		return reactor.Command{}, fmt.Errorf("api: bad next-hop: %w", err)
	}
	attrs, err := attrsFromArgs(pc)
	if err != nil {
		return reactor.Command{}, err
	}
	set, err := sharedInterner.Intern(attrs)
	if err != nil {
		return reactor.Command{}, err
	}
	nlri := bgp.InetUnicast{Prefix: prefix, Safi: bgp.SAFI_UNICAST}
	route := rib.Route{Family: nlri.Family(), NLRI: nlri, Attrs: set, NextHop: nhBytes(nh)}
	return reactor.Command{Targets: pc.Neighbors, Apply: func(h *reactor.PeerHandle) error {
		return h.Out.Announce(route)
	}}, nil
}

func buildWithdrawRoute(pc ParsedCommand) (reactor.Command, error) {
	prefix, err := netip.ParsePrefix(pc.Args["route"])
	if err != nil {
		return reactor.Command{}, fmt.Errorf("api: bad prefix: %w", err)
	}
	nlri := bgp.InetUnicast{Prefix: prefix, Safi: bgp.SAFI_UNICAST}
	route := rib.Route{Family: nlri.Family(), NLRI: nlri}
	idx, err := route.Index()
	if err != nil {
		return reactor.Command{}, err
	}
	return reactor.Command{Targets: pc.Neighbors, Apply: func(h *reactor.PeerHandle) error {
		h.Out.Withdraw(idx)
		return nil
	}}, nil
}

// buildAnnounceAttribute is the supplemented generic form: one
// attribute set applied to a list of NLRIs in a single call, so a
// controller can build one grouped UPDATE explicitly.
func buildAnnounceAttribute(pc ParsedCommand) (reactor.Command, error) {
	attrs, err := attrsFromArgs(pc)
	if err != nil {
		return reactor.Command{}, err
	}
	set, err := sharedInterner.Intern(attrs)
	if err != nil {
		return reactor.Command{}, err
	}
	var nh []byte
	if v, ok := pc.Args["next-hop"]; ok {
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return reactor.Command{}, fmt.Errorf("api: bad next-hop: %w", err)
		}
		nh = nhBytes(addr)
	}
	var routes []rib.Route
	for _, p := range pc.Lists["nlri"] {
		prefix, err := netip.ParsePrefix(p)
		if err != nil {
			return reactor.Command{}, fmt.Errorf("api: bad nlri %q: %w", p, err)
		}
		nlri := bgp.InetUnicast{Prefix: prefix, Safi: bgp.SAFI_UNICAST}
		routes = append(routes, rib.Route{Family: nlri.Family(), NLRI: nlri, Attrs: set, NextHop: nh})
	}
	return reactor.Command{Targets: pc.Neighbors, Apply: func(h *reactor.PeerHandle) error {
		for _, r := range routes {
			if err := h.Out.Announce(r); err != nil {
				return err
			}
		}
		return nil
	}}, nil
}

func buildEOR(pc ParsedCommand) (reactor.Command, error) {
	f, err := familyFromArgs(pc)
	if err != nil {
		return reactor.Command{}, err
	}
	return reactor.Command{Targets: pc.Neighbors, Apply: func(h *reactor.PeerHandle) error {
		h.Send(rib.EndOfRIB(f))
		return nil
	}}, nil
}

func buildRouteRefreshRequest(pc ParsedCommand) (reactor.Command, error) {
	f, err := familyFromArgs(pc)
	if err != nil {
		return reactor.Command{}, err
	}
	body := bgp.MarshalRouteRefresh(bgp.RouteRefresh{Family: f})
	return reactor.Command{Targets: pc.Neighbors, Apply: func(h *reactor.PeerHandle) error {
		h.Send(bgp.EncodeFrame(bgp.MsgRouteRefresh, body))
		h.Out.RequestRefresh(f)
		return nil
	}}, nil
}

func buildWatchdog(pc ParsedCommand, enabled bool) (reactor.Command, error) {
	name := pc.Args["watchdog"]
	if name == "" {
		return reactor.Command{}, fmt.Errorf("api: watchdog command missing name")
	}
	return reactor.Command{Targets: pc.Neighbors, Apply: func(h *reactor.PeerHandle) error {
		h.Out.SetWatchdog(name, enabled)
		return nil
	}}, nil
}

func buildTeardown(pc ParsedCommand) (reactor.Command, error) {
	subcode := pc.Teardown
	return reactor.Command{Targets: pc.Neighbors, Apply: func(h *reactor.PeerHandle) error {
		h.Send(bgp.EncodeFrame(bgp.MsgNotification, bgp.MarshalNotification(bgp.Notification{Code: bgp.ErrCease, Subcode: subcode})))
		return nil
	}}, nil
}

func nhBytes(addr netip.Addr) []byte {
	if addr.Is4() {
		a := addr.As4()
		return a[:]
	}
	a := addr.As16()
	return a[:]
}

func familyFromArgs(pc ParsedCommand) (bgp.Family, error) {
	afi, ok1 := afiNames[pc.Args["afi"]]
	safi, ok2 := safiNames[pc.Args["safi"]]
	if !ok1 || !ok2 {
		return bgp.Family{}, fmt.Errorf("api: unknown afi/safi %q/%q", pc.Args["afi"], pc.Args["safi"])
	}
	return bgp.Family{AFI: afi, SAFI: safi}, nil
}

var afiNames = map[string]bgp.AFI{"ipv4": bgp.AFI_IPV4, "ipv6": bgp.AFI_IPV6, "l2vpn": bgp.AFI_L2VPN}
var safiNames = map[string]bgp.SAFI{"unicast": bgp.SAFI_UNICAST, "multicast": bgp.SAFI_MULTICAST, "evpn": bgp.SAFI_EVPN, "vpls": bgp.SAFI_VPLS}

// attrsFromArgs builds a path-attribute list from the parsed command's
// key/value args and list args (origin, as-path, next-hop,
// local-preference, med, community). A NEXT_HOP attribute is added only
// for an IPv4 next-hop; other next-hops are carried as Route.NextHop.
func attrsFromArgs(pc ParsedCommand) ([]bgp.Attr, error) {
	var attrs []bgp.Attr

	origin := bgp.OriginIGP
	switch pc.Args["origin"] {
	case "", "igp":
		origin = bgp.OriginIGP
	case "egp":
		origin = bgp.OriginEGP
	case "incomplete":
		origin = bgp.OriginIncomplete
	default:
		return nil, fmt.Errorf("api: unknown origin %q", pc.Args["origin"])
	}
	attrs = append(attrs, bgp.Attr{Flags: bgp.FlagTransitive, Type: bgp.AttrOrigin, Value: bgp.Origin(origin)})

	var asns []bgp.ASN
	for _, s := range pc.Lists["as-path"] {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("api: bad AS_PATH element %q: %w", s, err)
		}
		asns = append(asns, bgp.ASN(n))
	}
	path := bgp.ASPath{}
	if len(asns) > 0 {
		path.Segments = []bgp.ASPathSegment{{Type: bgp.SegTypeSequence, ASNs: asns}}
	}
	attrs = append(attrs, bgp.Attr{Flags: bgp.FlagTransitive, Type: bgp.AttrASPath, Value: path})

	if v, ok := pc.Args["next-hop"]; ok {
		addr, err := netip.ParseAddr(v)
		if err == nil && addr.Is4() {
			attrs = append(attrs, bgp.Attr{Flags: bgp.FlagTransitive, Type: bgp.AttrNextHop, Value: bgp.NextHop(addr.As4())})
		}
	}

	if v, ok := pc.Args["local-preference"]; ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("api: bad local-preference %q: %w", v, err)
		}
		attrs = append(attrs, bgp.Attr{Flags: bgp.FlagTransitive, Type: bgp.AttrLocalPref, Value: bgp.LocalPref(n)})
	}
	if v, ok := pc.Args["med"]; ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("api: bad med %q: %w", v, err)
		}
		attrs = append(attrs, bgp.Attr{Flags: bgp.FlagOptional, Type: bgp.AttrMultiExitDisc, Value: bgp.MED(n)})
	}
	if len(pc.Lists["community"]) > 0 {
		var communities bgp.Communities
		for _, c := range pc.Lists["community"] {
			v, err := parseCommunity(c)
			if err != nil {
				return nil, err
			}
			communities = append(communities, v)
		}
		attrs = append(attrs, bgp.Attr{Flags: bgp.FlagOptional | bgp.FlagTransitive, Type: bgp.AttrCommunities, Value: communities})
	}
	return attrs, nil
}

func parseCommunity(s string) (uint32, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("api: bad community %q, want asn:value", s)
	}
	asn, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("api: bad community asn %q: %w", parts[0], err)
	}
	val, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("api: bad community value %q: %w", parts[1], err)
	}
	return uint32(asn)<<16 | uint32(val), nil
}
