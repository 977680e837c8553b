package api

import (
	"fmt"
	"math"
	"net/netip"
	"strconv"
	"strings"

	"github.com/routebird/bgpd/bgp"
	"github.com/routebird/bgpd/reactor"
	"github.com/routebird/bgpd/rib"
)

// buildAnnounceFlow parses the reduced flow-route grammar supplemented
// from ExaBGP's `flow route { match {...} then {...} }` syntax
// (SPEC_FULL.md SUPPLEMENTED FEATURES): match clauses become ordered
// FlowSpecRule components, the then clause becomes a traffic-action
// extended community (RFC 5575 §7).
func buildAnnounceFlow(pc ParsedCommand) (reactor.Command, error) {
	var components []bgp.FlowComponent
	family := bgp.FamilyIPv4Flow

	if v, ok := pc.Args["destination"]; ok {
		p, err := netip.ParsePrefix(v)
		if err != nil {
			return reactor.Command{}, fmt.Errorf("api: bad flow destination %q: %w", v, err)
		}
		if p.Addr().Is6() {
			family = bgp.FamilyIPv6Flow
		}
		components = append(components, bgp.FlowComponent{Type: bgp.FlowDestPrefix, Value: encodeFlowPrefix(p)})
	}
	if v, ok := pc.Args["source"]; ok {
		p, err := netip.ParsePrefix(v)
		if err != nil {
			return reactor.Command{}, fmt.Errorf("api: bad flow source %q: %w", v, err)
		}
		components = append(components, bgp.FlowComponent{Type: bgp.FlowSourcePrefix, Value: encodeFlowPrefix(p)})
	}
	if v, ok := pc.Args["protocol"]; ok {
		proto, err := protocolNumber(v)
		if err != nil {
			return reactor.Command{}, err
		}
		components = append(components, bgp.FlowComponent{Type: bgp.FlowIPProtocol, Value: encodeFlowNumericEqual(proto)})
	}
	if v, ok := pc.Args["destination-port"]; ok {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return reactor.Command{}, fmt.Errorf("api: bad destination-port %q: %w", v, err)
		}
		components = append(components, bgp.FlowComponent{Type: bgp.FlowDestPort, Value: encodeFlowNumericEqual(uint32(n))})
	}
	if len(components) == 0 {
		return reactor.Command{}, fmt.Errorf("api: flow route needs at least one match component")
	}

	rule := bgp.FlowSpecRule{Fam: family, Components: components}

	var actionCommunities bgp.ExtCommunities
	action := strings.ToLower(pc.Args["then"])
	switch action {
	case "", "discard":
		actionCommunities = append(actionCommunities, trafficRateCommunity(0))
	case "accept":
		// no traffic-action extended community needed: absence of a
		// rate-limiting community means "accept at line rate."
	default:
		if strings.HasPrefix(action, "rate-limit") {
			fields := strings.Fields(action)
			if len(fields) != 2 {
				return reactor.Command{}, fmt.Errorf("api: bad rate-limit action %q", action)
			}
			rate, err := strconv.ParseFloat(fields[1], 32)
			if err != nil {
				return reactor.Command{}, fmt.Errorf("api: bad rate-limit value %q: %w", fields[1], err)
			}
			actionCommunities = append(actionCommunities, trafficRateCommunity(float32(rate)))
		} else {
			return reactor.Command{}, fmt.Errorf("api: unknown flow action %q", action)
		}
	}

	attrs := []bgp.Attr{{Flags: bgp.FlagTransitive, Type: bgp.AttrOrigin, Value: bgp.Origin(bgp.OriginIGP)}}
	if len(actionCommunities) > 0 {
		attrs = append(attrs, bgp.Attr{Flags: bgp.FlagOptional | bgp.FlagTransitive, Type: bgp.AttrExtCommunities, Value: actionCommunities})
	}
	set, err := sharedInterner.Intern(attrs)
	if err != nil {
		return reactor.Command{}, err
	}
	route := rib.Route{Family: family, NLRI: rule, Attrs: set}
	return reactor.Command{Targets: pc.Neighbors, Apply: func(h *reactor.PeerHandle) error {
		return h.Out.Announce(route)
	}}, nil
}

// encodeFlowPrefix produces the prefix-match component value: a
// length byte followed by the minimal prefix bytes, RFC 8955 §4.2.
func encodeFlowPrefix(p netip.Prefix) []byte {
	bits := p.Bits()
	addr := p.Addr()
	full := addr.AsSlice()
	n := (bits + 7) / 8
	return append([]byte{byte(bits)}, full[:n]...)
}

// encodeFlowNumericEqual produces a single numeric-operator run
// expressing "value == n" (RFC 8955 §4.2.1): end-of-list, equal,
// 2-byte-length operator byte followed by the 2-byte value.
func encodeFlowNumericEqual(n uint32) []byte {
	const opEOL = 0x80
	const opEqual = 0x01
	const opLen2 = 0x10
	return []byte{opEOL | opEqual | opLen2, byte(n >> 8), byte(n)}
}

func trafficRateCommunity(rate float32) bgp.ExtCommunity {
	bits := math.Float32bits(rate)
	return bgp.ExtCommunity{
		Type:    0x80,
		Subtype: 0x06,
		Value:   [6]byte{0, 0, byte(bits >> 24), byte(bits >> 16), byte(bits >> 8), byte(bits)},
	}
}

var protocolNames = map[string]uint32{"tcp": 6, "udp": 17, "icmp": 1}

func protocolNumber(s string) (uint32, error) {
	if n, ok := protocolNames[strings.ToLower(s)]; ok {
		return n, nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("api: unknown protocol %q", s)
	}
	return uint32(n), nil
}
