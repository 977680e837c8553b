package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"

	"github.com/jonboulle/clockwork"

	"github.com/routebird/bgpd/bgp"
	"github.com/routebird/bgpd/config"
	"github.com/routebird/bgpd/reactor"
	"github.com/routebird/bgpd/rib"
)

// staticInterner interns the attribute sets of config-file static
// routes, kept separate from the API channel's own interner since the
// two populate disjoint route sources.
var staticInterner = rib.NewInterner()

// startPeers builds every configured peer's PeerHandle, registers it
// with r, and seeds its Adj-RIB-Out with any static_routes. Active-mode
// peers dial out immediately (blocking startup on the first connection
// attempt, per the teacher's own connector); passive-mode peers get a
// listening socket whose accepted connections are wired up as they
// arrive, one goroutine per listener.
func startPeers(ctx context.Context, doc config.Document, r *reactor.Reactor, clock clockwork.Clock, log *slog.Logger) ([]net.Listener, error) {
	var listeners []net.Listener
	for _, pc := range doc.Peers {
		families, err := pc.FamilySet()
		if err != nil {
			return listeners, err
		}
		localOpen, err := buildLocalOpen(pc, families)
		if err != nil {
			return listeners, err
		}

		if pc.Passive {
			ln, err := net.Listen("tcp", net.JoinHostPort(pc.LocalAddress, bgpPort))
			if err != nil {
				return listeners, fmt.Errorf("peer %s: listen: %w", pc.Name, err)
			}
			listeners = append(listeners, ln)
			go acceptPassive(ctx, ln, pc, families, localOpen, r, clock, log)
			continue
		}

		h, err := startActivePeer(ctx, pc, families, localOpen, clock, log)
		if err != nil {
			return listeners, err
		}
		if err := seedStaticRoutes(h, pc); err != nil {
			return listeners, err
		}
		r.AddPeer(h)
	}
	return listeners, nil
}

// acceptPassive accepts connections for one passive-mode peer for as
// long as ctx is alive, wiring each accepted socket into a fresh
// PeerHandle. A real deployment expects exactly one far end per
// listener; nothing stops a second accept from replacing the first.
func acceptPassive(ctx context.Context, ln net.Listener, pc config.PeerConfig, families []bgp.Family, localOpen bgp.Open, r *reactor.Reactor, clock clockwork.Clock, log *slog.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("accept failed", "peer", pc.Name, "err", err)
			return
		}
		h := startPassivePeer(pc, families, localOpen, conn, clock, log)
		if err := seedStaticRoutes(h, pc); err != nil {
			log.Warn("static route seeding failed", "peer", pc.Name, "err", err)
		}
		r.AddPeer(h)
	}
}

func seedStaticRoutes(h *reactor.PeerHandle, pc config.PeerConfig) error {
	for _, sr := range pc.StaticRoutes {
		prefix, err := netip.ParsePrefix(sr.Prefix)
		if err != nil {
			return fmt.Errorf("peer %s: static route prefix %q: %w", pc.Name, sr.Prefix, err)
		}
		nh, err := netip.ParseAddr(sr.NextHop)
		if err != nil {
			return fmt.Errorf("peer %s: static route next-hop %q: %w", pc.Name, sr.NextHop, err)
		}
		attrs, err := staticRouteAttrs(sr)
		if err != nil {
			return err
		}
		set, err := staticInterner.Intern(attrs)
		if err != nil {
			return err
		}
		nlri := bgp.InetUnicast{Prefix: prefix, Safi: bgp.SAFI_UNICAST}
		route := rib.Route{Family: nlri.Family(), NLRI: nlri, Attrs: set, NextHop: nhBytes(nh)}
		if err := h.Out.Announce(route); err != nil {
			return fmt.Errorf("peer %s: static route %s: %w", pc.Name, sr.Prefix, err)
		}
	}
	return nil
}

func staticRouteAttrs(sr config.StaticRoute) ([]bgp.Attr, error) {
	attrs := []bgp.Attr{
		{Flags: bgp.FlagTransitive, Type: bgp.AttrOrigin, Value: bgp.Origin(bgp.OriginIGP)},
		{Flags: bgp.FlagTransitive, Type: bgp.AttrASPath, Value: bgp.ASPath{}},
	}
	if sr.LocalPref != nil {
		attrs = append(attrs, bgp.Attr{Flags: bgp.FlagTransitive, Type: bgp.AttrLocalPref, Value: bgp.LocalPref(*sr.LocalPref)})
	}
	if len(sr.Communities) > 0 {
		var communities bgp.Communities
		for _, c := range sr.Communities {
			v, err := parseStaticCommunity(c)
			if err != nil {
				return nil, err
			}
			communities = append(communities, v)
		}
		attrs = append(attrs, bgp.Attr{Flags: bgp.FlagOptional | bgp.FlagTransitive, Type: bgp.AttrCommunities, Value: communities})
	}
	return attrs, nil
}

func parseStaticCommunity(s string) (uint32, error) {
	asn, val, ok := splitOnce(s, ':')
	if !ok {
		return 0, fmt.Errorf("config: bad community %q, want asn:value", s)
	}
	a, err := strconv.ParseUint(asn, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("config: bad community asn %q: %w", asn, err)
	}
	v, err := strconv.ParseUint(val, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("config: bad community value %q: %w", val, err)
	}
	return uint32(a)<<16 | uint32(v), nil
}

func splitOnce(s string, sep byte) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func nhBytes(addr netip.Addr) []byte {
	if addr.Is4() {
		a := addr.As4()
		return a[:]
	}
	a := addr.As16()
	return a[:]
}
