package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/routebird/bgpd/bgp"
	"github.com/routebird/bgpd/config"
	"github.com/routebird/bgpd/network"
	"github.com/routebird/bgpd/reactor"
	"github.com/routebird/bgpd/rib"
	"github.com/routebird/bgpd/session"
)

const bgpPort = "179"

// buildLocalOpen renders one peer's configuration into the OPEN
// message this speaker sends it: ASN4, multiprotocol, route-refresh and
// enhanced route-refresh always, ADD-PATH and graceful restart when
// configured. Extended message and link-local next-hop are not
// advertised.
func buildLocalOpen(cfg config.PeerConfig, families []bgp.Family) (bgp.Open, error) {
	var routerID [4]byte
	if cfg.RouterID == "" {
		id, err := network.FindRouterID()
		if err != nil {
			return bgp.Open{}, fmt.Errorf("peer %s: no router-id configured and none could be discovered: %w", cfg.Name, err)
		}
		routerID = id
	} else {
		id, err := cfg.RouterIDBytes()
		if err != nil {
			return bgp.Open{}, err
		}
		routerID = id
	}

	caps := []bgp.Capability{bgp.ASN4Capability(cfg.LocalASN)}
	for _, f := range families {
		caps = append(caps, bgp.MultiprotocolCapability(f))
	}
	caps = append(caps, bgp.RouteRefreshCapability(), bgp.EnhancedRouteRefreshCapability())

	if len(cfg.AddPath) > 0 {
		entries := make([]bgp.AddPathEntry, 0, len(cfg.AddPath)*len(families))
		for _, f := range families {
			for _, dir := range cfg.AddPath {
				d, err := addPathDirection(dir)
				if err != nil {
					return bgp.Open{}, err
				}
				entries = append(entries, bgp.AddPathEntry{Family: f, Direction: d})
			}
		}
		caps = append(caps, bgp.AddPathCapability(entries))
	}

	if cfg.GracefulRestart {
		states := make([]bgp.GRFamilyState, 0, len(families))
		for _, f := range families {
			states = append(states, bgp.GRFamilyState{Family: f, Forwarding: false})
		}
		caps = append(caps, bgp.GracefulRestartCapability(bgp.GracefulRestartState{RestartTime: 120, Families: states}))
	}

	return bgp.Open{
		ASN:          cfg.LocalASN,
		HoldTime:     uint16(cfg.HoldTime / time.Second),
		Identifier:   routerID,
		Capabilities: caps,
	}, nil
}

func addPathDirection(s string) (byte, error) {
	switch s {
	case "send":
		return bgp.AddPathSend, nil
	case "receive":
		return bgp.AddPathReceive, nil
	case "both":
		return bgp.AddPathBoth, nil
	default:
		return 0, fmt.Errorf("config: unknown add_path direction %q", s)
	}
}

// dialActive opens the TCP connection to an active-mode peer. It only
// dials; session.Connector.Next waits out the reconnection backoff
// before each call, the first included.
func dialActive(cfg config.PeerConfig) func(ctx context.Context) (net.Conn, error) {
	return func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", net.JoinHostPort(cfg.PeerAddress, bgpPort))
	}
}

// peerBuild constructs a fresh FSM + session.Peer for one TCP
// connection, used both for the initial connect and every reconnect.
func peerBuild(cfg config.PeerConfig, families []bgp.Family, localOpen bgp.Open, conn net.Conn, clock clockwork.Clock, log *slog.Logger) *session.Peer {
	fsm := session.NewFSM(localOpen, cfg.LocalASN, cfg.HoldTime)
	return session.NewPeer(cfg.Name, conn, fsm, clock, log)
}

// startActivePeer establishes the first connection to an active-mode
// peer and returns a PeerHandle whose Dial hook reconnects through the
// same backoff schedule on every subsequent drop.
func startActivePeer(ctx context.Context, cfg config.PeerConfig, families []bgp.Family, localOpen bgp.Open, clock clockwork.Clock, log *slog.Logger) (*reactor.PeerHandle, error) {
	connector := session.NewConnector(dialActive(cfg), clock)
	conn, err := connector.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("peer %s: initial connect: %w", cfg.Name, err)
	}
	peerLog := log.With(slog.String("peer", cfg.Name))
	h := &reactor.PeerHandle{
		Name: cfg.Name,
		Peer: peerBuild(cfg, families, localOpen, conn, clock, peerLog),
		In:   rib.NewAdjRIBIn(),
		Out:  rib.NewAdjRIBOut(),
		Dial: func(ctx context.Context) (*session.Peer, error) {
			conn, err := connector.Next(ctx)
			if err != nil {
				return nil, err
			}
			return peerBuild(cfg, families, localOpen, conn, clock, peerLog), nil
		},
	}
	return h, nil
}

// startPassivePeer wraps an already-accepted connection for a
// passive-mode peer. Passive peers do not auto-reconnect: the far end
// is expected to redial, producing a fresh accepted connection that
// the caller wires up as a new PeerHandle.
func startPassivePeer(cfg config.PeerConfig, families []bgp.Family, localOpen bgp.Open, conn net.Conn, clock clockwork.Clock, log *slog.Logger) *reactor.PeerHandle {
	peerLog := log.With(slog.String("peer", cfg.Name))
	return &reactor.PeerHandle{
		Name: cfg.Name,
		Peer: peerBuild(cfg, families, localOpen, conn, clock, peerLog),
		In:   rib.NewAdjRIBIn(),
		Out:  rib.NewAdjRIBOut(),
	}
}
