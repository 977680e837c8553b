// Package reactor implements the cooperative single-loop dispatcher
// that multiplexes every peer, its timers, and the API channel (spec.md
// §4.4). The "single-threaded cooperative" scheduling model of spec.md
// §5 is expressed idiomatically as one supervising goroutine draining
// a fan-in channel fed by per-peer goroutines, rather than a literal
// coroutine scheduler — each peer's own suspension points already live
// inside session.Peer.Run's select loop.
package reactor

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/routebird/bgpd/bgp"
	"github.com/routebird/bgpd/metrics"
	"github.com/routebird/bgpd/rib"
	"github.com/routebird/bgpd/session"
)

// PeerHandle bundles a running session.Peer with its RIB tables. Dial,
// when non-nil, lets the reactor re-establish the session (rebuilding
// the FSM and Peer from scratch) after the connection drops, carrying
// the same RIB tables forward; a nil Dial means a one-shot connection
// that is simply removed on disconnect (e.g. a single accepted
// passive-mode socket).
type PeerHandle struct {
	Name string
	Peer *session.Peer
	In   *rib.AdjRIBIn
	Out  *rib.AdjRIBOut
	Dial func(ctx context.Context) (*session.Peer, error)

	mu sync.Mutex
}

func (h *PeerHandle) currentPeer() *session.Peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Peer
}

func (h *PeerHandle) setPeer(p *session.Peer) {
	h.mu.Lock()
	h.Peer = p
	h.mu.Unlock()
}

// Send queues body on whichever connection is currently active for
// this peer, safe to call even while a reconnect is swapping it.
func (h *PeerHandle) Send(body []byte) {
	h.currentPeer().Send(body)
}

// Reactor owns the set of configured peers and drains their events.
type Reactor struct {
	log    *slog.Logger
	mx     *metrics.Registry
	mu     sync.Mutex
	peers  map[string]*PeerHandle
	states map[string]session.State

	Commands <-chan Command
	Events   chan<- OutputEvent
}

// PeerSnapshot is a point-in-time read of one peer's session state and
// RIB occupancy, for the `show neighbor(s)` control-channel command.
type PeerSnapshot struct {
	Name       string
	State      string
	RIBInSize  int
	RIBOutSize int
	Sent       uint64
	Received   uint64
}

// Snapshot renders the current state of every peer, safe to call
// concurrently with the reactor's own dispatch loop (it only reads the
// peer table and each RIB's own independently-locked maps).
func (r *Reactor) Snapshot() []PeerSnapshot {
	r.mu.Lock()
	out := make([]PeerSnapshot, 0, len(r.peers))
	for name, h := range r.peers {
		out = append(out, PeerSnapshot{
			Name:       name,
			State:      r.states[name].String(),
			RIBInSize:  h.In.Len(),
			RIBOutSize: len(h.Out.All()),
			Sent:       h.currentPeer().MessagesSent.Value(),
			Received:   h.currentPeer().MessagesReceived.Value(),
		})
	}
	r.mu.Unlock()
	return out
}

// AdjRIBIn returns the named peer's received-route table, if present.
func (r *Reactor) AdjRIBIn(name string) (*rib.AdjRIBIn, bool) {
	h, ok := r.peer(name)
	if !ok {
		return nil, false
	}
	return h.In, true
}

// AdjRIBOut returns the named peer's advertised-route table, if present.
func (r *Reactor) AdjRIBOut(name string) (*rib.AdjRIBOut, bool) {
	h, ok := r.peer(name)
	if !ok {
		return nil, false
	}
	return h.Out, true
}

// Command is one parsed API-channel request, defined fully in api.Command;
// reactor only needs to know which peers it targets and what to run.
type Command struct {
	Targets []string // empty means "all peers"
	Apply   func(h *PeerHandle) error
}

// OutputEvent is an asynchronous notification the reactor emits back
// toward the API channel (peer up/down, decoded UPDATE).
type OutputEvent struct {
	Peer string
	Kind string
	Data interface{}
}

func New(log *slog.Logger, mx *metrics.Registry, commands <-chan Command, events chan<- OutputEvent) *Reactor {
	return &Reactor{log: log, mx: mx, peers: map[string]*PeerHandle{}, states: map[string]session.State{}, Commands: commands, Events: events}
}

// AddPeer registers a running peer with the reactor.
func (r *Reactor) AddPeer(h *PeerHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[h.Name] = h
}

// RemovePeer unregisters a peer, e.g. after its goroutine exits.
func (r *Reactor) RemovePeer(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, name)
}

func (r *Reactor) peerList() []*PeerHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*PeerHandle, 0, len(r.peers))
	for _, h := range r.peers {
		out = append(out, h)
	}
	return out
}

func (r *Reactor) peer(name string) (*PeerHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.peers[name]
	return h, ok
}

// Run is the reactor's single cooperative loop. It supervises every
// peer goroutine via an errgroup (golang.org/x/sync/errgroup), so that
// a shutdown signal cancels every sibling without letting an error
// escape uncaught (spec.md §7: "no exception escapes to the outer
// loop"). A peer's errors are logged by its watcher and do not cancel
// the other peers.
func (r *Reactor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	g, gctx := errgroup.WithContext(ctx)

	fanIn := make(chan peerEvent, 256)
	g.Go(func() error { return r.dispatch(gctx, fanIn, cancel) })

	for _, h := range r.peerList() {
		r.watchPeer(gctx, g, h, fanIn)
	}

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case sig := <-sigCh:
				switch sig {
				case syscall.SIGTERM:
					r.log.Info("SIGTERM received, shutting down")
					r.teardownAll()
					cancel()
					return nil
				case syscall.SIGHUP:
					r.log.Info("SIGHUP received, reload requested")
					// Reload diffing is driven by the caller re-issuing
					// Announce/Withdraw calls through the API channel's
					// `reload` command; the reactor's role is just to
					// notice the signal and surface it as an event.
					select {
					case r.Events <- OutputEvent{Kind: "reload"}:
					default:
					}
				}
			}
		}
	})

	return g.Wait()
}

type peerEvent struct {
	name string
	ev   session.Event
}

// watchPeer drains one peer's events into the fan-in channel and runs
// its connection to completion. When the handle carries a Dial func
// (active-mode peers that should reconnect), a dropped connection is
// re-dialed with the peer's own backoff schedule rather than ending
// the goroutine — a single flapping peer must never bring down its
// siblings or the reactor's errgroup.
func (r *Reactor) watchPeer(ctx context.Context, g *errgroup.Group, h *PeerHandle, fanIn chan<- peerEvent) {
	g.Go(func() error {
		defer r.RemovePeer(h.Name)
		for {
			if err := r.runOneConnection(ctx, h, fanIn); err != nil {
				r.log.Warn("peer connection ended", "peer", h.Name, "err", err)
			}
			if ctx.Err() != nil {
				return nil
			}
			if h.Dial == nil {
				return nil
			}
			r.mx.Reconnects.WithLabelValues(h.Name).Inc()
			next, err := h.Dial(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.log.Warn("peer redial failed", "peer", h.Name, "err", err)
				return nil
			}
			h.setPeer(next)
		}
	})
}

func (r *Reactor) runOneConnection(ctx context.Context, h *PeerHandle, fanIn chan<- peerEvent) error {
	peer := h.currentPeer()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range peer.Events {
			select {
			case fanIn <- peerEvent{name: h.Name, ev: ev}:
			case <-ctx.Done():
				return
			}
		}
	}()
	err := peer.Run(ctx)
	<-done
	// Adj-RIB-In survives a reconnect only when graceful restart was
	// negotiated (RFC 4724); otherwise every route this peer held is
	// now stale and must be dropped, spec.md §3.
	if !peer.GracefulRestartNegotiated() {
		h.In.Clear()
	}
	return err
}

// dispatch is the actual cooperative loop body: it drains the peer
// fan-in and the command queue, acting on whichever is ready, and
// never blocks on any single peer (spec.md §4.4/§5).
func (r *Reactor) dispatch(ctx context.Context, fanIn <-chan peerEvent, cancel context.CancelFunc) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case pe := <-fanIn:
			r.handlePeerEvent(pe)

		case cmd := <-r.Commands:
			r.handleCommand(cmd)
		}
	}
}

func (r *Reactor) handlePeerEvent(pe peerEvent) {
	switch pe.ev.Kind {
	case session.EventStateChanged:
		r.mx.PeerState.WithLabelValues(pe.name).Set(float64(pe.ev.State))
		r.mu.Lock()
		r.states[pe.name] = pe.ev.State
		r.mu.Unlock()
		r.Events <- OutputEvent{Peer: pe.name, Kind: "state", Data: pe.ev.State.String()}
		if pe.ev.State == session.Established {
			if h, ok := r.peer(pe.name); ok {
				r.flushOut(h)
			}
		}
	case session.EventUpdate:
		r.mx.MessagesRecv.WithLabelValues(pe.name, "update").Inc()
		if h, ok := r.peer(pe.name); ok {
			r.storeUpdate(h, pe.ev.Update)
		}
		r.Events <- OutputEvent{Peer: pe.name, Kind: "update", Data: pe.ev.Update}
	case session.EventRouteRefresh:
		if h, ok := r.peer(pe.name); ok {
			h.Out.RequestRefresh(pe.ev.Refresh)
			r.flushOut(h)
		}
		r.Events <- OutputEvent{Peer: pe.name, Kind: "route-refresh", Data: pe.ev.Refresh}
	case session.EventNotification:
		r.Events <- OutputEvent{Peer: pe.name, Kind: "notification", Data: pe.ev.Notify}
	case session.EventClosed:
		r.Events <- OutputEvent{Peer: pe.name, Kind: "down", Data: pe.ev.Err}
	}
}

// flushOut drains h.Out's staged diff into wire-ready UPDATEs and sends
// each one. Announce/Withdraw/SetWatchdog/RequestRefresh only stage a
// pending change; this is the only place that actually packs and
// writes the resulting UPDATE messages (spec.md §4.3), and it is safe
// to call with nothing staged (Updates is idempotent then).
func (r *Reactor) flushOut(h *PeerHandle) {
	msgs, err := h.Out.Updates(h.currentPeer().MessageSize())
	if err != nil {
		r.log.Warn("failed to pack outbound updates", "peer", h.Name, "err", err)
		return
	}
	for _, m := range msgs {
		h.Send(m.Body)
		r.mx.MessagesSent.WithLabelValues(h.Name, "update").Inc()
	}
}

func (r *Reactor) storeUpdate(h *PeerHandle, u bgp.Update) {
	// A PolicyTreatAsWithdraw attribute failure (spec §3/§7) converts
	// every reachable NLRI in this UPDATE into a withdrawal instead of
	// an announcement, rather than surfacing a hard NOTIFY.
	if u.TreatAsWithdraw {
		for family, items := range u.Reachable() {
			for _, item := range items {
				route := rib.Route{Family: family, NLRI: item.NLRI, PathID: item.PathID}
				idx, err := route.Index()
				if err == nil {
					h.In.Withdraw(idx)
				}
			}
		}
		return
	}
	for family, items := range u.Reachable() {
		for _, item := range items {
			route := rib.Route{Family: family, NLRI: item.NLRI, PathID: item.PathID, Direction: rib.DirectionIn}
			_ = h.In.Store(route)
		}
	}
	for family, items := range u.Unreachable() {
		for _, item := range items {
			route := rib.Route{Family: family, NLRI: item.NLRI, PathID: item.PathID}
			idx, err := route.Index()
			if err == nil {
				h.In.Withdraw(idx)
			}
		}
	}
}

func (r *Reactor) handleCommand(cmd Command) {
	targets := cmd.Targets
	if len(targets) == 0 {
		for _, h := range r.peerList() {
			if err := cmd.Apply(h); err != nil {
				r.log.Warn("command failed", "peer", h.Name, "err", err)
				continue
			}
			r.flushOut(h)
		}
		return
	}
	for _, name := range targets {
		h, ok := r.peer(name)
		if !ok {
			r.log.Warn("command targets unknown peer", "peer", name)
			continue
		}
		if err := cmd.Apply(h); err != nil {
			r.log.Warn("command failed", "peer", name, "err", err)
			continue
		}
		r.flushOut(h)
	}
}

// teardownAll logs the peers about to receive an orderly shutdown; the
// actual NOTIFY (6,2) send happens when Run's subsequent cancel() fires
// each session.Peer.Run's ctx.Done() case.
func (r *Reactor) teardownAll() {
	for _, h := range r.peerList() {
		r.log.Info("tearing down peer for shutdown", "peer", h.Name)
	}
}
