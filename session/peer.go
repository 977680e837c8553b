package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/routebird/bgpd/bgp"
	"github.com/routebird/bgpd/counter"
)

// Frame is one fully-received BGP message, still in its raw decoded
// form; Peer's read loop hands these to Run over an internal channel.
type Frame struct {
	Type bgp.Header
	Body []byte
}

// EventKind tags what arrived on Peer.Events.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventUpdate
	EventNotification
	EventClosed
	EventRouteRefresh
)

type Event struct {
	Kind    EventKind
	State   State
	Update  bgp.Update
	Notify  bgp.Notification
	Refresh bgp.Family
	Err     error
}

// Peer drives one BGP TCP connection's non-blocking suspension points
// (spec §5: "socket read/write, configurable sleep... are suspension
// points"), expressed as goroutines communicating over channels rather
// than literal coroutines, per the Design Notes' re-architecture rule.
type Peer struct {
	Name   string
	conn   net.Conn
	fsm    *FSM
	clock  clockwork.Clock
	log    *slog.Logger

	Events   chan Event
	outbound chan []byte
	done     chan struct{}

	holdDeadline      time.Time
	keepaliveDeadline time.Time
	extendedMsg       bool

	MessagesSent     *counter.Counter
	MessagesReceived *counter.Counter
}

// NewPeer wraps an already-connected (or accepted) net.Conn with its FSM.
func NewPeer(name string, conn net.Conn, fsm *FSM, clock clockwork.Clock, log *slog.Logger) *Peer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Peer{
		Name:     name,
		conn:     conn,
		fsm:      fsm,
		clock:    clock,
		log:      log,
		Events:   make(chan Event, 64),
		outbound: make(chan []byte, 64),
		done:     make(chan struct{}),

		MessagesSent:     counter.New(),
		MessagesReceived: counter.New(),
	}
}

// Run drives the connection until ctx is cancelled or the session
// closes. It is meant to be one goroutine supervised by an errgroup in
// reactor.Reactor.Run.
func (p *Peer) Run(ctx context.Context) error {
	defer close(p.done)

	reads := make(chan Frame, 16)
	readErrs := make(chan error, 1)
	go p.readLoop(reads, readErrs)

	for _, a := range p.fsm.TCPEstablished() {
		p.apply(a)
	}

	holdTimer := p.clock.NewTimer(240 * time.Second)
	keepaliveTimer := p.clock.NewTimer(time.Hour)
	keepaliveTimer.Stop()
	defer holdTimer.Stop()
	defer keepaliveTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.sendNotify(bgp.Notify(bgp.ErrCease, bgp.SubCeaseAdminShutdown, nil, "shutting down"))
			return ctx.Err()

		case err := <-readErrs:
			p.emit(Event{Kind: EventClosed, Err: err})
			return err

		case f := <-reads:
			p.onFrame(f, holdTimer, keepaliveTimer)

		case body := <-p.outbound:
			if _, err := p.conn.Write(body); err != nil {
				p.emit(Event{Kind: EventClosed, Err: err})
				return err
			}
			p.MessagesSent.Increment()

		case <-holdTimer.Chan():
			for _, a := range p.fsm.HoldExpired() {
				p.apply(a)
			}
			return fmt.Errorf("session %s: hold timer expired", p.Name)

		case <-keepaliveTimer.Chan():
			for _, a := range p.fsm.KeepaliveDue() {
				p.applyTimed(a, holdTimer, keepaliveTimer)
			}
		}
	}
}

func (p *Peer) onFrame(f Frame, holdTimer, keepaliveTimer clockwork.Timer) {
	p.MessagesReceived.Increment()
	var actions []Action
	switch f.Type.Type {
	case bgp.MsgOpen:
		open, err := bgp.ParseOpen(f.Body)
		if err != nil {
			p.sendNotifiable(err)
			return
		}
		actions = p.fsm.RecvOpen(open, p.fsm.configHold)
	case bgp.MsgKeepalive:
		actions = p.fsm.RecvKeepalive()
	case bgp.MsgUpdate:
		ctx := p.fsm.Negotiation.CodecContext()
		u, err := bgp.ParseUpdate(f.Body, ctx)
		if err != nil {
			p.sendNotifiable(err)
			return
		}
		actions = p.fsm.RecvUpdate()
		p.emit(Event{Kind: EventUpdate, Update: u})
	case bgp.MsgRouteRefresh:
		actions = p.fsm.RecvRouteRefresh()
		if rr, err := bgp.ParseRouteRefresh(f.Body); err == nil {
			p.emit(Event{Kind: EventRouteRefresh, Refresh: rr.Family})
		}
	case bgp.MsgNotification:
		n, err := bgp.ParseNotification(f.Body)
		if err != nil {
			return
		}
		actions = p.fsm.RecvNotification(n)
		p.emit(Event{Kind: EventNotification, Notify: n})
	}
	for _, a := range actions {
		p.applyTimed(a, holdTimer, keepaliveTimer)
	}
}

func (p *Peer) applyTimed(a Action, holdTimer, keepaliveTimer clockwork.Timer) {
	switch a.Kind {
	case ActionStartHoldTimer:
		hold := 240 * time.Second
		if p.fsm.Negotiation.holdTime > 0 {
			hold = p.fsm.Negotiation.holdTime
		}
		holdTimer.Reset(hold)
	case ActionStartKeepaliveTimer:
		keepaliveTimer.Reset(p.fsm.Negotiation.KeepaliveInterval())
	case ActionStopTimers:
		holdTimer.Stop()
		keepaliveTimer.Stop()
	default:
		p.apply(a)
	}
}

func (p *Peer) apply(a Action) {
	switch a.Kind {
	case ActionSendOpen:
		p.write(bgp.EncodeFrame(bgp.MsgOpen, bgp.MarshalOpen(p.fsm.LocalOpen)))
	case ActionSendKeepalive:
		p.write(bgp.EncodeFrame(bgp.MsgKeepalive, bgp.MarshalKeepalive()))
	case ActionSendNotify:
		p.sendNotify(a.Notify)
	case ActionNegotiated:
		p.extendedMsg = p.fsm.Negotiation.MsgSize() > bgp.MaxMessageLength
		p.log.Info("capabilities negotiated", "peer", p.Name)
	case ActionEstablished:
		p.emit(Event{Kind: EventStateChanged, State: Established})
	case ActionCloseConn:
		p.conn.Close()
	}
}

func (p *Peer) sendNotifiable(err error) {
	var n bgp.Notifiable
	if errors.As(err, &n) {
		p.sendNotify(bgp.Notify(n.Code(), n.Subcode(), n.Data(), "%s", n.Error()))
		return
	}
	p.sendNotify(bgp.Notify(bgp.ErrUpdate, bgp.SubMalformedAttrList, nil, "%s", err.Error()))
}

func (p *Peer) sendNotify(n *bgp.NotifyError) {
	p.write(bgp.EncodeFrame(bgp.MsgNotification, bgp.MarshalNotification(bgp.Notification{Code: n.Code(), Subcode: n.Subcode(), Data: n.Data()})))
	p.conn.Close()
}

func (p *Peer) write(b []byte) {
	if _, err := p.conn.Write(b); err != nil {
		p.emit(Event{Kind: EventClosed, Err: err})
		return
	}
	p.MessagesSent.Increment()
}

func (p *Peer) emit(e Event) {
	select {
	case p.Events <- e:
	default:
		p.log.Warn("event channel full, dropping event", "peer", p.Name, "kind", e.Kind)
	}
}

// MessageSize returns the largest UPDATE this connection may send,
// per the negotiated Extended Message capability (RFC 8654), for the
// outgoing engine's packing budget.
func (p *Peer) MessageSize() int {
	if n := p.fsm.Negotiation.MsgSize(); n > 0 {
		return n
	}
	return bgp.MaxMessageLength
}

// GracefulRestartNegotiated reports whether this connection's OPEN
// exchange agreed graceful restart (RFC 4724), so a caller tearing the
// connection down knows whether Adj-RIB-In should survive the reset.
func (p *Peer) GracefulRestartNegotiated() bool {
	return p.fsm.Negotiation.GracefulRestartState().Negotiated
}

// Send queues an outbound wire-ready message (already framed) for the
// write side of Run's select loop.
func (p *Peer) Send(body []byte) {
	select {
	case p.outbound <- body:
	case <-p.done:
	}
}

func (p *Peer) readLoop(out chan<- Frame, errs chan<- error) {
	r := bufio.NewReaderSize(p.conn, 8192)
	for {
		header := make([]byte, bgp.HeaderLength)
		if _, err := readFull(r, header); err != nil {
			errs <- err
			return
		}
		h, err := bgp.ParseHeader(header, p.extendedMsg)
		if err != nil {
			errs <- err
			return
		}
		body := make([]byte, int(h.Length)-bgp.HeaderLength)
		if len(body) > 0 {
			if _, err := readFull(r, body); err != nil {
				errs <- err
				return
			}
		}
		select {
		case out <- Frame{Type: h, Body: body}:
		case <-p.done:
			return
		}
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
