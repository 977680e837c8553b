package session

import (
	"fmt"
	"time"

	"github.com/routebird/bgpd/bgp"
)

// State is one of the six FSM states, RFC 4271 §8.2.1.
type State int

const (
	Idle State = iota
	Connect
	Active
	OpenSent
	OpenConfirm
	Established
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connect:
		return "connect"
	case Active:
		return "active"
	case OpenSent:
		return "opensent"
	case OpenConfirm:
		return "openconfirm"
	case Established:
		return "established"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ActionKind tags what the imperative shell (Peer) must do in response
// to a transition; the FSM itself never touches a socket or a timer.
type ActionKind int

const (
	ActionSendOpen ActionKind = iota
	ActionSendKeepalive
	ActionSendNotify
	ActionStartHoldTimer
	ActionStartKeepaliveTimer
	ActionStopTimers
	ActionCloseConn
	ActionNegotiated
	ActionEstablished
	ActionDeliverUpdate
)

type Action struct {
	Kind   ActionKind
	Notify *bgp.NotifyError
}

// FSM is the pure per-peer transition function described in spec.md §9
// ("explicit state enum + transition function" replacing the source's
// coroutine generators). It holds no socket and starts no goroutine;
// Peer drives it and executes the returned Actions.
type FSM struct {
	State      State
	LocalOpen  bgp.Open
	PeerOpen   bgp.Open
	Negotiation Negotiation
	localASN   bgp.ASN
	configHold time.Duration
	collisionWon bool
}

func NewFSM(localOpen bgp.Open, localASN bgp.ASN, configHold time.Duration) *FSM {
	return &FSM{State: Idle, LocalOpen: localOpen, localASN: localASN, configHold: configHold}
}

// TCPEstablished fires when the outbound connect or inbound accept
// completes. Valid from Idle, Connect or Active.
func (f *FSM) TCPEstablished() []Action {
	if f.State != Connect && f.State != Active && f.State != Idle {
		return nil
	}
	f.State = OpenSent
	return []Action{{Kind: ActionSendOpen}, {Kind: ActionStartHoldTimer}}
}

// RecvOpen validates and processes a peer OPEN. Valid only in OpenSent.
func (f *FSM) RecvOpen(peerOpen bgp.Open, localHold time.Duration) []Action {
	if f.State != OpenSent {
		return f.fsmError("OPEN received in state %s", f.State)
	}
	if peerOpen.ASN == 0 {
		return f.notifyAndReset(bgp.ErrOpen, bgp.SubBadPeerAS, nil, "peer AS is zero")
	}
	if peerOpen.Identifier == [4]byte{0, 0, 0, 0} {
		return f.notifyAndReset(bgp.ErrOpen, bgp.SubBadBGPIdentifier, nil, "peer BGP identifier is 0.0.0.0")
	}
	if peerOpen.HoldTime != 0 && peerOpen.HoldTime < 3 {
		return f.notifyAndReset(bgp.ErrOpen, bgp.SubUnacceptableHoldTime, nil, "peer hold time %d below minimum 3s", peerOpen.HoldTime)
	}

	f.PeerOpen = peerOpen
	effectiveHold := localHold
	if peerOpen.HoldTime != 0 && time.Duration(peerOpen.HoldTime)*time.Second < effectiveHold {
		effectiveHold = time.Duration(peerOpen.HoldTime) * time.Second
	}
	f.Negotiation = Negotiate(f.LocalOpen, peerOpen, f.localASN, effectiveHold)

	f.State = OpenConfirm
	actions := []Action{{Kind: ActionNegotiated}, {Kind: ActionSendKeepalive}, {Kind: ActionStartHoldTimer}}
	if effectiveHold > 0 {
		actions = append(actions, Action{Kind: ActionStartKeepaliveTimer})
	}
	return actions
}

// RecvKeepalive advances OpenConfirm → Established, or refreshes the
// hold timer (handled by the caller) in Established.
func (f *FSM) RecvKeepalive() []Action {
	switch f.State {
	case OpenConfirm:
		f.State = Established
		return []Action{{Kind: ActionEstablished}, {Kind: ActionStartHoldTimer}}
	case Established:
		return []Action{{Kind: ActionStartHoldTimer}}
	default:
		return f.fsmError("KEEPALIVE received in state %s", f.State)
	}
}

// RecvUpdate is only valid in Established; it also refreshes the hold timer.
func (f *FSM) RecvUpdate() []Action {
	if f.State != Established {
		return f.fsmError("UPDATE received in state %s", f.State)
	}
	return []Action{{Kind: ActionStartHoldTimer}, {Kind: ActionDeliverUpdate}}
}

// RecvRouteRefresh is valid only in Established and, like any message, resets the hold timer.
func (f *FSM) RecvRouteRefresh() []Action {
	if f.State != Established {
		return f.fsmError("ROUTE-REFRESH received in state %s", f.State)
	}
	return []Action{{Kind: ActionStartHoldTimer}}
}

// RecvNotification tears the session down without sending one back.
func (f *FSM) RecvNotification(n bgp.Notification) []Action {
	f.State = Idle
	return []Action{{Kind: ActionStopTimers}, {Kind: ActionCloseConn}}
}

// HoldExpired fires when the hold timer elapses with no inbound message.
func (f *FSM) HoldExpired() []Action {
	if f.State == Idle {
		return nil
	}
	return f.notifyAndReset(bgp.ErrHoldTimer, 0, nil, "hold timer expired")
}

// KeepaliveDue fires on the keepalive timer; valid in OpenConfirm/Established.
func (f *FSM) KeepaliveDue() []Action {
	if f.State != OpenConfirm && f.State != Established {
		return nil
	}
	return []Action{{Kind: ActionSendKeepalive}, {Kind: ActionStartKeepaliveTimer}}
}

// Teardown is an operator-driven Cease, RFC 4486, with the given subcode.
func (f *FSM) Teardown(subcode byte) []Action {
	return f.notifyAndReset(bgp.ErrCease, subcode, nil, "administrative teardown")
}

func (f *FSM) fsmError(format string, args ...interface{}) []Action {
	return f.notifyAndReset(bgp.ErrFSM, 0, nil, format, args...)
}

func (f *FSM) notifyAndReset(code, subcode byte, data []byte, format string, args ...interface{}) []Action {
	f.State = Idle
	n := bgp.Notify(code, subcode, data, format, args...)
	return []Action{{Kind: ActionSendNotify, Notify: n}, {Kind: ActionStopTimers}, {Kind: ActionCloseConn}}
}
