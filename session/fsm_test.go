package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routebird/bgpd/bgp"
)

func actionKinds(actions []Action) []ActionKind {
	out := make([]ActionKind, len(actions))
	for i, a := range actions {
		out[i] = a.Kind
	}
	return out
}

func newTestFSM() *FSM {
	open := bgp.Open{ASN: 65001, HoldTime: 90, Identifier: [4]byte{10, 0, 0, 1}}
	return NewFSM(open, 65001, 90*time.Second)
}

func TestFSMHappyPath(t *testing.T) {
	f := newTestFSM()
	assert.Equal(t, Idle, f.State)

	actions := f.TCPEstablished()
	assert.Equal(t, OpenSent, f.State)
	assert.Equal(t, []ActionKind{ActionSendOpen, ActionStartHoldTimer}, actionKinds(actions))

	peerOpen := bgp.Open{ASN: 65002, HoldTime: 90, Identifier: [4]byte{10, 0, 0, 2}}
	actions = f.RecvOpen(peerOpen, 90*time.Second)
	require.Equal(t, OpenConfirm, f.State)
	assert.Contains(t, actionKinds(actions), ActionNegotiated)
	assert.Contains(t, actionKinds(actions), ActionSendKeepalive)

	actions = f.RecvKeepalive()
	assert.Equal(t, Established, f.State)
	assert.Contains(t, actionKinds(actions), ActionEstablished)

	actions = f.RecvUpdate()
	assert.Contains(t, actionKinds(actions), ActionDeliverUpdate)
}

func TestFSMRejectsZeroPeerASN(t *testing.T) {
	f := newTestFSM()
	f.TCPEstablished()

	actions := f.RecvOpen(bgp.Open{ASN: 0, Identifier: [4]byte{10, 0, 0, 2}}, 90*time.Second)
	assert.Equal(t, Idle, f.State)
	require.Len(t, actions, 3)
	assert.Equal(t, ActionSendNotify, actions[0].Kind)
	assert.Equal(t, byte(bgp.ErrOpen), actions[0].Notify.Code())
	assert.Equal(t, byte(bgp.SubBadPeerAS), actions[0].Notify.Subcode())
}

func TestFSMRejectsLowHoldTime(t *testing.T) {
	f := newTestFSM()
	f.TCPEstablished()

	actions := f.RecvOpen(bgp.Open{ASN: 65002, HoldTime: 1, Identifier: [4]byte{10, 0, 0, 2}}, 90*time.Second)
	require.Len(t, actions, 3)
	assert.Equal(t, byte(bgp.SubUnacceptableHoldTime), actions[0].Notify.Subcode())
}

func TestFSMOutOfStateOpenIsFSMError(t *testing.T) {
	f := newTestFSM()
	// RecvOpen before TCPEstablished: still Idle, not OpenSent.
	actions := f.RecvOpen(bgp.Open{ASN: 65002, Identifier: [4]byte{10, 0, 0, 2}}, 90*time.Second)
	require.Len(t, actions, 3)
	assert.Equal(t, byte(bgp.ErrFSM), actions[0].Notify.Code())
	assert.Equal(t, Idle, f.State)
}

func TestFSMHoldExpiredFromEstablishedNotifies(t *testing.T) {
	f := newTestFSM()
	f.TCPEstablished()
	f.RecvOpen(bgp.Open{ASN: 65002, HoldTime: 90, Identifier: [4]byte{10, 0, 0, 2}}, 90*time.Second)
	f.RecvKeepalive()
	require.Equal(t, Established, f.State)

	actions := f.HoldExpired()
	require.Len(t, actions, 3)
	assert.Equal(t, byte(bgp.ErrHoldTimer), actions[0].Notify.Code())
	assert.Equal(t, Idle, f.State)
}

func TestFSMHoldExpiredFromIdleIsNoop(t *testing.T) {
	f := newTestFSM()
	assert.Nil(t, f.HoldExpired())
}

func TestFSMTeardownSendsCease(t *testing.T) {
	f := newTestFSM()
	f.TCPEstablished()
	f.RecvOpen(bgp.Open{ASN: 65002, HoldTime: 90, Identifier: [4]byte{10, 0, 0, 2}}, 90*time.Second)
	f.RecvKeepalive()

	actions := f.Teardown(bgp.SubCeaseAdminShutdown)
	require.Len(t, actions, 3)
	assert.Equal(t, byte(bgp.ErrCease), actions[0].Notify.Code())
	assert.Equal(t, byte(bgp.SubCeaseAdminShutdown), actions[0].Notify.Subcode())
	assert.Equal(t, Idle, f.State)
}
