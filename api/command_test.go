package api

import (
	"log/slog"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routebird/bgpd/bgp"
	"github.com/routebird/bgpd/reactor"
	"github.com/routebird/bgpd/rib"
	"github.com/routebird/bgpd/session"
)

func newLocalOpenForTest() bgp.Open {
	return bgp.Open{ASN: 65000, HoldTime: 90, Identifier: [4]byte{10, 0, 0, 1}}
}

func mustPrefix(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	require.NoError(t, err)
	return p
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// newLivePeerHandle wires a handle whose Peer has a real outbound
// channel, so Apply closures that call h.Send don't dereference a nil
// session.Peer.
func newLivePeerHandle(t *testing.T, name string) *reactor.PeerHandle {
	t.Helper()
	local, remote := net.Pipe()
	t.Cleanup(func() { remote.Close() })
	fsm := session.NewFSM(newLocalOpenForTest(), 65000, 90*time.Second)
	peer := session.NewPeer(name, local, fsm, clockwork.NewFakeClock(), discardLogger())
	return &reactor.PeerHandle{Name: name, Peer: peer, In: rib.NewAdjRIBIn(), Out: rib.NewAdjRIBOut()}
}

func TestBuildAnnounceRoute(t *testing.T) {
	pc := ParsedCommand{
		Neighbors: []string{"192.0.2.1"},
		Verb:      "announce",
		Noun:      "route",
		Args: map[string]string{
			"route":    "10.0.0.0/24",
			"next-hop": "192.0.2.254",
		},
		Lists: map[string][]string{"as-path": {"65001"}},
	}
	cmd, err := Build(pc)
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1"}, cmd.Targets)

	h := &reactor.PeerHandle{Name: "p", Out: rib.NewAdjRIBOut()}
	require.NoError(t, cmd.Apply(h))
	assert.Len(t, h.Out.All(), 0) // staged into `new`, not yet diffed via Updates

	msgs, err := h.Out.Updates(4096)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestBuildWithdrawRouteNeverAnnouncedIsNoop(t *testing.T) {
	pc := ParsedCommand{Verb: "withdraw", Noun: "route", Args: map[string]string{"route": "10.0.0.0/24"}}
	cmd, err := Build(pc)
	require.NoError(t, err)

	h := &reactor.PeerHandle{Name: "p", Out: rib.NewAdjRIBOut()}
	require.NoError(t, cmd.Apply(h))
	msgs, err := h.Out.Updates(4096)
	require.NoError(t, err)
	assert.Len(t, msgs, 0)
}

func TestBuildAnnounceAttributeMultipleNLRI(t *testing.T) {
	pc := ParsedCommand{
		Verb: "announce",
		Noun: "attribute",
		Args: map[string]string{"next-hop": "192.0.2.254", "local-preference": "200"},
		Lists: map[string][]string{
			"nlri": {"10.0.0.0/24", "10.0.1.0/24"},
		},
	}
	cmd, err := Build(pc)
	require.NoError(t, err)

	h := &reactor.PeerHandle{Name: "p", Out: rib.NewAdjRIBOut()}
	require.NoError(t, cmd.Apply(h))
	msgs, err := h.Out.Updates(4096)
	require.NoError(t, err)
	require.Len(t, msgs, 1) // grouped: same AttrSet pointer, one UPDATE
}

func TestBuildWatchdogDisableSuppressesPendingAnnouncement(t *testing.T) {
	h := &reactor.PeerHandle{Name: "p", Out: rib.NewAdjRIBOut()}
	prefix := bgp.InetUnicast{Prefix: mustPrefix(t, "10.0.0.0/24"), Safi: bgp.SAFI_UNICAST}
	require.NoError(t, h.Out.Announce(rib.Route{Family: prefix.Family(), NLRI: prefix, Watchdog: "wd1"}))

	disable, err := Build(ParsedCommand{Verb: "withdraw", Noun: "watchdog", Args: map[string]string{"watchdog": "wd1"}})
	require.NoError(t, err)
	require.NoError(t, disable.Apply(h))

	msgs, err := h.Out.Updates(4096)
	require.NoError(t, err)
	assert.Len(t, msgs, 0) // suppressed before ever announced: no UPDATE to send
}

func TestBuildTeardownSendsCeaseNotification(t *testing.T) {
	cmd, err := Build(ParsedCommand{Verb: "neighbor", HasTeardown: true, Teardown: 2, Neighbors: []string{"192.0.2.1"}})
	require.NoError(t, err)

	h := newLivePeerHandle(t, "p")
	require.NoError(t, cmd.Apply(h))
}

func TestBuildEORSendsEndOfRIBMarker(t *testing.T) {
	cmd, err := Build(ParsedCommand{Verb: "announce", Noun: "eor", Args: map[string]string{"afi": "ipv4", "safi": "unicast"}})
	require.NoError(t, err)

	h := newLivePeerHandle(t, "p")
	require.NoError(t, cmd.Apply(h))
}

func TestBuildUnsupportedCommandErrors(t *testing.T) {
	_, err := Build(ParsedCommand{Verb: "bogus", Noun: "thing"})
	assert.Error(t, err)
}

func TestBuildAnnounceRouteRejectsBadPrefix(t *testing.T) {
	_, err := Build(ParsedCommand{Verb: "announce", Noun: "route", Args: map[string]string{"route": "not-a-prefix", "next-hop": "192.0.2.1"}})
	assert.Error(t, err)
}
