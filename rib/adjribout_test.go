package rib

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routebird/bgpd/bgp"
)

func unicastRoute(t *testing.T, prefix string, attrs *AttrSet, watchdog string) Route {
	t.Helper()
	p := netip.MustParsePrefix(prefix)
	nlri := bgp.InetUnicast{Prefix: p, Safi: bgp.SAFI_UNICAST}
	return Route{Family: nlri.Family(), NLRI: nlri, Attrs: attrs, NextHop: []byte{10, 0, 0, 1}, Watchdog: watchdog}
}

func plainAttrs(t *testing.T, in *Interner) *AttrSet {
	t.Helper()
	set, err := in.Intern([]bgp.Attr{
		{Flags: bgp.FlagTransitive, Type: bgp.AttrOrigin, Value: bgp.Origin(bgp.OriginIGP)},
		{Flags: bgp.FlagTransitive, Type: bgp.AttrASPath, Value: bgp.ASPath{}},
	})
	require.NoError(t, err)
	return set
}

func TestInternerDedupesIdenticalAttrs(t *testing.T) {
	in := NewInterner()
	a, err := in.Intern([]bgp.Attr{{Flags: bgp.FlagTransitive, Type: bgp.AttrOrigin, Value: bgp.Origin(bgp.OriginIGP)}})
	require.NoError(t, err)
	b, err := in.Intern([]bgp.Attr{{Flags: bgp.FlagTransitive, Type: bgp.AttrOrigin, Value: bgp.Origin(bgp.OriginIGP)}})
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestAdjRIBOutAnnounceThenUpdatesProducesOneMessage(t *testing.T) {
	out := NewAdjRIBOut()
	in := NewInterner()
	attrs := plainAttrs(t, in)

	require.NoError(t, out.Announce(unicastRoute(t, "10.0.0.0/24", attrs, "")))
	msgs, err := out.Updates(4096)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, bgp.FamilyIPv4Unicast, msgs[0].Family)

	// Idempotent: no pending diff, second call is empty.
	msgs, err = out.Updates(4096)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAdjRIBOutNoOpReannouncementEmitsNothing(t *testing.T) {
	out := NewAdjRIBOut()
	in := NewInterner()
	attrs := plainAttrs(t, in)
	route := unicastRoute(t, "10.0.0.0/24", attrs, "")

	require.NoError(t, out.Announce(route))
	_, err := out.Updates(4096)
	require.NoError(t, err)

	require.NoError(t, out.Announce(route))
	msgs, err := out.Updates(4096)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAdjRIBOutWithdrawBeforeAnnounceOrdering(t *testing.T) {
	out := NewAdjRIBOut()
	in := NewInterner()
	attrs := plainAttrs(t, in)

	require.NoError(t, out.Announce(unicastRoute(t, "10.0.0.0/24", attrs, "")))
	_, err := out.Updates(4096)
	require.NoError(t, err)

	idx, err := unicastRoute(t, "10.0.0.0/24", attrs, "").Index()
	require.NoError(t, err)
	out.Withdraw(idx)
	require.NoError(t, out.Announce(unicastRoute(t, "10.0.1.0/24", attrs, "")))

	msgs, err := out.Updates(4096)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
}

func TestAdjRIBOutWatchdogSuppressesAdvertisement(t *testing.T) {
	out := NewAdjRIBOut()
	in := NewInterner()
	attrs := plainAttrs(t, in)

	out.SetWatchdog("maint", false)
	require.NoError(t, out.Announce(unicastRoute(t, "10.0.0.0/24", attrs, "maint")))
	msgs, err := out.Updates(4096)
	require.NoError(t, err)
	assert.Empty(t, msgs, "watchdog-disabled route must not be advertised")

	out.SetWatchdog("maint", true)
	msgs, err = out.Updates(4096)
	require.NoError(t, err)
	require.Len(t, msgs, 1, "re-enabling the watchdog must re-stage the route")
}

func TestAdjRIBOutWithdrawNeverAnnouncedIsNoop(t *testing.T) {
	out := NewAdjRIBOut()
	route := unicastRoute(t, "10.0.0.0/24", nil, "")
	idx, err := route.Index()
	require.NoError(t, err)
	out.Withdraw(idx)
	msgs, err := out.Updates(4096)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
