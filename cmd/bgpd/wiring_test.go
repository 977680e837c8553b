package main

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routebird/bgpd/bgp"
	"github.com/routebird/bgpd/config"
)

func TestSplitOnce(t *testing.T) {
	head, tail, ok := splitOnce("65000:100", ':')
	assert.True(t, ok)
	assert.Equal(t, "65000", head)
	assert.Equal(t, "100", tail)

	_, _, ok = splitOnce("no-separator", ':')
	assert.False(t, ok)
}

func TestParseStaticCommunity(t *testing.T) {
	v, err := parseStaticCommunity("65000:100")
	require.NoError(t, err)
	assert.Equal(t, uint32(65000)<<16|100, v)

	_, err = parseStaticCommunity("garbage")
	assert.Error(t, err)

	_, err = parseStaticCommunity("notanumber:100")
	assert.Error(t, err)
}

func TestNhBytesPicksAddressWidth(t *testing.T) {
	v4 := nhBytes(netip.MustParseAddr("192.0.2.1"))
	assert.Len(t, v4, 4)

	v6 := nhBytes(netip.MustParseAddr("2001:db8::1"))
	assert.Len(t, v6, 16)
}

func TestStaticRouteAttrsIncludesOriginAndASPath(t *testing.T) {
	attrs, err := staticRouteAttrs(config.StaticRoute{Prefix: "10.0.0.0/24", NextHop: "10.0.0.1"})
	require.NoError(t, err)
	require.Len(t, attrs, 2)
	assert.Equal(t, bgp.AttrOrigin, attrs[0].Type)
	assert.Equal(t, bgp.AttrASPath, attrs[1].Type)
}

func TestStaticRouteAttrsAddsLocalPrefAndCommunities(t *testing.T) {
	lp := uint32(200)
	attrs, err := staticRouteAttrs(config.StaticRoute{
		Prefix:      "10.0.0.0/24",
		NextHop:     "10.0.0.1",
		LocalPref:   &lp,
		Communities: []string{"65000:1"},
	})
	require.NoError(t, err)
	require.Len(t, attrs, 4)
	assert.Equal(t, bgp.AttrLocalPref, attrs[2].Type)
	assert.Equal(t, bgp.AttrCommunities, attrs[3].Type)
	comms, ok := attrs[3].Value.(bgp.Communities)
	require.True(t, ok)
	assert.Equal(t, bgp.Communities{uint32(65000)<<16 | 1}, comms)
}

func TestStaticRouteAttrsRejectsBadCommunity(t *testing.T) {
	_, err := staticRouteAttrs(config.StaticRoute{Prefix: "10.0.0.0/24", NextHop: "10.0.0.1", Communities: []string{"bad"}})
	assert.Error(t, err)
}

func TestAddPathDirectionMapsNames(t *testing.T) {
	send, err := addPathDirection("send")
	require.NoError(t, err)
	assert.Equal(t, byte(bgp.AddPathSend), send)

	recv, err := addPathDirection("receive")
	require.NoError(t, err)
	assert.Equal(t, byte(bgp.AddPathReceive), recv)

	both, err := addPathDirection("both")
	require.NoError(t, err)
	assert.Equal(t, byte(bgp.AddPathBoth), both)

	_, err = addPathDirection("sideways")
	assert.Error(t, err)
}

func TestBuildLocalOpenWiresCapabilities(t *testing.T) {
	cfg := config.PeerConfig{
		Name:     "edge1",
		LocalASN: 65000,
		RouterID: "192.0.2.1",
		HoldTime: 90 * time.Second,
		AddPath:  []string{"both"},
	}
	open, err := buildLocalOpen(cfg, []bgp.Family{bgp.FamilyIPv4Unicast})
	require.NoError(t, err)
	assert.Equal(t, bgp.ASN(65000), open.ASN)
	assert.Equal(t, uint16(90), open.HoldTime)
	assert.Equal(t, [4]byte{192, 0, 2, 1}, open.Identifier)

	var sawAddPath, sawASN4, sawMultiprotocol bool
	for _, c := range open.Capabilities {
		switch c.Code {
		case bgp.CapAddPath:
			sawAddPath = true
		case bgp.CapASN4:
			sawASN4 = true
		case bgp.CapMultiprotocol:
			sawMultiprotocol = true
		}
	}
	assert.True(t, sawAddPath)
	assert.True(t, sawASN4)
	assert.True(t, sawMultiprotocol)
}

func TestBuildLocalOpenRejectsBadAddPathDirection(t *testing.T) {
	cfg := config.PeerConfig{
		Name:     "edge1",
		LocalASN: 65000,
		RouterID: "192.0.2.1",
		HoldTime: 90 * time.Second,
		AddPath:  []string{"sideways"},
	}
	_, err := buildLocalOpen(cfg, []bgp.Family{bgp.FamilyIPv4Unicast})
	assert.Error(t, err)
}
