package bgp

import "testing"

func TestMultiprotocolCapabilityRoundTrip(t *testing.T) {
	c := MultiprotocolCapability(FamilyIPv6Unicast)
	f, ok := c.AsMultiprotocol()
	if !ok || f != FamilyIPv6Unicast {
		t.Fatalf("got %#v, ok=%v", f, ok)
	}
}

func TestASN4CapabilityRoundTrip(t *testing.T) {
	c := ASN4Capability(65550)
	asn, ok := c.AsASN4()
	if !ok || asn != 65550 {
		t.Fatalf("got %d, ok=%v", asn, ok)
	}
}

func TestAddPathCapabilityRoundTrip(t *testing.T) {
	entries := []AddPathEntry{
		{Family: FamilyIPv4Unicast, Direction: AddPathBoth},
		{Family: FamilyIPv6Unicast, Direction: AddPathReceive},
	}
	c := AddPathCapability(entries)
	got, ok := c.AsAddPath()
	if !ok || len(got) != 2 || got[0].Direction != AddPathBoth || got[1].Family != FamilyIPv6Unicast {
		t.Fatalf("got %#v, ok=%v", got, ok)
	}
}

func TestGracefulRestartCapabilityRoundTrip(t *testing.T) {
	state := GracefulRestartState{
		RestartFlag: true,
		RestartTime: 120,
		Families:    []GRFamilyState{{Family: FamilyIPv4Unicast, Forwarding: true}},
	}
	c := GracefulRestartCapability(state)
	got, ok := c.AsGracefulRestart()
	if !ok || !got.RestartFlag || got.RestartTime != 120 || len(got.Families) != 1 || !got.Families[0].Forwarding {
		t.Fatalf("got %#v, ok=%v", got, ok)
	}
}

func TestSimpleCapabilitiesCarryNoValue(t *testing.T) {
	for _, c := range []Capability{
		RouteRefreshCapability(),
		EnhancedRouteRefreshCapability(),
		ExtendedMessageCapability(),
		LinkLocalNextHopCapability(),
	} {
		if len(c.Value) != 0 {
			t.Errorf("capability %d: expected empty value, got %v", c.Code, c.Value)
		}
	}
}

func TestParseCapabilitiesRoundTrip(t *testing.T) {
	encoded := append(MultiprotocolCapability(FamilyIPv4Unicast).marshal(), RouteRefreshCapability().marshal()...)
	caps, err := parseCapabilities(encoded)
	if err != nil {
		t.Fatalf("parseCapabilities: %v", err)
	}
	if len(caps) != 2 || caps[0].Code != CapMultiprotocol || caps[1].Code != CapRouteRefresh {
		t.Fatalf("got %#v", caps)
	}
}

func TestParseCapabilitiesRejectsTruncatedHeader(t *testing.T) {
	_, err := parseCapabilities([]byte{CapASN4})
	if err == nil {
		t.Fatal("expected error for a truncated capability header")
	}
}
