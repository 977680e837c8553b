package bgp

import (
	"net/netip"
	"testing"
)

func marshalAndDecodeOne(t *testing.T, a Attr, ctx *CodecContext) Attr {
	t.Helper()
	encoded, err := MarshalAttr(a)
	if err != nil {
		t.Fatalf("MarshalAttr: %v", err)
	}
	attrs, _, err := ParseAttrs(encoded, ctx)
	if err != nil {
		t.Fatalf("ParseAttrs: %v", err)
	}
	if len(attrs) != 1 {
		t.Fatalf("expected exactly one decoded attribute, got %d", len(attrs))
	}
	return attrs[0]
}

func TestCommunitiesRoundTrip(t *testing.T) {
	a := Attr{Flags: FlagOptional | FlagTransitive, Type: AttrCommunities, Value: Communities{CommunityNoExport, 0x10000001}}
	got := marshalAndDecodeOne(t, a, &CodecContext{})
	c, ok := got.Value.(Communities)
	if !ok || len(c) != 2 || c[0] != CommunityNoExport {
		t.Fatalf("got %#v", got.Value)
	}
}

func TestCommunitiesRejectsUnalignedLength(t *testing.T) {
	_, err := decodeCommunities(0, []byte{1, 2, 3}, &CodecContext{})
	if err == nil {
		t.Fatal("expected length error for a non-multiple-of-4 COMMUNITIES body")
	}
}

func TestExtCommunitiesRoundTrip(t *testing.T) {
	rt := ExtCommunity{Type: ExtCommTypeTransitiveTwoOctetAS, Subtype: ExtCommSubtypeRouteTarget, Value: [6]byte{0, 100, 0, 0, 0, 1}}
	a := Attr{Flags: FlagOptional | FlagTransitive, Type: AttrExtCommunities, Value: ExtCommunities{rt}}
	got := marshalAndDecodeOne(t, a, &CodecContext{})
	e, ok := got.Value.(ExtCommunities)
	if !ok || len(e) != 1 {
		t.Fatalf("got %#v", got.Value)
	}
	asn, localAdmin := e[0].RouteTarget()
	if asn != 100 || localAdmin != 1 {
		t.Errorf("RouteTarget: got asn=%d localAdmin=%d, want 100/1", asn, localAdmin)
	}
}

func TestLargeCommunitiesRoundTrip(t *testing.T) {
	a := Attr{Flags: FlagOptional | FlagTransitive, Type: AttrLargeCommunities, Value: LargeCommunities{{GlobalAdmin: 65000, LocalData1: 1, LocalData2: 2}}}
	got := marshalAndDecodeOne(t, a, &CodecContext{})
	l, ok := got.Value.(LargeCommunities)
	if !ok || len(l) != 1 || l[0].GlobalAdmin != 65000 {
		t.Fatalf("got %#v", got.Value)
	}
}

func TestMPReachNLRIRoundTripIPv6Unicast(t *testing.T) {
	prefix := netip.MustParsePrefix("2001:db8::/32")
	nlri := InetUnicast{Prefix: prefix, Safi: SAFI_UNICAST}
	nh := netip.MustParseAddr("2001:db8::1").As16()
	a := Attr{Flags: FlagOptional, Type: AttrMPReachNLRI, Value: MPReachNLRI{
		Family:  FamilyIPv6Unicast,
		NextHop: nh[:],
		NLRI:    []PathNLRI{{NLRI: nlri}},
	}}
	got := marshalAndDecodeOne(t, a, &CodecContext{})
	mp, ok := got.Value.(MPReachNLRI)
	if !ok || mp.Family != FamilyIPv6Unicast || len(mp.NLRI) != 1 {
		t.Fatalf("got %#v", got.Value)
	}
}

func TestMPUnreachNLRIRoundTrip(t *testing.T) {
	prefix := netip.MustParsePrefix("2001:db8::/32")
	nlri := InetUnicast{Prefix: prefix, Safi: SAFI_UNICAST}
	a := Attr{Flags: FlagOptional, Type: AttrMPUnreachNLRI, Value: MPUnreachNLRI{
		Family: FamilyIPv6Unicast,
		NLRI:   []PathNLRI{{NLRI: nlri}},
	}}
	got := marshalAndDecodeOne(t, a, &CodecContext{})
	mp, ok := got.Value.(MPUnreachNLRI)
	if !ok || mp.Family != FamilyIPv6Unicast || len(mp.NLRI) != 1 {
		t.Fatalf("got %#v", got.Value)
	}
}

func TestOriginRejectsOutOfRangeValue(t *testing.T) {
	_, err := decodeOrigin(0, []byte{3}, nil)
	if err == nil {
		t.Fatal("expected error for ORIGIN value 3")
	}
}

func TestAggregatorASN4RoundTrip(t *testing.T) {
	a := Attr{Flags: FlagOptional | FlagTransitive, Type: AttrAggregator, Value: Aggregator{ASN: 65550, Address: [4]byte{10, 0, 0, 1}}}
	got := marshalAndDecodeOne(t, a, &CodecContext{ASN4: true})
	agg, ok := got.Value.(Aggregator)
	if !ok || agg.ASN != 65550 {
		t.Fatalf("got %#v", got.Value)
	}
}

func TestClusterListRoundTrip(t *testing.T) {
	a := Attr{Flags: FlagOptional, Type: AttrClusterList, Value: ClusterList{{1, 1, 1, 1}, {2, 2, 2, 2}}}
	got := marshalAndDecodeOne(t, a, &CodecContext{})
	cl, ok := got.Value.(ClusterList)
	if !ok || len(cl) != 2 {
		t.Fatalf("got %#v", got.Value)
	}
}

func TestAIGPRoundTrip(t *testing.T) {
	a := Attr{Flags: FlagOptional, Type: AttrAIGP, Value: AIGP{Metric: 123456}}
	got := marshalAndDecodeOne(t, a, &CodecContext{})
	aigp, ok := got.Value.(AIGP)
	if !ok || aigp.Metric != 123456 {
		t.Fatalf("got %#v", got.Value)
	}
}

func TestParseAttrsRejectsDuplicateAttribute(t *testing.T) {
	one, _ := MarshalAttr(Attr{Flags: FlagTransitive, Type: AttrOrigin, Value: Origin(OriginIGP)})
	_, _, err := ParseAttrs(append(one, one...), &CodecContext{})
	if err == nil {
		t.Fatal("expected duplicate-attribute error")
	}
}

func TestParseAttrsPreservesUnrecognizedOptionalAsRaw(t *testing.T) {
	encoded := []byte{FlagOptional, 250, 2, 0xAB, 0xCD}
	attrs, _, err := ParseAttrs(encoded, &CodecContext{})
	if err != nil {
		t.Fatalf("ParseAttrs: %v", err)
	}
	if len(attrs) != 1 {
		t.Fatalf("expected one attribute, got %d", len(attrs))
	}
	raw, ok := attrs[0].Value.(RawAttr)
	if !ok || len(raw.Bytes) != 2 {
		t.Fatalf("got %#v", attrs[0].Value)
	}
}

func TestParseAttrsRejectsUnrecognizedWellKnown(t *testing.T) {
	encoded := []byte{0, 250, 2, 0xAB, 0xCD} // no FlagOptional: well-known, unrecognized
	_, _, err := ParseAttrs(encoded, &CodecContext{})
	if err == nil {
		t.Fatal("expected unrecognized-well-known error")
	}
}

func TestParseAttrsDiscardsMalformedDiscardPolicyAttribute(t *testing.T) {
	// MULTI_EXIT_DISC carries PolicyDiscard; a malformed one is dropped,
	// not surfaced as an error, and does not flip TreatAsWithdraw.
	bad := []byte{FlagOptional, byte(AttrMultiExitDisc), 3, 1, 2, 3}
	attrs, treatAsWithdraw, err := ParseAttrs(bad, &CodecContext{})
	if err != nil {
		t.Fatalf("ParseAttrs: %v", err)
	}
	if len(attrs) != 0 {
		t.Fatalf("expected the malformed MED to be dropped, got %#v", attrs)
	}
	if treatAsWithdraw {
		t.Fatal("PolicyDiscard must not set TreatAsWithdraw")
	}
}

func TestParseAttrsTreatAsWithdrawOnMalformedOrigin(t *testing.T) {
	// ORIGIN carries PolicyTreatAsWithdraw; an out-of-range value is
	// dropped and reported via the bool rather than as an error.
	bad := []byte{FlagTransitive, byte(AttrOrigin), 1, 3}
	attrs, treatAsWithdraw, err := ParseAttrs(bad, &CodecContext{})
	if err != nil {
		t.Fatalf("ParseAttrs: %v", err)
	}
	if len(attrs) != 0 {
		t.Fatalf("expected the malformed ORIGIN to be dropped, got %#v", attrs)
	}
	if !treatAsWithdraw {
		t.Fatal("expected TreatAsWithdraw to be set")
	}
}
