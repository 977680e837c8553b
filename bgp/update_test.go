package bgp

import (
	"encoding/binary"
	"net/netip"
	"testing"
)

func TestMarshalParseUpdateRoundTrip(t *testing.T) {
	nlri := InetUnicast{Prefix: netip.MustParsePrefix("198.51.100.0/24"), Safi: SAFI_UNICAST}
	u := Update{
		Attrs: []Attr{
			{Flags: FlagTransitive, Type: AttrOrigin, Value: Origin(OriginIGP)},
			{Flags: FlagTransitive, Type: AttrASPath, Value: ASPath{Segments: []ASPathSegment{{Type: SegTypeSequence, ASNs: []ASN{65001, 65002}}}}},
			{Flags: FlagTransitive, Type: AttrNextHop, Value: NextHop([4]byte{10, 0, 0, 1})},
			{Flags: FlagOptional | FlagTransitive, Type: AttrCommunities, Value: Communities{0x10000001}},
		},
		NLRI: []NLRI{nlri},
	}

	encoded, err := MarshalUpdate(u, false)
	if err != nil {
		t.Fatalf("MarshalUpdate: %v", err)
	}

	got, err := ParseUpdate(encoded, &CodecContext{ASN4: true})
	if err != nil {
		t.Fatalf("ParseUpdate: %v", err)
	}
	if len(got.NLRI) != 1 || got.NLRI[0].String() != nlri.String() {
		t.Fatalf("NLRI round-trip mismatch: got %v", got.NLRI)
	}
	if _, ok := FindAttr(got.Attrs, AttrOrigin); !ok {
		t.Error("expected ORIGIN attribute to survive round-trip")
	}
	as, ok := FindAttr(got.Attrs, AttrASPath)
	if !ok {
		t.Fatal("expected AS_PATH attribute to survive round-trip")
	}
	path, ok := as.Value.(ASPath)
	if !ok || len(path.Segments) != 1 || len(path.Segments[0].ASNs) != 2 {
		t.Errorf("AS_PATH mismatch: got %#v", as.Value)
	}
}

func TestUpdateReachableUnreachableLegacyIPv4(t *testing.T) {
	nlri := InetUnicast{Prefix: netip.MustParsePrefix("203.0.113.0/24"), Safi: SAFI_UNICAST}
	u := Update{NLRI: []NLRI{nlri}}
	reach := u.Reachable()
	items, ok := reach[FamilyIPv4Unicast]
	if !ok || len(items) != 1 {
		t.Fatalf("expected one reachable IPv4 unicast item, got %v", reach)
	}

	w := Update{WithdrawnRoutes: []NLRI{nlri}}
	unreach := w.Unreachable()
	items, ok = unreach[FamilyIPv4Unicast]
	if !ok || len(items) != 1 {
		t.Fatalf("expected one unreachable IPv4 unicast item, got %v", unreach)
	}
}

func TestUpdateIsEndOfRIBIPv4(t *testing.T) {
	if !(Update{}).IsEndOfRIB(FamilyIPv4Unicast) {
		t.Error("an entirely empty UPDATE must be the IPv4 unicast End-of-RIB marker")
	}
}

func TestParseUpdateRejectsNLRIWithoutNextHop(t *testing.T) {
	nlri := InetUnicast{Prefix: netip.MustParsePrefix("198.51.100.0/24"), Safi: SAFI_UNICAST}
	u := Update{
		Attrs: []Attr{
			{Flags: FlagTransitive, Type: AttrOrigin, Value: Origin(OriginIGP)},
			{Flags: FlagTransitive, Type: AttrASPath, Value: ASPath{}},
		},
		NLRI: []NLRI{nlri},
	}
	encoded, err := MarshalUpdate(u, false)
	if err != nil {
		t.Fatalf("MarshalUpdate: %v", err)
	}
	_, err = ParseUpdate(encoded, &CodecContext{})
	if err == nil {
		t.Fatal("expected a missing-well-known-attribute error")
	}
}

func TestMergeAS4PathDocumentedExample(t *testing.T) {
	asPath := ASPath{Segments: []ASPathSegment{{Type: SegTypeSequence, ASNs: []ASN{65001, ASTrans, ASTrans, 65002}}}}
	as4Path := ASPath{Segments: []ASPathSegment{{Type: SegTypeSequence, ASNs: []ASN{65001, 70000, 80000, 65002}}}}
	got := MergeAS4Path(asPath, as4Path)
	want := []ASN{65001, 70000, 80000, 65002}
	if len(got.Segments) != 1 || len(got.Segments[0].ASNs) != len(want) {
		t.Fatalf("got %#v", got)
	}
	for i, asn := range want {
		if got.Segments[0].ASNs[i] != asn {
			t.Fatalf("ASN %d: got %d, want %d", i, got.Segments[0].ASNs[i], asn)
		}
	}
}

// TestParseUpdateMergesAS4PathOnNonASN4Session builds an UPDATE the way
// a non-ASN4 peer would send one: AS_PATH carries AS_TRANS in place of
// the two 4-byte ASNs, and the real values travel in AS4_PATH. A
// non-ASN4 receiver must still see the reconstructed AS_PATH, per RFC
// 6793 §4.2.3.
func TestParseUpdateMergesAS4PathOnNonASN4Session(t *testing.T) {
	legacy := ASPath{Segments: []ASPathSegment{{Type: SegTypeSequence, ASNs: []ASN{65001, ASTrans, ASTrans, 65002}}}}.MarshalLegacy()
	asPathAttr := append([]byte{FlagTransitive, byte(AttrASPath), byte(len(legacy))}, legacy...)

	as4 := Attr{Flags: FlagOptional | FlagTransitive, Type: AttrAS4Path, Value: ASPath{
		Segments: []ASPathSegment{{Type: SegTypeSequence, ASNs: []ASN{65001, 70000, 80000, 65002}}},
	}}
	as4Bytes, err := MarshalAttr(as4)
	if err != nil {
		t.Fatalf("MarshalAttr(AS4_PATH): %v", err)
	}

	originAttr, err := MarshalAttr(Attr{Flags: FlagTransitive, Type: AttrOrigin, Value: Origin(OriginIGP)})
	if err != nil {
		t.Fatalf("MarshalAttr(ORIGIN): %v", err)
	}
	nhAttr, err := MarshalAttr(Attr{Flags: FlagTransitive, Type: AttrNextHop, Value: NextHop([4]byte{10, 0, 0, 1})})
	if err != nil {
		t.Fatalf("MarshalAttr(NEXT_HOP): %v", err)
	}

	var attrBytes []byte
	attrBytes = append(attrBytes, originAttr...)
	attrBytes = append(attrBytes, asPathAttr...)
	attrBytes = append(attrBytes, nhAttr...)
	attrBytes = append(attrBytes, as4Bytes...)

	nlri := InetUnicast{Prefix: netip.MustParsePrefix("198.51.100.0/24"), Safi: SAFI_UNICAST}
	nlriBytes, err := nlri.Marshal()
	if err != nil {
		t.Fatalf("Marshal NLRI: %v", err)
	}

	body := []byte{0, 0} // no withdrawn routes
	lenAttrs := make([]byte, 2)
	binary.BigEndian.PutUint16(lenAttrs, uint16(len(attrBytes)))
	body = append(body, lenAttrs...)
	body = append(body, attrBytes...)
	body = append(body, nlriBytes...)

	got, err := ParseUpdate(body, &CodecContext{ASN4: false})
	if err != nil {
		t.Fatalf("ParseUpdate: %v", err)
	}

	if _, ok := FindAttr(got.Attrs, AttrAS4Path); ok {
		t.Error("expected AS4_PATH to be dropped once merged")
	}
	as, ok := FindAttr(got.Attrs, AttrASPath)
	if !ok {
		t.Fatal("expected AS_PATH to survive")
	}
	path, ok := as.Value.(ASPath)
	if !ok || len(path.Segments) != 1 {
		t.Fatalf("got %#v", as.Value)
	}
	want := []ASN{65001, 70000, 80000, 65002}
	if len(path.Segments[0].ASNs) != len(want) {
		t.Fatalf("got %#v, want %v", path.Segments[0].ASNs, want)
	}
	for i, asn := range want {
		if path.Segments[0].ASNs[i] != asn {
			t.Fatalf("ASN %d: got %d, want %d", i, path.Segments[0].ASNs[i], asn)
		}
	}
}
