package bgp

// MVPNRoute, RFC 6514 §4: this speaker treats MVPN NLRI opaquely
// (route-type + raw value) since it never originates multicast VPN
// routes itself, only relays them between route-reflector peers.
type MVPNRoute struct {
	RouteType byte
	Value     []byte
}

func (MVPNRoute) Family() Family   { return FamilyIPv4MVPN }
func (MVPNRoute) String() string   { return "mvpn" }
func (n MVPNRoute) Marshal() ([]byte, error) {
	return append([]byte{n.RouteType, byte(len(n.Value))}, n.Value...), nil
}

func decodeMVPNElement(f Family) nlriElementDecoder {
	return func(b []byte) (NLRI, int, error) {
		if len(b) < 2 {
			return nil, 0, Notify(ErrUpdate, SubInvalidNetworkField, nil, "truncated MVPN NLRI header")
		}
		length := int(b[1])
		if len(b) < 2+length {
			return nil, 0, Notify(ErrUpdate, SubInvalidNetworkField, nil, "truncated MVPN NLRI value")
		}
		return MVPNRoute{RouteType: b[0], Value: append([]byte{}, b[2:2+length]...)}, 2 + length, nil
	}
}

// MUPRoute, RFC 9548 (BGP as a Mobile User Plane SAFI): also kept
// opaque, keyed on architecture-type and route-type.
type MUPRoute struct {
	ArchType  byte
	RouteType byte
	Value     []byte
}

func (MUPRoute) Family() Family { return FamilyIPv4MUP }
func (MUPRoute) String() string { return "mup" }
func (n MUPRoute) Marshal() ([]byte, error) {
	out := []byte{n.ArchType, n.RouteType, byte(len(n.Value))}
	return append(out, n.Value...), nil
}

func decodeMUPElement(b []byte) (NLRI, int, error) {
	if len(b) < 3 {
		return nil, 0, Notify(ErrUpdate, SubInvalidNetworkField, nil, "truncated MUP NLRI header")
	}
	length := int(b[2])
	if len(b) < 3+length {
		return nil, 0, Notify(ErrUpdate, SubInvalidNetworkField, nil, "truncated MUP NLRI value")
	}
	return MUPRoute{ArchType: b[0], RouteType: b[1], Value: append([]byte{}, b[3:3+length]...)}, 3 + length, nil
}

// LSNLRI, RFC 7752 §3.2: a NLRI-type TLV followed by the protocol-ID,
// identifier, and a TLV-encoded descriptor body. Kept opaque at the
// top level: the embedded TLVs (node/link/prefix descriptors) aren't
// individually decoded since this speaker only relays them.
type LSNLRI struct {
	NLRIType uint16
	Value    []byte
}

func (LSNLRI) Family() Family { return FamilyLS }
func (LSNLRI) String() string { return "bgp-ls-nlri" }
func (n LSNLRI) Marshal() ([]byte, error) {
	out := []byte{byte(n.NLRIType >> 8), byte(n.NLRIType), byte(len(n.Value) >> 8), byte(len(n.Value))}
	return append(out, n.Value...), nil
}

func decodeLSElement(b []byte) (NLRI, int, error) {
	if len(b) < 4 {
		return nil, 0, Notify(ErrUpdate, SubInvalidNetworkField, nil, "truncated BGP-LS NLRI header")
	}
	nlriType := uint16(b[0])<<8 | uint16(b[1])
	length := int(b[2])<<8 | int(b[3])
	if len(b) < 4+length {
		return nil, 0, Notify(ErrUpdate, SubInvalidNetworkField, nil, "truncated BGP-LS NLRI value")
	}
	return LSNLRI{NLRIType: nlriType, Value: append([]byte{}, b[4:4+length]...)}, 4 + length, nil
}

func init() {
	registerNLRI(FamilyIPv4MVPN, decodeMVPNElement(FamilyIPv4MVPN))
	registerNLRI(FamilyIPv6MVPN, decodeMVPNElement(FamilyIPv6MVPN))
	registerNLRI(FamilyIPv4MUP, decodeMUPElement)
	registerNLRI(FamilyLS, decodeLSElement)
}
