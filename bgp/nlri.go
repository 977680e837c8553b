package bgp

import "net/netip"

// NLRI is implemented by every family's reachability-information type.
// The tagged-sum-via-interface pattern replaces inheritance: callers
// type-switch on the concrete NLRI rather than walking a class tree.
type NLRI interface {
	// Family identifies which AFI/SAFI this NLRI belongs to.
	Family() Family
	// Marshal returns the family-specific wire encoding (no path-id).
	Marshal() ([]byte, error)
	// String returns a canonical, human-readable form.
	String() string
}

// PathNLRI wraps an NLRI with its ADD-PATH path identifier, RFC 7911 §3.
type PathNLRI struct {
	PathID uint32
	NLRI   NLRI
}

// InetUnicast is the IPv4/IPv6 unicast or multicast NLRI: a single
// prefix, canonically truncated to its prefix length per spec's NLRI
// canonical-encoding invariant (trailing host bits beyond the prefix
// length are not transmitted).
type InetUnicast struct {
	Prefix netip.Prefix
	Safi   SAFI
}

func (n InetUnicast) Family() Family {
	if n.Prefix.Addr().Is4() {
		return Family{AFI: AFI_IPV4, SAFI: n.Safi}
	}
	return Family{AFI: AFI_IPV6, SAFI: n.Safi}
}

func (n InetUnicast) String() string { return n.Prefix.String() }

func (n InetUnicast) Marshal() ([]byte, error) { return encodePrefix(n.Prefix), nil }

// encodePrefix implements the canonical truncated-prefix wire form
// shared by every family that embeds a plain prefix: one length byte
// in bits, followed by ceil(length/8) bytes of address, left-aligned
// and zero-padded in the final byte.
func encodePrefix(p netip.Prefix) []byte {
	bits := p.Bits()
	addr := p.Addr().AsSlice()
	nbytes := (bits + 7) / 8
	out := make([]byte, 1+nbytes)
	out[0] = byte(bits)
	copy(out[1:], addr[:nbytes])
	return out
}

// decodePrefix is the inverse of encodePrefix; is6 selects the address
// family used to interpret the byte string.
func decodePrefix(b []byte, is6 bool) (netip.Prefix, int, error) {
	if len(b) < 1 {
		return netip.Prefix{}, 0, Notify(ErrUpdate, SubInvalidNetworkField, nil, "truncated NLRI length byte")
	}
	bits := int(b[0])
	maxBits := 32
	addrLen := 4
	if is6 {
		maxBits = 128
		addrLen = 16
	}
	if bits > maxBits {
		return netip.Prefix{}, 0, Notify(ErrUpdate, SubInvalidNetworkField, nil, "prefix length %d exceeds %d", bits, maxBits)
	}
	nbytes := (bits + 7) / 8
	if len(b) < 1+nbytes {
		return netip.Prefix{}, 0, Notify(ErrUpdate, SubInvalidNetworkField, nil, "truncated NLRI prefix bytes")
	}
	addr := make([]byte, addrLen)
	copy(addr, b[1:1+nbytes])
	var a netip.Addr
	if is6 {
		a = netip.AddrFrom16([16]byte(addr))
	} else {
		a = netip.AddrFrom4([4]byte(addr))
	}
	return netip.PrefixFrom(a, bits), 1 + nbytes, nil
}

// ParseInetUnicastNLRI decodes a sequence of plain IPv4/IPv6 prefixes,
// used for the base UPDATE message's own Withdrawn Routes / NLRI
// fields, which are always IPv4 unicast and carry no AFI/SAFI marker.
func ParseInetUnicastNLRI(b []byte, afi AFI, safi SAFI) ([]NLRI, error) {
	is6 := afi == AFI_IPV6
	var out []NLRI
	for len(b) > 0 {
		p, n, err := decodePrefix(b, is6)
		if err != nil {
			return nil, err
		}
		out = append(out, InetUnicast{Prefix: p, Safi: safi})
		b = b[n:]
	}
	return out, nil
}

func marshalPathID(id uint32) []byte {
	return []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
}

func decodeInetElement(is6 bool, safi SAFI) nlriElementDecoder {
	return func(b []byte) (NLRI, int, error) {
		p, n, err := decodePrefix(b, is6)
		if err != nil {
			return nil, 0, err
		}
		return InetUnicast{Prefix: p, Safi: safi}, n, nil
	}
}

func init() {
	registerNLRI(FamilyIPv4Unicast, decodeInetElement(false, SAFI_UNICAST))
	registerNLRI(FamilyIPv4Multicast, decodeInetElement(false, SAFI_MULTICAST))
	registerNLRI(FamilyIPv6Unicast, decodeInetElement(true, SAFI_UNICAST))
	registerNLRI(FamilyIPv6Multicast, decodeInetElement(true, SAFI_MULTICAST))
}
