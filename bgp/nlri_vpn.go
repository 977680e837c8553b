package bgp

import "net/netip"

// RouteDistinguisher is the 8-byte VPN route distinguisher, RFC 4364 §4.
type RouteDistinguisher [8]byte

// MPLSVPNUnicast is the NLRI for MPLS/VPN unicast SAFIs, RFC 4364 §4.3:
// a label stack, an 8-byte RD, then a plain prefix.
type MPLSVPNUnicast struct {
	Labels []Label
	RD     RouteDistinguisher
	Prefix netip.Prefix
}

func (n MPLSVPNUnicast) Family() Family {
	if n.Prefix.Addr().Is4() {
		return Family{AFI: AFI_IPV4, SAFI: SAFI_MPLS_VPN}
	}
	return Family{AFI: AFI_IPV6, SAFI: SAFI_MPLS_VPN}
}

func (n MPLSVPNUnicast) String() string { return n.Prefix.String() }

func (n MPLSVPNUnicast) Marshal() ([]byte, error) {
	addr := n.Prefix.Addr().AsSlice()
	nbytes := (n.Prefix.Bits() + 7) / 8
	bits := len(n.Labels)*24 + 64 + n.Prefix.Bits()
	out := []byte{byte(bits)}
	for i, l := range n.Labels {
		v := l.Value << 4
		if i == len(n.Labels)-1 {
			v |= 1
		}
		out = append(out, byte(v>>16), byte(v>>8), byte(v))
	}
	out = append(out, n.RD[:]...)
	out = append(out, addr[:nbytes]...)
	return out, nil
}

func decodeVPNElement(is6 bool) nlriElementDecoder {
	return func(b []byte) (NLRI, int, error) {
		if len(b) < 1 {
			return nil, 0, Notify(ErrUpdate, SubInvalidNetworkField, nil, "truncated VPN-unicast length byte")
		}
		totalBits := int(b[0])
		pos := 1
		var labels []Label
		bottom := false
		for !bottom {
			if len(b) < pos+3 {
				return nil, 0, Notify(ErrUpdate, SubInvalidNetworkField, nil, "truncated label stack entry")
			}
			v := uint32(b[pos])<<16 | uint32(b[pos+1])<<8 | uint32(b[pos+2])
			bottom = v&1 != 0
			labels = append(labels, Label{Value: v >> 4, Bottom: bottom})
			pos += 3
			totalBits -= 24
		}
		if len(b) < pos+8 {
			return nil, 0, Notify(ErrUpdate, SubInvalidNetworkField, nil, "truncated route distinguisher")
		}
		var rd RouteDistinguisher
		copy(rd[:], b[pos:pos+8])
		pos += 8
		totalBits -= 64
		if totalBits < 0 {
			return nil, 0, Notify(ErrUpdate, SubInvalidNetworkField, nil, "VPN-unicast prefix length underflow")
		}
		maxBits := 32
		addrLen := 4
		if is6 {
			maxBits = 128
			addrLen = 16
		}
		if totalBits > maxBits {
			return nil, 0, Notify(ErrUpdate, SubInvalidNetworkField, nil, "prefix length %d exceeds %d", totalBits, maxBits)
		}
		nbytes := (totalBits + 7) / 8
		if len(b) < pos+nbytes {
			return nil, 0, Notify(ErrUpdate, SubInvalidNetworkField, nil, "truncated VPN-unicast prefix bytes")
		}
		addr := make([]byte, addrLen)
		copy(addr, b[pos:pos+nbytes])
		var a netip.Addr
		if is6 {
			a = netip.AddrFrom16([16]byte(addr))
		} else {
			a = netip.AddrFrom4([4]byte(addr))
		}
		return MPLSVPNUnicast{Labels: labels, RD: rd, Prefix: netip.PrefixFrom(a, totalBits)}, pos + nbytes, nil
	}
}

func init() {
	registerNLRI(FamilyIPv4MPLSVPN, decodeVPNElement(false))
	registerNLRI(FamilyIPv6MPLSVPN, decodeVPNElement(true))
}
