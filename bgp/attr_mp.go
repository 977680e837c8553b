package bgp

import "encoding/binary"

// nlriElementDecoder decodes exactly one self-delimiting NLRI element
// from the front of b and reports how many bytes it consumed.
type nlriElementDecoder func(b []byte) (NLRI, int, error)

// nlriDecoders is the family-keyed NLRI registry; each nlri_*.go file
// registers its family(ies) here so MP_REACH/MP_UNREACH and the base
// UPDATE NLRI field can dispatch without a type switch on AFI/SAFI.
var nlriDecoders = map[Family]nlriElementDecoder{}

func registerNLRI(f Family, d nlriElementDecoder) { nlriDecoders[f] = d }

// DecodeNLRI dispatches to the family's registered element decoder,
// repeatedly decoding elements (each optionally preceded by a 4-byte
// ADD-PATH path-id) until b is exhausted.
func DecodeNLRI(f Family, b []byte, addPath bool) ([]PathNLRI, error) {
	dec, ok := nlriDecoders[f]
	if !ok {
		return nil, Notify(ErrUpdate, SubInvalidNetworkField, nil, "no NLRI decoder for family %s", f)
	}
	var out []PathNLRI
	for len(b) > 0 {
		var pathID uint32
		if addPath {
			if len(b) < 4 {
				return nil, Notify(ErrUpdate, SubInvalidNetworkField, nil, "truncated ADD-PATH path identifier")
			}
			pathID = binary.BigEndian.Uint32(b[0:4])
			b = b[4:]
		}
		n, consumed, err := dec(b)
		if err != nil {
			return nil, err
		}
		out = append(out, PathNLRI{PathID: pathID, NLRI: n})
		b = b[consumed:]
	}
	return out, nil
}

// MPReachNLRI, RFC 4760 §3.
type MPReachNLRI struct {
	Family  Family
	NextHop []byte
	NLRI    []PathNLRI
}

func (m MPReachNLRI) Marshal() ([]byte, error) {
	var body []byte
	afisafi := make([]byte, 3)
	binary.BigEndian.PutUint16(afisafi[0:2], uint16(m.Family.AFI))
	afisafi[2] = byte(m.Family.SAFI)
	body = append(body, afisafi...)
	body = append(body, byte(len(m.NextHop)))
	body = append(body, m.NextHop...)
	body = append(body, 0) // Reserved (SNPA count)
	for _, p := range m.NLRI {
		nb, err := p.NLRI.Marshal()
		if err != nil {
			return nil, err
		}
		if p.PathID != 0 {
			body = append(body, marshalPathID(p.PathID)...)
		}
		body = append(body, nb...)
	}
	return body, nil
}

func decodeMPReach(flags byte, v []byte, ctx *CodecContext) (AttrValue, error) {
	if len(v) < 5 {
		return nil, NewAttrError(PolicyTreatAsWithdraw, ErrUpdate, SubOptionalAttrError, "MP_REACH_NLRI too short")
	}
	f := Family{AFI: AFI(binary.BigEndian.Uint16(v[0:2])), SAFI: SAFI(v[2])}
	nhLen := int(v[3])
	if len(v) < 4+nhLen+1 {
		return nil, NewAttrError(PolicyTreatAsWithdraw, ErrUpdate, SubOptionalAttrError, "MP_REACH_NLRI next-hop overruns")
	}
	nh := append([]byte{}, v[4:4+nhLen]...)
	rest := v[4+nhLen+1:] // skip Reserved/SNPA byte
	addPath := ctx.addPathReceive(f)
	nlri, err := DecodeNLRI(f, rest, addPath)
	if err != nil {
		return nil, err
	}
	return MPReachNLRI{Family: f, NextHop: nh, NLRI: nlri}, nil
}

// MPUnreachNLRI, RFC 4760 §4.
type MPUnreachNLRI struct {
	Family Family
	NLRI   []PathNLRI
}

func (m MPUnreachNLRI) Marshal() ([]byte, error) {
	body := make([]byte, 3)
	binary.BigEndian.PutUint16(body[0:2], uint16(m.Family.AFI))
	body[2] = byte(m.Family.SAFI)
	for _, p := range m.NLRI {
		nb, err := p.NLRI.Marshal()
		if err != nil {
			return nil, err
		}
		if p.PathID != 0 {
			body = append(body, marshalPathID(p.PathID)...)
		}
		body = append(body, nb...)
	}
	return body, nil
}

func decodeMPUnreach(flags byte, v []byte, ctx *CodecContext) (AttrValue, error) {
	if len(v) < 3 {
		return nil, NewAttrError(PolicyTreatAsWithdraw, ErrUpdate, SubOptionalAttrError, "MP_UNREACH_NLRI too short")
	}
	f := Family{AFI: AFI(binary.BigEndian.Uint16(v[0:2])), SAFI: SAFI(v[2])}
	addPath := ctx.addPathReceive(f)
	nlri, err := DecodeNLRI(f, v[3:], addPath)
	if err != nil {
		return nil, err
	}
	return MPUnreachNLRI{Family: f, NLRI: nlri}, nil
}

func init() {
	registerAttr(AttrMPReachNLRI, decodeMPReach)
	registerAttr(AttrMPUnreachNLRI, decodeMPUnreach)
}
