package bgp

import "encoding/binary"

// Well-known community values, RFC 1997 §4.
const (
	CommunityNoExport        uint32 = 0xFFFFFF01
	CommunityNoAdvertise     uint32 = 0xFFFFFF02
	CommunityNoExportSubconf uint32 = 0xFFFFFF03
)

// Communities is the COMMUNITIES attribute, RFC 1997.
type Communities []uint32

func (c Communities) Marshal() ([]byte, error) {
	out := make([]byte, 4*len(c))
	for i, v := range c {
		binary.BigEndian.PutUint32(out[i*4:i*4+4], v)
	}
	return out, nil
}

func decodeCommunities(flags byte, v []byte, _ *CodecContext) (AttrValue, error) {
	if len(v)%4 != 0 {
		return nil, NewAttrError(PolicyDiscard, ErrUpdate, SubAttrLengthError, "COMMUNITIES length %d", len(v))
	}
	c := make(Communities, len(v)/4)
	for i := range c {
		c[i] = binary.BigEndian.Uint32(v[i*4 : i*4+4])
	}
	return c, nil
}

// ExtCommunity is one 8-byte extended community, RFC 4360. Type/subtype
// dispatch is left to callers; the codec only preserves the 8 raw bytes
// alongside the parsed (type, subtype) for convenience.
type ExtCommunity struct {
	Type    byte
	Subtype byte
	Value   [6]byte
}

type ExtCommunities []ExtCommunity

func (e ExtCommunities) Marshal() ([]byte, error) {
	out := make([]byte, 8*len(e))
	for i, c := range e {
		out[i*8] = c.Type
		out[i*8+1] = c.Subtype
		copy(out[i*8+2:i*8+8], c.Value[:])
	}
	return out, nil
}

func decodeExtCommunities(flags byte, v []byte, _ *CodecContext) (AttrValue, error) {
	if len(v)%8 != 0 {
		return nil, NewAttrError(PolicyDiscard, ErrUpdate, SubAttrLengthError, "EXTENDED_COMMUNITIES length %d", len(v))
	}
	e := make(ExtCommunities, len(v)/8)
	for i := range e {
		off := i * 8
		e[i] = ExtCommunity{Type: v[off], Subtype: v[off+1]}
		copy(e[i].Value[:], v[off+2:off+8])
	}
	return e, nil
}

// Known extended-community (type, subtype) pairs this speaker gives
// semantic names to; RFC 4360, RFC 5668, RFC 7432.
const (
	ExtCommTypeTransitiveTwoOctetAS  = 0x00
	ExtCommTypeTransitiveIPv4       = 0x01
	ExtCommTypeTransitiveFourOctetAS = 0x02
	ExtCommTypeTransitiveOpaque     = 0x03
	ExtCommSubtypeRouteTarget = 0x02
	ExtCommSubtypeRouteOrigin = 0x03
)

// RouteTarget decodes a two-octet-AS route-target extended community,
// RFC 4360 §4. Callers must check Type/Subtype before calling.
func (e ExtCommunity) RouteTarget() (asn uint16, localAdmin uint32) {
	asn = binary.BigEndian.Uint16(e.Value[0:2])
	localAdmin = uint32(e.Value[2])<<24 | uint32(e.Value[3])<<16 | uint32(e.Value[4])<<8 | uint32(e.Value[5])
	return
}

// LargeCommunities is the LARGE_COMMUNITY attribute, RFC 8092.
type LargeCommunity struct {
	GlobalAdmin uint32
	LocalData1  uint32
	LocalData2  uint32
}

type LargeCommunities []LargeCommunity

func (l LargeCommunities) Marshal() ([]byte, error) {
	out := make([]byte, 12*len(l))
	for i, c := range l {
		off := i * 12
		binary.BigEndian.PutUint32(out[off:off+4], c.GlobalAdmin)
		binary.BigEndian.PutUint32(out[off+4:off+8], c.LocalData1)
		binary.BigEndian.PutUint32(out[off+8:off+12], c.LocalData2)
	}
	return out, nil
}

func decodeLargeCommunities(flags byte, v []byte, _ *CodecContext) (AttrValue, error) {
	if len(v)%12 != 0 {
		return nil, NewAttrError(PolicyDiscard, ErrUpdate, SubAttrLengthError, "LARGE_COMMUNITY length %d", len(v))
	}
	l := make(LargeCommunities, len(v)/12)
	for i := range l {
		off := i * 12
		l[i] = LargeCommunity{
			GlobalAdmin: binary.BigEndian.Uint32(v[off : off+4]),
			LocalData1:  binary.BigEndian.Uint32(v[off+4 : off+8]),
			LocalData2:  binary.BigEndian.Uint32(v[off+8 : off+12]),
		}
	}
	return l, nil
}

func init() {
	registerAttr(AttrCommunities, decodeCommunities)
	registerAttr(AttrExtCommunities, decodeExtCommunities)
	registerAttr(AttrLargeCommunities, decodeLargeCommunities)
}
