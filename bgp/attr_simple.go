package bgp

import "encoding/binary"

// AttrOrigin, RFC 4271 §5.1.1.
const (
	OriginIGP        = 0
	OriginEGP        = 1
	OriginIncomplete = 2
)

type Origin byte

func (o Origin) Marshal() ([]byte, error) { return []byte{byte(o)}, nil }

func decodeOrigin(flags byte, v []byte, _ *CodecContext) (AttrValue, error) {
	if len(v) != 1 {
		return nil, NewAttrError(PolicyTreatAsWithdraw, ErrUpdate, SubAttrLengthError, "ORIGIN length %d", len(v))
	}
	if v[0] > OriginIncomplete {
		return nil, NewAttrError(PolicyTreatAsWithdraw, ErrUpdate, SubInvalidOrigin, "invalid ORIGIN value %d", v[0])
	}
	return Origin(v[0]), nil
}

// NextHop, RFC 4271 §5.1.3, IPv4 form (the base UPDATE's implicit
// next-hop; MP_REACH_NLRI carries next-hops for other families).
type NextHop [4]byte

func (n NextHop) Marshal() ([]byte, error) { return n[:], nil }

func decodeNextHop(flags byte, v []byte, _ *CodecContext) (AttrValue, error) {
	if len(v) != 4 {
		return nil, NewAttrError(PolicyTreatAsWithdraw, ErrUpdate, SubInvalidNextHop, "NEXT_HOP length %d", len(v))
	}
	var n NextHop
	copy(n[:], v)
	return n, nil
}

// MED, RFC 4271 §5.1.4.
type MED uint32

func (m MED) Marshal() ([]byte, error) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(m))
	return b, nil
}

func decodeMED(flags byte, v []byte, _ *CodecContext) (AttrValue, error) {
	if len(v) != 4 {
		return nil, NewAttrError(PolicyDiscard, ErrUpdate, SubAttrLengthError, "MULTI_EXIT_DISC length %d", len(v))
	}
	return MED(binary.BigEndian.Uint32(v)), nil
}

// LocalPref, RFC 4271 §5.1.5.
type LocalPref uint32

func (l LocalPref) Marshal() ([]byte, error) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(l))
	return b, nil
}

func decodeLocalPref(flags byte, v []byte, _ *CodecContext) (AttrValue, error) {
	if len(v) != 4 {
		return nil, NewAttrError(PolicyDiscard, ErrUpdate, SubAttrLengthError, "LOCAL_PREF length %d", len(v))
	}
	return LocalPref(binary.BigEndian.Uint32(v)), nil
}

// AtomicAggregate, RFC 4271 §5.1.6: a zero-length marker attribute.
type AtomicAggregate struct{}

func (AtomicAggregate) Marshal() ([]byte, error) { return nil, nil }

func decodeAtomicAggregate(flags byte, v []byte, _ *CodecContext) (AttrValue, error) {
	if len(v) != 0 {
		return nil, NewAttrError(PolicySessionReset, ErrUpdate, SubAttrLengthError, "ATOMIC_AGGREGATE must be empty")
	}
	return AtomicAggregate{}, nil
}

// Aggregator, RFC 4271 §5.1.7. ASN is 2 or 4 bytes depending on the
// session's ASN4 negotiation.
type Aggregator struct {
	ASN     ASN
	Address [4]byte
}

func (a Aggregator) Marshal() ([]byte, error) { return marshalAggregator(a, true) }

func marshalAggregator(a Aggregator, asn4 bool) ([]byte, error) {
	var out []byte
	if asn4 {
		out = make([]byte, 4)
		binary.BigEndian.PutUint32(out, uint32(a.ASN))
	} else {
		out = make([]byte, 2)
		binary.BigEndian.PutUint16(out, a.ASN.Encoded16())
	}
	return append(out, a.Address[:]...), nil
}

func decodeAggregator(flags byte, v []byte, ctx *CodecContext) (AttrValue, error) {
	asn4 := ctx != nil && ctx.ASN4
	want := 6
	if asn4 {
		want = 8
	}
	if len(v) != want {
		return nil, NewAttrError(PolicyDiscard, ErrUpdate, SubAttrLengthError, "AGGREGATOR length %d", len(v))
	}
	a := Aggregator{}
	if asn4 {
		a.ASN = ASN(binary.BigEndian.Uint32(v[0:4]))
		copy(a.Address[:], v[4:8])
	} else {
		a.ASN = ASN(binary.BigEndian.Uint16(v[0:2]))
		copy(a.Address[:], v[2:6])
	}
	return a, nil
}

// AS4Aggregator mirrors Aggregator but always carries the full 4-byte
// ASN (RFC 6793 §3); used on sessions that have not negotiated ASN4.
type AS4Aggregator struct {
	ASN     ASN
	Address [4]byte
}

func (a AS4Aggregator) Marshal() ([]byte, error) {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, uint32(a.ASN))
	return append(out, a.Address[:]...), nil
}

func decodeAS4Aggregator(flags byte, v []byte, _ *CodecContext) (AttrValue, error) {
	if len(v) != 8 {
		return nil, NewAttrError(PolicyDiscard, ErrUpdate, SubAttrLengthError, "AS4_AGGREGATOR length %d", len(v))
	}
	return AS4Aggregator{ASN: ASN(binary.BigEndian.Uint32(v[0:4])), Address: [4]byte(v[4:8])}, nil
}

// OriginatorID, RFC 4456 §8.
type OriginatorID [4]byte

func (o OriginatorID) Marshal() ([]byte, error) { return o[:], nil }

func decodeOriginatorID(flags byte, v []byte, _ *CodecContext) (AttrValue, error) {
	if len(v) != 4 {
		return nil, NewAttrError(PolicyDiscard, ErrUpdate, SubAttrLengthError, "ORIGINATOR_ID length %d", len(v))
	}
	var o OriginatorID
	copy(o[:], v)
	return o, nil
}

// ClusterList, RFC 4456 §8.
type ClusterList [][4]byte

func (c ClusterList) Marshal() ([]byte, error) {
	out := make([]byte, 0, 4*len(c))
	for _, id := range c {
		out = append(out, id[:]...)
	}
	return out, nil
}

func decodeClusterList(flags byte, v []byte, _ *CodecContext) (AttrValue, error) {
	if len(v)%4 != 0 {
		return nil, NewAttrError(PolicyDiscard, ErrUpdate, SubAttrLengthError, "CLUSTER_LIST length %d", len(v))
	}
	c := make(ClusterList, 0, len(v)/4)
	for i := 0; i < len(v); i += 4 {
		var id [4]byte
		copy(id[:], v[i:i+4])
		c = append(c, id)
	}
	return c, nil
}

// AIGP, RFC 7311: a TLV container; this speaker only implements the
// single defined TLV type, the accumulated IGP metric.
type AIGP struct {
	Metric uint64
}

func (a AIGP) Marshal() ([]byte, error) {
	out := make([]byte, 11)
	out[0] = 1 // AIGP TLV type
	binary.BigEndian.PutUint16(out[1:3], 11)
	binary.BigEndian.PutUint64(out[3:11], a.Metric)
	return out, nil
}

func decodeAIGP(flags byte, v []byte, _ *CodecContext) (AttrValue, error) {
	if len(v) < 3 {
		return nil, NewAttrError(PolicyDiscard, ErrUpdate, SubAttrLengthError, "AIGP too short")
	}
	tlvLen := int(binary.BigEndian.Uint16(v[1:3]))
	if tlvLen != 11 || len(v) < 11 {
		return nil, NewAttrError(PolicyDiscard, ErrUpdate, SubAttrLengthError, "unsupported AIGP TLV")
	}
	return AIGP{Metric: binary.BigEndian.Uint64(v[3:11])}, nil
}

func init() {
	registerAttr(AttrOrigin, decodeOrigin)
	registerAttr(AttrNextHop, decodeNextHop)
	registerAttr(AttrMultiExitDisc, decodeMED)
	registerAttr(AttrLocalPref, decodeLocalPref)
	registerAttr(AttrAtomicAggregate, decodeAtomicAggregate)
	registerAttr(AttrAggregator, decodeAggregator)
	registerAttr(AttrAS4Aggregator, decodeAS4Aggregator)
	registerAttr(AttrOriginatorID, decodeOriginatorID)
	registerAttr(AttrClusterList, decodeClusterList)
	registerAttr(AttrAIGP, decodeAIGP)
}
