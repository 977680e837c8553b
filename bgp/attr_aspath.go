package bgp

import "encoding/binary"

// AS_PATH segment types, RFC 4271 §4.3.
const (
	SegTypeSet      = 1
	SegTypeSequence = 2
)

// ASPathSegment is one AS_SET or AS_SEQUENCE segment.
type ASPathSegment struct {
	Type uint8
	ASNs []ASN
}

// ASPath is the decoded AS_PATH or AS4_PATH attribute. The codec always
// works in 4-byte ASNs internally; 2-byte wire encoding is applied only
// at Marshal time for sessions that haven't negotiated ASN4.
type ASPath struct {
	Segments []ASPathSegment
}

// Marshal encodes using 4-byte ASNs (AS4_PATH form, and also the form
// used once ASN4 is negotiated). Use MarshalLegacy for 2-byte peers.
func (p ASPath) Marshal() ([]byte, error) { return p.encode(true), nil }

// MarshalLegacy encodes using 2-byte ASNs with AS_TRANS substitution,
// RFC 6793 §4.1, for peers that have not negotiated ASN4.
func (p ASPath) MarshalLegacy() []byte { return p.encode(false) }

func (p ASPath) encode(asn4 bool) []byte {
	var out []byte
	width := 2
	if asn4 {
		width = 4
	}
	for _, seg := range p.Segments {
		out = append(out, seg.Type, byte(len(seg.ASNs)))
		for _, a := range seg.ASNs {
			b := make([]byte, width)
			if asn4 {
				binary.BigEndian.PutUint32(b, uint32(a))
			} else {
				binary.BigEndian.PutUint16(b, a.Encoded16())
			}
			out = append(out, b...)
		}
	}
	return out
}

func decodeASPathWidth(v []byte, width int) ([]ASPathSegment, error) {
	var segs []ASPathSegment
	for len(v) > 0 {
		if len(v) < 2 {
			return nil, NewAttrError(PolicyTreatAsWithdraw, ErrUpdate, SubMalformedASPath, "truncated AS_PATH segment header")
		}
		typ := v[0]
		count := int(v[1])
		v = v[2:]
		need := count * width
		if len(v) < need {
			return nil, NewAttrError(PolicyTreatAsWithdraw, ErrUpdate, SubMalformedASPath, "truncated AS_PATH segment body")
		}
		asns := make([]ASN, count)
		for i := 0; i < count; i++ {
			if width == 4 {
				asns[i] = ASN(binary.BigEndian.Uint32(v[i*4 : i*4+4]))
			} else {
				asns[i] = ASN(binary.BigEndian.Uint16(v[i*2 : i*2+2]))
			}
		}
		segs = append(segs, ASPathSegment{Type: typ, ASNs: asns})
		v = v[need:]
	}
	return segs, nil
}

func decodeASPath(flags byte, v []byte, ctx *CodecContext) (AttrValue, error) {
	width := 2
	if ctx != nil && ctx.ASN4 {
		width = 4
	}
	segs, err := decodeASPathWidth(v, width)
	if err != nil {
		return nil, err
	}
	return ASPath{Segments: segs}, nil
}

func decodeAS4Path(flags byte, v []byte, _ *CodecContext) (AttrValue, error) {
	segs, err := decodeASPathWidth(v, 4)
	if err != nil {
		// A malformed AS4_PATH is discarded on its own, so the merge is
		// skipped and AS_PATH is used as decoded (RFC 6793 §6).
		return nil, NewAttrError(PolicyDiscard, ErrUpdate, SubMalformedASPath, "malformed AS4_PATH: %v", err)
	}
	return ASPath{Segments: segs}, nil
}

// MergeAS4Path reconstructs the effective AS_PATH on a session that has
// not negotiated ASN4, per RFC 6793 §4.2.3: the AS4_PATH is overlaid
// onto the tail of the AS_TRANS-substituted AS_PATH, left-padded with
// whatever leading segments only the 2-byte AS_PATH carried.
func MergeAS4Path(asPath, as4Path ASPath) ASPath {
	if len(as4Path.Segments) == 0 {
		return asPath
	}
	asLen := asPathLength(asPath)
	as4Len := asPathLength(as4Path)
	if as4Len >= asLen {
		return as4Path
	}
	keep := asLen - as4Len
	merged := ASPath{}
	taken := 0
	for _, seg := range asPath.Segments {
		if taken >= keep {
			break
		}
		if seg.Type == SegTypeSet {
			merged.Segments = append(merged.Segments, seg)
			taken++
			continue
		}
		remaining := keep - taken
		if remaining >= len(seg.ASNs) {
			merged.Segments = append(merged.Segments, seg)
			taken += len(seg.ASNs)
		} else {
			merged.Segments = append(merged.Segments, ASPathSegment{Type: seg.Type, ASNs: append([]ASN{}, seg.ASNs[:remaining]...)})
			taken += remaining
		}
	}
	merged.Segments = append(merged.Segments, as4Path.Segments...)
	return merged
}

func asPathLength(p ASPath) int {
	n := 0
	for _, seg := range p.Segments {
		if seg.Type == SegTypeSet {
			n++
		} else {
			n += len(seg.ASNs)
		}
	}
	return n
}

func init() {
	registerAttr(AttrASPath, decodeASPath)
	registerAttr(AttrAS4Path, decodeAS4Path)
}
