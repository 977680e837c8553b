package bgp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Attribute flag bits, RFC 4271 §4.3.
const (
	FlagOptional       = 0x80
	FlagTransitive     = 0x40
	FlagPartial        = 0x20
	FlagExtendedLength = 0x10
)

// AttrType is a path attribute type code.
type AttrType uint8

const (
	AttrOrigin           AttrType = 1
	AttrASPath           AttrType = 2
	AttrNextHop          AttrType = 3
	AttrMultiExitDisc    AttrType = 4
	AttrLocalPref        AttrType = 5
	AttrAtomicAggregate  AttrType = 6
	AttrAggregator       AttrType = 7
	AttrCommunities      AttrType = 8
	AttrOriginatorID     AttrType = 9
	AttrClusterList      AttrType = 10
	AttrMPReachNLRI      AttrType = 14
	AttrMPUnreachNLRI    AttrType = 15
	AttrExtCommunities   AttrType = 16
	AttrAS4Path          AttrType = 17
	AttrAS4Aggregator    AttrType = 18
	AttrPMSITunnel       AttrType = 22
	AttrAIGP             AttrType = 26
	AttrLinkState        AttrType = 29
	AttrLargeCommunities AttrType = 32
	AttrBGPPrefixSID     AttrType = 40
)

// mandatoryFlags catalogues, per spec §3, the Optional/Transitive flag
// mask each listed attribute type (well-known and optional alike) must
// be carried with (Extended-length and Partial are free on every type).
// Types absent here are not flag-checked.
var mandatoryFlags = map[AttrType]byte{
	AttrOrigin:           FlagTransitive,
	AttrASPath:           FlagTransitive,
	AttrNextHop:          FlagTransitive,
	AttrMultiExitDisc:    FlagOptional,
	AttrLocalPref:        FlagTransitive,
	AttrAtomicAggregate:  FlagTransitive,
	AttrAggregator:       FlagOptional | FlagTransitive,
	AttrCommunities:      FlagOptional | FlagTransitive,
	AttrOriginatorID:     FlagOptional,
	AttrClusterList:      FlagOptional,
	AttrMPReachNLRI:      FlagOptional,
	AttrMPUnreachNLRI:    FlagOptional,
	AttrExtCommunities:   FlagOptional | FlagTransitive,
	AttrAS4Path:          FlagOptional | FlagTransitive,
	AttrAS4Aggregator:    FlagOptional | FlagTransitive,
	AttrPMSITunnel:       FlagOptional | FlagTransitive,
	AttrAIGP:             FlagOptional,
	AttrLargeCommunities: FlagOptional | FlagTransitive,
	AttrBGPPrefixSID:     FlagOptional | FlagTransitive,
	AttrLinkState:        FlagOptional,
}

// attrFlagErrorPolicy is the disposition when flag validation fails for
// a given attribute type, per spec §3/§7. Types absent here reset the
// session, which is the RFC 4271 default for a flags error.
var attrFlagErrorPolicy = map[AttrType]AttrPolicy{
	AttrOrigin:        PolicyTreatAsWithdraw,
	AttrASPath:        PolicyTreatAsWithdraw,
	AttrNextHop:       PolicyTreatAsWithdraw,
	AttrMultiExitDisc: PolicyDiscard,
	AttrLocalPref:     PolicyDiscard,
	AttrMPReachNLRI:   PolicyTreatAsWithdraw,
	AttrMPUnreachNLRI: PolicyTreatAsWithdraw,
}

// Attr is a decoded path attribute: its flags, type, and decoded value.
// Value is one of the Attr* types defined in attr_*.go, or RawAttr for
// anything this speaker doesn't parse.
type Attr struct {
	Flags byte
	Type  AttrType
	Value AttrValue
}

// AttrValue is implemented by every concrete attribute payload.
type AttrValue interface {
	// Marshal returns the attribute's value bytes (not flags/type/length).
	Marshal() ([]byte, error)
}

// RawAttr carries an attribute this speaker does not parse: an unknown
// optional-transitive attribute passes through opaque with Partial set
// (spec §3); an unknown optional-non-transitive is dropped on
// re-advertisement, a decision the RIB engine makes, not the codec.
type RawAttr struct {
	Bytes []byte
}

func (r RawAttr) Marshal() ([]byte, error) { return r.Bytes, nil }

// decoder parses an attribute value from its raw bytes.
type decoder func(flags byte, value []byte, ctx *CodecContext) (AttrValue, error)

var attrDecoders = map[AttrType]decoder{}

func registerAttr(t AttrType, d decoder) { attrDecoders[t] = d }

// CodecContext carries the per-session negotiation facts the codec
// needs but must never infer from raw bytes (spec §4.6: "codec and RIB
// read only this object").
type CodecContext struct {
	ASN4           bool
	AddPathReceive map[Family]bool
	LinkLocalNH    bool
}

func (c *CodecContext) addPathReceive(f Family) bool {
	if c == nil || c.AddPathReceive == nil {
		return false
	}
	return c.AddPathReceive[f]
}

// MarshalAttr encodes flags+type+length+value, choosing extended
// length when the value exceeds 255 bytes.
func MarshalAttr(a Attr) ([]byte, error) {
	value, err := a.Value.Marshal()
	if err != nil {
		return nil, err
	}
	flags := a.Flags
	out := []byte{0, byte(a.Type)}
	if len(value) > 255 {
		flags |= FlagExtendedLength
		lb := make([]byte, 2)
		binary.BigEndian.PutUint16(lb, uint16(len(value)))
		out = append(out, lb...)
	} else {
		flags &^= FlagExtendedLength
		out = append(out, byte(len(value)))
	}
	out[0] = flags
	return append(out, value...), nil
}

// ParseAttrs walks a path-attribute block, decoding each (flag, type,
// length, value) tuple per spec §4.1, rejecting a second instance of
// any type. The returned bool reports whether any attribute failed
// with PolicyTreatAsWithdraw: the caller must then treat the whole
// UPDATE's reachable NLRIs as withdrawals rather than announcements
// (spec §3/§7) instead of surfacing a hard error. An attribute that
// fails with PolicyDiscard is simply dropped from the result and
// parsing continues; only a PolicySessionReset-level failure (or a
// framing error with no policy attached) returns a non-nil error.
func ParseAttrs(b []byte, ctx *CodecContext) ([]Attr, bool, error) {
	seen := map[AttrType]bool{}
	var attrs []Attr
	treatAsWithdraw := false
	for len(b) > 0 {
		if len(b) < 3 {
			return nil, false, Notify(ErrUpdate, SubMalformedAttrList, nil, "truncated attribute header")
		}
		flags := b[0]
		typ := AttrType(b[1])
		var length int
		var value []byte
		if flags&FlagExtendedLength != 0 {
			if len(b) < 4 {
				return nil, false, Notify(ErrUpdate, SubMalformedAttrList, nil, "truncated extended attribute header")
			}
			length = int(binary.BigEndian.Uint16(b[2:4]))
			value = b[4:]
			b = b[4:]
		} else {
			length = int(b[2])
			value = b[3:]
			b = b[3:]
		}
		if len(value) < length {
			return nil, false, Notify(ErrUpdate, SubAttrLengthError, nil, "attribute %d length %d exceeds remaining body", typ, length)
		}
		value = value[:length]
		b = b[length:]

		if seen[typ] {
			return nil, false, Notify(ErrUpdate, SubMalformedAttrList, nil, "duplicate attribute %d", typ)
		}
		seen[typ] = true

		if mask, ok := mandatoryFlags[typ]; ok {
			if flags&(FlagOptional|FlagTransitive) != mask {
				switch attrFlagErrorPolicyOrDefault(typ) {
				case PolicySessionReset:
					return nil, false, Notify(ErrUpdate, SubAttrFlagsError, nil, "bad flags for attribute %d", typ)
				case PolicyTreatAsWithdraw:
					treatAsWithdraw = true
					continue
				case PolicyDiscard:
					continue
				}
			}
		}

		dec, ok := attrDecoders[typ]
		if !ok {
			if flags&FlagOptional == 0 {
				return nil, false, Notify(ErrUpdate, SubUnrecognizedWellKnown, []byte{byte(typ)}, "unrecognized well-known attribute %d", typ)
			}
			raw := flags
			if flags&FlagTransitive != 0 {
				raw |= FlagPartial
			}
			attrs = append(attrs, Attr{Flags: raw, Type: typ, Value: RawAttr{Bytes: value}})
			continue
		}
		val, err := dec(flags, value, ctx)
		if err != nil {
			var ae *AttrError
			if errors.As(err, &ae) {
				switch ae.Policy {
				case PolicyDiscard:
					continue
				case PolicyTreatAsWithdraw:
					treatAsWithdraw = true
					continue
				}
			}
			return nil, false, err
		}
		attrs = append(attrs, Attr{Flags: flags, Type: typ, Value: val})
	}
	return attrs, treatAsWithdraw, nil
}

func attrFlagErrorPolicyOrDefault(t AttrType) AttrPolicy {
	if p, ok := attrFlagErrorPolicy[t]; ok {
		return p
	}
	return PolicySessionReset
}

// FindAttr returns the attribute of the given type, if present.
func FindAttr(attrs []Attr, t AttrType) (Attr, bool) {
	for _, a := range attrs {
		if a.Type == t {
			return a, true
		}
	}
	return Attr{}, false
}

func needBytes(n int, have int, what string) error {
	if have < n {
		return fmt.Errorf("%s: need %d bytes, have %d", what, n, have)
	}
	return nil
}
