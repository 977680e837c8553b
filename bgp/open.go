package bgp

import "encoding/binary"

const Version4 = 4

// optional parameter type codes, RFC 4271 §4.2 / RFC 9072 §3.
const (
	optParamCapability       = 2
	optParamExtendedLength   = 255 // RFC 9072: escape to a 2-byte length
)

// Open is a decoded OPEN message, RFC 4271 §4.2.
type Open struct {
	ASN          ASN // the 2-byte field; 4-byte ASN comes from the ASN4 capability when present
	HoldTime     uint16
	Identifier   [4]byte
	Capabilities []Capability
}

// EffectiveASN returns the 4-byte ASN, preferring the ASN4 capability
// over the 2-byte field (which carries AS_TRANS when the real ASN
// doesn't fit), per RFC 6793 §3.
func (o Open) EffectiveASN() ASN {
	for _, c := range o.Capabilities {
		if asn, ok := c.AsASN4(); ok {
			return asn
		}
	}
	return o.ASN
}

// MarshalOpen encodes the OPEN message body. Capabilities are always
// wrapped in a single optional parameter; when their encoded length
// would overflow the classic 1-byte optional-parameters-length field,
// RFC 9072 extended length encoding is used instead.
func MarshalOpen(o Open) []byte {
	var capsBody []byte
	for _, c := range o.Capabilities {
		capsBody = append(capsBody, c.marshal()...)
	}

	var optParams []byte
	extended := len(capsBody) > 253
	if extended {
		// RFC 9072 §3: non-ext marker byte 255, then (paramType, 2-byte len, value).
		optParams = append(optParams, optParamExtendedLength)
		lb := make([]byte, 2)
		binary.BigEndian.PutUint16(lb, uint16(len(capsBody)+1))
		optParams = append(optParams, lb...)
		optParams = append(optParams, optParamCapability)
		optParams = append(optParams, capsBody...)
	} else if len(capsBody) > 0 {
		optParams = append(optParams, optParamCapability, byte(len(capsBody)))
		optParams = append(optParams, capsBody...)
	}

	out := make([]byte, 10)
	out[0] = Version4
	binary.BigEndian.PutUint16(out[1:3], o.ASN.Encoded16())
	binary.BigEndian.PutUint16(out[3:5], o.HoldTime)
	copy(out[5:9], o.Identifier[:])
	if extended {
		out[9] = 0 // classic field holds 0; real length travels in the extended header
		out = append(out, optParams...)
	} else {
		out[9] = byte(len(optParams))
		out = append(out, optParams...)
	}
	return out
}

// ParseOpen decodes an OPEN message body.
func ParseOpen(b []byte) (Open, error) {
	if len(b) < 10 {
		return Open{}, Notify(ErrOpen, 0, nil, "OPEN too short")
	}
	if b[0] != Version4 {
		return Open{}, Notify(ErrOpen, SubUnsupportedVersion, []byte{0, Version4}, "unsupported BGP version %d", b[0])
	}
	o := Open{
		ASN:      ASN(binary.BigEndian.Uint16(b[1:3])),
		HoldTime: binary.BigEndian.Uint16(b[3:5]),
	}
	copy(o.Identifier[:], b[5:9])
	paramsLen := int(b[9])
	rest := b[10:]

	var params []byte
	if paramsLen == 0 && len(rest) > 0 && rest[0] == optParamExtendedLength {
		if len(rest) < 3 {
			return Open{}, Notify(ErrOpen, SubUnsupportedOptionalParam, nil, "truncated extended optional parameter")
		}
		extLen := int(binary.BigEndian.Uint16(rest[1:3]))
		if len(rest) < 3+extLen {
			return Open{}, Notify(ErrOpen, SubUnsupportedOptionalParam, nil, "truncated extended optional parameter value")
		}
		paramType := rest[3]
		if paramType != optParamCapability {
			return Open{}, Notify(ErrOpen, SubUnsupportedOptionalParam, nil, "unsupported extended optional parameter %d", paramType)
		}
		params = rest[4 : 3+extLen]
	} else {
		if len(rest) < paramsLen {
			return Open{}, Notify(ErrOpen, 0, nil, "truncated optional parameters")
		}
		rest = rest[:paramsLen]
		for len(rest) > 0 {
			if len(rest) < 2 {
				return Open{}, Notify(ErrOpen, SubUnsupportedOptionalParam, nil, "truncated optional parameter header")
			}
			typ := rest[0]
			length := int(rest[1])
			if len(rest) < 2+length {
				return Open{}, Notify(ErrOpen, SubUnsupportedOptionalParam, nil, "truncated optional parameter value")
			}
			if typ == optParamCapability {
				params = append(params, rest[2:2+length]...)
			}
			rest = rest[2+length:]
		}
	}

	caps, err := parseCapabilities(params)
	if err != nil {
		return Open{}, err
	}
	o.Capabilities = caps
	return o, nil
}

// HasCapability reports whether the OPEN carries any capability with
// the given code.
func (o Open) HasCapability(code byte) bool {
	for _, c := range o.Capabilities {
		if c.Code == code {
			return true
		}
	}
	return false
}
