package bgp

// PMSITunnel, RFC 6514 §5: the provider multicast service interface
// tunnel attribute used to signal the multicast transport for an
// inclusive-multicast EVPN/MVPN route. Kept as flags+type+opaque
// value; this speaker relays it without interpreting tunnel types.
type PMSITunnel struct {
	Flags      byte
	TunnelType byte
	MPLSLabel  uint32 // 20 bits, packed in the low bits
	TunnelID   []byte
}

func (p PMSITunnel) Marshal() ([]byte, error) {
	out := []byte{p.Flags, p.TunnelType, byte(p.MPLSLabel >> 16), byte(p.MPLSLabel >> 8), byte(p.MPLSLabel)}
	return append(out, p.TunnelID...), nil
}

func decodePMSITunnel(flags byte, v []byte, _ *CodecContext) (AttrValue, error) {
	if len(v) < 5 {
		return nil, NewAttrError(PolicyDiscard, ErrUpdate, SubAttrLengthError, "PMSI_TUNNEL too short")
	}
	return PMSITunnel{
		Flags:      v[0],
		TunnelType: v[1],
		MPLSLabel:  be24(v[2:5]),
		TunnelID:   append([]byte{}, v[5:]...),
	}, nil
}

// BGPPrefixSID, RFC 8669: a TLV container; this speaker decodes the
// top-level TLV framing and keeps each TLV's value opaque.
type SIDTLV struct {
	Type  byte
	Value []byte
}

type BGPPrefixSID struct {
	TLVs []SIDTLV
}

func (s BGPPrefixSID) Marshal() ([]byte, error) {
	var out []byte
	for _, t := range s.TLVs {
		out = append(out, t.Type, byte(len(t.Value)>>8), byte(len(t.Value)))
		out = append(out, t.Value...)
	}
	return out, nil
}

func decodeBGPPrefixSID(flags byte, v []byte, _ *CodecContext) (AttrValue, error) {
	var tlvs []SIDTLV
	for len(v) > 0 {
		if len(v) < 3 {
			return nil, NewAttrError(PolicyDiscard, ErrUpdate, SubAttrLengthError, "truncated BGP-Prefix-SID TLV header")
		}
		typ := v[0]
		length := int(v[1])<<8 | int(v[2])
		if len(v) < 3+length {
			return nil, NewAttrError(PolicyDiscard, ErrUpdate, SubAttrLengthError, "truncated BGP-Prefix-SID TLV value")
		}
		tlvs = append(tlvs, SIDTLV{Type: typ, Value: append([]byte{}, v[3:3+length]...)})
		v = v[3+length:]
	}
	return BGPPrefixSID{TLVs: tlvs}, nil
}

// LinkState, RFC 7752 §3.3: same opaque TLV container shape as
// BGP-Prefix-SID, reused for the BGP-LS attribute's node/link/prefix
// descriptor TLVs.
type LinkState struct {
	TLVs []SIDTLV
}

func (l LinkState) Marshal() ([]byte, error) {
	var out []byte
	for _, t := range l.TLVs {
		out = append(out, byte(t.Type>>8), t.Type, byte(len(t.Value)>>8), byte(len(t.Value)))
		out = append(out, t.Value...)
	}
	return out, nil
}

func decodeLinkState(flags byte, v []byte, _ *CodecContext) (AttrValue, error) {
	var tlvs []SIDTLV
	for len(v) > 0 {
		if len(v) < 4 {
			return nil, NewAttrError(PolicyDiscard, ErrUpdate, SubAttrLengthError, "truncated LINK_STATE TLV header")
		}
		typ := byte(v[1]) // low byte of the 16-bit TLV type is enough to distinguish within this speaker's use
		length := int(v[2])<<8 | int(v[3])
		if len(v) < 4+length {
			return nil, NewAttrError(PolicyDiscard, ErrUpdate, SubAttrLengthError, "truncated LINK_STATE TLV value")
		}
		tlvs = append(tlvs, SIDTLV{Type: typ, Value: append([]byte{}, v[4:4+length]...)})
		v = v[4+length:]
	}
	return LinkState{TLVs: tlvs}, nil
}

func init() {
	registerAttr(AttrPMSITunnel, decodePMSITunnel)
	registerAttr(AttrBGPPrefixSID, decodeBGPPrefixSID)
	registerAttr(AttrLinkState, decodeLinkState)
}
