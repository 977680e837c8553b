package bgp

import "encoding/binary"

// Update is a decoded UPDATE message, RFC 4271 §4.3. The base
// message's own Withdrawn Routes / NLRI fields are always IPv4
// unicast; every other family travels exclusively via
// MP_UNREACH_NLRI / MP_REACH_NLRI (spec §4: "a speaker never mixes
// the legacy IPv4 fields with MP attributes for the same family").
type Update struct {
	WithdrawnRoutes []NLRI
	Attrs           []Attr
	NLRI            []NLRI

	// TreatAsWithdraw is set when an attribute decode failed with
	// PolicyTreatAsWithdraw (spec §3/§7): the caller must process this
	// UPDATE's Reachable() NLRIs as withdrawals, not announcements.
	TreatAsWithdraw bool
}

// Reachable collects every NLRI this UPDATE announces, across both
// the legacy IPv4 field and any MP_REACH_NLRI attribute.
func (u Update) Reachable() map[Family][]PathNLRI {
	out := map[Family][]PathNLRI{}
	if len(u.NLRI) > 0 {
		var items []PathNLRI
		for _, n := range u.NLRI {
			items = append(items, PathNLRI{NLRI: n})
		}
		out[FamilyIPv4Unicast] = items
	}
	if a, ok := FindAttr(u.Attrs, AttrMPReachNLRI); ok {
		if mp, ok := a.Value.(MPReachNLRI); ok {
			out[mp.Family] = append(out[mp.Family], mp.NLRI...)
		}
	}
	return out
}

// Unreachable collects every NLRI this UPDATE withdraws.
func (u Update) Unreachable() map[Family][]PathNLRI {
	out := map[Family][]PathNLRI{}
	if len(u.WithdrawnRoutes) > 0 {
		var items []PathNLRI
		for _, n := range u.WithdrawnRoutes {
			items = append(items, PathNLRI{NLRI: n})
		}
		out[FamilyIPv4Unicast] = items
	}
	if a, ok := FindAttr(u.Attrs, AttrMPUnreachNLRI); ok {
		if mp, ok := a.Value.(MPUnreachNLRI); ok {
			out[mp.Family] = append(out[mp.Family], mp.NLRI...)
		}
	}
	return out
}

// IsEndOfRIB reports whether this UPDATE is the graceful-restart
// marker for the given family, RFC 4724 §2: for IPv4 unicast that is
// a wholly empty UPDATE; for any other family it is an UPDATE whose
// only attribute is an empty MP_UNREACH_NLRI.
func (u Update) IsEndOfRIB(f Family) bool {
	if f == FamilyIPv4Unicast {
		return len(u.WithdrawnRoutes) == 0 && len(u.Attrs) == 0 && len(u.NLRI) == 0
	}
	if len(u.Attrs) != 1 {
		return false
	}
	mp, ok := u.Attrs[0].Value.(MPUnreachNLRI)
	return ok && mp.Family == f && len(mp.NLRI) == 0
}

// MarshalUpdate encodes an UPDATE message body. addPathSend controls
// whether legacy IPv4 withdrawn/NLRI fields are prefixed with a
// path-id (MP-carried families already carry PathID inside their
// PathNLRI wrapper, handled by MPReachNLRI/MPUnreachNLRI.Marshal).
func MarshalUpdate(u Update, addPathSend bool) ([]byte, error) {
	var withdrawn []byte
	for _, n := range u.WithdrawnRoutes {
		b, err := n.Marshal()
		if err != nil {
			return nil, err
		}
		withdrawn = append(withdrawn, b...)
	}

	var attrBytes []byte
	for _, a := range u.Attrs {
		b, err := MarshalAttr(a)
		if err != nil {
			return nil, err
		}
		attrBytes = append(attrBytes, b...)
	}

	var nlri []byte
	for _, n := range u.NLRI {
		b, err := n.Marshal()
		if err != nil {
			return nil, err
		}
		nlri = append(nlri, b...)
	}

	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, uint16(len(withdrawn)))
	out = append(out, withdrawn...)
	lenAttrs := make([]byte, 2)
	binary.BigEndian.PutUint16(lenAttrs, uint16(len(attrBytes)))
	out = append(out, lenAttrs...)
	out = append(out, attrBytes...)
	out = append(out, nlri...)
	return out, nil
}

// ParseUpdate decodes an UPDATE message body, dispatching attribute
// and NLRI decoding through ctx.
func ParseUpdate(b []byte, ctx *CodecContext) (Update, error) {
	if len(b) < 2 {
		return Update{}, Notify(ErrUpdate, SubMalformedAttrList, nil, "UPDATE too short for withdrawn-routes length")
	}
	wlen := int(binary.BigEndian.Uint16(b[0:2]))
	b = b[2:]
	if len(b) < wlen {
		return Update{}, Notify(ErrUpdate, SubMalformedAttrList, nil, "withdrawn-routes length overruns message")
	}
	withdrawnBytes := b[:wlen]
	b = b[wlen:]

	if len(b) < 2 {
		return Update{}, Notify(ErrUpdate, SubMalformedAttrList, nil, "UPDATE too short for attr length")
	}
	alen := int(binary.BigEndian.Uint16(b[0:2]))
	b = b[2:]
	if len(b) < alen {
		return Update{}, Notify(ErrUpdate, SubMalformedAttrList, nil, "attribute length overruns message")
	}
	attrBytes := b[:alen]
	nlriBytes := b[alen:]

	withdrawn, err := ParseInetUnicastNLRI(withdrawnBytes, AFI_IPV4, SAFI_UNICAST)
	if err != nil {
		return Update{}, err
	}
	attrs, treatAsWithdraw, err := ParseAttrs(attrBytes, ctx)
	if err != nil {
		return Update{}, err
	}
	attrs = mergeAS4PathIfPresent(ctx, attrs)
	nlri, err := ParseInetUnicastNLRI(nlriBytes, AFI_IPV4, SAFI_UNICAST)
	if err != nil {
		return Update{}, err
	}

	// A dropped mandatory attribute is exactly what makes this
	// TreatAsWithdraw in the first place, so the usual
	// missing-well-known check would just re-reject what the policy
	// table already decided to survive as a withdrawal.
	if len(nlri) > 0 && !treatAsWithdraw {
		if _, ok := FindAttr(attrs, AttrNextHop); !ok {
			return Update{}, Notify(ErrUpdate, SubMissingWellKnown, []byte{byte(AttrNextHop)}, "NLRI present without NEXT_HOP")
		}
		if _, ok := FindAttr(attrs, AttrOrigin); !ok {
			return Update{}, Notify(ErrUpdate, SubMissingWellKnown, []byte{byte(AttrOrigin)}, "NLRI present without ORIGIN")
		}
		if _, ok := FindAttr(attrs, AttrASPath); !ok {
			return Update{}, Notify(ErrUpdate, SubMissingWellKnown, []byte{byte(AttrASPath)}, "NLRI present without AS_PATH")
		}
	}

	return Update{WithdrawnRoutes: withdrawn, Attrs: attrs, NLRI: nlri, TreatAsWithdraw: treatAsWithdraw}, nil
}

// mergeAS4PathIfPresent reconstructs AS_PATH from AS4_PATH (RFC 6793
// §4.2.3) on a session that has not itself negotiated ASN4: the peer
// may still carry AS_TRANS placeholders in AS_PATH and the real 4-byte
// ASNs in the optional AS4_PATH attribute, and a speaker that only
// consumes AS_PATH must see the merged result. Once merged, AS4_PATH
// is dropped: it has no further meaning once the substitution is done.
func mergeAS4PathIfPresent(ctx *CodecContext, attrs []Attr) []Attr {
	if ctx != nil && ctx.ASN4 {
		return attrs
	}
	asIdx, as4Idx := -1, -1
	for i, a := range attrs {
		switch a.Type {
		case AttrASPath:
			asIdx = i
		case AttrAS4Path:
			as4Idx = i
		}
	}
	if asIdx < 0 || as4Idx < 0 {
		return attrs
	}
	asPath, ok := attrs[asIdx].Value.(ASPath)
	if !ok {
		return attrs
	}
	as4Path, ok := attrs[as4Idx].Value.(ASPath)
	if !ok {
		return attrs
	}
	attrs[asIdx].Value = MergeAS4Path(asPath, as4Path)
	return append(attrs[:as4Idx], attrs[as4Idx+1:]...)
}
