package bgp

// ASN is an autonomous system number. It is always stored as a full
// 32-bit value; whether it packs into 2 or 4 bytes on the wire depends
// on the session's ASN4 negotiation (spec §3: "for any ASN a, a packs
// in 2 bytes iff a <= 0xFFFF").
type ASN uint32

// ASTrans is the reserved placeholder AS number used in the 2-byte slot
// of AS_PATH/AGGREGATOR when the real ASN does not fit and the session
// has not negotiated ASN4 (RFC 6793).
const ASTrans ASN = 23456

// Is4Byte reports whether a needs 4 bytes on the wire.
func (a ASN) Is4Byte() bool { return a > 0xFFFF }

// Encoded16 returns the 2-byte wire representation, substituting
// AS_TRANS when the ASN doesn't fit.
func (a ASN) Encoded16() uint16 {
	if a.Is4Byte() {
		return uint16(ASTrans)
	}
	return uint16(a)
}
