package bgp

import "encoding/binary"

// Capability codes, RFC 5492 §5 and companion RFCs.
const (
	CapMultiprotocol      = 1
	CapRouteRefresh       = 2
	CapExtendedMessage    = 6
	CapGracefulRestart    = 64
	CapASN4               = 65
	CapAddPath            = 69
	CapEnhancedRouteRefresh = 70
	CapLinkLocalNextHop   = 72
	CapRouteRefreshCisco  = 128
)

// Capability is one decoded BGP capability, generic over its raw value;
// typed accessors below parse the well-known ones.
type Capability struct {
	Code  byte
	Value []byte
}

func (c Capability) marshal() []byte {
	out := make([]byte, 2+len(c.Value))
	out[0] = c.Code
	out[1] = byte(len(c.Value))
	copy(out[2:], c.Value)
	return out
}

func parseCapabilities(b []byte) ([]Capability, error) {
	var caps []Capability
	for len(b) > 0 {
		if len(b) < 2 {
			return nil, Notify(ErrOpen, SubUnsupportedOptionalParam, nil, "truncated capability header")
		}
		code := b[0]
		length := int(b[1])
		if len(b) < 2+length {
			return nil, Notify(ErrOpen, SubUnsupportedOptionalParam, nil, "truncated capability value")
		}
		caps = append(caps, Capability{Code: code, Value: append([]byte{}, b[2:2+length]...)})
		b = b[2+length:]
	}
	return caps, nil
}

// MultiprotocolCapability, RFC 4760 §8.
func MultiprotocolCapability(f Family) Capability {
	v := make([]byte, 4)
	binary.BigEndian.PutUint16(v[0:2], uint16(f.AFI))
	v[2] = 0
	v[3] = byte(f.SAFI)
	return Capability{Code: CapMultiprotocol, Value: v}
}

func (c Capability) AsMultiprotocol() (Family, bool) {
	if c.Code != CapMultiprotocol || len(c.Value) != 4 {
		return Family{}, false
	}
	return Family{AFI: AFI(binary.BigEndian.Uint16(c.Value[0:2])), SAFI: SAFI(c.Value[3])}, true
}

// ASN4Capability, RFC 6793 §3.
func ASN4Capability(asn ASN) Capability {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, uint32(asn))
	return Capability{Code: CapASN4, Value: v}
}

func (c Capability) AsASN4() (ASN, bool) {
	if c.Code != CapASN4 || len(c.Value) != 4 {
		return 0, false
	}
	return ASN(binary.BigEndian.Uint32(c.Value)), true
}

// AddPathDirection, RFC 7911 §4.
const (
	AddPathReceive = 1
	AddPathSend    = 2
	AddPathBoth    = 3
)

type AddPathEntry struct {
	Family    Family
	Direction byte
}

func AddPathCapability(entries []AddPathEntry) Capability {
	v := make([]byte, 0, 4*len(entries))
	for _, e := range entries {
		b := make([]byte, 4)
		binary.BigEndian.PutUint16(b[0:2], uint16(e.Family.AFI))
		b[2] = byte(e.Family.SAFI)
		b[3] = e.Direction
		v = append(v, b...)
	}
	return Capability{Code: CapAddPath, Value: v}
}

func (c Capability) AsAddPath() ([]AddPathEntry, bool) {
	if c.Code != CapAddPath || len(c.Value)%4 != 0 {
		return nil, false
	}
	var out []AddPathEntry
	for i := 0; i < len(c.Value); i += 4 {
		out = append(out, AddPathEntry{
			Family:    Family{AFI: AFI(binary.BigEndian.Uint16(c.Value[i : i+2])), SAFI: SAFI(c.Value[i+2])},
			Direction: c.Value[i+3],
		})
	}
	return out, true
}

// GracefulRestartCapability, RFC 4724 §3.
type GRFamilyState struct {
	Family   Family
	Forwarding bool
}

type GracefulRestartState struct {
	RestartFlag bool
	RestartTime uint16
	Families    []GRFamilyState
}

func GracefulRestartCapability(g GracefulRestartState) Capability {
	v := make([]byte, 2, 2+4*len(g.Families))
	rt := g.RestartTime & 0x0FFF
	if g.RestartFlag {
		rt |= 0x8000
	}
	binary.BigEndian.PutUint16(v[0:2], rt)
	for _, f := range g.Families {
		fb := make([]byte, 4)
		binary.BigEndian.PutUint16(fb[0:2], uint16(f.Family.AFI))
		fb[2] = byte(f.Family.SAFI)
		if f.Forwarding {
			fb[3] = 0x80
		}
		v = append(v, fb...)
	}
	return Capability{Code: CapGracefulRestart, Value: v}
}

func (c Capability) AsGracefulRestart() (GracefulRestartState, bool) {
	if c.Code != CapGracefulRestart || len(c.Value) < 2 {
		return GracefulRestartState{}, false
	}
	rt := binary.BigEndian.Uint16(c.Value[0:2])
	g := GracefulRestartState{RestartFlag: rt&0x8000 != 0, RestartTime: rt & 0x0FFF}
	rest := c.Value[2:]
	for len(rest) >= 4 {
		g.Families = append(g.Families, GRFamilyState{
			Family:     Family{AFI: AFI(binary.BigEndian.Uint16(rest[0:2])), SAFI: SAFI(rest[2])},
			Forwarding: rest[3]&0x80 != 0,
		})
		rest = rest[4:]
	}
	return g, true
}

func simpleCapability(code byte) Capability { return Capability{Code: code} }

// RouteRefreshCapability, RFC 2918.
func RouteRefreshCapability() Capability { return simpleCapability(CapRouteRefresh) }

// EnhancedRouteRefreshCapability, RFC 7313 §3.
func EnhancedRouteRefreshCapability() Capability { return simpleCapability(CapEnhancedRouteRefresh) }

// ExtendedMessageCapability, RFC 8654 §2.
func ExtendedMessageCapability() Capability { return simpleCapability(CapExtendedMessage) }

// LinkLocalNextHopCapability, draft/RFC 8950's IPv6 link-local signalling bit.
func LinkLocalNextHopCapability() Capability { return simpleCapability(CapLinkLocalNextHop) }
