package bgp

import "fmt"

// AFI is an Address Family Identifier (RFC 4760 §4).
type AFI uint16

// SAFI is a Subsequent Address Family Identifier (RFC 4760 §4).
type SAFI uint8

const (
	AFI_IPV4  AFI = 1
	AFI_IPV6  AFI = 2
	AFI_L2VPN AFI = 25
	AFI_LS    AFI = 16388 // BGP-LS, RFC 7752
)

const (
	SAFI_UNICAST         SAFI = 1
	SAFI_MULTICAST       SAFI = 2
	SAFI_LABELED_UNICAST SAFI = 4
	SAFI_MPLS_VPN        SAFI = 128
	SAFI_MVPN            SAFI = 129
	SAFI_RTC             SAFI = 132
	SAFI_FLOWSPEC        SAFI = 133
	SAFI_FLOWSPEC_VPN    SAFI = 134
	SAFI_VPLS            SAFI = 65
	SAFI_EVPN            SAFI = 70
	SAFI_LS              SAFI = 71
	SAFI_MUP             SAFI = 85
)

// Family is the (AFI, SAFI) pair that keys all per-peer RIB and
// negotiation bookkeeping (spec §3: "AFI/SAFI is the primary key").
type Family struct {
	AFI  AFI
	SAFI SAFI
}

func NewFamily(afi AFI, safi SAFI) Family { return Family{AFI: afi, SAFI: safi} }

func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("afi=%d/safi=%d", f.AFI, f.SAFI)
}

var (
	FamilyIPv4Unicast        = Family{AFI_IPV4, SAFI_UNICAST}
	FamilyIPv4Multicast      = Family{AFI_IPV4, SAFI_MULTICAST}
	FamilyIPv4LabeledUnicast = Family{AFI_IPV4, SAFI_LABELED_UNICAST}
	FamilyIPv4MPLSVPN        = Family{AFI_IPV4, SAFI_MPLS_VPN}
	FamilyIPv4Flow           = Family{AFI_IPV4, SAFI_FLOWSPEC}
	FamilyIPv4FlowVPN        = Family{AFI_IPV4, SAFI_FLOWSPEC_VPN}
	FamilyIPv4MVPN           = Family{AFI_IPV4, SAFI_MVPN}
	FamilyIPv4MUP            = Family{AFI_IPV4, SAFI_MUP}
	FamilyIPv4RTC            = Family{AFI_IPV4, SAFI_RTC}

	FamilyIPv6Unicast        = Family{AFI_IPV6, SAFI_UNICAST}
	FamilyIPv6Multicast      = Family{AFI_IPV6, SAFI_MULTICAST}
	FamilyIPv6LabeledUnicast = Family{AFI_IPV6, SAFI_LABELED_UNICAST}
	FamilyIPv6MPLSVPN        = Family{AFI_IPV6, SAFI_MPLS_VPN}
	FamilyIPv6Flow           = Family{AFI_IPV6, SAFI_FLOWSPEC}
	FamilyIPv6FlowVPN        = Family{AFI_IPV6, SAFI_FLOWSPEC_VPN}
	FamilyIPv6MVPN           = Family{AFI_IPV6, SAFI_MVPN}
	FamilyIPv6MUP            = Family{AFI_IPV6, SAFI_MUP}

	FamilyL2VPNVPLS = Family{AFI_L2VPN, SAFI_VPLS}
	FamilyL2VPNEVPN = Family{AFI_L2VPN, SAFI_EVPN}
	FamilyLS        = Family{AFI_LS, SAFI_LS}
)

var familyNames = map[Family]string{
	FamilyIPv4Unicast:        "ipv4-unicast",
	FamilyIPv4Multicast:      "ipv4-multicast",
	FamilyIPv4LabeledUnicast: "ipv4-labeled-unicast",
	FamilyIPv4MPLSVPN:        "ipv4-mpls-vpn",
	FamilyIPv4Flow:           "ipv4-flow",
	FamilyIPv4FlowVPN:        "ipv4-flow-vpn",
	FamilyIPv4MVPN:           "ipv4-mvpn",
	FamilyIPv4MUP:            "ipv4-mup",
	FamilyIPv4RTC:            "ipv4-rtc",
	FamilyIPv6Unicast:        "ipv6-unicast",
	FamilyIPv6Multicast:      "ipv6-multicast",
	FamilyIPv6LabeledUnicast: "ipv6-labeled-unicast",
	FamilyIPv6MPLSVPN:        "ipv6-mpls-vpn",
	FamilyIPv6Flow:           "ipv6-flow",
	FamilyIPv6FlowVPN:        "ipv6-flow-vpn",
	FamilyIPv6MVPN:           "ipv6-mvpn",
	FamilyL2VPNVPLS:          "l2vpn-vpls",
	FamilyL2VPNEVPN:          "l2vpn-evpn",
	FamilyLS:                 "bgp-ls",
}
