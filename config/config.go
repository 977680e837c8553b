// Package config is the reference implementation of the peer-config
// collaborator described in spec.md §6. It is deliberately thin: the
// configuration grammar and its parser are an external concern, out of
// this core's engineering scope. This loader exists only so cmd/bgpd
// has something runnable to read.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/routebird/bgpd/bgp"
	"gopkg.in/yaml.v3"
)

// StaticRoute is one route to originate into a peer's Adj-RIB-Out at
// startup, before the API channel issues anything.
type StaticRoute struct {
	Prefix      string            `yaml:"prefix"`
	NextHop     string            `yaml:"next_hop"`
	LocalPref   *uint32           `yaml:"local_pref,omitempty"`
	Communities []string          `yaml:"communities,omitempty"`
}

// PeerConfig is the collaborator struct spec.md §6 names: the set of
// facts the session layer needs about one configured peer.
type PeerConfig struct {
	Name         string        `yaml:"name"`
	LocalAddress string        `yaml:"local_address"`
	LocalASN     bgp.ASN       `yaml:"local_asn"`
	PeerAddress  string        `yaml:"peer_address"`
	PeerASN      bgp.ASN       `yaml:"peer_asn"`
	RouterID     string        `yaml:"router_id"`
	HoldTime     time.Duration `yaml:"hold_time"`
	Passive      bool          `yaml:"passive"`
	MD5Key       string        `yaml:"md5_key,omitempty"`
	Families     []string      `yaml:"families"`
	AddPath      []string      `yaml:"add_path,omitempty"`
	GracefulRestart bool       `yaml:"graceful_restart,omitempty"`
	StaticRoutes []StaticRoute `yaml:"static_routes,omitempty"`
}

// RouterIDBytes parses RouterID into its 4-byte wire form.
func (p PeerConfig) RouterIDBytes() ([4]byte, error) {
	var out [4]byte
	addr, err := netip.ParseAddr(p.RouterID)
	if err != nil || !addr.Is4() {
		return out, fmt.Errorf("config: invalid router-id %q", p.RouterID)
	}
	return addr.As4(), nil
}

// FamilySet resolves the configured family name strings into bgp.Family values.
func (p PeerConfig) FamilySet() ([]bgp.Family, error) {
	out := make([]bgp.Family, 0, len(p.Families))
	for _, name := range p.Families {
		f, ok := namedFamilies[name]
		if !ok {
			return nil, fmt.Errorf("config: unknown family %q", name)
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		out = append(out, bgp.FamilyIPv4Unicast)
	}
	return out, nil
}

var namedFamilies = map[string]bgp.Family{
	"ipv4-unicast":           bgp.FamilyIPv4Unicast,
	"ipv4-multicast":         bgp.FamilyIPv4Multicast,
	"ipv4-labeled-unicast":   bgp.FamilyIPv4LabeledUnicast,
	"ipv4-mpls-vpn":          bgp.FamilyIPv4MPLSVPN,
	"ipv4-flow":              bgp.FamilyIPv4Flow,
	"ipv4-flow-vpn":          bgp.FamilyIPv4FlowVPN,
	"ipv4-mvpn":              bgp.FamilyIPv4MVPN,
	"ipv4-mup":               bgp.FamilyIPv4MUP,
	"ipv4-rtc":               bgp.FamilyIPv4RTC,
	"ipv6-unicast":           bgp.FamilyIPv6Unicast,
	"ipv6-multicast":         bgp.FamilyIPv6Multicast,
	"ipv6-labeled-unicast":   bgp.FamilyIPv6LabeledUnicast,
	"ipv6-mpls-vpn":          bgp.FamilyIPv6MPLSVPN,
	"ipv6-flow":              bgp.FamilyIPv6Flow,
	"ipv6-flow-vpn":          bgp.FamilyIPv6FlowVPN,
	"ipv6-mvpn":              bgp.FamilyIPv6MVPN,
	"ipv6-mup":               bgp.FamilyIPv6MUP,
	"l2vpn-vpls":             bgp.FamilyL2VPNVPLS,
	"l2vpn-evpn":             bgp.FamilyL2VPNEVPN,
	"bgp-ls":                 bgp.FamilyLS,
}

// Document is the top-level YAML document: a list of peers plus
// process-wide settings (API channel address/encoding).
type Document struct {
	APIListen  string       `yaml:"api_listen"`
	APIEncoding string      `yaml:"api_encoding"` // "text" or "json"
	Peers      []PeerConfig `yaml:"peers"`
}

// Load reads and parses a YAML peer-config document from path.
func Load(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return Document{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if doc.APIEncoding == "" {
		doc.APIEncoding = "text"
	}
	return doc, nil
}
