// Package network provides host-local address discovery used to pick
// a default BGP identifier when a peer's configuration omits one.
package network

import (
	"encoding/binary"
	"fmt"
	"net"
)

// FindRouterID picks the first global-unicast IPv4 address bound to
// any local interface, for a peer config that leaves RouterID unset.
func FindRouterID() ([4]byte, error) {
	ifs, err := net.Interfaces()
	if err != nil {
		return [4]byte{}, err
	}
	for _, v := range ifs {
		addrs, err := v.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ip, _, err := net.ParseCIDR(addr.String())
			if err != nil {
				continue
			}
			ip4 := ip.To4()
			if ip4 == nil || !ip.IsGlobalUnicast() {
				continue
			}
			var out [4]byte
			copy(out[:], ip4)
			return out, nil
		}
	}
	return [4]byte{}, fmt.Errorf("network: no global unicast IPv4 address found")
}

// Uint32ToIP renders a BGP identifier back to its dotted form for logs.
func Uint32ToIP(i uint32) net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, i)
	return ip
}
