package network

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUint32ToIP(t *testing.T) {
	ip := Uint32ToIP(0xC0000201) // 192.0.2.1
	assert.Equal(t, net.IPv4(192, 0, 2, 1).To4(), ip.To4())
}

// TestFindRouterIDDoesNotPanic exercises the interface-walking logic
// against whatever network namespace the test runs in; the host may or
// may not have a global-unicast IPv4 address configured, so only the
// shape of a successful result is asserted.
func TestFindRouterIDDoesNotPanic(t *testing.T) {
	id, err := FindRouterID()
	if err != nil {
		return
	}
	assert.NotEqual(t, [4]byte{}, id)
}
