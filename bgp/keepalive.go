package bgp

// KEEPALIVE, RFC 4271 §4.4: header only, zero-length body.
func MarshalKeepalive() []byte { return nil }
