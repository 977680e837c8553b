package api

import "fmt"

// EncodeEventText renders an output event as one text control-channel
// line, e.g. "peer 203.0.113.1 state ESTABLISHED" or "peer 203.0.113.1
// update <decoded UPDATE>".
func EncodeEventText(peer, kind string, data interface{}) string {
	if peer == "" {
		return fmt.Sprintf("%s %v\n", kind, data)
	}
	if data == nil {
		return fmt.Sprintf("peer %s %s\n", peer, kind)
	}
	return fmt.Sprintf("peer %s %s %v\n", peer, kind, data)
}
