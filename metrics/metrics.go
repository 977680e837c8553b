// Package metrics exposes the daemon's prometheus collectors: per-peer
// session state, message counters by type, and RIB table sizes. The
// reactor updates the session-state, message and reconnect collectors;
// nothing in this module sets the RIB table-size gauges.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every collector the daemon registers. A zero value
// is unusable; construct with NewRegistry.
type Registry struct {
	PeerState      *prometheus.GaugeVec
	MessagesSent   *prometheus.CounterVec
	MessagesRecv   *prometheus.CounterVec
	RIBInSize      *prometheus.GaugeVec
	RIBOutSize     *prometheus.GaugeVec
	Reconnects     *prometheus.CounterVec
}

// NewRegistry constructs and registers every collector against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		PeerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bgpd",
			Name:      "peer_state",
			Help:      "Current FSM state per peer (0=Idle..5=Established).",
		}, []string{"peer"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bgpd",
			Name:      "messages_sent_total",
			Help:      "BGP messages sent, by peer and message type.",
		}, []string{"peer", "type"}),
		MessagesRecv: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bgpd",
			Name:      "messages_received_total",
			Help:      "BGP messages received, by peer and message type.",
		}, []string{"peer", "type"}),
		RIBInSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bgpd",
			Name:      "adj_rib_in_routes",
			Help:      "Routes currently held in Adj-RIB-In, by peer and family.",
		}, []string{"peer", "family"}),
		RIBOutSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bgpd",
			Name:      "adj_rib_out_routes",
			Help:      "Routes currently advertised in Adj-RIB-Out, by peer and family.",
		}, []string{"peer", "family"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bgpd",
			Name:      "reconnects_total",
			Help:      "Reconnection attempts, by peer.",
		}, []string{"peer"}),
	}
	reg.MustRegister(r.PeerState, r.MessagesSent, r.MessagesRecv, r.RIBInSize, r.RIBOutSize, r.Reconnects)
	return r
}
