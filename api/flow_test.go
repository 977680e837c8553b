package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routebird/bgpd/reactor"
	"github.com/routebird/bgpd/rib"
)

func TestBuildAnnounceFlowDiscardByDefault(t *testing.T) {
	pc := ParsedCommand{
		Verb: "announce", Noun: "flow",
		Args: map[string]string{
			"destination":      "198.51.100.0/24",
			"protocol":         "tcp",
			"destination-port": "80",
		},
	}
	cmd, err := Build(pc)
	require.NoError(t, err)

	h := &reactor.PeerHandle{Name: "p", Out: rib.NewAdjRIBOut()}
	require.NoError(t, cmd.Apply(h))
	msgs, err := h.Out.Updates(4096)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestBuildAnnounceFlowRateLimitAction(t *testing.T) {
	pc := ParsedCommand{
		Verb: "announce", Noun: "flow",
		Args: map[string]string{"destination": "198.51.100.0/24", "then": "rate-limit 1000"},
	}
	_, err := Build(pc)
	require.NoError(t, err)
}

func TestBuildAnnounceFlowRejectsNoComponents(t *testing.T) {
	_, err := Build(ParsedCommand{Verb: "announce", Noun: "flow", Args: map[string]string{}})
	assert.Error(t, err)
}

func TestBuildAnnounceFlowRejectsUnknownAction(t *testing.T) {
	_, err := Build(ParsedCommand{
		Verb: "announce", Noun: "flow",
		Args: map[string]string{"destination": "198.51.100.0/24", "then": "bogus"},
	})
	assert.Error(t, err)
}

func TestBuildAnnounceFlowRejectsUnknownProtocolLiteral(t *testing.T) {
	_, err := Build(ParsedCommand{
		Verb: "announce", Noun: "flow",
		Args: map[string]string{"destination": "198.51.100.0/24", "protocol": "not-a-protocol-or-number"},
	})
	assert.Error(t, err)
}
