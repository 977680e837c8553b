package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONAnnounceRoute(t *testing.T) {
	line := []byte(`{"neighbors":["192.0.2.1"],"verb":"announce","noun":"route","args":{"route":"10.0.0.0/24","next-hop":"192.0.2.254"},"lists":{"as-path":["65001"]}}`)
	pc, err := ParseJSON(line)
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1"}, pc.Neighbors)
	assert.Equal(t, "announce", pc.Verb)
	assert.Equal(t, "10.0.0.0/24", pc.Args["route"])
	assert.Equal(t, []string{"65001"}, pc.Lists["as-path"])
	assert.False(t, pc.HasTeardown)
}

func TestParseJSONTeardownSetsNeighborVerb(t *testing.T) {
	line := []byte(`{"neighbors":["192.0.2.1"],"verb":"ignored","teardown":2}`)
	pc, err := ParseJSON(line)
	require.NoError(t, err)
	assert.Equal(t, "neighbor", pc.Verb)
	assert.True(t, pc.HasTeardown)
	assert.Equal(t, byte(2), pc.Teardown)
}

func TestParseJSONRejectsMalformedLine(t *testing.T) {
	_, err := ParseJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncodeEventJSONRoundTrip(t *testing.T) {
	out, err := EncodeEventJSON("192.0.2.1", "state", "ESTABLISHED")
	require.NoError(t, err)
	assert.Contains(t, string(out), `"peer":"192.0.2.1"`)
	assert.Contains(t, string(out), `"kind":"state"`)
	assert.Contains(t, string(out), "\n")
}
