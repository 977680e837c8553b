package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routebird/bgpd/bgp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bgpd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesPeersAndDefaultsAPIEncoding(t *testing.T) {
	path := writeConfig(t, `
api_listen: "127.0.0.1:9179"
peers:
  - name: edge1
    local_address: "192.0.2.1"
    local_asn: 65000
    peer_address: "192.0.2.2"
    peer_asn: 65001
    router_id: "192.0.2.1"
    hold_time: 90s
    families: [ipv4-unicast, ipv6-unicast]
`)
	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "text", doc.APIEncoding)
	require.Len(t, doc.Peers, 1)
	assert.Equal(t, "edge1", doc.Peers[0].Name)
	assert.Equal(t, bgp.ASN(65000), doc.Peers[0].LocalASN)
}

func TestLoadRespectsExplicitJSONEncoding(t *testing.T) {
	path := writeConfig(t, "api_listen: \":9179\"\napi_encoding: json\npeers: []\n")
	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "json", doc.APIEncoding)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "peers: [this is not valid: yaml: at all")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestPeerConfigFamilySetDefaultsToIPv4Unicast(t *testing.T) {
	pc := PeerConfig{}
	families, err := pc.FamilySet()
	require.NoError(t, err)
	assert.Equal(t, []bgp.Family{bgp.FamilyIPv4Unicast}, families)
}

func TestPeerConfigFamilySetRejectsUnknownName(t *testing.T) {
	pc := PeerConfig{Families: []string{"not-a-real-family"}}
	_, err := pc.FamilySet()
	assert.Error(t, err)
}

func TestPeerConfigRouterIDBytes(t *testing.T) {
	pc := PeerConfig{RouterID: "192.0.2.1"}
	id, err := pc.RouterIDBytes()
	require.NoError(t, err)
	assert.Equal(t, [4]byte{192, 0, 2, 1}, id)
}

func TestPeerConfigRouterIDBytesRejectsIPv6(t *testing.T) {
	pc := PeerConfig{RouterID: "2001:db8::1"}
	_, err := pc.RouterIDBytes()
	assert.Error(t, err)
}
