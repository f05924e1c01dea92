package identify

import (
	"testing"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"
)

func TestStripP2P(t *testing.T) {
	addr := mustAddr(t, "/ip4/1.2.3.4/tcp/8115/p2p/QmYyQSo1c1Ym7orWxLYvCrM2EmxFTANf8wXmmE7DWjhx5N")
	stripped := stripP2P(addr)
	_, err := stripped.ValueForProtocol(ma.P_P2P)
	require.Error(t, err)

	port, ok := tcpPort(stripped)
	require.True(t, ok)
	require.Equal(t, 8115, port)
}

func TestRewriteComponentsSubstitutesTCPPort(t *testing.T) {
	addr := mustAddr(t, "/ip4/1.2.3.4/tcp/9999")
	rewritten := rewriteComponents(addr, 8115)

	port, ok := tcpPort(rewritten)
	require.True(t, ok)
	require.Equal(t, 8115, port)
}

func TestTCPPortAbsent(t *testing.T) {
	addr := mustAddr(t, "/ip4/1.2.3.4")
	_, ok := tcpPort(addr)
	require.False(t, ok)
}
