package identify

import (
	"fmt"
	"strconv"
	"strings"

	ma "github.com/multiformats/go-multiaddr"
)

// stripP2P returns addr with any /p2p component removed, used to derive
// the address we observed a remote session at (the p2p component there
// identifies them, which is redundant once we know the session's peer id).
func stripP2P(addr ma.Multiaddr) ma.Multiaddr {
	return rewriteComponents(addr, 0)
}

// rewriteComponents rebuilds addr component by component: /p2p components
// are dropped, every other component is kept as-is, except that a /tcp
// component's port is replaced by newTCPPort when newTCPPort > 0. This is
// the "substitute local TCP port onto observed host" heuristic used to
// synthesize our externally-reachable address from a peer's observation.
func rewriteComponents(addr ma.Multiaddr, newTCPPort int) ma.Multiaddr {
	if addr == nil {
		return nil
	}

	var b strings.Builder
	for _, p := range addr.Protocols() {
		if p.Code == ma.P_P2P {
			continue
		}
		if p.Code == ma.P_TCP && newTCPPort > 0 {
			fmt.Fprintf(&b, "/tcp/%d", newTCPPort)
			continue
		}
		v, err := addr.ValueForProtocol(p.Code)
		if err != nil || v == "" {
			fmt.Fprintf(&b, "/%s", p.Name)
			continue
		}
		fmt.Fprintf(&b, "/%s/%s", p.Name, v)
	}

	out, err := ma.NewMultiaddr(b.String())
	if err != nil {
		return addr
	}
	return out
}

// tcpPort extracts a /tcp port from addr, if present.
func tcpPort(addr ma.Multiaddr) (int, bool) {
	v, err := addr.ValueForProtocol(ma.P_TCP)
	if err != nil {
		return 0, false
	}
	port, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return port, true
}
