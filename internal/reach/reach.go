// Package reach implements the reachability predicate the identify
// protocol filters addresses through: does this address carry a resolvable
// IP, and — when only globally routable hosts are wanted — is that IP
// actually public.
package reach

import (
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
)

// IsReachable reports whether addr is a candidate worth advertising or
// dialing: it must resolve to a network address at all and must not be a
// loopback address, and when globalOnly is set it must additionally be a
// public (non-private, non-link-local) address. Built on manet's own
// classification rather than hand-rolled net.IP range checks, the same way
// the teacher's identify service leans on manet for this exact class of
// check.
func IsReachable(addr ma.Multiaddr, globalOnly bool) bool {
	if addr == nil {
		return false
	}
	if !manet.IsThinWaist(addr) {
		return false
	}
	if manet.IsIPLoopback(addr) {
		return false
	}
	if !globalOnly {
		return true
	}
	return manet.IsPublicAddr(addr)
}
