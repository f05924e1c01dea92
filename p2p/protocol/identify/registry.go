package identify

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/nervosnetwork/ckb-net-core/core"
)

// RemoteInfo is the identify handshake state kept for one session, from
// connect to disconnect. ListenAddrs and ObservedAddr each transition from
// nil to non-nil at most once.
type RemoteInfo struct {
	PeerID       peer.ID
	Session      core.SessionContext
	ConnectedAt  time.Time
	Timeout      time.Duration
	ListenAddrs  []ma.Multiaddr
	ObservedAddr ma.Multiaddr
}

func newRemoteInfo(session core.SessionContext, peerID peer.ID, timeout time.Duration, now time.Time) *RemoteInfo {
	return &RemoteInfo{
		PeerID:      peerID,
		Session:     session,
		ConnectedAt: now,
		Timeout:     timeout,
	}
}

// registry is the per-protocol-instance table of RemoteInfo, keyed by
// session id. It holds no lock of its own: the identify protocol's
// concurrency model confines all access to the transport's serialized
// per-session callback execution (see Protocol's doc comment).
type registry struct {
	byID map[core.SessionID]*RemoteInfo
}

func newRegistry() *registry {
	return &registry{byID: make(map[core.SessionID]*RemoteInfo)}
}

func (r *registry) insert(id core.SessionID, info *RemoteInfo) {
	r.byID[id] = info
}

// get panics if id has no entry: every call site only looks up a session
// between its connected and disconnected callbacks, so absence means the
// registry invariant was already broken elsewhere.
func (r *registry) get(id core.SessionID) *RemoteInfo {
	info, ok := r.byID[id]
	if !ok {
		panic("identify: RemoteInfo must exist for session")
	}
	return info
}

func (r *registry) remove(id core.SessionID) *RemoteInfo {
	info := r.get(id)
	delete(r.byID, id)
	return info
}

func (r *registry) each(fn func(id core.SessionID, info *RemoteInfo)) {
	for id, info := range r.byID {
		fn(id, info)
	}
}

func (r *registry) len() int { return len(r.byID) }
