package core

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// AddrScore pairs an advertised address with the store's quality score for
// it. PublicAddrs returns these sorted best-first (lowest score first).
type AddrScore struct {
	Addr  ma.Multiaddr
	Score int64
}

// PeerIdentifyInfo is what the identify handshake learned about a peer.
type PeerIdentifyInfo struct {
	ClientVersion string
}

// PeerRecord is the subset of peer-registry state the identify callback
// mutates.
type PeerRecord struct {
	IdentifyInfo  *PeerIdentifyInfo
	ListenedAddrs []ma.Multiaddr
}

// PeerAddressStore is the out-of-scope collaborator combining the
// persistent peer/address store with the in-memory peer registry. Errors
// returned by its mutating methods are logged and swallowed by the
// identify callback — a store failure must never disconnect a peer.
type PeerAddressStore interface {
	// PublicAddrs returns up to n addresses this node advertises, with
	// their quality score.
	PublicAddrs(n int) []AddrScore
	// AddAddr records a discovered address for peerID in the persistent
	// peer store.
	AddAddr(peerID peer.ID, addr ma.Multiaddr) error
	// AddObservedAddrs feeds externally-reachable address candidates,
	// synthesized from what a peer reports observing of us, into the
	// store's "observed" address ingestion.
	AddObservedAddrs(addrs []ma.Multiaddr)
	// GetPeerMut returns the mutable peer record for a session, if one
	// is currently registered.
	GetPeerMut(id SessionID) (*PeerRecord, bool)
	// GetKeyByPeerID maps a peer id back to its current session.
	GetKeyByPeerID(peerID peer.ID) (SessionID, bool)
	// IsFeeler reports whether peerID is currently a probe-only feeler.
	IsFeeler(peerID peer.ID) bool
	// BanSession bans the session identified by id for duration, citing
	// reason in whatever ban log the store keeps.
	BanSession(id SessionID, duration time.Duration, reason string)
}
