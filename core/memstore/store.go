// Package memstore provides small in-memory implementations of the core
// collaborator interfaces (PeerAddressStore, ChainSnapshotProvider,
// FeeEstimator, TxVerifier, BlockAssemblerBackend); there is no
// SessionTransport implementation here. They exist so the identify protocol and the transaction
// pool can be exercised end to end in tests and examples without pulling in
// a real datastore, chain index, or fee model — production embedders are
// expected to supply their own.
package memstore

import (
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/nervosnetwork/ckb-net-core/core"
)

const banCacheSize = 4096

// PeerAddressStore is a goroutine-safe, process-local PeerAddressStore.
type PeerAddressStore struct {
	mu      sync.Mutex
	public  []core.AddrScore
	addrs   map[peer.ID][]ma.Multiaddr
	records map[core.SessionID]*core.PeerRecord
	byPeer  map[peer.ID]core.SessionID
	feelers map[peer.ID]bool
	bans    *expirable.LRU[core.SessionID, string]
	banTTL  time.Duration
}

// NewPeerAddressStore builds an empty store. publicAddrs seeds the set of
// locally-advertised addresses returned by PublicAddrs, best (lowest score)
// first.
func NewPeerAddressStore(publicAddrs []core.AddrScore) *PeerAddressStore {
	return &PeerAddressStore{
		public:  append([]core.AddrScore(nil), publicAddrs...),
		addrs:   make(map[peer.ID][]ma.Multiaddr),
		records: make(map[core.SessionID]*core.PeerRecord),
		byPeer:  make(map[peer.ID]core.SessionID),
		feelers: make(map[peer.ID]bool),
		bans:    expirable.NewLRU[core.SessionID, string](banCacheSize, nil, 5*time.Minute),
		banTTL:  5 * time.Minute,
	}
}

// Register creates the peer record for a newly connected session. The
// identify protocol's RemoteInfo registry is a separate, per-protocol-
// instance concern; this is the store's own bookkeeping of "which session
// currently represents peerID".
func (s *PeerAddressStore) Register(id core.SessionID, peerID peer.ID, feeler bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = &core.PeerRecord{}
	s.byPeer[peerID] = id
	s.feelers[peerID] = feeler
}

// Unregister removes a session's peer record, mirroring disconnection.
func (s *PeerAddressStore) Unregister(id core.SessionID, peerID peer.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	delete(s.byPeer, peerID)
	delete(s.feelers, peerID)
}

func (s *PeerAddressStore) PublicAddrs(n int) []core.AddrScore {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.AddrScore(nil), s.public...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	if n < len(out) {
		out = out[:n]
	}
	return out
}

func (s *PeerAddressStore) AddAddr(peerID peer.ID, addr ma.Multiaddr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addrs[peerID] = append(s.addrs[peerID], addr)
	return nil
}

func (s *PeerAddressStore) AddObservedAddrs(addrs []ma.Multiaddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range addrs {
		s.public = append(s.public, core.AddrScore{Addr: a, Score: 0})
	}
}

func (s *PeerAddressStore) GetPeerMut(id core.SessionID) (*core.PeerRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}

func (s *PeerAddressStore) GetKeyByPeerID(peerID peer.ID) (core.SessionID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPeer[peerID]
	return id, ok
}

func (s *PeerAddressStore) IsFeeler(peerID peer.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feelers[peerID]
}

// BanSession records a ban for duration; the entry expires from the
// underlying LRU on its own, so IsBanned only ever reports active bans.
// expirable.LRU has a single TTL for its whole lifetime, so a duration that
// differs from the cache's configured TTL rebuilds it — harmless in
// practice since the identify callback only ever bans for
// BAN_ON_NOT_SAME_NET.
func (s *PeerAddressStore) BanSession(id core.SessionID, duration time.Duration, reason string) {
	s.mu.Lock()
	if duration != s.banTTL {
		s.bans = expirable.NewLRU[core.SessionID, string](banCacheSize, nil, duration)
		s.banTTL = duration
	}
	bans := s.bans
	s.mu.Unlock()
	bans.Add(id, reason)
}

// IsBanned reports whether id currently has an unexpired ban, and why.
func (s *PeerAddressStore) IsBanned(id core.SessionID) (reason string, banned bool) {
	s.mu.Lock()
	bans := s.bans
	s.mu.Unlock()
	reason, ok := bans.Get(id)
	return reason, ok
}

// ListenedAddrs returns what add_remote_listen_addrs recorded for the peer
// record of session id, for test assertions.
func (s *PeerAddressStore) ListenedAddrs(id core.SessionID) []ma.Multiaddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	return rec.ListenedAddrs
}
