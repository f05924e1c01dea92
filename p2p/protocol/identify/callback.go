package identify

import (
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/nervosnetwork/ckb-net-core/core"
	"github.com/nervosnetwork/ckb-net-core/internal/reach"
)

var log = logging.Logger("net/identify")

const (
	// MaxReturnListenAddrs bounds how many of our own listen addresses we
	// advertise in one handshake.
	MaxReturnListenAddrs = 10
	// BanOnNotSameNet is how long a peer is banned after advertising an
	// identity for a different network.
	BanOnNotSameNet = 5 * time.Minute
	// FeelerProtocolID is the protocol opened on feeler-only sessions:
	// nothing but the identify handshake itself.
	FeelerProtocolID protocol.ID = "/ckb/feeler/1.0.0"
)

// Callback is the policy surface the identify Protocol drives: it owns no
// transport or store state itself and only decides what each handshake
// event means.
type Callback interface {
	// Identify returns the local identify payload to send.
	Identify() []byte
	// LocalListenAddrs returns candidate addresses to advertise.
	LocalListenAddrs() []ma.Multiaddr
	// ReceivedIdentify validates a remote identify payload and records
	// what it says about the remote's capabilities.
	ReceivedIdentify(session core.SessionContext, identify []byte) MisbehaveResult
	// AddRemoteListenAddrs records addresses a remote peer advertises as
	// its own listen addresses.
	AddRemoteListenAddrs(peerID peer.ID, addrs []ma.Multiaddr)
	// AddObservedAddr records an address a remote peer observed us at.
	AddObservedAddr(peerID peer.ID, addr ma.Multiaddr, ty core.SessionType) MisbehaveResult
	// Misbehave reports a protocol-level fault and returns the verdict.
	Misbehave(peerID peer.ID, report MisbehaviorReport) MisbehaveResult
}

// ProtocolOpener is the subset of SessionTransport the callback uses to
// open the feeler-only protocol on probe sessions.
type ProtocolOpener interface {
	OpenProtocols(id core.SessionID, target core.TargetProtocol) error
}

// DefaultCallback is the reference Callback: it mirrors the decision table
// the identify handshake has always driven — ban on network mismatch, gate
// on required capability flags, record the advertised client version, and
// synthesize our own externally-reachable address from what peers observe.
type DefaultCallback struct {
	store        core.PeerAddressStore
	identify     *Identify
	opener       ProtocolOpener
	localFlags   Flags
	globalIPOnly bool
	// protocols is every local application protocol besides the feeler
	// probe, opened on an outbound session once its remote passes the
	// flags gate.
	protocols []protocol.ID
}

// NewDefaultCallback builds the reference Callback. localFlags is what this
// node advertises and also the minimum set a remote must advertise back.
// protocols lists every local protocol (other than FeelerProtocolID) to
// open on a successful outbound handshake.
func NewDefaultCallback(store core.PeerAddressStore, id *Identify, opener ProtocolOpener, localFlags Flags, globalIPOnly bool, protocols []protocol.ID) *DefaultCallback {
	return &DefaultCallback{
		store:        store,
		identify:     id,
		opener:       opener,
		localFlags:   localFlags,
		globalIPOnly: globalIPOnly,
		protocols:    protocols,
	}
}

func (c *DefaultCallback) Identify() []byte { return c.identify.Encode() }

func (c *DefaultCallback) LocalListenAddrs() []ma.Multiaddr {
	scored := c.store.PublicAddrs(MaxReturnListenAddrs)
	addrs := make([]ma.Multiaddr, 0, len(scored))
	for _, s := range scored {
		addrs = append(addrs, s.Addr)
	}
	return addrs
}

// ReceivedIdentify bans the session and disconnects when the remote
// advertises a different network or invalid identify payload. Otherwise,
// for an outbound session: a feeler peer gets only FeelerProtocolID
// opened; a peer missing a flag we require is disconnected without a ban;
// everyone else gets every non-feeler protocol opened and their client
// version recorded. Inbound sessions are not authoritative about which
// protocols to open — the remote dialed us — so their identity is just
// recorded.
func (c *DefaultCallback) ReceivedIdentify(session core.SessionContext, identify []byte) MisbehaveResult {
	remoteFlags, clientVersion, ok := c.identify.Verify(identify)
	if !ok {
		c.store.BanSession(session.ID, BanOnNotSameNet, "network mismatch or invalid identify payload")
		return Disconnect
	}

	recordVersion := func() {
		if rec, ok := c.store.GetPeerMut(session.ID); ok {
			rec.IdentifyInfo = &core.PeerIdentifyInfo{ClientVersion: clientVersion}
		}
	}

	if session.Type.IsInbound() {
		recordVersion()
		return Continue
	}

	peerID, ok := session.PeerID()
	if !ok {
		return Disconnect
	}

	if c.store.IsFeeler(peerID) {
		if err := c.opener.OpenProtocols(session.ID, core.SingleProtocol(FeelerProtocolID)); err != nil {
			log.Debugf("session %d: open feeler protocol failed: %v", session.ID, err)
		}
		return Continue
	}

	if !remoteFlags.Contains(c.localFlags) {
		log.Debugf("session %d missing required flags, disconnecting", session.ID)
		return Disconnect
	}

	recordVersion()
	if err := c.opener.OpenProtocols(session.ID, core.MultiProtocol(c.protocols)); err != nil {
		log.Debugf("session %d: open protocols failed: %v", session.ID, err)
	}
	return Continue
}

// AddRemoteListenAddrs records a remote's advertised listen addresses
// against its peer record, replacing any earlier list, and feeds each into
// the address store for later dialing. It applies no cap of its own;
// Protocol rejects lists longer than MaxAddrs before calling it.
func (c *DefaultCallback) AddRemoteListenAddrs(peerID peer.ID, addrs []ma.Multiaddr) {
	sessionID, ok := c.store.GetKeyByPeerID(peerID)
	if !ok {
		return
	}
	if rec, ok := c.store.GetPeerMut(sessionID); ok {
		rec.ListenedAddrs = addrs
	}
	for _, addr := range addrs {
		if err := c.store.AddAddr(peerID, addr); err != nil {
			log.Debugf("add addr for %s failed: %v", peerID, err)
		}
	}
}

// AddObservedAddr feeds an address a remote observed us at into the
// store's external-reachability ingestion. Inbound sessions are not
// authoritative about our own reachability — the remote dialed us, so its
// view of our address tells us nothing we didn't already know — so it is
// left unchanged (Continue, nothing recorded). For an outbound session the
// observed host is real, but the port a single dial used may not be the
// port other listeners are reachable on, so one candidate is synthesized
// per locally advertised listen address by substituting that address's
// TCP port onto the observed host (dropping any /p2p component).
func (c *DefaultCallback) AddObservedAddr(peerID peer.ID, addr ma.Multiaddr, ty core.SessionType) MisbehaveResult {
	if addr == nil || ty.IsInbound() {
		return Continue
	}
	if !reach.IsReachable(addr, c.globalIPOnly) {
		return Continue
	}

	var candidates []ma.Multiaddr
	for _, local := range c.LocalListenAddrs() {
		port, ok := tcpPort(local)
		if !ok {
			continue
		}
		candidates = append(candidates, rewriteComponents(addr, port))
	}
	if len(candidates) == 0 {
		return Continue
	}

	c.store.AddObservedAddrs(candidates)
	return Continue
}

// Misbehave bans duplicate-field and invalid-data faults outright;
// timeouts and over-long address lists just end the session.
func (c *DefaultCallback) Misbehave(peerID peer.ID, report MisbehaviorReport) MisbehaveResult {
	switch report.Kind {
	case MisbehaviorDuplicateListenAddrs, MisbehaviorDuplicateObservedAddr, MisbehaviorInvalidData:
		if sessionID, ok := c.store.GetKeyByPeerID(peerID); ok {
			c.store.BanSession(sessionID, BanOnNotSameNet, report.Kind.String())
		}
		return Disconnect
	case MisbehaviorTimeout, MisbehaviorTooManyAddresses:
		return Disconnect
	default:
		return Continue
	}
}
