package identify

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/nervosnetwork/ckb-net-core/core"
	"github.com/nervosnetwork/ckb-net-core/internal/reach"
	"github.com/nervosnetwork/ckb-net-core/txpool/metrics"
)

const (
	// MaxAddrs bounds how many listen addresses we accept from a remote
	// in one handshake; more than this is misbehavior.
	MaxAddrs = 10
	// DefaultTimeout is how long a session has to complete the identify
	// handshake before it is disconnected for MisbehaviorTimeout.
	DefaultTimeout = 8 * time.Second
	// CheckTimeoutInterval is how often Notify sweeps the registry for
	// expired handshakes.
	CheckTimeoutInterval = 1 * time.Second
	// checkTimeoutToken is the notify token this protocol registers.
	checkTimeoutToken = 100
)

// Protocol is the identify handshake state machine. It keeps no lock of
// its own: the session transport it is registered against serializes all
// callback invocations (Connected/Disconnected/Received/Notify) per
// instance, so ordinary field access is safe without synchronization —
// the one exception is `disabled`, read from Connected/Received/Disconnected
// and written only from Connected, which uses atomic.Bool so a stale read never lets
// a handshake proceed after the protocol gave up on the local identity.
type Protocol struct {
	callback     Callback
	remoteInfos  *registry
	globalIPOnly bool
	disabled     atomic.Bool
	clock        clock.Clock
	metrics      *metrics.Metrics // nil disables instrumentation
}

// Option configures a Protocol at construction.
type Option func(*Protocol)

// WithGlobalIPOnly restricts advertised and accepted addresses to
// globally-routable IPs, dropping loopback/private/link-local candidates.
func WithGlobalIPOnly(v bool) Option {
	return func(p *Protocol) { p.globalIPOnly = v }
}

// WithClock injects a clock, for deterministic timeout tests.
func WithClock(c clock.Clock) Option {
	return func(p *Protocol) { p.clock = c }
}

// WithMetrics wires an optional metrics sink that tracks the number of
// sessions with an in-flight or completed handshake. Omit it to disable
// instrumentation entirely.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Protocol) { p.metrics = m }
}

// NewProtocol builds a Protocol bound to callback.
func NewProtocol(callback Callback, opts ...Option) *Protocol {
	p := &Protocol{
		callback:    callback,
		remoteInfos: newRegistry(),
		clock:       clock.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Init registers this protocol's periodic timeout sweep with the
// transport. Embedders call this once before the transport starts
// dispatching connection events.
func (p *Protocol) Init(transport core.SessionTransport) error {
	return transport.SetServiceNotify(CheckTimeoutInterval, checkTimeoutToken)
}

// Connected starts the handshake for a newly-authenticated session: it
// derives the session's peer id (disconnecting the session and disabling
// this protocol instance for good if the session carries no public key,
// since every later handshake would fail the same way), registers a
// RemoteInfo, and sends our own identify envelope.
func (p *Protocol) Connected(transport core.SessionTransport, session core.SessionContext) {
	if p.disabled.Load() {
		return
	}

	peerID, ok := session.PeerID()
	if !ok {
		log.Errorf("session %d has no authenticated peer id, disabling identify", session.ID)
		p.disabled.Store(true)
		if err := transport.Disconnect(session.ID); err != nil {
			log.Debugf("session %d: disconnect failed: %v", session.ID, err)
		}
		return
	}

	info := newRemoteInfo(session, peerID, DefaultTimeout, p.clock.Now())
	p.remoteInfos.insert(session.ID, info)
	p.reportActiveHandshakes()

	listenAddrs := p.filterReachable(p.callback.LocalListenAddrs())
	if len(listenAddrs) > MaxReturnListenAddrs {
		listenAddrs = listenAddrs[:MaxReturnListenAddrs]
	}
	observedAddr := stripP2P(session.RemoteAddr)

	payload := Encode(listenAddrs, observedAddr, p.callback.Identify())
	if err := transport.QuickSendMessage(session.ID, payload); err != nil {
		log.Debugf("session %d: send identify failed: %v", session.ID, err)
	}
}

// Disconnected drops the session's handshake state. It does nothing once
// the instance has been disabled.
func (p *Protocol) Disconnected(session core.SessionContext) {
	if p.disabled.Load() {
		return
	}
	if p.remoteInfos.len() == 0 {
		return
	}
	p.remoteInfos.remove(session.ID)
	p.reportActiveHandshakes()
}

// reportActiveHandshakes publishes the current registry size to the
// optional metrics sink; a nil sink makes this a no-op.
func (p *Protocol) reportActiveHandshakes() {
	if p.metrics == nil {
		return
	}
	p.metrics.IdentifyPeers.Set(float64(p.remoteInfos.len()))
}

// Received processes one identify envelope: validate the embedded
// identity, then fold in whichever of listen-addrs/observed-addr are
// present, disconnecting as soon as any step's verdict says to.
func (p *Protocol) Received(transport core.SessionTransport, session core.SessionContext, data []byte) {
	if p.disabled.Load() {
		return
	}
	info := p.remoteInfos.get(session.ID)

	msg, ok := Decode(data)
	if !ok {
		p.disconnect(transport, session, p.callback.Misbehave(info.PeerID, MisbehaviorReport{Kind: MisbehaviorInvalidData}))
		return
	}

	if p.callback.ReceivedIdentify(session, msg.Identify).IsDisconnect() {
		p.disconnect(transport, session, Disconnect)
		return
	}

	if p.processListens(transport, session, info, msg.ListenAddrs) {
		return
	}
	if p.processObserved(transport, session, info, msg.ObservedAddr) {
		return
	}
}

// processListens folds in a remote's advertised listen addresses. It
// returns true if the session was disconnected as a result.
func (p *Protocol) processListens(transport core.SessionTransport, session core.SessionContext, info *RemoteInfo, addrs []ma.Multiaddr) bool {
	if len(addrs) == 0 {
		return false
	}
	if info.ListenAddrs != nil {
		return p.disconnect(transport, session, p.callback.Misbehave(info.PeerID, MisbehaviorReport{Kind: MisbehaviorDuplicateListenAddrs}))
	}
	if len(addrs) > MaxAddrs {
		return p.disconnect(transport, session, p.callback.Misbehave(info.PeerID, MisbehaviorReport{Kind: MisbehaviorTooManyAddresses, Count: len(addrs)}))
	}

	filtered := p.filterReachable(addrs)
	info.ListenAddrs = filtered
	p.callback.AddRemoteListenAddrs(info.PeerID, filtered)
	return false
}

// processObserved folds in the address a remote reports observing us at.
// It returns true if the session was disconnected as a result.
func (p *Protocol) processObserved(transport core.SessionTransport, session core.SessionContext, info *RemoteInfo, addr ma.Multiaddr) bool {
	if addr == nil {
		return false
	}
	if info.ObservedAddr != nil {
		return p.disconnect(transport, session, p.callback.Misbehave(info.PeerID, MisbehaviorReport{Kind: MisbehaviorDuplicateObservedAddr}))
	}
	if !reach.IsReachable(addr, p.globalIPOnly) {
		return false
	}

	info.ObservedAddr = addr
	return p.disconnect(transport, session, p.callback.AddObservedAddr(info.PeerID, addr, session.Type))
}

// Notify sweeps the registry for sessions whose handshake deadline has
// passed and disconnects them for MisbehaviorTimeout.
func (p *Protocol) Notify(transport core.SessionTransport, token uint64) {
	if token != checkTimeoutToken {
		return
	}
	now := p.clock.Now()

	var expired []core.SessionID
	p.remoteInfos.each(func(id core.SessionID, info *RemoteInfo) {
		if info.ListenAddrs == nil && info.ObservedAddr == nil && now.After(info.ConnectedAt.Add(info.Timeout)) {
			expired = append(expired, id)
		}
	})

	for _, id := range expired {
		info := p.remoteInfos.get(id)
		p.callback.Misbehave(info.PeerID, MisbehaviorReport{Kind: MisbehaviorTimeout})
		if err := transport.Disconnect(id); err != nil {
			log.Debugf("session %d: disconnect on timeout failed: %v", id, err)
		}
	}
}

// disconnect tears down session if result says to, and reports whether it
// did — callers use the return value to short-circuit any further
// processing of a session that's already gone.
func (p *Protocol) disconnect(transport core.SessionTransport, session core.SessionContext, result MisbehaveResult) bool {
	if !result.IsDisconnect() {
		return false
	}
	if err := transport.Disconnect(session.ID); err != nil {
		log.Debugf("session %d: disconnect failed: %v", session.ID, err)
	}
	return true
}

func (p *Protocol) filterReachable(addrs []ma.Multiaddr) []ma.Multiaddr {
	out := make([]ma.Multiaddr, 0, len(addrs))
	for _, a := range addrs {
		if reach.IsReachable(a, p.globalIPOnly) {
			out = append(out, a)
		}
	}
	return out
}
