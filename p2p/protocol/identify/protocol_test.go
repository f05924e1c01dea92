package identify

import (
	cryptorand "crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"

	"github.com/nervosnetwork/ckb-net-core/core"
)

type fakeTransport struct {
	mu           sync.Mutex
	sent         map[core.SessionID][][]byte
	disconnected map[core.SessionID]bool
	opened       map[core.SessionID]core.TargetProtocol
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		sent:         make(map[core.SessionID][][]byte),
		disconnected: make(map[core.SessionID]bool),
		opened:       make(map[core.SessionID]core.TargetProtocol),
	}
}

func (f *fakeTransport) Disconnect(id core.SessionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected[id] = true
	return nil
}

func (f *fakeTransport) QuickSendMessage(id core.SessionID, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[id] = append(f.sent[id], data)
	return nil
}

func (f *fakeTransport) SetServiceNotify(interval time.Duration, token uint64) error {
	return nil
}

func (f *fakeTransport) OpenProtocols(id core.SessionID, target core.TargetProtocol) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened[id] = target
	return nil
}

func (f *fakeTransport) isDisconnected(id core.SessionID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected[id]
}

// fakeCallback is a minimal, test-only Callback that tracks calls and lets
// the test script its verdicts.
type fakeCallback struct {
	identify         *Identify
	listenAddrs      []ma.Multiaddr
	misbehaveResult  MisbehaveResult
	receivedVerdict  MisbehaveResult
	misbehaviorsSeen []Misbehavior
}

func (c *fakeCallback) Identify() []byte                  { return c.identify.Encode() }
func (c *fakeCallback) LocalListenAddrs() []ma.Multiaddr   { return c.listenAddrs }
func (c *fakeCallback) ReceivedIdentify(core.SessionContext, []byte) MisbehaveResult {
	return c.receivedVerdict
}
func (c *fakeCallback) AddRemoteListenAddrs(peer.ID, []ma.Multiaddr)    {}
func (c *fakeCallback) AddObservedAddr(peer.ID, ma.Multiaddr, core.SessionType) MisbehaveResult {
	return Continue
}
func (c *fakeCallback) Misbehave(_ peer.ID, report MisbehaviorReport) MisbehaveResult {
	c.misbehaviorsSeen = append(c.misbehaviorsSeen, report.Kind)
	return c.misbehaveResult
}

func testSession(t *testing.T, id core.SessionID, ty core.SessionType) core.SessionContext {
	t.Helper()
	_, pub, err := crypto.GenerateEd25519Key(cryptorand.Reader)
	require.NoError(t, err)
	return core.SessionContext{
		ID:           id,
		RemotePubKey: pub,
		RemoteAddr:   mustAddr(t, "/ip4/203.0.113.5/tcp/8115"),
		Type:         ty,
	}
}

func TestProtocolConnectedRegistersAndSends(t *testing.T) {
	cb := &fakeCallback{identify: NewIdentify("mainnet", FlagFullNode, "ckb/0.100.0")}
	transport := newFakeTransport()
	clk := clock.NewMock()
	p := NewProtocol(cb, WithClock(clk))

	session := testSession(t, 1, core.Outbound)
	p.Connected(transport, session)

	require.Equal(t, 1, p.remoteInfos.len())
	require.Len(t, transport.sent[1], 1)
}

func TestProtocolDisconnectedRemoves(t *testing.T) {
	cb := &fakeCallback{identify: NewIdentify("mainnet", FlagFullNode, "ckb/0.100.0")}
	transport := newFakeTransport()
	p := NewProtocol(cb)

	session := testSession(t, 1, core.Outbound)
	p.Connected(transport, session)
	p.Disconnected(session)
	require.Equal(t, 0, p.remoteInfos.len())
}

func TestProtocolReceivedTooManyAddrsDisconnects(t *testing.T) {
	cb := &fakeCallback{
		identify:        NewIdentify("mainnet", FlagFullNode, "ckb/0.100.0"),
		receivedVerdict: Continue,
		misbehaveResult: Disconnect,
	}
	transport := newFakeTransport()
	p := NewProtocol(cb)

	session := testSession(t, 1, core.Outbound)
	p.Connected(transport, session)

	addrs := make([]ma.Multiaddr, MaxAddrs+1)
	for i := range addrs {
		addrs[i] = mustAddr(t, "/ip4/8.8.8.8/tcp/8115")
	}
	remoteIdentify := NewIdentify("mainnet", FlagFullNode, "ckb/0.100.0").Encode()
	wire := Encode(addrs, nil, remoteIdentify)

	p.Received(transport, session, wire)

	require.True(t, transport.isDisconnected(1))
	require.Contains(t, cb.misbehaviorsSeen, MisbehaviorTooManyAddresses)
}

func TestProtocolReceivedDuplicateListenAddrsDisconnects(t *testing.T) {
	cb := &fakeCallback{
		identify:        NewIdentify("mainnet", FlagFullNode, "ckb/0.100.0"),
		receivedVerdict: Continue,
		misbehaveResult: Disconnect,
	}
	transport := newFakeTransport()
	p := NewProtocol(cb)

	session := testSession(t, 1, core.Outbound)
	p.Connected(transport, session)

	addrs := []ma.Multiaddr{mustAddr(t, "/ip4/8.8.8.8/tcp/8115")}
	remoteIdentify := NewIdentify("mainnet", FlagFullNode, "ckb/0.100.0").Encode()
	wire := Encode(addrs, nil, remoteIdentify)

	p.Received(transport, session, wire)
	require.False(t, transport.isDisconnected(1))

	p.Received(transport, session, wire)
	require.True(t, transport.isDisconnected(1))
	require.Contains(t, cb.misbehaviorsSeen, MisbehaviorDuplicateListenAddrs)
}

func TestProtocolReceivedInvalidDataDisconnects(t *testing.T) {
	cb := &fakeCallback{
		identify:        NewIdentify("mainnet", FlagFullNode, "ckb/0.100.0"),
		misbehaveResult: Disconnect,
	}
	transport := newFakeTransport()
	p := NewProtocol(cb)

	session := testSession(t, 1, core.Outbound)
	p.Connected(transport, session)

	p.Received(transport, session, []byte{0xff, 0xff})
	require.True(t, transport.isDisconnected(1))
	require.Contains(t, cb.misbehaviorsSeen, MisbehaviorInvalidData)
}

func TestProtocolNotifyDisconnectsOnTimeout(t *testing.T) {
	cb := &fakeCallback{
		identify:        NewIdentify("mainnet", FlagFullNode, "ckb/0.100.0"),
		misbehaveResult: Continue,
	}
	transport := newFakeTransport()
	clk := clock.NewMock()
	p := NewProtocol(cb, WithClock(clk))

	session := testSession(t, 1, core.Outbound)
	p.Connected(transport, session)

	clk.Add(DefaultTimeout + time.Second)
	p.Notify(transport, checkTimeoutToken)

	require.True(t, transport.isDisconnected(1))
	require.Contains(t, cb.misbehaviorsSeen, MisbehaviorTimeout)
}

func TestProtocolNotifyIgnoresUnknownToken(t *testing.T) {
	cb := &fakeCallback{identify: NewIdentify("mainnet", FlagFullNode, "ckb/0.100.0")}
	transport := newFakeTransport()
	clk := clock.NewMock()
	p := NewProtocol(cb, WithClock(clk))

	session := testSession(t, 1, core.Outbound)
	p.Connected(transport, session)
	clk.Add(DefaultTimeout + time.Second)

	p.Notify(transport, 999)
	require.False(t, transport.isDisconnected(1))
}

func TestProtocolGlobalIPOnlyFiltersPrivateAddrs(t *testing.T) {
	cb := &fakeCallback{
		identify:    NewIdentify("mainnet", FlagFullNode, "ckb/0.100.0"),
		listenAddrs: []ma.Multiaddr{mustAddr(t, "/ip4/192.168.1.1/tcp/8115"), mustAddr(t, "/ip4/8.8.8.8/tcp/8115")},
	}
	transport := newFakeTransport()
	p := NewProtocol(cb, WithGlobalIPOnly(true))

	session := testSession(t, 1, core.Outbound)
	p.Connected(transport, session)

	msg, ok := Decode(transport.sent[1][0])
	require.True(t, ok)
	require.Len(t, msg.ListenAddrs, 1)
}
