package identify

import (
	"sync"

	pool "github.com/libp2p/go-buffer-pool"
	ma "github.com/multiformats/go-multiaddr"
	"google.golang.org/protobuf/encoding/protowire"
)

// IdentifyMessage is the decoded form of the wire envelope: advertised
// listen addresses, the address the sender observed us at, and the opaque
// embedded identify payload.
type IdentifyMessage struct {
	ListenAddrs  []ma.Multiaddr
	ObservedAddr ma.Multiaddr
	Identify     []byte
}

const (
	fieldListenAddrs  protowire.Number = 1
	fieldObservedAddr protowire.Number = 2
	fieldIdentify     protowire.Number = 3
)

// Encode serializes the identify envelope deterministically: listen_addrs
// in call order, then observed_addr, then the embedded identify bytes.
// Each is protobuf-wire-format length-delimited, hand-built directly on
// protowire rather than through generated/reflected proto.Message types —
// there is no .proto file behind this, just its wire grammar.
func Encode(listenAddrs []ma.Multiaddr, observedAddr ma.Multiaddr, identifyBytes []byte) []byte {
	estimate := len(identifyBytes) + 16
	for _, a := range listenAddrs {
		estimate += len(a.Bytes()) + 8
	}

	buf := pool.Get(estimate)[:0]
	for _, a := range listenAddrs {
		buf = protowire.AppendTag(buf, fieldListenAddrs, protowire.BytesType)
		buf = protowire.AppendBytes(buf, a.Bytes())
	}
	if observedAddr != nil {
		buf = protowire.AppendTag(buf, fieldObservedAddr, protowire.BytesType)
		buf = protowire.AppendBytes(buf, observedAddr.Bytes())
	}
	buf = protowire.AppendTag(buf, fieldIdentify, protowire.BytesType)
	buf = protowire.AppendBytes(buf, identifyBytes)

	out := make([]byte, len(buf))
	copy(out, buf)
	pool.Put(buf[:cap(buf)])
	return out
}

// Decode parses a wire envelope, returning ok=false on any structural
// failure (truncated varint, bad tag, malformed multiaddr bytes) rather
// than a partially-populated message.
func Decode(data []byte) (*IdentifyMessage, bool) {
	msg := &IdentifyMessage{}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, false
		}
		data = data[n:]

		if typ != protowire.BytesType {
			return nil, false
		}
		val, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, false
		}
		data = data[n:]

		switch num {
		case fieldListenAddrs:
			addr, err := ma.NewMultiaddrBytes(val)
			if err != nil {
				return nil, false
			}
			msg.ListenAddrs = append(msg.ListenAddrs, addr)
		case fieldObservedAddr:
			addr, err := ma.NewMultiaddrBytes(val)
			if err != nil {
				return nil, false
			}
			msg.ObservedAddr = addr
		case fieldIdentify:
			msg.Identify = append([]byte(nil), val...)
		default:
			// forward-compatible: ignore unknown fields.
		}
	}

	return msg, true
}

const (
	payloadFieldName          protowire.Number = 1
	payloadFieldFlag          protowire.Number = 2
	payloadFieldClientVersion protowire.Number = 3
)

// encodeIdentifyPayload serializes the inner { name, flag, client_version }
// identity payload embedded in every envelope.
func encodeIdentifyPayload(name string, flags Flags, clientVersion string) []byte {
	estimate := len(name) + len(clientVersion) + 24
	buf := pool.Get(estimate)[:0]

	buf = protowire.AppendTag(buf, payloadFieldName, protowire.BytesType)
	buf = protowire.AppendString(buf, name)

	buf = protowire.AppendTag(buf, payloadFieldFlag, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(flags))

	buf = protowire.AppendTag(buf, payloadFieldClientVersion, protowire.BytesType)
	buf = protowire.AppendString(buf, clientVersion)

	out := make([]byte, len(buf))
	copy(out, buf)
	pool.Put(buf[:cap(buf)])
	return out
}

// decodeIdentifyPayload parses the inner identify payload. ok is false on
// any structural failure.
func decodeIdentifyPayload(data []byte) (name string, flags Flags, clientVersion string, ok bool) {
	var sawName, sawFlag, sawVersion bool

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", 0, "", false
		}
		data = data[n:]

		switch num {
		case payloadFieldName:
			if typ != protowire.BytesType {
				return "", 0, "", false
			}
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return "", 0, "", false
			}
			data = data[n:]
			name, sawName = v, true
		case payloadFieldFlag:
			if typ != protowire.VarintType {
				return "", 0, "", false
			}
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return "", 0, "", false
			}
			data = data[n:]
			flags, sawFlag = Flags(v), true
		case payloadFieldClientVersion:
			if typ != protowire.BytesType {
				return "", 0, "", false
			}
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return "", 0, "", false
			}
			data = data[n:]
			clientVersion, sawVersion = v, true
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return "", 0, "", false
			}
			data = data[n:]
		}
	}

	if !sawName || !sawFlag || !sawVersion {
		return "", 0, "", false
	}
	return name, flags, clientVersion, true
}

// Identify is the local identity advertised over every handshake: network
// name, advertised capability flags, and client version string. It is
// immutable after construction except for the lazily-populated encoding
// cache.
type Identify struct {
	name          string
	clientVersion string
	flags         Flags

	mu     sync.Mutex
	cached []byte
}

// NewIdentify builds a local identity. flags must be non-zero — it is
// invalid on the wire, so an embedder advertising 0 would be unable to
// complete any handshake.
func NewIdentify(name string, flags Flags, clientVersion string) *Identify {
	return &Identify{name: name, flags: flags, clientVersion: clientVersion}
}

// Encode returns the cached encoded payload, computing it on first call.
func (id *Identify) Encode() []byte {
	id.mu.Lock()
	defer id.mu.Unlock()
	if id.cached == nil {
		id.cached = encodeIdentifyPayload(id.name, id.flags, id.clientVersion)
	}
	return id.cached
}

// Verify decodes a remote identify payload and checks it against the local
// identity: the network name must match and the remote flags must be
// non-zero. Both failures are surfaced identically — callers that need to
// distinguish "wrong network" from "malformed payload" should decode
// separately.
func (id *Identify) Verify(data []byte) (remoteFlags Flags, clientVersion string, ok bool) {
	name, flags, version, decoded := decodeIdentifyPayload(data)
	if !decoded || name != id.name || flags == 0 {
		return 0, "", false
	}
	return flags, version, true
}
