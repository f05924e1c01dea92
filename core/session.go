// Package core holds the collaborator interfaces and shared wire types that
// the identify protocol and the transaction pool are built against. Nothing
// in this package dials a socket, opens a file, or parses a config — those
// belong to the embedder.
package core

import (
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// SessionID identifies a single authenticated transport connection.
type SessionID uint64

// SessionType distinguishes which side of a session dialed the other.
type SessionType uint8

const (
	Inbound SessionType = iota
	Outbound
)

func (t SessionType) IsInbound() bool  { return t == Inbound }
func (t SessionType) IsOutbound() bool { return t == Outbound }

func (t SessionType) String() string {
	if t == Outbound {
		return "outbound"
	}
	return "inbound"
}

// SessionContext is the per-session information the session transport
// exposes to protocol handlers. It is immutable for the session's lifetime.
type SessionContext struct {
	ID           SessionID
	RemotePubKey crypto.PubKey
	RemoteAddr   ma.Multiaddr
	Type         SessionType
}

// PeerID derives the peer identity from the session's authenticated public
// key. ok is false for a session with no public key (e.g. an insecure
// transport), in which case the identify protocol must not proceed.
func (s SessionContext) PeerID() (id peer.ID, ok bool) {
	if s.RemotePubKey == nil {
		return "", false
	}
	id, err := peer.IDFromPublicKey(s.RemotePubKey)
	if err != nil {
		return "", false
	}
	return id, true
}
