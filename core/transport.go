package core

import (
	"time"

	"github.com/libp2p/go-libp2p/core/protocol"
)

// TargetProtocol selects which application protocol(s) OpenProtocols should
// negotiate on a session.
type TargetProtocol struct {
	single protocol.ID
	multi  []protocol.ID
	isMulti bool
}

// SingleProtocol targets exactly one protocol, e.g. the feeler protocol.
func SingleProtocol(id protocol.ID) TargetProtocol {
	return TargetProtocol{single: id}
}

// MultiProtocol targets every protocol in ids.
func MultiProtocol(ids []protocol.ID) TargetProtocol {
	return TargetProtocol{multi: ids, isMulti: true}
}

// IDs returns the set of protocols this target resolves to.
func (t TargetProtocol) IDs() []protocol.ID {
	if t.isMulti {
		return t.multi
	}
	return []protocol.ID{t.single}
}

// SessionTransport is the out-of-scope collaborator owning the
// authenticated framed stream underneath a session: dialing, framing, and
// multiplexing are its concern, not the identify protocol's.
type SessionTransport interface {
	// Disconnect tears down the session.
	Disconnect(id SessionID) error
	// QuickSendMessage sends data out-of-band from the regular message
	// queue, with higher priority.
	QuickSendMessage(id SessionID, data []byte) error
	// SetServiceNotify registers a periodic notify tick for this
	// protocol instance, delivered as Notify(token) every interval.
	SetServiceNotify(interval time.Duration, token uint64) error
	// OpenProtocols negotiates the given application protocol(s) on an
	// already-connected session.
	OpenProtocols(id SessionID, target TargetProtocol) error
}
