package identify

// Misbehavior classifies a protocol-level fault reported by a remote peer.
type Misbehavior int

const (
	// MisbehaviorDuplicateListenAddrs: listen addresses sent twice for
	// the same session.
	MisbehaviorDuplicateListenAddrs Misbehavior = iota
	// MisbehaviorDuplicateObservedAddr: observed address sent twice for
	// the same session.
	MisbehaviorDuplicateObservedAddr
	// MisbehaviorTimeout: neither listen addrs nor observed addr arrived
	// before the handshake deadline.
	MisbehaviorTimeout
	// MisbehaviorInvalidData: the received bytes did not decode as an
	// identify message.
	MisbehaviorInvalidData
	// MisbehaviorTooManyAddresses: more than MaxAddrs listen addresses
	// in one message.
	MisbehaviorTooManyAddresses
)

func (m Misbehavior) String() string {
	switch m {
	case MisbehaviorDuplicateListenAddrs:
		return "duplicate-listen-addrs"
	case MisbehaviorDuplicateObservedAddr:
		return "duplicate-observed-addr"
	case MisbehaviorTimeout:
		return "timeout"
	case MisbehaviorInvalidData:
		return "invalid-data"
	case MisbehaviorTooManyAddresses:
		return "too-many-addresses"
	default:
		return "unknown"
	}
}

// MisbehaviorReport is what gets handed to Callback.Misbehave. Count is
// only meaningful for MisbehaviorTooManyAddresses.
type MisbehaviorReport struct {
	Kind  Misbehavior
	Count int
}

// MisbehaveResult is the callback's verdict on a reported fault.
type MisbehaveResult int

const (
	Continue MisbehaveResult = iota
	Disconnect
)

func (r MisbehaveResult) IsDisconnect() bool { return r == Disconnect }
