package identify

// Flags is a 64-bit capability bitset advertised in every identify
// handshake. The zero value is invalid on the wire — a peer must
// advertise at least one capability.
type Flags uint64

// FlagFullNode is the only capability bit currently defined: the peer
// supports the complete local protocol set.
const FlagFullNode Flags = 0x1

// Contains reports whether f has every bit set in other.
func (f Flags) Contains(other Flags) bool {
	return f&other == other
}
