package ring

// Peer is a handle to a ring member: its identifier and the transport
// address other peers dial to reach it. Equality is by ID, never by
// Endpoint (an endpoint can be reused after a restart under the same
// identity, or a peer can rebind to a new address and keep its ID if
// the caller constructs it that way — the spec treats endpoints as
// mutable, IDs as the durable identity).
type Peer struct {
	ID       Identifier `json:"id"`
	Endpoint string     `json:"endpoint"`
}

// Equal compares two peers by identifier only.
func (p Peer) Equal(other Peer) bool {
	return p.ID.Equal(other.ID)
}

// IsZero reports whether p is the unset Peer value.
func (p Peer) IsZero() bool {
	return p.Endpoint == "" && p.ID == Identifier{}
}
