package ring

import "context"

// PeerClient is the set of Chord RPCs the engine issues against other
// peers. It is satisfied by an adapter over the framed peer transport
// (internal/rpc) so that this package stays free of wire-format and
// connection-pooling concerns — it only knows Chord semantics.
//
// Implementations must translate transport-level unreachability into
// ErrUnreachable and transport timeouts into ErrTimeout so the engine
// can tell "peer is dead" from "peer said no" (§4.2).
type PeerClient interface {
	Ping(ctx context.Context, endpoint string) error
	FindSuccessor(ctx context.Context, endpoint string, id Identifier) (Peer, error)
	GetPredecessor(ctx context.Context, endpoint string) (*Peer, error)
	GetSuccessorList(ctx context.Context, endpoint string) ([]Peer, error)
	Notify(ctx context.Context, endpoint string, self Peer) error
}
