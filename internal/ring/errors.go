package ring

import "errors"

// Transport errors (§7): recovered inside the engine via alternate
// fingers or successor failover wherever possible; only surfaced once
// every option is exhausted.
var (
	ErrUnreachable  = errors.New("ring: peer unreachable")
	ErrTimeout      = errors.New("ring: rpc timed out")
	ErrFrameCorrupt = errors.New("ring: corrupt rpc frame")
)

// Protocol errors (§7).
var (
	ErrLookupExhausted = errors.New("ring: lookup exhausted all candidate peers")
	ErrRingDetached    = errors.New("ring: node has no reachable successor")
)

// NotOwnerError reports that a put arrived at a peer that does not
// currently own the key's arc, naming who (as far as this peer knows)
// does.
type NotOwnerError struct {
	Expected Peer
}

func (e *NotOwnerError) Error() string {
	return "ring: not owner, expected " + e.Expected.Endpoint
}

// ErrNotOwner is a sentinel for callers that only need errors.Is, not
// the Expected peer hint carried by NotOwnerError.
var ErrNotOwner = errors.New("ring: not owner")

// Is lets errors.Is(err, ErrNotOwner) match a *NotOwnerError.
func (e *NotOwnerError) Is(target error) bool {
	return target == ErrNotOwner
}
