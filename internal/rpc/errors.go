package rpc

import (
	"errors"
	"fmt"
)

// Transport-level errors (§7). Only ErrUnreachable implies "peer dead"
// for stabilization decisions — timeouts and remote errors do not.
var (
	ErrUnreachable  = errors.New("rpc: peer unreachable")
	ErrTimeout      = errors.New("rpc: call timed out")
	ErrFrameCorrupt = errors.New("rpc: corrupt frame")
)

// RemoteError wraps an error reply sent back by the peer (Kind==KindError).
type RemoteError struct {
	Code    uint16
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc: remote error %d: %s", e.Code, e.Message)
}
