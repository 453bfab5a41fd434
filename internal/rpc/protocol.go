// Package rpc implements the peer-to-peer wire transport: length-prefixed
// frames carrying a small JSON envelope, correlated by an opaque id
// generated at the sender, with a per-call deadline that doubles as a
// liveness probe (§4.2, §6).
//
// This package knows nothing about Chord, the DHT, or jobs — it only
// knows how to get bytes to a peer and back, matching a reply to its
// request. internal/chordrpc layers the domain-specific encode/decode
// on top.
package rpc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Kind identifies the RPC being carried. Replies set the 0x80 bit on
// the request's Kind; errors use the reserved Kind 0xFF.
type Kind uint8

const (
	KindPing             Kind = 0x01
	KindFindSuccessor    Kind = 0x02
	KindGetPredecessor   Kind = 0x03
	KindGetSuccessorList Kind = 0x04
	KindNotify           Kind = 0x05
	KindPut              Kind = 0x06
	KindGet              Kind = 0x07
	KindTransferRange    Kind = 0x08
	KindSubmitJob        Kind = 0x09
	KindJobStatus        Kind = 0x0A
	KindListJobs         Kind = 0x0B

	replyBit   = 0x80
	KindError  = 0xFF
)

// IsReply reports whether k has the reply bit set.
func (k Kind) IsReply() bool { return k&replyBit != 0 }

// Reply returns k with the reply bit set.
func (k Kind) Reply() Kind { return k | replyBit }

// Request returns k with the reply bit cleared, recovering the
// original request kind from a reply.
func (k Kind) Request() Kind { return k &^ replyBit }

// Envelope is the payload inside every frame.
type Envelope struct {
	CorrelationID uint64          `json:"correlation_id"`
	Kind          Kind            `json:"kind"`
	Body          json.RawMessage `json:"body,omitempty"`
}

// ErrorBody is the body of a Kind==KindError envelope.
type ErrorBody struct {
	Code    uint16 `json:"code"`
	Message string `json:"message"`
}

const maxFrameLen = 16 << 20 // 16MiB guards against a corrupt length prefix

// writeFrame writes a 4-byte big-endian length prefix followed by the
// JSON-encoded envelope.
func writeFrame(w io.Writer, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("rpc: marshal envelope: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// readFrame reads one frame and decodes its envelope.
func readFrame(r io.Reader) (Envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameLen {
		return Envelope{}, ErrFrameCorrupt
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrFrameCorrupt, err)
	}
	return env, nil
}
