package chordrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chordkv/internal/ring"
	"chordkv/internal/rpc"
)

// RingClient adapts rpc.Client to ring.PeerClient, translating Chord's
// domain calls into framed RPCs and mapping transport errors onto the
// ring package's own error sentinels so Engine's failure-handling
// logic never has to know a network package exists.
type RingClient struct {
	rpc *rpc.Client
}

// NewRingClient wraps an rpc.Client for use as a ring.PeerClient.
func NewRingClient(c *rpc.Client) *RingClient {
	return &RingClient{rpc: c}
}

var _ ring.PeerClient = (*RingClient)(nil)

func (c *RingClient) Ping(ctx context.Context, endpoint string) error {
	_, err := c.rpc.Call(ctx, endpoint, rpc.KindPing, struct{}{})
	return translateErr(err)
}

func (c *RingClient) FindSuccessor(ctx context.Context, endpoint string, id ring.Identifier) (ring.Peer, error) {
	raw, err := c.rpc.Call(ctx, endpoint, rpc.KindFindSuccessor, findSuccessorRequest{ID: id.Hex()})
	if err != nil {
		return ring.Peer{}, translateErr(err)
	}
	var resp findSuccessorResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ring.Peer{}, fmt.Errorf("%w: %v", ring.ErrFrameCorrupt, err)
	}
	return resp.Peer.toPeer()
}

func (c *RingClient) GetPredecessor(ctx context.Context, endpoint string) (*ring.Peer, error) {
	raw, err := c.rpc.Call(ctx, endpoint, rpc.KindGetPredecessor, struct{}{})
	if err != nil {
		return nil, translateErr(err)
	}
	var resp getPredecessorResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ring.ErrFrameCorrupt, err)
	}
	if resp.Peer == nil {
		return nil, nil
	}
	p, err := resp.Peer.toPeer()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *RingClient) GetSuccessorList(ctx context.Context, endpoint string) ([]ring.Peer, error) {
	raw, err := c.rpc.Call(ctx, endpoint, rpc.KindGetSuccessorList, struct{}{})
	if err != nil {
		return nil, translateErr(err)
	}
	var resp getSuccessorListResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ring.ErrFrameCorrupt, err)
	}
	out := make([]ring.Peer, 0, len(resp.Peers))
	for _, wp := range resp.Peers {
		p, err := wp.toPeer()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *RingClient) Notify(ctx context.Context, endpoint string, self ring.Peer) error {
	_, err := c.rpc.Call(ctx, endpoint, rpc.KindNotify, notifyRequest{Peer: toWirePeer(self)})
	return translateErr(err)
}

// translateErr maps rpc-level sentinels onto ring-level ones so
// Engine's errors.Is checks against ring.ErrUnreachable etc. work
// regardless of which package actually made the call.
func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rpc.ErrUnreachable):
		return fmt.Errorf("%w: %v", ring.ErrUnreachable, err)
	case errors.Is(err, rpc.ErrTimeout):
		return fmt.Errorf("%w: %v", ring.ErrTimeout, err)
	case errors.Is(err, rpc.ErrFrameCorrupt):
		return fmt.Errorf("%w: %v", ring.ErrFrameCorrupt, err)
	default:
		return err
	}
}
