package chordrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"chordkv/internal/ring"
	"chordkv/internal/rpc"
	"chordkv/internal/store"
)

// StoreClient calls a remote node's store RPCs. internal/node uses
// TransferRange for handoff and store.Replicator uses it for
// mirroring; nothing in the module calls Put or Get on it.
type StoreClient struct {
	rpc *rpc.Client
}

func NewStoreClient(c *rpc.Client) *StoreClient {
	return &StoreClient{rpc: c}
}

func (c *StoreClient) Put(ctx context.Context, endpoint, key, value string) (store.Record, error) {
	raw, err := c.rpc.Call(ctx, endpoint, rpc.KindPut, putRequest{Key: key, Value: value})
	if err != nil {
		return store.Record{}, translateStoreErr(err)
	}
	var resp putResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return store.Record{}, fmt.Errorf("%w: %v", rpc.ErrFrameCorrupt, err)
	}
	return fromWireRecord(resp.Record), nil
}

func (c *StoreClient) Get(ctx context.Context, endpoint, key string) (store.Record, bool, error) {
	raw, err := c.rpc.Call(ctx, endpoint, rpc.KindGet, getRequest{Key: key})
	if err != nil {
		return store.Record{}, false, translateStoreErr(err)
	}
	var resp getResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return store.Record{}, false, fmt.Errorf("%w: %v", rpc.ErrFrameCorrupt, err)
	}
	return fromWireRecord(resp.Record), resp.Found, nil
}

// TransferRange pushes entries to endpoint's store, used when this
// node's predecessor changes and a slice of keys must hand off to the
// new owner (§4.5).
func (c *StoreClient) TransferRange(ctx context.Context, endpoint string, entries map[string]store.Record) error {
	wire := make(map[string]wireRecord, len(entries))
	for k, r := range entries {
		wire[k] = toWireRecord(r)
	}
	_, err := c.rpc.Call(ctx, endpoint, rpc.KindTransferRange, transferRangeRequest{Entries: wire})
	return translateStoreErr(err)
}

// translateStoreErr surfaces a *ring.NotOwnerError across the wire
// boundary so callers can retry against the hinted owner exactly as
// they would for a local NotOwnerError.
func translateStoreErr(err error) error {
	var re *rpc.RemoteError
	if ok := asRemoteError(err, &re); ok && re.Code == notOwnerCode {
		return &ring.NotOwnerError{Expected: ring.Peer{Endpoint: re.Message}}
	}
	return err
}

func asRemoteError(err error, target **rpc.RemoteError) bool {
	e, ok := err.(*rpc.RemoteError)
	if ok {
		*target = e
	}
	return ok
}
