package chordrpc

import (
	"encoding/json"

	"chordkv/internal/ring"
	"chordkv/internal/rpc"
	"chordkv/internal/store"
)

// RegisterStoreHandlers wires the DHT's put/get/transfer_range RPCs
// onto server, dispatching into s. Put/Get hash the key with
// ring.HashID, the same way internal/node's handoff selects keys, so
// ownership is checked against the same identifier on every path into
// the store.
func RegisterStoreHandlers(server *rpc.Server, s *store.Store) {
	server.Handle(rpc.KindPut, func(body json.RawMessage) (any, error) {
		var req putRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, &rpc.CodedError{Code: 1, Message: "bad put request: " + err.Error()}
		}
		rec, err := s.Put(req.Key, ring.HashID([]byte(req.Key)), req.Value)
		if err != nil {
			return nil, codedErrorFor(err)
		}
		return putResponse{Record: toWireRecord(rec)}, nil
	})

	server.Handle(rpc.KindGet, func(body json.RawMessage) (any, error) {
		var req getRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, &rpc.CodedError{Code: 1, Message: "bad get request: " + err.Error()}
		}
		rec, found, err := s.Get(req.Key, ring.HashID([]byte(req.Key)))
		if err != nil {
			return nil, codedErrorFor(err)
		}
		return getResponse{Record: toWireRecord(rec), Found: found}, nil
	})

	server.Handle(rpc.KindTransferRange, func(body json.RawMessage) (any, error) {
		var req transferRangeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, &rpc.CodedError{Code: 1, Message: "bad transfer_range request: " + err.Error()}
		}
		for key, wr := range req.Entries {
			if _, err := s.ApplyRemote(key, fromWireRecord(wr)); err != nil {
				return nil, &rpc.CodedError{Code: 1, Message: "apply " + key + ": " + err.Error()}
			}
		}
		return struct{}{}, nil
	})
}
