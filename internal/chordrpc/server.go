package chordrpc

import (
	"context"
	"encoding/json"

	"chordkv/internal/ring"
	"chordkv/internal/rpc"
)

// RegisterRingHandlers wires the five Chord peer RPCs onto server,
// decoding each request and dispatching into engine.
func RegisterRingHandlers(server *rpc.Server, engine *ring.Engine) {
	server.Handle(rpc.KindPing, func(json.RawMessage) (any, error) {
		return pingResponse{OK: true}, nil
	})

	server.Handle(rpc.KindFindSuccessor, func(body json.RawMessage) (any, error) {
		var req findSuccessorRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, &rpc.CodedError{Code: 1, Message: "bad find_successor request: " + err.Error()}
		}
		id, err := ring.ParseIdentifier(req.ID)
		if err != nil {
			return nil, &rpc.CodedError{Code: 1, Message: err.Error()}
		}
		p, err := engine.FindSuccessor(context.Background(), id)
		if err != nil {
			return nil, &rpc.CodedError{Code: 2, Message: err.Error()}
		}
		return findSuccessorResponse{Peer: toWirePeer(p)}, nil
	})

	server.Handle(rpc.KindGetPredecessor, func(json.RawMessage) (any, error) {
		pred := engine.State().Predecessor()
		if pred == nil {
			return getPredecessorResponse{}, nil
		}
		wp := toWirePeer(*pred)
		return getPredecessorResponse{Peer: &wp}, nil
	})

	server.Handle(rpc.KindGetSuccessorList, func(json.RawMessage) (any, error) {
		list := engine.State().SuccessorList()
		wps := make([]wirePeer, len(list))
		for i, p := range list {
			wps[i] = toWirePeer(p)
		}
		return getSuccessorListResponse{Peers: wps}, nil
	})

	server.Handle(rpc.KindNotify, func(body json.RawMessage) (any, error) {
		var req notifyRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, &rpc.CodedError{Code: 1, Message: "bad notify request: " + err.Error()}
		}
		from, err := req.Peer.toPeer()
		if err != nil {
			return nil, &rpc.CodedError{Code: 1, Message: err.Error()}
		}
		engine.Notify(from)
		return struct{}{}, nil
	})
}

// notOwnerCode is the wire error code store handlers use to signal
// ring.NotOwnerError, distinct from a generic failure (code 1) so
// StoreClient's translateStoreErr can rebuild the typed error without
// string-matching the message.
const notOwnerCode = 3

func codedErrorFor(err error) *rpc.CodedError {
	var noErr *ring.NotOwnerError
	if asNotOwner(err, &noErr) {
		return &rpc.CodedError{Code: notOwnerCode, Message: noErr.Expected.Endpoint}
	}
	return &rpc.CodedError{Code: 1, Message: err.Error()}
}

func asNotOwner(err error, target **ring.NotOwnerError) bool {
	if e, ok := err.(*ring.NotOwnerError); ok {
		*target = e
		return true
	}
	return false
}
