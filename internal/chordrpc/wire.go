// Package chordrpc is the glue layer between the transport-agnostic
// internal/rpc frames and the domain types in internal/ring,
// internal/store and internal/job. It implements ring.PeerClient on
// top of rpc.Client, and registers rpc.Server handlers that decode a
// request, call into the right domain object, and encode the reply —
// this is the only package allowed to import both a transport package
// and a domain package, which is what keeps the rest of the module
// free of import cycles.
package chordrpc

import (
	"chordkv/internal/ring"
)

// wirePeer is ring.Peer's wire representation; kept distinct from
// ring.Peer itself so a change to one doesn't silently change the
// other's JSON shape.
type wirePeer struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
}

func toWirePeer(p ring.Peer) wirePeer {
	return wirePeer{ID: p.ID.Hex(), Endpoint: p.Endpoint}
}

func (w wirePeer) toPeer() (ring.Peer, error) {
	id, err := ring.ParseIdentifier(w.ID)
	if err != nil {
		return ring.Peer{}, err
	}
	return ring.Peer{ID: id, Endpoint: w.Endpoint}, nil
}

type findSuccessorRequest struct {
	ID string `json:"id"`
}

type findSuccessorResponse struct {
	Peer wirePeer `json:"peer"`
}

type getPredecessorResponse struct {
	Peer *wirePeer `json:"peer,omitempty"`
}

type getSuccessorListResponse struct {
	Peers []wirePeer `json:"peers"`
}

type notifyRequest struct {
	Peer wirePeer `json:"peer"`
}

type pingResponse struct {
	OK bool `json:"ok"`
}
