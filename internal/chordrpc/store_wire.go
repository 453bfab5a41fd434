package chordrpc

import (
	"time"

	"chordkv/internal/store"
)

type wireRecord struct {
	Value     string `json:"value"`
	Version   uint64 `json:"version"`
	Tombstone bool   `json:"tombstone"`
	UpdatedAt int64  `json:"updated_at_unix_nano"`
}

func toWireRecord(r store.Record) wireRecord {
	return wireRecord{
		Value:     r.Value,
		Version:   r.Version,
		Tombstone: r.Tombstone,
		UpdatedAt: r.UpdatedAt.UnixNano(),
	}
}

func fromWireRecord(w wireRecord) store.Record {
	return store.Record{
		Value:     w.Value,
		Version:   w.Version,
		Tombstone: w.Tombstone,
		UpdatedAt: time.Unix(0, w.UpdatedAt).UTC(),
	}
}

type putRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type putResponse struct {
	Record wireRecord `json:"record"`
}

type getRequest struct {
	Key string `json:"key"`
}

type getResponse struct {
	Record wireRecord `json:"record"`
	Found  bool       `json:"found"`
}

type transferRangeRequest struct {
	Entries map[string]wireRecord `json:"entries"`
}
