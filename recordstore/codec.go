package recordstore

import (
	"encoding/json"
	"errors"
	"time"
)

// Codec converts between the on-disk document and a [Snapshot].
//
// Decode should also apply schema checks. The store reports any decode failure as
// [ErrCorrupt].
type Codec[R, M any] interface {
	Decode(data []byte) (*Snapshot[R, M], error)
	Encode(snap *Snapshot[R, M]) ([]byte, error)
}

// JSONCodec is a generic envelope codec:
//
//	{"records": {...}, "meta": ..., "revision": N, "updated_at": "..."}
type JSONCodec[R, M any] struct{}

type jsonEnvelope[R, M any] struct {
	Records   map[string]R `json:"records"`
	Meta      M            `json:"meta"`
	Revision  uint64       `json:"revision"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Decode implements [Codec].
func (JSONCodec[R, M]) Decode(data []byte) (*Snapshot[R, M], error) {
	var env jsonEnvelope[R, M]
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Records == nil {
		return nil, errors.New("missing records section")
	}
	return &Snapshot[R, M]{
		Records:   env.Records,
		Meta:      env.Meta,
		Revision:  env.Revision,
		UpdatedAt: env.UpdatedAt,
	}, nil
}

// Encode implements [Codec].
func (JSONCodec[R, M]) Encode(snap *Snapshot[R, M]) ([]byte, error) {
	records := snap.Records
	if records == nil {
		records = map[string]R{}
	}
	return json.MarshalIndent(jsonEnvelope[R, M]{
		Records:   records,
		Meta:      snap.Meta,
		Revision:  snap.Revision,
		UpdatedAt: snap.UpdatedAt,
	}, "", "  ")
}
