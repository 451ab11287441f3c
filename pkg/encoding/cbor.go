package encoding

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/kajih/proto-zmq/pkg/types"
)

// CBOR is a canonical CBOR codec keyed by the same field numbers as Proto.
var CBOR Codec = newCBORCodec()

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() *cborCodec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
		UTF8:      cbor.UTF8RejectInvalid,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return &cborCodec{enc: enc, dec: dec}
}

func (c *cborCodec) Name() string { return "cbor" }

func (c *cborCodec) Encode(msg *types.BroadcastMessage) ([]byte, error) {
	if err := validateStrings(msg); err != nil {
		return nil, err
	}
	return c.enc.Marshal(msg)
}

func (c *cborCodec) Decode(data []byte) (*types.BroadcastMessage, error) {
	msg := &types.BroadcastMessage{}
	if err := c.dec.Unmarshal(data, msg); err != nil {
		return nil, &DecodeError{Codec: c.Name(), Offset: -1, Err: err}
	}
	return msg, nil
}
