package encoding

import (
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/kajih/proto-zmq/pkg/types"
)

// Field numbers of the MessageBroadcast schema:
//
//	message MessageBroadcast {
//	  string sender  = 1;
//	  string message = 2;
//	  uint64 time    = 3;
//	}
const (
	fieldSender  protowire.Number = 1
	fieldMessage protowire.Number = 2
	fieldTime    protowire.Number = 3
)

// Proto is the protocol-buffer wire format codec.
var Proto Codec = protoCodec{}

type protoCodec struct{}

func (protoCodec) Name() string { return "proto" }

// Encode writes all three fields in field-number order, zero values included,
// so equal messages always produce identical bytes.
func (protoCodec) Encode(msg *types.BroadcastMessage) ([]byte, error) {
	if err := validateStrings(msg); err != nil {
		return nil, err
	}

	size := protowire.SizeTag(fieldSender) + protowire.SizeBytes(len(msg.Sender)) +
		protowire.SizeTag(fieldMessage) + protowire.SizeBytes(len(msg.Body)) +
		protowire.SizeTag(fieldTime) + protowire.SizeVarint(msg.Timestamp)

	b := make([]byte, 0, size)
	b = protowire.AppendTag(b, fieldSender, protowire.BytesType)
	b = protowire.AppendString(b, msg.Sender)
	b = protowire.AppendTag(b, fieldMessage, protowire.BytesType)
	b = protowire.AppendString(b, msg.Body)
	b = protowire.AppendTag(b, fieldTime, protowire.VarintType)
	b = protowire.AppendVarint(b, msg.Timestamp)
	return b, nil
}

// Decode follows protobuf merge semantics: absent fields keep their zero value,
// a repeated scalar field overwrites the earlier one and unknown fields are
// skipped.
func (c protoCodec) Decode(data []byte) (*types.BroadcastMessage, error) {
	msg := &types.BroadcastMessage{}

	for offset := 0; offset < len(data); {
		num, typ, n := protowire.ConsumeTag(data[offset:])
		if n < 0 {
			return nil, c.fail(offset, protowire.ParseError(n))
		}
		fieldStart := offset
		offset += n

		switch num {
		case fieldSender, fieldMessage:
			if typ != protowire.BytesType {
				return nil, c.fail(fieldStart, fmt.Errorf("%w: field %d has type %d", ErrWireType, num, typ))
			}
			v, n := protowire.ConsumeBytes(data[offset:])
			if n < 0 {
				return nil, c.fail(fieldStart, protowire.ParseError(n))
			}
			if !utf8.Valid(v) {
				return nil, c.fail(fieldStart, fmt.Errorf("%w: field %d", ErrInvalidUTF8, num))
			}
			if num == fieldSender {
				msg.Sender = string(v)
			} else {
				msg.Body = string(v)
			}
			offset += n

		case fieldTime:
			if typ != protowire.VarintType {
				return nil, c.fail(fieldStart, fmt.Errorf("%w: field %d has type %d", ErrWireType, num, typ))
			}
			v, n := protowire.ConsumeVarint(data[offset:])
			if n < 0 {
				return nil, c.fail(fieldStart, protowire.ParseError(n))
			}
			msg.Timestamp = v
			offset += n

		default:
			n := protowire.ConsumeFieldValue(num, typ, data[offset:])
			if n < 0 {
				return nil, c.fail(fieldStart, protowire.ParseError(n))
			}
			offset += n
		}
	}

	return msg, nil
}

func (c protoCodec) fail(offset int, err error) error {
	return &DecodeError{Codec: c.Name(), Offset: offset, Err: err}
}
