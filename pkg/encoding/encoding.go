// Package encoding maps types.BroadcastMessage to and from the bytes carried in
// one transport frame. Decoding never panics on hostile input; every failure is
// reported as a *DecodeError.
package encoding

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/kajih/proto-zmq/pkg/types"
)

var (
	ErrInvalidUTF8  = errors.New("encoding: string field is not valid UTF-8")
	ErrWireType     = errors.New("encoding: unexpected wire type")
	ErrUnknownCodec = errors.New("encoding: unknown codec")
	ErrNilMessage   = errors.New("encoding: nil message")
)

// Codec is a schema-driven encode/decode pair for broadcast messages.
type Codec interface {
	Name() string
	Encode(msg *types.BroadcastMessage) ([]byte, error)
	Decode(data []byte) (*types.BroadcastMessage, error)
}

// DecodeError describes why a frame could not be decoded. Offset is the byte
// position of the failing field, or -1 when the codec does not report one.
type DecodeError struct {
	Codec  string
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%s decode: %v", e.Codec, e.Err)
	}
	return fmt.Sprintf("%s decode at byte %d: %v", e.Codec, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// CodecByName returns the codec registered under name ("proto" or "cbor").
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", Proto.Name():
		return Proto, nil
	case CBOR.Name():
		return CBOR, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// Encode serializes msg with the default protobuf codec.
func Encode(msg *types.BroadcastMessage) ([]byte, error) {
	return Proto.Encode(msg)
}

// Decode parses a protobuf frame produced by Encode.
func Decode(data []byte) (*types.BroadcastMessage, error) {
	return Proto.Decode(data)
}

func validateStrings(msg *types.BroadcastMessage) error {
	if msg == nil {
		return ErrNilMessage
	}
	if !utf8.ValidString(msg.Sender) {
		return fmt.Errorf("%w: sender", ErrInvalidUTF8)
	}
	if !utf8.ValidString(msg.Body) {
		return fmt.Errorf("%w: body", ErrInvalidUTF8)
	}
	return nil
}
