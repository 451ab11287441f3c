// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Frame types of the native tcp backend
const (
	// MsgSubscribe is the first frame a subscriber sends after connecting
	MsgSubscribe uint8 = 1

	// MsgPublish carries one broadcast payload from publisher to subscriber
	MsgPublish uint8 = 2

	// HeaderSize is 4 bytes length + 1 byte type
	HeaderSize = 5

	// MaxMessageSize is 16MB
	MaxMessageSize = 16 * 1024 * 1024
)

// SubscribeRequest identifies a subscriber and the prefix filter it applies.
type SubscribeRequest struct {
	ID     string `json:"id"`
	Filter []byte `json:"filter,omitempty"`
}

func (r *SubscribeRequest) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

func (r *SubscribeRequest) Unmarshal(data []byte) error {
	return json.Unmarshal(data, r)
}

// WriteMessage writes a complete frame with header to the writer
func WriteMessage(w io.Writer, msgType uint8, payload []byte) error {
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(payload), MaxMessageSize)
	}

	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(payload)))
	header[4] = msgType

	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}

// ReadMessage reads a complete frame with header from the reader
func ReadMessage(r io.Reader) (uint8, []byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}

	length := binary.BigEndian.Uint32(header[0:4])
	msgType := header[4]

	if length > MaxMessageSize {
		return 0, nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, MaxMessageSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}

	return msgType, payload, nil
}
