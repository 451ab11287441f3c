package broadcast

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kajih/proto-zmq/pkg/encoding"
	"github.com/kajih/proto-zmq/pkg/transport"
	"github.com/kajih/proto-zmq/pkg/types"
)

func encodeFrame(t *testing.T, codec encoding.Codec, sender, body string, ts uint64) []byte {
	t.Helper()
	frame, err := codec.Encode(&types.BroadcastMessage{Sender: sender, Body: body, Timestamp: ts})
	require.NoError(t, err)
	return frame
}

func TestFormatTimestamp(t *testing.T) {
	testCases := []struct {
		ts   uint64
		want string
	}{
		{0, InvalidTimePlaceholder},
		{1, "1970-01-01 00:00:01 UTC"},
		{1709296245, "2024-03-01 12:30:45 UTC"},
		{253402300799, "9999-12-31 23:59:59 UTC"},
		{253402300800, InvalidTimePlaceholder},
		{^uint64(0), InvalidTimePlaceholder},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, FormatTimestamp(tc.ts), "ts %d", tc.ts)
	}
}

func TestSubscriber_ReportsMessages(t *testing.T) {
	sock := &fakeSubscriber{
		frames: [][]byte{encodeFrame(t, encoding.Proto, "zmq_srv", "hello", 1709296245)},
		err:    errBoom,
	}
	var out bytes.Buffer
	err := NewSubscriber(sock, SubscriberConfig{Output: &out}).Run(context.Background())

	assert.ErrorIs(t, err, ErrTransportReceive)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "Received: 2024-03-01 12:30:45 UTC\n"+
		"Received: zmq_srv\n"+
		"Received: hello\n", out.String())
}

func TestSubscriber_ZeroTimestamp(t *testing.T) {
	sock := &fakeSubscriber{frames: [][]byte{encodeFrame(t, encoding.Proto, "s", "b", 0)}}
	var out bytes.Buffer
	_ = NewSubscriber(sock, SubscriberConfig{Output: &out}).Run(context.Background())
	assert.Contains(t, out.String(), "Received: invalid time\n")
}

func TestSubscriber_SurvivesMalformedFrames(t *testing.T) {
	good := encodeFrame(t, encoding.Proto, "zmq_srv", "after", 1)
	sock := &fakeSubscriber{frames: [][]byte{
		good[:len(good)-3],
		{0x0a, 0xff},
		{0x0b},
		good,
	}}
	var out bytes.Buffer
	err := NewSubscriber(sock, SubscriberConfig{Output: &out}).Run(context.Background())
	assert.ErrorIs(t, err, ErrTransportReceive)
	assert.ErrorIs(t, err, transport.ErrClosed)

	assert.Equal(t, 3, strings.Count(out.String(), "Deserialize error "))
	assert.True(t, strings.HasSuffix(out.String(), "Received: after\n"), out.String())
}

func TestSubscriber_CBORCodec(t *testing.T) {
	sock := &fakeSubscriber{frames: [][]byte{
		encodeFrame(t, encoding.Proto, "zmq_srv", "wrong codec", 1),
		encodeFrame(t, encoding.CBOR, "zmq_srv", "cbor body", 1),
	}}
	var out bytes.Buffer
	_ = NewSubscriber(sock, SubscriberConfig{Codec: encoding.CBOR, Output: &out}).Run(context.Background())

	assert.Contains(t, out.String(), "Deserialize error ")
	assert.Contains(t, out.String(), "Received: cbor body\n")
}

func TestSubscriber_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sock := &fakeSubscriber{frames: [][]byte{encodeFrame(t, encoding.Proto, "s", "b", 1)}}
	var out bytes.Buffer
	assert.ErrorIs(t, NewSubscriber(sock, SubscriberConfig{Output: &out}).Run(ctx), context.Canceled)
	assert.NotContains(t, out.String(), "Received:")
}
