package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kajih/proto-zmq/pkg/encoding"
	"github.com/kajih/proto-zmq/pkg/logger"
	"github.com/kajih/proto-zmq/pkg/transport"
	"github.com/kajih/proto-zmq/pkg/types"
)

const (
	// TimestampLayout renders broadcast timestamps in UTC.
	TimestampLayout = "2006-01-02 15:04:05 UTC"
	// InvalidTimePlaceholder is shown for timestamps that cannot be rendered.
	InvalidTimePlaceholder = "invalid time"
)

// ErrTransportReceive is returned when the transport stops delivering frames.
var ErrTransportReceive = errors.New("transport receive failed")

// FormatTimestamp renders seconds since the epoch for display.
func FormatTimestamp(ts uint64) string {
	msg := types.BroadcastMessage{Timestamp: ts}
	t, ok := msg.Time()
	if !ok {
		return InvalidTimePlaceholder
	}
	return t.Format(TimestampLayout)
}

// SubscriberConfig holds the knobs of a Subscriber. Zero values pick the defaults.
type SubscriberConfig struct {
	Codec  encoding.Codec
	Output io.Writer
}

// Subscriber decodes every frame the transport delivers and prints it.
type Subscriber struct {
	sock   transport.Subscriber
	codec  encoding.Codec
	output io.Writer
}

// NewSubscriber wraps an already connected transport. The caller keeps
// ownership of sock and closes it after Run returns.
func NewSubscriber(sock transport.Subscriber, config SubscriberConfig) *Subscriber {
	s := &Subscriber{
		sock:   sock,
		codec:  config.Codec,
		output: config.Output,
	}
	if s.codec == nil {
		s.codec = encoding.Proto
	}
	if s.output == nil {
		s.output = os.Stdout
	}
	return s
}

// Run receives until the transport fails, which is the only way out besides
// ctx being done between frames. Frames that fail to decode are reported and
// skipped.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := s.sock.Receive()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTransportReceive, err)
		}

		msg, err := s.codec.Decode(frame)
		if err != nil {
			fmt.Fprintf(s.output, "Deserialize error %v\n", err)
			s.logDecodeError(frame, err)
			continue
		}

		fmt.Fprintf(s.output, "Received: %s\n", FormatTimestamp(msg.Timestamp))
		fmt.Fprintf(s.output, "Received: %s\n", msg.Sender)
		fmt.Fprintf(s.output, "Received: %s\n", msg.Body)
	}
}

func (s *Subscriber) logDecodeError(frame []byte, err error) {
	keyvals := []any{"codec", s.codec.Name(), "bytes", len(frame), "err", err}
	var decodeErr *encoding.DecodeError
	if errors.As(err, &decodeErr) && decodeErr.Offset >= 0 {
		keyvals = append(keyvals, "offset", decodeErr.Offset)
	}
	logger.Warn("Dropping frame that failed to decode", keyvals...)
}
