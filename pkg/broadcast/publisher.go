package broadcast

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kajih/proto-zmq/pkg/encoding"
	"github.com/kajih/proto-zmq/pkg/logger"
	"github.com/kajih/proto-zmq/pkg/transport"
	"github.com/kajih/proto-zmq/pkg/types"
)

// DefaultSender is the sender identity stamped on every message unless
// configured otherwise.
const DefaultSender = "zmq_srv"

var (
	// ErrInputRead is returned when the operator input can no longer be read,
	// including when it ends without a terminating empty line.
	ErrInputRead = errors.New("input read failed")
	// ErrTransportSend is returned when a frame cannot be handed to the transport.
	ErrTransportSend = errors.New("transport send failed")
)

// PublisherConfig holds the knobs of a Publisher. Zero values pick the defaults.
type PublisherConfig struct {
	Sender string
	Codec  encoding.Codec
	Clock  func() time.Time
	Input  io.Reader
	Output io.Writer
}

// Publisher reads one line at a time and broadcasts each non-empty line as a
// BroadcastMessage. An empty line ends the session.
type Publisher struct {
	sock   transport.Publisher
	sender string
	codec  encoding.Codec
	clock  func() time.Time
	input  *bufio.Reader
	output io.Writer
}

// NewPublisher wraps an already bound transport. The caller keeps ownership of
// sock and closes it after Run returns.
func NewPublisher(sock transport.Publisher, config PublisherConfig) *Publisher {
	p := &Publisher{
		sock:   sock,
		sender: config.Sender,
		codec:  config.Codec,
		clock:  config.Clock,
		output: config.Output,
	}
	if p.sender == "" {
		p.sender = DefaultSender
	}
	if p.codec == nil {
		p.codec = encoding.Proto
	}
	if p.clock == nil {
		p.clock = time.Now
	}
	if p.output == nil {
		p.output = os.Stdout
	}
	input := config.Input
	if input == nil {
		input = os.Stdin
	}
	p.input = bufio.NewReader(input)
	return p
}

// Run drives the publish loop until an empty line (nil) or a fatal input or
// transport error. ctx is checked between lines; a pending read is not
// interrupted.
func (p *Publisher) Run(ctx context.Context) error {
	fmt.Fprintf(p.output, "Setting up server at:[%s]\n", p.sock.Endpoint())

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(p.output, "Enter :")
		line, err := p.readLine()
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}

		msg := types.NewBroadcastMessage(p.sender, line, p.clock())
		fmt.Fprintf(p.output, "Sending:[%s]\n", line)

		frame, err := p.codec.Encode(msg)
		if err != nil {
			fmt.Fprintf(p.output, "Error serializing message %v\n", err)
			logger.Warn("Skipping message that failed to encode", "codec", p.codec.Name(), "err", err)
			continue
		}

		if err := p.sock.Send(frame); err != nil {
			return fmt.Errorf("%w: %w", ErrTransportSend, err)
		}
		logger.Debug("Frame sent", "bytes", len(frame), "timestamp", msg.Timestamp)
	}
}

// readLine returns the next line with surrounding whitespace removed. A final
// line without a newline is still returned; the read after it reports EOF.
func (p *Publisher) readLine() (string, error) {
	line, err := p.input.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: input stream closed", ErrInputRead)
		}
		return "", fmt.Errorf("%w: %w", ErrInputRead, err)
	}
	return strings.TrimSpace(line), nil
}
