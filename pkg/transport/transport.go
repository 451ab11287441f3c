// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transport is the point-to-multipoint delivery layer under the
// broadcast loops. A Publisher is bound to a listening endpoint and pushes
// each frame to the subscribers connected at that moment; a Subscriber is
// connected to a publisher and blocks until the next frame arrives.
//
// Delivery is fire-and-forget: no acknowledgment, no retry, no backlog for
// subscribers that join late. Three backends implement the contract:
//
//   - zmq:  ZeroMQ PUB/SUB sockets (default, interoperable with libzmq peers)
//   - tcp:  native Go PUB/SUB over length-prefixed TCP frames
//   - nats: core NATS subject pub/sub through a broker
//
// Usage:
//
//	factory, err := transport.NewFactory(transport.FactoryConfig{
//	    Kind: transport.KindZMQ,
//	    Port: 9800,
//	})
//	pub, err := factory.Bind()
//	defer pub.Close()
//	err = pub.Send(frame)
package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

var (
	ErrClosed          = errors.New("transport: connection closed")
	ErrInvalidEndpoint = errors.New("transport: invalid endpoint")
	ErrFrameTooLarge   = errors.New("transport: frame too large")
)

// AllTopics is the empty subscribe filter; it matches every frame.
const AllTopics = ""

// Publisher pushes frames to every currently connected subscriber.
type Publisher interface {
	// Endpoint is the address the publisher is bound to.
	Endpoint() string
	Send(frame []byte) error
	Close() error
}

// Subscriber receives frames from one publisher.
type Subscriber interface {
	Endpoint() string
	// Receive blocks until a frame arrives. There is no timeout.
	Receive() ([]byte, error)
	Close() error
}

// Config holds the tuning knobs shared by the native backends.
type Config struct {
	// DialTimeout bounds the initial subscriber connect
	DialTimeout time.Duration

	// HelloTimeout bounds how long the publisher waits for a subscribe request
	HelloTimeout time.Duration

	// WriteTimeout for writing one frame to one subscriber
	WriteTimeout time.Duration

	// BufferSize for read/write buffers
	BufferSize int

	// Linger is how long Close waits to flush queued zmq frames
	Linger time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DialTimeout:  10 * time.Second,
		HelloTimeout: 10 * time.Second,
		WriteTimeout: 10 * time.Second,
		BufferSize:   64 * 1024,
		Linger:       time.Second,
	}
}

// BindEndpoint is the publish-bind endpoint for port on all interfaces.
func BindEndpoint(port int) string {
	return "tcp://" + net.JoinHostPort("0.0.0.0", strconv.Itoa(port))
}

// ConnectEndpoint is the subscribe-connect endpoint for a remote host.
// IPv6 literals are bracketed.
func ConnectEndpoint(address string, port int) string {
	return "tcp://" + net.JoinHostPort(strings.Trim(address, "[]"), strconv.Itoa(port))
}

// hostPort strips the tcp:// scheme from a zmq-style endpoint.
func hostPort(endpoint string) (string, error) {
	addr, ok := strings.CutPrefix(endpoint, "tcp://")
	if !ok {
		return "", fmt.Errorf("%w: %q must start with tcp://", ErrInvalidEndpoint, endpoint)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidEndpoint, endpoint, err)
	}
	return addr, nil
}
