// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"fmt"
	"strings"
	"time"

	zmq "github.com/pebbe/zmq4"
)

// ZMQPublisher wraps a ZeroMQ PUB socket. The socket delivers to connected
// subscribers only and drops frames for subscribers that are not there yet.
type ZMQPublisher struct {
	sock     *zmq.Socket
	endpoint string
	linger   time.Duration
}

// BindZMQ creates a PUB socket bound to endpoint.
func BindZMQ(endpoint string, config *Config) (*ZMQPublisher, error) {
	if config == nil {
		config = DefaultConfig()
	}

	sock, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}
	if err := sock.Bind(endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to bind %s: %w", endpoint, err)
	}

	bound, err := sock.GetLastEndpoint()
	if err != nil || bound == "" {
		bound = endpoint
	}

	return &ZMQPublisher{sock: sock, endpoint: bound, linger: config.Linger}, nil
}

func (p *ZMQPublisher) Endpoint() string {
	return p.endpoint
}

func (p *ZMQPublisher) Send(frame []byte) error {
	if _, err := p.sock.SendBytes(frame, 0); err != nil {
		return fmt.Errorf("zmq send: %w", err)
	}
	return nil
}

// Close gives queued frames up to the configured linger to leave before the
// socket is torn down.
func (p *ZMQPublisher) Close() error {
	if err := p.sock.SetLinger(p.linger); err != nil {
		p.sock.Close()
		return err
	}
	return p.sock.Close()
}

// ZMQSubscriber wraps a ZeroMQ SUB socket.
type ZMQSubscriber struct {
	sock     *zmq.Socket
	endpoint string
}

// ConnectZMQ creates a SUB socket connected to endpoint with a prefix filter.
// The connect itself is asynchronous; ZeroMQ keeps trying in the background.
func ConnectZMQ(endpoint, filter string) (*ZMQSubscriber, error) {
	sock, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}

	// Bracketed hosts are IPv6 literals, which libzmq only accepts with IPv6 on.
	if strings.HasPrefix(endpoint, "tcp://[") {
		if err := sock.SetIpv6(true); err != nil {
			sock.Close()
			return nil, fmt.Errorf("failed to enable IPv6: %w", err)
		}
	}

	if err := sock.Connect(endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to connect %s: %w", endpoint, err)
	}
	if err := sock.SetSubscribe(filter); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	return &ZMQSubscriber{sock: sock, endpoint: endpoint}, nil
}

func (s *ZMQSubscriber) Endpoint() string {
	return s.endpoint
}

func (s *ZMQSubscriber) Receive() ([]byte, error) {
	frame, err := s.sock.RecvBytes(0)
	if err != nil {
		return nil, fmt.Errorf("zmq receive: %w", err)
	}
	return frame, nil
}

func (s *ZMQSubscriber) Close() error {
	s.sock.SetLinger(0)
	return s.sock.Close()
}
