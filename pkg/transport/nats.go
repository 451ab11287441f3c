// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/kajih/proto-zmq/pkg/logger"
)

// connectNATS opens a broker connection with reconnects disabled, so a lost
// connection surfaces as a Send or Receive error.
func connectNATS(url, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("Disconnected from NATS", "err", err)
			}
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Debug("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// natsError maps a finished connection or subscription onto ErrClosed.
func natsError(op string, err error) error {
	if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
		return fmt.Errorf("%w: nats %s: %w", ErrClosed, op, err)
	}
	return fmt.Errorf("nats %s: %w", op, err)
}

// natsSubject appends a non-empty filter to the base subject.
func natsSubject(subject, filter string) string {
	if filter == "" {
		return subject
	}
	return subject + "." + filter
}

// NATSPublisher publishes frames on a core NATS subject. Core NATS keeps no
// history, so late subscribers miss earlier frames.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

func ConnectNATSPublisher(url, subject string) (*NATSPublisher, error) {
	nc, err := connectNATS(url, "proto-zmq-publisher")
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

func (p *NATSPublisher) Endpoint() string {
	return p.nc.ConnectedUrl() + "/" + p.subject
}

func (p *NATSPublisher) Send(frame []byte) error {
	if err := p.nc.Publish(p.subject, frame); err != nil {
		return natsError("publish", err)
	}
	return nil
}

// Close flushes buffered publishes before closing the connection.
func (p *NATSPublisher) Close() error {
	if p.nc.IsClosed() {
		return nil
	}
	err := p.nc.Flush()
	p.nc.Close()
	return err
}

// NATSSubscriber reads frames from a synchronous NATS subscription.
type NATSSubscriber struct {
	nc  *nats.Conn
	sub *nats.Subscription
}

func ConnectNATSSubscriber(url, subject, filter string) (*NATSSubscriber, error) {
	nc, err := connectNATS(url, "proto-zmq-subscriber")
	if err != nil {
		return nil, err
	}

	sub, err := nc.SubscribeSync(natsSubject(subject, filter))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return &NATSSubscriber{nc: nc, sub: sub}, nil
}

func (s *NATSSubscriber) Endpoint() string {
	return s.nc.ConnectedUrl() + "/" + s.sub.Subject
}

func (s *NATSSubscriber) Receive() ([]byte, error) {
	msg, err := s.sub.NextMsgWithContext(context.Background())
	if err != nil {
		return nil, natsError("receive", err)
	}
	return msg.Data, nil
}

func (s *NATSSubscriber) Close() error {
	if s.nc.IsClosed() {
		return nil
	}
	err := s.sub.Unsubscribe()
	s.nc.Close()
	return err
}
