// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"fmt"
	"time"

	"github.com/kajih/proto-zmq/pkg/logger"
)

// Kind selects a transport backend
type Kind string

const (
	KindZMQ  Kind = "zmq"
	KindTCP  Kind = "tcp"
	KindNATS Kind = "nats"
)

// FactoryConfig configures the transport for one role invocation
type FactoryConfig struct {
	// Kind is the backend to use
	Kind Kind

	// Port is the publish-bind port, and the subscribe-connect port on the
	// remote host
	Port int

	// WriteTimeout per subscriber write (tcp); zero uses the default
	WriteTimeout time.Duration

	// BufferSize for read/write buffers (tcp); zero uses the default
	BufferSize int

	// NATSURL is the broker URL (nats)
	NATSURL string

	// NATSSubject is the subject every frame is published on (nats)
	NATSSubject string
}

// Factory opens publisher and subscriber handles for the configured backend.
// The caller owns every handle it returns and must Close it.
type Factory struct {
	config    *FactoryConfig
	transport *Config
}

// NewFactory creates a new transport factory
func NewFactory(config FactoryConfig) (*Factory, error) {
	switch config.Kind {
	case KindZMQ, KindTCP:
	case KindNATS:
		if config.NATSURL == "" {
			return nil, fmt.Errorf("NATSURL is required for the nats transport")
		}
		if config.NATSSubject == "" {
			return nil, fmt.Errorf("NATSSubject is required for the nats transport")
		}
	default:
		return nil, fmt.Errorf("unknown transport kind %q", config.Kind)
	}
	if config.Port < 0 || config.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range", config.Port)
	}

	transportConfig := DefaultConfig()
	if config.WriteTimeout > 0 {
		transportConfig.WriteTimeout = config.WriteTimeout
	}
	if config.BufferSize > 0 {
		transportConfig.BufferSize = config.BufferSize
	}

	return &Factory{config: &config, transport: transportConfig}, nil
}

// Kind returns the configured backend
func (f *Factory) Kind() Kind {
	return f.config.Kind
}

// Bind opens the publish side at tcp://0.0.0.0:<port> (or the NATS broker).
func (f *Factory) Bind() (Publisher, error) {
	endpoint := BindEndpoint(f.config.Port)

	var (
		pub Publisher
		err error
	)
	switch f.config.Kind {
	case KindZMQ:
		pub, err = BindZMQ(endpoint, f.transport)
	case KindTCP:
		pub, err = ListenTCP(endpoint, f.transport)
	case KindNATS:
		pub, err = ConnectNATSPublisher(f.config.NATSURL, f.config.NATSSubject)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Transport bound", "kind", f.config.Kind, "endpoint", pub.Endpoint())
	return pub, nil
}

// ConnectEndpoint names what Connect(address) dials, so it can be reported
// before the attempt is made.
func (f *Factory) ConnectEndpoint(address string) string {
	if f.config.Kind == KindNATS {
		return f.config.NATSURL + "/" + natsSubject(f.config.NATSSubject, AllTopics)
	}
	return ConnectEndpoint(address, f.config.Port)
}

// Connect opens the subscribe side towards address with the empty filter.
func (f *Factory) Connect(address string) (Subscriber, error) {
	endpoint := f.ConnectEndpoint(address)

	var (
		sub Subscriber
		err error
	)
	switch f.config.Kind {
	case KindZMQ:
		sub, err = ConnectZMQ(endpoint, AllTopics)
	case KindTCP:
		sub, err = DialTCP(endpoint, []byte(AllTopics), f.transport)
	case KindNATS:
		sub, err = ConnectNATSSubscriber(f.config.NATSURL, f.config.NATSSubject, AllTopics)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Transport connected", "kind", f.config.Kind, "endpoint", sub.Endpoint())
	return sub, nil
}
