// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"bytes"
	"sync"
)

// MemoryHub is a process-local PUB/SUB exchange with the same delivery
// semantics as the network backends. Used for development and testing.
type MemoryHub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*MemorySubscriber
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[int]*MemorySubscriber)}
}

// Publisher returns a publisher that fans out to the hub's subscribers.
func (h *MemoryHub) Publisher(endpoint string) *MemoryPublisher {
	return &MemoryPublisher{hub: h, endpoint: endpoint}
}

// Subscribe attaches a subscriber holding up to queue undelivered frames.
// Frames that arrive while the queue is full are dropped.
func (h *MemoryHub) Subscribe(endpoint string, filter []byte, queue int) *MemorySubscriber {
	if queue <= 0 {
		queue = 64
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	sub := &MemorySubscriber{
		hub:      h,
		id:       id,
		endpoint: endpoint,
		filter:   append([]byte(nil), filter...),
		ch:       make(chan []byte, queue),
	}
	h.subs[id] = sub
	return sub
}

func (h *MemoryHub) publish(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !bytes.HasPrefix(frame, sub.filter) {
			continue
		}
		select {
		case sub.ch <- append([]byte(nil), frame...):
		default:
			// Non-blocking send to avoid one slow subscriber stalling the publisher.
		}
	}
}

func (h *MemoryHub) unsubscribe(sub *MemorySubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.id]; ok {
		delete(h.subs, sub.id)
		close(sub.ch)
	}
}

// MemoryPublisher publishes into a MemoryHub.
type MemoryPublisher struct {
	hub      *MemoryHub
	endpoint string

	mu     sync.Mutex
	closed bool
}

func (p *MemoryPublisher) Endpoint() string {
	return p.endpoint
}

func (p *MemoryPublisher) Send(frame []byte) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}
	p.hub.publish(frame)
	return nil
}

func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// MemorySubscriber receives frames from a MemoryHub.
type MemorySubscriber struct {
	hub      *MemoryHub
	id       int
	endpoint string
	filter   []byte
	ch       chan []byte
}

func (s *MemorySubscriber) Endpoint() string {
	return s.endpoint
}

func (s *MemorySubscriber) Receive() ([]byte, error) {
	frame, ok := <-s.ch
	if !ok {
		return nil, ErrClosed
	}
	return frame, nil
}

// Close detaches the subscriber; a blocked Receive returns ErrClosed.
func (s *MemorySubscriber) Close() error {
	s.hub.unsubscribe(s)
	return nil
}
