// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/kajih/proto-zmq/pkg/logger"
)

// acceptRetryDelay spaces out retries after a transient Accept failure.
const acceptRetryDelay = 50 * time.Millisecond

// TCPPublisher is the publish side of the native tcp backend
type TCPPublisher struct {
	config   *Config
	listener net.Listener
	endpoint string

	// Subscriber connections keyed by subscriber ID; conns also holds
	// connections that have not finished their subscribe request yet.
	peersMu sync.RWMutex
	peers   map[string]*peerConn
	conns   map[net.Conn]struct{}

	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// peerConn represents a connection to a subscriber
type peerConn struct {
	id     string
	addr   string
	filter []byte
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	writeMu sync.Mutex
	closed  atomic.Bool
}

// ListenTCP binds a publisher to endpoint (tcp://host:port) and starts
// accepting subscribers.
func ListenTCP(endpoint string, config *Config) (*TCPPublisher, error) {
	if config == nil {
		config = DefaultConfig()
	}

	addr, err := hostPort(endpoint)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", endpoint, err)
	}

	p := &TCPPublisher{
		config:   config,
		listener: listener,
		endpoint: "tcp://" + listener.Addr().String(),
		peers:    make(map[string]*peerConn),
		conns:    make(map[net.Conn]struct{}),
		done:     make(chan struct{}),
	}

	logger.Debug("Transport listening", "endpoint", p.endpoint)

	p.wg.Add(1)
	go p.acceptLoop()

	return p, nil
}

func (p *TCPPublisher) Endpoint() string {
	return p.endpoint
}

// Send writes frame to every subscriber whose filter is a prefix of it. A
// subscriber that cannot take the frame within WriteTimeout is dropped; that
// never fails the send.
func (p *TCPPublisher) Send(frame []byte) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if len(frame) > MaxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(frame), MaxMessageSize)
	}

	p.peersMu.RLock()
	peers := lo.Values(p.peers)
	p.peersMu.RUnlock()

	for _, peer := range peers {
		if !bytes.HasPrefix(frame, peer.filter) {
			continue
		}
		if err := peer.send(MsgPublish, frame, p.config.WriteTimeout); err != nil {
			logger.Warn("Dropping subscriber after failed write", "id", peer.id, "addr", peer.addr, "err", err)
			p.removePeerConn(peer)
		}
	}
	return nil
}

// PeerCount returns number of connected subscribers
func (p *TCPPublisher) PeerCount() int {
	p.peersMu.RLock()
	defer p.peersMu.RUnlock()
	return len(p.peers)
}

// Close stops accepting, disconnects every subscriber and waits for the
// connection goroutines to exit.
func (p *TCPPublisher) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	close(p.done)

	err := p.listener.Close()

	p.peersMu.Lock()
	for _, peer := range p.peers {
		peer.close()
	}
	for conn := range p.conns {
		conn.Close()
	}
	p.peers = make(map[string]*peerConn)
	p.peersMu.Unlock()

	p.wg.Wait()
	return err
}

// acceptLoop accepts incoming subscriber connections
func (p *TCPPublisher) acceptLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		default:
		}

		conn, err := p.listener.Accept()
		if err != nil {
			if p.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Error("Accept error", err)
			select {
			case <-p.done:
				return
			case <-time.After(acceptRetryDelay):
			}
			continue
		}

		p.wg.Add(1)
		go p.handleIncoming(conn)
	}
}

// handleIncoming registers a subscriber once its subscribe request arrives,
// then watches the connection until it goes away.
func (p *TCPPublisher) handleIncoming(conn net.Conn) {
	defer p.wg.Done()

	if !p.trackConn(conn) {
		conn.Close()
		return
	}
	defer p.untrackConn(conn)

	peer := &peerConn{
		addr:   conn.RemoteAddr().String(),
		conn:   conn,
		reader: bufio.NewReaderSize(conn, p.config.BufferSize),
		writer: bufio.NewWriterSize(conn, p.config.BufferSize),
	}

	if p.config.HelloTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(p.config.HelloTimeout))
	}
	msgType, payload, err := ReadMessage(peer.reader)
	if err != nil {
		logger.Warn("Failed to read subscribe request", "addr", peer.addr, "err", err)
		conn.Close()
		return
	}
	if msgType != MsgSubscribe {
		logger.Warn("Unexpected frame before subscribe request", "type", msgType, "addr", peer.addr)
		conn.Close()
		return
	}

	var req SubscribeRequest
	if err := req.Unmarshal(payload); err != nil || req.ID == "" {
		logger.Warn("Malformed subscribe request", "addr", peer.addr, "err", err)
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})

	peer.id = req.ID
	peer.filter = req.Filter
	if !p.addPeer(peer) {
		conn.Close()
		return
	}
	logger.Debug("Subscriber connected", "id", peer.id, "addr", peer.addr)

	// Subscribers have nothing to say after the hello. Stray frames are
	// discarded and the first read error ends the connection.
	for {
		if _, _, err := ReadMessage(peer.reader); err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) && !p.closed.Load() {
				logger.Debug("Subscriber read error", "id", peer.id, "err", err)
			}
			break
		}
	}

	p.removePeerConn(peer)
	logger.Debug("Subscriber disconnected", "id", peer.id)
}

func (p *TCPPublisher) trackConn(conn net.Conn) bool {
	p.peersMu.Lock()
	defer p.peersMu.Unlock()
	if p.closed.Load() {
		return false
	}
	p.conns[conn] = struct{}{}
	return true
}

func (p *TCPPublisher) untrackConn(conn net.Conn) {
	p.peersMu.Lock()
	delete(p.conns, conn)
	p.peersMu.Unlock()
}

func (p *TCPPublisher) addPeer(peer *peerConn) bool {
	p.peersMu.Lock()
	defer p.peersMu.Unlock()

	if p.closed.Load() {
		return false
	}
	if existing, ok := p.peers[peer.id]; ok {
		existing.close()
	}
	p.peers[peer.id] = peer
	return true
}

// removePeerConn removes a peer connection only if it matches the given pointer.
// This prevents a replaced connection's cleanup from removing the new connection.
func (p *TCPPublisher) removePeerConn(peer *peerConn) {
	p.peersMu.Lock()
	if current, ok := p.peers[peer.id]; ok && current == peer {
		delete(p.peers, peer.id)
	}
	p.peersMu.Unlock()
	peer.close()
}

// peerConn methods

func (c *peerConn) send(msgType uint8, payload []byte, timeout time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if timeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	if err := WriteMessage(c.writer, msgType, payload); err != nil {
		return err
	}
	return c.writer.Flush()
}

func (c *peerConn) close() {
	if c.closed.Swap(true) {
		return
	}
	c.conn.Close()
}

// TCPSubscriber is the subscribe side of the native tcp backend
type TCPSubscriber struct {
	id       string
	endpoint string
	conn     net.Conn
	reader   *bufio.Reader
	closed   atomic.Bool
}

// DialTCP connects to a TCPPublisher at endpoint and registers filter.
func DialTCP(endpoint string, filter []byte, config *Config) (*TCPSubscriber, error) {
	if config == nil {
		config = DefaultConfig()
	}

	addr, err := hostPort(endpoint)
	if err != nil {
		return nil, err
	}

	conn, err := net.DialTimeout("tcp", addr, config.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect %s: %w", endpoint, err)
	}

	req := SubscribeRequest{ID: uuid.NewString(), Filter: filter}
	payload, err := req.Marshal()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := WriteMessage(conn, MsgSubscribe, payload); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send subscribe request: %w", err)
	}

	return &TCPSubscriber{
		id:       req.ID,
		endpoint: endpoint,
		conn:     conn,
		reader:   bufio.NewReaderSize(conn, config.BufferSize),
	}, nil
}

func (s *TCPSubscriber) Endpoint() string {
	return s.endpoint
}

// ID is the identity announced in the subscribe request.
func (s *TCPSubscriber) ID() string {
	return s.id
}

func (s *TCPSubscriber) Receive() ([]byte, error) {
	for {
		msgType, payload, err := ReadMessage(s.reader)
		if err != nil {
			if s.closed.Load() {
				return nil, ErrClosed
			}
			if err == io.EOF {
				return nil, fmt.Errorf("%w: publisher went away", ErrClosed)
			}
			return nil, err
		}
		if msgType != MsgPublish {
			logger.Debug("Ignoring unexpected frame", "type", msgType)
			continue
		}
		return payload, nil
	}
}

func (s *TCPSubscriber) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.conn.Close()
}
