package broadcast

import (
	"errors"
	"sync"

	"github.com/kajih/proto-zmq/pkg/transport"
)

type fakePublisher struct {
	mu      sync.Mutex
	frames  [][]byte
	sendErr error
}

func (f *fakePublisher) Endpoint() string { return "tcp://0.0.0.0:9800" }

func (f *fakePublisher) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.frames = append(f.frames, append([]byte(nil), frame...))
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

// fakeSubscriber replays frames, then fails with err.
type fakeSubscriber struct {
	frames [][]byte
	err    error
}

func (f *fakeSubscriber) Endpoint() string { return "tcp://10.0.0.1:9800" }

func (f *fakeSubscriber) Receive() ([]byte, error) {
	if len(f.frames) == 0 {
		if f.err == nil {
			return nil, transport.ErrClosed
		}
		return nil, f.err
	}
	frame := f.frames[0]
	f.frames = f.frames[1:]
	return frame, nil
}

func (f *fakeSubscriber) Close() error { return nil }

var errBoom = errors.New("boom")
