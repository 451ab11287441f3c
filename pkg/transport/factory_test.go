package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoints(t *testing.T) {
	assert.Equal(t, "tcp://0.0.0.0:9800", BindEndpoint(9800))
	assert.Equal(t, "tcp://192.168.1.10:9800", ConnectEndpoint("192.168.1.10", 9800))
	assert.Equal(t, "tcp://example.com:9801", ConnectEndpoint("example.com", 9801))
	assert.Equal(t, "tcp://[::1]:9800", ConnectEndpoint("::1", 9800))
	assert.Equal(t, "tcp://[::1]:9800", ConnectEndpoint("[::1]", 9800))
}

func TestHostPort(t *testing.T) {
	addr, err := hostPort("tcp://0.0.0.0:9800")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9800", addr)

	for _, bad := range []string{"0.0.0.0:9800", "ipc:///tmp/sock", "tcp://nohost"} {
		_, err := hostPort(bad)
		assert.ErrorIs(t, err, ErrInvalidEndpoint, bad)
	}
}

func TestNewFactory_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		config FactoryConfig
		ok     bool
	}{
		{"zmq", FactoryConfig{Kind: KindZMQ, Port: 9800}, true},
		{"tcp", FactoryConfig{Kind: KindTCP, Port: 0}, true},
		{"nats", FactoryConfig{Kind: KindNATS, NATSURL: "nats://127.0.0.1:4222", NATSSubject: "b"}, true},
		{"nats without url", FactoryConfig{Kind: KindNATS, NATSSubject: "b"}, false},
		{"nats without subject", FactoryConfig{Kind: KindNATS, NATSURL: "nats://127.0.0.1:4222"}, false},
		{"unknown kind", FactoryConfig{Kind: "udp", Port: 9800}, false},
		{"bad port", FactoryConfig{Kind: KindTCP, Port: 65536}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := NewFactory(tc.config)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.config.Kind, f.Kind())
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNewFactory_TransportOverrides(t *testing.T) {
	f, err := NewFactory(FactoryConfig{Kind: KindTCP, WriteTimeout: time.Second, BufferSize: 1024})
	require.NoError(t, err)
	assert.Equal(t, time.Second, f.transport.WriteTimeout)
	assert.Equal(t, 1024, f.transport.BufferSize)
	assert.Equal(t, DefaultConfig().DialTimeout, f.transport.DialTimeout)
}

func TestFactory_TCPConnectAndBindConflict(t *testing.T) {
	pub, err := ListenTCP("tcp://0.0.0.0:0", nil)
	require.NoError(t, err)
	defer pub.Close()
	port := pub.listener.Addr().(*net.TCPAddr).Port

	f, err := NewFactory(FactoryConfig{Kind: KindTCP, Port: port})
	require.NoError(t, err)

	sub, err := f.Connect("127.0.0.1")
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, ConnectEndpoint("127.0.0.1", port), sub.Endpoint())
	require.Eventually(t, func() bool { return pub.PeerCount() == 1 },
		5*time.Second, 10*time.Millisecond)

	_, err = f.Bind()
	assert.Error(t, err, "binding an occupied port must fail")
}

func TestFactory_ConnectEndpoint(t *testing.T) {
	f, err := NewFactory(FactoryConfig{Kind: KindZMQ, Port: 9800})
	require.NoError(t, err)
	assert.Equal(t, "tcp://10.0.0.1:9800", f.ConnectEndpoint("10.0.0.1"))

	f, err = NewFactory(FactoryConfig{Kind: KindNATS, NATSURL: "nats://broker:4222", NATSSubject: "ops"})
	require.NoError(t, err)
	assert.Equal(t, "nats://broker:4222/ops", f.ConnectEndpoint("ignored"))
}

func TestFactory_ConnectFailureNamesEndpoint(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	f, err := NewFactory(FactoryConfig{Kind: KindTCP, Port: port})
	require.NoError(t, err)
	_, err = f.Connect("127.0.0.1")
	assert.ErrorContains(t, err, f.ConnectEndpoint("127.0.0.1"))
}
