package mqtt

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bradmatt275/wake-from-mqtt/internal/models"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *mockToken {
	done := make(chan struct{})
	close(done)
	return &mockToken{err: err, done: done}
}

func (t *mockToken) Wait() bool                     { return true }
func (t *mockToken) WaitTimeout(time.Duration) bool { return true }
func (t *mockToken) Done() <-chan struct{}          { return t.done }
func (t *mockToken) Error() error                   { return t.err }

type mockClient struct {
	mu           sync.Mutex
	connectFunc  func() paho.Token
	subscribeErr error
	subscribed   []string
	unsubscribed []string
	disconnected bool
	handler      paho.MessageHandler
}

func (m *mockClient) Connect() paho.Token {
	if m.connectFunc != nil {
		return m.connectFunc()
	}
	return newToken(nil)
}

func (m *mockClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed = append(m.subscribed, topic)
	m.handler = callback
	return newToken(m.subscribeErr)
}

func (m *mockClient) Unsubscribe(topics ...string) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribed = append(m.unsubscribed, topics...)
	return newToken(nil)
}

func (m *mockClient) Disconnect(uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected = true
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 0 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 1 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testConfig() models.MQTTConfig {
	return models.MQTTConfig{
		Broker:   "mqtt.local",
		Port:     1883,
		Topic:    "home/wake",
		ClientID: "wake-test",
	}
}

// newTestService wires a mock client whose Connect runs the on-connect handler
// the way paho does.
func newTestService(t *testing.T, cfg models.MQTTConfig) (*Impl, *mockClient) {
	t.Helper()

	client := &mockClient{}
	var svc *Impl
	svc = NewWithFactory(testLogger(), cfg, func(opts *paho.ClientOptions) Client {
		client.connectFunc = func() paho.Token {
			svc.handleConnect(client)
			return newToken(nil)
		}
		return client
	})
	return svc, client
}

func TestOptions_Plain(t *testing.T) {
	svc := New(testLogger(), testConfig())

	opts := svc.Options()

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "tcp://mqtt.local:1883", opts.Servers[0].String())
	assert.Equal(t, "wake-test", opts.ClientID)
	assert.Empty(t, opts.Username)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.ConnectRetry)
	assert.True(t, opts.Order)
	assert.Equal(t, "mqtt", svc.Name())
}

func TestOptions_TLSAndCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Port = 8883
	cfg.UseTLS = true
	cfg.Username = "wol"
	cfg.Password = "secret"

	svc := New(testLogger(), cfg)

	opts := svc.Options()

	assert.Equal(t, "ssl://mqtt.local:8883", opts.Servers[0].String())
	assert.Equal(t, "wol", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	require.NotNil(t, opts.TLSConfig)
}

func TestBrokerURL_IPv6(t *testing.T) {
	cfg := testConfig()
	cfg.Broker = "fd00::1"

	svc := New(testLogger(), cfg)

	assert.Equal(t, "tcp://[fd00::1]:1883", svc.BrokerURL())
}

func TestSubscribe_DeliversMessagesInOrder(t *testing.T) {
	svc, client := newTestService(t, testConfig())

	messages, err := svc.Subscribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"home/wake"}, client.subscribed)

	go func() {
		for _, p := range []string{"first", "second", "third"} {
			client.handler(nil, &mockMessage{topic: "home/wake", payload: []byte(p)})
		}
	}()

	for _, want := range []string{"first", "second", "third"} {
		select {
		case msg := <-messages:
			assert.Equal(t, "home/wake", msg.Topic)
			assert.Equal(t, want, string(msg.Payload))
			assert.False(t, msg.ReceivedAt.IsZero())
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	require.NoError(t, svc.Close())
	assert.Equal(t, []string{"home/wake"}, client.unsubscribed)
	assert.True(t, client.disconnected)
}

func TestSubscribe_ConnectError(t *testing.T) {
	client := &mockClient{
		connectFunc: func() paho.Token { return newToken(errors.New("connection refused")) },
	}
	svc := NewWithFactory(testLogger(), testConfig(), func(*paho.ClientOptions) Client { return client })

	_, err := svc.Subscribe(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, err.Error(), "tcp://mqtt.local:1883")
	assert.ErrorIs(t, svc.Close(), ErrNotSubscribed)
}

func TestSubscribe_ContextCancelledWhileConnecting(t *testing.T) {
	pending := &mockToken{done: make(chan struct{})}
	client := &mockClient{
		connectFunc: func() paho.Token { return pending },
	}
	svc := NewWithFactory(testLogger(), testConfig(), func(*paho.ClientOptions) Client { return client })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Subscribe(ctx)

	assert.Equal(t, context.Canceled, err)
	assert.True(t, client.disconnected)
}

func TestSubscribe_SubscribeErrorIsLogged(t *testing.T) {
	svc, client := newTestService(t, testConfig())
	client.subscribeErr = errors.New("not authorized")

	_, err := svc.Subscribe(context.Background())

	// The connection stays up; the subscription is retried on reconnect.
	require.NoError(t, err)
	assert.Equal(t, []string{"home/wake"}, client.subscribed)
}

func TestDeliver_AfterCloseDoesNotBlock(t *testing.T) {
	svc, client := newTestService(t, testConfig())

	_, err := svc.Subscribe(context.Background())
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	done := make(chan struct{})
	go func() {
		for i := 0; i < bufferSize+1; i++ {
			client.handler(nil, &mockMessage{topic: "home/wake", payload: []byte("late")})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliver blocked after close")
	}
}

func TestDeliver_CopiesPayload(t *testing.T) {
	svc, client := newTestService(t, testConfig())

	messages, err := svc.Subscribe(context.Background())
	require.NoError(t, err)

	payload := []byte("AA:BB:CC:DD:EE:FF")
	client.handler(nil, &mockMessage{topic: "home/wake", payload: payload})
	payload[0] = 'X'

	msg := <-messages
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", string(msg.Payload))
}

func TestClose_NotSubscribed(t *testing.T) {
	svc := New(testLogger(), testConfig())

	assert.ErrorIs(t, svc.Close(), ErrNotSubscribed)
}
