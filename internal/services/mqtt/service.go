// Package mqtt subscribes to wake requests on an MQTT broker.
package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/bradmatt275/wake-from-mqtt/internal/models"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	connectTimeout  = 30 * time.Second
	retryInterval   = 5 * time.Second
	keepAlive       = 60 * time.Second
	operationWait   = 5 * time.Second
	disconnectQuiet = 250 // ms to wait for in-flight messages
	bufferSize      = 16
)

// ErrNotSubscribed is returned by Close when Subscribe was never called.
var ErrNotSubscribed = errors.New("not subscribed")

// Client is the subset of paho.Client used by the subscriber, for mocking.
type Client interface {
	Connect() paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
	Disconnect(quiesce uint)
}

// ClientFactory creates a client from options.
type ClientFactory func(opts *paho.ClientOptions) Client

func defaultFactory(opts *paho.ClientOptions) Client {
	return paho.NewClient(opts)
}

// Impl subscribes to a single MQTT topic and forwards messages in order.
type Impl struct {
	cfg     models.MQTTConfig
	factory ClientFactory
	logger  zerolog.Logger

	mu       sync.Mutex
	client   Client
	messages chan models.Message
	done     chan struct{}
}

// New creates a new MQTT subscriber.
func New(logger zerolog.Logger, cfg models.MQTTConfig) *Impl {
	return NewWithFactory(logger, cfg, defaultFactory)
}

// NewWithFactory creates a new MQTT subscriber with a custom client factory (for testing).
func NewWithFactory(logger zerolog.Logger, cfg models.MQTTConfig, factory ClientFactory) *Impl {
	return &Impl{
		cfg:     cfg,
		factory: factory,
		logger:  logger.With().Str("transport", models.TransportMQTT).Logger(),
	}
}

// Name returns the transport identifier.
func (s *Impl) Name() string { return models.TransportMQTT }

// BrokerURL returns the broker URL built from the configuration.
func (s *Impl) BrokerURL() string {
	scheme := "tcp"
	if s.cfg.UseTLS {
		scheme = "ssl"
	}
	return scheme + "://" + net.JoinHostPort(s.cfg.Broker, strconv.Itoa(s.cfg.Port))
}

// Options builds the paho client options.
func (s *Impl) Options() *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(s.BrokerURL()).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive).
		SetOrderMatters(true)

	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}

	if s.cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	// Re-subscribe on every connect; a clean session drops subscriptions.
	opts.SetOnConnectHandler(func(c paho.Client) {
		s.handleConnect(c)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		s.logger.Warn().Err(err).Msg("unexpected disconnection from MQTT broker")
	})

	return opts
}

// Subscribe connects to the broker and returns the channel that receives
// messages from the configured topic.
func (s *Impl) Subscribe(ctx context.Context) (<-chan models.Message, error) {
	s.mu.Lock()
	s.messages = make(chan models.Message, bufferSize)
	s.done = make(chan struct{})
	s.client = s.factory(s.Options())
	client, messages := s.client, s.messages
	s.mu.Unlock()

	s.logger.Info().
		Str("broker", s.BrokerURL()).
		Str("client_id", s.cfg.ClientID).
		Msg("connecting to MQTT broker")

	token := client.Connect()
	select {
	case <-ctx.Done():
		client.Disconnect(0)
		s.reset()
		return nil, ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		s.reset()
		return nil, fmt.Errorf("connecting to %s: %w", s.BrokerURL(), err)
	}

	return messages, nil
}

func (s *Impl) reset() {
	s.mu.Lock()
	s.client, s.messages = nil, nil
	s.mu.Unlock()
}

func (s *Impl) handleConnect(c Client) {
	s.logger.Info().Msg("connected to MQTT broker")

	token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.handleMessage)
	if !token.WaitTimeout(operationWait) {
		s.logger.Error().Str("topic", s.cfg.Topic).Msg("subscribe timed out")
		return
	}
	if err := token.Error(); err != nil {
		s.logger.Error().Err(err).Str("topic", s.cfg.Topic).Msg("subscribe failed")
		return
	}

	s.logger.Info().Str("topic", s.cfg.Topic).Uint8("qos", s.cfg.QoS).Msg("subscribed to topic")
}

func (s *Impl) handleMessage(_ paho.Client, msg paho.Message) {
	s.deliver(msg.Topic(), msg.Payload())
}

// deliver blocks until the consumer takes the message or Close is called.
func (s *Impl) deliver(topic string, payload []byte) {
	s.mu.Lock()
	messages, done := s.messages, s.done
	s.mu.Unlock()

	if messages == nil {
		return
	}

	m := models.Message{
		Topic:      topic,
		Payload:    append([]byte(nil), payload...),
		ReceivedAt: time.Now(),
	}

	select {
	case messages <- m:
	case <-done:
		s.logger.Debug().Str("topic", topic).Msg("dropping message after close")
	}
}

// Close unsubscribes and disconnects from the broker.
func (s *Impl) Close() error {
	s.mu.Lock()
	client, done := s.client, s.done
	s.client = nil
	s.mu.Unlock()

	if client == nil {
		return ErrNotSubscribed
	}
	close(done)

	var err error
	token := client.Unsubscribe(s.cfg.Topic)
	if !token.WaitTimeout(operationWait) {
		err = fmt.Errorf("unsubscribe from %s timed out", s.cfg.Topic)
	} else if token.Error() != nil {
		err = fmt.Errorf("unsubscribe from %s: %w", s.cfg.Topic, token.Error())
	}

	client.Disconnect(disconnectQuiet)
	s.logger.Info().Msg("disconnected from MQTT broker")

	return err
}
