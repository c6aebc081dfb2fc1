// Package nats subscribes to wake requests on a NATS subject.
package nats

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bradmatt275/wake-from-mqtt/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	reconnectWait = 5 * time.Second
	bufferSize    = 16
)

// ErrNotSubscribed is returned by Close when Subscribe was never called.
var ErrNotSubscribed = errors.New("not subscribed")

// Conn is the subset of *nats.Conn used by the subscriber, for mocking.
type Conn interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Close()
}

// Dialer opens a connection.
type Dialer func(url string, opts ...nats.Option) (Conn, error)

func defaultDialer(url string, opts ...nats.Option) (Conn, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return nc, nil
}

// Impl subscribes to a single NATS subject and forwards messages in order.
type Impl struct {
	cfg    models.NATSConfig
	dial   Dialer
	logger zerolog.Logger

	mu       sync.Mutex
	conn     Conn
	sub      *nats.Subscription
	messages chan models.Message
	done     chan struct{}
}

// New creates a new NATS subscriber.
func New(logger zerolog.Logger, cfg models.NATSConfig) *Impl {
	return NewWithDialer(logger, cfg, defaultDialer)
}

// NewWithDialer creates a new NATS subscriber with a custom dialer (for testing).
func NewWithDialer(logger zerolog.Logger, cfg models.NATSConfig, dial Dialer) *Impl {
	return &Impl{
		cfg:    cfg,
		dial:   dial,
		logger: logger.With().Str("transport", models.TransportNATS).Logger(),
	}
}

// Name returns the transport identifier.
func (s *Impl) Name() string { return models.TransportNATS }

// Options builds the connection options.
func (s *Impl) Options() []nats.Option {
	opts := []nats.Option{
		nats.Name(s.cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.logger.Warn().Err(err).Msg("unexpected disconnection from NATS server")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.logger.Info().Str("url", nc.ConnectedUrlRedacted()).Msg("reconnected to NATS server")
		}),
	}

	if s.cfg.Username != "" {
		opts = append(opts, nats.UserInfo(s.cfg.Username, s.cfg.Password))
	}
	if s.cfg.UseTLS {
		opts = append(opts, nats.Secure(&tls.Config{MinVersion: tls.VersionTLS12}))
	}

	return opts
}

// Subscribe connects to the server and returns the channel that receives
// messages from the configured subject.
func (s *Impl) Subscribe(ctx context.Context) (<-chan models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.Info().Str("url", s.cfg.URL).Msg("connecting to NATS server")

	conn, err := s.dial(s.cfg.URL, s.Options()...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", s.cfg.URL, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.messages = make(chan models.Message, bufferSize)
	s.done = make(chan struct{})
	messages := s.messages
	s.mu.Unlock()

	// Async handlers of one subscription run sequentially.
	sub, err := conn.Subscribe(s.cfg.Subject, s.handleMessage)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", s.cfg.Subject, err)
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	s.logger.Info().Str("subject", s.cfg.Subject).Msg("subscribed to subject")

	return messages, nil
}

func (s *Impl) handleMessage(msg *nats.Msg) {
	s.deliver(msg.Subject, msg.Data)
}

func (s *Impl) deliver(subject string, data []byte) {
	s.mu.Lock()
	messages, done := s.messages, s.done
	s.mu.Unlock()

	if messages == nil {
		return
	}

	m := models.Message{
		Topic:      subject,
		Payload:    append([]byte(nil), data...),
		ReceivedAt: time.Now(),
	}

	select {
	case messages <- m:
	case <-done:
		s.logger.Debug().Str("subject", subject).Msg("dropping message after close")
	}
}

// Close unsubscribes and closes the connection.
func (s *Impl) Close() error {
	s.mu.Lock()
	conn, sub, done := s.conn, s.sub, s.done
	s.conn, s.sub = nil, nil
	s.mu.Unlock()

	if conn == nil {
		return ErrNotSubscribed
	}
	close(done)

	var err error
	if sub != nil {
		if uerr := sub.Unsubscribe(); uerr != nil {
			err = fmt.Errorf("unsubscribe from %s: %w", s.cfg.Subject, uerr)
		}
	}

	conn.Close()
	s.logger.Info().Msg("disconnected from NATS server")

	return err
}
