// Package bridge turns pub/sub messages into Wake-on-LAN packets.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradmatt275/wake-from-mqtt/internal/metrics"
	"github.com/bradmatt275/wake-from-mqtt/internal/models"
	"github.com/bradmatt275/wake-from-mqtt/internal/services/interpreter"
	"github.com/bradmatt275/wake-from-mqtt/internal/services/telegram"
	"github.com/bradmatt275/wake-from-mqtt/internal/services/wol"
	"github.com/rs/zerolog"
)

// ErrSubscriptionClosed is returned by Run when the transport stops delivering
// messages before the context is cancelled.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Subscriber delivers messages from a pub/sub transport.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan models.Message, error)
	Close() error
	Name() string
}

// Service defines the interface for the bridge.
type Service interface {
	Run(ctx context.Context) error
	Handle(ctx context.Context, msg models.Message) *models.HandleResult
}

// Impl implements the bridge Service interface.
type Impl struct {
	subscriber     Subscriber
	interpreterSvc interpreter.Service
	wolSvc         wol.Service
	telegramSvc    telegram.Service
	telegramCfg    *models.TelegramConfig
	recorder       *metrics.Recorder
	logger         zerolog.Logger
}

// New creates a new bridge from configuration. sub may be nil when only
// Handle is used.
func New(logger zerolog.Logger, cfg models.BridgeConfig, sub Subscriber) (*Impl, error) {
	var dir *interpreter.Directory
	if cfg.HasDirectory() {
		var err error
		dir, err = interpreter.NewDirectory(cfg.Devices)
		if err != nil {
			return nil, fmt.Errorf("building device directory: %w", err)
		}
	}

	return &Impl{
		subscriber:     sub,
		interpreterSvc: interpreter.New(logger, dir),
		wolSvc:         wol.New(logger, cfg.WOL),
		telegramSvc:    telegram.New(logger),
		telegramCfg:    cfg.Telegram,
		recorder:       metrics.NewRecorder(),
		logger:         logger,
	}, nil
}

// NewWithServices creates a new bridge with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	sub Subscriber,
	interpreterSvc interpreter.Service,
	wolSvc wol.Service,
	telegramSvc telegram.Service,
	telegramCfg *models.TelegramConfig,
	recorder *metrics.Recorder,
) *Impl {
	if recorder == nil {
		recorder = metrics.NewRecorder()
	}
	return &Impl{
		subscriber:     sub,
		interpreterSvc: interpreterSvc,
		wolSvc:         wolSvc,
		telegramSvc:    telegramSvc,
		telegramCfg:    telegramCfg,
		recorder:       recorder,
		logger:         logger,
	}
}

// Recorder returns the metrics recorder the bridge counts into.
func (s *Impl) Recorder() *metrics.Recorder {
	return s.recorder
}

// Run subscribes and handles messages one at a time until ctx is cancelled.
func (s *Impl) Run(ctx context.Context) error {
	if s.subscriber == nil {
		return errors.New("no subscriber configured")
	}

	msgs, err := s.subscriber.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribing via %s: %w", s.subscriber.Name(), err)
	}

	defer func() {
		if err := s.subscriber.Close(); err != nil {
			s.logger.Warn().Err(err).Str("transport", s.subscriber.Name()).Msg("failed to close subscription")
		}
	}()

	s.logger.Info().Str("transport", s.subscriber.Name()).Msg("bridge started, waiting for wake requests")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("shutting down bridge")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return ErrSubscriptionClosed
			}
			s.recorder.MessageReceived(s.subscriber.Name())
			s.Handle(ctx, msg)
		}
	}
}

// Handle resolves a single message and sends the wake packet. Every failure is
// reported on the result; none is fatal to the caller.
func (s *Impl) Handle(ctx context.Context, msg models.Message) *models.HandleResult {
	logger := s.logger.With().Str("topic", msg.Topic).Logger()
	logger.Debug().Str("payload", string(msg.Payload)).Msg("message received")

	result := &models.HandleResult{}
	defer func() { s.recorder.MessageHandled(result.Outcome) }()

	target, err := s.interpreterSvc.Resolve(msg.Topic, msg.Payload)
	if err != nil {
		result.Outcome = interpreter.OutcomeOf(err)
		result.Error = err
		s.logResolveError(logger, msg, err)
		return result
	}
	result.Target = target

	wakeResult, err := s.wolSvc.Wake(ctx, *target)
	if err != nil {
		wakeResult = &models.WakeResult{Target: *target, Error: err}
	}
	result.Wake = wakeResult

	if wakeResult.Error != nil {
		result.Outcome = models.OutcomeDispatchFailure
		result.Error = fmt.Errorf("sending wake packet to %s: %w", target.DisplayName, wakeResult.Error)
		logger.Error().
			Err(wakeResult.Error).
			Str("device", target.DisplayName).
			Str("mac", target.MACAddress).
			Str("destination", wakeResult.Destination).
			Msg("failed to send Wake-on-LAN packet")
	} else {
		result.Outcome = models.OutcomeWoken
		s.recorder.PacketSent(wakeResult.Mode)
		logger.Info().
			Str("device", target.DisplayName).
			Str("mode", wakeResult.Mode).
			Str("destination", wakeResult.Destination).
			Dur("duration", wakeResult.Duration).
			Msg("Wake-on-LAN packet sent")
	}

	if s.telegramCfg != nil {
		s.sendNotification(ctx, msg, wakeResult)
	}

	return result
}

func (s *Impl) logResolveError(logger zerolog.Logger, msg models.Message, err error) {
	var notFound *interpreter.DeviceNotFoundError

	switch {
	case errors.As(err, &notFound):
		logger.Warn().
			Str("device", notFound.Name).
			Strs("known", notFound.Known).
			Msg("device not found in directory")
	case errors.Is(err, interpreter.ErrDeviceNameUnsupported):
		logger.Warn().
			Str("payload", string(msg.Payload)).
			Msg(`device names need a configured device list; send a MAC address such as AA:BB:CC:DD:EE:FF or {"mac_address": "AA:BB:CC:DD:EE:FF"}`)
	default:
		logger.Warn().
			Err(err).
			Str("payload", string(msg.Payload)).
			Msg("ignoring wake request")
	}
}

func (s *Impl) sendNotification(ctx context.Context, msg models.Message, wake *models.WakeResult) {
	note := models.TelegramMessage{
		Success:     wake.Error == nil,
		Device:      wake.Target.DisplayName,
		MACAddress:  wake.Target.MACAddress,
		Mode:        wake.Mode,
		Destination: wake.Destination,
		Topic:       msg.Topic,
		Time:        msg.ReceivedAt,
	}
	if note.Time.IsZero() {
		note.Time = time.Now()
	}
	if wake.Error != nil {
		note.ErrorMessage = wake.Error.Error()
	}

	result, err := s.telegramSvc.SendNotification(ctx, *s.telegramCfg, note)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to send Telegram notification")
		return
	}
	if result.Error != nil {
		s.logger.Error().Err(result.Error).Msg("failed to send Telegram notification")
		return
	}

	s.logger.Debug().Msg("Telegram notification sent")
}
