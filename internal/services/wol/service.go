// Package wol provides Wake-on-LAN operations.
package wol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/bradmatt275/wake-from-mqtt/internal/models"
	"github.com/mdlayher/wol"
	"github.com/rs/zerolog"
)

// Default sender settings.
const (
	DefaultPort        = 9
	DefaultBroadcastIP = "255.255.255.255"
)

// ErrInvalidAddress is returned when a MAC or IP address cannot be encoded.
var ErrInvalidAddress = errors.New("invalid address")

// Service defines the interface for Wake-on-LAN operations.
type Service interface {
	Wake(ctx context.Context, target models.WakeTarget) (*models.WakeResult, error)
}

// Client wraps the wol library for mocking.
type Client interface {
	Wake(addr string, mac net.HardwareAddr) error
}

// DefaultClient is the default implementation using mdlayher/wol.
// Each call opens and closes its own UDP socket.
type DefaultClient struct{}

// Wake sends a magic packet for mac to addr (host:port).
func (c *DefaultClient) Wake(addr string, mac net.HardwareAddr) error {
	client, err := wol.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create WOL client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Wake(addr, mac); err != nil {
		return fmt.Errorf("failed to send WOL packet: %w", err)
	}

	return nil
}

// Impl implements the WOL Service interface.
type Impl struct {
	wolClient Client
	cfg       models.WOLConfig
	logger    zerolog.Logger
}

// New creates a new WOL service.
func New(logger zerolog.Logger, cfg models.WOLConfig) *Impl {
	return NewWithClient(logger, cfg, &DefaultClient{})
}

// NewWithClient creates a new WOL service with a custom client (for testing).
func NewWithClient(logger zerolog.Logger, cfg models.WOLConfig, wolClient Client) *Impl {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.BroadcastIP == "" {
		cfg.BroadcastIP = DefaultBroadcastIP
	}
	return &Impl{
		wolClient: wolClient,
		cfg:       cfg,
		logger:    logger,
	}
}

// Wake sends a magic packet for target: unicast when the target has an IP
// address, broadcast otherwise. Failures are stored in the result.
func (s *Impl) Wake(ctx context.Context, target models.WakeTarget) (*models.WakeResult, error) {
	result := &models.WakeResult{Target: target}
	start := time.Now()

	mac, err := net.ParseMAC(target.MACAddress)
	if err != nil || len(mac) != 6 {
		result.Error = fmt.Errorf("%w: MAC address %q", ErrInvalidAddress, target.MACAddress)
		return result, nil
	}

	result.Mode, result.Destination, err = s.destination(target)
	if err != nil {
		result.Error = err
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		result.Error = err
		return result, nil
	}

	s.logger.Info().
		Str("device", target.DisplayName).
		Str("mac", target.MACAddress).
		Str("mode", result.Mode).
		Str("destination", result.Destination).
		Msg("sending WOL packet")

	if err := s.wolClient.Wake(result.Destination, mac); err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result, nil //nolint:nilerr // error is stored in result struct by design
	}

	result.PacketSent = true
	result.Duration = time.Since(start)

	s.logger.Debug().
		Str("device", target.DisplayName).
		Dur("duration", result.Duration).
		Msg("WOL packet sent successfully")

	return result, nil
}

func (s *Impl) destination(target models.WakeTarget) (mode, addr string, err error) {
	mode, host := models.ModeBroadcast, s.cfg.BroadcastIP
	if !target.Broadcast() {
		mode, host = models.ModeUnicast, target.IPAddress
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return mode, "", fmt.Errorf("%w: IP address %q", ErrInvalidAddress, host)
	}

	return mode, net.JoinHostPort(ip.String(), strconv.Itoa(s.cfg.Port)), nil
}
