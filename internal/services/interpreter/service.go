// Package interpreter turns inbound message payloads into wake targets.
package interpreter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bradmatt275/wake-from-mqtt/internal/models"
	"github.com/rs/zerolog"
)

// Payload field names.
const (
	fieldMACAddress = "mac_address"
	fieldIPAddress  = "ip_address"
	fieldDevice     = "device"
)

// Service defines the interface for resolving messages to wake targets.
type Service interface {
	Resolve(topic string, payload []byte) (*models.WakeTarget, error)
}

// Impl implements the interpreter Service interface.
type Impl struct {
	directory *Directory
	logger    zerolog.Logger
}

// New creates a new interpreter. A nil directory disables device names.
func New(logger zerolog.Logger, directory *Directory) *Impl {
	return &Impl{
		directory: directory,
		logger:    logger,
	}
}

// Directory returns the device directory, nil if none is configured.
func (s *Impl) Directory() *Directory {
	return s.directory
}

// Resolve resolves a payload against the configured directory.
func (s *Impl) Resolve(topic string, payload []byte) (*models.WakeTarget, error) {
	target, err := Resolve(topic, payload, s.directory)
	if err != nil {
		s.logger.Debug().Err(err).Str("topic", topic).Msg("payload did not resolve")
		return nil, err
	}

	s.logger.Debug().
		Str("topic", topic).
		Str("mac", target.MACAddress).
		Str("ip", target.IPAddress).
		Str("device", target.DisplayName).
		Msg("payload resolved")

	return target, nil
}

// Resolve interprets payload as, in order: a JSON object with mac_address or
// device, a bare MAC address, or a bare device name looked up in dir.
// Payloads that fail to parse as a JSON object fall back to plain text.
// The topic does not affect resolution.
func Resolve(topic string, payload []byte, dir *Directory) (*models.WakeTarget, error) {
	if !utf8.Valid(payload) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrMalformedPayload)
	}

	if fields, ok := parseObject(payload); ok {
		return resolveObject(fields, dir)
	}

	text := strings.TrimSpace(string(payload))
	if text == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}

	if models.IsMACAddress(text) {
		return models.NewWakeTarget(text, "", "")
	}

	return lookup(text, dir)
}

func resolveObject(fields map[string]json.RawMessage, dir *Directory) (*models.WakeTarget, error) {
	if raw, ok := fields[fieldMACAddress]; ok {
		mac, isString := decodeString(raw)
		if !isString {
			return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidMACAddress, fieldMACAddress)
		}
		ip, _ := stringField(fields, fieldIPAddress)
		name, _ := stringField(fields, fieldDevice)
		return models.NewWakeTarget(mac, ip, name)
	}

	if name, ok := stringField(fields, fieldDevice); ok && name != "" {
		return lookup(name, dir)
	}

	return nil, ErrNoTargetSpecified
}

func lookup(name string, dir *Directory) (*models.WakeTarget, error) {
	if dir == nil {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNameUnsupported, name)
	}

	dev, ok := dir.Lookup(name)
	if !ok {
		return nil, &DeviceNotFoundError{Name: name, Known: dir.Names()}
	}

	return models.NewWakeTarget(dev.MACAddress, dev.IPAddress, dev.Name)
}

// parseObject returns the fields of payload if it is a JSON object.
func parseObject(payload []byte) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	return decodeString(raw)
}

func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	// json.Unmarshal leaves s untouched for null.
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", false
	}
	return s, true
}
