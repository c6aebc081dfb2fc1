package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/bradmatt275/wake-from-mqtt/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Defaults shared by the file and environment loaders.
const (
	DefaultTransport   = models.TransportMQTT
	DefaultMQTTPort    = 1883
	DefaultMQTTTopic   = "home/wake"
	DefaultNATSURL     = "nats://localhost:4222"
	DefaultNATSSubject = "home.wake"
	DefaultWOLPort     = 9
	DefaultBroadcastIP = "255.255.255.255"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"
	clientIDPrefix     = "wake-from-mqtt-"
)

func applyDefaults(cfg *models.BridgeConfig) {
	if cfg.Transport == "" {
		cfg.Transport = DefaultTransport
	}

	if cfg.MQTT.Port == 0 {
		cfg.MQTT.Port = DefaultMQTTPort
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = DefaultMQTTTopic
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = clientIDPrefix + uuid.NewString()[:8]
	}

	if cfg.NATS.URL == "" {
		cfg.NATS.URL = DefaultNATSURL
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = DefaultNATSSubject
	}
	if cfg.NATS.Name == "" {
		cfg.NATS.Name = cfg.MQTT.ClientID
	}

	if cfg.WOL.Port == 0 {
		cfg.WOL.Port = DefaultWOLPort
	}
	if cfg.WOL.BroadcastIP == "" {
		cfg.WOL.BroadcastIP = DefaultBroadcastIP
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// ParseLevel converts a configured level name to a zerolog level. Names are
// case-insensitive and "warning" is accepted for "warn".
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", level)
	}
	return lvl, nil
}

// Validate performs validation on the loaded configuration.
//
//nolint:gocognit,gocyclo // validation requires checking many fields
func Validate(cfg *models.BridgeConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	switch cfg.Transport {
	case models.TransportMQTT:
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required")
		}
		if cfg.MQTT.Port < 1 || cfg.MQTT.Port > 65535 {
			return fmt.Errorf("mqtt.port must be between 1 and 65535")
		}
		if cfg.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.topic is required")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	case models.TransportNATS:
		if cfg.NATS.URL == "" {
			return fmt.Errorf("nats.url is required")
		}
		if cfg.NATS.Subject == "" {
			return fmt.Errorf("nats.subject is required")
		}
	default:
		return fmt.Errorf("transport must be one of: mqtt, nats")
	}

	if cfg.WOL.Port < 1 || cfg.WOL.Port > 65535 {
		return fmt.Errorf("wol.port must be between 1 and 65535")
	}
	if net.ParseIP(cfg.WOL.BroadcastIP) == nil {
		return fmt.Errorf("wol.broadcast_ip %q is not an IP address", cfg.WOL.BroadcastIP)
	}

	seen := make(map[string]string, len(cfg.Devices))
	for i, dev := range cfg.Devices {
		if dev.Name == "" {
			return fmt.Errorf("devices[%d].name is required", i)
		}
		if !models.IsMACAddress(dev.MACAddress) {
			return fmt.Errorf("devices[%d].mac_address %q is not a valid MAC address", i, dev.MACAddress)
		}
		if dev.IPAddress != "" && net.ParseIP(dev.IPAddress) == nil {
			return fmt.Errorf("devices[%d].ip_address %q is not an IP address", i, dev.IPAddress)
		}
		key := strings.ToLower(dev.Name)
		if other, ok := seen[key]; ok {
			return fmt.Errorf("devices[%d].name %q duplicates %q", i, dev.Name, other)
		}
		seen[key] = dev.Name
	}

	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if cfg.Log.Format != "console" && cfg.Log.Format != "json" {
		return fmt.Errorf("log.format must be one of: console, json")
	}

	if cfg.Telegram != nil && (cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "") {
		return fmt.Errorf("telegram requires both bot_token and chat_id")
	}

	return nil
}
