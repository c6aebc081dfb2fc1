// Package config provides configuration loading from a YAML file or the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/bradmatt275/wake-from-mqtt/internal/models"
	"github.com/spf13/viper"
)

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	return &Parser{v: v}
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.BridgeConfig, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*models.BridgeConfig, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

func (p *Parser) parse() (*models.BridgeConfig, error) {
	cfg := &models.BridgeConfig{
		Transport: strings.ToLower(p.v.GetString("transport")),
	}

	// Parse MQTT settings.
	cfg.MQTT = models.MQTTConfig{
		Broker:   p.expandEnv(p.v.GetString("mqtt.broker")),
		Port:     p.v.GetInt("mqtt.port"),
		Username: p.expandEnv(p.v.GetString("mqtt.username")),
		Password: p.expandEnv(p.v.GetString("mqtt.password")),
		UseTLS:   p.v.GetBool("mqtt.use_tls"),
		Topic:    p.v.GetString("mqtt.topic"),
		ClientID: p.expandEnv(p.v.GetString("mqtt.client_id")),
	}

	qos := p.v.GetInt("mqtt.qos")
	if qos < 0 || qos > 2 {
		return nil, fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	cfg.MQTT.QoS = byte(qos)

	// Parse NATS settings.
	cfg.NATS = models.NATSConfig{
		URL:      p.expandEnv(p.v.GetString("nats.url")),
		Username: p.expandEnv(p.v.GetString("nats.username")),
		Password: p.expandEnv(p.v.GetString("nats.password")),
		UseTLS:   p.v.GetBool("nats.use_tls"),
		Subject:  p.v.GetString("nats.subject"),
		Name:     p.v.GetString("nats.name"),
	}

	// Parse WOL sender settings.
	cfg.WOL = models.WOLConfig{
		Port:        p.v.GetInt("wol.port"),
		BroadcastIP: p.v.GetString("wol.broadcast_ip"),
	}

	// Parse the optional device directory. A present but empty list still
	// configures an (empty) directory.
	if p.v.IsSet("devices") {
		if err := p.v.UnmarshalKey("devices", &cfg.Devices); err != nil {
			return nil, fmt.Errorf("parsing devices: %w", err)
		}
		cfg.Devices = nonNil(cfg.Devices)
	}

	if path := p.expandEnv(p.v.GetString("devices_file")); path != "" {
		devices, err := LoadDevicesFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Devices = append(nonNil(cfg.Devices), devices...)
	}

	// Parse logging and metrics.
	cfg.Log = models.LogConfig{
		Level:  p.v.GetString("log.level"),
		Format: p.v.GetString("log.format"),
	}
	cfg.Metrics = models.MetricsConfig{
		ListenAddress: p.v.GetString("metrics.listen_address"),
	}

	// Parse optional Telegram config.
	if p.v.IsSet("telegram") {
		cfg.Telegram = &models.TelegramConfig{
			BotToken: p.expandEnv(p.v.GetString("telegram.bot_token")),
			ChatID:   p.expandEnv(p.v.GetString("telegram.chat_id")),
		}

		if cfg.Telegram.BotToken == "" {
			return nil, fmt.Errorf("telegram.bot_token is required when telegram is configured")
		}
		if cfg.Telegram.ChatID == "" {
			return nil, fmt.Errorf("telegram.chat_id is required when telegram is configured")
		}
	}

	applyDefaults(cfg)

	return cfg, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

func nonNil(devices []models.DeviceConfig) []models.DeviceConfig {
	if devices == nil {
		return []models.DeviceConfig{}
	}
	return devices
}
