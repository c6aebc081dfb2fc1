package config

import (
	"fmt"
	"strings"

	"github.com/bradmatt275/wake-from-mqtt/internal/models"
	"github.com/caarlos0/env/v9"
)

// envConfig mirrors the environment variables understood without a config file.
type envConfig struct {
	Transport string `env:"TRANSPORT" envDefault:"mqtt"`

	MQTTBroker   string `env:"MQTT_BROKER"`
	MQTTPort     int    `env:"MQTT_PORT" envDefault:"1883"`
	MQTTUsername string `env:"MQTT_USERNAME"`
	MQTTPassword string `env:"MQTT_PASSWORD"`
	MQTTUseTLS   bool   `env:"MQTT_USE_TLS" envDefault:"false"`
	MQTTTopic    string `env:"MQTT_TOPIC" envDefault:"home/wake"`
	MQTTClientID string `env:"MQTT_CLIENT_ID"`
	MQTTQoS      uint8  `env:"MQTT_QOS" envDefault:"0"`

	NATSURL      string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSUsername string `env:"NATS_USERNAME"`
	NATSPassword string `env:"NATS_PASSWORD"`
	NATSUseTLS   bool   `env:"NATS_USE_TLS" envDefault:"false"`
	NATSSubject  string `env:"NATS_SUBJECT" envDefault:"home.wake"`

	WOLPort        int    `env:"WOL_PORT" envDefault:"9"`
	WOLBroadcastIP string `env:"WOL_BROADCAST_IP" envDefault:"255.255.255.255"`

	DevicesFile string `env:"DEVICES_FILE"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	MetricsListenAddress string `env:"METRICS_LISTEN_ADDRESS"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"TELEGRAM_CHAT_ID"`
}

// LoadEnv loads configuration from environment variables.
func LoadEnv() (*models.BridgeConfig, error) {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	transport := strings.ToLower(e.Transport)
	if transport == models.TransportMQTT && e.MQTTBroker == "" {
		return nil, fmt.Errorf("MQTT_BROKER environment variable is required")
	}

	cfg := &models.BridgeConfig{
		Transport: transport,
		MQTT: models.MQTTConfig{
			Broker:   e.MQTTBroker,
			Port:     e.MQTTPort,
			Username: e.MQTTUsername,
			Password: e.MQTTPassword,
			UseTLS:   e.MQTTUseTLS,
			Topic:    e.MQTTTopic,
			ClientID: e.MQTTClientID,
			QoS:      e.MQTTQoS,
		},
		NATS: models.NATSConfig{
			URL:      e.NATSURL,
			Username: e.NATSUsername,
			Password: e.NATSPassword,
			UseTLS:   e.NATSUseTLS,
			Subject:  e.NATSSubject,
		},
		WOL: models.WOLConfig{
			Port:        e.WOLPort,
			BroadcastIP: e.WOLBroadcastIP,
		},
		Log: models.LogConfig{
			Level:  e.LogLevel,
			Format: e.LogFormat,
		},
		Metrics: models.MetricsConfig{
			ListenAddress: e.MetricsListenAddress,
		},
	}

	if e.DevicesFile != "" {
		devices, err := LoadDevicesFile(e.DevicesFile)
		if err != nil {
			return nil, err
		}
		cfg.Devices = devices
	}

	if e.TelegramBotToken != "" || e.TelegramChatID != "" {
		cfg.Telegram = &models.TelegramConfig{
			BotToken: e.TelegramBotToken,
			ChatID:   e.TelegramChatID,
		}
	}

	applyDefaults(cfg)

	return cfg, nil
}
