// Package models contains the data structures used throughout wake-from-mqtt.
package models

// Transport names.
const (
	TransportMQTT = "mqtt"
	TransportNATS = "nats"
)

// BridgeConfig holds the complete configuration for the bridge process.
type BridgeConfig struct {
	Transport string
	MQTT      MQTTConfig
	NATS      NATSConfig
	WOL       WOLConfig
	Devices   []DeviceConfig // nil if no directory is configured
	Log       LogConfig
	Metrics   MetricsConfig
	Telegram  *TelegramConfig // nil if not configured
}

// HasDirectory reports whether a static device directory was configured.
// An empty, non-nil slice is a configured directory without entries.
func (c BridgeConfig) HasDirectory() bool {
	return c.Devices != nil
}

// MQTTConfig holds MQTT broker connection settings.
type MQTTConfig struct {
	Broker   string
	Port     int
	Username string // optional
	Password string // optional
	UseTLS   bool
	Topic    string
	ClientID string
	QoS      byte
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL      string
	Username string // optional
	Password string // optional
	UseTLS   bool
	Subject  string
	Name     string
}

// DeviceConfig is one entry of the static device directory.
type DeviceConfig struct {
	Name       string `yaml:"name" mapstructure:"name"`
	MACAddress string `yaml:"mac_address" mapstructure:"mac_address"`
	IPAddress  string `yaml:"ip_address,omitempty" mapstructure:"ip_address"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string // trace, debug, info, warn, error
	Format string // "console" (default) or "json"
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	ListenAddress string // empty disables the endpoint
}
