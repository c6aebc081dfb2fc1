package main

import (
	"fmt"
	"os"

	"github.com/bradmatt275/wake-from-mqtt/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the configuration file (or environment) without connecting to a broker.`,
	Args:  cobra.NoArgs,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		// Check if file exists
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			log.Error().Str("file", configFile).Msg("config file not found")
			return fmt.Errorf("config file not found: %s", configFile)
		}
	}

	cfg, source, err := loadConfig()
	if err != nil {
		return err
	}

	printSummary(cmd, cfg, source)
	return nil
}

func printSummary(cmd *cobra.Command, cfg *models.BridgeConfig, source string) {
	out := cmd.OutOrStdout()
	p := func(format string, a ...any) { _, _ = fmt.Fprintf(out, format, a...) }

	p("Configuration is valid!\n\n")
	p("Summary:\n")
	p("  Source: %s\n", source)
	p("  Transport: %s\n", cfg.Transport)

	switch cfg.Transport {
	case models.TransportNATS:
		p("  URL: %s\n", cfg.NATS.URL)
		p("  Subject: %s\n", cfg.NATS.Subject)
		p("  TLS: %v\n", cfg.NATS.UseTLS)
	default:
		p("  Broker: %s:%d\n", cfg.MQTT.Broker, cfg.MQTT.Port)
		p("  Topic: %s\n", cfg.MQTT.Topic)
		p("  QoS: %d\n", cfg.MQTT.QoS)
		p("  TLS: %v\n", cfg.MQTT.UseTLS)
	}

	p("\nWake-on-LAN:\n")
	p("  Port: %d\n", cfg.WOL.Port)
	p("  Broadcast IP: %s\n", cfg.WOL.BroadcastIP)

	p("\nDevices:\n")
	switch {
	case !cfg.HasDirectory():
		p("  (none configured, send MAC addresses directly)\n")
	case len(cfg.Devices) == 0:
		p("  (empty list)\n")
	default:
		for _, d := range cfg.Devices {
			ip := d.IPAddress
			if ip == "" {
				ip = "broadcast"
			}
			p("  %-20s %s  %s\n", d.Name, d.MACAddress, ip)
		}
	}

	p("\nOptional Features:\n")
	p("  Metrics: %v\n", cfg.Metrics.ListenAddress != "")
	p("  Telegram: %v\n", cfg.Telegram != nil)

	if cfg.Metrics.ListenAddress != "" {
		p("\nMetrics Configuration:\n")
		p("  Listen Address: %s\n", cfg.Metrics.ListenAddress)
	}

	if cfg.Telegram != nil {
		p("\nTelegram Configuration:\n")
		p("  Chat ID: %s\n", cfg.Telegram.ChatID)
		p("  Bot Token: (configured)\n")
	}
}
