package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bradmatt275/wake-from-mqtt/internal/metrics"
	"github.com/bradmatt275/wake-from-mqtt/internal/models"
	"github.com/bradmatt275/wake-from-mqtt/internal/services/bridge"
	"github.com/bradmatt275/wake-from-mqtt/internal/services/mqtt"
	"github.com/bradmatt275/wake-from-mqtt/internal/services/nats"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Subscribe and wake devices until interrupted",
	Long: `Connect to the configured transport, subscribe to the wake topic and send a
Wake-on-LAN packet for every request received. Runs until SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runBridge,
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, source, err := loadConfig()
	if err != nil {
		return err
	}

	sub := newSubscriber(cfg)
	logStartup(cfg, source)

	bridgeSvc, err := bridge.New(log.Logger, *cfg, sub)
	if err != nil {
		log.Error().Err(err).Msg("failed to set up bridge")
		return err
	}

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	metricsDone := make(chan error, 1)
	if cfg.Metrics.ListenAddress != "" {
		srv := metrics.NewServer(log.Logger, cfg.Metrics.ListenAddress, bridgeSvc.Recorder())
		go func() {
			err := srv.Run(ctx)
			if err != nil {
				log.Error().Err(err).Msg("metrics server failed")
			}
			metricsDone <- err
		}()
	} else {
		metricsDone <- nil
	}

	runErr := bridgeSvc.Run(ctx)
	cancel()
	metricsErr := <-metricsDone

	if runErr != nil {
		log.Error().Err(runErr).Msg("bridge stopped")
		return runErr
	}
	if metricsErr != nil {
		return metricsErr
	}

	log.Info().Msg("stopped")
	return nil
}

func newSubscriber(cfg *models.BridgeConfig) bridge.Subscriber {
	if cfg.Transport == models.TransportNATS {
		return nats.New(log.Logger, cfg.NATS)
	}
	return mqtt.New(log.Logger, cfg.MQTT)
}

func logStartup(cfg *models.BridgeConfig, source string) {
	event := log.Info().
		Str("config", source).
		Str("transport", cfg.Transport).
		Int("wol_port", cfg.WOL.Port).
		Str("broadcast_ip", cfg.WOL.BroadcastIP)

	switch cfg.Transport {
	case models.TransportNATS:
		event = event.Str("url", cfg.NATS.URL).Str("subject", cfg.NATS.Subject)
	default:
		event = event.Str("broker", cfg.MQTT.Broker).Int("port", cfg.MQTT.Port).Str("topic", cfg.MQTT.Topic)
	}

	if cfg.HasDirectory() {
		event = event.Int("devices", len(cfg.Devices))
	}
	event.Msg("configuration loaded")

	if !cfg.HasDirectory() {
		log.Info().Msg(`no device list configured; send MAC addresses directly, e.g. AA:BB:CC:DD:EE:FF or {"mac_address": "AA:BB:CC:DD:EE:FF"}`)
	}
}
