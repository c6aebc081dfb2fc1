package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradmatt275/wake-from-mqtt/internal/models"
	"github.com/bradmatt275/wake-from-mqtt/internal/services/bridge"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var errWakeFailed = errors.New("wake request failed")

var wakeCmd = &cobra.Command{
	Use:   "wake <payload>",
	Short: "Send a single wake request without a broker",
	Long: `Resolve a payload exactly as if it had been received on the wake topic and
send the magic packet. Useful to test a device entry or the network path.

Examples:
  wake-from-mqtt wake AA:BB:CC:DD:EE:FF
  wake-from-mqtt wake '{"mac_address": "AA:BB:CC:DD:EE:FF", "ip_address": "192.168.1.20"}'
  wake-from-mqtt -c config.yaml wake living-room-pc`,
	Args: cobra.ExactArgs(1),
	RunE: wakeOnce,
}

func wakeOnce(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	bridgeSvc, err := bridge.New(log.Logger, *cfg, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to set up bridge")
		return err
	}

	result := bridgeSvc.Handle(context.Background(), models.Message{
		Topic:      "cli",
		Payload:    []byte(args[0]),
		ReceivedAt: time.Now(),
	})

	out := cmd.OutOrStdout()
	if result.Outcome != models.OutcomeWoken {
		_, _ = fmt.Fprintf(out, "Wake failed (%s): %v\n", result.Outcome, result.Error)
		return fmt.Errorf("%w: %s", errWakeFailed, result.Outcome)
	}

	_, _ = fmt.Fprintf(out, "Wake packet sent to %s\n", result.Target.DisplayName)
	_, _ = fmt.Fprintf(out, "  MAC Address: %s\n", result.Target.MACAddress)
	_, _ = fmt.Fprintf(out, "  Destination: %s (%s)\n", result.Wake.Destination, result.Wake.Mode)

	return nil
}
