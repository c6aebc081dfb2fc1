package main

import (
	"os"
	"strings"

	"github.com/bradmatt275/wake-from-mqtt/internal/config"
	"github.com/bradmatt275/wake-from-mqtt/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile string
	verbose    bool
	quiet      bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "wake-from-mqtt",
	Short: "Wake devices on your LAN from MQTT or NATS messages",
	Long: `wake-from-mqtt subscribes to a pub/sub topic and sends a Wake-on-LAN
magic packet for every request it receives. A request is one of:
  - a MAC address:        AA:BB:CC:DD:EE:FF
  - a JSON object:        {"mac_address": "AA:BB:CC:DD:EE:FF", "ip_address": "192.168.1.20"}
  - a device name:        living-room-pc (requires a configured device list)

Configuration is read from the file given with --config, or from environment
variables (MQTT_BROKER, MQTT_TOPIC, ...) when no file is given.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(nil)
	},
	SilenceUsage: true,
	Version:      Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: read environment variables)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(wakeCmd)
}

// setupLogging configures the global logger. Command line flags take
// precedence over the log section of the configuration.
func setupLogging(cfg *models.LogConfig) {
	format, level := "", ""
	if cfg != nil {
		format, level = cfg.Format, cfg.Level
	}

	// Set output format
	if jsonOutput || format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set log level
	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case level != "":
		lvl, err := config.ParseLevel(level)
		if err != nil {
			lvl = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(lvl)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// loadConfig reads the configuration from --config or the environment,
// validates it and applies its log settings.
func loadConfig() (*models.BridgeConfig, string, error) {
	var (
		cfg    *models.BridgeConfig
		source string
		err    error
	)

	if configFile != "" {
		source = configFile
		cfg, err = config.NewParser().LoadFile(configFile)
	} else {
		source = "environment"
		cfg, err = config.LoadEnv()
	}
	if err != nil {
		log.Error().Err(err).Str("source", source).Msg("failed to load config")
		return nil, source, err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Str("source", source).Msg("invalid configuration")
		return nil, source, err
	}

	setupLogging(&cfg.Log)

	return cfg, source, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
