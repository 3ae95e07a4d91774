package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sekia-ai/edbridge/internal/server"
)

var version = "dev"

func main() {
	var (
		cfgFile string
		debug   bool
	)

	rootCmd := &cobra.Command{
		Use:   "edbridged",
		Short: "edbridge daemon: editor command bridge over TCP, WebSocket and NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := zerolog.InfoLevel
			if debug {
				level = zerolog.DebugLevel
			}
			logger := zerolog.New(
				zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339},
			).Level(level).With().Timestamp().Logger()

			cfg, err := server.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			d := server.NewDaemon(cfg, logger)
			return d.Run()
		},
	}

	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "log every handled command")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
