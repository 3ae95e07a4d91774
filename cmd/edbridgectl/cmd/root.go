package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sekia-ai/edbridge/internal/client"
	"github.com/sekia-ai/edbridge/internal/transport"
	"github.com/sekia-ai/edbridge/pkg/sockpath"
)

var (
	socketPath string
	bridgeAddr string
	timeout    time.Duration

	// Version is set by the main package via ldflags.
	Version = "dev"
)

// NewRootCmd creates the root edbridgectl command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "edbridgectl",
		Short:        "edbridge CLI: send editor commands and inspect edbridged",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", sockpath.DefaultSocketPath(), "edbridged Unix socket path")
	rootCmd.PersistentFlags().StringVar(&bridgeAddr, "addr", transport.DefaultTCPAddr, "editor bridge TCP address")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "command timeout")

	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newCommandsCmd())
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newExecCmd())
	rootCmd.AddCommand(newSnippetsCmd())
	rootCmd.AddCommand(newSecretsCmd())

	return rootCmd
}

func apiClient() *client.APIClient {
	return client.NewAPIClient(socketPath)
}

func bridgeClient() *client.TCPClient {
	return client.NewTCPClient(bridgeAddr, timeout)
}
