package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show edbridged status",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := apiClient().GetStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("cannot reach edbridged at %s: %w", socketPath, err)
			}

			fmt.Printf("Status:        %s\n", resp.Status)
			fmt.Printf("Uptime:        %s\n", resp.Uptime)
			fmt.Printf("NATS Running:  %v\n", resp.NATSRunning)
			fmt.Printf("Started At:    %s\n", resp.StartedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Level:         %s (%d actors)\n", resp.CurrentLevel, resp.ActorCount)
			fmt.Printf("Requests:      %d (%d errors)\n", resp.RequestsHandled, resp.Errors)
			if resp.LastCommand != "" {
				fmt.Printf("Last Command:  %s at %s\n", resp.LastCommand, resp.LastCommandAt.Format("15:04:05"))
			}
			if resp.NATSRunning {
				fmt.Printf("Stored Events: %d\n", resp.StoredEvents)
			}
			return nil
		},
	}
}

func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the editor commands edbridged accepts",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := apiClient().GetCommands(cmd.Context())
			if err != nil {
				return fmt.Errorf("cannot reach edbridged at %s: %w", socketPath, err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "COMMAND\tMODE\tNOTE")
			for _, c := range resp.Commands {
				mode := "write"
				if c.ReadOnly {
					mode = "read"
				}
				note := ""
				if c.Deprecated {
					note = "deprecated alias of " + c.AliasOf
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, mode, note)
			}
			w.Flush()
			return nil
		},
	}
}
