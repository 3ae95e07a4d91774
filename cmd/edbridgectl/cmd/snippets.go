package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sekia-ai/edbridge/internal/snippets"
)

func defaultSnippetDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "edbridge", "snippets")
}

func newSnippetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snippets",
		Short: "Manage editor script snippets",
	}

	cmd.AddCommand(newSnippetsListCmd())
	cmd.AddCommand(newSnippetsReloadCmd())
	cmd.AddCommand(newSnippetsRunCmd())
	cmd.AddCommand(newSnippetsManifestCmd())

	return cmd
}

func newSnippetsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the snippets loaded by edbridged",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := apiClient().GetSnippets(cmd.Context())
			if err != nil {
				return fmt.Errorf("cannot reach edbridged at %s: %w", socketPath, err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPARAMS\tORIGIN\tDESCRIPTION")
			for _, s := range resp.Snippets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, strings.Join(s.Params, ","), s.Origin, s.Description)
			}
			w.Flush()
			return nil
		},
	}
}

func newSnippetsReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload the edbridged snippet directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient().ReloadSnippets(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Snippets reloaded.")
			return nil
		},
	}
}

func newSnippetsRunCmd() *cobra.Command {
	var (
		dir        string
		paramsJSON string
	)

	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Run a snippet on the editor over TCP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{}
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("parse --params: %w", err)
				}
			}
			lib, err := snippets.New(dir, false, zerolog.Nop())
			if err != nil {
				return err
			}
			if err := lib.LoadDir(); err != nil {
				return err
			}
			env, err := lib.Execute(cmd.Context(), bridgeClient(), args[0], params)
			if err != nil {
				return err
			}
			return printEnvelope(env)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "extra snippet directory")
	cmd.Flags().StringVarP(&paramsJSON, "params", "p", "", "snippet parameters as a JSON object")
	return cmd
}

func newSnippetsManifestCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Generate the SHA256 manifest for snippet files",
		Long: `Scans the snippet directory for .lua files, computes SHA256 hashes and
writes a snippets.sha256 manifest. edbridged checks it when
snippets.verify_integrity is enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = defaultSnippetDir()
			}

			m, err := snippets.GenerateManifest(dir)
			if err != nil {
				return fmt.Errorf("generate manifest: %w", err)
			}
			if err := m.WriteFile(dir); err != nil {
				return fmt.Errorf("write manifest: %w", err)
			}

			fmt.Printf("Hashed %d snippet(s) in %s\n", m.Count(), dir)
			m.WriteTo(os.Stdout)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "snippet directory (default: ~/.config/edbridge/snippets)")
	return cmd
}
