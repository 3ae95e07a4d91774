package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sekia-ai/edbridge/pkg/protocol"
)

func newSendCmd() *cobra.Command {
	var paramsJSON string

	cmd := &cobra.Command{
		Use:   "send <command>",
		Short: "Send one editor command over TCP and print the reply",
		Example: `  edbridgectl send get_actors_in_level
  edbridgectl send spawn_actor --params '{"type":"PointLight","name":"Key","location":[0,0,300]}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{}
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("parse --params: %w", err)
				}
			}
			env, err := bridgeClient().Send(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			return printEnvelope(env)
		},
	}

	cmd.Flags().StringVarP(&paramsJSON, "params", "p", "", "command parameters as a JSON object")
	return cmd
}

func newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <file>",
		Short: "Run a script file in the editor with exec_editor_python",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			env, err := bridgeClient().Send(cmd.Context(), "exec_editor_python", map[string]any{"code": string(code)})
			if err != nil {
				return err
			}
			if !env.OK() {
				if out, ok := env.Details["output"].(string); ok && out != "" {
					fmt.Println(out)
				}
				return errors.New(env.Error)
			}
			if out, ok := env.Result["output"].(string); ok && out != "" {
				fmt.Println(out)
			}
			if errOut, ok := env.Result["error_output"].(string); ok && errOut != "" {
				fmt.Fprintln(os.Stderr, errOut)
			}
			return nil
		},
	}
}

// printEnvelope writes the envelope as indented JSON and turns an error
// envelope into a non-zero exit.
func printEnvelope(env protocol.Envelope) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	if !env.OK() {
		return errors.New(env.Error)
	}
	return nil
}
