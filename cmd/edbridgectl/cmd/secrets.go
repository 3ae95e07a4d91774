package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"filippo.io/age"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sekia-ai/edbridge/internal/secrets"
)

func newSecretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage config value encryption",
	}

	cmd.AddCommand(newSecretsKeygenCmd())
	cmd.AddCommand(newSecretsEncryptCmd())
	cmd.AddCommand(newSecretsDecryptCmd())

	return cmd
}

func newSecretsKeygenCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an age keypair for config encryption",
		Long: `Generates an X25519 age keypair and writes the identity to a file.
The public key is printed for use with 'edbridgectl secrets encrypt --recipient'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := secrets.GenerateKeyPair()
			if err != nil {
				return fmt.Errorf("generate keypair: %w", err)
			}

			if output == "" {
				homeDir, _ := os.UserHomeDir()
				output = filepath.Join(homeDir, ".config", "edbridge", secrets.DefaultKeyFilename)
			}
			if err := os.MkdirAll(filepath.Dir(output), 0700); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}
			if _, err := os.Stat(output); err == nil {
				return fmt.Errorf("key file already exists: %s (remove it first to regenerate)", output)
			}

			content := fmt.Sprintf("# created: %s\n# public key: %s\n%s\n",
				time.Now().Format(time.RFC3339),
				identity.Recipient().String(),
				identity.String(),
			)
			if err := os.WriteFile(output, []byte(content), 0600); err != nil {
				return fmt.Errorf("write key file: %w", err)
			}

			fmt.Printf("Key file written to: %s\n", output)
			fmt.Printf("Public key: %s\n", identity.Recipient().String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: ~/.config/edbridge/age.key)")
	return cmd
}

func newSecretsEncryptCmd() *cobra.Command {
	var recipientKey string

	cmd := &cobra.Command{
		Use:   "encrypt <value>",
		Short: "Encrypt a value as ENC[...] for edbridge TOML files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := resolveRecipient(recipientKey)
			if err != nil {
				return err
			}
			encrypted, err := secrets.Encrypt(args[0], recipient)
			if err != nil {
				return fmt.Errorf("encrypt: %w", err)
			}
			fmt.Println(encrypted)
			return nil
		},
	}

	cmd.Flags().StringVar(&recipientKey, "recipient", "", "age public key (default: derived from the local identity)")
	return cmd
}

func resolveRecipient(key string) (age.Recipient, error) {
	if key != "" {
		r, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parse recipient: %w", err)
		}
		return r, nil
	}

	ids, err := secrets.ResolveIdentity(viper.New())
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	if len(ids) == 0 {
		return nil, errors.New("no age key found; run 'edbridgectl secrets keygen' first or pass --recipient")
	}
	x25519, ok := ids[0].(*age.X25519Identity)
	if !ok {
		return nil, errors.New("local identity is not X25519; pass --recipient")
	}
	return x25519.Recipient(), nil
}

func newSecretsDecryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <encrypted-value>",
		Short: "Decrypt an ENC[...] value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := secrets.ResolveIdentity(viper.New())
			if err != nil {
				return fmt.Errorf("resolve identity: %w", err)
			}
			if len(ids) == 0 {
				return fmt.Errorf("no age identity found; set %s or %s, or create ~/.config/edbridge/age.key",
					secrets.EnvAgeKey, secrets.EnvAgeKeyFile)
			}

			plaintext, err := secrets.Decrypt(args[0], ids...)
			if err != nil {
				return err
			}
			fmt.Println(plaintext)
			return nil
		},
	}
}
