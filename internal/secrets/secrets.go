// Package secrets decrypts age-encrypted configuration values.
//
// An encrypted value is written as ENC[<base64 age ciphertext>] anywhere a
// string is accepted in an edbridge TOML file, typically the NATS token and
// the command signing secret.
package secrets

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"github.com/spf13/viper"
)

const (
	encPrefix = "ENC["
	encSuffix = "]"

	// DefaultKeyFilename is the identity file looked up in ~/.config/edbridge.
	DefaultKeyFilename = "age.key"

	// EnvAgeKey holds a raw AGE-SECRET-KEY-1... identity.
	EnvAgeKey = "EDBRIDGE_AGE_KEY"
	// EnvAgeKeyFile holds the path of an identity file.
	EnvAgeKeyFile = "EDBRIDGE_AGE_KEY_FILE"
)

// ErrNoIdentity is returned when encrypted values exist but no identity is configured.
var ErrNoIdentity = errors.New("config has encrypted values but no age identity is configured")

// IsEncrypted reports whether value has the ENC[...] form with a non-empty body.
func IsEncrypted(value string) bool {
	return len(value) > len(encPrefix)+len(encSuffix) &&
		strings.HasPrefix(value, encPrefix) && strings.HasSuffix(value, encSuffix)
}

// Encrypt seals plaintext for recipients and wraps it as ENC[...].
func Encrypt(plaintext string, recipients ...age.Recipient) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipients...)
	if err != nil {
		return "", fmt.Errorf("age encrypt: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("age encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("age encrypt: %w", err)
	}
	return encPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()) + encSuffix, nil
}

// Decrypt opens an ENC[...] value with identities.
func Decrypt(value string, identities ...age.Identity) (string, error) {
	if !IsEncrypted(value) {
		return "", errors.New("value is not wrapped in ENC[...]")
	}
	raw, err := base64.StdEncoding.DecodeString(value[len(encPrefix) : len(value)-len(encSuffix)])
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), identities...)
	if err != nil {
		return "", fmt.Errorf("age decrypt: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("age decrypt: %w", err)
	}
	return string(out), nil
}

// GenerateKeyPair creates a new X25519 identity.
func GenerateKeyPair() (*age.X25519Identity, error) {
	return age.GenerateX25519Identity()
}

// LoadIdentity reads every identity in an age key file.
func LoadIdentity(path string) ([]age.Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open identity file: %w", err)
	}
	defer f.Close()
	ids, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parse identity file %s: %w", path, err)
	}
	return ids, nil
}

// ResolveIdentity looks for an identity in EDBRIDGE_AGE_KEY, then
// EDBRIDGE_AGE_KEY_FILE, then the secrets.identity config key, then
// ~/.config/edbridge/age.key. It returns nil, nil when none is found.
func ResolveIdentity(v *viper.Viper) ([]age.Identity, error) {
	if raw := os.Getenv(EnvAgeKey); raw != "" {
		id, err := age.ParseX25519Identity(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", EnvAgeKey, err)
		}
		return []age.Identity{id}, nil
	}
	if path := os.Getenv(EnvAgeKeyFile); path != "" {
		return LoadIdentity(path)
	}
	if path := v.GetString("secrets.identity"); path != "" {
		return LoadIdentity(expandHome(path))
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil
	}
	path := filepath.Join(home, ".config", "edbridge", DefaultKeyFilename)
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	return LoadIdentity(path)
}

// DecryptConfig replaces every ENC[...] string in v with its plaintext. It
// is a no-op when v holds no encrypted values.
func DecryptConfig(v *viper.Viper) error {
	var keys []string
	for _, key := range v.AllKeys() {
		if IsEncrypted(v.GetString(key)) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	ids, err := ResolveIdentity(v)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return ErrNoIdentity
	}
	for _, key := range keys {
		plain, err := Decrypt(v.GetString(key), ids...)
		if err != nil {
			return fmt.Errorf("decrypt config key %q: %w", key, err)
		}
		v.Set(key, plain)
	}
	return nil
}

func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}
