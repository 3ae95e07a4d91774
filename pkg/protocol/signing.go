package protocol

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// signedFields fixes the field order of the signed bytes. The signature
// itself is never part of them.
type signedFields struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params"`
	Source  string         `json:"source"`
}

// commandMAC is the HMAC-SHA256 of the command's signed fields.
func commandMAC(cmd *Command, secret string) ([]byte, error) {
	body, err := json.Marshal(signedFields{Command: cmd.Command, Params: cmd.Params, Source: cmd.Source})
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil), nil
}

// SignCommand sets cmd.Signature to the hex HMAC of the command. An empty
// secret leaves the command unsigned.
func SignCommand(cmd *Command, secret string) error {
	if secret == "" {
		return nil
	}
	sum, err := commandMAC(cmd, secret)
	if err != nil {
		return err
	}
	cmd.Signature = hex.EncodeToString(sum)
	return nil
}

// VerifyCommand reports whether cmd carries a valid signature for secret.
// Every command passes when secret is empty; unsigned or malformed
// signatures fail otherwise.
func VerifyCommand(cmd *Command, secret string) bool {
	if secret == "" {
		return true
	}
	got, err := hex.DecodeString(cmd.Signature)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	want, err := commandMAC(cmd, secret)
	if err != nil {
		return false
	}
	return hmac.Equal(got, want)
}
