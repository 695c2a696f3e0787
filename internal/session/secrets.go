package session

import (
	"context"
	"encoding/base64"
	"fmt"
)

// EncryptionEndpoint is the secret endpoint name serving key material.
const EncryptionEndpoint = "GetEncryption"

// StaticSecrets answers secret endpoint calls from fixed values.
// The IV is returned base64 encoded, as a remote endpoint would send it.
type StaticSecrets struct {
	Key string
	IV  []byte
}

// Call serves EncryptionEndpoint; every other name is an error.
func (s StaticSecrets) Call(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name != EncryptionEndpoint {
		return nil, fmt.Errorf("unknown secret endpoint %q", name)
	}
	if s.Key == "" || len(s.IV) == 0 {
		return nil, fmt.Errorf("%s: no encryption material configured", name)
	}
	return map[string]any{
		"Key": s.Key,
		"IV":  base64.StdEncoding.EncodeToString(s.IV),
	}, nil
}
