package cloud

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/roach88/savekit/internal/fault"
	"github.com/roach88/savekit/internal/seal"
)

// Secret endpoint function and result keys.
const (
	encryptionEndpoint = "GetEncryption"
	materialKey        = "Key"
	materialIV         = "IV"
)

// EncryptionMaterial fetches the local encryption key and IV from the
// secret endpoint. Requires a signed-in identity.
func (s *Store) EncryptionMaterial(ctx context.Context) (seal.Material, error) {
	const op = "cloud.EncryptionMaterial"

	if _, err := s.identity(op); err != nil {
		return seal.Material{}, err
	}
	if s.secrets == nil {
		return seal.Material{}, fault.New(fault.CodeCrypto, op, "no secret endpoint configured")
	}

	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	out, err := s.secrets.Call(ctx, encryptionEndpoint, nil)
	if err != nil {
		span.RecordError(err)
		return seal.Material{}, fault.Wrap(fault.CodeIO, op, err)
	}

	key, _ := out[materialKey].(string)
	iv, err := decodeIV(out[materialIV])
	if err != nil {
		return seal.Material{}, fault.Wrap(fault.CodeCrypto, op, err)
	}
	m := seal.Material{Key: key, IV: iv}
	if err := m.Valid(); err != nil {
		return seal.Material{}, err
	}
	return m, nil
}

// decodeIV accepts raw bytes, base64 text, or a JSON array of byte values.
func decodeIV(v any) ([]byte, error) {
	switch iv := v.(type) {
	case []byte:
		return iv, nil
	case string:
		b, err := base64.StdEncoding.DecodeString(iv)
		if err != nil {
			return nil, fmt.Errorf("iv: %w", err)
		}
		return b, nil
	case []any:
		b := make([]byte, len(iv))
		for i, e := range iv {
			n, ok := e.(float64)
			if !ok || n < 0 || n > 255 || n != float64(int(n)) {
				return nil, fmt.Errorf("iv[%d]: %v is not a byte", i, e)
			}
			b[i] = byte(n)
		}
		return b, nil
	case nil:
		return nil, fmt.Errorf("iv missing")
	default:
		return nil, fmt.Errorf("iv has unsupported type %T", v)
	}
}
