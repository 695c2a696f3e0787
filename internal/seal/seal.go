package seal

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/savekit/internal/fault"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// Material is the key and IV used to seal local files.
// Its String and LogValue never reveal the secret.
type Material struct {
	Key string
	IV  []byte
}

// Valid reports whether m can be used to encrypt.
func (m Material) Valid() error {
	if m.Key == "" {
		return fault.New(fault.CodeCrypto, "seal", "empty key")
	}
	if len(m.IV) != aes.BlockSize {
		return fault.New(fault.CodeCrypto, "seal",
			fmt.Sprintf("iv must be %d bytes, got %d", aes.BlockSize, len(m.IV)))
	}
	return nil
}

func (m Material) String() string {
	return "seal.Material{REDACTED}"
}

// LogValue implements slog.LogValuer.
func (m Material) LogValue() slog.Value {
	return slog.StringValue("REDACTED")
}

// keyBytes pads or truncates the key to KeySize bytes.
func (m Material) keyBytes() []byte {
	k := []byte(m.Key)
	if len(k) >= KeySize {
		return k[:KeySize]
	}
	return append(k, bytes.Repeat([]byte(" "), KeySize-len(k))...)
}

func (m Material) block() (cipher.Block, error) {
	if err := m.Valid(); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(m.keyBytes())
	if err != nil {
		return nil, fault.Wrap(fault.CodeCrypto, "seal", err)
	}
	return block, nil
}

// Encrypt seals plain and returns base64 ciphertext.
func Encrypt(plain string, m Material) (string, error) {
	block, err := m.block()
	if err != nil {
		return "", err
	}

	padded := pad([]byte(plain), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, m.IV).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens base64 ciphertext produced by Encrypt.
func Decrypt(sealed string, m Material) (string, error) {
	block, err := m.block()
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sealed))
	if err != nil {
		return "", fault.Wrap(fault.CodeCrypto, "seal.Decrypt", err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fault.New(fault.CodeCrypto, "seal.Decrypt",
			fmt.Sprintf("ciphertext length %d is not a positive multiple of %d", len(raw), aes.BlockSize))
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, m.IV).CryptBlocks(out, raw)
	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return "", fault.Wrap(fault.CodeCrypto, "seal.Decrypt", err)
	}
	return string(plain), nil
}

// pad applies PKCS#7 padding. A full block is added when len(b) is
// already aligned.
func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
